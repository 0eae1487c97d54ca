package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/obrahub/obradocs/pkg/obradocs"
)

// HTTPVerifier verifies bearer tokens against a GoTrue-style identity
// provider by calling its user endpoint with the caller's own token. The
// anon key authenticates the service to the provider; the bearer token
// identifies the caller.
type HTTPVerifier struct {
	BaseURL string
	AnonKey string
	Client  *http.Client
}

// NewHTTPVerifier creates a verifier for the identity provider at baseURL.
func NewHTTPVerifier(baseURL, anonKey string) *HTTPVerifier {
	return &HTTPVerifier{
		BaseURL: baseURL,
		AnonKey: anonKey,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Verify calls the provider's "who am I" endpoint and maps its answer to an
// Identity. Any non-200 answer, missing user id, or transport failure yields
// ErrUnauthorized; the gate never distinguishes why a token was rejected.
func (v *HTTPVerifier) Verify(ctx context.Context, token string) (*obradocs.Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.BaseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, fmt.Errorf("build identity request: %w", err)
	}
	req.Header.Set("apikey", v.AnonKey)
	req.Header.Set("Authorization", "Bearer "+token)

	client := v.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity provider unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ErrUnauthorized
	}

	var user userResponse
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("decode identity response: %w", err)
	}

	userID, err := uuid.Parse(user.ID)
	if err != nil {
		return nil, ErrUnauthorized
	}

	return &obradocs.Identity{UserID: userID, Email: user.Email, Token: token}, nil
}
