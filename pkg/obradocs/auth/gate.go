// Package auth validates inbound requests before any business logic runs.
//
// Every request must carry a non-empty apikey header and a bearer token; the
// token is then verified against the identity provider's "who am I" endpoint.
// Nothing is cached between requests: each invocation re-derives the caller's
// identity from its own token.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/render"

	"github.com/obrahub/obradocs/pkg/obradocs"
)

// ErrUnauthorized indicates the identity provider rejected the bearer token.
var ErrUnauthorized = errors.New("unauthorized")

// Verifier resolves a bearer token to the identity it belongs to. It is the
// seam tests substitute for a live identity provider.
type Verifier interface {
	Verify(ctx context.Context, token string) (*obradocs.Identity, error)
}

// VerifierFunc adapts a function to the Verifier interface.
type VerifierFunc func(ctx context.Context, token string) (*obradocs.Identity, error)

func (f VerifierFunc) Verify(ctx context.Context, token string) (*obradocs.Identity, error) {
	return f(ctx, token)
}

type contextKey struct{}

// Middleware rejects requests that fail the gate and stores the verified
// identity in the request context for handlers downstream. Failure is
// terminal for the request; there are no retries.
func Middleware(verifier Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.TrimSpace(r.Header.Get("apikey")) == "" {
				reject(w, r, "Missing apikey")
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				reject(w, r, "Unauthorized")
				return
			}

			identity, err := verifier.Verify(r.Context(), token)
			if err != nil || identity == nil {
				reject(w, r, "Unauthorized")
				return
			}

			ctx := context.WithValue(r.Context(), contextKey{}, *identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFromContext returns the identity the gate stored for this request.
func IdentityFromContext(ctx context.Context) (obradocs.Identity, bool) {
	identity, ok := ctx.Value(contextKey{}).(obradocs.Identity)
	return identity, ok
}

// bearerToken extracts the token from an "Authorization: Bearer <token>"
// header. Anything else is malformed.
func bearerToken(header string) (string, bool) {
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || strings.TrimSpace(token) == "" {
		return "", false
	}
	return token, true
}

func reject(w http.ResponseWriter, r *http.Request, msg string) {
	render.Status(r, http.StatusUnauthorized)
	render.JSON(w, r, map[string]string{"msg": msg})
}
