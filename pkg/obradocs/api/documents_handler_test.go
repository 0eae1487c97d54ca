package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obrahub/obradocs/pkg/obradocs"
	"github.com/obrahub/obradocs/pkg/obradocs/auth"
	"github.com/obrahub/obradocs/pkg/obradocs/repo/memory"
	"github.com/obrahub/obradocs/pkg/obradocs/sigv4"
)

const testToken = "valid-token"

var testUserID = uuid.MustParse("5f0c1a52-7a10-4f4e-9c07-0f2f6d43e101")

func setupTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	signer := &sigv4.Signer{
		Endpoint:        "https://acct.r2.cloudflarestorage.com",
		Bucket:          "obradocs",
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "wJalrXUtnFEMI/K7MDENG+bPxRfiCYEXAMPLEKEY",
		Now:             func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) },
	}

	svc, err := obradocs.New(
		obradocs.WithRepository(memory.New()),
		obradocs.WithSigner(signer),
		obradocs.WithBucket("obradocs"),
	)
	require.NoError(t, err)

	verifier := auth.VerifierFunc(func(ctx context.Context, token string) (*obradocs.Identity, error) {
		if token != testToken {
			return nil, auth.ErrUnauthorized
		}
		return &obradocs.Identity{UserID: testUserID, Email: "user@example.com", Token: token}, nil
	})

	r := chi.NewRouter()
	r.Route("/api/v1/documents", func(r chi.Router) {
		r.Use(auth.Middleware(verifier))
		r.Mount("/", NewDocumentsHandler(svc).Routes())
	})

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server
}

func doRequest(t *testing.T, server *httptest.Server, method, path string, body any, authorize bool) *http.Response {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if authorize {
		req.Header.Set("apikey", "anon-key")
		req.Header.Set("Authorization", "Bearer "+testToken)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
}

func intentBody() UploadIntentRequest {
	return UploadIntentRequest{
		TenantID:  uuid.NewString(),
		ProjectID: uuid.NewString(),
		Document:  obradocs.DocumentInput{Title: "Orcamento eletrica"},
		File: obradocs.FileInput{
			FileName:  "My File/Name.pdf",
			MimeType:  "application/pdf",
			SizeBytes: 1024,
		},
	}
}

func createIntent(t *testing.T, server *httptest.Server) (UploadIntentRequest, UploadIntentResponse) {
	t.Helper()
	req := intentBody()
	resp := doRequest(t, server, "POST", "/api/v1/documents/upload-intent", req, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out UploadIntentResponse
	decodeBody(t, resp, &out)
	return req, out
}

func TestUploadIntent(t *testing.T) {
	server := setupTestServer(t)
	req, out := createIntent(t, server)

	assert.True(t, out.OK)
	require.NotNil(t, out.Document)
	require.NotNil(t, out.File)
	assert.Equal(t, req.TenantID, out.Document.TenantID.String())
	assert.Equal(t, testUserID, out.Document.CreatedBy)

	assert.Equal(t, obradocs.FileStatusPending, out.File.Status)
	assert.Equal(t, "My-File-Name.pdf", out.File.FileName)

	wantKey := fmt.Sprintf("%s/%s/%s/%s/My-File-Name.pdf",
		req.TenantID, req.ProjectID, out.Document.ID, out.File.ID)
	require.NotNil(t, out.File.R2Key)
	assert.Equal(t, wantKey, *out.File.R2Key)

	assert.Equal(t, 900, out.Upload.ExpiresIn)
	assert.Contains(t, out.Upload.URL, "X-Amz-Expires=900")
	assert.Contains(t, out.Upload.URL, "X-Amz-Algorithm=AWS4-HMAC-SHA256")
}

func TestUploadIntent_BadRequests(t *testing.T) {
	server := setupTestServer(t)

	tests := []struct {
		name   string
		mutate func(*UploadIntentRequest)
	}{
		{"malformed tenant id", func(r *UploadIntentRequest) { r.TenantID = "not-a-uuid" }},
		{"malformed project id", func(r *UploadIntentRequest) { r.ProjectID = "" }},
		{"missing title", func(r *UploadIntentRequest) { r.Document.Title = "" }},
		{"missing file name", func(r *UploadIntentRequest) { r.File.FileName = "" }},
		{"missing mime type", func(r *UploadIntentRequest) { r.File.MimeType = "" }},
		{"negative size", func(r *UploadIntentRequest) { r.File.SizeBytes = -5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := intentBody()
			tt.mutate(&req)
			resp := doRequest(t, server, "POST", "/api/v1/documents/upload-intent", req, true)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestAuthorizationGate(t *testing.T) {
	server := setupTestServer(t)

	t.Run("missing apikey", func(t *testing.T) {
		resp := doRequest(t, server, "POST", "/api/v1/documents/upload-intent", intentBody(), false)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		var body ErrorResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "Missing apikey", body.Msg)
	})

	t.Run("bad token", func(t *testing.T) {
		req, err := http.NewRequest("POST", server.URL+"/api/v1/documents/upload-confirm",
			strings.NewReader(`{"document_file_id":"x"}`))
		require.NoError(t, err)
		req.Header.Set("apikey", "anon-key")
		req.Header.Set("Authorization", "Bearer wrong-token")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		var body ErrorResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "Unauthorized", body.Msg)
	})
}

func TestUploadConfirm(t *testing.T) {
	server := setupTestServer(t)
	_, intent := createIntent(t, server)

	confirm := FileIDRequest{DocumentFileID: intent.File.ID.String()}

	resp := doRequest(t, server, "POST", "/api/v1/documents/upload-confirm", confirm, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out ConfirmResponse
	decodeBody(t, resp, &out)
	assert.True(t, out.OK)

	// Confirming twice stays 200 {ok:true}
	resp = doRequest(t, server, "POST", "/api/v1/documents/upload-confirm", confirm, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out = ConfirmResponse{}
	decodeBody(t, resp, &out)
	assert.True(t, out.OK)

	// File is now uploaded with a timestamp
	docResp := doRequest(t, server, "GET", "/api/v1/documents/"+intent.Document.ID.String(), nil, true)
	require.Equal(t, http.StatusOK, docResp.StatusCode)
	var doc obradocs.DocumentWithFiles
	decodeBody(t, docResp, &doc)
	require.Len(t, doc.Files, 1)
	assert.Equal(t, obradocs.FileStatusUploaded, doc.Files[0].Status)
	assert.NotNil(t, doc.Files[0].UploadedAt)
}

func TestUploadConfirm_Failures(t *testing.T) {
	server := setupTestServer(t)

	t.Run("missing id", func(t *testing.T) {
		resp := doRequest(t, server, "POST", "/api/v1/documents/upload-confirm", FileIDRequest{}, true)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unknown id", func(t *testing.T) {
		resp := doRequest(t, server, "POST", "/api/v1/documents/upload-confirm",
			FileIDRequest{DocumentFileID: uuid.NewString()}, true)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	})
}

func TestDownloadLink(t *testing.T) {
	server := setupTestServer(t)
	_, intent := createIntent(t, server)
	request := FileIDRequest{DocumentFileID: intent.File.ID.String()}

	t.Run("pending file returns 400", func(t *testing.T) {
		resp := doRequest(t, server, "POST", "/api/v1/documents/download-link", request, true)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	resp := doRequest(t, server, "POST", "/api/v1/documents/upload-confirm", request, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	t.Run("uploaded file returns signed URL", func(t *testing.T) {
		resp := doRequest(t, server, "POST", "/api/v1/documents/download-link", request, true)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var out DownloadLinkResponse
		decodeBody(t, resp, &out)
		assert.True(t, out.OK)
		assert.Equal(t, 600, out.Download.ExpiresIn)
		assert.Contains(t, out.Download.URL, "X-Amz-Expires=600")
		assert.Contains(t, out.Download.URL, *intent.File.R2Key)
	})

	t.Run("nonexistent file returns 403", func(t *testing.T) {
		resp := doRequest(t, server, "POST", "/api/v1/documents/download-link",
			FileIDRequest{DocumentFileID: uuid.NewString()}, true)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		var body ErrorResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "Forbidden", body.Msg)
	})
}

func TestDownloadLink_OtherUsersFileReturns403(t *testing.T) {
	// Two identities share the server; files created by one are invisible to
	// the other, with the same 403 as a nonexistent id.
	otherToken := "other-token"
	otherUser := uuid.New()

	signer := &sigv4.Signer{
		Endpoint:        "https://acct.r2.cloudflarestorage.com",
		Bucket:          "obradocs",
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "wJalrXUtnFEMI/K7MDENG+bPxRfiCYEXAMPLEKEY",
	}
	svc, err := obradocs.New(
		obradocs.WithRepository(memory.New()),
		obradocs.WithSigner(signer),
		obradocs.WithBucket("obradocs"),
	)
	require.NoError(t, err)

	verifier := auth.VerifierFunc(func(ctx context.Context, token string) (*obradocs.Identity, error) {
		switch token {
		case testToken:
			return &obradocs.Identity{UserID: testUserID}, nil
		case otherToken:
			return &obradocs.Identity{UserID: otherUser}, nil
		}
		return nil, auth.ErrUnauthorized
	})

	r := chi.NewRouter()
	r.Route("/api/v1/documents", func(r chi.Router) {
		r.Use(auth.Middleware(verifier))
		r.Mount("/", NewDocumentsHandler(svc).Routes())
	})
	server := httptest.NewServer(r)
	defer server.Close()

	_, intent := createIntent(t, server)
	confirm := FileIDRequest{DocumentFileID: intent.File.ID.String()}
	resp := doRequest(t, server, "POST", "/api/v1/documents/upload-confirm", confirm, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	payload, err := json.Marshal(confirm)
	require.NoError(t, err)
	req, err := http.NewRequest("POST", server.URL+"/api/v1/documents/download-link", bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", "anon-key")
	req.Header.Set("Authorization", "Bearer "+otherToken)

	otherResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer otherResp.Body.Close()
	assert.Equal(t, http.StatusForbidden, otherResp.StatusCode)
}

func TestListProjectDocuments(t *testing.T) {
	server := setupTestServer(t)
	req, intent := createIntent(t, server)

	resp := doRequest(t, server, "GET", "/api/v1/documents/?project_id="+req.ProjectID, nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []obradocs.DocumentWithFiles
	decodeBody(t, resp, &list)
	require.Len(t, list, 1)
	assert.Equal(t, intent.Document.ID, list[0].Document.ID)

	t.Run("missing project id", func(t *testing.T) {
		resp := doRequest(t, server, "GET", "/api/v1/documents/", nil, true)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}
