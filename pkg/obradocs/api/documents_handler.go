package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/obrahub/obradocs/pkg/obradocs"
	"github.com/obrahub/obradocs/pkg/obradocs/auth"
)

// UploadIntentRequest is the request body for registering an upload.
type UploadIntentRequest struct {
	TenantID  string                 `json:"tenant_id"`
	ProjectID string                 `json:"project_id"`
	Document  obradocs.DocumentInput `json:"document"`
	File      obradocs.FileInput     `json:"file"`
}

// FileIDRequest is the request body for the confirm and download endpoints.
type FileIDRequest struct {
	DocumentFileID string `json:"document_file_id"`
}

// UploadPayload carries a presigned URL and its lifetime in seconds.
type UploadPayload struct {
	URL       string `json:"url"`
	ExpiresIn int    `json:"expires_in"`
}

// UploadIntentResponse is the success body for a registered upload.
type UploadIntentResponse struct {
	OK       bool                   `json:"ok"`
	Document *obradocs.Document     `json:"document"`
	File     *obradocs.DocumentFile `json:"document_file"`
	Upload   UploadPayload          `json:"upload"`
}

// ConfirmResponse acknowledges a confirmed upload.
type ConfirmResponse struct {
	OK bool `json:"ok"`
}

// DownloadLinkResponse is the success body for a download link.
type DownloadLinkResponse struct {
	OK       bool          `json:"ok"`
	Download UploadPayload `json:"download"`
}

// ErrorResponse is the error body shape shared with the authorization gate.
type ErrorResponse struct {
	Msg string `json:"msg"`
}

// DocumentsHandler handles HTTP requests for document uploads and downloads.
type DocumentsHandler struct {
	service obradocs.Service
}

// NewDocumentsHandler creates a new documents handler.
func NewDocumentsHandler(service obradocs.Service) *DocumentsHandler {
	return &DocumentsHandler{service: service}
}

// Routes returns the routes for documents. The caller mounts them behind the
// authorization gate; every handler assumes an identity is present.
func (h *DocumentsHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/upload-intent", h.UploadIntent)
	r.Post("/upload-confirm", h.UploadConfirm)
	r.Post("/download-link", h.DownloadLink)

	r.Get("/{id}", h.GetDocument)
	r.Get("/", h.ListProjectDocuments)

	return r
}

// UploadIntent registers a document and returns a presigned PUT URL.
func (h *DocumentsHandler) UploadIntent(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req UploadIntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	tenantID, err := uuid.Parse(req.TenantID)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid tenant ID")
		return
	}
	projectID, err := uuid.Parse(req.ProjectID)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid project ID")
		return
	}

	intent, err := h.service.CreateUpload(r.Context(), identity, obradocs.CreateUploadRequest{
		TenantID:  tenantID,
		ProjectID: projectID,
		Document:  req.Document,
		File:      req.File,
	})
	if err != nil {
		h.renderServiceError(w, r, "upload-intent", err)
		return
	}

	render.JSON(w, r, UploadIntentResponse{
		OK:       true,
		Document: intent.Document,
		File:     intent.File,
		Upload:   UploadPayload{URL: intent.URL, ExpiresIn: intent.ExpiresIn},
	})
}

// UploadConfirm marks a pending file as uploaded. Confirming a file that is
// already uploaded succeeds again without re-applying the transition.
func (h *DocumentsHandler) UploadConfirm(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req FileIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	fileID, err := uuid.Parse(req.DocumentFileID)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid document file ID")
		return
	}

	if err := h.service.ConfirmUpload(r.Context(), identity, fileID); err != nil {
		if errors.Is(err, obradocs.ErrAlreadyUploaded) {
			render.JSON(w, r, ConfirmResponse{OK: true})
			return
		}
		// Confirmation reports every update failure the same way, including
		// rows the caller cannot see.
		slog.Error("request failed", "op", "upload-confirm", "err", err)
		writeError(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}

	render.JSON(w, r, ConfirmResponse{OK: true})
}

// DownloadLink returns a presigned GET URL for an uploaded file.
func (h *DocumentsHandler) DownloadLink(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req FileIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	fileID, err := uuid.Parse(req.DocumentFileID)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid document file ID")
		return
	}

	link, err := h.service.DownloadLink(r.Context(), identity, fileID)
	if err != nil {
		h.renderServiceError(w, r, "download-link", err)
		return
	}

	render.JSON(w, r, DownloadLinkResponse{
		OK:       true,
		Download: UploadPayload{URL: link.URL, ExpiresIn: link.ExpiresIn},
	})
}

// GetDocument returns a document with its files.
func (h *DocumentsHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "Unauthorized")
		return
	}

	documentID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid document ID")
		return
	}

	document, err := h.service.GetDocument(r.Context(), identity, documentID)
	if err != nil {
		h.renderServiceError(w, r, "get-document", err)
		return
	}

	render.JSON(w, r, document)
}

// ListProjectDocuments returns the caller's documents for a project, newest
// first.
func (h *DocumentsHandler) ListProjectDocuments(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "Unauthorized")
		return
	}

	projectID, err := uuid.Parse(r.URL.Query().Get("project_id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid project ID")
		return
	}

	documents, err := h.service.ListProjectDocuments(r.Context(), identity, projectID)
	if err != nil {
		h.renderServiceError(w, r, "list-documents", err)
		return
	}

	render.JSON(w, r, documents)
}

// renderServiceError maps service errors onto HTTP responses.
//
// Absent and not-visible files both surface as 403 with the same generic
// message: the service cannot tell them apart, and collapsing them avoids
// leaking which file IDs exist.
func (h *DocumentsHandler) renderServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var validation *obradocs.ValidationError
	switch {
	case errors.As(err, &validation):
		writeError(w, r, http.StatusBadRequest, validation.Error())
	case errors.Is(err, obradocs.ErrInvalidRequest):
		writeError(w, r, http.StatusBadRequest, "Invalid request")
	case errors.Is(err, obradocs.ErrFileNotReady):
		writeError(w, r, http.StatusBadRequest, "File is not ready for download")
	case errors.Is(err, obradocs.ErrFileNotVisible), errors.Is(err, obradocs.ErrDocumentNotFound):
		writeError(w, r, http.StatusForbidden, "Forbidden")
	default:
		slog.Error("request failed", "op", op, "err", err)
		writeError(w, r, http.StatusInternalServerError, "Internal server error")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Msg: msg})
}
