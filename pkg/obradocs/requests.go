package obradocs

import "github.com/google/uuid"

// Request DTOs

// DocumentInput carries the document metadata supplied by the client when
// registering an upload. Optional free-text fields stay nil when absent.
type DocumentInput struct {
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Category    *string    `json:"category"`
	Tags        []string   `json:"tags"`
	IssuedOn    *string    `json:"issued_on"`
	Supplier    *string    `json:"supplier"`
	ExpenseID   *uuid.UUID `json:"expense_id"`
}

// FileInput describes the file the client intends to upload.
type FileInput struct {
	FileName  string `json:"file_name"`
	MimeType  string `json:"mime_type"`
	SizeBytes int64  `json:"size_bytes"`
}

// CreateUploadRequest contains parameters for registering a document upload
type CreateUploadRequest struct {
	TenantID  uuid.UUID
	ProjectID uuid.UUID
	Document  DocumentInput
	File      FileInput
}
