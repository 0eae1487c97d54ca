package obradocs

import (
	"time"

	"github.com/google/uuid"
)

// FileStatus is the domain type for document file lifecycle states.
type FileStatus string

// File status constants (typed).
const (
	FileStatusPending  FileStatus = "pending"
	FileStatusUploaded FileStatus = "uploaded"
)

// Document is a logical document registered by a user within a tenant/project
// scope. It is created together with its first DocumentFile and never mutated
// afterwards by this service.
type Document struct {
	ID          uuid.UUID  `json:"id"`
	TenantID    uuid.UUID  `json:"tenant_id"`
	ProjectID   uuid.UUID  `json:"project_id"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Category    *string    `json:"category"`
	Tags        []string   `json:"tags"`
	IssuedOn    *string    `json:"issued_on"`
	Supplier    *string    `json:"supplier"`
	ExpenseID   *uuid.UUID `json:"expense_id"`
	CreatedBy   uuid.UUID  `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
}

// DocumentFile is one physical file attached to a Document, tracked through
// the two-phase upload lifecycle.
//
// R2Key is nil only between row creation and key assignment; once set it is
// immutable. Status only ever moves pending -> uploaded.
type DocumentFile struct {
	ID         uuid.UUID  `json:"id"`
	TenantID   uuid.UUID  `json:"tenant_id"`
	ProjectID  uuid.UUID  `json:"project_id"`
	DocumentID uuid.UUID  `json:"document_id"`
	FileName   string     `json:"file_name"`
	MimeType   string     `json:"mime_type"`
	SizeBytes  int64      `json:"size_bytes"`
	Bucket     string     `json:"bucket"`
	R2Key      *string    `json:"r2_key"`
	Status     FileStatus `json:"status"`
	UploadedAt *time.Time `json:"uploaded_at"`
	CreatedBy  uuid.UUID  `json:"created_by"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Identity is the authenticated caller as reported by the identity provider.
// Token is the caller's bearer token, kept so downstream collaborators can act
// with the caller's privileges rather than the service's.
type Identity struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email,omitempty"`
	Token  string    `json:"-"`
}

// Scope restricts repository reads and guarded updates to rows the caller may
// touch. It stands in for the row-level access rules the backing store
// enforces when queried with the caller's own credentials.
type Scope struct {
	UserID uuid.UUID
}

// ScopeFor derives the repository scope for an authenticated caller.
func ScopeFor(id Identity) Scope {
	return Scope{UserID: id.UserID}
}

// UploadIntent is the result of registering a document for upload: the created
// rows plus a signed PUT URL the client uploads the bytes to.
type UploadIntent struct {
	Document  *Document     `json:"document"`
	File      *DocumentFile `json:"document_file"`
	URL       string        `json:"url"`
	ExpiresIn int           `json:"expires_in"`
}

// DownloadLink is a signed GET URL for an uploaded file.
type DownloadLink struct {
	URL       string `json:"url"`
	ExpiresIn int    `json:"expires_in"`
}

// DocumentWithFiles bundles a document with its files for read endpoints.
type DocumentWithFiles struct {
	Document *Document       `json:"document"`
	Files    []*DocumentFile `json:"files"`
}
