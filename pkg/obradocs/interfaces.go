package obradocs

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for document and document file persistence.
//
// Reads and guarded updates take a Scope: implementations must only see rows
// the scoped caller created, mirroring the row-level access rules a backing
// store enforces when queried with the caller's own credentials. Absent and
// not-visible rows are reported identically as ErrFileNotVisible.
type Repository interface {
	// Document operations
	CreateDocument(ctx context.Context, document *Document) error
	GetDocument(ctx context.Context, scope Scope, id uuid.UUID) (*Document, error)
	ListDocumentsByProject(ctx context.Context, scope Scope, projectID uuid.UUID) ([]*Document, error)
	// DeleteDocument removes a document row. Used only to compensate a failed
	// upload registration; there is no client-facing delete flow.
	DeleteDocument(ctx context.Context, id uuid.UUID) error

	// Document file operations
	CreateDocumentFile(ctx context.Context, file *DocumentFile) error
	// SetDocumentFileKey assigns the storage key once, right after row
	// creation. The key is immutable afterwards.
	SetDocumentFileKey(ctx context.Context, id uuid.UUID, key string) error
	GetDocumentFile(ctx context.Context, scope Scope, id uuid.UUID) (*DocumentFile, error)
	ListDocumentFiles(ctx context.Context, scope Scope, documentID uuid.UUID) ([]*DocumentFile, error)
	// MarkDocumentFileUploaded transitions a file from pending to uploaded.
	// The update is conditional on the current status: a row that already
	// left pending yields ErrAlreadyUploaded instead of silently re-applying.
	MarkDocumentFileUploaded(ctx context.Context, scope Scope, id uuid.UUID, uploadedAt time.Time) error
}

// URLSigner produces presigned URLs scoped to a single object key. Satisfied
// by sigv4.Signer.
type URLSigner interface {
	SignPut(key string, expiresIn int, contentType string) (string, error)
	SignGet(key string, expiresIn int) (string, error)
}

// ObjectStore performs server-side operations against the object store. The
// upload path itself never touches it (clients PUT straight to storage); it
// covers verification and cleanup.
type ObjectStore interface {
	StatObject(ctx context.Context, key string) (*ObjectStat, error)
	Upload(ctx context.Context, key, mimeType string, reader io.Reader) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// ObjectStat contains metadata about an object in storage.
type ObjectStat struct {
	Key         string
	Size        int64
	ContentType string
	ETag        string
	UpdatedAt   time.Time
}
