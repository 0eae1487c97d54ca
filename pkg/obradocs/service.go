package obradocs

import (
	"context"

	"github.com/google/uuid"
)

// URL time-to-live, in seconds.
const (
	PutURLTTL = 900
	GetURLTTL = 600
)

// Service defines the signed upload/download operations of the document core.
// Every operation acts on behalf of an already-authenticated Identity.
type Service interface {
	// CreateUpload registers a document plus a pending file and returns a
	// signed PUT URL the client uploads the bytes to.
	CreateUpload(ctx context.Context, identity Identity, req CreateUploadRequest) (*UploadIntent, error)

	// ConfirmUpload transitions a file from pending to uploaded after the
	// client finished its PUT. Re-confirming an uploaded file returns
	// ErrAlreadyUploaded.
	ConfirmUpload(ctx context.Context, identity Identity, fileID uuid.UUID) error

	// DownloadLink returns a signed GET URL for an uploaded file.
	DownloadLink(ctx context.Context, identity Identity, fileID uuid.UUID) (*DownloadLink, error)

	// GetDocument returns a document with its files.
	GetDocument(ctx context.Context, identity Identity, documentID uuid.UUID) (*DocumentWithFiles, error)

	// ListProjectDocuments returns the caller's documents within a project.
	ListProjectDocuments(ctx context.Context, identity Identity, projectID uuid.UUID) ([]*DocumentWithFiles, error)
}
