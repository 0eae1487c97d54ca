package obradocs

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error types
var (
	// ErrDocumentNotFound indicates a document was not found
	ErrDocumentNotFound = errors.New("document not found")

	// ErrFileNotVisible indicates a document file is absent or not accessible
	// to the caller. The two cases are deliberately indistinguishable so the
	// API never leaks whether a given id exists.
	ErrFileNotVisible = errors.New("document file not accessible")

	// ErrFileNotReady indicates a file has no storage key yet or has not been
	// uploaded, so no download link can be issued
	ErrFileNotReady = errors.New("file not available for download")

	// ErrAlreadyUploaded indicates a confirmation was re-applied to a file
	// that already left the pending state
	ErrAlreadyUploaded = errors.New("file already confirmed as uploaded")

	// ErrInvalidRequest indicates client input failed validation
	ErrInvalidRequest = errors.New("invalid request")
)

// DocumentError represents an error related to document operations
type DocumentError struct {
	DocumentID uuid.UUID
	Op         string
	Err        error
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("document operation %s failed for document %s: %v", e.Op, e.DocumentID, e.Err)
}

func (e *DocumentError) Unwrap() error {
	return e.Err
}

// FileError represents an error related to document file operations
type FileError struct {
	FileID uuid.UUID
	Op     string
	Err    error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("file operation %s failed for file %s: %v", e.Op, e.FileID, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// ValidationError carries a human-readable message for a rejected request
// body. It wraps ErrInvalidRequest so handlers can map it to a 400 without
// inspecting the message.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidRequest
}
