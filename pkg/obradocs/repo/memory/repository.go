// Package memory provides an in-memory Repository for tests and local
// development. Visibility follows the same creator rule the production store
// enforces through row-level access policies.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/obrahub/obradocs/pkg/obradocs"
)

// Repository implements obradocs.Repository using in-memory storage
type Repository struct {
	mu        sync.RWMutex
	documents map[uuid.UUID]*obradocs.Document
	files     map[uuid.UUID]*obradocs.DocumentFile
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		documents: make(map[uuid.UUID]*obradocs.Document),
		files:     make(map[uuid.UUID]*obradocs.DocumentFile),
	}
}

// Document operations

func (r *Repository) CreateDocument(ctx context.Context, document *obradocs.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Store a copy to avoid external modifications
	documentCopy := *document
	r.documents[document.ID] = &documentCopy

	return nil
}

func (r *Repository) GetDocument(ctx context.Context, scope obradocs.Scope, id uuid.UUID) (*obradocs.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	document, exists := r.documents[id]
	if !exists || document.CreatedBy != scope.UserID {
		return nil, obradocs.ErrFileNotVisible
	}

	documentCopy := *document
	return &documentCopy, nil
}

func (r *Repository) ListDocumentsByProject(ctx context.Context, scope obradocs.Scope, projectID uuid.UUID) ([]*obradocs.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*obradocs.Document
	for _, document := range r.documents {
		if document.ProjectID == projectID && document.CreatedBy == scope.UserID {
			documentCopy := *document
			result = append(result, &documentCopy)
		}
	}

	// Newest first
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}

func (r *Repository) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.documents[id]; !exists {
		return obradocs.ErrDocumentNotFound
	}
	delete(r.documents, id)

	return nil
}

// Document file operations

func (r *Repository) CreateDocumentFile(ctx context.Context, file *obradocs.DocumentFile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	fileCopy := *file
	r.files[file.ID] = &fileCopy

	return nil
}

func (r *Repository) SetDocumentFileKey(ctx context.Context, id uuid.UUID, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	file, exists := r.files[id]
	if !exists {
		return obradocs.ErrFileNotVisible
	}
	if file.R2Key != nil {
		return fmt.Errorf("storage key already assigned for file %s", id)
	}

	file.R2Key = &key

	return nil
}

func (r *Repository) GetDocumentFile(ctx context.Context, scope obradocs.Scope, id uuid.UUID) (*obradocs.DocumentFile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	file, exists := r.files[id]
	if !exists || file.CreatedBy != scope.UserID {
		return nil, obradocs.ErrFileNotVisible
	}

	fileCopy := *file
	return &fileCopy, nil
}

func (r *Repository) ListDocumentFiles(ctx context.Context, scope obradocs.Scope, documentID uuid.UUID) ([]*obradocs.DocumentFile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*obradocs.DocumentFile
	for _, file := range r.files {
		if file.DocumentID == documentID && file.CreatedBy == scope.UserID {
			fileCopy := *file
			result = append(result, &fileCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return result, nil
}

func (r *Repository) MarkDocumentFileUploaded(ctx context.Context, scope obradocs.Scope, id uuid.UUID, uploadedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	file, exists := r.files[id]
	if !exists || file.CreatedBy != scope.UserID {
		return obradocs.ErrFileNotVisible
	}
	if file.Status == obradocs.FileStatusUploaded {
		return obradocs.ErrAlreadyUploaded
	}

	file.Status = obradocs.FileStatusUploaded
	at := uploadedAt
	file.UploadedAt = &at

	return nil
}
