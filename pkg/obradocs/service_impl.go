package obradocs

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/obrahub/obradocs/pkg/obradocs/objectkey"
)

// service implements the Service interface
type service struct {
	repository  Repository
	signer      URLSigner
	bucket      string
	objectStore ObjectStore
	compensate  bool
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the repository for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithSigner sets the presigned-URL signer for the service
func WithSigner(signer URLSigner) Option {
	return func(s *service) {
		s.signer = signer
	}
}

// WithBucket sets the bucket name recorded on document files
func WithBucket(bucket string) Option {
	return func(s *service) {
		s.bucket = bucket
	}
}

// WithObjectStore enables confirm-time verification of the uploaded object
// against the store. Without it, confirmation trusts the client.
func WithObjectStore(store ObjectStore) Option {
	return func(s *service) {
		s.objectStore = store
	}
}

// WithCompensation makes a failed upload registration delete the document row
// it already inserted, instead of leaving it orphaned.
func WithCompensation() Option {
	return func(s *service) {
		s.compensate = true
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.signer == nil {
		return nil, fmt.Errorf("signer is required")
	}
	if s.bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	return s, nil
}

func (s *service) CreateUpload(ctx context.Context, identity Identity, req CreateUploadRequest) (*UploadIntent, error) {
	if err := validateCreateUpload(&req); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	document := &Document{
		ID:          uuid.New(),
		TenantID:    req.TenantID,
		ProjectID:   req.ProjectID,
		Title:       strings.TrimSpace(req.Document.Title),
		Description: req.Document.Description,
		Category:    req.Document.Category,
		Tags:        req.Document.Tags,
		IssuedOn:    req.Document.IssuedOn,
		Supplier:    req.Document.Supplier,
		ExpenseID:   req.Document.ExpenseID,
		CreatedBy:   identity.UserID,
		CreatedAt:   now,
	}
	if document.Tags == nil {
		document.Tags = []string{}
	}

	if err := s.repository.CreateDocument(ctx, document); err != nil {
		return nil, &DocumentError{DocumentID: document.ID, Op: "create", Err: err}
	}

	file := &DocumentFile{
		ID:         uuid.New(),
		TenantID:   req.TenantID,
		ProjectID:  req.ProjectID,
		DocumentID: document.ID,
		FileName:   objectkey.SanitizeFileName(strings.TrimSpace(req.File.FileName)),
		MimeType:   strings.TrimSpace(req.File.MimeType),
		SizeBytes:  req.File.SizeBytes,
		Bucket:     s.bucket,
		Status:     FileStatusPending,
		CreatedBy:  identity.UserID,
		CreatedAt:  now,
	}

	if err := s.repository.CreateDocumentFile(ctx, file); err != nil {
		s.compensateDocument(ctx, document.ID)
		return nil, &FileError{FileID: file.ID, Op: "create", Err: err}
	}

	key := objectkey.ForDocumentFile(req.TenantID, req.ProjectID, document.ID, file.ID, file.FileName)
	if err := s.repository.SetDocumentFileKey(ctx, file.ID, key); err != nil {
		s.compensateDocument(ctx, document.ID)
		return nil, &FileError{FileID: file.ID, Op: "assign_key", Err: err}
	}
	file.R2Key = &key

	url, err := s.signer.SignPut(key, PutURLTTL, file.MimeType)
	if err != nil {
		return nil, &FileError{FileID: file.ID, Op: "sign_put", Err: err}
	}

	return &UploadIntent{
		Document:  document,
		File:      file,
		URL:       url,
		ExpiresIn: PutURLTTL,
	}, nil
}

func (s *service) ConfirmUpload(ctx context.Context, identity Identity, fileID uuid.UUID) error {
	scope := ScopeFor(identity)

	if s.objectStore != nil {
		s.verifyUploadedObject(ctx, scope, fileID)
	}

	now := time.Now().UTC()
	if err := s.repository.MarkDocumentFileUploaded(ctx, scope, fileID, now); err != nil {
		return err
	}
	return nil
}

// verifyUploadedObject cross-checks the stored object against the metadata
// row. Discrepancies are logged, not fatal: the status transition stays the
// single source of truth and the check never blocks a confirmation.
func (s *service) verifyUploadedObject(ctx context.Context, scope Scope, fileID uuid.UUID) {
	file, err := s.repository.GetDocumentFile(ctx, scope, fileID)
	if err != nil || file.R2Key == nil {
		return
	}

	stat, err := s.objectStore.StatObject(ctx, *file.R2Key)
	if err != nil {
		slog.Warn("confirm: object missing from storage", "file_id", fileID, "key", *file.R2Key, "err", err)
		return
	}
	if stat.Size != file.SizeBytes {
		slog.Warn("confirm: object size differs from declared size",
			"file_id", fileID, "declared", file.SizeBytes, "actual", stat.Size)
	}
}

func (s *service) DownloadLink(ctx context.Context, identity Identity, fileID uuid.UUID) (*DownloadLink, error) {
	file, err := s.repository.GetDocumentFile(ctx, ScopeFor(identity), fileID)
	if err != nil {
		return nil, err
	}

	if file.R2Key == nil || file.Status != FileStatusUploaded {
		return nil, ErrFileNotReady
	}

	url, err := s.signer.SignGet(*file.R2Key, GetURLTTL)
	if err != nil {
		return nil, &FileError{FileID: fileID, Op: "sign_get", Err: err}
	}

	return &DownloadLink{URL: url, ExpiresIn: GetURLTTL}, nil
}

func (s *service) GetDocument(ctx context.Context, identity Identity, documentID uuid.UUID) (*DocumentWithFiles, error) {
	scope := ScopeFor(identity)

	document, err := s.repository.GetDocument(ctx, scope, documentID)
	if err != nil {
		return nil, err
	}

	files, err := s.repository.ListDocumentFiles(ctx, scope, documentID)
	if err != nil {
		return nil, &DocumentError{DocumentID: documentID, Op: "list_files", Err: err}
	}

	return &DocumentWithFiles{Document: document, Files: files}, nil
}

func (s *service) ListProjectDocuments(ctx context.Context, identity Identity, projectID uuid.UUID) ([]*DocumentWithFiles, error) {
	scope := ScopeFor(identity)

	documents, err := s.repository.ListDocumentsByProject(ctx, scope, projectID)
	if err != nil {
		return nil, fmt.Errorf("list documents for project %s: %w", projectID, err)
	}

	result := make([]*DocumentWithFiles, 0, len(documents))
	for _, document := range documents {
		files, err := s.repository.ListDocumentFiles(ctx, scope, document.ID)
		if err != nil {
			return nil, &DocumentError{DocumentID: document.ID, Op: "list_files", Err: err}
		}
		result = append(result, &DocumentWithFiles{Document: document, Files: files})
	}

	return result, nil
}

// compensateDocument best-effort deletes a document whose file registration
// failed partway. Only active when the service was built WithCompensation;
// the failure that triggered it is still returned to the caller either way.
func (s *service) compensateDocument(ctx context.Context, documentID uuid.UUID) {
	if !s.compensate {
		return
	}
	if err := s.repository.DeleteDocument(ctx, documentID); err != nil {
		slog.Error("failed to compensate orphaned document", "document_id", documentID, "err", err)
	}
}

func validateCreateUpload(req *CreateUploadRequest) error {
	if req.TenantID == uuid.Nil {
		return &ValidationError{Field: "tenant_id", Msg: "is required"}
	}
	if req.ProjectID == uuid.Nil {
		return &ValidationError{Field: "project_id", Msg: "is required"}
	}
	if strings.TrimSpace(req.Document.Title) == "" {
		return &ValidationError{Field: "document.title", Msg: "is required"}
	}
	if strings.TrimSpace(req.File.FileName) == "" {
		return &ValidationError{Field: "file.file_name", Msg: "must not be empty"}
	}
	if strings.TrimSpace(req.File.MimeType) == "" {
		return &ValidationError{Field: "file.mime_type", Msg: "must not be empty"}
	}
	if req.File.SizeBytes < 0 {
		return &ValidationError{Field: "file.size_bytes", Msg: "must be zero or positive"}
	}
	return nil
}
