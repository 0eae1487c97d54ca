// Package postgres implements the Repository on PostgreSQL via pgx.
//
// Scoped queries filter on created_by, expressing in SQL the row-level access
// rule the service relies on. A row outside the caller's scope and a row that
// does not exist produce the same result on purpose.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/obrahub/obradocs/pkg/obradocs"
)

// DBTX is an interface that allows us to use either a database connection,
// a pool, or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements obradocs.Repository using PostgreSQL
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			if strings.Contains(pgErr.ConstraintName, "document_files") {
				return fmt.Errorf("document file already exists")
			}
			if strings.Contains(pgErr.ConstraintName, "documents") {
				return fmt.Errorf("document already exists")
			}
			return fmt.Errorf("duplicate entry")
		case "23503": // foreign_key_violation
			return fmt.Errorf("referenced record not found")
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

// Document operations

func (r *Repository) CreateDocument(ctx context.Context, document *obradocs.Document) error {
	query := `
		INSERT INTO documents (
			id, tenant_id, project_id, title, description, category, tags,
			issued_on, supplier, expense_id, created_by, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.db.Exec(ctx, query,
		document.ID, document.TenantID, document.ProjectID, document.Title,
		document.Description, document.Category, document.Tags,
		document.IssuedOn, document.Supplier, document.ExpenseID,
		document.CreatedBy, document.CreatedAt)

	if err != nil {
		return r.handlePostgresError("create document", err)
	}

	return nil
}

func (r *Repository) GetDocument(ctx context.Context, scope obradocs.Scope, id uuid.UUID) (*obradocs.Document, error) {
	query := `
		SELECT id, tenant_id, project_id, title, description, category, tags,
		       issued_on, supplier, expense_id, created_by, created_at
		FROM documents WHERE id = $1 AND created_by = $2`

	document, err := scanDocument(r.db.QueryRow(ctx, query, id, scope.UserID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, obradocs.ErrFileNotVisible
		}
		return nil, r.handlePostgresError("get document", err)
	}

	return document, nil
}

func (r *Repository) ListDocumentsByProject(ctx context.Context, scope obradocs.Scope, projectID uuid.UUID) ([]*obradocs.Document, error) {
	query := `
		SELECT id, tenant_id, project_id, title, description, category, tags,
		       issued_on, supplier, expense_id, created_by, created_at
		FROM documents
		WHERE project_id = $1 AND created_by = $2
		ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, projectID, scope.UserID)
	if err != nil {
		return nil, r.handlePostgresError("list documents", err)
	}
	defer rows.Close()

	var documents []*obradocs.Document
	for rows.Next() {
		document, err := scanDocument(rows)
		if err != nil {
			return nil, r.handlePostgresError("scan document", err)
		}
		documents = append(documents, document)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list documents", err)
	}

	return documents, nil
}

func (r *Repository) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("delete document", err)
	}
	if tag.RowsAffected() == 0 {
		return obradocs.ErrDocumentNotFound
	}

	return nil
}

// Document file operations

func (r *Repository) CreateDocumentFile(ctx context.Context, file *obradocs.DocumentFile) error {
	query := `
		INSERT INTO document_files (
			id, tenant_id, project_id, document_id, file_name, mime_type,
			size_bytes, bucket, r2_key, status, uploaded_at, created_by, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.db.Exec(ctx, query,
		file.ID, file.TenantID, file.ProjectID, file.DocumentID,
		file.FileName, file.MimeType, file.SizeBytes, file.Bucket,
		file.R2Key, file.Status, file.UploadedAt, file.CreatedBy, file.CreatedAt)

	if err != nil {
		return r.handlePostgresError("create document file", err)
	}

	return nil
}

func (r *Repository) SetDocumentFileKey(ctx context.Context, id uuid.UUID, key string) error {
	// r2_key IS NULL keeps the key write-once
	query := `UPDATE document_files SET r2_key = $2 WHERE id = $1 AND r2_key IS NULL`

	tag, err := r.db.Exec(ctx, query, id, key)
	if err != nil {
		return r.handlePostgresError("set document file key", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM document_files WHERE id = $1)`, id).Scan(&exists); err != nil {
			return r.handlePostgresError("set document file key", err)
		}
		if exists {
			return fmt.Errorf("storage key already assigned for file %s", id)
		}
		return obradocs.ErrFileNotVisible
	}

	return nil
}

func (r *Repository) GetDocumentFile(ctx context.Context, scope obradocs.Scope, id uuid.UUID) (*obradocs.DocumentFile, error) {
	query := `
		SELECT id, tenant_id, project_id, document_id, file_name, mime_type,
		       size_bytes, bucket, r2_key, status, uploaded_at, created_by, created_at
		FROM document_files WHERE id = $1 AND created_by = $2`

	file, err := scanDocumentFile(r.db.QueryRow(ctx, query, id, scope.UserID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, obradocs.ErrFileNotVisible
		}
		return nil, r.handlePostgresError("get document file", err)
	}

	return file, nil
}

func (r *Repository) ListDocumentFiles(ctx context.Context, scope obradocs.Scope, documentID uuid.UUID) ([]*obradocs.DocumentFile, error) {
	query := `
		SELECT id, tenant_id, project_id, document_id, file_name, mime_type,
		       size_bytes, bucket, r2_key, status, uploaded_at, created_by, created_at
		FROM document_files
		WHERE document_id = $1 AND created_by = $2
		ORDER BY created_at ASC`

	rows, err := r.db.Query(ctx, query, documentID, scope.UserID)
	if err != nil {
		return nil, r.handlePostgresError("list document files", err)
	}
	defer rows.Close()

	var files []*obradocs.DocumentFile
	for rows.Next() {
		file, err := scanDocumentFile(rows)
		if err != nil {
			return nil, r.handlePostgresError("scan document file", err)
		}
		files = append(files, file)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list document files", err)
	}

	return files, nil
}

func (r *Repository) MarkDocumentFileUploaded(ctx context.Context, scope obradocs.Scope, id uuid.UUID, uploadedAt time.Time) error {
	// Conditional on the current status so a duplicate confirmation is
	// reported instead of silently re-applied.
	query := `
		UPDATE document_files SET status = $3, uploaded_at = $4
		WHERE id = $1 AND created_by = $2 AND status = $5`

	tag, err := r.db.Exec(ctx, query, id, scope.UserID, obradocs.FileStatusUploaded, uploadedAt, obradocs.FileStatusPending)
	if err != nil {
		return r.handlePostgresError("mark document file uploaded", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Distinguish an already-confirmed row from one the caller cannot see.
	var status obradocs.FileStatus
	err = r.db.QueryRow(ctx,
		`SELECT status FROM document_files WHERE id = $1 AND created_by = $2`,
		id, scope.UserID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return obradocs.ErrFileNotVisible
		}
		return r.handlePostgresError("mark document file uploaded", err)
	}
	if status == obradocs.FileStatusUploaded {
		return obradocs.ErrAlreadyUploaded
	}

	return fmt.Errorf("document file %s in unexpected status %q", id, status)
}

func scanDocument(row pgx.Row) (*obradocs.Document, error) {
	var document obradocs.Document
	err := row.Scan(
		&document.ID, &document.TenantID, &document.ProjectID, &document.Title,
		&document.Description, &document.Category, &document.Tags,
		&document.IssuedOn, &document.Supplier, &document.ExpenseID,
		&document.CreatedBy, &document.CreatedAt)
	if err != nil {
		return nil, err
	}
	if document.Tags == nil {
		document.Tags = []string{}
	}
	return &document, nil
}

func scanDocumentFile(row pgx.Row) (*obradocs.DocumentFile, error) {
	var file obradocs.DocumentFile
	err := row.Scan(
		&file.ID, &file.TenantID, &file.ProjectID, &file.DocumentID,
		&file.FileName, &file.MimeType, &file.SizeBytes, &file.Bucket,
		&file.R2Key, &file.Status, &file.UploadedAt, &file.CreatedBy, &file.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &file, nil
}
