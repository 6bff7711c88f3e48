package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/daonbank/kcs/kcs-backend/internal/domain"
)

// AppealDocumentRepository implements domain.AppealDocumentRepository using PostgreSQL
type AppealDocumentRepository struct {
	pool *pgxpool.Pool
}

// NewAppealDocumentRepository creates a new AppealDocumentRepository
func NewAppealDocumentRepository(pool *pgxpool.Pool) *AppealDocumentRepository {
	return &AppealDocumentRepository{pool: pool}
}

const documentColumns = `
	id, application_id, file_name, object_path, content_type, size_bytes,
	uploaded_by, created_at`

// Create inserts one document row.
func (r *AppealDocumentRepository) Create(ctx context.Context, doc *domain.AppealDocument) (*domain.AppealDocument, error) {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	doc.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO appeal_documents (` + documentColumns + `
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`
	_, err := r.pool.Exec(ctx, query,
		doc.ID, doc.ApplicationID, doc.FileName, doc.ObjectPath,
		doc.ContentType, doc.SizeBytes, doc.UploadedBy, doc.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert appeal document: %w", err)
	}
	return doc, nil
}

// GetByID retrieves one document row.
func (r *AppealDocumentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.AppealDocument, error) {
	query := `SELECT ` + documentColumns + ` FROM appeal_documents WHERE id = $1`
	row := r.pool.QueryRow(ctx, query, id)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return doc, nil
}

// ListByApplicationID returns the documents of one application, oldest
// first.
func (r *AppealDocumentRepository) ListByApplicationID(ctx context.Context, applicationID uuid.UUID) ([]*domain.AppealDocument, error) {
	query := `
		SELECT ` + documentColumns + `
		FROM appeal_documents
		WHERE application_id = $1
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, applicationID)
	if err != nil {
		return nil, fmt.Errorf("query appeal documents: %w", err)
	}
	defer rows.Close()

	var result []*domain.AppealDocument
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, doc)
	}
	return result, rows.Err()
}

// Delete removes one document row.
func (r *AppealDocumentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM appeal_documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete appeal document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanDocument(s scannable) (*domain.AppealDocument, error) {
	var d domain.AppealDocument
	err := s.Scan(
		&d.ID, &d.ApplicationID, &d.FileName, &d.ObjectPath,
		&d.ContentType, &d.SizeBytes, &d.UploadedBy, &d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
