package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sciclub-portal/papers-api/internal/models"
)

const fileColumns = `id, paper_id, filename, path, mime_type, size_bytes, source, created_at`

// FileRepository handles uploaded file metadata rows. Blobs live in
// storage; only paths are kept here.
type FileRepository struct {
	db *sqlx.DB
}

// NewFileRepository creates a new file repository.
func NewFileRepository(db *sqlx.DB) *FileRepository {
	return &FileRepository{db: db}
}

// Create inserts a file row outside any paper transaction. Used by the
// statement worker to attach generated documents after the fact.
func (r *FileRepository) Create(ctx context.Context, file *models.UploadedFile) error {
	if file.ID == "" {
		file.ID = uuid.NewString()
	}
	if file.CreatedAt.IsZero() {
		file.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO uploaded_files (` + fileColumns + `) VALUES (:id, :paper_id, :filename, :path, :mime_type, :size_bytes, :source, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, file); err != nil {
		return fmt.Errorf("insert file: %w", err)
	}
	return nil
}

// GetByID returns a file row by identifier.
func (r *FileRepository) GetByID(ctx context.Context, id string) (*models.UploadedFile, error) {
	const query = `SELECT ` + fileColumns + ` FROM uploaded_files WHERE id = $1 LIMIT 1`
	var file models.UploadedFile
	if err := r.db.GetContext(ctx, &file, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get file: %w", err)
	}
	return &file, nil
}

// ListByPaper returns the file rows of a paper in upload order.
func (r *FileRepository) ListByPaper(ctx context.Context, paperID string) ([]models.UploadedFile, error) {
	const query = `SELECT ` + fileColumns + ` FROM uploaded_files WHERE paper_id = $1 ORDER BY created_at`
	var files []models.UploadedFile
	if err := r.db.SelectContext(ctx, &files, query, paperID); err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	return files, nil
}
