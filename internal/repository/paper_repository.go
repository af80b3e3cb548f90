package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sciclub-portal/papers-api/internal/models"
)

// PaperRepository handles paper persistence including the dependent
// co-author and attachment collections.
type PaperRepository struct {
	db *sqlx.DB
}

// NewPaperRepository creates a new paper repository.
func NewPaperRepository(db *sqlx.DB) *PaperRepository {
	return &PaperRepository{db: db}
}

const paperSelect = `SELECT p.id, p.title, p.club_id, p.keywords, p.description, p.approved, p.author_id, p.statement_file_id, p.created_at, p.updated_at,
        c.name AS club_name, u.first_name || ' ' || u.last_name AS author_name
        FROM papers p
        JOIN student_clubs c ON c.id = p.club_id
        JOIN users u ON u.id = p.author_id`

// GetByID returns a paper with its co-authors, files and reviewer ids loaded.
func (r *PaperRepository) GetByID(ctx context.Context, id string) (*models.Paper, error) {
	query := paperSelect + ` WHERE p.id = $1 LIMIT 1`
	var paper models.Paper
	if err := r.db.GetContext(ctx, &paper, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get paper: %w", err)
	}

	coAuthors, err := r.ListCoAuthors(ctx, id)
	if err != nil {
		return nil, err
	}
	paper.CoAuthors = coAuthors

	files, err := r.listFiles(ctx, id)
	if err != nil {
		return nil, err
	}
	paper.Files = files

	reviewerIDs, err := r.ListReviewerIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	paper.ReviewerIDs = reviewerIDs

	return &paper, nil
}

// List returns papers matching the filter ordered by update time descending,
// together with the total count.
func (r *PaperRepository) List(ctx context.Context, filter models.PaperFilter) ([]models.Paper, int, error) {
	baseQuery := ` FROM papers p
        JOIN student_clubs c ON c.id = p.club_id
        JOIN users u ON u.id = p.author_id
        WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.AuthorID != "" {
		conditions = append(conditions, fmt.Sprintf("p.author_id = $%d", len(args)+1))
		args = append(args, filter.AuthorID)
	}
	if filter.ReviewerID != "" {
		conditions = append(conditions, fmt.Sprintf("p.id IN (SELECT paper_id FROM paper_reviewers WHERE reviewer_id = $%d)", len(args)+1))
		args = append(args, filter.ReviewerID)
	}
	if filter.ClubID != "" {
		conditions = append(conditions, fmt.Sprintf("p.club_id = $%d", len(args)+1))
		args = append(args, filter.ClubID)
	}
	if filter.Approved != nil {
		conditions = append(conditions, fmt.Sprintf("p.approved = $%d", len(args)+1))
		args = append(args, *filter.Approved)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(p.title) LIKE $%d OR LOWER(p.keywords) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 5
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf(`SELECT p.id, p.title, p.club_id, p.keywords, p.description, p.approved, p.author_id, p.statement_file_id, p.created_at, p.updated_at,
        c.name AS club_name, u.first_name || ' ' || u.last_name AS author_name%s ORDER BY p.updated_at DESC LIMIT %d OFFSET %d`, baseQuery, pageSize, offset)

	var papers []models.Paper
	if err := r.db.SelectContext(ctx, &papers, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list papers: %w", err)
	}

	countQuery := "SELECT COUNT(*)" + baseQuery
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count papers: %w", err)
	}

	return papers, total, nil
}

// CreateWithRelations persists the paper, its co-authors, the required
// statement upload and any additional attachments as one transaction.
// Either everything commits or nothing does.
func (r *PaperRepository) CreateWithRelations(ctx context.Context, paper *models.Paper, coAuthors []models.CoAuthor, statement *models.UploadedFile, attachments []models.UploadedFile) error {
	if paper.ID == "" {
		paper.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	paper.CreatedAt = now
	paper.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin paper create: %w", err)
	}

	const insertPaper = `INSERT INTO papers (id, title, club_id, keywords, description, approved, author_id, statement_file_id, created_at, updated_at)
        VALUES (:id, :title, :club_id, :keywords, :description, :approved, :author_id, NULL, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insertPaper, paper); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("insert paper: %w", err)
	}

	if err := insertCoAuthors(ctx, tx, paper.ID, coAuthors); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}

	if statement != nil {
		statement.PaperID = paper.ID
		if err := insertFile(ctx, tx, statement); err != nil {
			tx.Rollback() //nolint:errcheck
			return err
		}
		const markStatement = `UPDATE papers SET statement_file_id = $2 WHERE id = $1`
		if _, err := tx.ExecContext(ctx, markStatement, paper.ID, statement.ID); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("mark statement file: %w", err)
		}
		paper.StatementFileID = &statement.ID
	}

	for i := range attachments {
		attachments[i].PaperID = paper.ID
		if err := insertFile(ctx, tx, &attachments[i]); err != nil {
			tx.Rollback() //nolint:errcheck
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit paper create: %w", err)
	}
	paper.CoAuthors = coAuthors
	return nil
}

// UpdateWithRelations applies an edit as one transaction: requested file
// deletions, the paper field update, total replacement of the co-author set
// and appending newly uploaded attachments. It returns the storage paths of
// the removed files so the caller can delete the blobs after commit.
func (r *PaperRepository) UpdateWithRelations(ctx context.Context, paper *models.Paper, coAuthors []models.CoAuthor, newFiles []models.UploadedFile, deleteFileIDs []string) ([]string, error) {
	paper.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin paper update: %w", err)
	}

	var removedPaths []string
	for _, fileID := range deleteFileIDs {
		// The designated statement upload is not deletable through edit.
		const deleteFile = `DELETE FROM uploaded_files
            WHERE id = $1 AND paper_id = $2
              AND id <> COALESCE((SELECT statement_file_id FROM papers WHERE id = $2), '')
            RETURNING path`
		var path string
		err := tx.GetContext(ctx, &path, deleteFile, fileID, paper.ID)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			tx.Rollback() //nolint:errcheck
			return nil, fmt.Errorf("delete paper file: %w", err)
		}
		removedPaths = append(removedPaths, path)
	}

	const updatePaper = `UPDATE papers SET title = :title, club_id = :club_id, keywords = :keywords, description = :description, approved = :approved, updated_at = :updated_at WHERE id = :id`
	if _, err := tx.NamedExecContext(ctx, updatePaper, paper); err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, fmt.Errorf("update paper: %w", err)
	}

	const clearCoAuthors = `DELETE FROM co_authors WHERE paper_id = $1`
	if _, err := tx.ExecContext(ctx, clearCoAuthors, paper.ID); err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, fmt.Errorf("clear co-authors: %w", err)
	}
	if err := insertCoAuthors(ctx, tx, paper.ID, coAuthors); err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, err
	}

	for i := range newFiles {
		newFiles[i].PaperID = paper.ID
		if err := insertFile(ctx, tx, &newFiles[i]); err != nil {
			tx.Rollback() //nolint:errcheck
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit paper update: %w", err)
	}
	paper.CoAuthors = coAuthors
	return removedPaths, nil
}

// Delete removes a paper with its dependent rows and returns the storage
// paths of its attachments for post-commit blob cleanup.
func (r *PaperRepository) Delete(ctx context.Context, id string) ([]string, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin paper delete: %w", err)
	}

	var paths []string
	const selectPaths = `SELECT path FROM uploaded_files WHERE paper_id = $1`
	if err := tx.SelectContext(ctx, &paths, selectPaths, id); err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, fmt.Errorf("collect paper file paths: %w", err)
	}

	// Clear the statement reference first so the file rows can go.
	for _, stmt := range []string{
		`UPDATE papers SET statement_file_id = NULL WHERE id = $1`,
		`DELETE FROM reviews WHERE paper_id = $1`,
		`DELETE FROM paper_reviewers WHERE paper_id = $1`,
		`DELETE FROM co_authors WHERE paper_id = $1`,
		`DELETE FROM uploaded_files WHERE paper_id = $1`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			tx.Rollback() //nolint:errcheck
			return nil, fmt.Errorf("delete paper relations: %w", err)
		}
	}

	const deletePaper = `DELETE FROM papers WHERE id = $1`
	res, err := tx.ExecContext(ctx, deletePaper, id)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, fmt.Errorf("delete paper: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		tx.Rollback() //nolint:errcheck
		return nil, sql.ErrNoRows
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit paper delete: %w", err)
	}
	return paths, nil
}

// ReplaceReviewers swaps the assigned reviewer set in one transaction.
// Cardinality is validated by the caller.
func (r *PaperRepository) ReplaceReviewers(ctx context.Context, paperID string, reviewerIDs []string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reviewer assignment: %w", err)
	}

	const clear = `DELETE FROM paper_reviewers WHERE paper_id = $1`
	if _, err := tx.ExecContext(ctx, clear, paperID); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("clear reviewers: %w", err)
	}

	const insert = `INSERT INTO paper_reviewers (paper_id, reviewer_id) VALUES ($1, $2)`
	for _, reviewerID := range reviewerIDs {
		if _, err := tx.ExecContext(ctx, insert, paperID, reviewerID); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("assign reviewer: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reviewer assignment: %w", err)
	}
	return nil
}

// ListReviewerIDs returns the reviewer ids assigned to a paper.
func (r *PaperRepository) ListReviewerIDs(ctx context.Context, paperID string) ([]string, error) {
	const query = `SELECT reviewer_id FROM paper_reviewers WHERE paper_id = $1 ORDER BY reviewer_id`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, paperID); err != nil {
		return nil, fmt.Errorf("list paper reviewers: %w", err)
	}
	return ids, nil
}

// ListCoAuthors returns the co-author rows of a paper in insertion order.
func (r *PaperRepository) ListCoAuthors(ctx context.Context, paperID string) ([]models.CoAuthor, error) {
	const query = `SELECT id, paper_id, name, surname, email FROM co_authors WHERE paper_id = $1 ORDER BY id`
	var coAuthors []models.CoAuthor
	if err := r.db.SelectContext(ctx, &coAuthors, query, paperID); err != nil {
		return nil, fmt.Errorf("list co-authors: %w", err)
	}
	return coAuthors, nil
}

func (r *PaperRepository) listFiles(ctx context.Context, paperID string) ([]models.UploadedFile, error) {
	const query = `SELECT id, paper_id, filename, path, mime_type, size_bytes, source, created_at FROM uploaded_files WHERE paper_id = $1 ORDER BY created_at`
	var files []models.UploadedFile
	if err := r.db.SelectContext(ctx, &files, query, paperID); err != nil {
		return nil, fmt.Errorf("list paper files: %w", err)
	}
	return files, nil
}

func insertCoAuthors(ctx context.Context, tx *sqlx.Tx, paperID string, coAuthors []models.CoAuthor) error {
	const query = `INSERT INTO co_authors (id, paper_id, name, surname, email) VALUES (:id, :paper_id, :name, :surname, :email)`
	for i := range coAuthors {
		if coAuthors[i].ID == "" {
			coAuthors[i].ID = uuid.NewString()
		}
		coAuthors[i].PaperID = paperID
		if _, err := tx.NamedExecContext(ctx, query, coAuthors[i]); err != nil {
			return fmt.Errorf("insert co-author: %w", err)
		}
	}
	return nil
}

func insertFile(ctx context.Context, tx *sqlx.Tx, file *models.UploadedFile) error {
	if file.ID == "" {
		file.ID = uuid.NewString()
	}
	if file.CreatedAt.IsZero() {
		file.CreatedAt = time.Now().UTC()
	}
	if file.Source == "" {
		file.Source = models.FileSourceUpload
	}
	const query = `INSERT INTO uploaded_files (id, paper_id, filename, path, mime_type, size_bytes, source, created_at) VALUES (:id, :paper_id, :filename, :path, :mime_type, :size_bytes, :source, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, file); err != nil {
		return fmt.Errorf("insert uploaded file: %w", err)
	}
	return nil
}
