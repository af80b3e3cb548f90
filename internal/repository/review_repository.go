package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sciclub-portal/papers-api/internal/models"
)

// ErrDuplicate reports an insert rejected by a unique constraint.
var ErrDuplicate = errors.New("duplicate row")

const reviewSelect = `SELECT r.id, r.paper_id, r.author_id, r.correspondence_id, r.originality_id, r.merits_id, r.presentation_id, r.final_grade_id, r.text, r.created_at, r.updated_at,
        p.title AS paper_title, u.first_name || ' ' || u.last_name AS author_name
        FROM reviews r
        JOIN papers p ON p.id = r.paper_id
        JOIN users u ON u.id = r.author_id`

// ReviewRepository handles review persistence.
type ReviewRepository struct {
	db *sqlx.DB
}

// NewReviewRepository creates a new review repository.
func NewReviewRepository(db *sqlx.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// Create inserts a review. The reviews table carries a unique index on
// (paper_id, author_id), so a second review by the same reviewer for the
// same paper comes back as ErrDuplicate regardless of request interleaving.
func (r *ReviewRepository) Create(ctx context.Context, review *models.Review) error {
	if review.ID == "" {
		review.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	review.CreatedAt = now
	review.UpdatedAt = now

	const query = `INSERT INTO reviews (id, paper_id, author_id, correspondence_id, originality_id, merits_id, presentation_id, final_grade_id, text, created_at, updated_at)
        VALUES (:id, :paper_id, :author_id, :correspondence_id, :originality_id, :merits_id, :presentation_id, :final_grade_id, :text, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, review); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicate
		}
		return fmt.Errorf("insert review: %w", err)
	}
	return nil
}

// GetByID returns a review by identifier.
func (r *ReviewRepository) GetByID(ctx context.Context, id string) (*models.Review, error) {
	query := reviewSelect + ` WHERE r.id = $1 LIMIT 1`
	var review models.Review
	if err := r.db.GetContext(ctx, &review, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get review: %w", err)
	}
	return &review, nil
}

// FindByPaperAndAuthor returns the review a reviewer wrote for a paper,
// or sql.ErrNoRows when none exists yet.
func (r *ReviewRepository) FindByPaperAndAuthor(ctx context.Context, paperID, authorID string) (*models.Review, error) {
	query := reviewSelect + ` WHERE r.paper_id = $1 AND r.author_id = $2 LIMIT 1`
	var review models.Review
	if err := r.db.GetContext(ctx, &review, query, paperID, authorID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find review: %w", err)
	}
	return &review, nil
}

// ListByPaper returns every review written for a paper, newest first.
func (r *ReviewRepository) ListByPaper(ctx context.Context, paperID string) ([]models.Review, error) {
	query := reviewSelect + ` WHERE r.paper_id = $1 ORDER BY r.created_at DESC`
	var reviews []models.Review
	if err := r.db.SelectContext(ctx, &reviews, query, paperID); err != nil {
		return nil, fmt.Errorf("list paper reviews: %w", err)
	}
	return reviews, nil
}

// ListByAuthor returns a reviewer's reviews, newest first, with the total.
func (r *ReviewRepository) ListByAuthor(ctx context.Context, authorID string, page, pageSize int) ([]models.Review, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 5
	}
	offset := (page - 1) * pageSize

	query := fmt.Sprintf(reviewSelect+` WHERE r.author_id = $1 ORDER BY r.created_at DESC LIMIT %d OFFSET %d`, pageSize, offset)
	var reviews []models.Review
	if err := r.db.SelectContext(ctx, &reviews, query, authorID); err != nil {
		return nil, 0, fmt.Errorf("list author reviews: %w", err)
	}

	const countQuery = `SELECT COUNT(*) FROM reviews r WHERE r.author_id = $1`
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, authorID); err != nil {
		return nil, 0, fmt.Errorf("count author reviews: %w", err)
	}
	return reviews, total, nil
}

// Update rewrites the grade references and text of an existing review.
func (r *ReviewRepository) Update(ctx context.Context, review *models.Review) error {
	review.UpdatedAt = time.Now().UTC()
	const query = `UPDATE reviews SET correspondence_id = :correspondence_id, originality_id = :originality_id, merits_id = :merits_id, presentation_id = :presentation_id, final_grade_id = :final_grade_id, text = :text, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, review)
	if err != nil {
		return fmt.Errorf("update review: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a review.
func (r *ReviewRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM reviews WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
