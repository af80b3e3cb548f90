package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sciclub-portal/papers-api/internal/models"
)

// GradeRepository reads the immutable grade rubric rows.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository creates a new grade repository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

// List returns every grade ordered by tag then name.
func (r *GradeRepository) List(ctx context.Context) ([]models.Grade, error) {
	const query = `SELECT id, tag, name FROM grades ORDER BY tag, name`
	var grades []models.Grade
	if err := r.db.SelectContext(ctx, &grades, query); err != nil {
		return nil, fmt.Errorf("list grades: %w", err)
	}
	return grades, nil
}

// ListByTag returns the grades of one rubric category.
func (r *GradeRepository) ListByTag(ctx context.Context, tag models.GradeTag) ([]models.Grade, error) {
	const query = `SELECT id, tag, name FROM grades WHERE tag = $1 ORDER BY name`
	var grades []models.Grade
	if err := r.db.SelectContext(ctx, &grades, query, tag); err != nil {
		return nil, fmt.Errorf("list grades by tag: %w", err)
	}
	return grades, nil
}

// GetByID returns a grade by identifier.
func (r *GradeRepository) GetByID(ctx context.Context, id string) (*models.Grade, error) {
	const query = `SELECT id, tag, name FROM grades WHERE id = $1 LIMIT 1`
	var grade models.Grade
	if err := r.db.GetContext(ctx, &grade, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get grade: %w", err)
	}
	return &grade, nil
}
