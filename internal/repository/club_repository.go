package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sciclub-portal/papers-api/internal/models"
)

// ClubRepository reads the student club reference rows.
type ClubRepository struct {
	db *sqlx.DB
}

// NewClubRepository creates a new club repository.
func NewClubRepository(db *sqlx.DB) *ClubRepository {
	return &ClubRepository{db: db}
}

// ListSelectable returns clubs offered in submission forms. The sentinel
// "no club" row is kept out of the list.
func (r *ClubRepository) ListSelectable(ctx context.Context) ([]models.StudentClub, error) {
	const query = `SELECT id, name, acronym FROM student_clubs WHERE acronym <> $1 ORDER BY name`
	var clubs []models.StudentClub
	if err := r.db.SelectContext(ctx, &clubs, query, models.ClubAcronymNone); err != nil {
		return nil, fmt.Errorf("list clubs: %w", err)
	}
	return clubs, nil
}

// GetByID returns a club by identifier.
func (r *ClubRepository) GetByID(ctx context.Context, id string) (*models.StudentClub, error) {
	const query = `SELECT id, name, acronym FROM student_clubs WHERE id = $1 LIMIT 1`
	var club models.StudentClub
	if err := r.db.GetContext(ctx, &club, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get club: %w", err)
	}
	return &club, nil
}
