package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sciclub-portal/papers-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

func userRows(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "email", "password_hash", "first_name", "last_name", "city", "street", "number", "role", "active", "last_login", "created_at", "updated_at"}).
		AddRow("u1", "anna@example.com", "hash", "Anna", "Nowak", "Lublin", "Nadbystrzycka", "38D", string(models.RoleAuthor), true, now, now, now)
}

func TestFindByEmail(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT "+userColumns+" FROM users WHERE email = $1 LIMIT 1")).
		WithArgs("anna@example.com").
		WillReturnRows(userRows(time.Now()))

	user, err := repo.FindByEmail(context.Background(), "anna@example.com")
	require.NoError(t, err)
	assert.Equal(t, "anna@example.com", user.Email)
	assert.Equal(t, "Anna Nowak", user.FullName())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListReviewersIncludesAssignmentCounts(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	rows := sqlmock.NewRows([]string{"id", "email", "first_name", "last_name", "assigned_count"}).
		AddRow("r1", "rev1@example.com", "Maria", "Zielinska", 3).
		AddRow("r2", "rev2@example.com", "Tomasz", "Wrona", 0)
	mock.ExpectQuery("SELECT u.id, u.email, u.first_name, u.last_name, COUNT").
		WithArgs(string(models.RoleReviewer)).
		WillReturnRows(rows)

	reviewers, err := repo.ListReviewers(context.Background())
	require.NoError(t, err)
	require.Len(t, reviewers, 2)
	assert.Equal(t, 3, reviewers[0].AssignedCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRefreshToken(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO refresh_tokens").WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.CreateRefreshToken(context.Background(), &models.RefreshToken{ID: "1", UserID: "u1", Token: "token", ExpiresAt: time.Now(), CreatedAt: time.Now()})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
