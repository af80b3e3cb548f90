package repository

import (
	"context"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sciclub-portal/papers-api/internal/models"
)

func TestCreateWithRelationsCommitsAllRows(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaperRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO papers").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO co_authors").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO co_authors").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO uploaded_files").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE papers SET statement_file_id").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO uploaded_files").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	paper := &models.Paper{Title: "Graph Colouring Heuristics", ClubID: "club-1", AuthorID: "author-1"}
	coAuthors := []models.CoAuthor{
		{Name: "Anna", Surname: "Nowak"},
		{Name: "Piotr", Surname: "Kowalski"},
	}
	statement := &models.UploadedFile{Filename: "statement.pdf", Path: "papers/p1/statement.pdf", Source: models.FileSourceUpload}
	attachments := []models.UploadedFile{{Filename: "draft.pdf", Path: "papers/p1/draft.pdf"}}

	err := repo.CreateWithRelations(context.Background(), paper, coAuthors, statement, attachments)
	require.NoError(t, err)
	assert.NotEmpty(t, paper.ID)
	require.NotNil(t, paper.StatementFileID)
	assert.Equal(t, statement.ID, *paper.StatementFileID)
	assert.Len(t, paper.CoAuthors, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWithRelationsRollsBackOnCoAuthorFailure(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaperRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO papers").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO co_authors").WillReturnError(errors.New("constraint violation"))
	mock.ExpectRollback()

	paper := &models.Paper{Title: "Broken", ClubID: "club-1", AuthorID: "author-1"}
	err := repo.CreateWithRelations(context.Background(), paper, []models.CoAuthor{{Name: "Anna", Surname: "Nowak"}}, nil, nil)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateWithRelationsReturnsRemovedPaths(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaperRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("DELETE FROM uploaded_files").
		WithArgs("file-1", "paper-1").
		WillReturnRows(sqlmock.NewRows([]string{"path"}).AddRow("papers/paper-1/old.pdf"))
	mock.ExpectExec("UPDATE papers SET title").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM co_authors").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO co_authors").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	paper := &models.Paper{ID: "paper-1", Title: "Revised Title", ClubID: "club-1", AuthorID: "author-1"}
	removed, err := repo.UpdateWithRelations(context.Background(), paper, []models.CoAuthor{{Name: "Anna", Surname: "Nowak"}}, nil, []string{"file-1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"papers/paper-1/old.pdf"}, removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateWithRelationsSkipsMissingFileIDs(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaperRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("DELETE FROM uploaded_files").
		WithArgs("stranger", "paper-1").
		WillReturnRows(sqlmock.NewRows([]string{"path"}))
	mock.ExpectExec("UPDATE papers SET title").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM co_authors").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	paper := &models.Paper{ID: "paper-1", Title: "Revised Title", ClubID: "club-1", AuthorID: "author-1"}
	removed, err := repo.UpdateWithRelations(context.Background(), paper, nil, nil, []string{"stranger"})
	require.NoError(t, err)
	assert.Empty(t, removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceReviewers(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaperRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM paper_reviewers").WithArgs("paper-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO paper_reviewers").WithArgs("paper-1", "rev-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO paper_reviewers").WithArgs("paper-1", "rev-2").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.ReplaceReviewers(context.Background(), "paper-1", []string{"rev-1", "rev-2"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteRollsBackWhenPaperMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaperRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT path FROM uploaded_files").
		WithArgs("paper-404").
		WillReturnRows(sqlmock.NewRows([]string{"path"}))
	mock.ExpectExec("UPDATE papers SET statement_file_id").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM reviews").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM paper_reviewers").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM co_authors").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM uploaded_files").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM papers").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := repo.Delete(context.Background(), "paper-404")
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
