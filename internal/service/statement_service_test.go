package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sciclub-portal/papers-api/internal/models"
	"github.com/sciclub-portal/papers-api/pkg/export"
	"github.com/sciclub-portal/papers-api/pkg/jobs"
)

type stubStatementUsers struct {
	users  map[string]*models.User
	audits []models.AuditLog
}

func (s *stubStatementUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := s.users[id]; ok {
		return user, nil
	}
	return nil, sqlNoRows()
}

func (s *stubStatementUsers) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	s.audits = append(s.audits, *log)
	return nil
}

type stubStatementFiles struct {
	created []models.UploadedFile
}

func (s *stubStatementFiles) Create(ctx context.Context, file *models.UploadedFile) error {
	s.created = append(s.created, *file)
	return nil
}

type stubByteStore struct {
	saved map[string][]byte
}

func (s *stubByteStore) Save(filename string, data []byte) (string, error) {
	if s.saved == nil {
		s.saved = map[string][]byte{}
	}
	s.saved[filename] = data
	return filename, nil
}

func newStatementService(users *stubStatementUsers, files *stubStatementFiles, store *stubByteStore) *StatementService {
	return NewStatementService(users, files, store, nil, "Student Papers 2024", jobs.Config{Workers: 1})
}

func TestJobsForCoverAuthorAndEveryCoAuthor(t *testing.T) {
	svc := newStatementService(&stubStatementUsers{}, &stubStatementFiles{}, &stubByteStore{})

	author := &models.User{ID: "author-1", FirstName: "Jan", LastName: "Kowalski", City: "Lublin", Street: "Nadbystrzycka", Number: "38D"}
	paper := &models.Paper{
		ID:    "paper-1",
		Title: "Swarm Robotics Pathfinding",
		CoAuthors: []models.CoAuthor{
			{Name: "Anna", Surname: "Nowak"},
			{Name: "Piotr", Surname: "Lis"},
		},
	}

	queued := svc.jobsFor(paper, author)
	require.Len(t, queued, 3)

	first := queued[0].Payload.(statementPayload)
	assert.Equal(t, export.StatementAuthor, first.Data.Kind)
	assert.Equal(t, "Lublin", first.Data.City)
	assert.Equal(t, "Student Papers 2024", first.Data.Magazine)

	for _, job := range queued[1:] {
		payload := job.Payload.(statementPayload)
		assert.Equal(t, export.StatementCoAuthor, payload.Data.Kind)
		assert.Empty(t, payload.Data.City)
		assert.Equal(t, paper.Title, payload.Data.PaperTitle)
	}
}

func TestHandleRendersStoresAndAttaches(t *testing.T) {
	users := &stubStatementUsers{}
	files := &stubStatementFiles{}
	store := &stubByteStore{}
	svc := newStatementService(users, files, store)

	err := svc.handle(context.Background(), jobs.Job{
		ID:   "job-1",
		Kind: statementJobType,
		Payload: statementPayload{
			PaperID: "paper-1",
			Data: export.StatementData{
				Kind:       export.StatementAuthor,
				FirstName:  "Jan",
				LastName:   "Kowalski",
				PaperTitle: "Swarm Robotics Pathfinding",
				Magazine:   "Student Papers 2024",
			},
		},
	})
	require.NoError(t, err)

	require.Len(t, files.created, 1)
	created := files.created[0]
	assert.Equal(t, models.FileSourceStatement, created.Source)
	assert.Equal(t, "application/pdf", created.MimeType)
	assert.Equal(t, "paper-1", created.PaperID)

	blob, ok := store.saved[created.Path]
	require.True(t, ok)
	assert.Greater(t, len(blob), 0)
	assert.Equal(t, "%PDF", string(blob[:4]))

	require.Len(t, users.audits, 1)
	assert.Equal(t, models.AuditActionStatementAttach, users.audits[0].Action)
}

func TestHandleIgnoresUnknownPayload(t *testing.T) {
	files := &stubStatementFiles{}
	svc := newStatementService(&stubStatementUsers{}, files, &stubByteStore{})

	err := svc.handle(context.Background(), jobs.Job{ID: "job-1", Kind: statementJobType, Payload: "bogus"})
	require.NoError(t, err)
	assert.Empty(t, files.created)
}
