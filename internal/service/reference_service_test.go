package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sciclub-portal/papers-api/internal/models"
	appErrors "github.com/sciclub-portal/papers-api/pkg/errors"
)

type stubReferenceGrades struct {
	calls int
}

func (s *stubReferenceGrades) List(ctx context.Context) ([]models.Grade, error) {
	s.calls++
	return []models.Grade{{ID: "g1", Tag: models.GradeTagFinal, Name: "accept"}}, nil
}

func (s *stubReferenceGrades) ListByTag(ctx context.Context, tag models.GradeTag) ([]models.Grade, error) {
	s.calls++
	return []models.Grade{{ID: "g1", Tag: tag, Name: "accept"}}, nil
}

type stubReferenceClubs struct {
	calls int
}

func (s *stubReferenceClubs) ListSelectable(ctx context.Context) ([]models.StudentClub, error) {
	s.calls++
	return []models.StudentClub{{ID: "c1", Name: "Robotics Circle", Acronym: "RC"}}, nil
}

type memoryCache struct {
	entries map[string][]byte
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.Clone(appErrors.ErrCacheMiss, "")
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if m.entries == nil {
		m.entries = map[string][]byte{}
	}
	m.entries[key] = raw
	return nil
}

func TestListGradesServedFromCacheOnSecondCall(t *testing.T) {
	grades := &stubReferenceGrades{}
	svc := NewReferenceService(grades, &stubReferenceClubs{}, &memoryCache{}, nil, time.Minute)

	first, err := svc.ListGrades(context.Background())
	require.NoError(t, err)
	second, err := svc.ListGrades(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, grades.calls)
}

func TestListGradesByTagRejectsUnknownCategory(t *testing.T) {
	svc := NewReferenceService(&stubReferenceGrades{}, &stubReferenceClubs{}, nil, nil, time.Minute)

	_, err := svc.ListGradesByTag(context.Background(), "bogus")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestListClubsWorksWithoutCache(t *testing.T) {
	clubs := &stubReferenceClubs{}
	svc := NewReferenceService(&stubReferenceGrades{}, clubs, nil, nil, time.Minute)

	out, err := svc.ListClubs(context.Background())
	require.NoError(t, err)
	assert.Len(t, out, 1)
	assert.Equal(t, 1, clubs.calls)
}
