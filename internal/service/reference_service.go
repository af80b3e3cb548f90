package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/sciclub-portal/papers-api/internal/models"
	appErrors "github.com/sciclub-portal/papers-api/pkg/errors"
)

const (
	cacheKeyGrades      = "reference:grades"
	cacheKeyGradesByTag = "reference:grades:"
	cacheKeyClubs       = "reference:clubs"
)

type referenceGradeRepository interface {
	List(ctx context.Context) ([]models.Grade, error)
	ListByTag(ctx context.Context, tag models.GradeTag) ([]models.Grade, error)
}

type referenceClubRepository interface {
	ListSelectable(ctx context.Context) ([]models.StudentClub, error)
}

// ReferenceCache is the cache dependency of the reference service.
type ReferenceCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// ReferenceService serves the immutable grade rubric and club lists,
// cached in Redis. Cache failures fall through to the database.
type ReferenceService struct {
	grades  referenceGradeRepository
	clubs   referenceClubRepository
	cache   ReferenceCache
	metrics *MetricsService
	logger  *zap.Logger
	ttl     time.Duration
}

// NewReferenceService constructs a ReferenceService.
func NewReferenceService(grades referenceGradeRepository, clubs referenceClubRepository, cache ReferenceCache, logger *zap.Logger, ttl time.Duration) *ReferenceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &ReferenceService{grades: grades, clubs: clubs, cache: cache, logger: logger, ttl: ttl}
}

// WithMetrics attaches cache hit/miss counters.
func (s *ReferenceService) WithMetrics(metrics *MetricsService) *ReferenceService {
	s.metrics = metrics
	return s
}

// ListGrades returns the full rubric.
func (s *ReferenceService) ListGrades(ctx context.Context) ([]models.Grade, error) {
	var cached []models.Grade
	if s.cacheGet(ctx, cacheKeyGrades, &cached) {
		return cached, nil
	}

	grades, err := s.grades.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grades")
	}
	s.cacheSet(ctx, cacheKeyGrades, grades)
	return grades, nil
}

// ListGradesByTag returns the grades of one rubric category.
func (s *ReferenceService) ListGradesByTag(ctx context.Context, tag models.GradeTag) ([]models.Grade, error) {
	if !validGradeTag(tag) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown grade category")
	}

	key := cacheKeyGradesByTag + string(tag)
	var cached []models.Grade
	if s.cacheGet(ctx, key, &cached) {
		return cached, nil
	}

	grades, err := s.grades.ListByTag(ctx, tag)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grades")
	}
	s.cacheSet(ctx, key, grades)
	return grades, nil
}

// ListClubs returns the selectable student clubs.
func (s *ReferenceService) ListClubs(ctx context.Context) ([]models.StudentClub, error) {
	var cached []models.StudentClub
	if s.cacheGet(ctx, cacheKeyClubs, &cached) {
		return cached, nil
	}

	clubs, err := s.clubs.ListSelectable(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list clubs")
	}
	s.cacheSet(ctx, cacheKeyClubs, clubs)
	return clubs, nil
}

func (s *ReferenceService) cacheGet(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	err := s.cache.Get(ctx, key, dest)
	if err == nil {
		s.metrics.RecordCacheOperation(true)
		return true
	}
	s.metrics.RecordCacheOperation(false)
	var appErr *appErrors.Error
	if !errors.As(err, &appErr) || appErr.Code != appErrors.ErrCacheMiss.Code {
		s.logger.Warn("reference cache read failed", zap.String("key", key), zap.Error(err))
	}
	return false
}

func (s *ReferenceService) cacheSet(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.ttl); err != nil {
		s.logger.Warn("reference cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func validGradeTag(tag models.GradeTag) bool {
	for _, known := range models.GradeTags {
		if known == tag {
			return true
		}
	}
	return false
}
