package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/sciclub-portal/papers-api/internal/dto"
	"github.com/sciclub-portal/papers-api/internal/models"
	"github.com/sciclub-portal/papers-api/internal/repository"
	appErrors "github.com/sciclub-portal/papers-api/pkg/errors"
)

type reviewRepository interface {
	Create(ctx context.Context, review *models.Review) error
	GetByID(ctx context.Context, id string) (*models.Review, error)
	FindByPaperAndAuthor(ctx context.Context, paperID, authorID string) (*models.Review, error)
	ListByPaper(ctx context.Context, paperID string) ([]models.Review, error)
	ListByAuthor(ctx context.Context, authorID string, page, pageSize int) ([]models.Review, int, error)
	Update(ctx context.Context, review *models.Review) error
	Delete(ctx context.Context, id string) error
}

type reviewPaperRepository interface {
	GetByID(ctx context.Context, id string) (*models.Paper, error)
}

type reviewGradeRepository interface {
	GetByID(ctx context.Context, id string) (*models.Grade, error)
}

type reviewAuditRepository interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// ReviewService implements the review workflow. A reviewer writes at most
// one review per assigned paper; the database enforces the cap, the
// service maps the conflict.
type ReviewService struct {
	reviews   reviewRepository
	papers    reviewPaperRepository
	grades    reviewGradeRepository
	audits    reviewAuditRepository
	sanitizer *bluemonday.Policy
	validator *validator.Validate
	logger    *zap.Logger
	pageSize  int
}

// NewReviewService constructs a ReviewService.
func NewReviewService(reviews reviewRepository, papers reviewPaperRepository, grades reviewGradeRepository, audits reviewAuditRepository, validate *validator.Validate, logger *zap.Logger, pageSize int) *ReviewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if pageSize <= 0 {
		pageSize = 5
	}
	return &ReviewService{
		reviews:   reviews,
		papers:    papers,
		grades:    grades,
		audits:    audits,
		sanitizer: bluemonday.UGCPolicy(),
		validator: validate,
		logger:    logger,
		pageSize:  pageSize,
	}
}

// Create submits a review for a paper. The actor must be an assigned
// reviewer of the paper and must not be its author.
func (s *ReviewService) Create(ctx context.Context, actor *models.JWTClaims, paperID string, req dto.ReviewRequest) (*models.Review, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}

	paper, err := s.loadPaper(ctx, paperID)
	if err != nil {
		return nil, err
	}
	if !s.mayReview(paper, actor) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "paper not found")
	}
	if err := s.checkGradeTags(ctx, req); err != nil {
		return nil, err
	}

	review := &models.Review{
		PaperID:        paperID,
		AuthorID:       actor.UserID,
		Correspondence: req.CorrespondenceID,
		Originality:    req.OriginalityID,
		Merits:         req.MeritsID,
		Presentation:   req.PresentationID,
		FinalGrade:     req.FinalGradeID,
		Text:           s.sanitizer.Sanitize(req.Text),
	}
	if err := s.reviews.Create(ctx, review); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrReviewExists, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save review")
	}

	s.audit(ctx, actor, models.AuditActionReviewCreate, review.ID, map[string]string{"paper_id": paperID})
	return review, nil
}

// LookupForReviewer reports whether the actor already reviewed the paper
// and, if not, whether they are allowed to. Calling it twice changes
// nothing.
func (s *ReviewService) LookupForReviewer(ctx context.Context, actor *models.JWTClaims, paperID string) (*dto.ReviewLookupResult, error) {
	paper, err := s.loadPaper(ctx, paperID)
	if err != nil {
		return nil, err
	}
	if !s.mayReview(paper, actor) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "paper not found")
	}

	existing, err := s.reviews.FindByPaperAndAuthor(ctx, paperID, actor.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &dto.ReviewLookupResult{CanCreate: true}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up review")
	}
	return &dto.ReviewLookupResult{ReviewID: existing.ID}, nil
}

// Get returns a review visible to the actor: staff, the reviewer who
// wrote it, or the author of the reviewed paper.
func (s *ReviewService) Get(ctx context.Context, actor *models.JWTClaims, id string) (*models.Review, error) {
	review, err := s.loadReview(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.canViewReview(ctx, review, actor) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "review not found")
	}
	return review, nil
}

// ListByPaper returns the reviews of one paper, subject to the same
// visibility as the paper itself.
func (s *ReviewService) ListByPaper(ctx context.Context, actor *models.JWTClaims, paperID string) ([]models.Review, error) {
	paper, err := s.loadPaper(ctx, paperID)
	if err != nil {
		return nil, err
	}
	if !canViewPaper(paper, actor) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "paper not found")
	}

	reviews, err := s.reviews.ListByPaper(ctx, paperID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reviews")
	}
	return reviews, nil
}

// ListMine returns reviews written by the actor, newest first.
func (s *ReviewService) ListMine(ctx context.Context, actor *models.JWTClaims, page int) ([]models.Review, *models.Pagination, error) {
	reviews, total, err := s.reviews.ListByAuthor(ctx, actor.UserID, page, s.pageSize)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reviews")
	}
	if page < 1 {
		page = 1
	}
	return reviews, &models.Pagination{Page: page, PageSize: s.pageSize, TotalCount: total}, nil
}

// Update rewrites a review. Only its author or staff may do so.
func (s *ReviewService) Update(ctx context.Context, actor *models.JWTClaims, id string, req dto.ReviewRequest) (*models.Review, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}

	review, err := s.loadReview(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsStaff() && review.AuthorID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "review not found")
	}
	if err := s.checkGradeTags(ctx, req); err != nil {
		return nil, err
	}

	review.Correspondence = req.CorrespondenceID
	review.Originality = req.OriginalityID
	review.Merits = req.MeritsID
	review.Presentation = req.PresentationID
	review.FinalGrade = req.FinalGradeID
	review.Text = s.sanitizer.Sanitize(req.Text)

	if err := s.reviews.Update(ctx, review); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "review not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update review")
	}
	return review, nil
}

// Delete removes a review. Only its author or staff may do so.
func (s *ReviewService) Delete(ctx context.Context, actor *models.JWTClaims, id string) error {
	review, err := s.loadReview(ctx, id)
	if err != nil {
		return err
	}
	if !actor.IsStaff() && review.AuthorID != actor.UserID {
		return appErrors.Clone(appErrors.ErrNotFound, "review not found")
	}

	if err := s.reviews.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "review not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete review")
	}

	s.audit(ctx, actor, models.AuditActionReviewDelete, id, map[string]string{"paper_id": review.PaperID})
	return nil
}

func (s *ReviewService) loadPaper(ctx context.Context, id string) (*models.Paper, error) {
	paper, err := s.papers.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "paper not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load paper")
	}
	return paper, nil
}

func (s *ReviewService) loadReview(ctx context.Context, id string) (*models.Review, error) {
	review, err := s.reviews.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "review not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load review")
	}
	return review, nil
}

// mayReview holds for assigned reviewers who are not the paper's author.
func (s *ReviewService) mayReview(paper *models.Paper, actor *models.JWTClaims) bool {
	if actor == nil || paper.AuthorID == actor.UserID {
		return false
	}
	for _, reviewerID := range paper.ReviewerIDs {
		if reviewerID == actor.UserID {
			return true
		}
	}
	return false
}

func (s *ReviewService) canViewReview(ctx context.Context, review *models.Review, actor *models.JWTClaims) bool {
	if actor == nil {
		return false
	}
	if actor.IsStaff() || review.AuthorID == actor.UserID {
		return true
	}
	paper, err := s.papers.GetByID(ctx, review.PaperID)
	if err != nil {
		return false
	}
	if paper.AuthorID == actor.UserID {
		return true
	}
	for _, reviewerID := range paper.ReviewerIDs {
		if reviewerID == actor.UserID {
			return true
		}
	}
	return false
}

// checkGradeTags verifies every referenced grade exists and belongs to
// the rubric category it is submitted for.
func (s *ReviewService) checkGradeTags(ctx context.Context, req dto.ReviewRequest) error {
	pairs := []struct {
		id  string
		tag models.GradeTag
	}{
		{req.CorrespondenceID, models.GradeTagCorrespondence},
		{req.OriginalityID, models.GradeTagOriginality},
		{req.MeritsID, models.GradeTagMerits},
		{req.PresentationID, models.GradeTagPresentation},
		{req.FinalGradeID, models.GradeTagFinal},
	}
	for _, pair := range pairs {
		grade, err := s.grades.GetByID(ctx, pair.id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown grade for %s", pair.tag))
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade")
		}
		if grade.Tag != pair.tag {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("grade %s does not belong to %s", pair.id, pair.tag))
		}
	}
	return nil
}

func (s *ReviewService) audit(ctx context.Context, actor *models.JWTClaims, action, resourceID string, values interface{}) {
	payload, err := json.Marshal(values)
	if err != nil {
		payload = nil
	}
	if err := s.audits.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     action,
		Resource:   "reviews",
		ResourceID: &resourceID,
		NewValues:  payload,
		CreatedAt:  time.Now().UTC(),
	}); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}
