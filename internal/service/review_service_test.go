package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sciclub-portal/papers-api/internal/dto"
	"github.com/sciclub-portal/papers-api/internal/models"
	"github.com/sciclub-portal/papers-api/internal/repository"
	appErrors "github.com/sciclub-portal/papers-api/pkg/errors"
)

type stubReviewRepo struct {
	reviews   map[string]*models.Review
	byPair    map[string]*models.Review
	createErr error
	created   *models.Review
	deleted   []string
}

func reviewPairKey(paperID, authorID string) string {
	return paperID + "|" + authorID
}

func (s *stubReviewRepo) Create(ctx context.Context, review *models.Review) error {
	if s.createErr != nil {
		return s.createErr
	}
	review.ID = "rv-new"
	s.created = review
	return nil
}

func (s *stubReviewRepo) GetByID(ctx context.Context, id string) (*models.Review, error) {
	if review, ok := s.reviews[id]; ok {
		copied := *review
		return &copied, nil
	}
	return nil, sqlNoRows()
}

func (s *stubReviewRepo) FindByPaperAndAuthor(ctx context.Context, paperID, authorID string) (*models.Review, error) {
	if review, ok := s.byPair[reviewPairKey(paperID, authorID)]; ok {
		return review, nil
	}
	return nil, sqlNoRows()
}

func (s *stubReviewRepo) ListByPaper(ctx context.Context, paperID string) ([]models.Review, error) {
	var out []models.Review
	for _, review := range s.reviews {
		if review.PaperID == paperID {
			out = append(out, *review)
		}
	}
	return out, nil
}

func (s *stubReviewRepo) ListByAuthor(ctx context.Context, authorID string, page, pageSize int) ([]models.Review, int, error) {
	return nil, 0, nil
}

func (s *stubReviewRepo) Update(ctx context.Context, review *models.Review) error {
	if _, ok := s.reviews[review.ID]; !ok {
		return sqlNoRows()
	}
	s.reviews[review.ID] = review
	return nil
}

func (s *stubReviewRepo) Delete(ctx context.Context, id string) error {
	if _, ok := s.reviews[id]; !ok {
		return sqlNoRows()
	}
	delete(s.reviews, id)
	s.deleted = append(s.deleted, id)
	return nil
}

type stubGradeRepo struct {
	grades map[string]*models.Grade
}

func (s *stubGradeRepo) GetByID(ctx context.Context, id string) (*models.Grade, error) {
	if grade, ok := s.grades[id]; ok {
		return grade, nil
	}
	return nil, sqlNoRows()
}

func rubricGrades() *stubGradeRepo {
	return &stubGradeRepo{grades: map[string]*models.Grade{
		"g1": {ID: "g1", Tag: models.GradeTagCorrespondence, Name: "high"},
		"g2": {ID: "g2", Tag: models.GradeTagOriginality, Name: "high"},
		"g3": {ID: "g3", Tag: models.GradeTagMerits, Name: "high"},
		"g4": {ID: "g4", Tag: models.GradeTagPresentation, Name: "high"},
		"g5": {ID: "g5", Tag: models.GradeTagFinal, Name: "accept"},
	}}
}

func validReviewRequest() dto.ReviewRequest {
	return dto.ReviewRequest{
		CorrespondenceID: "g1",
		OriginalityID:    "g2",
		MeritsID:         "g3",
		PresentationID:   "g4",
		FinalGradeID:     "g5",
		Text:             "Well argued, results reproducible.",
	}
}

func assignedPaper() *stubPaperRepo {
	return &stubPaperRepo{papers: map[string]*models.Paper{
		"paper-1": {ID: "paper-1", AuthorID: "author-1", ReviewerIDs: []string{"rev-1", "rev-2"}},
	}}
}

func reviewerClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleReviewer}
}

func newReviewService(reviews *stubReviewRepo, papers *stubPaperRepo, grades *stubGradeRepo) *ReviewService {
	return NewReviewService(reviews, papers, grades, &stubUserRepo{}, nil, nil, 5)
}

func TestCreateReviewByAssignedReviewer(t *testing.T) {
	reviews := &stubReviewRepo{}
	svc := newReviewService(reviews, assignedPaper(), rubricGrades())

	review, err := svc.Create(context.Background(), reviewerClaims("rev-1"), "paper-1", validReviewRequest())
	require.NoError(t, err)
	assert.Equal(t, "rev-1", review.AuthorID)
	assert.Equal(t, "paper-1", review.PaperID)
}

func TestCreateReviewDeniedForUnassignedReviewer(t *testing.T) {
	reviews := &stubReviewRepo{}
	svc := newReviewService(reviews, assignedPaper(), rubricGrades())

	_, err := svc.Create(context.Background(), reviewerClaims("rev-9"), "paper-1", validReviewRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	assert.Nil(t, reviews.created)
}

func TestCreateReviewDeniedForPaperAuthor(t *testing.T) {
	papers := &stubPaperRepo{papers: map[string]*models.Paper{
		"paper-1": {ID: "paper-1", AuthorID: "rev-1", ReviewerIDs: []string{"rev-1"}},
	}}
	svc := newReviewService(&stubReviewRepo{}, papers, rubricGrades())

	_, err := svc.Create(context.Background(), reviewerClaims("rev-1"), "paper-1", validReviewRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestCreateReviewMapsDuplicateToConflict(t *testing.T) {
	reviews := &stubReviewRepo{createErr: repository.ErrDuplicate}
	svc := newReviewService(reviews, assignedPaper(), rubricGrades())

	_, err := svc.Create(context.Background(), reviewerClaims("rev-1"), "paper-1", validReviewRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrReviewExists.Code, appErrors.FromError(err).Code)
}

func TestCreateReviewRejectsMismatchedGradeTag(t *testing.T) {
	svc := newReviewService(&stubReviewRepo{}, assignedPaper(), rubricGrades())

	req := validReviewRequest()
	req.FinalGradeID = "g1" // correspondence grade in the final slot
	_, err := svc.Create(context.Background(), reviewerClaims("rev-1"), "paper-1", req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestLookupReturnsExistingReviewID(t *testing.T) {
	reviews := &stubReviewRepo{byPair: map[string]*models.Review{
		reviewPairKey("paper-1", "rev-1"): {ID: "rv-1", PaperID: "paper-1", AuthorID: "rev-1"},
	}}
	svc := newReviewService(reviews, assignedPaper(), rubricGrades())

	first, err := svc.LookupForReviewer(context.Background(), reviewerClaims("rev-1"), "paper-1")
	require.NoError(t, err)
	second, err := svc.LookupForReviewer(context.Background(), reviewerClaims("rev-1"), "paper-1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, "rv-1", first.ReviewID)
	assert.False(t, first.CanCreate)
}

func TestLookupGrantsCreateWhenNoneExists(t *testing.T) {
	svc := newReviewService(&stubReviewRepo{}, assignedPaper(), rubricGrades())

	result, err := svc.LookupForReviewer(context.Background(), reviewerClaims("rev-2"), "paper-1")
	require.NoError(t, err)
	assert.True(t, result.CanCreate)
	assert.Empty(t, result.ReviewID)
}

func TestGetReviewVisibleToPaperAuthor(t *testing.T) {
	reviews := &stubReviewRepo{reviews: map[string]*models.Review{
		"rv-1": {ID: "rv-1", PaperID: "paper-1", AuthorID: "rev-1"},
	}}
	svc := newReviewService(reviews, assignedPaper(), rubricGrades())

	review, err := svc.Get(context.Background(), authorClaims("author-1"), "rv-1")
	require.NoError(t, err)
	assert.Equal(t, "rv-1", review.ID)
}

func TestGetReviewVisibleToCoAssignedReviewer(t *testing.T) {
	reviews := &stubReviewRepo{reviews: map[string]*models.Review{
		"rv-1": {ID: "rv-1", PaperID: "paper-1", AuthorID: "rev-1"},
	}}
	svc := newReviewService(reviews, assignedPaper(), rubricGrades())

	review, err := svc.Get(context.Background(), reviewerClaims("rev-2"), "rv-1")
	require.NoError(t, err)
	assert.Equal(t, "rv-1", review.ID)
}

func TestGetReviewConcealedFromStrangers(t *testing.T) {
	reviews := &stubReviewRepo{reviews: map[string]*models.Review{
		"rv-1": {ID: "rv-1", PaperID: "paper-1", AuthorID: "rev-1"},
	}}
	svc := newReviewService(reviews, assignedPaper(), rubricGrades())

	_, err := svc.Get(context.Background(), authorClaims("author-2"), "rv-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestDeleteReviewByStaff(t *testing.T) {
	reviews := &stubReviewRepo{reviews: map[string]*models.Review{
		"rv-1": {ID: "rv-1", PaperID: "paper-1", AuthorID: "rev-1"},
	}}
	svc := newReviewService(reviews, assignedPaper(), rubricGrades())

	err := svc.Delete(context.Background(), staffClaims(), "rv-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"rv-1"}, reviews.deleted)
}

func TestUpdateReviewOnlyByItsAuthor(t *testing.T) {
	reviews := &stubReviewRepo{reviews: map[string]*models.Review{
		"rv-1": {ID: "rv-1", PaperID: "paper-1", AuthorID: "rev-1"},
	}}
	svc := newReviewService(reviews, assignedPaper(), rubricGrades())

	_, err := svc.Update(context.Background(), reviewerClaims("rev-2"), "rv-1", validReviewRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	updated, err := svc.Update(context.Background(), reviewerClaims("rev-1"), "rv-1", validReviewRequest())
	require.NoError(t, err)
	assert.Equal(t, "g5", updated.FinalGrade)
}
