package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/sciclub-portal/papers-api/internal/dto"
	"github.com/sciclub-portal/papers-api/internal/models"
	appErrors "github.com/sciclub-portal/papers-api/pkg/errors"
	"github.com/sciclub-portal/papers-api/pkg/storage"
)

type paperRepository interface {
	GetByID(ctx context.Context, id string) (*models.Paper, error)
	List(ctx context.Context, filter models.PaperFilter) ([]models.Paper, int, error)
	CreateWithRelations(ctx context.Context, paper *models.Paper, coAuthors []models.CoAuthor, statement *models.UploadedFile, attachments []models.UploadedFile) error
	UpdateWithRelations(ctx context.Context, paper *models.Paper, coAuthors []models.CoAuthor, newFiles []models.UploadedFile, deleteFileIDs []string) ([]string, error)
	Delete(ctx context.Context, id string) ([]string, error)
	ReplaceReviewers(ctx context.Context, paperID string, reviewerIDs []string) error
}

type paperUserRepository interface {
	FindByIDs(ctx context.Context, ids []string) ([]models.User, error)
	ListReviewers(ctx context.Context) ([]models.Reviewer, error)
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type paperFileRepository interface {
	GetByID(ctx context.Context, id string) (*models.UploadedFile, error)
}

type paperClubRepository interface {
	GetByID(ctx context.Context, id string) (*models.StudentClub, error)
}

type blobStore interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	DeletePaperDir(paperID string) error
}

type statementEnqueuer interface {
	EnqueueForPaper(ctx context.Context, paper *models.Paper) error
}

type assignmentNotifier interface {
	Enabled() bool
	Send(to, subject, htmlBody string) error
}

// Upload is one incoming multipart file as handed over by the handler.
type Upload struct {
	Filename string
	MimeType string
	Size     int64
	Reader   io.Reader
}

// PaperServiceConfig carries submission limits and defaults.
type PaperServiceConfig struct {
	PageSize         int
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
}

// PaperService implements the submission workflow: transactional
// create/edit/delete of papers with their co-authors and attachments,
// role-scoped listing, reviewer assignment and signed downloads.
type PaperService struct {
	papers     paperRepository
	users      paperUserRepository
	files      paperFileRepository
	clubs      paperClubRepository
	store      blobStore
	signer     *storage.SignedURLSigner
	statements statementEnqueuer
	mailer     assignmentNotifier
	sanitizer  *bluemonday.Policy
	validator  *validator.Validate
	logger     *zap.Logger
	config     PaperServiceConfig
}

// NewPaperService constructs a PaperService.
func NewPaperService(papers paperRepository, users paperUserRepository, files paperFileRepository, clubs paperClubRepository, store blobStore, signer *storage.SignedURLSigner, statements statementEnqueuer, mailer assignmentNotifier, validate *validator.Validate, logger *zap.Logger, config PaperServiceConfig) *PaperService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.PageSize <= 0 {
		config.PageSize = 5
	}
	return &PaperService{
		papers:     papers,
		users:      users,
		files:      files,
		clubs:      clubs,
		store:      store,
		signer:     signer,
		statements: statements,
		mailer:     mailer,
		sanitizer:  bluemonday.UGCPolicy(),
		validator:  validate,
		logger:     logger,
		config:     config,
	}
}

// Create persists a new paper together with its co-authors, the required
// statement upload and any extra attachments. Blobs are written first;
// if the database transaction fails they are removed again.
func (s *PaperService) Create(ctx context.Context, actor *models.JWTClaims, req dto.CreatePaperRequest, statement *Upload, attachments []*Upload) (*models.Paper, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid paper payload")
	}
	if statement == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "signed statement file is required")
	}
	if err := s.checkUpload(statement); err != nil {
		return nil, err
	}
	for _, upload := range attachments {
		if err := s.checkUpload(upload); err != nil {
			return nil, err
		}
	}
	if err := s.requireSelectableClub(ctx, req.ClubID); err != nil {
		return nil, err
	}

	paper := &models.Paper{
		ID:          uuid.NewString(),
		Title:       s.sanitizer.Sanitize(req.Title),
		ClubID:      req.ClubID,
		Keywords:    s.sanitizer.Sanitize(req.Keywords),
		Description: s.sanitizer.Sanitize(req.Description),
		AuthorID:    actor.UserID,
	}
	coAuthors := coAuthorsFromInput(req.CoAuthors)

	statementFile, err := s.saveUpload(paper.ID, statement)
	if err != nil {
		return nil, err
	}
	var attachmentFiles []models.UploadedFile
	for _, upload := range attachments {
		file, err := s.saveUpload(paper.ID, upload)
		if err != nil {
			s.cleanupBlobs(paper.ID)
			return nil, err
		}
		attachmentFiles = append(attachmentFiles, *file)
	}

	if err := s.papers.CreateWithRelations(ctx, paper, coAuthors, statementFile, attachmentFiles); err != nil {
		s.cleanupBlobs(paper.ID)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save paper")
	}

	if s.statements != nil {
		if err := s.statements.EnqueueForPaper(ctx, paper); err != nil {
			s.logger.Warn("failed to enqueue statement generation", zap.String("paper_id", paper.ID), zap.Error(err))
		}
	}

	s.audit(ctx, actor, models.AuditActionPaperCreate, paper.ID, map[string]string{"title": paper.Title})
	return s.loadPaper(ctx, paper.ID)
}

// Get returns a paper if the actor may see it, with previous/next
// navigation resolved against the caller-supplied ordered id list.
func (s *PaperService) Get(ctx context.Context, actor *models.JWTClaims, id string, orderedIDs []string) (*models.Paper, *dto.PaperNavigation, error) {
	paper, err := s.loadPaper(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !canViewPaper(paper, actor) {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "paper not found")
	}
	return paper, resolveNavigation(id, orderedIDs), nil
}

// List returns papers visible to the actor. Staff see everything,
// reviewers their assignments, authors their own submissions.
func (s *PaperService) List(ctx context.Context, actor *models.JWTClaims, filter models.PaperFilter) ([]models.Paper, *models.Pagination, error) {
	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleReviewer:
		filter.ReviewerID = actor.UserID
	default:
		filter.AuthorID = actor.UserID
	}
	if filter.PageSize <= 0 {
		filter.PageSize = s.config.PageSize
	}
	if filter.Page < 1 {
		filter.Page = 1
	}

	papers, total, err := s.papers.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list papers")
	}
	return papers, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Update applies an edit: field changes, total replacement of the
// co-author set, removal of the requested attachments and appending new
// uploads, all in one transaction. Removed blobs are deleted after commit.
func (s *PaperService) Update(ctx context.Context, actor *models.JWTClaims, id string, req dto.UpdatePaperRequest, newUploads []*Upload) (*models.Paper, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid paper payload")
	}

	paper, err := s.loadPaper(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canEditPaper(paper, actor) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "paper not found")
	}
	if req.ClubID != paper.ClubID {
		if err := s.requireSelectableClub(ctx, req.ClubID); err != nil {
			return nil, err
		}
	}
	for _, upload := range newUploads {
		if err := s.checkUpload(upload); err != nil {
			return nil, err
		}
	}

	paper.Title = s.sanitizer.Sanitize(req.Title)
	paper.ClubID = req.ClubID
	paper.Keywords = s.sanitizer.Sanitize(req.Keywords)
	paper.Description = s.sanitizer.Sanitize(req.Description)
	if req.Approved != nil && actor.IsStaff() {
		paper.Approved = *req.Approved
	}

	var newFiles []models.UploadedFile
	for _, upload := range newUploads {
		file, err := s.saveUpload(paper.ID, upload)
		if err != nil {
			return nil, err
		}
		newFiles = append(newFiles, *file)
	}

	coAuthors := coAuthorsFromInput(req.CoAuthors)
	removedPaths, err := s.papers.UpdateWithRelations(ctx, paper, coAuthors, newFiles, req.DeleteFileIDs)
	if err != nil {
		for _, file := range newFiles {
			if err := s.store.Delete(file.Path); err != nil {
				s.logger.Warn("failed to remove orphaned upload", zap.String("path", file.Path), zap.Error(err))
			}
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update paper")
	}
	for _, path := range removedPaths {
		if err := s.store.Delete(path); err != nil {
			s.logger.Warn("failed to delete removed attachment", zap.String("path", path), zap.Error(err))
		}
	}

	s.audit(ctx, actor, models.AuditActionPaperUpdate, paper.ID, map[string]string{"title": paper.Title})
	return s.loadPaper(ctx, paper.ID)
}

// Delete removes a paper with everything that hangs off it.
func (s *PaperService) Delete(ctx context.Context, actor *models.JWTClaims, id string) error {
	paper, err := s.loadPaper(ctx, id)
	if err != nil {
		return err
	}
	if !canEditPaper(paper, actor) {
		return appErrors.Clone(appErrors.ErrNotFound, "paper not found")
	}

	if _, err := s.papers.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "paper not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete paper")
	}
	s.cleanupBlobs(id)

	s.audit(ctx, actor, models.AuditActionPaperDelete, id, map[string]string{"title": paper.Title})
	return nil
}

// AssignReviewers replaces a paper's reviewer set. Staff only, at most
// two reviewers, and the paper's own author can never be one of them.
func (s *PaperService) AssignReviewers(ctx context.Context, actor *models.JWTClaims, paperID string, req dto.AssignReviewersRequest) (*models.Paper, error) {
	if !actor.IsStaff() {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "paper not found")
	}
	if len(req.ReviewerIDs) > models.MaxReviewersPerPaper {
		return nil, appErrors.Clone(appErrors.ErrTooManyReviewers, "")
	}

	paper, err := s.loadPaper(ctx, paperID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(req.ReviewerIDs))
	for _, reviewerID := range req.ReviewerIDs {
		if _, dup := seen[reviewerID]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, "duplicate reviewer in assignment")
		}
		seen[reviewerID] = struct{}{}
		if reviewerID == paper.AuthorID {
			return nil, appErrors.Clone(appErrors.ErrValidation, "a paper's author cannot review it")
		}
	}

	reviewers, err := s.users.FindByIDs(ctx, req.ReviewerIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reviewers")
	}
	if len(reviewers) != len(req.ReviewerIDs) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown reviewer in assignment")
	}
	for _, reviewer := range reviewers {
		if reviewer.Role != models.RoleReviewer || !reviewer.Active {
			return nil, appErrors.Clone(appErrors.ErrValidation, "assignee is not an active reviewer")
		}
	}

	if err := s.papers.ReplaceReviewers(ctx, paperID, req.ReviewerIDs); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign reviewers")
	}

	s.notifyReviewers(paper, reviewers)
	s.audit(ctx, actor, models.AuditActionReviewerAssign, paperID, map[string]interface{}{"reviewer_ids": req.ReviewerIDs})
	return s.loadPaper(ctx, paperID)
}

// ListReviewers returns reviewer accounts with their assignment load.
// Staff only.
func (s *PaperService) ListReviewers(ctx context.Context, actor *models.JWTClaims) ([]models.Reviewer, error) {
	if !actor.IsStaff() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "staff access required")
	}
	reviewers, err := s.users.ListReviewers(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reviewers")
	}
	return reviewers, nil
}

// FileURL returns a signed, expiring download link for one attachment of
// a paper the actor may see.
func (s *PaperService) FileURL(ctx context.Context, actor *models.JWTClaims, paperID, fileID string) (*dto.FileURLResponse, error) {
	paper, err := s.loadPaper(ctx, paperID)
	if err != nil {
		return nil, err
	}
	if !canViewPaper(paper, actor) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "paper not found")
	}

	file, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load file")
	}
	if file.PaperID != paperID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
	}

	token, _, err := s.signer.Generate(file.ID, file.Path)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download url")
	}
	return &dto.FileURLResponse{File: *file, DownloadURL: "/api/v1/files/download?token=" + token}, nil
}

// Download validates a signed token and opens the referenced blob.
func (s *PaperService) Download(ctx context.Context, token string) (*models.UploadedFile, *os.File, error) {
	fileID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download token")
	}

	file, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load file")
	}
	if file.Path != relPath {
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid download token")
	}

	blob, err := s.store.Open(file.Path)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file")
	}
	return file, blob, nil
}

func (s *PaperService) loadPaper(ctx context.Context, id string) (*models.Paper, error) {
	paper, err := s.papers.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "paper not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load paper")
	}
	return paper, nil
}

func (s *PaperService) requireSelectableClub(ctx context.Context, clubID string) error {
	club, err := s.clubs.GetByID(ctx, clubID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "unknown student club")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load club")
	}
	if club.Acronym == models.ClubAcronymNone {
		return appErrors.Clone(appErrors.ErrValidation, "club is not selectable")
	}
	return nil
}

func (s *PaperService) checkUpload(upload *Upload) error {
	if upload == nil {
		return appErrors.Clone(appErrors.ErrValidation, "empty upload")
	}
	if s.config.MaxFileSizeBytes > 0 && upload.Size > s.config.MaxFileSizeBytes {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file %s exceeds the size limit", upload.Filename))
	}
	if len(s.config.AllowedMIMEs) == 0 {
		return nil
	}
	for _, mime := range s.config.AllowedMIMEs {
		if mime == upload.MimeType {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file type %s is not accepted", upload.MimeType))
}

func (s *PaperService) saveUpload(paperID string, upload *Upload) (*models.UploadedFile, error) {
	fileID := uuid.NewString()
	path := storage.PaperPath(paperID, fileID+"_"+upload.Filename)
	if _, err := s.store.SaveStream(path, upload.Reader); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store upload")
	}
	return &models.UploadedFile{
		ID:        fileID,
		PaperID:   paperID,
		Filename:  upload.Filename,
		Path:      path,
		MimeType:  upload.MimeType,
		SizeBytes: upload.Size,
		Source:    models.FileSourceUpload,
	}, nil
}

func (s *PaperService) cleanupBlobs(paperID string) {
	if err := s.store.DeletePaperDir(paperID); err != nil {
		s.logger.Warn("failed to clean up paper uploads", zap.String("paper_id", paperID), zap.Error(err))
	}
}

func (s *PaperService) notifyReviewers(paper *models.Paper, reviewers []models.User) {
	if s.mailer == nil || !s.mailer.Enabled() {
		return
	}
	subject := "Paper assigned for review: " + paper.Title
	for _, reviewer := range reviewers {
		body := fmt.Sprintf("<p>Dear %s,</p><p>The paper <strong>%s</strong> has been assigned to you for review. Please sign in to the portal to submit your review.</p>", reviewer.FullName(), paper.Title)
		if err := s.mailer.Send(reviewer.Email, subject, body); err != nil {
			s.logger.Warn("failed to send assignment notification", zap.String("reviewer_id", reviewer.ID), zap.Error(err))
		}
	}
}

func (s *PaperService) audit(ctx context.Context, actor *models.JWTClaims, action, resourceID string, values interface{}) {
	payload, err := json.Marshal(values)
	if err != nil {
		payload = nil
	}
	if err := s.users.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     action,
		Resource:   "papers",
		ResourceID: &resourceID,
		NewValues:  payload,
		CreatedAt:  time.Now().UTC(),
	}); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}

func coAuthorsFromInput(inputs []dto.CoAuthorInput) []models.CoAuthor {
	coAuthors := make([]models.CoAuthor, 0, len(inputs))
	for _, input := range inputs {
		coAuthors = append(coAuthors, models.CoAuthor{
			Name:    input.Name,
			Surname: input.Surname,
			Email:   input.Email,
		})
	}
	return coAuthors
}

// canViewPaper grants read to the paper's author, to staff, and to any
// account holding the reviewer role, assigned or not.
func canViewPaper(paper *models.Paper, actor *models.JWTClaims) bool {
	if actor == nil {
		return false
	}
	return actor.IsStaff() || paper.AuthorID == actor.UserID || actor.Role == models.RoleReviewer
}

func canEditPaper(paper *models.Paper, actor *models.JWTClaims) bool {
	if actor == nil {
		return false
	}
	return actor.IsStaff() || paper.AuthorID == actor.UserID
}

func resolveNavigation(id string, orderedIDs []string) *dto.PaperNavigation {
	nav := &dto.PaperNavigation{}
	for i, candidate := range orderedIDs {
		if candidate != id {
			continue
		}
		if i > 0 {
			nav.PrevID = orderedIDs[i-1]
			nav.PrevIndex = i - 1
		}
		if i+1 < len(orderedIDs) {
			nav.NextID = orderedIDs[i+1]
			nav.NextIndex = i + 1
		}
		break
	}
	return nav
}
