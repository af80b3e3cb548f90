package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sciclub-portal/papers-api/internal/models"
	"github.com/sciclub-portal/papers-api/pkg/export"
	"github.com/sciclub-portal/papers-api/pkg/jobs"
	"github.com/sciclub-portal/papers-api/pkg/storage"
)

const statementJobType = "statement.generate"

type statementUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type statementFileRepository interface {
	Create(ctx context.Context, file *models.UploadedFile) error
}

type statementBlobStore interface {
	Save(filename string, data []byte) (string, error)
}

type statementPayload struct {
	PaperID string
	Data    export.StatementData
}

// StatementService generates declaration PDFs for a paper's author and
// co-authors in the background. Generation is best effort: the paper is
// already committed when jobs run, failed jobs are retried by the queue
// and a final failure only logs.
type StatementService struct {
	users    statementUserRepository
	files    statementFileRepository
	store    statementBlobStore
	renderer *export.StatementRenderer
	queue    *jobs.Queue
	metrics  *MetricsService
	logger   *zap.Logger
	magazine string
}

// NewStatementService constructs a StatementService with its own worker queue.
func NewStatementService(users statementUserRepository, files statementFileRepository, store statementBlobStore, logger *zap.Logger, magazine string, queueCfg jobs.Config) *StatementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &StatementService{
		users:    users,
		files:    files,
		store:    store,
		renderer: export.NewStatementRenderer(),
		logger:   logger,
		magazine: magazine,
	}
	queueCfg.Logger = logger
	s.queue = jobs.NewQueue("statements", s.handle, queueCfg)
	return s
}

// WithMetrics attaches worker outcome counters.
func (s *StatementService) WithMetrics(metrics *MetricsService) *StatementService {
	s.metrics = metrics
	return s
}

// Start launches the statement workers.
func (s *StatementService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the statement workers.
func (s *StatementService) Stop() {
	s.queue.Stop()
}

// EnqueueForPaper schedules one declaration per submitter: the author and
// every co-author of the paper.
func (s *StatementService) EnqueueForPaper(ctx context.Context, paper *models.Paper) error {
	author, err := s.users.FindByID(ctx, paper.AuthorID)
	if err != nil {
		return fmt.Errorf("load paper author: %w", err)
	}

	var failed error
	for _, job := range s.jobsFor(paper, author) {
		if err := s.queue.Enqueue(job); err != nil {
			failed = errors.Join(failed, err)
		}
	}
	return failed
}

func (s *StatementService) jobsFor(paper *models.Paper, author *models.User) []jobs.Job {
	out := make([]jobs.Job, 0, len(paper.CoAuthors)+1)
	out = append(out, jobs.Job{
		ID:   uuid.NewString(),
		Kind: statementJobType,
		Payload: statementPayload{
			PaperID: paper.ID,
			Data: export.StatementData{
				Kind:       export.StatementAuthor,
				FirstName:  author.FirstName,
				LastName:   author.LastName,
				City:       author.City,
				Street:     author.Street,
				Number:     author.Number,
				PaperTitle: paper.Title,
				Magazine:   s.magazine,
			},
		},
	})
	for _, coAuthor := range paper.CoAuthors {
		out = append(out, jobs.Job{
			ID:   uuid.NewString(),
			Kind: statementJobType,
			Payload: statementPayload{
				PaperID: paper.ID,
				Data: export.StatementData{
					Kind:       export.StatementCoAuthor,
					FirstName:  coAuthor.Name,
					LastName:   coAuthor.Surname,
					PaperTitle: paper.Title,
					Magazine:   s.magazine,
				},
			},
		})
	}
	return out
}

func (s *StatementService) handle(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(statementPayload)
	if !ok {
		s.logger.Error("unexpected statement job payload", zap.String("job_id", job.ID))
		return nil
	}

	pdf, err := s.renderer.Render(payload.Data)
	if err != nil {
		s.metrics.RecordStatementGenerated("error")
		return fmt.Errorf("render statement for paper %s: %w", payload.PaperID, err)
	}

	fileID := uuid.NewString()
	filename := export.StatementFilename(payload.Data.FirstName, payload.Data.LastName)
	path := storage.PaperPath(payload.PaperID, fileID+"_"+filename)
	if _, err := s.store.Save(path, pdf); err != nil {
		s.metrics.RecordStatementGenerated("error")
		return fmt.Errorf("store statement for paper %s: %w", payload.PaperID, err)
	}

	file := &models.UploadedFile{
		ID:        fileID,
		PaperID:   payload.PaperID,
		Filename:  filename,
		Path:      path,
		MimeType:  "application/pdf",
		SizeBytes: int64(len(pdf)),
		Source:    models.FileSourceStatement,
	}
	if err := s.files.Create(ctx, file); err != nil {
		s.metrics.RecordStatementGenerated("error")
		return fmt.Errorf("attach statement for paper %s: %w", payload.PaperID, err)
	}
	s.metrics.RecordStatementGenerated("success")

	values, _ := json.Marshal(map[string]string{"file_id": file.ID, "kind": string(payload.Data.Kind)})
	if err := s.users.CreateAuditLog(ctx, &models.AuditLog{
		Action:     models.AuditActionStatementAttach,
		Resource:   "papers",
		ResourceID: &payload.PaperID,
		NewValues:  values,
		CreatedAt:  time.Now().UTC(),
	}); err != nil {
		s.logger.Warn("failed to record statement audit log", zap.String("paper_id", payload.PaperID), zap.Error(err))
	}

	s.logger.Info("statement generated",
		zap.String("paper_id", payload.PaperID),
		zap.String("file_id", file.ID),
		zap.String("kind", string(payload.Data.Kind)))
	return nil
}
