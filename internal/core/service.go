package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/colsplit/internal/logging"
)

// DefaultJobTimeout bounds how long a background split may run.
const DefaultJobTimeout = 10 * time.Minute

// finalizeTimeout bounds the store write that records a job's outcome,
// which must happen even after the job context has expired.
const finalizeTimeout = 10 * time.Second

// ServiceConfig holds the tunables of a Service.
type ServiceConfig struct {
	MaxConcurrent int
	MaxWait       time.Duration
	JobTimeout    time.Duration
	ScratchRoot   string
}

// Service runs split jobs in the background and tracks them as tasks.
type Service struct {
	tasks      TaskStore
	archives   ArchiveStore
	pipeline   *Pipeline
	limiter    *JobLimiter
	jobTimeout time.Duration
	now        func() time.Time
}

// NewService wires a Service to its task and archive stores.
func NewService(tasks TaskStore, archives ArchiveStore, cfg ServiceConfig) *Service {
	timeout := cfg.JobTimeout
	if timeout <= 0 {
		timeout = DefaultJobTimeout
	}
	return &Service{
		tasks:      tasks,
		archives:   archives,
		pipeline:   NewPipeline(archives, cfg.ScratchRoot),
		limiter:    NewJobLimiter(cfg.MaxConcurrent, cfg.MaxWait),
		jobTimeout: timeout,
		now:        time.Now,
	}
}

// SplitRequest is an uploaded file plus the split options.
type SplitRequest struct {
	FileName  string
	Data      []byte
	Column    string
	BatchSize int
}

func (r SplitRequest) validate() error {
	if _, _, err := DetectFormat(r.FileName); err != nil {
		return err
	}
	if len(r.Data) == 0 {
		return &SplitError{Kind: KindDecoding, Message: "unable to read file", Err: ErrEmptyFile}
	}
	if strings.TrimSpace(r.Column) == "" {
		return &SplitError{Kind: KindSchema, Message: "column name is required"}
	}
	if r.BatchSize < 0 {
		return &SplitError{Kind: KindSchema, Message: fmt.Sprintf("batch size must be positive, got %d", r.BatchSize)}
	}
	return nil
}

// StartSplit records a pending task and runs the split in the background.
// It returns the task id immediately.
//
// Unsupported extensions and empty uploads are rejected before a task is
// created. Returns ErrTooManyUploads if no job slot frees up in time.
func (s *Service) StartSplit(ctx context.Context, req SplitRequest) (string, error) {
	if err := req.validate(); err != nil {
		return "", err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return "", err
	}

	now := s.now()
	task := Task{
		ID:         uuid.New().String(),
		Status:     StatusPending,
		FileName:   req.FileName,
		FileSize:   int64(len(req.Data)),
		ColumnName: req.Column,
		BatchSize:  req.BatchSize,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		s.limiter.Release()
		return "", fmt.Errorf("create task: %w", err)
	}

	logger := logging.WithFields(ctx, "task_id", task.ID)
	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.jobTimeout)
	jobCtx = logging.WithContext(jobCtx, logger)

	go func() {
		defer s.limiter.Release()
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic in split job", "panic", r)
				if task.Status.Terminal() {
					return
				}
				if task.Status == StatusPending {
					task.Advance(StatusProcessing, s.now())
				}
				s.finish(jobCtx, logger, &task, failedResult(fmt.Errorf("split job panicked: %v", r)))
			}
		}()
		s.runJob(jobCtx, logger, &task, req)
	}()

	logger.Info("split queued", "filename", req.FileName, "column", req.Column, "batch_size", req.BatchSize)
	return task.ID, nil
}

func (s *Service) runJob(ctx context.Context, logger *slog.Logger, task *Task, req SplitRequest) {
	if err := task.Advance(StatusProcessing, s.now()); err != nil {
		logger.Error("cannot start task", "error", err)
		return
	}
	if err := s.tasks.Update(ctx, *task); err != nil {
		logger.Warn("failed to record processing state", "error", err)
	}

	result := s.pipeline.Run(ctx, Job{
		FileName:    req.FileName,
		Data:        req.Data,
		Column:      req.Column,
		BatchSize:   req.BatchSize,
		ArchiveName: task.ID + ".zip",
	})
	s.finish(ctx, logger, task, result)
}

// finish moves a processing task to its terminal state and saves it.
func (s *Service) finish(ctx context.Context, logger *slog.Logger, task *Task, result SplitResult) {
	to := StatusCompleted
	if !result.Success {
		to = StatusError
		task.ErrorMessage = result.Error
	}
	if err := task.Advance(to, s.now()); err != nil {
		logger.Error("cannot finish task", "error", err)
		return
	}
	task.Result = &result

	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()
	if err := s.tasks.Update(storeCtx, *task); err != nil {
		logger.Error("failed to record task result", "status", to, "error", err)
		return
	}
	logger.Info("task finished", "status", to)
}

// GetTask returns the current state of a task.
func (s *Service) GetTask(ctx context.Context, id string) (Task, error) {
	task, err := s.tasks.Get(ctx, id)
	if err != nil {
		return Task{}, fmt.Errorf("get task %s: %w", id, err)
	}
	return task, nil
}

// ArchiveDownload is an open handle on a finished archive.
type ArchiveDownload struct {
	Body     io.ReadCloser
	Size     int64
	FileName string
	Digest   string
}

// OpenArchive opens the archive of a completed task. The caller closes Body.
func (s *Service) OpenArchive(ctx context.Context, id string) (*ArchiveDownload, error) {
	task, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.Status != StatusCompleted || task.Result == nil || task.Result.ZipPath == "" {
		return nil, fmt.Errorf("task %s is %s: %w", id, task.Status, ErrTaskNotCompleted)
	}

	body, size, err := s.archives.Open(ctx, task.Result.ZipPath)
	if err != nil {
		return nil, fmt.Errorf("open archive for task %s: %w", id, err)
	}
	return &ArchiveDownload{
		Body:     body,
		Size:     size,
		FileName: ArchiveFileName(task.FileName),
		Digest:   task.Result.ArchiveDigest,
	}, nil
}

// Inspection is what a client needs to pick a split column.
type Inspection struct {
	Columns   []string `json:"columns"`
	TotalRows int      `json:"total_rows"`
	Encoding  string   `json:"encoding,omitempty"`
	Delimiter string   `json:"delimiter,omitempty"`
}

// Inspect parses an upload without splitting it.
func (s *Service) Inspect(ctx context.Context, fileName string, data []byte) (*Inspection, error) {
	ds, err := s.pipeline.Ingestor.Ingest(ctx, fileName, data)
	if err != nil {
		return nil, err
	}
	ins := &Inspection{
		Columns:   ds.Columns,
		TotalRows: len(ds.Rows),
		Encoding:  ds.Encoding,
	}
	if ds.Delimiter != 0 {
		ins.Delimiter = string(ds.Delimiter)
	}
	return ins, nil
}

// WaitForJobs blocks until every running split has finished or ctx is done.
func (s *Service) WaitForJobs(ctx context.Context) error {
	if err := s.limiter.Drain(ctx); err != nil {
		return fmt.Errorf("waiting for split jobs: %w", err)
	}
	return nil
}

// LimiterStatus reports job slot usage.
func (s *Service) LimiterStatus() LimiterStatus {
	return s.limiter.Status()
}
