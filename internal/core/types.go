package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// FileDetail summarizes one artifact inside a finished archive.
type FileDetail struct {
	GroupValue string `json:"group_value"`
	RowCount   int    `json:"row_count"`
	Filename   string `json:"filename"`
}

// SplitResult is the single outcome of one pipeline run. On failure only
// Success and Error are set.
type SplitResult struct {
	Success       bool         `json:"success"`
	TotalRows     int          `json:"total_rows,omitempty"`
	SplitGroups   int          `json:"split_groups,omitempty"`
	OutputFiles   int          `json:"output_files,omitempty"`
	ZipPath       string       `json:"zip_path,omitempty"`
	ArchiveDigest string       `json:"archive_digest,omitempty"`
	FileDetails   []FileDetail `json:"file_details,omitempty"`
	Error         string       `json:"error,omitempty"`
}

func failedResult(err error) SplitResult {
	return SplitResult{Success: false, Error: err.Error()}
}

// TaskStatus is the externally visible state of a split task.
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusProcessing TaskStatus = "processing"
	StatusCompleted  TaskStatus = "completed"
	StatusError      TaskStatus = "error"
)

// Terminal reports whether no further transition is allowed.
func (s TaskStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

var (
	ErrTaskNotFound      = errors.New("task not found")
	ErrTaskNotCompleted  = errors.New("task not completed")
	ErrInvalidTransition = errors.New("invalid task transition")
)

// Task tracks one split request from upload to download.
type Task struct {
	ID           string       `json:"id"`
	Status       TaskStatus   `json:"status"`
	FileName     string       `json:"filename"`
	FileSize     int64        `json:"file_size"`
	ColumnName   string       `json:"column_name"`
	BatchSize    int          `json:"batch_size,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
	ErrorMessage string       `json:"error_message,omitempty"`
	Result       *SplitResult `json:"result,omitempty"`
}

// FileSizeMB is the upload size in megabytes, rounded to two places.
func (t Task) FileSizeMB() float64 {
	mb := float64(t.FileSize) / (1024 * 1024)
	return float64(int64(mb*100+0.5)) / 100
}

var allowedTransitions = map[TaskStatus][]TaskStatus{
	StatusPending:    {StatusProcessing},
	StatusProcessing: {StatusCompleted, StatusError},
}

// Advance moves the task to status to, stamping UpdatedAt with now.
func (t *Task) Advance(to TaskStatus, now time.Time) error {
	for _, next := range allowedTransitions[t.Status] {
		if next == to {
			t.Status = to
			t.UpdatedAt = now
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, to)
}

// TaskStore persists tasks for a bounded retention window. Get returns
// ErrTaskNotFound for unknown or expired ids.
type TaskStore interface {
	Create(ctx context.Context, task Task) error
	Get(ctx context.Context, id string) (Task, error)
	Update(ctx context.Context, task Task) error
}

// ArchiveStore keeps finished archives where downloads can reach them.
// Publish takes ownership of the file at srcPath and returns its location.
type ArchiveStore interface {
	Publish(ctx context.Context, name, srcPath string) (string, error)
	Open(ctx context.Context, location string) (io.ReadCloser, int64, error)
}
