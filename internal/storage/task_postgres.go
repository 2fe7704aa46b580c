package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/colsplit/internal/config"
	"github.com/JonMunkholm/colsplit/internal/core"
)

// OpenPool parses cfg.URL, applies the pool limits and checks the
// connection.
func OpenPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// DatabaseName returns the database path component of a connection URL.
func DatabaseName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Path, "/")
}

const createTasksTable = `
CREATE TABLE IF NOT EXISTS split_tasks (
	id            TEXT PRIMARY KEY,
	status        TEXT NOT NULL,
	filename      TEXT NOT NULL,
	file_size     BIGINT NOT NULL DEFAULT 0,
	column_name   TEXT NOT NULL,
	batch_size    INTEGER NOT NULL DEFAULT 0,
	error_message TEXT NOT NULL DEFAULT '',
	result        JSONB,
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS split_tasks_updated_at_idx ON split_tasks (updated_at);
`

// PostgresTaskStore keeps tasks in the split_tasks table. Rows whose
// updated_at is older than the retention window are invisible to Get and
// Update.
type PostgresTaskStore struct {
	pool      *pgxpool.Pool
	retention time.Duration
}

// NewPostgresTaskStore wraps pool. Call EnsureSchema before first use.
func NewPostgresTaskStore(pool *pgxpool.Pool, retention time.Duration) *PostgresTaskStore {
	return &PostgresTaskStore{pool: pool, retention: retention}
}

// EnsureSchema creates the split_tasks table if missing.
func (s *PostgresTaskStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, createTasksTable); err != nil {
		return fmt.Errorf("create split_tasks: %w", err)
	}
	return nil
}

// cutoff is the oldest updated_at still visible.
func (s *PostgresTaskStore) cutoff() time.Time {
	if s.retention <= 0 {
		return time.Time{}
	}
	return time.Now().Add(-s.retention)
}

func encodeResult(r *core.SplitResult) ([]byte, error) {
	if r == nil {
		return nil, nil
	}
	return json.Marshal(r)
}

func (s *PostgresTaskStore) Create(ctx context.Context, task core.Task) error {
	result, err := encodeResult(task.Result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO split_tasks
			(id, status, filename, file_size, column_name, batch_size, error_message, result, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		task.ID, string(task.Status), task.FileName, task.FileSize, task.ColumnName, task.BatchSize,
		task.ErrorMessage, result, task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert task %s: %w", task.ID, err)
	}
	return nil
}

func (s *PostgresTaskStore) Get(ctx context.Context, id string) (core.Task, error) {
	var (
		task   core.Task
		status string
		result []byte
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, status, filename, file_size, column_name, batch_size, error_message, result, created_at, updated_at
		FROM split_tasks
		WHERE id = $1 AND updated_at >= $2`,
		id, s.cutoff(),
	).Scan(
		&task.ID, &status, &task.FileName, &task.FileSize, &task.ColumnName, &task.BatchSize,
		&task.ErrorMessage, &result, &task.CreatedAt, &task.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Task{}, core.ErrTaskNotFound
	}
	if err != nil {
		return core.Task{}, fmt.Errorf("select task %s: %w", id, err)
	}

	task.Status = core.TaskStatus(status)
	if len(result) > 0 {
		task.Result = &core.SplitResult{}
		if err := json.Unmarshal(result, task.Result); err != nil {
			return core.Task{}, fmt.Errorf("decode result of task %s: %w", id, err)
		}
	}
	return task, nil
}

func (s *PostgresTaskStore) Update(ctx context.Context, task core.Task) error {
	result, err := encodeResult(task.Result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE split_tasks
		SET status = $2, error_message = $3, result = $4, updated_at = $5
		WHERE id = $1 AND updated_at >= $6`,
		task.ID, string(task.Status), task.ErrorMessage, result, task.UpdatedAt, s.cutoff(),
	)
	if err != nil {
		return fmt.Errorf("update task %s: %w", task.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrTaskNotFound
	}
	return nil
}
