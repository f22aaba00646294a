// Package postgres provides a Postgres-backed job and result store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/memote-webservice/internal/snapshot"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const defaultTable = "snapshot_jobs"

// JobStoreConfig controls the Postgres connection pool and result retention.
type JobStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	// ResultTTL is how long finished jobs stay readable. Zero keeps them.
	ResultTTL time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Ping(context.Context) error
	Close()
}

// JobStore keeps snapshot jobs and their results in a single table.
type JobStore struct {
	pool  pool
	table string
	ttl   time.Duration
	now   func() time.Time
}

// NewJobStore connects to Postgres using the provided config.
func NewJobStore(ctx context.Context, cfg JobStoreConfig) (*JobStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewJobStoreWithPool(p, cfg.Table, cfg.ResultTTL)
	if err != nil {
		p.Close()
		return nil, err
	}
	return store, nil
}

// NewJobStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewJobStoreWithPool(p pool, table string, resultTTL time.Duration) (*JobStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &JobStore{
		pool:  p,
		table: table,
		ttl:   resultTTL,
		now:   func() time.Time { return time.Now().UTC() },
	}, nil
}

// Close releases the underlying pool resources.
func (s *JobStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping checks connectivity.
func (s *JobStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// EnsureSchema creates the jobs table and its expiry index when missing.
func (s *JobStore) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
	id                TEXT PRIMARY KEY,
	task              TEXT NOT NULL,
	status            TEXT NOT NULL,
	filename          TEXT NOT NULL DEFAULT '',
	submitted_at      TIMESTAMPTZ NOT NULL,
	started_at        TIMESTAMPTZ,
	finished_at       TIMESTAMPTZ,
	exception_type    TEXT,
	exception_message TEXT,
	result            JSONB,
	expires_at        TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS %[1]s_expires_at_idx ON %[1]s (expires_at)`, s.table)
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// CreateJob inserts a new job row. Reusing an id is an error.
func (s *JobStore) CreateJob(ctx context.Context, job snapshot.Job) error {
	query := fmt.Sprintf(`
INSERT INTO %s (id, task, status, filename, submitted_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO NOTHING`, s.table)
	tag, err := s.pool.Exec(ctx, query, job.ID, job.Task, string(job.Status), job.Filename, job.Submitted)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	return nil
}

// UpdateJobStatus moves a job to status. Terminal states also record the
// outcome and the expiry time. Finished jobs cannot change again.
func (s *JobStore) UpdateJobStatus(
	ctx context.Context,
	jobID string,
	status snapshot.JobStatus,
	out snapshot.JobOutput,
) error {
	now := s.now()
	var (
		query string
		args  []any
	)
	if status.Terminal() {
		var excType, excMessage *string
		if out.Exception != nil {
			excType, excMessage = &out.Exception.Type, &out.Exception.Message
		}
		var result []byte
		if len(out.Result) > 0 {
			result = out.Result
		}
		var expires *time.Time
		if s.ttl > 0 {
			at := now.Add(s.ttl)
			expires = &at
		}
		query = fmt.Sprintf(`
UPDATE %s SET status = $2, finished_at = $3, exception_type = $4, exception_message = $5,
	result = $6, expires_at = $7
WHERE id = $1 AND status NOT IN ('succeeded', 'failed')`, s.table)
		args = []any{jobID, string(status), now, excType, excMessage, result, expires}
	} else {
		query = fmt.Sprintf(`
UPDATE %s SET status = $2, started_at = COALESCE(started_at, $3)
WHERE id = $1 AND status NOT IN ('succeeded', 'failed')`, s.table)
		args = []any{jobID, string(status), now}
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update job %s: %w", jobID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update job %s (missing or finished): %w", jobID, snapshot.ErrJobNotFound)
	}
	return nil
}

// GetJob reads a job. Expired results are reported as not found.
func (s *JobStore) GetJob(ctx context.Context, jobID string) (snapshot.Job, error) {
	query := fmt.Sprintf(`
SELECT id, task, status, filename, submitted_at, started_at, finished_at,
	exception_type, exception_message, result
FROM %s
WHERE id = $1 AND (expires_at IS NULL OR expires_at > $2)`, s.table)

	var (
		job                   snapshot.Job
		status                string
		excType, excMessage   *string
		result                []byte
		startedAt, finishedAt *time.Time
	)
	err := s.pool.QueryRow(ctx, query, jobID, s.now()).Scan(
		&job.ID,
		&job.Task,
		&status,
		&job.Filename,
		&job.Submitted,
		&startedAt,
		&finishedAt,
		&excType,
		&excMessage,
		&result,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return snapshot.Job{}, snapshot.ErrJobNotFound
	}
	if err != nil {
		return snapshot.Job{}, fmt.Errorf("select job %s: %w", jobID, err)
	}
	job.Status = snapshot.JobStatus(status)
	job.Started = startedAt
	job.Finished = finishedAt
	if excType != nil {
		job.Exception = &snapshot.Exception{Type: *excType}
		if excMessage != nil {
			job.Exception.Message = *excMessage
		}
	}
	job.Result = result
	return job, nil
}

// DeleteExpired removes rows whose results have passed their TTL.
func (s *JobStore) DeleteExpired(ctx context.Context) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE expires_at IS NOT NULL AND expires_at <= $1`, s.table)
	tag, err := s.pool.Exec(ctx, query, s.now())
	if err != nil {
		return 0, fmt.Errorf("delete expired jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}
