// Package repository persists the extraction job audit trail in a local
// SQLite database inside the configuration directory.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/docsift/docsift/constants"
)

// Job is one extraction attempt as recorded in extract_jobs.
type Job struct {
	ID            uuid.UUID
	SourcePath    string
	ContentHash   string
	Status        constants.JobStatus
	FailedStage   string
	ErrorMessage  string
	ExtractedJSON string
	StartedAt     time.Time
	FinishedAt    *time.Time
}

type JobsRepo struct {
	db *sql.DB
}

func NewJobsRepo(db *sql.DB) *JobsRepo {
	return &JobsRepo{db: db}
}

// OpenDB opens (creating if needed) the SQLite database at path. Use ":memory:"
// for an ephemeral store.
func OpenDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	// A single connection sidesteps SQLite writer contention.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *JobsRepo) EnsureSchema(ctx context.Context) error {
	const query = `
CREATE TABLE IF NOT EXISTS extract_jobs (
	id TEXT PRIMARY KEY,
	source_path TEXT NOT NULL,
	content_hash TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	failed_stage TEXT NOT NULL DEFAULT '',
	error_message TEXT NOT NULL DEFAULT '',
	extracted_json TEXT NOT NULL DEFAULT '',
	started_at TIMESTAMP NOT NULL,
	finished_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_extract_jobs_started_at ON extract_jobs(started_at DESC);
`
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}
	return nil
}

// Start inserts a RUNNING row for a fresh extraction attempt.
func (r *JobsRepo) Start(ctx context.Context, id uuid.UUID, sourcePath, contentHash string, startedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO extract_jobs (id, source_path, content_hash, status, started_at)
VALUES (?, ?, ?, ?, ?)`,
		id.String(), sourcePath, contentHash, string(constants.JobStatusRunning), startedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// FinishSuccess marks the job SUCCEEDED and stores the decoded record.
func (r *JobsRepo) FinishSuccess(ctx context.Context, id uuid.UUID, extractedJSON []byte, finishedAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE extract_jobs SET status = ?, extracted_json = ?, finished_at = ?
WHERE id = ?`,
		string(constants.JobStatusSucceeded), string(extractedJSON), finishedAt.UTC(), id.String())
	if err != nil {
		return fmt.Errorf("finish job: %w", err)
	}
	return requireRow(res, id)
}

// FinishFailure marks the job FAILED with its originating stage and message.
func (r *JobsRepo) FinishFailure(ctx context.Context, id uuid.UUID, stage, message string, finishedAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE extract_jobs SET status = ?, failed_stage = ?, error_message = ?, finished_at = ?
WHERE id = ?`,
		string(constants.JobStatusFailed), stage, message, finishedAt.UTC(), id.String())
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	return requireRow(res, id)
}

// ListRecent returns up to limit jobs, newest first.
func (r *JobsRepo) ListRecent(ctx context.Context, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, source_path, content_hash, status, failed_stage, error_message, extracted_json, started_at, finished_at
FROM extract_jobs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []Job
	for rows.Next() {
		var (
			j        Job
			idStr    string
			status   string
			finished sql.NullTime
		)
		if err := rows.Scan(&idStr, &j.SourcePath, &j.ContentHash, &status,
			&j.FailedStage, &j.ErrorMessage, &j.ExtractedJSON, &j.StartedAt, &finished); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("parse job id %q: %w", idStr, err)
		}
		j.ID = id
		j.Status = constants.JobStatus(status)
		if finished.Valid {
			t := finished.Time
			j.FinishedAt = &t
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return out, nil
}

func requireRow(res sql.Result, id uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("job %s not found", id)
	}
	return nil
}
