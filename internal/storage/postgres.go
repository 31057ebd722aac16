// Package storage implements domain.JobStore on PostgreSQL and Redis.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/pool-relayer/internal/relayer/domain"
	"github.com/jmoiron/sqlx"
)

// Schema creates the jobs table
const Schema = `
CREATE TABLE IF NOT EXISTS jobs (
	job_id        UUID PRIMARY KEY,
	status        TEXT NOT NULL,
	payload       JSON NOT NULL,
	tx_hash       TEXT,
	confirmations BIGINT NOT NULL DEFAULT 0,
	failed_reason TEXT,
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS jobs_status_idx ON jobs (status);
`

type jobRow struct {
	JobID         string         `db:"job_id"`
	Status        string         `db:"status"`
	Payload       []byte         `db:"payload"`
	TxHash        sql.NullString `db:"tx_hash"`
	Confirmations int64          `db:"confirmations"`
	FailedReason  sql.NullString `db:"failed_reason"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

func toRow(job *domain.Job) (*jobRow, error) {
	payload, err := encodeJSON(job.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return &jobRow{
		JobID:         job.ID,
		Status:        string(job.Status),
		Payload:       payload,
		TxHash:        sql.NullString{String: job.TxHash, Valid: job.TxHash != ""},
		Confirmations: int64(job.Confirmations),
		FailedReason:  sql.NullString{String: job.FailedReason, Valid: job.FailedReason != ""},
		CreatedAt:     job.CreatedAt,
		UpdatedAt:     job.UpdatedAt,
	}, nil
}

func (r *jobRow) toJob() (*domain.Job, error) {
	job := &domain.Job{
		ID:            r.JobID,
		Status:        domain.Status(r.Status),
		TxHash:        r.TxHash.String,
		Confirmations: uint64(r.Confirmations),
		FailedReason:  r.FailedReason.String,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if err := json.Unmarshal(r.Payload, &job.Payload); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	return job, nil
}

// PostgresJobStore handles job persistence in PostgreSQL
type PostgresJobStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewPostgresJobStore creates a new PostgresJobStore
func NewPostgresJobStore(db *sqlx.DB, logger *slog.Logger) *PostgresJobStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresJobStore{db: db, logger: logger}
}

// Migrate creates the jobs table if it does not exist
func (s *PostgresJobStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create jobs table: %w", err)
	}
	return nil
}

// CreateJob inserts a new job
func (s *PostgresJobStore) CreateJob(ctx context.Context, job *domain.Job) error {
	row, err := toRow(job)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO jobs (
			job_id, status, payload, tx_hash,
			confirmations, failed_reason, created_at, updated_at
		) VALUES (
			:job_id, :status, :payload, :tx_hash,
			:confirmations, :failed_reason, :created_at, :updated_at
		)
	`

	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by its ID
func (s *PostgresJobStore) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	query := `
		SELECT
			job_id, status, payload, tx_hash,
			confirmations, failed_reason, created_at, updated_at
		FROM jobs
		WHERE job_id = $1
	`

	var row jobRow
	if err := s.db.GetContext(ctx, &row, query, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return row.toJob()
}

// UpdateJob writes the mutable fields of a job
func (s *PostgresJobStore) UpdateJob(ctx context.Context, job *domain.Job) error {
	row, err := toRow(job)
	if err != nil {
		return err
	}

	query := `
		UPDATE jobs
		SET status = :status,
		    tx_hash = :tx_hash,
		    confirmations = :confirmations,
		    failed_reason = :failed_reason,
		    updated_at = :updated_at
		WHERE job_id = :job_id
	`

	result, err := s.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrJobNotFound
	}

	s.logger.Debug("Job updated",
		slog.String("job_id", job.ID),
		slog.String("status", string(job.Status)),
	)
	return nil
}
