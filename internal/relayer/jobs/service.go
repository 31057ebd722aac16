// Package jobs is the HTTP layer's entry into the relay pipeline: it creates
// job records, publishes them to the queue and reads them back.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/pool-relayer/internal/relayer/domain"
	"github.com/google/uuid"
)

// QueuePublisher publishes a message body to the job queue
type QueuePublisher interface {
	PublishWithRetry(ctx context.Context, body []byte, contentType string) error
}

// Service enqueues transactions and reports job status
type Service struct {
	store  domain.JobStore
	queue  QueuePublisher
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a job service
func NewService(store domain.JobStore, queue QueuePublisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		queue:  queue,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Enqueue stores tx as a QUEUED job and publishes its id
func (s *Service) Enqueue(ctx context.Context, tx domain.Transaction) (string, error) {
	now := s.now()
	job := &domain.Job{
		ID:        uuid.New().String(),
		Payload:   tx,
		Status:    domain.StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.CreateJob(ctx, job); err != nil {
		return "", fmt.Errorf("failed to create job: %w", err)
	}

	body, err := json.Marshal(domain.JobMessage{JobID: job.ID})
	if err != nil {
		return "", fmt.Errorf("failed to encode job message: %w", err)
	}

	if err := s.queue.PublishWithRetry(ctx, body, "application/json"); err != nil {
		s.logger.Error("Failed to publish job, marking it failed",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)

		job.Status = domain.StatusFailed
		job.FailedReason = "Relayer internal error: job could not be queued"
		job.UpdatedAt = s.now()
		if updateErr := s.store.UpdateJob(ctx, job); updateErr != nil {
			s.logger.Error("Failed to mark unqueued job failed",
				slog.String("job_id", job.ID),
				slog.String("error", updateErr.Error()),
			)
		}
		return "", fmt.Errorf("failed to publish job: %w", err)
	}

	s.logger.Info("Transaction job queued",
		slog.String("job_id", job.ID),
		slog.String("relayer", tx.ExtData.Relayer),
	)
	return job.ID, nil
}

// GetStatus returns the job or domain.ErrJobNotFound
func (s *Service) GetStatus(ctx context.Context, jobID string) (*domain.Job, error) {
	if _, err := uuid.Parse(jobID); err != nil {
		return nil, domain.ErrJobNotFound
	}
	return s.store.GetJob(ctx, jobID)
}
