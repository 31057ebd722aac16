package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/pool-relayer/internal/relayer/domain"
)

// processJob drives one job through the handler's lifecycle hooks. A nil
// return acknowledges the delivery: the job reached a terminal status or
// was already terminal. Retryable errors leave the job as it is for redelivery.
func (w *Worker) processJob(ctx context.Context, msg *domain.JobMessage) error {
	job, err := w.store.GetJob(ctx, msg.JobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) || errors.Is(err, domain.ErrInvalidPayload) {
			return fmt.Errorf("failed to load job %s: %w", msg.JobID, err)
		}
		return domain.NewRetryableError(fmt.Errorf("failed to load job %s: %w", msg.JobID, err))
	}

	if job.Status.IsTerminal() {
		w.logger.Info("Skipping redelivered job in terminal status",
			slog.String("job_id", job.ID),
			slog.String("status", string(job.Status)),
		)
		return nil
	}

	if w.metrics != nil {
		done := w.metrics.JobStarted()
		defer done()
	}

	jobCtx := ctx
	if w.jobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, w.jobTimeout)
		defer cancel()
	}

	w.logger.Info("Processing job",
		slog.String("job_id", job.ID),
		slog.String("status", string(job.Status)),
		slog.String("worker_id", w.workerID),
	)

	if err := w.handler.OnActive(jobCtx, job); err != nil {
		return domain.NewRetryableError(fmt.Errorf("failed to activate job: %w", err))
	}

	hash, err := w.handler.Process(jobCtx, job)
	if err != nil {
		var retryable *domain.RetryableError
		if errors.As(err, &retryable) {
			return err
		}

		// hooks persist with the parent context so a timed out job is still recorded
		if failErr := w.handler.OnFailed(ctx, job, err); failErr != nil {
			return domain.NewRetryableError(fmt.Errorf("failed to record job failure: %w", failErr))
		}
		return nil
	}

	if err := w.handler.OnCompleted(ctx, job, hash); err != nil {
		return domain.NewRetryableError(fmt.Errorf("failed to record job completion: %w", err))
	}
	return nil
}
