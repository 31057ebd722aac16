package processor

import (
	"context"
	"fmt"

	"github.com/cuongbtq/pool-relayer/internal/relayer/domain"
	"github.com/ethereum/go-ethereum/common"
)

// jobTracker applies submitter lifecycle events to a job and persists it
// after each one
type jobTracker struct {
	job     *domain.Job
	persist func(ctx context.Context, job *domain.Job) error
}

func (t *jobTracker) OnTransactionHash(ctx context.Context, hash common.Hash) error {
	if t.job.Status != domain.StatusAccepted && t.job.Status != domain.StatusSent {
		return fmt.Errorf("%w: transaction hash in status %s", domain.ErrLifecycleOrder, t.job.Status)
	}
	if err := t.job.Transition(domain.StatusSent); err != nil {
		return err
	}
	t.job.TxHash = hash.Hex()
	return t.persist(ctx, t.job)
}

// OnMined records hash as the job's transaction; after a replacement the
// mined one can be an earlier broadcast
func (t *jobTracker) OnMined(ctx context.Context, hash common.Hash) error {
	if t.job.Status != domain.StatusSent || t.job.TxHash == "" {
		return fmt.Errorf("%w: mined in status %s", domain.ErrLifecycleOrder, t.job.Status)
	}
	if hash == (common.Hash{}) {
		return fmt.Errorf("%w: mined without a transaction hash", domain.ErrLifecycleOrder)
	}
	if err := t.job.Transition(domain.StatusMined); err != nil {
		return err
	}
	t.job.TxHash = hash.Hex()
	return t.persist(ctx, t.job)
}

func (t *jobTracker) OnConfirmations(ctx context.Context, confirmations uint64) error {
	if t.job.Status != domain.StatusMined {
		return fmt.Errorf("%w: confirmations in status %s", domain.ErrLifecycleOrder, t.job.Status)
	}
	if confirmations < t.job.Confirmations {
		return fmt.Errorf("%w: confirmations went from %d to %d", domain.ErrLifecycleOrder, t.job.Confirmations, confirmations)
	}
	t.job.Confirmations = confirmations
	return t.persist(ctx, t.job)
}
