package processor

import (
	"context"

	"github.com/cuongbtq/pool-relayer/internal/relayer/domain"
	"github.com/ethereum/go-ethereum/common"
)

// Lifecycle is the set of queue hooks a job type implements. The queue
// consumer calls OnActive before Process and exactly one of OnCompleted or
// OnFailed after it.
type Lifecycle interface {
	OnActive(ctx context.Context, job *domain.Job) error
	OnCompleted(ctx context.Context, job *domain.Job, txHash common.Hash) error
	OnFailed(ctx context.Context, job *domain.Job, cause error) error
	UpdateJob(ctx context.Context, job *domain.Job) error
}

// Handler processes one job type
type Handler interface {
	Lifecycle
	Process(ctx context.Context, job *domain.Job) (common.Hash, error)
}
