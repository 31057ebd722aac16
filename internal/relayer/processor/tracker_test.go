package processor

import (
	"context"
	"testing"

	"github.com/cuongbtq/pool-relayer/internal/relayer/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTracker(status domain.Status, hash string) (*jobTracker, *memoryStore) {
	store := &memoryStore{}
	job := &domain.Job{ID: "job", Status: status, TxHash: hash}
	return &jobTracker{job: job, persist: store.UpdateJob}, store
}

func TestJobTracker_OutOfOrder(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		status domain.Status
		hash   string
		event  func(tr *jobTracker) error
	}{
		{
			name:   "confirmations before hash",
			status: domain.StatusAccepted,
			event:  func(tr *jobTracker) error { return tr.OnConfirmations(ctx, 1) },
		},
		{
			name:   "mined before hash",
			status: domain.StatusAccepted,
			event:  func(tr *jobTracker) error { return tr.OnMined(ctx, txHash) },
		},
		{
			name:   "mined without hash",
			status: domain.StatusSent,
			hash:   txHash.Hex(),
			event:  func(tr *jobTracker) error { return tr.OnMined(ctx, common.Hash{}) },
		},
		{
			name:   "confirmations before mined",
			status: domain.StatusSent,
			hash:   txHash.Hex(),
			event:  func(tr *jobTracker) error { return tr.OnConfirmations(ctx, 1) },
		},
		{
			name:   "hash after mined",
			status: domain.StatusMined,
			hash:   txHash.Hex(),
			event:  func(tr *jobTracker) error { return tr.OnTransactionHash(ctx, txHash) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, store := newTracker(tt.status, tt.hash)
			err := tt.event(tr)
			assert.ErrorIs(t, err, domain.ErrLifecycleOrder)
			assert.Equal(t, tt.status, tr.job.Status)
			assert.Empty(t, store.statuses())
		})
	}
}

func TestJobTracker_ConfirmationsNonDecreasing(t *testing.T) {
	ctx := context.Background()
	tr, store := newTracker(domain.StatusMined, txHash.Hex())

	require.NoError(t, tr.OnConfirmations(ctx, 2))
	require.NoError(t, tr.OnConfirmations(ctx, 2))
	assert.ErrorIs(t, tr.OnConfirmations(ctx, 1), domain.ErrLifecycleOrder)

	assert.Equal(t, uint64(2), tr.job.Confirmations)
	assert.Len(t, store.statuses(), 2)
}

func TestJobTracker_ReplacementHash(t *testing.T) {
	ctx := context.Background()
	tr, _ := newTracker(domain.StatusAccepted, "")

	require.NoError(t, tr.OnTransactionHash(ctx, txHash))
	replacement := txHash
	replacement[0] = 0xff
	require.NoError(t, tr.OnTransactionHash(ctx, replacement))

	assert.Equal(t, domain.StatusSent, tr.job.Status)
	assert.Equal(t, replacement.Hex(), tr.job.TxHash)
}

func TestJobTracker_MinedEarlierBroadcast(t *testing.T) {
	ctx := context.Background()
	tr, store := newTracker(domain.StatusAccepted, "")

	first := txHash
	replacement := txHash
	replacement[0] = 0xff

	require.NoError(t, tr.OnTransactionHash(ctx, first))
	require.NoError(t, tr.OnTransactionHash(ctx, replacement))
	require.NoError(t, tr.OnMined(ctx, first))

	assert.Equal(t, domain.StatusMined, tr.job.Status)
	assert.Equal(t, first.Hex(), tr.job.TxHash)
	require.Len(t, store.snapshots, 3)
	assert.Equal(t, first.Hex(), store.snapshots[2].TxHash)
}
