package processor

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/cuongbtq/pool-relayer/internal/relayer/domain"
	"github.com/cuongbtq/pool-relayer/internal/relayer/errclass"
	"github.com/cuongbtq/pool-relayer/internal/relayer/submit"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	rewardAddress = "0x00000000000000000000000000000000000000bb"
	proofURI      = "ipfs://QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG"
)

var txHash = common.HexToHash("0x5e1d")

// memoryStore keeps a snapshot of every persisted job
type memoryStore struct {
	mu        sync.Mutex
	snapshots []domain.Job
	err       error
}

func (s *memoryStore) CreateJob(ctx context.Context, job *domain.Job) error { return nil }

func (s *memoryStore) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	return nil, domain.ErrJobNotFound
}

func (s *memoryStore) UpdateJob(ctx context.Context, job *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.snapshots = append(s.snapshots, *job)
	return nil
}

func (s *memoryStore) statuses() []domain.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Status, len(s.snapshots))
	for i, j := range s.snapshots {
		out[i] = j.Status
	}
	return out
}

type callLog struct {
	calls []string
}

func (l *callLog) add(name string) { l.calls = append(l.calls, name) }

type fakeFees struct {
	log *callLog
	err error
}

func (f *fakeFees) CheckFee(ctx context.Context, fee, extAmount *big.Int) error {
	f.log.add("fee")
	return f.err
}

type fakeProofs struct {
	log *callLog
	err error
}

func (f *fakeProofs) VerifyDocument(ctx context.Context, doc json.RawMessage, nullifiers []string) error {
	f.log.add("proof")
	return f.err
}

type fakePublisher struct {
	log *callLog
	err error
}

func (f *fakePublisher) Publish(ctx context.Context, doc json.RawMessage, claimedURI string) (string, error) {
	f.log.add("publish")
	return "", f.err
}

// fakeSubmitter replays lifecycle events into the sink
type fakeSubmitter struct {
	log           *callLog
	confirmations []uint64
	mined         bool
	hashSent      bool
	err           error
}

func (f *fakeSubmitter) Submit(ctx context.Context, tx *domain.Transaction, sink submit.LifecycleSink) (common.Hash, error) {
	f.log.add("submit")
	if f.hashSent {
		if err := sink.OnTransactionHash(ctx, txHash); err != nil {
			return common.Hash{}, err
		}
	}
	if f.mined {
		if err := sink.OnMined(ctx, txHash); err != nil {
			return common.Hash{}, err
		}
	}
	for _, n := range f.confirmations {
		if err := sink.OnConfirmations(ctx, n); err != nil {
			return common.Hash{}, err
		}
	}
	if f.err != nil {
		return common.Hash{}, f.err
	}
	return txHash, nil
}

type fakeReceipts struct {
	receipt *types.Receipt
	err     error
}

func (f *fakeReceipts) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return f.receipt, f.err
}

type stages struct {
	log       *callLog
	store     *memoryStore
	fees      *fakeFees
	proofs    *fakeProofs
	publisher *fakePublisher
	submitter *fakeSubmitter
	receipts  *fakeReceipts
}

func newStages() *stages {
	log := &callLog{}
	return &stages{
		log:       log,
		store:     &memoryStore{},
		fees:      &fakeFees{log: log},
		proofs:    &fakeProofs{log: log},
		publisher: &fakePublisher{log: log},
		submitter: &fakeSubmitter{log: log, hashSent: true, mined: true, confirmations: []uint64{1, 2}},
		receipts:  &fakeReceipts{err: ethereum.NotFound},
	}
}

func (s *stages) processor(t *testing.T) *TransactionProcessor {
	t.Helper()
	p, err := NewTransactionProcessor(&Config{
		RewardAddress: common.HexToAddress(rewardAddress),
		Store:         s.store,
		Fees:          s.fees,
		Proofs:        s.proofs,
		Publisher:     s.publisher,
		Submitter:     s.submitter,
		Receipts:      s.receipts,
		Classifier:    errclass.New(),
	})
	require.NoError(t, err)
	return p
}

func newJob() *domain.Job {
	return &domain.Job{
		ID:     "8d6f7a2e-5c7b-4a54-9f55-1d9b2b3c4d5e",
		Status: domain.StatusQueued,
		Payload: domain.Transaction{
			ExtData: domain.ExtData{
				Relayer:   rewardAddress,
				Fee:       "10100000000000000",
				ExtAmount: "1000000000000000000",
			},
			Args: domain.Args{InputNullifiers: []string{"0x01"}},
			MembershipProof: domain.MembershipProof{
				URI:      proofURI,
				Document: json.RawMessage(`{"proof":"0x01"}`),
			},
		},
	}
}

// drive runs a job through the hooks the way the queue consumer does
func drive(t *testing.T, p *TransactionProcessor, job *domain.Job) error {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, p.OnActive(ctx, job))

	hash, err := p.Process(ctx, job)
	if err != nil {
		require.NoError(t, p.OnFailed(ctx, job, err))
		return err
	}
	require.NoError(t, p.OnCompleted(ctx, job, hash))
	return nil
}

func TestProcess_HappyPath(t *testing.T) {
	s := newStages()
	p := s.processor(t)
	job := newJob()

	require.NoError(t, drive(t, p, job))

	assert.Equal(t, []string{"fee", "proof", "publish", "submit"}, s.log.calls)
	assert.Equal(t, []domain.Status{
		domain.StatusAccepted,
		domain.StatusSent,
		domain.StatusMined,
		domain.StatusMined,
		domain.StatusMined,
		domain.StatusConfirmed,
	}, s.store.statuses())
	assert.Equal(t, domain.StatusConfirmed, job.Status)
	assert.Equal(t, txHash.Hex(), job.TxHash)
	assert.Equal(t, uint64(2), job.Confirmations)
	assert.Empty(t, job.FailedReason)
}

func TestProcess_StageFailures(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(s *stages, job *domain.Job)
		wantCalls  []string
		wantStage  string
		wantErr    error
		wantReason string
	}{
		{
			name: "relayer mismatch stops before fee check",
			setup: func(s *stages, job *domain.Job) {
				job.Payload.ExtData.Relayer = "0x00000000000000000000000000000000000000cc"
			},
			wantCalls:  nil,
			wantStage:  StageAuthorize,
			wantErr:    domain.ErrUnauthorizedRelayer,
			wantReason: "Relayer internal error: relayer address does not match the reward address",
		},
		{
			name: "insufficient fee",
			setup: func(s *stages, job *domain.Job) {
				s.fees.err = domain.ErrInsufficientFee
			},
			wantCalls:  []string{"fee"},
			wantStage:  StageFee,
			wantErr:    domain.ErrInsufficientFee,
			wantReason: "Relayer internal error: " + domain.ErrInsufficientFee.Error(),
		},
		{
			name: "unparseable fee",
			setup: func(s *stages, job *domain.Job) {
				job.Payload.ExtData.Fee = "lots"
			},
			wantCalls:  nil,
			wantStage:  StageFee,
			wantErr:    domain.ErrInvalidAmount,
			wantReason: errclass.GenericMessage,
		},
		{
			name: "nullifier mismatch",
			setup: func(s *stages, job *domain.Job) {
				s.proofs.err = domain.ErrNullifierMismatch
			},
			wantCalls:  []string{"fee", "proof"},
			wantStage:  StageProof,
			wantErr:    domain.ErrNullifierMismatch,
			wantReason: "Relayer internal error: " + domain.ErrNullifierMismatch.Error(),
		},
		{
			name: "cid mismatch",
			setup: func(s *stages, job *domain.Job) {
				s.publisher.err = domain.ErrCidMismatch
			},
			wantCalls:  []string{"fee", "proof", "publish"},
			wantStage:  StagePublish,
			wantErr:    domain.ErrCidMismatch,
			wantReason: "Relayer internal error: ipfs cid does not match the membership proof uri",
		},
		{
			name: "broadcast rejected by contract",
			setup: func(s *stages, job *domain.Job) {
				s.submitter.hashSent = false
				s.submitter.mined = false
				s.submitter.confirmations = nil
				s.submitter.err = errors.New("execution reverted: Invalid merkle root")
			},
			wantCalls:  []string{"fee", "proof", "publish", "submit"},
			wantStage:  StageSubmit,
			wantReason: "Revert by smart contract: Invalid merkle root",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStages()
			job := newJob()
			tt.setup(s, job)
			p := s.processor(t)

			err := drive(t, p, job)
			require.Error(t, err)

			var stageErr *StageError
			require.ErrorAs(t, err, &stageErr)
			assert.Equal(t, tt.wantStage, stageErr.Stage)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}

			assert.Equal(t, tt.wantCalls, s.log.calls)
			assert.Equal(t, domain.StatusFailed, job.Status)
			assert.Equal(t, tt.wantReason, job.FailedReason)
			assert.Equal(t, []domain.Status{domain.StatusAccepted, domain.StatusFailed}, s.store.statuses())
		})
	}
}

func TestProcess_RevertedAfterMined(t *testing.T) {
	s := newStages()
	s.submitter.confirmations = nil
	s.submitter.err = domain.ErrSubmissionFailed
	p := s.processor(t)
	job := newJob()

	err := drive(t, p, job)
	assert.ErrorIs(t, err, domain.ErrSubmissionFailed)

	assert.Equal(t, []domain.Status{
		domain.StatusAccepted,
		domain.StatusSent,
		domain.StatusMined,
		domain.StatusFailed,
	}, s.store.statuses())
	assert.Equal(t, domain.StatusFailed, job.Status)
	assert.Equal(t, txHash.Hex(), job.TxHash)
	assert.Equal(t, "Relayer internal error: submitted transaction failed", job.FailedReason)
}

func TestProcess_UnsettledBroadcastIsRetryable(t *testing.T) {
	s := newStages()
	s.submitter.mined = false
	s.submitter.confirmations = nil
	s.submitter.err = context.DeadlineExceeded
	p := s.processor(t)
	job := newJob()

	require.NoError(t, p.OnActive(context.Background(), job))
	_, err := p.Process(context.Background(), job)

	var retryable *domain.RetryableError
	assert.ErrorAs(t, err, &retryable)
	assert.Equal(t, domain.StatusSent, job.Status)
	assert.Equal(t, txHash.Hex(), job.TxHash)
}

func TestProcess_Resume(t *testing.T) {
	tests := []struct {
		name       string
		receipts   *fakeReceipts
		status     domain.Status
		wantStatus domain.Status
		retryable  bool
		wantErr    error
	}{
		{
			name:       "mined successfully",
			receipts:   &fakeReceipts{receipt: &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: txHash}},
			status:     domain.StatusSent,
			wantStatus: domain.StatusConfirmed,
		},
		{
			name:       "already marked mined",
			receipts:   &fakeReceipts{receipt: &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: txHash}},
			status:     domain.StatusMined,
			wantStatus: domain.StatusConfirmed,
		},
		{
			name:       "reverted",
			receipts:   &fakeReceipts{receipt: &types.Receipt{Status: types.ReceiptStatusFailed, TxHash: txHash}},
			status:     domain.StatusSent,
			wantStatus: domain.StatusFailed,
			wantErr:    domain.ErrSubmissionFailed,
		},
		{
			name:       "still pending",
			receipts:   &fakeReceipts{err: ethereum.NotFound},
			status:     domain.StatusSent,
			wantStatus: domain.StatusSent,
			retryable:  true,
		},
		{
			name:       "node unavailable",
			receipts:   &fakeReceipts{err: errors.New("dial tcp: connection refused")},
			status:     domain.StatusMined,
			wantStatus: domain.StatusMined,
			retryable:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStages()
			s.receipts = tt.receipts
			p := s.processor(t)
			ctx := context.Background()

			job := newJob()
			job.Status = tt.status
			job.TxHash = txHash.Hex()

			require.NoError(t, p.OnActive(ctx, job))
			assert.Equal(t, tt.status, job.Status)

			hash, err := p.Process(ctx, job)
			assert.Empty(t, s.log.calls, "pipeline must not rerun for a broadcast job")

			switch {
			case tt.retryable:
				var retryable *domain.RetryableError
				require.ErrorAs(t, err, &retryable)
			case tt.wantErr != nil:
				require.ErrorIs(t, err, tt.wantErr)
				require.NoError(t, p.OnFailed(ctx, job, err))
			default:
				require.NoError(t, err)
				require.NoError(t, p.OnCompleted(ctx, job, hash))
			}
			assert.Equal(t, tt.wantStatus, job.Status)
		})
	}
}

func TestOnFailed_TerminalJobUnchanged(t *testing.T) {
	s := newStages()
	p := s.processor(t)
	job := newJob()
	job.Status = domain.StatusConfirmed

	require.NoError(t, p.OnFailed(context.Background(), job, domain.ErrCidMismatch))
	assert.Equal(t, domain.StatusConfirmed, job.Status)
	assert.Empty(t, s.store.statuses())
}

func TestUpdateJob_StoreError(t *testing.T) {
	s := newStages()
	s.store.err = errors.New("connection reset")
	p := s.processor(t)
	job := newJob()

	before := time.Now().UTC()
	err := p.UpdateJob(context.Background(), job)
	assert.ErrorContains(t, err, "connection reset")
	assert.False(t, job.UpdatedAt.Before(before))
}

func TestNewTransactionProcessor_Validation(t *testing.T) {
	s := newStages()
	_, err := NewTransactionProcessor(&Config{
		Store:      s.store,
		Fees:       s.fees,
		Proofs:     s.proofs,
		Publisher:  s.publisher,
		Submitter:  s.submitter,
		Receipts:   s.receipts,
		Classifier: errclass.New(),
	})
	assert.Error(t, err, "reward address is required")

	_, err = NewTransactionProcessor(&Config{RewardAddress: common.HexToAddress(rewardAddress)})
	assert.Error(t, err)
}
