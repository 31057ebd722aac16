// Package processor runs the relay pipeline for queued transaction jobs.
package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/cuongbtq/pool-relayer/internal/relayer/domain"
	"github.com/cuongbtq/pool-relayer/internal/relayer/submit"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// FeeChecker rejects fees below the required fee
type FeeChecker interface {
	CheckFee(ctx context.Context, fee, extAmount *big.Int) error
}

// ProofVerifier verifies a membership proof document against nullifiers
type ProofVerifier interface {
	VerifyDocument(ctx context.Context, doc json.RawMessage, nullifiers []string) error
}

// ProofPublisher pins a proof document and checks its content id
type ProofPublisher interface {
	Publish(ctx context.Context, doc json.RawMessage, claimedURI string) (string, error)
}

// TxSubmitter broadcasts a transaction and reports its lifecycle
type TxSubmitter interface {
	Submit(ctx context.Context, tx *domain.Transaction, sink submit.LifecycleSink) (common.Hash, error)
}

// ReceiptReader reads receipts of previously broadcast transactions
type ReceiptReader interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// ErrorClassifier maps pipeline failures to requester-facing text
type ErrorClassifier interface {
	ClassifyError(err error) string
}

// Recorder receives pipeline metrics
type Recorder interface {
	RecordStage(stage string, err error, duration time.Duration)
	RecordJob(status string)
	RecordDependencyError(dependency string)
}

// Config holds transaction processor configuration
type Config struct {
	RewardAddress common.Address
	Store         domain.JobStore
	Fees          FeeChecker
	Proofs        ProofVerifier
	Publisher     ProofPublisher
	Submitter     TxSubmitter
	Receipts      ReceiptReader
	Classifier    ErrorClassifier
	Metrics       Recorder
	Logger        *slog.Logger
}

// TransactionProcessor is the Handler for relay transaction jobs
type TransactionProcessor struct {
	rewardAddress common.Address
	store         domain.JobStore
	fees          FeeChecker
	proofs        ProofVerifier
	publisher     ProofPublisher
	submitter     TxSubmitter
	receipts      ReceiptReader
	classifier    ErrorClassifier
	metrics       Recorder
	logger        *slog.Logger
}

// NewTransactionProcessor creates a transaction processor
func NewTransactionProcessor(cfg *Config) (*TransactionProcessor, error) {
	switch {
	case cfg.Store == nil:
		return nil, errors.New("processor requires a job store")
	case cfg.Fees == nil, cfg.Proofs == nil, cfg.Publisher == nil, cfg.Submitter == nil:
		return nil, errors.New("processor requires every pipeline stage")
	case cfg.Receipts == nil:
		return nil, errors.New("processor requires a receipt reader")
	case cfg.Classifier == nil:
		return nil, errors.New("processor requires an error classifier")
	case cfg.RewardAddress == (common.Address{}):
		return nil, errors.New("processor requires a reward address")
	}

	p := &TransactionProcessor{
		rewardAddress: cfg.RewardAddress,
		store:         cfg.Store,
		fees:          cfg.Fees,
		proofs:        cfg.Proofs,
		publisher:     cfg.Publisher,
		submitter:     cfg.Submitter,
		receipts:      cfg.Receipts,
		classifier:    cfg.Classifier,
		metrics:       cfg.Metrics,
		logger:        cfg.Logger,
	}
	if p.metrics == nil {
		p.metrics = nopRecorder{}
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p, nil
}

// OnActive marks a newly delivered job ACCEPTED. A redelivered job that was
// already broadcast keeps its status.
func (p *TransactionProcessor) OnActive(ctx context.Context, job *domain.Job) error {
	if job.Status == domain.StatusQueued || job.Status == domain.StatusAccepted {
		if err := job.Transition(domain.StatusAccepted); err != nil {
			return err
		}
	}
	return p.UpdateJob(ctx, job)
}

// OnCompleted marks the job CONFIRMED
func (p *TransactionProcessor) OnCompleted(ctx context.Context, job *domain.Job, txHash common.Hash) error {
	if err := job.Transition(domain.StatusConfirmed); err != nil {
		return err
	}
	job.TxHash = txHash.Hex()
	job.FailedReason = ""

	p.metrics.RecordJob(string(domain.StatusConfirmed))
	p.logger.Info("Transaction job confirmed",
		slog.String("job_id", job.ID),
		slog.String("tx_hash", job.TxHash),
	)
	return p.UpdateJob(ctx, job)
}

// OnFailed stores the classified reason and marks the job FAILED
func (p *TransactionProcessor) OnFailed(ctx context.Context, job *domain.Job, cause error) error {
	if job.Status.IsTerminal() {
		return nil
	}
	if err := job.Transition(domain.StatusFailed); err != nil {
		return err
	}
	job.FailedReason = p.classifier.ClassifyError(cause)

	stage := ""
	var stageErr *StageError
	if errors.As(cause, &stageErr) {
		stage = stageErr.Stage
	}

	p.metrics.RecordJob(string(domain.StatusFailed))
	p.logger.Warn("Transaction job failed",
		slog.String("job_id", job.ID),
		slog.String("stage", stage),
		slog.String("error", cause.Error()),
		slog.String("failed_reason", job.FailedReason),
	)
	return p.UpdateJob(ctx, job)
}

// UpdateJob persists the job
func (p *TransactionProcessor) UpdateJob(ctx context.Context, job *domain.Job) error {
	job.UpdatedAt = time.Now().UTC()
	if err := p.store.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("failed to update job %s: %w", job.ID, err)
	}
	return nil
}

// Process runs authorization, fee, proof, publish and submit in that order
// and stops at the first failure. A job that already carries a transaction
// hash is never broadcast again; its receipt is looked up instead.
func (p *TransactionProcessor) Process(ctx context.Context, job *domain.Job) (common.Hash, error) {
	if job.TxHash != "" {
		return p.resume(ctx, job)
	}

	tx := &job.Payload

	if err := p.run(StageAuthorize, func() error { return p.authorize(tx) }); err != nil {
		return common.Hash{}, err
	}
	if err := p.run(StageFee, func() error { return p.checkFee(ctx, tx) }); err != nil {
		return common.Hash{}, err
	}
	if err := p.run(StageProof, func() error {
		return p.proofs.VerifyDocument(ctx, tx.MembershipProof.Document, tx.Args.InputNullifiers)
	}); err != nil {
		return common.Hash{}, err
	}
	if err := p.run(StagePublish, func() error {
		_, err := p.publisher.Publish(ctx, tx.MembershipProof.Document, tx.MembershipProof.URI)
		return err
	}); err != nil {
		return common.Hash{}, err
	}

	var hash common.Hash
	err := p.run(StageSubmit, func() error {
		var err error
		hash, err = p.submitter.Submit(ctx, tx, &jobTracker{job: job, persist: p.UpdateJob})
		return err
	})
	if err != nil && job.TxHash != "" && !settled(err) {
		// broadcast but not settled; a redelivery resumes from the receipt
		return common.Hash{}, domain.NewRetryableError(err)
	}
	return hash, err
}

func settled(err error) bool {
	return errors.Is(err, domain.ErrSubmissionFailed) || errors.Is(err, domain.ErrLifecycleOrder)
}

func (p *TransactionProcessor) run(stage string, fn func() error) error {
	start := time.Now()
	err := fn()
	p.metrics.RecordStage(stage, err, time.Since(start))
	if err == nil {
		return nil
	}

	if dep := dependencyOf(err); dep != "" {
		p.metrics.RecordDependencyError(dep)
	}
	return &StageError{Stage: stage, Err: err}
}

func (p *TransactionProcessor) authorize(tx *domain.Transaction) error {
	if !common.IsHexAddress(tx.ExtData.Relayer) || common.HexToAddress(tx.ExtData.Relayer) != p.rewardAddress {
		return domain.ErrUnauthorizedRelayer
	}
	return nil
}

func (p *TransactionProcessor) checkFee(ctx context.Context, tx *domain.Transaction) error {
	fee, err := domain.ParseUnsignedAmount(tx.ExtData.Fee)
	if err != nil {
		return fmt.Errorf("fee: %w", err)
	}
	extAmount, err := domain.ParseSignedAmount(tx.ExtData.ExtAmount)
	if err != nil {
		return fmt.Errorf("extAmount: %w", err)
	}
	return p.fees.CheckFee(ctx, fee, extAmount)
}

// resume settles a redelivered job from the receipt of its last broadcast
func (p *TransactionProcessor) resume(ctx context.Context, job *domain.Job) (common.Hash, error) {
	hash := common.HexToHash(job.TxHash)
	p.logger.Info("Resuming broadcast transaction job",
		slog.String("job_id", job.ID),
		slog.String("tx_hash", job.TxHash),
		slog.String("status", string(job.Status)),
	)

	receipt, err := p.receipts.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return common.Hash{}, domain.NewRetryableError(ErrReceiptPending)
	}
	if err != nil {
		p.metrics.RecordDependencyError("node")
		return common.Hash{}, domain.NewRetryableError(fmt.Errorf("failed to read receipt: %w", err))
	}

	if job.Status == domain.StatusSent {
		tracker := &jobTracker{job: job, persist: p.UpdateJob}
		if err := tracker.OnMined(ctx, receipt.TxHash); err != nil {
			return common.Hash{}, &StageError{Stage: StageResume, Err: err}
		}
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt.TxHash, &StageError{
			Stage: StageResume,
			Err:   fmt.Errorf("%w: %s status %d", domain.ErrSubmissionFailed, receipt.TxHash.Hex(), receipt.Status),
		}
	}
	return receipt.TxHash, nil
}

func dependencyOf(err error) string {
	switch {
	case errors.Is(err, domain.ErrGasPriceUnavailable):
		return "gas_oracle"
	case errors.Is(err, domain.ErrUploadFailed):
		return "ipfs"
	default:
		return ""
	}
}

type nopRecorder struct{}

func (nopRecorder) RecordStage(string, error, time.Duration) {}
func (nopRecorder) RecordJob(string)                         {}
func (nopRecorder) RecordDependencyError(string)             {}
