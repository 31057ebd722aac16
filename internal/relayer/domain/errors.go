package domain

import "errors"

// Pipeline errors. The messages are matched verbatim by the error classifier,
// so changing one changes what requesters see.
var (
	// ErrUnauthorizedRelayer is returned when extData.relayer is not the configured reward address
	ErrUnauthorizedRelayer = errors.New("relayer address does not match the reward address")

	// ErrInsufficientFee is returned when the offered fee is below the required fee
	ErrInsufficientFee = errors.New("provided fee is not enough, probably a gas price spike, try to resubmit")

	// ErrDepositNotAllowed is returned by the additive fee policy for non-negative extAmount
	ErrDepositNotAllowed = errors.New("deposits are not relayed by this relayer")

	// ErrGasPriceUnavailable is returned when no fee quote could be obtained
	ErrGasPriceUnavailable = errors.New("could not get gas price")

	// ErrProofVerificationFailed is returned when the compliance proof cannot be verified
	ErrProofVerificationFailed = errors.New("compliance proof verification failed")

	// ErrNullifierMismatch is returned when the proof output does not commit to the transaction nullifiers
	ErrNullifierMismatch = errors.New("compliance proof does not match the transaction nullifiers")

	// ErrUnknownRoot is returned when a compliance proof references a root the relayer does not recognise
	ErrUnknownRoot = errors.New("compliance proof references an unknown merkle root")

	// ErrCidMismatch is returned when the pinned proof CID differs from membershipProofURI
	ErrCidMismatch = errors.New("ipfs cid does not match the membership proof uri")

	// ErrUploadFailed is returned when the proof could not be pinned
	ErrUploadFailed = errors.New("could not upload the membership proof to ipfs")

	// ErrSubmissionFailed is returned when the mined transaction did not succeed
	ErrSubmissionFailed = errors.New("submitted transaction failed")

	// ErrLifecycleOrder is returned when transaction events arrive out of order
	ErrLifecycleOrder = errors.New("transaction lifecycle event out of order")
)

// Job errors
var (
	// ErrJobNotFound is returned when a job cannot be found in the store
	ErrJobNotFound = errors.New("job not found")

	// ErrInvalidTransition is returned when a status change is not allowed by the state machine
	ErrInvalidTransition = errors.New("invalid job status transition")

	// ErrInvalidAmount is returned when a fee or extAmount cannot be parsed
	ErrInvalidAmount = errors.New("invalid amount")
)

// ErrInvalidPayload is returned when a stored job payload cannot be decoded
var ErrInvalidPayload = errors.New("invalid job payload")

// RetryableError wraps transient errors that should trigger a requeue
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}
