package processor

import (
	"errors"
	"fmt"
)

// Pipeline stages, in execution order
const (
	StageAuthorize = "authorize"
	StageFee       = "fee"
	StageProof     = "proof"
	StagePublish   = "publish"
	StageSubmit    = "submit"
	StageResume    = "resume"
)

// ErrReceiptPending is returned when a redelivered job's transaction has no receipt yet
var ErrReceiptPending = errors.New("transaction receipt not yet available")

// StageError records the pipeline stage a job failed in
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s", e.Stage, e.Err.Error())
}

func (e *StageError) Unwrap() error {
	return e.Err
}
