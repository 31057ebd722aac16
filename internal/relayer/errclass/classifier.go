// Package errclass turns raw pipeline failures into the short messages that
// are persisted on a job and shown to the requester.
package errclass

import (
	"strings"

	"github.com/cuongbtq/pool-relayer/internal/relayer/domain"
)

const (
	revertPrefix   = "Revert by smart contract: "
	internalPrefix = "Relayer internal error: "

	// GenericMessage is reported when nothing in the tables matches
	GenericMessage = "Relayer did not send your transaction. Please choose a different relayer."
)

// ContractErrors are revert reasons of the privacy pool contract, in match priority order
var ContractErrors = []string{
	"Invalid merkle root",
	"Input is already spent",
	"Incorrect external data hash",
	"Invalid fee",
	"Invalid ext amount",
	"Invalid public amount",
	"Invalid transaction proof",
	"Can't withdraw to zero address",
	"amount is larger than maximumDepositAmount",
}

// ServiceErrors are relayer-side failures, in match priority order
var ServiceErrors = []string{
	domain.ErrUnauthorizedRelayer.Error(),
	domain.ErrGasPriceUnavailable.Error(),
	domain.ErrInsufficientFee.Error(),
	domain.ErrDepositNotAllowed.Error(),
	domain.ErrUnknownRoot.Error(),
	domain.ErrNullifierMismatch.Error(),
	domain.ErrProofVerificationFailed.Error(),
	domain.ErrCidMismatch.Error(),
	domain.ErrUploadFailed.Error(),
	domain.ErrSubmissionFailed.Error(),
	domain.ErrLifecycleOrder.Error(),
}

// Classifier matches raw error text against ordered substring tables
type Classifier struct {
	contractErrors []string
	serviceErrors  []string
}

// New creates a classifier over the default tables
func New() *Classifier {
	return NewWithTables(ContractErrors, ServiceErrors)
}

// NewWithTables creates a classifier over custom tables. Earlier entries win.
func NewWithTables(contractErrors, serviceErrors []string) *Classifier {
	return &Classifier{
		contractErrors: append([]string(nil), contractErrors...),
		serviceErrors:  append([]string(nil), serviceErrors...),
	}
}

// Classify maps a raw message to a requester-facing one. Contract reverts are
// checked before service errors; the first containing entry wins.
func (c *Classifier) Classify(raw string) string {
	for _, reason := range c.contractErrors {
		if reason != "" && strings.Contains(raw, reason) {
			return revertPrefix + reason
		}
	}

	for _, reason := range c.serviceErrors {
		if reason != "" && strings.Contains(raw, reason) {
			return internalPrefix + reason
		}
	}

	return GenericMessage
}

// ClassifyError is Classify over err.Error(); a nil error yields the generic message
func (c *Classifier) ClassifyError(err error) string {
	if err == nil {
		return GenericMessage
	}
	return c.Classify(err.Error())
}
