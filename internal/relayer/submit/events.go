package submit

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// EventKind identifies a transaction lifecycle event
type EventKind int

const (
	// EventTransactionHash is emitted for every broadcast, including replacements
	EventTransactionHash EventKind = iota + 1
	// EventMined is emitted once the transaction is included in a block
	EventMined
	// EventConfirmations is emitted each time the confirmation count grows
	EventConfirmations
	// EventReceipt is the final event of a successful run
	EventReceipt
	// EventError is the final event of a failed run
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventTransactionHash:
		return "transactionHash"
	case EventMined:
		return "mined"
	case EventConfirmations:
		return "confirmations"
	case EventReceipt:
		return "receipt"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one lifecycle notification. Events for a transaction are
// delivered in order on a single channel that is closed after EventReceipt
// or EventError.
type Event struct {
	Kind          EventKind
	TxHash        common.Hash
	Confirmations uint64
	Receipt       *types.Receipt
	Err           error
}

// CallRequest is a contract call to broadcast
type CallRequest struct {
	To       common.Address
	Data     []byte
	GasLimit uint64
	GasPrice *big.Int
	Value    *big.Int
}

// TxManager signs, broadcasts and tracks transactions
type TxManager interface {
	Send(ctx context.Context, req CallRequest) (<-chan Event, error)
}

// LifecycleSink receives lifecycle updates in arrival order. OnMined carries
// the hash that was included, which may be an earlier broadcast than the
// last one reported to OnTransactionHash.
type LifecycleSink interface {
	OnTransactionHash(ctx context.Context, hash common.Hash) error
	OnMined(ctx context.Context, hash common.Hash) error
	OnConfirmations(ctx context.Context, confirmations uint64) error
}
