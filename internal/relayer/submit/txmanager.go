package submit

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/cuongbtq/pool-relayer/internal/relayer/chain"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Default transaction manager settings
const (
	DefaultPollInterval  = 3 * time.Second
	DefaultBumpAfter     = 60 * time.Second
	DefaultBumpPercent   = 10
	DefaultConfirmations = 4
)

// TxManagerConfig holds transaction manager configuration
type TxManagerConfig struct {
	Client        chain.Client
	ChainID       *big.Int
	PrivateKey    *ecdsa.PrivateKey
	Confirmations uint64
	PollInterval  time.Duration
	BumpAfter     time.Duration
	BumpPercent   uint64
	MaxGasPrice   *big.Int
	Logger        *slog.Logger
}

// EthTxManager signs legacy transactions with a single key, assigns nonces
// serially and replaces stuck transactions at a higher gas price
type EthTxManager struct {
	client        chain.Client
	signer        types.Signer
	key           *ecdsa.PrivateKey
	from          common.Address
	confirmations uint64
	pollInterval  time.Duration
	bumpAfter     time.Duration
	bumpPercent   uint64
	maxGasPrice   *big.Int
	logger        *slog.Logger

	nonceMu   sync.Mutex
	nextNonce uint64
	nonceSet  bool
}

// ParsePrivateKey reads a hex private key with or without 0x
func ParsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	if len(hexKey) > 1 && hexKey[0] == '0' && (hexKey[1] == 'x' || hexKey[1] == 'X') {
		hexKey = hexKey[2:]
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return key, nil
}

// NewEthTxManager creates a transaction manager
func NewEthTxManager(cfg *TxManagerConfig) (*EthTxManager, error) {
	if cfg.Client == nil {
		return nil, errors.New("tx manager requires a chain client")
	}
	if cfg.PrivateKey == nil {
		return nil, errors.New("tx manager requires a private key")
	}
	if cfg.ChainID == nil || cfg.ChainID.Sign() <= 0 {
		return nil, errors.New("tx manager requires a chain id")
	}

	m := &EthTxManager{
		client:        cfg.Client,
		signer:        types.LatestSignerForChainID(cfg.ChainID),
		key:           cfg.PrivateKey,
		from:          crypto.PubkeyToAddress(cfg.PrivateKey.PublicKey),
		confirmations: cfg.Confirmations,
		pollInterval:  cfg.PollInterval,
		bumpAfter:     cfg.BumpAfter,
		bumpPercent:   cfg.BumpPercent,
		maxGasPrice:   cfg.MaxGasPrice,
		logger:        cfg.Logger,
	}

	if m.pollInterval <= 0 {
		m.pollInterval = DefaultPollInterval
	}
	if m.bumpAfter <= 0 {
		m.bumpAfter = DefaultBumpAfter
	}
	if m.bumpPercent == 0 {
		m.bumpPercent = DefaultBumpPercent
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}

	return m, nil
}

// Address returns the signer address
func (m *EthTxManager) Address() common.Address {
	return m.from
}

// Send signs and broadcasts req. A broadcast error is returned directly;
// afterwards progress is reported on the returned channel.
func (m *EthTxManager) Send(ctx context.Context, req CallRequest) (<-chan Event, error) {
	signed, err := m.broadcastNew(ctx, req)
	if err != nil {
		return nil, err
	}

	events := make(chan Event, 4)
	events <- Event{Kind: EventTransactionHash, TxHash: signed.Hash()}

	go m.track(ctx, req, signed, events)
	return events, nil
}

func (m *EthTxManager) broadcastNew(ctx context.Context, req CallRequest) (*types.Transaction, error) {
	m.nonceMu.Lock()
	defer m.nonceMu.Unlock()

	pending, err := m.client.PendingNonceAt(ctx, m.from)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}
	nonce := pending
	if m.nonceSet && m.nextNonce > nonce {
		nonce = m.nextNonce
	}

	signed, err := m.sign(nonce, req, req.GasPrice)
	if err != nil {
		return nil, err
	}

	if err := m.client.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("failed to broadcast transaction: %w", err)
	}

	m.nextNonce = nonce + 1
	m.nonceSet = true

	m.logger.Info("Transaction broadcast",
		slog.String("tx_hash", signed.Hash().Hex()),
		slog.Uint64("nonce", nonce),
		slog.String("gas_price", req.GasPrice.String()),
	)
	return signed, nil
}

func (m *EthTxManager) sign(nonce uint64, req CallRequest, gasPrice *big.Int) (*types.Transaction, error) {
	value := req.Value
	if value == nil {
		value = new(big.Int)
	}
	to := req.To

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      req.GasLimit,
		GasPrice: gasPrice,
		Data:     req.Data,
	})

	signed, err := types.SignTx(tx, m.signer, m.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	return signed, nil
}

// BumpGasPrice raises price by percent, capped at max. The result is at
// least price+1 so a replacement is never priced equal to the original.
func BumpGasPrice(price *big.Int, percent uint64, max *big.Int) (*big.Int, bool) {
	bumped := new(big.Int).Mul(price, new(big.Int).SetUint64(100+percent))
	bumped.Div(bumped, big.NewInt(100))
	if bumped.Cmp(price) <= 0 {
		bumped.Add(price, big.NewInt(1))
	}

	if max != nil && max.Sign() > 0 && bumped.Cmp(max) > 0 {
		if price.Cmp(max) >= 0 {
			return price, false
		}
		return new(big.Int).Set(max), true
	}
	return bumped, true
}

func (m *EthTxManager) track(ctx context.Context, req CallRequest, first *types.Transaction, events chan<- Event) {
	defer close(events)

	emit := func(ev Event) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}
	fail := func(err error) {
		select {
		case events <- Event{Kind: EventError, Err: err}:
		default:
			// the consumer is gone or the buffer is full; the error is logged instead
			m.logger.Error("Dropped transaction error event", slog.String("error", err.Error()))
		}
	}

	sent := []common.Hash{first.Hash()}
	current := first
	lastBroadcast := time.Now()

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	var receipt *types.Receipt
	for receipt == nil {
		select {
		case <-ctx.Done():
			fail(ctx.Err())
			return
		case <-ticker.C:
		}

		r, err := m.findReceipt(ctx, sent)
		if err != nil {
			m.logger.Warn("Failed to poll receipt", slog.String("error", err.Error()))
			continue
		}
		if r != nil {
			receipt = r
			break
		}

		if time.Since(lastBroadcast) < m.bumpAfter {
			continue
		}

		replacement, err := m.replace(ctx, req, current)
		if err != nil {
			m.logger.Warn("Failed to replace transaction",
				slog.String("tx_hash", current.Hash().Hex()),
				slog.String("error", err.Error()),
			)
			lastBroadcast = time.Now()
			continue
		}
		if replacement == nil {
			lastBroadcast = time.Now()
			continue
		}

		current = replacement
		sent = append(sent, replacement.Hash())
		lastBroadcast = time.Now()
		if !emit(Event{Kind: EventTransactionHash, TxHash: replacement.Hash()}) {
			return
		}
	}

	if !emit(Event{Kind: EventMined, TxHash: receipt.TxHash}) {
		return
	}

	var seen uint64
	for seen < m.confirmations {
		head, err := m.client.BlockNumber(ctx)
		if err == nil && receipt.BlockNumber != nil && head >= receipt.BlockNumber.Uint64() {
			n := head - receipt.BlockNumber.Uint64() + 1
			if n > m.confirmations {
				n = m.confirmations
			}
			if n > seen {
				seen = n
				if !emit(Event{Kind: EventConfirmations, TxHash: receipt.TxHash, Confirmations: seen}) {
					return
				}
				continue
			}
		} else if err != nil {
			m.logger.Warn("Failed to read block number", slog.String("error", err.Error()))
		}

		select {
		case <-ctx.Done():
			fail(ctx.Err())
			return
		case <-ticker.C:
		}
	}

	emit(Event{Kind: EventReceipt, TxHash: receipt.TxHash, Receipt: receipt})
}

func (m *EthTxManager) findReceipt(ctx context.Context, hashes []common.Hash) (*types.Receipt, error) {
	for i := len(hashes) - 1; i >= 0; i-- {
		r, err := m.client.TransactionReceipt(ctx, hashes[i])
		if errors.Is(err, ethereum.NotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return r, nil
	}
	return nil, nil
}

// replace rebroadcasts current with the same nonce at a bumped price. It
// returns nil when the price cap has been reached.
func (m *EthTxManager) replace(ctx context.Context, req CallRequest, current *types.Transaction) (*types.Transaction, error) {
	price, ok := BumpGasPrice(current.GasPrice(), m.bumpPercent, m.maxGasPrice)
	if !ok {
		return nil, nil
	}

	signed, err := m.sign(current.Nonce(), req, price)
	if err != nil {
		return nil, err
	}
	if err := m.client.SendTransaction(ctx, signed); err != nil {
		return nil, err
	}

	m.logger.Info("Transaction replaced",
		slog.String("old_tx_hash", current.Hash().Hex()),
		slog.String("tx_hash", signed.Hash().Hex()),
		slog.String("gas_price", price.String()),
	)
	return signed, nil
}
