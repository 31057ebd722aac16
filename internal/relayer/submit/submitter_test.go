package submit

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/cuongbtq/pool-relayer/internal/relayer/chain"
	"github.com/cuongbtq/pool-relayer/internal/relayer/domain"
	"github.com/cuongbtq/pool-relayer/internal/relayer/fee"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var poolAddress = common.HexToAddress("0xdc64a140aa3e981100a9beca4e685f962f0cf6c9")

type fixedQuotes struct {
	fast *big.Int
	err  error
}

func (f fixedQuotes) Quote(ctx context.Context) (*fee.Quote, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &fee.Quote{Fast: f.fast}, nil
}

type scriptedManager struct {
	events  []Event
	sendErr error
	req     CallRequest
}

func (m *scriptedManager) Send(ctx context.Context, req CallRequest) (<-chan Event, error) {
	m.req = req
	if m.sendErr != nil {
		return nil, m.sendErr
	}
	ch := make(chan Event, len(m.events))
	for _, ev := range m.events {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

type recordingSink struct {
	calls   []string
	failOn  string
	failErr error
}

func (s *recordingSink) record(call string) error {
	s.calls = append(s.calls, call)
	if call == s.failOn || (s.failOn != "" && strings.HasPrefix(call, s.failOn)) {
		return s.failErr
	}
	return nil
}

func (s *recordingSink) OnTransactionHash(ctx context.Context, hash common.Hash) error {
	return s.record("hash:" + shortHash(hash))
}

func (s *recordingSink) OnMined(ctx context.Context, hash common.Hash) error {
	return s.record("mined:" + shortHash(hash))
}

func (s *recordingSink) OnConfirmations(ctx context.Context, n uint64) error {
	return s.record(fmt.Sprintf("confirmations:%d", n))
}

func shortHash(h common.Hash) string {
	hex := h.Hex()
	return hex[len(hex)-4:]
}

// streamingManager feeds events on an unbuffered channel and reports when
// its producer goroutine exits
type streamingManager struct {
	events  []Event
	stopped chan struct{}
}

func (m *streamingManager) Send(ctx context.Context, req CallRequest) (<-chan Event, error) {
	ch := make(chan Event)
	go func() {
		defer close(m.stopped)
		defer close(ch)
		for _, ev := range m.events {
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func testTransaction() *domain.Transaction {
	b32 := func(b byte) string { return fmt.Sprintf("0x%064x", b) }
	return &domain.Transaction{
		ExtData: domain.ExtData{
			Recipient:        "0x00000000000000000000000000000000000000aa",
			Relayer:          "0x00000000000000000000000000000000000000bb",
			Fee:              "10100000000000000",
			ExtAmount:        "1000000000000000000",
			EncryptedOutput1: "0x" + strings.Repeat("ab", 156),
			EncryptedOutput2: "0x" + strings.Repeat("cd", 156),
		},
		Args: domain.Args{
			Proof:             "0x" + strings.Repeat("11", 256),
			Root:              b32(1),
			InputNullifiers:   []string{b32(2), b32(3)},
			OutputCommitments: []string{b32(4), b32(5)},
			PublicAmount:      "1000000000000000000",
			ExtDataHash:       b32(6),
		},
	}
}

func newTestSubmitter(t *testing.T, quotes fee.QuoteSource, manager TxManager) *Submitter {
	t.Helper()
	pool, err := chain.NewPool(poolAddress)
	require.NoError(t, err)

	s, err := NewSubmitter(&Config{
		Pool:     pool,
		GasLimit: 500_000,
		Quotes:   quotes,
		Manager:  manager,
	})
	require.NoError(t, err)
	return s
}

func TestSubmitter_Submit(t *testing.T) {
	hash := common.HexToHash("0xabc1")

	tests := []struct {
		name      string
		events    []Event
		wantCalls []string
		wantErr   error
	}{
		{
			name: "success",
			events: []Event{
				{Kind: EventTransactionHash, TxHash: hash},
				{Kind: EventMined, TxHash: hash},
				{Kind: EventConfirmations, Confirmations: 1},
				{Kind: EventConfirmations, Confirmations: 2},
				{Kind: EventReceipt, Receipt: &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: hash}},
			},
			wantCalls: []string{"hash:abc1", "mined:abc1", "confirmations:1", "confirmations:2"},
		},
		{
			name: "reverted receipt after mined",
			events: []Event{
				{Kind: EventTransactionHash, TxHash: hash},
				{Kind: EventMined, TxHash: hash},
				{Kind: EventReceipt, Receipt: &types.Receipt{Status: types.ReceiptStatusFailed, TxHash: hash}},
			},
			wantCalls: []string{"hash:abc1", "mined:abc1"},
			wantErr:   domain.ErrSubmissionFailed,
		},
		{
			name: "manager error",
			events: []Event{
				{Kind: EventTransactionHash, TxHash: hash},
				{Kind: EventError, Err: context.DeadlineExceeded},
			},
			wantCalls: []string{"hash:abc1"},
			wantErr:   context.DeadlineExceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager := &scriptedManager{events: tt.events}
			sink := &recordingSink{}
			s := newTestSubmitter(t, fixedQuotes{fast: big.NewInt(26_000_000_000)}, manager)

			got, err := s.Submit(context.Background(), testTransaction(), sink)
			assert.Equal(t, tt.wantCalls, sink.calls)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, hash, got)
		})
	}
}

func TestSubmitter_CallRequest(t *testing.T) {
	manager := &scriptedManager{sendErr: errors.New("nonce too low")}
	s := newTestSubmitter(t, fixedQuotes{fast: big.NewInt(26_000_000_000)}, manager)

	_, err := s.Submit(context.Background(), testTransaction(), &recordingSink{})
	assert.ErrorContains(t, err, "nonce too low")

	assert.Equal(t, poolAddress, manager.req.To)
	assert.Equal(t, uint64(500_000), manager.req.GasLimit)
	assert.Equal(t, big.NewInt(26_000_000_000), manager.req.GasPrice)
	assert.Equal(t, 0, manager.req.Value.Sign())
	assert.NotEmpty(t, manager.req.Data)
}

func TestSubmitter_GasPriceUnavailable(t *testing.T) {
	manager := &scriptedManager{}
	s := newTestSubmitter(t, fixedQuotes{err: domain.ErrGasPriceUnavailable}, manager)

	_, err := s.Submit(context.Background(), testTransaction(), &recordingSink{})
	assert.ErrorIs(t, err, domain.ErrGasPriceUnavailable)
}

func TestSubmitter_LifecycleOrderStops(t *testing.T) {
	hash := common.HexToHash("0xabc1")
	manager := &scriptedManager{events: []Event{
		{Kind: EventTransactionHash, TxHash: hash},
		{Kind: EventMined, TxHash: hash},
		{Kind: EventReceipt, Receipt: &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: hash}},
	}}
	sink := &recordingSink{failOn: "mined", failErr: domain.ErrLifecycleOrder}
	s := newTestSubmitter(t, fixedQuotes{fast: big.NewInt(1)}, manager)

	_, err := s.Submit(context.Background(), testTransaction(), sink)
	assert.ErrorIs(t, err, domain.ErrLifecycleOrder)
}

func TestSubmitter_LifecycleOrderReleasesManager(t *testing.T) {
	hash := common.HexToHash("0xabc1")
	manager := &streamingManager{
		events: []Event{
			{Kind: EventTransactionHash, TxHash: hash},
			{Kind: EventMined, TxHash: hash},
			{Kind: EventConfirmations, TxHash: hash, Confirmations: 1},
			{Kind: EventReceipt, Receipt: &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: hash}},
		},
		stopped: make(chan struct{}),
	}
	sink := &recordingSink{failOn: "mined", failErr: domain.ErrLifecycleOrder}
	s := newTestSubmitter(t, fixedQuotes{fast: big.NewInt(1)}, manager)

	_, err := s.Submit(context.Background(), testTransaction(), sink)
	require.ErrorIs(t, err, domain.ErrLifecycleOrder)

	select {
	case <-manager.stopped:
	case <-time.After(time.Second):
		t.Fatal("transaction manager still blocked after submit returned")
	}
}

func TestSubmitter_MinedEarlierBroadcast(t *testing.T) {
	first := common.HexToHash("0xaaa1")
	replacement := common.HexToHash("0xbbb2")
	manager := &scriptedManager{events: []Event{
		{Kind: EventTransactionHash, TxHash: first},
		{Kind: EventTransactionHash, TxHash: replacement},
		{Kind: EventMined, TxHash: first},
		{Kind: EventReceipt, Receipt: &types.Receipt{Status: types.ReceiptStatusFailed, TxHash: first}},
	}}
	sink := &recordingSink{}
	s := newTestSubmitter(t, fixedQuotes{fast: big.NewInt(1)}, manager)

	got, err := s.Submit(context.Background(), testTransaction(), sink)
	assert.ErrorIs(t, err, domain.ErrSubmissionFailed)
	assert.Equal(t, first, got)
	assert.Equal(t, []string{"hash:aaa1", "hash:bbb2", "mined:aaa1"}, sink.calls)
}

func TestSubmitter_SinkErrorIsNotFatal(t *testing.T) {
	hash := common.HexToHash("0xabc1")
	manager := &scriptedManager{events: []Event{
		{Kind: EventTransactionHash, TxHash: hash},
		{Kind: EventMined, TxHash: hash},
		{Kind: EventReceipt, Receipt: &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: hash}},
	}}
	sink := &recordingSink{failOn: "hash", failErr: errors.New("store unavailable")}
	s := newTestSubmitter(t, fixedQuotes{fast: big.NewInt(1)}, manager)

	got, err := s.Submit(context.Background(), testTransaction(), sink)
	require.NoError(t, err)
	assert.Equal(t, hash, got)
	assert.Equal(t, []string{"hash:abc1", "mined:abc1"}, sink.calls)
}

func TestSubmitter_NoReceipt(t *testing.T) {
	manager := &scriptedManager{events: []Event{{Kind: EventTransactionHash, TxHash: common.HexToHash("0x1")}}}
	s := newTestSubmitter(t, fixedQuotes{fast: big.NewInt(1)}, manager)

	_, err := s.Submit(context.Background(), testTransaction(), &recordingSink{})
	assert.Error(t, err)
}
