package fee

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"time"

	"github.com/cuongbtq/pool-relayer/internal/relayer/domain"
	"github.com/hashicorp/go-retryablehttp"
)

// GasPricer is the node fallback, satisfied by *ethclient.Client
type GasPricer interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// OracleConfig holds gas oracle configuration
type OracleConfig struct {
	URL        string
	Timeout    time.Duration
	RetryMax   int
	Node       GasPricer
	Logger     *slog.Logger
	HTTPClient *retryablehttp.Client
}

// OracleSource reads tier prices from an HTTP gas oracle and falls back to
// the node's eth_gasPrice for every tier when the oracle is unset or down.
type OracleSource struct {
	url    string
	node   GasPricer
	client *retryablehttp.Client
	logger *slog.Logger
}

// oracleResponse is the oracle payload; prices are gwei
type oracleResponse struct {
	Instant  json.Number `json:"instant"`
	Fast     json.Number `json:"fast"`
	Standard json.Number `json:"standard"`
	Low      json.Number `json:"low"`
}

// NewOracleSource creates a quote source
func NewOracleSource(cfg *OracleConfig) *OracleSource {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client := cfg.HTTPClient
	if client == nil {
		client = retryablehttp.NewClient()
		client.RetryMax = cfg.RetryMax
		client.Logger = logger
		if cfg.Timeout > 0 {
			client.HTTPClient.Timeout = cfg.Timeout
		}
	}

	return &OracleSource{
		url:    cfg.URL,
		node:   cfg.Node,
		client: client,
		logger: logger,
	}
}

// Quote fetches a fresh quote; it never reuses an earlier one
func (s *OracleSource) Quote(ctx context.Context) (*Quote, error) {
	if s.url != "" {
		base, err := s.fetchOracle(ctx)
		if err == nil {
			return Bump(*base), nil
		}

		s.logger.Warn("Gas oracle unavailable, falling back to node",
			slog.String("error", err.Error()),
		)
	}

	if s.node == nil {
		return nil, fmt.Errorf("%w: no oracle or node configured", domain.ErrGasPriceUnavailable)
	}

	price, err := s.node.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGasPriceUnavailable, err)
	}
	if price == nil || price.Sign() <= 0 {
		return nil, fmt.Errorf("%w: node returned non-positive gas price", domain.ErrGasPriceUnavailable)
	}

	return Bump(BaseTiers{Instant: price, Fast: price, Standard: price, Low: price}), nil
}

func (s *OracleSource) fetchOracle(ctx context.Context) (*BaseTiers, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build oracle request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("oracle request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("oracle returned status %d", resp.StatusCode)
	}

	decoder := json.NewDecoder(io.LimitReader(resp.Body, 1<<16))
	decoder.UseNumber()

	var body oracleResponse
	if err := decoder.Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode oracle response: %w", err)
	}

	var base BaseTiers
	for _, tier := range []struct {
		name  string
		value json.Number
		dst   **big.Int
	}{
		{"instant", body.Instant, &base.Instant},
		{"fast", body.Fast, &base.Fast},
		{"standard", body.Standard, &base.Standard},
		{"low", body.Low, &base.Low},
	} {
		if tier.value == "" {
			return nil, fmt.Errorf("oracle response missing %s tier", tier.name)
		}
		wei, err := GweiToWei(tier.value.String())
		if err != nil {
			return nil, err
		}
		*tier.dst = wei
	}

	return &base, nil
}
