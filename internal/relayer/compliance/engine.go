package compliance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/hashicorp/go-retryablehttp"
)

// PublicParams are the folding scheme parameters, read once at startup
type PublicParams struct {
	// ID is the keccak256 of Raw, used to address the parameters remotely
	ID  string
	Raw []byte
}

// LoadPublicParams reads the parameter file
func LoadPublicParams(path string) (*PublicParams, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read public params: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("public params file %s is empty", path)
	}

	return &PublicParams{
		ID:  crypto.Keccak256Hash(raw).Hex(),
		Raw: raw,
	}, nil
}

// StartState is the initial state descriptor handed to the verifier
type StartState struct {
	StepIn []*big.Int
}

// Engine verifies a folded proof and returns its little-endian output digest
type Engine interface {
	Verify(ctx context.Context, params *PublicParams, proof []byte, start StartState) ([]byte, error)
}

// HTTPEngineConfig holds verifier service configuration
type HTTPEngineConfig struct {
	URL      string
	Timeout  time.Duration
	RetryMax int
	Logger   *slog.Logger
}

// HTTPEngine calls an out-of-process verifier service
type HTTPEngine struct {
	url    string
	client *retryablehttp.Client
}

type verifyRequest struct {
	ParamsID string   `json:"params_id"`
	Proof    string   `json:"proof"`
	StepIn   []string `json:"step_in"`
}

type verifyResponse struct {
	Output string `json:"output"`
	Error  string `json:"error,omitempty"`
}

// NewHTTPEngine creates a verifier service client
func NewHTTPEngine(cfg *HTTPEngineConfig) *HTTPEngine {
	client := retryablehttp.NewClient()
	client.RetryMax = cfg.RetryMax
	if cfg.Logger != nil {
		client.Logger = cfg.Logger
	}
	if cfg.Timeout > 0 {
		client.HTTPClient.Timeout = cfg.Timeout
	}

	return &HTTPEngine{url: cfg.URL, client: client}
}

// Verify posts the proof and start state and decodes the output digest
func (e *HTTPEngine) Verify(ctx context.Context, params *PublicParams, proof []byte, start StartState) ([]byte, error) {
	stepIn := make([]string, len(start.StepIn))
	for i, v := range start.StepIn {
		stepIn[i] = hexutil.EncodeBig(v)
	}

	body, err := json.Marshal(verifyRequest{
		ParamsID: params.ID,
		Proof:    hexutil.Encode(proof),
		StepIn:   stepIn,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode verify request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("verifier request failed: %w", err)
	}
	defer resp.Body.Close()

	var out verifyResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode verifier response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || out.Error != "" {
		return nil, fmt.Errorf("verifier rejected proof (status %d): %s", resp.StatusCode, out.Error)
	}

	digest, err := hexutil.Decode(out.Output)
	if err != nil {
		return nil, fmt.Errorf("malformed verifier output: %w", err)
	}
	return digest, nil
}
