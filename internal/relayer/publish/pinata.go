package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// DefaultPinataURL is the Pinata JSON pinning endpoint
const DefaultPinataURL = "https://api.pinata.cloud/pinning/pinJSONToIPFS"

// Metadata names pinned content
type Metadata struct {
	Name string `json:"name"`
}

// Store is a content-addressed store
type Store interface {
	Put(ctx context.Context, payload json.RawMessage, metadata Metadata) (string, error)
}

// PinataConfig holds Pinata client configuration
type PinataConfig struct {
	URL       string
	APIKey    string
	SecretKey string
	Timeout   time.Duration
	Logger    *slog.Logger
}

// PinataStore pins JSON documents through the Pinata API
type PinataStore struct {
	url       string
	apiKey    string
	secretKey string
	client    *retryablehttp.Client
}

type pinRequest struct {
	Content  json.RawMessage `json:"pinataContent"`
	Metadata Metadata        `json:"pinataMetadata"`
	Options  pinOptions      `json:"pinataOptions"`
}

type pinOptions struct {
	CIDVersion int `json:"cidVersion"`
}

type pinResponse struct {
	IpfsHash string `json:"IpfsHash"`
}

// NewPinataStore creates a Pinata client. Transport failures are not retried
// here; the job is retried as a whole.
func NewPinataStore(cfg *PinataConfig) *PinataStore {
	url := cfg.URL
	if url == "" {
		url = DefaultPinataURL
	}

	client := retryablehttp.NewClient()
	client.RetryMax = 0
	if cfg.Logger != nil {
		client.Logger = cfg.Logger
	}
	if cfg.Timeout > 0 {
		client.HTTPClient.Timeout = cfg.Timeout
	}

	return &PinataStore{
		url:       url,
		apiKey:    cfg.APIKey,
		secretKey: cfg.SecretKey,
		client:    client,
	}
}

// Put pins payload as JSON and returns its CIDv0
func (s *PinataStore) Put(ctx context.Context, payload json.RawMessage, metadata Metadata) (string, error) {
	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	enc.SetEscapeHTML(false)
	err := enc.Encode(pinRequest{
		Content:  payload,
		Metadata: metadata,
		Options:  pinOptions{CIDVersion: 0},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode pin request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body.Bytes()))
	if err != nil {
		return "", fmt.Errorf("failed to build pin request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("pinata_api_key", s.apiKey)
	req.Header.Set("pinata_secret_api_key", s.secretKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("pin request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
		return "", fmt.Errorf("pinata returned status %d", resp.StatusCode)
	}

	var out pinResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode pin response: %w", err)
	}
	if out.IpfsHash == "" {
		return "", fmt.Errorf("pin response has no IpfsHash")
	}

	return out.IpfsHash, nil
}
