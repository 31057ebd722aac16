// Package publish pins compliance proofs and checks the resulting CID
// against the one committed to by the transaction.
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cuongbtq/pool-relayer/internal/relayer/domain"
	"github.com/ipfs/go-cid"
)

// URIScheme prefixes content ids in membershipProofURI
const URIScheme = "ipfs://"

// ProofDocumentName is the metadata name of every pinned proof
const ProofDocumentName = "proof.json"

// Publisher uploads proof documents to a content-addressed store
type Publisher struct {
	store  Store
	logger *slog.Logger
}

// NewPublisher creates a proof publisher
func NewPublisher(store Store, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{store: store, logger: logger}
}

// ParseURI extracts the CID from an ipfs:// URI
func ParseURI(uri string) (cid.Cid, error) {
	id, ok := strings.CutPrefix(uri, URIScheme)
	if !ok {
		return cid.Undef, fmt.Errorf("uri %q is not an %s uri", uri, URIScheme)
	}
	return cid.Decode(id)
}

// Publish pins doc and returns its content id if URIScheme+id equals claimedURI.
// The document is pinned with its key order and number literals as submitted.
func (p *Publisher) Publish(ctx context.Context, doc json.RawMessage, claimedURI string) (string, error) {
	if !json.Valid(doc) {
		return "", fmt.Errorf("%w: proof document is not json", domain.ErrUploadFailed)
	}

	var payload bytes.Buffer
	if err := json.Compact(&payload, doc); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUploadFailed, err)
	}

	id, err := p.store.Put(ctx, json.RawMessage(payload.Bytes()), Metadata{Name: ProofDocumentName})
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUploadFailed, err)
	}

	if _, err := cid.Decode(id); err != nil {
		return "", fmt.Errorf("%w: store returned malformed cid %q", domain.ErrUploadFailed, id)
	}

	if URIScheme+id != claimedURI {
		p.logger.Warn("Pinned proof CID differs from membership proof uri",
			slog.String("cid", id),
			slog.String("claimed_uri", claimedURI),
		)
		return "", fmt.Errorf("%w: got %s%s", domain.ErrCidMismatch, URIScheme, id)
	}

	p.logger.Debug("Membership proof pinned", slog.String("cid", id))
	return id, nil
}
