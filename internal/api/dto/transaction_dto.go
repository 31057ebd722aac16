package dto

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/cuongbtq/pool-relayer/internal/relayer/domain"
	"github.com/go-playground/validator/v10"
)

var patterns = map[string]*regexp.Regexp{
	"hexaddr":          regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`),
	"bytes32":          regexp.MustCompile(`^0x[a-fA-F0-9]{64}$`),
	"proof_hex":        regexp.MustCompile(`^0x[a-fA-F0-9]{512}$`),
	"encrypted_output": regexp.MustCompile(`^0x[a-fA-F0-9]{312}$`),
	"int_string":       regexp.MustCompile(`^-?[0-9]+$`),
	"ipfs_uri":         regexp.MustCompile(`^ipfs://[123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz]+$`),
}

// RegisterValidators adds the transaction field tags to v
func RegisterValidators(v *validator.Validate) error {
	for tag, re := range patterns {
		re := re
		if err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return re.MatchString(fl.Field().String())
		}); err != nil {
			return fmt.Errorf("failed to register %s validator: %w", tag, err)
		}
	}
	return nil
}

// TransactionRequest is the body of POST /transaction
type TransactionRequest struct {
	ExtData         ExtDataRequest         `json:"extData"`
	Args            ArgsRequest            `json:"args"`
	MembershipProof MembershipProofRequest `json:"membershipProof"`
}

// ExtDataRequest is the external data committed to by args.extDataHash
type ExtDataRequest struct {
	Recipient        string `json:"recipient" binding:"required,hexaddr"`
	Relayer          string `json:"relayer" binding:"required,hexaddr"`
	Fee              string `json:"fee" binding:"required,bytes32"`
	ExtAmount        string `json:"extAmount" binding:"required,int_string"`
	EncryptedOutput1 string `json:"encryptedOutput1" binding:"required,encrypted_output"`
	EncryptedOutput2 string `json:"encryptedOutput2" binding:"required,encrypted_output"`
}

// ArgsRequest holds the pool transaction proof and its public inputs
type ArgsRequest struct {
	Proof             string   `json:"proof" binding:"required,proof_hex"`
	Root              string   `json:"root" binding:"required,bytes32"`
	InputNullifiers   []string `json:"inputNullifiers" binding:"required,min=1,dive,bytes32"`
	OutputCommitments []string `json:"outputCommitments" binding:"required,min=1,dive,bytes32"`
	PublicAmount      string   `json:"publicAmount" binding:"required,bytes32"`
	ExtDataHash       string   `json:"extDataHash" binding:"required,bytes32"`
}

// MembershipProofRequest carries the compliance proof document and the
// ipfs:// URI it must pin to
type MembershipProofRequest struct {
	URI   string          `json:"membershipProofURI" binding:"required,ipfs_uri"`
	Proof json.RawMessage `json:"proof" binding:"required"`
}

// ToDomain converts a validated request into the relay payload
func (r *TransactionRequest) ToDomain() domain.Transaction {
	return domain.Transaction{
		ExtData: domain.ExtData{
			Recipient:        r.ExtData.Recipient,
			Relayer:          r.ExtData.Relayer,
			Fee:              r.ExtData.Fee,
			ExtAmount:        r.ExtData.ExtAmount,
			EncryptedOutput1: r.ExtData.EncryptedOutput1,
			EncryptedOutput2: r.ExtData.EncryptedOutput2,
		},
		Args: domain.Args{
			Proof:             r.Args.Proof,
			Root:              r.Args.Root,
			InputNullifiers:   r.Args.InputNullifiers,
			OutputCommitments: r.Args.OutputCommitments,
			PublicAmount:      r.Args.PublicAmount,
			ExtDataHash:       r.Args.ExtDataHash,
		},
		MembershipProof: domain.MembershipProof{
			URI:      r.MembershipProof.URI,
			Document: r.MembershipProof.Proof,
		},
	}
}

// StatusResponse is the body of GET /status
type StatusResponse struct {
	RelayerAddress string `json:"relayerAddress"`
	RewardAddress  string `json:"rewardAddress"`
	ChainID        int64  `json:"chainId"`
	Version        string `json:"version"`
	Health         Health `json:"health"`
}

// Health reports whether the relayer can pay for gas
type Health struct {
	Status  bool   `json:"status"`
	Balance string `json:"balance,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ErrorResponse is the body of every 4xx/5xx response
type ErrorResponse struct {
	Error string `json:"error"`
}
