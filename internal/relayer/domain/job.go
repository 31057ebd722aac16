package domain

import (
	"encoding/json"
	"time"
)

// Job is a relay request tracked from enqueue to a terminal status
type Job struct {
	ID            string      `json:"id"`
	Payload       Transaction `json:"payload"`
	Status        Status      `json:"status"`
	TxHash        string      `json:"txHash,omitempty"`
	Confirmations uint64      `json:"confirmations"`
	FailedReason  string      `json:"failedReason,omitempty"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// JobMessage represents a job message from RabbitMQ
type JobMessage struct {
	JobID       string `json:"job_id"`
	DeliveryTag uint64 `json:"-"`
}

// Transaction is the privacy pool call the relayer submits on behalf of a user
type Transaction struct {
	ExtData         ExtData         `json:"extData"`
	Args            Args            `json:"args"`
	MembershipProof MembershipProof `json:"membershipProof"`
}

// ExtData is the external data committed to by args.extDataHash
type ExtData struct {
	Recipient        string `json:"recipient"`
	Relayer          string `json:"relayer"`
	Fee              string `json:"fee"`
	ExtAmount        string `json:"extAmount"`
	EncryptedOutput1 string `json:"encryptedOutput1"`
	EncryptedOutput2 string `json:"encryptedOutput2"`
}

// Args are the transfer proof and its public inputs
type Args struct {
	Proof             string   `json:"proof"`
	Root              string   `json:"root"`
	InputNullifiers   []string `json:"inputNullifiers"`
	OutputCommitments []string `json:"outputCommitments"`
	PublicAmount      string   `json:"publicAmount"`
	ExtDataHash       string   `json:"extDataHash"`
}

// MembershipProof points at the pinned compliance proof and carries the
// document itself so the relayer can verify and pin it
type MembershipProof struct {
	URI      string          `json:"membershipProofURI"`
	Document json.RawMessage `json:"proof,omitempty"`
}

// ComplianceProof is the parsed compliance proof document
type ComplianceProof struct {
	Proof                      string `json:"proof"`
	TxRecordsMerkleRoot        string `json:"txRecordsMerkleRoot"`
	AllowedTxRecordsMerkleRoot string `json:"allowedTxRecordsMerkleRoot"`
}
