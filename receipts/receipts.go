// Package receipts defines the signed attestations the core produces for
// every mint/burn and every gated commitment, plus the canonical
// serialization and verification helpers shared by both.
package receipts

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"openibank/core/types"
	"openibank/crypto"
)

// Operation names a mint or a burn.
type Operation string

const (
	Mint Operation = "Mint"
	Burn Operation = "Burn"
)

// IssuerReceipt attests to a single mint or burn.
type IssuerReceipt struct {
	ReceiptID              string          `json:"receipt_id"`
	Operation              Operation       `json:"operation"`
	Asset                  types.AssetId   `json:"asset"`
	Amount                 uint64          `json:"amount"`
	Target                 types.ResonatorId `json:"target"`
	ReserveAttestationHash string          `json:"reserve_attestation_hash"`
	PolicySnapshotHash     string          `json:"policy_snapshot_hash"`
	IssuedAt               time.Time       `json:"issued_at"`
	Signature              string          `json:"signature"`
	SignerPublicKey        string          `json:"signer_public_key"`
}

func (r IssuerReceipt) signingBytes() ([]byte, error) {
	unsigned := r
	unsigned.Signature = ""
	unsigned.SignerPublicKey = ""
	return json.Marshal(unsigned)
}

// Sign computes the signature and signer public key fields in place, signing
// the canonical serialization of every other field with vault's ed25519 key.
func (r *IssuerReceipt) Sign(vault *crypto.Vault) error {
	msg, err := r.signingBytes()
	if err != nil {
		return fmt.Errorf("receipts: marshal issuer receipt: %w", err)
	}
	sig := vault.SignEd25519(msg)
	r.Signature = hex.EncodeToString(sig)
	r.SignerPublicKey = hex.EncodeToString(vault.Ed25519PublicKey())
	return nil
}

// Verify reports whether the receipt's signature is valid over its
// non-signature fields under its declared signer public key.
func (r IssuerReceipt) Verify() bool {
	pubBytes, err := hex.DecodeString(r.SignerPublicKey)
	if err != nil || len(pubBytes) != ed25519.PublicKeySize {
		return false
	}
	sigBytes, err := hex.DecodeString(r.Signature)
	if err != nil {
		return false
	}
	msg, err := r.signingBytes()
	if err != nil {
		return false
	}
	return crypto.VerifyEd25519(ed25519.PublicKey(pubBytes), msg, sigBytes)
}

// ConsequenceRef names what a commitment's consequence actually was.
type ConsequenceRef struct {
	ConsequenceType string            `json:"consequence_type"`
	ReferenceID     string            `json:"reference_id"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// CommitmentReceipt attests to the consequence of a gated commitment.
type CommitmentReceipt struct {
	CommitmentID       string            `json:"commitment_id"`
	Actor              string            `json:"actor"`
	IntentHash         string            `json:"intent_hash"`
	PolicySnapshotHash string            `json:"policy_snapshot_hash"`
	EvidenceHash       string            `json:"evidence_hash"`
	ConsequenceRef     ConsequenceRef    `json:"consequence_ref"`
	CommittedAt        time.Time         `json:"committed_at"`
	Signature          string            `json:"signature"`
	SignerPublicKey    string            `json:"signer_public_key"`
}

func (r CommitmentReceipt) signingBytes() ([]byte, error) {
	unsigned := r
	unsigned.Signature = ""
	unsigned.SignerPublicKey = ""
	return json.Marshal(unsigned)
}

// Sign computes the signature and signer public key fields in place.
func (r *CommitmentReceipt) Sign(vault *crypto.Vault) error {
	msg, err := r.signingBytes()
	if err != nil {
		return fmt.Errorf("receipts: marshal commitment receipt: %w", err)
	}
	sig := vault.SignEd25519(msg)
	r.Signature = hex.EncodeToString(sig)
	r.SignerPublicKey = hex.EncodeToString(vault.Ed25519PublicKey())
	return nil
}

// Verify reports whether the receipt's signature is valid.
func (r CommitmentReceipt) Verify() bool {
	pubBytes, err := hex.DecodeString(r.SignerPublicKey)
	if err != nil || len(pubBytes) != ed25519.PublicKeySize {
		return false
	}
	sigBytes, err := hex.DecodeString(r.Signature)
	if err != nil {
		return false
	}
	msg, err := r.signingBytes()
	if err != nil {
		return false
	}
	return crypto.VerifyEd25519(ed25519.PublicKey(pubBytes), msg, sigBytes)
}
