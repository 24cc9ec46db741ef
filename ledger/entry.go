// Package ledger implements the double-entry, asset-scoped, no-negative-
// balance ledger: every credit and debit is recorded as an entry tied back
// to the commitment or receipt that authorized it.
package ledger

import (
	"time"

	"openibank/core/types"
)

// Direction is one side of a double-entry.
type Direction string

const (
	Credit Direction = "Credit"
	Debit  Direction = "Debit"
)

// ReasonKind enumerates the tagged EntryReason variants.
type ReasonKind string

const (
	ReasonMint          ReasonKind = "Mint"
	ReasonBurn          ReasonKind = "Burn"
	ReasonTransfer      ReasonKind = "Transfer"
	ReasonEscrowLock    ReasonKind = "EscrowLock"
	ReasonEscrowRelease ReasonKind = "EscrowRelease"
	ReasonEscrowRefund  ReasonKind = "EscrowRefund"
)

// Reason ties an entry back to the id of the object that caused it: an
// issuer receipt for Mint/Burn, a commitment id for Transfer, or an escrow
// id for the EscrowLock/Release/Refund variants.
type Reason struct {
	Kind ReasonKind
	RefID string
}

func MintReason(issuerReceiptID string) Reason   { return Reason{Kind: ReasonMint, RefID: issuerReceiptID} }
func BurnReason(issuerReceiptID string) Reason   { return Reason{Kind: ReasonBurn, RefID: issuerReceiptID} }
func TransferReason(commitmentID string) Reason  { return Reason{Kind: ReasonTransfer, RefID: commitmentID} }
func EscrowLockReason(escrowID string) Reason    { return Reason{Kind: ReasonEscrowLock, RefID: escrowID} }
func EscrowReleaseReason(escrowID string) Reason { return Reason{Kind: ReasonEscrowRelease, RefID: escrowID} }
func EscrowRefundReason(escrowID string) Reason  { return Reason{Kind: ReasonEscrowRefund, RefID: escrowID} }

// Entry is one side of a double-entry ledger movement.
type Entry struct {
	ID            string
	Account       types.ResonatorId
	Asset         types.AssetId
	Direction     Direction
	Amount        types.Amount
	BalanceAfter  types.Amount
	Reason        Reason
	CorrelationID string
	Timestamp     time.Time
}
