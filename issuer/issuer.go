// Package issuer implements the reserve-capped stablecoin mint/burn
// authority: every mint and burn is gated by the commitment gate and
// produces a signed IssuerReceipt.
package issuer

import (
	"fmt"
	"sync"
	"time"

	"openibank/core/errs"
	"openibank/core/types"
	"openibank/crypto"
	"openibank/gate"
	"openibank/ledger"
	"openibank/receipts"
)

// Policy governs what the issuer is currently permitted to do.
type Policy struct {
	MintingEnabled        bool
	BurningEnabled        bool
	MaxSingleMint         types.Amount
	MaxSingleBurn         types.Amount
	MaxAttestationAge     time.Duration
}

// Config is the issuer's static configuration.
type Config struct {
	IssuerID   types.ResonatorId
	AssetID    types.AssetId
	Symbol     string
	Decimals   uint8
	ReserveCap types.Amount
	Policy     Policy
}

// Issuer mints and burns types.IUSD-class assets against a reserve cap.
type Issuer struct {
	cfg    Config
	vault  *crypto.Vault
	ledger *ledger.Ledger
	gate   *gate.Gate

	mu          sync.Mutex
	totalSupply types.Amount
	halted      bool
	haltReason  string
	receiptByID map[string]receipts.IssuerReceipt
}

// New constructs an issuer. vault must be derived from cfg.IssuerID.
func New(cfg Config, vault *crypto.Vault, l *ledger.Ledger, g *gate.Gate) *Issuer {
	return &Issuer{
		cfg:         cfg,
		vault:       vault,
		ledger:      l,
		gate:        g,
		receiptByID: make(map[string]receipts.IssuerReceipt),
	}
}

// TotalSupply returns the current outstanding supply.
func (iss *Issuer) TotalSupply() types.Amount {
	iss.mu.Lock()
	defer iss.mu.Unlock()
	return iss.totalSupply
}

// Halt stops both mint and burn until Resume is called.
func (iss *Issuer) Halt(reason string) {
	iss.mu.Lock()
	defer iss.mu.Unlock()
	iss.halted = true
	iss.haltReason = reason
}

// Resume clears a halt.
func (iss *Issuer) Resume() {
	iss.mu.Lock()
	defer iss.mu.Unlock()
	iss.halted = false
	iss.haltReason = ""
}

// MintIntent is the caller-supplied content for Mint.
type MintIntent struct {
	To     types.ResonatorId
	Amount types.Amount
	Reason string
}

// Mint credits to with amount new units, subject to the reserve cap and
// issuance policy, gated end to end by the commitment gate.
func (iss *Issuer) Mint(runID string, intent MintIntent) (receipts.IssuerReceipt, gate.ConsequenceProof, error) {
	if err := iss.precheckMint(intent.Amount); err != nil {
		return receipts.IssuerReceipt{}, gate.ConsequenceProof{}, err
	}

	handle, err := iss.gate.Prepare(gate.Declaration{
		RunID:             runID,
		AgentID:           string(iss.cfg.IssuerID),
		IntentDescription: fmt.Sprintf("mint %s %s to %s", intent.Amount, iss.cfg.AssetID, intent.To),
		EffectDomain:      "issuance",
		Capability:        "mint",
		Amount:            intent.Amount,
		Confidence:        1,
	})
	if err != nil {
		return receipts.IssuerReceipt{}, gate.ConsequenceProof{}, err
	}

	result, proof, err := iss.gate.ExecuteCommitted(handle, func() (any, error) {
		return iss.commitMint(intent)
	})
	if err != nil {
		return receipts.IssuerReceipt{}, gate.ConsequenceProof{}, err
	}
	return result.(receipts.IssuerReceipt), proof, nil
}

func (iss *Issuer) precheckMint(amount types.Amount) error {
	iss.mu.Lock()
	defer iss.mu.Unlock()
	if iss.halted {
		return errs.ErrIssuerHalted
	}
	if amount.IsZero() {
		return errs.NewInvalidParameter("amount", "must be non-zero")
	}
	if !iss.cfg.Policy.MintingEnabled || amount.GreaterThan(iss.cfg.Policy.MaxSingleMint) {
		return errs.ErrPolicyViolation
	}
	newSupply, err := iss.totalSupply.CheckedAdd(amount)
	if err != nil || newSupply.GreaterThan(iss.cfg.ReserveCap) {
		return errs.ErrReserveExceeded
	}
	return nil
}

// commitMint re-validates and mutates totalSupply under a single hold of the
// issuer lock, so the reserve-cap check and the ledger credit are atomic
// with respect to a concurrent Mint/Burn: nothing can observe totalSupply
// between the check and the commit.
func (iss *Issuer) commitMint(intent MintIntent) (receipts.IssuerReceipt, error) {
	iss.mu.Lock()
	if iss.halted {
		iss.mu.Unlock()
		return receipts.IssuerReceipt{}, errs.ErrIssuerHalted
	}
	newSupply, err := iss.totalSupply.CheckedAdd(intent.Amount)
	if err != nil || newSupply.GreaterThan(iss.cfg.ReserveCap) {
		iss.mu.Unlock()
		return receipts.IssuerReceipt{}, errs.ErrReserveExceeded
	}

	receiptID := types.NewUUIDID(types.KindReceipt)
	if _, _, err := iss.ledger.Mint(intent.To, iss.cfg.AssetID, intent.Amount, receiptID); err != nil {
		iss.mu.Unlock()
		return receipts.IssuerReceipt{}, err
	}
	iss.totalSupply = newSupply
	attestationHash := iss.reserveAttestationHash()
	iss.mu.Unlock()

	r := receipts.IssuerReceipt{
		ReceiptID:              receiptID,
		Operation:              receipts.Mint,
		Asset:                  iss.cfg.AssetID,
		Amount:                 intent.Amount.Units(),
		Target:                 intent.To,
		ReserveAttestationHash: attestationHash,
		PolicySnapshotHash:     iss.policySnapshotHash(),
		IssuedAt:               time.Now().UTC(),
	}
	if err := r.Sign(iss.vault); err != nil {
		return receipts.IssuerReceipt{}, err
	}

	iss.mu.Lock()
	iss.receiptByID[r.ReceiptID] = r
	iss.mu.Unlock()

	return r, nil
}

// BurnIntent is the caller-supplied content for Burn.
type BurnIntent struct {
	From   types.ResonatorId
	Amount types.Amount
	Reason string
}

// Burn debits from by amount units, decreasing total supply, gated end to
// end by the commitment gate.
func (iss *Issuer) Burn(runID string, intent BurnIntent) (receipts.IssuerReceipt, gate.ConsequenceProof, error) {
	if err := iss.precheckBurn(intent.Amount); err != nil {
		return receipts.IssuerReceipt{}, gate.ConsequenceProof{}, err
	}

	handle, err := iss.gate.Prepare(gate.Declaration{
		RunID:             runID,
		AgentID:           string(iss.cfg.IssuerID),
		IntentDescription: fmt.Sprintf("burn %s %s from %s", intent.Amount, iss.cfg.AssetID, intent.From),
		EffectDomain:      "issuance",
		Capability:        "burn",
		Amount:            intent.Amount,
		Confidence:        1,
	})
	if err != nil {
		return receipts.IssuerReceipt{}, gate.ConsequenceProof{}, err
	}

	result, proof, err := iss.gate.ExecuteCommitted(handle, func() (any, error) {
		return iss.commitBurn(intent)
	})
	if err != nil {
		return receipts.IssuerReceipt{}, gate.ConsequenceProof{}, err
	}
	return result.(receipts.IssuerReceipt), proof, nil
}

func (iss *Issuer) precheckBurn(amount types.Amount) error {
	iss.mu.Lock()
	defer iss.mu.Unlock()
	if iss.halted {
		return errs.ErrIssuerHalted
	}
	if amount.IsZero() {
		return errs.NewInvalidParameter("amount", "must be non-zero")
	}
	if !iss.cfg.Policy.BurningEnabled || amount.GreaterThan(iss.cfg.Policy.MaxSingleBurn) {
		return errs.ErrPolicyViolation
	}
	if amount.GreaterThan(iss.totalSupply) {
		return errs.ErrInsufficientSupply
	}
	return nil
}

// commitBurn holds the issuer lock across the supply check, the ledger
// debit, and the totalSupply update for the same reason as commitMint: two
// concurrent burns must not both validate against the same pre-mutation
// totalSupply.
func (iss *Issuer) commitBurn(intent BurnIntent) (receipts.IssuerReceipt, error) {
	iss.mu.Lock()
	if iss.halted {
		iss.mu.Unlock()
		return receipts.IssuerReceipt{}, errs.ErrIssuerHalted
	}
	newSupply, err := iss.totalSupply.CheckedSub(intent.Amount)
	if err != nil {
		iss.mu.Unlock()
		return receipts.IssuerReceipt{}, errs.ErrInsufficientSupply
	}

	receiptID := types.NewUUIDID(types.KindReceipt)
	if _, _, err := iss.ledger.Burn(intent.From, iss.cfg.AssetID, intent.Amount, receiptID); err != nil {
		iss.mu.Unlock()
		return receipts.IssuerReceipt{}, err
	}
	iss.totalSupply = newSupply
	attestationHash := iss.reserveAttestationHash()
	iss.mu.Unlock()

	r := receipts.IssuerReceipt{
		ReceiptID:              receiptID,
		Operation:              receipts.Burn,
		Asset:                  iss.cfg.AssetID,
		Amount:                 intent.Amount.Units(),
		Target:                 intent.From,
		ReserveAttestationHash: attestationHash,
		PolicySnapshotHash:     iss.policySnapshotHash(),
		IssuedAt:               time.Now().UTC(),
	}
	if err := r.Sign(iss.vault); err != nil {
		return receipts.IssuerReceipt{}, err
	}

	iss.mu.Lock()
	iss.receiptByID[r.ReceiptID] = r
	iss.mu.Unlock()

	return r, nil
}

// Receipt looks up a previously issued receipt by id.
func (iss *Issuer) Receipt(id string) (receipts.IssuerReceipt, bool) {
	iss.mu.Lock()
	defer iss.mu.Unlock()
	r, ok := iss.receiptByID[id]
	return r, ok
}
