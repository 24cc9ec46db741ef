// Package escrow implements the conditional-settlement state machine:
// Created -> Locked -> (Released | Refunded | Disputed -> (Released |
// Refunded)). Only the payer (amicable release) or the arbiter (post-
// dispute) may release; the payee may never self-release.
package escrow

import (
	"fmt"
	"sync"
	"time"

	"openibank/core/errs"
	"openibank/core/types"
	"openibank/gate"
	"openibank/ledger"
)

// State names a point in the escrow lifecycle.
type State string

const (
	Created  State = "Created"
	Locked   State = "Locked"
	Disputed State = "Disputed"
	Released State = "Released"
	Refunded State = "Refunded"
)

// Escrow is a locked-balance account gating final settlement on delivery or
// arbitration.
type Escrow struct {
	ID              string
	Payer           types.ResonatorId
	Payee           types.ResonatorId
	Asset           types.AssetId
	Amount          types.Amount
	State           State
	CreatedAt       time.Time
	ReleasedAt      *time.Time
	RefundedAt      *time.Time
	LinkedInvoiceID string
	LinkedPermitID  string
}

// account is the escrow's own ledger counterparty: the account that holds
// the locked balance between creation and final settlement.
func (e *Escrow) account() types.ResonatorId {
	return types.ResonatorId(fmt.Sprintf("escrow_%s", e.ID))
}

// Case is returned by Dispute; it names the escrow under arbitration.
type Case struct {
	EscrowID  string
	Initiator types.ResonatorId
	OpenedAt  time.Time
}

// Manager owns the escrow subsystem's state and the single arbiter
// resonator id authorized to resolve disputes.
type Manager struct {
	ledger  *ledger.Ledger
	gate    *gate.Gate
	arbiter types.ResonatorId

	mu      sync.Mutex
	escrows map[string]*Escrow
}

// New constructs an escrow manager with the given arbiter resonator id.
func New(l *ledger.Ledger, g *gate.Gate, arbiter types.ResonatorId) *Manager {
	return &Manager{
		ledger:  l,
		gate:    g,
		arbiter: arbiter,
		escrows: make(map[string]*Escrow),
	}
}

// Get returns a copy-safe snapshot of an escrow's current state.
func (m *Manager) Get(id string) (Escrow, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.escrows[id]
	if !ok {
		return Escrow{}, false
	}
	return *e, true
}

// Create debits amount from payer and locks it in the escrow's own account.
// On insufficient balance the escrow is never created and no debit occurs.
func (m *Manager) Create(runID string, payer, payee types.ResonatorId, asset types.AssetId, amount types.Amount, linkedInvoiceID string) (Escrow, gate.ConsequenceProof, error) {
	id := types.NewUUIDID(types.KindEscrow)
	esc := &Escrow{
		ID:              id,
		Payer:           payer,
		Payee:           payee,
		Asset:           asset,
		Amount:          amount,
		State:           Created,
		CreatedAt:       time.Now().UTC(),
		LinkedInvoiceID: linkedInvoiceID,
	}

	handle, err := m.gate.Prepare(gate.Declaration{
		RunID:             runID,
		AgentID:           string(payer),
		IntentDescription: fmt.Sprintf("escrow %s %s from %s to %s", amount, asset, payer, payee),
		EffectDomain:      "escrow",
		Capability:        "escrow.create",
		Amount:            amount,
		Confidence:        1,
	})
	if err != nil {
		return Escrow{}, gate.ConsequenceProof{}, err
	}

	result, proof, err := m.gate.ExecuteCommitted(handle, func() (any, error) {
		_, _, err := m.ledger.Debit(payer, asset, amount, ledger.EscrowLockReason(id), id)
		if err != nil {
			return nil, err
		}
		if _, _, err := m.ledger.Credit(esc.account(), asset, amount, ledger.EscrowLockReason(id), id); err != nil {
			return nil, err
		}
		esc.State = Locked
		m.mu.Lock()
		m.escrows[id] = esc
		m.mu.Unlock()
		return *esc, nil
	})
	if err != nil {
		return Escrow{}, gate.ConsequenceProof{}, err
	}
	return result.(Escrow), proof, nil
}

// Dispute transitions a Locked escrow to Disputed. Either party may open a
// dispute.
func (m *Manager) Dispute(id string, initiator types.ResonatorId) (Case, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	esc, ok := m.escrows[id]
	if !ok {
		return Case{}, errs.NewInvalidParameter("escrow_id", "not found")
	}
	if initiator != esc.Payer && initiator != esc.Payee {
		return Case{}, errs.ErrUnauthorized
	}
	if esc.State != Locked {
		return Case{}, errs.NewInvalidParameter("state", "escrow is not locked")
	}
	esc.State = Disputed
	return Case{EscrowID: id, Initiator: initiator, OpenedAt: time.Now().UTC()}, nil
}

// Release credits payee and transitions the escrow to Released. caller must
// be the payer (amicable release from Locked) or the arbiter (resolving a
// Disputed case). The payee may never self-release.
func (m *Manager) Release(runID, id string, caller types.ResonatorId) (Escrow, gate.ConsequenceProof, error) {
	if err := m.authorizeRelease(id, caller); err != nil {
		return Escrow{}, gate.ConsequenceProof{}, err
	}

	handle, err := m.gate.Prepare(gate.Declaration{
		RunID:             runID,
		AgentID:           string(caller),
		IntentDescription: fmt.Sprintf("release escrow %s", id),
		EffectDomain:      "escrow",
		Capability:        "escrow.release",
		Confidence:        1,
	})
	if err != nil {
		return Escrow{}, gate.ConsequenceProof{}, err
	}

	result, proof, err := m.gate.ExecuteCommitted(handle, func() (any, error) {
		if err := m.authorizeRelease(id, caller); err != nil {
			return nil, err
		}
		m.mu.Lock()
		esc := m.escrows[id]
		m.mu.Unlock()

		if _, _, err := m.ledger.Debit(esc.account(), esc.Asset, esc.Amount, ledger.EscrowReleaseReason(id), id); err != nil {
			return nil, err
		}
		if _, _, err := m.ledger.Credit(esc.Payee, esc.Asset, esc.Amount, ledger.EscrowReleaseReason(id), id); err != nil {
			return nil, err
		}

		m.mu.Lock()
		now := time.Now().UTC()
		esc.State = Released
		esc.ReleasedAt = &now
		m.mu.Unlock()
		return *esc, nil
	})
	if err != nil {
		return Escrow{}, gate.ConsequenceProof{}, err
	}
	return result.(Escrow), proof, nil
}

func (m *Manager) authorizeRelease(id string, caller types.ResonatorId) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	esc, ok := m.escrows[id]
	if !ok {
		return errs.NewInvalidParameter("escrow_id", "not found")
	}
	if caller == esc.Payee {
		return errs.ErrUnauthorized
	}
	switch esc.State {
	case Locked:
		if caller != esc.Payer {
			return errs.ErrUnauthorized
		}
	case Disputed:
		if caller != m.arbiter {
			return errs.ErrUnauthorized
		}
	default:
		return errs.NewInvalidParameter("state", "escrow is not releasable")
	}
	return nil
}

// Refund credits payer and transitions the escrow to Refunded. caller must
// be the arbiter, or the payer expressing consent.
func (m *Manager) Refund(runID, id string, caller types.ResonatorId) (Escrow, gate.ConsequenceProof, error) {
	if err := m.authorizeRefund(id, caller); err != nil {
		return Escrow{}, gate.ConsequenceProof{}, err
	}

	handle, err := m.gate.Prepare(gate.Declaration{
		RunID:             runID,
		AgentID:           string(caller),
		IntentDescription: fmt.Sprintf("refund escrow %s", id),
		EffectDomain:      "escrow",
		Capability:        "escrow.refund",
		Confidence:        1,
	})
	if err != nil {
		return Escrow{}, gate.ConsequenceProof{}, err
	}

	result, proof, err := m.gate.ExecuteCommitted(handle, func() (any, error) {
		if err := m.authorizeRefund(id, caller); err != nil {
			return nil, err
		}
		m.mu.Lock()
		esc := m.escrows[id]
		m.mu.Unlock()

		if _, _, err := m.ledger.Debit(esc.account(), esc.Asset, esc.Amount, ledger.EscrowRefundReason(id), id); err != nil {
			return nil, err
		}
		if _, _, err := m.ledger.Credit(esc.Payer, esc.Asset, esc.Amount, ledger.EscrowRefundReason(id), id); err != nil {
			return nil, err
		}

		m.mu.Lock()
		now := time.Now().UTC()
		esc.State = Refunded
		esc.RefundedAt = &now
		m.mu.Unlock()
		return *esc, nil
	})
	if err != nil {
		return Escrow{}, gate.ConsequenceProof{}, err
	}
	return result.(Escrow), proof, nil
}

func (m *Manager) authorizeRefund(id string, caller types.ResonatorId) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	esc, ok := m.escrows[id]
	if !ok {
		return errs.NewInvalidParameter("escrow_id", "not found")
	}
	if caller == esc.Payee {
		return errs.ErrUnauthorized
	}
	if caller != m.arbiter && caller != esc.Payer {
		return errs.ErrUnauthorized
	}
	switch esc.State {
	case Locked, Disputed:
		return nil
	default:
		return errs.NewInvalidParameter("state", "escrow is not refundable")
	}
}
