// Package agent implements the Buyer/Seller/Arbiter runtime: sibling roles
// sharing a small capability composition (ledger handle, resonator id,
// optional brain) rather than a class hierarchy. A brain only produces
// proposals; every proposal is validated by the guard before the agent
// turns it into a real intent submitted to the commitment gate.
package agent

import (
	"context"
	"sync"

	"openibank/core/errs"
	"openibank/core/types"
	"openibank/escrow"
	"openibank/gate"
	"openibank/guard"
	"openibank/ledger"
	"openibank/wallet"
)

// Agent is the shared composition field embedded by every role. It is
// intentionally small: a resonator identity, a ledger handle for balance
// reads, an optional brain, and the single piece of mutable state the spec
// calls out (the active commitment a role is currently working against).
type Agent struct {
	id     types.ResonatorId
	ledger *ledger.Ledger
	brain  Brain

	mu               sync.Mutex
	activeCommitment string
}

// ResonatorID returns the agent's identity.
func (a *Agent) ResonatorID() types.ResonatorId { return a.id }

// Balance reads the agent's current balance in asset via the shared ledger.
func (a *Agent) Balance(asset types.AssetId) types.Amount {
	return a.ledger.Balance(a.id, asset)
}

// SetActiveCommitment records which commitment handle this agent is
// currently working against.
func (a *Agent) SetActiveCommitment(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.activeCommitment = id
}

// ActiveCommitment returns the commitment id last set by SetActiveCommitment.
func (a *Agent) ActiveCommitment() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.activeCommitment
}

// Buyer proposes and executes payments against its own wallet.
type Buyer struct {
	Agent
	wallet      *wallet.Wallet
	guardConfig guard.Config
}

// NewBuyer constructs a buyer agent bound to its own wallet (the wallet's
// owner must equal id).
func NewBuyer(id types.ResonatorId, l *ledger.Ledger, w *wallet.Wallet, brain Brain, cfg guard.Config) *Buyer {
	return &Buyer{
		Agent:       Agent{id: id, ledger: l, brain: brain},
		wallet:      w,
		guardConfig: cfg,
	}
}

// Pay asks the brain for a payment proposal against budgetID/permitID,
// validates it through the guard, and — only if it passes — executes it
// through the wallet's gated payment path. No mutation happens unless the
// guard approves.
func (b *Buyer) Pay(ctx context.Context, runID, budgetID, permitID string) (debitEntryID, creditEntryID string, proof gate.ConsequenceProof, err error) {
	budget, ok := b.wallet.Budget(budgetID)
	if !ok {
		return "", "", gate.ConsequenceProof{}, errs.NewInvalidParameter("budget_id", "not found")
	}
	permit, ok := b.wallet.Permit(permitID)
	if !ok {
		return "", "", gate.ConsequenceProof{}, errs.NewInvalidParameter("permit_id", "not found")
	}

	raw, err := b.brain.ProposePayment(ctx, budget, permit)
	if err != nil {
		return "", "", gate.ConsequenceProof{}, err
	}
	proposal, err := guard.ValidatePayment(raw, permit, budget, b.guardConfig)
	if err != nil {
		return "", "", gate.ConsequenceProof{}, err
	}

	b.SetActiveCommitment(runID)
	return b.wallet.ExecutePayment(runID, wallet.PaymentIntent{
		Owner:    b.id,
		PermitID: permitID,
		Target:   types.ResonatorId(proposal.Target),
		Amount:   types.NewAmount(proposal.Amount),
		Asset:    types.AssetId(proposal.Asset).Normalize(),
		Purpose:  proposal.Purpose,
	})
}

// Seller proposes invoices. It never holds a wallet: the counterparty's
// budget and permit govern whether the invoice can ever be paid.
type Seller struct {
	Agent
	guardConfig guard.Config
}

// NewSeller constructs a seller agent.
func NewSeller(id types.ResonatorId, l *ledger.Ledger, brain Brain, cfg guard.Config) *Seller {
	return &Seller{Agent: Agent{id: id, ledger: l, brain: brain}, guardConfig: cfg}
}

// Invoice asks the brain for an invoice proposal and validates it through
// the guard.
func (s *Seller) Invoice(ctx context.Context) (guard.InvoiceProposal, error) {
	raw, err := s.brain.ProposeInvoice(ctx)
	if err != nil {
		return guard.InvoiceProposal{}, err
	}
	return guard.ValidateInvoice(raw, s.guardConfig)
}

// Arbiter resolves disputed escrows. Its brain examines the case and
// proposes Release, Refund, or a partial split; only Release and Refund are
// currently wired through the escrow manager (the escrow state machine
// itself does not support partial settlement).
type Arbiter struct {
	Agent
	escrowMgr   *escrow.Manager
	guardConfig guard.Config
}

// NewArbiter constructs an arbiter agent bound to the escrow manager it is
// authorized to resolve disputes in.
func NewArbiter(id types.ResonatorId, l *ledger.Ledger, mgr *escrow.Manager, brain Brain, cfg guard.Config) *Arbiter {
	return &Arbiter{Agent: Agent{id: id, ledger: l, brain: brain}, escrowMgr: mgr, guardConfig: cfg}
}

// Resolve asks the brain for a decision on a disputed escrow, validates it
// through the guard, and executes the corresponding escrow transition.
func (ar *Arbiter) Resolve(ctx context.Context, runID string, esc escrow.Escrow) (escrow.Escrow, gate.ConsequenceProof, error) {
	raw, err := ar.brain.ProposeArbiterDecision(ctx, esc)
	if err != nil {
		return escrow.Escrow{}, gate.ConsequenceProof{}, err
	}
	proposal, err := guard.ValidateArbiterDecision(raw, ar.guardConfig)
	if err != nil {
		return escrow.Escrow{}, gate.ConsequenceProof{}, err
	}

	ar.SetActiveCommitment(runID)
	switch proposal.Decision {
	case guard.DecisionRelease:
		return ar.escrowMgr.Release(runID, esc.ID, ar.id)
	case guard.DecisionRefund:
		return ar.escrowMgr.Refund(runID, esc.ID, ar.id)
	default:
		return escrow.Escrow{}, gate.ConsequenceProof{}, errs.NewInvalidParameter("decision", "partial settlement is not supported by the escrow state machine")
	}
}
