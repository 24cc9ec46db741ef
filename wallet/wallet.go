package wallet

import (
	"fmt"
	"sync"
	"time"

	"openibank/core/errs"
	"openibank/core/types"
	"openibank/gate"
	"openibank/ledger"
)

// Wallet holds one resonator's budgets and outstanding spend permits. It
// does not itself hold balances — the ledger is the single source of truth
// for balances — but it owns the policy objects that gate spending from
// those balances.
type Wallet struct {
	owner  types.ResonatorId
	ledger *ledger.Ledger
	gate   *gate.Gate

	mu      sync.Mutex
	budgets map[string]*BudgetPolicy
	permits map[string]*SpendPermit
}

// New constructs an empty wallet for owner.
func New(owner types.ResonatorId, l *ledger.Ledger, g *gate.Gate) *Wallet {
	return &Wallet{
		owner:   owner,
		ledger:  l,
		gate:    g,
		budgets: make(map[string]*BudgetPolicy),
		permits: make(map[string]*SpendPermit),
	}
}

// CreateBudget registers a new budget policy for this wallet and returns its
// id.
func (w *Wallet) CreateBudget(maxTotal types.Amount, rules CounterpartyConstraint) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	id := types.NewUUIDID("budget")
	w.budgets[id] = &BudgetPolicy{
		ID:                id,
		Owner:             w.owner,
		MaxTotal:          maxTotal,
		CounterpartyRules: rules,
	}
	return id
}

// Budget returns a copy-safe snapshot of the budget's current state.
func (w *Wallet) Budget(budgetID string) (BudgetPolicy, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	b, ok := w.budgets[budgetID]
	if !ok {
		return BudgetPolicy{}, false
	}
	return *b, true
}

// IssuePermit issues a SpendPermit against budgetID. It fails if maxAmount
// exceeds the budget's free capacity (max_total - spent_total - already
// earmarked permits); on success the earmark is reserved immediately, so
// cumulative outstanding permits can never exceed the budget.
func (w *Wallet) IssuePermit(budgetID string, maxAmount types.Amount, assetClass types.AssetId, constraint CounterpartyConstraint, purpose string, ttl time.Duration) (*SpendPermit, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	budget, ok := w.budgets[budgetID]
	if !ok {
		return nil, errs.NewInvalidParameter("budget_id", "not found")
	}
	if maxAmount.GreaterThan(budget.FreeBudget()) {
		return nil, errs.ErrBudgetExceeded
	}

	now := time.Now().UTC()
	permit := &SpendPermit{
		PermitID:               types.NewUUIDID(types.KindPermit),
		Issuer:                 w.owner,
		BoundBudget:            budgetID,
		AssetClass:             assetClass,
		MaxAmount:              maxAmount,
		Remaining:              maxAmount,
		CounterpartyConstraint: constraint,
		Purpose:                purpose,
		IssuedAt:               now,
		ExpiresAt:              now.Add(ttl),
	}
	budget.Earmarked, _ = budget.Earmarked.CheckedAdd(maxAmount)
	w.permits[permit.PermitID] = permit

	out := *permit
	return &out, nil
}

// RevokePermit marks a permit invalid and releases its remaining earmark
// back to the bound budget's free capacity.
func (w *Wallet) RevokePermit(permitID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	permit, ok := w.permits[permitID]
	if !ok {
		return errs.NewInvalidParameter("permit_id", "not found")
	}
	if permit.Revoked {
		return nil
	}
	permit.Revoked = true
	if budget, ok := w.budgets[permit.BoundBudget]; ok {
		budget.Earmarked, _ = budget.Earmarked.CheckedSub(permit.Remaining)
	}
	return nil
}

// Permit returns a copy-safe snapshot of a permit's current state.
func (w *Wallet) Permit(permitID string) (SpendPermit, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	p, ok := w.permits[permitID]
	if !ok {
		return SpendPermit{}, false
	}
	return *p, true
}

// PaymentIntent is the caller-supplied content for ExecutePayment.
type PaymentIntent struct {
	Owner    types.ResonatorId
	PermitID string
	Target   types.ResonatorId
	Amount   types.Amount
	Asset    types.AssetId
	Purpose  string
}

// ExecutePayment validates the permit (ownership, expiry, revocation,
// remaining capacity, counterparty constraint), then debits owner and
// credits target through an atomic ledger transfer, all behind the
// commitment gate. On any validation failure, fail-closed: no ledger entry
// is produced and no permit/budget state changes.
func (w *Wallet) ExecutePayment(runID string, intent PaymentIntent) (debitEntryID, creditEntryID string, proof gate.ConsequenceProof, err error) {
	if err := w.validatePayment(intent); err != nil {
		return "", "", gate.ConsequenceProof{}, err
	}

	handle, err := w.gate.Prepare(gate.Declaration{
		RunID:             runID,
		AgentID:           string(intent.Owner),
		IntentDescription: fmt.Sprintf("pay %s %s to %s", intent.Amount, intent.Asset, intent.Target),
		EffectDomain:      "payment",
		Capability:        "spend",
		Amount:            intent.Amount,
		Confidence:        1,
	})
	if err != nil {
		return "", "", gate.ConsequenceProof{}, err
	}

	type result struct{ debitID, creditID string }
	r, proof, err := w.gate.ExecuteCommitted(handle, func() (any, error) {
		// Re-validate atomically with the mutation to close the race
		// between validatePayment and this closure running.
		if err := w.validatePayment(intent); err != nil {
			return nil, err
		}
		debitID, creditID, err := w.ledger.Transfer(intent.Owner, intent.Target, intent.Asset, intent.Amount, handle.ID)
		if err != nil {
			return nil, err
		}
		w.mu.Lock()
		permit := w.permits[intent.PermitID]
		permit.Remaining, _ = permit.Remaining.CheckedSub(intent.Amount)
		if budget, ok := w.budgets[permit.BoundBudget]; ok {
			budget.SpentTotal, _ = budget.SpentTotal.CheckedAdd(intent.Amount)
			budget.Earmarked, _ = budget.Earmarked.CheckedSub(intent.Amount)
		}
		w.mu.Unlock()
		return result{debitID, creditID}, nil
	})
	if err != nil {
		return "", "", gate.ConsequenceProof{}, err
	}
	res := r.(result)
	return res.debitID, res.creditID, proof, nil
}

func (w *Wallet) validatePayment(intent PaymentIntent) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	permit, ok := w.permits[intent.PermitID]
	if !ok {
		return errs.NewInvalidParameter("permit_id", "not found")
	}
	if permit.Issuer != intent.Owner {
		return errs.ErrUnauthorized
	}
	now := time.Now().UTC()
	if permit.Revoked {
		return errs.ErrPermitExpired
	}
	if permit.Expired(now) {
		return errs.ErrPermitExpired
	}
	if intent.Amount.GreaterThan(permit.Remaining) {
		return errs.ErrPermitExceeded
	}
	if !permit.CounterpartyConstraint.Allows(intent.Target) {
		return errs.ErrPermitCounterpartyMismatch
	}
	return nil
}
