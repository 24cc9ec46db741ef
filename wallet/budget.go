// Package wallet implements budgets, spend permits, and gated payment
// execution for a resonator.
package wallet

import (
	"time"

	"openibank/core/types"
)

// CounterpartyConstraintKind enumerates who a permit may pay.
type CounterpartyConstraintKind int

const (
	Any CounterpartyConstraintKind = iota
	Specific
	OneOf
)

// CounterpartyConstraint restricts which counterparties a permit may pay.
type CounterpartyConstraint struct {
	Kind    CounterpartyConstraintKind
	Target  types.ResonatorId
	Allowed map[types.ResonatorId]struct{}
}

// AnyCounterparty permits payment to anyone.
func AnyCounterparty() CounterpartyConstraint {
	return CounterpartyConstraint{Kind: Any}
}

// SpecificCounterparty restricts a permit to a single counterparty.
func SpecificCounterparty(id types.ResonatorId) CounterpartyConstraint {
	return CounterpartyConstraint{Kind: Specific, Target: id}
}

// OneOfCounterparties restricts a permit to a fixed set of counterparties.
func OneOfCounterparties(ids ...types.ResonatorId) CounterpartyConstraint {
	set := make(map[types.ResonatorId]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return CounterpartyConstraint{Kind: OneOf, Allowed: set}
}

// Allows reports whether target satisfies the constraint.
func (c CounterpartyConstraint) Allows(target types.ResonatorId) bool {
	switch c.Kind {
	case Any:
		return true
	case Specific:
		return target == c.Target
	case OneOf:
		_, ok := c.Allowed[target]
		return ok
	default:
		return false
	}
}

// RefreshRule describes a budget's periodic reset, if any.
type RefreshRule struct {
	Period time.Duration
	Last   time.Time
}

// BudgetPolicy caps total spending for its owner.
type BudgetPolicy struct {
	ID                string
	Owner             types.ResonatorId
	MaxTotal          types.Amount
	SpentTotal        types.Amount
	Earmarked         types.Amount
	CounterpartyRules CounterpartyConstraint
	Refresh           *RefreshRule
}

// FreeBudget returns the amount still available to earmark against new
// permits: max_total - spent_total - earmarked.
func (b *BudgetPolicy) FreeBudget() types.Amount {
	afterSpent, err := b.MaxTotal.CheckedSub(b.SpentTotal)
	if err != nil {
		return types.Zero
	}
	free, err := afterSpent.CheckedSub(b.Earmarked)
	if err != nil {
		return types.Zero
	}
	return free
}
