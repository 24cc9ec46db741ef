package wallet

import (
	"time"

	"openibank/core/types"
)

// SpendPermit is an off-ledger capability issued against a budget.
type SpendPermit struct {
	PermitID               string
	Issuer                 types.ResonatorId
	BoundBudget            string
	AssetClass             types.AssetId
	MaxAmount              types.Amount
	Remaining              types.Amount
	CounterpartyConstraint CounterpartyConstraint
	Purpose                string
	IssuedAt               time.Time
	ExpiresAt              time.Time
	Revoked                bool
	Signature              string
}

// Expired reports whether the permit's TTL has elapsed as of now.
func (p *SpendPermit) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

// Valid reports whether the permit may still be used: not expired, not
// revoked, and with remaining capacity.
func (p *SpendPermit) Valid(now time.Time) bool {
	return !p.Revoked && !p.Expired(now) && !p.Remaining.IsZero()
}
