package agent

import (
	"context"

	"openibank/escrow"
	"openibank/wallet"
)

// Brain is the decision-making component of an agent. It never calls a
// mutating API directly: it only produces a typed proposal, which the
// caller must run through the guard before translating into a real gate
// intent. A Brain may be backed by a deterministic policy or by an LLM; the
// runtime does not care which.
type Brain interface {
	ProposePayment(ctx context.Context, budget wallet.BudgetPolicy, permit wallet.SpendPermit) ([]byte, error)
	ProposeInvoice(ctx context.Context) ([]byte, error)
	ProposeArbiterDecision(ctx context.Context, esc escrow.Escrow) ([]byte, error)
}

// DeterministicBrain returns fixed, pre-canned proposals. Used for agents
// whose behavior is policy-driven rather than model-driven, and in tests.
type DeterministicBrain struct {
	PaymentProposal         []byte
	InvoiceProposal         []byte
	ArbiterDecisionProposal []byte
}

func (b *DeterministicBrain) ProposePayment(context.Context, wallet.BudgetPolicy, wallet.SpendPermit) ([]byte, error) {
	return b.PaymentProposal, nil
}

func (b *DeterministicBrain) ProposeInvoice(context.Context) ([]byte, error) {
	return b.InvoiceProposal, nil
}

func (b *DeterministicBrain) ProposeArbiterDecision(context.Context, escrow.Escrow) ([]byte, error) {
	return b.ArbiterDecisionProposal, nil
}
