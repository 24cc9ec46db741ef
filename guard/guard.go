// Package guard validates structured proposals produced by an LLM reasoner
// before they may reach the commitment gate. Validation is a pure function
// over the proposal plus permit/budget/config: no network calls, no mutable
// external state.
package guard

import (
	"encoding/json"
	"strings"

	"openibank/core/errs"
	"openibank/core/types"
	"openibank/wallet"
)

// Config holds the guard's static validation parameters.
type Config struct {
	InjectionPatterns []string
	MaxAmount         types.Amount
}

// DefaultInjectionPatterns is the default substring denylist, matched
// case-insensitively against every text field of a proposal.
var DefaultInjectionPatterns = []string{
	"ignore",
	"bypass",
	"override",
	"disregard",
	"skip validation",
	"system prompt",
	"you are now",
}

// DefaultConfig returns a Config using DefaultInjectionPatterns and the
// given hard amount cap.
func DefaultConfig(maxAmount types.Amount) Config {
	return Config{InjectionPatterns: DefaultInjectionPatterns, MaxAmount: maxAmount}
}

// scanInjection lowercases the concatenation of fields and rejects if any
// configured pattern appears as a substring.
func scanInjection(patterns []string, fields ...string) error {
	joined := strings.ToLower(strings.Join(fields, " \n "))
	for _, pattern := range patterns {
		if strings.Contains(joined, strings.ToLower(pattern)) {
			return &injectionError{pattern: pattern}
		}
	}
	return nil
}

// injectionError names the denylisted pattern matched in a proposal's text
// fields.
type injectionError struct{ pattern string }

func (e *injectionError) Error() string { return "guard: injection detected: " + e.pattern }
func (e *injectionError) Unwrap() error { return errs.ErrInjectionDetected }

// PaymentProposal is the shape an LLM reasoner proposes for a spend.
type PaymentProposal struct {
	Target   string `json:"target"`
	Amount   uint64 `json:"amount"`
	Asset    string `json:"asset"`
	Purpose  string `json:"purpose"`
	Category string `json:"category"`
}

// ValidatePayment parses and validates a payment proposal against the
// caller's permit, budget, and guard config. It never mutates any of its
// arguments.
func ValidatePayment(raw []byte, permit wallet.SpendPermit, budget wallet.BudgetPolicy, cfg Config) (PaymentProposal, error) {
	var p PaymentProposal
	if err := json.Unmarshal(raw, &p); err != nil {
		return PaymentProposal{}, errs.ErrInvalidJSON
	}
	if p.Target == "" {
		return PaymentProposal{}, errs.NewMissingParameter("target")
	}
	if p.Asset == "" {
		return PaymentProposal{}, errs.NewMissingParameter("asset")
	}

	if err := scanInjection(cfg.InjectionPatterns, p.Target, p.Purpose, p.Category); err != nil {
		return PaymentProposal{}, err
	}

	amount := types.NewAmount(p.Amount)
	if amount.GreaterThan(permit.Remaining) {
		return PaymentProposal{}, errs.ErrAmountExceedsPermit
	}
	free, err := budget.MaxTotal.CheckedSub(budget.SpentTotal)
	if err != nil {
		free = types.Zero
	}
	if amount.GreaterThan(free) {
		return PaymentProposal{}, errs.ErrAmountExceedsBudget
	}
	if amount.GreaterThan(cfg.MaxAmount) {
		return PaymentProposal{}, errs.ErrAmountExceedsBudget
	}
	if !budget.CounterpartyRules.Allows(types.ResonatorId(p.Target)) {
		return PaymentProposal{}, errs.ErrCounterpartyNotAllowed
	}
	return p, nil
}

// InvoiceProposal is the shape an LLM reasoner proposes for a seller's
// invoice.
type InvoiceProposal struct {
	Buyer              string   `json:"buyer"`
	Amount             uint64   `json:"amount"`
	Asset              string   `json:"asset"`
	Description        string   `json:"description"`
	DeliveryConditions []string `json:"delivery_conditions"`
}

// ValidateInvoice parses and validates an invoice proposal.
func ValidateInvoice(raw []byte, cfg Config) (InvoiceProposal, error) {
	var p InvoiceProposal
	if err := json.Unmarshal(raw, &p); err != nil {
		return InvoiceProposal{}, errs.ErrInvalidJSON
	}
	if p.Buyer == "" {
		return InvoiceProposal{}, errs.NewMissingParameter("buyer")
	}

	fields := append([]string{p.Buyer, p.Description}, p.DeliveryConditions...)
	if err := scanInjection(cfg.InjectionPatterns, fields...); err != nil {
		return InvoiceProposal{}, err
	}

	amount := types.NewAmount(p.Amount)
	if amount.IsZero() {
		return InvoiceProposal{}, errs.NewInvalidParameter("amount", "must be greater than zero")
	}
	if amount.GreaterThan(cfg.MaxAmount) {
		return InvoiceProposal{}, errs.ErrAmountExceedsBudget
	}
	return p, nil
}

// ArbiterDecisionKind names what an arbiter proposal resolves to.
type ArbiterDecisionKind string

const (
	DecisionRelease ArbiterDecisionKind = "Release"
	DecisionRefund  ArbiterDecisionKind = "Refund"
	DecisionPartial ArbiterDecisionKind = "Partial"
)

// ArbiterDecisionProposal is the shape an LLM arbiter proposes to resolve a
// disputed escrow. PartialPercent is only meaningful when Decision is
// DecisionPartial, and must be in [0, 100].
type ArbiterDecisionProposal struct {
	EscrowID       string              `json:"escrow_id"`
	Decision       ArbiterDecisionKind `json:"decision"`
	PartialPercent int                 `json:"partial_percent"`
	Reasoning      string              `json:"reasoning"`
}

// ValidateArbiterDecision parses and validates an arbiter decision proposal.
func ValidateArbiterDecision(raw []byte, cfg Config) (ArbiterDecisionProposal, error) {
	var p ArbiterDecisionProposal
	if err := json.Unmarshal(raw, &p); err != nil {
		return ArbiterDecisionProposal{}, errs.ErrInvalidJSON
	}
	if p.EscrowID == "" {
		return ArbiterDecisionProposal{}, errs.NewMissingParameter("escrow_id")
	}

	if err := scanInjection(cfg.InjectionPatterns, p.EscrowID, p.Reasoning); err != nil {
		return ArbiterDecisionProposal{}, err
	}

	switch p.Decision {
	case DecisionRelease, DecisionRefund:
	case DecisionPartial:
		if p.PartialPercent < 0 || p.PartialPercent > 100 {
			return ArbiterDecisionProposal{}, errs.NewInvalidParameter("partial_percent", "must be between 0 and 100")
		}
	default:
		return ArbiterDecisionProposal{}, errs.NewInvalidParameter("decision", "unrecognized decision kind")
	}
	return p, nil
}
