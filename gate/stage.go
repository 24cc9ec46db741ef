// Package gate implements the commitment gate: the ordered multi-stage
// adjudication pipeline that every state-changing operation (mint, burn,
// transfer, escrow) must pass before it may execute.
package gate

import (
	"context"

	"openibank/core/types"
)

// StageContext carries the declaration under adjudication plus whatever
// enrichment earlier stages attach for later ones to consult.
type StageContext struct {
	AgentID            string
	IntentDescription  string
	IntentHash         [32]byte
	EffectDomain       string
	Capability         string
	Amount             types.Amount
	Confidence         float64
	RiskThreshold      float64
	RequiredCosigners  int

	RiskScore    float64
	Cosigned     bool
	Extra        map[string]any
}

// Outcome is what a single stage decided.
type Outcome int

const (
	OutcomeApproved Outcome = iota
	OutcomeDenied
	OutcomeDeferred
)

// Decision is the result of evaluating one stage.
type Decision struct {
	Outcome Outcome
	Reason  string
}

func Approved() Decision                { return Decision{Outcome: OutcomeApproved} }
func Denied(reason string) Decision     { return Decision{Outcome: OutcomeDenied, Reason: reason} }
func Deferred(reason string) Decision   { return Decision{Outcome: OutcomeDeferred, Reason: reason} }

// Stage is one step of the commitment gate pipeline. Stages run in the
// canonical order declared by Gate's configuration; a stage may enrich the
// StageContext for subsequent stages but must not skip ahead.
type Stage interface {
	Name() string
	Evaluate(ctx context.Context, sc *StageContext) (Decision, error)
}
