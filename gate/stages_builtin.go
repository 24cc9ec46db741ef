package gate

import "context"

// DeclarationStage validates syntactic well-formedness and the minimum
// confidence threshold the declarer attached to its intent.
type DeclarationStage struct {
	MinConfidence float64
}

func (DeclarationStage) Name() string { return "declaration" }

func (s DeclarationStage) Evaluate(_ context.Context, sc *StageContext) (Decision, error) {
	if sc.AgentID == "" {
		return Denied("missing agent id"), nil
	}
	if sc.IntentDescription == "" {
		return Denied("missing intent description"), nil
	}
	if sc.Confidence < s.MinConfidence {
		return Denied("confidence below minimum threshold"), nil
	}
	return Approved(), nil
}

// IdentityManager verifies that the declared actor identity is bound to the
// worldline/run it claims to act within.
type IdentityManager interface {
	VerifyIdentity(agentID string, intentHash [32]byte) error
}

// IdentityBindingStage verifies the declared actor identity.
type IdentityBindingStage struct {
	Identity IdentityManager
}

func (IdentityBindingStage) Name() string { return "identity" }

func (s IdentityBindingStage) Evaluate(_ context.Context, sc *StageContext) (Decision, error) {
	if s.Identity == nil {
		return Approved(), nil
	}
	if err := s.Identity.VerifyIdentity(sc.AgentID, sc.IntentHash); err != nil {
		return Denied(err.Error()), nil
	}
	return Approved(), nil
}

// CapabilityProvider reports whether an actor holds a capability within an
// effect domain.
type CapabilityProvider interface {
	HasCapability(agentID, capability, effectDomain string) (bool, error)
}

// CapabilityStage verifies the declared capability is granted to the actor.
type CapabilityStage struct {
	Capabilities CapabilityProvider
}

func (CapabilityStage) Name() string { return "capability" }

func (s CapabilityStage) Evaluate(_ context.Context, sc *StageContext) (Decision, error) {
	if s.Capabilities == nil {
		return Approved(), nil
	}
	ok, err := s.Capabilities.HasCapability(sc.AgentID, sc.Capability, sc.EffectDomain)
	if err != nil {
		return Decision{}, err
	}
	if !ok {
		return Denied("capability not granted in effect domain"), nil
	}
	return Approved(), nil
}

// PolicyVerdict is what a PolicyProvider decided.
type PolicyVerdict int

const (
	PolicyApprove PolicyVerdict = iota
	PolicyDeny
	PolicyDefer
)

// PolicyProvider consults external policy for a declaration; it may approve,
// deny, or defer.
type PolicyProvider interface {
	Evaluate(ctx context.Context, sc *StageContext) (PolicyVerdict, string, error)
}

// PolicyStage wraps a PolicyProvider.
type PolicyStage struct {
	Policy PolicyProvider
}

func (PolicyStage) Name() string { return "policy" }

func (s PolicyStage) Evaluate(ctx context.Context, sc *StageContext) (Decision, error) {
	if s.Policy == nil {
		return Approved(), nil
	}
	verdict, reason, err := s.Policy.Evaluate(ctx, sc)
	if err != nil {
		return Decision{}, err
	}
	switch verdict {
	case PolicyApprove:
		return Approved(), nil
	case PolicyDefer:
		return Deferred(reason), nil
	default:
		return Denied(reason), nil
	}
}

// RiskScorer computes a risk score in [0,1] for a declaration.
type RiskScorer interface {
	Score(ctx context.Context, sc *StageContext) (float64, error)
}

// RiskStage computes and clamps the risk score against sc.RiskThreshold.
type RiskStage struct {
	Scorer RiskScorer
}

func (RiskStage) Name() string { return "risk" }

func (s RiskStage) Evaluate(ctx context.Context, sc *StageContext) (Decision, error) {
	if s.Scorer == nil {
		return Approved(), nil
	}
	score, err := s.Scorer.Score(ctx, sc)
	if err != nil {
		return Decision{}, err
	}
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	sc.RiskScore = score
	if sc.RiskThreshold > 0 && score > sc.RiskThreshold {
		return Denied("risk score exceeds threshold"), nil
	}
	return Approved(), nil
}

// CosignatureCollector gathers cosignatures required for high-value or
// multi-party commitments and reports whether the requirement is satisfied.
type CosignatureCollector interface {
	Collect(ctx context.Context, sc *StageContext) (satisfied bool, err error)
}

// CosignatureStage wraps a CosignatureCollector.
type CosignatureStage struct {
	Collector CosignatureCollector
}

func (CosignatureStage) Name() string { return "cosignature" }

func (s CosignatureStage) Evaluate(ctx context.Context, sc *StageContext) (Decision, error) {
	if sc.RequiredCosigners <= 0 || s.Collector == nil {
		return Approved(), nil
	}
	ok, err := s.Collector.Collect(ctx, sc)
	if err != nil {
		return Decision{}, err
	}
	if !ok {
		return Denied("required cosignatures not satisfied"), nil
	}
	sc.Cosigned = true
	return Approved(), nil
}
