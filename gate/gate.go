package gate

import (
	"context"
	"encoding/hex"
	"sync"
	"time"

	"openibank/core/errs"
	"openibank/core/types"
	"openibank/worldline"
)

// Handle is the only admission ticket to execution: it is returned by
// Prepare and consumed exactly once by ExecuteCommitted.
type Handle struct {
	ID         string
	IntentHash [32]byte
	AgentID    string
	CreatedAt  time.Time
	ExpiresAt  *time.Time
}

// ConsequenceProof links an executed action back to its commitment and the
// WorldLine event that recorded its consequence.
type ConsequenceProof struct {
	CommitmentID     string
	ExecutedAt       time.Time
	WorldLineEventID string
}

type pendingCommitment struct {
	handle Handle
	runID  string
}

// Gate is the ordered multi-stage adjudication pipeline. Stages not needed
// in a deployment may be omitted from Stages, but their relative order must
// be preserved.
type Gate struct {
	wl           *worldline.WorldLine
	stages       []Stage
	stageTimeout time.Duration
	defaultTTL   time.Duration

	mu      sync.Mutex
	pending map[string]*pendingCommitment
}

// New constructs a Gate over wl using the given ordered stages. A zero
// stageTimeout disables per-stage timeouts; a zero defaultTTL means
// handles never expire unless the Declaration passed to Prepare carries an
// explicit TTL.
func New(wl *worldline.WorldLine, stages []Stage, stageTimeout, defaultTTL time.Duration) *Gate {
	return &Gate{
		wl:           wl,
		stages:       stages,
		stageTimeout: stageTimeout,
		defaultTTL:   defaultTTL,
		pending:      make(map[string]*pendingCommitment),
	}
}

// Declaration is the caller-supplied content for Prepare.
type Declaration struct {
	RunID             string
	AgentID           string
	IntentDescription string
	IntentHash        [32]byte
	EffectDomain      string
	Capability        string
	Amount            types.Amount
	Confidence        float64
	RiskThreshold     float64
	RequiredCosigners int
	TTL               time.Duration
}

// Prepare records an Intent event, then runs the gate's stage pipeline in
// order; the first rejection stops processing. On approval it records a
// Commitment(gate=OPEN) event and returns the admission handle. On rejection
// it records an Error event and returns a typed error naming the stage and
// reason.
func (g *Gate) Prepare(d Declaration) (*Handle, error) {
	commitmentID := types.NewUUIDID(types.KindCommitment)

	if _, err := g.wl.AppendEvent(worldline.Draft{
		RunID:   d.RunID,
		AgentID: d.AgentID,
		Stage:   worldline.StageIntent,
		Payload: map[string]any{
			"commitment_id":      commitmentID,
			"intent_description": d.IntentDescription,
			"intent_hash":        hex.EncodeToString(d.IntentHash[:]),
		},
	}); err != nil {
		return nil, err
	}

	sc := &StageContext{
		AgentID:           d.AgentID,
		IntentDescription: d.IntentDescription,
		IntentHash:        d.IntentHash,
		EffectDomain:       d.EffectDomain,
		Capability:         d.Capability,
		Amount:             d.Amount,
		Confidence:         d.Confidence,
		RiskThreshold:      d.RiskThreshold,
		RequiredCosigners:  d.RequiredCosigners,
		Extra:              make(map[string]any),
	}

	for _, stage := range g.stages {
		decision, err := g.evaluateStage(stage, sc)
		if err != nil {
			g.recordError(d.RunID, d.AgentID, commitmentID, stage.Name(), err.Error())
			return nil, err
		}
		switch decision.Outcome {
		case OutcomeApproved:
			continue
		case OutcomeDeferred:
			reason := "deferred: " + decision.Reason
			g.recordError(d.RunID, d.AgentID, commitmentID, stage.Name(), reason)
			return nil, errs.NewDenied(stage.Name(), reason)
		default:
			g.recordError(d.RunID, d.AgentID, commitmentID, stage.Name(), decision.Reason)
			return nil, errs.NewDenied(stage.Name(), decision.Reason)
		}
	}

	handle := Handle{
		ID:         commitmentID,
		IntentHash: d.IntentHash,
		AgentID:    d.AgentID,
		CreatedAt:  time.Now().UTC(),
	}
	ttl := d.TTL
	if ttl <= 0 {
		ttl = g.defaultTTL
	}
	if ttl > 0 {
		exp := handle.CreatedAt.Add(ttl)
		handle.ExpiresAt = &exp
	}

	if _, err := g.wl.AppendEvent(worldline.Draft{
		RunID:   d.RunID,
		AgentID: d.AgentID,
		Stage:   worldline.StageCommitment,
		Payload: map[string]any{
			"commitment_id": commitmentID,
			"gate":          "OPEN",
		},
	}); err != nil {
		return nil, err
	}

	g.mu.Lock()
	g.pending[commitmentID] = &pendingCommitment{handle: handle, runID: d.RunID}
	g.mu.Unlock()

	return &handle, nil
}

func (g *Gate) evaluateStage(stage Stage, sc *StageContext) (Decision, error) {
	if g.stageTimeout <= 0 {
		return stage.Evaluate(context.Background(), sc)
	}
	ctx, cancel := context.WithTimeout(context.Background(), g.stageTimeout)
	defer cancel()
	decision, err := stage.Evaluate(ctx, sc)
	if err != nil && ctx.Err() != nil {
		return Deferred("stage timeout"), nil
	}
	return decision, err
}

func (g *Gate) recordError(runID, agentID, commitmentID, stage, reason string) {
	_, _ = g.wl.AppendEvent(worldline.Draft{
		RunID:   runID,
		AgentID: agentID,
		Stage:   worldline.StageError,
		Payload: map[string]any{
			"commitment_id": commitmentID,
			"stage":         stage,
			"reason":        reason,
		},
	})
}

// ExecuteCommitted verifies handle is still pending and unexpired, invokes
// action exactly once, removes the handle, and records a Consequence (or
// Error, on failure) WorldLine event. A handle cannot be reused: the second
// call with the same handle fails with errs.ErrCommitmentNotFound.
func (g *Gate) ExecuteCommitted(handle *Handle, action func() (any, error)) (any, ConsequenceProof, error) {
	g.mu.Lock()
	pc, ok := g.pending[handle.ID]
	if !ok {
		g.mu.Unlock()
		return nil, ConsequenceProof{}, errs.ErrCommitmentNotFound
	}
	if pc.handle.ExpiresAt != nil && time.Now().UTC().After(*pc.handle.ExpiresAt) {
		delete(g.pending, handle.ID)
		g.mu.Unlock()
		return nil, ConsequenceProof{}, errs.ErrCommitmentExpired
	}
	// Remove now, under the same lock as the membership check, so a
	// concurrent second call can never also observe the handle as pending.
	delete(g.pending, handle.ID)
	g.mu.Unlock()

	result, err := action()
	if err != nil {
		g.recordError(pc.runID, pc.handle.AgentID, handle.ID, "action", err.Error())
		return nil, ConsequenceProof{}, errs.NewActionFailed(err)
	}

	ev, err := g.wl.AppendEvent(worldline.Draft{
		RunID:   pc.runID,
		AgentID: pc.handle.AgentID,
		Stage:   worldline.StageConsequence,
		Payload: map[string]any{
			"commitment_id": handle.ID,
			"result":        result,
		},
	})
	if err != nil {
		return nil, ConsequenceProof{}, err
	}

	proof := ConsequenceProof{
		CommitmentID:     handle.ID,
		ExecutedAt:       time.Now().UTC(),
		WorldLineEventID: ev.ID,
	}
	return result, proof, nil
}

// Fail removes handle from the pending set and records an Error event. Use
// this when a caller decides not to execute a prepared commitment.
func (g *Gate) Fail(handle *Handle, reason string) {
	g.mu.Lock()
	pc, ok := g.pending[handle.ID]
	if ok {
		delete(g.pending, handle.ID)
	}
	g.mu.Unlock()
	if !ok {
		return
	}
	g.recordError(pc.runID, pc.handle.AgentID, handle.ID, "fail", reason)
}
