package gate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"openibank/core/errs"
	"openibank/worldline"
)

type denyingStage struct{ reason string }

func (denyingStage) Name() string { return "policy" }
func (s denyingStage) Evaluate(_ context.Context, _ *StageContext) (Decision, error) {
	return Denied(s.reason), nil
}

func TestPrepareAndExecuteHappyPath(t *testing.T) {
	wl := worldline.New(nil)
	g := New(wl, DefaultStages(0), 0, time.Hour)

	handle, err := g.Prepare(Declaration{
		RunID:             "run-1",
		AgentID:           "buyer",
		IntentDescription: "mint to buyer",
		Confidence:        1,
	})
	require.NoError(t, err)
	require.NotNil(t, handle)

	result, proof, err := g.ExecuteCommitted(handle, func() (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	require.Equal(t, "ok", result)
	require.Equal(t, handle.ID, proof.CommitmentID)
	require.NotEmpty(t, proof.WorldLineEventID)

	events := wl.ExportSlice("run-1", "", "")
	require.Len(t, events, 3)
	require.Equal(t, worldline.StageIntent, events[0].Stage)
	require.Equal(t, worldline.StageCommitment, events[1].Stage)
	require.Equal(t, worldline.StageConsequence, events[2].Stage)
}

func TestHandleSingleUse(t *testing.T) {
	wl := worldline.New(nil)
	g := New(wl, DefaultStages(0), 0, time.Hour)
	handle, err := g.Prepare(Declaration{RunID: "run-1", AgentID: "a", IntentDescription: "x", Confidence: 1})
	require.NoError(t, err)

	_, _, err = g.ExecuteCommitted(handle, func() (any, error) { return nil, nil })
	require.NoError(t, err)

	_, _, err = g.ExecuteCommitted(handle, func() (any, error) { return nil, nil })
	require.ErrorIs(t, err, errs.ErrCommitmentNotFound)
}

func TestExpiredHandleRejected(t *testing.T) {
	wl := worldline.New(nil)
	g := New(wl, DefaultStages(0), 0, time.Millisecond)
	handle, err := g.Prepare(Declaration{RunID: "run-1", AgentID: "a", IntentDescription: "x", Confidence: 1})
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	_, _, err = g.ExecuteCommitted(handle, func() (any, error) { return nil, nil })
	require.ErrorIs(t, err, errs.ErrCommitmentExpired)
}

func TestStageDenialStopsPipelineAndRecordsError(t *testing.T) {
	wl := worldline.New(nil)
	stages := []Stage{DeclarationStage{MinConfidence: 0}, denyingStage{reason: "blocked by policy"}, RiskStage{}}
	g := New(wl, stages, 0, time.Hour)

	handle, err := g.Prepare(Declaration{RunID: "run-1", AgentID: "a", IntentDescription: "x", Confidence: 1})
	require.Nil(t, handle)
	var denied *errs.DeniedError
	require.ErrorAs(t, err, &denied)
	require.Equal(t, "policy", denied.Stage)

	events := wl.ExportSlice("run-1", "", "")
	require.Len(t, events, 2) // Intent, then Error — no Commitment event.
	require.Equal(t, worldline.StageError, events[1].Stage)
}

func TestActionFailurePropagatesAndRecordsError(t *testing.T) {
	wl := worldline.New(nil)
	g := New(wl, DefaultStages(0), 0, time.Hour)
	handle, err := g.Prepare(Declaration{RunID: "run-1", AgentID: "a", IntentDescription: "x", Confidence: 1})
	require.NoError(t, err)

	_, _, err = g.ExecuteCommitted(handle, func() (any, error) {
		return nil, require.AnError
	})
	var af *errs.ActionFailedError
	require.ErrorAs(t, err, &af)

	// Handle was still consumed; a retry sees NotFound, not Expired.
	_, _, err = g.ExecuteCommitted(handle, func() (any, error) { return nil, nil })
	require.ErrorIs(t, err, errs.ErrCommitmentNotFound)
}
