package worldline

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"lukechampine.com/blake3"
)

func TestAppendEventHashChain(t *testing.T) {
	w := New(nil)

	var prev [32]byte
	for i := 0; i < 5; i++ {
		ev, err := w.AppendEvent(Draft{
			RunID:   "run-1",
			AgentID: "agent-a",
			Stage:   StageIntent,
			Payload: map[string]any{"i": i},
		})
		require.NoError(t, err)

		payloadBytes, err := json.Marshal(ev.Payload)
		require.NoError(t, err)
		want := blake3.Sum256(append(append([]byte(nil), prev[:]...), payloadBytes...))
		require.Equal(t, want, ev.Hash)
		prev = ev.Hash
	}
	require.Equal(t, 5, w.EventCount("run-1"))
}

func TestAppendEventDistinctIDsForEqualPayloads(t *testing.T) {
	w := New(nil)
	ev1, err := w.AppendEvent(Draft{RunID: "run-1", Stage: StageSystem, Payload: map[string]any{"x": 1}})
	require.NoError(t, err)
	ev2, err := w.AppendEvent(Draft{RunID: "run-1", Stage: StageSystem, Payload: map[string]any{"x": 1}})
	require.NoError(t, err)

	require.NotEqual(t, ev1.ID, ev2.ID)
	require.NotEqual(t, ev1.Hash, ev2.Hash)
}

func TestAppendEventConcurrentSameRunIsSerialized(t *testing.T) {
	w := New(nil)
	const n = 100
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			_, err := w.AppendEvent(Draft{RunID: "run-1", Stage: StageSystem, Payload: i})
			require.NoError(t, err)
		}(i)
	}
	wg.Wait()
	require.Equal(t, n, w.EventCount("run-1"))

	events := w.ExportSlice("run-1", "", "")
	var prev [32]byte
	for _, ev := range events {
		payloadBytes, _ := json.Marshal(ev.Payload)
		want := blake3.Sum256(append(append([]byte(nil), prev[:]...), payloadBytes...))
		require.Equal(t, want, ev.Hash)
		prev = ev.Hash
	}
}

func TestTailEventsHistoricalThenFollow(t *testing.T) {
	w := New(nil)
	_, err := w.AppendEvent(Draft{RunID: "run-1", Stage: StageSystem, Payload: "a"})
	require.NoError(t, err)

	stream := w.TailEvents("run-1", "", true)
	first := <-stream
	require.Equal(t, "a", first.Payload)

	_, err = w.AppendEvent(Draft{RunID: "run-1", Stage: StageSystem, Payload: "b"})
	require.NoError(t, err)

	second := <-stream
	require.Equal(t, "b", second.Payload)
}

func TestRunsAreIndependent(t *testing.T) {
	w := New(nil)
	_, err := w.AppendEvent(Draft{RunID: "run-1", Stage: StageSystem, Payload: 1})
	require.NoError(t, err)
	_, err = w.AppendEvent(Draft{RunID: "run-2", Stage: StageSystem, Payload: 1})
	require.NoError(t, err)
	require.Equal(t, 1, w.EventCount("run-1"))
	require.Equal(t, 1, w.EventCount("run-2"))
}
