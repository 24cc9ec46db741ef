package worldline

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"lukechampine.com/blake3"

	"openibank/core/types"
)

// ErrStorageUnavailable is returned by AppendEvent when the backing storage
// cannot accept a write; no partial append is ever made visible.
var ErrStorageUnavailable = errors.New("worldline: storage unavailable")

const subscriberBuffer = 64

// run holds the mutable state for a single run_id's event stream. All
// mutation happens under mu, so appends within a run are totally ordered;
// runs are otherwise independent of one another.
type run struct {
	mu        sync.Mutex
	events    []Event
	tip       [32]byte
	nextSubID int
	subs      map[int]chan Event
}

// Storage is the pluggable backend WorldLine appends through. The in-memory
// default always succeeds; a durable backend may fail, in which case
// AppendEvent fails atomically.
type Storage interface {
	Persist(Event) error
}

// NoopStorage accepts every event without persisting it anywhere durable.
type NoopStorage struct{}

func (NoopStorage) Persist(Event) error { return nil }

// WorldLine is the append-only, hash-chained, per-run event log with
// broadcast fan-out for live tailing.
type WorldLine struct {
	mu      sync.Mutex
	runs    map[string]*run
	storage Storage

	entropyMu sync.Mutex
	entropy   *ulid.MonotonicEntropy
}

// New constructs an empty WorldLine backed by storage. Pass NoopStorage{} for
// a pure in-memory log.
func New(storage Storage) *WorldLine {
	if storage == nil {
		storage = NoopStorage{}
	}
	return &WorldLine{
		runs:    make(map[string]*run),
		storage: storage,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

func (w *WorldLine) runFor(runID string) *run {
	w.mu.Lock()
	defer w.mu.Unlock()
	r, ok := w.runs[runID]
	if !ok {
		r = &run{subs: make(map[int]chan Event)}
		w.runs[runID] = r
	}
	return r
}

func (w *WorldLine) nextID(kind types.IDKind) string {
	w.entropyMu.Lock()
	defer w.entropyMu.Unlock()
	return types.NewULIDID(kind, w.entropy)
}

// AppendEvent is the only mutating operation on a WorldLine. It assigns a
// fresh ULID-based id, looks up the run's current tip hash ([0;32] if the
// run has no events yet), computes hash = blake3(prev_hash || serialize
// (payload)), stamps the timestamp, stores the event, advances the tip, and
// broadcasts it to live subscribers.
func (w *WorldLine) AppendEvent(d Draft) (Event, error) {
	payloadBytes, err := json.Marshal(d.Payload)
	if err != nil {
		return Event{}, fmt.Errorf("worldline: marshal payload: %w", err)
	}

	r := w.runFor(d.RunID)
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.tip
	digest := blake3.Sum256(append(append([]byte(nil), prev[:]...), payloadBytes...))

	ev := Event{
		ID:        w.nextID(types.KindWorldLine),
		RunID:     d.RunID,
		AgentID:   d.AgentID,
		Stage:     d.Stage,
		Payload:   d.Payload,
		Hash:      digest,
		HashHex:   hex.EncodeToString(digest[:]),
		Timestamp: time.Now().UTC(),
	}

	if err := w.storage.Persist(ev); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	r.events = append(r.events, ev)
	r.tip = digest

	for id, ch := range r.subs {
		select {
		case ch <- ev:
		default:
			// Slow consumer: drop it rather than stall the producer.
			close(ch)
			delete(r.subs, id)
		}
	}

	return ev, nil
}

// LatestEventID returns the id of the most recently appended event in run,
// or "" if the run has no events.
func (w *WorldLine) LatestEventID(runID string) string {
	r := w.runFor(runID)
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return ""
	}
	return r.events[len(r.events)-1].ID
}

// EventCount returns the number of events recorded for run.
func (w *WorldLine) EventCount(runID string) int {
	r := w.runFor(runID)
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// ExportSlice returns a snapshot of events in the closed interval [from, to]
// (by id). Empty from/to mean "from the start"/"to the tip".
func (w *WorldLine) ExportSlice(runID string, from, to string) []Event {
	r := w.runFor(runID)
	r.mu.Lock()
	defer r.mu.Unlock()

	start := 0
	end := len(r.events)
	if from != "" {
		for i, ev := range r.events {
			if ev.ID == from {
				start = i
				break
			}
		}
	}
	if to != "" {
		for i, ev := range r.events {
			if ev.ID == to {
				end = i + 1
				break
			}
		}
	}
	if start >= end {
		return nil
	}
	out := make([]Event, end-start)
	copy(out, r.events[start:end])
	return out
}
