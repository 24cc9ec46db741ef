package worldline

// TailEvents yields historical events for run starting just after the event
// whose id is from (or at the start of the run if from is empty or not
// found) up to the current tip, in order. If
// follow is true, once history is drained the returned channel continues
// yielding newly appended events for the same run until ctx-like caller
// abandons it (stops reading) or the subscriber is dropped as a slow
// consumer. The channel is closed when historical-only tailing completes or
// the subscription ends.
func (w *WorldLine) TailEvents(runID string, from string, follow bool) <-chan Event {
	out := make(chan Event, subscriberBuffer)

	r := w.runFor(runID)
	r.mu.Lock()

	start := 0
	if from != "" {
		for i, ev := range r.events {
			if ev.ID == from {
				start = i + 1 // from is exclusive: resume after it.
				break
			}
		}
	}
	historical := make([]Event, len(r.events)-start)
	copy(historical, r.events[start:])

	var subCh chan Event
	var subID int
	if follow {
		subCh = make(chan Event, subscriberBuffer)
		subID = r.nextSubID
		r.nextSubID++
		r.subs[subID] = subCh
	}
	r.mu.Unlock()

	go func() {
		defer close(out)
		for _, ev := range historical {
			out <- ev
		}
		if !follow {
			return
		}
		for ev := range subCh {
			out <- ev
		}
	}()

	return out
}
