// Package notify is the user-facing signal sink: a single owned Hub with
// subscribe/publish semantics so multiple consumers (CLI, diagnostics,
// tests) observe the same stream of events.
package notify

import (
	"sync"
	"time"
)

type Kind string

const (
	KindValidationBlocked  Kind = "validation_blocked"
	KindConfirmationNeeded Kind = "confirmation_needed"
	KindWriteQueued        Kind = "write_queued"
	KindFlushSummary       Kind = "flush_summary"
	KindBackfillProgress   Kind = "backfill_progress"
	KindBackfillDone       Kind = "backfill_done"
	KindPermanentFailure   Kind = "permanent_failure"
	KindQueueSaveFailed    Kind = "queue_save_failed"
	KindDriftDetected      Kind = "drift_detected"
)

// Event is one user-facing signal. Data carries the kind-specific payload
// (e.g. a flush summary or backfill progress struct).
type Event struct {
	Kind    Kind
	Message string
	At      time.Time
	Data    any
}

// BackfillProgress is the Data payload for KindBackfillProgress.
type BackfillProgress struct {
	Current   int
	Total     int
	WeekLabel string
}

type subscriber struct {
	id int
	fn func(Event)
}

// Hub fans events out to subscribers. Publish is synchronous: subscribers
// run on the publishing goroutine in subscription order.
type Hub struct {
	mu     sync.Mutex
	nextID int
	subs   []subscriber
}

func NewHub() *Hub {
	return &Hub{}
}

// Subscribe registers a handler and returns an unsubscribe func.
func (h *Hub) Subscribe(fn func(Event)) func() {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs = append(h.subs, subscriber{id: id, fn: fn})
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		for i, s := range h.subs {
			if s.id == id {
				h.subs = append(h.subs[:i], h.subs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers the event to every current subscriber.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	fns := make([]func(Event), 0, len(h.subs))
	for _, s := range h.subs {
		fns = append(fns, s.fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
