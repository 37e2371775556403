package testutil

import (
	"sync"
	"time"
)

// ReferenceTime is a fixed mid-week instant used as the default test
// clock start: Wednesday 2025-06-11 15:00 UTC.
func ReferenceTime() time.Time {
	return time.Date(2025, 6, 11, 15, 0, 0, 0, time.UTC)
}

// ManualClock is a controllable time source so tests never wait on the
// wall clock.
type ManualClock struct {
	mu      sync.Mutex
	current time.Time
}

// NewManualClock returns a clock initialised to start, or to
// ReferenceTime when start is the zero value.
func NewManualClock(start time.Time) *ManualClock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &ManualClock{current: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Set moves the clock to an absolute instant (may go backwards, which is
// how time-travel scenarios are simulated).
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	c.current = t
	c.mu.Unlock()
}

// Advance moves the clock forward and returns the updated time.
func (c *ManualClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	c.current = c.current.Add(d)
	updated := c.current
	c.mu.Unlock()
	return updated
}

// ManualTicker is a hand-driven Ticker.
type ManualTicker struct {
	ch chan time.Time
}

func NewManualTicker() *ManualTicker {
	return &ManualTicker{ch: make(chan time.Time, 1)}
}

func (t *ManualTicker) C() <-chan time.Time {
	return t.ch
}

func (t *ManualTicker) Stop() {}

// Fire delivers one tick at the given instant.
func (t *ManualTicker) Fire(at time.Time) {
	t.ch <- at
}
