// Package aggregate maintains the persisted current-week snapshot: total
// minutes and per-job minutes, updated by incremental deltas as events
// are committed and repairable at any time by authoritative recompute
// from the event log.
package aggregate

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nmckee/stint/internal/clock"
	"github.com/nmckee/stint/internal/domain"
	"github.com/nmckee/stint/internal/repository"
)

// snapshotKey is the KV key holding the current-week snapshot. The full
// snapshot is rewritten after every delta so recovery always loads a
// complete object, never a partially applied one.
const snapshotKey = "aggregate:current_week"

// Delta is one incremental update derived from a single event change.
type Delta struct {
	WeekLabel string
	JobID     string
	Minutes   int
}

// Cache owns the live current-week snapshot. The mutex is held across
// the persist of each mutation: two logically concurrent deltas are
// serialized so the second never overwrites the first from a stale copy.
type Cache struct {
	kv     repository.KVRepo
	events repository.EventLogRepo
	clk    clock.Clock

	mu   sync.Mutex
	snap *domain.AggregateSnapshot
}

// New creates a Cache over the given persistence and event log.
func New(kv repository.KVRepo, events repository.EventLogRepo, clk clock.Clock) *Cache {
	return &Cache{kv: kv, events: events, clk: clk}
}

// Load restores the persisted snapshot, if one exists. Called once at
// startup; a missing or unreadable snapshot is not fatal (the cache is
// rebuilt lazily).
func (c *Cache) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, err := c.kv.Get(ctx, snapshotKey)
	if err != nil {
		return fmt.Errorf("loading aggregate snapshot: %w", err)
	}
	if raw == nil {
		return nil
	}
	var s domain.AggregateSnapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return fmt.Errorf("decoding aggregate snapshot: %w", err)
	}
	if s.PerJobMin == nil {
		s.PerJobMin = map[string]int{}
	}
	c.snap = &s
	return nil
}

// Snapshot returns a copy of the live snapshot, or nil before first use.
func (c *Cache) Snapshot(ctx context.Context) (*domain.AggregateSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap.Clone(), nil
}

// OnEventCreated applies the incremental delta for a newly committed
// event. currentLabel is the label of "now" under the configuration in
// effect; deltas for other weeks never touch the live snapshot.
func (c *Cache) OnEventCreated(ctx context.Context, e *domain.TimeEvent, currentLabel string, targetMin int) error {
	return c.apply(ctx, currentLabel, targetMin, Delta{WeekLabel: e.WeekLabel, JobID: e.JobID, Minutes: e.DurationMin})
}

// OnEventDeleted subtracts a soft-deleted event, clamping at zero.
func (c *Cache) OnEventDeleted(ctx context.Context, e *domain.TimeEvent, currentLabel string, targetMin int) error {
	return c.apply(ctx, currentLabel, targetMin, Delta{WeekLabel: e.WeekLabel, JobID: e.JobID, Minutes: -e.DurationMin})
}

// OnEventUpdated subtracts the old values under the old event's week
// label and adds the new values under the new one, migrating totals when
// an edit moves an event across weeks.
func (c *Cache) OnEventUpdated(ctx context.Context, old, updated *domain.TimeEvent, currentLabel string, targetMin int) error {
	return c.apply(ctx, currentLabel, targetMin,
		Delta{WeekLabel: old.WeekLabel, JobID: old.JobID, Minutes: -old.DurationMin},
		Delta{WeekLabel: updated.WeekLabel, JobID: updated.JobID, Minutes: updated.DurationMin},
	)
}

// ApplyDelta applies a single raw delta; exposed for the durable-queue
// replay path and diagnostics.
func (c *Cache) ApplyDelta(ctx context.Context, d Delta, currentLabel string, targetMin int) error {
	return c.apply(ctx, currentLabel, targetMin, d)
}

func (c *Cache) apply(ctx context.Context, currentLabel string, targetMin int, deltas ...Delta) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	rebuilt, err := c.ensureCurrentLocked(ctx, currentLabel, targetMin)
	if err != nil {
		return err
	}
	if rebuilt {
		// Deltas arrive only after their write is confirmed, so a fresh
		// recount from the event log already includes them.
		return nil
	}
	touched := false
	for _, d := range deltas {
		if d.WeekLabel != c.snap.WeekLabel {
			continue
		}
		c.snap.Add(d.JobID, d.Minutes)
		touched = true
	}
	if !touched {
		return nil
	}
	c.snap.LastUpdatedAt = c.clk.Now()
	return c.persistLocked(ctx)
}

// ensureCurrentLocked makes the live snapshot track currentLabel. On week
// rollover (or first use) the new week is recomputed from the event log
// rather than started at zero, so entries written by earlier runs count.
func (c *Cache) ensureCurrentLocked(ctx context.Context, currentLabel string, targetMin int) (rebuilt bool, err error) {
	if c.snap != nil && c.snap.WeekLabel == currentLabel {
		c.snap.TargetMin = targetMin
		return false, nil
	}
	snap, err := c.computeWeek(ctx, currentLabel, targetMin)
	if err != nil {
		return false, err
	}
	c.snap = snap
	return true, c.persistLocked(ctx)
}

// computeWeek sums the non-deleted events of one week via the indexed
// week lookup. This is the authoritative path.
func (c *Cache) computeWeek(ctx context.Context, weekLabel string, targetMin int) (*domain.AggregateSnapshot, error) {
	events, err := c.events.ListByWeek(ctx, weekLabel)
	if err != nil {
		return nil, fmt.Errorf("recomputing week %s: %w", weekLabel, err)
	}
	snap := domain.NewAggregateSnapshot(weekLabel, targetMin)
	for _, e := range events {
		snap.Add(e.JobID, e.DurationMin)
	}
	now := c.clk.Now()
	snap.LastUpdatedAt = now
	snap.LastRecomputeAt = &now
	return snap, nil
}

// Recompute wholesale rebuilds the aggregate for weekLabel from the event
// log, discarding accumulated drift. Only when weekLabel is the current
// week does the result replace the live snapshot; recomputing a
// historical week returns its snapshot without mutating live state.
func (c *Cache) Recompute(ctx context.Context, weekLabel, currentLabel string, targetMin int) (*domain.AggregateSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap, err := c.computeWeek(ctx, weekLabel, targetMin)
	if err != nil {
		return nil, err
	}
	if weekLabel == currentLabel {
		c.snap = snap
		if err := c.persistLocked(ctx); err != nil {
			return nil, err
		}
	}
	return snap.Clone(), nil
}

// Reset discards the persisted snapshot; the next delta rebuilds it from
// the event log. Administrative use only.
func (c *Cache) Reset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap = nil
	if err := c.kv.Delete(ctx, snapshotKey); err != nil {
		return fmt.Errorf("resetting aggregate snapshot: %w", err)
	}
	return nil
}

func (c *Cache) persistLocked(ctx context.Context) error {
	raw, err := json.Marshal(c.snap)
	if err != nil {
		return fmt.Errorf("encoding aggregate snapshot: %w", err)
	}
	if err := c.kv.Set(ctx, snapshotKey, raw); err != nil {
		return fmt.Errorf("persisting aggregate snapshot: %w", err)
	}
	return nil
}
