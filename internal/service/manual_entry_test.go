package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmckee/stint/internal/domain"
	"github.com/nmckee/stint/internal/queue"
	"github.com/nmckee/stint/internal/session"
)

func TestLogManual_PersistsAndCounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	start := f.clk.Now().Add(-3 * time.Hour)
	outcome, err := f.tracker.LogManual(ctx, ManualEntry{
		JobID:   "acme",
		StartAt: start,
		EndAt:   start.Add(90 * time.Minute),
		Note:    "forgot to clock in",
	})
	require.NoError(t, err)
	assert.Equal(t, session.DecisionOK, outcome.Status)
	require.NotNil(t, outcome.Event)
	assert.Equal(t, 90, outcome.Event.DurationMin)
	assert.Equal(t, "forgot to clock in", outcome.Event.Note)

	snap, err := f.cache.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 90, snap.TotalMin)
}

func TestLogManual_BackdatedEntryKeepsItsWeek(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	conv, err := f.cfg.Convention()
	require.NoError(t, err)

	// An entry from two weeks ago lands in its own bucket and leaves the
	// current week's totals alone.
	start := f.clk.Now().AddDate(0, 0, -14)
	outcome, err := f.tracker.LogManual(ctx, ManualEntry{
		JobID:   "acme",
		StartAt: start,
		EndAt:   start.Add(2 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, conv.LabelFor(start), outcome.Event.WeekLabel)
	assert.NotEqual(t, conv.LabelFor(f.clk.Now()), outcome.Event.WeekLabel)

	report, err := f.reports.CurrentWeek(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Snapshot.TotalMin)

	past, err := f.cache.Recompute(ctx, outcome.Event.WeekLabel, conv.LabelFor(f.clk.Now()), f.cfg.WeekTargetMin)
	require.NoError(t, err)
	assert.Equal(t, 120, past.TotalMin)
}

func TestLogManual_TimeTravelBlocked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	start := f.clk.Now()
	outcome, err := f.tracker.LogManual(ctx, ManualEntry{
		JobID:   "acme",
		StartAt: start,
		EndAt:   start.Add(-time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, session.DecisionBlocked, outcome.Status)
	assert.True(t, outcome.Verdict.TimeTravel)

	events, err := f.events.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, events, "blocked entries are never persisted")
}

func TestLogManual_OverlongConfirmFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	start := f.clk.Now().Add(-20 * time.Hour)
	outcome, err := f.tracker.LogManual(ctx, ManualEntry{
		JobID:   "acme",
		StartAt: start,
		EndAt:   f.clk.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, session.DecisionNeedsConfirmation, outcome.Status)
	require.NotNil(t, outcome.Pending)
	assert.Equal(t, session.ReasonOverlong, outcome.Pending.Reason)

	// Nothing is stored until the user confirms.
	events, err := f.events.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, events)

	confirmed, err := f.tracker.ConfirmManual(ctx, outcome.Pending)
	require.NoError(t, err)
	assert.Equal(t, session.DecisionOK, confirmed.Status)
	assert.Equal(t, 20*60, confirmed.Event.DurationMin)

	events, err = f.events.List(ctx)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestLogManual_OutageQueuesEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.events.Down.Store(true)

	start := f.clk.Now().Add(-time.Hour)
	outcome, err := f.tracker.LogManual(ctx, ManualEntry{JobID: "acme", StartAt: start, EndAt: f.clk.Now()})
	require.NoError(t, err)
	assert.Equal(t, session.DecisionOK, outcome.Status)
	assert.True(t, outcome.Queued)
	assert.Equal(t, 1, f.writes.Len())

	f.events.Down.Store(false)
	res := f.writes.Flush(ctx)
	assert.Equal(t, queue.FlushResult{Succeeded: 1}, res)

	stored, err := f.events.GetByID(ctx, outcome.Event.ID)
	require.NoError(t, err)
	assert.Equal(t, 60, stored.DurationMin)
}

func TestAnnotateEvent_DoesNotTouchAggregates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	start := f.clk.Now().Add(-time.Hour)
	outcome, err := f.tracker.LogManual(ctx, ManualEntry{JobID: "acme", StartAt: start, EndAt: f.clk.Now()})
	require.NoError(t, err)

	before, err := f.cache.Snapshot(ctx)
	require.NoError(t, err)

	require.NoError(t, f.tracker.AnnotateEvent(ctx, outcome.Event.ID, "stand-up ran long"))

	got, err := f.events.GetByID(ctx, outcome.Event.ID)
	require.NoError(t, err)
	assert.Equal(t, "stand-up ran long", got.Note)

	after, err := f.cache.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, before.TotalMin, after.TotalMin)
}

func TestAmendEvent_MigratesAcrossWeeks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	start := f.clk.Now().Add(-2 * time.Hour)
	outcome, err := f.tracker.LogManual(ctx, ManualEntry{JobID: "acme", StartAt: start, EndAt: f.clk.Now()})
	require.NoError(t, err)
	require.Equal(t, 120, outcome.Event.DurationMin)

	// Move the event back one week and shorten it.
	newStart := start.AddDate(0, 0, -7)
	amended, err := f.tracker.AmendEvent(ctx, outcome.Event.ID, "", newStart, newStart.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 60, amended.DurationMin)
	assert.NotEqual(t, outcome.Event.WeekLabel, amended.WeekLabel)
	assert.Equal(t, "acme", amended.JobID, "empty job keeps the original")

	snap, err := f.cache.Snapshot(ctx)
	require.NoError(t, err)
	assert.Zero(t, snap.TotalMin, "the current week lost the migrated event")
}

func TestAmendEvent_RejectsTimeTravel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	start := f.clk.Now().Add(-time.Hour)
	outcome, err := f.tracker.LogManual(ctx, ManualEntry{JobID: "acme", StartAt: start, EndAt: f.clk.Now()})
	require.NoError(t, err)

	_, err = f.tracker.AmendEvent(ctx, outcome.Event.ID, "", start, start.Add(-time.Minute))
	assert.ErrorIs(t, err, session.ErrBlocked)

	unchanged, err := f.events.GetByID(ctx, outcome.Event.ID)
	require.NoError(t, err)
	assert.Equal(t, 60, unchanged.DurationMin)
}

func TestRemoveEvent_SoftDeletesAndSubtracts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	start := f.clk.Now().Add(-time.Hour)
	outcome, err := f.tracker.LogManual(ctx, ManualEntry{JobID: "acme", StartAt: start, EndAt: f.clk.Now()})
	require.NoError(t, err)

	res, err := f.tracker.RemoveEvent(ctx, outcome.Event.ID)
	require.NoError(t, err)
	assert.False(t, res.Queued)

	snap, err := f.cache.Snapshot(ctx)
	require.NoError(t, err)
	assert.Zero(t, snap.TotalMin)

	// The audit trail keeps the row; a second remove is NotFound.
	stored, err := f.events.GetByID(ctx, outcome.Event.ID)
	require.NoError(t, err)
	assert.True(t, stored.Deleted())

	_, err = f.tracker.RemoveEvent(ctx, outcome.Event.ID)
	assert.Error(t, err)
}

func TestRemoveEvent_OutageQueuesDeletion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	start := f.clk.Now().Add(-time.Hour)
	outcome, err := f.tracker.LogManual(ctx, ManualEntry{JobID: "acme", StartAt: start, EndAt: f.clk.Now()})
	require.NoError(t, err)

	f.events.Down.Store(true)
	res, err := f.tracker.RemoveEvent(ctx, outcome.Event.ID)
	require.NoError(t, err)
	assert.True(t, res.Queued)

	f.events.Down.Store(false)
	assert.Equal(t, queue.FlushResult{Succeeded: 1}, f.writes.Flush(ctx))

	stored, err := f.events.GetByID(ctx, outcome.Event.ID)
	require.NoError(t, err)
	assert.True(t, stored.Deleted())

	snap, err := f.cache.Snapshot(ctx)
	require.NoError(t, err)
	assert.Zero(t, snap.TotalMin)
}

func TestLogManual_HalfMinuteRounding(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	start := f.clk.Now().Add(-time.Hour)
	outcome, err := f.tracker.LogManual(ctx, ManualEntry{
		JobID:   "acme",
		StartAt: start,
		EndAt:   start.Add(29*time.Minute + 29*time.Second),
	})
	require.NoError(t, err)
	assert.Equal(t, 29, outcome.Event.DurationMin)

	outcome, err = f.tracker.LogManual(ctx, ManualEntry{
		JobID:   "acme",
		StartAt: start,
		EndAt:   start.Add(29*time.Minute + 30*time.Second),
	})
	require.NoError(t, err)
	assert.Equal(t, 30, outcome.Event.DurationMin, "30s rounds up")
}

func TestAmendEvent_OutageQueuesUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	start := f.clk.Now().Add(-time.Hour)
	outcome, err := f.tracker.LogManual(ctx, ManualEntry{JobID: "acme", StartAt: start, EndAt: f.clk.Now()})
	require.NoError(t, err)

	f.clk.Advance(time.Minute)
	f.events.Down.Store(true)

	amended, err := f.tracker.AmendEvent(ctx, outcome.Event.ID, "internal",
		start.Add(-time.Hour), start.Add(time.Hour))
	require.NoError(t, err)
	require.NotNil(t, amended)
	assert.Equal(t, 120, amended.DurationMin)
	assert.Equal(t, 1, f.writes.Len())

	// Log and cache hold the old values while the write waits.
	stored, err := f.events.GetByID(ctx, outcome.Event.ID)
	require.NoError(t, err)
	assert.Equal(t, "acme", stored.JobID)
	assert.Equal(t, 60, stored.DurationMin)

	snap, err := f.cache.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 60, snap.TotalMin)

	f.events.Down.Store(false)
	assert.Equal(t, queue.FlushResult{Succeeded: 1}, f.writes.Flush(ctx))

	stored, err = f.events.GetByID(ctx, outcome.Event.ID)
	require.NoError(t, err)
	assert.Equal(t, "internal", stored.JobID)
	assert.Equal(t, 120, stored.DurationMin)

	snap, err = f.cache.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 120, snap.TotalMin)
	assert.Equal(t, 120, snap.PerJobMin["internal"])
	assert.NotContains(t, snap.PerJobMin, "acme")
}

func TestAnnotateEvent_OutageQueuesNote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	start := f.clk.Now().Add(-time.Hour)
	outcome, err := f.tracker.LogManual(ctx, ManualEntry{JobID: "acme", StartAt: start, EndAt: f.clk.Now()})
	require.NoError(t, err)

	f.clk.Advance(time.Minute)
	f.events.Down.Store(true)

	require.NoError(t, f.tracker.AnnotateEvent(ctx, outcome.Event.ID, "stand-up ran long"))
	assert.Equal(t, 1, f.writes.Len())

	f.events.Down.Store(false)
	assert.Equal(t, queue.FlushResult{Succeeded: 1}, f.writes.Flush(ctx))

	stored, err := f.events.GetByID(ctx, outcome.Event.ID)
	require.NoError(t, err)
	assert.Equal(t, "stand-up ran long", stored.Note)

	snap, err := f.cache.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 60, snap.TotalMin, "a note change never moves minutes")
}

func TestQueuedUpdateReplay_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	start := f.clk.Now().Add(-time.Hour)
	outcome, err := f.tracker.LogManual(ctx, ManualEntry{JobID: "acme", StartAt: start, EndAt: f.clk.Now()})
	require.NoError(t, err)

	f.clk.Advance(time.Minute)
	amended, err := f.tracker.AmendEvent(ctx, outcome.Event.ID, "internal",
		start.Add(-time.Hour), start.Add(time.Hour))
	require.NoError(t, err)

	// A duplicate delivery of the already-applied update converges
	// without moving any minutes twice.
	raw, err := json.Marshal(clockOutPayload{Event: amended})
	require.NoError(t, err)
	applier := NewQueueApplier(f.events, f.cache, f.clk, f.cfg, f.uow)
	require.NoError(t, applier(ctx, &domain.QueuedWrite{
		ID:      uuid.New().String(),
		Target:  domain.TargetTimeEvent,
		Op:      domain.OpUpdate,
		Payload: raw,
	}))

	snap, err := f.cache.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 120, snap.TotalMin)
	assert.Equal(t, 120, snap.PerJobMin["internal"])
}

func TestQueuedUpdateReplay_DeleteWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	start := f.clk.Now().Add(-time.Hour)
	outcome, err := f.tracker.LogManual(ctx, ManualEntry{JobID: "acme", StartAt: start, EndAt: f.clk.Now()})
	require.NoError(t, err)

	f.clk.Advance(time.Minute)
	f.events.Down.Store(true)
	amended, err := f.tracker.AmendEvent(ctx, outcome.Event.ID, "internal",
		start.Add(-time.Hour), start.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, 1, f.writes.Len())

	// The event is removed before the queued update lands.
	f.events.Down.Store(false)
	f.clk.Advance(time.Minute)
	_, err = f.tracker.RemoveEvent(ctx, outcome.Event.ID)
	require.NoError(t, err)

	assert.Equal(t, queue.FlushResult{Succeeded: 1}, f.writes.Flush(ctx))

	stored, err := f.events.GetByID(ctx, amended.ID)
	require.NoError(t, err)
	assert.True(t, stored.Deleted())
	assert.Equal(t, "acme", stored.JobID, "the update does not resurrect a deleted event")

	snap, err := f.cache.Snapshot(ctx)
	require.NoError(t, err)
	assert.Zero(t, snap.TotalMin)
}
