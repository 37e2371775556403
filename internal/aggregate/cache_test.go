package aggregate

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmckee/stint/internal/domain"
	"github.com/nmckee/stint/internal/notify"
	"github.com/nmckee/stint/internal/repository"
	"github.com/nmckee/stint/internal/testutil"
	"github.com/nmckee/stint/internal/week"
)

type cacheFixture struct {
	cache  *Cache
	events repository.EventLogRepo
	kv     repository.KVRepo
	clk    *testutil.ManualClock
	conv   week.Convention
	label  string // current week label at ReferenceTime
}

func newCacheFixture(t *testing.T) *cacheFixture {
	t.Helper()
	database := testutil.NewTestDB(t)
	events := repository.NewSQLiteEventLogRepo(database)
	kv := repository.NewSQLiteKVRepo(database)
	clk := testutil.NewManualClock(time.Time{})

	conv, err := week.NewConvention("UTC", week.Monday)
	require.NoError(t, err)

	return &cacheFixture{
		cache:  New(kv, events, clk),
		events: events,
		kv:     kv,
		clk:    clk,
		conv:   conv,
		label:  conv.LabelFor(clk.Now()),
	}
}

func (f *cacheFixture) createEvent(t *testing.T, e *domain.TimeEvent) {
	t.Helper()
	require.NoError(t, f.events.Create(context.Background(), e))
	require.NoError(t, f.cache.OnEventCreated(context.Background(), e, f.label, 2400))
}

func TestCache_SnapshotNilBeforeFirstUse(t *testing.T) {
	f := newCacheFixture(t)

	snap, err := f.cache.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestCache_OnEventCreated_AccumulatesPerJob(t *testing.T) {
	f := newCacheFixture(t)
	ctx := context.Background()

	f.createEvent(t, testutil.NewTestEvent("default", f.label, testutil.WithJob("acme"), testutil.WithDuration(90)))
	f.createEvent(t, testutil.NewTestEvent("default", f.label, testutil.WithJob("acme"), testutil.WithDuration(30)))
	f.createEvent(t, testutil.NewTestEvent("default", f.label, testutil.WithJob("widgets"), testutil.WithDuration(45)))

	snap, err := f.cache.Snapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, f.label, snap.WeekLabel)
	assert.Equal(t, 165, snap.TotalMin)
	assert.Equal(t, 120, snap.PerJobMin["acme"])
	assert.Equal(t, 45, snap.PerJobMin["widgets"])
}

func TestCache_PersistsAfterEveryDelta(t *testing.T) {
	f := newCacheFixture(t)
	ctx := context.Background()

	f.createEvent(t, testutil.NewTestEvent("default", f.label, testutil.WithDuration(75)))

	// A fresh cache over the same KV store sees the snapshot immediately.
	reloaded := New(f.kv, f.events, f.clk)
	require.NoError(t, reloaded.Load(ctx))
	snap, err := reloaded.Snapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, 75, snap.TotalMin)
	assert.Equal(t, 75, snap.PerJobMin["general"])
}

func TestCache_OnEventDeleted_SubtractsAndClampsAtZero(t *testing.T) {
	f := newCacheFixture(t)
	ctx := context.Background()

	e := testutil.NewTestEvent("default", f.label, testutil.WithJob("acme"), testutil.WithDuration(60))
	f.createEvent(t, e)

	require.NoError(t, f.events.SoftDelete(ctx, e.ID, f.clk.Now()))
	require.NoError(t, f.cache.OnEventDeleted(ctx, e, f.label, 2400))

	snap, err := f.cache.Snapshot(ctx)
	require.NoError(t, err)
	assert.Zero(t, snap.TotalMin)
	assert.NotContains(t, snap.PerJobMin, "acme", "zeroed jobs drop out of the map")

	// Subtracting again cannot push totals negative.
	require.NoError(t, f.cache.OnEventDeleted(ctx, e, f.label, 2400))
	snap, err = f.cache.Snapshot(ctx)
	require.NoError(t, err)
	assert.Zero(t, snap.TotalMin)
}

func TestCache_DeltaForOtherWeekLeavesSnapshotAlone(t *testing.T) {
	f := newCacheFixture(t)
	ctx := context.Background()

	f.createEvent(t, testutil.NewTestEvent("default", f.label, testutil.WithDuration(60)))

	// A backdated event belongs to an earlier week; the live snapshot
	// must not absorb it.
	old := testutil.NewTestEvent("default", "2025-W20", testutil.WithDuration(120))
	require.NoError(t, f.events.Create(ctx, old))
	require.NoError(t, f.cache.OnEventCreated(ctx, old, f.label, 2400))

	snap, err := f.cache.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 60, snap.TotalMin)
	assert.Equal(t, f.label, snap.WeekLabel)
}

func TestCache_OnEventUpdated_MigratesAcrossWeeks(t *testing.T) {
	f := newCacheFixture(t)
	ctx := context.Background()

	e := testutil.NewTestEvent("default", f.label, testutil.WithJob("acme"), testutil.WithDuration(60))
	f.createEvent(t, e)

	// Amend the event into the previous week: the live week loses it.
	moved := *e
	moved.WeekLabel = "2025-W22"
	require.NoError(t, f.events.Update(ctx, &moved))
	require.NoError(t, f.cache.OnEventUpdated(ctx, e, &moved, f.label, 2400))

	snap, err := f.cache.Snapshot(ctx)
	require.NoError(t, err)
	assert.Zero(t, snap.TotalMin)

	// And back again: the live week regains it at the amended duration.
	back := moved
	back.WeekLabel = f.label
	back.DurationMin = 45
	require.NoError(t, f.events.Update(ctx, &back))
	require.NoError(t, f.cache.OnEventUpdated(ctx, &moved, &back, f.label, 2400))

	snap, err = f.cache.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 45, snap.TotalMin)
	assert.Equal(t, 45, snap.PerJobMin["acme"])
}

func TestCache_WeekRolloverRebuildsFromEventLog(t *testing.T) {
	f := newCacheFixture(t)
	ctx := context.Background()

	f.createEvent(t, testutil.NewTestEvent("default", f.label, testutil.WithDuration(60)))

	// A week passes. An event for the new week is already in the log
	// (written by another process run), plus the delta now arriving.
	f.clk.Advance(7 * 24 * time.Hour)
	newLabel := f.conv.LabelFor(f.clk.Now())
	require.NotEqual(t, f.label, newLabel)

	preexisting := testutil.NewTestEvent("default", newLabel,
		testutil.WithStart(f.clk.Now().Add(-2*time.Hour)), testutil.WithDuration(30))
	require.NoError(t, f.events.Create(ctx, preexisting))

	arriving := testutil.NewTestEvent("default", newLabel,
		testutil.WithStart(f.clk.Now().Add(-time.Hour)), testutil.WithDuration(50))
	require.NoError(t, f.events.Create(ctx, arriving))
	require.NoError(t, f.cache.OnEventCreated(ctx, arriving, newLabel, 2400))

	snap, err := f.cache.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, newLabel, snap.WeekLabel)
	assert.Equal(t, 80, snap.TotalMin, "rollover recount includes events written before the rollover delta")
}

func TestCache_Recompute_CurrentWeekReplacesLiveSnapshot(t *testing.T) {
	f := newCacheFixture(t)
	ctx := context.Background()

	f.createEvent(t, testutil.NewTestEvent("default", f.label, testutil.WithDuration(60)))

	// Poison the live snapshot with a bogus delta, then repair.
	require.NoError(t, f.cache.ApplyDelta(ctx, Delta{WeekLabel: f.label, JobID: "ghost", Minutes: 500}, f.label, 2400))
	poisoned, err := f.cache.Snapshot(ctx)
	require.NoError(t, err)
	require.Equal(t, 560, poisoned.TotalMin)

	snap, err := f.cache.Recompute(ctx, f.label, f.label, 2400)
	require.NoError(t, err)
	assert.Equal(t, 60, snap.TotalMin)
	assert.NotContains(t, snap.PerJobMin, "ghost")
	require.NotNil(t, snap.LastRecomputeAt)

	live, err := f.cache.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 60, live.TotalMin)
}

func TestCache_Recompute_HistoricalWeekDoesNotTouchLive(t *testing.T) {
	f := newCacheFixture(t)
	ctx := context.Background()

	f.createEvent(t, testutil.NewTestEvent("default", f.label, testutil.WithDuration(60)))

	past := testutil.NewTestEvent("default", "2025-W20", testutil.WithDuration(240))
	require.NoError(t, f.events.Create(ctx, past))

	snap, err := f.cache.Recompute(ctx, "2025-W20", f.label, 2400)
	require.NoError(t, err)
	assert.Equal(t, 240, snap.TotalMin)

	live, err := f.cache.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, f.label, live.WeekLabel)
	assert.Equal(t, 60, live.TotalMin, "historical recompute must not replace the live week")
}

func TestCache_Reset(t *testing.T) {
	f := newCacheFixture(t)
	ctx := context.Background()

	f.createEvent(t, testutil.NewTestEvent("default", f.label, testutil.WithDuration(60)))
	require.NoError(t, f.cache.Reset(ctx))

	snap, err := f.cache.Snapshot(ctx)
	require.NoError(t, err)
	assert.Nil(t, snap)

	raw, err := f.kv.Get(ctx, "aggregate:current_week")
	require.NoError(t, err)
	assert.Nil(t, raw, "reset removes the persisted snapshot")

	// The next delta rebuilds from the event log.
	e2 := testutil.NewTestEvent("default", f.label, testutil.WithDuration(30))
	f.createEvent(t, e2)
	snap, err = f.cache.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 90, snap.TotalMin)
}

// TestCache_IncrementalMatchesAuthoritative drives a random mix of
// creates, amends, and deletes through both the delta path and the event
// log, then checks the incrementally maintained snapshot against a full
// recompute.
func TestCache_IncrementalMatchesAuthoritative(t *testing.T) {
	f := newCacheFixture(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))

	jobs := []string{"acme", "widgets", "internal"}
	var live []*domain.TimeEvent

	for i := 0; i < 200; i++ {
		switch {
		case len(live) == 0 || rng.Intn(10) < 5: // create
			e := testutil.NewTestEvent("default", f.label,
				testutil.WithJob(jobs[rng.Intn(len(jobs))]),
				testutil.WithDuration(rng.Intn(180)+1))
			f.createEvent(t, e)
			live = append(live, e)

		case rng.Intn(10) < 7: // amend duration or job
			idx := rng.Intn(len(live))
			old := *live[idx]
			updated := live[idx]
			updated.DurationMin = rng.Intn(180) + 1
			updated.JobID = jobs[rng.Intn(len(jobs))]
			require.NoError(t, f.events.Update(ctx, updated))
			require.NoError(t, f.cache.OnEventUpdated(ctx, &old, updated, f.label, 2400))

		default: // delete
			idx := rng.Intn(len(live))
			e := live[idx]
			require.NoError(t, f.events.SoftDelete(ctx, e.ID, f.clk.Now()))
			require.NoError(t, f.cache.OnEventDeleted(ctx, e, f.label, 2400))
			live = append(live[:idx], live[idx+1:]...)
		}
	}

	incremental, err := f.cache.Snapshot(ctx)
	require.NoError(t, err)
	authoritative, err := f.cache.Recompute(ctx, f.label, f.label, 2400)
	require.NoError(t, err)

	assert.Equal(t, authoritative.TotalMin, incremental.TotalMin)
	assert.Equal(t, authoritative.PerJobMin, incremental.PerJobMin)
}

func TestBackfill_RecomputesOldestFirst(t *testing.T) {
	f := newCacheFixture(t)
	ctx := context.Background()

	ranges := f.conv.LastN(f.clk.Now(), 3)
	for i, r := range ranges {
		e := testutil.NewTestEvent("default", r.Label,
			testutil.WithStart(r.Start.Add(time.Hour)),
			testutil.WithDuration((i+1)*60))
		require.NoError(t, f.events.Create(ctx, e))
	}

	var seen []string
	summary := f.cache.Backfill(ctx, f.conv, 3, 2400, func(p notify.BackfillProgress) {
		seen = append(seen, p.WeekLabel)
	})

	assert.Equal(t, 3, summary.WeeksProcessed)
	assert.Empty(t, summary.Failures)
	assert.Equal(t, 60, summary.PerWeekTotals[ranges[0].Label])
	assert.Equal(t, 120, summary.PerWeekTotals[ranges[1].Label])
	assert.Equal(t, 180, summary.PerWeekTotals[ranges[2].Label])

	require.Len(t, seen, 3)
	assert.Equal(t, []string{ranges[2].Label, ranges[1].Label, ranges[0].Label}, seen,
		"progress runs oldest first so the current week is rebuilt last")

	live, err := f.cache.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, ranges[0].Label, live.WeekLabel)
	assert.Equal(t, 60, live.TotalMin)
}

// failOnWeekRepo fails ListByWeek for one specific label.
type failOnWeekRepo struct {
	repository.EventLogRepo
	failLabel string
}

func (f *failOnWeekRepo) ListByWeek(ctx context.Context, weekLabel string) ([]*domain.TimeEvent, error) {
	if weekLabel == f.failLabel {
		return nil, fmt.Errorf("week %s unavailable", weekLabel)
	}
	return f.EventLogRepo.ListByWeek(ctx, weekLabel)
}

func TestBackfill_CollectsFailuresAndContinues(t *testing.T) {
	database := testutil.NewTestDB(t)
	events := repository.NewSQLiteEventLogRepo(database)
	kv := repository.NewSQLiteKVRepo(database)
	clk := testutil.NewManualClock(time.Time{})
	conv, err := week.NewConvention("UTC", week.Monday)
	require.NoError(t, err)

	ranges := conv.LastN(clk.Now(), 3)
	failing := &failOnWeekRepo{EventLogRepo: events, failLabel: ranges[1].Label}
	cache := New(kv, failing, clk)

	e := testutil.NewTestEvent("default", ranges[0].Label, testutil.WithDuration(60))
	require.NoError(t, events.Create(context.Background(), e))

	summary := cache.Backfill(context.Background(), conv, 3, 2400, nil)

	assert.Equal(t, 2, summary.WeeksProcessed)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, ranges[1].Label, summary.Failures[0].WeekLabel)
	assert.Equal(t, 60, summary.PerWeekTotals[ranges[0].Label], "a failed week does not abort the rest")
}

func TestDrift_DetectsDivergence(t *testing.T) {
	f := newCacheFixture(t)
	ctx := context.Background()

	f.createEvent(t, testutil.NewTestEvent("default", f.label, testutil.WithDuration(60)))

	report, err := f.cache.Drift(ctx, f.label, 2400)
	require.NoError(t, err)
	assert.False(t, report.Drifted)

	// An event slipped in behind the cache's back.
	stray := testutil.NewTestEvent("default", f.label, testutil.WithDuration(30))
	require.NoError(t, f.events.Create(ctx, stray))

	report, err = f.cache.Drift(ctx, f.label, 2400)
	require.NoError(t, err)
	assert.True(t, report.Drifted)
	assert.Equal(t, 60, report.CachedTotalMin)
	assert.Equal(t, 90, report.ActualTotalMin)

	// Drift detection itself must not repair anything.
	live, err := f.cache.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 60, live.TotalMin)
}

func TestBackfill_ClampsWeeksBackToOne(t *testing.T) {
	f := newCacheFixture(t)
	ctx := context.Background()

	e := testutil.NewTestEvent("default", f.label, testutil.WithDuration(45))
	require.NoError(t, f.events.Create(ctx, e))

	for _, weeksBack := range []int{0, -3} {
		summary := f.cache.Backfill(ctx, f.conv, weeksBack, 2400, nil)

		assert.Equal(t, 1, summary.WeeksProcessed)
		assert.Equal(t, 45, summary.PerWeekTotals[f.label])
		assert.Empty(t, summary.Failures)
	}
}
