package aggregate

import (
	"context"

	"github.com/nmckee/stint/internal/domain"
	"github.com/nmckee/stint/internal/notify"
	"github.com/nmckee/stint/internal/week"
)

// WeekFailure records a single week whose recompute failed during a
// backfill. Failures are collected, never silently swallowed, and do not
// abort the remaining weeks.
type WeekFailure struct {
	WeekLabel string
	Err       error
}

// BackfillSummary reports the outcome of a backfill run.
type BackfillSummary struct {
	WeeksProcessed int
	PerWeekTotals  map[string]int
	Failures       []WeekFailure
}

// Backfill recomputes the last weeksBack weeks (oldest first, ending on
// the current week) from the event log, reporting progress after each
// week. Used to repair caches after bulk imports, manual edits, or
// detected drift.
func (c *Cache) Backfill(ctx context.Context, conv week.Convention, weeksBack, targetMin int, onProgress func(notify.BackfillProgress)) BackfillSummary {
	if weeksBack < 1 {
		weeksBack = 1
	}
	now := c.clk.Now()
	ranges := conv.LastN(now, weeksBack)
	currentLabel := ranges[0].Label

	summary := BackfillSummary{PerWeekTotals: map[string]int{}}
	total := len(ranges)

	// LastN is newest-first; process oldest-first so the current week is
	// rebuilt last, after any historical corrections.

	for i := total - 1; i >= 0; i-- {
		label := ranges[i].Label
		snap, err := c.Recompute(ctx, label, currentLabel, targetMin)
		if err != nil {
			summary.Failures = append(summary.Failures, WeekFailure{WeekLabel: label, Err: err})
		} else {
			summary.WeeksProcessed++
			summary.PerWeekTotals[label] = snap.TotalMin
		}
		if onProgress != nil {
			onProgress(notify.BackfillProgress{Current: total - i, Total: total, WeekLabel: label})
		}
	}
	return summary
}

// DriftReport compares the cached snapshot against a fresh authoritative
// recompute without mutating either; diagnostic tooling uses it to detect
// drift without forcing a rebuild.
type DriftReport struct {
	WeekLabel      string
	CachedTotalMin int
	ActualTotalMin int
	CachedPerJob   map[string]int
	ActualPerJob   map[string]int
	Drifted        bool
}

// Drift checks the live snapshot for the given current week against the
// event log.
func (c *Cache) Drift(ctx context.Context, currentLabel string, targetMin int) (*DriftReport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	actual, err := c.computeWeek(ctx, currentLabel, targetMin)
	if err != nil {
		return nil, err
	}

	cached := c.snap
	if cached == nil || cached.WeekLabel != currentLabel {
		// Nothing cached for this week yet; treat as empty.
		cached = domain.NewAggregateSnapshot(currentLabel, targetMin)
	}

	report := &DriftReport{
		WeekLabel:      currentLabel,
		CachedTotalMin: cached.TotalMin,
		ActualTotalMin: actual.TotalMin,
		CachedPerJob:   clonePerJob(cached.PerJobMin),
		ActualPerJob:   clonePerJob(actual.PerJobMin),
	}
	report.Drifted = report.CachedTotalMin != report.ActualTotalMin || !equalPerJob(report.CachedPerJob, report.ActualPerJob)
	return report, nil
}

func clonePerJob(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func equalPerJob(a, b map[string]int) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}
