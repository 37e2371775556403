package service

import (
	"context"
	"fmt"

	"github.com/nmckee/stint/internal/aggregate"
	"github.com/nmckee/stint/internal/clock"
	"github.com/nmckee/stint/internal/config"
	"github.com/nmckee/stint/internal/notify"
	"github.com/nmckee/stint/internal/repository"
)

type reportService struct {
	sessions repository.SessionRepo
	events   repository.EventLogRepo
	cache    *aggregate.Cache
	hub      *notify.Hub
	clk      clock.Clock
	cfg      config.Config
}

// NewReportService wires the read side: current-week report, backfill
// repair, and drift diagnostics.
func NewReportService(
	sessions repository.SessionRepo,
	events repository.EventLogRepo,
	cache *aggregate.Cache,
	hub *notify.Hub,
	clk clock.Clock,
	cfg config.Config,
) ReportService {
	return &reportService{
		sessions: sessions,
		events:   events,
		cache:    cache,
		hub:      hub,
		clk:      clk,
		cfg:      cfg,
	}
}

func (r *reportService) CurrentWeek(ctx context.Context) (*WeekReport, error) {
	conv, err := r.cfg.Convention()
	if err != nil {
		return nil, err
	}
	now := r.clk.Now()
	rng := conv.RangeFor(now)

	snap, err := r.cache.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if snap == nil || snap.WeekLabel != rng.Label {
		// First use or week rollover: build authoritatively.
		snap, err = r.cache.Recompute(ctx, rng.Label, rng.Label, r.cfg.WeekTargetMin)
		if err != nil {
			return nil, err
		}
	}

	events, err := r.events.ListByWeek(ctx, rng.Label)
	if err != nil {
		return nil, err
	}

	report := &WeekReport{Range: rng, Snapshot: snap, Events: events}
	open, err := r.sessions.GetOpenBySubject(ctx, r.cfg.SubjectID)
	if err == nil {
		report.Session = open
	}
	return report, nil
}

func (r *reportService) Backfill(ctx context.Context, weeksBack int) (aggregate.BackfillSummary, error) {
	conv, err := r.cfg.Convention()
	if err != nil {
		return aggregate.BackfillSummary{}, err
	}
	if weeksBack < 1 {
		weeksBack = 1
	}

	summary := r.cache.Backfill(ctx, conv, weeksBack, r.cfg.WeekTargetMin, func(p notify.BackfillProgress) {
		r.hub.Publish(notify.Event{
			Kind:    notify.KindBackfillProgress,
			Message: fmt.Sprintf("recomputed %s (%d/%d)", p.WeekLabel, p.Current, p.Total),
			At:      r.clk.Now(),
			Data:    p,
		})
	})

	r.hub.Publish(notify.Event{
		Kind:    notify.KindBackfillDone,
		Message: fmt.Sprintf("backfill complete: %d weeks recomputed, %d failed", summary.WeeksProcessed, len(summary.Failures)),
		At:      r.clk.Now(),
		Data:    summary,
	})
	return summary, nil
}

func (r *reportService) Drift(ctx context.Context) (*aggregate.DriftReport, error) {
	conv, err := r.cfg.Convention()
	if err != nil {
		return nil, err
	}
	label := conv.LabelFor(r.clk.Now())

	report, err := r.cache.Drift(ctx, label, r.cfg.WeekTargetMin)
	if err != nil {
		return nil, err
	}
	if report.Drifted {
		r.hub.Publish(notify.Event{
			Kind: notify.KindDriftDetected,
			Message: fmt.Sprintf("cache drift in %s: cached %dm, actual %dm",
				report.WeekLabel, report.CachedTotalMin, report.ActualTotalMin),
			At:   r.clk.Now(),
			Data: *report,
		})
	}
	return report, nil
}
