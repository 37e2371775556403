// Package diag is the explicit administrative surface: cache reset,
// pending-write inspection, manual flush, and backup export/import,
// replacing ambient debug globals with a small exported interface.
package diag

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/nmckee/stint/internal/aggregate"
	"github.com/nmckee/stint/internal/clock"
	"github.com/nmckee/stint/internal/config"
	"github.com/nmckee/stint/internal/domain"
	"github.com/nmckee/stint/internal/export"
	"github.com/nmckee/stint/internal/queue"
	"github.com/nmckee/stint/internal/repository"
)

type Inspector struct {
	cache  *aggregate.Cache
	writes *queue.Queue
	events repository.EventLogRepo
	clk    clock.Clock
	cfg    config.Config
}

func NewInspector(cache *aggregate.Cache, writes *queue.Queue, events repository.EventLogRepo, clk clock.Clock, cfg config.Config) *Inspector {
	return &Inspector{cache: cache, writes: writes, events: events, clk: clk, cfg: cfg}
}

// PendingWrites returns copies of the queued writes, oldest first.
func (i *Inspector) PendingWrites() []domain.QueuedWrite {
	return i.writes.Items()
}

// FlushWrites retries every queued write immediately.
func (i *Inspector) FlushWrites(ctx context.Context) queue.FlushResult {
	return i.writes.Flush(ctx)
}

// ResetCache discards the persisted snapshot. The next read rebuilds it
// from the event log.
func (i *Inspector) ResetCache(ctx context.Context) error {
	return i.cache.Reset(ctx)
}

// ExportEvents builds a backup document from the full event log.
func (i *Inspector) ExportEvents(ctx context.Context) (*export.Document, error) {
	events, err := i.events.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading event log: %w", err)
	}
	return export.FromEvents(i.cfg.SubjectID, events, i.clk.Now()), nil
}

// ImportSummary reports the outcome of a backup restore.
type ImportSummary struct {
	Imported int
	Skipped  int
	// Weeks lists the distinct week labels that received events, sorted.
	Weeks []string
}

// ImportEvents restores events from a validated backup document. Events
// whose ID is already in the log are skipped, so re-importing the same
// file is a no-op. Touched weeks are recomputed from the log afterwards.
func (i *Inspector) ImportEvents(ctx context.Context, doc *export.Document) (ImportSummary, error) {
	var summary ImportSummary

	conv, err := i.cfg.Convention()
	if err != nil {
		return summary, err
	}
	now := i.clk.Now()

	events, err := export.ToEvents(doc, conv, i.cfg.SubjectID, now)
	if err != nil {
		return summary, err
	}

	touched := make(map[string]bool)
	for _, e := range events {
		_, err := i.events.GetByID(ctx, e.ID)
		if err == nil {
			summary.Skipped++
			continue
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return summary, err
		}
		if err := i.events.Create(ctx, e); err != nil {
			return summary, fmt.Errorf("storing event %s: %w", e.ID, err)
		}
		summary.Imported++
		touched[e.WeekLabel] = true
	}

	currentLabel := conv.LabelFor(now)
	for label := range touched {
		if _, err := i.cache.Recompute(ctx, label, currentLabel, i.cfg.WeekTargetMin); err != nil {
			return summary, fmt.Errorf("recomputing week %s: %w", label, err)
		}
		summary.Weeks = append(summary.Weeks, label)
	}
	sort.Strings(summary.Weeks)

	return summary, nil
}
