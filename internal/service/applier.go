package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nmckee/stint/internal/aggregate"
	"github.com/nmckee/stint/internal/clock"
	"github.com/nmckee/stint/internal/config"
	"github.com/nmckee/stint/internal/db"
	"github.com/nmckee/stint/internal/domain"
	"github.com/nmckee/stint/internal/queue"
	"github.com/nmckee/stint/internal/repository"
)

// clockOutPayload is the unit of work carried by a queued write: the
// computed event and, for clock-outs, the finalized session. They commit
// together or not at all, and the aggregate delta is applied only once
// the commit is confirmed.
type clockOutPayload struct {
	Event   *domain.TimeEvent   `json:"event"`
	Session *domain.WorkSession `json:"session,omitempty"`
}

// NewQueueApplier builds the retry-side applier for queued writes.
// Replays are idempotent: a create whose event ID already exists, an
// update the stored row already reflects, or a delete already marked, is
// confirmed without double-applying the aggregate delta.
func NewQueueApplier(
	events repository.EventLogRepo,
	cache *aggregate.Cache,
	clk clock.Clock,
	cfg config.Config,
	uow db.UnitOfWork,
) queue.Applier {
	return func(ctx context.Context, item *domain.QueuedWrite) error {
		if item.Target != domain.TargetTimeEvent {
			return fmt.Errorf("unsupported queued target %q", item.Target)
		}
		var p clockOutPayload
		if err := json.Unmarshal(item.Payload, &p); err != nil {
			return fmt.Errorf("decoding queued payload: %w", err)
		}
		if p.Event == nil {
			return errors.New("queued payload has no event")
		}

		conv, err := cfg.Convention()
		if err != nil {
			return err
		}
		currentLabel := conv.LabelFor(clk.Now())

		switch item.Op {
		case domain.OpCreate:
			_, err := events.GetByID(ctx, p.Event.ID)
			if err == nil {
				// Already applied by an earlier attempt; converge silently.
				return nil
			}
			if !errors.Is(err, repository.ErrNotFound) {
				return err
			}
			err = uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
				if err := repository.NewSQLiteEventLogRepo(tx).Create(ctx, p.Event); err != nil {
					return err
				}
				if p.Session != nil {
					return repository.NewSQLiteSessionRepo(tx).Update(ctx, p.Session)
				}
				return nil
			})
			if err != nil {
				return err
			}
			return cache.OnEventCreated(ctx, p.Event, currentLabel, cfg.WeekTargetMin)

		case domain.OpUpdate:
			stored, err := events.GetByID(ctx, p.Event.ID)
			if err != nil {
				return err
			}
			// Set-final-state semantics: when the stored row is already
			// at or past this write (duplicate delivery, or a later
			// amendment won), replaying changes nothing.
			if stored.Deleted() || !stored.UpdatedAt.Before(p.Event.UpdatedAt) {
				return nil
			}
			if err := events.Update(ctx, p.Event); err != nil {
				return err
			}
			return cache.OnEventUpdated(ctx, stored, p.Event, currentLabel, cfg.WeekTargetMin)

		case domain.OpDelete:
			stored, err := events.GetByID(ctx, p.Event.ID)
			if err != nil {
				return err
			}
			if stored.Deleted() {
				return nil
			}
			if err := events.SoftDelete(ctx, p.Event.ID, clk.Now()); err != nil {
				return err
			}
			return cache.OnEventDeleted(ctx, stored, currentLabel, cfg.WeekTargetMin)

		default:
			return fmt.Errorf("unsupported queued operation %q", item.Op)
		}
	}
}
