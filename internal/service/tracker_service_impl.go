package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nmckee/stint/internal/aggregate"
	"github.com/nmckee/stint/internal/clock"
	"github.com/nmckee/stint/internal/config"
	"github.com/nmckee/stint/internal/db"
	"github.com/nmckee/stint/internal/domain"
	"github.com/nmckee/stint/internal/notify"
	"github.com/nmckee/stint/internal/queue"
	"github.com/nmckee/stint/internal/repository"
	"github.com/nmckee/stint/internal/session"
	"github.com/nmckee/stint/internal/week"
)

type trackerService struct {
	sessions repository.SessionRepo
	events   repository.EventLogRepo
	cache    *aggregate.Cache
	writes   *queue.Queue
	machine  *session.Machine
	hub      *notify.Hub
	clk      clock.Clock
	cfg      config.Config
	uow      db.UnitOfWork
}

// NewTrackerService wires the clock-in/out lifecycle: state machine in
// front, event log behind, aggregation cache updated only after a write
// is confirmed, durable queue for writes that could not reach storage.
func NewTrackerService(
	sessions repository.SessionRepo,
	events repository.EventLogRepo,
	cache *aggregate.Cache,
	writes *queue.Queue,
	hub *notify.Hub,
	clk clock.Clock,
	cfg config.Config,
	uow db.UnitOfWork,
) TrackerService {
	return &trackerService{
		sessions: sessions,
		events:   events,
		cache:    cache,
		writes:   writes,
		machine:  session.NewMachine(clk, cfg.MaxSessionHours),
		hub:      hub,
		clk:      clk,
		cfg:      cfg,
		uow:      uow,
	}
}

func (t *trackerService) ActiveSession(ctx context.Context) (*domain.WorkSession, error) {
	s, err := t.sessions.GetOpenBySubject(ctx, t.cfg.SubjectID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return s, err
}

func (t *trackerService) ClockIn(ctx context.Context, jobID string) (*domain.WorkSession, error) {
	existing, err := t.ActiveSession(ctx)
	if err != nil {
		return nil, err
	}
	s, err := t.machine.ClockIn(t.cfg.SubjectID, jobID, existing)
	if err != nil {
		return nil, err
	}
	if err := t.sessions.Create(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (t *trackerService) StartBreak(ctx context.Context) (*domain.WorkSession, error) {
	return t.mutateOpen(ctx, t.machine.StartBreak)
}

func (t *trackerService) EndBreak(ctx context.Context) (*domain.WorkSession, error) {
	return t.mutateOpen(ctx, t.machine.EndBreak)
}

func (t *trackerService) mutateOpen(ctx context.Context, op func(*domain.WorkSession) error) (*domain.WorkSession, error) {
	s, err := t.ActiveSession(ctx)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, session.ErrNoSession
	}
	if err := op(s); err != nil {
		return nil, err
	}
	if err := t.sessions.Update(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (t *trackerService) ClockOut(ctx context.Context) (*ClockOutOutcome, error) {
	s, err := t.ActiveSession(ctx)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, session.ErrNoSession
	}

	d, err := t.machine.PrepareClockOut(s)
	if err != nil {
		return nil, err
	}

	switch d.Status {
	case session.DecisionBlocked:
		t.hub.Publish(notify.Event{
			Kind:    notify.KindValidationBlocked,
			Message: "clock-out rejected: end would be before start",
			At:      d.At,
		})
		return &ClockOutOutcome{Status: d.Status, Decision: d}, nil

	case session.DecisionNeedsConfirmation:
		t.hub.Publish(notify.Event{
			Kind:    notify.KindConfirmationNeeded,
			Message: confirmMessage(d),
			At:      d.At,
		})
		return &ClockOutOutcome{
			Status:   d.Status,
			Decision: d,
			Pending:  &PendingClockOut{Session: s, Decision: d},
		}, nil
	}

	res, err := t.commitClockOut(ctx, s, d)
	if err != nil {
		return nil, err
	}
	return &ClockOutOutcome{Status: session.DecisionOK, Decision: d, Result: res}, nil
}

// ConfirmClockOut is the second phase: the user agreed to persist a
// flagged session. Declining is simply never calling this; Prepare left
// the stored session untouched.
func (t *trackerService) ConfirmClockOut(ctx context.Context, pending *PendingClockOut) (*ClockOutResult, error) {
	if pending == nil || pending.Session == nil {
		return nil, session.ErrNoSession
	}
	return t.commitClockOut(ctx, pending.Session, pending.Decision)
}

// commitClockOut finalizes the session and persists event + session as
// one unit of work. On storage failure the computed event is never
// discarded: it travels to the durable queue together with the final
// session state, and the aggregate delta waits for the confirmed write.
func (t *trackerService) commitClockOut(ctx context.Context, s *domain.WorkSession, d session.ClockOutDecision) (*ClockOutResult, error) {
	conv, err := t.cfg.Convention()
	if err != nil {
		return nil, err
	}
	ev, err := t.machine.CommitClockOut(s, d, conv)
	if err != nil {
		return nil, err
	}

	txErr := t.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		if err := repository.NewSQLiteEventLogRepo(tx).Create(ctx, ev); err != nil {
			return err
		}
		return repository.NewSQLiteSessionRepo(tx).Update(ctx, s)
	})
	if txErr != nil {
		if qErr := t.enqueue(ctx, domain.OpCreate, clockOutPayload{Event: ev, Session: s}); qErr != nil {
			return nil, fmt.Errorf("write failed (%v) and queueing failed: %w", txErr, qErr)
		}
		return &ClockOutResult{Event: ev, Session: s, Queued: true}, nil
	}

	t.applyCreated(ctx, conv, ev)
	return &ClockOutResult{Event: ev, Session: s}, nil
}

// applyCreated applies the incremental aggregate delta for a confirmed
// event write. A delta failure is not a lost write: recompute repairs the
// cache, so it is surfaced as drift rather than an operation error.
func (t *trackerService) applyCreated(ctx context.Context, conv week.Convention, ev *domain.TimeEvent) {
	currentLabel := conv.LabelFor(t.clk.Now())
	if err := t.cache.OnEventCreated(ctx, ev, currentLabel, t.cfg.WeekTargetMin); err != nil {
		t.hub.Publish(notify.Event{
			Kind:    notify.KindDriftDetected,
			Message: fmt.Sprintf("aggregate update failed (run backfill to repair): %v", err),
			At:      t.clk.Now(),
		})
	}
}

func (t *trackerService) LogManual(ctx context.Context, entry ManualEntry) (*ManualOutcome, error) {
	conv, err := t.cfg.Convention()
	if err != nil {
		return nil, err
	}

	verdict := session.Validate(entry.StartAt, entry.EndAt, t.cfg.MaxSessionHours)
	if verdict.TimeTravel {
		t.hub.Publish(notify.Event{
			Kind:    notify.KindValidationBlocked,
			Message: "entry rejected: end is not after start",
			At:      t.clk.Now(),
		})
		return &ManualOutcome{Status: session.DecisionBlocked, Verdict: verdict}, nil
	}

	now := t.clk.Now()
	ev := &domain.TimeEvent{
		ID:          uuid.New().String(),
		SubjectID:   t.cfg.SubjectID,
		JobID:       entry.JobID,
		StartAt:     entry.StartAt.UTC(),
		EndAt:       entry.EndAt.UTC(),
		DurationMin: domain.DurationMinutes(entry.EndAt.Sub(entry.StartAt)),
		WeekLabel:   conv.LabelFor(entry.StartAt),
		Note:        entry.Note,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var reason session.ConfirmReason
	switch {
	case !verdict.Valid:
		reason = session.ReasonOverlong
	case ev.DurationMin == 0:
		reason = session.ReasonZeroDuration
	}
	if reason != "" {
		t.hub.Publish(notify.Event{
			Kind:    notify.KindConfirmationNeeded,
			Message: fmt.Sprintf("manual entry flagged (%s), confirmation required", reason),
			At:      now,
		})
		return &ManualOutcome{
			Status:  session.DecisionNeedsConfirmation,
			Verdict: verdict,
			Pending: &PendingManual{Event: ev, Verdict: verdict, Reason: reason},
		}, nil
	}

	return t.persistManual(ctx, conv, ev, verdict)
}

func (t *trackerService) ConfirmManual(ctx context.Context, pending *PendingManual) (*ManualOutcome, error) {
	if pending == nil || pending.Event == nil {
		return nil, errors.New("no pending manual entry")
	}
	conv, err := t.cfg.Convention()
	if err != nil {
		return nil, err
	}
	return t.persistManual(ctx, conv, pending.Event, pending.Verdict)
}

func (t *trackerService) persistManual(ctx context.Context, conv week.Convention, ev *domain.TimeEvent, verdict session.Verdict) (*ManualOutcome, error) {
	if err := t.events.Create(ctx, ev); err != nil {
		if qErr := t.enqueue(ctx, domain.OpCreate, clockOutPayload{Event: ev}); qErr != nil {
			return nil, fmt.Errorf("write failed (%v) and queueing failed: %w", err, qErr)
		}
		return &ManualOutcome{Status: session.DecisionOK, Verdict: verdict, Event: ev, Queued: true}, nil
	}
	t.applyCreated(ctx, conv, ev)
	return &ManualOutcome{Status: session.DecisionOK, Verdict: verdict, Event: ev}, nil
}

// AnnotateEvent updates the free-text note only; annotations never change
// aggregates. A failed write travels to the durable queue like any other
// mutation.
func (t *trackerService) AnnotateEvent(ctx context.Context, id, note string) error {
	ev, err := t.events.GetByID(ctx, id)
	if err != nil {
		return err
	}
	ev.Note = note
	ev.UpdatedAt = t.clk.Now()
	if err := t.events.Update(ctx, ev); err != nil {
		if qErr := t.enqueue(ctx, domain.OpUpdate, clockOutPayload{Event: ev}); qErr != nil {
			return fmt.Errorf("write failed (%v) and queueing failed: %w", err, qErr)
		}
	}
	return nil
}

// AmendEvent rewrites job/start/end of an existing event. The week label
// is recomputed from the new start under the current configuration; the
// cache migrates totals from the old week to the new one.
func (t *trackerService) AmendEvent(ctx context.Context, id, jobID string, startAt, endAt time.Time) (*domain.TimeEvent, error) {
	conv, err := t.cfg.Convention()
	if err != nil {
		return nil, err
	}
	verdict := session.Validate(startAt, endAt, t.cfg.MaxSessionHours)
	if verdict.TimeTravel {
		return nil, session.ErrBlocked
	}

	old, err := t.events.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if old.Deleted() {
		return nil, fmt.Errorf("time event %s: %w", id, repository.ErrNotFound)
	}

	updated := *old
	if jobID != "" {
		updated.JobID = jobID
	}
	updated.StartAt = startAt.UTC()
	updated.EndAt = endAt.UTC()
	updated.DurationMin = domain.DurationMinutes(endAt.Sub(startAt))
	updated.WeekLabel = conv.LabelFor(startAt)
	updated.UpdatedAt = t.clk.Now()

	if err := t.events.Update(ctx, &updated); err != nil {
		if qErr := t.enqueue(ctx, domain.OpUpdate, clockOutPayload{Event: &updated}); qErr != nil {
			return nil, fmt.Errorf("write failed (%v) and queueing failed: %w", err, qErr)
		}
		// The cache delta waits for the confirmed replay.
		return &updated, nil
	}

	currentLabel := conv.LabelFor(t.clk.Now())
	if err := t.cache.OnEventUpdated(ctx, old, &updated, currentLabel, t.cfg.WeekTargetMin); err != nil {
		t.hub.Publish(notify.Event{
			Kind:    notify.KindDriftDetected,
			Message: fmt.Sprintf("aggregate update failed (run backfill to repair): %v", err),
			At:      t.clk.Now(),
		})
	}
	return &updated, nil
}

// RemoveEvent soft-deletes; the event stays in the log for audit.
func (t *trackerService) RemoveEvent(ctx context.Context, id string) (*RemoveResult, error) {
	ev, err := t.events.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ev.Deleted() {
		return nil, fmt.Errorf("time event %s: %w", id, repository.ErrNotFound)
	}

	at := t.clk.Now()
	if err := t.events.SoftDelete(ctx, id, at); err != nil {
		if qErr := t.enqueue(ctx, domain.OpDelete, clockOutPayload{Event: ev}); qErr != nil {
			return nil, fmt.Errorf("delete failed (%v) and queueing failed: %w", err, qErr)
		}
		return &RemoveResult{Event: ev, Queued: true}, nil
	}

	conv, err := t.cfg.Convention()
	if err != nil {
		return nil, err
	}
	currentLabel := conv.LabelFor(at)
	if err := t.cache.OnEventDeleted(ctx, ev, currentLabel, t.cfg.WeekTargetMin); err != nil {
		t.hub.Publish(notify.Event{
			Kind:    notify.KindDriftDetected,
			Message: fmt.Sprintf("aggregate update failed (run backfill to repair): %v", err),
			At:      at,
		})
	}
	return &RemoveResult{Event: ev}, nil
}

func (t *trackerService) enqueue(ctx context.Context, op domain.OperationKind, payload clockOutPayload) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding queued write: %w", err)
	}
	return t.writes.Enqueue(ctx, &domain.QueuedWrite{
		ID:      uuid.New().String(),
		Target:  domain.TargetTimeEvent,
		Op:      op,
		Payload: raw,
	})
}

func confirmMessage(d session.ClockOutDecision) string {
	switch d.Reason {
	case session.ReasonOverlong:
		return fmt.Sprintf("session ran %.1fh, %.1fh over the limit; confirm to save", d.Verdict.Hours, d.Verdict.ExceedsByHours)
	case session.ReasonZeroDuration:
		return "session rounds to 0 minutes; confirm to save"
	default:
		return "confirmation required"
	}
}
