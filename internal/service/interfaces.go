package service

import (
	"context"
	"time"

	"github.com/nmckee/stint/internal/aggregate"
	"github.com/nmckee/stint/internal/domain"
	"github.com/nmckee/stint/internal/session"
	"github.com/nmckee/stint/internal/week"
)

// ClockOutResult is a committed clock-out. Queued reports that the write
// could not reach storage and sits in the durable queue; the work is not
// lost and the aggregate updates once the retry succeeds.
type ClockOutResult struct {
	Event   *domain.TimeEvent
	Session *domain.WorkSession
	Queued  bool
}

// PendingClockOut carries a prepared-but-unconfirmed clock-out between
// the attempt and the user's confirmation. Dropping it (user declined)
// leaves the session exactly as it was.
type PendingClockOut struct {
	Session  *domain.WorkSession
	Decision session.ClockOutDecision
}

// ClockOutOutcome is the first phase of the two-phase clock-out API.
type ClockOutOutcome struct {
	Status   session.DecisionStatus
	Decision session.ClockOutDecision
	Pending  *PendingClockOut // set when Status is needs_confirmation
	Result   *ClockOutResult  // set when Status is ok
}

// ManualEntry is a directly logged time event.
type ManualEntry struct {
	JobID   string
	StartAt time.Time
	EndAt   time.Time
	Note    string
}

// PendingManual carries a prepared-but-unconfirmed manual entry.
type PendingManual struct {
	Event   *domain.TimeEvent
	Verdict session.Verdict
	Reason  session.ConfirmReason
}

// ManualOutcome is the two-phase result of logging a manual entry.
type ManualOutcome struct {
	Status  session.DecisionStatus
	Verdict session.Verdict
	Pending *PendingManual
	Event   *domain.TimeEvent
	Queued  bool
}

// RemoveResult reports a soft delete; Queued mirrors ClockOutResult.
type RemoveResult struct {
	Event  *domain.TimeEvent
	Queued bool
}

type TrackerService interface {
	ClockIn(ctx context.Context, jobID string) (*domain.WorkSession, error)
	StartBreak(ctx context.Context) (*domain.WorkSession, error)
	EndBreak(ctx context.Context) (*domain.WorkSession, error)
	ClockOut(ctx context.Context) (*ClockOutOutcome, error)
	ConfirmClockOut(ctx context.Context, pending *PendingClockOut) (*ClockOutResult, error)
	ActiveSession(ctx context.Context) (*domain.WorkSession, error)

	LogManual(ctx context.Context, entry ManualEntry) (*ManualOutcome, error)
	ConfirmManual(ctx context.Context, pending *PendingManual) (*ManualOutcome, error)
	AnnotateEvent(ctx context.Context, id, note string) error
	AmendEvent(ctx context.Context, id, jobID string, startAt, endAt time.Time) (*domain.TimeEvent, error)
	RemoveEvent(ctx context.Context, id string) (*RemoveResult, error)
}

// WeekReport is the current-week view: range, cached aggregate, and the
// open session if any.
type WeekReport struct {
	Range    week.Range
	Snapshot *domain.AggregateSnapshot
	Events   []*domain.TimeEvent
	Session  *domain.WorkSession
}

type ReportService interface {
	CurrentWeek(ctx context.Context) (*WeekReport, error)
	Backfill(ctx context.Context, weeksBack int) (aggregate.BackfillSummary, error)
	Drift(ctx context.Context) (*aggregate.DriftReport, error)
}
