package session

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/nmckee/stint/internal/clock"
	"github.com/nmckee/stint/internal/domain"
	"github.com/nmckee/stint/internal/week"
)

var (
	ErrSessionExists  = errors.New("an open session already exists for this subject")
	ErrNoSession      = errors.New("no open session")
	ErrCompleted      = errors.New("session is already completed")
	ErrAlreadyOnBreak = errors.New("session is already on break")
	ErrNotOnBreak     = errors.New("session is not on break")
	ErrBlocked        = errors.New("cannot commit a blocked clock-out")
)

// DecisionStatus classifies a prepared clock-out.
type DecisionStatus string

const (
	DecisionOK                DecisionStatus = "ok"
	DecisionBlocked           DecisionStatus = "blocked"
	DecisionNeedsConfirmation DecisionStatus = "needs_confirmation"
)

// ConfirmReason names why a decision requires explicit user confirmation.
type ConfirmReason string

const (
	ReasonOverlong     ConfirmReason = "overlong_session"
	ReasonZeroDuration ConfirmReason = "zero_duration"
)

// ClockOutDecision is the first half of the two-phase clock-out API:
// Prepare computes it without mutating the session, and Commit applies it
// once the caller (or the user, for needs-confirmation outcomes) agrees.
type ClockOutDecision struct {
	Status      DecisionStatus
	Reason      ConfirmReason
	Verdict     Verdict
	At          time.Time
	DurationMin int
}

// Machine governs the clock-in/break/clock-out lifecycle of one work
// session. It owns no storage; callers persist the mutated session and
// the emitted event.
type Machine struct {
	clk      clock.Clock
	maxHours float64
}

func NewMachine(clk clock.Clock, maxHours float64) *Machine {
	return &Machine{clk: clk, maxHours: maxHours}
}

// ClockIn creates a fresh active session. It fails if the subject already
// has a non-completed session.
func (m *Machine) ClockIn(subjectID, jobID string, existing *domain.WorkSession) (*domain.WorkSession, error) {
	if existing != nil && !existing.Completed() {
		return nil, ErrSessionExists
	}
	now := m.clk.Now()
	return &domain.WorkSession{
		ID:        uuid.New().String(),
		SubjectID: subjectID,
		JobID:     jobID,
		ClockInAt: now,
		Status:    domain.SessionActive,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// StartBreak opens a break entry. Only valid while active.
func (m *Machine) StartBreak(s *domain.WorkSession) error {
	switch s.Status {
	case domain.SessionOnBreak:
		return ErrAlreadyOnBreak
	case domain.SessionCompleted:
		return ErrCompleted
	}
	now := m.clk.Now()
	s.Breaks = append(s.Breaks, domain.Break{StartAt: now})
	s.Status = domain.SessionOnBreak
	s.UpdatedAt = now
	return nil
}

// EndBreak closes the open break and folds its duration into the
// accumulated break time. Only valid while on break.
func (m *Machine) EndBreak(s *domain.WorkSession) error {
	if s.Status != domain.SessionOnBreak {
		return ErrNotOnBreak
	}
	br := s.OpenBreak()
	if br == nil {
		return ErrNotOnBreak
	}
	now := m.clk.Now()
	end := now
	br.EndAt = &end
	s.AccumulatedBreak += end.Sub(br.StartAt)
	s.Status = domain.SessionActive
	s.UpdatedAt = now
	return nil
}

// PrepareClockOut computes the clock-out decision without mutating the
// session. A still-open break counts toward break time in the preview,
// since Commit will close it at the same instant.
func (m *Machine) PrepareClockOut(s *domain.WorkSession) (ClockOutDecision, error) {
	if s == nil {
		return ClockOutDecision{}, ErrNoSession
	}
	if s.Completed() {
		return ClockOutDecision{}, ErrCompleted
	}
	now := m.clk.Now()

	verdict := Validate(s.ClockInAt, now, m.maxHours)
	if verdict.TimeTravel {
		return ClockOutDecision{Status: DecisionBlocked, Verdict: verdict, At: now}, nil
	}

	breakTotal := s.AccumulatedBreak
	if br := s.OpenBreak(); br != nil {
		breakTotal += now.Sub(br.StartAt)
	}
	work := now.Sub(s.ClockInAt) - breakTotal
	d := ClockOutDecision{
		At:          now,
		Verdict:     verdict,
		DurationMin: domain.DurationMinutes(work),
	}

	switch {
	case !verdict.Valid:
		d.Status = DecisionNeedsConfirmation
		d.Reason = ReasonOverlong
	case d.DurationMin == 0:
		// All-break sessions are legal but suspicious enough to confirm.
		d.Status = DecisionNeedsConfirmation
		d.Reason = ReasonZeroDuration
	default:
		d.Status = DecisionOK
	}
	return d, nil
}

// CommitClockOut finalizes the session and emits the TimeEvent. The week
// label is always keyed off the clock-in instant: a session starting
// Sunday night and ending Monday morning belongs entirely to Sunday's
// week. Clocking out while on break implicitly ends the open break.
func (m *Machine) CommitClockOut(s *domain.WorkSession, d ClockOutDecision, conv week.Convention) (*domain.TimeEvent, error) {
	if d.Status == DecisionBlocked {
		return nil, ErrBlocked
	}
	if s.Completed() {
		return nil, ErrCompleted
	}

	if br := s.OpenBreak(); br != nil {
		end := d.At
		br.EndAt = &end
		s.AccumulatedBreak += end.Sub(br.StartAt)
	}
	out := d.At
	s.ClockOutAt = &out
	s.Status = domain.SessionCompleted
	s.UpdatedAt = d.At

	return &domain.TimeEvent{
		ID:          uuid.New().String(),
		SubjectID:   s.SubjectID,
		JobID:       s.JobID,
		StartAt:     s.ClockInAt.UTC(),
		EndAt:       d.At.UTC(),
		DurationMin: d.DurationMin,
		WeekLabel:   conv.LabelFor(s.ClockInAt),
		CreatedAt:   d.At.UTC(),
		UpdatedAt:   d.At.UTC(),
	}, nil
}
