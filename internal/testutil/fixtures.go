package testutil

import (
	"time"

	"github.com/google/uuid"

	"github.com/nmckee/stint/internal/domain"
)

// EventOption mutates a fixture event.
type EventOption func(*domain.TimeEvent)

func WithJob(jobID string) EventOption {
	return func(e *domain.TimeEvent) { e.JobID = jobID }
}

func WithDuration(min int) EventOption {
	return func(e *domain.TimeEvent) {
		e.DurationMin = min
		e.EndAt = e.StartAt.Add(time.Duration(min) * time.Minute)
	}
}

func WithWeekLabel(label string) EventOption {
	return func(e *domain.TimeEvent) { e.WeekLabel = label }
}

func WithStart(at time.Time) EventOption {
	return func(e *domain.TimeEvent) {
		e.StartAt = at.UTC()
		e.EndAt = e.StartAt.Add(time.Duration(e.DurationMin) * time.Minute)
	}
}

// NewTestEvent builds a one-hour event starting at ReferenceTime for the
// given subject, with options applied on top.
func NewTestEvent(subjectID, weekLabel string, opts ...EventOption) *domain.TimeEvent {
	start := ReferenceTime()
	e := &domain.TimeEvent{
		ID:          uuid.New().String(),
		SubjectID:   subjectID,
		JobID:       "general",
		StartAt:     start,
		EndAt:       start.Add(time.Hour),
		DurationMin: 60,
		WeekLabel:   weekLabel,
		CreatedAt:   start,
		UpdatedAt:   start,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}
