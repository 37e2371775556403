package domain

import "time"

// Break is one rest period inside a work session. EndAt is nil while the
// break is still open.
type Break struct {
	StartAt time.Time  `json:"start_at"`
	EndAt   *time.Time `json:"end_at,omitempty"`
}

// Open reports whether the break has not been closed yet.
func (b Break) Open() bool {
	return b.EndAt == nil
}

// WorkSession is the mutable state of one clock-in/clock-out lifecycle.
// At most one non-completed session exists per subject; AccumulatedBreak
// excludes a still-open break until it is closed.
type WorkSession struct {
	ID               string
	SubjectID        string
	JobID            string
	ClockInAt        time.Time
	ClockOutAt       *time.Time
	Status           SessionStatus
	Breaks           []Break
	AccumulatedBreak time.Duration
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// OpenBreak returns a pointer to the currently open break, or nil.
func (s *WorkSession) OpenBreak() *Break {
	for i := range s.Breaks {
		if s.Breaks[i].Open() {
			return &s.Breaks[i]
		}
	}
	return nil
}

// Completed reports whether the session reached its terminal state.
func (s *WorkSession) Completed() bool {
	return s.Status == SessionCompleted
}
