package domain

import "time"

// TimeEvent is an immutable record of worked time. The week label is fixed
// at write time from StartAt under the configuration in effect then; a
// later configuration change never rewrites stored labels (only a forced
// backfill recomputes them).
type TimeEvent struct {
	ID          string
	SubjectID   string
	JobID       string
	StartAt     time.Time // UTC
	EndAt       time.Time // UTC, strictly after StartAt
	DurationMin int
	WeekLabel   string
	Note        string
	DeletedAt   *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Deleted reports whether the event has been soft-deleted.
func (e *TimeEvent) Deleted() bool {
	return e.DeletedAt != nil
}

// DurationMinutes rounds a work duration to whole minutes, clamping
// negatives to zero.
func DurationMinutes(work time.Duration) int {
	if work < 0 {
		return 0
	}
	return int((work + 30*time.Second) / time.Minute)
}
