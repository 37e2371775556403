package session

import "time"

// DefaultMaxHours covers legitimate long shifts while still catching
// forgotten clock-outs (typically 24h+) with few false positives.
const DefaultMaxHours = 14.0

// Verdict is the outcome of plausibility-checking a session span.
// TimeTravel is a hard block; an excessive duration is a soft flag the
// caller must confirm with the user before persisting.
type Verdict struct {
	Valid          bool
	TimeTravel     bool
	Hours          float64
	ExceedsByHours float64
}

// Validate flags implausible session durations before they are persisted.
// A maxHours of zero or below falls back to DefaultMaxHours.
func Validate(startAt, endAt time.Time, maxHours float64) Verdict {
	if maxHours <= 0 {
		maxHours = DefaultMaxHours
	}
	if !endAt.After(startAt) {
		return Verdict{Valid: false, TimeTravel: true}
	}
	hours := endAt.Sub(startAt).Hours()
	if hours > maxHours {
		return Verdict{
			Valid:          false,
			Hours:          hours,
			ExceedsByHours: hours - maxHours,
		}
	}
	return Verdict{Valid: true, Hours: hours}
}
