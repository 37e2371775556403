package week

import (
	"fmt"
	"time"
)

// Start is the configured first day of the week. The numeric values line
// up with time.Weekday (Sunday=0, Monday=1).
type Start int

const (
	Sunday Start = 0
	Monday Start = 1
)

// ParseStart converts the configuration strings "sunday"/"monday".
func ParseStart(s string) (Start, error) {
	switch s {
	case "sunday":
		return Sunday, nil
	case "monday":
		return Monday, nil
	default:
		return Sunday, fmt.Errorf("unknown week start %q (want sunday or monday)", s)
	}
}

func (s Start) String() string {
	if s == Monday {
		return "monday"
	}
	return "sunday"
}

// Convention binds an IANA timezone to a week-start day. All week math is
// done on local calendar days under real timezone rules, so ranges that
// cross a DST transition are not 7x24h wide in UTC.
type Convention struct {
	loc   *time.Location
	start Start
}

// NewConvention loads the IANA timezone and returns a usable convention.
func NewConvention(tz string, start Start) (Convention, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return Convention{}, fmt.Errorf("loading timezone %q: %w", tz, err)
	}
	return Convention{loc: loc, start: start}, nil
}

// Location exposes the loaded timezone.
func (c Convention) Location() *time.Location {
	return c.loc
}

// Localize converts a UTC instant into local wall-clock time under the
// convention's timezone rules.
func (c Convention) Localize(instant time.Time) time.Time {
	return instant.In(c.loc)
}

// Range is one calendar week as a half-open UTC interval [Start, End).
// An instant exactly at End belongs to the next week.
type Range struct {
	Start time.Time
	End   time.Time
	Label string
}

// Contains reports whether the instant falls inside [Start, End).
func (r Range) Contains(instant time.Time) bool {
	return !instant.Before(r.Start) && instant.Before(r.End)
}

// Width is the UTC width of the range. It equals 7 days except for weeks
// crossing a DST transition, where it differs by the offset delta.
func (r Range) Width() time.Duration {
	return r.End.Sub(r.Start)
}

// InRange reports whether instant falls inside the half-open interval
// [start, end).
func InRange(instant, start, end time.Time) bool {
	return !instant.Before(start) && instant.Before(end)
}

// RangeFor returns the week containing the given instant. The start is
// local midnight of the configured week-start day; the end is exactly 7
// local calendar days later, both converted back to UTC.
func (c Convention) RangeFor(instant time.Time) Range {
	lt := instant.In(c.loc)
	back := (int(lt.Weekday()) - int(c.start) + 7) % 7
	y, m, d := lt.Date()
	// time.Date normalizes a nonexistent local midnight (a DST jump at
	// 00:00) to the nearest valid wall-clock time.
	startLocal := time.Date(y, m, d-back, 0, 0, 0, 0, c.loc)
	endLocal := time.Date(y, m, d-back+7, 0, 0, 0, 0, c.loc)
	return Range{
		Start: startLocal.UTC(),
		End:   endLocal.UTC(),
		Label: labelFor(startLocal),
	}
}

// LabelFor returns the week label for the instant under this convention.
func (c Convention) LabelFor(instant time.Time) string {
	return c.RangeFor(instant).Label
}

// LastN returns the week containing now followed by the n-1 weeks before
// it, newest first.
func (c Convention) LastN(now time.Time, n int) []Range {
	ranges := make([]Range, 0, n)
	r := c.RangeFor(now)
	for i := 0; i < n; i++ {
		ranges = append(ranges, r)
		prevDay := r.Start.In(c.loc).AddDate(0, 0, -1)
		r = c.RangeFor(prevDay)
	}
	return ranges
}

// labelFor derives the stable YYYY-Www bucket key from the local
// week-start date. This is a simplified day-count numbering, not strict
// ISO 8601: labels are opaque, internally consistent keys, comparable as
// strings within a year.
func labelFor(startLocal time.Time) string {
	return fmt.Sprintf("%04d-W%02d", startLocal.Year(), (startLocal.YearDay()-1)/7+1)
}
