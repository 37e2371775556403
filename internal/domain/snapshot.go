package domain

import "time"

// AggregateSnapshot is the cached weekly aggregate: total minutes worked
// and minutes per job for one week label. It is a pure cache over the
// event log and may be discarded and rebuilt at any time.
type AggregateSnapshot struct {
	WeekLabel       string         `json:"week_label"`
	TotalMin        int            `json:"total_min"`
	TargetMin       int            `json:"target_min"`
	PerJobMin       map[string]int `json:"per_job_min"`
	LastUpdatedAt   time.Time      `json:"last_updated_at"`
	LastRecomputeAt *time.Time     `json:"last_recompute_at,omitempty"`
}

// NewAggregateSnapshot returns an empty snapshot for the given week.
func NewAggregateSnapshot(weekLabel string, targetMin int) *AggregateSnapshot {
	return &AggregateSnapshot{
		WeekLabel: weekLabel,
		TargetMin: targetMin,
		PerJobMin: map[string]int{},
	}
}

// Clone returns a deep copy so callers can hand snapshots out without
// exposing the live map.
func (s *AggregateSnapshot) Clone() *AggregateSnapshot {
	if s == nil {
		return nil
	}
	out := *s
	out.PerJobMin = make(map[string]int, len(s.PerJobMin))
	for k, v := range s.PerJobMin {
		out.PerJobMin[k] = v
	}
	return &out
}

// Add applies a signed per-job minute delta. Both the job bucket and the
// total clamp at zero; a job that reaches zero drops out of the map.
func (s *AggregateSnapshot) Add(jobID string, deltaMin int) {
	s.PerJobMin[jobID] += deltaMin
	if s.PerJobMin[jobID] <= 0 {
		delete(s.PerJobMin, jobID)
	}
	s.TotalMin += deltaMin
	if s.TotalMin < 0 {
		s.TotalMin = 0
	}
}
