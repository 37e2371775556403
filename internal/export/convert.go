package export

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nmckee/stint/internal/domain"
	"github.com/nmckee/stint/internal/week"
)

// FromEvents builds a backup document from the live event log. Soft-deleted
// events are left out: a restore recreates worked time, not the audit trail.
func FromEvents(subject string, events []*domain.TimeEvent, now time.Time) *Document {
	records := make([]EventRecord, 0, len(events))
	for _, e := range events {
		if e.Deleted() {
			continue
		}
		records = append(records, EventRecord{
			ID:    e.ID,
			Job:   e.JobID,
			Start: e.StartAt.UTC().Format(time.RFC3339),
			End:   e.EndAt.UTC().Format(time.RFC3339),
			Note:  e.Note,
		})
	}
	return &Document{
		Version:    Version,
		Subject:    subject,
		ExportedAt: now.UTC().Format(time.RFC3339),
		Events:     records,
	}
}

// ToEvents converts a validated document into domain events. Durations and
// week labels are recomputed under the given convention rather than trusted
// from the file; records without an ID get a fresh one. Call
// ValidateDocument first; ToEvents assumes the document is valid.
func ToEvents(doc *Document, conv week.Convention, subject string, now time.Time) ([]*domain.TimeEvent, error) {
	events := make([]*domain.TimeEvent, 0, len(doc.Events))
	for i, rec := range doc.Events {
		start, err := time.Parse(time.RFC3339, rec.Start)
		if err != nil {
			return nil, fmt.Errorf("events[%d].start: %w", i, err)
		}
		end, err := time.Parse(time.RFC3339, rec.End)
		if err != nil {
			return nil, fmt.Errorf("events[%d].end: %w", i, err)
		}
		start = start.UTC()
		end = end.UTC()

		id := rec.ID
		if id == "" {
			id = uuid.New().String()
		}

		events = append(events, &domain.TimeEvent{
			ID:          id,
			SubjectID:   subject,
			JobID:       rec.Job,
			StartAt:     start,
			EndAt:       end,
			DurationMin: domain.DurationMinutes(end.Sub(start)),
			WeekLabel:   conv.LabelFor(start),
			Note:        rec.Note,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	return events, nil
}
