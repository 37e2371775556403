package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nmckee/stint/internal/db"
	"github.com/nmckee/stint/internal/domain"
)

const eventColumns = `id, subject_id, job_id, start_at, end_at, duration_min, week_label, note, deleted_at, created_at, updated_at`

// SQLiteEventLogRepo implements EventLogRepo on SQLite.
type SQLiteEventLogRepo struct {
	db db.DBTX
}

// NewSQLiteEventLogRepo creates a new SQLiteEventLogRepo.
func NewSQLiteEventLogRepo(db db.DBTX) *SQLiteEventLogRepo {
	return &SQLiteEventLogRepo{db: db}
}

func (r *SQLiteEventLogRepo) Create(ctx context.Context, e *domain.TimeEvent) error {
	query := `INSERT INTO time_events (` + eventColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		e.ID,
		e.SubjectID,
		e.JobID,
		e.StartAt.UTC().Format(time.RFC3339Nano),
		e.EndAt.UTC().Format(time.RFC3339Nano),
		e.DurationMin,
		e.WeekLabel,
		e.Note,
		nullableTimeToString(e.DeletedAt, time.RFC3339Nano),
		e.CreatedAt.UTC().Format(time.RFC3339Nano),
		e.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting time event: %w", err)
	}
	return nil
}

func (r *SQLiteEventLogRepo) Update(ctx context.Context, e *domain.TimeEvent) error {
	query := `UPDATE time_events
		SET job_id = ?, start_at = ?, end_at = ?, duration_min = ?, week_label = ?, note = ?, updated_at = ?
		WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query,
		e.JobID,
		e.StartAt.UTC().Format(time.RFC3339Nano),
		e.EndAt.UTC().Format(time.RFC3339Nano),
		e.DurationMin,
		e.WeekLabel,
		e.Note,
		e.UpdatedAt.UTC().Format(time.RFC3339Nano),
		e.ID,
	)
	if err != nil {
		return fmt.Errorf("updating time event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating time event: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("time event %s: %w", e.ID, ErrNotFound)
	}
	return nil
}

func (r *SQLiteEventLogRepo) SoftDelete(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE time_events SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`
	res, err := r.db.ExecContext(ctx, query,
		at.UTC().Format(time.RFC3339Nano),
		at.UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("soft-deleting time event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("soft-deleting time event: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("time event %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *SQLiteEventLogRepo) GetByID(ctx context.Context, id string) (*domain.TimeEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM time_events WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)
	return r.scanEvent(row)
}

func (r *SQLiteEventLogRepo) ListByWeek(ctx context.Context, weekLabel string) ([]*domain.TimeEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM time_events
		WHERE week_label = ? AND deleted_at IS NULL
		ORDER BY start_at`
	rows, err := r.db.QueryContext(ctx, query, weekLabel)
	if err != nil {
		return nil, fmt.Errorf("listing events by week: %w", err)
	}
	defer rows.Close()
	return r.scanEvents(rows)
}

func (r *SQLiteEventLogRepo) List(ctx context.Context) ([]*domain.TimeEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM time_events WHERE deleted_at IS NULL ORDER BY start_at`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()
	return r.scanEvents(rows)
}

func (r *SQLiteEventLogRepo) scanEvent(row *sql.Row) (*domain.TimeEvent, error) {
	var e domain.TimeEvent
	var startStr, endStr, createdStr, updatedStr string
	var deleted sql.NullString

	err := row.Scan(
		&e.ID, &e.SubjectID, &e.JobID, &startStr, &endStr, &e.DurationMin,
		&e.WeekLabel, &e.Note, &deleted, &createdStr, &updatedStr,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("time event: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("scanning time event: %w", err)
	}
	return r.populateEvent(&e, startStr, endStr, createdStr, updatedStr, deleted)
}

func (r *SQLiteEventLogRepo) scanEvents(rows *sql.Rows) ([]*domain.TimeEvent, error) {
	var events []*domain.TimeEvent
	for rows.Next() {
		var e domain.TimeEvent
		var startStr, endStr, createdStr, updatedStr string
		var deleted sql.NullString

		err := rows.Scan(
			&e.ID, &e.SubjectID, &e.JobID, &startStr, &endStr, &e.DurationMin,
			&e.WeekLabel, &e.Note, &deleted, &createdStr, &updatedStr,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning time event row: %w", err)
		}
		ev, parseErr := r.populateEvent(&e, startStr, endStr, createdStr, updatedStr, deleted)
		if parseErr != nil {
			return nil, parseErr
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating time events: %w", err)
	}
	return events, nil
}

func (r *SQLiteEventLogRepo) populateEvent(e *domain.TimeEvent, startStr, endStr, createdStr, updatedStr string, deleted sql.NullString) (*domain.TimeEvent, error) {
	var err error
	if e.StartAt, err = time.Parse(time.RFC3339Nano, startStr); err != nil {
		return nil, fmt.Errorf("parsing start_at: %w", err)
	}
	if e.EndAt, err = time.Parse(time.RFC3339Nano, endStr); err != nil {
		return nil, fmt.Errorf("parsing end_at: %w", err)
	}
	if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdStr); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if e.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedStr); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	e.DeletedAt = parseNullableTime(deleted, time.RFC3339Nano)
	return e, nil
}
