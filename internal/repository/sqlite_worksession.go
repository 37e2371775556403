package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nmckee/stint/internal/db"
	"github.com/nmckee/stint/internal/domain"
)

const sessionColumns = `id, subject_id, job_id, clock_in_at, clock_out_at, status, breaks, accumulated_break_ms, created_at, updated_at`

// SQLiteSessionRepo implements SessionRepo on SQLite. Breaks are stored
// as a JSON array column; the partial unique index on open sessions backs
// the one-open-session-per-subject invariant.
type SQLiteSessionRepo struct {
	db db.DBTX
}

// NewSQLiteSessionRepo creates a new SQLiteSessionRepo.
func NewSQLiteSessionRepo(db db.DBTX) *SQLiteSessionRepo {
	return &SQLiteSessionRepo{db: db}
}

func (r *SQLiteSessionRepo) Create(ctx context.Context, s *domain.WorkSession) error {
	breaks, err := json.Marshal(s.Breaks)
	if err != nil {
		return fmt.Errorf("encoding breaks: %w", err)
	}
	query := `INSERT INTO work_sessions (` + sessionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		s.ID,
		s.SubjectID,
		s.JobID,
		s.ClockInAt.UTC().Format(time.RFC3339Nano),
		nullableTimeToString(s.ClockOutAt, time.RFC3339Nano),
		string(s.Status),
		string(breaks),
		s.AccumulatedBreak.Milliseconds(),
		s.CreatedAt.UTC().Format(time.RFC3339Nano),
		s.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting work session: %w", err)
	}
	return nil
}

func (r *SQLiteSessionRepo) Update(ctx context.Context, s *domain.WorkSession) error {
	breaks, err := json.Marshal(s.Breaks)
	if err != nil {
		return fmt.Errorf("encoding breaks: %w", err)
	}
	query := `UPDATE work_sessions
		SET clock_out_at = ?, status = ?, breaks = ?, accumulated_break_ms = ?, updated_at = ?
		WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query,
		nullableTimeToString(s.ClockOutAt, time.RFC3339Nano),
		string(s.Status),
		string(breaks),
		s.AccumulatedBreak.Milliseconds(),
		s.UpdatedAt.UTC().Format(time.RFC3339Nano),
		s.ID,
	)
	if err != nil {
		return fmt.Errorf("updating work session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating work session: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("work session %s: %w", s.ID, ErrNotFound)
	}
	return nil
}

func (r *SQLiteSessionRepo) GetByID(ctx context.Context, id string) (*domain.WorkSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM work_sessions WHERE id = ?`
	return r.scanSession(r.db.QueryRowContext(ctx, query, id))
}

func (r *SQLiteSessionRepo) GetOpenBySubject(ctx context.Context, subjectID string) (*domain.WorkSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM work_sessions
		WHERE subject_id = ? AND status != 'completed'`
	return r.scanSession(r.db.QueryRowContext(ctx, query, subjectID))
}

func (r *SQLiteSessionRepo) ListRecent(ctx context.Context, subjectID string, days int) ([]*domain.WorkSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM work_sessions
		WHERE subject_id = ? AND clock_in_at >= datetime('now', ? || ' days')
		ORDER BY clock_in_at DESC`
	rows, err := r.db.QueryContext(ctx, query, subjectID, fmt.Sprintf("-%d", days))
	if err != nil {
		return nil, fmt.Errorf("listing recent sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*domain.WorkSession
	for rows.Next() {
		s, err := r.scanSessionRow(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sessions: %w", err)
	}
	return sessions, nil
}

func (r *SQLiteSessionRepo) scanSession(row *sql.Row) (*domain.WorkSession, error) {
	var s domain.WorkSession
	var clockInStr, status, breaksStr, createdStr, updatedStr string
	var clockOut sql.NullString
	var breakMs int64

	err := row.Scan(
		&s.ID, &s.SubjectID, &s.JobID, &clockInStr, &clockOut, &status,
		&breaksStr, &breakMs, &createdStr, &updatedStr,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("work session: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("scanning work session: %w", err)
	}
	return r.populateSession(&s, clockInStr, status, breaksStr, createdStr, updatedStr, clockOut, breakMs)
}

func (r *SQLiteSessionRepo) scanSessionRow(rows *sql.Rows) (*domain.WorkSession, error) {
	var s domain.WorkSession
	var clockInStr, status, breaksStr, createdStr, updatedStr string
	var clockOut sql.NullString
	var breakMs int64

	err := rows.Scan(
		&s.ID, &s.SubjectID, &s.JobID, &clockInStr, &clockOut, &status,
		&breaksStr, &breakMs, &createdStr, &updatedStr,
	)
	if err != nil {
		return nil, fmt.Errorf("scanning work session row: %w", err)
	}
	return r.populateSession(&s, clockInStr, status, breaksStr, createdStr, updatedStr, clockOut, breakMs)
}

func (r *SQLiteSessionRepo) populateSession(s *domain.WorkSession, clockInStr, status, breaksStr, createdStr, updatedStr string, clockOut sql.NullString, breakMs int64) (*domain.WorkSession, error) {
	var err error
	if s.ClockInAt, err = time.Parse(time.RFC3339Nano, clockInStr); err != nil {
		return nil, fmt.Errorf("parsing clock_in_at: %w", err)
	}
	if s.CreatedAt, err = time.Parse(time.RFC3339Nano, createdStr); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if s.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedStr); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	s.ClockOutAt = parseNullableTime(clockOut, time.RFC3339Nano)
	s.Status = domain.SessionStatus(status)
	s.AccumulatedBreak = time.Duration(breakMs) * time.Millisecond
	if err := json.Unmarshal([]byte(breaksStr), &s.Breaks); err != nil {
		return nil, fmt.Errorf("decoding breaks: %w", err)
	}
	return s, nil
}
