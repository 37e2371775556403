package repository

import (
	"context"
	"errors"
	"time"

	"github.com/nmckee/stint/internal/domain"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// EventLogRepo is the append/soft-delete store of atomic time-log events.
// Events are never hard-deleted; SoftDelete preserves the audit trail.
type EventLogRepo interface {
	Create(ctx context.Context, e *domain.TimeEvent) error
	Update(ctx context.Context, e *domain.TimeEvent) error
	SoftDelete(ctx context.Context, id string, at time.Time) error
	GetByID(ctx context.Context, id string) (*domain.TimeEvent, error)
	// ListByWeek returns non-deleted events for one week label via the
	// week index, ordered by start instant.
	ListByWeek(ctx context.Context, weekLabel string) ([]*domain.TimeEvent, error)
	// List is a full scan, last-resort only.
	List(ctx context.Context) ([]*domain.TimeEvent, error)
}

// SessionRepo stores work sessions. Completed sessions stay archived in
// place; GetOpenBySubject only ever sees non-completed rows.
type SessionRepo interface {
	Create(ctx context.Context, s *domain.WorkSession) error
	Update(ctx context.Context, s *domain.WorkSession) error
	GetByID(ctx context.Context, id string) (*domain.WorkSession, error)
	GetOpenBySubject(ctx context.Context, subjectID string) (*domain.WorkSession, error)
	ListRecent(ctx context.Context, subjectID string, days int) ([]*domain.WorkSession, error)
}

// KVRepo is the atomic whole-value persistence layer consumed by the
// aggregation cache. Get returns (nil, nil) for a missing key.
type KVRepo interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
