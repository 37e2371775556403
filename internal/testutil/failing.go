package testutil

import (
	"context"
	"database/sql"
	"errors"
	"sync/atomic"
	"time"

	"github.com/nmckee/stint/internal/db"
	"github.com/nmckee/stint/internal/domain"
	"github.com/nmckee/stint/internal/repository"
)

// ErrStorageDown is the canonical injected storage failure.
var ErrStorageDown = errors.New("storage unavailable")

// FlakyEventRepo wraps an EventLogRepo and fails writes while Down is
// set, simulating a transient storage outage for durable-queue tests.
type FlakyEventRepo struct {
	Inner repository.EventLogRepo
	Down  atomic.Bool
}

func (f *FlakyEventRepo) Create(ctx context.Context, e *domain.TimeEvent) error {
	if f.Down.Load() {
		return ErrStorageDown
	}
	return f.Inner.Create(ctx, e)
}

func (f *FlakyEventRepo) Update(ctx context.Context, e *domain.TimeEvent) error {
	if f.Down.Load() {
		return ErrStorageDown
	}
	return f.Inner.Update(ctx, e)
}

func (f *FlakyEventRepo) SoftDelete(ctx context.Context, id string, at time.Time) error {
	if f.Down.Load() {
		return ErrStorageDown
	}
	return f.Inner.SoftDelete(ctx, id, at)
}

func (f *FlakyEventRepo) GetByID(ctx context.Context, id string) (*domain.TimeEvent, error) {
	return f.Inner.GetByID(ctx, id)
}

func (f *FlakyEventRepo) ListByWeek(ctx context.Context, weekLabel string) ([]*domain.TimeEvent, error) {
	return f.Inner.ListByWeek(ctx, weekLabel)
}

func (f *FlakyEventRepo) List(ctx context.Context) ([]*domain.TimeEvent, error) {
	return f.Inner.List(ctx)
}

// FlakyUoW fails WithinTx while Down is set, otherwise delegates.
type FlakyUoW struct {
	Inner db.UnitOfWork
	Down  atomic.Bool
}

func (f *FlakyUoW) WithinTx(ctx context.Context, fn func(ctx context.Context, tx db.DBTX) error) error {
	if f.Down.Load() {
		return ErrStorageDown
	}
	return f.Inner.WithinTx(ctx, fn)
}

// FailOnNthExecUoW injects an error on the Nth ExecContext call within a
// transaction, enabling rollback tests that fail at precise points in
// multi-write operations. Calls are counted starting at 1; reads pass
// through.
type FailOnNthExecUoW struct {
	DB     *sql.DB
	FailOn int32
	Err    error
}

func (u *FailOnNthExecUoW) WithinTx(ctx context.Context, fn func(ctx context.Context, tx db.DBTX) error) error {
	tx, err := u.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	wrapped := &failOnNthExec{DBTX: tx, failOn: u.FailOn, err: u.Err}
	if fnErr := fn(ctx, wrapped); fnErr != nil {
		_ = tx.Rollback()
		return fnErr
	}
	return tx.Commit()
}

type failOnNthExec struct {
	db.DBTX
	count  atomic.Int32
	failOn int32
	err    error
}

func (f *failOnNthExec) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	n := f.count.Add(1)
	if n == f.failOn {
		return nil, f.err
	}
	return f.DBTX.ExecContext(ctx, query, args...)
}
