package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmckee/stint/internal/domain"
	"github.com/nmckee/stint/internal/repository"
	"github.com/nmckee/stint/internal/testutil"
)

func newOpenSession(subjectID string, clockInAt time.Time) *domain.WorkSession {
	return &domain.WorkSession{
		ID:        uuid.New().String(),
		SubjectID: subjectID,
		JobID:     "acme",
		ClockInAt: clockInAt.UTC(),
		Status:    domain.SessionActive,
		CreatedAt: clockInAt.UTC(),
		UpdatedAt: clockInAt.UTC(),
	}
}

func TestSessionRepo_RoundTripWithBreaks(t *testing.T) {
	repo := repository.NewSQLiteSessionRepo(testutil.NewTestDB(t))
	ctx := context.Background()

	start := testutil.ReferenceTime()
	s := newOpenSession("default", start)
	breakEnd := start.Add(90 * time.Minute)
	s.Breaks = []domain.Break{
		{StartAt: start.Add(time.Hour), EndAt: &breakEnd},
		{StartAt: start.Add(2 * time.Hour)}, // still open
	}
	s.AccumulatedBreak = 30 * time.Minute
	s.Status = domain.SessionOnBreak

	require.NoError(t, repo.Create(ctx, s))

	got, err := repo.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionOnBreak, got.Status)
	assert.Equal(t, 30*time.Minute, got.AccumulatedBreak)
	require.Len(t, got.Breaks, 2)
	assert.True(t, got.Breaks[0].StartAt.Equal(s.Breaks[0].StartAt))
	require.NotNil(t, got.Breaks[0].EndAt)
	assert.True(t, got.Breaks[0].EndAt.Equal(breakEnd))
	assert.Nil(t, got.Breaks[1].EndAt)
	require.NotNil(t, got.OpenBreak())
}

func TestSessionRepo_GetOpenBySubject(t *testing.T) {
	repo := repository.NewSQLiteSessionRepo(testutil.NewTestDB(t))
	ctx := context.Background()

	_, err := repo.GetOpenBySubject(ctx, "default")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	s := newOpenSession("default", testutil.ReferenceTime())
	require.NoError(t, repo.Create(ctx, s))

	got, err := repo.GetOpenBySubject(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)

	// Completing the session removes it from the open lookup.
	out := testutil.ReferenceTime().Add(8 * time.Hour)
	s.ClockOutAt = &out
	s.Status = domain.SessionCompleted
	s.UpdatedAt = out
	require.NoError(t, repo.Update(ctx, s))

	_, err = repo.GetOpenBySubject(ctx, "default")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	archived, err := repo.GetByID(ctx, s.ID)
	require.NoError(t, err, "completed sessions stay archived")
	require.NotNil(t, archived.ClockOutAt)
	assert.True(t, archived.ClockOutAt.Equal(out))
}

func TestSessionRepo_OneOpenSessionPerSubject(t *testing.T) {
	repo := repository.NewSQLiteSessionRepo(testutil.NewTestDB(t))
	ctx := context.Background()

	first := newOpenSession("default", testutil.ReferenceTime())
	require.NoError(t, repo.Create(ctx, first))

	second := newOpenSession("default", testutil.ReferenceTime().Add(time.Hour))
	assert.Error(t, repo.Create(ctx, second), "partial unique index blocks a second open session")

	// A different subject is unaffected.
	other := newOpenSession("other", testutil.ReferenceTime())
	assert.NoError(t, repo.Create(ctx, other))

	// Once the first completes, the subject can open a new one.
	out := testutil.ReferenceTime().Add(2 * time.Hour)
	first.ClockOutAt = &out
	first.Status = domain.SessionCompleted
	require.NoError(t, repo.Update(ctx, first))
	assert.NoError(t, repo.Create(ctx, second))
}

func TestSessionRepo_ListRecent(t *testing.T) {
	repo := repository.NewSQLiteSessionRepo(testutil.NewTestDB(t))
	ctx := context.Background()

	now := time.Now().UTC()

	recent := newOpenSession("default", now.Add(-2*time.Hour))
	out := now.Add(-time.Hour)
	recent.ClockOutAt = &out
	recent.Status = domain.SessionCompleted

	stale := newOpenSession("default", now.AddDate(0, 0, -30))
	staleOut := stale.ClockInAt.Add(4 * time.Hour)
	stale.ClockOutAt = &staleOut
	stale.Status = domain.SessionCompleted

	require.NoError(t, repo.Create(ctx, recent))
	require.NoError(t, repo.Create(ctx, stale))

	sessions, err := repo.ListRecent(ctx, "default", 7)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, recent.ID, sessions[0].ID)
}

func TestSessionRepo_Update_NotFound(t *testing.T) {
	repo := repository.NewSQLiteSessionRepo(testutil.NewTestDB(t))
	s := newOpenSession("default", testutil.ReferenceTime())
	assert.ErrorIs(t, repo.Update(context.Background(), s), repository.ErrNotFound)
}
