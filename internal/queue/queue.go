// Package queue is the offline-durable write queue: operations whose
// first storage attempt failed are persisted, retried with exponential
// backoff, and either confirmed or surfaced as permanent failures. An
// item never vanishes without a signal.
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nmckee/stint/internal/clock"
	"github.com/nmckee/stint/internal/domain"
	"github.com/nmckee/stint/internal/notify"
)

// Options tunes the retry policy.
type Options struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	MaxAttempts  int
}

// DefaultOptions is the production retry policy: 1s initial delay doubled
// per attempt, capped at 60s, five attempts before permanent failure.
func DefaultOptions() Options {
	return Options{
		InitialDelay: time.Second,
		MaxDelay:     60 * time.Second,
		MaxAttempts:  5,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.InitialDelay <= 0 {
		o.InitialDelay = d.InitialDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = d.MaxDelay
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = d.MaxAttempts
	}
	return o
}

// Store persists the whole queue. Save must replace the previous contents
// atomically so a crash leaves either the old or the new complete queue.
type Store interface {
	Load() ([]*domain.QueuedWrite, error)
	Save(items []*domain.QueuedWrite) error
}

// Applier performs the underlying write for one queued item. Appliers
// must be idempotent per target entity: replaying an already-applied item
// converges to the same final state.
type Applier func(ctx context.Context, item *domain.QueuedWrite) error

// FlushResult reports one processing pass. Partial success is the
// expected shape, not an error.
type FlushResult struct {
	Succeeded int
	Failed    int
	Dropped   int
}

// Queue holds pending durable writes in FIFO order.
type Queue struct {
	store Store
	apply Applier
	hub   *notify.Hub
	clk   clock.Clock
	opts  Options

	mu    sync.Mutex
	items []*domain.QueuedWrite
}

// New creates a Queue. Call Load before first use to restore items that
// survived a previous process.
func New(store Store, apply Applier, hub *notify.Hub, clk clock.Clock, opts Options) *Queue {
	return &Queue{store: store, apply: apply, hub: hub, clk: clk, opts: opts.withDefaults()}
}

// Load restores the persisted queue.
func (q *Queue) Load() error {
	items, err := q.store.Load()
	if err != nil {
		return fmt.Errorf("loading write queue: %w", err)
	}
	q.mu.Lock()
	q.items = items
	q.mu.Unlock()
	return nil
}

// Enqueue appends the item and persists the whole queue before returning,
// so a crash immediately afterwards cannot lose the pending operation.
func (q *Queue) Enqueue(ctx context.Context, item *domain.QueuedWrite) error {
	now := q.clk.Now()
	item.EnqueuedAt = now
	item.NextAttemptAt = now.Add(q.backoff(item.AttemptCount))

	q.mu.Lock()
	q.items = append(q.items, item)
	err := q.store.Save(q.items)
	if err != nil {
		// Roll back the in-memory append; the caller still holds the item.
		q.items = q.items[:len(q.items)-1]
	}
	q.mu.Unlock()
	if err != nil {
		return fmt.Errorf("persisting write queue: %w", err)
	}

	q.hub.Publish(notify.Event{
		Kind:    notify.KindWriteQueued,
		Message: fmt.Sprintf("save failed, %s %s queued for retry", item.Op, item.Target),
		At:      now,
		Data:    *item,
	})
	return nil
}

// Flush processes every queued item once, immediately, in enqueue order.
// Items that still fail stay queued for the next automatic retry.
func (q *Queue) Flush(ctx context.Context) FlushResult {
	res := q.process(ctx, q.clk.Now(), false)
	q.hub.Publish(notify.Event{
		Kind:    notify.KindFlushSummary,
		Message: fmt.Sprintf("flush: %d succeeded, %d failed, %d dropped", res.Succeeded, res.Failed, res.Dropped),
		At:      q.clk.Now(),
		Data:    res,
	})
	return res
}

// Tick processes items whose scheduled retry time has arrived. The owner
// drives it from the injected ticker.
func (q *Queue) Tick(ctx context.Context, now time.Time) FlushResult {
	return q.process(ctx, now, true)
}

// Run drives scheduled retries from the ticker until ctx is cancelled.
func (q *Queue) Run(ctx context.Context, tick clock.Ticker) {
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-tick.C():
			q.Tick(ctx, now.UTC())
		}
	}
}

// Len returns the number of pending items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Items returns copies of the pending items in enqueue order.
func (q *Queue) Items() []domain.QueuedWrite {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]domain.QueuedWrite, len(q.items))
	for i, it := range q.items {
		out[i] = *it
	}
	return out
}

// process runs one pass over the queue under the lock, serializing manual
// flushes against ticker-driven retries.
func (q *Queue) process(ctx context.Context, now time.Time, dueOnly bool) FlushResult {
	q.mu.Lock()
	defer q.mu.Unlock()

	var res FlushResult
	var dropped []*domain.QueuedWrite
	keep := q.items[:0]
	changed := false

	for _, item := range q.items {
		if dueOnly && item.NextAttemptAt.After(now) {
			keep = append(keep, item)
			continue
		}

		item.AttemptCount++
		changed = true
		if err := q.apply(ctx, item); err != nil {
			item.LastError = err.Error()
			if item.AttemptCount >= q.opts.MaxAttempts {
				res.Dropped++
				dropped = append(dropped, item)
				continue
			}
			item.NextAttemptAt = now.Add(q.backoff(item.AttemptCount))
			keep = append(keep, item)
			res.Failed++
			continue
		}
		res.Succeeded++
	}

	q.items = keep
	if changed {
		if err := q.store.Save(q.items); err != nil {
			// The in-memory queue is authoritative until the next
			// successful save; nothing is lost, only re-persisted late.
			q.hub.Publish(notify.Event{
				Kind:    notify.KindQueueSaveFailed,
				Message: fmt.Sprintf("persisting write queue: %v", err),
				At:      now,
			})
		}
	}

	for _, item := range dropped {
		q.hub.Publish(notify.Event{
			Kind: notify.KindPermanentFailure,
			Message: fmt.Sprintf("%s %s dropped after %d attempts: %s",
				item.Op, item.Target, item.AttemptCount, item.LastError),
			At:   now,
			Data: *item,
		})
	}
	return res
}

// backoff returns min(initial * 2^attempts, max).
func (q *Queue) backoff(attempts int) time.Duration {
	d := q.opts.InitialDelay
	for i := 0; i < attempts; i++ {
		d *= 2
		if d >= q.opts.MaxDelay {
			return q.opts.MaxDelay
		}
	}
	if d > q.opts.MaxDelay {
		return q.opts.MaxDelay
	}
	return d
}
