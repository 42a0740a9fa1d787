// Package queue collects sync triggers and debounces them into single
// executions, with at most one execution in flight.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/stacklok/record-sync/internal/status"
	"github.com/stacklok/record-sync/internal/sync/events"
)

// Executor runs one sync for the collected batch of triggers.
type Executor func(ctx context.Context, batch []events.Event) error

// Option configures a Queue.
type Option func(*Queue)

// WithContext sets the context executions run with.
func WithContext(ctx context.Context) Option {
	return func(q *Queue) { q.ctx = ctx }
}

// Queue is a pure debounce: every Enqueue restarts the quiet period, and a
// single execution handles everything collected when it elapses.
type Queue struct {
	delay    time.Duration
	enabled  func() bool
	executor Executor
	status   *status.Broadcaster
	ctx      context.Context

	mu         sync.Mutex
	events     []events.Event
	timer      *time.Timer
	processing bool
	closed     bool
}

// New creates a queue that waits delay after the last Enqueue before calling
// executor. Enqueue is ignored while enabled returns false.
func New(delay time.Duration, enabled func() bool, executor Executor, broadcaster *status.Broadcaster, opts ...Option) *Queue {
	q := &Queue{
		delay:    delay,
		enabled:  enabled,
		executor: executor,
		status:   broadcaster,
		ctx:      context.Background(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue adds ev and restarts the debounce timer. It reports whether the
// event was accepted.
func (q *Queue) Enqueue(ev events.Event) bool {
	if !q.enabled() {
		return false
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.events = append(q.events, ev)
	size := len(q.events)
	q.armLocked()
	q.mu.Unlock()

	slog.Debug("Sync trigger queued", "kind", ev.Kind, "priority", ev.Priority.String(), "queue_size", size)
	q.status.Update(func(s *status.SyncStatus) { s.QueueSize = size })
	return true
}

// Size returns the number of pending triggers.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// IsProcessing reports whether an execution is in flight.
func (q *Queue) IsProcessing() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.processing
}

// Cleanup stops the debounce timer and rejects further events. An execution
// already in flight runs to completion.
func (q *Queue) Cleanup() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
}

func (q *Queue) armLocked() {
	if q.timer != nil {
		q.timer.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(q.delay, func() { q.fire(timer) })
	q.timer = timer
}

func (q *Queue) fire(timer *time.Timer) {
	q.mu.Lock()
	if q.timer != timer {
		// Superseded by a later Enqueue.
		q.mu.Unlock()
		return
	}
	q.timer = nil
	if q.closed || q.processing || len(q.events) == 0 {
		q.mu.Unlock()
		return
	}
	batch := q.events
	q.events = nil
	q.processing = true
	q.mu.Unlock()

	q.status.Update(func(s *status.SyncStatus) {
		s.IsRunning = true
		s.QueueSize = 0
		s.Error = ""
	})

	err := q.execute(batch)

	q.mu.Lock()
	q.processing = false
	remaining := len(q.events)
	if remaining > 0 && !q.closed {
		q.armLocked()
	}
	q.mu.Unlock()

	q.status.Update(func(s *status.SyncStatus) {
		s.IsRunning = false
		s.QueueSize = remaining
		if err != nil {
			s.Error = err.Error()
		}
	})
}

func (q *Queue) execute(batch []events.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sync executor panicked: %v", r)
		}
	}()

	if err := q.executor(q.ctx, batch); err != nil {
		slog.Error("Sync execution failed", "error", err, "triggers", len(batch))
		return err
	}
	return nil
}
