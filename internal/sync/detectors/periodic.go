package detectors

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stacklok/record-sync/internal/sync/events"
)

// DefaultPeriodicInterval is the default time between periodic triggers.
const DefaultPeriodicInterval = 5 * time.Minute

// PeriodicDetector emits a trigger on every tick while sync is enabled. It
// does not look at queue or running state.
type PeriodicDetector struct {
	interval   time.Duration
	enabled    func() bool
	handler    Handler
	now        Clock
	onSchedule func(next time.Time)

	mu   sync.Mutex
	loop *tickLoop
	next time.Time
}

// tickLoop is one run of the ticker goroutine.
type tickLoop struct {
	cancel context.CancelFunc
	done   chan struct{}
	// firing is set while the loop runs the schedule hook or the handler.
	firing atomic.Bool
}

// PeriodicOption configures a PeriodicDetector.
type PeriodicOption func(*PeriodicDetector)

// WithScheduleHook registers fn to receive the next tick time whenever it
// changes. It receives the zero time on Cleanup.
func WithScheduleHook(fn func(next time.Time)) PeriodicOption {
	return func(d *PeriodicDetector) { d.onSchedule = fn }
}

// WithPeriodicClock overrides the time source.
func WithPeriodicClock(now Clock) PeriodicOption {
	return func(d *PeriodicDetector) { d.now = now }
}

// NewPeriodicDetector creates a detector ticking every interval.
func NewPeriodicDetector(interval time.Duration, enabled func() bool, handler Handler, opts ...PeriodicOption) *PeriodicDetector {
	if interval <= 0 {
		interval = DefaultPeriodicInterval
	}
	d := &PeriodicDetector{
		interval: interval,
		enabled:  enabled,
		handler:  handler,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SetupDetection starts the ticker goroutine. It stops when ctx is cancelled
// or Cleanup is called.
func (d *PeriodicDetector) SetupDetection(ctx context.Context) error {
	d.mu.Lock()
	if d.loop != nil {
		d.mu.Unlock()
		return nil
	}
	loopCtx, cancel := context.WithCancel(ctx)
	loop := &tickLoop{cancel: cancel, done: make(chan struct{})}
	d.loop = loop
	next := d.now().Add(d.interval)
	d.next = next
	d.mu.Unlock()

	d.schedule(next)
	slog.Debug("Periodic detection started", "interval", d.interval)

	go d.run(loopCtx, loop)
	return nil
}

func (d *PeriodicDetector) run(ctx context.Context, loop *tickLoop) {
	defer close(loop.done)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := d.now()
			next := now.Add(d.interval)
			d.mu.Lock()
			if d.loop != loop {
				d.mu.Unlock()
				return
			}
			d.next = next
			d.mu.Unlock()

			loop.firing.Store(true)
			d.fire(ctx, now, next)
			loop.firing.Store(false)
		case <-ctx.Done():
			return
		}
	}
}

func (d *PeriodicDetector) fire(ctx context.Context, now, next time.Time) {
	d.schedule(next)

	if ctx.Err() != nil {
		return
	}
	if !d.enabled() {
		slog.Debug("Periodic trigger skipped, sync disabled")
		return
	}
	d.handler(events.Event{
		Kind:      events.KindPeriodic,
		Timestamp: now,
		Priority:  events.PriorityLow,
		Source:    "periodic",
	})
}

func (d *PeriodicDetector) schedule(next time.Time) {
	if d.onSchedule != nil {
		d.onSchedule(next)
	}
}

// NextScheduled returns the time of the next tick. ok is false while inactive.
func (d *PeriodicDetector) NextScheduled() (next time.Time, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.next, d.loop != nil
}

// Cleanup stops the ticker and waits for the loop to exit. Called from the
// schedule hook or the handler, it stops the loop without waiting for it.
func (d *PeriodicDetector) Cleanup() {
	d.mu.Lock()
	loop := d.loop
	d.loop = nil
	d.next = time.Time{}
	d.mu.Unlock()

	if loop == nil {
		return
	}
	loop.cancel()
	if !loop.firing.Load() {
		<-loop.done
	}
	d.schedule(time.Time{})
}

// IsActive reports whether the ticker is running.
func (d *PeriodicDetector) IsActive() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loop != nil
}
