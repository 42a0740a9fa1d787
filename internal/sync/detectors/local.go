package detectors

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/stacklok/record-sync/internal/store"
	"github.com/stacklok/record-sync/internal/sync/events"
)

// DefaultStorageBatchWindow is how long change batches are coalesced before
// an event is emitted.
const DefaultStorageBatchWindow = 100 * time.Millisecond

// LocalStorageDetector watches the local store's change feed and coalesces
// bursts of changed keys into one storage event per window.
type LocalStorageDetector struct {
	feed    store.ChangeFeed
	area    string
	window  time.Duration
	handler Handler
	now     Clock

	mu      sync.Mutex
	cancel  func()
	timer   *time.Timer
	pending []string
	seen    map[string]struct{}
}

// NewLocalStorageDetector creates a detector on feed. Batches tagged with an
// area other than store.AreaLocal are ignored.
func NewLocalStorageDetector(feed store.ChangeFeed, window time.Duration, handler Handler, now Clock) *LocalStorageDetector {
	if window <= 0 {
		window = DefaultStorageBatchWindow
	}
	if now == nil {
		now = time.Now
	}
	return &LocalStorageDetector{
		feed:    feed,
		area:    store.AreaLocal,
		window:  window,
		handler: handler,
		now:     now,
	}
}

// SetupDetection attaches to the change feed.
func (d *LocalStorageDetector) SetupDetection(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		return nil
	}
	d.cancel = d.feed.Watch(d.onBatch)
	slog.Debug("Local storage detection started", "window", d.window)
	return nil
}

func (d *LocalStorageDetector) onBatch(batch store.ChangeBatch) {
	if batch.Area != "" && batch.Area != d.area {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel == nil {
		return
	}
	if d.seen == nil {
		d.seen = make(map[string]struct{})
	}
	for _, key := range batch.Keys {
		if _, dup := d.seen[key]; dup {
			continue
		}
		d.seen[key] = struct{}{}
		d.pending = append(d.pending, key)
	}
	if d.timer != nil || len(d.pending) == 0 {
		return
	}

	var timer *time.Timer
	timer = time.AfterFunc(d.window, func() { d.flush(timer) })
	d.timer = timer
}

func (d *LocalStorageDetector) flush(timer *time.Timer) {
	d.mu.Lock()
	if d.timer != timer {
		d.mu.Unlock()
		return
	}
	keys := d.pending
	d.pending = nil
	d.seen = nil
	d.timer = nil
	d.mu.Unlock()

	d.handler(events.Event{
		Kind:        events.KindStorageChange,
		Timestamp:   d.now(),
		Priority:    events.PriorityNormal,
		Source:      "local_storage",
		Area:        d.area,
		ChangedKeys: keys,
	})
}

// Cleanup detaches from the feed and drops buffered keys.
func (d *LocalStorageDetector) Cleanup() {
	d.mu.Lock()
	cancel := d.cancel
	d.cancel = nil
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.pending = nil
	d.seen = nil
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// IsActive reports whether the detector is attached to the feed.
func (d *LocalStorageDetector) IsActive() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cancel != nil
}
