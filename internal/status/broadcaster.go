package status

import (
	"log/slog"
	"sync"
	"time"
)

// Listener receives every status change. A listener that panics is removed.
// A listener may call back into the broadcaster; the resulting notification
// is delivered once the current one has reached every listener.
type Listener func(SyncStatus)

// ListenerID identifies a registered listener for removal.
type ListenerID uint64

type listenerEntry struct {
	id ListenerID
	fn Listener
}

// notification is one status snapshot waiting for delivery to targets.
type notification struct {
	targets []listenerEntry
	status  SyncStatus
}

// Broadcaster owns the single current SyncStatus and pushes every change to
// its listeners synchronously, in the order changes were applied. No lock is
// held while a listener runs.
type Broadcaster struct {
	mu        sync.Mutex
	status    SyncStatus
	listeners []listenerEntry
	nextID    ListenerID

	// pending is drained by the one caller that finds delivering unset.
	pending    []notification
	delivering bool
	idle       *sync.Cond
}

// NewBroadcaster creates a broadcaster holding initial.
func NewBroadcaster(initial SyncStatus) *Broadcaster {
	b := &Broadcaster{status: initial.Clone()}
	b.idle = sync.NewCond(&b.mu)
	return b
}

// Status returns a copy of the current status.
func (b *Broadcaster) Status() SyncStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status.Clone()
}

// AddListener registers fn and immediately invokes it with the current status.
// While another delivery is in progress the invocation is queued behind it.
func (b *Broadcaster) AddListener(fn Listener) ListenerID {
	b.mu.Lock()
	b.nextID++
	entry := listenerEntry{id: b.nextID, fn: fn}
	b.listeners = append(b.listeners, entry)
	b.pending = append(b.pending, notification{targets: []listenerEntry{entry}, status: b.status.Clone()})
	b.mu.Unlock()

	b.drain()
	return entry.id
}

// RemoveListener unregisters the listener with id. It reports whether the
// listener was registered. Queued notifications are not delivered to it.
func (b *Broadcaster) RemoveListener(id ListenerID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, l := range b.listeners {
		if l.id == id {
			b.listeners = append(b.listeners[:i:i], b.listeners[i+1:]...)
			return true
		}
	}
	return false
}

// ListenerCount returns the number of registered listeners.
func (b *Broadcaster) ListenerCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}

// Update applies fn to the current status and notifies every listener.
// When a delivery is already in progress, on this goroutine or another, the
// notification is queued behind it and Update returns without waiting.
func (b *Broadcaster) Update(fn func(s *SyncStatus)) {
	b.mu.Lock()
	before := b.status.Clone()
	fn(&b.status)
	after := b.status.Clone()
	b.pending = append(b.pending, notification{
		targets: append([]listenerEntry(nil), b.listeners...),
		status:  after,
	})
	b.mu.Unlock()

	logTransitions(before, after)
	b.drain()
}

// Flush blocks until no delivery is in progress. It must not be called from
// a listener.
func (b *Broadcaster) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for b.delivering {
		b.idle.Wait()
	}
}

// drain delivers pending notifications until none are left, unless another
// caller is already doing so.
func (b *Broadcaster) drain() {
	b.mu.Lock()
	if b.delivering {
		b.mu.Unlock()
		return
	}
	b.delivering = true

	for len(b.pending) > 0 {
		n := b.pending[0]
		b.pending = b.pending[1:]

		for _, l := range n.targets {
			if !b.registeredLocked(l.id) {
				continue
			}
			b.mu.Unlock()
			b.deliver(l, n.status)
			b.mu.Lock()
		}
	}
	b.pending = nil
	b.delivering = false
	b.idle.Broadcast()
	b.mu.Unlock()
}

func (b *Broadcaster) registeredLocked(id ListenerID) bool {
	for _, l := range b.listeners {
		if l.id == id {
			return true
		}
	}
	return false
}

// SetLastSync records the outcome of a sync. A successful result clears the
// error; a failed one keeps an existing error and otherwise surfaces the
// first failure.
func (b *Broadcaster) SetLastSync(at time.Time, result Result) {
	b.Update(func(s *SyncStatus) {
		s.LastSync = &at
		s.LastResult = &result
		switch {
		case result.Success:
			s.Error = ""
		case s.Error == "" && len(result.Errors) > 0:
			s.Error = result.Errors[0].Message
		}
	})
}

func (b *Broadcaster) deliver(l listenerEntry, s SyncStatus) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Status listener panicked, removing it", "listener", l.id, "panic", r)
			b.RemoveListener(l.id)
		}
	}()
	l.fn(s.Clone())
}

func logTransitions(before, after SyncStatus) {
	if before.Enabled != after.Enabled {
		slog.Info("Sync enabled state changed", "enabled", after.Enabled)
	}
	if before.IsRunning != after.IsRunning {
		if after.IsRunning {
			slog.Debug("Sync started")
		} else {
			slog.Debug("Sync finished")
		}
	}
	switch {
	case before.Error == "" && after.Error != "":
		slog.Warn("Sync error reported", "error", after.Error)
	case before.Error != "" && after.Error == "":
		slog.Info("Sync error cleared")
	}
}
