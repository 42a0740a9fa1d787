// Package filter implements the layered gate every detected event passes
// before it may enqueue a sync. Layers are evaluated in a fixed order and the
// first rejection wins.
package filter

import (
	"strings"
	"sync"
	"time"

	"github.com/stacklok/record-sync/internal/store"
	"github.com/stacklok/record-sync/internal/sync/events"
	"github.com/stacklok/record-sync/internal/sync/state"
)

// Layer names the gate that produced a decision.
type Layer string

const (
	LayerDataRelevance   Layer = "data_relevance"
	LayerConfiguration   Layer = "configuration"
	LayerSelfChange      Layer = "self_change"
	LayerProcessingState Layer = "processing_state"
	LayerQueueState      Layer = "queue_state"
)

// Rejection reasons.
const (
	ReasonNoRelevantData = "no relevant data changes"
	ReasonDisabled       = "sync disabled"
	ReasonInProgress     = "sync operation in progress"
	ReasonOwnOrigin      = "remote change originated from this engine"
	ReasonRecentLocal    = "remote change follows a recent local change"
	ReasonRunning        = "sync already running"
	ReasonQueued         = "sync already queued"
)

// uiRefreshPrefix marks keys written by presentation layers to force redraws.
const uiRefreshPrefix = "ui_refresh"

// Decision is the outcome of Evaluate.
type Decision struct {
	Allowed bool
	Reason  string
	Layer   Layer
}

// PassedSelfChange reports whether the event got past the self-change layer,
// i.e. it was allowed or only rejected because a sync is running or queued.
func (d Decision) PassedSelfChange() bool {
	return d.Allowed || d.Layer == LayerProcessingState || d.Layer == LayerQueueState
}

// Probe exposes the engine state the filter reads.
type Probe interface {
	Enabled() bool
	IsRunning() bool
	QueueSize() int
}

// Option configures a Filter.
type Option func(*Filter)

// WithOrigin sets the token this engine tags its remote writes with.
func WithOrigin(origin string) Option {
	return func(f *Filter) { f.origin = origin }
}

// WithSelfChangeWindow sets how long after a local mutation remote events are
// treated as echoes.
func WithSelfChangeWindow(d time.Duration) Option {
	return func(f *Filter) { f.window = d }
}

// WithLocalChangeRetention sets how long a recorded local mutation is kept.
func WithLocalChangeRetention(d time.Duration) Option {
	return func(f *Filter) { f.retention = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(f *Filter) { f.now = now }
}

// WithExpiryHook registers fn to run when a recorded local mutation expires.
func WithExpiryHook(fn func()) Option {
	return func(f *Filter) { f.onExpire = fn }
}

// Filter is the five-layer event gate.
type Filter struct {
	table     string
	probe     Probe
	origin    string
	window    time.Duration
	retention time.Duration
	now       func() time.Time
	onExpire  func()

	mu              sync.Mutex
	inProgress      bool
	graceTimer      *time.Timer
	lastLocalChange time.Time
	expiryTimer     *time.Timer
}

// New creates a filter for table.
func New(table string, probe Probe, opts ...Option) *Filter {
	f := &Filter{
		table:     table,
		probe:     probe,
		window:    2 * time.Second,
		retention: 10 * time.Second,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Evaluate runs ev through every layer.
func (f *Filter) Evaluate(ev events.Event) Decision {
	if ev.IsStorage() && !f.hasRelevantKeys(ev.ChangedKeys) {
		return reject(LayerDataRelevance, ReasonNoRelevantData)
	}

	if !f.probe.Enabled() {
		return reject(LayerConfiguration, ReasonDisabled)
	}

	if reason, self := f.selfChange(ev); self {
		return reject(LayerSelfChange, reason)
	}

	if f.probe.IsRunning() {
		return reject(LayerProcessingState, ReasonRunning)
	}

	if f.probe.QueueSize() > 0 {
		return reject(LayerQueueState, ReasonQueued)
	}

	return Decision{Allowed: true}
}

func reject(layer Layer, reason string) Decision {
	return Decision{Allowed: false, Reason: reason, Layer: layer}
}

func (f *Filter) hasRelevantKeys(keys []string) bool {
	for _, key := range keys {
		if state.IsInternalKey(key) || strings.HasPrefix(key, uiRefreshPrefix) {
			continue
		}
		if key == store.IndexKey(f.table) {
			return true
		}
		if _, ok := store.ParseRecordKey(f.table, key); ok {
			return true
		}
	}
	return false
}

func (f *Filter) selfChange(ev events.Event) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.inProgress {
		return ReasonInProgress, true
	}
	if !ev.IsRemote() {
		return "", false
	}
	if f.origin != "" && ev.Origin == f.origin {
		return ReasonOwnOrigin, true
	}
	if f.lastLocalChange.IsZero() {
		return "", false
	}

	at := ev.Timestamp
	if at.IsZero() {
		at = f.now()
	}
	if elapsed := at.Sub(f.lastLocalChange); elapsed >= 0 && elapsed < f.window {
		return ReasonRecentLocal, true
	}
	return "", false
}

// SetInProgress marks a sync operation as running. A pending grace timer is
// cancelled.
func (f *Filter) SetInProgress() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.graceTimer != nil {
		f.graceTimer.Stop()
		f.graceTimer = nil
	}
	f.inProgress = true
}

// ClearInProgressAfter clears the in-progress flag once delay has elapsed.
func (f *Filter) ClearInProgressAfter(delay time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.graceTimer != nil {
		f.graceTimer.Stop()
		f.graceTimer = nil
	}
	if delay <= 0 {
		f.inProgress = false
		return
	}

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.graceTimer != timer {
			return
		}
		f.inProgress = false
		f.graceTimer = nil
	})
	f.graceTimer = timer
}

// InProgress reports whether the in-progress flag is set.
func (f *Filter) InProgress() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inProgress
}

// RecordLocalChange remembers a local mutation at at. The marker is dropped
// after the retention period.
func (f *Filter) RecordLocalChange(at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if at.Before(f.lastLocalChange) {
		return
	}
	f.lastLocalChange = at
	if f.expiryTimer != nil {
		f.expiryTimer.Stop()
	}

	remaining := f.retention - f.now().Sub(at)
	if remaining <= 0 {
		f.lastLocalChange = time.Time{}
		f.expiryTimer = nil
		return
	}

	var timer *time.Timer
	timer = time.AfterFunc(remaining, func() {
		f.mu.Lock()
		if f.expiryTimer != timer {
			f.mu.Unlock()
			return
		}
		f.lastLocalChange = time.Time{}
		f.expiryTimer = nil
		hook := f.onExpire
		f.mu.Unlock()

		if hook != nil {
			hook()
		}
	})
	f.expiryTimer = timer
}

// LastLocalChange returns the recorded local mutation time, or the zero time.
func (f *Filter) LastLocalChange() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastLocalChange
}

// Cleanup stops the grace and expiry timers and clears the in-progress flag.
func (f *Filter) Cleanup() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.graceTimer != nil {
		f.graceTimer.Stop()
		f.graceTimer = nil
	}
	if f.expiryTimer != nil {
		f.expiryTimer.Stop()
		f.expiryTimer = nil
	}
	f.inProgress = false
}
