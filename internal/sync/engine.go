package sync

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	gosync "sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/record-sync/internal/config"
	"github.com/stacklok/record-sync/internal/otel"
	"github.com/stacklok/record-sync/internal/record"
	"github.com/stacklok/record-sync/internal/status"
	"github.com/stacklok/record-sync/internal/store"
	"github.com/stacklok/record-sync/internal/sync/detectors"
	"github.com/stacklok/record-sync/internal/sync/events"
	"github.com/stacklok/record-sync/internal/sync/filter"
	"github.com/stacklok/record-sync/internal/sync/queue"
	"github.com/stacklok/record-sync/internal/sync/reconcile"
	"github.com/stacklok/record-sync/internal/sync/state"
	"github.com/stacklok/record-sync/internal/telemetry"
)

const remoteFailurePrefix = "remote subscription: "

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics sets the sync metrics sink.
func WithMetrics(m *telemetry.SyncMetrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithTracer sets the tracer for execution and per-record spans.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithOrigin sets the token this engine tags its remote writes with. A random
// token is used by default.
func WithOrigin(origin string) Option {
	return func(e *Engine) { e.origin = origin }
}

// Engine keeps one owner's local and remote record sets convergent. It wires
// the detectors through the filter into the debounced queue, whose executor
// prepares, resolves and reports every sync.
type Engine struct {
	local    store.LocalStore
	remote   store.RemoteStore
	identity store.IdentityProvider
	state    state.Service
	cfg      config.SyncConfig

	metrics *telemetry.SyncMetrics
	tracer  trace.Tracer
	now     func() time.Time
	origin  string

	settings    *config.Settings
	broadcaster *status.Broadcaster
	filter      *filter.Filter
	queue       *queue.Queue
	reconciler  *reconcile.Reconciler

	localDetector    *detectors.LocalStorageDetector
	periodicDetector *detectors.PeriodicDetector
	remoteDetector   *detectors.RemoteDetector

	mu          gosync.Mutex
	ctx         context.Context
	initialized bool
	closed      bool
	unwatch     func()

	// applying is set while one goroutine reconciles the automatic detectors
	// with the enabled flag; reapply asks it to run another round.
	applying bool
	reapply  bool
}

// NewEngine creates an engine. Nothing is observed until Initialize.
func NewEngine(
	local store.LocalStore,
	remote store.RemoteStore,
	identity store.IdentityProvider,
	stateSvc state.Service,
	cfg config.SyncConfig,
	opts ...Option,
) *Engine {
	e := &Engine{
		local:    local,
		remote:   remote,
		identity: identity,
		state:    stateSvc,
		cfg:      cfg,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.origin == "" {
		e.origin = uuid.NewString()
	}

	e.settings = config.NewSettings(cfg, stateSvc)
	e.broadcaster = status.NewBroadcaster(status.SyncStatus{Enabled: e.settings.Enabled()})
	e.filter = filter.New(cfg.GetTableName(), (*engineProbe)(e),
		filter.WithOrigin(e.origin),
		filter.WithSelfChangeWindow(cfg.GetSelfChangeWindow()),
		filter.WithLocalChangeRetention(cfg.GetLocalChangeRetention()),
		filter.WithClock(e.now),
		filter.WithExpiryHook(e.onLocalChangeExpired),
	)
	e.queue = queue.New(cfg.GetDebounceDelay(), e.settings.Enabled, e.execute, e.broadcaster)
	e.reconciler = reconcile.New(local, remote,
		reconcile.WithOrigin(e.origin),
		reconcile.WithMetrics(e.metrics),
		reconcile.WithTracer(e.tracer),
		reconcile.WithClock(e.now),
	)

	e.localDetector = detectors.NewLocalStorageDetector(local, cfg.GetStorageBatchWindow(), e.onStorageEvent, e.now)
	e.periodicDetector = detectors.NewPeriodicDetector(cfg.GetPeriodicInterval(), e.settings.Enabled, e.onEvent,
		detectors.WithPeriodicClock(e.now),
		detectors.WithScheduleHook(e.onSchedule),
	)
	e.remoteDetector = detectors.NewRemoteDetector(remote, identity, cfg.GetTableName(), e.onRemoteChange,
		detectors.WithReconnect(cfg.GetReconnectBaseDelay(), cfg.GetMaxReconnectAttempts()),
		detectors.WithFailureReporter(e.onRemoteFailure),
	)
	return e
}

// engineProbe exposes the state the filter reads without handing it the engine.
type engineProbe Engine

func (p *engineProbe) Enabled() bool   { return p.settings.Enabled() }
func (p *engineProbe) IsRunning() bool { return p.queue.IsProcessing() }
func (p *engineProbe) QueueSize() int  { return p.queue.Size() }

// Origin returns the token attached to this engine's remote writes.
func (e *Engine) Origin() string {
	return e.origin
}

// Initialize restores persisted state and starts detection. The local
// detector always runs; the periodic and remote detectors run while sync is
// enabled. Detector failures are logged and surfaced via status.
func (e *Engine) Initialize(ctx context.Context) error {
	e.mu.Lock()
	if e.initialized {
		e.mu.Unlock()
		return newError(ErrAlreadyInitialized, ReasonAlreadyInitialized)
	}
	e.initialized = true
	e.ctx = context.WithoutCancel(ctx)
	e.mu.Unlock()

	e.settings.Load(ctx)
	enabled := e.settings.Enabled()
	e.broadcaster.Update(func(s *status.SyncStatus) { s.Enabled = enabled })

	e.restoreLocalChange(ctx)

	if err := e.localDetector.SetupDetection(ctx); err != nil {
		e.reportSetupError("local storage", err)
	}
	e.applyAutomatic()

	if w, ok := e.identity.(store.IdentityWatcher); ok {
		unwatch := w.WatchOwner(e.onOwnerChanged)
		e.mu.Lock()
		e.unwatch = unwatch
		e.mu.Unlock()
	}

	slog.Info("Sync engine initialized",
		"enabled", enabled,
		"table", e.cfg.GetTableName(),
		"origin", e.origin)
	return nil
}

func (e *Engine) restoreLocalChange(ctx context.Context) {
	at, err := e.state.LoadLocalChange(ctx)
	if err != nil {
		slog.Warn("Failed to load recent local change marker", "error", err)
		return
	}
	if at.IsZero() {
		return
	}
	e.filter.RecordLocalChange(at)
	if e.filter.LastLocalChange().IsZero() {
		// Already past retention.
		if err := e.state.ClearLocalChange(ctx); err != nil {
			slog.Warn("Failed to clear expired local change marker", "error", err)
		}
	}
}

func (e *Engine) startAutomatic(ctx context.Context) {
	if err := e.periodicDetector.SetupDetection(ctx); err != nil {
		e.reportSetupError("periodic", err)
	}
	if err := e.remoteDetector.SetupDetection(ctx); err != nil {
		e.reportSetupError("remote", err)
	}
}

func (e *Engine) stopAutomatic() {
	e.periodicDetector.Cleanup()
	e.remoteDetector.Cleanup()
}

func (e *Engine) reportSetupError(detector string, err error) {
	slog.Error("Failed to set up change detection", "detector", detector, "error", err)
	e.broadcaster.Update(func(s *status.SyncStatus) {
		s.Error = fmt.Sprintf("%s detection: %v", detector, err)
	})
}

// SetEnabled turns automatic sync on or off. It is a no-op when unchanged.
// It may be called from a status listener.
func (e *Engine) SetEnabled(ctx context.Context, enabled bool) {
	if !e.settings.SetEnabled(ctx, enabled) {
		return
	}
	e.broadcaster.Update(func(s *status.SyncStatus) { s.Enabled = enabled })
	e.applyAutomatic()
}

// applyAutomatic starts or stops the periodic and remote detectors to match
// the current enabled flag. A call made while another is in progress, from a
// listener or another goroutine, is folded into the running one, which then
// re-reads the flag.
func (e *Engine) applyAutomatic() {
	e.mu.Lock()
	if e.applying {
		e.reapply = true
		e.mu.Unlock()
		return
	}
	e.applying = true

	for {
		e.reapply = false
		running := e.initialized && !e.closed
		detectCtx := e.ctx
		e.mu.Unlock()

		if running && e.settings.Enabled() {
			e.startAutomatic(detectCtx)
		} else {
			e.stopAutomatic()
		}

		e.mu.Lock()
		if !e.reapply {
			break
		}
	}
	e.applying = false
	e.mu.Unlock()
}

// TriggerSync enqueues a manual high-priority sync. It is rejected while an
// execution is in flight or sync is disabled.
func (e *Engine) TriggerSync(_ context.Context) error {
	e.mu.Lock()
	ready := e.initialized && !e.closed
	e.mu.Unlock()
	if !ready {
		return newError(ErrNotInitialized, ReasonNotInitialized)
	}

	if e.queue.IsProcessing() {
		return newError(ErrSyncInProgress, ReasonAlreadyInProgress)
	}
	if !e.settings.Enabled() {
		return newError(ErrSyncDisabled, ReasonDisabled)
	}

	e.queue.Enqueue(events.Event{
		Kind:      events.KindManual,
		Timestamp: e.now(),
		Priority:  events.PriorityHigh,
		Source:    "manual",
	})
	return nil
}

// GetStatus returns the current status.
func (e *Engine) GetStatus() status.SyncStatus {
	return e.broadcaster.Status()
}

// AddStatusListener registers fn and calls it with the current status. The
// call is immediate unless another notification is being delivered, in which
// case it follows that one. Listeners may call back into the engine.
func (e *Engine) AddStatusListener(fn status.Listener) status.ListenerID {
	return e.broadcaster.AddListener(fn)
}

// FlushStatus blocks until every queued status notification has reached its
// listeners. It must not be called from a listener.
func (e *Engine) FlushStatus() {
	e.broadcaster.Flush()
}

// RemoveStatusListener unregisters a listener.
func (e *Engine) RemoveStatusListener(id status.ListenerID) bool {
	return e.broadcaster.RemoveListener(id)
}

// Cleanup stops every detector and timer. A running execution completes.
func (e *Engine) Cleanup() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	unwatch := e.unwatch
	e.unwatch = nil
	e.mu.Unlock()

	if unwatch != nil {
		unwatch()
	}
	e.localDetector.Cleanup()
	e.stopAutomatic()
	// Folds into a reconcile already running elsewhere so it stops too.
	e.applyAutomatic()
	e.queue.Cleanup()
	e.filter.Cleanup()
	slog.Info("Sync engine stopped")
}

func (e *Engine) onStorageEvent(ev events.Event) {
	decision := e.filter.Evaluate(ev)
	if decision.PassedSelfChange() {
		e.recordLocalChange(ev.Timestamp)
	}
	e.dispatch(ev, decision)
}

func (e *Engine) onRemoteChange(change store.RemoteChange) {
	e.onEvent(events.Event{
		Kind:      events.KindRemoteChange,
		EntityID:  change.RecordID(),
		Timestamp: e.now(),
		Priority:  events.PriorityNormal,
		Source:    "remote:" + string(change.Type),
		Origin:    change.Origin,
	})
}

func (e *Engine) onEvent(ev events.Event) {
	e.dispatch(ev, e.filter.Evaluate(ev))
}

func (e *Engine) dispatch(ev events.Event, decision filter.Decision) {
	if !decision.Allowed {
		slog.Debug("Sync trigger filtered",
			"kind", ev.Kind,
			"layer", decision.Layer,
			"reason", decision.Reason)
		e.metrics.RecordFilterRejection(context.Background(), string(decision.Layer), string(ev.Kind))
		return
	}
	if e.queue.Enqueue(ev) {
		e.metrics.RecordQueueSize(context.Background(), e.queue.Size())
	}
}

func (e *Engine) recordLocalChange(at time.Time) {
	if at.IsZero() {
		at = e.now()
	}
	e.filter.RecordLocalChange(at)
	if err := e.state.SaveLocalChange(context.Background(), at); err != nil {
		slog.Warn("Failed to persist local change marker", "error", err)
	}
}

func (e *Engine) onLocalChangeExpired() {
	if err := e.state.ClearLocalChange(context.Background()); err != nil {
		slog.Warn("Failed to clear local change marker", "error", err)
	}
}

// onSchedule publishes the detector's current next tick rather than the
// hook argument, so a hook that lost a race with Cleanup cannot leave a
// stale time behind.
func (e *Engine) onSchedule(time.Time) {
	e.broadcaster.Update(func(s *status.SyncStatus) {
		next, ok := e.periodicDetector.NextScheduled()
		if !ok || next.IsZero() {
			s.NextScheduledSync = nil
			return
		}
		s.NextScheduledSync = &next
	})
}

func (e *Engine) onRemoteFailure(err error) {
	e.broadcaster.Update(func(s *status.SyncStatus) {
		if err != nil {
			s.Error = remoteFailurePrefix + err.Error()
			return
		}
		if strings.HasPrefix(s.Error, remoteFailurePrefix) {
			s.Error = ""
		}
	})
}

func (e *Engine) onOwnerChanged(owner string) {
	e.remoteDetector.OwnerChanged(owner)
	if owner == "" {
		return
	}
	e.onEvent(events.Event{
		Kind:      events.KindManual,
		Timestamp: e.now(),
		Priority:  events.PriorityNormal,
		Source:    "identity",
	})
}

// execute is the queue's executor. Outcomes are reported through the status
// broadcaster, so only a failure to run at all is returned.
func (e *Engine) execute(ctx context.Context, batch []events.Event) error {
	started := e.now()

	e.filter.SetInProgress()
	defer e.filter.ClearInProgressAfter(e.cfg.GetSelfChangeGrace())

	ctx, span := otel.StartSpan(ctx, e.tracer, "sync.execute",
		trace.WithAttributes(
			otel.AttrEventCount.Int(len(batch)),
			otel.AttrTrigger.String(string(batch[0].Kind)),
		),
	)
	defer span.End()

	owner, err := e.identity.CurrentOwnerID(ctx)
	if err != nil {
		err = fmt.Errorf("failed to resolve owner: %w", err)
		otel.RecordError(span, err)
		e.finish(ctx, "", status.FailedResult(started, status.OperationIdentity, err))
		return nil
	}
	span.SetAttributes(otel.AttrOwnerID.String(owner))

	data, err := reconcile.Prepare(ctx, owner, e.local, e.remote, e.state)
	if err != nil {
		err = fmt.Errorf("failed to prepare sync data: %w", err)
		otel.RecordError(span, err)
		e.finish(ctx, owner, status.FailedResult(started, status.OperationPrepare, err))
		return nil
	}
	span.SetAttributes(otel.AttrResultCount.Int(len(data.IDs)))

	result := e.reconciler.Resolve(ctx, data)
	result.StartedAt = started

	if result.Success {
		if err := e.saveSnapshot(ctx, owner); err != nil {
			result.AddError("", status.OperationSnapshot, err)
		}
	} else {
		slog.Warn("Sync finished with errors, keeping last known snapshot",
			"owner", owner,
			"errors", len(result.Errors))
	}

	e.finish(ctx, owner, result)
	return nil
}

// saveSnapshot records the ids each side actually holds after resolution.
func (e *Engine) saveSnapshot(ctx context.Context, owner string) error {
	localRecs, err := e.local.List(ctx, owner)
	if err != nil {
		return fmt.Errorf("failed to list local records for snapshot: %w", err)
	}
	remoteRecs, err := e.remote.List(ctx, owner)
	if err != nil {
		return fmt.Errorf("failed to list remote records for snapshot: %w", err)
	}
	snapshot := record.Snapshot{
		LocalIDs:  record.IDs(localRecs),
		RemoteIDs: record.IDs(remoteRecs),
	}
	if err := e.state.SaveSnapshot(ctx, owner, snapshot); err != nil {
		return fmt.Errorf("failed to save last known snapshot: %w", err)
	}
	return nil
}

func (e *Engine) finish(ctx context.Context, owner string, result status.Result) {
	finished := e.now()
	result.Duration = finished.Sub(result.StartedAt)
	e.broadcaster.SetLastSync(finished, result)
	e.metrics.RecordSyncDuration(ctx, owner, result.Duration, result.Success)

	slog.Info("Sync completed",
		"owner", owner,
		"success", result.Success,
		"created", result.Created,
		"updated", result.Updated,
		"deleted", result.Deleted,
		"unchanged", result.Unchanged,
		"errors", len(result.Errors),
		"duration", result.Duration)
}
