package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/record-sync/internal/otel"
	"github.com/stacklok/record-sync/internal/record"
	"github.com/stacklok/record-sync/internal/status"
	"github.com/stacklok/record-sync/internal/store"
	"github.com/stacklok/record-sync/internal/telemetry"
)

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithOrigin sets the token attached to every remote write.
func WithOrigin(origin string) Option {
	return func(r *Reconciler) { r.origin = origin }
}

// WithMetrics sets the metrics sink. Nil disables metrics.
func WithMetrics(m *telemetry.SyncMetrics) Option {
	return func(r *Reconciler) { r.metrics = m }
}

// WithTracer sets the tracer used for per-record spans.
func WithTracer(t trace.Tracer) Option {
	return func(r *Reconciler) { r.tracer = t }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// Reconciler applies the actions chosen by Decide to both stores.
type Reconciler struct {
	local   store.RecordStore
	remote  store.RecordStore
	origin  string
	metrics *telemetry.SyncMetrics
	tracer  trace.Tracer
	now     func() time.Time
}

// New creates a reconciler writing to local and remote.
func New(local, remote store.RecordStore, opts ...Option) *Reconciler {
	r := &Reconciler{
		local:  local,
		remote: remote,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve walks the worklist of d in order. A failing identifier is recorded
// in the result and does not stop the others.
func (r *Reconciler) Resolve(ctx context.Context, d *Data) status.Result {
	result := status.Result{Success: true, StartedAt: r.now()}

	for _, id := range d.IDs {
		action := Decide(id, d)
		if action == ActionNone {
			result.Unchanged++
			continue
		}

		err := r.apply(ctx, id, action, d)
		r.metrics.RecordResolution(ctx, string(action), err == nil)
		if err != nil {
			slog.Error("Failed to resolve record",
				"owner", d.OwnerID,
				"id", id,
				"action", action,
				"error", err)
			result.AddError(id, status.Operation(action), err)
			continue
		}

		switch action {
		case ActionCreateLocal, ActionCreateRemote:
			result.Created++
		case ActionUpdateLocal, ActionUpdateRemote:
			result.Updated++
		case ActionDeleteLocal, ActionDeleteRemote:
			result.Deleted++
		}
	}

	result.Duration = r.now().Sub(result.StartedAt)
	return result
}

func (r *Reconciler) apply(ctx context.Context, id string, action Action, d *Data) (err error) {
	ctx, span := otel.StartSpan(ctx, r.tracer, "reconcile.apply",
		trace.WithAttributes(
			otel.AttrRecordID.String(id),
			otel.AttrAction.String(string(action)),
		),
	)
	defer func() {
		otel.RecordError(span, err)
		span.End()
	}()
	remoteCtx := ctx
	if r.origin != "" {
		remoteCtx = store.WithOrigin(ctx, r.origin)
	}

	switch action {
	case ActionCreateRemote:
		rec := d.Local[id]
		slog.Debug("Pushing new record to remote", "id", id, "title", rec.Title())
		if err := r.remote.Create(remoteCtx, rec.Clone()); err != nil {
			return fmt.Errorf("failed to create remote record: %w", err)
		}
	case ActionCreateLocal:
		rec := d.Remote[id]
		slog.Debug("Pulling new record from remote", "id", id, "title", rec.Title())
		if err := r.local.Create(ctx, rec.Clone()); err != nil {
			return fmt.Errorf("failed to create local record: %w", err)
		}
	case ActionUpdateRemote:
		if err := r.remote.Update(remoteCtx, overwrite(d.Remote[id], d.Local[id])); err != nil {
			return fmt.Errorf("failed to update remote record: %w", err)
		}
	case ActionUpdateLocal:
		if err := r.local.Update(ctx, overwrite(d.Local[id], d.Remote[id])); err != nil {
			return fmt.Errorf("failed to update local record: %w", err)
		}
	case ActionDeleteLocal:
		slog.Debug("Propagating remote deletion", "id", id)
		if err := r.local.Delete(ctx, id); err != nil {
			return fmt.Errorf("failed to delete local record: %w", err)
		}
	case ActionDeleteRemote:
		slog.Debug("Propagating local deletion", "id", id)
		if err := r.remote.Delete(remoteCtx, id); err != nil {
			return fmt.Errorf("failed to delete remote record: %w", err)
		}
	default:
		return fmt.Errorf("unknown action %q", action)
	}
	return nil
}

// overwrite returns target carrying the content of winner. The id and
// creation time of target are kept.
func overwrite(target, winner record.Record) record.Record {
	out := winner.Clone()
	out.ID = target.ID
	out.CreatedAt = target.CreatedAt
	out.SyncVersion = max(target.SyncVersion, winner.SyncVersion)
	// The target keeps its own CreatedAt, so a winner that only has CreatedAt
	// must pass its effective time on through UpdatedAt.
	if winner.UpdatedAt == nil || winner.UpdatedAt.IsZero() {
		effective := winner.EffectiveTime()
		out.UpdatedAt = &effective
	}
	return out
}
