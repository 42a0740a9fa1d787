package detectors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/stacklok/record-sync/internal/store"
)

const (
	// DefaultReconnectBaseDelay is the first reconnect delay.
	DefaultReconnectBaseDelay = time.Second
	// DefaultMaxReconnectAttempts bounds reconnects before giving up.
	DefaultMaxReconnectAttempts = 5
)

// ErrReconnectExhausted is reported when the subscription could not be
// re-established within the attempt budget.
var ErrReconnectExhausted = errors.New("remote subscription reconnect attempts exhausted")

// RemoteOption configures a RemoteDetector.
type RemoteOption func(*RemoteDetector)

// WithReconnect sets the first reconnect delay and the attempt budget.
func WithReconnect(base time.Duration, maxAttempts int) RemoteOption {
	return func(d *RemoteDetector) {
		if base > 0 {
			d.baseDelay = base
		}
		if maxAttempts > 0 {
			d.maxAttempts = maxAttempts
		}
	}
}

// WithFailureReporter registers fn to be told when the subscription fails
// permanently. fn receives nil once a later subscription connects.
func WithFailureReporter(fn func(error)) RemoteOption {
	return func(d *RemoteDetector) { d.onFailure = fn }
}

// RemoteDetector keeps one push subscription open for the current owner and
// forwards every change it receives.
type RemoteDetector struct {
	remote      store.RemoteStore
	identity    store.IdentityProvider
	table       string
	handler     func(store.RemoteChange)
	baseDelay   time.Duration
	maxAttempts int
	onFailure   func(error)

	mu       sync.Mutex
	ctx      context.Context
	active   bool
	owner    string
	sub      store.Subscription
	gen      uint64
	attempts int
	failed   bool
	reported bool
	backoff  *backoff.ExponentialBackOff
	retry    *time.Timer
}

// NewRemoteDetector creates a detector subscribing to table on remote.
func NewRemoteDetector(
	remote store.RemoteStore,
	identity store.IdentityProvider,
	table string,
	handler func(store.RemoteChange),
	opts ...RemoteOption,
) *RemoteDetector {
	d := &RemoteDetector{
		remote:      remote,
		identity:    identity,
		table:       table,
		handler:     handler,
		baseDelay:   DefaultReconnectBaseDelay,
		maxAttempts: DefaultMaxReconnectAttempts,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.backoff = &backoff.ExponentialBackOff{
		InitialInterval:     d.baseDelay,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         d.baseDelay << d.maxAttempts,
	}
	d.backoff.Reset()
	return d
}

// SetupDetection subscribes for the current owner. Without an authenticated
// owner the detector stays active and waits for OwnerChanged.
func (d *RemoteDetector) SetupDetection(ctx context.Context) error {
	d.mu.Lock()
	if d.active {
		d.mu.Unlock()
		return nil
	}
	d.mu.Unlock()

	owner, err := d.identity.CurrentOwnerID(ctx)
	switch {
	case errors.Is(err, store.ErrUnauthenticated):
		owner = ""
	case err != nil:
		return fmt.Errorf("failed to resolve owner for remote subscription: %w", err)
	}

	d.mu.Lock()
	if d.active {
		d.mu.Unlock()
		return nil
	}
	d.active = true
	d.ctx = ctx
	gen := d.resetLocked(owner)
	d.mu.Unlock()

	if owner == "" {
		slog.Info("Remote detection waiting for an authenticated owner")
		return nil
	}
	d.connect(ctx, owner, gen)
	return nil
}

// OwnerChanged replaces the subscription with one for owner. An empty owner
// only tears the current one down.
func (d *RemoteDetector) OwnerChanged(owner string) {
	d.mu.Lock()
	if !d.active || owner == d.owner {
		d.mu.Unlock()
		return
	}
	old := d.sub
	d.sub = nil
	gen := d.resetLocked(owner)
	ctx := d.ctx
	d.mu.Unlock()

	closeSubscription(old)
	slog.Info("Remote subscription owner changed", "owner", owner)
	if owner != "" {
		d.connect(ctx, owner, gen)
	}
}

// resetLocked starts a new subscription generation for owner.
func (d *RemoteDetector) resetLocked(owner string) uint64 {
	if d.retry != nil {
		d.retry.Stop()
		d.retry = nil
	}
	d.owner = owner
	d.attempts = 0
	d.failed = false
	d.backoff.Reset()
	d.gen++
	return d.gen
}

func (d *RemoteDetector) connect(ctx context.Context, owner string, gen uint64) {
	sub, err := d.remote.Subscribe(ctx, owner, d.table, d.changeCallback(gen), d.statusCallback(gen))
	if err != nil {
		slog.Warn("Failed to open remote subscription", "owner", owner, "error", err)
		d.scheduleReconnect(gen, err)
		return
	}

	d.mu.Lock()
	if gen != d.gen || !d.active {
		d.mu.Unlock()
		closeSubscription(sub)
		return
	}
	d.sub = sub
	d.mu.Unlock()
}

func (d *RemoteDetector) changeCallback(gen uint64) func(store.RemoteChange) {
	return func(change store.RemoteChange) {
		d.mu.Lock()
		current := gen == d.gen && d.active
		d.mu.Unlock()
		if current {
			d.handler(change)
		}
	}
}

func (d *RemoteDetector) statusCallback(gen uint64) func(store.SubscriptionStatus, error) {
	return func(st store.SubscriptionStatus, err error) {
		switch st {
		case store.StatusConnected:
			d.mu.Lock()
			if gen != d.gen {
				d.mu.Unlock()
				return
			}
			recovered := d.reported
			d.reported = false
			d.attempts = 0
			d.failed = false
			d.backoff.Reset()
			owner := d.owner
			d.mu.Unlock()

			slog.Info("Remote subscription connected", "owner", owner, "table", d.table)
			if recovered && d.onFailure != nil {
				d.onFailure(nil)
			}
		case store.StatusError, store.StatusClosed, store.StatusTimedOut:
			if err == nil {
				err = fmt.Errorf("subscription %s", st)
			}
			slog.Warn("Remote subscription interrupted", "status", st, "error", err)
			d.scheduleReconnect(gen, err)
		}
	}
}

// scheduleReconnect drops the subscription of gen and retries after
// base*2^attempt, or gives up once the budget is spent.
func (d *RemoteDetector) scheduleReconnect(gen uint64, cause error) {
	d.mu.Lock()
	if gen != d.gen || !d.active {
		d.mu.Unlock()
		return
	}
	old := d.sub
	d.sub = nil
	d.gen++
	next := d.gen
	owner := d.owner
	ctx := d.ctx

	if d.attempts >= d.maxAttempts {
		d.failed = true
		d.reported = true
		attempts := d.attempts
		d.mu.Unlock()

		closeSubscription(old)
		slog.Error("Remote subscription failed permanently",
			"owner", owner,
			"attempts", attempts,
			"error", cause)
		if d.onFailure != nil {
			d.onFailure(fmt.Errorf("%w: %w", ErrReconnectExhausted, cause))
		}
		return
	}

	d.attempts++
	attempt := d.attempts
	delay := d.backoff.NextBackOff()
	d.retry = time.AfterFunc(delay, func() {
		d.mu.Lock()
		current := next == d.gen && d.active
		d.retry = nil
		d.mu.Unlock()
		if current {
			d.connect(ctx, owner, next)
		}
	})
	d.mu.Unlock()

	closeSubscription(old)
	slog.Info("Scheduling remote subscription reconnect",
		"owner", owner,
		"attempt", attempt,
		"delay", delay)
}

// Failed reports whether reconnection was abandoned.
func (d *RemoteDetector) Failed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.failed
}

// Owner returns the owner the detector is subscribed for.
func (d *RemoteDetector) Owner() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.owner
}

// Cleanup closes the subscription and cancels any pending reconnect.
func (d *RemoteDetector) Cleanup() {
	d.mu.Lock()
	if !d.active {
		d.mu.Unlock()
		return
	}
	d.active = false
	old := d.sub
	d.sub = nil
	d.resetLocked("")
	d.mu.Unlock()

	closeSubscription(old)
}

// IsActive reports whether the detector is running. A permanently failed
// detector stays active until cleaned up.
func (d *RemoteDetector) IsActive() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

func closeSubscription(sub store.Subscription) {
	if sub == nil {
		return
	}
	if err := sub.Close(); err != nil {
		slog.Warn("Failed to close remote subscription", "error", err)
	}
}
