// Package detectors turns external signals into normalized sync triggers:
// local store change batches, a periodic timer and the remote subscription.
package detectors

import (
	"context"
	"time"

	"github.com/stacklok/record-sync/internal/sync/events"
)

// Detector is one independent source of sync triggers.
type Detector interface {
	// SetupDetection starts observing. Calling it on an active detector is a no-op.
	SetupDetection(ctx context.Context) error
	// Cleanup stops observing and releases timers and subscriptions.
	Cleanup()
	// IsActive reports whether the detector is observing.
	IsActive() bool
}

// Handler receives every event a detector produces. It must not block.
type Handler func(events.Event)

// Clock returns the current time.
type Clock func() time.Time
