// Package events defines the normalized trigger produced by every change detector.
package events

import "time"

// Kind identifies which detector produced an event.
type Kind string

const (
	// KindStorageChange is a batch of local store key changes
	KindStorageChange Kind = "storage_change"
	// KindPeriodic is a tick of the periodic timer
	KindPeriodic Kind = "periodic"
	// KindRemoteChange is a payload from the remote subscription
	KindRemoteChange Kind = "remote_change"
	// KindManual is an explicit TriggerSync call
	KindManual Kind = "manual"
)

// Priority orders events for observability. The queue does not reorder by it.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
)

// String returns the lowercase priority name.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	default:
		return "unknown"
	}
}

// Event is one sync trigger. It is never persisted.
type Event struct {
	Kind      Kind
	EntityID  string
	Timestamp time.Time
	Priority  Priority
	Source    string

	// Area and ChangedKeys are set for storage events.
	Area        string
	ChangedKeys []string

	// Origin is the writer token of a remote event, if known.
	Origin string
}

// IsStorage reports whether e came from the local storage detector.
func (e Event) IsStorage() bool { return e.Kind == KindStorageChange }

// IsRemote reports whether e came from the remote subscription.
func (e Event) IsRemote() bool { return e.Kind == KindRemoteChange }
