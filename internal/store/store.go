// Package store defines the collaborator contracts the sync engine consumes:
// a local store with a change feed and a raw key/value capability, a remote
// store with a push subscription, and an identity provider.
package store

import (
	"context"
	"errors"

	"github.com/stacklok/record-sync/internal/record"
)

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks github.com/stacklok/record-sync/internal/store LocalStore,RemoteStore,IdentityProvider,Subscription

var (
	// ErrNotFound is returned when a record or key does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthenticated is returned by an IdentityProvider when no owner is signed in.
	ErrUnauthenticated = errors.New("no authenticated owner")
)

// AreaLocal is the storage area name local stores tag their change batches with.
const AreaLocal = "local"

// RecordStore is the CRUD surface shared by both stores.
type RecordStore interface {
	// List returns every record belonging to ownerID.
	List(ctx context.Context, ownerID string) ([]record.Record, error)
	// Get returns the record with the given id or ErrNotFound.
	Get(ctx context.Context, id string) (*record.Record, error)
	// Create inserts rec preserving its ID.
	Create(ctx context.Context, rec record.Record) error
	// Update overwrites the record with rec.ID, or returns ErrNotFound.
	Update(ctx context.Context, rec record.Record) error
	// Delete removes the record with the given id, or returns ErrNotFound.
	Delete(ctx context.Context, id string) error
}

// ChangeBatch is one notification from a local change feed.
type ChangeBatch struct {
	Area string
	Keys []string
}

// ChangeFeed delivers batches of changed keys.
type ChangeFeed interface {
	// Watch registers fn for every change batch. The returned func detaches it.
	// fn must not block.
	Watch(fn func(ChangeBatch)) (cancel func())
}

// KeyValueStore is the raw key/value capability of the local store, used for
// engine bookkeeping outside the record API.
type KeyValueStore interface {
	GetRaw(ctx context.Context, key string) (string, bool, error)
	SetRaw(ctx context.Context, key, value string) error
	DeleteRaw(ctx context.Context, key string) error
}

// LocalStore is the on-device copy of the record set.
type LocalStore interface {
	RecordStore
	ChangeFeed
	KeyValueStore
}

// ChangeType is the kind of row change a remote subscription reports.
type ChangeType string

const (
	// ChangeInsert reports a new row.
	ChangeInsert ChangeType = "INSERT"
	// ChangeUpdate reports a modified row.
	ChangeUpdate ChangeType = "UPDATE"
	// ChangeDelete reports a removed row.
	ChangeDelete ChangeType = "DELETE"
)

// RemoteChange is one payload pushed by a remote subscription.
type RemoteChange struct {
	Type ChangeType
	New  *record.Record
	Old  *record.Record
	// Origin is the token of the writer that caused the change, if the
	// remote store round-trips one.
	Origin string
}

// RecordID returns the id of the row the change concerns.
func (c RemoteChange) RecordID() string {
	if c.New != nil {
		return c.New.ID
	}
	if c.Old != nil {
		return c.Old.ID
	}
	return ""
}

// SubscriptionStatus is reported through the status callback of Subscribe.
type SubscriptionStatus string

const (
	// StatusConnected means the subscription is live.
	StatusConnected SubscriptionStatus = "connected"
	// StatusError means the channel failed; err carries the cause.
	StatusError SubscriptionStatus = "error"
	// StatusClosed means the channel closed without a Close call.
	StatusClosed SubscriptionStatus = "closed"
	// StatusTimedOut means the channel stopped responding.
	StatusTimedOut SubscriptionStatus = "timed_out"
)

// Subscription is a live remote change feed.
type Subscription interface {
	Close() error
}

// RemoteStore is the server-side copy of the record set.
type RemoteStore interface {
	RecordStore
	// Subscribe opens a push subscription for rows of table owned by ownerID.
	// onChange and onStatus may be called from another goroutine and must not block.
	Subscribe(
		ctx context.Context,
		ownerID, table string,
		onChange func(RemoteChange),
		onStatus func(SubscriptionStatus, error),
	) (Subscription, error)
}

// IdentityProvider yields the currently authenticated owner.
type IdentityProvider interface {
	// CurrentOwnerID returns the owner id or ErrUnauthenticated.
	CurrentOwnerID(ctx context.Context) (string, error)
}

// IdentityWatcher is implemented by identity providers that can report owner
// changes (sign-in, sign-out, account switch).
type IdentityWatcher interface {
	WatchOwner(fn func(ownerID string)) (cancel func())
}

type originKey struct{}

// WithOrigin tags ctx with the writer's origin token. Remote stores that
// support it persist the token so it comes back in the change feed.
func WithOrigin(ctx context.Context, origin string) context.Context {
	return context.WithValue(ctx, originKey{}, origin)
}

// OriginFromContext returns the origin token set by WithOrigin.
func OriginFromContext(ctx context.Context) string {
	origin, _ := ctx.Value(originKey{}).(string)
	return origin
}
