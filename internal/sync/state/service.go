// Package state persists the engine's own bookkeeping: per-owner last-known id
// snapshots, the enabled flag and the most recent local mutation time.
package state

import (
	"context"
	"strings"
	"time"

	"github.com/stacklok/record-sync/internal/config"
	"github.com/stacklok/record-sync/internal/record"
)

// Key prefixes used in the local store's key/value space. Change feeds report
// these keys like any other; the filter treats them as bookkeeping.
const (
	PrefixSyncState       = "sync_state:"
	PrefixLastKnownLocal  = "last_known_local_ids:"
	PrefixLastKnownRemote = "last_known_remote_ids:"

	KeyEnabled         = PrefixSyncState + "enabled"
	KeyLastLocalChange = PrefixSyncState + "last_local_change"
)

// IsInternalKey reports whether key belongs to engine bookkeeping.
func IsInternalKey(key string) bool {
	return strings.HasPrefix(key, PrefixSyncState) || strings.HasPrefix(key, "last_known_")
}

// Service provides access to persisted engine state.
//
//go:generate mockgen -destination=mocks/mock_service.go -package=mocks github.com/stacklok/record-sync/internal/sync/state Service
type Service interface {
	config.EnabledStore

	// LoadKnownLocalIDs returns the local ids recorded after the last
	// successful sync of ownerID. An owner never synced has none.
	LoadKnownLocalIDs(ctx context.Context, ownerID string) ([]string, error)
	// LoadKnownRemoteIDs is the remote counterpart of LoadKnownLocalIDs.
	LoadKnownRemoteIDs(ctx context.Context, ownerID string) ([]string, error)
	// SaveSnapshot replaces both id sets of ownerID.
	SaveSnapshot(ctx context.Context, ownerID string, snapshot record.Snapshot) error

	// LoadLocalChange returns the time of the last recorded local mutation,
	// or the zero time.
	LoadLocalChange(ctx context.Context) (time.Time, error)
	// SaveLocalChange records a local mutation at the given time.
	SaveLocalChange(ctx context.Context, at time.Time) error
	// ClearLocalChange forgets the recorded local mutation.
	ClearLocalChange(ctx context.Context) error
}
