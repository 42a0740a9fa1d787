package app

import (
	"github.com/stacklok/record-sync/internal/store"
	pkgsync "github.com/stacklok/record-sync/internal/sync"
)

// AppComponents groups all application components
//
//nolint:revive // This name is fine
type AppComponents struct {
	// Engine keeps the local and remote record sets convergent
	Engine *pkgsync.Engine

	// Local is the on-device record store
	Local store.LocalStore

	// Remote is the shared record store
	Remote store.RemoteStore

	// Identity reports the owner being synced
	Identity store.IdentityProvider
}
