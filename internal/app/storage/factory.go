// Package storage creates the local and remote stores the sync engine runs
// against. The configured store types are resolved in one place so the
// composition root never switches on them.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/stacklok/record-sync/internal/config"
	"github.com/stacklok/record-sync/internal/store"
	"github.com/stacklok/record-sync/internal/store/memory"
)

//go:generate mockgen -destination=mocks/mock_factory.go -package=mocks github.com/stacklok/record-sync/internal/app/storage Factory

// Factory creates the stores for one engine.
//
// It also owns the lifecycle of what those stores hold open (database pools,
// file watchers, SQLite handles).
type Factory interface {
	// CreateLocalStore creates the on-device store selected by local.type.
	CreateLocalStore(ctx context.Context) (store.LocalStore, error)

	// CreateRemoteStore creates the remote store selected by remote.type.
	CreateRemoteStore(ctx context.Context) (store.RemoteStore, error)

	// Cleanup releases every resource opened by the factory, in reverse
	// order of creation. It is safe to call more than once.
	Cleanup()
}

// DefaultFactory builds stores from the configuration file.
type DefaultFactory struct {
	config *config.Config

	mu      sync.Mutex
	closers []closer
}

type closer struct {
	name string
	fn   func() error
}

var _ Factory = (*DefaultFactory)(nil)

// NewStorageFactory creates a factory for cfg.
func NewStorageFactory(cfg *config.Config) (*DefaultFactory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	return &DefaultFactory{config: cfg}, nil
}

// CreateLocalStore opens the configured local store.
func (f *DefaultFactory) CreateLocalStore(ctx context.Context) (store.LocalStore, error) {
	table := f.config.Sync.GetTableName()

	switch f.config.Local.Type {
	case config.LocalTypeSQLite:
		s, err := newSQLiteStore(ctx, f.config.Local.Path, table)
		if err != nil {
			return nil, err
		}
		f.onCleanup("sqlite local store", s.Close)
		return s, nil

	case config.LocalTypeFile:
		s, err := newFileStore(f.config.Local.Path, table)
		if err != nil {
			return nil, err
		}
		f.onCleanup("file local store", s.Close)
		return s, nil

	case config.StoreTypeMemory:
		slog.Warn("Using in-memory local store, records are lost on exit")
		return memory.NewLocalStore(table), nil

	default:
		return nil, fmt.Errorf("unknown local store type: %q", f.config.Local.Type)
	}
}

// CreateRemoteStore connects the configured remote store.
func (f *DefaultFactory) CreateRemoteStore(ctx context.Context) (store.RemoteStore, error) {
	switch f.config.Remote.Type {
	case config.RemoteTypePostgres:
		s, pool, err := newPostgresStore(ctx, f.config.Remote.Database, f.config.Sync.GetTableName())
		if err != nil {
			return nil, err
		}
		f.onCleanup("database connection pool", func() error {
			pool.Close()
			return nil
		})
		return s, nil

	case config.StoreTypeMemory:
		slog.Warn("Using in-memory remote store, nothing leaves this process")
		return memory.NewRemoteStore(), nil

	default:
		return nil, fmt.Errorf("unknown remote store type: %q", f.config.Remote.Type)
	}
}

// Cleanup closes everything the factory opened.
func (f *DefaultFactory) Cleanup() {
	f.mu.Lock()
	closers := f.closers
	f.closers = nil
	f.mu.Unlock()

	for i := len(closers) - 1; i >= 0; i-- {
		c := closers[i]
		slog.Info("Closing storage resource", "resource", c.name)
		if err := c.fn(); err != nil {
			slog.Warn("Failed to close storage resource", "resource", c.name, "error", err)
		}
	}
}

func (f *DefaultFactory) onCleanup(name string, fn func() error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closers = append(f.closers, closer{name: name, fn: fn})
}
