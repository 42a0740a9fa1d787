package config

import (
	"context"
	"log/slog"
	"sync"
)

//go:generate mockgen -destination=mocks/mock_enabled_store.go -package=mocks github.com/stacklok/record-sync/internal/config EnabledStore

// EnabledStore persists the enabled/disabled flag across restarts.
type EnabledStore interface {
	// LoadEnabled returns the persisted flag. found is false when nothing was saved yet.
	LoadEnabled(ctx context.Context) (enabled bool, found bool, err error)
	SaveEnabled(ctx context.Context, enabled bool) error
}

// Settings is the runtime view of the sync configuration: the static knobs
// plus the persisted enabled flag.
type Settings struct {
	Sync SyncConfig

	store EnabledStore

	mu      sync.RWMutex
	enabled bool
}

// NewSettings creates runtime settings backed by store. The enabled flag starts
// at the configured initial value until Load is called.
func NewSettings(cfg SyncConfig, store EnabledStore) *Settings {
	return &Settings{
		Sync:    cfg,
		store:   store,
		enabled: cfg.IsEnabled(),
	}
}

// Load restores the persisted enabled flag. A persistence failure falls back
// to enabled and is logged, never returned.
func (s *Settings) Load(ctx context.Context) {
	enabled, found, err := s.store.LoadEnabled(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case err != nil:
		slog.Warn("Failed to load sync enabled state, defaulting to enabled", "error", err)
		s.enabled = true
	case found:
		s.enabled = enabled
	default:
		s.enabled = s.Sync.IsEnabled()
	}
}

// Enabled reports whether sync is currently enabled.
func (s *Settings) Enabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

// SetEnabled updates and persists the flag. It returns false without touching
// persistence when the value is unchanged. Persistence failures are logged;
// the in-memory value still changes.
func (s *Settings) SetEnabled(ctx context.Context, enabled bool) bool {
	s.mu.Lock()
	if s.enabled == enabled {
		s.mu.Unlock()
		return false
	}
	s.enabled = enabled
	s.mu.Unlock()

	if err := s.store.SaveEnabled(ctx, enabled); err != nil {
		slog.Error("Failed to persist sync enabled state", "enabled", enabled, "error", err)
	}
	return true
}
