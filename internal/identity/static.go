// Package identity provides the owner identity the sync engine scopes every
// operation to.
package identity

import (
	"context"
	"log/slog"
	"sync"

	"github.com/stacklok/record-sync/internal/store"
)

var (
	_ store.IdentityProvider = (*StaticProvider)(nil)
	_ store.IdentityWatcher  = (*StaticProvider)(nil)
)

// StaticProvider holds a configured owner id that can be switched at runtime,
// e.g. on sign-in or sign-out. An empty owner means signed out.
type StaticProvider struct {
	mu       sync.Mutex
	owner    string
	nextID   int
	watchers map[int]func(string)
}

// NewStaticProvider creates a provider signed in as owner.
func NewStaticProvider(owner string) *StaticProvider {
	return &StaticProvider{owner: owner}
}

// CurrentOwnerID returns the owner or store.ErrUnauthenticated.
func (p *StaticProvider) CurrentOwnerID(_ context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.owner == "" {
		return "", store.ErrUnauthenticated
	}
	return p.owner, nil
}

// SetOwner switches the owner and notifies watchers when it changed.
func (p *StaticProvider) SetOwner(owner string) {
	p.mu.Lock()
	if p.owner == owner {
		p.mu.Unlock()
		return
	}
	p.owner = owner
	watchers := make([]func(string), 0, len(p.watchers))
	for _, fn := range p.watchers {
		watchers = append(watchers, fn)
	}
	p.mu.Unlock()

	if owner == "" {
		slog.Info("Owner signed out")
	} else {
		slog.Info("Owner changed", "owner", owner)
	}
	for _, fn := range watchers {
		fn(owner)
	}
}

// WatchOwner registers fn for owner changes.
func (p *StaticProvider) WatchOwner(fn func(ownerID string)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.watchers == nil {
		p.watchers = make(map[int]func(string))
	}
	id := p.nextID
	p.nextID++
	p.watchers[id] = fn

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.watchers, id)
	}
}
