package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/stacklok/record-sync/internal/record"
	"github.com/stacklok/record-sync/internal/store"
)

// RemoteStore is an in-memory store.RemoteStore. Writes are pushed to matching
// subscriptions synchronously, tagged with the origin found in the write context.
type RemoteStore struct {
	mu      sync.RWMutex
	records map[string]record.Record
	subs    map[int]*subscription
	nextSub int

	faults faults
}

var _ store.RemoteStore = (*RemoteStore)(nil)

// NewRemoteStore creates an empty remote store.
func NewRemoteStore() *RemoteStore {
	return &RemoteStore{
		records: make(map[string]record.Record),
		subs:    make(map[int]*subscription),
	}
}

// FailOn makes op fail with err for id (or every id when id is empty) until
// ClearFailures is called.
func (s *RemoteStore) FailOn(op Op, id string, err error) {
	s.faults.set(op, id, err, 0)
}

// FailTimes makes the next n matching ops fail with err.
func (s *RemoteStore) FailTimes(op Op, id string, err error, n int) {
	s.faults.set(op, id, err, n)
}

// ClearFailures removes every injected failure.
func (s *RemoteStore) ClearFailures() {
	s.faults.clear()
}

// Seed stores records without notifying subscribers.
func (s *RemoteStore) Seed(records ...record.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.records[r.ID] = r.Clone()
	}
}

// SubscriberCount returns the number of open subscriptions.
func (s *RemoteStore) SubscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

// Disconnect drops every subscription and reports err through their status
// callbacks, as a broken channel would.
func (s *RemoteStore) Disconnect(err error) {
	s.mu.Lock()
	dropped := make([]*subscription, 0, len(s.subs))
	for id, sub := range s.subs {
		dropped = append(dropped, sub)
		delete(s.subs, id)
	}
	s.mu.Unlock()

	for _, sub := range dropped {
		sub.onStatus(store.StatusError, err)
	}
}

// Push simulates a write by another client: it stores rec and notifies
// subscribers with the given origin.
func (s *RemoteStore) Push(rec record.Record, origin string) {
	s.mu.Lock()
	old, existed := s.records[rec.ID]
	s.records[rec.ID] = rec.Clone()
	s.mu.Unlock()

	change := store.RemoteChange{Type: store.ChangeInsert, New: cloneRef(rec), Origin: origin}
	if existed {
		change.Type = store.ChangeUpdate
		change.Old = cloneRef(old)
	}
	s.notify(change)
}

func (s *RemoteStore) List(_ context.Context, ownerID string) ([]record.Record, error) {
	if err := s.faults.check(OpList, ""); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listOwned(s.records, ownerID), nil
}

func (s *RemoteStore) Get(_ context.Context, id string) (*record.Record, error) {
	if err := s.faults.check(OpGet, id); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("record %s: %w", id, store.ErrNotFound)
	}
	return cloneRef(r), nil
}

func (s *RemoteStore) Create(ctx context.Context, rec record.Record) error {
	if err := s.faults.check(OpCreate, rec.ID); err != nil {
		return err
	}
	if rec.ID == "" {
		return fmt.Errorf("record id is required")
	}
	s.mu.Lock()
	if _, exists := s.records[rec.ID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("record %s already exists", rec.ID)
	}
	s.records[rec.ID] = rec.Clone()
	s.mu.Unlock()

	s.notify(store.RemoteChange{Type: store.ChangeInsert, New: cloneRef(rec), Origin: store.OriginFromContext(ctx)})
	return nil
}

func (s *RemoteStore) Update(ctx context.Context, rec record.Record) error {
	if err := s.faults.check(OpUpdate, rec.ID); err != nil {
		return err
	}
	s.mu.Lock()
	old, exists := s.records[rec.ID]
	if !exists {
		s.mu.Unlock()
		return fmt.Errorf("record %s: %w", rec.ID, store.ErrNotFound)
	}
	s.records[rec.ID] = rec.Clone()
	s.mu.Unlock()

	s.notify(store.RemoteChange{
		Type:   store.ChangeUpdate,
		New:    cloneRef(rec),
		Old:    cloneRef(old),
		Origin: store.OriginFromContext(ctx),
	})
	return nil
}

func (s *RemoteStore) Delete(ctx context.Context, id string) error {
	if err := s.faults.check(OpDelete, id); err != nil {
		return err
	}
	s.mu.Lock()
	old, exists := s.records[id]
	if !exists {
		s.mu.Unlock()
		return fmt.Errorf("record %s: %w", id, store.ErrNotFound)
	}
	delete(s.records, id)
	s.mu.Unlock()

	s.notify(store.RemoteChange{Type: store.ChangeDelete, Old: cloneRef(old), Origin: store.OriginFromContext(ctx)})
	return nil
}

func (s *RemoteStore) Subscribe(
	_ context.Context,
	ownerID, table string,
	onChange func(store.RemoteChange),
	onStatus func(store.SubscriptionStatus, error),
) (store.Subscription, error) {
	if err := s.faults.check(OpSubscribe, ownerID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	sub := &subscription{store: s, id: id, ownerID: ownerID, table: table, onChange: onChange, onStatus: onStatus}
	s.subs[id] = sub
	s.mu.Unlock()

	onStatus(store.StatusConnected, nil)
	return sub, nil
}

func (s *RemoteStore) notify(change store.RemoteChange) {
	owner := ""
	switch {
	case change.New != nil:
		owner = change.New.OwnerID
	case change.Old != nil:
		owner = change.Old.OwnerID
	}

	s.mu.RLock()
	targets := make([]*subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		if sub.ownerID == owner {
			targets = append(targets, sub)
		}
	}
	s.mu.RUnlock()

	for _, sub := range targets {
		sub.onChange(change)
	}
}

type subscription struct {
	store    *RemoteStore
	id       int
	ownerID  string
	table    string
	onChange func(store.RemoteChange)
	onStatus func(store.SubscriptionStatus, error)
}

func (s *subscription) Close() error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	delete(s.store.subs, s.id)
	return nil
}

func cloneRef(r record.Record) *record.Record {
	c := r.Clone()
	return &c
}
