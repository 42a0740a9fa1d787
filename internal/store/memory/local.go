package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/stacklok/record-sync/internal/record"
	"github.com/stacklok/record-sync/internal/store"
)

// LocalStore is an in-memory store.LocalStore. Every write is reported on its
// change feed with store.RecordKey keys; raw key/value writes report the raw key.
type LocalStore struct {
	store.Feed

	table string

	mu      sync.RWMutex
	records map[string]record.Record
	kv      map[string]string

	faults faults
}

var _ store.LocalStore = (*LocalStore)(nil)

// NewLocalStore creates an empty local store for table.
func NewLocalStore(table string) *LocalStore {
	return &LocalStore{
		table:   table,
		records: make(map[string]record.Record),
		kv:      make(map[string]string),
	}
}

// FailOn makes op fail with err for id (or every id when id is empty) until
// ClearFailures is called.
func (s *LocalStore) FailOn(op Op, id string, err error) {
	s.faults.set(op, id, err, 0)
}

// FailOnce makes the next matching op fail with err.
func (s *LocalStore) FailOnce(op Op, id string, err error) {
	s.faults.set(op, id, err, 1)
}

// ClearFailures removes every injected failure.
func (s *LocalStore) ClearFailures() {
	s.faults.clear()
}

// Seed stores records without emitting change notifications.
func (s *LocalStore) Seed(records ...record.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.records[r.ID] = r.Clone()
	}
}

func (s *LocalStore) List(_ context.Context, ownerID string) ([]record.Record, error) {
	if err := s.faults.check(OpList, ""); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listOwned(s.records, ownerID), nil
}

func (s *LocalStore) Get(_ context.Context, id string) (*record.Record, error) {
	if err := s.faults.check(OpGet, id); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("record %s: %w", id, store.ErrNotFound)
	}
	out := r.Clone()
	return &out, nil
}

func (s *LocalStore) Create(_ context.Context, rec record.Record) error {
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

	s.Emit(store.ChangeBatch{
		Area: store.AreaLocal,
		Keys: []string{store.RecordKey(s.table, rec.ID), store.IndexKey(s.table)},
	})
	return nil
}

func (s *LocalStore) Update(_ context.Context, rec record.Record) error {
	if err := s.faults.check(OpUpdate, rec.ID); err != nil {
		return err
	}
	s.mu.Lock()
	if _, exists := s.records[rec.ID]; !exists {
		s.mu.Unlock()
		return fmt.Errorf("record %s: %w", rec.ID, store.ErrNotFound)
	}
	s.records[rec.ID] = rec.Clone()
	s.mu.Unlock()

	s.Emit(store.ChangeBatch{Area: store.AreaLocal, Keys: []string{store.RecordKey(s.table, rec.ID)}})
	return nil
}

func (s *LocalStore) Delete(_ context.Context, id string) error {
	if err := s.faults.check(OpDelete, id); err != nil {
		return err
	}
	s.mu.Lock()
	if _, exists := s.records[id]; !exists {
		s.mu.Unlock()
		return fmt.Errorf("record %s: %w", id, store.ErrNotFound)
	}
	delete(s.records, id)
	s.mu.Unlock()

	s.Emit(store.ChangeBatch{
		Area: store.AreaLocal,
		Keys: []string{store.RecordKey(s.table, id), store.IndexKey(s.table)},
	})
	return nil
}

func (s *LocalStore) GetRaw(_ context.Context, key string) (string, bool, error) {
	if err := s.faults.check(OpGetRaw, key); err != nil {
		return "", false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.kv[key]
	return v, ok, nil
}

func (s *LocalStore) SetRaw(_ context.Context, key, value string) error {
	if err := s.faults.check(OpSetRaw, key); err != nil {
		return err
	}
	s.mu.Lock()
	s.kv[key] = value
	s.mu.Unlock()

	s.Emit(store.ChangeBatch{Area: store.AreaLocal, Keys: []string{key}})
	return nil
}

func (s *LocalStore) DeleteRaw(_ context.Context, key string) error {
	s.mu.Lock()
	_, existed := s.kv[key]
	delete(s.kv, key)
	s.mu.Unlock()

	if existed {
		s.Emit(store.ChangeBatch{Area: store.AreaLocal, Keys: []string{key}})
	}
	return nil
}

func listOwned(records map[string]record.Record, ownerID string) []record.Record {
	out := make([]record.Record, 0, len(records))
	for _, r := range records {
		if r.OwnerID == ownerID {
			out = append(out, r.Clone())
		}
	}
	slices.SortFunc(out, func(a, b record.Record) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out
}
