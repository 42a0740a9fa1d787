// Package filestore implements store.LocalStore as a directory of JSON files,
// one per record. Record changes are observed with fsnotify, so edits made by
// other processes (such as the record CLI) reach the change feed as well.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/stacklok/record-sync/internal/record"
	"github.com/stacklok/record-sync/internal/store"
)

const (
	recordExt = ".json"
	tempExt   = ".tmp"
	kvDirName = "_kv"
)

// Store is a file-backed store.LocalStore rooted at a directory:
//
//	<root>/<table>/<id>.json   one record per file
//	<root>/_kv/<escaped key>   raw key/value entries
type Store struct {
	store.Feed

	table      string
	recordsDir string
	kvDir      string

	// mu serializes writers of this process; the watcher reports every
	// writer, including other processes.
	mu sync.Mutex

	watcher *watcher
}

var _ store.LocalStore = (*Store)(nil)

// Open prepares the directory layout under root for table. The records
// directory is not watched until Start is called.
func Open(root, table string) (*Store, error) {
	if root == "" {
		return nil, errors.New("file store path is required")
	}
	if table == "" || strings.ContainsAny(table, `/\`) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	s := &Store{
		table:      table,
		recordsDir: filepath.Join(root, table),
		kvDir:      filepath.Join(root, kvDirName),
	}
	for _, dir := range []string{s.recordsDir, s.kvDir} {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return s, nil
}

// Start begins watching the records directory. Until Start is called the
// change feed only reports key/value writes.
func (s *Store) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher != nil {
		return errors.New("file store watcher already running")
	}
	w, err := newWatcher(s.recordsDir, s.table, s.Emit)
	if err != nil {
		return err
	}
	s.watcher = w
	return nil
}

// Close stops the watcher. It is safe to call on a store that was never started.
func (s *Store) Close() error {
	s.mu.Lock()
	w := s.watcher
	s.watcher = nil
	s.mu.Unlock()

	if w == nil {
		return nil
	}
	return w.stop()
}

func (s *Store) List(_ context.Context, ownerID string) ([]record.Record, error) {
	entries, err := os.ReadDir(s.recordsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read records directory: %w", err)
	}

	out := make([]record.Record, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, recordExt) {
			continue
		}
		rec, err := s.readRecord(filepath.Join(s.recordsDir, name))
		if errors.Is(err, os.ErrNotExist) {
			// Removed between ReadDir and ReadFile.
			continue
		}
		if err != nil {
			return nil, err
		}
		if rec.OwnerID == ownerID {
			out = append(out, *rec)
		}
	}
	slices.SortFunc(out, func(a, b record.Record) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *Store) Get(_ context.Context, id string) (*record.Record, error) {
	path, err := s.recordPath(id)
	if err != nil {
		return nil, err
	}
	rec, err := s.readRecord(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("record %s: %w", id, store.ErrNotFound)
	}
	return rec, err
}

func (s *Store) Create(_ context.Context, rec record.Record) error {
	path, err := s.recordPath(rec.ID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("record %s already exists", rec.ID)
	}
	return writeJSON(path, rec)
}

func (s *Store) Update(_ context.Context, rec record.Record) error {
	path, err := s.recordPath(rec.ID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("record %s: %w", rec.ID, store.ErrNotFound)
	}
	return writeJSON(path, rec)
}

func (s *Store) Delete(_ context.Context, id string) error {
	path, err := s.recordPath(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("record %s: %w", id, store.ErrNotFound)
		}
		return fmt.Errorf("failed to delete record %s: %w", id, err)
	}
	return nil
}

func (s *Store) GetRaw(_ context.Context, key string) (string, bool, error) {
	// #nosec G304 -- the key is path-escaped into kvDir
	data, err := os.ReadFile(s.kvPath(key))
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read key %s: %w", key, err)
	}
	return string(data), true, nil
}

func (s *Store) SetRaw(_ context.Context, key, value string) error {
	s.mu.Lock()
	err := writeAtomic(s.kvPath(key), []byte(value))
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to write key %s: %w", key, err)
	}

	s.Emit(store.ChangeBatch{Area: store.AreaLocal, Keys: []string{key}})
	return nil
}

func (s *Store) DeleteRaw(_ context.Context, key string) error {
	s.mu.Lock()
	err := os.Remove(s.kvPath(key))
	s.mu.Unlock()
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil
	case err != nil:
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}

	s.Emit(store.ChangeBatch{Area: store.AreaLocal, Keys: []string{key}})
	return nil
}

func (s *Store) recordPath(id string) (string, error) {
	if id == "" || !filepath.IsLocal(id) || filepath.Base(id) != id {
		return "", fmt.Errorf("invalid record id %q", id)
	}
	return filepath.Join(s.recordsDir, id+recordExt), nil
}

func (s *Store) kvPath(key string) string {
	return filepath.Join(s.kvDir, url.PathEscape(key))
}

func (*Store) readRecord(path string) (*record.Record, error) {
	// #nosec G304 -- path is built from recordsDir and a validated id
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to read record file %s: %w", path, err)
	}
	var rec record.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode record file %s: %w", path, err)
	}
	return &rec, nil
}

func writeJSON(path string, rec record.Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode record %s: %w", rec.ID, err)
	}
	if err := writeAtomic(path, data); err != nil {
		return fmt.Errorf("failed to write record %s: %w", rec.ID, err)
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	tempPath := path + tempExt
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return err
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return err
	}
	return nil
}
