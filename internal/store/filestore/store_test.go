package filestore

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/record-sync/internal/record"
	"github.com/stacklok/record-sync/internal/store"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type batchSink struct {
	mu      sync.Mutex
	batches []store.ChangeBatch
}

func (b *batchSink) add(batch store.ChangeBatch) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.batches = append(b.batches, batch)
}

func (b *batchSink) keys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, batch := range b.batches {
		out = append(out, batch.Keys...)
	}
	return out
}

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	root := t.TempDir()
	s, err := Open(root, "notes")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, root
}

func TestOpen_Validation(t *testing.T) {
	t.Parallel()

	_, err := Open("", "notes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path is required")

	_, err = Open(t.TempDir(), "a/b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid table name")
}

func TestStore_CRUD(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _ := openTestStore(t)

	rec := record.New("a", "U1", map[string]any{"title": "first"}, t0)
	require.NoError(t, s.Create(ctx, rec))
	require.Error(t, s.Create(ctx, rec), "duplicate id")
	require.NoError(t, s.Create(ctx, record.New("b", "U2", nil, t0)))

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, rec, *got)

	list, err := s.List(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, record.IDs(list))

	rec.Payload = map[string]any{"title": "second"}
	rec.Touch(t0.Add(time.Minute))
	require.NoError(t, s.Update(ctx, rec))
	got, err = s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "second", got.Title())

	require.NoError(t, s.Delete(ctx, "a"))
	_, err = s.Get(ctx, "a")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "a"), store.ErrNotFound)
	assert.ErrorIs(t, s.Update(ctx, rec), store.ErrNotFound)

	_, err = s.Get(ctx, "../escape")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid record id")
}

func TestStore_KeyValue(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, root := openTestStore(t)

	sink := &batchSink{}
	s.Watch(sink.add)

	key := "last_known_local_ids:U1/with slash"
	require.NoError(t, s.SetRaw(ctx, key, `["a"]`))
	v, found, err := s.GetRaw(ctx, key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `["a"]`, v)

	entries, err := os.ReadDir(filepath.Join(root, kvDirName))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "keys are escaped into a single file name")

	require.NoError(t, s.DeleteRaw(ctx, key))
	require.NoError(t, s.DeleteRaw(ctx, key), "deleting a missing key is not an error")
	_, found, err = s.GetRaw(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)

	assert.Equal(t, []string{key, key}, sink.keys())
}

func TestStore_WatcherReportsRecordFiles(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, root := openTestStore(t)

	sink := &batchSink{}
	s.Watch(sink.add)
	require.NoError(t, s.Start())
	require.Error(t, s.Start(), "second start is rejected")

	require.NoError(t, s.Create(ctx, record.New("a", "U1", nil, t0)))
	require.Eventually(t, func() bool {
		return slices.Contains(sink.keys(), "notes:a") && slices.Contains(sink.keys(), "notes:index")
	}, 2*time.Second, 10*time.Millisecond)

	// A file written by another process is reported too.
	external := `{"id":"ext","owner_id":"U1","created_at":"2026-03-01T12:00:00Z","sync_version":1}`
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes", "ext.json"), []byte(external), 0600))
	require.Eventually(t, func() bool {
		return slices.Contains(sink.keys(), "notes:ext")
	}, 2*time.Second, 10*time.Millisecond)

	list, err := s.List(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "ext"}, record.IDs(list))

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

func TestWatcher_ConvertEvent(t *testing.T) {
	t.Parallel()

	w := &watcher{table: "notes"}
	tests := []struct {
		name     string
		event    fsnotify.Event
		wantKeys []string
	}{
		{name: "create", event: fsnotify.Event{Name: "/d/a.json", Op: fsnotify.Create}, wantKeys: []string{"notes:a", "notes:index"}},
		{name: "write", event: fsnotify.Event{Name: "/d/a.json", Op: fsnotify.Write}, wantKeys: []string{"notes:a"}},
		{name: "remove", event: fsnotify.Event{Name: "/d/a.json", Op: fsnotify.Remove}, wantKeys: []string{"notes:a", "notes:index"}},
		{name: "rename", event: fsnotify.Event{Name: "/d/a.json", Op: fsnotify.Rename}, wantKeys: []string{"notes:a", "notes:index"}},
		{name: "chmod_ignored", event: fsnotify.Event{Name: "/d/a.json", Op: fsnotify.Chmod}},
		{name: "temp_file_ignored", event: fsnotify.Event{Name: "/d/a.json.tmp", Op: fsnotify.Create}},
		{name: "other_extension_ignored", event: fsnotify.Event{Name: "/d/a.txt", Op: fsnotify.Write}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			batch, ok := w.convertEvent(tt.event)
			if tt.wantKeys == nil {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Equal(t, store.AreaLocal, batch.Area)
			assert.Equal(t, tt.wantKeys, batch.Keys)
		})
	}
}
