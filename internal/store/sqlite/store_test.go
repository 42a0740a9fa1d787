package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/record-sync/internal/record"
	"github.com/stacklok/record-sync/internal/store"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "data", "local.db"), "notes")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		path    string
		table   string
		wantErr string
	}{
		{name: "missing_path", table: "notes", wantErr: "sqlite path is required"},
		{name: "missing_table", path: "x.db", wantErr: "table name is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Open(context.Background(), tt.path, tt.table)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("reopen_keeps_data", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "local.db")

		s, err := Open(ctx, path, "notes")
		require.NoError(t, err)
		require.NoError(t, s.Create(ctx, record.New("a", "U1", nil, t0)))
		require.NoError(t, s.Close())

		s, err = Open(ctx, path, "notes")
		require.NoError(t, err)
		defer s.Close()
		got, err := s.List(ctx, "U1")
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, record.IDs(got))
	})
}

func TestStore_RecordRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestStore(t)

	rec := record.New("a", "U1", map[string]any{"title": "first", "tags": []any{"x"}}, t0)
	rec.SyncVersion = 3
	require.NoError(t, s.Create(ctx, rec))
	require.Error(t, s.Create(ctx, rec), "duplicate id")

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, rec, *got)

	// A record without UpdatedAt keeps it unset.
	bare := record.Record{ID: "b", OwnerID: "U1", CreatedAt: t0, SyncVersion: 1}
	require.NoError(t, s.Create(ctx, bare))
	got, err = s.Get(ctx, "b")
	require.NoError(t, err)
	assert.Nil(t, got.UpdatedAt)
	assert.Nil(t, got.Payload)

	rec.Touch(t0.Add(time.Minute))
	rec.IsDeleted = true
	require.NoError(t, s.Update(ctx, rec))
	got, err = s.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, got.IsDeleted)
	assert.Equal(t, int64(4), got.SyncVersion)
	assert.True(t, got.EffectiveTime().Equal(t0.Add(time.Minute)))
}

func TestStore_ListFiltersByOwner(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestStore(t)

	for _, r := range []record.Record{
		record.New("c", "U1", nil, t0),
		record.New("a", "U1", nil, t0),
		record.New("b", "U2", nil, t0),
	} {
		require.NoError(t, s.Create(ctx, r))
	}

	got, err := s.List(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, record.IDs(got))

	got, err = s.List(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_MissingRecords(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.Get(ctx, "ghost")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.Update(ctx, record.New("ghost", "U1", nil, t0)), store.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "ghost"), store.ErrNotFound)
}

func TestStore_ChangeFeed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestStore(t)

	var batches []store.ChangeBatch
	cancel := s.Watch(func(b store.ChangeBatch) { batches = append(batches, b) })

	rec := record.New("a", "U1", nil, t0)
	require.NoError(t, s.Create(ctx, rec))
	require.NoError(t, s.Update(ctx, rec))
	require.NoError(t, s.Delete(ctx, "a"))
	require.Error(t, s.Delete(ctx, "a"))
	require.NoError(t, s.SetRaw(ctx, "sync_state:enabled", "true"))
	require.NoError(t, s.DeleteRaw(ctx, "never-set"))

	require.Len(t, batches, 4)
	for _, b := range batches {
		assert.Equal(t, store.AreaLocal, b.Area)
	}
	assert.Equal(t, []string{"notes:a", "notes:index"}, batches[0].Keys)
	assert.Equal(t, []string{"notes:a"}, batches[1].Keys)
	assert.Equal(t, []string{"notes:a", "notes:index"}, batches[2].Keys)
	assert.Equal(t, []string{"sync_state:enabled"}, batches[3].Keys)

	cancel()
	require.NoError(t, s.Create(ctx, rec))
	assert.Len(t, batches, 4)
}

func TestStore_KeyValue(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestStore(t)

	_, found, err := s.GetRaw(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.SetRaw(ctx, "k", "v1"))
	require.NoError(t, s.SetRaw(ctx, "k", "v2"))
	v, found, err := s.GetRaw(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v2", v)

	require.NoError(t, s.DeleteRaw(ctx, "k"))
	_, found, err = s.GetRaw(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}
