package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/record-sync/database"
	"github.com/stacklok/record-sync/internal/record"
	"github.com/stacklok/record-sync/internal/store"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestDecodeNotification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
		check   func(t *testing.T, n *notification)
		wantErr string
	}{
		{
			name: "insert",
			payload: `{"type":"INSERT","table":"notes","owner_id":"U1","origin":"engine-1",
				"new":{"id":"a","owner_id":"U1","created_at":"2026-03-01T12:00:00+00:00",
				"updated_at":"2026-03-01T12:05:00.123456+00:00","is_deleted":false,"sync_version":2},
				"old":null}`,
			check: func(t *testing.T, n *notification) {
				t.Helper()
				change := n.change()
				assert.Equal(t, store.ChangeInsert, change.Type)
				assert.Equal(t, "engine-1", change.Origin)
				assert.Equal(t, "a", change.RecordID())
				assert.Nil(t, change.Old)
				require.NotNil(t, change.New.UpdatedAt)
				assert.True(t, change.New.EffectiveTime().After(t0))
				assert.Equal(t, int64(2), change.New.SyncVersion)
			},
		},
		{
			name: "delete_without_origin",
			payload: `{"type":"DELETE","table":"notes","owner_id":"U1","origin":null,
				"new":null,"old":{"id":"b","owner_id":"U1","created_at":"2026-03-01T12:00:00+00:00"}}`,
			check: func(t *testing.T, n *notification) {
				t.Helper()
				change := n.change()
				assert.Equal(t, store.ChangeDelete, change.Type)
				assert.Empty(t, change.Origin)
				assert.Equal(t, "b", change.RecordID())
			},
		},
		{name: "malformed", payload: `{"type":`, wantErr: "failed to decode change notification"},
		{name: "unknown_type", payload: `{"type":"TRUNCATE"}`, wantErr: "unknown change type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			n, err := decodeNotification(tt.payload)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "notes", n.Table)
			assert.Equal(t, "U1", n.OwnerID)
			tt.check(t, n)
		})
	}
}

type changeSink struct {
	mu      sync.Mutex
	changes []store.RemoteChange
}

func (c *changeSink) add(change store.RemoteChange) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.changes = append(c.changes, change)
}

func (c *changeSink) snapshot() []store.RemoteChange {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]store.RemoteChange(nil), c.changes...)
}

func TestStore_Postgres(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	pool, _ := database.SetupTestDBContainer(t, ctx)
	s := New(pool, "notes")
	other := New(pool, "tasks")

	sink := &changeSink{}
	statuses := make(chan store.SubscriptionStatus, 4)
	sub, err := s.Subscribe(ctx, "U1", "notes", sink.add, func(st store.SubscriptionStatus, _ error) {
		statuses <- st
	})
	require.NoError(t, err)
	defer sub.Close()
	assert.Equal(t, store.StatusConnected, <-statuses)

	t.Run("crud", func(t *testing.T) {
		rec := record.New("a", "U1", map[string]any{"title": "first"}, t0)
		require.NoError(t, s.Create(store.WithOrigin(ctx, "engine-1"), rec))
		err := s.Create(ctx, rec)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already exists")

		got, err := s.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, rec, *got)

		_, err = other.Get(ctx, "a")
		assert.ErrorIs(t, err, store.ErrNotFound, "tables are isolated")

		rec.Touch(t0.Add(time.Minute))
		require.NoError(t, s.Update(ctx, rec))
		list, err := s.List(ctx, "U1")
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, int64(2), list[0].SyncVersion)

		require.NoError(t, s.Delete(store.WithOrigin(ctx, "engine-1"), "a"))
		assert.ErrorIs(t, s.Delete(ctx, "a"), store.ErrNotFound)
		assert.ErrorIs(t, s.Update(ctx, rec), store.ErrNotFound)
	})

	t.Run("notifications", func(t *testing.T) {
		require.NoError(t, other.Create(ctx, record.New("x", "U1", nil, t0)))
		require.NoError(t, s.Create(ctx, record.New("y", "U2", nil, t0)))

		require.Eventually(t, func() bool { return len(sink.snapshot()) >= 3 }, 5*time.Second, 20*time.Millisecond)
		changes := sink.snapshot()
		require.Len(t, changes, 3, "other tables and owners are filtered out")

		assert.Equal(t, store.ChangeInsert, changes[0].Type)
		assert.Equal(t, "engine-1", changes[0].Origin)
		assert.Equal(t, store.ChangeUpdate, changes[1].Type)
		assert.Empty(t, changes[1].Origin)
		assert.Equal(t, store.ChangeDelete, changes[2].Type)
		assert.Equal(t, "engine-1", changes[2].Origin)
		assert.Equal(t, "a", changes[2].RecordID())
	})

	t.Run("close_from_callback", func(t *testing.T) {
		subCh := make(chan store.Subscription, 1)
		closed := make(chan error, 1)
		connected := make(chan struct{}, 1)
		own, err := s.Subscribe(ctx, "U3", "notes", func(store.RemoteChange) {
			closed <- (<-subCh).Close()
		}, func(st store.SubscriptionStatus, _ error) {
			if st == store.StatusConnected {
				connected <- struct{}{}
			}
		})
		require.NoError(t, err)
		subCh <- own
		<-connected

		require.NoError(t, s.Create(ctx, record.New("z", "U3", nil, t0)))
		select {
		case err := <-closed:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("Close called from the change callback blocked")
		}
		require.NoError(t, own.Close())
	})

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())
}
