package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/record-sync/internal/record"
	"github.com/stacklok/record-sync/internal/store"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestLocalStore_CRUDAndFeed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewLocalStore("notes")

	var batches []store.ChangeBatch
	cancel := s.Watch(func(b store.ChangeBatch) { batches = append(batches, b) })

	rec := record.New("a", "U1", map[string]any{"title": "first"}, t0)
	require.NoError(t, s.Create(ctx, rec))
	require.Error(t, s.Create(ctx, rec), "duplicate id")

	require.NoError(t, s.Create(ctx, record.New("b", "U2", nil, t0)))

	got, err := s.List(ctx, "U1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "first", got[0].Title())

	rec.Payload = map[string]any{"title": "second"}
	require.NoError(t, s.Update(ctx, rec))
	fetched, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "second", fetched.Title())

	require.NoError(t, s.Delete(ctx, "a"))
	_, err = s.Get(ctx, "a")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "a"), store.ErrNotFound)
	assert.ErrorIs(t, s.Update(ctx, rec), store.ErrNotFound)

	require.Len(t, batches, 4)
	assert.Equal(t, store.AreaLocal, batches[0].Area)
	assert.Equal(t, []string{"notes:a", "notes:index"}, batches[0].Keys)
	assert.Equal(t, []string{"notes:a"}, batches[2].Keys)

	cancel()
	require.NoError(t, s.SetRaw(ctx, "k", "v"))
	assert.Len(t, batches, 4, "detached watcher receives nothing")
}

func TestLocalStore_StoredRecordsAreIsolated(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewLocalStore("notes")

	payload := map[string]any{"x": 1}
	require.NoError(t, s.Create(ctx, record.New("a", "U1", payload, t0)))
	payload["x"] = 2

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Payload["x"])
}

func TestLocalStore_RawKV(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewLocalStore("notes")

	var keys []string
	s.Watch(func(b store.ChangeBatch) { keys = append(keys, b.Keys...) })

	_, found, err := s.GetRaw(ctx, "sync_state:enabled")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.SetRaw(ctx, "sync_state:enabled", "false"))
	v, found, err := s.GetRaw(ctx, "sync_state:enabled")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "false", v)

	require.NoError(t, s.DeleteRaw(ctx, "sync_state:enabled"))
	require.NoError(t, s.DeleteRaw(ctx, "sync_state:enabled"))
	assert.Equal(t, []string{"sync_state:enabled", "sync_state:enabled"}, keys)
}

func TestLocalStore_FailureInjection(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewLocalStore("notes")
	boom := errors.New("boom")

	s.FailOnce(OpCreate, "a", boom)
	assert.ErrorIs(t, s.Create(ctx, record.New("a", "U1", nil, t0)), boom)
	assert.NoError(t, s.Create(ctx, record.New("a", "U1", nil, t0)))

	s.FailOn(OpList, "", boom)
	_, err := s.List(ctx, "U1")
	assert.ErrorIs(t, err, boom)
	_, err = s.List(ctx, "U1")
	assert.ErrorIs(t, err, boom)

	s.ClearFailures()
	_, err = s.List(ctx, "U1")
	assert.NoError(t, err)
}

func TestRemoteStore_SubscriptionDeliversOwnedChanges(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewRemoteStore()

	var changes []store.RemoteChange
	var statuses []store.SubscriptionStatus
	sub, err := s.Subscribe(ctx, "U1", "notes",
		func(c store.RemoteChange) { changes = append(changes, c) },
		func(st store.SubscriptionStatus, _ error) { statuses = append(statuses, st) },
	)
	require.NoError(t, err)
	assert.Equal(t, []store.SubscriptionStatus{store.StatusConnected}, statuses)
	assert.Equal(t, 1, s.SubscriberCount())

	rec := record.New("a", "U1", nil, t0)
	require.NoError(t, s.Create(store.WithOrigin(ctx, "engine-1"), rec))
	require.NoError(t, s.Create(ctx, record.New("other", "U2", nil, t0)))
	require.NoError(t, s.Update(ctx, rec))
	require.NoError(t, s.Delete(ctx, "a"))

	require.Len(t, changes, 3)
	assert.Equal(t, store.ChangeInsert, changes[0].Type)
	assert.Equal(t, "engine-1", changes[0].Origin)
	assert.Equal(t, store.ChangeUpdate, changes[1].Type)
	assert.Empty(t, changes[1].Origin)
	assert.Equal(t, store.ChangeDelete, changes[2].Type)
	assert.Equal(t, "a", changes[2].RecordID())

	require.NoError(t, sub.Close())
	assert.Equal(t, 0, s.SubscriberCount())
}

func TestRemoteStore_DisconnectAndPush(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewRemoteStore()

	var lastStatus store.SubscriptionStatus
	var lastErr error
	var changes []store.RemoteChange
	_, err := s.Subscribe(ctx, "U1", "notes",
		func(c store.RemoteChange) { changes = append(changes, c) },
		func(st store.SubscriptionStatus, err error) { lastStatus, lastErr = st, err },
	)
	require.NoError(t, err)

	s.Push(record.New("p", "U1", nil, t0), "other-device")
	require.Len(t, changes, 1)
	assert.Equal(t, "other-device", changes[0].Origin)

	lost := errors.New("connection reset")
	s.Disconnect(lost)
	assert.Equal(t, store.StatusError, lastStatus)
	assert.ErrorIs(t, lastErr, lost)
	assert.Equal(t, 0, s.SubscriberCount())

	s.Push(record.New("q", "U1", nil, t0), "")
	assert.Len(t, changes, 1)
}

func TestRemoteStore_SubscribeFailure(t *testing.T) {
	t.Parallel()
	s := NewRemoteStore()
	s.FailTimes(OpSubscribe, "", errors.New("unreachable"), 2)

	noop := func(store.RemoteChange) {}
	noStatus := func(store.SubscriptionStatus, error) {}
	for range 2 {
		_, err := s.Subscribe(context.Background(), "U1", "notes", noop, noStatus)
		assert.Error(t, err)
	}
	_, err := s.Subscribe(context.Background(), "U1", "notes", noop, noStatus)
	assert.NoError(t, err)
}
