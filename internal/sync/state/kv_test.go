package state

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/record-sync/internal/record"
	"github.com/stacklok/record-sync/internal/store/memory"
)

func TestKVService_Enabled(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kv := memory.NewLocalStore("records")
	svc := NewKVService(kv)

	_, found, err := svc.LoadEnabled(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, svc.SaveEnabled(ctx, false))
	enabled, found, err := svc.LoadEnabled(ctx)
	require.NoError(t, err)
	assert.True(t, found)
	assert.False(t, enabled)

	raw, _, err := kv.GetRaw(ctx, KeyEnabled)
	require.NoError(t, err)
	assert.Equal(t, "false", raw)
}

func TestKVService_EnabledCorrupt(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kv := memory.NewLocalStore("records")
	require.NoError(t, kv.SetRaw(ctx, KeyEnabled, "maybe"))

	_, _, err := NewKVService(kv).LoadEnabled(ctx)
	assert.Error(t, err)
}

func TestKVService_Snapshots(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := NewKVService(memory.NewLocalStore("records"))

	local, err := svc.LoadKnownLocalIDs(ctx, "U1")
	require.NoError(t, err)
	assert.Empty(t, local)

	require.NoError(t, svc.SaveSnapshot(ctx, "U1", record.Snapshot{
		LocalIDs:  []string{"b", "a", "a"},
		RemoteIDs: []string{"c"},
	}))
	require.NoError(t, svc.SaveSnapshot(ctx, "U2", record.Snapshot{LocalIDs: []string{"z"}}))

	local, err = svc.LoadKnownLocalIDs(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, local)

	remote, err := svc.LoadKnownRemoteIDs(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, remote)

	remote, err = svc.LoadKnownRemoteIDs(ctx, "U2")
	require.NoError(t, err)
	assert.Empty(t, remote)

	assert.Error(t, svc.SaveSnapshot(ctx, "", record.Snapshot{}))
}

func TestKVService_SnapshotWriteFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kv := memory.NewLocalStore("records")
	kv.FailOn(memory.OpSetRaw, "", errors.New("quota exceeded"))

	err := NewKVService(kv).SaveSnapshot(ctx, "U1", record.Snapshot{LocalIDs: []string{"a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestKVService_LocalChange(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := NewKVService(memory.NewLocalStore("records"))

	at, err := svc.LoadLocalChange(ctx)
	require.NoError(t, err)
	assert.True(t, at.IsZero())

	want := time.Date(2026, 5, 6, 7, 8, 9, 123456789, time.UTC)
	require.NoError(t, svc.SaveLocalChange(ctx, want))

	at, err = svc.LoadLocalChange(ctx)
	require.NoError(t, err)
	assert.True(t, want.Equal(at))

	require.NoError(t, svc.ClearLocalChange(ctx))
	at, err = svc.LoadLocalChange(ctx)
	require.NoError(t, err)
	assert.True(t, at.IsZero())
}

func TestIsInternalKey(t *testing.T) {
	t.Parallel()

	for key, want := range map[string]bool{
		KeyEnabled:                  true,
		KeyLastLocalChange:          true,
		PrefixLastKnownLocal + "U1": true,
		"last_known_anything":       true,
		"records:a":                 false,
		"records:index":             false,
	} {
		assert.Equal(t, want, IsInternalKey(key), key)
	}
}
