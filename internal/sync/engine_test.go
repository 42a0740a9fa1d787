package sync

import (
	"context"
	"errors"
	gosync "sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/record-sync/internal/config"
	"github.com/stacklok/record-sync/internal/identity"
	"github.com/stacklok/record-sync/internal/record"
	"github.com/stacklok/record-sync/internal/status"
	"github.com/stacklok/record-sync/internal/store"
	"github.com/stacklok/record-sync/internal/store/memory"
	"github.com/stacklok/record-sync/internal/sync/state"
)

const testTable = "records"

type harness struct {
	local    *memory.LocalStore
	remote   *memory.RemoteStore
	identity *identity.StaticProvider
	state    state.Service
	engine   *Engine

	mu      gosync.Mutex
	results []status.Result
}

func testConfig() config.SyncConfig {
	return config.SyncConfig{
		TableName:            testTable,
		DebounceDelay:        "20ms",
		SelfChangeWindow:     "50ms",
		SelfChangeGrace:      "30ms",
		LocalChangeRetention: "5s",
		PeriodicInterval:     "1h",
		StorageBatchWindow:   "5ms",
		Remote: &config.RemoteSubscriptionConfig{
			ReconnectBaseDelay:   "5ms",
			MaxReconnectAttempts: 2,
		},
	}
}

func newHarness(t *testing.T, cfg config.SyncConfig, opts ...Option) *harness {
	t.Helper()
	local := memory.NewLocalStore(testTable)
	h := &harness{
		local:    local,
		remote:   memory.NewRemoteStore(),
		identity: identity.NewStaticProvider("U1"),
		state:    state.NewKVService(local),
	}
	h.engine = NewEngine(h.local, h.remote, h.identity, h.state, cfg, opts...)
	h.engine.AddStatusListener(func(s status.SyncStatus) {
		if s.LastResult == nil {
			return
		}
		h.mu.Lock()
		defer h.mu.Unlock()
		if n := len(h.results); n > 0 && h.results[n-1].StartedAt.Equal(s.LastResult.StartedAt) {
			return
		}
		h.results = append(h.results, *s.LastResult)
	})
	t.Cleanup(h.engine.Cleanup)
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	require.NoError(t, h.engine.Initialize(context.Background()))
}

func (h *harness) resultCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.results)
}

func (h *harness) lastResult() status.Result {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.results[len(h.results)-1]
}

// syncOnce triggers a manual sync and waits for its result and for the
// self-change grace window to close.
func (h *harness) syncOnce(t *testing.T) status.Result {
	t.Helper()
	h.engine.FlushStatus()
	before := h.resultCount()
	require.NoError(t, h.engine.TriggerSync(context.Background()))
	require.Eventually(t, func() bool {
		return h.resultCount() > before && !h.engine.GetStatus().IsRunning
	}, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return !h.engine.filter.InProgress() }, time.Second, 5*time.Millisecond)
	return h.lastResult()
}

func knownIDs(t *testing.T, svc state.Service, owner string) (localIDs, remoteIDs []string) {
	t.Helper()
	localIDs, err := svc.LoadKnownLocalIDs(context.Background(), owner)
	require.NoError(t, err)
	remoteIDs, err = svc.LoadKnownRemoteIDs(context.Background(), owner)
	require.NoError(t, err)
	return localIDs, remoteIDs
}

func TestEngine_PushesNewLocalRecord(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig())
	t1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	h.local.Seed(record.New("a", "U1", map[string]any{"x": 1}, t1))
	h.start(t)

	res := h.syncOnce(t)
	require.True(t, res.Success, "errors: %v", res.Errors)
	assert.Equal(t, 1, res.Created)

	got, err := h.remote.Get(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"x": 1}, got.Payload)
	assert.Equal(t, "U1", got.OwnerID)

	localIDs, remoteIDs := knownIDs(t, h.state, "U1")
	assert.Equal(t, []string{"a"}, localIDs)
	assert.Equal(t, []string{"a"}, remoteIDs)
}

func TestEngine_PropagatesLocalDeletion(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig())
	now := time.Now()
	h.remote.Seed(record.New("b", "U1", nil, now))
	require.NoError(t, h.state.SaveSnapshot(context.Background(), "U1", record.Snapshot{LocalIDs: []string{"b"}}))
	h.start(t)

	res := h.syncOnce(t)
	require.True(t, res.Success, "errors: %v", res.Errors)
	assert.Equal(t, 1, res.Deleted)

	_, err := h.remote.Get(context.Background(), "b")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = h.local.Get(context.Background(), "b")
	assert.ErrorIs(t, err, store.ErrNotFound, "no local write")
}

func TestEngine_PartialFailureKeepsSnapshot(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig())
	now := time.Now()
	h.local.Seed(record.New("a", "U1", nil, now), record.New("b", "U1", nil, now))
	previous := record.Snapshot{LocalIDs: []string{"old"}, RemoteIDs: []string{"old"}}
	require.NoError(t, h.state.SaveSnapshot(context.Background(), "U1", previous))
	h.remote.FailOn(memory.OpCreate, "b", errors.New("rejected"))
	h.start(t)

	res := h.syncOnce(t)
	assert.False(t, res.Success)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "b", res.Errors[0].ID)
	assert.Equal(t, 1, res.Created)

	localIDs, remoteIDs := knownIDs(t, h.state, "U1")
	assert.Equal(t, previous.LocalIDs, localIDs)
	assert.Equal(t, previous.RemoteIDs, remoteIDs)
	assert.Equal(t, "failed to create remote record: rejected", h.engine.GetStatus().Error)

	// The next clean run advances the snapshot and clears the error.
	h.remote.ClearFailures()
	res = h.syncOnce(t)
	require.True(t, res.Success, "errors: %v", res.Errors)
	assert.Empty(t, h.engine.GetStatus().Error)

	localIDs, remoteIDs = knownIDs(t, h.state, "U1")
	assert.Equal(t, []string{"a", "b"}, localIDs)
	assert.Equal(t, []string{"a", "b"}, remoteIDs)
}

func TestEngine_TriggerSyncRejections(t *testing.T) {
	t.Parallel()

	t.Run("not_initialized", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, testConfig())
		err := h.engine.TriggerSync(context.Background())
		assert.ErrorIs(t, err, ErrNotInitialized)
	})

	t.Run("disabled", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, testConfig())
		h.start(t)
		h.engine.SetEnabled(context.Background(), false)

		err := h.engine.TriggerSync(context.Background())
		var syncErr *Error
		require.ErrorAs(t, err, &syncErr)
		assert.Equal(t, ReasonDisabled, syncErr.Reason)
		assert.ErrorIs(t, err, ErrSyncDisabled)
	})

	t.Run("already_running", func(t *testing.T) {
		t.Parallel()

		gate := make(chan struct{})
		var lists atomic.Int32
		h := newHarness(t, testConfig())
		blocking := &blockingRemote{RemoteStore: h.remote, gate: gate, lists: &lists}
		h.engine = NewEngine(h.local, blocking, h.identity, h.state, testConfig())
		t.Cleanup(h.engine.Cleanup)
		h.start(t)

		require.NoError(t, h.engine.TriggerSync(context.Background()))
		require.Eventually(t, func() bool { return h.engine.GetStatus().IsRunning }, time.Second, 2*time.Millisecond)

		err := h.engine.TriggerSync(context.Background())
		var syncErr *Error
		require.ErrorAs(t, err, &syncErr)
		assert.Equal(t, ReasonAlreadyInProgress, syncErr.Reason)

		close(gate)
		require.Eventually(t, func() bool { return !h.engine.GetStatus().IsRunning }, time.Second, 2*time.Millisecond)
		time.Sleep(60 * time.Millisecond)
		// One execution lists the remote for preparation and for the snapshot.
		assert.Equal(t, int32(2), lists.Load(), "rejected trigger must not start a second execution")
	})
}

// blockingRemote holds List until gate is closed.
type blockingRemote struct {
	*memory.RemoteStore
	gate  chan struct{}
	lists *atomic.Int32
}

func (b *blockingRemote) List(ctx context.Context, ownerID string) ([]record.Record, error) {
	if b.lists.Add(1) == 1 {
		<-b.gate
	}
	return b.RemoteStore.List(ctx, ownerID)
}

func TestEngine_DebounceCollapsesTriggers(t *testing.T) {
	t.Parallel()

	var lists atomic.Int32
	h := newHarness(t, testConfig())
	counting := &blockingRemote{RemoteStore: h.remote, gate: closedGate(), lists: &lists}
	h.engine = NewEngine(h.local, counting, h.identity, h.state, testConfig())
	t.Cleanup(h.engine.Cleanup)
	h.start(t)

	for range 10 {
		require.NoError(t, h.engine.TriggerSync(context.Background()))
	}
	assert.Equal(t, 10, h.engine.GetStatus().QueueSize)

	require.Eventually(t, func() bool {
		s := h.engine.GetStatus()
		return s.LastResult != nil && !s.IsRunning
	}, time.Second, 2*time.Millisecond)
	time.Sleep(60 * time.Millisecond)

	// One execution lists the remote once for preparation and once for the snapshot.
	assert.Equal(t, int32(2), lists.Load())
	assert.Zero(t, h.engine.GetStatus().QueueSize)
}

func closedGate() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

func TestEngine_LocalChangeTriggersSync(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig())
	h.start(t)

	require.NoError(t, h.local.Create(context.Background(), record.New("n1", "U1", map[string]any{"title": "note"}, time.Now())))

	require.Eventually(t, func() bool {
		_, err := h.remote.Get(context.Background(), "n1")
		return err == nil
	}, 2*time.Second, 5*time.Millisecond)

	at, err := h.state.LoadLocalChange(context.Background())
	require.NoError(t, err)
	assert.False(t, at.IsZero(), "local mutation is recorded for the self-change heuristic")
}

func TestEngine_RemoteChangeTriggersSync(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig())
	h.start(t)

	h.remote.Push(record.New("r1", "U1", map[string]any{"title": "from web"}, time.Now()), "another-device")

	require.Eventually(t, func() bool {
		_, err := h.local.Get(context.Background(), "r1")
		return err == nil
	}, 2*time.Second, 5*time.Millisecond)
}

func TestEngine_OwnOriginRemoteEchoIsIgnored(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig(), WithOrigin("engine-1"))
	h.start(t)

	h.remote.Push(record.New("r1", "U1", nil, time.Now()), "engine-1")
	time.Sleep(100 * time.Millisecond)

	assert.Zero(t, h.resultCount())
	_, err := h.local.Get(context.Background(), "r1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestEngine_SetEnabledTogglesDetectors(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig())
	h.start(t)
	assert.Equal(t, 1, h.remote.SubscriberCount())
	assert.True(t, h.engine.GetStatus().Enabled)
	assert.NotNil(t, h.engine.GetStatus().NextScheduledSync)

	h.engine.SetEnabled(context.Background(), false)
	assert.Equal(t, 0, h.remote.SubscriberCount())
	assert.False(t, h.engine.GetStatus().Enabled)
	assert.Nil(t, h.engine.GetStatus().NextScheduledSync)

	enabled, found, err := h.state.LoadEnabled(context.Background())
	require.NoError(t, err)
	assert.True(t, found)
	assert.False(t, enabled)

	h.engine.SetEnabled(context.Background(), true)
	assert.Equal(t, 1, h.remote.SubscriberCount())
}

func TestEngine_InitializeRestoresDisabledState(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig())
	require.NoError(t, h.state.SaveEnabled(context.Background(), false))
	h.start(t)

	assert.False(t, h.engine.GetStatus().Enabled)
	assert.Equal(t, 0, h.remote.SubscriberCount())

	err := h.engine.Initialize(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyInitialized)
}

func TestEngine_IdentityFailureIsSingleError(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig())
	h.start(t)
	h.identity.SetOwner("")

	require.NoError(t, h.engine.TriggerSync(context.Background()))
	require.Eventually(t, func() bool { return h.resultCount() == 1 }, time.Second, 5*time.Millisecond)

	res := h.lastResult()
	assert.False(t, res.Success)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, status.OperationIdentity, res.Errors[0].Operation)
	assert.Empty(t, res.Errors[0].ID)
}

func TestEngine_OwnerSwitchResubscribes(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig())
	h.start(t)

	h.identity.SetOwner("U2")
	assert.Equal(t, "U2", h.engine.remoteDetector.Owner())
	assert.Equal(t, 1, h.remote.SubscriberCount())
}

func TestEngine_CleanupStopsTriggers(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig())
	h.start(t)
	h.engine.Cleanup()
	h.engine.Cleanup()

	assert.Equal(t, 0, h.remote.SubscriberCount())
	assert.ErrorIs(t, h.engine.TriggerSync(context.Background()), ErrNotInitialized)

	require.NoError(t, h.local.Create(context.Background(), record.New("late", "U1", nil, time.Now())))
	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, h.resultCount())
}

func TestEngine_ListenerMayCallBackIntoEngine(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig())
	h.start(t)
	ctx := context.Background()

	var triggered atomic.Bool
	h.engine.AddStatusListener(func(s status.SyncStatus) {
		if !s.Enabled {
			h.engine.SetEnabled(ctx, true)
			return
		}
		if triggered.CompareAndSwap(false, true) {
			assert.NoError(t, h.engine.TriggerSync(ctx))
			h.engine.AddStatusListener(func(status.SyncStatus) {})
		}
	})

	disabled := make(chan struct{})
	go func() {
		defer close(disabled)
		h.engine.SetEnabled(ctx, false)
	}()
	select {
	case <-disabled:
	case <-time.After(5 * time.Second):
		t.Fatal("SetEnabled did not return")
	}

	// The listener turned sync back on, so the detectors run again.
	require.Eventually(t, func() bool {
		return h.engine.GetStatus().Enabled && h.remote.SubscriberCount() == 1
	}, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return h.resultCount() >= 1 }, 2*time.Second, 5*time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		h.engine.Cleanup()
	}()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Cleanup did not return")
	}
	assert.Equal(t, 0, h.remote.SubscriberCount())
}
