package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanushsahu-fisrt/ventApp/config"
	"github.com/tanushsahu-fisrt/ventApp/models"
	"github.com/tanushsahu-fisrt/ventApp/store"
)

// fakeMatchQueue backs searches with the in-memory store and hands
// waiting-list deliveries to the test instead of Redis.
type fakeMatchQueue struct {
	mem *store.Memory

	mu           sync.Mutex
	subscribers  map[string]func([]models.QueueEntry)
	unsubscribes int
	nextAddedAt  int64
	pingErr      error
	stats        models.QueueStats

	// snapshotOnSubscribe, when set, is delivered from a fresh goroutine
	// the moment a subscription is installed, the way the Redis-backed
	// subscription delivers its first waiting-list snapshot.
	snapshotOnSubscribe func() []models.QueueEntry
}

func newFakeMatchQueue(mem *store.Memory) *fakeMatchQueue {
	return &fakeMatchQueue{
		mem:         mem,
		subscribers: make(map[string]func([]models.QueueEntry)),
	}
}

func (f *fakeMatchQueue) Enqueue(ctx context.Context, userID, role, ventText, plan string) (*models.QueueEntry, error) {
	if role == models.RoleVenter {
		if err := models.ValidateVentText(ventText); err != nil {
			return nil, err
		}
	}

	f.mu.Lock()
	f.nextAddedAt++
	addedAt := f.nextAddedAt
	f.mu.Unlock()

	fields := store.Fields{
		"userId": userID, "role": role,
		"status": models.StatusWaiting, "addedAt": addedAt,
	}
	if role == models.RoleVenter {
		fields["ventText"] = ventText
		fields["plan"] = plan
		fields["roomId"] = "room_test_" + userID
		fields["roomStatus"] = models.RoomOpen
	}

	doc, err := f.mem.Create(ctx, store.CollectionQueue, fields)
	if err != nil {
		return nil, err
	}
	return &models.QueueEntry{ID: doc.ID(), UserID: userID, Role: role, Status: models.StatusWaiting, AddedAt: addedAt}, nil
}

func (f *fakeMatchQueue) Dequeue(ctx context.Context, entryID string) error {
	if entryID == "" {
		return nil
	}
	err := f.mem.Delete(ctx, store.CollectionQueue, entryID)
	if err == models.ErrNotFound {
		return nil
	}
	return err
}

func (f *fakeMatchQueue) SubscribeWaiting(_ context.Context, role string, fn func([]models.QueueEntry)) (func(), error) {
	f.mu.Lock()
	f.subscribers[role] = fn
	snapshot := f.snapshotOnSubscribe
	f.mu.Unlock()

	if snapshot != nil {
		go fn(snapshot())
	}

	return func() {
		f.mu.Lock()
		delete(f.subscribers, role)
		f.unsubscribes++
		f.mu.Unlock()
	}, nil
}

func (f *fakeMatchQueue) Stats(context.Context) *models.QueueStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := f.stats
	return &stats
}

func (f *fakeMatchQueue) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pingErr
}

// deliver pushes a waiting-list snapshot to the subscriber for a role.
func (f *fakeMatchQueue) deliver(role string, entries []models.QueueEntry) {
	f.mu.Lock()
	fn := f.subscribers[role]
	f.mu.Unlock()
	if fn != nil {
		fn(entries)
	}
}

func (f *fakeMatchQueue) subscriberCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribers)
}

func setupMatchingService(t *testing.T) (*MatchingService, *fakeMatchQueue, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	queue := newFakeMatchQueue(mem)
	sessions, _ := setupSessionService(t, &fakeEngine{})
	sessions.Store = mem

	cfg := &config.Config{
		MatchTimeout:    4 * time.Minute,
		MaxClaimRetries: 3,
	}
	return NewMatchingService(queue, sessions, cfg), queue, mem
}

func resultChan() (chan MatchResult, func(MatchResult)) {
	ch := make(chan MatchResult, 1)
	return ch, func(r MatchResult) { ch <- r }
}

func awaitResult(t *testing.T, ch chan MatchResult) MatchResult {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("no match result delivered")
		return MatchResult{}
	}
}

func TestMatchingService_VenterMatchesListener(t *testing.T) {
	svc, queue, mem := setupMatchingService(t)
	ctx := context.Background()

	listener, err := queue.Enqueue(ctx, "listener-1", models.RoleListener, "", "")
	require.NoError(t, err)

	results, onResult := resultChan()
	require.NoError(t, svc.StartMatching(ctx, "venter-1", models.RoleVenter, testVentText, models.DefaultPlanName, onResult))
	assert.True(t, svc.Searching("venter-1"))

	queue.deliver(models.RoleListener, []models.QueueEntry{*listener})

	result := awaitResult(t, results)
	require.NoError(t, result.Err)
	assert.Equal(t, "venter-1", result.Descriptor.VenterID)
	assert.Equal(t, "listener-1", result.Descriptor.ListenerID)
	assert.True(t, result.Descriptor.IsHost, "initiating venter hosts the channel")

	assert.Eventually(t, func() bool { return !svc.Searching("venter-1") }, time.Second, 5*time.Millisecond)
	assert.Zero(t, queue.subscriberCount(), "search must unsubscribe when it resolves")

	sessions, err := mem.Count(ctx, store.CollectionSessions, store.Fields{"status": models.SessionActive})
	require.NoError(t, err)
	assert.Equal(t, 1, sessions)
}

func TestMatchingService_InitialSnapshotClaimUnsubscribes(t *testing.T) {
	svc, queue, mem := setupMatchingService(t)
	ctx := context.Background()

	listener, err := queue.Enqueue(ctx, "listener-1", models.RoleListener, "", "")
	require.NoError(t, err)

	// A candidate is already waiting when the subscription goes up, so
	// the very first snapshot can resolve the search while StartMatching
	// is still wiring the search up.
	queue.mu.Lock()
	queue.snapshotOnSubscribe = func() []models.QueueEntry { return []models.QueueEntry{*listener} }
	queue.mu.Unlock()

	results, onResult := resultChan()
	require.NoError(t, svc.StartMatching(ctx, "venter-1", models.RoleVenter, testVentText, models.DefaultPlanName, onResult))

	result := awaitResult(t, results)
	require.NoError(t, result.Err)
	assert.Equal(t, "listener-1", result.Descriptor.ListenerID)

	assert.Eventually(t, func() bool { return queue.subscriberCount() == 0 }, time.Second, 5*time.Millisecond,
		"a search resolved by the first snapshot must still release its subscription")

	sessions, err := mem.Count(ctx, store.CollectionSessions, store.Fields{"status": models.SessionActive})
	require.NoError(t, err)
	assert.Equal(t, 1, sessions)
}

func TestMatchingService_PicksOldestCandidate(t *testing.T) {
	svc, queue, _ := setupMatchingService(t)
	ctx := context.Background()

	oldest, err := queue.Enqueue(ctx, "venter-old", models.RoleVenter, testVentText, models.DefaultPlanName)
	require.NoError(t, err)
	newer, err := queue.Enqueue(ctx, "venter-new", models.RoleVenter, testVentText, models.DefaultPlanName)
	require.NoError(t, err)

	results, onResult := resultChan()
	require.NoError(t, svc.StartMatching(ctx, "listener-1", models.RoleListener, "", "", onResult))

	// Snapshots arrive oldest first; the engine claims the head.
	queue.deliver(models.RoleVenter, []models.QueueEntry{*oldest, *newer})

	result := awaitResult(t, results)
	require.NoError(t, result.Err)
	assert.Equal(t, "venter-old", result.Descriptor.VenterID)
}

func TestMatchingService_NeverMatchesSelf(t *testing.T) {
	svc, queue, _ := setupMatchingService(t)
	ctx := context.Background()

	results, onResult := resultChan()
	require.NoError(t, svc.StartMatching(ctx, "user-1", models.RoleListener, "", "", onResult))

	self := models.QueueEntry{ID: "self-entry", UserID: "user-1", AddedAt: 1}
	queue.deliver(models.RoleVenter, []models.QueueEntry{self})

	select {
	case r := <-results:
		t.Fatalf("unexpected result: %+v", r)
	case <-time.After(50 * time.Millisecond):
	}
	assert.True(t, svc.Searching("user-1"))

	require.NoError(t, svc.StopMatching(ctx, "user-1"))
}

func TestMatchingService_RetriesExhaustedFailsSearch(t *testing.T) {
	svc, queue, mem := setupMatchingService(t)
	ctx := context.Background()

	// Three candidates that are all already claimed by the time the
	// snapshot is processed.
	var stale []models.QueueEntry
	for _, user := range []string{"v1", "v2", "v3"} {
		entry, err := queue.Enqueue(ctx, user, models.RoleVenter, testVentText, models.DefaultPlanName)
		require.NoError(t, err)
		require.NoError(t, mem.Update(ctx, store.CollectionQueue, entry.ID, store.Fields{
			"status": models.StatusMatched,
		}))
		stale = append(stale, *entry)
	}

	results, onResult := resultChan()
	require.NoError(t, svc.StartMatching(ctx, "listener-1", models.RoleListener, "", "", onResult))

	queue.deliver(models.RoleVenter, stale)

	result := awaitResult(t, results)
	assert.ErrorIs(t, result.Err, ErrClaimContention)
	assert.Eventually(t, func() bool { return !svc.Searching("listener-1") }, time.Second, 5*time.Millisecond)
}

func TestMatchingService_Timeout(t *testing.T) {
	svc, queue, mem := setupMatchingService(t)
	svc.cfg = &config.Config{MatchTimeout: 30 * time.Millisecond, MaxClaimRetries: 3}
	ctx := context.Background()

	results, onResult := resultChan()
	require.NoError(t, svc.StartMatching(ctx, "listener-1", models.RoleListener, "", "", onResult))

	result := awaitResult(t, results)
	assert.ErrorIs(t, result.Err, ErrMatchTimeout)

	assert.Zero(t, queue.subscriberCount())
	remaining, err := mem.Count(ctx, store.CollectionQueue, store.Fields{})
	require.NoError(t, err)
	assert.Zero(t, remaining, "timed-out search removes its queue entry")
}

func TestMatchingService_StopMatching(t *testing.T) {
	svc, queue, mem := setupMatchingService(t)
	ctx := context.Background()

	results, onResult := resultChan()
	require.NoError(t, svc.StartMatching(ctx, "listener-1", models.RoleListener, "", "", onResult))

	require.NoError(t, svc.StopMatching(ctx, "listener-1"))
	require.NoError(t, svc.StopMatching(ctx, "listener-1"), "stop is idempotent")
	require.NoError(t, svc.StopMatching(ctx, "never-started"))

	assert.False(t, svc.Searching("listener-1"))
	assert.Zero(t, queue.subscriberCount())

	remaining, err := mem.Count(ctx, store.CollectionQueue, store.Fields{})
	require.NoError(t, err)
	assert.Zero(t, remaining)

	select {
	case r := <-results:
		t.Fatalf("stopped search must not deliver a result, got %+v", r)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMatchingService_OneSearchPerUser(t *testing.T) {
	svc, _, _ := setupMatchingService(t)
	ctx := context.Background()

	_, onResult := resultChan()
	require.NoError(t, svc.StartMatching(ctx, "listener-1", models.RoleListener, "", "", onResult))

	err := svc.StartMatching(ctx, "listener-1", models.RoleListener, "", "", onResult)
	assert.ErrorIs(t, err, models.ErrAlreadyMatching)

	require.NoError(t, svc.StopMatching(ctx, "listener-1"))
}

func TestMatchingService_ConnectivityGate(t *testing.T) {
	svc, queue, _ := setupMatchingService(t)
	queue.pingErr = models.ErrConnectivity

	_, onResult := resultChan()
	err := svc.StartMatching(context.Background(), "listener-1", models.RoleListener, "", "", onResult)

	assert.ErrorIs(t, err, models.ErrConnectivity)
	assert.False(t, svc.Searching("listener-1"))
}

func TestMatchingService_InvalidVentTextCleansUp(t *testing.T) {
	svc, _, _ := setupMatchingService(t)

	_, onResult := resultChan()
	err := svc.StartMatching(context.Background(), "venter-1", models.RoleVenter, "short", models.DefaultPlanName, onResult)

	assert.Error(t, err)
	assert.False(t, svc.Searching("venter-1"), "failed start must free the per-user slot")
}

func TestMatchingService_EstimateWait(t *testing.T) {
	svc, queue, _ := setupMatchingService(t)
	ctx := context.Background()

	queue.stats = models.QueueStats{ListenersWaiting: 5}
	assert.Equal(t, "< 30 seconds", svc.EstimateWait(ctx, models.RoleVenter))

	queue.stats = models.QueueStats{ListenersWaiting: 1}
	assert.Equal(t, "< 1 minute", svc.EstimateWait(ctx, models.RoleVenter))

	queue.stats = models.QueueStats{ActiveSessions: 2}
	assert.Equal(t, "2-5 minutes", svc.EstimateWait(ctx, models.RoleVenter))

	queue.stats = models.QueueStats{}
	assert.Equal(t, "5+ minutes", svc.EstimateWait(ctx, models.RoleVenter))

	queue.stats = models.QueueStats{VentersWaiting: 4}
	assert.Equal(t, "< 30 seconds", svc.EstimateWait(ctx, models.RoleListener))

	queue.stats = models.QueueStats{Degraded: true}
	assert.Equal(t, "unknown", svc.EstimateWait(ctx, models.RoleVenter))
}
