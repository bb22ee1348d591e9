package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus(t *testing.T) *Bus {
	b := New(nil, PolicyPauseWatcher)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestBus_RegisterClient_RejectsDuplicate(t *testing.T) {
	b := newTestBus(t)
	require.NoError(t, b.RegisterClient("c1"))
	assert.Error(t, b.RegisterClient("c1"))
}

func TestBus_CreateSubscription_RequiresRegisteredClient(t *testing.T) {
	b := newTestBus(t)
	_, err := b.CreateSubscription(SubscriptionRequest{ClientID: "ghost", ResourceKind: ResourceFile, ResourcePath: "/tmp/x"})
	assert.Error(t, err)
}

func TestBus_TriggerEvent_DeliversToMatchingSubscription(t *testing.T) {
	b := newTestBus(t)
	require.NoError(t, b.RegisterClient("c1"))
	subID, err := b.CreateSubscription(SubscriptionRequest{
		ClientID:     "c1",
		ResourceKind: ResourceFile,
		ResourcePath: "/tmp/report.txt",
	})
	require.NoError(t, err)

	b.TriggerEvent(SubscriptionEvent{
		ResourceKind: ResourceFile,
		EventKind:    EventFileModified,
		Path:         "/tmp/report.txt",
	})

	events, err := b.Drain("c1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, subID, events[0].SubscriptionID)
}

func TestBus_TriggerEvent_NonMatchingPathIsNotDelivered(t *testing.T) {
	b := newTestBus(t)
	require.NoError(t, b.RegisterClient("c1"))
	_, err := b.CreateSubscription(SubscriptionRequest{
		ClientID:     "c1",
		ResourceKind: ResourceFile,
		ResourcePath: "/tmp/report.txt",
	})
	require.NoError(t, err)

	b.TriggerEvent(SubscriptionEvent{
		ResourceKind: ResourceFile,
		EventKind:    EventFileModified,
		Path:         "/tmp/other.txt",
	})

	events, err := b.Drain("c1")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestBus_DirectorySubscription_MatchesByPrefix(t *testing.T) {
	b := newTestBus(t)
	require.NoError(t, b.RegisterClient("c1"))
	_, err := b.CreateSubscription(SubscriptionRequest{
		ClientID:     "c1",
		ResourceKind: ResourceDirectory,
		ResourcePath: "/tmp/project",
	})
	require.NoError(t, err)

	b.TriggerEvent(SubscriptionEvent{
		ResourceKind: ResourceFile,
		EventKind:    EventFileCreated,
		Path:         "/tmp/project/src/main.go",
	})

	events, _ := b.Drain("c1")
	require.Len(t, events, 1)
}

func TestBus_ExtensionFilter_ExcludesNonMatching(t *testing.T) {
	b := newTestBus(t)
	require.NoError(t, b.RegisterClient("c1"))
	_, err := b.CreateSubscription(SubscriptionRequest{
		ClientID:     "c1",
		ResourceKind: ResourceDirectory,
		ResourcePath: "/tmp/project",
		Filters:      Filters{Extensions: map[string]struct{}{"go": {}}},
	})
	require.NoError(t, err)

	b.TriggerEvent(SubscriptionEvent{ResourceKind: ResourceFile, EventKind: EventFileModified, Path: "/tmp/project/README.md"})
	b.TriggerEvent(SubscriptionEvent{ResourceKind: ResourceFile, EventKind: EventFileModified, Path: "/tmp/project/main.go"})

	events, _ := b.Drain("c1")
	require.Len(t, events, 1)
	assert.Equal(t, "/tmp/project/main.go", events[0].Path)
}

func TestBus_GlobPatternFilter(t *testing.T) {
	b := newTestBus(t)
	require.NoError(t, b.RegisterClient("c1"))
	_, err := b.CreateSubscription(SubscriptionRequest{
		ClientID:     "c1",
		ResourceKind: ResourceDirectory,
		ResourcePath: "/tmp/project",
		Filters:      Filters{PathPatterns: []string{"*_test.go"}},
	})
	require.NoError(t, err)

	b.TriggerEvent(SubscriptionEvent{ResourceKind: ResourceFile, EventKind: EventFileModified, Path: "/tmp/project/main.go"})
	b.TriggerEvent(SubscriptionEvent{ResourceKind: ResourceFile, EventKind: EventFileModified, Path: "/tmp/project/main_test.go"})

	events, _ := b.Drain("c1")
	require.Len(t, events, 1)
	assert.Equal(t, "/tmp/project/main_test.go", events[0].Path)
}

func TestBus_Debounce_SuppressesRapidRedelivery(t *testing.T) {
	b := newTestBus(t)
	require.NoError(t, b.RegisterClient("c1"))
	_, err := b.CreateSubscription(SubscriptionRequest{
		ClientID:     "c1",
		ResourceKind: ResourceFile,
		ResourcePath: "/tmp/report.txt",
		Filters:      Filters{DebounceEvery: 50 * time.Millisecond},
	})
	require.NoError(t, err)

	b.TriggerEvent(SubscriptionEvent{ResourceKind: ResourceFile, EventKind: EventFileModified, Path: "/tmp/report.txt"})
	b.TriggerEvent(SubscriptionEvent{ResourceKind: ResourceFile, EventKind: EventFileModified, Path: "/tmp/report.txt"})

	events, _ := b.Drain("c1")
	assert.Len(t, events, 1, "second delivery within the debounce window should be suppressed")

	time.Sleep(60 * time.Millisecond)
	b.TriggerEvent(SubscriptionEvent{ResourceKind: ResourceFile, EventKind: EventFileModified, Path: "/tmp/report.txt"})
	events, _ = b.Drain("c1")
	assert.Len(t, events, 1, "a delivery past the debounce window should go through")
}

func TestBus_CancelSubscription_RefusesNonOwner(t *testing.T) {
	b := newTestBus(t)
	require.NoError(t, b.RegisterClient("c1"))
	require.NoError(t, b.RegisterClient("c2"))
	subID, err := b.CreateSubscription(SubscriptionRequest{ClientID: "c1", ResourceKind: ResourceFile, ResourcePath: "/tmp/x"})
	require.NoError(t, err)

	assert.Error(t, b.CancelSubscription(subID, "c2"))
	assert.NoError(t, b.CancelSubscription(subID, "c1"))
	assert.Empty(t, b.ListClientSubscriptions("c1"))
}

func TestBus_SweepIdleClients_RemovesClientAndSubscriptions(t *testing.T) {
	b := newTestBus(t)
	require.NoError(t, b.RegisterClient("c1"))
	_, err := b.CreateSubscription(SubscriptionRequest{ClientID: "c1", ResourceKind: ResourceFile, ResourcePath: "/tmp/x"})
	require.NoError(t, err)

	b.mu.Lock()
	b.clients["c1"].LastActivity = time.Now().Add(-25 * time.Hour)
	b.mu.Unlock()

	b.sweepIdleClients()

	b.mu.RLock()
	_, stillThere := b.clients["c1"]
	subCount := len(b.subscriptions)
	b.mu.RUnlock()
	assert.False(t, stillThere)
	assert.Zero(t, subCount)
}

func TestBus_Stats_ReflectsSubscriptionCounts(t *testing.T) {
	b := newTestBus(t)
	require.NoError(t, b.RegisterClient("c1"))
	_, err := b.CreateSubscription(SubscriptionRequest{ClientID: "c1", ResourceKind: ResourceFile, ResourcePath: "/tmp/x"})
	require.NoError(t, err)

	stats := b.Stats()
	assert.Equal(t, 1, stats.TotalClients)
	assert.Equal(t, 1, stats.TotalSubscriptions)
	assert.Equal(t, 1, stats.ActiveSubscriptions)
}

func TestBus_SyntheticWatchSource_DeliversThroughWatcherPath(t *testing.T) {
	src := NewSyntheticWatchSource()
	b := New(src, PolicyPauseWatcher)
	t.Cleanup(func() { _ = b.Close() })

	require.NoError(t, b.RegisterClient("c1"))
	_, err := b.CreateSubscription(SubscriptionRequest{ClientID: "c1", ResourceKind: ResourceFile, ResourcePath: "/tmp/watched.txt"})
	require.NoError(t, err)

	notify := b.Notify("c1")
	require.True(t, src.Emit("/tmp/watched.txt", EventFileModified))

	select {
	case <-notify:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery notification")
	}

	events, err := b.Drain("c1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventFileModified, events[0].EventKind)
}
