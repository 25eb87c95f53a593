package ws

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-server/internal/models"
)

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []models.Event
}

func (b *recordingBroadcaster) BroadcastAll(event models.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *recordingBroadcaster) snapshot() []models.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.Event, len(b.events))
	copy(out, b.events)
	return out
}

type recordingStore struct {
	mu       sync.Mutex
	statuses []string
}

func (s *recordingStore) UpdateStatus(ctx context.Context, userID int64, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, status)
	return nil
}

const testOfflineDelay = 30 * time.Millisecond

func newTestTracker() (*PresenceTracker, *recordingBroadcaster, *SessionRegistry) {
	hub := &recordingBroadcaster{}
	sessions := NewSessionRegistry()
	tracker := NewPresenceTracker(hub, sessions, &recordingStore{}, testOfflineDelay, time.Minute)
	return tracker, hub, sessions
}

func TestOnlineEmitsSinglePresenceEvent(t *testing.T) {
	tracker, hub, _ := newTestTracker()

	tracker.Online(1)
	tracker.Online(1)

	events := hub.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, models.EventPresence, events[0].Type)
	assert.Equal(t, int64(1), events[0].UserID)
	assert.Equal(t, models.StatusOnline, events[0].Status)
}

func TestOfflineDeclaredAfterDebounce(t *testing.T) {
	tracker, hub, _ := newTestTracker()

	tracker.Online(1)
	tracker.Offline(1)

	assert.Len(t, hub.snapshot(), 1, "offline must not fire before the delay")

	require.Eventually(t, func() bool {
		events := hub.snapshot()
		return len(events) == 2 && events[1].Status == models.StatusOffline
	}, 10*testOfflineDelay, 5*time.Millisecond)
}

func TestReconnectCoalescesOfflineTimer(t *testing.T) {
	tracker, hub, _ := newTestTracker()

	tracker.Online(1)
	tracker.Offline(1)
	tracker.Online(1)

	time.Sleep(4 * testOfflineDelay)

	events := hub.snapshot()
	require.Len(t, events, 1, "flapping within the window nets a single online event")
	assert.Equal(t, models.StatusOnline, events[0].Status)
}

func TestOfflineSkippedWhileConnectionsRemain(t *testing.T) {
	tracker, hub, sessions := newTestTracker()

	sessions.Register(testConn(1))
	tracker.Online(1)
	tracker.Offline(1)

	time.Sleep(4 * testOfflineDelay)

	events := hub.snapshot()
	require.Len(t, events, 1, "a live connection keeps the user online")
}

func TestSetStatusAway(t *testing.T) {
	tracker, hub, _ := newTestTracker()

	tracker.Online(1)
	tracker.SetStatus(1, models.StatusAway)

	events := hub.snapshot()
	require.Len(t, events, 2)
	assert.Equal(t, models.StatusAway, events[1].Status)

	tracker.Activity(1)
	events = hub.snapshot()
	require.Len(t, events, 3)
	assert.Equal(t, models.StatusOnline, events[2].Status)
}

func TestSetStatusIgnoredWhenOffline(t *testing.T) {
	tracker, hub, _ := newTestTracker()

	tracker.SetStatus(1, models.StatusAway)
	tracker.SetStatus(2, "invisible")

	assert.Empty(t, hub.snapshot())
}

func TestSnapshotReflectsCurrentStates(t *testing.T) {
	tracker, _, _ := newTestTracker()

	tracker.Online(1)
	tracker.Online(2)
	tracker.SetStatus(2, models.StatusAway)

	snap := tracker.Snapshot()
	assert.Equal(t, models.StatusOnline, snap[1])
	assert.Equal(t, models.StatusAway, snap[2])
}
