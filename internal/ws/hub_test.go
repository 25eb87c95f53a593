package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-server/internal/models"
)

type staticMembers struct {
	byRoom map[int64][]int64
}

func (m *staticMembers) MemberIDs(roomID int64) []int64 {
	return m.byRoom[roomID]
}

func testConn(userID int64) *Conn {
	return newConn(nil, ConnInfo{ConnID: newConnID(), UserID: userID, ConnectedAt: time.Now()})
}

func readFrame(t *testing.T, c *Conn) models.Event {
	t.Helper()
	select {
	case payload := <-c.send:
		var event models.Event
		require.NoError(t, json.Unmarshal(payload, &event))
		return event
	default:
		t.Fatal("expected a queued frame")
		return models.Event{}
	}
}

func TestPublishRoomReachesOnlyMembers(t *testing.T) {
	sessions := NewSessionRegistry()
	hub := NewHub(sessions, &staticMembers{byRoom: map[int64][]int64{1: {1, 2}}})

	member := testConn(1)
	memberTab := testConn(1)
	other := testConn(2)
	outsider := testConn(3)
	for _, c := range []*Conn{member, memberTab, other, outsider} {
		sessions.Register(c)
	}

	hub.PublishRoom(1, models.Event{Type: models.EventMessage, RoomID: 1, Content: "hi"})

	for _, c := range []*Conn{member, memberTab, other} {
		event := readFrame(t, c)
		assert.Equal(t, models.EventMessage, event.Type)
		assert.Equal(t, "hi", event.Content)
		assert.Empty(t, c.send, "exactly one frame per connection")
	}
	assert.Empty(t, outsider.send, "non-member must receive nothing")
}

func TestPublishRoomPreservesOrder(t *testing.T) {
	sessions := NewSessionRegistry()
	hub := NewHub(sessions, &staticMembers{byRoom: map[int64][]int64{1: {1}}})

	c := testConn(1)
	sessions.Register(c)

	hub.PublishRoom(1, models.Event{Type: models.EventMessage, Content: "first"})
	hub.PublishRoom(1, models.Event{Type: models.EventMessage, Content: "second"})

	assert.Equal(t, "first", readFrame(t, c).Content)
	assert.Equal(t, "second", readFrame(t, c).Content)
}

func TestPublishRoomDropsSlowConnection(t *testing.T) {
	sessions := NewSessionRegistry()
	hub := NewHub(sessions, &staticMembers{byRoom: map[int64][]int64{1: {1, 2}}})

	slow := testConn(1)
	healthy := testConn(2)
	sessions.Register(slow)
	sessions.Register(healthy)

	var dropped *Conn
	hub.SetDropHandler(func(c *Conn, reason string) {
		dropped = c
		sessions.Unregister(c)
		c.close(CloseQueueOverflow, reason)
	})

	for i := 0; i < sendQueueSize; i++ {
		require.True(t, slow.trySend([]byte("{}")))
	}

	hub.PublishRoom(1, models.Event{Type: models.EventMessage, Content: "overflow"})

	require.Same(t, slow, dropped, "slow connection must be handed to the drop handler")
	assert.Empty(t, sessions.ConnectionsFor(1))

	event := readFrame(t, healthy)
	assert.Equal(t, "overflow", event.Content, "healthy connection still receives the event")
}

func TestPublishUsersIgnoresMembership(t *testing.T) {
	sessions := NewSessionRegistry()
	hub := NewHub(sessions, &staticMembers{byRoom: map[int64][]int64{}})

	former := testConn(5)
	bystander := testConn(6)
	sessions.Register(former)
	sessions.Register(bystander)

	hub.PublishUsers([]int64{5}, models.Event{Type: models.EventRoomUpdate, RoomID: 9, Reason: "room_deleted"})

	event := readFrame(t, former)
	assert.Equal(t, "room_deleted", event.Reason)
	assert.Empty(t, bystander.send)
}

func TestBroadcastAllReachesEveryConnection(t *testing.T) {
	sessions := NewSessionRegistry()
	hub := NewHub(sessions, &staticMembers{byRoom: map[int64][]int64{}})

	a := testConn(1)
	b := testConn(2)
	sessions.Register(a)
	sessions.Register(b)

	hub.BroadcastAll(models.Event{Type: models.EventPresence, UserID: 1, Status: models.StatusOnline})

	for _, c := range []*Conn{a, b} {
		event := readFrame(t, c)
		assert.Equal(t, models.EventPresence, event.Type)
		assert.Equal(t, models.StatusOnline, event.Status)
	}
}
