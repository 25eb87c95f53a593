package ws

import (
	"encoding/json"
	"log"
	"sync"

	"chat-server/internal/models"
	"chat-server/internal/observability"
)

type memberResolver interface {
	MemberIDs(roomID int64) []int64
}

// Hub is the broadcast router. It resolves a room's current members, then
// each member's live connections, and enqueues the event on every one.
//
// A single publish mutex serializes all fan-outs, so two events published to
// the same room are observed in publish order by every recipient; there is no
// ordering guarantee across rooms. Connections registering mid-publish see
// only later events.
//
// Back-pressure: a connection whose outbound queue is full is treated as
// dead. It is closed and handed to the drop handler rather than blocking the
// broadcast for everyone else; that client must reconnect and resync.
type Hub struct {
	sessions *SessionRegistry
	members  memberResolver

	mu     sync.Mutex
	onDrop func(c *Conn, reason string)
}

// NewHub wires the router to the session registry and membership source.
func NewHub(sessions *SessionRegistry, members memberResolver) *Hub {
	return &Hub{sessions: sessions, members: members}
}

// SetDropHandler installs the callback invoked for connections dropped on
// queue overflow. The handler owns unregistration and presence cleanup.
func (h *Hub) SetDropHandler(fn func(c *Conn, reason string)) {
	h.onDrop = fn
}

// PublishRoom fans an event out to every currently-connected member of the
// room. Non-members and offline identities receive nothing.
func (h *Hub) PublishRoom(roomID int64, event models.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("broadcast marshal failed room=%d: %v", roomID, err)
		return
	}

	observability.IncBroadcast("room")
	for _, userID := range h.members.MemberIDs(roomID) {
		for _, c := range h.sessions.ConnectionsFor(userID) {
			h.deliver(c, payload)
		}
	}
}

// PublishUsers fans an event out to the given identities' connections,
// regardless of room membership. Used to notify former members after a room
// is deleted.
func (h *Hub) PublishUsers(userIDs []int64, event models.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("broadcast marshal failed: %v", err)
		return
	}

	observability.IncBroadcast("users")
	for _, userID := range userIDs {
		for _, c := range h.sessions.ConnectionsFor(userID) {
			h.deliver(c, payload)
		}
	}
}

// BroadcastAll sends the event to every live connection. This is the shared
// presence channel: clients filter by their own interest.
func (h *Hub) BroadcastAll(event models.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("broadcast marshal failed: %v", err)
		return
	}

	observability.IncBroadcast("all")
	h.sessions.Each(func(c *Conn) {
		h.deliver(c, payload)
	})
}

func (h *Hub) deliver(c *Conn, payload []byte) {
	if c.trySend(payload) {
		return
	}

	observability.IncBroadcastDrop()
	log.Printf("dropping slow connection conn=%s user=%d", c.info.ConnID, c.info.UserID)
	if h.onDrop != nil {
		h.onDrop(c, "outbound queue overflow")
		return
	}
	c.close(CloseQueueOverflow, "outbound queue overflow")
}
