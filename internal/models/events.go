package models

// Event type discriminators carried over the websocket. Unknown inbound
// types are ignored rather than treated as fatal.
const (
	EventMessage    = "message"
	EventPresence   = "presence"
	EventRoomUpdate = "room_update"
	EventError      = "error"
	EventPong       = "pong"
)

// Sender identifies the author on outbound message frames.
type Sender struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Event is the outbound websocket frame. Fields are populated per Type.
type Event struct {
	Type    string   `json:"type"`
	RoomID  int64    `json:"roomId,omitempty"`
	Content string   `json:"content,omitempty"`
	Sender  *Sender  `json:"sender,omitempty"`
	Message *Message `json:"message,omitempty"`
	UserID  int64    `json:"userId,omitempty"`
	Status  string   `json:"status,omitempty"`
	Reason  string   `json:"reason,omitempty"`
	Code    string   `json:"code,omitempty"`
	Error   string   `json:"error,omitempty"`
}
