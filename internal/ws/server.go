package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"chat-server/internal/auth"
	"chat-server/internal/models"
	"chat-server/internal/observability"
	"chat-server/internal/repositories"
)

const persistBudget = 5 * time.Second

type tokenValidator interface {
	ValidateToken(token string) (*auth.Claims, error)
}

type roomGate interface {
	IsMember(roomID, userID int64) bool
	Join(ctx context.Context, roomID, userID int64) (bool, error)
	Leave(ctx context.Context, roomID, userID int64) error
}

// Server owns the websocket endpoint: handshake, authentication, connection
// registration and the per-connection read loop. Per-connection state machine:
// connecting -> authenticating -> active -> closing -> closed.
type Server struct {
	hub      *Hub
	sessions *SessionRegistry
	presence *PresenceTracker
	rooms    roomGate
	messages repositories.MessageRepository
	users    repositories.UserRepository
	tokens   tokenValidator
}

// NewServer wires the websocket server and installs itself as the hub's drop
// handler so overflow drops go through the same teardown as read errors.
func NewServer(hub *Hub, sessions *SessionRegistry, presence *PresenceTracker, rooms roomGate, messages repositories.MessageRepository, users repositories.UserRepository, tokens tokenValidator) *Server {
	s := &Server{
		hub:      hub,
		sessions: sessions,
		presence: presence,
		rooms:    rooms,
		messages: messages,
		users:    users,
		tokens:   tokens,
	}
	hub.SetDropHandler(func(c *Conn, reason string) {
		s.teardown(c, CloseQueueOverflow, reason)
	})
	return s
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Inbound frame shape. Unknown types are ignored, not fatal, so new frame
// kinds can ship without breaking old servers.
type inboundFrame struct {
	Type        string `json:"type"`
	RoomID      int64  `json:"roomId"`
	Content     string `json:"content"`
	MessageType string `json:"messageType"`
	ReplyTo     *int64 `json:"replyToMessageId"`
	Status      string `json:"status"`
}

// Handle upgrades the connection, authenticates the token and registers the
// client. Token comes from the `token` query parameter (or a bearer header);
// an invalid token closes the socket with CloseAuthFailure so the client
// knows to re-login rather than retry.
func (s *Server) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("chat-server/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := c.Query("token")
	if token == "" {
		parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			token = parts[1]
		}
	}

	sock, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		closeSocket(sock, CloseAuthFailure, "invalid or expired token")
		return
	}

	user, err := s.users.GetUser(ctx, claims.UserID)
	if err != nil {
		closeSocket(sock, CloseAuthFailure, "unknown or disabled user")
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      user.UserID,
		UserName:    user.Name,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	client := newConn(sock, info)
	go client.writePump()

	first := s.sessions.Register(client)
	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	s.publishLifecycleEvent(ctx, "ws_connect", client, "")
	if first {
		s.presence.Online(user.UserID)
	}

	go s.readLoop(client)
}

// readLoop reads frames until the socket drops, then tears the connection
// down. Blocks only this connection's reader goroutine.
func (s *Server) readLoop(c *Conn) {
	var reason string
	defer func() {
		s.teardown(c, websocket.CloseNormalClosure, reason)
	}()

	for {
		_, data, err := c.sock.ReadMessage()
		if err != nil {
			reason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("ws_error")
			}
			return
		}
		c.touch()

		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.sendError(c, "bad_frame", "malformed frame")
			continue
		}
		s.dispatch(c, frame)
	}
}

func (s *Server) dispatch(c *Conn, frame inboundFrame) {
	switch frame.Type {
	case "message":
		s.handleMessage(c, frame)
	case "join_room":
		s.handleJoin(c, frame)
	case "leave_room":
		s.handleLeave(c, frame)
	case "status_update":
		s.presence.SetStatus(c.UserID(), frame.Status)
	case "ping":
		s.presence.Activity(c.UserID())
		payload, _ := json.Marshal(models.Event{Type: models.EventPong})
		c.trySend(payload)
	default:
		// Forward-compatible: unknown frame types are ignored.
	}
}

// handleMessage validates, persists and broadcasts one chat message. The
// author is always the authenticated identity; the frame cannot speak for
// anyone else. Validation failures answer only the offending connection.
func (s *Server) handleMessage(c *Conn, frame inboundFrame) {
	if frame.RoomID == 0 {
		s.sendError(c, "bad_frame", "roomId is required")
		return
	}
	if strings.TrimSpace(frame.Content) == "" {
		s.sendError(c, "bad_frame", "content is required")
		return
	}
	if !s.rooms.IsMember(frame.RoomID, c.UserID()) {
		s.sendError(c, "forbidden", "not a member of this room")
		return
	}

	messageType := frame.MessageType
	switch messageType {
	case "":
		messageType = models.MessageText
	case models.MessageText, models.MessageImage, models.MessageFile:
	default:
		s.sendError(c, "bad_frame", "unsupported message type")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistBudget)
	defer cancel()
	msg, err := s.messages.CreateMessage(ctx, frame.RoomID, c.UserID(), frame.Content, messageType, frame.ReplyTo)
	if err != nil {
		s.sendError(c, "store_failed", "message could not be stored, try again")
		return
	}

	s.hub.PublishRoom(frame.RoomID, models.Event{
		Type:    models.EventMessage,
		RoomID:  frame.RoomID,
		Content: msg.Content,
		Sender:  &models.Sender{ID: c.info.UserID, Name: c.info.UserName},
		Message: &msg,
	})
}

// handleJoin mirrors the REST join for clients that manage membership over
// the socket. Joining a room twice is a no-op with no notification.
func (s *Server) handleJoin(c *Conn, frame inboundFrame) {
	if frame.RoomID == 0 {
		s.sendError(c, "bad_frame", "roomId is required")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistBudget)
	defer cancel()
	joined, err := s.rooms.Join(ctx, frame.RoomID, c.UserID())
	if err != nil {
		s.sendError(c, "forbidden", "cannot join this room")
		return
	}
	if !joined {
		return
	}

	s.hub.PublishRoom(frame.RoomID, models.Event{
		Type:   models.EventRoomUpdate,
		RoomID: frame.RoomID,
		UserID: c.UserID(),
		Reason: "member_joined",
	})
}

func (s *Server) handleLeave(c *Conn, frame inboundFrame) {
	if frame.RoomID == 0 {
		s.sendError(c, "bad_frame", "roomId is required")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistBudget)
	defer cancel()
	if err := s.rooms.Leave(ctx, frame.RoomID, c.UserID()); err != nil {
		s.sendError(c, "forbidden", "cannot leave this room")
		return
	}

	s.hub.PublishRoom(frame.RoomID, models.Event{
		Type:   models.EventRoomUpdate,
		RoomID: frame.RoomID,
		UserID: c.UserID(),
		Reason: "member_left",
	})
}

// teardown deregisters the connection before the socket is torn down, so no
// later publish can enqueue onto it, then closes the socket and settles
// presence. Safe to call from both the read loop and the hub drop handler.
func (s *Server) teardown(c *Conn, code int, reason string) {
	userID, last, ok := s.sessions.Unregister(c)
	c.close(code, reason)
	if !ok {
		return
	}

	observability.DecWSActive()
	observability.IncWSEvent("ws_disconnect")
	s.publishLifecycleEvent(context.Background(), "ws_disconnect", c, reason)
	if last {
		s.presence.Offline(userID)
	}
}

func (s *Server) sendError(c *Conn, code, message string) {
	payload, err := json.Marshal(models.Event{Type: models.EventError, Code: code, Error: message})
	if err != nil {
		return
	}
	c.trySend(payload)
}

func (s *Server) publishLifecycleEvent(ctx context.Context, name string, c *Conn, reason string) {
	_ = observability.PublishEvent(ctx, "ws_events.connections", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: name,
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"event":       name,
				"conn_id":     c.info.ConnID,
				"duration_ms": time.Since(c.info.ConnectedAt).Milliseconds(),
				"reason":      reason,
			},
			"identity": map[string]interface{}{
				"user_id":   c.info.UserID,
				"device_id": c.info.DeviceID,
				"ip":        c.info.IP,
			},
		},
	})
}

func closeSocket(sock *websocket.Conn, code int, reason string) {
	sock.SetWriteDeadline(time.Now().Add(writeTimeout))
	sock.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
	sock.Close()
}
