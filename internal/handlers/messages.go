package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"chat-server/internal/models"
	"chat-server/internal/repositories"
	"chat-server/internal/rooms"
	"chat-server/internal/telemetry"
	"chat-server/internal/ws"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// MessageHandler serves message history, edits, deletes and reactions.
// Delivery happens over the websocket; these endpoints exist for backfill
// and moderation.
type MessageHandler struct {
	registry *rooms.Registry
	messages repositories.MessageRepository
	hub      *ws.Hub
	audit    *telemetry.AuditEmitter
}

// NewMessageHandler constructs a MessageHandler.
func NewMessageHandler(registry *rooms.Registry, messages repositories.MessageRepository, hub *ws.Hub, audit *telemetry.AuditEmitter) *MessageHandler {
	return &MessageHandler{registry: registry, messages: messages, hub: hub, audit: audit}
}

// ListMessages handles GET /rooms/:room_id/messages, the history backfill a
// client runs after joining or reconnecting. Members only, most recent first
// window returned in chronological order, reactions attached.
func (h *MessageHandler) ListMessages(c *gin.Context) {
	roomID, ok := parseID(c, "room_id")
	if !ok {
		return
	}
	if !h.registry.IsMember(roomID, c.GetInt64("userID")) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a member"})
		return
	}

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		if parsed > maxHistoryLimit {
			parsed = maxHistoryLimit
		}
		limit = parsed
	}

	msgs, err := h.messages.ListRoomMessages(c.Request.Context(), roomID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	ids := make([]int64, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.MessageID)
	}
	reactions, err := h.messages.ListReactions(c.Request.Context(), ids)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load reactions"})
		return
	}

	byMessage := make(map[int64][]models.MessageReaction, len(msgs))
	for _, r := range reactions {
		byMessage[r.MessageID] = append(byMessage[r.MessageID], r)
	}

	type messageResponse struct {
		models.Message
		Reactions []models.MessageReaction `json:"reactions"`
	}
	resp := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		list := byMessage[m.MessageID]
		if list == nil {
			list = []models.MessageReaction{}
		}
		resp = append(resp, messageResponse{Message: m, Reactions: list})
	}

	c.JSON(http.StatusOK, gin.H{"messages": resp})
}

// EditMessage handles PATCH /messages/:message_id. Author only.
func (h *MessageHandler) EditMessage(c *gin.Context) {
	messageID, ok := parseID(c, "message_id")
	if !ok {
		return
	}

	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content cannot be blank"})
		return
	}

	userID := c.GetInt64("userID")
	current, err := h.messages.GetMessage(c.Request.Context(), messageID)
	if err != nil {
		respondError(c, err)
		return
	}
	if current.UserID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the author can edit"})
		return
	}

	msg, err := h.messages.EditMessage(c.Request.Context(), messageID, userID, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}

	h.hub.PublishRoom(msg.RoomID, models.Event{
		Type:    models.EventRoomUpdate,
		RoomID:  msg.RoomID,
		Reason:  "message_edited",
		Message: &msg,
	})
	h.emitAudit(c, "INFO", "Message edited")
	c.JSON(http.StatusOK, msg)
}

// DeleteMessage handles DELETE /messages/:message_id. The author may delete
// their own message; room owners and admins may delete anyone's.
func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	messageID, ok := parseID(c, "message_id")
	if !ok {
		return
	}

	userID := c.GetInt64("userID")
	msg, err := h.messages.GetMessage(c.Request.Context(), messageID)
	if err != nil {
		respondError(c, err)
		return
	}

	if msg.UserID != userID {
		role, member := h.registry.RoleOf(msg.RoomID, userID)
		if !member || (role != models.MemberOwner && role != models.MemberAdmin) {
			c.JSON(http.StatusForbidden, gin.H{"error": "permission denied"})
			return
		}
	}

	if err := h.messages.MarkDeleted(c.Request.Context(), messageID); err != nil {
		respondError(c, err)
		return
	}

	h.hub.PublishRoom(msg.RoomID, models.Event{
		Type:   models.EventRoomUpdate,
		RoomID: msg.RoomID,
		Reason: "message_deleted",
		Message: &models.Message{
			MessageID: msg.MessageID,
			RoomID:    msg.RoomID,
			IsDeleted: true,
		},
	})
	h.emitAudit(c, "INFO", "Message deleted")
	c.Status(http.StatusNoContent)
}

// SetReaction handles PUT /messages/:message_id/reactions. One emoji per
// caller per message; a second call replaces the first.
func (h *MessageHandler) SetReaction(c *gin.Context) {
	messageID, ok := parseID(c, "message_id")
	if !ok {
		return
	}

	var req struct {
		Emoji string `json:"emoji" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt64("userID")
	msg, err := h.messages.GetMessage(c.Request.Context(), messageID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !h.registry.IsMember(msg.RoomID, userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a member"})
		return
	}

	if err := h.messages.SetReaction(c.Request.Context(), messageID, userID, req.Emoji); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to set reaction"})
		return
	}

	h.hub.PublishRoom(msg.RoomID, models.Event{
		Type:   models.EventRoomUpdate,
		RoomID: msg.RoomID,
		UserID: userID,
		Reason: "reaction_set",
		Message: &models.Message{
			MessageID: msg.MessageID,
			RoomID:    msg.RoomID,
		},
	})
	c.Status(http.StatusNoContent)
}

// ClearReaction handles DELETE /messages/:message_id/reactions.
func (h *MessageHandler) ClearReaction(c *gin.Context) {
	messageID, ok := parseID(c, "message_id")
	if !ok {
		return
	}

	userID := c.GetInt64("userID")
	msg, err := h.messages.GetMessage(c.Request.Context(), messageID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !h.registry.IsMember(msg.RoomID, userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a member"})
		return
	}

	if err := h.messages.ClearReaction(c.Request.Context(), messageID, userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear reaction"})
		return
	}

	h.hub.PublishRoom(msg.RoomID, models.Event{
		Type:   models.EventRoomUpdate,
		RoomID: msg.RoomID,
		UserID: userID,
		Reason: "reaction_cleared",
		Message: &models.Message{
			MessageID: msg.MessageID,
			RoomID:    msg.RoomID,
		},
	})
	c.Status(http.StatusNoContent)
}

func (h *MessageHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}
