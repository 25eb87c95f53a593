package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-server/internal/models"
	"chat-server/internal/repositories"
	"chat-server/internal/rooms"
	"chat-server/internal/telemetry"
	"chat-server/internal/ws"
)

// RoomHandler manages room and membership endpoints. Membership mutations go
// through the registry so the broadcast snapshot and the store stay in step.
type RoomHandler struct {
	registry *rooms.Registry
	repo     repositories.RoomRepository
	hub      *ws.Hub
	audit    *telemetry.AuditEmitter
}

// NewRoomHandler constructs a RoomHandler.
func NewRoomHandler(registry *rooms.Registry, repo repositories.RoomRepository, hub *ws.Hub, audit *telemetry.AuditEmitter) *RoomHandler {
	return &RoomHandler{registry: registry, repo: repo, hub: hub, audit: audit}
}

// ListRooms handles GET /rooms, returning the caller's rooms.
func (h *RoomHandler) ListRooms(c *gin.Context) {
	roomList, err := h.repo.ListRoomsForUser(c.Request.Context(), c.GetInt64("userID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load rooms"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": roomList})
}

// CreateRoom handles POST /rooms. The caller becomes the owner.
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var req struct {
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
		RoomType    string `json:"room_type"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.emitAudit(c, "ERROR", "invalid room payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, err := h.registry.CreateRoom(c.Request.Context(), req.Name, req.Description, req.RoomType, c.GetInt64("userID"))
	if err != nil {
		respondError(c, err)
		return
	}

	h.emitAudit(c, "INFO", "Room created")
	c.JSON(http.StatusCreated, room)
}

// GetRoom handles GET /rooms/:room_id. Members only.
func (h *RoomHandler) GetRoom(c *gin.Context) {
	roomID, ok := parseID(c, "room_id")
	if !ok {
		return
	}
	if !h.registry.IsMember(roomID, c.GetInt64("userID")) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a member"})
		return
	}

	room, err := h.repo.GetRoom(c.Request.Context(), roomID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

// DeleteRoom handles DELETE /rooms/:room_id. Owner only. Former members are
// notified over their live connections since room fan-out no longer reaches
// them.
func (h *RoomHandler) DeleteRoom(c *gin.Context) {
	roomID, ok := parseID(c, "room_id")
	if !ok {
		return
	}

	former, err := h.registry.DeleteRoom(c.Request.Context(), roomID, c.GetInt64("userID"))
	if err != nil {
		respondError(c, err)
		return
	}

	h.hub.PublishUsers(former, models.Event{
		Type:   models.EventRoomUpdate,
		RoomID: roomID,
		Reason: "room_deleted",
	})

	h.emitAudit(c, "INFO", "Room deleted")
	c.Status(http.StatusNoContent)
}

// JoinRoom handles POST /rooms/:room_id/join. Joining twice is a no-op.
func (h *RoomHandler) JoinRoom(c *gin.Context) {
	roomID, ok := parseID(c, "room_id")
	if !ok {
		return
	}

	userID := c.GetInt64("userID")
	joined, err := h.registry.Join(c.Request.Context(), roomID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	if joined {
		h.hub.PublishRoom(roomID, models.Event{
			Type:   models.EventRoomUpdate,
			RoomID: roomID,
			UserID: userID,
			Reason: "member_joined",
		})
		h.emitAudit(c, "INFO", "Room joined")
	}
	c.JSON(http.StatusOK, gin.H{"joined": joined})
}

// LeaveRoom handles POST /rooms/:room_id/leave. Owners must delete instead.
func (h *RoomHandler) LeaveRoom(c *gin.Context) {
	roomID, ok := parseID(c, "room_id")
	if !ok {
		return
	}

	userID := c.GetInt64("userID")
	if err := h.registry.Leave(c.Request.Context(), roomID, userID); err != nil {
		respondError(c, err)
		return
	}

	h.hub.PublishRoom(roomID, models.Event{
		Type:   models.EventRoomUpdate,
		RoomID: roomID,
		UserID: userID,
		Reason: "member_left",
	})
	h.emitAudit(c, "INFO", "Room left")
	c.Status(http.StatusNoContent)
}

// ListMembers handles GET /rooms/:room_id/members. Members only.
func (h *RoomHandler) ListMembers(c *gin.Context) {
	roomID, ok := parseID(c, "room_id")
	if !ok {
		return
	}
	if !h.registry.IsMember(roomID, c.GetInt64("userID")) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a member"})
		return
	}

	members, err := h.registry.MembersOf(c.Request.Context(), roomID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": members})
}

// KickMember handles DELETE /rooms/:room_id/members/:user_id.
func (h *RoomHandler) KickMember(c *gin.Context) {
	roomID, ok := parseID(c, "room_id")
	if !ok {
		return
	}
	targetID, ok := parseID(c, "user_id")
	if !ok {
		return
	}

	if err := h.registry.Kick(c.Request.Context(), roomID, targetID, c.GetInt64("userID")); err != nil {
		respondError(c, err)
		return
	}

	// The kicked user is no longer a member, so room fan-out misses them.
	h.hub.PublishRoom(roomID, models.Event{
		Type:   models.EventRoomUpdate,
		RoomID: roomID,
		UserID: targetID,
		Reason: "member_kicked",
	})
	h.hub.PublishUsers([]int64{targetID}, models.Event{
		Type:   models.EventRoomUpdate,
		RoomID: roomID,
		UserID: targetID,
		Reason: "member_kicked",
	})
	h.emitAudit(c, "INFO", "Member kicked")
	c.Status(http.StatusNoContent)
}

// UpdateMemberRole handles PATCH /rooms/:room_id/members/:user_id/role.
func (h *RoomHandler) UpdateMemberRole(c *gin.Context) {
	roomID, ok := parseID(c, "room_id")
	if !ok {
		return
	}
	targetID, ok := parseID(c, "user_id")
	if !ok {
		return
	}

	var req struct {
		Role string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.registry.UpdateRole(c.Request.Context(), roomID, targetID, req.Role, c.GetInt64("userID")); err != nil {
		respondError(c, err)
		return
	}

	h.hub.PublishRoom(roomID, models.Event{
		Type:   models.EventRoomUpdate,
		RoomID: roomID,
		UserID: targetID,
		Reason: "role_changed",
	})
	h.emitAudit(c, "INFO", "Member role updated")
	c.Status(http.StatusNoContent)
}

func (h *RoomHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}
