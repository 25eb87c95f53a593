package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-server/internal/models"
	"chat-server/internal/repositories"
)

type presenceSource interface {
	Snapshot() map[int64]string
}

// UserHandler serves the user directory.
type UserHandler struct {
	users    repositories.UserRepository
	presence presenceSource
}

// NewUserHandler constructs a UserHandler.
func NewUserHandler(users repositories.UserRepository, presence presenceSource) *UserHandler {
	return &UserHandler{users: users, presence: presence}
}

// ListUsers handles GET /users. The stored status column can lag behind the
// live tracker, so live presence overrides it in the response.
func (h *UserHandler) ListUsers(c *gin.Context) {
	users, err := h.users.ListUsers(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load users"})
		return
	}

	live := h.presence.Snapshot()
	for i := range users {
		if status, ok := live[users[i].UserID]; ok {
			users[i].Status = status
		} else {
			users[i].Status = models.StatusOffline
		}
	}

	c.JSON(http.StatusOK, gin.H{"users": users})
}

// GetUser handles GET /users/:user_id.
func (h *UserHandler) GetUser(c *gin.Context) {
	userID, ok := parseID(c, "user_id")
	if !ok {
		return
	}

	user, err := h.users.GetUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	if status, ok := h.presence.Snapshot()[user.UserID]; ok {
		user.Status = status
	} else {
		user.Status = models.StatusOffline
	}

	c.JSON(http.StatusOK, user)
}
