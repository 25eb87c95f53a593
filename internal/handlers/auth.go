package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-server/internal/auth"
	"chat-server/internal/repositories"
	"chat-server/internal/telemetry"
)

// AuthHandler manages account endpoints: registration, login and profile.
type AuthHandler struct {
	users  repositories.UserRepository
	tokens *auth.Manager
	audit  *telemetry.AuditEmitter
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(users repositories.UserRepository, tokens *auth.Manager, audit *telemetry.AuditEmitter) *AuthHandler {
	return &AuthHandler{users: users, tokens: tokens, audit: audit}
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Name       string  `json:"name" binding:"required"`
		Email      string  `json:"email" binding:"required,email"`
		Password   string  `json:"password" binding:"required,min=8"`
		Department *string `json:"department"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.emitAudit(c, "ERROR", "invalid registration payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	user, err := h.users.CreateUser(c.Request.Context(), req.Name, req.Email, hash, req.Department)
	if err != nil {
		respondError(c, err)
		return
	}

	h.emitAudit(c, "INFO", "User registered")
	c.JSON(http.StatusCreated, user)
}

// Login handles POST /auth/login. Wrong email and wrong password answer
// identically so the response does not confirm which accounts exist.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.GetUserByEmail(c.Request.Context(), req.Email)
	if err != nil || !auth.CheckPassword(user.Password, req.Password) {
		h.emitAudit(c, "ERROR", "login failed")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, expiresIn, err := h.tokens.Mint(user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	h.emitAudit(c, "INFO", "User logged in")
	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"token_type":   "bearer",
		"expires_in":   expiresIn,
		"user":         user,
	})
}

// Refresh handles POST /auth/refresh, re-minting a token for the
// authenticated caller.
func (h *AuthHandler) Refresh(c *gin.Context) {
	userID := c.GetInt64("userID")
	user, err := h.users.GetUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	token, expiresIn, err := h.tokens.Mint(user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"token_type":   "bearer",
		"expires_in":   expiresIn,
	})
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.users.GetUser(c.Request.Context(), c.GetInt64("userID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// UpdateProfile handles PATCH /auth/profile. Only the provided fields change.
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	var req struct {
		Name          *string `json:"name"`
		Department    *string `json:"department"`
		StatusMessage *string `json:"status_message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Name != nil && *req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name cannot be empty"})
		return
	}

	user, err := h.users.UpdateProfile(c.Request.Context(), c.GetInt64("userID"), req.Name, req.Department, req.StatusMessage)
	if err != nil {
		respondError(c, err)
		return
	}

	h.emitAudit(c, "INFO", "Profile updated")
	c.JSON(http.StatusOK, user)
}

// Logout handles POST /auth/logout. Tokens are stateless, so this only
// records the event; clients discard the token.
func (h *AuthHandler) Logout(c *gin.Context) {
	h.emitAudit(c, "INFO", "User logged out")
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *AuthHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}
