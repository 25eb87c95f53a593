package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-server/internal/mocks"
	"chat-server/internal/models"
)

type staticPresence map[int64]string

func (p staticPresence) Snapshot() map[int64]string { return p }

func setupUserRouter(handler *UserHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", int64(1))
		c.Next()
	})
	r.GET("/users", handler.ListUsers)
	r.GET("/users/:user_id", handler.GetUser)
	return r
}

func TestListUsersMergesLivePresence(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	handler := NewUserHandler(users, staticPresence{1: models.StatusAway})
	router := setupUserRouter(handler)

	users.On("ListUsers", mock.Anything).Return([]models.User{
		{UserID: 1, Name: "alice", Status: models.StatusOnline},
		{UserID: 2, Name: "bob", Status: models.StatusOnline},
	}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Users []models.User `json:"users"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Users, 2)
	require.Equal(t, models.StatusAway, resp.Users[0].Status, "live tracker overrides stored status")
	require.Equal(t, models.StatusOffline, resp.Users[1].Status, "unknown to the tracker means offline")
	users.AssertExpectations(t)
}

func TestGetUserEndpoint(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	handler := NewUserHandler(users, staticPresence{2: models.StatusOnline})
	router := setupUserRouter(handler)

	users.On("GetUser", mock.Anything, int64(2)).
		Return(models.User{UserID: 2, Name: "bob"}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/users/2", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"online"`)
	users.AssertExpectations(t)
}
