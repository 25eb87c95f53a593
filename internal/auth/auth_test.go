package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-server/internal/models"
)

func TestMintAndValidate(t *testing.T) {
	manager := NewManager("test-secret", time.Hour)

	token, expiresIn, err := manager.Mint(models.User{UserID: 7, Email: "alice@example.com", Role: models.RoleUser})
	require.NoError(t, err)
	assert.Equal(t, int64(3600), expiresIn)

	claims, err := manager.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserID)
	assert.Equal(t, models.RoleUser, claims.Role)
	assert.Equal(t, "alice@example.com", claims.Subject)
}

func TestValidateExpiredToken(t *testing.T) {
	manager := NewManager("test-secret", -time.Minute)

	token, _, err := manager.Mint(models.User{UserID: 7})
	require.NoError(t, err)

	_, err = manager.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateWrongSecret(t *testing.T) {
	token, _, err := NewManager("secret-a", time.Hour).Mint(models.User{UserID: 7})
	require.NoError(t, err)

	_, err = NewManager("secret-b", time.Hour).ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateGarbage(t *testing.T) {
	manager := NewManager("test-secret", time.Hour)

	_, err := manager.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)

	assert.True(t, CheckPassword(hash, "correct horse battery staple"))
	assert.False(t, CheckPassword(hash, "wrong"))
}
