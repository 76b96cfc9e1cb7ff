package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	m := NewJWTManager("secret", "groupcart", 7*24*time.Hour)

	token, err := m.GenerateToken("Asha", "asha@example.com")
	require.NoError(t, err)

	claims, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "Asha", claims.Name)
	assert.Equal(t, "asha@example.com", claims.Email)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestJWTRejects(t *testing.T) {
	m := NewJWTManager("secret", "groupcart", time.Hour)
	token, err := m.GenerateToken("Asha", "asha@example.com")
	require.NoError(t, err)

	t.Run("WrongSecret", func(t *testing.T) {
		_, err := NewJWTManager("other", "groupcart", time.Hour).ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("WrongIssuer", func(t *testing.T) {
		_, err := NewJWTManager("secret", "elsewhere", time.Hour).ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("Expired", func(t *testing.T) {
		later := NewJWTManager("secret", "groupcart", time.Hour)
		later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		_, err := later.ValidateToken(token)
		assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := m.ValidateToken("not-a-token")
		assert.Error(t, err)
	})
}
