package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("test-secret")

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func TestParseAndValidateToken(t *testing.T) {
	valid := jwt.MapClaims{"sub": "u1", "typ": "access", "exp": time.Now().Add(time.Hour).Unix()}

	t.Run("Valid", func(t *testing.T) {
		claims, err := ParseAndValidateToken(secret, sign(t, jwt.SigningMethodHS256, secret, valid), TokenTypeAccess)
		assert.NoError(t, err)
		assert.Equal(t, "u1", claims["sub"])
	})

	t.Run("Wrong Type", func(t *testing.T) {
		_, err := ParseAndValidateToken(secret, sign(t, jwt.SigningMethodHS256, secret, valid), "refresh")
		assert.EqualError(t, err, "invalid token type")
	})

	t.Run("Expired", func(t *testing.T) {
		expired := jwt.MapClaims{"sub": "u1", "typ": "access", "exp": time.Now().Add(-time.Minute).Unix()}
		_, err := ParseAndValidateToken(secret, sign(t, jwt.SigningMethodHS256, secret, expired), "")
		assert.EqualError(t, err, "invalid or expired token")
	})

	t.Run("Wrong Secret", func(t *testing.T) {
		_, err := ParseAndValidateToken(secret, sign(t, jwt.SigningMethodHS256, []byte("other"), valid), "")
		assert.Error(t, err)
	})

	t.Run("No Secret", func(t *testing.T) {
		_, err := ParseAndValidateToken(nil, "x", "")
		assert.EqualError(t, err, "JWT secret not configured")
	})
}

func TestPrincipalRoundTrip(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	_, ok := GetPrincipal(c)
	assert.False(t, ok)

	SetPrincipal(c, Principal{UserID: "u1", Role: "admin"})
	p, ok := GetPrincipal(c)
	assert.True(t, ok)
	assert.Equal(t, "admin", p.Role)
}
