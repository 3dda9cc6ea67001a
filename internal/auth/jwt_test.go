package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateJWT(t *testing.T) {
	secret := "test-secret"
	tokenString, err := GenerateJWT("user-123", false, secret, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, tokenString)

	claims, err := ValidateJWT(tokenString, secret)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.UserID)
	assert.Equal(t, "user-123", claims.Subject)
	assert.False(t, claims.IsAdmin)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, 5*time.Second)
}

func TestValidateJWT_AdminClaim(t *testing.T) {
	secret := "test-secret"
	tokenString, err := GenerateJWT("admin-1", true, secret, time.Hour)
	require.NoError(t, err)

	claims, err := ValidateJWT(tokenString, secret)
	require.NoError(t, err)
	assert.True(t, claims.IsAdmin)
}

func TestValidateJWT_WrongSecret(t *testing.T) {
	tokenString, err := GenerateJWT("user-123", false, "right-secret", time.Hour)
	require.NoError(t, err)

	claims, err := ValidateJWT(tokenString, "wrong-secret")
	assert.Error(t, err)
	assert.Nil(t, claims)
}

func TestValidateJWT_Expired(t *testing.T) {
	secret := "test-secret"
	tokenString, err := GenerateJWT("user-123", false, secret, -time.Minute)
	require.NoError(t, err)

	claims, err := ValidateJWT(tokenString, secret)
	assert.Error(t, err)
	assert.Nil(t, claims)
}

func TestValidateJWT_Garbage(t *testing.T) {
	claims, err := ValidateJWT("not.a.token", "test-secret")
	assert.Error(t, err)
	assert.Nil(t, claims)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("password123")
	require.NoError(t, err)
	assert.NotEqual(t, "password123", hash)

	assert.True(t, CheckPasswordHash("password123", hash))
	assert.False(t, CheckPasswordHash("password124", hash))
	assert.False(t, CheckPasswordHash("password123", "not-a-bcrypt-hash"))

	// Hashes are salted: the same password never hashes identically
	hash2, err := HashPassword("password123")
	require.NoError(t, err)
	assert.NotEqual(t, hash, hash2)
}
