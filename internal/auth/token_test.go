package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmelker/bastion/internal/auth"
)

func TestTokenManager_GenerateAndValidate(t *testing.T) {
	tm := auth.NewTokenManager("test-secret-32-characters-long!", 15*time.Minute, 7*24*time.Hour)

	tokenString, err := tm.GenerateAccessToken("acct-123", "alice@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, tokenString)

	claims, err := tm.ValidateToken(tokenString)
	require.NoError(t, err)
	assert.Equal(t, "access", claims.Type)
	assert.Equal(t, "acct-123", claims.AccountID)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.NotEmpty(t, claims.ID)
}

func TestTokenManager_RefreshTokenType(t *testing.T) {
	tm := auth.NewTokenManager("test-secret-32-characters-long!", 15*time.Minute, 7*24*time.Hour)

	tokenString, err := tm.GenerateRefreshToken("acct-123", "alice@example.com")
	require.NoError(t, err)

	claims, err := tm.ValidateToken(tokenString)
	require.NoError(t, err)
	assert.Equal(t, "refresh", claims.Type)
}

func TestTokenManager_RejectsWrongSecret(t *testing.T) {
	tm := auth.NewTokenManager("test-secret-32-characters-long!", 15*time.Minute, 7*24*time.Hour)
	other := auth.NewTokenManager("another-secret-32-characters!!!", 15*time.Minute, 7*24*time.Hour)

	tokenString, err := tm.GenerateAccessToken("acct-123", "alice@example.com")
	require.NoError(t, err)

	_, err = other.ValidateToken(tokenString)
	assert.Error(t, err)
}

func TestTokenManager_RejectsExpiredToken(t *testing.T) {
	tm := auth.NewTokenManager("test-secret-32-characters-long!", -time.Minute, 7*24*time.Hour)

	tokenString, err := tm.GenerateAccessToken("acct-123", "alice@example.com")
	require.NoError(t, err)

	_, err = tm.ValidateToken(tokenString)
	assert.Error(t, err)
}
