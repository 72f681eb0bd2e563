package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTokenConfig() TokenConfig {
	return TokenConfig{
		SecretKey: "test-secret-key",
		TTL:       15 * time.Minute,
		Issuer:    "test-issuer",
	}
}

func TestTokenManager_GenerateAndValidate(t *testing.T) {
	manager := NewTokenManager(testTokenConfig())

	token, err := manager.Generate("user-123", "alice", "alice@x.com")
	require.NoError(t, err)

	claims, err := manager.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "alice@x.com", claims.Email)
	assert.Equal(t, "user-123", claims.Subject)
}

func TestTokenManager_InvalidToken(t *testing.T) {
	manager := NewTokenManager(testTokenConfig())

	for _, token := range []string{"", "not.a.valid.token", "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.invalid"} {
		_, err := manager.Validate(token)
		assert.ErrorIs(t, err, ErrInvalidToken, token)
	}
}

func TestTokenManager_WrongSecretKey(t *testing.T) {
	other := testTokenConfig()
	other.SecretKey = "another-secret"

	token, err := NewTokenManager(testTokenConfig()).Generate("user-123", "alice", "alice@x.com")
	require.NoError(t, err)

	_, err = NewTokenManager(other).Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenManager_WrongIssuer(t *testing.T) {
	other := testTokenConfig()
	other.Issuer = "someone-else"

	token, err := NewTokenManager(other).Generate("user-123", "alice", "alice@x.com")
	require.NoError(t, err)

	_, err = NewTokenManager(testTokenConfig()).Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenManager_ExpiredToken(t *testing.T) {
	config := testTokenConfig()
	config.TTL = -time.Minute
	manager := NewTokenManager(config)

	token, err := manager.Generate("user-123", "alice", "alice@x.com")
	require.NoError(t, err)

	_, err = manager.Validate(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestTokenManager_TTL(t *testing.T) {
	manager := NewTokenManager(TokenConfig{SecretKey: "k", TTL: 30 * time.Minute})
	assert.Equal(t, int64(1800), manager.TTL())
}
