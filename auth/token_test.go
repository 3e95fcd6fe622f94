package auth

import (
	"chat-relay/errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "my_strong_and_long_secret_key_2026"
	testIssuer = "chat-relay"
)

func TestTokenManager_Generate_And_Validate(t *testing.T) {
	req := require.New(t)
	manager := NewTokenManager(testSecret, testIssuer)

	token, err := manager.GenerateToken("alice", []string{"user"}, time.Hour)
	req.NoError(err)

	claims, err := manager.ValidateToken(token)
	req.NoError(err)
	req.Equal("alice", claims.Subject)
	req.Equal([]string{"user"}, claims.Roles)
	req.Equal(testIssuer, claims.Issuer)
}

func TestTokenManager_Rejections(t *testing.T) {
	manager := NewTokenManager(testSecret, testIssuer)
	otherIssuer := NewTokenManager(testSecret, "someone-else")
	otherKey := NewTokenManager("another_secret_key_of_decent_length", testIssuer)

	expired := NewTokenManager(testSecret, testIssuer)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	mustSign := func(m *TokenManager, username string) string {
		token, err := m.GenerateToken(username, nil, time.Hour)
		require.NoError(t, err)
		return token
	}

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "alice",
		Issuer:  testIssuer,
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"Missing token", "", errors.ErrMissingToken},
		{"Malformed token", "not-a-jwt", errors.ErrMalformedToken},
		{"Expired token", mustSign(expired, "alice"), errors.ErrExpiredOrInvalidSignature},
		{"Invalid signature", mustSign(otherKey, "alice"), errors.ErrExpiredOrInvalidSignature},
		{"Missing expiration", noExpiry, errors.ErrExpiredOrInvalidSignature},
		{"Wrong issuer", mustSign(otherIssuer, "alice"), errors.ErrWrongIssuer},
		{"No subject", mustSign(manager, ""), errors.ErrNoSubject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			_, err := manager.ValidateToken(tt.token)
			req.ErrorIs(err, tt.wantErr)
		})
	}
}
