package auth

import (
	"chat-relay/errors"
	stdErrors "errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CustomClaims defines the structure of the data stored inside the JWT.
// The subject carries the username.
type CustomClaims struct {
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// TokenManager signs and validates HS256 tokens for a single issuer.
type TokenManager struct {
	key    []byte
	issuer string
	now    func() time.Time
}

func NewTokenManager(secret, issuer string) *TokenManager {
	return &TokenManager{key: []byte(secret), issuer: issuer, now: time.Now}
}

// GenerateToken creates a signed JWT for a specific user.
func (m *TokenManager) GenerateToken(username string, roles []string, duration time.Duration) (string, error) {
	now := m.now()
	claims := &CustomClaims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    m.issuer,
		},
	}

	// HMAC with SHA256
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.key)
}

// ValidateToken parses the token and checks signature, expiration, issuer and subject.
// Every failure is reported as one of the credential sentinels.
func (m *TokenManager) ValidateToken(tokenString string) (*CustomClaims, error) {
	if tokenString == "" {
		return nil, errors.ErrMissingToken
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	token, err := parser.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		return m.key, nil
	})
	if err != nil {
		return nil, classify(err)
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return nil, errors.ErrExpiredOrInvalidSignature
	}
	if claims.Subject == "" {
		return nil, errors.ErrNoSubject
	}
	return claims, nil
}

func classify(err error) error {
	switch {
	case stdErrors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", errors.ErrMalformedToken, err)
	case stdErrors.Is(err, jwt.ErrTokenInvalidIssuer):
		return fmt.Errorf("%w: %v", errors.ErrWrongIssuer, err)
	default:
		// expired, not yet valid, bad signature, unexpected algorithm
		return fmt.Errorf("%w: %v", errors.ErrExpiredOrInvalidSignature, err)
	}
}
