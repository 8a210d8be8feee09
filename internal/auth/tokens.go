// Package auth provides signed access tokens, password hashing, and the HTTP
// middleware that resolves a bearer credential to a user identity.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a credential cannot be verified.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned when a credential has expired.
	ErrExpiredToken = errors.New("token has expired")
)

// Token types. Access tokens authenticate requests and socket handshakes;
// refresh tokens may only be exchanged for a new pair at /api/auth/refresh.
const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// Claims carries the subject (user id) and type of a token.
type Claims struct {
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies HS256 tokens. It is the token verifier
// consumed by both the HTTP middleware and the chat handshake.
type TokenManager struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenManager creates a TokenManager with the given signing secret,
// issuer, and access/refresh token lifetimes.
func NewTokenManager(secret, issuer string, accessTTL, refreshTTL time.Duration) *TokenManager {
	return &TokenManager{
		secret:     []byte(secret),
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// Sign issues an access token for the given user id.
func (m *TokenManager) Sign(userID string) (string, error) {
	return m.sign(userID, tokenTypeAccess, m.accessTTL)
}

// SignRefresh issues a refresh token for the given user id.
func (m *TokenManager) SignRefresh(userID string) (string, error) {
	return m.sign(userID, tokenTypeRefresh, m.refreshTTL)
}

func (m *TokenManager) sign(userID, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Verify validates an access token and returns the user id it was issued
// for. Refresh tokens are rejected here so they cannot authenticate requests.
func (m *TokenManager) Verify(tokenString string) (string, error) {
	return m.verify(tokenString, tokenTypeAccess)
}

// VerifyRefresh validates a refresh token and returns the user id it was
// issued for.
func (m *TokenManager) VerifyRefresh(tokenString string) (string, error) {
	return m.verify(tokenString, tokenTypeRefresh)
}

func (m *TokenManager) verify(tokenString, wantType string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" || claims.TokenType != wantType {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// TTL returns the configured access token lifetime.
func (m *TokenManager) TTL() time.Duration {
	return m.accessTTL
}
