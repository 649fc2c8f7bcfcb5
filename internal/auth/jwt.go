package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

const (
	tokenIssuer   = "skillswap"
	tokenAudience = "skillswap-app"
	clockLeeway   = 30 * time.Second
)

// TokenKind separates the short-lived bearer token from the one used to renew it
type TokenKind string

const (
	AccessToken  TokenKind = "access"
	RefreshToken TokenKind = "refresh"
)

// Claims is the payload of a SkillSwap session token. The user id travels as
// the standard subject; handlers reload the account on every request.
type Claims struct {
	Kind TokenKind `json:"kind"`
	jwt.RegisteredClaims
}

// UserID parses the subject
func (c *Claims) UserID() (uuid.UUID, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	return id, nil
}

// JWTManager signs and verifies session tokens with a shared HMAC secret
type JWTManager struct {
	secret []byte
	ttl    map[TokenKind]time.Duration
	parser *jwt.Parser
}

// NewJWTManager creates a new JWT manager
func NewJWTManager(secret string, accessExpiry, refreshExpiry time.Duration) *JWTManager {
	return &JWTManager{
		secret: []byte(secret),
		ttl: map[TokenKind]time.Duration{
			AccessToken:  accessExpiry,
			RefreshToken: refreshExpiry,
		},
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(tokenIssuer),
			jwt.WithAudience(tokenAudience),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(clockLeeway),
		),
	}
}

// Sign issues a token of the given kind for userID and returns its expiry
func (m *JWTManager) Sign(kind TokenKind, userID uuid.UUID) (string, time.Time, error) {
	ttl, ok := m.ttl[kind]
	if !ok {
		return "", time.Time{}, fmt.Errorf("unknown token kind %q", kind)
	}

	now := time.Now()
	expiresAt := now.Add(ttl)
	claims := &Claims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID.String(),
			Issuer:    tokenIssuer,
			Audience:  jwt.ClaimStrings{tokenAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign %s token: %w", kind, err)
	}
	return signed, expiresAt, nil
}

// Verify checks a token's signature, lifetime and kind and returns the user it was issued to
func (m *JWTManager) Verify(kind TokenKind, tokenString string) (uuid.UUID, error) {
	claims := &Claims{}
	_, err := m.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return uuid.Nil, ErrExpiredToken
		}
		return uuid.Nil, ErrInvalidToken
	}
	if claims.Kind != kind {
		return uuid.Nil, ErrInvalidToken
	}
	return claims.UserID()
}

// TokenPair is what every sign-in flow hands back to the app.
// ExpiresAt is when the refresh token stops working.
type TokenPair struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// IssuePair signs a fresh access and refresh token for userID
func (m *JWTManager) IssuePair(userID uuid.UUID) (*TokenPair, error) {
	access, _, err := m.Sign(AccessToken, userID)
	if err != nil {
		return nil, err
	}
	refresh, expiresAt, err := m.Sign(RefreshToken, userID)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresAt: expiresAt}, nil
}
