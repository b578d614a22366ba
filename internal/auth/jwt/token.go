// Package jwt verifies the HS256 access tokens issued by the session
// service and mints equivalent tokens for local development.
package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// Claims identify the player behind a request. Tokens without a user_id
// claim fall back to the subject.
type Claims struct {
	UserID      uuid.UUID `json:"user_id"`
	DisplayName string    `json:"display_name,omitempty"`
	IsGuest     bool      `json:"is_guest,omitempty"`
	jwt.RegisteredClaims
}

// TokenConfig holds the shared signing settings.
type TokenConfig struct {
	Secret    []byte
	Issuer    string        // default: wordrush
	AccessTTL time.Duration // default: 1h, minting only
	Leeway    time.Duration // clock skew tolerated on exp/nbf
}

// Manager validates and mints access tokens.
type Manager struct {
	cfg    TokenConfig
	parser *jwt.Parser
	now    func() time.Time
}

// NewManager creates a token manager.
func NewManager(cfg TokenConfig) *Manager {
	if cfg.Issuer == "" {
		cfg.Issuer = "wordrush"
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = time.Hour
	}
	m := &Manager{cfg: cfg, now: time.Now}
	m.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithLeeway(cfg.Leeway),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return m.now() }),
	)
	return m
}

// User is the identity baked into a minted token.
type User struct {
	ID          uuid.UUID
	DisplayName string
	IsGuest     bool
}

// GenerateAccessToken signs a token for user.
func (m *Manager) GenerateAccessToken(user User) (string, error) {
	if user.ID == uuid.Nil {
		return "", ErrInvalidToken
	}
	issued := m.now()
	claims := Claims{
		UserID:      user.ID,
		DisplayName: user.DisplayName,
		IsGuest:     user.IsGuest,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.cfg.Issuer,
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(issued),
			NotBefore: jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(m.cfg.AccessTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.cfg.Secret)
}

// ValidateAccessToken returns the claims of a valid token, ErrExpiredToken
// for an expired one and ErrInvalidToken otherwise.
func (m *Manager) ValidateAccessToken(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := m.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return m.cfg.Secret, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpiredToken
	case err != nil:
		return nil, ErrInvalidToken
	}

	if claims.UserID == uuid.Nil {
		id, err := uuid.Parse(claims.Subject)
		if err != nil || id == uuid.Nil {
			return nil, ErrInvalidToken
		}
		claims.UserID = id
	}
	return claims, nil
}
