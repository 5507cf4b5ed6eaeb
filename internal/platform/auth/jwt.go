// Package auth issues and verifies the bearer tokens guarding the API.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoleAdmin gates the /admin route group.
const RoleAdmin = "admin"

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrMissingKey   = errors.New("jwt signing key is empty")
)

// Principal is the authenticated identity attached to a request.
type Principal struct {
	UserID string
	Roles  []string
}

// HasRole reports role-set membership.
func (p Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

type claims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies HS256 access tokens.
type TokenManager struct {
	key []byte
	ttl time.Duration
}

// NewTokenManager builds a manager; ttl defaults to one hour.
func NewTokenManager(key string, ttl time.Duration) (*TokenManager, error) {
	if key == "" {
		return nil, ErrMissingKey
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenManager{key: []byte(key), ttl: ttl}, nil
}

// Issue signs an access token carrying the subject and role set.
func (m *TokenManager) Issue(userID string, roles []string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	})
	return token.SignedString(m.key)
}

// Verify parses and validates a token, returning the principal it carries.
func (m *TokenManager) Verify(raw string) (Principal, error) {
	parsed, err := jwt.ParseWithClaims(raw, &claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.key, nil
	})
	if err != nil || !parsed.Valid {
		return Principal{}, ErrInvalidToken
	}
	c, ok := parsed.Claims.(*claims)
	if !ok || c.Subject == "" {
		return Principal{}, ErrInvalidToken
	}
	return Principal{UserID: c.Subject, Roles: c.Roles}, nil
}
