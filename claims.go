package users

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token types carried in the "token_type" claim. Only access tokens grant
// API access; refresh tokens are accepted by the refresh endpoint alone.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// AuthClaims represents structured JWT claims
type AuthClaims interface {
	Subject() string
	UserID() string
	Email() string
	Role() string
	TokenType() string
	HasRole(role string) bool
	CanListUsers() bool
	CanManageUsers() bool
	Expires() time.Time
	IssuedAt() time.Time
}

// JWTClaims is the concrete implementation of AuthClaims
type JWTClaims struct {
	jwt.RegisteredClaims
	UID       string `json:"uid,omitempty"`
	UserEmail string `json:"email,omitempty"`
	UserRole  string `json:"role,omitempty"`
	Type      string `json:"token_type,omitempty"`
}

// Verify interface compliance
var _ AuthClaims = (*JWTClaims)(nil)

// Subject returns the subject claim
func (c *JWTClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// UserID returns the user ID
func (c *JWTClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject()
}

// Email returns the primary email carried by the token
func (c *JWTClaims) Email() string {
	return c.UserEmail
}

// Role returns the global role
func (c *JWTClaims) Role() string {
	return c.UserRole
}

// TokenType reports whether this is an access or refresh token
func (c *JWTClaims) TokenType() string {
	if c.Type == "" {
		return TokenTypeAccess
	}
	return c.Type
}

// HasRole checks if the user has a specific role
func (c *JWTClaims) HasRole(role string) bool {
	return c.UserRole == role
}

// CanListUsers checks whether the token's role may read the user directory
func (c *JWTClaims) CanListUsers() bool {
	return UserRole(c.UserRole).CanListUsers()
}

// CanManageUsers checks whether the token's role may manage users
func (c *JWTClaims) CanManageUsers() bool {
	return UserRole(c.UserRole).CanManageUsers()
}

// Expires returns the expiration time
func (c *JWTClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

func ensureTokenID(claims *jwt.RegisteredClaims) {
	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}
}
