package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AuthClaims represents verified access-token claims
type AuthClaims interface {
	Subject() string
	UserID() string
	Email() string
	Role() UserRole
	Status() UserStatus
	Version() int
	Expires() time.Time
	IssuedAt() time.Time
	NotBefore() time.Time
}

// JWTClaims is the concrete implementation of AuthClaims
type JWTClaims struct {
	jwt.RegisteredClaims
	UID          string     `json:"uid"`
	UserEmail    string     `json:"email"`
	UserRole     UserRole   `json:"role"`
	UserStatus   UserStatus `json:"status"`
	TokenVersion int        `json:"tkv,omitempty"`
}

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

// Email returns the email claim
func (c *JWTClaims) Email() string {
	return c.UserEmail
}

// Role returns the user role
func (c *JWTClaims) Role() UserRole {
	return c.UserRole
}

// Status returns the user lifecycle status
func (c *JWTClaims) Status() UserStatus {
	return c.UserStatus
}

// Version returns the token version stamped at signing time. Zero when the
// host does not use version invalidation.
func (c *JWTClaims) Version() int {
	return c.TokenVersion
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

// NotBefore returns the not-before time
func (c *JWTClaims) NotBefore() time.Time {
	if c.RegisteredClaims.NotBefore != nil {
		return c.RegisteredClaims.NotBefore.Time
	}
	return time.Time{}
}

// ValidateShape enforces the closed claims schema: required fields present,
// enums valid, and exp > iat. Payloads that fail here are indistinguishable
// from signature failures to callers.
func (c *JWTClaims) ValidateShape() error {
	if c.UID == "" && c.RegisteredClaims.Subject == "" {
		return ErrUnauthorized
	}

	if !c.UserRole.IsValid() {
		return ErrUnauthorized
	}

	if !c.UserStatus.IsValid() {
		return ErrUnauthorized
	}

	if c.RegisteredClaims.IssuedAt == nil || c.RegisteredClaims.ExpiresAt == nil {
		return ErrUnauthorized
	}

	if !c.Expires().After(c.IssuedAt()) {
		return ErrUnauthorized
	}

	return nil
}

// ensureTokenID stamps a jti so individual tokens remain traceable in audit
// trails.
func ensureTokenID(claims *jwt.RegisteredClaims) {
	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}
}
