package session

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Config holds session options
type Config interface {
	GetSigningSecret() string
	GetPreviousSigningSecret() string
	GetAccessTokenTTL() time.Duration
	GetRefreshTokenTTL() time.Duration
	GetIssuer() string
	GetAudience() []string
	GetTokenLookup() string
	GetAuthScheme() string
	GetContextKey() string
}

// Identity holds the attributes of an authenticated principal
type Identity interface {
	ID() string
	Email() string
	Role() UserRole
	Status() UserStatus
	TokenVersion() int
}

// IdentityProvider ensures we have a store to retrieve and verify identities
type IdentityProvider interface {
	VerifyIdentity(ctx context.Context, identifier, password string) (Identity, error)
	FindIdentityByIdentifier(ctx context.Context, identifier string) (Identity, error)
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

// TokenSigner signs structured claims into compact access tokens
type TokenSigner interface {
	Sign(subject TokenSubject, opts ...SignOption) (string, error)
	SignClaims(claims *JWTClaims) (string, error)
}

// Notifier delivers a freshly issued single-use token to the user. The
// package never composes or sends email itself.
type Notifier interface {
	SendToken(ctx context.Context, user *User, token *SingleUseToken) error
}

// NotifierFunc adapts a function into a Notifier.
type NotifierFunc func(ctx context.Context, user *User, token *SingleUseToken) error

func (f NotifierFunc) SendToken(ctx context.Context, user *User, token *SingleUseToken) error {
	if f == nil {
		return nil
	}
	return f(ctx, user, token)
}

type noopNotifier struct{}

func (noopNotifier) SendToken(context.Context, *User, *SingleUseToken) error { return nil }

// NewDefaultLogger returns the fallback stdout logger.
func NewDefaultLogger() Logger {
	return defLogger{}
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] SESSION "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] SESSION "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] SESSION "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] SESSION "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
