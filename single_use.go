package session

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Default lifetimes per token purpose. Verification links live longest since
// users act on them at leisure; reset links are the most sensitive.
const (
	DefaultVerificationTTL = 72 * time.Hour
	DefaultPasswordTTL     = 24 * time.Hour
	DefaultInvitationTTL   = 168 * time.Hour
)

// TokenTTL returns the default lifetime for a token type.
func TokenTTL(tokenType TokenType) time.Duration {
	switch tokenType {
	case TokenTypePasswordReset:
		return DefaultPasswordTTL
	case TokenTypeUserInvitation:
		return DefaultInvitationTTL
	default:
		return DefaultVerificationTTL
	}
}

// NewTokenString generates an unguessable single-use token value: 24 bytes
// from a CSPRNG, hex encoded to 48 characters.
func NewTokenString() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate token")
	}
	return hex.EncodeToString(buf), nil
}

// ValidateSingleUse checks a stored token against an expected purpose. Checks
// run in a fixed order so callers always see the most specific failure:
// absence, then type, then used, then deprecated, then expiry. A used token
// that has also expired reports used, not expired. Validation never mutates
// the record; consumption happens separately inside a transaction.
func ValidateSingleUse(record *SingleUseToken, expectedType TokenType, now time.Time) (*SingleUseToken, error) {
	if record == nil {
		return nil, ErrTokenNotFound
	}

	if record.Type != expectedType {
		return nil, ErrTokenTypeMismatch
	}

	if record.Status == SingleUseUsed {
		return nil, ErrTokenAlreadyUsed
	}

	if record.Status == SingleUseDeprecated {
		return nil, ErrTokenDeprecated
	}

	if !record.ExpiresAt.After(now) {
		return nil, ErrSingleUseExpired
	}

	return record, nil
}
