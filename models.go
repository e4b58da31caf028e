package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the identity record this subsystem reads. Ownership of the row
// lives with the user-management domain; we only mutate the credential
// columns (password_hash, token_version, is_email_verified, status).
type User struct {
	bun.BaseModel  `bun:"table:users,alias:usr"`
	ID             uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Role           UserRole   `bun:"user_role,notnull" json:"user_role,omitempty"`
	Status         UserStatus `bun:"status,notnull" json:"status,omitempty"`
	Username       string     `bun:"username,notnull,unique" json:"username,omitempty"`
	Email          string     `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash   string     `bun:"password_hash" json:"-"`
	EmailValidated bool       `bun:"is_email_verified" json:"is_email_verified,omitempty"`
	TokenVersion   int        `bun:"token_version,notnull,default:0" json:"token_version,omitempty"`
	LoginAttempts  int        `bun:"login_attempts" json:"login_attempts,omitempty"`
	LoginAttemptAt *time.Time `bun:"login_attempt_at" json:"login_attempt_at,omitempty"`
	LoggedInAt     *time.Time `bun:"loggedin_at" json:"loggedin_at,omitempty"`
	CreatedAt      *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt      *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// EnsureStatus defaults blank statuses so legacy rows behave as active.
func (u *User) EnsureStatus() {
	if u.Status == "" {
		u.Status = UserStatusActive
	}
}

// TokenType discriminates the purpose of a single-use token
type TokenType string

const (
	// TokenTypeEmailVerification confirms a user's email address
	TokenTypeEmailVerification TokenType = "email_verification"
	// TokenTypePasswordReset authorizes a password change
	TokenTypePasswordReset TokenType = "password_reset"
	// TokenTypeUserInvitation lets an invited user claim their account
	TokenTypeUserInvitation TokenType = "user_invitation"
)

// IsValid checks if the type is one of the predefined token types
func (t TokenType) IsValid() bool {
	switch t {
	case TokenTypeEmailVerification, TokenTypePasswordReset, TokenTypeUserInvitation:
		return true
	default:
		return false
	}
}

// SingleUseStatus is the stored state of a single-use token. Expiry is
// derived from expires_at at validation time, never stored.
type SingleUseStatus string

const (
	// SingleUsePending is consumable
	SingleUsePending SingleUseStatus = "pending"
	// SingleUseUsed has been consumed exactly once
	SingleUseUsed SingleUseStatus = "used"
	// SingleUseDeprecated was superseded by a newer token for the same
	// (user, type) pair
	SingleUseDeprecated SingleUseStatus = "deprecated"
)

// SingleUseToken is a one-shot credential tied to a specific purpose.
// Exactly one pending row may exist per (user_id, token_type); issuing a new
// token deprecates the prior one in the same transaction.
type SingleUseToken struct {
	bun.BaseModel `bun:"table:single_use_tokens,alias:sut"`
	ID            uuid.UUID       `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID       `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	User          *User           `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	Type          TokenType       `bun:"token_type,notnull" json:"token_type,omitempty"`
	Token         string          `bun:"token,notnull,unique" json:"-"`
	Status        SingleUseStatus `bun:"status,notnull" json:"status,omitempty"`
	ExpiresAt     time.Time       `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	UsedAt        *time.Time      `bun:"used_at,nullzero" json:"used_at,omitempty"`
	Metadata      map[string]any  `bun:"metadata" json:"metadata,omitempty"`
	CreatedAt     *time.Time      `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// RefreshToken is a long-lived session credential. Only the SHA-256 digest
// of the raw token is ever stored; the raw value exists client-side only.
type RefreshToken struct {
	bun.BaseModel `bun:"table:refresh_tokens,alias:rft"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	User          *User      `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	TokenHash     string     `bun:"token_hash,notnull,unique" json:"-"`
	IPAddress     string     `bun:"ip_address" json:"ip_address,omitempty"`
	UserAgent     string     `bun:"user_agent" json:"user_agent,omitempty"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	RevokedAt     *time.Time `bun:"revoked_at,nullzero" json:"revoked_at,omitempty"`
	LastUsedAt    *time.Time `bun:"last_used_at,nullzero" json:"last_used_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Active reports whether the token can still be exchanged. Revocation is
// monotonic: a revoked token never becomes active again.
func (t *RefreshToken) Active(now time.Time) bool {
	if t == nil {
		return false
	}
	return t.RevokedAt == nil && t.ExpiresAt.After(now)
}

// DeviceInfo captures the client fingerprint stored alongside a refresh
// token for session listings and anomaly review.
type DeviceInfo struct {
	IPAddress string
	UserAgent string
}
