package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DefaultRefreshTokenTTL bounds the lifetime of a session absent activity.
const DefaultRefreshTokenTTL = 30 * 24 * time.Hour

// HashRefreshToken derives the stored digest for a raw refresh token. The
// digest is what the database holds; a leaked table cannot be replayed.
func HashRefreshToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func newRefreshTokenString() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate refresh token")
	}
	return hex.EncodeToString(buf), nil
}

// RefreshTokenManager owns the persistent session lifecycle: issuing refresh
// tokens at login, rotating them on use, and revoking them on logout or
// administrative action.
type RefreshTokenManager struct {
	repos      RepositoryManager
	signer     TokenSigner
	accessTTL  time.Duration
	refreshTTL time.Duration
	logger     Logger
	activity   ActivitySink
	now        func() time.Time
}

// NewRefreshTokenManager creates a manager using the repository manager for
// persistence and the signer for minting replacement access tokens.
func NewRefreshTokenManager(repos RepositoryManager, signer TokenSigner, cfg Config) *RefreshTokenManager {
	ttl := cfg.GetRefreshTokenTTL()
	if ttl <= 0 {
		ttl = DefaultRefreshTokenTTL
	}

	accessTTL := cfg.GetAccessTokenTTL()
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTokenTTL
	}

	return &RefreshTokenManager{
		repos:      repos,
		signer:     signer,
		accessTTL:  accessTTL,
		refreshTTL: ttl,
		logger:     defLogger{},
		activity:   noopActivitySink{},
		now:        time.Now,
	}
}

func (m *RefreshTokenManager) WithLogger(logger Logger) *RefreshTokenManager {
	if logger != nil {
		m.logger = logger
	}
	return m
}

// WithActivitySink configures an ActivitySink for emitting session events.
func (m *RefreshTokenManager) WithActivitySink(sink ActivitySink) *RefreshTokenManager {
	m.activity = normalizeActivitySink(sink)
	return m
}

// WithClock injects a custom clock (useful for tests).
func (m *RefreshTokenManager) WithClock(clock func() time.Time) *RefreshTokenManager {
	if clock != nil {
		m.now = clock
	}
	return m
}

// Issue creates a new session for the user and returns the raw refresh token.
// The raw value is shown exactly once; only its digest is persisted.
func (m *RefreshTokenManager) Issue(ctx context.Context, userID uuid.UUID, device DeviceInfo) (string, *RefreshToken, error) {
	raw, err := newRefreshTokenString()
	if err != nil {
		return "", nil, err
	}

	record := &RefreshToken{
		ID:        uuid.New(),
		UserID:    userID,
		TokenHash: HashRefreshToken(raw),
		IPAddress: device.IPAddress,
		UserAgent: device.UserAgent,
		ExpiresAt: m.now().Add(m.refreshTTL),
	}

	record, err = m.repos.RefreshTokens().Create(ctx, record)
	if err != nil {
		return "", nil, err
	}

	return raw, record, nil
}

// TokenPair is the result of a login or a refresh exchange.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	ExpiresAt        time.Time `json:"expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// ValidateAndRotate exchanges a raw refresh token for a fresh token pair. The
// presented token is revoked and replaced in the same transaction, so every
// raw refresh token is accepted at most once. A replayed token loses the
// claim race and surfaces as revoked.
func (m *RefreshTokenManager) ValidateAndRotate(ctx context.Context, raw string, device DeviceInfo) (*TokenPair, error) {
	if raw == "" {
		return nil, ErrMissingRefreshToken
	}

	hash := HashRefreshToken(raw)
	now := m.now()

	record, err := m.repos.RefreshTokens().GetByHash(ctx, hash)
	if err != nil {
		return nil, err
	}

	if record.RevokedAt != nil {
		m.logger.Warn("refresh token replay detected", "user_id", record.UserID.String())
		return nil, ErrRefreshTokenRevoked
	}

	if !record.ExpiresAt.After(now) {
		return nil, ErrRefreshTokenExpired
	}

	user, err := m.repos.Users().GetByIdentifier(ctx, record.UserID.String())
	if err != nil {
		return nil, err
	}

	user.EnsureStatus()
	if err := statusAuthError(user.Status); err != nil {
		return nil, err
	}

	var pair *TokenPair
	err = m.repos.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		claimed, won, err := m.repos.RefreshTokens().ClaimTx(ctx, tx, hash)
		if err != nil {
			return err
		}
		if !won {
			return ErrRefreshTokenRevoked
		}

		nextRaw, err := newRefreshTokenString()
		if err != nil {
			return err
		}

		next := &RefreshToken{
			ID:        uuid.New(),
			UserID:    claimed.UserID,
			TokenHash: HashRefreshToken(nextRaw),
			IPAddress: device.IPAddress,
			UserAgent: device.UserAgent,
			ExpiresAt: now.Add(m.refreshTTL),
		}

		if _, err := m.repos.RefreshTokens().CreateTx(ctx, tx, next); err != nil {
			return err
		}

		access, err := m.signer.Sign(TokenSubject{
			ID:           user.ID.String(),
			Email:        user.Email,
			Role:         user.Role,
			Status:       user.Status,
			TokenVersion: user.TokenVersion,
		})
		if err != nil {
			return err
		}

		pair = &TokenPair{
			AccessToken:      access,
			RefreshToken:     nextRaw,
			ExpiresAt:        now.Add(m.accessTTL),
			RefreshExpiresAt: next.ExpiresAt,
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	m.emitSessionEvent(ctx, ActivityEventTokenRefreshed, SelfActor(user), user.ID.String(), map[string]any{
		"ip_address": device.IPAddress,
	})

	return pair, nil
}

// RevokeByRawToken revokes the session identified by a raw refresh token.
// Idempotent: unknown or already revoked tokens are not an error.
func (m *RefreshTokenManager) RevokeByRawToken(ctx context.Context, raw string) error {
	if raw == "" {
		return nil
	}
	return m.RevokeByHash(ctx, HashRefreshToken(raw))
}

// RevokeByHash revokes the session identified by a stored token digest.
func (m *RefreshTokenManager) RevokeByHash(ctx context.Context, hash string) error {
	revoked, err := m.repos.RefreshTokens().Revoke(ctx, hash)
	if err != nil {
		return err
	}

	if revoked {
		m.emitSessionEvent(ctx, ActivityEventSessionRevoked, ActorRef{}, "", nil)
	}

	return nil
}

// RevokeAllByUserID terminates every session a user holds, returning the
// number of sessions revoked.
func (m *RefreshTokenManager) RevokeAllByUserID(ctx context.Context, userID uuid.UUID) (int, error) {
	count, err := m.repos.RefreshTokens().RevokeAllByUserID(ctx, userID)
	if err != nil {
		return 0, err
	}

	m.emitSessionEvent(ctx, ActivityEventSessionsRevokedAll, ActorRef{ID: userID.String()}, userID.String(), map[string]any{
		"revoked": count,
	})

	return count, nil
}

// CleanupExpired purges rows no client can ever exchange again. Hosts run
// this on a schedule; it never touches active sessions.
func (m *RefreshTokenManager) CleanupExpired(ctx context.Context) (int64, error) {
	count, err := m.repos.RefreshTokens().DeleteExpired(ctx, m.now())
	if err != nil {
		return 0, err
	}

	if count > 0 {
		m.logger.Info("cleaned up expired refresh tokens", "count", count)
	}

	return count, nil
}

func (m *RefreshTokenManager) emitSessionEvent(ctx context.Context, eventType ActivityEventType, actor ActorRef, userID string, metadata map[string]any) {
	event := ActivityEvent{
		EventType:  eventType,
		Actor:      actor,
		UserID:     userID,
		Metadata:   metadata,
		OccurredAt: m.now(),
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if err := m.activity.Record(ctx, event); err != nil {
		m.logger.Warn("activity sink record error: %v", err)
	}
}
