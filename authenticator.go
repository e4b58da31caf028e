package session

import (
	"context"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Auther is the facade for interactive session flows: password login, refresh
// exchange, and logout. It composes the identity provider, the token codec,
// and the refresh token manager.
type Auther struct {
	provider     IdentityProvider
	repos        RepositoryManager
	signer       TokenSigner
	refresher    *RefreshTokenManager
	accessTTL    time.Duration
	logger       Logger
	activitySink ActivitySink
}

// NewAuthenticator returns a new Auther
func NewAuthenticator(provider IdentityProvider, repos RepositoryManager, cfg Config) *Auther {
	codec := NewTokenCodec(cfg)

	accessTTL := cfg.GetAccessTokenTTL()
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTokenTTL
	}

	return &Auther{
		provider:     provider,
		repos:        repos,
		signer:       codec,
		refresher:    NewRefreshTokenManager(repos, codec, cfg),
		accessTTL:    accessTTL,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger != nil {
		s.logger = logger
		s.refresher.WithLogger(logger)
	}
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	s.refresher.WithActivitySink(sink)
	return s
}

// WithTokenSigner overrides the signer used for access tokens.
func (s *Auther) WithTokenSigner(signer TokenSigner) *Auther {
	if signer != nil {
		s.signer = signer
		s.refresher.signer = signer
	}
	return s
}

// RefreshTokenManager exposes the session manager for hosts that schedule
// cleanup or build session listings.
func (s *Auther) RefreshTokenManager() *RefreshTokenManager {
	return s.refresher
}

// Login verifies credentials and opens a session, returning an access token
// plus the raw refresh token. Credential failures, throttling, and blocked
// statuses all surface from the identity provider untouched.
func (s *Auther) Login(ctx context.Context, identifier, password string, device DeviceInfo) (*TokenPair, error) {
	identity, err := s.provider.VerifyIdentity(ctx, identifier, password)
	if err != nil {
		s.logger.Error("Login verify identity error", "error", err)
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, ActorRef{}, "", map[string]any{
			"identifier": identifier,
			"error":      err.Error(),
		})
		return nil, err
	}

	if identity == nil || reflect.ValueOf(identity).IsZero() {
		s.logger.Error("Login identity is nil or zero value")
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, ActorRef{}, "", map[string]any{
			"identifier": identifier,
			"error":      ErrIdentityNotFound.Error(),
		})
		return nil, ErrIdentityNotFound
	}

	userID, err := uuid.Parse(identity.ID())
	if err != nil {
		return nil, err
	}

	now := time.Now()

	access, err := s.signer.Sign(TokenSubject{
		ID:           identity.ID(),
		Email:        identity.Email(),
		Role:         identity.Role(),
		Status:       identity.Status(),
		TokenVersion: identity.TokenVersion(),
	})
	if err != nil {
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, actorFromIdentity(identity), identity.ID(), map[string]any{
			"identifier": identifier,
			"error":      err.Error(),
		})
		return nil, err
	}

	rawRefresh, record, err := s.refresher.Issue(ctx, userID, device)
	if err != nil {
		return nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventLoginSuccess, actorFromIdentity(identity), identity.ID(), map[string]any{
		"identifier": identifier,
		"ip_address": device.IPAddress,
	})

	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     rawRefresh,
		ExpiresAt:        now.Add(s.accessTTL),
		RefreshExpiresAt: record.ExpiresAt,
	}, nil
}

// Refresh exchanges a raw refresh token for a new token pair, rotating the
// session credential.
func (s *Auther) Refresh(ctx context.Context, rawRefreshToken string, device DeviceInfo) (*TokenPair, error) {
	return s.refresher.ValidateAndRotate(ctx, rawRefreshToken, device)
}

// Logout closes the session identified by the raw refresh token. An empty or
// unknown token is a no-op so logout never fails for a client holding stale
// state.
func (s *Auther) Logout(ctx context.Context, rawRefreshToken string) error {
	return s.refresher.RevokeByRawToken(ctx, rawRefreshToken)
}

// LogoutEverywhere terminates all of a user's sessions and bumps their token
// version so outstanding access tokens fail the version recheck on gates
// configured to enforce it.
func (s *Auther) LogoutEverywhere(ctx context.Context, userID uuid.UUID) error {
	err := s.repos.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := s.repos.RefreshTokens().RevokeAllByUserIDTx(ctx, tx, userID); err != nil {
			return err
		}

		_, err := s.repos.Users().BumpTokenVersionTx(ctx, tx, userID)
		return err
	})

	if err != nil {
		return err
	}

	s.emitAuthEvent(ctx, ActivityEventSessionsRevokedAll, ActorRef{ID: userID.String()}, userID.String(), nil)

	return nil
}

func (s *Auther) emitAuthEvent(ctx context.Context, eventType ActivityEventType, actor ActorRef, userID string, metadata map[string]any) {
	sink := normalizeActivitySink(s.activitySink)
	event := ActivityEvent{
		EventType: eventType,
		Actor:     actor,
		UserID:    userID,
		Metadata:  metadata,
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	if err := sink.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink record error: %v", err)
	}
}

func actorFromIdentity(identity Identity) ActorRef {
	if identity == nil {
		return ActorRef{}
	}

	return ActorRef{
		ID:    identity.ID(),
		Email: identity.Email(),
		Role:  identity.Role(),
	}
}
