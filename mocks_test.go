package session_test

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-session"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// mockUsers overrides only the methods a test exercises; calling anything
// else panics through the embedded nil interface, which is exactly what we
// want from an unexpected repository call.
type mockUsers struct {
	session.Users

	getByIdentifierFn    func(ctx context.Context, identifier string) (*session.User, error)
	getByIdentifierTxFn  func(ctx context.Context, tx bun.IDB, identifier string) (*session.User, error)
	createTxFn           func(ctx context.Context, tx bun.IDB, record *session.User) (*session.User, error)
	trackAttemptedFn     func(ctx context.Context, user *session.User) error
	trackSuccessfulFn    func(ctx context.Context, user *session.User) error
	bumpTokenVersionTxFn func(ctx context.Context, tx bun.IDB, id uuid.UUID) (int, error)
	resetPasswordTxFn    func(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error
	markVerifiedTxFn     func(ctx context.Context, tx bun.IDB, id uuid.UUID) error
	updateStatusTxFn     func(ctx context.Context, tx bun.IDB, id uuid.UUID, status session.UserStatus) (*session.User, error)
}

func (m *mockUsers) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*session.User, error) {
	return m.getByIdentifierFn(ctx, identifier)
}

func (m *mockUsers) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*session.User, error) {
	return m.getByIdentifierTxFn(ctx, tx, identifier)
}

func (m *mockUsers) CreateTx(ctx context.Context, tx bun.IDB, record *session.User, criteria ...repository.InsertCriteria) (*session.User, error) {
	return m.createTxFn(ctx, tx, record)
}

func (m *mockUsers) TrackAttemptedLogin(ctx context.Context, user *session.User) error {
	return m.trackAttemptedFn(ctx, user)
}

func (m *mockUsers) TrackSuccessfulLogin(ctx context.Context, user *session.User) error {
	return m.trackSuccessfulFn(ctx, user)
}

func (m *mockUsers) BumpTokenVersionTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (int, error) {
	return m.bumpTokenVersionTxFn(ctx, tx, id)
}

func (m *mockUsers) ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	return m.resetPasswordTxFn(ctx, tx, id, passwordHash)
}

func (m *mockUsers) MarkEmailVerifiedTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	return m.markVerifiedTxFn(ctx, tx, id)
}

func (m *mockUsers) UpdateStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status session.UserStatus) (*session.User, error) {
	return m.updateStatusTxFn(ctx, tx, id, status)
}

type mockRefreshTokens struct {
	session.RefreshTokens

	createFn            func(ctx context.Context, record *session.RefreshToken) (*session.RefreshToken, error)
	createTxFn          func(ctx context.Context, tx bun.IDB, record *session.RefreshToken) (*session.RefreshToken, error)
	getByHashFn         func(ctx context.Context, hash string) (*session.RefreshToken, error)
	claimTxFn           func(ctx context.Context, tx bun.IDB, hash string) (*session.RefreshToken, bool, error)
	revokeFn            func(ctx context.Context, hash string) (bool, error)
	revokeAllFn         func(ctx context.Context, userID uuid.UUID) (int, error)
	revokeAllByUserTxFn func(ctx context.Context, tx bun.IDB, userID uuid.UUID) (int, error)
	deleteExpiredFn     func(ctx context.Context, olderThan time.Time) (int64, error)
}

func (m *mockRefreshTokens) Create(ctx context.Context, record *session.RefreshToken, criteria ...repository.InsertCriteria) (*session.RefreshToken, error) {
	return m.createFn(ctx, record)
}

func (m *mockRefreshTokens) CreateTx(ctx context.Context, tx bun.IDB, record *session.RefreshToken, criteria ...repository.InsertCriteria) (*session.RefreshToken, error) {
	return m.createTxFn(ctx, tx, record)
}

func (m *mockRefreshTokens) GetByHash(ctx context.Context, hash string) (*session.RefreshToken, error) {
	return m.getByHashFn(ctx, hash)
}

func (m *mockRefreshTokens) ClaimTx(ctx context.Context, tx bun.IDB, hash string) (*session.RefreshToken, bool, error) {
	return m.claimTxFn(ctx, tx, hash)
}

func (m *mockRefreshTokens) Revoke(ctx context.Context, hash string) (bool, error) {
	return m.revokeFn(ctx, hash)
}

func (m *mockRefreshTokens) RevokeAllByUserID(ctx context.Context, userID uuid.UUID) (int, error) {
	return m.revokeAllFn(ctx, userID)
}

func (m *mockRefreshTokens) RevokeAllByUserIDTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (int, error) {
	return m.revokeAllByUserTxFn(ctx, tx, userID)
}

func (m *mockRefreshTokens) DeleteExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	return m.deleteExpiredFn(ctx, olderThan)
}

type mockSingleUseTokens struct {
	session.SingleUseTokens

	getByTokenTxFn func(ctx context.Context, tx bun.IDB, token string) (*session.SingleUseToken, error)
	issueTxFn      func(ctx context.Context, tx bun.IDB, userID uuid.UUID, tokenType session.TokenType, opts ...session.IssueOption) (*session.SingleUseToken, error)
	consumeTxFn    func(ctx context.Context, tx bun.IDB, id uuid.UUID) (*session.SingleUseToken, error)
}

func (m *mockSingleUseTokens) GetByTokenTx(ctx context.Context, tx bun.IDB, token string) (*session.SingleUseToken, error) {
	return m.getByTokenTxFn(ctx, tx, token)
}

func (m *mockSingleUseTokens) IssueTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, tokenType session.TokenType, opts ...session.IssueOption) (*session.SingleUseToken, error) {
	return m.issueTxFn(ctx, tx, userID, tokenType, opts...)
}

func (m *mockSingleUseTokens) ConsumeTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*session.SingleUseToken, error) {
	return m.consumeTxFn(ctx, tx, id)
}

// mockRepos satisfies RepositoryManager without a database. RunInTx invokes
// the callback with a zero tx; repository mocks ignore the tx handle anyway.
type mockRepos struct {
	users   *mockUsers
	refresh *mockRefreshTokens
	tokens  *mockSingleUseTokens
}

func newMockRepos() *mockRepos {
	return &mockRepos{
		users:   &mockUsers{},
		refresh: &mockRefreshTokens{},
		tokens:  &mockSingleUseTokens{},
	}
}

func (m *mockRepos) Validate() error { return nil }
func (m *mockRepos) MustValidate()   {}

func (m *mockRepos) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	return f(ctx, bun.Tx{})
}

func (m *mockRepos) Users() session.Users                     { return m.users }
func (m *mockRepos) SingleUseTokens() session.SingleUseTokens { return m.tokens }
func (m *mockRepos) RefreshTokens() session.RefreshTokens     { return m.refresh }

var _ session.RepositoryManager = (*mockRepos)(nil)

// captureSink records activity events for assertions.
type captureSink struct {
	mu     sync.Mutex
	events []session.ActivityEvent
}

func (s *captureSink) Record(_ context.Context, event session.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *captureSink) byType(eventType session.ActivityEventType) []session.ActivityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []session.ActivityEvent
	for _, event := range s.events {
		if event.EventType == eventType {
			matched = append(matched, event)
		}
	}
	return matched
}

type silentLogger struct{}

func (silentLogger) Debug(string, ...any) {}
func (silentLogger) Info(string, ...any)  {}
func (silentLogger) Warn(string, ...any)  {}
func (silentLogger) Error(string, ...any) {}
