package gateware_test

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-session"
	"github.com/goliatone/go-session/middleware/gateware"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testCodec() *session.TokenCodec {
	cfg := session.NewConfig("gateware-test-signing-secret")
	return session.NewTokenCodec(cfg)
}

func signedToken(t *testing.T, subject session.TokenSubject, opts ...session.SignOption) string {
	t.Helper()
	token, err := testCodec().Sign(subject, opts...)
	require.NoError(t, err)
	return token
}

func defaultSubject() session.TokenSubject {
	return session.TokenSubject{
		ID:           uuid.NewString(),
		Email:        "pepe.rone@example.com",
		Role:         session.RoleUser,
		Status:       session.UserStatusActive,
		TokenVersion: 1,
	}
}

// passthroughErrors surfaces gate failures as returned errors instead of
// JSON responses, which keeps assertions direct.
func passthroughErrors(cfg gateware.Config) gateware.Config {
	cfg.ErrorHandler = func(c router.Context, err error) error {
		return err
	}
	if cfg.Validator == nil {
		cfg.Validator = testCodec()
	}
	return cfg
}

func newGate(cfg gateware.Config) router.HandlerFunc {
	return gateware.New(cfg)(func(ctx router.Context) error {
		return ctx.Next()
	})
}

func authedContext(token string) *router.MockContext {
	ctx := router.NewMockContext()
	ctx.HeadersM["Authorization"] = "Bearer " + token
	ctx.On("GetString", "Authorization", "").Return("Bearer " + token)
	ctx.On("Locals", session.DefaultContextKey, mock.Anything).Return(nil).Maybe()
	return ctx
}

func TestGate_ValidToken(t *testing.T) {
	handler := newGate(passthroughErrors(gateware.Config{}))

	ctx := authedContext(signedToken(t, defaultSubject()))

	err := handler(ctx)
	require.NoError(t, err)
	assert.True(t, ctx.NextCalled)
}

func TestGate_MissingToken(t *testing.T) {
	handler := newGate(passthroughErrors(gateware.Config{}))

	ctx := router.NewMockContext()
	ctx.On("GetString", "Authorization", "").Return("")

	err := handler(ctx)
	assert.ErrorIs(t, err, session.ErrNoToken)
	assert.False(t, ctx.NextCalled)
}

func TestGate_MalformedToken(t *testing.T) {
	handler := newGate(passthroughErrors(gateware.Config{}))

	ctx := authedContext("malformed.token.structure")

	err := handler(ctx)
	require.Error(t, err)
	assert.Equal(t, session.TextCodeTokenInvalid, session.ErrorTextCode(err))
	assert.False(t, ctx.NextCalled)
}

func TestGate_ExpiredToken(t *testing.T) {
	handler := newGate(passthroughErrors(gateware.Config{}))

	cfg := session.NewConfig("gateware-test-signing-secret")
	codec := session.NewTokenCodec(cfg).WithClock(func() time.Time {
		return time.Now().Add(-2 * time.Hour)
	})
	expired, err := codec.Sign(defaultSubject(), session.WithTTL(time.Hour))
	require.NoError(t, err)

	ctx := authedContext(expired)

	err = handler(ctx)
	assert.True(t, session.IsTokenExpiredError(err))
}

func TestGate_WrongSecret(t *testing.T) {
	handler := newGate(passthroughErrors(gateware.Config{}))

	otherCodec := session.NewTokenCodec(session.NewConfig("a-completely-different-secret"))
	token, err := otherCodec.Sign(defaultSubject())
	require.NoError(t, err)

	ctx := authedContext(token)

	err = handler(ctx)
	require.Error(t, err)
	assert.False(t, ctx.NextCalled)
}

func TestGate_StatusPredicate(t *testing.T) {
	t.Run("default rejects pending accounts", func(t *testing.T) {
		handler := newGate(passthroughErrors(gateware.Config{}))

		subject := defaultSubject()
		subject.Status = session.UserStatusPending

		ctx := authedContext(signedToken(t, subject))

		err := handler(ctx)
		assert.ErrorIs(t, err, session.ErrStatusForbidden)
		assert.False(t, ctx.NextCalled)
	})

	t.Run("custom predicate can admit pending accounts", func(t *testing.T) {
		handler := newGate(passthroughErrors(gateware.Config{
			StatusPredicate: session.IsNewOrActive,
		}))

		subject := defaultSubject()
		subject.Status = session.UserStatusPending

		ctx := authedContext(signedToken(t, subject))

		err := handler(ctx)
		require.NoError(t, err)
		assert.True(t, ctx.NextCalled)
	})

	t.Run("status check runs before role check", func(t *testing.T) {
		handler := newGate(passthroughErrors(gateware.Config{
			RolePredicate: session.IsAdmin,
		}))

		subject := defaultSubject()
		subject.Status = session.UserStatusSuspended

		ctx := authedContext(signedToken(t, subject))

		err := handler(ctx)
		assert.ErrorIs(t, err, session.ErrStatusForbidden)
	})
}

func TestGate_RolePredicate(t *testing.T) {
	t.Run("admin gate rejects plain users", func(t *testing.T) {
		handler := newGate(passthroughErrors(gateware.Config{
			RolePredicate: session.IsAdmin,
		}))

		ctx := authedContext(signedToken(t, defaultSubject()))

		err := handler(ctx)
		assert.ErrorIs(t, err, session.ErrRoleForbidden)
		assert.False(t, ctx.NextCalled)
	})

	t.Run("admin gate admits admins", func(t *testing.T) {
		handler := newGate(passthroughErrors(gateware.Config{
			RolePredicate: session.IsAdmin,
		}))

		subject := defaultSubject()
		subject.Role = session.RoleAdmin

		ctx := authedContext(signedToken(t, subject))

		err := handler(ctx)
		require.NoError(t, err)
		assert.True(t, ctx.NextCalled)
	})
}

func TestGate_VerifyTokenVersion(t *testing.T) {
	subject := defaultSubject()
	subject.TokenVersion = 3
	userID := subject.ID

	userSource := func(version int, err error) gateware.UserSource {
		return func(ctx context.Context, id string) (*session.User, error) {
			if err != nil {
				return nil, err
			}
			uid, _ := uuid.Parse(userID)
			return &session.User{
				ID:           uid,
				Role:         session.RoleUser,
				Status:       session.UserStatusActive,
				TokenVersion: version,
			}, nil
		}
	}

	t.Run("matching version passes", func(t *testing.T) {
		handler := newGate(passthroughErrors(gateware.Config{
			VerifyTokenVersion: true,
			UserSource:         userSource(3, nil),
		}))

		ctx := authedContext(signedToken(t, subject))
		ctx.On("Context").Return(context.Background()).Maybe()

		err := handler(ctx)
		require.NoError(t, err)
		assert.True(t, ctx.NextCalled)
	})

	t.Run("stale version is rejected", func(t *testing.T) {
		handler := newGate(passthroughErrors(gateware.Config{
			VerifyTokenVersion: true,
			UserSource:         userSource(4, nil),
		}))

		ctx := authedContext(signedToken(t, subject))
		ctx.On("Context").Return(context.Background()).Maybe()

		err := handler(ctx)
		assert.ErrorIs(t, err, session.ErrTokenVersionMismatch)
		assert.False(t, ctx.NextCalled)
	})

	t.Run("deleted user is rejected as unauthorized", func(t *testing.T) {
		handler := newGate(passthroughErrors(gateware.Config{
			VerifyTokenVersion: true,
			UserSource:         userSource(0, repository.NewRecordNotFound()),
		}))

		ctx := authedContext(signedToken(t, subject))
		ctx.On("Context").Return(context.Background()).Maybe()

		err := handler(ctx)
		assert.ErrorIs(t, err, session.ErrUnauthorized)
	})
}

func TestGate_Filter(t *testing.T) {
	handler := newGate(passthroughErrors(gateware.Config{
		Filter: func(c router.Context) bool {
			return true
		},
	}))

	ctx := router.NewMockContext()

	err := handler(ctx)
	require.NoError(t, err)
	assert.True(t, ctx.NextCalled, "filtered requests skip the gate entirely")
}

func TestGate_StoresClaimsInLocals(t *testing.T) {
	handler := newGate(passthroughErrors(gateware.Config{
		ContextKey: "auth_claims",
	}))

	subject := defaultSubject()
	token := signedToken(t, subject)

	ctx := router.NewMockContext()
	ctx.HeadersM["Authorization"] = "Bearer " + token
	ctx.On("GetString", "Authorization", "").Return("Bearer " + token)
	ctx.On("Locals", "auth_claims", mock.AnythingOfType("*session.JWTClaims")).Return(nil)

	err := handler(ctx)
	require.NoError(t, err)
	ctx.AssertCalled(t, "Locals", "auth_claims", mock.AnythingOfType("*session.JWTClaims"))
}

func TestGate_ContextEnricher(t *testing.T) {
	enriched := false

	handler := newGate(passthroughErrors(gateware.Config{
		ContextEnricher: func(c context.Context, claims session.AuthClaims) context.Context {
			enriched = true
			return session.WithClaimsContext(c, claims)
		},
	}))

	ctx := authedContext(signedToken(t, defaultSubject()))
	ctx.On("Context").Return(context.Background()).Maybe()
	ctx.On("SetContext", mock.Anything).Maybe()

	err := handler(ctx)
	require.NoError(t, err)
	assert.True(t, enriched)
	assert.True(t, ctx.NextCalled)
}

func TestGate_DefaultErrorHandlerWritesJSON(t *testing.T) {
	handler := newGate(gateware.Config{
		Validator: testCodec(),
		Logger:    session.NewDefaultLogger(),
	})

	t.Run("auth failures are 401", func(t *testing.T) {
		ctx := router.NewMockContext()
		ctx.On("GetString", "Authorization", "").Return("")
		ctx.On("JSON", router.StatusUnauthorized, mock.Anything).Return(nil).Once()

		require.NoError(t, handler(ctx))
		ctx.AssertCalled(t, "JSON", router.StatusUnauthorized, mock.Anything)
	})

	t.Run("authz failures are 403", func(t *testing.T) {
		subject := defaultSubject()
		subject.Status = session.UserStatusPending
		token := signedToken(t, subject)

		ctx := router.NewMockContext()
		ctx.HeadersM["Authorization"] = "Bearer " + token
		ctx.On("GetString", "Authorization", "").Return("Bearer " + token)
		ctx.On("JSON", router.StatusForbidden, mock.Anything).Return(nil).Once()

		require.NoError(t, handler(ctx))
		ctx.AssertCalled(t, "JSON", router.StatusForbidden, mock.Anything)
	})
}

func TestGate_ConfigPanics(t *testing.T) {
	t.Run("missing validator", func(t *testing.T) {
		require.Panics(t, func() {
			gateware.New(gateware.Config{})(func(ctx router.Context) error { return nil })
		})
	})

	t.Run("version check without user source", func(t *testing.T) {
		require.Panics(t, func() {
			gateware.New(gateware.Config{
				Validator:          testCodec(),
				VerifyTokenVersion: true,
			})(func(ctx router.Context) error { return nil })
		})
	})
}
