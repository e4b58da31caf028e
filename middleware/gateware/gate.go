// Package gateware provides the route gate: a middleware factory that
// authenticates an access token and authorizes the caller against status and
// role predicates before the request reaches its handler.
package gateware

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-session"
)

// UserSource loads the current user record for gates that recheck the token
// version against the database.
type UserSource func(ctx context.Context, userID string) (*session.User, error)

// Config drives a single gate instance. Validator is required; everything
// else has defaults.
type Config struct {
	Filter         func(router.Context) bool
	SuccessHandler router.HandlerFunc
	ErrorHandler   router.ErrorHandler
	ContextKey     string
	TokenLookup    string
	AuthScheme     string

	// Validator is required for token validation
	Validator session.TokenValidator

	// StatusPredicate gates on the account lifecycle status carried in the
	// claims. Defaults to admitting active-like statuses only.
	StatusPredicate session.StatusPredicate

	// RolePredicate gates on the role carried in the claims. Defaults to
	// admitting any valid role.
	RolePredicate session.RolePredicate

	// VerifyTokenVersion rechecks the claims' version against the stored
	// user on every request. Requires UserSource. Gates protecting
	// sensitive routes opt in; everyone else accepts version staleness up
	// to the access token TTL.
	VerifyTokenVersion bool
	UserSource         UserSource

	// ContextEnricher propagates claims to the standard Go context after a
	// successful validation.
	ContextEnricher func(c context.Context, claims session.AuthClaims) context.Context

	Logger session.Logger
}

// New builds the gate middleware. Checks run in a fixed order: token
// extraction, signature and shape validation, status predicate, role
// predicate, then the optional version recheck. The first failure wins and
// later checks never run.
func New(config ...Config) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		cfg := GetDefaultConfig(config...)
		return func(ctx router.Context) error {
			if cfg.Filter != nil && cfg.Filter(ctx) {
				return ctx.Next()
			}

			raw, err := ExtractRawTokenFromContext(ctx, cfg.getExtractors())
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			claims, err := cfg.Validator.Validate(raw)
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			if !cfg.StatusPredicate(claims.Status()) {
				return cfg.ErrorHandler(ctx, session.ErrStatusForbidden)
			}

			if !cfg.RolePredicate(claims.Role()) {
				return cfg.ErrorHandler(ctx, session.ErrRoleForbidden)
			}

			if cfg.VerifyTokenVersion {
				if err := verifyTokenVersion(ctx.Context(), cfg, claims); err != nil {
					return cfg.ErrorHandler(ctx, err)
				}
			}

			ctx.Locals(cfg.ContextKey, claims)

			if cfg.ContextEnricher != nil {
				stdCtx := ctx.Context()
				ctx.SetContext(cfg.ContextEnricher(stdCtx, claims))
			}

			return cfg.SuccessHandler(ctx)
		}
	}
}

func verifyTokenVersion(ctx context.Context, cfg Config, claims session.AuthClaims) error {
	user, err := cfg.UserSource(ctx, claims.UserID())
	if err != nil {
		if goerrors.IsNotFound(err) {
			return session.ErrUnauthorized
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load user for version check")
	}

	if user.TokenVersion != claims.Version() {
		return session.ErrTokenVersionMismatch
	}

	return nil
}

func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.Validator == nil {
		panic("SESSION: gate configuration: Validator is required.")
	}

	if cfg.VerifyTokenVersion && cfg.UserSource == nil {
		panic("SESSION: gate configuration: VerifyTokenVersion requires a UserSource.")
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(ctx router.Context) error {
			return ctx.Next()
		}
	}

	if cfg.Logger == nil {
		cfg.Logger = session.NewDefaultLogger()
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = defaultErrorHandler(cfg.Logger)
	}

	if cfg.StatusPredicate == nil {
		cfg.StatusPredicate = session.IsActiveOnly
	}

	if cfg.RolePredicate == nil {
		cfg.RolePredicate = session.IsUser
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = session.DefaultContextKey
	}

	if cfg.TokenLookup == "" {
		cfg.TokenLookup = session.DefaultTokenLookup
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = session.DefaultAuthScheme
	}

	return cfg
}

func defaultErrorHandler(logger session.Logger) router.ErrorHandler {
	return func(c router.Context, err error) error {
		status := router.StatusUnauthorized
		body := map[string]any{
			"error": "Invalid or expired token",
		}

		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			if richErr.Category == goerrors.CategoryAuthz {
				status = router.StatusForbidden
				body["error"] = richErr.Message
			}
			if richErr.TextCode != "" {
				body["text_code"] = richErr.TextCode
			}
			if len(richErr.Metadata) > 0 {
				logger.Debug("gate rejected request: %s", print.MaybePrettyJSON(richErr.Metadata))
			}
		}

		return c.JSON(status, body)
	}
}
