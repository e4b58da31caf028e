package session

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type FinalizePasswordResetMessage struct {
	Token    string `json:"token" doc:"Password reset token from the email link."`
	Password string `json:"password" example:"some_secret_word" doc:"New password."`
}

func (p FinalizePasswordResetMessage) Type() string { return "session.password_reset_finalize" }

// FinalizePasswordResetHandler consumes a reset token and installs the new
// password. A successful reset is a global logout: every refresh token is
// revoked and the token version bumps so outstanding access tokens fail
// version rechecks.
type FinalizePasswordResetHandler struct {
	repo     RepositoryManager
	activity ActivitySink
	logger   Logger
}

// NewFinalizePasswordResetHandler creates a handler with sane defaults.
func NewFinalizePasswordResetHandler(repo RepositoryManager) *FinalizePasswordResetHandler {
	return &FinalizePasswordResetHandler{
		repo:     repo,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithActivitySink sets the sink used to emit password reset events.
func (h *FinalizePasswordResetHandler) WithActivitySink(sink ActivitySink) *FinalizePasswordResetHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *FinalizePasswordResetHandler) WithLogger(logger Logger) *FinalizePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset finalization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizePasswordResetHandler) execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var record *SingleUseToken

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		found, err := h.repo.SingleUseTokens().GetByTokenTx(ctx, tx, event.Token)
		if err != nil && !goerrors.Is(err, ErrTokenNotFound) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not retrieve password reset token")
		}

		record, err = ValidateSingleUse(found, TokenTypePasswordReset, time.Now())
		if err != nil {
			return err
		}

		passwordHash, err := HashPassword(event.Password)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid new password provided")
		}

		if _, err := h.repo.SingleUseTokens().ConsumeTx(ctx, tx, record.ID); err != nil {
			return err
		}

		if err := h.repo.Users().ResetPasswordTx(ctx, tx, record.UserID, passwordHash); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update user password in database")
		}

		if _, err := h.repo.Users().BumpTokenVersionTx(ctx, tx, record.UserID); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to bump token version")
		}

		if _, err := h.repo.RefreshTokens().RevokeAllByUserIDTx(ctx, tx, record.UserID); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to revoke user sessions")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to finalize password reset")
	}

	h.recordActivity(ctx, record)

	return nil
}

func (h *FinalizePasswordResetHandler) recordActivity(ctx context.Context, record *SingleUseToken) {
	if record == nil {
		return
	}

	event := ActivityEvent{
		EventType: ActivityEventPasswordResetSuccess,
		Actor: ActorRef{
			ID: record.UserID.String(),
		},
		UserID: record.UserID.String(),
		Metadata: map[string]any{
			"token_id": record.ID.String(),
		},
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during password reset: %v", err)
	}
}
