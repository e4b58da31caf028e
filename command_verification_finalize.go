package session

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type FinalizeEmailVerificationMessage struct {
	Token string `json:"token" doc:"Verification token from the email link."`
}

func (p FinalizeEmailVerificationMessage) Type() string { return "session.verification_finalize" }

// FinalizeEmailVerificationHandler consumes a verification token and marks
// the account's email as verified. Accounts still onboarding move to the
// verified status; established accounts keep their current status.
type FinalizeEmailVerificationHandler struct {
	repo     RepositoryManager
	activity ActivitySink
	logger   Logger
}

// NewFinalizeEmailVerificationHandler creates a handler with sane defaults.
func NewFinalizeEmailVerificationHandler(repo RepositoryManager) *FinalizeEmailVerificationHandler {
	return &FinalizeEmailVerificationHandler{
		repo:     repo,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithActivitySink sets the sink used to emit verification events.
func (h *FinalizeEmailVerificationHandler) WithActivitySink(sink ActivitySink) *FinalizeEmailVerificationHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *FinalizeEmailVerificationHandler) WithLogger(logger Logger) *FinalizeEmailVerificationHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *FinalizeEmailVerificationHandler) Execute(ctx context.Context, event FinalizeEmailVerificationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during verification finalization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizeEmailVerificationHandler) execute(ctx context.Context, event FinalizeEmailVerificationMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var record *SingleUseToken

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		found, err := h.repo.SingleUseTokens().GetByTokenTx(ctx, tx, event.Token)
		if err != nil && !goerrors.Is(err, ErrTokenNotFound) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not retrieve verification token")
		}

		record, err = ValidateSingleUse(found, TokenTypeEmailVerification, time.Now())
		if err != nil {
			return err
		}

		if _, err := h.repo.SingleUseTokens().ConsumeTx(ctx, tx, record.ID); err != nil {
			return err
		}

		if err := h.repo.Users().MarkEmailVerifiedTx(ctx, tx, record.UserID); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to mark email verified")
		}

		user, err := h.repo.Users().GetByIdentifierTx(ctx, tx, record.UserID.String())
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user after verification")
		}

		user.EnsureStatus()
		if user.Status == UserStatusNew || user.Status == UserStatusPending {
			if _, err := h.repo.Users().UpdateStatusTx(ctx, tx, user.ID, UserStatusVerified); err != nil {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update user status")
			}
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to finalize email verification")
	}

	h.recordActivity(ctx, record)

	return nil
}

func (h *FinalizeEmailVerificationHandler) recordActivity(ctx context.Context, record *SingleUseToken) {
	if record == nil {
		return
	}

	event := ActivityEvent{
		EventType: ActivityEventVerificationSuccess,
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
		h.logger.Warn("activity sink error during verification: %v", err)
	}
}
