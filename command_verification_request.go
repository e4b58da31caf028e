package session

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type RequestEmailVerificationMessage struct {
	Email      string `json:"email" example:"pepe.rone@example.com" doc:"Account email to verify."`
	OnResponse func(resp *RequestEmailVerificationResponse)
}

func (p RequestEmailVerificationMessage) Type() string { return "session.verification_request" }

type RequestEmailVerificationResponse struct {
	Success bool
}

// RequestEmailVerificationHandler issues an email verification token. The
// response is identical whether or not the email maps to an account, so the
// endpoint cannot be used to enumerate users.
type RequestEmailVerificationHandler struct {
	repo     RepositoryManager
	notifier Notifier
	activity ActivitySink
	logger   Logger
}

// NewRequestEmailVerificationHandler creates a handler with sane defaults.
func NewRequestEmailVerificationHandler(repo RepositoryManager) *RequestEmailVerificationHandler {
	return &RequestEmailVerificationHandler{
		repo:     repo,
		notifier: noopNotifier{},
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithNotifier sets the delivery hook invoked with the freshly issued token.
func (h *RequestEmailVerificationHandler) WithNotifier(notifier Notifier) *RequestEmailVerificationHandler {
	if notifier != nil {
		h.notifier = notifier
	}
	return h
}

// WithActivitySink sets the sink used to emit verification events.
func (h *RequestEmailVerificationHandler) WithActivitySink(sink ActivitySink) *RequestEmailVerificationHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *RequestEmailVerificationHandler) WithLogger(logger Logger) *RequestEmailVerificationHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *RequestEmailVerificationHandler) Execute(ctx context.Context, event RequestEmailVerificationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during verification request",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RequestEmailVerificationHandler) execute(ctx context.Context, event RequestEmailVerificationMessage) error {
	resp := &RequestEmailVerificationResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var user *User
	var token *SingleUseToken

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		user, err = h.repo.Users().GetByIdentifierTx(ctx, tx, event.Email)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				// pretend success so callers learn nothing
				return nil
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for verification request")
		}

		token, err = h.repo.SingleUseTokens().IssueTx(ctx, tx, user.ID, TokenTypeEmailVerification)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue verification token")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to request email verification")
	}

	if token != nil {
		if err := h.notifier.SendToken(ctx, user, token); err != nil {
			h.logger.Error("failed to deliver verification token", "error", err)
		}

		h.recordActivity(ctx, user, token)
	}

	resp.Success = true
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

func (h *RequestEmailVerificationHandler) recordActivity(ctx context.Context, user *User, token *SingleUseToken) {
	event := ActivityEvent{
		EventType: ActivityEventVerificationRequest,
		Actor:     SelfActor(user),
		UserID:    user.ID.String(),
		Metadata: map[string]any{
			"token_id": token.ID.String(),
		},
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during verification request: %v", err)
	}
}
