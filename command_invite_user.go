package session

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

type InviteUserMessage struct {
	Email     string   `json:"email" example:"pepe.rone@example.com" doc:"Invitee email."`
	Username  string   `json:"username"`
	Role      UserRole `json:"role"`
	InvitedBy ActorRef
	UseHashid bool
	OnResponse func(resp *InviteUserResponse)
}

func (e InviteUserMessage) Type() string { return "session.user_invite" }

type InviteUserResponse struct {
	User    *User
	Token   *SingleUseToken
	Success bool
}

// InviteUserHandler provisions a pending account with an unguessable
// placeholder password and issues an invitation token the invitee redeems to
// claim the account.
type InviteUserHandler struct {
	repo     RepositoryManager
	notifier Notifier
	activity ActivitySink
	logger   Logger
}

// NewInviteUserHandler creates a handler with sane defaults.
func NewInviteUserHandler(repo RepositoryManager) *InviteUserHandler {
	return &InviteUserHandler{
		repo:     repo,
		notifier: noopNotifier{},
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithNotifier sets the delivery hook invoked with the invitation token.
func (h *InviteUserHandler) WithNotifier(notifier Notifier) *InviteUserHandler {
	if notifier != nil {
		h.notifier = notifier
	}
	return h
}

// WithActivitySink sets the sink used to emit invitation events.
func (h *InviteUserHandler) WithActivitySink(sink ActivitySink) *InviteUserHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *InviteUserHandler) WithLogger(logger Logger) *InviteUserHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *InviteUserHandler) Execute(ctx context.Context, event InviteUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user invitation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InviteUserHandler) execute(ctx context.Context, event InviteUserMessage) error {
	resp := &InviteUserResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user := &User{}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user.Email = event.Email
		user.Username = getUsername(event.Username, event.Email)
		user.Role = event.Role
		user.Status = UserStatusPending
		// placeholder hash, the invitee sets their real password on claim
		user.PasswordHash = RandomPasswordHash()

		if event.UseHashid {
			if id, err := hashid.NewUUID(event.Email); err == nil {
				user.ID = id
			}
		}

		var err error
		if user, err = h.repo.Users().CreateTx(ctx, tx, user); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create invited user")
		}

		resp.Token, err = h.repo.SingleUseTokens().IssueTx(ctx, tx, user.ID, TokenTypeUserInvitation)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue invitation token")
		}

		resp.User = user
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "user invitation transaction failed")
	}

	if err := h.notifier.SendToken(ctx, resp.User, resp.Token); err != nil {
		h.logger.Error("failed to deliver invitation token", "error", err)
	}

	h.recordActivity(ctx, event.InvitedBy, resp)

	resp.Success = true
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

func (h *InviteUserHandler) recordActivity(ctx context.Context, actor ActorRef, resp *InviteUserResponse) {
	if resp.User == nil {
		return
	}

	event := ActivityEvent{
		EventType: ActivityEventUserInvited,
		Actor:     actor,
		UserID:    resp.User.ID.String(),
		Metadata: map[string]any{
			"token_id": resp.Token.ID.String(),
			"role":     string(resp.User.Role),
		},
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during invitation: %v", err)
	}
}

type AcceptInvitationMessage struct {
	Token    string `json:"token" doc:"Invitation token from the invite link."`
	Password string `json:"password" doc:"Password chosen by the invitee."`
}

func (e AcceptInvitationMessage) Type() string { return "session.user_invite_accept" }

// AcceptInvitationHandler consumes an invitation token: the invitee sets
// their password and the account becomes active with a verified email.
type AcceptInvitationHandler struct {
	repo   RepositoryManager
	logger Logger
}

// NewAcceptInvitationHandler creates a handler with sane defaults.
func NewAcceptInvitationHandler(repo RepositoryManager) *AcceptInvitationHandler {
	return &AcceptInvitationHandler{
		repo:   repo,
		logger: defLogger{},
	}
}

// WithLogger overrides the logger used by the handler.
func (h *AcceptInvitationHandler) WithLogger(logger Logger) *AcceptInvitationHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *AcceptInvitationHandler) Execute(ctx context.Context, event AcceptInvitationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during invitation acceptance",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *AcceptInvitationHandler) execute(ctx context.Context, event AcceptInvitationMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		found, err := h.repo.SingleUseTokens().GetByTokenTx(ctx, tx, event.Token)
		if err != nil && !goerrors.Is(err, ErrTokenNotFound) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not retrieve invitation token")
		}

		record, err := ValidateSingleUse(found, TokenTypeUserInvitation, time.Now())
		if err != nil {
			return err
		}

		passwordHash, err := HashPassword(event.Password)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password provided")
		}

		if _, err := h.repo.SingleUseTokens().ConsumeTx(ctx, tx, record.ID); err != nil {
			return err
		}

		if err := h.repo.Users().ResetPasswordTx(ctx, tx, record.UserID, passwordHash); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to set invitee password")
		}

		if _, err := h.repo.Users().UpdateStatusTx(ctx, tx, record.UserID, UserStatusActive); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to activate invited user")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to accept invitation")
	}

	return nil
}

func getUsername(username, email string) string {
	if username != "" {
		return username
	}

	if strings.Contains(email, "@") {
		username = strings.Split(email, "@")[0]
	}

	return username
}
