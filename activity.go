package session

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventLoginSuccess         ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure         ActivityEventType = "auth.login.failure"
	ActivityEventTokenRefreshed       ActivityEventType = "auth.token.refreshed"
	ActivityEventSessionRevoked       ActivityEventType = "auth.session.revoked"
	ActivityEventSessionsRevokedAll   ActivityEventType = "auth.session.revoked_all"
	ActivityEventVerificationRequest  ActivityEventType = "auth.verification.requested"
	ActivityEventVerificationSuccess  ActivityEventType = "auth.verification.success"
	ActivityEventPasswordResetRequest ActivityEventType = "auth.password.reset_requested"
	ActivityEventPasswordResetSuccess ActivityEventType = "auth.password.reset"
	ActivityEventUserInvited          ActivityEventType = "auth.user.invited"
)

// ActorRef identifies who initiated an action. Self-service flows use the
// affected user; administrative flows carry the operator.
type ActorRef struct {
	ID    string
	Email string
	Role  UserRole
}

// SelfActor builds an ActorRef for a user acting on their own account.
func SelfActor(user *User) ActorRef {
	if user == nil {
		return ActorRef{}
	}
	return ActorRef{
		ID:    user.ID.String(),
		Email: user.Email,
		Role:  user.Role,
	}
}

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	Actor      ActorRef
	UserID     string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}
