package session

// UserStatus is the user's lifecycle status
type UserStatus string

const (
	// UserStatusNew is a freshly registered, unverified account
	UserStatusNew UserStatus = "new"
	// UserStatusPending awaits verification or invitation acceptance
	UserStatusPending UserStatus = "pending"
	// UserStatusVerified has confirmed their email
	UserStatusVerified UserStatus = "verified"
	// UserStatusTrial is in a trial period
	UserStatusTrial UserStatus = "trial"
	// UserStatusActive is a fully enabled account
	UserStatusActive UserStatus = "active"
	// UserStatusSuspended is temporarily blocked
	UserStatusSuspended UserStatus = "suspended"
	// UserStatusArchived is terminally retired
	UserStatusArchived UserStatus = "archived"
)

// StatusPredicate decides whether a status is allowed through a gate.
type StatusPredicate func(status UserStatus) bool

var (
	// IsActiveOnly admits statuses that represent a fully working account.
	IsActiveOnly StatusPredicate = StatusIn(
		UserStatusVerified,
		UserStatusTrial,
		UserStatusActive,
	)

	// IsNewOrActive additionally admits accounts still completing onboarding,
	// used by routes like resend-verification that must work pre-activation.
	IsNewOrActive StatusPredicate = StatusIn(
		UserStatusNew,
		UserStatusPending,
		UserStatusVerified,
		UserStatusTrial,
		UserStatusActive,
	)

	// AnyStatus disables status checking for a gate.
	AnyStatus StatusPredicate = func(UserStatus) bool {
		return true
	}
)

// StatusIn builds a predicate admitting an explicit set of statuses.
func StatusIn(statuses ...UserStatus) StatusPredicate {
	allowed := make(map[UserStatus]struct{}, len(statuses))
	for _, s := range statuses {
		allowed[s] = struct{}{}
	}
	return func(status UserStatus) bool {
		_, ok := allowed[status]
		return ok
	}
}

var validStatuses = map[UserStatus]struct{}{
	UserStatusNew:       {},
	UserStatusPending:   {},
	UserStatusVerified:  {},
	UserStatusTrial:     {},
	UserStatusActive:    {},
	UserStatusSuspended: {},
	UserStatusArchived:  {},
}

// IsValid checks if the status is one of the predefined valid statuses
func (s UserStatus) IsValid() bool {
	_, ok := validStatuses[s]
	return ok
}

// ParseStatus safely parses a string into a UserStatus type
func ParseStatus(statusStr string) (UserStatus, bool) {
	status := UserStatus(statusStr)
	return status, status.IsValid()
}

// GetAllStatuses returns all predefined statuses in lifecycle order
func GetAllStatuses() []UserStatus {
	return []UserStatus{
		UserStatusNew,
		UserStatusPending,
		UserStatusVerified,
		UserStatusTrial,
		UserStatusActive,
		UserStatusSuspended,
		UserStatusArchived,
	}
}

// statusAuthError maps blocked statuses to their credential error. Statuses
// that allow authentication return nil.
func statusAuthError(status UserStatus) error {
	switch status {
	case UserStatusSuspended:
		return ErrUserSuspended
	case UserStatusArchived:
		return ErrUserArchived
	default:
		return nil
	}
}
