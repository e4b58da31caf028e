package session

// UserRole is the user's role
type UserRole string

const (
	// RoleUser is a standard end user
	RoleUser UserRole = "user"
	// RoleEnterprise is an enterprise tier user
	RoleEnterprise UserRole = "enterprise"
	// RoleAdmin is a company administrator
	RoleAdmin UserRole = "admin"
	// RoleOwner is a company owner
	RoleOwner UserRole = "owner"
)

// RolePredicate decides whether a role is allowed through a gate. Predicates
// are plain values so the same gate factory serves every authorization tier.
type RolePredicate func(role UserRole) bool

var (
	// IsUser admits any valid role; every authenticated principal is at
	// least a user.
	IsUser RolePredicate = func(role UserRole) bool {
		return role.IsValid()
	}

	// IsEnterprise admits enterprise and above.
	IsEnterprise RolePredicate = RoleAtLeast(RoleEnterprise)

	// IsAdmin admits admin and owner.
	IsAdmin RolePredicate = RoleAtLeast(RoleAdmin)

	// IsOwner admits owners only.
	IsOwner RolePredicate = func(role UserRole) bool {
		return role == RoleOwner
	}

	// AnyRole disables role checking for a gate.
	AnyRole RolePredicate = func(UserRole) bool {
		return true
	}
)

// RoleAtLeast builds a predicate admitting roles at or above min in the
// hierarchy.
func RoleAtLeast(min UserRole) RolePredicate {
	return func(role UserRole) bool {
		return role.IsAtLeast(min)
	}
}

// RoleIn builds a predicate admitting an explicit set of roles.
func RoleIn(roles ...UserRole) RolePredicate {
	allowed := make(map[UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(role UserRole) bool {
		_, ok := allowed[role]
		return ok
	}
}

var roleHierarchy = map[UserRole]int{
	RoleUser:       0,
	RoleEnterprise: 1,
	RoleAdmin:      2,
	RoleOwner:      3,
}

// IsValid checks if the role is one of the predefined valid roles
func (r UserRole) IsValid() bool {
	_, ok := roleHierarchy[r]
	return ok
}

// IsAtLeast checks if this role meets the minimum required level
func (r UserRole) IsAtLeast(minRole UserRole) bool {
	currentLevel, exists := roleHierarchy[r]
	if !exists {
		return false
	}

	minLevel, exists := roleHierarchy[minRole]
	if !exists {
		return false
	}

	return currentLevel >= minLevel
}

// GetAllRoles returns all predefined roles in hierarchical order
func GetAllRoles() []UserRole {
	return []UserRole{
		RoleUser,
		RoleEnterprise,
		RoleAdmin,
		RoleOwner,
	}
}

// ParseRole safely parses a string into a UserRole type
func ParseRole(roleStr string) (UserRole, bool) {
	role := UserRole(roleStr)
	return role, role.IsValid()
}
