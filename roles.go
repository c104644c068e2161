package users

// UserRole is the user's role
type UserRole string

const (
	// RoleUser is the default role, a regular account holder
	RoleUser UserRole = "user"
	// RoleManager can list, create and edit regular users
	RoleManager UserRole = "manager"
	// RoleAdmin can manage every account
	RoleAdmin UserRole = "admin"
)

var roleHierarchy = map[UserRole]int{
	RoleUser:    0,
	RoleManager: 1,
	RoleAdmin:   2,
}

// IsValid checks if the role is one of the predefined valid roles
func (r UserRole) IsValid() bool {
	_, ok := roleHierarchy[r]
	return ok
}

// String implements fmt.Stringer
func (r UserRole) String() string {
	return string(r)
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

// CanViewUsers checks if this role can list other accounts
func (r UserRole) CanViewUsers() bool {
	return r.IsAtLeast(RoleManager)
}

// CanCreateUsers checks if this role can create accounts
func (r UserRole) CanCreateUsers() bool {
	return r.IsAtLeast(RoleManager)
}

// CanManage checks if this role can edit or delete an account holding target.
// Admins manage everyone, managers only regular users.
func (r UserRole) CanManage(target UserRole) bool {
	switch r {
	case RoleAdmin:
		return target.IsValid()
	case RoleManager:
		return target == RoleUser
	default:
		return false
	}
}

// GetAllRoles returns all predefined roles in hierarchical order
func GetAllRoles() []UserRole {
	return []UserRole{
		RoleUser,
		RoleManager,
		RoleAdmin,
	}
}

// ParseRole safely parses a string into a UserRole type
func ParseRole(roleStr string) (UserRole, bool) {
	role := UserRole(roleStr)
	return role, role.IsValid()
}
