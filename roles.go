package users

// UserRole is the user's role
type UserRole string

const (
	// RoleAdmin manages every user and the suspension workflow
	RoleAdmin UserRole = "ADMIN"
	// RoleClient is a policy holder, limited to self-service
	RoleClient UserRole = "CLIENT"
	// RoleInterventoria is the external comptroller role (read/list)
	RoleInterventoria UserRole = "INTERVENTORIA"
	// RoleSupervisor oversees client portfolios (read/list)
	RoleSupervisor UserRole = "SUPERVISOR"
)

// IsValid checks if the role is one of the predefined valid roles
func (r UserRole) IsValid() bool {
	switch r {
	case RoleAdmin, RoleClient, RoleInterventoria, RoleSupervisor:
		return true
	default:
		return false
	}
}

// CanListUsers checks if this role may enumerate the user directory
func (r UserRole) CanListUsers() bool {
	switch r {
	case RoleAdmin, RoleSupervisor, RoleInterventoria:
		return true
	default:
		return false
	}
}

// CanManageUsers checks if this role may create, update, suspend, or
// activate other users
func (r UserRole) CanManageUsers() bool {
	return r == RoleAdmin
}

// GetAllRoles returns all predefined roles
func GetAllRoles() []UserRole {
	return []UserRole{
		RoleAdmin,
		RoleClient,
		RoleInterventoria,
		RoleSupervisor,
	}
}

// ParseRole safely parses a string into a UserRole type
func ParseRole(roleStr string) (UserRole, bool) {
	role := UserRole(roleStr)
	return role, role.IsValid()
}
