package users

import "sort"

// Operation identifies a gated action evaluated by the policy.
type Operation string

const (
	// OpListUsers enumerates the user directory
	OpListUsers Operation = "users.list"
	// OpCreateUser creates a user through the admin path
	OpCreateUser Operation = "users.create"
	// OpUpdateUser updates any user through the admin path
	OpUpdateUser Operation = "users.update"
	// OpSuspendUser suspends a user account
	OpSuspendUser Operation = "users.suspend"
	// OpActivateUser reinstates a suspended account
	OpActivateUser Operation = "users.activate"
	// OpReadUser reads a single user record
	OpReadUser Operation = "users.read"
	// OpUpdateSelf updates the actor's own profile
	OpUpdateSelf Operation = "users.update_self"
)

// ListUserRoles is the closed set of roles allowed to list users. Kept as a
// named policy constant so the rule table stays in one place.
var ListUserRoles = []UserRole{RoleAdmin, RoleSupervisor, RoleInterventoria}

// SelfEditableFields are the only fields a user may change on their own record.
var SelfEditableFields = map[string]struct{}{
	"full_name":         {},
	"phone":             {},
	"address":           {},
	"email_secondary":   {},
	"profile_photo_url": {},
	"password":          {},
}

// SelfProhibitedFields always fail a self-update, never silently ignored.
var SelfProhibitedFields = map[string]struct{}{
	"role":          {},
	"status":        {},
	"email_primary": {},
	"id_type":       {},
	"id_number":     {},
	"birth_date":    {},
	"created_at":    {},
	"updated_at":    {},
	"last_login_at": {},
}

// AdminImmutableFields cannot be written even through the admin path.
var AdminImmutableFields = map[string]struct{}{
	"id":         {},
	"created_at": {},
}

// Policy is the default Authorizer: a fixed rule table over the closed role
// set. Rules are evaluated in precedence order, first match wins.
type Policy struct{}

// NewPolicy returns the default authorization policy.
func NewPolicy() Policy {
	return Policy{}
}

var _ Authorizer = Policy{}

// Authorize returns nil when the actor may perform op on target, or
// ErrPermissionDenied annotated with the operation otherwise.
func (p Policy) Authorize(actor *User, op Operation, target *User) error {
	if actor == nil {
		return p.deny(op, "actor is required")
	}
	actor.EnsureRole()

	switch op {
	case OpListUsers:
		if actor.Role.CanListUsers() {
			return nil
		}
		return p.deny(op, "role cannot list users")

	case OpCreateUser, OpUpdateUser, OpSuspendUser, OpActivateUser:
		if actor.Role.CanManageUsers() {
			return nil
		}
		return p.deny(op, "admin role required")

	case OpUpdateSelf:
		if target != nil && actor.ID == target.ID {
			return nil
		}
		return p.deny(op, "actors may only update their own profile")

	case OpReadUser:
		if actor.IsAdmin() {
			return nil
		}
		if target != nil && actor.ID == target.ID {
			return nil
		}
		return p.deny(op, "not owner or admin")
	}

	return p.deny(op, "unknown operation")
}

// ValidateSelfUpdate rejects the whole payload when any prohibited key is
// present. The offending keys are reported sorted so errors are stable.
func (p Policy) ValidateSelfUpdate(changes map[string]any) error {
	var prohibited []string
	for key := range changes {
		if _, ok := SelfProhibitedFields[key]; ok {
			prohibited = append(prohibited, key)
		}
	}

	if len(prohibited) == 0 {
		return nil
	}

	sort.Strings(prohibited)
	return ErrProhibitedFields.Clone().WithMetadata(map[string]any{
		"fields": prohibited,
	})
}

// ValidateAdminUpdate rejects writes to immutable fields on the admin path.
func (p Policy) ValidateAdminUpdate(changes map[string]any) error {
	var immutable []string
	for key := range changes {
		if _, ok := AdminImmutableFields[key]; ok {
			immutable = append(immutable, key)
		}
	}

	if len(immutable) == 0 {
		return nil
	}

	sort.Strings(immutable)
	return ErrImmutableFields.Clone().WithMetadata(map[string]any{
		"fields": immutable,
	})
}

// deny clones the shared sentinel before annotating it, callers must never
// write into the package-level error.
func (p Policy) deny(op Operation, reason string) error {
	return ErrPermissionDenied.Clone().WithMetadata(map[string]any{
		"operation": op,
		"reason":    reason,
	})
}
