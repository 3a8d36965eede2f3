package users

// UserStatus is the lifecycle state of a user account
type UserStatus string

const (
	// UserStatusActive means the account may authenticate
	UserStatusActive UserStatus = "ACTIVE"
	// UserStatusSuspended blocks authentication until reinstated
	UserStatusSuspended UserStatus = "SUSPENDED"
)

// IsValid checks if the status is part of the closed set
func (s UserStatus) IsValid() bool {
	switch s {
	case UserStatusActive, UserStatusSuspended:
		return true
	default:
		return false
	}
}

// ParseStatus safely parses a string into a UserStatus
func ParseStatus(statusStr string) (UserStatus, bool) {
	status := UserStatus(statusStr)
	return status, status.IsValid()
}

// GetAllStatuses returns the closed status set
func GetAllStatuses() []UserStatus {
	return []UserStatus{UserStatusActive, UserStatusSuspended}
}

// statusAuthError maps a non-active status to the login error it produces.
func statusAuthError(status UserStatus) error {
	switch status {
	case "", UserStatusActive:
		return nil
	case UserStatusSuspended:
		return ErrAccountSuspended
	default:
		return ErrAccountSuspended.Clone().WithMetadata(map[string]any{
			"status": status,
		})
	}
}
