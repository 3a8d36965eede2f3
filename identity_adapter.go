package users

// userIdentity adapts a directory record to the Identity interface.
type userIdentity struct {
	user *User
}

// NewIdentityFromUser wraps a user record as an Identity for token issuance.
func NewIdentityFromUser(user *User) Identity {
	return userIdentity{user: user}
}

func (u userIdentity) ID() string {
	if u.user == nil {
		return ""
	}
	return u.user.ID.String()
}

func (u userIdentity) Email() string {
	if u.user == nil {
		return ""
	}
	return u.user.Email
}

func (u userIdentity) Role() string {
	if u.user == nil {
		return ""
	}
	return string(u.user.Role)
}

// Status lets status-aware consumers block suspended identities.
func (u userIdentity) Status() UserStatus {
	if u.user == nil {
		return ""
	}
	return u.user.Status
}
