package users

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// IDType is the kind of identity document a user registered with
type IDType string

const (
	// IDTypeCC is a citizenship card
	IDTypeCC IDType = "CC"
	// IDTypeCE is a foreigner card
	IDTypeCE IDType = "CE"
	// IDTypeNIT is a tax identification number
	IDTypeNIT IDType = "NIT"
	// IDTypePassport is a passport
	IDTypePassport IDType = "PASSPORT"
	// IDTypeTI is a minor identity card
	IDTypeTI IDType = "TI"
)

// IsValid checks if the id type is part of the closed set
func (t IDType) IsValid() bool {
	switch t {
	case IDTypeCC, IDTypeCE, IDTypeNIT, IDTypePassport, IDTypeTI:
		return true
	default:
		return false
	}
}

// ParseIDType safely parses a string into an IDType
func ParseIDType(s string) (IDType, bool) {
	t := IDType(s)
	return t, t.IsValid()
}

// User is the user model
type User struct {
	bun.BaseModel   `bun:"table:users,alias:usr"`
	ID              uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	FullName        string     `bun:"full_name,notnull" json:"full_name,omitempty"`
	IDType          IDType     `bun:"id_type,notnull,unique:usr_identity" json:"id_type,omitempty"`
	IDNumber        string     `bun:"id_number,notnull,unique:usr_identity" json:"id_number,omitempty"`
	BirthDate       *time.Time `bun:"birth_date" json:"birth_date,omitempty"`
	Phone           string     `bun:"phone,notnull" json:"phone,omitempty"`
	Address         string     `bun:"address" json:"address,omitempty"`
	ProfilePhotoURL string     `bun:"profile_photo_url" json:"profile_photo_url,omitempty"`
	Email           string     `bun:"email_primary,notnull,unique" json:"email_primary,omitempty"`
	EmailSecondary  string     `bun:"email_secondary" json:"email_secondary,omitempty"`
	Role            UserRole   `bun:"user_role,notnull" json:"role,omitempty"`
	Status          UserStatus `bun:"status,notnull" json:"status,omitempty"`
	PasswordHash    string     `bun:"password_hash" json:"password_hash,omitempty"`
	SuspendedAt     *time.Time `bun:"suspended_at,nullzero" json:"suspended_at,omitempty"`
	LastLoginAt     *time.Time `bun:"last_login_at,nullzero" json:"last_login_at,omitempty"`
	CreatedAt       *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt       *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// EnsureRole backfills the default role for records created before
// roles were mandatory.
func (u *User) EnsureRole() {
	if u.Role == "" {
		u.Role = RoleClient
	}
}

// EnsureStatus backfills the default status.
func (u *User) EnsureStatus() {
	if u.Status == "" {
		u.Status = UserStatusActive
	}
}

// IsAdmin reports whether the user holds the administrative role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// IsActive reports whether the user may authenticate.
func (u *User) IsActive() bool {
	if u == nil {
		return false
	}
	u.EnsureStatus()
	return u.Status == UserStatusActive
}

// IsSuspended reports whether the user is suspended.
func (u *User) IsSuspended() bool {
	return u != nil && u.Status == UserStatusSuspended
}

// PublicUser is the caller-safe projection of a user record.
type PublicUser struct {
	ID              uuid.UUID  `json:"id"`
	FullName        string     `json:"full_name"`
	IDType          IDType     `json:"id_type"`
	IDNumber        string     `json:"id_number"`
	BirthDate       *time.Time `json:"birth_date,omitempty"`
	Phone           string     `json:"phone"`
	Address         string     `json:"address,omitempty"`
	ProfilePhotoURL string     `json:"profile_photo_url,omitempty"`
	Email           string     `json:"email_primary"`
	EmailSecondary  string     `json:"email_secondary,omitempty"`
	Role            UserRole   `json:"role"`
	Status          UserStatus `json:"status"`
	LastLoginAt     *time.Time `json:"last_login_at,omitempty"`
	CreatedAt       *time.Time `json:"created_at,omitempty"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`
}

// Public returns the projection of the user that is safe to serialize to
// callers. The password hash never leaves the package boundary.
func (u *User) Public() PublicUser {
	if u == nil {
		return PublicUser{}
	}
	u.EnsureRole()
	u.EnsureStatus()
	return PublicUser{
		ID:              u.ID,
		FullName:        u.FullName,
		IDType:          u.IDType,
		IDNumber:        u.IDNumber,
		BirthDate:       u.BirthDate,
		Phone:           u.Phone,
		Address:         u.Address,
		ProfilePhotoURL: u.ProfilePhotoURL,
		Email:           u.Email,
		EmailSecondary:  u.EmailSecondary,
		Role:            u.Role,
		Status:          u.Status,
		LastLoginAt:     u.LastLoginAt,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}

// AuditLog is an append-only record of a sensitive action. ActorID is a weak
// reference: deleting the actor must not delete the log, the entity id and
// metadata remain as the durable record.
type AuditLog struct {
	bun.BaseModel `bun:"table:audit_logs,alias:alog"`
	ID            uuid.UUID      `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	ActorID       *uuid.UUID     `bun:"actor_id,type:uuid" json:"actor_id,omitempty"`
	Action        AuditAction    `bun:"action,notnull" json:"action,omitempty"`
	Entity        string         `bun:"entity,notnull" json:"entity,omitempty"`
	EntityID      *uuid.UUID     `bun:"entity_id,type:uuid" json:"entity_id,omitempty"`
	Metadata      map[string]any `bun:"metadata,type:jsonb" json:"metadata,omitempty"`
	IPAddress     string         `bun:"ip_address" json:"ip_address,omitempty"`
	CreatedAt     *time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// AddMetadata will append information to the metadata attribute
func (l *AuditLog) AddMetadata(key string, val any) *AuditLog {
	if l.Metadata == nil {
		l.Metadata = make(map[string]any)
	}
	l.Metadata[key] = val
	return l
}
