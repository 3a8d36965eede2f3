package users

import (
	"context"
	"sort"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
)

// LifecycleService orchestrates registration, profile updates, and the
// suspension workflow. Every mutating operation is gated through the policy
// and emits a best-effort audit event.
//
// Concurrent admin edits to the same record are not serialized: single-record
// writes are atomic at the storage layer and last-write-wins, with the audit
// trail recording every edit.
type LifecycleService struct {
	repo   RepositoryManager
	policy Policy
	hasher PasswordAuthenticator
	audit  AuditLogger
	logger Logger
	now    func() time.Time
}

// NewLifecycleService returns a lifecycle service over the given repositories.
func NewLifecycleService(repo RepositoryManager) *LifecycleService {
	return &LifecycleService{
		repo:   repo,
		policy: NewPolicy(),
		hasher: BcryptHasher{},
		audit:  noopAuditLogger{},
		logger: defLogger{},
		now:    time.Now,
	}
}

// WithAuditLogger configures the audit sink for lifecycle events.
func (s *LifecycleService) WithAuditLogger(audit AuditLogger) *LifecycleService {
	s.audit = normalizeAuditLogger(audit)
	return s
}

// WithLogger overrides the logger.
func (s *LifecycleService) WithLogger(logger Logger) *LifecycleService {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithPasswordAuthenticator overrides the credential hasher.
func (s *LifecycleService) WithPasswordAuthenticator(hasher PasswordAuthenticator) *LifecycleService {
	if hasher != nil {
		s.hasher = hasher
	}
	return s
}

// WithClock injects a custom clock (useful for tests).
func (s *LifecycleService) WithClock(clock func() time.Time) *LifecycleService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// Register creates a new active client account. The primary email is
// normalized to lowercase; duplicates surface as ErrDuplicateEmail /
// ErrDuplicateIdentity.
func (s *LifecycleService) Register(ctx context.Context, msg RegisterUserMessage, ip string) (*User, error) {
	if err := msg.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid registration payload").
			WithCode(goerrors.CodeBadRequest)
	}

	user, err := s.buildUser(msg, RoleClient, UserStatusActive)
	if err != nil {
		return nil, err
	}

	created, err := s.repo.Users().Create(ctx, user)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, AuditEntry{
		Actor:    actorRef(created),
		Action:   ActionUserRegistered,
		Entity:   EntityUser,
		EntityID: entityRef(created.ID),
		Metadata: map[string]any{
			"email": created.Email,
			"role":  created.Role,
		},
		IPAddress: ip,
	})

	s.logger.Info("user registered", "email", created.Email)
	return created, nil
}

// CreateByAdmin creates a user with an explicit role and status. Admin only.
func (s *LifecycleService) CreateByAdmin(ctx context.Context, msg CreateUserMessage, actor *User, ip string) (*User, error) {
	if err := s.policy.Authorize(actor, OpCreateUser, nil); err != nil {
		return nil, err
	}

	if err := msg.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid user payload").
			WithCode(goerrors.CodeBadRequest)
	}

	role := UserRole(msg.Role)
	status := UserStatus(msg.Status)
	if status == "" {
		status = UserStatusActive
	}

	user, err := s.buildUser(msg.RegisterUserMessage, role, status)
	if err != nil {
		return nil, err
	}

	created, err := s.repo.Users().Create(ctx, user)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, AuditEntry{
		Actor:    actorRef(actor),
		Action:   ActionUserCreatedByAdmin,
		Entity:   EntityUser,
		EntityID: entityRef(created.ID),
		Metadata: map[string]any{
			"created_user_email":  created.Email,
			"created_user_role":   created.Role,
			"created_user_status": created.Status,
			"created_by":          actor.ID.String(),
		},
		IPAddress: ip,
	})

	s.logger.Info("user created by admin", "email", created.Email, "admin", actor.Email)
	return created, nil
}

// UpdateByAdmin applies the provided fields to any user. Admin only. Writes
// to id/created_at fail; changes to role, status, or the primary email are
// diffed into the audit metadata under "changes" with {old,new} pairs.
func (s *LifecycleService) UpdateByAdmin(ctx context.Context, targetID string, changes map[string]any, actor *User, ip string) (*User, error) {
	if err := s.policy.Authorize(actor, OpUpdateUser, nil); err != nil {
		return nil, err
	}

	if err := s.policy.ValidateAdminUpdate(changes); err != nil {
		return nil, err
	}

	target, err := s.repo.Users().GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}

	old := map[string]string{
		"role":          string(target.Role),
		"status":        string(target.Status),
		"email_primary": target.Email,
	}

	if _, err := s.applyChanges(target, changes, false); err != nil {
		return nil, err
	}

	updated, err := s.persist(ctx, target)
	if err != nil {
		return nil, err
	}

	metadata := map[string]any{
		"updated_user_id":    updated.ID.String(),
		"updated_user_email": updated.Email,
		"updated_by":         actor.ID.String(),
	}

	diff := map[string]any{}
	if old["role"] != string(updated.Role) {
		diff["role"] = map[string]string{"old": old["role"], "new": string(updated.Role)}
	}
	if old["status"] != string(updated.Status) {
		diff["status"] = map[string]string{"old": old["status"], "new": string(updated.Status)}
	}
	if old["email_primary"] != updated.Email {
		diff["email_primary"] = map[string]string{"old": old["email_primary"], "new": updated.Email}
	}
	if len(diff) > 0 {
		metadata["changes"] = diff
	}

	s.audit.Record(ctx, AuditEntry{
		Actor:     actorRef(actor),
		Action:    ActionUserUpdatedByAdmin,
		Entity:    EntityUser,
		EntityID:  entityRef(updated.ID),
		Metadata:  metadata,
		IPAddress: ip,
	})

	return updated, nil
}

// UpdateSelf applies the allowed fields to the actor's own record. Payloads
// touching any prohibited field fail atomically: nothing is applied and the
// error names the offending keys.
func (s *LifecycleService) UpdateSelf(ctx context.Context, user *User, changes map[string]any, ip string) (*User, error) {
	if err := s.policy.Authorize(user, OpUpdateSelf, user); err != nil {
		return nil, err
	}

	if err := s.policy.ValidateSelfUpdate(changes); err != nil {
		return nil, err
	}

	allowed := map[string]any{}
	for key, value := range changes {
		if _, ok := SelfEditableFields[key]; ok {
			allowed[key] = value
		}
	}

	if len(allowed) == 0 {
		return nil, ErrNoUpdatableFields
	}

	applied, err := s.applyChanges(user, allowed, true)
	if err != nil {
		return nil, err
	}

	updated, err := s.persist(ctx, user)
	if err != nil {
		return nil, err
	}

	passwordChanged := false
	fields := make([]string, 0, len(applied))
	for _, key := range applied {
		if key == "password" {
			passwordChanged = true
			continue
		}
		fields = append(fields, key)
	}
	sort.Strings(fields)

	metadata := map[string]any{
		"updated_fields": fields,
	}
	if passwordChanged {
		metadata["password_changed"] = true
	}

	s.audit.Record(ctx, AuditEntry{
		Actor:     actorRef(updated),
		Action:    ActionUserUpdatedSelf,
		Entity:    EntityUser,
		EntityID:  entityRef(updated.ID),
		Metadata:  metadata,
		IPAddress: ip,
	})

	return updated, nil
}

// Suspend moves the target to SUSPENDED. Admin only, idempotent: suspending
// an already-suspended user succeeds without emitting a duplicate event.
func (s *LifecycleService) Suspend(ctx context.Context, targetID string, actor *User, ip string) (*User, error) {
	return s.transition(ctx, targetID, actor, ip, UserStatusSuspended, OpSuspendUser, ActionUserSuspended)
}

// Activate reinstates a suspended target. Admin only, idempotent.
func (s *LifecycleService) Activate(ctx context.Context, targetID string, actor *User, ip string) (*User, error) {
	return s.transition(ctx, targetID, actor, ip, UserStatusActive, OpActivateUser, ActionUserActivated)
}

func (s *LifecycleService) transition(ctx context.Context, targetID string, actor *User, ip string, to UserStatus, op Operation, action AuditAction) (*User, error) {
	if err := s.policy.Authorize(actor, op, nil); err != nil {
		return nil, err
	}

	target, err := s.repo.Users().GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}

	if target.Status == to {
		s.logger.Warn("user already in requested status", "email", target.Email, "status", to)
		return target, nil
	}

	opts := []StatusUpdateOption{}
	if to == UserStatusSuspended {
		at := s.now()
		opts = append(opts, WithSuspendedAt(&at))
	} else if target.SuspendedAt != nil {
		opts = append(opts, WithSuspendedAt(nil))
	}

	updated, err := s.repo.Users().UpdateStatus(ctx, target.ID, to, opts...)
	if err != nil {
		return nil, err
	}

	if updated == nil {
		updated = target
		updated.Status = to
	}

	metadataKey := "suspended_by"
	emailKey := "suspended_user_email"
	if action == ActionUserActivated {
		metadataKey = "activated_by"
		emailKey = "activated_user_email"
	}

	s.audit.Record(ctx, AuditEntry{
		Actor:    actorRef(actor),
		Action:   action,
		Entity:   EntityUser,
		EntityID: entityRef(target.ID),
		Metadata: map[string]any{
			emailKey:    target.Email,
			metadataKey: actor.ID.String(),
		},
		IPAddress: ip,
	})

	return updated, nil
}

func (s *LifecycleService) buildUser(msg RegisterUserMessage, role UserRole, status UserStatus) (*User, error) {
	hash, err := s.hasher.HashPassword(msg.Password)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	birthDate, err := msg.birthDate()
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid birth date").
			WithCode(goerrors.CodeBadRequest)
	}

	user := &User{
		FullName:        msg.FullName,
		IDType:          IDType(msg.IDType),
		IDNumber:        msg.IDNumber,
		BirthDate:       birthDate,
		Phone:           msg.Phone,
		Address:         msg.Address,
		ProfilePhotoURL: msg.ProfilePhotoURL,
		Email:           NormalizeEmail(msg.Email),
		EmailSecondary:  NormalizeEmail(msg.EmailSecondary),
		Role:            role,
		Status:          status,
		PasswordHash:    hash,
	}

	if msg.UseHashid {
		if id, err := hashid.NewUUID(user.Email); err == nil {
			user.ID = id
		}
	}

	return user, nil
}

// applyChanges mutates the record with the provided fields and returns the
// keys that were applied. Unknown keys are skipped. selfOnly restricts
// application to the self-editable set.
func (s *LifecycleService) applyChanges(user *User, changes map[string]any, selfOnly bool) ([]string, error) {
	applied := make([]string, 0, len(changes))

	for key, raw := range changes {
		if selfOnly {
			if _, ok := SelfEditableFields[key]; !ok {
				continue
			}
		}

		switch key {
		case "full_name":
			value, ok := stringValue(raw)
			if !ok {
				return nil, s.badField(key)
			}
			user.FullName = value
		case "phone":
			value, ok := stringValue(raw)
			if !ok {
				return nil, s.badField(key)
			}
			user.Phone = value
		case "address":
			value, ok := stringValue(raw)
			if !ok {
				return nil, s.badField(key)
			}
			user.Address = value
		case "email_secondary":
			value, ok := stringValue(raw)
			if !ok {
				return nil, s.badField(key)
			}
			user.EmailSecondary = NormalizeEmail(value)
		case "profile_photo_url":
			value, ok := stringValue(raw)
			if !ok {
				return nil, s.badField(key)
			}
			user.ProfilePhotoURL = value
		case "password":
			value, ok := stringValue(raw)
			if !ok || value == "" {
				return nil, s.badField(key)
			}
			hash, err := s.hasher.HashPassword(value)
			if err != nil {
				return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
			}
			user.PasswordHash = hash
		case "email_primary":
			value, ok := stringValue(raw)
			if !ok {
				return nil, s.badField(key)
			}
			user.Email = NormalizeEmail(value)
		case "id_type":
			value, ok := stringValue(raw)
			if !ok {
				return nil, s.badField(key)
			}
			idType, valid := ParseIDType(value)
			if !valid {
				return nil, s.badField(key)
			}
			user.IDType = idType
		case "id_number":
			value, ok := stringValue(raw)
			if !ok {
				return nil, s.badField(key)
			}
			user.IDNumber = value
		case "birth_date":
			value, ok := stringValue(raw)
			if !ok {
				return nil, s.badField(key)
			}
			t, err := time.Parse(BirthDateLayout, value)
			if err != nil {
				return nil, s.badField(key)
			}
			user.BirthDate = &t
		case "role":
			value, ok := stringValue(raw)
			if !ok {
				return nil, s.badField(key)
			}
			role, valid := ParseRole(value)
			if !valid {
				return nil, s.badField(key)
			}
			user.Role = role
		case "status":
			value, ok := stringValue(raw)
			if !ok {
				return nil, s.badField(key)
			}
			status, valid := ParseStatus(value)
			if !valid {
				return nil, s.badField(key)
			}
			user.Status = status
		default:
			continue
		}

		applied = append(applied, key)
	}

	return applied, nil
}

func (s *LifecycleService) persist(ctx context.Context, user *User) (*User, error) {
	now := s.now()
	user.UpdatedAt = &now

	updated, err := s.repo.Users().Save(ctx, user)
	if err != nil {
		return nil, err
	}

	if updated == nil {
		return user, nil
	}

	return updated, nil
}

func (s *LifecycleService) badField(key string) error {
	return goerrors.New("invalid value for field", goerrors.CategoryValidation).
		WithCode(goerrors.CodeBadRequest).
		WithMetadata(map[string]any{"field": key})
}

func stringValue(raw any) (string, bool) {
	switch v := raw.(type) {
	case string:
		return v, true
	case nil:
		return "", true
	default:
		return "", false
	}
}
