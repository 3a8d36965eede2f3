package users_test

import (
	"context"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-users"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func validRegisterMessage() users.RegisterUserMessage {
	return users.RegisterUserMessage{
		FullName:  "Maria Gomez",
		IDType:    "CC",
		IDNumber:  "1020304050",
		BirthDate: "1990-05-10",
		Phone:     "3001234567",
		Address:   "Calle 10 # 5-20",
		Email:     "Maria.Gomez@Example.com",
		Password:  "sup3r-secret",
	}
}

func newLifecycle(repo *MockUsers, audit users.AuditLogger) *users.LifecycleService {
	return users.NewLifecycleService(&stubManager{users: repo}).
		WithAuditLogger(audit).
		WithPasswordAuthenticator(fakeHasher{}).
		WithLogger(testLogger{})
}

func TestRegisterCreatesActiveClient(t *testing.T) {
	ctx := context.Background()
	repo := &MockUsers{}
	audit := &recordingAudit{}

	created := &users.User{
		ID:     uuid.New(),
		Email:  "maria.gomez@example.com",
		Role:   users.RoleClient,
		Status: users.UserStatusActive,
	}

	repo.On("Create", mock.Anything, mock.AnythingOfType("*users.User")).
		Run(func(args mock.Arguments) {
			record := args.Get(1).(*users.User)
			assert.Equal(t, users.RoleClient, record.Role)
			assert.Equal(t, users.UserStatusActive, record.Status)
			assert.Equal(t, "maria.gomez@example.com", record.Email)
			assert.Equal(t, "hashed:sup3r-secret", record.PasswordHash)
			require.NotNil(t, record.BirthDate)
			assert.Equal(t, 1990, record.BirthDate.Year())
		}).
		Return(created, nil).Once()

	svc := newLifecycle(repo, audit)

	user, err := svc.Register(ctx, validRegisterMessage(), "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, user.ID)

	events := audit.ByAction(users.ActionUserRegistered)
	require.Len(t, events, 1)
	assert.Equal(t, "maria.gomez@example.com", events[0].Metadata["email"])
	assert.Equal(t, "10.0.0.1", events[0].IPAddress)
	require.NotNil(t, events[0].Actor)
	assert.Equal(t, created.ID, *events[0].Actor)

	repo.AssertExpectations(t)
}

func TestRegisterRejectsInvalidPayload(t *testing.T) {
	repo := &MockUsers{}
	audit := &recordingAudit{}
	svc := newLifecycle(repo, audit)

	msg := validRegisterMessage()
	msg.Password = "short"

	_, err := svc.Register(context.Background(), msg, "")
	require.Error(t, err)

	var richErr *goerrors.Error
	require.ErrorAs(t, err, &richErr)
	assert.Equal(t, goerrors.CategoryValidation, richErr.Category)

	assert.Empty(t, audit.Entries())
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRegisterSurfacesDuplicateEmail(t *testing.T) {
	repo := &MockUsers{}
	audit := &recordingAudit{}

	repo.On("Create", mock.Anything, mock.Anything).
		Return(nil, users.ErrDuplicateEmail).Once()

	svc := newLifecycle(repo, audit)

	_, err := svc.Register(context.Background(), validRegisterMessage(), "")
	require.Error(t, err)

	var richErr *goerrors.Error
	require.ErrorAs(t, err, &richErr)
	assert.Equal(t, users.TextCodeDuplicateEmail, richErr.TextCode)
	assert.Empty(t, audit.ByAction(users.ActionUserRegistered))
}

func TestCreateByAdminRequiresAdminRole(t *testing.T) {
	repo := &MockUsers{}
	audit := &recordingAudit{}
	svc := newLifecycle(repo, audit)

	supervisor := userWithRole(users.RoleSupervisor)

	msg := users.CreateUserMessage{
		RegisterUserMessage: validRegisterMessage(),
		Role:                "SUPERVISOR",
	}

	_, err := svc.CreateByAdmin(context.Background(), msg, supervisor, "")
	require.Error(t, err)

	var richErr *goerrors.Error
	require.ErrorAs(t, err, &richErr)
	assert.Equal(t, users.TextCodePermissionDenied, richErr.TextCode)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateByAdminHonorsRoleAndStatus(t *testing.T) {
	ctx := context.Background()
	repo := &MockUsers{}
	audit := &recordingAudit{}
	admin := userWithRole(users.RoleAdmin)

	created := &users.User{
		ID:     uuid.New(),
		Email:  "maria.gomez@example.com",
		Role:   users.RoleSupervisor,
		Status: users.UserStatusSuspended,
	}

	repo.On("Create", mock.Anything, mock.AnythingOfType("*users.User")).
		Run(func(args mock.Arguments) {
			record := args.Get(1).(*users.User)
			assert.Equal(t, users.RoleSupervisor, record.Role)
			assert.Equal(t, users.UserStatusSuspended, record.Status)
		}).
		Return(created, nil).Once()

	svc := newLifecycle(repo, audit)

	msg := users.CreateUserMessage{
		RegisterUserMessage: validRegisterMessage(),
		Role:                "SUPERVISOR",
		Status:              "SUSPENDED",
	}

	user, err := svc.CreateByAdmin(ctx, msg, admin, "10.1.1.1")
	require.NoError(t, err)
	assert.Equal(t, users.RoleSupervisor, user.Role)

	events := audit.ByAction(users.ActionUserCreatedByAdmin)
	require.Len(t, events, 1)
	assert.Equal(t, admin.ID.String(), events[0].Metadata["created_by"])
	repo.AssertExpectations(t)
}

func TestUpdateByAdminDiffsSensitiveFields(t *testing.T) {
	ctx := context.Background()
	repo := &MockUsers{}
	audit := &recordingAudit{}
	admin := userWithRole(users.RoleAdmin)

	targetID := uuid.New()
	target := &users.User{
		ID:     targetID,
		Email:  "old@example.com",
		Role:   users.RoleClient,
		Status: users.UserStatusActive,
	}

	repo.On("GetByID", mock.Anything, targetID.String()).Return(target, nil).Once()
	repo.On("Save", mock.Anything, mock.AnythingOfType("*users.User")).Return(nil, nil).Once()

	svc := newLifecycle(repo, audit)

	updated, err := svc.UpdateByAdmin(ctx, targetID.String(), map[string]any{
		"role":          "SUPERVISOR",
		"email_primary": "New@Example.com",
		"full_name":     "Renamed",
	}, admin, "")
	require.NoError(t, err)
	assert.Equal(t, users.RoleSupervisor, updated.Role)
	assert.Equal(t, "new@example.com", updated.Email)

	events := audit.ByAction(users.ActionUserUpdatedByAdmin)
	require.Len(t, events, 1)

	changes, ok := events[0].Metadata["changes"].(map[string]any)
	require.True(t, ok)

	roleDiff, ok := changes["role"].(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "CLIENT", roleDiff["old"])
	assert.Equal(t, "SUPERVISOR", roleDiff["new"])

	emailDiff, ok := changes["email_primary"].(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "old@example.com", emailDiff["old"])
	assert.Equal(t, "new@example.com", emailDiff["new"])

	_, hasStatus := changes["status"]
	assert.False(t, hasStatus)

	repo.AssertExpectations(t)
}

func TestUpdateByAdminRejectsImmutableFields(t *testing.T) {
	repo := &MockUsers{}
	audit := &recordingAudit{}
	admin := userWithRole(users.RoleAdmin)

	svc := newLifecycle(repo, audit)

	_, err := svc.UpdateByAdmin(context.Background(), uuid.NewString(), map[string]any{
		"id": uuid.NewString(),
	}, admin, "")
	require.Error(t, err)

	var richErr *goerrors.Error
	require.ErrorAs(t, err, &richErr)
	assert.Equal(t, users.TextCodeImmutableFields, richErr.TextCode)
	repo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestUpdateSelfRejectsProhibitedFieldsAtomically(t *testing.T) {
	repo := &MockUsers{}
	audit := &recordingAudit{}
	client := userWithRole(users.RoleClient)

	svc := newLifecycle(repo, audit)

	_, err := svc.UpdateSelf(context.Background(), client, map[string]any{
		"full_name": "New Name",
		"role":      "ADMIN",
	}, "")
	require.Error(t, err)

	var richErr *goerrors.Error
	require.ErrorAs(t, err, &richErr)
	assert.Equal(t, users.TextCodeProhibitedFields, richErr.TextCode)
	assert.Equal(t, []string{"role"}, richErr.Metadata["fields"])

	// nothing applied, nothing persisted, nothing audited
	assert.NotEqual(t, "New Name", client.FullName)
	repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	assert.Empty(t, audit.Entries())
}

func TestUpdateSelfWithNoUpdatableFields(t *testing.T) {
	repo := &MockUsers{}
	audit := &recordingAudit{}
	client := userWithRole(users.RoleClient)

	svc := newLifecycle(repo, audit)

	_, err := svc.UpdateSelf(context.Background(), client, map[string]any{
		"unknown_field": "value",
	}, "")
	require.Error(t, err)

	var richErr *goerrors.Error
	require.ErrorAs(t, err, &richErr)
	assert.Equal(t, users.TextCodeNoUpdatableFields, richErr.TextCode)
}

func TestUpdateSelfAppliesAllowedFields(t *testing.T) {
	repo := &MockUsers{}
	audit := &recordingAudit{}
	client := userWithRole(users.RoleClient)
	client.FullName = "Old Name"

	repo.On("Save", mock.Anything, mock.AnythingOfType("*users.User")).Return(nil, nil).Once()

	svc := newLifecycle(repo, audit)

	updated, err := svc.UpdateSelf(context.Background(), client, map[string]any{
		"full_name": "New Name",
		"phone":     "3007654321",
		"password":  "brand-new-pass",
	}, "172.16.0.9")
	require.NoError(t, err)
	assert.Equal(t, "New Name", updated.FullName)
	assert.Equal(t, "hashed:brand-new-pass", updated.PasswordHash)

	events := audit.ByAction(users.ActionUserUpdatedSelf)
	require.Len(t, events, 1)
	assert.Equal(t, []string{"full_name", "phone"}, events[0].Metadata["updated_fields"])
	assert.Equal(t, true, events[0].Metadata["password_changed"])
	assert.Equal(t, "172.16.0.9", events[0].IPAddress)

	repo.AssertExpectations(t)
}

func TestSuspendTransitionsAndAudits(t *testing.T) {
	ctx := context.Background()
	repo := &MockUsers{}
	audit := &recordingAudit{}
	admin := userWithRole(users.RoleAdmin)

	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	targetID := uuid.New()
	target := &users.User{
		ID:     targetID,
		Email:  "client@example.com",
		Role:   users.RoleClient,
		Status: users.UserStatusActive,
	}

	repo.On("GetByID", mock.Anything, targetID.String()).Return(target, nil).Once()
	repo.On("UpdateStatus", mock.Anything, targetID, users.UserStatusSuspended).
		Return(&users.User{ID: targetID, Status: users.UserStatusSuspended, SuspendedAt: &now}, nil).Once()

	svc := newLifecycle(repo, audit).WithClock(func() time.Time { return now })

	updated, err := svc.Suspend(ctx, targetID.String(), admin, "10.9.9.9")
	require.NoError(t, err)
	assert.True(t, updated.IsSuspended())

	events := audit.ByAction(users.ActionUserSuspended)
	require.Len(t, events, 1)
	assert.Equal(t, "client@example.com", events[0].Metadata["suspended_user_email"])
	assert.Equal(t, admin.ID.String(), events[0].Metadata["suspended_by"])

	repo.AssertExpectations(t)
}

func TestSuspendIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := &MockUsers{}
	audit := &recordingAudit{}
	admin := userWithRole(users.RoleAdmin)

	targetID := uuid.New()
	target := &users.User{
		ID:     targetID,
		Status: users.UserStatusSuspended,
	}

	repo.On("GetByID", mock.Anything, targetID.String()).Return(target, nil).Once()

	svc := newLifecycle(repo, audit)

	updated, err := svc.Suspend(ctx, targetID.String(), admin, "")
	require.NoError(t, err)
	assert.True(t, updated.IsSuspended())

	assert.Empty(t, audit.ByAction(users.ActionUserSuspended))
	repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestActivateClearsSuspension(t *testing.T) {
	ctx := context.Background()
	repo := &MockUsers{}
	audit := &recordingAudit{}
	admin := userWithRole(users.RoleAdmin)

	suspendedAt := time.Now().Add(-24 * time.Hour)
	targetID := uuid.New()
	target := &users.User{
		ID:          targetID,
		Email:       "client@example.com",
		Status:      users.UserStatusSuspended,
		SuspendedAt: &suspendedAt,
	}

	repo.On("GetByID", mock.Anything, targetID.String()).Return(target, nil).Once()
	repo.On("UpdateStatus", mock.Anything, targetID, users.UserStatusActive).
		Return(&users.User{ID: targetID, Status: users.UserStatusActive}, nil).Once()

	svc := newLifecycle(repo, audit)

	updated, err := svc.Activate(ctx, targetID.String(), admin, "")
	require.NoError(t, err)
	assert.True(t, updated.IsActive())
	assert.Nil(t, updated.SuspendedAt)

	events := audit.ByAction(users.ActionUserActivated)
	require.Len(t, events, 1)
	assert.Equal(t, admin.ID.String(), events[0].Metadata["activated_by"])

	repo.AssertExpectations(t)
}

func TestSuspendRequiresAdmin(t *testing.T) {
	repo := &MockUsers{}
	audit := &recordingAudit{}
	supervisor := userWithRole(users.RoleSupervisor)

	svc := newLifecycle(repo, audit)

	_, err := svc.Suspend(context.Background(), uuid.NewString(), supervisor, "")
	require.Error(t, err)

	var richErr *goerrors.Error
	require.ErrorAs(t, err, &richErr)
	assert.Equal(t, users.TextCodePermissionDenied, richErr.TextCode)
	repo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}
