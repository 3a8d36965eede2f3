package users_test

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-users"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestAuditLoggerPersistsEntry(t *testing.T) {
	ctx := context.Background()
	repo := &MockAuditLogs{}
	now := time.Date(2025, 2, 10, 8, 30, 0, 0, time.UTC)

	actorID := uuid.New()
	entityID := uuid.New()

	repo.On("Create", mock.Anything, mock.AnythingOfType("*users.AuditLog")).
		Run(func(args mock.Arguments) {
			record := args.Get(1).(*users.AuditLog)
			assert.Equal(t, users.ActionUserSuspended, record.Action)
			assert.Equal(t, users.EntityUser, record.Entity)
			require.NotNil(t, record.CreatedAt)
			assert.Equal(t, now, *record.CreatedAt)
			assert.NotNil(t, record.Metadata)
		}).
		Return(&users.AuditLog{ID: uuid.New()}, nil).Once()

	logger := users.NewAuditLogger(repo).
		WithLogger(testLogger{}).
		WithClock(func() time.Time { return now })

	log := logger.Record(ctx, users.AuditEntry{
		Actor:    &actorID,
		Action:   users.ActionUserSuspended,
		Entity:   users.EntityUser,
		EntityID: &entityID,
	})
	require.NotNil(t, log)
	repo.AssertExpectations(t)
}

func TestAuditLoggerSkipsEmptyAction(t *testing.T) {
	repo := &MockAuditLogs{}
	logger := users.NewAuditLogger(repo).WithLogger(testLogger{})

	log := logger.Record(context.Background(), users.AuditEntry{
		Entity: users.EntityUser,
	})
	assert.Nil(t, log)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestAuditLoggerSkipsEmptyEntity(t *testing.T) {
	repo := &MockAuditLogs{}
	logger := users.NewAuditLogger(repo).WithLogger(testLogger{})

	log := logger.Record(context.Background(), users.AuditEntry{
		Action: users.ActionLoginSuccess,
	})
	assert.Nil(t, log)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestAuditLoggerSwallowsPersistFailure(t *testing.T) {
	repo := &MockAuditLogs{}
	repo.On("Create", mock.Anything, mock.Anything).
		Return(nil, assert.AnError).Once()

	logger := users.NewAuditLogger(repo).WithLogger(testLogger{})

	log := logger.Record(context.Background(), users.AuditEntry{
		Action: users.ActionLoginFailed,
		Entity: users.EntityUser,
	})
	assert.Nil(t, log)
	repo.AssertExpectations(t)
}

func TestAuditLoggerFuncAdapterAndNil(t *testing.T) {
	var called bool
	fn := users.AuditLoggerFunc(func(ctx context.Context, entry users.AuditEntry) *users.AuditLog {
		called = true
		return &users.AuditLog{Action: entry.Action}
	})

	log := fn.Record(context.Background(), users.AuditEntry{Action: users.ActionLoginSuccess})
	assert.True(t, called)
	require.NotNil(t, log)
	assert.Equal(t, users.ActionLoginSuccess, log.Action)

	var nilFn users.AuditLoggerFunc
	assert.Nil(t, nilFn.Record(context.Background(), users.AuditEntry{}))
}
