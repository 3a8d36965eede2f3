package users

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AuditAction is a code from the closed audit vocabulary.
type AuditAction string

const (
	ActionLoginSuccess       AuditAction = "LOGIN_SUCCESS"
	ActionLoginFailed        AuditAction = "LOGIN_FAILED"
	ActionUserRegistered     AuditAction = "USER_REGISTERED"
	ActionUserCreatedByAdmin AuditAction = "USER_CREATED_BY_ADMIN"
	ActionUserUpdatedByAdmin AuditAction = "USER_UPDATED_BY_ADMIN"
	ActionUserUpdatedSelf    AuditAction = "USER_UPDATED_SELF"
	ActionUserSuspended      AuditAction = "USER_SUSPENDED"
	ActionUserActivated      AuditAction = "USER_ACTIVATED"
)

// EntityUser is the entity label for user-directed audit events.
const EntityUser = "User"

// AuditEntry captures audit-friendly information about an action before it is
// persisted. Actor is optional: system-originated events carry no actor.
type AuditEntry struct {
	Actor      *uuid.UUID
	Action     AuditAction
	Entity     string
	EntityID   *uuid.UUID
	Metadata   map[string]any
	IPAddress  string
	OccurredAt time.Time
}

// AuditLogger consumes audit entries. Record never propagates failures to the
// caller: it returns the persisted log, or nil when the entry was skipped or
// persistence failed. Failures surface only through the logger.
type AuditLogger interface {
	Record(ctx context.Context, entry AuditEntry) *AuditLog
}

// AuditLoggerFunc adapts a function to the AuditLogger interface.
type AuditLoggerFunc func(ctx context.Context, entry AuditEntry) *AuditLog

// Record implements AuditLogger.
func (f AuditLoggerFunc) Record(ctx context.Context, entry AuditEntry) *AuditLog {
	if f == nil {
		return nil
	}
	return f(ctx, entry)
}

type noopAuditLogger struct{}

func (noopAuditLogger) Record(context.Context, AuditEntry) *AuditLog {
	return nil
}

func normalizeAuditLogger(l AuditLogger) AuditLogger {
	if l == nil {
		return noopAuditLogger{}
	}
	return l
}

// RepoAuditLogger persists audit entries through the AuditLogs repository.
type RepoAuditLogger struct {
	repo   AuditLogs
	logger Logger
	now    func() time.Time
}

// NewAuditLogger returns the default repository-backed audit logger.
func NewAuditLogger(repo AuditLogs) *RepoAuditLogger {
	return &RepoAuditLogger{
		repo:   repo,
		logger: defLogger{},
		now:    time.Now,
	}
}

// WithLogger overrides the logger used to report skipped or failed entries.
func (a *RepoAuditLogger) WithLogger(logger Logger) *RepoAuditLogger {
	if logger != nil {
		a.logger = logger
	}
	return a
}

// WithClock injects a custom clock (useful for tests).
func (a *RepoAuditLogger) WithClock(clock func() time.Time) *RepoAuditLogger {
	if clock != nil {
		a.now = clock
	}
	return a
}

// Record validates and persists the entry. Action and Entity are required;
// entries missing either are skipped with a warning. Persistence errors are
// swallowed so auditing can never break the primary operation.
func (a *RepoAuditLogger) Record(ctx context.Context, entry AuditEntry) *AuditLog {
	if entry.Action == "" || entry.Entity == "" {
		a.logger.Warn("audit entry skipped, missing action or entity",
			"action", entry.Action, "entity", entry.Entity)
		return nil
	}

	occurred := entry.OccurredAt
	if occurred.IsZero() {
		occurred = a.now()
	}

	metadata := entry.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	record := &AuditLog{
		ActorID:   entry.Actor,
		Action:    entry.Action,
		Entity:    entry.Entity,
		EntityID:  entry.EntityID,
		Metadata:  metadata,
		IPAddress: entry.IPAddress,
		CreatedAt: &occurred,
	}

	created, err := a.repo.Create(ctx, record)
	if err != nil {
		a.logger.Error("audit entry persist error",
			"action", entry.Action, "entity", entry.Entity, "error", err)
		return nil
	}

	return created
}

var _ AuditLogger = (*RepoAuditLogger)(nil)

func actorRef(u *User) *uuid.UUID {
	if u == nil || u.ID == uuid.Nil {
		return nil
	}
	id := u.ID
	return &id
}

func entityRef(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
