package users_test

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-users"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"
)

// MockUsers mocks the directory methods the services exercise. The embedded
// interface panics on anything not explicitly stubbed.
type MockUsers struct {
	mock.Mock
	users.Users
}

func (m *MockUsers) GetByID(ctx context.Context, id string) (*users.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*users.User)
	return user, args.Error(1)
}

func (m *MockUsers) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	args := m.Called(ctx, email)
	user, _ := args.Get(0).(*users.User)
	return user, args.Error(1)
}

func (m *MockUsers) List(ctx context.Context, filters users.ListFilters) ([]*users.User, error) {
	args := m.Called(ctx, filters)
	records, _ := args.Get(0).([]*users.User)
	return records, args.Error(1)
}

func (m *MockUsers) Create(ctx context.Context, record *users.User, criteria ...repository.InsertCriteria) (*users.User, error) {
	args := m.Called(ctx, record)
	user, _ := args.Get(0).(*users.User)
	return user, args.Error(1)
}

func (m *MockUsers) Save(ctx context.Context, record *users.User) (*users.User, error) {
	args := m.Called(ctx, record)
	user, _ := args.Get(0).(*users.User)
	return user, args.Error(1)
}

func (m *MockUsers) UpdateStatus(ctx context.Context, id uuid.UUID, status users.UserStatus, opts ...users.StatusUpdateOption) (*users.User, error) {
	args := m.Called(ctx, id, status)
	user, _ := args.Get(0).(*users.User)
	return user, args.Error(1)
}

func (m *MockUsers) TrackSuccessfulLogin(ctx context.Context, user *users.User, at time.Time) error {
	args := m.Called(ctx, user, at)
	return args.Error(0)
}

// MockAuditLogs mocks the audit store.
type MockAuditLogs struct {
	mock.Mock
}

func (m *MockAuditLogs) Create(ctx context.Context, record *users.AuditLog) (*users.AuditLog, error) {
	args := m.Called(ctx, record)
	log, _ := args.Get(0).(*users.AuditLog)
	return log, args.Error(1)
}

func (m *MockAuditLogs) CreateTx(ctx context.Context, tx bun.IDB, record *users.AuditLog) (*users.AuditLog, error) {
	args := m.Called(ctx, tx, record)
	log, _ := args.Get(0).(*users.AuditLog)
	return log, args.Error(1)
}

func (m *MockAuditLogs) ListRecent(ctx context.Context, limit int) ([]*users.AuditLog, error) {
	args := m.Called(ctx, limit)
	logs, _ := args.Get(0).([]*users.AuditLog)
	return logs, args.Error(1)
}

func (m *MockAuditLogs) ListByEntity(ctx context.Context, entity string, entityID uuid.UUID, limit int) ([]*users.AuditLog, error) {
	args := m.Called(ctx, entity, entityID, limit)
	logs, _ := args.Get(0).([]*users.AuditLog)
	return logs, args.Error(1)
}

func (m *MockAuditLogs) ListByActor(ctx context.Context, actorID uuid.UUID, limit int) ([]*users.AuditLog, error) {
	args := m.Called(ctx, actorID, limit)
	logs, _ := args.Get(0).([]*users.AuditLog)
	return logs, args.Error(1)
}

// MockTokenService mocks token issuance.
type MockTokenService struct {
	mock.Mock
}

func (m *MockTokenService) IssuePair(identity users.Identity) (users.TokenPair, error) {
	args := m.Called(identity)
	pair, _ := args.Get(0).(users.TokenPair)
	return pair, args.Error(1)
}

func (m *MockTokenService) Validate(tokenString string) (users.AuthClaims, error) {
	args := m.Called(tokenString)
	claims, _ := args.Get(0).(users.AuthClaims)
	return claims, args.Error(1)
}

func (m *MockTokenService) Refresh(refreshToken string) (users.TokenPair, error) {
	args := m.Called(refreshToken)
	pair, _ := args.Get(0).(users.TokenPair)
	return pair, args.Error(1)
}

// recordingAudit captures emitted entries for assertions.
type recordingAudit struct {
	mu      sync.Mutex
	entries []users.AuditEntry
}

func (r *recordingAudit) Record(ctx context.Context, entry users.AuditEntry) *users.AuditLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return &users.AuditLog{
		ActorID:   entry.Actor,
		Action:    entry.Action,
		Entity:    entry.Entity,
		EntityID:  entry.EntityID,
		Metadata:  entry.Metadata,
		IPAddress: entry.IPAddress,
	}
}

func (r *recordingAudit) Entries() []users.AuditEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]users.AuditEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

func (r *recordingAudit) ByAction(action users.AuditAction) []users.AuditEntry {
	var out []users.AuditEntry
	for _, entry := range r.Entries() {
		if entry.Action == action {
			out = append(out, entry)
		}
	}
	return out
}

// stubManager satisfies RepositoryManager over the test doubles.
type stubManager struct {
	users     users.Users
	auditLogs users.AuditLogs
}

func (s *stubManager) Validate() error { return nil }
func (s *stubManager) MustValidate()   {}

func (s *stubManager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	return f(ctx, bun.Tx{})
}

func (s *stubManager) Users() users.Users         { return s.users }
func (s *stubManager) AuditLogs() users.AuditLogs { return s.auditLogs }

// fakeHasher avoids bcrypt cost in tests.
type fakeHasher struct{}

func (fakeHasher) HashPassword(password string) (string, error) {
	if password == "" {
		return "", users.ErrNoEmptyString
	}
	return "hashed:" + password, nil
}

func (fakeHasher) ComparePasswordAndHash(password, hash string) error {
	if "hashed:"+password == hash {
		return nil
	}
	return users.ErrMismatchedHashAndPassword
}

// testLogger drops all output.
type testLogger struct{}

func (testLogger) Debug(string, ...any) {}
func (testLogger) Info(string, ...any)  {}
func (testLogger) Warn(string, ...any)  {}
func (testLogger) Error(string, ...any) {}
