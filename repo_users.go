package users

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ListFilters narrows the user directory listing. Zero values mean "no
// filter"; Search is an OR-combined, case-insensitive substring match.
type ListFilters struct {
	Role   UserRole
	Status UserStatus
	Search string
	Limit  int
	Offset int
}

// Users is the user directory storage abstraction. It enforces the
// uniqueness invariants at write time and surfaces violations as domain
// errors, never raw storage errors.
type Users interface {
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, filters ListFilters) ([]*User, error)

	Create(ctx context.Context, record *User, criteria ...repository.InsertCriteria) (*User, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error)

	UpdateStatus(ctx context.Context, id uuid.UUID, status UserStatus, opts ...StatusUpdateOption) (*User, error)
	UpdateStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status UserStatus, opts ...StatusUpdateOption) (*User, error)

	Save(ctx context.Context, record *User) (*User, error)
	SaveTx(ctx context.Context, tx bun.IDB, record *User) (*User, error)

	TrackSuccessfulLogin(ctx context.Context, user *User, at time.Time) error
	TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, user *User, at time.Time) error
}

type usersRepo struct {
	repository.Repository[*User]
	db *bun.DB
}

var _ Users = (*usersRepo)(nil)

// NewUsersRepository builds the bun-backed user directory.
func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email_primary"
		},
	})

	return &usersRepo{
		Repository: repo,
		db:         db,
	}
}

func (a *usersRepo) GetByID(ctx context.Context, id string) (*User, error) {
	uid, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return nil, ErrUserNotFound.Clone().WithMetadata(map[string]any{"id": id})
	}

	record := &User{}
	err = a.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", uid).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrUserNotFound.Clone().WithMetadata(map[string]any{"id": id})
		}
		return nil, err
	}

	record.EnsureRole()
	record.EnsureStatus()
	return record, nil
}

func (a *usersRepo) GetByEmail(ctx context.Context, email string) (*User, error) {
	normalized := NormalizeEmail(email)
	if normalized == "" {
		return nil, ErrUserNotFound.Clone().WithMetadata(map[string]any{"email": email})
	}

	record := &User{}
	err := a.db.NewSelect().
		Model(record).
		Where("LOWER(?TableAlias.email_primary) = ?", normalized).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrUserNotFound.Clone().WithMetadata(map[string]any{"email": normalized})
		}
		return nil, err
	}

	record.EnsureRole()
	record.EnsureStatus()
	return record, nil
}

func (a *usersRepo) List(ctx context.Context, filters ListFilters) ([]*User, error) {
	var records []*User

	q := a.db.NewSelect().Model(&records)

	if filters.Role != "" {
		q = q.Where("?TableAlias.user_role = ?", filters.Role)
	}

	if filters.Status != "" {
		q = q.Where("?TableAlias.status = ?", filters.Status)
	}

	if search := strings.TrimSpace(filters.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				WhereOr("LOWER(?TableAlias.full_name) LIKE ?", like).
				WhereOr("LOWER(?TableAlias.email_primary) LIKE ?", like).
				WhereOr("LOWER(?TableAlias.id_number) LIKE ?", like).
				WhereOr("LOWER(?TableAlias.phone) LIKE ?", like)
		})
	}

	q = q.Order("created_at DESC")

	if filters.Limit > 0 {
		q = q.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		q = q.Offset(filters.Offset)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	return records, nil
}

func (a *usersRepo) Create(ctx context.Context, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

func (a *usersRepo) CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	prepareUserDefaults(record)

	created, err := a.Repository.CreateTx(ctx, tx, record, criteria...)
	if err != nil {
		return nil, TranslateUniqueViolation(err)
	}

	return created, nil
}

func (a *usersRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status UserStatus, opts ...StatusUpdateOption) (*User, error) {
	return a.UpdateStatusTx(ctx, a.db, id, status, opts...)
}

func (a *usersRepo) UpdateStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status UserStatus, opts ...StatusUpdateOption) (*User, error) {
	record := &User{
		ID:     id,
		Status: status,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(record)
		}
	}

	now := time.Now()
	record.UpdatedAt = &now

	// Column forces the write even for zero values, a plain model update
	// omits a nil suspended_at and the column is never cleared.
	if _, err := tx.NewUpdate().
		Model(record).
		Column("status", "suspended_at", "updated_at").
		WherePK().
		Exec(ctx); err != nil {
		return nil, err
	}

	reloaded := &User{}
	err := tx.NewSelect().
		Model(reloaded).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrUserNotFound.Clone().WithMetadata(map[string]any{"id": id.String()})
		}
		return nil, err
	}

	reloaded.EnsureRole()
	reloaded.EnsureStatus()
	return reloaded, nil
}

// Save writes the full mutable column set of the record. Unlike the generic
// repository update it does not omit zero values, so clearing an optional
// field to "" persists.
func (a *usersRepo) Save(ctx context.Context, record *User) (*User, error) {
	return a.SaveTx(ctx, a.db, record)
}

func (a *usersRepo) SaveTx(ctx context.Context, tx bun.IDB, record *User) (*User, error) {
	if record == nil || record.ID == uuid.Nil {
		return nil, ErrUserNotFound
	}

	record.EnsureRole()
	record.EnsureStatus()
	record.Email = NormalizeEmail(record.Email)

	if _, err := tx.NewUpdate().
		Model(record).
		Column(
			"full_name", "id_type", "id_number", "birth_date",
			"phone", "address", "profile_photo_url",
			"email_primary", "email_secondary",
			"user_role", "status", "password_hash", "updated_at",
		).
		WherePK().
		Exec(ctx); err != nil {
		return nil, TranslateUniqueViolation(err)
	}

	return record, nil
}

func (a *usersRepo) TrackSuccessfulLogin(ctx context.Context, user *User, at time.Time) error {
	return a.TrackSuccessfulLoginTx(ctx, a.db, user, at)
}

func (a *usersRepo) TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, user *User, at time.Time) error {
	_, err := tx.NewRaw(`
		UPDATE "users" AS "usr"
		SET "last_login_at" = ?
		WHERE ("usr".id = ?);
	`, at, user.ID).Exec(ctx)

	return err
}

// StatusUpdateOption allows callers to mutate the user record before
// persisting status changes.
type StatusUpdateOption func(*User)

// WithSuspendedAt sets the SuspendedAt timestamp during a status transition.
func WithSuspendedAt(at *time.Time) StatusUpdateOption {
	return func(u *User) {
		u.SuspendedAt = at
	}
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	record.EnsureRole()
	record.EnsureStatus()
	record.Email = NormalizeEmail(record.Email)

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}

// NormalizeEmail lowercases and trims an email address. Primary emails are
// stored normalized so the uniqueness invariant is case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
