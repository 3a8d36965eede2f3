package users

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AuditLogs is the append-only audit store. Records are never updated or
// deleted once written; retrieval is ordered by created_at descending.
type AuditLogs interface {
	Create(ctx context.Context, record *AuditLog) (*AuditLog, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *AuditLog) (*AuditLog, error)

	ListRecent(ctx context.Context, limit int) ([]*AuditLog, error)
	ListByEntity(ctx context.Context, entity string, entityID uuid.UUID, limit int) ([]*AuditLog, error)
	ListByActor(ctx context.Context, actorID uuid.UUID, limit int) ([]*AuditLog, error)
}

type auditLogs struct {
	repo repository.Repository[*AuditLog]
	db   *bun.DB
}

var _ AuditLogs = (*auditLogs)(nil)

// NewAuditLogsRepository builds the bun-backed audit store.
func NewAuditLogsRepository(db *bun.DB) AuditLogs {
	handlers := repository.ModelHandlers[*AuditLog]{
		NewRecord: func() *AuditLog { return &AuditLog{} },
		GetID: func(record *AuditLog) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *AuditLog, id uuid.UUID) {
			if record != nil {
				record.ID = id
			}
		},
	}

	return &auditLogs{
		repo: repository.NewRepository(db, handlers),
		db:   db,
	}
}

func (a *auditLogs) Create(ctx context.Context, record *AuditLog) (*AuditLog, error) {
	return a.CreateTx(ctx, a.db, record)
}

func (a *auditLogs) CreateTx(ctx context.Context, tx bun.IDB, record *AuditLog) (*AuditLog, error) {
	if record != nil && record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	return a.repo.CreateTx(ctx, tx, record)
}

func (a *auditLogs) ListRecent(ctx context.Context, limit int) ([]*AuditLog, error) {
	return a.list(ctx, limit, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q
	})
}

func (a *auditLogs) ListByEntity(ctx context.Context, entity string, entityID uuid.UUID, limit int) ([]*AuditLog, error) {
	return a.list(ctx, limit, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.
			Where("?TableAlias.entity = ?", entity).
			Where("?TableAlias.entity_id = ?", entityID)
	})
}

func (a *auditLogs) ListByActor(ctx context.Context, actorID uuid.UUID, limit int) ([]*AuditLog, error) {
	return a.list(ctx, limit, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.actor_id = ?", actorID)
	})
}

func (a *auditLogs) list(ctx context.Context, limit int, apply func(*bun.SelectQuery) *bun.SelectQuery) ([]*AuditLog, error) {
	var records []*AuditLog

	q := a.db.NewSelect().Model(&records)
	q = apply(q)
	q = q.Order("created_at DESC")

	if limit > 0 {
		q = q.Limit(limit)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	return records, nil
}
