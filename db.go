package users

import (
	"context"
	"database/sql"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// OpenSQLite opens a bun handle over the embedded SQLite driver. Use
// "file::memory:?cache=shared" for an in-memory database.
func OpenSQLite(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, err
	}

	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

// CreateSchema creates the users and audit_logs tables if missing. Unique
// constraints come from the model tags; the indexes below cover the hot
// lookup paths.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	models := []any{
		(*User)(nil),
		(*AuditLog)(nil),
	}

	for _, model := range models {
		if _, err := db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx); err != nil {
			return err
		}
	}

	indexes := []struct {
		name    string
		model   any
		columns []string
	}{
		{"idx_users_role", (*User)(nil), []string{"user_role"}},
		{"idx_users_status", (*User)(nil), []string{"status"}},
		{"idx_audit_logs_created_at", (*AuditLog)(nil), []string{"created_at"}},
		{"idx_audit_logs_entity", (*AuditLog)(nil), []string{"entity", "entity_id"}},
		{"idx_audit_logs_actor", (*AuditLog)(nil), []string{"actor_id"}},
	}

	for _, idx := range indexes {
		if _, err := db.NewCreateIndex().
			Model(idx.model).
			Index(idx.name).
			Column(idx.columns...).
			IfNotExists().
			Exec(ctx); err != nil {
			return err
		}
	}

	return nil
}
