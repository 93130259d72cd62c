package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// The console owns a single table: the append-only audit trail. Every
// statement here must be idempotent because EnsureSchema runs on every
// startup, there is no version tracking.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS audit_entries (
		sequence    BIGSERIAL PRIMARY KEY,
		id          UUID NOT NULL UNIQUE,
		hash        VARCHAR(64) NOT NULL,
		prev_hash   VARCHAR(64) NOT NULL DEFAULT '',
		actor       VARCHAR(100) NOT NULL,
		actor_role  VARCHAR(20) NOT NULL DEFAULT '',
		action      VARCHAR(50) NOT NULL,
		resource    VARCHAR(50) NOT NULL,
		resource_id VARCHAR(100) NOT NULL DEFAULT '',
		details     JSONB,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_entries_actor ON audit_entries (actor)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_entries_action ON audit_entries (action)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_entries_resource ON audit_entries (resource, resource_id)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_entries_created_at ON audit_entries (created_at)`,
}

// EnsureSchema creates the audit trail schema if it does not exist yet.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure audit schema: %w", err)
		}
	}
	return nil
}
