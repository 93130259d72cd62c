// Package database holds the console's Postgres connection and the
// audit trail schema. The database is optional: when it is absent the
// console runs without an audit trail.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/defensoria-civil/divorcios/internal/shared/config"
)

// DB wraps the pgx pool.
type DB struct {
	Pool *pgxpool.Pool
}

// New opens and pings the audit database. The pool is sized for a
// single console instance whose only writer is the audit recorder.
func New(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = 4
	poolConfig.MinConns = 1
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// Health checks the database connection, feeding the readiness probe.
func (db *DB) Health(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}
