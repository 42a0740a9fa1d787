package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stacklok/record-sync/internal/config"
	"github.com/stacklok/record-sync/internal/db"
	"github.com/stacklok/record-sync/internal/store/postgres"
)

// newPostgresStore connects a pool for cfg and scopes a remote store to table.
// The caller owns the returned pool.
func newPostgresStore(
	ctx context.Context,
	cfg *config.DatabaseConfig,
	table string,
) (*postgres.Store, *pgxpool.Pool, error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("database configuration is required for remote type %s", config.RemoteTypePostgres)
	}

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create database connection pool: %w", err)
	}

	return postgres.New(pool, table), pool, nil
}
