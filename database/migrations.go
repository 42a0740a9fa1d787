// Package database holds the remote PostgreSQL schema and the migration
// tooling that applies it.
package database

import (
	"embed"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5" // registers the pgx5 scheme
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ChangesChannel is the NOTIFY channel the schema publishes row changes on.
const ChangesChannel = "record_changes"

// OriginSetting is the transaction-local setting a writer sets before a DELETE
// so the change notification can carry its origin token.
const OriginSetting = "record_sync.origin"

//go:generate mockgen -destination=mocks/mock_migrator.go -package=mocks github.com/stacklok/record-sync/database Migrator

// Migrator is the interface for the migration tooling.
type Migrator interface {
	Up() error
	Down() error
	Steps(int) error
	Version() (uint, bool, error)
	Close() (source error, database error)
}

func migrationsSource() (source.Driver, error) {
	d, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to load embedded migrations: %w", err)
	}
	return d, nil
}

// NewFromConnectionString returns a migrator for the database at connString.
// Both postgres:// and postgresql:// URLs are accepted.
func NewFromConnectionString(connString string) (Migrator, error) {
	d, err := migrationsSource()
	if err != nil {
		return nil, err
	}
	m, err := migrate.NewWithSourceInstance("iofs", d, migrateURL(connString))
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	return m, nil
}

// IgnoreNoChange maps migrate.ErrNoChange to nil.
func IgnoreNoChange(err error) error {
	if err == migrate.ErrNoChange {
		return nil
	}
	return err
}

func migrateURL(connString string) string {
	for _, prefix := range []string{"postgresql://", "postgres://"} {
		if rest, ok := strings.CutPrefix(connString, prefix); ok {
			return "pgx5://" + rest
		}
	}
	return connString
}
