// Package postgres implements store.RemoteStore on PostgreSQL. Records of every
// sync table share the sync_records table created by the migrations in the
// database package; row changes arrive through LISTEN/NOTIFY.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stacklok/record-sync/database"
	"github.com/stacklok/record-sync/internal/record"
	"github.com/stacklok/record-sync/internal/store"
)

const uniqueViolation = "23505"

const selectColumns = "id, owner_id, created_at, updated_at, is_deleted, sync_version, payload"

// Store is a store.RemoteStore scoped to one sync table.
type Store struct {
	pool  *pgxpool.Pool
	table string
}

var _ store.RemoteStore = (*Store)(nil)

// New creates a remote store for table on pool. The schema must already be
// migrated.
func New(pool *pgxpool.Pool, table string) *Store {
	return &Store{pool: pool, table: table}
}

func (s *Store) List(ctx context.Context, ownerID string) ([]record.Record, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+selectColumns+" FROM sync_records WHERE table_name = $1 AND owner_id = $2 ORDER BY id",
		s.table, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (record.Record, error) {
		rec, err := scanRecord(row)
		if err != nil {
			return record.Record{}, err
		}
		return *rec, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, id string) (*record.Record, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+selectColumns+" FROM sync_records WHERE table_name = $1 AND id = $2",
		s.table, id)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("record %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record %s: %w", id, err)
	}
	return rec, nil
}

func (s *Store) Create(ctx context.Context, rec record.Record) error {
	if rec.ID == "" {
		return errors.New("record id is required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sync_records
			(table_name, id, owner_id, created_at, updated_at, is_deleted, sync_version, payload, origin)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		s.table, rec.ID, rec.OwnerID, rec.CreatedAt, rec.UpdatedAt, rec.IsDeleted, rec.SyncVersion,
		rec.Payload, store.OriginFromContext(ctx))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("record %s already exists", rec.ID)
		}
		return fmt.Errorf("failed to insert record %s: %w", rec.ID, err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, rec record.Record) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE sync_records
		SET owner_id = $3, created_at = $4, updated_at = $5, is_deleted = $6,
			sync_version = $7, payload = $8, origin = $9
		WHERE table_name = $1 AND id = $2`,
		s.table, rec.ID, rec.OwnerID, rec.CreatedAt, rec.UpdatedAt, rec.IsDeleted, rec.SyncVersion,
		rec.Payload, store.OriginFromContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to update record %s: %w", rec.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("record %s: %w", rec.ID, store.ErrNotFound)
	}
	return nil
}

// Delete removes the row. The origin travels through a transaction-local
// setting because a deleted row has no column left to carry it.
func (s *Store) Delete(ctx context.Context, id string) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "SELECT set_config($1, $2, true)",
			database.OriginSetting, store.OriginFromContext(ctx)); err != nil {
			return fmt.Errorf("failed to set delete origin: %w", err)
		}
		tag, err := tx.Exec(ctx, "DELETE FROM sync_records WHERE table_name = $1 AND id = $2", s.table, id)
		if err != nil {
			return fmt.Errorf("failed to delete record %s: %w", id, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("record %s: %w", id, store.ErrNotFound)
		}
		return nil
	})
}

func scanRecord(row pgx.Row) (*record.Record, error) {
	var (
		rec       record.Record
		updatedAt *time.Time
	)
	if err := row.Scan(
		&rec.ID, &rec.OwnerID, &rec.CreatedAt, &updatedAt, &rec.IsDeleted, &rec.SyncVersion, &rec.Payload,
	); err != nil {
		return nil, err
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	if updatedAt != nil {
		u := updatedAt.UTC()
		rec.UpdatedAt = &u
	}
	return &rec, nil
}
