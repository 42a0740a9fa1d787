// Package sqlite implements store.LocalStore on a SQLite database file using
// the pure Go modernc.org/sqlite driver. Records live in a table named after
// the sync table; raw key/value state lives in a separate kv table.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/stacklok/record-sync/internal/record"
	"github.com/stacklok/record-sync/internal/store"
)

const kvSchema = `
CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

const recordsSchema = `
CREATE TABLE IF NOT EXISTS %[1]s (
	id           TEXT PRIMARY KEY,
	owner_id     TEXT NOT NULL,
	created_at   TEXT NOT NULL,
	updated_at   TEXT,
	is_deleted   INTEGER NOT NULL DEFAULT 0,
	sync_version INTEGER NOT NULL DEFAULT 1,
	payload      TEXT NOT NULL DEFAULT 'null'
);

CREATE INDEX IF NOT EXISTS %[2]s ON %[1]s(owner_id);
`

// Store is a SQLite-backed store.LocalStore. Successful writes are reported
// on its change feed with the same keys as the in-memory store.
type Store struct {
	store.Feed

	db    *sql.DB
	path  string
	table string
	ident string
}

var _ store.LocalStore = (*Store)(nil)

// Open opens (creating if needed) the database at path and prepares the
// schema for table.
func Open(ctx context.Context, path, table string) (*Store, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if table == "" {
		return nil, errors.New("table name is required")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	s := &Store{db: db, path: path, table: table, ident: quoteIdent(table)}
	if err := s.init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, kvSchema); err != nil {
		return fmt.Errorf("failed to create kv table: %w", err)
	}
	ddl := fmt.Sprintf(recordsSchema, s.ident, quoteIdent("idx_"+s.table+"_owner"))
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create records table: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) List(ctx context.Context, ownerID string) ([]record.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, owner_id, created_at, updated_at, is_deleted, sync_version, payload FROM "+
			s.ident+" WHERE owner_id = ? ORDER BY id", ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	out := make([]record.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, id string) (*record.Record, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, owner_id, created_at, updated_at, is_deleted, sync_version, payload FROM "+
			s.ident+" WHERE id = ?", id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("record %s: %w", id, store.ErrNotFound)
	}
	return rec, err
}

func (s *Store) Create(ctx context.Context, rec record.Record) error {
	if rec.ID == "" {
		return errors.New("record id is required")
	}
	args, err := recordArgs(rec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO "+s.ident+
			" (id, owner_id, created_at, updated_at, is_deleted, sync_version, payload) VALUES (?, ?, ?, ?, ?, ?, ?)",
		args...)
	if err != nil {
		return fmt.Errorf("failed to insert record %s: %w", rec.ID, err)
	}

	s.Emit(store.ChangeBatch{
		Area: store.AreaLocal,
		Keys: []string{store.RecordKey(s.table, rec.ID), store.IndexKey(s.table)},
	})
	return nil
}

func (s *Store) Update(ctx context.Context, rec record.Record) error {
	args, err := recordArgs(rec)
	if err != nil {
		return err
	}
	// Move the id from the front to the WHERE clause position.
	args = append(args[1:], args[0])
	res, err := s.db.ExecContext(ctx,
		"UPDATE "+s.ident+
			" SET owner_id = ?, created_at = ?, updated_at = ?, is_deleted = ?, sync_version = ?, payload = ? WHERE id = ?",
		args...)
	if err != nil {
		return fmt.Errorf("failed to update record %s: %w", rec.ID, err)
	}
	if err := requireAffected(res, rec.ID); err != nil {
		return err
	}

	s.Emit(store.ChangeBatch{Area: store.AreaLocal, Keys: []string{store.RecordKey(s.table, rec.ID)}})
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM "+s.ident+" WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete record %s: %w", id, err)
	}
	if err := requireAffected(res, id); err != nil {
		return err
	}

	s.Emit(store.ChangeBatch{
		Area: store.AreaLocal,
		Keys: []string{store.RecordKey(s.table, id), store.IndexKey(s.table)},
	})
	return nil
}

func (s *Store) GetRaw(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read key %s: %w", key, err)
	}
	return value, true, nil
}

func (s *Store) SetRaw(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value)
	if err != nil {
		return fmt.Errorf("failed to write key %s: %w", key, err)
	}
	s.Emit(store.ChangeBatch{Area: store.AreaLocal, Keys: []string{key}})
	return nil
}

func (s *Store) DeleteRaw(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		s.Emit(store.ChangeBatch{Area: store.AreaLocal, Keys: []string{key}})
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*record.Record, error) {
	var (
		rec       record.Record
		createdAt string
		updatedAt sql.NullString
		deleted   int
		payload   string
	)
	if err := row.Scan(&rec.ID, &rec.OwnerID, &createdAt, &updatedAt, &deleted, &rec.SyncVersion, &payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan record: %w", err)
	}

	var err error
	if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at of record %s: %w", rec.ID, err)
	}
	if updatedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, updatedAt.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse updated_at of record %s: %w", rec.ID, err)
		}
		rec.UpdatedAt = &t
	}
	rec.IsDeleted = deleted != 0
	if err := json.Unmarshal([]byte(payload), &rec.Payload); err != nil {
		return nil, fmt.Errorf("failed to decode payload of record %s: %w", rec.ID, err)
	}
	return &rec, nil
}

func recordArgs(rec record.Record) ([]any, error) {
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload of record %s: %w", rec.ID, err)
	}
	var updatedAt sql.NullString
	if rec.UpdatedAt != nil {
		updatedAt = sql.NullString{String: rec.UpdatedAt.UTC().Format(time.RFC3339Nano), Valid: true}
	}
	deleted := 0
	if rec.IsDeleted {
		deleted = 1
	}
	return []any{
		rec.ID,
		rec.OwnerID,
		rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		updatedAt,
		deleted,
		rec.SyncVersion,
		string(payload),
	}, nil
}

func requireAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("record %s: %w", id, store.ErrNotFound)
	}
	return nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
