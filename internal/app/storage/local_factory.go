package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/stacklok/record-sync/internal/store/filestore"
	"github.com/stacklok/record-sync/internal/store/sqlite"
)

// newSQLiteStore opens the database at path, creating its directory.
func newSQLiteStore(ctx context.Context, path, table string) (*sqlite.Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create local store directory for %s: %w", path, err)
	}

	s, err := sqlite.Open(ctx, path, table)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite local store: %w", err)
	}

	slog.Info("Opened sqlite local store", "path", path, "table", table)
	return s, nil
}

// newFileStore opens the record directory under root and starts watching it.
func newFileStore(root, table string) (*filestore.Store, error) {
	s, err := filestore.Open(root, table)
	if err != nil {
		return nil, fmt.Errorf("failed to open file local store: %w", err)
	}
	if err := s.Start(); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to start file local store watcher: %w", err)
	}

	slog.Info("Opened file local store", "root", root, "table", table)
	return s, nil
}
