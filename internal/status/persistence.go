// Package status tracks the sync engine's current status, broadcasts changes
// to listeners and mirrors the latest status to disk.
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

//go:generate mockgen -destination=mocks/mock_status_persistence.go -package=mocks github.com/stacklok/record-sync/internal/status Persistence

const (
	// StatusFileName is the name of the per-owner status file
	StatusFileName = "status.json"
)

// Persistence stores the last broadcast status per owner
type Persistence interface {
	// SaveStatus saves the status for ownerID
	SaveStatus(ctx context.Context, ownerID string, status SyncStatus) error

	// LoadStatus loads the status for ownerID.
	// Returns an empty SyncStatus if nothing was saved yet.
	LoadStatus(ctx context.Context, ownerID string) (*SyncStatus, error)

	// LoadAllStatus loads the status of every owner with a saved file
	LoadAllStatus(ctx context.Context) (map[string]*SyncStatus, error)
}

// fileStatusPersistence implements Persistence on the local filesystem
type fileStatusPersistence struct {
	basePath string
}

// NewFilePersistence creates a file-based status persistence rooted at basePath.
// Each owner gets its own directory containing StatusFileName.
func NewFilePersistence(basePath string) Persistence {
	return &fileStatusPersistence{basePath: basePath}
}

// SaveStatus writes status atomically through a temporary file
func (f *fileStatusPersistence) SaveStatus(_ context.Context, ownerID string, status SyncStatus) error {
	ownerDir, err := f.ownerDir(ownerID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(ownerDir, 0750); err != nil {
		return fmt.Errorf("failed to create status directory for owner '%s': %w", ownerID, err)
	}

	filePath := filepath.Join(ownerDir, StatusFileName)

	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal status for owner '%s': %w", ownerID, err)
	}

	tempPath := filePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary status file for owner '%s': %w", ownerID, err)
	}

	if err := os.Rename(tempPath, filePath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename status file for owner '%s': %w", ownerID, err)
	}

	return nil
}

// LoadStatus reads the status file of ownerID
func (f *fileStatusPersistence) LoadStatus(_ context.Context, ownerID string) (*SyncStatus, error) {
	ownerDir, err := f.ownerDir(ownerID)
	if err != nil {
		return nil, err
	}

	// #nosec G304 -- path is basePath joined with a validated owner id
	data, err := os.ReadFile(filepath.Join(ownerDir, StatusFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return &SyncStatus{}, nil
		}
		return nil, fmt.Errorf("failed to read status file for owner '%s': %w", ownerID, err)
	}

	var status SyncStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status for owner '%s': %w", ownerID, err)
	}

	return &status, nil
}

// LoadAllStatus loads the status of every owner directory under basePath
func (f *fileStatusPersistence) LoadAllStatus(ctx context.Context) (map[string]*SyncStatus, error) {
	result := make(map[string]*SyncStatus)

	entries, err := os.ReadDir(f.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return result, nil
		}
		return nil, fmt.Errorf("failed to read status directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		ownerID := entry.Name()
		status, err := f.LoadStatus(ctx, ownerID)
		if err != nil {
			slog.Warn("Skipping unreadable status file", "owner", ownerID, "error", err)
			continue
		}

		result[ownerID] = status
	}

	return result, nil
}

func (f *fileStatusPersistence) ownerDir(ownerID string) (string, error) {
	if ownerID == "" || !filepath.IsLocal(ownerID) || filepath.Base(ownerID) != ownerID {
		return "", fmt.Errorf("invalid owner id for status file: %q", ownerID)
	}
	return filepath.Join(f.basePath, ownerID), nil
}

// PersistingListener returns a Listener that saves every status it receives
// for the owner reported by ownerID. Statuses are skipped while ownerID
// returns an empty string.
func PersistingListener(ctx context.Context, p Persistence, ownerID func() string) Listener {
	return func(s SyncStatus) {
		owner := ownerID()
		if owner == "" {
			return
		}
		if err := p.SaveStatus(ctx, owner, s); err != nil {
			slog.Warn("Failed to persist sync status", "owner", owner, "error", err)
		}
	}
}
