package state

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/stacklok/record-sync/internal/record"
	"github.com/stacklok/record-sync/internal/store"
)

type kvStateService struct {
	kv store.KeyValueStore
}

var _ Service = (*kvStateService)(nil)

// NewKVService creates a state service on top of the local store's raw
// key/value capability.
func NewKVService(kv store.KeyValueStore) Service {
	return &kvStateService{kv: kv}
}

func (s *kvStateService) LoadEnabled(ctx context.Context) (bool, bool, error) {
	raw, found, err := s.kv.GetRaw(ctx, KeyEnabled)
	if err != nil {
		return false, false, fmt.Errorf("failed to read enabled state: %w", err)
	}
	if !found {
		return false, false, nil
	}
	enabled, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false, fmt.Errorf("failed to parse enabled state %q: %w", raw, err)
	}
	return enabled, true, nil
}

func (s *kvStateService) SaveEnabled(ctx context.Context, enabled bool) error {
	if err := s.kv.SetRaw(ctx, KeyEnabled, strconv.FormatBool(enabled)); err != nil {
		return fmt.Errorf("failed to save enabled state: %w", err)
	}
	return nil
}

func (s *kvStateService) LoadKnownLocalIDs(ctx context.Context, ownerID string) ([]string, error) {
	return s.loadIDs(ctx, PrefixLastKnownLocal+ownerID)
}

func (s *kvStateService) LoadKnownRemoteIDs(ctx context.Context, ownerID string) ([]string, error) {
	return s.loadIDs(ctx, PrefixLastKnownRemote+ownerID)
}

func (s *kvStateService) SaveSnapshot(ctx context.Context, ownerID string, snapshot record.Snapshot) error {
	if ownerID == "" {
		return fmt.Errorf("owner id is required")
	}
	if err := s.saveIDs(ctx, PrefixLastKnownRemote+ownerID, snapshot.RemoteIDs); err != nil {
		return err
	}
	return s.saveIDs(ctx, PrefixLastKnownLocal+ownerID, snapshot.LocalIDs)
}

func (s *kvStateService) LoadLocalChange(ctx context.Context) (time.Time, error) {
	raw, found, err := s.kv.GetRaw(ctx, KeyLastLocalChange)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read last local change: %w", err)
	}
	if !found || raw == "" {
		return time.Time{}, nil
	}
	at, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse last local change %q: %w", raw, err)
	}
	return at, nil
}

func (s *kvStateService) SaveLocalChange(ctx context.Context, at time.Time) error {
	if err := s.kv.SetRaw(ctx, KeyLastLocalChange, at.UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("failed to save last local change: %w", err)
	}
	return nil
}

func (s *kvStateService) ClearLocalChange(ctx context.Context) error {
	if err := s.kv.DeleteRaw(ctx, KeyLastLocalChange); err != nil {
		return fmt.Errorf("failed to clear last local change: %w", err)
	}
	return nil
}

func (s *kvStateService) loadIDs(ctx context.Context, key string) ([]string, error) {
	raw, found, err := s.kv.GetRaw(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if !found || raw == "" {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return ids, nil
}

func (s *kvStateService) saveIDs(ctx context.Context, key string, ids []string) error {
	sorted := slices.Clone(ids)
	if sorted == nil {
		sorted = []string{}
	}
	slices.Sort(sorted)
	data, err := json.Marshal(slices.Compact(sorted))
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := s.kv.SetRaw(ctx, key, string(data)); err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}
