// Package record defines the unit of synchronization shared by the local and
// remote stores.
package record

import (
	"maps"
	"slices"
	"time"
)

// Record is a single syncable row. The ID is stable across both stores and is
// never reassigned once created.
type Record struct {
	ID          string         `json:"id"`
	OwnerID     string         `json:"owner_id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   *time.Time     `json:"updated_at,omitempty"`
	IsDeleted   bool           `json:"is_deleted"`
	SyncVersion int64          `json:"sync_version"`
	Payload     map[string]any `json:"payload"`
}

// New creates a record for owner with the given payload, stamped at now.
func New(id, ownerID string, payload map[string]any, now time.Time) Record {
	created := now.UTC()
	return Record{
		ID:          id,
		OwnerID:     ownerID,
		CreatedAt:   created,
		UpdatedAt:   &created,
		SyncVersion: 1,
		Payload:     payload,
	}
}

// EffectiveTime returns the timestamp used for last-write-wins comparisons:
// UpdatedAt when present, CreatedAt otherwise.
func (r *Record) EffectiveTime() time.Time {
	if r.UpdatedAt != nil && !r.UpdatedAt.IsZero() {
		return *r.UpdatedAt
	}
	return r.CreatedAt
}

// Title returns a human readable label for logging. It is never used for
// correctness.
func (r *Record) Title() string {
	for _, key := range []string{"title", "name"} {
		if v, ok := r.Payload[key].(string); ok && v != "" {
			return v
		}
	}
	return r.ID
}

// Touch marks a local mutation at now.
func (r *Record) Touch(now time.Time) {
	updated := now.UTC()
	r.UpdatedAt = &updated
	r.SyncVersion++
}

// Clone returns a copy that shares no mutable state with r. Payload values are
// copied shallowly.
func (r Record) Clone() Record {
	out := r
	if r.UpdatedAt != nil {
		updated := *r.UpdatedAt
		out.UpdatedAt = &updated
	}
	if r.Payload != nil {
		out.Payload = maps.Clone(r.Payload)
	}
	return out
}

// IDs returns the sorted identifiers of records.
func IDs(records []Record) []string {
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	slices.Sort(ids)
	return ids
}

// Snapshot is the set of identifiers each side held after the last fully
// successful sync for one owner.
type Snapshot struct {
	LocalIDs  []string `json:"local_ids" yaml:"localIds"`
	RemoteIDs []string `json:"remote_ids" yaml:"remoteIds"`
}
