// Package reconcile prepares the data of one sync iteration and resolves every
// record identifier to a single create, update or delete action.
package reconcile

import (
	"context"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/stacklok/record-sync/internal/record"
	"github.com/stacklok/record-sync/internal/store"
	"github.com/stacklok/record-sync/internal/sync/state"
)

// Data is the input of one resolution pass for a single owner.
type Data struct {
	OwnerID string

	Local  map[string]record.Record
	Remote map[string]record.Record

	KnownLocal  map[string]struct{}
	KnownRemote map[string]struct{}

	// IDs is the sorted union of every id present on either side or in
	// either last-known snapshot.
	IDs []string
}

// Prepare fetches both record sets and both last-known id sets of ownerID
// concurrently. Any failing fetch fails the whole preparation.
func Prepare(
	ctx context.Context,
	ownerID string,
	local store.RecordStore,
	remote store.RecordStore,
	svc state.Service,
) (*Data, error) {
	var (
		localRecs, remoteRecs   []record.Record
		knownLocal, knownRemote []string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		recs, err := local.List(gctx, ownerID)
		if err != nil {
			return fmt.Errorf("failed to list local records: %w", err)
		}
		localRecs = recs
		return nil
	})
	g.Go(func() error {
		recs, err := remote.List(gctx, ownerID)
		if err != nil {
			return fmt.Errorf("failed to list remote records: %w", err)
		}
		remoteRecs = recs
		return nil
	})
	g.Go(func() error {
		ids, err := svc.LoadKnownLocalIDs(gctx, ownerID)
		if err != nil {
			return fmt.Errorf("failed to load last known local ids: %w", err)
		}
		knownLocal = ids
		return nil
	})
	g.Go(func() error {
		ids, err := svc.LoadKnownRemoteIDs(gctx, ownerID)
		if err != nil {
			return fmt.Errorf("failed to load last known remote ids: %w", err)
		}
		knownRemote = ids
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return NewData(ownerID, localRecs, remoteRecs, knownLocal, knownRemote), nil
}

// NewData builds the lookup structures and the worklist from raw inputs.
func NewData(ownerID string, localRecs, remoteRecs []record.Record, knownLocal, knownRemote []string) *Data {
	d := &Data{
		OwnerID:     ownerID,
		Local:       byID(localRecs),
		Remote:      byID(remoteRecs),
		KnownLocal:  toSet(knownLocal),
		KnownRemote: toSet(knownRemote),
	}

	union := make(map[string]struct{}, len(d.Local)+len(d.Remote))
	for id := range d.Local {
		union[id] = struct{}{}
	}
	for id := range d.Remote {
		union[id] = struct{}{}
	}
	for id := range d.KnownLocal {
		union[id] = struct{}{}
	}
	for id := range d.KnownRemote {
		union[id] = struct{}{}
	}

	d.IDs = make([]string, 0, len(union))
	for id := range union {
		d.IDs = append(d.IDs, id)
	}
	slices.Sort(d.IDs)
	return d
}

func byID(recs []record.Record) map[string]record.Record {
	out := make(map[string]record.Record, len(recs))
	for _, r := range recs {
		out[r.ID] = r
	}
	return out
}

func toSet(ids []string) map[string]struct{} {
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}
