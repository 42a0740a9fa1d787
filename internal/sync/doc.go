// Package sync is the record synchronization engine. It keeps one owner's
// local and remote record sets convergent.
//
// # Pipeline
//
// Three detectors produce triggers:
//
//   - detectors.LocalStorageDetector coalesces local store change batches
//   - detectors.PeriodicDetector ticks while sync is enabled
//   - detectors.RemoteDetector forwards the remote push subscription
//
// Every trigger passes the filter.Filter gate: data relevance, configuration,
// self-change, processing state, queue state. Allowed triggers go to the
// queue.Queue, which debounces bursts into a single execution with at most
// one in flight.
//
// # Execution
//
// The executor marks the self-change window, prepares both record sets and
// both last-known id snapshots (reconcile.Prepare), resolves every identifier
// with reconcile.Decide and reports the result via status.Broadcaster. Only an
// iteration with zero per-record errors advances the snapshot, and the
// snapshot is taken from the stores after resolution.
//
// # Public surface
//
// Engine exposes Initialize, SetEnabled, TriggerSync, GetStatus,
// AddStatusListener, RemoveStatusListener and Cleanup. TriggerSync is the
// only call that rejects with an error during normal operation (see Error).
package sync
