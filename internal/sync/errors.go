package sync

import "errors"

// Reasons carried by Error.
const (
	ReasonAlreadyInProgress  = "sync-already-in-progress"
	ReasonDisabled           = "sync-disabled"
	ReasonAlreadyInitialized = "already-initialized"
	ReasonNotInitialized     = "not-initialized"
)

var (
	// ErrSyncInProgress is returned by TriggerSync while an execution is running.
	ErrSyncInProgress = errors.New("sync already in progress")
	// ErrSyncDisabled is returned by TriggerSync while sync is disabled.
	ErrSyncDisabled = errors.New("sync is disabled")
	// ErrAlreadyInitialized is returned by a second Initialize call.
	ErrAlreadyInitialized = errors.New("sync engine already initialized")
	// ErrNotInitialized is returned when the engine is used before Initialize
	// or after Cleanup.
	ErrNotInitialized = errors.New("sync engine not initialized")
)

// Error is a rejection from the engine's public surface. Reason is a stable
// machine-readable code; Err is one of the sentinels above.
type Error struct {
	Err    error
	Reason string
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(err error, reason string) *Error {
	return &Error{Err: err, Reason: reason}
}
