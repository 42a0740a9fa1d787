package status

import "time"

// Operation names the store write a RecordError came from.
type Operation string

const (
	// OperationPrepare is a failure fetching the sync inputs
	OperationPrepare Operation = "prepare"
	// OperationIdentity is a failure resolving the current owner
	OperationIdentity Operation = "identity"
	// OperationCreateLocal is a failed local insert
	OperationCreateLocal Operation = "create_local"
	// OperationCreateRemote is a failed remote insert
	OperationCreateRemote Operation = "create_remote"
	// OperationUpdateLocal is a failed local overwrite
	OperationUpdateLocal Operation = "update_local"
	// OperationUpdateRemote is a failed remote overwrite
	OperationUpdateRemote Operation = "update_remote"
	// OperationDeleteLocal is a failed local delete
	OperationDeleteLocal Operation = "delete_local"
	// OperationDeleteRemote is a failed remote delete
	OperationDeleteRemote Operation = "delete_remote"
	// OperationSnapshot is a failure persisting the last-known id snapshot
	OperationSnapshot Operation = "snapshot"
)

// RecordError is one failure within a sync iteration. ID is empty for
// failures that aborted the whole iteration.
type RecordError struct {
	ID        string    `json:"id,omitempty"`
	Operation Operation `json:"operation"`
	Message   string    `json:"message"`
}

// Result is the outcome of one sync execution.
type Result struct {
	// Success is true iff Errors is empty
	Success   bool          `json:"success"`
	Created   int           `json:"created"`
	Updated   int           `json:"updated"`
	Deleted   int           `json:"deleted"`
	Unchanged int           `json:"unchanged"`
	Errors    []RecordError `json:"errors,omitempty"`
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`
}

// AddError records a failure and marks the result unsuccessful.
func (r *Result) AddError(id string, op Operation, err error) {
	r.Errors = append(r.Errors, RecordError{ID: id, Operation: op, Message: err.Error()})
	r.Success = false
}

// FailedResult builds the single-error result of an aborted iteration.
func FailedResult(startedAt time.Time, op Operation, err error) Result {
	r := Result{StartedAt: startedAt}
	r.AddError("", op, err)
	return r
}

// SyncStatus is the process-wide view of the sync engine.
type SyncStatus struct {
	Enabled           bool       `json:"enabled"`
	IsRunning         bool       `json:"isRunning"`
	QueueSize         int        `json:"queueSize"`
	LastSync          *time.Time `json:"lastSync,omitempty"`
	LastResult        *Result    `json:"lastResult,omitempty"`
	Error             string     `json:"error,omitempty"`
	NextScheduledSync *time.Time `json:"nextScheduledSync,omitempty"`
}

// Clone returns a deep copy of s.
func (s SyncStatus) Clone() SyncStatus {
	out := s
	if s.LastSync != nil {
		t := *s.LastSync
		out.LastSync = &t
	}
	if s.NextScheduledSync != nil {
		t := *s.NextScheduledSync
		out.NextScheduledSync = &t
	}
	if s.LastResult != nil {
		r := *s.LastResult
		r.Errors = append([]RecordError(nil), s.LastResult.Errors...)
		out.LastResult = &r
	}
	return out
}
