package service

// SyncState describes the outcome of a worker's most recent sync
// iteration.
type SyncState int

const (
	SyncStateUnknown SyncState = iota
	SyncStateSuccess
	// SyncStateDegraded means all branches synced but one or more tag
	// pushes failed.
	SyncStateDegraded
	// SyncStateAborted means at least one branch was refused, e.g. a
	// diverged destination with force pushing denied.
	SyncStateAborted
	// SyncStateSyncFailed means a required phase (listing, fetch) failed
	// outright.
	SyncStateSyncFailed
	SyncStateInternalError
)

func (s SyncState) String() string {
	switch s {
	case SyncStateSuccess:
		return "success"
	case SyncStateDegraded:
		return "degraded"
	case SyncStateAborted:
		return "aborted"
	case SyncStateSyncFailed:
		return "sync_failed"
	case SyncStateInternalError:
		return "internal_error"
	}
	return "unknown"
}

// Status is the per-mirror state reported by a worker.
type Status struct {
	State   SyncState
	Message string
}

// Failed reports whether the state counts as a run failure. Degraded runs
// are reported but do not fail the run.
func (s Status) Failed() bool {
	switch s.State {
	case SyncStateAborted, SyncStateSyncFailed, SyncStateInternalError:
		return true
	}
	return false
}
