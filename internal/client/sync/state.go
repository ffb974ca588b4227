package sync

// State is a step of the sync state machine
type State string

const (
	StateIdle          State = "idle"
	StateLocking       State = "locking"
	StateCheckConflict State = "check_conflict"
	StateAttempting    State = "attempting"
	StateSuccess       State = "success"
	StateQuarantined   State = "quarantined"
	StateFailed        State = "failed"
)

// Terminal reports whether the machine stops in s
func (s State) Terminal() bool {
	switch s {
	case StateSuccess, StateQuarantined, StateFailed:
		return true
	}
	return false
}

// Outcome is how a single attempt ended
type Outcome string

const (
	// OutcomePushed means mainline and client ref reached the remote
	OutcomePushed Outcome = "pushed"
	// OutcomeFetchFailed means the remote could not be fetched
	OutcomeFetchFailed Outcome = "fetch_failed"
	// OutcomeMergeFailed means the remote mainline did not merge cleanly
	OutcomeMergeFailed Outcome = "merge_failed"
	// OutcomePushFailed means the remote refused or could not take the push
	OutcomePushFailed Outcome = "push_failed"
	// OutcomeError means a local step failed unexpectedly
	OutcomeError Outcome = "error"
)

// retryable outcomes consume one unit of the attempt budget
func (o Outcome) retryable() bool {
	switch o {
	case OutcomeFetchFailed, OutcomeMergeFailed, OutcomePushFailed:
		return true
	}
	return false
}
