package reassess

import "fmt"

// State is one step of a reassessment cycle.
type State string

const (
	StateFetching      State = "fetching"
	StateAggregating   State = "aggregating"
	StateControlling   State = "controlling"
	StateNoChange      State = "no_change"
	StateResolving     State = "resolving"
	StateMaterializing State = "materializing"
	StatePersisting    State = "persisting"
	StateDone          State = "done"
	StateFailed        State = "failed"
)

// Reason names why a cycle failed.
type Reason string

const (
	ReasonNoActivePlan       Reason = "no_active_plan"
	ReasonLockUnavailable    Reason = "lock_unavailable"
	ReasonSignalsUnavailable Reason = "signals_unavailable"
	ReasonSolverFailed       Reason = "solver_failed"
	ReasonResolveInfeasible  Reason = "resolve_infeasible"
	ReasonContentUnavailable Reason = "content_unavailable"
	ReasonMaterializeFailed  Reason = "materialize_failed"
	ReasonStoreConflict      Reason = "store_conflict"
	ReasonStoreFailure       Reason = "store_failure"
)

// CycleError is returned for every failed cycle. The active plan is never
// modified when a cycle fails.
type CycleError struct {
	// State is where the cycle was when it failed.
	State     State
	Reason    Reason
	Retryable bool
	Err       error
}

func (e *CycleError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("reassessment failed in %s: %s: %v", e.State, e.Reason, e.Err)
	}
	return fmt.Sprintf("reassessment failed in %s: %s", e.State, e.Reason)
}

func (e *CycleError) Unwrap() error { return e.Err }

func fail(state State, reason Reason, retryable bool, err error) *CycleError {
	return &CycleError{State: state, Reason: reason, Retryable: retryable, Err: err}
}
