package aggregates

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/fitprogram-backend/internal/domain/program"
)

const (
	InvariantSingleActive    = "single_active_version"
	InvariantDenseNumbering  = "dense_version_numbering"
	InvariantOneCyclePerDay  = "one_cycle_per_version_day"
	InvariantAppendOnly      = "append_only_versions"
	InvariantAtomicSupersede = "atomic_supersede"
)

var PlanLedgerAggregateContract = Contract{
	Name:          "Program.PlanLedgerAggregate",
	Serialization: SerializedPerUser,
	Invariants: []string{
		InvariantSingleActive,
		InvariantDenseNumbering,
		InvariantOneCyclePerDay,
		InvariantAppendOnly,
		InvariantAtomicSupersede,
	},
}

// PlanLedgerAggregate is the append-only plan version store.
//
// Write method failures return *aggregates.Error with codes:
// CodeValidation, CodeNotFound, CodeConflict, CodeInvariantViolation, CodeRetryable, CodeInternal.
type PlanLedgerAggregate interface {
	Aggregate

	// GetActive returns the user's active version, or nil when there is none.
	GetActive(ctx context.Context, userID uuid.UUID) (*program.PlanVersion, error)

	// AppendVersion stores a new draft with the next version number.
	AppendVersion(ctx context.Context, in AppendPlanVersionInput) (AppendPlanVersionResult, error)

	// Activate makes a draft active and supersedes the previous active version
	// in the same transaction.
	Activate(ctx context.Context, in ActivatePlanInput) (ActivatePlanResult, error)

	RecordFeasibilityCheck(ctx context.Context, check program.FeasibilityCheck) (program.FeasibilityCheck, error)
	GetFeasibilityCheck(ctx context.Context, userID, checkID uuid.UUID) (*program.FeasibilityCheck, error)

	// RecordAdjustment appends a no-op cycle record against the active version.
	RecordAdjustment(ctx context.Context, rec program.AdjustmentRecord) (program.AdjustmentRecord, error)

	FindAdjustment(ctx context.Context, userID, fromVersionID uuid.UUID, date string) (*program.AdjustmentRecord, error)

	// CommitCycle appends the cycle record and, when present, the new version
	// plus the supersede of the version the cycle started from.
	CommitCycle(ctx context.Context, in CommitCycleInput) (CommitCycleResult, error)

	History(ctx context.Context, userID uuid.UUID) ([]program.PlanSummary, error)
}

type AppendPlanVersionInput struct {
	Version program.PlanVersion
	// CheckID links the feasibility check that produced the params.
	CheckID *uuid.UUID
}

type AppendPlanVersionResult struct {
	Version program.PlanVersion
}

type ActivatePlanInput struct {
	UserID    uuid.UUID
	VersionID uuid.UUID
	// SupersedeAs is the status given to the previously active version.
	SupersedeAs program.PlanStatus
	At          time.Time
}

type ActivatePlanResult struct {
	Version      program.PlanVersion
	SupersededID *uuid.UUID
}

type CommitCycleInput struct {
	UserID uuid.UUID
	// FromVersionID must still be the active version at commit time.
	FromVersionID uuid.UUID
	Record        program.AdjustmentRecord
	NewVersion    *program.PlanVersion
	SupersedeAs   program.PlanStatus
	Check         *program.FeasibilityCheck
	At            time.Time
}

type CommitCycleResult struct {
	Record    program.AdjustmentRecord
	Version   *program.PlanVersion
	Duplicate bool
}
