package program

import (
	"time"

	"github.com/google/uuid"
)

// DiagnosticCode is the closed taxonomy of infeasibility causes.
type DiagnosticCode string

const (
	DiagFreqTooLow         DiagnosticCode = "FREQ_TOO_LOW"
	DiagFreqTooHigh        DiagnosticCode = "FREQ_TOO_HIGH"
	DiagSessionTooShort    DiagnosticCode = "SESSION_TOO_SHORT"
	DiagSessionTooLong     DiagnosticCode = "SESSION_TOO_LONG"
	DiagTimeBudgetExceeded DiagnosticCode = "TIME_BUDGET_EXCEEDED"
	DiagTimelineTooShort   DiagnosticCode = "TIMELINE_TOO_SHORT"
	DiagCaloriesBelowMin   DiagnosticCode = "CALORIES_BELOW_MIN"
	DiagCaloriesAboveMax   DiagnosticCode = "CALORIES_ABOVE_MAX"
	DiagProteinUnreachable DiagnosticCode = "PROTEIN_UNREACHABLE"
	DiagPaceTooAggressive  DiagnosticCode = "PACE_TOO_AGGRESSIVE"
	DiagVolumeBelowMin     DiagnosticCode = "VOLUME_BELOW_MIN"
	DiagJointConflict      DiagnosticCode = "JOINT_CONFLICT"
	DiagSolverTimeout      DiagnosticCode = "SOLVER_TIMEOUT"
)

// DiagnosticCodeFor maps a hard constraint kind to the code reported when no
// point in the search domain satisfies it.
func DiagnosticCodeFor(kind ConstraintKind) DiagnosticCode {
	switch kind {
	case SessionsPerWeekMin:
		return DiagFreqTooLow
	case SessionsPerWeekMax:
		return DiagFreqTooHigh
	case SessionMinutesMin:
		return DiagSessionTooShort
	case SessionMinutesMax:
		return DiagSessionTooLong
	case WeeklyMinutesMax:
		return DiagTimeBudgetExceeded
	case TimelineWeeksMax, TargetMetrics:
		return DiagTimelineTooShort
	case CaloriesMin:
		return DiagCaloriesBelowMin
	case CaloriesMax:
		return DiagCaloriesAboveMax
	case ProteinGPerKgMin:
		return DiagProteinUnreachable
	case RateKgPerWeekMax:
		return DiagPaceTooAggressive
	case WeeklySetsPerMuscleMin:
		return DiagVolumeBelowMin
	default:
		return DiagJointConflict
	}
}

type Diagnostic struct {
	Code       DiagnosticCode   `json:"code"`
	Constraint ConstraintKind   `json:"constraint,omitempty"`
	Related    []ConstraintKind `json:"related,omitempty"`
	Message    string           `json:"message"`
}

// Lever names one relaxation step used to build a trade-off.
type Lever string

const (
	LeverRaiseFrequency Lever = "raise_frequency"
	LeverLowerPace      Lever = "lower_pace"
	LeverReduceTarget   Lever = "reduce_target"
	LeverRelaxNutrition Lever = "relax_nutrition"
)

// RelaxationOrder is the fixed priority in which levers are tried.
var RelaxationOrder = []Lever{LeverRaiseFrequency, LeverLowerPace, LeverReduceTarget, LeverRelaxNutrition}

type TradeOff struct {
	ID                   string            `json:"id"`
	Summary              string            `json:"summary"`
	Levers               []Lever           `json:"levers"`
	Adjustments          PartialPlanParams `json:"adjustments"`
	ExpectedOutcomeRange Interval          `json:"expected_outcome_range"`
	Cost                 float64           `json:"cost"`
	Score                float64           `json:"score"`
	RelaxedGoal          GoalConstraintSet `json:"relaxed_goal"`
}

type FeasibilityResult struct {
	IsFeasible       bool         `json:"is_feasible"`
	OptimalParams    *PlanParams  `json:"optimal_params,omitempty"`
	Score            float64      `json:"score,omitempty"`
	Diagnostics      []Diagnostic `json:"diagnostics"`
	TradeOffs        []TradeOff   `json:"trade_offs"`
	SolverIterations int          `json:"solver_iterations"`
	SolverRuntimeMs  int64        `json:"solver_runtime_ms"`
	TimedOut         bool         `json:"timed_out,omitempty"`
	// CheckID is the persisted check this result belongs to, when recorded.
	CheckID *uuid.UUID `json:"check_id,omitempty"`
}

func (r FeasibilityResult) HasCode(code DiagnosticCode) bool {
	for _, d := range r.Diagnostics {
		if d.Code == code {
			return true
		}
	}
	return false
}

func (r FeasibilityResult) TradeOff(id string) (TradeOff, bool) {
	for _, t := range r.TradeOffs {
		if t.ID == id {
			return t, true
		}
	}
	return TradeOff{}, false
}

// FeasibilityCheck is one persisted solver invocation.
type FeasibilityCheck struct {
	ID            uuid.UUID         `json:"id"`
	UserID        uuid.UUID         `json:"user_id"`
	PlanVersionID *uuid.UUID        `json:"plan_version_id,omitempty"`
	Goal          GoalConstraintSet `json:"goal"`
	Result        FeasibilityResult `json:"result"`
	CreatedAt     time.Time         `json:"created_at"`
}
