package reassess

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	domainagg "github.com/yungbote/fitprogram-backend/internal/domain/aggregates"
	"github.com/yungbote/fitprogram-backend/internal/domain/program"
	"github.com/yungbote/fitprogram-backend/internal/modules/program/controller"
	"github.com/yungbote/fitprogram-backend/internal/modules/program/materialize"
	"github.com/yungbote/fitprogram-backend/internal/modules/program/signals"
	"github.com/yungbote/fitprogram-backend/internal/platform/clock"
	"github.com/yungbote/fitprogram-backend/internal/platform/envutil"
	"github.com/yungbote/fitprogram-backend/internal/platform/lock"
	"github.com/yungbote/fitprogram-backend/internal/platform/logger"
)

// Ledger is the slice of the plan ledger a cycle needs.
type Ledger interface {
	GetActive(ctx context.Context, userID uuid.UUID) (*program.PlanVersion, error)
	FindAdjustment(ctx context.Context, userID, fromVersionID uuid.UUID, date string) (*program.AdjustmentRecord, error)
	CommitCycle(ctx context.Context, in domainagg.CommitCycleInput) (domainagg.CommitCycleResult, error)
	RecordFeasibilityCheck(ctx context.Context, check program.FeasibilityCheck) (program.FeasibilityCheck, error)
}

type SignalAggregator interface {
	Aggregate(ctx context.Context, userID uuid.UUID, plan program.PlanParams, w program.Window) (program.Signals, error)
}

type Controller interface {
	Compute(active program.PlanVersion, sig program.Signals, in controller.Input) controller.Decision
	Config() controller.Config
}

type Solver interface {
	Solve(ctx context.Context, g program.GoalConstraintSet) (program.FeasibilityResult, error)
}

type Materializer interface {
	Materialize(ctx context.Context, params program.PlanParams, profile materialize.Profile, start time.Time) (materialize.Program, error)
}

// Observer receives one call per finished cycle.
type Observer interface {
	ObserveCycle(outcome string, adjustmentType string, d time.Duration)
}

type Config struct {
	WindowDays int
	// Accumulated drift above these magnitudes forces a full re-solve.
	CaloriesDrift float64
	VolumeDrift   float64
	// MaxTDEEShiftPct bounds how far one re-anchor may move the TDEE estimate.
	MaxTDEEShiftPct float64
	LockTimeout     time.Duration
}

func DefaultConfig() Config {
	return Config{
		WindowDays:      14,
		CaloriesDrift:   300,
		VolumeDrift:     6,
		MaxTDEEShiftPct: 0.15,
		LockTimeout:     30 * time.Second,
	}
}

func ConfigFromEnv() Config {
	c := DefaultConfig()
	c.WindowDays = envutil.Int("CYCLE_WINDOW_DAYS", c.WindowDays)
	c.CaloriesDrift = envutil.Float("RESOLVE_DRIFT_CALORIES", c.CaloriesDrift)
	c.VolumeDrift = envutil.Float("RESOLVE_DRIFT_VOLUME", c.VolumeDrift)
	c.MaxTDEEShiftPct = envutil.Float("RESOLVE_MAX_TDEE_SHIFT_PCT", c.MaxTDEEShiftPct)
	c.LockTimeout = envutil.Duration("REASSESS_LOCK_TIMEOUT", c.LockTimeout, time.Second)
	return c
}

type Deps struct {
	Log          *logger.Logger
	Ledger       Ledger
	Signals      SignalAggregator
	Controller   Controller
	Solver       Solver
	Materializer Materializer
	Locker       lock.Locker
	Clock        clock.Clock
	Observer     Observer
}

// CycleResult describes a finished cycle. Version is set only when the cycle
// produced a new active plan.
type CycleResult struct {
	State       State
	Record      program.AdjustmentRecord
	Version     *program.PlanVersion
	Duplicate   bool
	Transitions []State
}

type Orchestrator struct {
	cfg  Config
	deps Deps
	log  *logger.Logger
}

var tracer = otel.Tracer("github.com/yungbote/fitprogram-backend/internal/modules/program/reassess")

func New(cfg Config, deps Deps) *Orchestrator {
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = DefaultConfig().WindowDays
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = DefaultConfig().LockTimeout
	}
	if deps.Locker == nil {
		deps.Locker = lock.NewLocal()
	}
	if deps.Clock == nil {
		deps.Clock = clock.System()
	}
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	return &Orchestrator{cfg: cfg, deps: deps, log: log.With("module", "reassess")}
}

func lockKey(userID uuid.UUID) string { return "reassess:" + userID.String() }

// RunCycle runs one reassessment for userID. Cycles for the same user are
// serialized; a cycle that loses the commit race is retried once.
func (o *Orchestrator) RunCycle(ctx context.Context, userID uuid.UUID, trigger program.TriggerReason, force bool) (res CycleResult, err error) {
	started := time.Now()
	if trigger == "" {
		trigger = program.TriggerOnDemand
	}
	ctx, span := tracer.Start(ctx, "reassess.RunCycle", trace.WithAttributes(
		attribute.String("trigger", string(trigger)),
		attribute.Bool("force", force),
	))
	defer func() {
		o.finish(span, userID, res, err, time.Since(started))
		span.End()
	}()

	acquireCtx, cancel := context.WithTimeout(ctx, o.cfg.LockTimeout)
	release, lerr := o.deps.Locker.Acquire(acquireCtx, lockKey(userID))
	cancel()
	if lerr != nil {
		return CycleResult{State: StateFailed, Transitions: []State{StateFailed}},
			fail(StateFetching, ReasonLockUnavailable, true, lerr)
	}
	defer release()

	now := o.deps.Clock.Now().UTC()
	for attempt := 0; ; attempt++ {
		r := &run{o: o, userID: userID, trigger: trigger, force: force, now: now, span: span}
		res, err = r.execute(ctx)
		var ce *CycleError
		if err == nil || attempt > 0 || !errors.As(err, &ce) || ce.Reason != ReasonStoreConflict {
			return res, err
		}
		o.log.Warn("cycle commit conflicted; retrying", "user_id", userID.String(), "error", err)
		span.AddEvent("retry")
	}
}

func (o *Orchestrator) finish(span trace.Span, userID uuid.UUID, res CycleResult, err error, d time.Duration) {
	outcome := string(res.State)
	if res.Duplicate {
		outcome = "duplicate"
	}
	var ce *CycleError
	if errors.As(err, &ce) {
		outcome = string(ce.Reason)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(ce.Reason))
		o.log.Warn("reassessment failed",
			"user_id", userID.String(),
			"state", string(ce.State),
			"reason", string(ce.Reason),
			"retryable", ce.Retryable,
			"error", err,
		)
	} else if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		o.log.Info("reassessment finished",
			"user_id", userID.String(),
			"state", string(res.State),
			"type", string(res.Record.AdjustmentType),
			"duplicate", res.Duplicate,
			"new_version", res.Version != nil,
		)
	}
	span.SetAttributes(attribute.String("outcome", outcome))
	if o.deps.Observer != nil {
		o.deps.Observer.ObserveCycle(outcome, string(res.Record.AdjustmentType), d)
	}
}

// run is one attempt at a cycle.
type run struct {
	o       *Orchestrator
	userID  uuid.UUID
	trigger program.TriggerReason
	force   bool
	now     time.Time
	span    trace.Span
	res     CycleResult
}

func (r *run) enter(s State) {
	r.res.State = s
	r.res.Transitions = append(r.res.Transitions, s)
	r.span.AddEvent(string(s))
}

func (r *run) failed(reason Reason, retryable bool, err error) (CycleResult, error) {
	ce := fail(r.res.State, reason, retryable, err)
	r.enter(StateFailed)
	return r.res, ce
}

func (r *run) execute(ctx context.Context) (CycleResult, error) {
	o := r.o
	date := program.Day(r.now)

	r.enter(StateFetching)
	active, err := o.deps.Ledger.GetActive(ctx, r.userID)
	if err != nil {
		return r.failed(ReasonStoreFailure, domainagg.Transient(err), err)
	}
	if active == nil {
		return r.failed(ReasonNoActivePlan, false, nil)
	}
	prev, err := o.deps.Ledger.FindAdjustment(ctx, r.userID, active.ID, date)
	if err != nil {
		return r.failed(ReasonStoreFailure, domainagg.Transient(err), err)
	}
	if prev != nil {
		r.res.Record = *prev
		r.res.Duplicate = true
		r.enter(StateDone)
		return r.res, nil
	}

	r.enter(StateAggregating)
	sig, err := o.deps.Signals.Aggregate(ctx, r.userID, active.Params, signals.WindowEnding(r.now, o.cfg.WindowDays))
	if err != nil {
		return r.failed(ReasonSignalsUnavailable, true, err)
	}

	r.enter(StateControlling)
	d := o.deps.Controller.Compute(*active, sig, controller.Input{Trigger: r.trigger, Force: r.force, Date: r.now})
	rec := d.Record
	rec.ID = uuid.New()
	rec.UserID = r.userID
	rec.FromVersionID = active.ID
	rec.CreatedAt = r.now

	base := active.Goal.Clone()
	params := d.Params
	drift := cloneDrift(active.Drift)
	assumptions := append([]string(nil), active.Assumptions...)
	changed := d.Changed
	var check *program.FeasibilityCheck

	driftResolve := !d.Resolve && d.Changed && proportional(rec.AdjustmentType) &&
		o.driftExceeded(active.Drift, rec.Adjustments)

	if d.Resolve || driftResolve {
		r.enter(StateResolving)
		var notes []string
		base, notes = o.nextGoal(*active, d, sig, r.now, driftResolve)
		assumptions = append(assumptions, notes...)

		goal := d.Patch.Apply(base)
		result, err := o.deps.Solver.Solve(ctx, goal)
		if err != nil {
			return r.failed(ReasonSolverFailed, true, err)
		}
		chk := program.FeasibilityCheck{
			ID:        uuid.New(),
			UserID:    r.userID,
			Goal:      goal,
			Result:    result,
			CreatedAt: r.now,
		}
		if !result.IsFeasible || result.OptimalParams == nil {
			if _, rerr := o.deps.Ledger.RecordFeasibilityCheck(ctx, chk); rerr != nil {
				o.log.Warn("failed to record infeasible re-solve", "user_id", r.userID.String(), "error", rerr)
			}
			return r.failed(ReasonResolveInfeasible, result.TimedOut, infeasibleError(result))
		}
		check = &chk

		solved := result.OptimalParams.Clone()
		reason := reasonResolved
		switch rec.AdjustmentType {
		case program.AdjustmentConstraintChange:
			reason = reasonResolvedConstraint
		case program.AdjustmentMilestone:
			reason = reasonResolvedMilestone
		default:
			solved = o.rateLimit(active.Params, solved)
			reanchored := base.Baseline.TDEEKcal != active.Goal.Baseline.TDEEKcal
			solved = keepControllerCalories(solved, params, rec.Adjustments, reanchored)
		}
		solved.Deload = params.Deload
		rec.Adjustments = diffAdjustments(active.Params, solved, rec.Adjustments, reason)
		rec.Resolved = true
		if driftResolve {
			rec.Rationale = "accumulated drift exceeded the re-solve threshold; " + rec.Rationale
		}
		params = solved
		drift = map[string]float64{}
		changed = len(rec.Adjustments) > 0 || !d.Patch.Equal(active.Patch) || d.Milestone || r.force
	} else if changed {
		drift = accumulate(drift, rec.Adjustments)
	}

	var next *program.PlanVersion
	if !changed {
		r.enter(StateNoChange)
	} else {
		r.enter(StateMaterializing)
		eff := d.Patch.Apply(base)
		prog, err := o.deps.Materializer.Materialize(ctx, params, materialize.ProfileFrom(eff.Baseline), clock.Day(r.now))
		if err != nil {
			if errors.Is(err, materialize.ErrContentUnavailable) {
				return r.failed(ReasonContentUnavailable, false, err)
			}
			return r.failed(ReasonMaterializeFailed, false, err)
		}
		next = &program.PlanVersion{
			ID:          uuid.New(),
			UserID:      r.userID,
			Goal:        base,
			Patch:       d.Patch,
			Params:      params,
			Training:    prog.Training,
			Nutrition:   prog.Nutrition,
			Rationale:   rec.Rationale,
			Assumptions: assumptions,
			Confidence:  confidence(active.Confidence, sig, o.deps.Controller.Config()),
			Drift:       drift,
			StartDate:   date,
			CreatedAt:   r.now,
		}
	}

	r.enter(StatePersisting)
	supersedeAs := program.PlanArchived
	if d.Milestone {
		supersedeAs = program.PlanCompleted
	}
	out, err := o.deps.Ledger.CommitCycle(ctx, domainagg.CommitCycleInput{
		UserID:        r.userID,
		FromVersionID: active.ID,
		Record:        rec,
		NewVersion:    next,
		SupersedeAs:   supersedeAs,
		Check:         check,
		At:            r.now,
	})
	if err != nil {
		if domainagg.IsCode(err, domainagg.CodeConflict) {
			return r.failed(ReasonStoreConflict, true, err)
		}
		return r.failed(ReasonStoreFailure, domainagg.Transient(err), err)
	}
	r.res.Record = out.Record
	r.res.Version = out.Version
	r.res.Duplicate = out.Duplicate
	r.enter(StateDone)
	return r.res, nil
}

func proportional(t program.AdjustmentType) bool {
	return t == program.AdjustmentScheduled || t == program.AdjustmentEarlyIntervention
}

func infeasibleError(res program.FeasibilityResult) error {
	names := make([]string, 0, len(res.Diagnostics))
	for _, d := range res.Diagnostics {
		names = append(names, string(d.Code))
	}
	if len(names) == 0 {
		return errors.New("re-solve infeasible")
	}
	return fmt.Errorf("re-solve infeasible: %s", strings.Join(names, ", "))
}
