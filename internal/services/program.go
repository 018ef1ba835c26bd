package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	domainagg "github.com/yungbote/fitprogram-backend/internal/domain/aggregates"
	"github.com/yungbote/fitprogram-backend/internal/domain/program"
	"github.com/yungbote/fitprogram-backend/internal/modules/program/materialize"
	"github.com/yungbote/fitprogram-backend/internal/modules/program/reassess"
	"github.com/yungbote/fitprogram-backend/internal/platform/clock"
	"github.com/yungbote/fitprogram-backend/internal/platform/logger"
)

// ProgramService is the entry point for plan generation and the feedback
// loop. Infeasible goals are not errors: they return a nil version and a
// result with IsFeasible=false.
type ProgramService interface {
	GenerateInitialPlan(ctx context.Context, userID uuid.UUID, goal program.GoalConstraintSet) (*program.PlanVersion, *program.FeasibilityResult, error)
	AcceptTradeOff(ctx context.Context, userID, checkID uuid.UUID, tradeOffID string) (*program.PlanVersion, *program.FeasibilityResult, error)
	ActivatePlan(ctx context.Context, userID, versionID uuid.UUID) (*program.PlanVersion, error)
	RunReassessmentCycle(ctx context.Context, userID uuid.UUID, trigger program.TriggerReason, force bool) (*program.AdjustmentRecord, error)
	GetActivePlan(ctx context.Context, userID uuid.UUID) (*program.PlanVersion, error)
	GetPlanHistory(ctx context.Context, userID uuid.UUID) ([]program.PlanSummary, error)
	CheckFeasibility(ctx context.Context, goal program.GoalConstraintSet) (*program.FeasibilityResult, error)
	IngestSignals(ctx context.Context, userID uuid.UUID, events []program.SignalEvent) (int64, error)
}

type GoalSolver interface {
	Solve(ctx context.Context, g program.GoalConstraintSet) (program.FeasibilityResult, error)
}

type PlanMaterializer interface {
	Materialize(ctx context.Context, params program.PlanParams, profile materialize.Profile, start time.Time) (materialize.Program, error)
}

type CycleRunner interface {
	RunCycle(ctx context.Context, userID uuid.UUID, trigger program.TriggerReason, force bool) (reassess.CycleResult, error)
}

type SignalIngester interface {
	Ingest(ctx context.Context, userID uuid.UUID, events []program.SignalEvent) (int64, error)
}

type ProgramServiceDeps struct {
	Ledger       domainagg.PlanLedgerAggregate
	Solver       GoalSolver
	Materializer PlanMaterializer
	Cycles       CycleRunner
	Signals      SignalIngester
	Clock        clock.Clock
}

type programService struct {
	log   *logger.Logger
	deps  ProgramServiceDeps
	reads singleflight.Group
}

func NewProgramService(baseLog *logger.Logger, deps ProgramServiceDeps) ProgramService {
	if deps.Clock == nil {
		deps.Clock = clock.System()
	}
	return &programService{
		log:  baseLog.With("service", "ProgramService"),
		deps: deps,
	}
}

func validationError(op string, err error) error {
	return domainagg.NewError(domainagg.CodeValidation, op, err.Error(), err)
}

func (s *programService) GenerateInitialPlan(ctx context.Context, userID uuid.UUID, goal program.GoalConstraintSet) (*program.PlanVersion, *program.FeasibilityResult, error) {
	const op = "ProgramService.GenerateInitialPlan"
	if userID == uuid.Nil {
		return nil, nil, domainagg.NewError(domainagg.CodeValidation, op, "missing user_id", nil)
	}
	if err := program.ValidateGoal(goal); err != nil {
		return nil, nil, validationError(op, err)
	}
	return s.generate(ctx, op, userID, goal, "")
}

func (s *programService) AcceptTradeOff(ctx context.Context, userID, checkID uuid.UUID, tradeOffID string) (*program.PlanVersion, *program.FeasibilityResult, error) {
	const op = "ProgramService.AcceptTradeOff"
	check, err := s.deps.Ledger.GetFeasibilityCheck(ctx, userID, checkID)
	if err != nil {
		return nil, nil, err
	}
	if check == nil {
		return nil, nil, domainagg.NewError(domainagg.CodeNotFound, op, "feasibility check not found", nil)
	}
	if check.PlanVersionID != nil {
		return nil, nil, domainagg.NewError(domainagg.CodePreconditionFailed, op, "feasibility check already produced a plan", nil)
	}
	to, ok := check.Result.TradeOff(strings.TrimSpace(tradeOffID))
	if !ok {
		return nil, nil, domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("trade-off %q not found", tradeOffID), nil)
	}
	return s.generate(ctx, op, userID, to.RelaxedGoal, "accepted trade-off: "+to.Summary)
}

// generate solves goal, records the check and stores a draft. The draft is
// activated right away when the user has no active plan.
func (s *programService) generate(ctx context.Context, op string, userID uuid.UUID, goal program.GoalConstraintSet, note string) (*program.PlanVersion, *program.FeasibilityResult, error) {
	now := s.deps.Clock.Now().UTC()
	result, err := s.deps.Solver.Solve(ctx, goal)
	if err != nil {
		return nil, nil, err
	}
	if result.TimedOut {
		s.log.Warn("solver timed out", "user_id", userID.String(), "iterations", result.SolverIterations)
	}
	check, err := s.deps.Ledger.RecordFeasibilityCheck(ctx, program.FeasibilityCheck{
		ID:        uuid.New(),
		UserID:    userID,
		Goal:      goal,
		Result:    result,
		CreatedAt: now,
	})
	if err != nil {
		return nil, nil, err
	}
	result.CheckID = &check.ID
	if !result.IsFeasible || result.OptimalParams == nil {
		return nil, &result, nil
	}

	params := result.OptimalParams.Clone()
	prog, err := s.deps.Materializer.Materialize(ctx, params, materialize.ProfileFrom(goal.Baseline), clock.Day(now))
	if err != nil {
		return nil, &result, err
	}

	rationale := describeParams(params, result.Score)
	if note != "" {
		rationale = note + "; " + rationale
	}
	appended, err := s.deps.Ledger.AppendVersion(ctx, domainagg.AppendPlanVersionInput{
		Version: program.PlanVersion{
			ID:          uuid.New(),
			UserID:      userID,
			Status:      program.PlanDraft,
			Goal:        goal,
			Params:      params,
			Training:    prog.Training,
			Nutrition:   prog.Nutrition,
			Rationale:   rationale,
			Assumptions: assumptionsFor(goal),
			Confidence:  map[string]float64{"tdee": tdeeConfidence(goal.Baseline)},
			StartDate:   program.Day(now),
			CreatedAt:   now,
		},
		CheckID: &check.ID,
	})
	if err != nil {
		return nil, &result, err
	}
	v := appended.Version

	active, err := s.deps.Ledger.GetActive(ctx, userID)
	if err != nil {
		return &v, &result, err
	}
	if active == nil {
		res, err := s.deps.Ledger.Activate(ctx, domainagg.ActivatePlanInput{
			UserID:    userID,
			VersionID: v.ID,
			At:        now,
		})
		if err != nil {
			return &v, &result, err
		}
		v = res.Version
	}
	s.log.Info("plan generated",
		"user_id", userID.String(),
		"version", v.VersionNumber,
		"status", string(v.Status),
		"op", op,
	)
	return &v, &result, nil
}

func (s *programService) ActivatePlan(ctx context.Context, userID, versionID uuid.UUID) (*program.PlanVersion, error) {
	res, err := s.deps.Ledger.Activate(ctx, domainagg.ActivatePlanInput{
		UserID:      userID,
		VersionID:   versionID,
		SupersedeAs: program.PlanArchived,
		At:          s.deps.Clock.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	s.reads.Forget(userID.String())
	return &res.Version, nil
}

func (s *programService) RunReassessmentCycle(ctx context.Context, userID uuid.UUID, trigger program.TriggerReason, force bool) (*program.AdjustmentRecord, error) {
	const op = "ProgramService.RunReassessmentCycle"
	if trigger == "" {
		trigger = program.TriggerOnDemand
	}
	if !program.IsTriggerReason(trigger) {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, fmt.Sprintf("unknown trigger %q", trigger), nil)
	}
	res, err := s.deps.Cycles.RunCycle(ctx, userID, trigger, force)
	if err != nil {
		return nil, err
	}
	if res.Version != nil {
		s.reads.Forget(userID.String())
	}
	rec := res.Record
	return &rec, nil
}

// activeReadTimeout bounds a coalesced read once it no longer follows any one
// caller's context.
const activeReadTimeout = 5 * time.Second

// GetActivePlan coalesces concurrent reads for the same user. The shared read
// outlives any single caller; each caller still returns on its own ctx.
func (s *programService) GetActivePlan(ctx context.Context, userID uuid.UUID) (*program.PlanVersion, error) {
	ch := s.reads.DoChan(userID.String(), func() (interface{}, error) {
		readCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), activeReadTimeout)
		defer cancel()
		return s.deps.Ledger.GetActive(readCtx, userID)
	})
	var r singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r = <-ch:
	}
	if r.Err != nil {
		return nil, r.Err
	}
	active, _ := r.Val.(*program.PlanVersion)
	if active == nil {
		return nil, nil
	}
	out := *active
	return &out, nil
}

func (s *programService) GetPlanHistory(ctx context.Context, userID uuid.UUID) ([]program.PlanSummary, error) {
	return s.deps.Ledger.History(ctx, userID)
}

func (s *programService) CheckFeasibility(ctx context.Context, goal program.GoalConstraintSet) (*program.FeasibilityResult, error) {
	if err := program.ValidateGoal(goal); err != nil {
		return nil, validationError("ProgramService.CheckFeasibility", err)
	}
	res, err := s.deps.Solver.Solve(ctx, goal)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *programService) IngestSignals(ctx context.Context, userID uuid.UUID, events []program.SignalEvent) (int64, error) {
	const op = "ProgramService.IngestSignals"
	if userID == uuid.Nil {
		return 0, domainagg.NewError(domainagg.CodeValidation, op, "missing user_id", nil)
	}
	if len(events) == 0 {
		return 0, nil
	}
	var problems []error
	for i, ev := range events {
		if err := program.ValidateSignal(ev); err != nil {
			problems = append(problems, fmt.Errorf("events[%d]: %w", i, err))
		}
	}
	if len(problems) > 0 {
		return 0, validationError(op, errors.Join(problems...))
	}
	return s.deps.Signals.Ingest(ctx, userID, events)
}

func describeParams(p program.PlanParams, score float64) string {
	return fmt.Sprintf("%s split, %d sessions/week x %d min, %.0f kcal with %.0f g protein, %+.2f kg/week over %d weeks (score %.2f)",
		p.Split, p.SessionsPerWeek, p.SessionMinutes, p.Calories, p.ProteinG, p.TargetRateKgPerWeek, p.TimelineWeeks, score)
}

func assumptionsFor(g program.GoalConstraintSet) []string {
	b := g.Baseline
	band := b.TDEEBand()
	out := []string{
		fmt.Sprintf("TDEE %.0f kcal (range %.0f-%.0f)", b.TDEEKcal, band.Low, band.High),
		fmt.Sprintf("%.0f kcal per kg of body-mass change", program.KcalPerKgBodyMass),
	}
	if len(b.Equipment) == 0 {
		out = append(out, "bodyweight training only")
	}
	return out
}

// tdeeConfidence shrinks as the TDEE interval widens relative to the estimate.
func tdeeConfidence(b program.Baseline) float64 {
	if b.TDEEKcal <= 0 {
		return 0
	}
	band := b.TDEEBand()
	c := 1 - (band.High-band.Low)/b.TDEEKcal
	return math.Round(math.Max(0, math.Min(1, c))*100) / 100
}
