package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/fitprogram-backend/internal/data/aggregates"
	programrepo "github.com/yungbote/fitprogram-backend/internal/data/repos/program"
	repotest "github.com/yungbote/fitprogram-backend/internal/data/repos/testutil"
	domainagg "github.com/yungbote/fitprogram-backend/internal/domain/aggregates"
	"github.com/yungbote/fitprogram-backend/internal/domain/program"
	"github.com/yungbote/fitprogram-backend/internal/modules/program/materialize"
	"github.com/yungbote/fitprogram-backend/internal/modules/program/reassess"
	"github.com/yungbote/fitprogram-backend/internal/platform/clock"
)

var serviceNow = time.Date(2026, 4, 13, 8, 0, 0, 0, time.UTC)

type solverFunc func(g program.GoalConstraintSet) program.FeasibilityResult

func (f solverFunc) Solve(_ context.Context, g program.GoalConstraintSet) (program.FeasibilityResult, error) {
	return f(g), nil
}

func alwaysFeasible(g program.GoalConstraintSet) program.FeasibilityResult {
	p := repotest.Params()
	return program.FeasibilityResult{IsFeasible: true, OptimalParams: &p, Score: 0.9}
}

type stubMaterializer struct{ calls int }

func (m *stubMaterializer) Materialize(_ context.Context, params program.PlanParams, _ materialize.Profile, start time.Time) (materialize.Program, error) {
	m.calls++
	return materialize.Program{
		Training:  []program.TrainingDay{{Date: program.Day(start), Kind: program.DayTraining, Minutes: params.SessionMinutes}},
		Nutrition: []program.NutritionDay{{Date: program.Day(start), Calories: params.Calories}},
	}, nil
}

type stubCycles struct {
	res reassess.CycleResult
	err error
}

func (c stubCycles) RunCycle(context.Context, uuid.UUID, program.TriggerReason, bool) (reassess.CycleResult, error) {
	return c.res, c.err
}

type stubIngester struct{ got []program.SignalEvent }

func (s *stubIngester) Ingest(_ context.Context, _ uuid.UUID, events []program.SignalEvent) (int64, error) {
	s.got = append(s.got, events...)
	return int64(len(events)), nil
}

type serviceFixture struct {
	svc    ProgramService
	ledger domainagg.PlanLedgerAggregate
	mat    *stubMaterializer
	ingest *stubIngester
}

func newProgramFixture(t *testing.T, solve solverFunc, cycles CycleRunner) serviceFixture {
	t.Helper()
	db := repotest.SQLite(t)
	log := repotest.Logger(t)
	set := programrepo.NewSet(db, log)
	ledger := aggregates.NewPlanLedgerAggregate(aggregates.PlanLedgerAggregateDeps{
		Base:        aggregates.BaseDeps{DB: db, Log: log},
		Versions:    set.Versions,
		Active:      set.Active,
		Checks:      set.Checks,
		Adjustments: set.Adjustments,
	})
	f := serviceFixture{ledger: ledger, mat: &stubMaterializer{}, ingest: &stubIngester{}}
	f.svc = NewProgramService(log, ProgramServiceDeps{
		Ledger:       ledger,
		Solver:       solve,
		Materializer: f.mat,
		Cycles:       cycles,
		Signals:      f.ingest,
		Clock:        clock.NewManual(serviceNow),
	})
	return f
}

func TestGenerateInitialPlanActivatesFirstVersion(t *testing.T) {
	f := newProgramFixture(t, alwaysFeasible, nil)
	ctx := context.Background()
	userID := uuid.New()

	v, res, err := f.svc.GenerateInitialPlan(ctx, userID, repotest.Goal())
	if err != nil {
		t.Fatalf("GenerateInitialPlan: %v", err)
	}
	if v == nil || !res.IsFeasible {
		t.Fatalf("want feasible plan, got version=%v result=%+v", v, res)
	}
	if v.Status != program.PlanActive || v.VersionNumber != 1 {
		t.Fatalf("want active v1, got %s v%d", v.Status, v.VersionNumber)
	}
	if v.StartDate != "2026-04-13" || len(v.Training) == 0 || v.Confidence["tdee"] != 0.8 {
		t.Fatalf("unexpected version fields: %+v", v)
	}

	got, err := f.svc.GetActivePlan(ctx, userID)
	if err != nil || got == nil || got.ID != v.ID {
		t.Fatalf("GetActivePlan: want=%s got=%v err=%v", v.ID, got, err)
	}
}

func TestSecondPlanStaysDraftUntilActivated(t *testing.T) {
	f := newProgramFixture(t, alwaysFeasible, nil)
	ctx := context.Background()
	userID := uuid.New()

	first, _, err := f.svc.GenerateInitialPlan(ctx, userID, repotest.Goal())
	if err != nil {
		t.Fatalf("first plan: %v", err)
	}
	second, _, err := f.svc.GenerateInitialPlan(ctx, userID, repotest.Goal())
	if err != nil {
		t.Fatalf("second plan: %v", err)
	}
	if second.Status != program.PlanDraft || second.VersionNumber != 2 {
		t.Fatalf("want draft v2, got %s v%d", second.Status, second.VersionNumber)
	}
	active, _ := f.svc.GetActivePlan(ctx, userID)
	if active == nil || active.ID != first.ID {
		t.Fatalf("first plan should remain active")
	}

	activated, err := f.svc.ActivatePlan(ctx, userID, second.ID)
	if err != nil {
		t.Fatalf("ActivatePlan: %v", err)
	}
	if activated.Status != program.PlanActive {
		t.Fatalf("want active, got %s", activated.Status)
	}
	hist, err := f.svc.GetPlanHistory(ctx, userID)
	if err != nil || len(hist) != 2 {
		t.Fatalf("GetPlanHistory: want=2 got=%d err=%v", len(hist), err)
	}
	if hist[0].Status != program.PlanArchived || hist[1].Status != program.PlanActive {
		t.Fatalf("unexpected history statuses: %s, %s", hist[0].Status, hist[1].Status)
	}
}

func TestInfeasibleGoalThenAcceptTradeOff(t *testing.T) {
	// Feasible only once the frequency floor is relaxed to 2.
	solve := func(g program.GoalConstraintSet) program.FeasibilityResult {
		if v, _ := g.Hard(program.SessionsPerWeekMin); v <= 2 {
			return alwaysFeasible(g)
		}
		return program.FeasibilityResult{
			Diagnostics: []program.Diagnostic{{Code: program.DiagFreqTooLow, Constraint: program.SessionsPerWeekMin}},
			TradeOffs: []program.TradeOff{{
				ID:          "t1",
				Summary:     "train 2 days a week",
				Levers:      []program.Lever{program.LeverRaiseFrequency},
				RelaxedGoal: g.WithHard(program.SessionsPerWeekMin, 2),
			}},
		}
	}
	f := newProgramFixture(t, solve, nil)
	ctx := context.Background()
	userID := uuid.New()

	v, res, err := f.svc.GenerateInitialPlan(ctx, userID, repotest.Goal())
	if err != nil {
		t.Fatalf("GenerateInitialPlan: %v", err)
	}
	if v != nil || res.IsFeasible || !res.HasCode(program.DiagFreqTooLow) {
		t.Fatalf("want infeasible result without version, got %v %+v", v, res)
	}
	if f.mat.calls != 0 {
		t.Fatalf("infeasible goals must not be materialized")
	}
	if hist, _ := f.svc.GetPlanHistory(ctx, userID); len(hist) != 0 {
		t.Fatalf("want empty history, got %d", len(hist))
	}

	if res.CheckID == nil {
		t.Fatalf("infeasible result should carry its check id")
	}
	check, err := f.ledger.GetFeasibilityCheck(ctx, userID, *res.CheckID)
	if err != nil || check == nil {
		t.Fatalf("GetFeasibilityCheck: got=%v err=%v", check, err)
	}

	if _, _, err := f.svc.AcceptTradeOff(ctx, userID, check.ID, "missing"); !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("unknown trade-off: want not_found got %v", err)
	}
	v, res, err = f.svc.AcceptTradeOff(ctx, userID, check.ID, "t1")
	if err != nil {
		t.Fatalf("AcceptTradeOff: %v", err)
	}
	if v == nil || !res.IsFeasible || v.Status != program.PlanActive {
		t.Fatalf("want active plan from trade-off, got %+v", v)
	}
	if got, _ := v.Goal.Hard(program.SessionsPerWeekMin); got != 2 {
		t.Fatalf("want relaxed goal stored, got sessions min %v", got)
	}
	if _, _, err := f.svc.AcceptTradeOff(ctx, uuid.New(), check.ID, "t1"); !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("other user's check: want not_found got %v", err)
	}
}

func TestProgramServiceValidation(t *testing.T) {
	f := newProgramFixture(t, alwaysFeasible, stubCycles{})
	ctx := context.Background()

	bad := repotest.Goal()
	bad.TimelineWeeks = 0
	if _, _, err := f.svc.GenerateInitialPlan(ctx, uuid.New(), bad); !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("invalid goal: want validation got %v", err)
	}
	if !errors.Is(func() error { _, err := f.svc.CheckFeasibility(ctx, bad); return err }(), program.ErrInvalidGoal) {
		t.Fatalf("CheckFeasibility should wrap ErrInvalidGoal")
	}
	if _, err := f.svc.RunReassessmentCycle(ctx, uuid.New(), "whenever", false); !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("unknown trigger: want validation got %v", err)
	}
	_, err := f.svc.IngestSignals(ctx, uuid.New(), []program.SignalEvent{{Kind: "mood_ring", OccurredAt: serviceNow}})
	if !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("unknown signal kind: want validation got %v", err)
	}
	if len(f.ingest.got) != 0 {
		t.Fatalf("invalid batches must not reach the store")
	}
}

func TestRunReassessmentCycleDelegates(t *testing.T) {
	rec := program.AdjustmentRecord{ID: uuid.New(), AdjustmentType: program.AdjustmentScheduled}
	f := newProgramFixture(t, alwaysFeasible, stubCycles{res: reassess.CycleResult{State: reassess.StateDone, Record: rec}})
	got, err := f.svc.RunReassessmentCycle(context.Background(), uuid.New(), program.TriggerScheduled, false)
	if err != nil || got.ID != rec.ID {
		t.Fatalf("RunReassessmentCycle: want=%s got=%v err=%v", rec.ID, got, err)
	}

	cycleErr := &reassess.CycleError{State: reassess.StateAggregating, Reason: reassess.ReasonSignalsUnavailable, Retryable: true}
	f = newProgramFixture(t, alwaysFeasible, stubCycles{err: cycleErr})
	_, err = f.svc.RunReassessmentCycle(context.Background(), uuid.New(), "", false)
	var ce *reassess.CycleError
	if !errors.As(err, &ce) || ce.Reason != reassess.ReasonSignalsUnavailable {
		t.Fatalf("want CycleError passthrough, got %v", err)
	}
}

func TestIngestSignals(t *testing.T) {
	f := newProgramFixture(t, alwaysFeasible, nil)
	n, err := f.svc.IngestSignals(context.Background(), uuid.New(), []program.SignalEvent{
		{Kind: program.SignalWeight, Value: 87.4, OccurredAt: serviceNow},
		{Kind: program.SignalSessionLogged, Value: 1, OccurredAt: serviceNow},
	})
	if err != nil || n != 2 {
		t.Fatalf("IngestSignals: want=2 got=%d err=%v", n, err)
	}
}

type gatedLedger struct {
	domainagg.PlanLedgerAggregate
	entered chan struct{}
	release chan struct{}
	readErr chan error
}

func (l *gatedLedger) GetActive(ctx context.Context, userID uuid.UUID) (*program.PlanVersion, error) {
	l.entered <- struct{}{}
	<-l.release
	l.readErr <- ctx.Err()
	return l.PlanLedgerAggregate.GetActive(ctx, userID)
}

func TestGetActivePlanSurvivesCancelledCoalescedCaller(t *testing.T) {
	f := newProgramFixture(t, alwaysFeasible, nil)
	userID := uuid.New()
	v, _, err := f.svc.GenerateInitialPlan(context.Background(), userID, repotest.Goal())
	if err != nil {
		t.Fatalf("GenerateInitialPlan: %v", err)
	}

	gated := &gatedLedger{
		PlanLedgerAggregate: f.ledger,
		entered:             make(chan struct{}, 2),
		release:             make(chan struct{}),
		readErr:             make(chan error, 2),
	}
	svc := NewProgramService(repotest.Logger(t), ProgramServiceDeps{
		Ledger:       gated,
		Solver:       solverFunc(alwaysFeasible),
		Materializer: f.mat,
		Signals:      f.ingest,
		Clock:        clock.NewManual(serviceNow),
	})

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.GetActivePlan(first, userID)
		firstErr <- err
	}()
	<-gated.entered
	cancel()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled caller: want context.Canceled got %v", err)
	}

	type outcome struct {
		v   *program.PlanVersion
		err error
	}
	second := make(chan outcome, 1)
	go func() {
		got, err := svc.GetActivePlan(context.Background(), userID)
		second <- outcome{got, err}
	}()
	close(gated.release)

	if err := <-gated.readErr; err != nil {
		t.Fatalf("shared read must not inherit the cancelled caller's ctx: %v", err)
	}
	got := <-second
	if got.err != nil || got.v == nil || got.v.ID != v.ID {
		t.Fatalf("second caller: want=%s got=%v err=%v", v.ID, got.v, got.err)
	}
}
