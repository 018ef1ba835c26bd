package reassess

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	domainagg "github.com/yungbote/fitprogram-backend/internal/domain/aggregates"
	"github.com/yungbote/fitprogram-backend/internal/domain/program"
	"github.com/yungbote/fitprogram-backend/internal/modules/program/controller"
	"github.com/yungbote/fitprogram-backend/internal/modules/program/materialize"
	"github.com/yungbote/fitprogram-backend/internal/modules/program/solver"
	"github.com/yungbote/fitprogram-backend/internal/platform/clock"
	"github.com/yungbote/fitprogram-backend/internal/platform/lock"
)

var now = time.Date(2026, 5, 11, 7, 30, 0, 0, time.UTC)

func baseGoal() program.GoalConstraintSet {
	return program.GoalConstraintSet{
		PrimaryGoal:     program.GoalFatLoss,
		TargetMetrics:   map[program.Metric]float64{program.MetricBodyWeightKg: 80},
		TimelineWeeks:   16,
		HardConstraints: []program.Constraint{{Kind: program.SessionsPerWeekMin, Value: 3}},
		Baseline: program.Baseline{
			TDEEKcal:             3000,
			BodyWeightKg:         88,
			Experience:           program.ExperienceIntermediate,
			Equipment:            []string{"barbell", "dumbbell", "bench"},
			AvailableDaysPerWeek: 5,
			WeeklyMinutes:        360,
			MaxSessionMinutes:    90,
		},
	}
}

func baseParams() program.PlanParams {
	sets := map[program.MuscleGroup]int{}
	for _, m := range program.MuscleGroups {
		sets[m] = 10
	}
	p := program.PlanParams{
		Split:               program.SplitUpperLower,
		SessionsPerWeek:     4,
		SessionMinutes:      60,
		WeeklySetsPerMuscle: sets,
		ProteinG:            180,
		MealsPerDay:         3,
		TargetRateKgPerWeek: -0.5,
		TimelineWeeks:       16,
	}
	return p.WithCalories(2500)
}

func activeVersion(userID uuid.UUID) *program.PlanVersion {
	at := now.AddDate(0, 0, -14)
	return &program.PlanVersion{
		ID:            uuid.New(),
		UserID:        userID,
		VersionNumber: 1,
		Status:        program.PlanActive,
		Goal:          baseGoal(),
		Params:        baseParams(),
		Rationale:     "initial plan",
		Assumptions:   []string{"tdee from baseline"},
		Confidence:    map[string]float64{"tdee": 0.8},
		StartDate:     program.Day(at),
		CreatedAt:     at,
		ActivatedAt:   &at,
	}
}

// quiet signals produce no controller change.
func quiet() program.Signals {
	return program.Signals{Adherence: program.AdherenceMetrics{Overall: 0.9, NutritionRate: 0.9, TrainingRate: 0.9}}
}

// stalled signals: weight flat against a -0.5 kg/week target, so calories drop
// by the clamped step.
func stalled(latest float64) program.Signals {
	s := quiet()
	s.Biometrics = program.BiometricTrends{WeightSamples: 5, LatestWeightKg: &latest, WeightSlopeKgPerWeek: 0}
	return s
}

type fakeLedger struct {
	mu        sync.Mutex
	active    *program.PlanVersion
	records   map[string]program.AdjustmentRecord
	commits   int
	conflicts int
	checks    []program.FeasibilityCheck
	supersede []program.PlanStatus
	getErr    error
}

func newLedger(active *program.PlanVersion) *fakeLedger {
	return &fakeLedger{active: active, records: map[string]program.AdjustmentRecord{}}
}

func cycleKey(userID, from uuid.UUID, date string) string {
	return userID.String() + "/" + from.String() + "/" + date
}

func (l *fakeLedger) GetActive(_ context.Context, userID uuid.UUID) (*program.PlanVersion, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.getErr != nil {
		return nil, l.getErr
	}
	if l.active == nil || l.active.UserID != userID {
		return nil, nil
	}
	v := *l.active
	return &v, nil
}

func (l *fakeLedger) FindAdjustment(_ context.Context, userID, from uuid.UUID, date string) (*program.AdjustmentRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if rec, ok := l.records[cycleKey(userID, from, date)]; ok {
		return &rec, nil
	}
	return nil, nil
}

func (l *fakeLedger) RecordFeasibilityCheck(_ context.Context, c program.FeasibilityCheck) (program.FeasibilityCheck, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.checks = append(l.checks, c)
	return c, nil
}

// CommitCycle does not dedupe so tests can observe unserialized cycles.
func (l *fakeLedger) CommitCycle(_ context.Context, in domainagg.CommitCycleInput) (domainagg.CommitCycleResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conflicts > 0 {
		l.conflicts--
		return domainagg.CommitCycleResult{}, domainagg.NewError(domainagg.CodeConflict, "CommitCycle", "active version changed", nil)
	}
	l.commits++
	rec := in.Record
	var out *program.PlanVersion
	if in.NewVersion != nil {
		v := *in.NewVersion
		v.VersionNumber = l.active.VersionNumber + 1
		parent := in.FromVersionID
		v.ParentVersionID = &parent
		v.Status = program.PlanActive
		l.supersede = append(l.supersede, in.SupersedeAs)
		l.active = &v
		rec.ToVersionID = &v.ID
		out = &v
	}
	if in.Check != nil {
		l.checks = append(l.checks, *in.Check)
	}
	l.records[cycleKey(in.UserID, in.FromVersionID, rec.AdjustmentDate)] = rec
	return domainagg.CommitCycleResult{Record: rec, Version: out}, nil
}

type fakeSignals struct {
	sig   program.Signals
	err   error
	delay time.Duration
}

func (f fakeSignals) Aggregate(context.Context, uuid.UUID, program.PlanParams, program.Window) (program.Signals, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.sig, f.err
}

type fakeSolver struct {
	mu     sync.Mutex
	result program.FeasibilityResult
	goals  []program.GoalConstraintSet
}

func (s *fakeSolver) Solve(_ context.Context, g program.GoalConstraintSet) (program.FeasibilityResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.goals = append(s.goals, g)
	return s.result, nil
}

func feasible(p program.PlanParams) program.FeasibilityResult {
	return program.FeasibilityResult{IsFeasible: true, OptimalParams: &p}
}

type fakeMaterializer struct {
	err      error
	profiles []materialize.Profile
}

func (m *fakeMaterializer) Materialize(_ context.Context, params program.PlanParams, profile materialize.Profile, start time.Time) (materialize.Program, error) {
	m.profiles = append(m.profiles, profile)
	if m.err != nil {
		return materialize.Program{}, m.err
	}
	return materialize.Program{
		Training:  []program.TrainingDay{{DayIndex: 0, Date: program.Day(start), Kind: program.DayTraining}},
		Nutrition: []program.NutritionDay{{DayIndex: 0, Date: program.Day(start), Calories: params.Calories}},
	}, nil
}

type observed struct {
	mu       sync.Mutex
	outcomes []string
}

func (o *observed) ObserveCycle(outcome, _ string, _ time.Duration) {
	o.mu.Lock()
	o.outcomes = append(o.outcomes, outcome)
	o.mu.Unlock()
}

type harness struct {
	userID uuid.UUID
	ledger *fakeLedger
	solver *fakeSolver
	mat    *fakeMaterializer
	obs    *observed
	orch   *Orchestrator
}

func newHarness(t *testing.T, sig program.Signals, sigErr error) *harness {
	return newHarnessWith(t, fakeSignals{sig: sig, err: sigErr})
}

func newHarnessWith(t *testing.T, src fakeSignals) *harness {
	t.Helper()
	h := &harness{
		userID: uuid.New(),
		solver: &fakeSolver{},
		mat:    &fakeMaterializer{},
		obs:    &observed{},
	}
	h.ledger = newLedger(activeVersion(h.userID))
	h.orch = New(DefaultConfig(), Deps{
		Ledger:       h.ledger,
		Signals:      src,
		Controller:   controller.New(controller.DefaultConfig()),
		Solver:       h.solver,
		Materializer: h.mat,
		Locker:       lock.NewLocal(),
		Clock:        clock.NewManual(now),
		Observer:     h.obs,
	})
	return h
}

func reasonOf(t *testing.T, err error) *CycleError {
	t.Helper()
	var ce *CycleError
	if !errors.As(err, &ce) {
		t.Fatalf("want *CycleError, got %T: %v", err, err)
	}
	return ce
}

func TestNoChangeRecordsCycleAndKeepsPlan(t *testing.T) {
	h := newHarness(t, quiet(), nil)
	before := h.ledger.active.ID

	res, err := h.orch.RunCycle(context.Background(), h.userID, program.TriggerScheduled, false)
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if res.State != StateDone || res.Version != nil || res.Duplicate {
		t.Fatalf("want done without version, got %+v", res)
	}
	if res.Record.ToVersionID != nil || res.Record.AdjustmentType != program.AdjustmentScheduled {
		t.Fatalf("unexpected record: %+v", res.Record)
	}
	if res.Record.AdjustmentDate != "2026-05-11" {
		t.Fatalf("want adjustment date 2026-05-11, got %s", res.Record.AdjustmentDate)
	}
	want := []State{StateFetching, StateAggregating, StateControlling, StateNoChange, StatePersisting, StateDone}
	if fmt.Sprint(res.Transitions) != fmt.Sprint(want) {
		t.Fatalf("transitions: want=%v got=%v", want, res.Transitions)
	}
	if h.ledger.active.ID != before {
		t.Fatalf("active plan changed on a no-op cycle")
	}
}

func TestSameDayCycleIsDuplicate(t *testing.T) {
	h := newHarness(t, quiet(), nil)
	ctx := context.Background()

	first, err := h.orch.RunCycle(ctx, h.userID, program.TriggerScheduled, false)
	if err != nil {
		t.Fatalf("first RunCycle: %v", err)
	}
	second, err := h.orch.RunCycle(ctx, h.userID, program.TriggerScheduled, false)
	if err != nil {
		t.Fatalf("second RunCycle: %v", err)
	}
	if !second.Duplicate || second.Record.ID != first.Record.ID {
		t.Fatalf("want duplicate returning %s, got %+v", first.Record.ID, second)
	}
	if h.ledger.commits != 1 {
		t.Fatalf("want one commit, got %d", h.ledger.commits)
	}
	if got := h.obs.outcomes; len(got) != 2 || got[1] != "duplicate" {
		t.Fatalf("observer outcomes: %v", got)
	}
}

func TestConcurrentCyclesAreSerialized(t *testing.T) {
	h := newHarnessWith(t, fakeSignals{sig: quiet(), delay: 20 * time.Millisecond})

	var wg sync.WaitGroup
	results := make([]CycleResult, 4)
	errs := make([]error, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = h.orch.RunCycle(context.Background(), h.userID, program.TriggerScheduled, false)
		}(i)
	}
	wg.Wait()

	dups := 0
	for i, err := range errs {
		if err != nil {
			t.Fatalf("cycle %d: %v", i, err)
		}
		if results[i].Duplicate {
			dups++
		}
	}
	if h.ledger.commits != 1 || dups != 3 {
		t.Fatalf("want one commit and three duplicates, got commits=%d duplicates=%d", h.ledger.commits, dups)
	}
}

func TestProportionalChangeAccumulatesDrift(t *testing.T) {
	h := newHarness(t, stalled(86), nil)

	res, err := h.orch.RunCycle(context.Background(), h.userID, program.TriggerOnDemand, false)
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if res.Version == nil {
		t.Fatalf("want a new version")
	}
	if res.Record.AdjustmentType != program.AdjustmentEarlyIntervention {
		t.Fatalf("want early_intervention, got %s", res.Record.AdjustmentType)
	}
	if got := res.Version.Params.Calories; got != 2350 {
		t.Fatalf("want calories 2350, got %v", got)
	}
	if got := res.Version.Drift[program.ChannelCalories]; got != -150 {
		t.Fatalf("want calorie drift -150, got %v", got)
	}
	if len(h.solver.goals) != 0 {
		t.Fatalf("proportional change should not re-solve")
	}
	if res.Version.Confidence["tdee"] != 0.8 || res.Version.Confidence["adherence"] != 0.9 {
		t.Fatalf("confidence not carried: %v", res.Version.Confidence)
	}
	if h.ledger.supersede[0] != program.PlanArchived {
		t.Fatalf("want archived supersede, got %s", h.ledger.supersede[0])
	}
}

func TestDriftTriggersRateLimitedResolve(t *testing.T) {
	h := newHarness(t, stalled(86), nil)
	h.ledger.active.Drift = map[string]float64{program.ChannelCalories: -200}
	solved := baseParams().WithCalories(2000)
	solved.WeeklySetsPerMuscle[program.MuscleLegs] = 18
	h.solver.result = feasible(solved)

	res, err := h.orch.RunCycle(context.Background(), h.userID, program.TriggerOnDemand, false)
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if len(h.solver.goals) != 1 {
		t.Fatalf("want one re-solve, got %d", len(h.solver.goals))
	}
	g := h.solver.goals[0]
	if g.Baseline.TDEEKcal != 2550 {
		t.Fatalf("want TDEE re-anchored to 2550 (clamped), got %v", g.Baseline.TDEEKcal)
	}
	if g.Baseline.BodyWeightKg != 86 || g.TimelineWeeks != 14 {
		t.Fatalf("want refreshed weight 86 and 14 weeks left, got %v / %d", g.Baseline.BodyWeightKg, g.TimelineWeeks)
	}
	v := res.Version
	if v == nil || v.Params.Calories != 2350 {
		t.Fatalf("want calories rate-limited to 2350, got %+v", v)
	}
	if got := v.Params.WeeklySetsPerMuscle[program.MuscleLegs]; got != 14 {
		t.Fatalf("want legs volume rate-limited to 14, got %d", got)
	}
	if len(v.Drift) != 0 {
		t.Fatalf("drift should reset after a re-solve, got %v", v.Drift)
	}
	adj, ok := res.Record.Adjustments[program.ChannelCalories]
	if !ok || !strings.HasPrefix(adj.Reason, "re-solved") || adj.New != 2350 {
		t.Fatalf("unexpected calorie adjustment: %+v", adj)
	}
	if !res.Record.Resolved || len(h.ledger.checks) != 1 {
		t.Fatalf("want resolved record with a stored check, got resolved=%v checks=%d", res.Record.Resolved, len(h.ledger.checks))
	}
	found := false
	for _, a := range v.Assumptions {
		found = found || strings.Contains(a, "TDEE re-estimated")
	}
	if !found {
		t.Fatalf("missing TDEE assumption: %v", v.Assumptions)
	}
	want := []State{StateFetching, StateAggregating, StateControlling, StateResolving, StateMaterializing, StatePersisting, StateDone}
	if fmt.Sprint(res.Transitions) != fmt.Sprint(want) {
		t.Fatalf("transitions: want=%v got=%v", want, res.Transitions)
	}
}

func TestInfeasibleResolveKeepsActivePlan(t *testing.T) {
	h := newHarness(t, stalled(86), nil)
	h.ledger.active.Drift = map[string]float64{program.ChannelCalories: -200}
	h.solver.result = program.FeasibilityResult{
		IsFeasible:  false,
		Diagnostics: []program.Diagnostic{{Code: program.DiagTimelineTooShort}},
	}
	before := h.ledger.active.ID

	res, err := h.orch.RunCycle(context.Background(), h.userID, program.TriggerOnDemand, false)
	ce := reasonOf(t, err)
	if ce.Reason != ReasonResolveInfeasible || ce.State != StateResolving {
		t.Fatalf("want resolve_infeasible in resolving, got %s in %s", ce.Reason, ce.State)
	}
	if res.State != StateFailed {
		t.Fatalf("want failed state, got %s", res.State)
	}
	if h.ledger.active.ID != before || h.ledger.commits != 0 {
		t.Fatalf("active plan must not change on failure")
	}
	if len(h.ledger.checks) != 1 || h.ledger.checks[0].Result.IsFeasible {
		t.Fatalf("infeasible check not recorded: %+v", h.ledger.checks)
	}
}

func TestMilestoneResolvesAsMaintenance(t *testing.T) {
	h := newHarness(t, stalled(80.2), nil)
	solved := baseParams().WithCalories(2700)
	solved.TargetRateKgPerWeek = 0
	h.solver.result = feasible(solved)

	res, err := h.orch.RunCycle(context.Background(), h.userID, program.TriggerScheduled, false)
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if res.Record.AdjustmentType != program.AdjustmentMilestone {
		t.Fatalf("want milestone, got %s", res.Record.AdjustmentType)
	}
	g := h.solver.goals[0]
	if g.PrimaryGoal != program.GoalMaintenance || g.TimelineWeeks != 12 || g.TargetMetrics[program.MetricBodyWeightKg] != 80.2 {
		t.Fatalf("unexpected maintenance goal: %+v", g)
	}
	if res.Version.Params.Calories != 2700 {
		t.Fatalf("milestone re-solve is not rate-limited: want 2700 got %v", res.Version.Params.Calories)
	}
	if h.ledger.supersede[0] != program.PlanCompleted {
		t.Fatalf("want completed supersede, got %s", h.ledger.supersede[0])
	}
}

func TestLifeEventPatchesSolveButNotStoredGoal(t *testing.T) {
	sig := quiet()
	sig.Sentiment.LifeEvents = []program.LifeEvent{{Kind: program.LifeEventTravel, From: now, To: now.AddDate(0, 0, 7)}}
	h := newHarness(t, sig, nil)
	solved := baseParams()
	solved.SessionMinutes = 45
	h.solver.result = feasible(solved)

	res, err := h.orch.RunCycle(context.Background(), h.userID, program.TriggerSignal, false)
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if res.Record.AdjustmentType != program.AdjustmentConstraintChange {
		t.Fatalf("want constraint_change, got %s", res.Record.AdjustmentType)
	}
	if eq := h.solver.goals[0].Baseline.Equipment; len(eq) != 0 {
		t.Fatalf("solve goal should be bodyweight only, got %v", eq)
	}
	if len(h.mat.profiles[0].Equipment) != 0 {
		t.Fatalf("materializer should see the patched profile")
	}
	v := res.Version
	if v.Patch == nil || !v.Patch.BodyweightOnly {
		t.Fatalf("version should carry the patch: %+v", v.Patch)
	}
	if len(v.Goal.Baseline.Equipment) != 3 {
		t.Fatalf("stored goal must keep equipment, got %v", v.Goal.Baseline.Equipment)
	}
}

func TestContentUnavailableFailsCycle(t *testing.T) {
	h := newHarness(t, stalled(86), nil)
	h.mat.err = &materialize.ContentUnavailableError{Slot: "legs", Day: 0, Detail: "no exercises"}

	_, err := h.orch.RunCycle(context.Background(), h.userID, program.TriggerOnDemand, false)
	ce := reasonOf(t, err)
	if ce.Reason != ReasonContentUnavailable || ce.Retryable {
		t.Fatalf("want non-retryable content_unavailable, got %+v", ce)
	}
	if !errors.Is(err, materialize.ErrContentUnavailable) {
		t.Fatalf("cause lost: %v", err)
	}
	if h.ledger.commits != 0 {
		t.Fatalf("nothing should be committed")
	}
}

func TestConflictRetriedOnce(t *testing.T) {
	h := newHarness(t, stalled(86), nil)
	h.ledger.conflicts = 1

	res, err := h.orch.RunCycle(context.Background(), h.userID, program.TriggerOnDemand, false)
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if res.Version == nil || h.ledger.commits != 1 {
		t.Fatalf("want success after one retry, got version=%v commits=%d", res.Version, h.ledger.commits)
	}
}

func TestRepeatedConflictFails(t *testing.T) {
	h := newHarness(t, stalled(86), nil)
	h.ledger.conflicts = 2

	_, err := h.orch.RunCycle(context.Background(), h.userID, program.TriggerOnDemand, false)
	ce := reasonOf(t, err)
	if ce.Reason != ReasonStoreConflict || !ce.Retryable || ce.State != StatePersisting {
		t.Fatalf("want retryable store_conflict in persisting, got %+v", ce)
	}
	if got := h.obs.outcomes; len(got) != 1 || got[0] != string(ReasonStoreConflict) {
		t.Fatalf("observer outcomes: %v", got)
	}
}

func TestFailuresBeforeControl(t *testing.T) {
	t.Run("no active plan", func(t *testing.T) {
		h := newHarness(t, quiet(), nil)
		h.ledger.active = nil
		_, err := h.orch.RunCycle(context.Background(), h.userID, program.TriggerScheduled, false)
		if ce := reasonOf(t, err); ce.Reason != ReasonNoActivePlan || ce.Retryable {
			t.Fatalf("want no_active_plan, got %+v", ce)
		}
	})
	t.Run("signals unavailable", func(t *testing.T) {
		h := newHarness(t, quiet(), errors.New("signal store down"))
		_, err := h.orch.RunCycle(context.Background(), h.userID, program.TriggerScheduled, false)
		if ce := reasonOf(t, err); ce.Reason != ReasonSignalsUnavailable || !ce.Retryable || ce.State != StateAggregating {
			t.Fatalf("want retryable signals_unavailable, got %+v", ce)
		}
	})
	t.Run("store failure", func(t *testing.T) {
		h := newHarness(t, quiet(), nil)
		h.ledger.getErr = domainagg.NewError(domainagg.CodeRetryable, "GetActive", "database is locked", nil)
		_, err := h.orch.RunCycle(context.Background(), h.userID, program.TriggerScheduled, false)
		if ce := reasonOf(t, err); ce.Reason != ReasonStoreFailure || !ce.Retryable {
			t.Fatalf("want retryable store_failure, got %+v", ce)
		}
	})
}

type blockedLocker struct{}

func (blockedLocker) Acquire(ctx context.Context, _ string) (func(), error) {
	<-ctx.Done()
	return nil, lock.ErrNotAcquired
}

func TestLockUnavailable(t *testing.T) {
	h := newHarness(t, quiet(), nil)
	cfg := DefaultConfig()
	cfg.LockTimeout = 10 * time.Millisecond
	orch := New(cfg, Deps{
		Ledger:     h.ledger,
		Signals:    fakeSignals{sig: quiet()},
		Controller: controller.New(controller.DefaultConfig()),
		Locker:     blockedLocker{},
		Clock:      clock.NewManual(now),
	})
	_, err := orch.RunCycle(context.Background(), h.userID, program.TriggerScheduled, false)
	if ce := reasonOf(t, err); ce.Reason != ReasonLockUnavailable || !ce.Retryable {
		t.Fatalf("want retryable lock_unavailable, got %+v", ce)
	}
}

func TestRemainingWeeks(t *testing.T) {
	v := activeVersion(uuid.New())
	if got := remainingWeeks(*v, now); got != 14 {
		t.Fatalf("want 14, got %d", got)
	}
	if got := remainingWeeks(*v, now.AddDate(1, 0, 0)); got != 1 {
		t.Fatalf("want floor of 1, got %d", got)
	}
}

func TestFrequencyResolveKeepsControllerCalories(t *testing.T) {
	sig := stalled(88)
	sig.Adherence.SessionsPlanned = 8
	sig.Adherence.SessionsLogged = 4
	sig.Adherence.SessionsPerWeek = 2

	h := newHarness(t, sig, nil)
	h.orch.deps.Solver = solver.NewPool(solver.New(solver.DefaultConfig()), 1, nil)
	before := h.ledger.active.Params

	d := h.orch.deps.Controller.Compute(*h.ledger.active, sig, controller.Input{Trigger: program.TriggerScheduled, Date: now})
	if !d.Resolve || d.Frequency == 0 {
		t.Fatalf("want a frequency re-solve, got %+v", d)
	}
	want := d.Params.Calories
	if want >= before.Calories {
		t.Fatalf("controller should cut calories for a stalled fat loss, got %v -> %v", before.Calories, want)
	}

	res, err := h.orch.RunCycle(context.Background(), h.userID, program.TriggerScheduled, false)
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if !res.Record.Resolved || res.Version == nil {
		t.Fatalf("want a re-solved version, got %+v", res)
	}
	cal, ok := res.Record.Adjustments[program.ChannelCalories]
	if !ok || cal.New != want || cal.Delta != want-before.Calories {
		t.Fatalf("calories: want %v -> %v, got %+v", before.Calories, want, cal)
	}
	if cal.Delta >= 0 || !strings.HasPrefix(cal.Reason, "re-solved: ") {
		t.Fatalf("calorie delta must follow the weight error with the controller reason, got %+v", cal)
	}
	if res.Version.Params.Calories != want {
		t.Fatalf("version calories: want=%v got=%v", want, res.Version.Params.Calories)
	}
	if _, ok := res.Record.Adjustments[program.ChannelFrequency]; !ok {
		t.Fatalf("frequency change missing from record: %+v", res.Record.Adjustments)
	}
}

func TestKeepControllerCalories(t *testing.T) {
	solved := baseParams().WithCalories(2530)
	controlled := baseParams().WithCalories(2350)
	moved := map[string]program.ChannelAdjustment{program.ChannelCalories: {Old: 2500, New: 2350, Delta: -150}}

	if got := keepControllerCalories(solved, controlled, moved, false).Calories; got != 2350 {
		t.Fatalf("controller moved calories: want=2350 got=%v", got)
	}
	if got := keepControllerCalories(solved, controlled, moved, true).Calories; got != 2350 {
		t.Fatalf("controller moved calories after re-anchor: want=2350 got=%v", got)
	}
	held := baseParams()
	if got := keepControllerCalories(solved, held, nil, false).Calories; got != held.Calories {
		t.Fatalf("no calorie signal: want=%v got=%v", held.Calories, got)
	}
	if got := keepControllerCalories(solved, held, nil, true).Calories; got != 2530 {
		t.Fatalf("re-anchored TDEE: want solver value 2530 got=%v", got)
	}
}

func TestDiffAdjustmentsTagsUnboundedResolves(t *testing.T) {
	old := baseParams()
	next := old.Clone()
	next.WeeklySetsPerMuscle[program.MuscleGroups[0]] = 0
	adj := diffAdjustments(old, next, nil, reasonResolvedConstraint)
	a, ok := adj[program.VolumeChannel(program.MuscleGroups[0])]
	if !ok || a.Reason != reasonResolvedConstraint || a.Delta != -10 {
		t.Fatalf("want tagged volume drop, got %+v", adj)
	}
}
