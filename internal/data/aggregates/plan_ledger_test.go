package aggregates_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/fitprogram-backend/internal/data/aggregates"
	aggtest "github.com/yungbote/fitprogram-backend/internal/data/aggregates/testutil"
	programrepo "github.com/yungbote/fitprogram-backend/internal/data/repos/program"
	repotest "github.com/yungbote/fitprogram-backend/internal/data/repos/testutil"
	domainagg "github.com/yungbote/fitprogram-backend/internal/domain/aggregates"
	"github.com/yungbote/fitprogram-backend/internal/domain/program"
)

var t0 = time.Date(2026, 4, 13, 6, 0, 0, 0, time.UTC)

type ledgerFixture struct {
	db     *gorm.DB
	ledger domainagg.PlanLedgerAggregate
	hooks  *aggtest.HooksRecorder
}

func newLedger(t *testing.T, runner aggregates.TxRunner) ledgerFixture {
	t.Helper()
	db := repotest.SQLite(t)
	log := repotest.Logger(t)
	set := programrepo.NewSet(db, log)
	hooks := &aggtest.HooksRecorder{}
	if r, ok := runner.(*aggtest.InjectedTxRunner); ok && r.DB == nil {
		r.DB = db
	}
	ledger := aggregates.NewPlanLedgerAggregate(aggregates.PlanLedgerAggregateDeps{
		Base: aggregates.BaseDeps{
			DB:     db,
			Log:    log,
			Runner: runner,
			Hooks:  hooks,
		},
		Versions:    set.Versions,
		Active:      set.Active,
		Checks:      set.Checks,
		Adjustments: set.Adjustments,
	})
	return ledgerFixture{db: db, ledger: ledger, hooks: hooks}
}

func (f ledgerFixture) activeFor(t *testing.T, userID uuid.UUID) program.PlanVersion {
	t.Helper()
	ctx := context.Background()
	res, err := f.ledger.AppendVersion(ctx, domainagg.AppendPlanVersionInput{Version: repotest.Version(t, userID, t0)})
	if err != nil {
		t.Fatalf("AppendVersion: %v", err)
	}
	act, err := f.ledger.Activate(ctx, domainagg.ActivatePlanInput{UserID: userID, VersionID: res.Version.ID, At: t0})
	if err != nil {
		t.Fatalf("Activate: %v", err)
	}
	return act.Version
}

func noOpRecord(userID, from uuid.UUID, at time.Time) program.AdjustmentRecord {
	return program.AdjustmentRecord{
		ID:             uuid.New(),
		UserID:         userID,
		FromVersionID:  from,
		AdjustmentDate: program.Day(at),
		TriggerReason:  program.TriggerScheduled,
		AdjustmentType: program.AdjustmentScheduled,
		Rationale:      "no material change",
		Warnings:       []string{},
		CreatedAt:      at,
	}
}

func TestPlanLedgerAppendAndActivate(t *testing.T) {
	f := newLedger(t, nil)
	ctx := context.Background()
	userID := uuid.New()

	if got, err := f.ledger.GetActive(ctx, userID); err != nil || got != nil {
		t.Fatalf("GetActive before any plan: want nil got=%v err=%v", got, err)
	}

	first := f.activeFor(t, userID)
	if first.VersionNumber != 1 || first.Status != program.PlanActive || first.ActivatedAt == nil {
		t.Fatalf("first activation: %+v", first)
	}

	draft := repotest.Version(t, userID, t0.Add(time.Hour))
	draft.ParentVersionID = &first.ID
	res, err := f.ledger.AppendVersion(ctx, domainagg.AppendPlanVersionInput{Version: draft})
	if err != nil {
		t.Fatalf("AppendVersion: %v", err)
	}
	if res.Version.VersionNumber != 2 || res.Version.Status != program.PlanDraft {
		t.Fatalf("draft: want v2 draft, got v%d %s", res.Version.VersionNumber, res.Version.Status)
	}

	active, _ := f.ledger.GetActive(ctx, userID)
	if active == nil || active.ID != first.ID {
		t.Fatalf("draft must not replace the active plan")
	}

	act, err := f.ledger.Activate(ctx, domainagg.ActivatePlanInput{UserID: userID, VersionID: res.Version.ID, At: t0.Add(2 * time.Hour)})
	if err != nil {
		t.Fatalf("Activate v2: %v", err)
	}
	if act.SupersededID == nil || *act.SupersededID != first.ID {
		t.Fatalf("want v1 superseded, got %v", act.SupersededID)
	}

	hist, err := f.ledger.History(ctx, userID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 2 {
		t.Fatalf("history: want=2 got=%d", len(hist))
	}
	if hist[0].Status != program.PlanArchived || hist[0].ClosedAt == nil {
		t.Fatalf("v1: want archived with closed_at, got %s %v", hist[0].Status, hist[0].ClosedAt)
	}
	if hist[1].Status != program.PlanActive {
		t.Fatalf("v2: want active, got %s", hist[1].Status)
	}
	assertSingleActive(t, f.db, userID)

	// Re-activating the active version is a no-op.
	again, err := f.ledger.Activate(ctx, domainagg.ActivatePlanInput{UserID: userID, VersionID: res.Version.ID})
	if err != nil || again.SupersededID != nil {
		t.Fatalf("idempotent activate: superseded=%v err=%v", again.SupersededID, err)
	}

	_, err = f.ledger.Activate(ctx, domainagg.ActivatePlanInput{UserID: userID, VersionID: first.ID})
	if !domainagg.IsCode(err, domainagg.CodeInvariantViolation) {
		t.Fatalf("activating an archived version: want invariant_violation, got %v", err)
	}

	_, err = f.ledger.Activate(ctx, domainagg.ActivatePlanInput{UserID: uuid.New(), VersionID: first.ID})
	if !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("activating another user's version: want not_found, got %v", err)
	}
}

func TestPlanLedgerCommitCycleNoOpIsIdempotent(t *testing.T) {
	f := newLedger(t, nil)
	ctx := context.Background()
	userID := uuid.New()
	active := f.activeFor(t, userID)

	rec := noOpRecord(userID, active.ID, t0)
	out, err := f.ledger.CommitCycle(ctx, domainagg.CommitCycleInput{UserID: userID, FromVersionID: active.ID, Record: rec, At: t0})
	if err != nil {
		t.Fatalf("CommitCycle: %v", err)
	}
	if out.Duplicate || out.Version != nil || out.Record.ToVersionID != nil {
		t.Fatalf("no-op commit: %+v", out)
	}

	again, err := f.ledger.RecordAdjustment(ctx, noOpRecord(userID, active.ID, t0.Add(3*time.Hour)))
	if err != nil {
		t.Fatalf("RecordAdjustment replay: %v", err)
	}
	if again.ID != rec.ID {
		t.Fatalf("replay must return the first record: want=%s got=%s", rec.ID, again.ID)
	}

	found, err := f.ledger.FindAdjustment(ctx, userID, active.ID, program.Day(t0))
	if err != nil || found == nil || found.ID != rec.ID {
		t.Fatalf("FindAdjustment: got=%v err=%v", found, err)
	}
	hist, _ := f.ledger.History(ctx, userID)
	if len(hist) != 1 || hist[0].AdjustmentCount != 1 {
		t.Fatalf("history: want one version with one cycle, got %+v", hist)
	}
}

func TestPlanLedgerCommitCycleSupersedes(t *testing.T) {
	f := newLedger(t, nil)
	ctx := context.Background()
	userID := uuid.New()
	active := f.activeFor(t, userID)

	next := active
	next.ID = uuid.Nil
	next.Params = active.Params.WithCalories(2420)
	next.Rationale = "calories -80"
	rec := noOpRecord(userID, active.ID, t0)
	rec.Adjustments = map[string]program.ChannelAdjustment{
		program.ChannelCalories: {Old: 2500, New: 2420, Delta: -80, Reason: "weight trend behind target"},
	}
	check := program.FeasibilityCheck{UserID: userID, Goal: active.Goal, Result: program.FeasibilityResult{IsFeasible: true}}

	out, err := f.ledger.CommitCycle(ctx, domainagg.CommitCycleInput{
		UserID:        userID,
		FromVersionID: active.ID,
		Record:        rec,
		NewVersion:    &next,
		Check:         &check,
		At:            t0,
	})
	if err != nil {
		t.Fatalf("CommitCycle: %v", err)
	}
	if out.Version == nil || out.Version.VersionNumber != 2 || out.Version.Status != program.PlanActive {
		t.Fatalf("want v2 active, got %+v", out.Version)
	}
	if out.Version.ParentVersionID == nil || *out.Version.ParentVersionID != active.ID {
		t.Fatalf("parent link: want=%s got=%v", active.ID, out.Version.ParentVersionID)
	}
	if out.Record.ToVersionID == nil || *out.Record.ToVersionID != out.Version.ID {
		t.Fatalf("record must point at the new version")
	}

	got, _ := f.ledger.GetActive(ctx, userID)
	if got == nil || got.ID != out.Version.ID || got.Params.Calories != 2420 {
		t.Fatalf("GetActive after commit: %+v", got)
	}
	assertSingleActive(t, f.db, userID)

	// The old version is no longer active, so a cycle computed against it conflicts.
	stale := noOpRecord(userID, active.ID, t0.AddDate(0, 0, 14))
	_, err = f.ledger.CommitCycle(ctx, domainagg.CommitCycleInput{UserID: userID, FromVersionID: active.ID, Record: stale})
	if !domainagg.IsCode(err, domainagg.CodeConflict) {
		t.Fatalf("stale cycle: want conflict, got %v", err)
	}
	if len(f.hooks.Conflicts) != 1 {
		t.Fatalf("conflict hook: want=1 got=%d", len(f.hooks.Conflicts))
	}
}

func TestPlanLedgerMilestoneCompletesPreviousVersion(t *testing.T) {
	f := newLedger(t, nil)
	ctx := context.Background()
	userID := uuid.New()
	active := f.activeFor(t, userID)

	next := active
	next.ID = uuid.Nil
	rec := noOpRecord(userID, active.ID, t0)
	rec.AdjustmentType = program.AdjustmentMilestone
	if _, err := f.ledger.CommitCycle(ctx, domainagg.CommitCycleInput{
		UserID:        userID,
		FromVersionID: active.ID,
		Record:        rec,
		NewVersion:    &next,
		SupersedeAs:   program.PlanCompleted,
	}); err != nil {
		t.Fatalf("CommitCycle: %v", err)
	}
	hist, _ := f.ledger.History(ctx, userID)
	if hist[0].Status != program.PlanCompleted {
		t.Fatalf("want v1 completed, got %s", hist[0].Status)
	}

	_, err := f.ledger.CommitCycle(ctx, domainagg.CommitCycleInput{
		UserID:        userID,
		FromVersionID: hist[1].ID,
		Record:        noOpRecord(userID, hist[1].ID, t0),
		SupersedeAs:   program.PlanDraft,
	})
	if !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("supersede as draft: want validation, got %v", err)
	}
}

func TestPlanLedgerFailedCommitKeepsActivePlan(t *testing.T) {
	runner := &aggtest.InjectedTxRunner{}
	f := newLedger(t, runner)
	ctx := context.Background()
	userID := uuid.New()
	active := f.activeFor(t, userID)

	runner.FailCommit = errors.New("connection reset")
	next := active
	next.ID = uuid.Nil
	_, err := f.ledger.CommitCycle(ctx, domainagg.CommitCycleInput{
		UserID:        userID,
		FromVersionID: active.ID,
		Record:        noOpRecord(userID, active.ID, t0),
		NewVersion:    &next,
	})
	if err == nil {
		t.Fatalf("expected commit failure")
	}

	got, _ := f.ledger.GetActive(ctx, userID)
	if got == nil || got.ID != active.ID || got.Status != program.PlanActive {
		t.Fatalf("failed commit must leave the previous plan active, got %+v", got)
	}
	hist, _ := f.ledger.History(ctx, userID)
	if len(hist) != 1 || hist[0].AdjustmentCount != 0 {
		t.Fatalf("failed commit must not leave rows behind: %+v", hist)
	}
}

func TestPlanLedgerFeasibilityChecks(t *testing.T) {
	f := newLedger(t, nil)
	ctx := context.Background()
	userID := uuid.New()

	saved, err := f.ledger.RecordFeasibilityCheck(ctx, program.FeasibilityCheck{
		UserID: userID,
		Goal:   repotest.Goal(),
		Result: program.FeasibilityResult{Diagnostics: []program.Diagnostic{{Code: program.DiagFreqTooLow}}},
	})
	if err != nil {
		t.Fatalf("RecordFeasibilityCheck: %v", err)
	}
	got, err := f.ledger.GetFeasibilityCheck(ctx, userID, saved.ID)
	if err != nil || got == nil {
		t.Fatalf("GetFeasibilityCheck: got=%v err=%v", got, err)
	}
	if !got.Result.HasCode(program.DiagFreqTooLow) {
		t.Fatalf("diagnostics lost: %+v", got.Result)
	}
	if other, err := f.ledger.GetFeasibilityCheck(ctx, uuid.New(), saved.ID); err != nil || other != nil {
		t.Fatalf("other user's check must be invisible: got=%v err=%v", other, err)
	}
	if len(f.hooks.Operations) != 1 || f.hooks.Operations[0].Status != "success" {
		t.Fatalf("hooks: %+v", f.hooks.Operations)
	}
}

func assertSingleActive(t *testing.T, db *gorm.DB, userID uuid.UUID) {
	t.Helper()
	var n int64
	if err := db.Model(&program.PlanVersionRow{}).
		Where("user_id = ? AND status = ?", userID, string(program.PlanActive)).
		Count(&n).Error; err != nil {
		t.Fatalf("count active: %v", err)
	}
	if n != 1 {
		t.Fatalf("want exactly one active version, got %d", n)
	}
}

func TestPlanLedgerRetriesLockedDatabase(t *testing.T) {
	runner := &aggtest.InjectedTxRunner{}
	f := newLedger(t, runner)
	ctx := context.Background()
	userID := uuid.New()

	runner.TransientErr = errors.New("database is locked")
	runner.TransientFailures = 1
	res, err := f.ledger.AppendVersion(ctx, domainagg.AppendPlanVersionInput{Version: repotest.Version(t, userID, t0)})
	if err != nil {
		t.Fatalf("AppendVersion after transient failure: %v", err)
	}
	if res.Version.VersionNumber != 1 {
		t.Fatalf("version number: want=1 got=%d", res.Version.VersionNumber)
	}
	if got := f.hooks.RetriesFor("Program.PlanLedger.AppendVersion"); got != 1 {
		t.Fatalf("retry hooks: want=1 got=%d", got)
	}
	hist, _ := f.ledger.History(ctx, userID)
	if len(hist) != 1 {
		t.Fatalf("retried append must store one version, got %d", len(hist))
	}
}

func TestPlanLedgerContract(t *testing.T) {
	f := newLedger(t, nil)
	c := f.ledger.Contract()
	if c.Serialization != domainagg.SerializedPerUser {
		t.Fatalf("serialization: want=%s got=%s", domainagg.SerializedPerUser, c.Serialization)
	}
	for _, inv := range []string{domainagg.InvariantSingleActive, domainagg.InvariantOneCyclePerDay, domainagg.InvariantAtomicSupersede} {
		if !c.Guarantees(inv) {
			t.Fatalf("contract must guarantee %s", inv)
		}
	}
}
