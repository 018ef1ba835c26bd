package temporalworker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"github.com/yungbote/fitprogram-backend/internal/domain/program"
	"github.com/yungbote/fitprogram-backend/internal/modules/program/reassess"
	"github.com/yungbote/fitprogram-backend/internal/platform/logger"
	"github.com/yungbote/fitprogram-backend/internal/temporalx/reassessment"
)

type scriptedCycles struct {
	mu       sync.Mutex
	calls    int
	triggers []program.TriggerReason
	errs     []error
}

func (s *scriptedCycles) RunReassessmentCycle(_ context.Context, userID uuid.UUID, trigger program.TriggerReason, _ bool) (*program.AdjustmentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.triggers = append(s.triggers, trigger)
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	to := uuid.New()
	return &program.AdjustmentRecord{
		ID:             uuid.New(),
		UserID:         userID,
		ToVersionID:    &to,
		AdjustmentType: program.AdjustmentScheduled,
	}, nil
}

func (s *scriptedCycles) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newEnv(t *testing.T, cycles *scriptedCycles) *testsuite.TestWorkflowEnvironment {
	t.Helper()
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	Register(env, &reassessment.Activities{Log: logger.Nop(), Cycles: cycles})
	return env
}

func TestWorkflowRunsOneCycle(t *testing.T) {
	cycles := &scriptedCycles{}
	env := newEnv(t, cycles)

	env.ExecuteWorkflow(reassessment.Workflow, reassessment.CycleInput{UserID: uuid.NewString()})
	if !env.IsWorkflowCompleted() {
		t.Fatalf("workflow did not complete")
	}
	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("workflow error: %v", err)
	}
	var out reassessment.CycleOutput
	if err := env.GetWorkflowResult(&out); err != nil {
		t.Fatalf("GetWorkflowResult: %v", err)
	}
	if out.AdjustmentID == "" || out.ToVersionID == "" || out.NoChange {
		t.Fatalf("unexpected output: %+v", out)
	}
	if cycles.triggers[0] != program.TriggerScheduled {
		t.Fatalf("default trigger: want=%s got=%s", program.TriggerScheduled, cycles.triggers[0])
	}
}

func TestWorkflowRetriesRetryableFailures(t *testing.T) {
	postponed := &reassess.CycleError{State: reassess.StateAggregating, Reason: reassess.ReasonSignalsUnavailable, Retryable: true}
	cycles := &scriptedCycles{errs: []error{postponed, postponed}}
	env := newEnv(t, cycles)

	env.ExecuteWorkflow(reassessment.Workflow, reassessment.CycleInput{UserID: uuid.NewString(), Trigger: program.TriggerOnDemand})
	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("workflow error: %v", err)
	}
	if got := cycles.count(); got != 3 {
		t.Fatalf("attempts: want=3 got=%d", got)
	}
}

func TestWorkflowStopsOnPermanentFailure(t *testing.T) {
	infeasible := &reassess.CycleError{State: reassess.StateResolving, Reason: reassess.ReasonResolveInfeasible}
	cycles := &scriptedCycles{errs: []error{infeasible}}
	env := newEnv(t, cycles)

	env.ExecuteWorkflow(reassessment.Workflow, reassessment.CycleInput{UserID: uuid.NewString()})
	err := env.GetWorkflowError()
	if err == nil {
		t.Fatalf("want workflow error")
	}
	var appErr *temporal.ApplicationError
	if !errors.As(err, &appErr) || appErr.Type() != string(reassess.ReasonResolveInfeasible) {
		t.Fatalf("want application error typed resolve_infeasible, got %v", err)
	}
	if got := cycles.count(); got != 1 {
		t.Fatalf("attempts: want=1 got=%d", got)
	}
}

func TestWorkflowRejectsBadUserID(t *testing.T) {
	cycles := &scriptedCycles{}
	env := newEnv(t, cycles)

	env.ExecuteWorkflow(reassessment.Workflow, reassessment.CycleInput{UserID: "not-a-uuid"})
	if env.GetWorkflowError() == nil {
		t.Fatalf("want error for invalid user id")
	}
	if got := cycles.count(); got != 0 {
		t.Fatalf("runner should not be called, got %d calls", got)
	}
}

func TestCadenceRunsUntilCancelled(t *testing.T) {
	failing := &reassess.CycleError{State: reassess.StateFetching, Reason: reassess.ReasonNoActivePlan}
	cycles := &scriptedCycles{errs: []error{nil, failing}}
	env := newEnv(t, cycles)

	env.RegisterDelayedCallback(env.CancelWorkflow, 3*time.Hour+30*time.Minute)
	env.ExecuteWorkflow(reassessment.CadenceWorkflow, reassessment.CadenceInput{UserID: uuid.NewString(), Every: time.Hour})

	if !env.IsWorkflowCompleted() {
		t.Fatalf("cadence did not stop after cancel")
	}
	if got := cycles.count(); got != 3 {
		t.Fatalf("cycles before cancel: want=3 got=%d", got)
	}
	for i, trig := range cycles.triggers {
		if trig != program.TriggerScheduled {
			t.Fatalf("cycle %d trigger: want=%s got=%s", i, program.TriggerScheduled, trig)
		}
	}
}
