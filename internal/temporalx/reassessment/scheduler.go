package reassessment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/yungbote/fitprogram-backend/internal/domain/program"
	"github.com/yungbote/fitprogram-backend/internal/platform/clock"
)

// Starter is the part of the Temporal client the scheduler uses.
type Starter interface {
	ExecuteWorkflow(ctx context.Context, options temporalsdkclient.StartWorkflowOptions, workflow interface{}, args ...interface{}) (temporalsdkclient.WorkflowRun, error)
}

type Scheduler struct {
	starter   Starter
	taskQueue string
	clock     clock.Clock
}

func NewScheduler(starter Starter, taskQueue string, clk clock.Clock) *Scheduler {
	if clk == nil {
		clk = clock.System()
	}
	return &Scheduler{starter: starter, taskQueue: taskQueue, clock: clk}
}

// StartCycle starts today's cycle for userID. A cycle already started today
// reports duplicate=true unless force is set, in which case a new run is
// allowed once the earlier one has closed.
func (s *Scheduler) StartCycle(ctx context.Context, userID uuid.UUID, trigger program.TriggerReason, force bool) (runID string, duplicate bool, err error) {
	if s == nil || s.starter == nil {
		return "", false, errors.New("temporal not configured")
	}
	policy := enums.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE
	if force {
		policy = enums.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE
	}
	opts := temporalsdkclient.StartWorkflowOptions{
		ID:                                       WorkflowID(userID, s.clock.Now()),
		TaskQueue:                                s.taskQueue,
		WorkflowIDReusePolicy:                    policy,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}
	run, err := s.starter.ExecuteWorkflow(ctx, opts, WorkflowName, CycleInput{
		UserID:  userID.String(),
		Trigger: trigger,
		Force:   force,
	})
	if err != nil {
		var started *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &started) {
			return "", true, nil
		}
		return "", false, fmt.Errorf("start reassessment workflow: %w", err)
	}
	return run.GetRunID(), false, nil
}

// StartCadence starts the recurring cycle for userID. Starting it twice is a
// no-op.
func (s *Scheduler) StartCadence(ctx context.Context, userID uuid.UUID, every time.Duration) (string, error) {
	if s == nil || s.starter == nil {
		return "", errors.New("temporal not configured")
	}
	opts := temporalsdkclient.StartWorkflowOptions{
		ID:                    CadenceWorkflowID(userID),
		TaskQueue:             s.taskQueue,
		WorkflowIDReusePolicy: enums.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE_FAILED_ONLY,
	}
	run, err := s.starter.ExecuteWorkflow(ctx, opts, CadenceWorkflowName, CadenceInput{
		UserID: userID.String(),
		Every:  every,
	})
	if err != nil {
		return "", fmt.Errorf("start reassessment cadence: %w", err)
	}
	return run.GetRunID(), nil
}
