package reassessment

import (
	"errors"
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/yungbote/fitprogram-backend/internal/domain/program"
)

const (
	defaultCadence       = 7 * 24 * time.Hour
	continueAfterCycles  = 26
	continueHistoryLimit = 10000
)

func activityOptions() workflow.ActivityOptions {
	return workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    30 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    15 * time.Minute,
			MaximumAttempts:    5,
		},
	}
}

// Workflow runs one reassessment cycle. Its workflow id carries the
// user and day, so a second start on the same day is rejected by Temporal.
func Workflow(ctx workflow.Context, in CycleInput) (CycleOutput, error) {
	if strings.TrimSpace(in.UserID) == "" {
		return CycleOutput{}, temporal.NewNonRetryableApplicationError("missing user_id", "invalid_input", nil)
	}
	if in.Trigger == "" {
		in.Trigger = program.TriggerScheduled
	}
	ctx = workflow.WithActivityOptions(ctx, activityOptions())

	var out CycleOutput
	err := workflow.ExecuteActivity(ctx, ActivityRunCycle, in).Get(ctx, &out)
	return out, err
}

// CadenceWorkflow runs a scheduled cycle every in.Every until cancelled.
// A failed cycle is logged and the cadence keeps going.
func CadenceWorkflow(ctx workflow.Context, in CadenceInput) error {
	if strings.TrimSpace(in.UserID) == "" {
		return temporal.NewNonRetryableApplicationError("missing user_id", "invalid_input", nil)
	}
	every := in.Every
	if every <= 0 {
		every = defaultCadence
	}
	log := workflow.GetLogger(ctx)
	ctx = workflow.WithActivityOptions(ctx, activityOptions())

	for ran := 0; ; ran++ {
		if err := workflow.Sleep(ctx, every); err != nil {
			return err
		}
		var out CycleOutput
		err := workflow.ExecuteActivity(ctx, ActivityRunCycle, CycleInput{
			UserID:  in.UserID,
			Trigger: program.TriggerScheduled,
		}).Get(ctx, &out)
		if err != nil {
			var canceled *temporal.CanceledError
			if errors.As(err, &canceled) {
				return err
			}
			log.Warn("scheduled reassessment failed", "user_id", in.UserID, "error", err)
		}
		in.Cycles++
		if shouldContinueAsNew(ctx, ran+1) {
			return workflow.NewContinueAsNewError(ctx, CadenceWorkflow, in)
		}
	}
}

func shouldContinueAsNew(ctx workflow.Context, cycles int) bool {
	if cycles >= continueAfterCycles {
		return true
	}
	info := workflow.GetInfo(ctx)
	return info != nil && info.GetCurrentHistoryLength() >= continueHistoryLimit
}
