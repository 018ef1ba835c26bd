package reassessment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/temporal"

	domainagg "github.com/yungbote/fitprogram-backend/internal/domain/aggregates"
	"github.com/yungbote/fitprogram-backend/internal/domain/program"
	"github.com/yungbote/fitprogram-backend/internal/modules/program/reassess"
	"github.com/yungbote/fitprogram-backend/internal/platform/logger"
)

type CycleRunner interface {
	RunReassessmentCycle(ctx context.Context, userID uuid.UUID, trigger program.TriggerReason, force bool) (*program.AdjustmentRecord, error)
}

type ActivityObserver interface {
	ObserveActivity(name, status string, d time.Duration)
}

type Activities struct {
	Log      *logger.Logger
	Cycles   CycleRunner
	Observer ActivityObserver
}

// RunCycle runs one reassessment. Failures the next attempt cannot fix are
// returned as non-retryable application errors typed by their reason.
func (a *Activities) RunCycle(ctx context.Context, in CycleInput) (out CycleOutput, err error) {
	if a == nil || a.Cycles == nil {
		return out, temporal.NewNonRetryableApplicationError("reassessment activity not configured", "not_configured", nil)
	}
	started := time.Now()
	defer func() {
		if a.Observer == nil {
			return
		}
		status := "ok"
		if err != nil {
			status = "error"
		}
		a.Observer.ObserveActivity(ActivityRunCycle, status, time.Since(started))
	}()

	userID, perr := uuid.Parse(in.UserID)
	if perr != nil || userID == uuid.Nil {
		return out, temporal.NewNonRetryableApplicationError(fmt.Sprintf("invalid user_id %q", in.UserID), "invalid_input", perr)
	}

	rec, err := a.Cycles.RunReassessmentCycle(ctx, userID, in.Trigger, in.Force)
	if err != nil {
		return out, activityError(err)
	}
	out.AdjustmentID = rec.ID.String()
	out.AdjustmentType = rec.AdjustmentType
	out.NoChange = rec.IsNoOp()
	if rec.ToVersionID != nil {
		out.ToVersionID = rec.ToVersionID.String()
	}
	if a.Log != nil {
		a.Log.Info("scheduled reassessment finished",
			"user_id", userID.String(),
			"adjustment_type", string(rec.AdjustmentType),
			"no_change", out.NoChange,
		)
	}
	return out, nil
}

func activityError(err error) error {
	var ce *reassess.CycleError
	if errors.As(err, &ce) {
		if ce.Retryable {
			return temporal.NewApplicationErrorWithCause(ce.Error(), string(ce.Reason), err)
		}
		return temporal.NewNonRetryableApplicationError(ce.Error(), string(ce.Reason), err)
	}
	if domainagg.Permanent(err) {
		return temporal.NewNonRetryableApplicationError(err.Error(), string(domainagg.CodeOf(err)), err)
	}
	return err
}
