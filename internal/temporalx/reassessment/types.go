package reassessment

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/fitprogram-backend/internal/domain/program"
)

const (
	WorkflowName        = "program_reassessment"
	CadenceWorkflowName = "program_reassessment_cadence"
	ActivityRunCycle    = "program_reassessment_run_cycle"
)

type CycleInput struct {
	UserID  string                `json:"user_id"`
	Trigger program.TriggerReason `json:"trigger"`
	Force   bool                  `json:"force,omitempty"`
}

type CycleOutput struct {
	AdjustmentID   string                 `json:"adjustment_id"`
	AdjustmentType program.AdjustmentType `json:"adjustment_type,omitempty"`
	ToVersionID    string                 `json:"to_version_id,omitempty"`
	NoChange       bool                   `json:"no_change"`
}

type CadenceInput struct {
	UserID string        `json:"user_id"`
	Every  time.Duration `json:"every"`
	// Cycles counts cycles already run by earlier continue-as-new runs.
	Cycles int `json:"cycles,omitempty"`
}

// WorkflowID is the dedupe key for one user's cycle on one day.
func WorkflowID(userID uuid.UUID, day time.Time) string {
	return fmt.Sprintf("reassess-%s-%s", userID, program.Day(day))
}

func CadenceWorkflowID(userID uuid.UUID) string {
	return "reassess-cadence-" + userID.String()
}
