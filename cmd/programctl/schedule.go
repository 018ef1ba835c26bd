package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yungbote/fitprogram-backend/internal/domain/program"
	"github.com/yungbote/fitprogram-backend/internal/platform/clock"
	"github.com/yungbote/fitprogram-backend/internal/platform/envutil"
	"github.com/yungbote/fitprogram-backend/internal/platform/logger"
	"github.com/yungbote/fitprogram-backend/internal/temporalx"
	"github.com/yungbote/fitprogram-backend/internal/temporalx/reassessment"
)

type scheduleResult struct {
	UserID    string `json:"user_id" yaml:"user_id"`
	Workflow  string `json:"workflow" yaml:"workflow"`
	RunID     string `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Duplicate bool   `json:"duplicate" yaml:"duplicate"`
}

func newScheduleCmd(opts *rootOptions) *cobra.Command {
	var (
		every   time.Duration
		now     bool
		force   bool
		trigger string
	)
	cmd := &cobra.Command{
		Use:   "schedule <user-id>",
		Short: "Start a reassessment workflow for a user",
		Long: `Without --now, starts the recurring cadence workflow for the user.
With --now, starts a single cycle for today; a second start on the same day
is reported as a duplicate unless --force is given.

Reads TEMPORAL_* variables for the server address and task queue.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid user id %q: %w", args[0], err)
			}
			log, err := logger.New(envutil.String("LOG_MODE", "development"))
			if err != nil {
				return err
			}
			defer log.Sync()

			cfg := temporalx.LoadConfig()
			if !cfg.Enabled() {
				return errors.New("TEMPORAL_ADDRESS is not set")
			}
			tc, err := temporalx.NewClient(cmd.Context(), log, cfg)
			if err != nil {
				return err
			}
			defer tc.Close()

			clk := clock.System()
			sched := reassessment.NewScheduler(tc, cfg.TaskQueue, clk)
			out := scheduleResult{UserID: userID.String()}
			if now {
				out.Workflow = reassessment.WorkflowID(userID, clk.Now())
				out.RunID, out.Duplicate, err = sched.StartCycle(cmd.Context(), userID, program.TriggerReason(trigger), force)
			} else {
				out.Workflow = reassessment.CadenceWorkflowID(userID)
				out.RunID, err = sched.StartCadence(cmd.Context(), userID, every)
			}
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.output, out)
		},
	}
	cmd.Flags().DurationVar(&every, "every", 7*24*time.Hour, "Cadence between scheduled cycles")
	cmd.Flags().BoolVar(&now, "now", false, "Start one cycle immediately instead of the cadence")
	cmd.Flags().BoolVar(&force, "force", false, "Run even if today's cycle already ran")
	cmd.Flags().StringVar(&trigger, "trigger", string(program.TriggerManual), "Trigger reason recorded on the cycle")
	return cmd
}
