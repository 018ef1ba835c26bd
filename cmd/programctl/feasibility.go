package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/yungbote/fitprogram-backend/internal/domain/program"
	"github.com/yungbote/fitprogram-backend/internal/modules/program/materialize"
	"github.com/yungbote/fitprogram-backend/internal/modules/program/solver"
	"github.com/yungbote/fitprogram-backend/internal/platform/catalog"
)

var errInfeasible = errors.New("goal is infeasible")

type solveFlags struct {
	maxIterations int
	maxRuntime    time.Duration
	maxTradeOffs  int
}

func (f *solveFlags) bind(cmd *cobra.Command) {
	def := solver.DefaultConfig()
	cmd.Flags().IntVar(&f.maxIterations, "max-iterations", def.MaxIterations, "Solver iteration budget")
	cmd.Flags().DurationVar(&f.maxRuntime, "max-runtime", def.MaxRuntime, "Solver wall-clock budget")
	cmd.Flags().IntVar(&f.maxTradeOffs, "max-tradeoffs", def.MaxTradeOffs, "Trade-offs to propose when infeasible")
}

func (f *solveFlags) solver() *solver.Solver {
	return solver.New(solver.Config{
		MaxIterations: f.maxIterations,
		MaxRuntime:    f.maxRuntime,
		MaxTradeOffs:  f.maxTradeOffs,
	})
}

func newFeasibilityCmd(opts *rootOptions) *cobra.Command {
	var flags solveFlags
	cmd := &cobra.Command{
		Use:   "feasibility <goal.yaml>",
		Short: "Solve a goal file and print the feasibility result",
		Long: `Runs the constraint solver against a goal file without touching any
store. Exits non-zero when the goal is infeasible.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			goal, err := loadGoal(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			res := flags.solver().Solve(cmd.Context(), goal)
			if err := render(cmd.OutOrStdout(), opts.output, res); err != nil {
				return err
			}
			if !res.IsFeasible {
				return errInfeasible
			}
			return nil
		},
	}
	flags.bind(cmd)
	return cmd
}

type previewOutput struct {
	Params    program.PlanParams     `json:"params" yaml:"params"`
	Training  []program.TrainingDay  `json:"training" yaml:"training"`
	Nutrition []program.NutritionDay `json:"nutrition" yaml:"nutrition"`
}

func newPreviewCmd(opts *rootOptions) *cobra.Command {
	var (
		flags       solveFlags
		catalogPath string
		start       string
		horizon     int
	)
	cmd := &cobra.Command{
		Use:   "preview <goal.yaml>",
		Short: "Solve a goal file and print the materialized program",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			goal, err := loadGoal(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			startDay := time.Now().UTC()
			if start != "" {
				if startDay, err = time.Parse(program.DateLayout, start); err != nil {
					return fmt.Errorf("invalid --start %q: %w", start, err)
				}
			}
			content, err := catalog.Load(catalogPath)
			if err != nil {
				return err
			}
			out, err := preview(cmd.Context(), flags.solver(), materialize.New(content, horizon), goal, startDay)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.output, out)
		},
	}
	flags.bind(cmd)
	cmd.Flags().StringVar(&catalogPath, "catalog", "", "Content catalog YAML (default: embedded catalog)")
	cmd.Flags().StringVar(&start, "start", "", "First plan day, YYYY-MM-DD (default: today)")
	cmd.Flags().IntVar(&horizon, "horizon", materialize.DefaultHorizonDays, "Days to materialize")
	return cmd
}

func preview(ctx context.Context, s *solver.Solver, m *materialize.Materializer, goal program.GoalConstraintSet, start time.Time) (previewOutput, error) {
	res := s.Solve(ctx, goal)
	if !res.IsFeasible || res.OptimalParams == nil {
		codes := make([]string, 0, len(res.Diagnostics))
		for _, d := range res.Diagnostics {
			codes = append(codes, string(d.Code))
		}
		return previewOutput{}, fmt.Errorf("%w: %v", errInfeasible, codes)
	}
	prog, err := m.Materialize(ctx, *res.OptimalParams, materialize.ProfileFrom(goal.Baseline), start)
	if err != nil {
		return previewOutput{}, err
	}
	return previewOutput{Params: *res.OptimalParams, Training: prog.Training, Nutrition: prog.Nutrition}, nil
}
