package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/yungbote/fitprogram-backend/internal/domain/program"
)

type rootOptions struct {
	output string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "programctl",
		Short: "Operate the fitness program engine from the command line",
		Long: `programctl checks goal files against the solver, previews the
materialized program for a goal, and schedules reassessment workflows.

Goal files are YAML documents with the same fields as the HTTP API.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.output, "output", "o", "json", "Output format (json, yaml)")

	cmd.AddCommand(newFeasibilityCmd(opts))
	cmd.AddCommand(newPreviewCmd(opts))
	cmd.AddCommand(newScheduleCmd(opts))
	return cmd
}

// loadGoal reads and validates a YAML goal file. "-" reads stdin.
func loadGoal(path string, stdin io.Reader) (program.GoalConstraintSet, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return program.GoalConstraintSet{}, fmt.Errorf("read goal: %w", err)
	}
	var goal program.GoalConstraintSet
	if err := yaml.Unmarshal(data, &goal); err != nil {
		return program.GoalConstraintSet{}, fmt.Errorf("parse goal %s: %w", path, err)
	}
	if err := program.ValidateGoal(goal); err != nil {
		return program.GoalConstraintSet{}, err
	}
	return goal, nil
}

func render(w io.Writer, format string, v any) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
