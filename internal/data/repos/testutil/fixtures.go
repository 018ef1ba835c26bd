package testutil

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/fitprogram-backend/internal/domain/program"
)

// Goal returns a valid intermediate fat-loss goal used across store tests.
func Goal() program.GoalConstraintSet {
	return program.GoalConstraintSet{
		PrimaryGoal:   program.GoalFatLoss,
		TargetMetrics: map[program.Metric]float64{program.MetricBodyWeightKg: 80},
		TimelineWeeks: 16,
		HardConstraints: []program.Constraint{
			{Kind: program.SessionsPerWeekMin, Value: 3},
		},
		Baseline: program.Baseline{
			TDEEKcal:             3000,
			BodyWeightKg:         88,
			Experience:           program.ExperienceIntermediate,
			Equipment:            []string{"barbell", "dumbbell", "bench", "rack"},
			AvailableDaysPerWeek: 5,
			WeeklyMinutes:        360,
			MaxSessionMinutes:    90,
		},
	}
}

// Params returns plan params consistent with Goal.
func Params() program.PlanParams {
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

// Version builds an unsaved plan version for userID.
func Version(tb testing.TB, userID uuid.UUID, at time.Time) program.PlanVersion {
	tb.Helper()
	return program.PlanVersion{
		ID:          uuid.New(),
		UserID:      userID,
		Status:      program.PlanDraft,
		Goal:        Goal(),
		Params:      Params(),
		Rationale:   "initial plan",
		Assumptions: []string{"tdee from baseline"},
		Confidence:  map[string]float64{"tdee": 0.8},
		StartDate:   program.Day(at),
		CreatedAt:   at.UTC(),
	}
}
