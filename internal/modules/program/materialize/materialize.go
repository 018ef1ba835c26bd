package materialize

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yungbote/fitprogram-backend/internal/domain/program"
	"github.com/yungbote/fitprogram-backend/internal/platform/catalog"
)

var (
	ErrContentUnavailable = errors.New("content unavailable")
	ErrToleranceExceeded  = errors.New("nutrition tolerance exceeded")
)

// ContentUnavailableError names the slot that had no matching content. The
// materializer never substitutes a different slot or muscle group.
type ContentUnavailableError struct {
	Slot   string
	Day    int
	Detail string
}

func (e *ContentUnavailableError) Error() string {
	return fmt.Sprintf("content unavailable for %s on day %d: %s", e.Slot, e.Day, e.Detail)
}

func (e *ContentUnavailableError) Unwrap() error { return ErrContentUnavailable }

type ContentLookup interface {
	Exercises(ctx context.Context, q catalog.ExerciseQuery) ([]catalog.Exercise, error)
	Meals(ctx context.Context, q catalog.MealQuery) ([]catalog.MealTemplate, error)
}

// Profile is the part of the baseline that shapes content selection.
type Profile struct {
	Experience           program.Experience
	Equipment            []string
	ExcludedMuscleGroups []program.MuscleGroup
	DietaryRestrictions  []string
}

func ProfileFrom(b program.Baseline) Profile {
	return Profile{
		Experience:           b.Experience,
		Equipment:            append([]string(nil), b.Equipment...),
		ExcludedMuscleGroups: append([]program.MuscleGroup(nil), b.ExcludedMuscleGroups...),
		DietaryRestrictions:  append([]string(nil), b.DietaryRestrictions...),
	}
}

func (p Profile) excludes(m program.MuscleGroup) bool {
	for _, x := range p.ExcludedMuscleGroups {
		if x == m {
			return true
		}
	}
	return false
}

type Program struct {
	Training  []program.TrainingDay
	Nutrition []program.NutritionDay
}

const (
	DefaultHorizonDays = 14
	// CalorieTolerance is the allowed relative gap between a day's meals and
	// the calorie target.
	CalorieTolerance = 0.02
)

type Materializer struct {
	lookup  ContentLookup
	horizon int
}

func New(lookup ContentLookup, horizonDays int) *Materializer {
	if horizonDays <= 0 {
		horizonDays = DefaultHorizonDays
	}
	return &Materializer{lookup: lookup, horizon: horizonDays}
}

func (m *Materializer) HorizonDays() int { return m.horizon }

// Materialize expands params into concrete days starting at start. Output is a
// pure function of its inputs and the lookup's content.
func (m *Materializer) Materialize(ctx context.Context, params program.PlanParams, profile Profile, start time.Time) (Program, error) {
	if m.lookup == nil {
		return Program{}, errors.New("materialize: content lookup is required")
	}
	if params.SessionsPerWeek < 0 || params.SessionsPerWeek > 7 {
		return Program{}, fmt.Errorf("materialize: sessions per week out of range: %d", params.SessionsPerWeek)
	}
	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)

	training, err := m.training(ctx, params, profile, start)
	if err != nil {
		return Program{}, err
	}
	nutrition, err := m.nutrition(ctx, params, profile, start)
	if err != nil {
		return Program{}, err
	}
	return Program{Training: training, Nutrition: nutrition}, nil
}
