package materialize

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/yungbote/fitprogram-backend/internal/domain/program"
	"github.com/yungbote/fitprogram-backend/internal/platform/catalog"
)

var start = time.Date(2026, 3, 2, 15, 30, 0, 0, time.UTC)

func defaultLookup(t *testing.T) ContentLookup {
	t.Helper()
	c, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog.Default: %v", err)
	}
	return c
}

func baseParams() program.PlanParams {
	sets := map[program.MuscleGroup]int{}
	for _, m := range program.MuscleGroups {
		sets[m] = 9
	}
	p := program.PlanParams{
		Split:               program.SplitFullBody,
		SessionsPerWeek:     3,
		SessionMinutes:      60,
		WeeklySetsPerMuscle: sets,
		ProteinG:            160,
		MealsPerDay:         3,
		TargetRateKgPerWeek: -0.5,
		TimelineWeeks:       12,
	}
	return p.WithCalories(2200)
}

func profile() Profile {
	return Profile{
		Experience: program.ExperienceIntermediate,
		Equipment:  []string{"barbell", "dumbbell", "bench", "rack", "pullup_bar"},
	}
}

func TestMaterializeFullBodyWeek(t *testing.T) {
	m := New(defaultLookup(t), 0)
	out, err := m.Materialize(context.Background(), baseParams(), profile(), start)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if len(out.Training) != DefaultHorizonDays || len(out.Nutrition) != DefaultHorizonDays {
		t.Fatalf("want %d days, got training=%d nutrition=%d", DefaultHorizonDays, len(out.Training), len(out.Nutrition))
	}
	if out.Training[0].Date != "2026-03-02" || out.Training[13].Date != "2026-03-15" {
		t.Fatalf("unexpected dates: %s .. %s", out.Training[0].Date, out.Training[13].Date)
	}

	wantTraining := map[int]bool{0: true, 2: true, 4: true, 7: true, 9: true, 11: true}
	weekly := map[program.MuscleGroup]int{}
	for _, d := range out.Training {
		if wantTraining[d.DayIndex] != (d.Kind == program.DayTraining) {
			t.Fatalf("day %d: unexpected kind %s", d.DayIndex, d.Kind)
		}
		if d.Kind == program.DayRest && len(d.Exercises) != 0 {
			t.Fatalf("rest day %d has exercises", d.DayIndex)
		}
		if d.Kind == program.DayTraining && (d.Focus != "full_body" || d.Minutes != 60) {
			t.Fatalf("day %d: focus=%s minutes=%d", d.DayIndex, d.Focus, d.Minutes)
		}
		if d.DayIndex >= 7 {
			continue
		}
		for _, ex := range d.Exercises {
			if ex.Sets < 1 || ex.Sets > maxSetsPerEntry {
				t.Fatalf("exercise entry with %d sets", ex.Sets)
			}
			weekly[ex.MuscleGroup] += ex.Sets
		}
	}
	for _, mg := range program.MuscleGroups {
		if weekly[mg] != 9 {
			t.Fatalf("weekly sets for %s: want=9 got=%d", mg, weekly[mg])
		}
	}
}

func TestMaterializeNutritionWithinTolerance(t *testing.T) {
	for _, meals := range []int{2, 3, 4, 5, 6} {
		p := baseParams()
		p.MealsPerDay = meals
		out, err := New(defaultLookup(t), 7).Materialize(context.Background(), p, profile(), start)
		if err != nil {
			t.Fatalf("meals=%d: %v", meals, err)
		}
		for _, d := range out.Nutrition {
			if len(d.Meals) != meals {
				t.Fatalf("meals=%d: day %d has %d meals", meals, d.DayIndex, len(d.Meals))
			}
			if gap := math.Abs(d.Calories-p.Calories) / p.Calories; gap > CalorieTolerance {
				t.Fatalf("meals=%d: day %d is %.1f%% off target", meals, d.DayIndex, gap*100)
			}
		}
	}
}

func TestMaterializeIsDeterministic(t *testing.T) {
	m := New(defaultLookup(t), 0)
	p := baseParams()
	p.Split, p.SessionsPerWeek = program.SplitPushPullLegs, 6
	a, err := m.Materialize(context.Background(), p, profile(), start)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	b, _ := m.Materialize(context.Background(), p, profile(), start)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("materialization is not deterministic")
	}
}

func TestMaterializeSplitRotation(t *testing.T) {
	p := baseParams()
	p.Split, p.SessionsPerWeek = program.SplitUpperLower, 4
	out, err := New(defaultLookup(t), 7).Materialize(context.Background(), p, profile(), start)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	var foci []string
	for _, d := range out.Training {
		if d.Kind == program.DayTraining {
			foci = append(foci, d.Focus)
		}
	}
	want := []string{"upper", "lower", "upper", "lower"}
	if !reflect.DeepEqual(foci, want) {
		t.Fatalf("foci: want=%v got=%v", want, foci)
	}
}

func TestMaterializeSkipsExcludedMuscles(t *testing.T) {
	pr := profile()
	pr.ExcludedMuscleGroups = []program.MuscleGroup{program.MuscleLegs}
	out, err := New(defaultLookup(t), 0).Materialize(context.Background(), baseParams(), pr, start)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	for _, d := range out.Training {
		for _, ex := range d.Exercises {
			if ex.MuscleGroup == program.MuscleLegs {
				t.Fatalf("excluded muscle scheduled on day %d", d.DayIndex)
			}
		}
	}
}

func TestMaterializeDeloadMarksSessions(t *testing.T) {
	p := baseParams()
	p.Deload = true
	out, err := New(defaultLookup(t), 0).Materialize(context.Background(), p, profile(), start)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	for _, d := range out.Training {
		if d.Kind != program.DayTraining {
			continue
		}
		if !d.Deload {
			t.Fatalf("day %d not marked deload", d.DayIndex)
		}
		for _, ex := range d.Exercises {
			if ex.TargetRPE != deloadTargetRPE {
				t.Fatalf("deload RPE: want=%v got=%v", deloadTargetRPE, ex.TargetRPE)
			}
		}
	}
}

type emptyLookup struct {
	noMeals bool
}

func (l emptyLookup) Exercises(_ context.Context, q catalog.ExerciseQuery) ([]catalog.Exercise, error) {
	if q.MuscleGroup == program.MuscleCore {
		return nil, nil
	}
	return []catalog.Exercise{{ID: "x-" + string(q.MuscleGroup), Name: "X", MuscleGroup: q.MuscleGroup}}, nil
}

func (l emptyLookup) Meals(_ context.Context, q catalog.MealQuery) ([]catalog.MealTemplate, error) {
	if l.noMeals && q.Slot == "dinner" {
		return nil, nil
	}
	return []catalog.MealTemplate{{ID: "m-" + q.Slot, Name: "M", Slots: []string{q.Slot}, Calories: 500}}, nil
}

func TestMaterializeContentUnavailable(t *testing.T) {
	_, err := New(emptyLookup{}, 0).Materialize(context.Background(), baseParams(), profile(), start)
	if !errors.Is(err, ErrContentUnavailable) {
		t.Fatalf("expected ErrContentUnavailable, got %v", err)
	}
	var cue *ContentUnavailableError
	if !errors.As(err, &cue) || cue.Slot != "exercise:core" || cue.Day != 0 {
		t.Fatalf("unexpected error detail: %+v", cue)
	}

	p := baseParams()
	p.WeeklySetsPerMuscle[program.MuscleCore] = 0
	_, err = New(emptyLookup{noMeals: true}, 0).Materialize(context.Background(), p, profile(), start)
	if !errors.As(err, &cue) || cue.Slot != "meal:dinner" {
		t.Fatalf("expected missing dinner, got %v", err)
	}
}

func TestMaterializeRejectsInconsistentMacros(t *testing.T) {
	p := baseParams()
	p.CarbsG += 100
	_, err := New(defaultLookup(t), 0).Materialize(context.Background(), p, profile(), start)
	if !errors.Is(err, ErrToleranceExceeded) {
		t.Fatalf("expected ErrToleranceExceeded, got %v", err)
	}
}
