package materialize

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/yungbote/fitprogram-backend/internal/domain/program"
	"github.com/yungbote/fitprogram-backend/internal/platform/catalog"
)

type mealSlot struct {
	name     string
	fraction float64
}

var mealLayouts = map[int][]mealSlot{
	2: {{"breakfast", 0.45}, {"dinner", 0.55}},
	3: {{"breakfast", 0.30}, {"lunch", 0.40}, {"dinner", 0.30}},
	4: {{"breakfast", 0.25}, {"lunch", 0.35}, {"dinner", 0.25}, {"snack", 0.15}},
	5: {{"breakfast", 0.25}, {"snack", 0.10}, {"lunch", 0.30}, {"snack", 0.10}, {"dinner", 0.25}},
	6: {{"breakfast", 0.20}, {"snack", 0.10}, {"lunch", 0.25}, {"snack", 0.10}, {"dinner", 0.25}, {"snack", 0.10}},
}

func layoutFor(meals int) []mealSlot {
	if meals < 2 {
		meals = 2
	}
	if meals > 6 {
		meals = 6
	}
	return mealLayouts[meals]
}

func (m *Materializer) nutrition(ctx context.Context, params program.PlanParams, profile Profile, start time.Time) ([]program.NutritionDay, error) {
	if params.Calories <= 0 {
		return nil, fmt.Errorf("materialize: calorie target must be positive: %v", params.Calories)
	}
	if gap := math.Abs(params.MacroCalories()-params.Calories) / params.Calories; gap > CalorieTolerance {
		return nil, fmt.Errorf("materialize: macros imply %.0f kcal against a %.0f kcal target: %w",
			params.MacroCalories(), params.Calories, ErrToleranceExceeded)
	}

	layout := layoutFor(params.MealsPerDay)
	pools := map[string][]catalog.MealTemplate{}
	days := make([]program.NutritionDay, 0, m.horizon)
	for d := 0; d < m.horizon; d++ {
		day := program.NutritionDay{
			DayIndex: d,
			Date:     program.Day(start.AddDate(0, 0, d)),
			Meals:    make([]program.Meal, 0, len(layout)),
		}
		for i, slot := range layout {
			pool, ok := pools[slot.name]
			if !ok {
				var err error
				pool, err = m.lookup.Meals(ctx, catalog.MealQuery{Slot: slot.name, Restrictions: profile.DietaryRestrictions})
				if err != nil {
					return nil, fmt.Errorf("materialize: meal lookup for %s: %w", slot.name, err)
				}
				pools[slot.name] = pool
			}
			if len(pool) == 0 {
				return nil, &ContentUnavailableError{
					Slot:   "meal:" + slot.name,
					Day:    d,
					Detail: fmt.Sprintf("no %s template satisfies restrictions %v", slot.name, profile.DietaryRestrictions),
				}
			}
			tpl := pool[(d+i)%len(pool)]
			meal := program.Meal{
				Slot:       slot.name,
				TemplateID: tpl.ID,
				Name:       tpl.Name,
				Calories:   math.Round(params.Calories * slot.fraction),
				ProteinG:   math.Round(params.ProteinG * slot.fraction),
				CarbsG:     math.Round(params.CarbsG * slot.fraction),
				FatG:       math.Round(params.FatG * slot.fraction),
			}
			day.Meals = append(day.Meals, meal)
			day.Calories += meal.Calories
			day.ProteinG += meal.ProteinG
			day.CarbsG += meal.CarbsG
			day.FatG += meal.FatG
		}
		if gap := math.Abs(day.Calories-params.Calories) / params.Calories; gap > CalorieTolerance {
			return nil, fmt.Errorf("materialize: day %d totals %.0f kcal against %.0f: %w",
				d, day.Calories, params.Calories, ErrToleranceExceeded)
		}
		days = append(days, day)
	}
	return days, nil
}
