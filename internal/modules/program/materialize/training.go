package materialize

import (
	"context"
	"fmt"
	"time"

	"github.com/yungbote/fitprogram-backend/internal/domain/program"
	"github.com/yungbote/fitprogram-backend/internal/platform/catalog"
)

// weekdayPattern lists the training day offsets within each 7-day block for a
// given number of sessions per week.
var weekdayPattern = map[int][]int{
	0: {},
	1: {0},
	2: {0, 3},
	3: {0, 2, 4},
	4: {0, 1, 3, 4},
	5: {0, 1, 2, 4, 5},
	6: {0, 1, 2, 3, 4, 5},
	7: {0, 1, 2, 3, 4, 5, 6},
}

type focus struct {
	name    string
	muscles []program.MuscleGroup
}

var (
	fullBody = focus{"full_body", program.MuscleGroups}
	upper    = focus{"upper", []program.MuscleGroup{program.MuscleChest, program.MuscleBack, program.MuscleShoulders, program.MuscleArms}}
	lower    = focus{"lower", []program.MuscleGroup{program.MuscleLegs, program.MuscleCore}}
	push     = focus{"push", []program.MuscleGroup{program.MuscleChest, program.MuscleShoulders, program.MuscleArms}}
	pull     = focus{"pull", []program.MuscleGroup{program.MuscleBack, program.MuscleArms}}
	legs     = focus{"legs", []program.MuscleGroup{program.MuscleLegs, program.MuscleCore}}
)

// focusFor returns the focus of the k-th session in a week.
func focusFor(split program.Split, k int) focus {
	switch split {
	case program.SplitUpperLower:
		if k%2 == 0 {
			return upper
		}
		return lower
	case program.SplitPushPullLegs:
		return [...]focus{push, pull, legs}[k%3]
	default:
		return fullBody
	}
}

const (
	targetRPE       = 7.5
	deloadTargetRPE = 6.0
	maxSetsPerEntry = 4
)

// weekPlan assigns per-session sets for one week. sets[k][muscle] is the
// volume for muscle in the k-th session.
func weekPlan(params program.PlanParams, profile Profile) ([]focus, []map[program.MuscleGroup]int) {
	n := params.SessionsPerWeek
	foci := make([]focus, n)
	sets := make([]map[program.MuscleGroup]int, n)
	for k := 0; k < n; k++ {
		foci[k] = focusFor(params.Split, k)
		sets[k] = map[program.MuscleGroup]int{}
	}
	if n == 0 {
		return foci, sets
	}
	for _, mg := range program.MuscleGroups {
		weekly := params.WeeklySetsPerMuscle[mg]
		if weekly <= 0 || profile.excludes(mg) {
			continue
		}
		var sessions []int
		for k, f := range foci {
			for _, x := range f.muscles {
				if x == mg {
					sessions = append(sessions, k)
				}
			}
		}
		if len(sessions) == 0 {
			sessions = []int{0}
		}
		per, extra := weekly/len(sessions), weekly%len(sessions)
		for i, k := range sessions {
			v := per
			if i < extra {
				v++
			}
			if v > 0 {
				sets[k][mg] = v
			}
		}
	}
	return foci, sets
}

func (m *Materializer) training(ctx context.Context, params program.PlanParams, profile Profile, start time.Time) ([]program.TrainingDay, error) {
	pattern, ok := weekdayPattern[params.SessionsPerWeek]
	if !ok {
		return nil, fmt.Errorf("materialize: no weekday pattern for %d sessions", params.SessionsPerWeek)
	}
	slotOf := map[int]int{}
	for k, d := range pattern {
		slotOf[d] = k
	}
	foci, weekSets := weekPlan(params, profile)

	rpe := targetRPE
	if params.Deload {
		rpe = deloadTargetRPE
	}
	pools := map[program.MuscleGroup][]catalog.Exercise{}
	rotation := map[program.MuscleGroup]int{}

	days := make([]program.TrainingDay, 0, m.horizon)
	for d := 0; d < m.horizon; d++ {
		day := program.TrainingDay{
			DayIndex: d,
			Date:     program.Day(start.AddDate(0, 0, d)),
			Kind:     program.DayRest,
		}
		k, isTraining := slotOf[d%7]
		if !isTraining {
			days = append(days, day)
			continue
		}
		day.Kind = program.DayTraining
		day.Focus = foci[k].name
		day.Minutes = params.SessionMinutes
		day.Deload = params.Deload
		for _, mg := range program.MuscleGroups {
			sets := weekSets[k][mg]
			if sets <= 0 {
				continue
			}
			pool, err := m.exercisePool(ctx, pools, mg, profile)
			if err != nil {
				return nil, err
			}
			if len(pool) == 0 {
				return nil, &ContentUnavailableError{
					Slot:   "exercise:" + string(mg),
					Day:    d,
					Detail: fmt.Sprintf("no %s exercise for equipment %v at %s level", mg, profile.Equipment, profile.Experience),
				}
			}
			for _, chunk := range splitSets(sets) {
				ex := pool[rotation[mg]%len(pool)]
				rotation[mg]++
				day.Exercises = append(day.Exercises, program.ExerciseSlot{
					MuscleGroup: mg,
					ExerciseID:  ex.ID,
					Name:        ex.Name,
					Sets:        chunk,
					RepsLow:     8,
					RepsHigh:    12,
					TargetRPE:   rpe,
				})
			}
		}
		days = append(days, day)
	}
	return days, nil
}

func (m *Materializer) exercisePool(ctx context.Context, cache map[program.MuscleGroup][]catalog.Exercise, mg program.MuscleGroup, profile Profile) ([]catalog.Exercise, error) {
	if pool, ok := cache[mg]; ok {
		return pool, nil
	}
	pool, err := m.lookup.Exercises(ctx, catalog.ExerciseQuery{
		MuscleGroup: mg,
		Equipment:   profile.Equipment,
		Experience:  profile.Experience,
	})
	if err != nil {
		return nil, fmt.Errorf("materialize: exercise lookup for %s: %w", mg, err)
	}
	cache[mg] = pool
	return pool, nil
}

// splitSets breaks a session's volume for one muscle into exercise entries of
// at most maxSetsPerEntry sets, as evenly as possible.
func splitSets(sets int) []int {
	n := (sets + maxSetsPerEntry - 1) / maxSetsPerEntry
	out := make([]int, n)
	for i := range out {
		out[i] = sets / n
		if i < sets%n {
			out[i]++
		}
	}
	return out
}
