package program

import "reflect"

// ConstraintPatch is a temporary overlay on a plan's goal caused by life
// events. The stored goal stays untouched so the overlay can be lifted once
// the events end.
type ConstraintPatch struct {
	Events               []LifeEventKind `json:"events"`
	BodyweightOnly       bool            `json:"bodyweight_only,omitempty"`
	MaxSessionMinutes    int             `json:"max_session_minutes,omitempty"`
	AvailableDaysCap     int             `json:"available_days_cap,omitempty"`
	AvailableDays        int             `json:"available_days,omitempty"`
	ExcludeMuscles       []MuscleGroup   `json:"exclude_muscles,omitempty"`
	DropTrainingMinimums bool            `json:"drop_training_minimums,omitempty"`
}

// Apply returns g with the overlay applied. A nil patch returns a clone.
func (p *ConstraintPatch) Apply(g GoalConstraintSet) GoalConstraintSet {
	out := g.Clone()
	if p == nil {
		return out
	}
	b := &out.Baseline
	if p.BodyweightOnly {
		b.Equipment = []string{}
	}
	if p.AvailableDays > 0 {
		b.AvailableDaysPerWeek = p.AvailableDays
	}
	if p.AvailableDaysCap > 0 && b.AvailableDaysPerWeek > p.AvailableDaysCap {
		b.AvailableDaysPerWeek = p.AvailableDaysCap
	}
	if p.MaxSessionMinutes > 0 && b.MaxSessionMinutes > p.MaxSessionMinutes {
		b.MaxSessionMinutes = p.MaxSessionMinutes
	}
	for _, m := range p.ExcludeMuscles {
		if !b.Excludes(m) {
			b.ExcludedMuscleGroups = append(b.ExcludedMuscleGroups, m)
		}
	}
	if p.DropTrainingMinimums {
		out = out.WithoutHard(SessionsPerWeekMin, SessionMinutesMin, WeeklySetsPerMuscleMin)
	}
	if p.MaxSessionMinutes > 0 {
		if v, ok := out.Hard(SessionMinutesMin); ok && v > float64(p.MaxSessionMinutes) {
			out = out.WithoutHard(SessionMinutesMin)
		}
	}
	if days := out.Baseline.AvailableDaysPerWeek; days > 0 {
		if v, ok := out.Hard(SessionsPerWeekMin); ok && v > float64(days) {
			out = out.WithHard(SessionsPerWeekMin, float64(days))
		}
	}
	return out
}

// Equal treats nil and an empty patch as different: an empty patch still
// records that events were seen.
func (p *ConstraintPatch) Equal(o *ConstraintPatch) bool {
	if p == nil || o == nil {
		return p == nil && o == nil
	}
	return reflect.DeepEqual(*p, *o)
}
