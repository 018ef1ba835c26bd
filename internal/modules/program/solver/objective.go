package solver

import (
	"math"

	"github.com/yungbote/fitprogram-backend/internal/domain/program"
)

// score ranks a point that satisfies every hard constraint. Higher is better.
// It combines an adherence proxy, a training-effect term and the weighted
// soft preferences, each normalised to [0,1] before weighting.
func (sp *space) score(p point) float64 {
	return sp.adherence(p) + sp.effect(p) + sp.preferences(p)
}

// adherence estimates how likely the schedule is to be followed. Dense weeks,
// long sessions, a nearly full time budget and a pace close to the safe cap
// all cost a little.
func (sp *space) adherence(p point) float64 {
	b := sp.goal.Baseline
	a := 1.0
	if use := float64(p.f) / float64(b.AvailableDaysPerWeek); use > 0.75 {
		a -= (use - 0.75) * 0.8
	}
	if p.m > 60 {
		a -= float64(p.m-60) / 15 * 0.05
	}
	if budget := float64(p.f*p.m) / float64(b.WeeklyMinutes); budget > 0.9 {
		a -= budget - 0.9
	}
	if sp.delta != 0 && p.paceCap > 0 {
		if ratio := math.Abs(p.rate) / p.paceCap; ratio > 0.75 {
			a -= (ratio - 0.75) * 0.6
		}
	}
	return math.Max(0, a)
}

func (sp *space) effect(p point) float64 {
	w := 0.5
	switch sp.goal.PrimaryGoal {
	case program.GoalMuscleGain, program.GoalStrength, program.GoalRecomposition:
		w = 1
	}
	return w * sp.stimulus(p.sets)
}

// preferences sums weight × closeness for each soft constraint. The goal's own
// timeline acts as an implicit preference of weight 1 unless the caller sent
// an explicit one.
func (sp *space) preferences(p point) float64 {
	total := 0.0
	explicitTimeline := false
	for _, c := range sp.goal.SoftConstraints {
		switch c.Kind {
		case program.PreferredSessionsPerWeek:
			total += c.Weight * closeness(float64(p.f), c.Value, 6)
		case program.PreferredSessionMinutes:
			total += c.Weight * closeness(float64(p.m), c.Value, 90)
		case program.PreferredTimelineWeeks:
			explicitTimeline = true
			total += c.Weight * closeness(float64(p.t), c.Value, math.Max(c.Value, 4))
		}
	}
	if !explicitTimeline && sp.goal.TimelineWeeks > 0 {
		pref := float64(sp.goal.TimelineWeeks)
		total += closeness(float64(p.t), pref, math.Max(pref, 4))
	}
	return total
}

// closeness is 1 at the preferred value and falls linearly to 0 at span away.
func closeness(got, want, span float64) float64 {
	if span <= 0 {
		return 0
	}
	return 1 - math.Min(1, math.Abs(got-want)/span)
}
