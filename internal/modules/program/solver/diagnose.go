package solver

import (
	"fmt"
	"math"

	"github.com/yungbote/fitprogram-backend/internal/domain/program"
)

// diagnose explains an infeasible search. Constraints that no domain point
// satisfies get their own code. When each constraint is satisfiable alone,
// every pair that never holds together becomes a JOINT_CONFLICT.
func diagnose(res searchResult) []program.Diagnostic {
	sp := res.sp
	if res.stats.points == 0 {
		return []program.Diagnostic{{
			Code:       program.DiagTimelineTooShort,
			Constraint: program.TargetMetrics,
			Message: fmt.Sprintf("a %+.1f kg change is not reachable at a safe pace within %d weeks",
				sp.delta, program.MaxHorizonWeeks),
		}}
	}

	out := []program.Diagnostic{}
	var satisfiable []int
	for i, c := range sp.hard {
		if res.anySat[i] {
			satisfiable = append(satisfiable, i)
			continue
		}
		out = append(out, individual(sp, res.stats, c))
	}
	if len(satisfiable) == 0 || coveredBy(res.masks, satisfiable...) {
		return out
	}

	pairs := 0
	for a := 0; a < len(satisfiable); a++ {
		for z := a + 1; z < len(satisfiable); z++ {
			i, j := satisfiable[a], satisfiable[z]
			if coveredBy(res.masks, i, j) {
				continue
			}
			pairs++
			ci, cj := sp.hard[i], sp.hard[j]
			out = append(out, program.Diagnostic{
				Code:       program.DiagJointConflict,
				Constraint: ci.Kind,
				Related:    []program.ConstraintKind{ci.Kind, cj.Kind},
				Message:    fmt.Sprintf("%s %g and %s %g cannot both hold", ci.Kind, ci.Value, cj.Kind, cj.Value),
			})
		}
	}
	if pairs == 0 {
		related := make([]program.ConstraintKind, 0, len(satisfiable))
		for _, i := range satisfiable {
			related = append(related, sp.hard[i].Kind)
		}
		out = append(out, program.Diagnostic{
			Code:       program.DiagJointConflict,
			Constraint: related[0],
			Related:    related,
			Message:    "constraints are pairwise compatible but cannot all hold together",
		})
	}
	return out
}

// coveredBy reports whether some domain point satisfied every listed constraint.
func coveredBy(masks map[uint32]bool, idx ...int) bool {
	var want uint32
	for _, i := range idx {
		want |= 1 << uint(i)
	}
	for m := range masks {
		if m&want == want {
			return true
		}
	}
	return false
}

func individual(sp *space, st domainStats, c program.Constraint) program.Diagnostic {
	b := sp.goal.Baseline
	d := program.Diagnostic{Code: program.DiagnosticCodeFor(c.Kind), Constraint: c.Kind}
	switch c.Kind {
	case program.SessionsPerWeekMin:
		d.Message = fmt.Sprintf("at least %g sessions/week required but at most %d fit %d available days and %d min/week",
			c.Value, st.maxF, b.AvailableDaysPerWeek, b.WeeklyMinutes)
	case program.SessionsPerWeekMax:
		d.Message = fmt.Sprintf("at most %g sessions/week allowed; the target needs more", c.Value)
	case program.SessionMinutesMin:
		d.Message = fmt.Sprintf("sessions of at least %g min required but at most %d min fit the schedule", c.Value, st.maxM)
	case program.SessionMinutesMax:
		d.Message = fmt.Sprintf("sessions capped at %g min, below the shortest %d min session", c.Value, program.SessionMinuteOptions[0])
	case program.WeeklyMinutesMax:
		d.Message = fmt.Sprintf("weekly cap of %g min is below the shortest schedulable week of %d min", c.Value, st.minWeekly)
	case program.TimelineWeeksMax:
		d.Related = []program.ConstraintKind{program.TimelineWeeksMax, program.TargetMetrics}
		d.Message = fmt.Sprintf("a %+.1f kg change needs at least %d weeks at a safe pace; %g allowed", sp.delta, st.minT, c.Value)
	case program.CaloriesMin:
		d.Message = fmt.Sprintf("intake of at least %g kcal required but the target allows at most %.0f kcal", c.Value, st.maxCal)
	case program.CaloriesMax:
		d.Message = fmt.Sprintf("intake of at most %g kcal allowed but the target needs at least %.0f kcal", c.Value, st.minCal)
	case program.ProteinGPerKgMin:
		d.Message = fmt.Sprintf("%g g/kg protein (%.0f g) does not fit inside %.0f kcal", c.Value, math.Ceil(c.Value*b.BodyWeightKg), st.maxCal)
	case program.RateKgPerWeekMax:
		d.Related = []program.ConstraintKind{program.RateKgPerWeekMax, program.TargetMetrics}
		d.Message = fmt.Sprintf("pace capped at %g kg/week cannot move body weight by %+.1f kg", c.Value, sp.delta)
	case program.WeeklySetsPerMuscleMin:
		d.Message = fmt.Sprintf("%g sets/muscle/week required but at most %d fit the schedule", c.Value, st.maxSets)
	default:
		d.Message = fmt.Sprintf("%s cannot be satisfied", c.Kind)
	}
	return d
}
