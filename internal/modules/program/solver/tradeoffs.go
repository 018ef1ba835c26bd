package solver

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/yungbote/fitprogram-backend/internal/domain/program"
)

type kindSet map[program.ConstraintKind]bool

func (k kindSet) add(diags []program.Diagnostic) {
	for _, d := range diags {
		if d.Constraint != "" {
			k[d.Constraint] = true
		}
		for _, r := range d.Related {
			k[r] = true
		}
	}
}

func (k kindSet) any(kinds ...program.ConstraintKind) bool {
	for _, kind := range kinds {
		if k[kind] {
			return true
		}
	}
	return false
}

var trainingMinimums = []program.ConstraintKind{
	program.SessionsPerWeekMin,
	program.SessionMinutesMin,
	program.WeeklySetsPerMuscleMin,
}

var nutritionLimits = []program.ConstraintKind{
	program.CaloriesMin,
	program.CaloriesMax,
	program.ProteinGPerKgMin,
}

// applies reports whether a lever addresses any of the involved constraints.
func applies(l program.Lever, inv kindSet, g program.GoalConstraintSet) bool {
	switch l {
	case program.LeverRaiseFrequency:
		return inv.any(trainingMinimums...)
	case program.LeverLowerPace:
		return inv.any(trainingMinimums...) || inv.any(program.TimelineWeeksMax, program.WeeklyMinutesMax, program.CaloriesMin, program.CaloriesMax)
	case program.LeverReduceTarget:
		return g.TargetDeltaKg() != 0 &&
			inv.any(program.TimelineWeeksMax, program.TargetMetrics, program.RateKgPerWeekMax, program.CaloriesMin, program.CaloriesMax)
	case program.LeverRelaxNutrition:
		return inv.any(nutritionLimits...)
	}
	return false
}

// relax applies one lever to g. The bool is false when the lever would not
// change anything.
func (s *Solver) relax(l program.Lever, g program.GoalConstraintSet, b *budget) (program.GoalConstraintSet, bool) {
	switch l {
	case program.LeverRaiseFrequency:
		return raiseFrequency(g)
	case program.LeverLowerPace:
		return lowerPace(g)
	case program.LeverReduceTarget:
		return s.reduceTarget(g, b)
	case program.LeverRelaxNutrition:
		return relaxNutrition(g)
	}
	return g, false
}

// raiseFrequency frees up enough schedule for the training minimums.
func raiseFrequency(g program.GoalConstraintSet) (program.GoalConstraintSet, bool) {
	out := g.Clone()
	b := &out.Baseline
	sessions, minutes := b.AvailableDaysPerWeek, b.MaxSessionMinutes
	reqSessions, reqMinutes := 1, program.SessionMinuteOptions[0]
	if v, ok := g.Hard(program.SessionsPerWeekMin); ok {
		reqSessions = clampInt(int(math.Ceil(v)), 1, 7)
		sessions = maxInt(sessions, reqSessions)
	}
	if v, ok := g.Hard(program.SessionMinutesMin); ok {
		reqMinutes = clampInt(int(math.Ceil(v)), reqMinutes, 120)
		minutes = maxInt(minutes, reqMinutes)
	}
	weekly := reqSessions * maxInt(reqMinutes, minInt(minutes, 60))
	if v, ok := g.Hard(program.WeeklySetsPerMuscleMin); ok {
		muscles := len(b.TrainedMuscles())
		for float64(program.SetsPerMuscle(sessions, minInt(minutes, 120), muscles, b.Experience)) < v && sessions < 7 {
			sessions++
		}
		for float64(program.SetsPerMuscle(sessions, minutes, muscles, b.Experience)) < v && minutes < 120 {
			minutes += 15
		}
		weekly = maxInt(weekly, sessions*minInt(minutes, 120))
	}
	changed := sessions != b.AvailableDaysPerWeek || minutes != b.MaxSessionMinutes || weekly > b.WeeklyMinutes
	b.AvailableDaysPerWeek = sessions
	b.MaxSessionMinutes = minutes
	b.WeeklyMinutes = maxInt(b.WeeklyMinutes, weekly)
	return out, changed
}

// lowerPace trims training minimums to what the schedule can hold and lifts
// the timeline cap, so the target is reached later with less training.
func lowerPace(g program.GoalConstraintSet) (program.GoalConstraintSet, bool) {
	out := g.Clone()
	b := g.Baseline
	maxF := minInt(b.AvailableDaysPerWeek, b.WeeklyMinutes/program.SessionMinuteOptions[0])
	maxM, maxSets := 0, 0
	for f := 1; f <= maxF; f++ {
		for _, m := range program.SessionMinuteOptions {
			if m > b.MaxSessionMinutes || f*m > b.WeeklyMinutes {
				continue
			}
			maxM = maxInt(maxM, m)
			maxSets = maxInt(maxSets, program.SetsPerMuscle(f, m, len(b.TrainedMuscles()), b.Experience))
		}
	}
	changed := false
	limitTo := func(kind program.ConstraintKind, limit int) {
		v, ok := out.Hard(kind)
		if !ok || v <= float64(limit) {
			return
		}
		changed = true
		if limit <= 0 {
			out = out.WithoutHard(kind)
			return
		}
		out = out.WithHard(kind, float64(limit))
	}
	limitTo(program.SessionsPerWeekMin, maxF)
	limitTo(program.SessionMinutesMin, maxM)
	limitTo(program.WeeklySetsPerMuscleMin, maxSets)
	if _, ok := out.Hard(program.TimelineWeeksMax); ok {
		out = out.WithoutHard(program.TimelineWeeksMax)
		changed = true
	}
	return out, changed
}

// reduceTarget shrinks the body-weight change in 10% steps until the goal
// becomes feasible, stopping at 10% of the original change.
func (s *Solver) reduceTarget(g program.GoalConstraintSet, b *budget) (program.GoalConstraintSet, bool) {
	delta := g.TargetDeltaKg()
	if delta == 0 {
		return g, false
	}
	var last program.GoalConstraintSet
	for step := 9; step >= 1; step-- {
		last = withTarget(g, g.Baseline.BodyWeightKg+delta*float64(step)/10)
		if b.expired {
			break
		}
		if s.solve(last, b, false).IsFeasible {
			return last, true
		}
	}
	return last, true
}

func withTarget(g program.GoalConstraintSet, kg float64) program.GoalConstraintSet {
	out := g.Clone()
	if out.TargetMetrics == nil {
		out.TargetMetrics = map[program.Metric]float64{}
	}
	out.TargetMetrics[program.MetricBodyWeightKg] = math.Round(kg*10) / 10
	return out
}

func relaxNutrition(g program.GoalConstraintSet) (program.GoalConstraintSet, bool) {
	for _, k := range nutritionLimits {
		if _, ok := g.Hard(k); ok {
			return g.WithoutHard(nutritionLimits...), true
		}
	}
	return g, false
}

// tradeOffs starts one chain per lever in relaxation order. A chain keeps
// composing later levers onto the relaxed goal until it becomes feasible.
func (s *Solver) tradeOffs(g program.GoalConstraintSet, diags []program.Diagnostic, b *budget) []program.TradeOff {
	base := kindSet{}
	base.add(diags)

	var out []program.TradeOff
	seen := map[string]bool{}
	for i, first := range program.RelaxationOrder {
		if b.expired {
			break
		}
		if !applies(first, base, g) {
			continue
		}
		inv := kindSet{}
		for k := range base {
			inv[k] = true
		}
		cur := g
		var chain []program.Lever
		var res program.FeasibilityResult
		for _, l := range program.RelaxationOrder[i:] {
			if len(chain) > 0 && !applies(l, inv, cur) {
				continue
			}
			next, changed := s.relax(l, cur, b)
			if !changed {
				if len(chain) == 0 {
					break
				}
				continue
			}
			cur = next
			chain = append(chain, l)
			res = s.solve(cur, b, false)
			if res.IsFeasible || b.expired {
				break
			}
			inv.add(res.Diagnostics)
		}
		if !res.IsFeasible || res.OptimalParams == nil {
			continue
		}
		key := fingerprint(*res.OptimalParams)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, buildTradeOff(g, cur, chain, res))
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].Cost != out[j].Cost {
			return out[i].Cost < out[j].Cost
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > s.cfg.MaxTradeOffs {
		out = out[:s.cfg.MaxTradeOffs]
	}
	if out == nil {
		out = []program.TradeOff{}
	}
	return out
}

func fingerprint(p program.PlanParams) string {
	return fmt.Sprintf("%d/%d/%d/%.0f/%.0f", p.SessionsPerWeek, p.SessionMinutes, p.TimelineWeeks, p.Calories, p.ProteinG)
}

func buildTradeOff(orig, relaxed program.GoalConstraintSet, chain []program.Lever, res program.FeasibilityResult) program.TradeOff {
	p := *res.OptimalParams
	ob, rb := orig.Baseline, relaxed.Baseline

	adj := program.PartialPlanParams{
		SessionsPerWeek:     ptr(p.SessionsPerWeek),
		SessionMinutes:      ptr(p.SessionMinutes),
		Calories:            ptr(p.Calories),
		TargetRateKgPerWeek: ptr(p.TargetRateKgPerWeek),
		TimelineWeeks:       ptr(p.TimelineWeeks),
	}
	if rb.AvailableDaysPerWeek != ob.AvailableDaysPerWeek {
		adj.AvailableDays = ptr(rb.AvailableDaysPerWeek)
	}
	if rb.WeeklyMinutes != ob.WeeklyMinutes {
		adj.WeeklyMinutes = ptr(rb.WeeklyMinutes)
	}

	var cost float64
	parts := make([]string, 0, len(chain))
	for _, l := range chain {
		switch l {
		case program.LeverRaiseFrequency:
			extraDays := rb.AvailableDaysPerWeek - ob.AvailableDaysPerWeek
			extraHours := float64(rb.WeeklyMinutes-ob.WeeklyMinutes) / 60
			cost += float64(extraDays) + 0.5*extraHours + 0.25*float64(rb.MaxSessionMinutes-ob.MaxSessionMinutes)/60
			msg := fmt.Sprintf("train %d sessions/week of %d min", p.SessionsPerWeek, p.SessionMinutes)
			if extraDays > 0 {
				msg += fmt.Sprintf(" (%d more training day(s) per week)", extraDays)
			}
			parts = append(parts, msg)
		case program.LeverLowerPace:
			cost += 0.1 * float64(maxInt(0, p.TimelineWeeks-orig.TimelineWeeks))
			if p.TargetRateKgPerWeek != 0 {
				parts = append(parts, fmt.Sprintf("keep %d sessions/week and slow to %.2f kg/week over %d weeks",
					p.SessionsPerWeek, math.Abs(p.TargetRateKgPerWeek), p.TimelineWeeks))
			} else {
				parts = append(parts, fmt.Sprintf("keep %d sessions/week over %d weeks", p.SessionsPerWeek, p.TimelineWeeks))
			}
		case program.LeverReduceTarget:
			od, rd := orig.TargetDeltaKg(), relaxed.TargetDeltaKg()
			if od != 0 {
				cost += 5 * (1 - rd/od)
			}
			target := relaxed.TargetMetrics[program.MetricBodyWeightKg]
			adj.TargetWeightKg = ptr(target)
			parts = append(parts, fmt.Sprintf("aim for %.1f kg instead of %.1f kg",
				target, orig.TargetMetrics[program.MetricBodyWeightKg]))
		case program.LeverRelaxNutrition:
			cost += 2
			adj.ProteinG = ptr(p.ProteinG)
			parts = append(parts, fmt.Sprintf("lift the calorie and protein limits (%.0f kcal, %.0f g protein per day)",
				p.Calories, p.ProteinG))
		}
	}

	ids := make([]string, len(chain))
	for i, l := range chain {
		ids[i] = string(l)
	}
	summary := strings.Join(parts, "; ")
	if summary != "" {
		summary = strings.ToUpper(summary[:1]) + summary[1:]
	}
	return program.TradeOff{
		ID:                   strings.Join(ids, "+"),
		Summary:              summary,
		Levers:               append([]program.Lever(nil), chain...),
		Adjustments:          adj,
		ExpectedOutcomeRange: outcomeRange(rb, p),
		Cost:                 math.Round(cost*100) / 100,
		Score:                res.Score,
		RelaxedGoal:          relaxed,
	}
}

// outcomeRange is the body-weight change over the timeline across the TDEE
// confidence band.
func outcomeRange(b program.Baseline, p program.PlanParams) program.Interval {
	band := b.TDEEBand()
	days := float64(7 * p.TimelineWeeks)
	low := (p.Calories - band.High) * days / program.KcalPerKgBodyMass
	high := (p.Calories - band.Low) * days / program.KcalPerKgBodyMass
	return program.Interval{Low: math.Round(low*10) / 10, High: math.Round(high*10) / 10}
}

func ptr[T any](v T) *T { return &v }

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func clampInt(v, lo, hi int) int { return minInt(maxInt(v, lo), hi) }
