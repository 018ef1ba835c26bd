package reassess

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/yungbote/fitprogram-backend/internal/domain/program"
	"github.com/yungbote/fitprogram-backend/internal/modules/program/controller"
)

const (
	maintenanceWeeks = 12
	// preferredFrequencyWeight pulls the solver toward the frequency the user
	// actually trains at.
	preferredFrequencyWeight = 10
)

// nextGoal derives the goal a re-solve runs against. The result is the stored
// goal; any life-event overlay is applied on top by the caller.
func (o *Orchestrator) nextGoal(active program.PlanVersion, d controller.Decision, sig program.Signals, now time.Time, drift bool) (program.GoalConstraintSet, []string) {
	g := active.Goal.Clone()
	var notes []string

	if w := sig.Biometrics.LatestWeightKg; w != nil && *w > 0 {
		g.Baseline.BodyWeightKg = *w
	}
	g.TimelineWeeks = remainingWeeks(active, now)

	if d.Milestone {
		g.PrimaryGoal = program.GoalMaintenance
		g.TargetMetrics = map[program.Metric]float64{program.MetricBodyWeightKg: g.Baseline.BodyWeightKg}
		g.TimelineWeeks = maintenanceWeeks
		g = g.WithoutHard(program.TimelineWeeksMax, program.RateKgPerWeekMax)
		notes = append(notes, fmt.Sprintf("maintenance phase at %.1f kg", g.Baseline.BodyWeightKg))
	}

	if d.Frequency > 0 {
		f := float64(d.Frequency)
		g = g.WithSoft(program.PreferredSessionsPerWeek, f, preferredFrequencyWeight)
		if v, ok := g.Hard(program.SessionsPerWeekMin); ok && v > f {
			g = g.WithHard(program.SessionsPerWeekMin, f)
		}
	}

	if drift {
		if tdee, ok := o.reanchorTDEE(active, sig); ok && tdee != g.Baseline.TDEEKcal {
			notes = append(notes, fmt.Sprintf("TDEE re-estimated from observed weight change: %.0f -> %.0f kcal", g.Baseline.TDEEKcal, tdee))
			g.Baseline.TDEEKcal = tdee
			g.Baseline.TDEEInterval = program.Interval{}
		}
	}
	return g, notes
}

// remainingWeeks is the goal timeline minus the whole weeks already spent on
// the active version, never below one.
func remainingWeeks(active program.PlanVersion, now time.Time) int {
	weeks := active.Goal.TimelineWeeks
	start, err := time.Parse(program.DateLayout, active.StartDate)
	if err == nil && now.After(start) {
		weeks -= int(now.Sub(start).Hours() / 24 / 7)
	}
	if weeks < 1 {
		return 1
	}
	return weeks
}

// reanchorTDEE infers maintenance intake from what the user ate and how their
// weight moved. It needs the same data quality the calorie channel does.
func (o *Orchestrator) reanchorTDEE(active program.PlanVersion, sig program.Signals) (float64, bool) {
	cc := o.deps.Controller.Config()
	b, a := sig.Biometrics, sig.Adherence
	if b.WeightSamples < cc.MinWeightSamples || a.NutritionRate < cc.MinNutritionAdherence {
		return 0, false
	}
	observed := active.Params.Calories - b.WeightSlopeKgPerWeek*program.KcalPerKgBodyMass/7
	prev := active.Goal.Baseline.TDEEKcal
	if prev > 0 && o.cfg.MaxTDEEShiftPct > 0 {
		observed = clamp(observed, prev*(1-o.cfg.MaxTDEEShiftPct), prev*(1+o.cfg.MaxTDEEShiftPct))
	}
	return math.Round(observed/10) * 10, true
}

// rateLimit keeps continuous channels within one controller step of the
// active plan.
func (o *Orchestrator) rateLimit(old, next program.PlanParams) program.PlanParams {
	cc := o.deps.Controller.Config()
	out := next.Clone()

	if step := cc.Calories.MaxStep; step > 0 {
		kcal := math.Max(clamp(next.Calories, old.Calories-step, old.Calories+step), program.CalorieFloor)
		if kcal != next.Calories {
			out = out.WithCalories(kcal)
		}
	}

	step := int(cc.Volume.MaxStep)
	if step <= 0 {
		return out
	}
	for _, m := range program.MuscleGroups {
		was, now := old.WeeklySetsPerMuscle[m], out.WeeklySetsPerMuscle[m]
		if was == 0 || now == 0 {
			continue
		}
		switch {
		case now-was > step:
			out.WeeklySetsPerMuscle[m] = was + step
		case was-now > step:
			out.WeeklySetsPerMuscle[m] = was - step
		}
	}
	return out
}

// Reason prefixes for channels a re-solve moved. Constraint change and
// milestone re-solves are not bounded by max_step and say so.
const (
	reasonResolved           = "re-solved"
	reasonResolvedConstraint = "re-solved (constraint change)"
	reasonResolvedMilestone  = "re-solved (milestone)"
)

// keepControllerCalories pins a proportional re-solve to the controller's
// calorie target. The solver only gets the final say when the controller left
// calories alone and the TDEE was re-anchored from observed data.
func keepControllerCalories(solved, controlled program.PlanParams, adj map[string]program.ChannelAdjustment, reanchored bool) program.PlanParams {
	if _, moved := adj[program.ChannelCalories]; !moved && reanchored {
		return solved
	}
	if solved.Calories == controlled.Calories {
		return solved
	}
	return solved.WithCalories(controlled.Calories)
}

// diffAdjustments reports every channel the re-solve moved. Reasons from the
// controller are kept behind the prefix.
func diffAdjustments(old, next program.PlanParams, prior map[string]program.ChannelAdjustment, prefix string) map[string]program.ChannelAdjustment {
	out := map[string]program.ChannelAdjustment{}
	add := func(ch string, a, b float64) {
		if a == b {
			return
		}
		reason := prefix
		if p, ok := prior[ch]; ok && p.Reason != "" {
			reason = prefix + ": " + p.Reason
		}
		out[ch] = program.ChannelAdjustment{Old: a, New: b, Delta: b - a, Reason: reason}
	}
	add(program.ChannelCalories, old.Calories, next.Calories)
	add(program.ChannelFrequency, float64(old.SessionsPerWeek), float64(next.SessionsPerWeek))
	for _, m := range program.MuscleGroups {
		add(program.VolumeChannel(m), float64(old.WeeklySetsPerMuscle[m]), float64(next.WeeklySetsPerMuscle[m]))
	}
	return out
}

func (o *Orchestrator) driftExceeded(drift map[string]float64, adj map[string]program.ChannelAdjustment) bool {
	for ch, a := range adj {
		limit := o.driftLimit(ch)
		if limit <= 0 {
			continue
		}
		if math.Abs(drift[ch]+a.Delta) > limit {
			return true
		}
	}
	return false
}

func (o *Orchestrator) driftLimit(channel string) float64 {
	switch {
	case channel == program.ChannelCalories:
		return o.cfg.CaloriesDrift
	case strings.HasPrefix(channel, program.VolumeChannel("")):
		return o.cfg.VolumeDrift
	default:
		return 0
	}
}

func accumulate(drift map[string]float64, adj map[string]program.ChannelAdjustment) map[string]float64 {
	if drift == nil {
		drift = map[string]float64{}
	}
	for ch, a := range adj {
		if ch == program.ChannelFrequency {
			continue
		}
		drift[ch] += a.Delta
		if drift[ch] == 0 {
			delete(drift, ch)
		}
	}
	return drift
}

func cloneDrift(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// confidence refreshes the adherence and biometric dimensions; other
// dimensions carry over from the active version.
func confidence(prev map[string]float64, sig program.Signals, cc controller.Config) map[string]float64 {
	out := make(map[string]float64, len(prev)+2)
	for k, v := range prev {
		out[k] = v
	}
	need := cc.MinWeightSamples * 2
	if need <= 0 {
		need = 1
	}
	out["adherence"] = round2(clamp(sig.Adherence.Overall, 0, 1))
	out["biometrics"] = round2(clamp(float64(sig.Biometrics.WeightSamples)/float64(need), 0, 1))
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
