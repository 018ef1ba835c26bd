package controller

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/yungbote/fitprogram-backend/internal/domain/program"
)

type Input struct {
	Trigger program.TriggerReason
	Force   bool
	Date    time.Time
}

// Decision is the controller's output for one cycle. Record carries the audit
// fields; identifiers and version links are filled in by the caller.
type Decision struct {
	Record program.AdjustmentRecord
	// Params is the next parameter set when no re-solve is needed.
	Params program.PlanParams
	// Changed reports whether a new plan version should be produced.
	Changed bool
	// Resolve asks the caller to run the solver before materializing.
	Resolve bool
	// Patch is the life-event overlay the next version should carry.
	Patch *program.ConstraintPatch
	// Frequency is the new sessions/week when the frequency channel moved.
	Frequency int
	Milestone bool
}

type Controller struct {
	cfg Config
}

func New(cfg Config) *Controller {
	return &Controller{cfg: cfg}
}

func (c *Controller) Config() Config { return c.cfg }

type cycle struct {
	cfg      Config
	active   program.PlanVersion
	sig      program.Signals
	in       Input
	params   program.PlanParams
	adj      map[string]program.ChannelAdjustment
	order    []string
	warnings []string
}

// Compute runs one step of the feedback loop against the active plan.
// Priority: constraint change, milestone, deload, proportional.
func (c *Controller) Compute(active program.PlanVersion, sig program.Signals, in Input) Decision {
	cy := &cycle{
		cfg:    c.cfg,
		active: active,
		sig:    sig,
		in:     in,
		params: active.Params.Clone(),
		adj:    map[string]program.ChannelAdjustment{},
	}
	cy.observe()

	d := Decision{Patch: active.Patch}
	var typ program.AdjustmentType
	var lead string

	patch := c.desiredPatch(sig.Sentiment.LifeEvents, in.Date)
	switch {
	case !patch.Equal(active.Patch):
		typ = program.AdjustmentConstraintChange
		d.Patch, d.Resolve, d.Changed = patch, true, true
		lead = describePatch(patch)
	case c.milestoneReached(active, sig):
		typ = program.AdjustmentMilestone
		d.Milestone, d.Resolve, d.Changed = true, true, true
		lead = fmt.Sprintf("target weight reached (%.1f kg); next phase holds weight", *sig.Biometrics.LatestWeightKg)
	default:
		if reason, ok := c.deloadReason(sig); ok {
			typ = program.AdjustmentDeload
			lead = reason
			cy.deload()
		} else {
			typ = program.AdjustmentEarlyIntervention
			if in.Trigger == program.TriggerScheduled {
				typ = program.AdjustmentScheduled
			}
			cy.calories()
			if !cy.exitDeload() {
				cy.volume()
			}
			if f, ok := cy.frequency(); ok {
				d.Frequency, d.Resolve = f, true
			}
		}
		d.Changed = len(cy.adj) > 0 || cy.params.Deload != active.Params.Deload || in.Force
	}

	reasons := make([]string, 0, len(cy.order)+1)
	if lead != "" {
		reasons = append(reasons, lead)
	}
	for _, ch := range cy.order {
		reasons = append(reasons, fmt.Sprintf("%s: %s", ch, cy.adj[ch].Reason))
	}
	rationale := strings.Join(reasons, "; ")
	if !d.Changed {
		rationale = "no material change"
		if len(reasons) > 0 {
			rationale += ": " + strings.Join(reasons, "; ")
		}
	}

	d.Params = cy.params
	d.Record = program.AdjustmentRecord{
		AdjustmentDate:     program.Day(in.Date),
		TriggerReason:      in.Trigger,
		AdherenceMetrics:   sig.Adherence,
		BiometricTrends:    sig.Biometrics,
		PerformanceMarkers: sig.Performance,
		SentimentAnalysis:  sig.Sentiment,
		Adjustments:        cy.adj,
		AdjustmentType:     typ,
		Rationale:          rationale,
		Warnings:           cy.warnings,
		Resolved:           d.Resolve,
	}
	if d.Record.Warnings == nil {
		d.Record.Warnings = []string{}
	}
	return d
}

func (cy *cycle) warn(format string, args ...any) {
	cy.warnings = append(cy.warnings, fmt.Sprintf(format, args...))
}

// observe records borderline conditions that do not trigger an override.
func (cy *cycle) observe() {
	a, b, p := cy.sig.Adherence, cy.sig.Biometrics, cy.sig.Performance
	if a.Overall < cy.cfg.AdherenceWarning {
		cy.warn("adherence %.0f%% is below %.0f%%", a.Overall*100, cy.cfg.AdherenceWarning*100)
	}
	if b.HRVSamples >= 2 && b.HRVSlopePctPerWeek <= cy.cfg.HRVModerateDropPct {
		cy.warn("HRV declining %.1f%%/week", b.HRVSlopePctPerWeek)
	}
	if b.RHRDeltaBpm >= cy.cfg.RHRWarningBpm {
		cy.warn("resting heart rate up %.1f bpm", b.RHRDeltaBpm)
	}
	if p.RPESamples > 0 && p.AvgRPE >= cy.cfg.HighRPE {
		cy.warn("average RPE %.1f is high", p.AvgRPE)
	}
}

// propose records a channel change unless it is immaterial. Force bypasses
// materiality but never the clamp applied by the caller.
func (cy *cycle) propose(channel string, old, next float64, g Gain, reason string) bool {
	delta := next - old
	if delta == 0 {
		return false
	}
	if !cy.in.Force && math.Abs(delta) < g.Materiality {
		return false
	}
	cy.adj[channel] = program.ChannelAdjustment{Old: old, New: next, Delta: delta, Reason: reason}
	cy.order = append(cy.order, channel)
	return true
}

func (cy *cycle) calories() {
	b, a := cy.sig.Biometrics, cy.sig.Adherence
	if b.WeightSamples < cy.cfg.MinWeightSamples {
		cy.warn("insufficient weight data (%d samples); calories unchanged", b.WeightSamples)
		return
	}
	if a.NutritionRate < cy.cfg.MinNutritionAdherence {
		cy.warn("nutrition adherence %.0f%% too low to judge intake; calories unchanged", a.NutritionRate*100)
		return
	}
	target := cy.params.TargetRateKgPerWeek
	observed := b.WeightSlopeKgPerWeek
	step, clamped := cy.cfg.Calories.Step(target - observed)
	step = math.Round(step)
	if clamped {
		cy.warn("calorie correction clamped at %.0f kcal", cy.cfg.Calories.MaxStep)
	}
	old := cy.params.Calories
	next := math.Max(old+step, program.CalorieFloor)
	reason := fmt.Sprintf("observed %+.2f kg/week against target %+.2f kg/week", observed, target)
	if cy.propose(program.ChannelCalories, old, next, cy.cfg.Calories, reason) {
		cy.params = cy.params.WithCalories(next)
	}
}

func (cy *cycle) volume() {
	p := cy.sig.Performance
	if p.RPESamples == 0 {
		return
	}
	mrv := program.Landmarks(cy.active.Goal.Baseline.Experience).MRV
	saturated := false
	for _, m := range program.MuscleGroups {
		old := cy.params.WeeklySetsPerMuscle[m]
		if old == 0 {
			continue
		}
		observed, ok := p.MuscleRPE[m]
		if !ok {
			observed = p.AvgRPE
		}
		step, clamped := cy.cfg.Volume.Step(cy.cfg.TargetRPE - observed)
		saturated = saturated || clamped
		next := boundStep(old, clampInt(old+int(math.Round(step)), 0, mrv), int(cy.cfg.Volume.MaxStep))
		reason := fmt.Sprintf("RPE %.1f against target %.1f", observed, cy.cfg.TargetRPE)
		if cy.propose(program.VolumeChannel(m), float64(old), float64(next), cy.cfg.Volume, reason) {
			cy.params.WeeklySetsPerMuscle[m] = next
		}
	}
	if saturated {
		cy.warn("volume correction clamped at %.0f sets", cy.cfg.Volume.MaxStep)
	}
}

// frequency follows what the user actually logs. A change alters the weekly
// structure, so the caller re-solves.
func (cy *cycle) frequency() (int, bool) {
	a := cy.sig.Adherence
	if a.SessionsPlanned == 0 {
		return 0, false
	}
	old := cy.params.SessionsPerWeek
	step, _ := cy.cfg.Frequency.Step(a.SessionsPerWeek - float64(old))
	next := clampInt(old+int(math.Trunc(step)), 1, cy.active.EffectiveGoal().Baseline.AvailableDaysPerWeek)
	reason := fmt.Sprintf("logging %.1f sessions/week against %d planned", a.SessionsPerWeek, old)
	if !cy.propose(program.ChannelFrequency, float64(old), float64(next), cy.cfg.Frequency, reason) {
		return 0, false
	}
	cy.params.SessionsPerWeek = next
	cy.params.Split = program.SplitFor(next)
	return next, true
}

func (cy *cycle) deload() {
	cut := cy.cfg.DeloadVolumeCut
	maxStep := int(cy.cfg.Volume.MaxStep)
	for _, m := range program.MuscleGroups {
		old := cy.params.WeeklySetsPerMuscle[m]
		if old == 0 || cy.active.Params.Deload {
			continue
		}
		next := boundStep(old, old-int(math.Round(float64(old)*cut)), maxStep)
		if next == old {
			continue
		}
		cy.adj[program.VolumeChannel(m)] = program.ChannelAdjustment{
			Old: float64(old), New: float64(next), Delta: float64(next - old),
			Reason: fmt.Sprintf("deload: volume reduced %.0f%%", cut*100),
		}
		cy.order = append(cy.order, program.VolumeChannel(m))
		cy.params.WeeklySetsPerMuscle[m] = next
	}
	if cy.active.Params.Deload {
		cy.warn("recovery markers still poor; deload extended")
	}
	cy.params.Deload = true
}

// exitDeload restores pre-deload volume once recovery markers clear.
func (cy *cycle) exitDeload() bool {
	if !cy.active.Params.Deload {
		return false
	}
	cut := cy.cfg.DeloadVolumeCut
	mrv := program.Landmarks(cy.active.Goal.Baseline.Experience).MRV
	maxStep := int(cy.cfg.Volume.MaxStep)
	for _, m := range program.MuscleGroups {
		old := cy.params.WeeklySetsPerMuscle[m]
		if old == 0 || cut >= 1 {
			continue
		}
		next := boundStep(old, clampInt(int(math.Round(float64(old)/(1-cut))), 0, mrv), maxStep)
		if next == old {
			continue
		}
		cy.adj[program.VolumeChannel(m)] = program.ChannelAdjustment{
			Old: float64(old), New: float64(next), Delta: float64(next - old),
			Reason: "deload complete: volume restored",
		}
		cy.order = append(cy.order, program.VolumeChannel(m))
		cy.params.WeeklySetsPerMuscle[m] = next
	}
	cy.params.Deload = false
	return true
}

func (c *Controller) deloadReason(sig program.Signals) (string, bool) {
	b, p, a := sig.Biometrics, sig.Performance, sig.Adherence
	hrv := b.HRVSlopePctPerWeek
	hasHRV := b.HRVSamples >= 2
	highRPE := p.RPESamples > 0 && p.AvgRPE >= c.cfg.HighRPE
	switch {
	case hasHRV && hrv <= c.cfg.HRVSevereDropPct:
		return fmt.Sprintf("HRV falling %.1f%%/week", hrv), true
	case hasHRV && hrv <= c.cfg.HRVModerateDropPct && (highRPE || a.Overall < c.cfg.LowAdherence):
		return fmt.Sprintf("HRV falling %.1f%%/week with RPE %.1f and adherence %.0f%%", hrv, p.AvgRPE, a.Overall*100), true
	case b.RHRDeltaBpm >= c.cfg.RHRElevatedBpm && highRPE:
		return fmt.Sprintf("resting heart rate up %.1f bpm with RPE %.1f", b.RHRDeltaBpm, p.AvgRPE), true
	}
	return "", false
}

func (c *Controller) milestoneReached(active program.PlanVersion, sig program.Signals) bool {
	latest := sig.Biometrics.LatestWeightKg
	target, ok := active.Goal.TargetMetrics[program.MetricBodyWeightKg]
	if latest == nil || !ok || active.Goal.PrimaryGoal == program.GoalMaintenance {
		return false
	}
	return math.Abs(*latest-target) <= c.cfg.MilestoneToleranceKg
}

// desiredPatch builds the overlay for life events overlapping the next cycle.
func (c *Controller) desiredPatch(events []program.LifeEvent, date time.Time) *program.ConstraintPatch {
	start := date.UTC()
	end := start.AddDate(0, 0, c.cfg.CycleDays)
	var p *program.ConstraintPatch
	for _, ev := range events {
		if !ev.From.Before(end) || (!ev.To.IsZero() && ev.To.Before(start)) {
			continue
		}
		if p == nil {
			p = &program.ConstraintPatch{}
		}
		p.Events = append(p.Events, ev.Kind)
		switch ev.Kind {
		case program.LifeEventTravel:
			p.BodyweightOnly = true
			p.MaxSessionMinutes = minPositive(p.MaxSessionMinutes, 45)
		case program.LifeEventInjury:
			if ev.MuscleGroup != "" && !containsMuscle(p.ExcludeMuscles, ev.MuscleGroup) {
				p.ExcludeMuscles = append(p.ExcludeMuscles, ev.MuscleGroup)
			}
			p.DropTrainingMinimums = true
		case program.LifeEventIllness:
			p.AvailableDaysCap = minPositive(p.AvailableDaysCap, 2)
			p.DropTrainingMinimums = true
		case program.LifeEventScheduleChange:
			if ev.AvailableDays > 0 {
				p.AvailableDays = ev.AvailableDays
			}
		}
	}
	return p
}

func describePatch(p *program.ConstraintPatch) string {
	if p == nil {
		return "life events ended; original constraints restored"
	}
	kinds := make([]string, 0, len(p.Events))
	for _, k := range p.Events {
		kinds = append(kinds, string(k))
	}
	return "life events affect availability: " + strings.Join(kinds, ", ")
}

func boundStep(old, next, maxStep int) int {
	if next-old > maxStep {
		return old + maxStep
	}
	if old-next > maxStep {
		return old - maxStep
	}
	return next
}

func clampInt(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minPositive(cur, v int) int {
	if cur == 0 || v < cur {
		return v
	}
	return cur
}

func containsMuscle(list []program.MuscleGroup, m program.MuscleGroup) bool {
	for _, x := range list {
		if x == m {
			return true
		}
	}
	return false
}
