package program

import (
	"sort"
	"strings"
)

type PrimaryGoal string

const (
	GoalFatLoss       PrimaryGoal = "fat_loss"
	GoalMuscleGain    PrimaryGoal = "muscle_gain"
	GoalRecomposition PrimaryGoal = "recomposition"
	GoalMaintenance   PrimaryGoal = "maintenance"
	GoalStrength      PrimaryGoal = "strength"
	GoalEndurance     PrimaryGoal = "endurance"
)

type Metric string

const (
	MetricBodyWeightKg Metric = "body_weight_kg"
)

type Experience string

const (
	ExperienceNovice       Experience = "novice"
	ExperienceIntermediate Experience = "intermediate"
	ExperienceAdvanced     Experience = "advanced"
)

type MuscleGroup string

const (
	MuscleChest     MuscleGroup = "chest"
	MuscleBack      MuscleGroup = "back"
	MuscleShoulders MuscleGroup = "shoulders"
	MuscleArms      MuscleGroup = "arms"
	MuscleLegs      MuscleGroup = "legs"
	MuscleCore      MuscleGroup = "core"
)

// MuscleGroups is the fixed iteration order used everywhere a per-muscle map
// has to be walked deterministically.
var MuscleGroups = []MuscleGroup{MuscleChest, MuscleBack, MuscleShoulders, MuscleArms, MuscleLegs, MuscleCore}

func IsMuscleGroup(m MuscleGroup) bool {
	for _, g := range MuscleGroups {
		if g == m {
			return true
		}
	}
	return false
}

// ConstraintKind is the closed set of constraint kinds the solver understands.
type ConstraintKind string

const (
	// hard
	SessionsPerWeekMin     ConstraintKind = "sessions_per_week_min"
	SessionsPerWeekMax     ConstraintKind = "sessions_per_week_max"
	SessionMinutesMin      ConstraintKind = "session_minutes_min"
	SessionMinutesMax      ConstraintKind = "session_minutes_max"
	WeeklyMinutesMax       ConstraintKind = "weekly_minutes_max"
	TimelineWeeksMax       ConstraintKind = "timeline_weeks_max"
	CaloriesMin            ConstraintKind = "calories_min"
	CaloriesMax            ConstraintKind = "calories_max"
	ProteinGPerKgMin       ConstraintKind = "protein_g_per_kg_min"
	RateKgPerWeekMax       ConstraintKind = "rate_kg_per_week_max"
	WeeklySetsPerMuscleMin ConstraintKind = "weekly_sets_per_muscle_min"

	// soft
	PreferredSessionsPerWeek ConstraintKind = "preferred_sessions_per_week"
	PreferredSessionMinutes  ConstraintKind = "preferred_session_minutes"
	PreferredTimelineWeeks   ConstraintKind = "preferred_timeline_weeks"
	PreferredMealsPerDay     ConstraintKind = "preferred_meals_per_day"

	// TargetMetrics is not a constraint kind a caller can send; diagnostics use
	// it when the target itself cannot be reached inside the search horizon.
	TargetMetrics ConstraintKind = "target_metrics"
)

var hardKinds = map[ConstraintKind]bool{
	SessionsPerWeekMin:     true,
	SessionsPerWeekMax:     true,
	SessionMinutesMin:      true,
	SessionMinutesMax:      true,
	WeeklyMinutesMax:       true,
	TimelineWeeksMax:       true,
	CaloriesMin:            true,
	CaloriesMax:            true,
	ProteinGPerKgMin:       true,
	RateKgPerWeekMax:       true,
	WeeklySetsPerMuscleMin: true,
}

var softKinds = map[ConstraintKind]bool{
	PreferredSessionsPerWeek: true,
	PreferredSessionMinutes:  true,
	PreferredTimelineWeeks:   true,
	PreferredMealsPerDay:     true,
}

func (k ConstraintKind) IsHard() bool { return hardKinds[k] }
func (k ConstraintKind) IsSoft() bool { return softKinds[k] }

type Constraint struct {
	Kind  ConstraintKind `json:"kind" yaml:"kind" validate:"required"`
	Value float64        `json:"value" yaml:"value"`
}

type WeightedConstraint struct {
	Constraint `yaml:",inline"`
	Weight     float64 `json:"weight" yaml:"weight" validate:"gte=0"`
}

type Interval struct {
	Low  float64 `json:"low" yaml:"low"`
	High float64 `json:"high" yaml:"high"`
}

func (i Interval) Contains(v float64) bool { return v >= i.Low && v <= i.High }

// Baseline is the measured starting point captured at consultation time.
type Baseline struct {
	TDEEKcal             float64       `json:"tdee_kcal" yaml:"tdee_kcal" validate:"gte=1400,lte=6000"`
	TDEEInterval         Interval      `json:"tdee_interval" yaml:"tdee_interval"`
	BodyWeightKg         float64       `json:"body_weight_kg" yaml:"body_weight_kg" validate:"gte=30,lte=300"`
	BodyFatPct           *float64      `json:"body_fat_pct,omitempty" yaml:"body_fat_pct,omitempty" validate:"omitempty,gte=2,lte=70"`
	Experience           Experience    `json:"experience" yaml:"experience" validate:"required,oneof=novice intermediate advanced"`
	Equipment            []string      `json:"equipment" yaml:"equipment"`
	AvailableDaysPerWeek int           `json:"available_days_per_week" yaml:"available_days_per_week" validate:"gte=1,lte=7"`
	WeeklyMinutes        int           `json:"weekly_minutes" yaml:"weekly_minutes" validate:"gte=30"`
	MaxSessionMinutes    int           `json:"max_session_minutes" yaml:"max_session_minutes" validate:"gte=30"`
	DietaryRestrictions  []string      `json:"dietary_restrictions,omitempty" yaml:"dietary_restrictions,omitempty"`
	ExcludedMuscleGroups []MuscleGroup `json:"excluded_muscle_groups,omitempty" yaml:"excluded_muscle_groups,omitempty" validate:"dive,musclegroup"`
}

// TDEEBand returns the TDEE confidence interval, falling back to ±10% when
// the consultation did not supply one.
func (b Baseline) TDEEBand() Interval {
	if b.TDEEInterval.Low > 0 && b.TDEEInterval.High >= b.TDEEInterval.Low {
		return b.TDEEInterval
	}
	return Interval{Low: b.TDEEKcal * 0.9, High: b.TDEEKcal * 1.1}
}

func (b Baseline) Excludes(m MuscleGroup) bool {
	for _, x := range b.ExcludedMuscleGroups {
		if x == m {
			return true
		}
	}
	return false
}

// TrainedMuscles returns MuscleGroups minus exclusions, in canonical order.
func (b Baseline) TrainedMuscles() []MuscleGroup {
	out := make([]MuscleGroup, 0, len(MuscleGroups))
	for _, m := range MuscleGroups {
		if !b.Excludes(m) {
			out = append(out, m)
		}
	}
	return out
}

// GoalConstraintSet is the solver input. Treat it as immutable once handed to
// Solve; use Clone before deriving relaxed variants.
type GoalConstraintSet struct {
	PrimaryGoal     PrimaryGoal          `json:"primary_goal" yaml:"primary_goal" validate:"required,oneof=fat_loss muscle_gain recomposition maintenance strength endurance"`
	TargetMetrics   map[Metric]float64   `json:"target_metrics,omitempty" yaml:"target_metrics,omitempty"`
	TimelineWeeks   int                  `json:"timeline_weeks" yaml:"timeline_weeks" validate:"gte=1,lte=156"`
	HardConstraints []Constraint         `json:"hard_constraints,omitempty" yaml:"hard_constraints,omitempty" validate:"dive"`
	SoftConstraints []WeightedConstraint `json:"soft_constraints,omitempty" yaml:"soft_constraints,omitempty" validate:"dive"`
	Baseline        Baseline             `json:"baseline" yaml:"baseline"`
}

// Hard returns the value of the hard constraint of the given kind.
func (g GoalConstraintSet) Hard(kind ConstraintKind) (float64, bool) {
	for _, c := range g.HardConstraints {
		if c.Kind == kind {
			return c.Value, true
		}
	}
	return 0, false
}

func (g GoalConstraintSet) Soft(kind ConstraintKind) (WeightedConstraint, bool) {
	for _, c := range g.SoftConstraints {
		if c.Kind == kind {
			return c, true
		}
	}
	return WeightedConstraint{}, false
}

// TargetDeltaKg is the signed body-weight change the goal asks for.
func (g GoalConstraintSet) TargetDeltaKg() float64 {
	target, ok := g.TargetMetrics[MetricBodyWeightKg]
	if !ok || target <= 0 {
		return 0
	}
	return target - g.Baseline.BodyWeightKg
}

// HardKinds returns the distinct hard constraint kinds in a stable order.
func (g GoalConstraintSet) HardKinds() []ConstraintKind {
	seen := map[ConstraintKind]bool{}
	out := make([]ConstraintKind, 0, len(g.HardConstraints))
	for _, c := range g.HardConstraints {
		if seen[c.Kind] {
			continue
		}
		seen[c.Kind] = true
		out = append(out, c.Kind)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (g GoalConstraintSet) Clone() GoalConstraintSet {
	out := g
	if g.TargetMetrics != nil {
		out.TargetMetrics = make(map[Metric]float64, len(g.TargetMetrics))
		for k, v := range g.TargetMetrics {
			out.TargetMetrics[k] = v
		}
	}
	out.HardConstraints = append([]Constraint(nil), g.HardConstraints...)
	out.SoftConstraints = append([]WeightedConstraint(nil), g.SoftConstraints...)
	out.Baseline.Equipment = append([]string(nil), g.Baseline.Equipment...)
	out.Baseline.DietaryRestrictions = append([]string(nil), g.Baseline.DietaryRestrictions...)
	out.Baseline.ExcludedMuscleGroups = append([]MuscleGroup(nil), g.Baseline.ExcludedMuscleGroups...)
	if g.Baseline.BodyFatPct != nil {
		v := *g.Baseline.BodyFatPct
		out.Baseline.BodyFatPct = &v
	}
	return out
}

// WithHard returns a copy with the hard constraint of kind set to value.
func (g GoalConstraintSet) WithHard(kind ConstraintKind, value float64) GoalConstraintSet {
	out := g.Clone()
	for i := range out.HardConstraints {
		if out.HardConstraints[i].Kind == kind {
			out.HardConstraints[i].Value = value
			return out
		}
	}
	out.HardConstraints = append(out.HardConstraints, Constraint{Kind: kind, Value: value})
	return out
}

// WithoutHard returns a copy with every hard constraint of the given kinds removed.
func (g GoalConstraintSet) WithoutHard(kinds ...ConstraintKind) GoalConstraintSet {
	out := g.Clone()
	drop := map[ConstraintKind]bool{}
	for _, k := range kinds {
		drop[k] = true
	}
	kept := out.HardConstraints[:0]
	for _, c := range out.HardConstraints {
		if !drop[c.Kind] {
			kept = append(kept, c)
		}
	}
	out.HardConstraints = kept
	return out
}

func HasEquipment(list []string, item string) bool {
	item = strings.ToLower(strings.TrimSpace(item))
	for _, e := range list {
		if strings.ToLower(strings.TrimSpace(e)) == item {
			return true
		}
	}
	return false
}

// WithSoft returns a copy with the soft constraint of kind set to value/weight.
func (g GoalConstraintSet) WithSoft(kind ConstraintKind, value, weight float64) GoalConstraintSet {
	out := g.Clone()
	for i := range out.SoftConstraints {
		if out.SoftConstraints[i].Kind == kind {
			out.SoftConstraints[i].Value = value
			out.SoftConstraints[i].Weight = weight
			return out
		}
	}
	out.SoftConstraints = append(out.SoftConstraints, WeightedConstraint{
		Constraint: Constraint{Kind: kind, Value: value},
		Weight:     weight,
	})
	return out
}
