package program

import "math"

type Split string

const (
	SplitFullBody     Split = "full_body"
	SplitUpperLower   Split = "upper_lower"
	SplitPushPullLegs Split = "push_pull_legs"
)

// SplitFor picks the weekly split for a training frequency.
func SplitFor(sessionsPerWeek int) Split {
	switch {
	case sessionsPerWeek <= 3:
		return SplitFullBody
	case sessionsPerWeek <= 5:
		return SplitUpperLower
	default:
		return SplitPushPullLegs
	}
}

// PlanParams is the solved knob set shared by the solver, the materializer
// and the controller.
type PlanParams struct {
	Split               Split               `json:"split" yaml:"split"`
	SessionsPerWeek     int                 `json:"sessions_per_week" yaml:"sessions_per_week"`
	SessionMinutes      int                 `json:"session_minutes" yaml:"session_minutes"`
	WeeklySetsPerMuscle map[MuscleGroup]int `json:"weekly_sets_per_muscle" yaml:"weekly_sets_per_muscle"`
	Calories            float64             `json:"calories" yaml:"calories"`
	ProteinG            float64             `json:"protein_g" yaml:"protein_g"`
	CarbsG              float64             `json:"carbs_g" yaml:"carbs_g"`
	FatG                float64             `json:"fat_g" yaml:"fat_g"`
	MealsPerDay         int                 `json:"meals_per_day" yaml:"meals_per_day"`
	TargetRateKgPerWeek float64             `json:"target_rate_kg_per_week" yaml:"target_rate_kg_per_week"`
	TimelineWeeks       int                 `json:"timeline_weeks" yaml:"timeline_weeks"`
	Deload              bool                `json:"deload,omitempty" yaml:"deload,omitempty"`
}

func (p PlanParams) Clone() PlanParams {
	out := p
	if p.WeeklySetsPerMuscle != nil {
		out.WeeklySetsPerMuscle = make(map[MuscleGroup]int, len(p.WeeklySetsPerMuscle))
		for k, v := range p.WeeklySetsPerMuscle {
			out.WeeklySetsPerMuscle[k] = v
		}
	}
	return out
}

// MinSetsPerMuscle is the smallest per-muscle volume over trained muscles.
func (p PlanParams) MinSetsPerMuscle() int {
	min := -1
	for _, m := range MuscleGroups {
		v, ok := p.WeeklySetsPerMuscle[m]
		if !ok || v == 0 {
			continue
		}
		if min < 0 || v < min {
			min = v
		}
	}
	if min < 0 {
		return 0
	}
	return min
}

// MacroCalories is the energy implied by the macro split.
func (p PlanParams) MacroCalories() float64 {
	return p.ProteinG*KcalPerGramProtein + p.CarbsG*KcalPerGramCarb + p.FatG*KcalPerGramFat
}

// WithCalories returns a copy at a new daily intake. Protein is kept, fat is
// re-split at its fixed share and carbs absorb the rest.
func (p PlanParams) WithCalories(kcal float64) PlanParams {
	out := p.Clone()
	out.Calories = kcal
	out.FatG = math.Round(kcal * FatShareOfCalories / KcalPerGramFat)
	carbs := math.Floor((kcal - out.ProteinG*KcalPerGramProtein - out.FatG*KcalPerGramFat) / KcalPerGramCarb)
	if carbs < 0 {
		carbs = 0
	}
	out.CarbsG = carbs
	return out
}

// PartialPlanParams carries only the knobs a trade-off changes.
type PartialPlanParams struct {
	SessionsPerWeek     *int     `json:"sessions_per_week,omitempty"`
	SessionMinutes      *int     `json:"session_minutes,omitempty"`
	Calories            *float64 `json:"calories,omitempty"`
	ProteinG            *float64 `json:"protein_g,omitempty"`
	TargetRateKgPerWeek *float64 `json:"target_rate_kg_per_week,omitempty"`
	TimelineWeeks       *int     `json:"timeline_weeks,omitempty"`
	TargetWeightKg      *float64 `json:"target_weight_kg,omitempty"`
	AvailableDays       *int     `json:"available_days_per_week,omitempty"`
	WeeklyMinutes       *int     `json:"weekly_minutes,omitempty"`
}

const (
	KcalPerKgBodyMass  = 7700.0
	KcalPerGramProtein = 4.0
	KcalPerGramCarb    = 4.0
	KcalPerGramFat     = 9.0

	// CalorieFloor is the lowest daily intake any plan may prescribe.
	CalorieFloor = 1200.0
	// FatShareOfCalories fixes dietary fat at a quarter of energy intake.
	FatShareOfCalories = 0.25
	// WarmupMinutes is reserved at the start of every session.
	WarmupMinutes = 10
	// MinutesPerSet covers one working set plus rest.
	MinutesPerSet = 3
	// MaxLossPctPerWeek caps weight loss at 1% of body weight per week.
	MaxLossPctPerWeek = 0.01
	// MaxHorizonWeeks bounds the timeline search when no cap is given.
	MaxHorizonWeeks = 156
)

// SessionMinuteOptions is the session-length grid.
var SessionMinuteOptions = []int{30, 45, 60, 75, 90, 105, 120}

// VolumeLandmarks holds per-muscle weekly set landmarks for an experience tier.
type VolumeLandmarks struct {
	MEV int // minimum effective volume
	MRV int // maximum recoverable volume
}

func Landmarks(e Experience) VolumeLandmarks {
	switch e {
	case ExperienceAdvanced:
		return VolumeLandmarks{MEV: 10, MRV: 20}
	case ExperienceIntermediate:
		return VolumeLandmarks{MEV: 8, MRV: 16}
	default:
		return VolumeLandmarks{MEV: 6, MRV: 12}
	}
}

// MaxGainPctPerWeek is the lean-gain ceiling per tier at full training stimulus.
func MaxGainPctPerWeek(e Experience) float64 {
	switch e {
	case ExperienceAdvanced:
		return 0.001
	case ExperienceIntermediate:
		return 0.0015
	default:
		return 0.0025
	}
}

// ProteinPerKg is the default protein target per kg body weight per goal.
func ProteinPerKg(g PrimaryGoal) float64 {
	switch g {
	case GoalFatLoss:
		return 2.2
	case GoalMuscleGain, GoalRecomposition:
		return 2.0
	case GoalStrength:
		return 1.8
	default:
		return 1.6
	}
}

// SetsPerMuscle is the per-muscle weekly volume a frequency/session length
// allows, spread evenly over muscles and capped at the tier MRV.
func SetsPerMuscle(sessionsPerWeek, sessionMinutes, muscles int, e Experience) int {
	if muscles <= 0 || sessionsPerWeek <= 0 {
		return 0
	}
	work := sessionMinutes - WarmupMinutes
	if work <= 0 {
		return 0
	}
	total := sessionsPerWeek * (work / MinutesPerSet)
	per := total / muscles
	if mrv := Landmarks(e).MRV; per > mrv {
		per = mrv
	}
	return per
}

// CaloriesForRate converts a weekly weight-change rate into daily intake,
// rounded to the nearest 10 kcal.
func CaloriesForRate(tdee, rateKgPerWeek float64) float64 {
	return math.Round((tdee+rateKgPerWeek*KcalPerKgBodyMass/7)/10) * 10
}
