package solver

import (
	"math"

	"github.com/yungbote/fitprogram-backend/internal/domain/program"
)

// point is one candidate in the frequency × session length × timeline grid
// together with the nutrition knobs derived from it.
type point struct {
	f, m, t  int
	sets     int
	rate     float64
	paceCap  float64
	calories float64
	proteinG float64
	fatG     float64
	carbsG   float64
}

// space holds everything derived once per goal so the grid walk stays cheap.
type space struct {
	goal          program.GoalConstraintSet
	hard          []program.Constraint
	delta         float64
	muscles       int
	mev           int
	proteinBase   float64
	proteinTarget float64
}

func newSpace(g program.GoalConstraintSet) *space {
	sp := &space{
		goal:    g,
		hard:    dedupeHard(g.HardConstraints),
		delta:   g.TargetDeltaKg(),
		muscles: len(g.Baseline.TrainedMuscles()),
		mev:     program.Landmarks(g.Baseline.Experience).MEV,
	}
	bw := g.Baseline.BodyWeightKg
	sp.proteinBase = program.ProteinPerKg(g.PrimaryGoal) * bw
	sp.proteinTarget = sp.proteinBase
	if v, ok := g.Hard(program.ProteinGPerKgMin); ok && v*bw > sp.proteinTarget {
		sp.proteinTarget = v * bw
	}
	return sp
}

// dedupeHard keeps the first constraint of each kind.
func dedupeHard(in []program.Constraint) []program.Constraint {
	seen := map[program.ConstraintKind]bool{}
	out := make([]program.Constraint, 0, len(in))
	for _, c := range in {
		if seen[c.Kind] {
			continue
		}
		seen[c.Kind] = true
		out = append(out, c)
	}
	return out
}

// stimulus is the fraction of the minimum effective volume a schedule delivers.
func (sp *space) stimulus(sets int) float64 {
	if sp.mev <= 0 {
		return 1
	}
	return math.Min(1, float64(sets)/float64(sp.mev))
}

func (sp *space) paceCap(sets int) float64 {
	b := sp.goal.Baseline
	if sp.delta < 0 {
		return b.BodyWeightKg * program.MaxLossPctPerWeek
	}
	return b.BodyWeightKg * program.MaxGainPctPerWeek(b.Experience) * sp.stimulus(sets)
}

// at evaluates one grid cell. The bool reports whether the cell lies inside
// the baseline domain (schedule fits, pace is safe, intake above the floor).
func (sp *space) at(f, m, t int) (point, bool) {
	b := sp.goal.Baseline
	if f > b.AvailableDaysPerWeek || m > b.MaxSessionMinutes || f*m > b.WeeklyMinutes {
		return point{}, false
	}
	p := point{f: f, m: m, t: t}
	p.sets = program.SetsPerMuscle(f, m, sp.muscles, b.Experience)
	p.rate = sp.delta / float64(t)
	p.paceCap = sp.paceCap(p.sets)
	if math.Abs(p.rate) > p.paceCap+1e-9 {
		return p, false
	}
	p.calories = program.CaloriesForRate(b.TDEEKcal, p.rate)
	if p.calories < program.CalorieFloor {
		return p, false
	}
	p.fatG = math.Round(p.calories * program.FatShareOfCalories / program.KcalPerGramFat)
	if carbsFor(p.calories, math.Ceil(sp.proteinBase), p.fatG) < 0 {
		return p, false
	}
	p.proteinG = math.Ceil(sp.proteinTarget)
	p.carbsG = math.Max(0, carbsFor(p.calories, p.proteinG, p.fatG))
	return p, true
}

func carbsFor(calories, proteinG, fatG float64) float64 {
	return math.Floor((calories - proteinG*program.KcalPerGramProtein - fatG*program.KcalPerGramFat) / program.KcalPerGramCarb)
}

func satisfies(c program.Constraint, p point) bool {
	switch c.Kind {
	case program.SessionsPerWeekMin:
		return float64(p.f) >= c.Value
	case program.SessionsPerWeekMax:
		return float64(p.f) <= c.Value
	case program.SessionMinutesMin:
		return float64(p.m) >= c.Value
	case program.SessionMinutesMax:
		return float64(p.m) <= c.Value
	case program.WeeklyMinutesMax:
		return float64(p.f*p.m) <= c.Value
	case program.TimelineWeeksMax:
		return float64(p.t) <= c.Value
	case program.CaloriesMin:
		return p.calories >= c.Value
	case program.CaloriesMax:
		return p.calories <= c.Value
	case program.ProteinGPerKgMin:
		return carbsFor(p.calories, p.proteinG, p.fatG) >= 0
	case program.RateKgPerWeekMax:
		return math.Abs(p.rate) <= c.Value+1e-9
	case program.WeeklySetsPerMuscleMin:
		return float64(p.sets) >= c.Value
	default:
		return true
	}
}

// params turns the winning point into the plan knob set.
func (sp *space) params(p point) program.PlanParams {
	sets := make(map[program.MuscleGroup]int, sp.muscles)
	for _, m := range sp.goal.Baseline.TrainedMuscles() {
		sets[m] = p.sets
	}
	return program.PlanParams{
		Split:               program.SplitFor(p.f),
		SessionsPerWeek:     p.f,
		SessionMinutes:      p.m,
		WeeklySetsPerMuscle: sets,
		Calories:            p.calories,
		ProteinG:            p.proteinG,
		CarbsG:              p.carbsG,
		FatG:                p.fatG,
		MealsPerDay:         sp.mealsPerDay(p.calories),
		TargetRateKgPerWeek: p.rate,
		TimelineWeeks:       p.t,
	}
}

func (sp *space) mealsPerDay(calories float64) int {
	if pref, ok := sp.goal.Soft(program.PreferredMealsPerDay); ok {
		n := int(math.Round(pref.Value))
		if n < 2 {
			n = 2
		}
		if n > 6 {
			n = 6
		}
		return n
	}
	if calories >= 2800 {
		return 4
	}
	return 3
}

// domainStats summarises the baseline domain for diagnostic messages.
type domainStats struct {
	points    int
	maxF      int
	maxM      int
	minWeekly int
	maxSets   int
	minT      int
	minCal    float64
	maxCal    float64
}

func (d *domainStats) add(p point) {
	if d.points == 0 {
		d.minT, d.minCal, d.maxCal, d.minWeekly = p.t, p.calories, p.calories, p.f*p.m
	}
	d.points++
	if p.f > d.maxF {
		d.maxF = p.f
	}
	if p.m > d.maxM {
		d.maxM = p.m
	}
	if p.sets > d.maxSets {
		d.maxSets = p.sets
	}
	if p.t < d.minT {
		d.minT = p.t
	}
	if w := p.f * p.m; w < d.minWeekly {
		d.minWeekly = w
	}
	d.minCal = math.Min(d.minCal, p.calories)
	d.maxCal = math.Max(d.maxCal, p.calories)
}
