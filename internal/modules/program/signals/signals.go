package signals

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/fitprogram-backend/internal/domain/program"
	"github.com/yungbote/fitprogram-backend/internal/platform/logger"
)

// Sample is one timestamped observation.
type Sample struct {
	At          time.Time
	Value       float64
	MuscleGroup program.MuscleGroup
}

type AdherenceLog struct {
	SessionsLogged int
	MealsLogged    int
}

type BiometricSeries struct {
	Weight []Sample
	HRV    []Sample
	RHR    []Sample
	Sleep  []Sample
}

type PerformanceSeries struct {
	RPE           []Sample
	SetsCompleted []Sample
	Strength      []Sample
}

type SentimentSeries struct {
	Scores     []Sample
	LifeEvents []program.LifeEvent
}

// Source is the external logging service the aggregator reads from. Every
// method returns observations inside [w.Start, w.End).
type Source interface {
	Adherence(ctx context.Context, userID uuid.UUID, w program.Window) (AdherenceLog, error)
	Biometrics(ctx context.Context, userID uuid.UUID, w program.Window) (BiometricSeries, error)
	Performance(ctx context.Context, userID uuid.UUID, w program.Window) (PerformanceSeries, error)
	Sentiment(ctx context.Context, userID uuid.UUID, w program.Window) (SentimentSeries, error)
}

type Aggregator struct {
	src Source
	log *logger.Logger
}

func New(src Source, baseLog *logger.Logger) *Aggregator {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	return &Aggregator{src: src, log: baseLog.With("service", "SignalAggregator")}
}

// WindowEnding returns the trailing window of the given length that ends at
// the start of day "end".
func WindowEnding(end time.Time, days int) program.Window {
	y, m, d := end.UTC().Date()
	e := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return program.Window{Start: e.AddDate(0, 0, -days), End: e}
}

// Aggregate fetches the four signal families concurrently and reduces them
// against the plan's expectations.
func (a *Aggregator) Aggregate(ctx context.Context, userID uuid.UUID, plan program.PlanParams, w program.Window) (program.Signals, error) {
	var (
		adh  AdherenceLog
		bio  BiometricSeries
		perf PerformanceSeries
		sent SentimentSeries
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		adh, err = a.src.Adherence(gctx, userID, w)
		return wrap("adherence", err)
	})
	g.Go(func() (err error) {
		bio, err = a.src.Biometrics(gctx, userID, w)
		return wrap("biometrics", err)
	})
	g.Go(func() (err error) {
		perf, err = a.src.Performance(gctx, userID, w)
		return wrap("performance", err)
	})
	g.Go(func() (err error) {
		sent, err = a.src.Sentiment(gctx, userID, w)
		return wrap("sentiment", err)
	})
	if err := g.Wait(); err != nil {
		return program.Signals{}, err
	}

	out := program.Signals{
		Window:      w,
		Adherence:   adherence(adh, plan, w),
		Biometrics:  biometrics(bio),
		Performance: performance(perf, plan, w),
		Sentiment:   sentiment(sent),
	}
	a.log.Debug("signals aggregated",
		"user_id", userID,
		"overall_adherence", out.Adherence.Overall,
		"weight_samples", out.Biometrics.WeightSamples,
		"rpe_samples", out.Performance.RPESamples,
		"life_events", len(out.Sentiment.LifeEvents),
	)
	return out, nil
}

func wrap(family string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("fetch %s signals: %w", family, err)
}

func adherence(in AdherenceLog, plan program.PlanParams, w program.Window) program.AdherenceMetrics {
	weeks := w.Weeks()
	days := int(math.Round(weeks * 7))
	out := program.AdherenceMetrics{
		SessionsPlanned: int(math.Round(float64(plan.SessionsPerWeek) * weeks)),
		SessionsLogged:  in.SessionsLogged,
		MealsPlanned:    plan.MealsPerDay * days,
		MealsLogged:     in.MealsLogged,
	}
	out.TrainingRate = rate(out.SessionsLogged, out.SessionsPlanned)
	out.NutritionRate = rate(out.MealsLogged, out.MealsPlanned)
	out.Overall = round3((out.TrainingRate + out.NutritionRate) / 2)
	if weeks > 0 {
		out.SessionsPerWeek = round3(float64(in.SessionsLogged) / weeks)
	}
	return out
}

// rate is logged/planned capped at 1; nothing planned counts as fully adherent.
func rate(logged, planned int) float64 {
	if planned <= 0 {
		return 1
	}
	r := float64(logged) / float64(planned)
	if r > 1 {
		r = 1
	}
	return round3(r)
}

func biometrics(in BiometricSeries) program.BiometricTrends {
	weight := sorted(in.Weight)
	hrv := sorted(in.HRV)
	out := program.BiometricTrends{
		WeightSamples: len(weight),
		HRVSamples:    len(hrv),
	}
	if n := len(weight); n > 0 {
		latest := weight[n-1].Value
		out.LatestWeightKg = &latest
		out.WeightSlopeKgPerWeek = round3(slopePerWeek(weight))
	}
	if mean := meanOf(hrv); mean > 0 {
		out.HRVSlopePctPerWeek = round3(slopePerWeek(hrv) / mean * 100)
	}
	out.RHRDeltaBpm = round3(halfDelta(sorted(in.RHR)))
	out.SleepDeltaHours = round3(halfDelta(sorted(in.Sleep)))
	return out
}

func performance(in PerformanceSeries, plan program.PlanParams, w program.Window) program.PerformanceMarkers {
	rpe := sorted(in.RPE)
	out := program.PerformanceMarkers{RPESamples: len(rpe)}
	if len(rpe) > 0 {
		out.AvgRPE = round3(meanOf(rpe))
	}

	sums := map[program.MuscleGroup]float64{}
	counts := map[program.MuscleGroup]int{}
	for _, s := range rpe {
		if s.MuscleGroup == "" {
			continue
		}
		sums[s.MuscleGroup] += s.Value
		counts[s.MuscleGroup]++
	}
	if len(counts) > 0 {
		out.MuscleRPE = map[program.MuscleGroup]float64{}
		for m, n := range counts {
			out.MuscleRPE[m] = round3(sums[m] / float64(n))
		}
	}

	weeks := w.Weeks()
	done := map[program.MuscleGroup]float64{}
	for _, s := range in.SetsCompleted {
		if s.MuscleGroup != "" {
			done[s.MuscleGroup] += s.Value
		}
	}
	for _, m := range program.MuscleGroups {
		planned := float64(plan.WeeklySetsPerMuscle[m]) * weeks
		if planned <= 0 {
			continue
		}
		if out.VolumeCompletion == nil {
			out.VolumeCompletion = map[program.MuscleGroup]float64{}
		}
		out.VolumeCompletion[m] = round3(done[m] / planned)
	}

	strength := sorted(in.Strength)
	if mean := meanOf(strength); mean > 0 {
		out.StrengthTrendPct = round3(slopePerWeek(strength) / mean * 100)
	}
	return out
}

func sentiment(in SentimentSeries) program.SentimentAnalysis {
	out := program.SentimentAnalysis{Samples: len(in.Scores)}
	if len(in.Scores) > 0 {
		out.Score = round3(meanOf(in.Scores))
	}
	if len(in.LifeEvents) > 0 {
		out.LifeEvents = append([]program.LifeEvent(nil), in.LifeEvents...)
		sort.SliceStable(out.LifeEvents, func(i, j int) bool {
			return out.LifeEvents[i].From.Before(out.LifeEvents[j].From)
		})
	}
	return out
}

func sorted(in []Sample) []Sample {
	out := append([]Sample(nil), in...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out
}

func meanOf(s []Sample) float64 {
	if len(s) == 0 {
		return 0
	}
	var sum float64
	for _, x := range s {
		sum += x.Value
	}
	return sum / float64(len(s))
}

// slopePerWeek is the least-squares slope of value over time, in units/week.
func slopePerWeek(s []Sample) float64 {
	if len(s) < 2 {
		return 0
	}
	t0 := s[0].At
	var sx, sy, sxx, sxy float64
	n := float64(len(s))
	for _, x := range s {
		d := x.At.Sub(t0).Hours() / 24
		sx += d
		sy += x.Value
		sxx += d * d
		sxy += d * x.Value
	}
	den := n*sxx - sx*sx
	if den == 0 {
		return 0
	}
	return (n*sxy - sx*sy) / den * 7
}

// halfDelta is mean(second half) - mean(first half).
func halfDelta(s []Sample) float64 {
	if len(s) < 2 {
		return 0
	}
	mid := len(s) / 2
	return meanOf(s[len(s)-mid:]) - meanOf(s[:mid])
}

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
