package program

import (
	"time"

	"github.com/google/uuid"
)

type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (w Window) Weeks() float64 {
	d := w.End.Sub(w.Start).Hours() / 24
	if d <= 0 {
		return 0
	}
	return d / 7
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

type AdherenceMetrics struct {
	SessionsPlanned int     `json:"sessions_planned"`
	SessionsLogged  int     `json:"sessions_logged"`
	MealsPlanned    int     `json:"meals_planned"`
	MealsLogged     int     `json:"meals_logged"`
	TrainingRate    float64 `json:"training_rate"`
	NutritionRate   float64 `json:"nutrition_rate"`
	Overall         float64 `json:"overall"`
	SessionsPerWeek float64 `json:"sessions_per_week"`
}

type BiometricTrends struct {
	WeightSamples        int      `json:"weight_samples"`
	LatestWeightKg       *float64 `json:"latest_weight_kg,omitempty"`
	WeightSlopeKgPerWeek float64  `json:"weight_slope_kg_per_week"`
	HRVSamples           int      `json:"hrv_samples"`
	HRVSlopePctPerWeek   float64  `json:"hrv_slope_pct_per_week"`
	RHRDeltaBpm          float64  `json:"rhr_delta_bpm"`
	SleepDeltaHours      float64  `json:"sleep_delta_hours"`
}

type PerformanceMarkers struct {
	RPESamples       int                     `json:"rpe_samples"`
	AvgRPE           float64                 `json:"avg_rpe"`
	MuscleRPE        map[MuscleGroup]float64 `json:"muscle_rpe,omitempty"`
	VolumeCompletion map[MuscleGroup]float64 `json:"volume_completion,omitempty"`
	StrengthTrendPct float64                 `json:"strength_trend_pct"`
}

type LifeEventKind string

const (
	LifeEventTravel         LifeEventKind = "travel"
	LifeEventInjury         LifeEventKind = "injury"
	LifeEventIllness        LifeEventKind = "illness"
	LifeEventScheduleChange LifeEventKind = "schedule_change"
)

type LifeEvent struct {
	Kind          LifeEventKind `json:"kind"`
	From          time.Time     `json:"from"`
	To            time.Time     `json:"to"`
	MuscleGroup   MuscleGroup   `json:"muscle_group,omitempty"`
	AvailableDays int           `json:"available_days,omitempty"`
	Note          string        `json:"note,omitempty"`
}

type SentimentAnalysis struct {
	Samples    int         `json:"samples"`
	Score      float64     `json:"score"`
	LifeEvents []LifeEvent `json:"life_events,omitempty"`
}

// Signals is everything the aggregator collected for one cycle window.
type Signals struct {
	Window      Window             `json:"window"`
	Adherence   AdherenceMetrics   `json:"adherence"`
	Biometrics  BiometricTrends    `json:"biometrics"`
	Performance PerformanceMarkers `json:"performance"`
	Sentiment   SentimentAnalysis  `json:"sentiment"`
}

// SignalKind is the closed set of raw logged event kinds.
type SignalKind string

const (
	SignalSessionLogged SignalKind = "session_logged"
	SignalMealLogged    SignalKind = "meal_logged"
	SignalWeight        SignalKind = "weight"
	SignalHRV           SignalKind = "hrv"
	SignalRHR           SignalKind = "rhr"
	SignalSleepHours    SignalKind = "sleep_hours"
	SignalRPE           SignalKind = "rpe"
	SignalSetsCompleted SignalKind = "sets_completed"
	SignalStrength      SignalKind = "strength"
	SignalSentiment     SignalKind = "sentiment"
	SignalLifeEvent     SignalKind = "life_event"
)

var signalKinds = map[SignalKind]bool{
	SignalSessionLogged: true, SignalMealLogged: true, SignalWeight: true, SignalHRV: true,
	SignalRHR: true, SignalSleepHours: true, SignalRPE: true, SignalSetsCompleted: true,
	SignalStrength: true, SignalSentiment: true, SignalLifeEvent: true,
}

func IsSignalKind(k SignalKind) bool { return signalKinds[k] }

// SignalEvent is one raw logged observation.
type SignalEvent struct {
	ID          uuid.UUID   `json:"id"`
	UserID      uuid.UUID   `json:"user_id"`
	Kind        SignalKind  `json:"kind" validate:"required"`
	Value       float64     `json:"value"`
	MuscleGroup MuscleGroup `json:"muscle_group,omitempty" validate:"omitempty,musclegroup"`
	OccurredAt  time.Time   `json:"occurred_at" validate:"required"`
	Life        *LifeEvent  `json:"life_event,omitempty"`
	Note        string      `json:"note,omitempty"`
}
