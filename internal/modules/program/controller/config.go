package controller

import (
	"github.com/yungbote/fitprogram-backend/internal/platform/envutil"
)

// Gain is a bounded proportional correction for one channel.
type Gain struct {
	Kp          float64
	MaxStep     float64
	Materiality float64
}

// Step returns clamp(Kp*err, ±MaxStep) and whether the clamp engaged.
func (g Gain) Step(err float64) (float64, bool) {
	raw := g.Kp * err
	switch {
	case raw > g.MaxStep:
		return g.MaxStep, true
	case raw < -g.MaxStep:
		return -g.MaxStep, true
	default:
		return raw, false
	}
}

type Config struct {
	Calories  Gain
	Volume    Gain
	Frequency Gain

	TargetRPE             float64
	MinWeightSamples      int
	MinNutritionAdherence float64
	AdherenceWarning      float64

	// Deload thresholds.
	HRVSevereDropPct     float64
	HRVModerateDropPct   float64
	HighRPE              float64
	LowAdherence         float64
	RHRElevatedBpm       float64
	RHRWarningBpm        float64
	DeloadVolumeCut      float64
	MilestoneToleranceKg float64

	CycleDays int
}

func DefaultConfig() Config {
	return Config{
		Calories:  Gain{Kp: 400, MaxStep: 150, Materiality: 25},
		Volume:    Gain{Kp: 1, MaxStep: 4, Materiality: 1},
		Frequency: Gain{Kp: 0.5, MaxStep: 1, Materiality: 1},

		TargetRPE:             7.5,
		MinWeightSamples:      3,
		MinNutritionAdherence: 0.5,
		AdherenceWarning:      0.7,

		HRVSevereDropPct:     -8,
		HRVModerateDropPct:   -4,
		HighRPE:              8.5,
		LowAdherence:         0.5,
		RHRElevatedBpm:       5,
		RHRWarningBpm:        3,
		DeloadVolumeCut:      0.4,
		MilestoneToleranceKg: 0.5,

		CycleDays: 14,
	}
}

// ConfigFromEnv overlays CONTROLLER_* variables on the defaults.
func ConfigFromEnv() Config {
	c := DefaultConfig()
	c.Calories.Kp = envutil.Float("CONTROLLER_CALORIES_KP", c.Calories.Kp)
	c.Calories.MaxStep = envutil.Float("CONTROLLER_CALORIES_MAX_STEP", c.Calories.MaxStep)
	c.Calories.Materiality = envutil.Float("CONTROLLER_CALORIES_MATERIALITY", c.Calories.Materiality)
	c.Volume.Kp = envutil.Float("CONTROLLER_VOLUME_KP", c.Volume.Kp)
	c.Volume.MaxStep = envutil.Float("CONTROLLER_VOLUME_MAX_STEP", c.Volume.MaxStep)
	c.Volume.Materiality = envutil.Float("CONTROLLER_VOLUME_MATERIALITY", c.Volume.Materiality)
	c.Frequency.Kp = envutil.Float("CONTROLLER_FREQUENCY_KP", c.Frequency.Kp)
	c.Frequency.MaxStep = envutil.Float("CONTROLLER_FREQUENCY_MAX_STEP", c.Frequency.MaxStep)
	c.TargetRPE = envutil.Float("CONTROLLER_TARGET_RPE", c.TargetRPE)
	c.DeloadVolumeCut = envutil.Float("CONTROLLER_DELOAD_VOLUME_CUT", c.DeloadVolumeCut)
	c.CycleDays = envutil.Int("CYCLE_WINDOW_DAYS", c.CycleDays)
	return c
}
