package program

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

type AdjustmentType string

const (
	AdjustmentScheduled         AdjustmentType = "scheduled"
	AdjustmentEarlyIntervention AdjustmentType = "early_intervention"
	AdjustmentDeload            AdjustmentType = "deload"
	AdjustmentConstraintChange  AdjustmentType = "constraint_change"
	AdjustmentMilestone         AdjustmentType = "milestone"
)

type TriggerReason string

const (
	TriggerScheduled TriggerReason = "scheduled"
	TriggerOnDemand  TriggerReason = "on_demand"
	TriggerSignal    TriggerReason = "signal"
	TriggerManual    TriggerReason = "manual"
)

func IsTriggerReason(t TriggerReason) bool {
	switch t {
	case TriggerScheduled, TriggerOnDemand, TriggerSignal, TriggerManual:
		return true
	}
	return false
}

const (
	ChannelCalories  = "calories"
	ChannelFrequency = "frequency"
	volumePrefix     = "volume."
)

func VolumeChannel(m MuscleGroup) string { return volumePrefix + string(m) }

type ChannelAdjustment struct {
	Old    float64 `json:"old"`
	New    float64 `json:"new"`
	Delta  float64 `json:"delta"`
	Reason string  `json:"reason"`
}

// AdjustmentRecord is the audit entry written once per reassessment cycle.
type AdjustmentRecord struct {
	ID                 uuid.UUID                    `json:"id"`
	UserID             uuid.UUID                    `json:"user_id"`
	FromVersionID      uuid.UUID                    `json:"from_version_id"`
	ToVersionID        *uuid.UUID                   `json:"to_version_id"`
	AdjustmentDate     string                       `json:"adjustment_date"`
	TriggerReason      TriggerReason                `json:"trigger_reason"`
	AdherenceMetrics   AdherenceMetrics             `json:"adherence_metrics"`
	BiometricTrends    BiometricTrends              `json:"biometric_trends"`
	PerformanceMarkers PerformanceMarkers           `json:"performance_markers"`
	SentimentAnalysis  SentimentAnalysis            `json:"sentiment_analysis"`
	Adjustments        map[string]ChannelAdjustment `json:"adjustments"`
	AdjustmentType     AdjustmentType               `json:"adjustment_type"`
	Rationale          string                       `json:"rationale"`
	Warnings           []string                     `json:"warnings"`
	Resolved           bool                         `json:"resolved,omitempty"`
	SchemaVersion      int                          `json:"schema_version"`
	CreatedAt          time.Time                    `json:"created_at"`
}

// Channels returns the adjustment channel names in sorted order.
func (r AdjustmentRecord) Channels() []string {
	out := make([]string, 0, len(r.Adjustments))
	for k := range r.Adjustments {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (r AdjustmentRecord) IsNoOp() bool { return r.ToVersionID == nil }
