package program

import (
	"time"

	"github.com/google/uuid"
)

type PlanStatus string

const (
	PlanDraft     PlanStatus = "draft"
	PlanActive    PlanStatus = "active"
	PlanCompleted PlanStatus = "completed"
	PlanArchived  PlanStatus = "archived"
)

// CanTransition reports whether the plan lifecycle allows from -> to.
func CanTransition(from, to PlanStatus) bool {
	switch from {
	case PlanDraft:
		return to == PlanActive || to == PlanArchived
	case PlanActive:
		return to == PlanCompleted || to == PlanArchived
	default:
		return false
	}
}

type DayKind string

const (
	DayTraining DayKind = "training"
	DayRest     DayKind = "rest"
)

type ExerciseSlot struct {
	MuscleGroup MuscleGroup `json:"muscle_group"`
	ExerciseID  string      `json:"exercise_id"`
	Name        string      `json:"name"`
	Sets        int         `json:"sets"`
	RepsLow     int         `json:"reps_low"`
	RepsHigh    int         `json:"reps_high"`
	TargetRPE   float64     `json:"target_rpe"`
}

type TrainingDay struct {
	DayIndex  int            `json:"day_index"`
	Date      string         `json:"date"`
	Kind      DayKind        `json:"kind"`
	Focus     string         `json:"focus,omitempty"`
	Minutes   int            `json:"minutes,omitempty"`
	Deload    bool           `json:"deload,omitempty"`
	Exercises []ExerciseSlot `json:"exercises,omitempty"`
}

type Meal struct {
	Slot       string  `json:"slot"`
	TemplateID string  `json:"template_id"`
	Name       string  `json:"name"`
	Calories   float64 `json:"calories"`
	ProteinG   float64 `json:"protein_g"`
	CarbsG     float64 `json:"carbs_g"`
	FatG       float64 `json:"fat_g"`
}

type NutritionDay struct {
	DayIndex int     `json:"day_index"`
	Date     string  `json:"date"`
	Calories float64 `json:"calories"`
	ProteinG float64 `json:"protein_g"`
	CarbsG   float64 `json:"carbs_g"`
	FatG     float64 `json:"fat_g"`
	Meals    []Meal  `json:"meals"`
}

// PlanVersion is one immutable, fully materialized program snapshot.
type PlanVersion struct {
	ID              uuid.UUID          `json:"id"`
	UserID          uuid.UUID          `json:"user_id"`
	VersionNumber   int                `json:"version_number"`
	ParentVersionID *uuid.UUID         `json:"parent_version_id,omitempty"`
	Status          PlanStatus         `json:"status"`
	Goal            GoalConstraintSet  `json:"goal"`
	Patch           *ConstraintPatch   `json:"constraint_patch,omitempty"`
	Params          PlanParams         `json:"plan_params"`
	Training        []TrainingDay      `json:"materialized_training"`
	Nutrition       []NutritionDay     `json:"materialized_nutrition"`
	Rationale       string             `json:"rationale"`
	Assumptions     []string           `json:"assumptions"`
	Confidence      map[string]float64 `json:"confidence"`
	Drift           map[string]float64 `json:"drift,omitempty"`
	StartDate       string             `json:"start_date"`
	SchemaVersion   int                `json:"schema_version"`
	CreatedAt       time.Time          `json:"created_at"`
	ActivatedAt     *time.Time         `json:"activated_at,omitempty"`
	ClosedAt        *time.Time         `json:"closed_at,omitempty"`
}

// EffectiveGoal is the goal with any life-event overlay applied.
func (v PlanVersion) EffectiveGoal() GoalConstraintSet {
	return v.Patch.Apply(v.Goal)
}

// PlanSummary is one row of a user's plan history.
type PlanSummary struct {
	ID              uuid.UUID  `json:"id"`
	VersionNumber   int        `json:"version_number"`
	ParentVersionID *uuid.UUID `json:"parent_version_id,omitempty"`
	Status          PlanStatus `json:"status"`
	Calories        float64    `json:"calories"`
	SessionsPerWeek int        `json:"sessions_per_week"`
	Deload          bool       `json:"deload,omitempty"`
	Rationale       string     `json:"rationale"`
	CreatedAt       time.Time  `json:"created_at"`
	ActivatedAt     *time.Time `json:"activated_at,omitempty"`
	ClosedAt        *time.Time `json:"closed_at,omitempty"`
	AdjustmentCount int        `json:"adjustment_count"`
}

// DateLayout is the calendar-day format used for plan and cycle dates.
const DateLayout = "2006-01-02"

func Day(t time.Time) string { return t.UTC().Format(DateLayout) }
