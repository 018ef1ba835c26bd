package program

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// PlanVersionRow is the arena of versions, keyed by (user_id, version_number).
type PlanVersionRow struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID          uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_plan_version_user_number,priority:1" json:"user_id"`
	VersionNumber   int            `gorm:"column:version_number;not null;uniqueIndex:idx_plan_version_user_number,priority:2" json:"version_number"`
	ParentVersionID *uuid.UUID     `gorm:"type:uuid;index" json:"parent_version_id,omitempty"`
	Status          string         `gorm:"column:status;type:varchar(16);not null;index" json:"status"`
	SchemaVersion   int            `gorm:"column:schema_version;not null" json:"schema_version"`
	Goal            datatypes.JSON `gorm:"column:goal;type:jsonb" json:"goal"`
	Patch           datatypes.JSON `gorm:"column:constraint_patch;type:jsonb" json:"constraint_patch"`
	PlanParams      datatypes.JSON `gorm:"column:plan_params;type:jsonb" json:"plan_params"`
	Training        datatypes.JSON `gorm:"column:training;type:jsonb" json:"training"`
	Nutrition       datatypes.JSON `gorm:"column:nutrition;type:jsonb" json:"nutrition"`
	Rationale       string         `gorm:"column:rationale;type:text" json:"rationale"`
	Assumptions     datatypes.JSON `gorm:"column:assumptions;type:jsonb" json:"assumptions"`
	Confidence      datatypes.JSON `gorm:"column:confidence;type:jsonb" json:"confidence"`
	Drift           datatypes.JSON `gorm:"column:drift;type:jsonb" json:"drift"`
	StartDate       string         `gorm:"column:start_date;type:varchar(10)" json:"start_date"`
	CreatedAt       time.Time      `gorm:"not null;index" json:"created_at"`
	ActivatedAt     *time.Time     `gorm:"column:activated_at" json:"activated_at,omitempty"`
	ClosedAt        *time.Time     `gorm:"column:closed_at" json:"closed_at,omitempty"`
}

func (PlanVersionRow) TableName() string { return "plan_version" }

// ActivePlanRow is the single active pointer per user. It only changes inside
// the supersede transaction.
type ActivePlanRow struct {
	UserID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	PlanVersionID uuid.UUID `gorm:"type:uuid;not null" json:"plan_version_id"`
	VersionNumber int       `gorm:"not null" json:"version_number"`
	UpdatedAt     time.Time `gorm:"not null" json:"updated_at"`
}

func (ActivePlanRow) TableName() string { return "active_plan" }

type FeasibilityCheckRow struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID           uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	PlanVersionID    *uuid.UUID     `gorm:"type:uuid;index" json:"plan_version_id,omitempty"`
	IsFeasible       bool           `gorm:"column:is_feasible;not null" json:"is_feasible"`
	SchemaVersion    int            `gorm:"column:schema_version;not null" json:"schema_version"`
	Goal             datatypes.JSON `gorm:"column:goal;type:jsonb" json:"goal"`
	Result           datatypes.JSON `gorm:"column:result;type:jsonb" json:"result"`
	SolverIterations int            `gorm:"column:solver_iterations" json:"solver_iterations"`
	SolverRuntimeMs  int64          `gorm:"column:solver_runtime_ms" json:"solver_runtime_ms"`
	CreatedAt        time.Time      `gorm:"not null;index" json:"created_at"`
}

func (FeasibilityCheckRow) TableName() string { return "feasibility_check" }

type AdjustmentRecordRow struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_adjustment_cycle,priority:1" json:"user_id"`
	FromVersionID  uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_adjustment_cycle,priority:2;index" json:"from_version_id"`
	AdjustmentDate string         `gorm:"column:adjustment_date;type:varchar(10);not null;uniqueIndex:idx_adjustment_cycle,priority:3" json:"adjustment_date"`
	ToVersionID    *uuid.UUID     `gorm:"type:uuid;index" json:"to_version_id,omitempty"`
	TriggerReason  string         `gorm:"column:trigger_reason;type:varchar(32)" json:"trigger_reason"`
	AdjustmentType string         `gorm:"column:adjustment_type;type:varchar(32);not null" json:"adjustment_type"`
	SchemaVersion  int            `gorm:"column:schema_version;not null" json:"schema_version"`
	Adherence      datatypes.JSON `gorm:"column:adherence_metrics;type:jsonb" json:"adherence_metrics"`
	Biometrics     datatypes.JSON `gorm:"column:biometric_trends;type:jsonb" json:"biometric_trends"`
	Performance    datatypes.JSON `gorm:"column:performance_markers;type:jsonb" json:"performance_markers"`
	Sentiment      datatypes.JSON `gorm:"column:sentiment_analysis;type:jsonb" json:"sentiment_analysis"`
	Adjustments    datatypes.JSON `gorm:"column:adjustments;type:jsonb" json:"adjustments"`
	Rationale      string         `gorm:"column:rationale;type:text" json:"rationale"`
	Warnings       datatypes.JSON `gorm:"column:warnings;type:jsonb" json:"warnings"`
	Resolved       bool           `gorm:"column:resolved;not null;default:false" json:"resolved"`
	CreatedAt      time.Time      `gorm:"not null;index" json:"created_at"`
}

func (AdjustmentRecordRow) TableName() string { return "adjustment_record" }

type SignalEventRow struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID      `gorm:"type:uuid;not null;index:idx_signal_event_user_kind_time,priority:1" json:"user_id"`
	Kind        string         `gorm:"column:kind;type:varchar(32);not null;index:idx_signal_event_user_kind_time,priority:2" json:"kind"`
	OccurredAt  time.Time      `gorm:"column:occurred_at;not null;index:idx_signal_event_user_kind_time,priority:3" json:"occurred_at"`
	Value       float64        `gorm:"column:value" json:"value"`
	MuscleGroup string         `gorm:"column:muscle_group;type:varchar(16)" json:"muscle_group,omitempty"`
	Payload     datatypes.JSON `gorm:"column:payload;type:jsonb" json:"payload,omitempty"`
	Note        string         `gorm:"column:note;type:text" json:"note,omitempty"`
	CreatedAt   time.Time      `gorm:"not null" json:"created_at"`
}

func (SignalEventRow) TableName() string { return "signal_event" }

// AllModels lists every table owned by the program engine, for automigration.
func AllModels() []any {
	return []any{
		&PlanVersionRow{},
		&ActivePlanRow{},
		&FeasibilityCheckRow{},
		&AdjustmentRecordRow{},
		&SignalEventRow{},
	}
}
