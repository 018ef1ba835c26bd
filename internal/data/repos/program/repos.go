package program

import (
	"gorm.io/gorm"

	"github.com/yungbote/fitprogram-backend/internal/platform/logger"
)

// Set bundles every program table repo over one database handle.
type Set struct {
	Versions    PlanVersionRepo
	Active      ActivePlanRepo
	Checks      FeasibilityCheckRepo
	Adjustments AdjustmentRecordRepo
	Signals     SignalEventRepo
}

func NewSet(db *gorm.DB, baseLog *logger.Logger) Set {
	return Set{
		Versions:    NewPlanVersionRepo(db, baseLog),
		Active:      NewActivePlanRepo(db, baseLog),
		Checks:      NewFeasibilityCheckRepo(db, baseLog),
		Adjustments: NewAdjustmentRecordRepo(db, baseLog),
		Signals:     NewSignalEventRepo(db, baseLog),
	}
}
