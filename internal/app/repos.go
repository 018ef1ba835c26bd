package app

import (
	"gorm.io/gorm"

	dataagg "github.com/yungbote/fitprogram-backend/internal/data/aggregates"
	programrepo "github.com/yungbote/fitprogram-backend/internal/data/repos/program"
	domainagg "github.com/yungbote/fitprogram-backend/internal/domain/aggregates"
	"github.com/yungbote/fitprogram-backend/internal/observability"
	"github.com/yungbote/fitprogram-backend/internal/platform/logger"
)

type Repos struct {
	Program programrepo.Set
	Ledger  domainagg.PlanLedgerAggregate
}

func wireRepos(db *gorm.DB, log *logger.Logger, cfg Config, metrics *observability.Metrics) Repos {
	log.Info("Wiring repos...")
	set := programrepo.NewSet(db, log)
	var rec dataagg.MetricsRecorder
	if metrics != nil {
		rec = metrics
	}
	ledger := dataagg.NewPlanLedgerAggregate(dataagg.PlanLedgerAggregateDeps{
		Base: dataagg.BaseDeps{
			DB:            db,
			Log:           log,
			Hooks:         dataagg.NewMetricsHooks(rec),
			WriteAttempts: cfg.LedgerWriteAttempts,
			LockTimeout:   cfg.LedgerLockTimeout,
		},
		Versions:    set.Versions,
		Active:      set.Active,
		Checks:      set.Checks,
		Adjustments: set.Adjustments,
	})
	return Repos{Program: set, Ledger: ledger}
}
