package app

import (
	"fmt"

	"github.com/yungbote/fitprogram-backend/internal/data/signalstore"
	"github.com/yungbote/fitprogram-backend/internal/modules/program/controller"
	"github.com/yungbote/fitprogram-backend/internal/modules/program/materialize"
	"github.com/yungbote/fitprogram-backend/internal/modules/program/reassess"
	"github.com/yungbote/fitprogram-backend/internal/modules/program/signals"
	"github.com/yungbote/fitprogram-backend/internal/modules/program/solver"
	"github.com/yungbote/fitprogram-backend/internal/observability"
	"github.com/yungbote/fitprogram-backend/internal/platform/catalog"
	"github.com/yungbote/fitprogram-backend/internal/platform/clock"
	"github.com/yungbote/fitprogram-backend/internal/platform/lock"
	"github.com/yungbote/fitprogram-backend/internal/platform/logger"
	"github.com/yungbote/fitprogram-backend/internal/services"
	"github.com/yungbote/fitprogram-backend/internal/temporalx/reassessment"
	"github.com/yungbote/fitprogram-backend/internal/temporalx/temporalworker"
)

type Services struct {
	Program services.ProgramService

	Solver       *solver.Pool
	Orchestrator *reassess.Orchestrator
	Signals      *signalstore.Store

	// Set only when Temporal is configured.
	Scheduler      *reassessment.Scheduler
	TemporalWorker *temporalworker.Runner
}

func wireServices(log *logger.Logger, cfg Config, repos Repos, clients Clients, metrics *observability.Metrics) (Services, error) {
	log.Info("Wiring services...")

	clk := clock.System()

	content, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return Services{}, fmt.Errorf("load content catalog: %w", err)
	}

	var observer solver.Observer
	var cycleObserver reassess.Observer
	var activityObserver reassessment.ActivityObserver
	if metrics != nil {
		observer, cycleObserver, activityObserver = metrics, metrics, metrics
	}

	pool := solver.NewPool(solver.New(cfg.Solver), cfg.SolverWorkers, observer)
	materializer := materialize.New(content, cfg.HorizonDays)
	store := signalstore.New(repos.Program.Signals, log)

	var locker lock.Locker = lock.NewLocal()
	if clients.Redis != nil {
		rl, err := lock.NewRedis(log, clients.Redis, lock.RedisConfig{TTL: cfg.LockTTL})
		if err != nil {
			return Services{}, fmt.Errorf("init redis locker: %w", err)
		}
		locker = rl
	}

	orchestrator := reassess.New(cfg.Reassess, reassess.Deps{
		Log:          log,
		Ledger:       repos.Ledger,
		Signals:      signals.New(store, log),
		Controller:   controller.New(cfg.Controller),
		Solver:       pool,
		Materializer: materializer,
		Locker:       locker,
		Clock:        clk,
		Observer:     cycleObserver,
	})

	programService := services.NewProgramService(log, services.ProgramServiceDeps{
		Ledger:       repos.Ledger,
		Solver:       pool,
		Materializer: materializer,
		Cycles:       orchestrator,
		Signals:      store,
		Clock:        clk,
	})

	out := Services{
		Program:      programService,
		Solver:       pool,
		Orchestrator: orchestrator,
		Signals:      store,
	}

	if clients.Temporal != nil {
		out.Scheduler = reassessment.NewScheduler(clients.Temporal, cfg.Temporal.TaskQueue, clk)
		runner, err := temporalworker.NewRunner(log, clients.Temporal, cfg.Temporal, &reassessment.Activities{
			Log:      log,
			Cycles:   programService,
			Observer: activityObserver,
		})
		if err != nil {
			return Services{}, fmt.Errorf("init temporal worker: %w", err)
		}
		out.TemporalWorker = runner
	}

	return out, nil
}
