package app

import (
	"strings"
	"time"

	"github.com/yungbote/fitprogram-backend/internal/data/db"
	"github.com/yungbote/fitprogram-backend/internal/modules/program/controller"
	"github.com/yungbote/fitprogram-backend/internal/modules/program/materialize"
	"github.com/yungbote/fitprogram-backend/internal/modules/program/reassess"
	"github.com/yungbote/fitprogram-backend/internal/modules/program/solver"
	"github.com/yungbote/fitprogram-backend/internal/platform/envutil"
	"github.com/yungbote/fitprogram-backend/internal/platform/logger"
	"github.com/yungbote/fitprogram-backend/internal/temporalx"
)

type Config struct {
	LogMode     string
	Environment string
	Version     string
	Port        string

	DBDriver   string
	SQLitePath string
	Postgres   db.PostgresConfig

	LedgerWriteAttempts int
	LedgerLockTimeout   time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LockTTL       time.Duration

	MetricsEnabled bool
	MetricsAddr    string

	CatalogPath string
	HorizonDays int

	SolverWorkers int
	Solver        solver.Config
	Controller    controller.Config
	Reassess      reassess.Config
	Temporal      temporalx.Config
}

func LoadConfig(log *logger.Logger) Config {
	cfg := Config{
		LogMode:     envutil.String("LOG_MODE", "development"),
		Environment: envutil.String("ENVIRONMENT", "development"),
		Version:     envutil.String("APP_VERSION", ""),
		Port:        envutil.String("PORT", "8080"),

		DBDriver:   strings.ToLower(envutil.String("DB_DRIVER", "postgres")),
		SQLitePath: envutil.String("SQLITE_PATH", "fitprogram.db"),
		Postgres: db.PostgresConfig{
			Host:     envutil.String("POSTGRES_HOST", "localhost"),
			Port:     envutil.String("POSTGRES_PORT", "5432"),
			User:     envutil.String("POSTGRES_USER", "postgres"),
			Password: envutil.String("POSTGRES_PASSWORD", ""),
			Name:     envutil.String("POSTGRES_NAME", "fitprogram"),
			SSLMode:  envutil.String("POSTGRES_SSLMODE", "disable"),
		},
		LedgerWriteAttempts: envutil.Int("LEDGER_WRITE_ATTEMPTS", 3),
		LedgerLockTimeout:   envutil.Duration("LEDGER_LOCK_TIMEOUT_MS", 5*time.Second, time.Millisecond),

		RedisAddr:     envutil.String("REDIS_ADDR", ""),
		RedisPassword: envutil.String("REDIS_PASSWORD", ""),
		RedisDB:       envutil.Int("REDIS_DB", 0),
		LockTTL:       envutil.Duration("REASSESS_LOCK_TTL_SECONDS", 2*time.Minute, time.Second),

		MetricsEnabled: envutil.Bool("METRICS_ENABLED", false),
		MetricsAddr:    envutil.String("METRICS_ADDR", ""),

		CatalogPath: envutil.String("CATALOG_PATH", ""),
		HorizonDays: envutil.Int("MATERIALIZE_HORIZON_DAYS", materialize.DefaultHorizonDays),

		SolverWorkers: envutil.Int("SOLVER_WORKERS", 0),
		Solver: solver.Config{
			MaxIterations: envutil.Int("SOLVER_MAX_ITERATIONS", solver.DefaultConfig().MaxIterations),
			MaxRuntime:    envutil.Duration("SOLVER_MAX_RUNTIME_MS", solver.DefaultConfig().MaxRuntime, time.Millisecond),
			MaxTradeOffs:  envutil.Int("SOLVER_MAX_TRADEOFFS", solver.DefaultConfig().MaxTradeOffs),
		},
		Controller: controller.ConfigFromEnv(),
		Reassess:   reassess.ConfigFromEnv(),
		Temporal:   temporalx.LoadConfig(),
	}
	if cfg.DBDriver != "postgres" && cfg.DBDriver != "sqlite" {
		log.Warn("unknown DB_DRIVER, using postgres", "driver", cfg.DBDriver)
		cfg.DBDriver = "postgres"
	}
	log.Info("config loaded",
		"env", cfg.Environment,
		"db_driver", cfg.DBDriver,
		"redis", cfg.RedisAddr != "",
		"metrics", cfg.MetricsEnabled,
		"temporal", cfg.Temporal.Enabled(),
	)
	return cfg
}
