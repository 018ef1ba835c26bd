package app

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yungbote/fitprogram-backend/internal/data/db"
	"github.com/yungbote/fitprogram-backend/internal/http"
	httpH "github.com/yungbote/fitprogram-backend/internal/http/handlers"
	"github.com/yungbote/fitprogram-backend/internal/observability"
	"github.com/yungbote/fitprogram-backend/internal/platform/logger"
)

type Handlers struct {
	Health  *httpH.HealthHandler
	Program *httpH.ProgramHandler
}

func wireHandlers(log *logger.Logger, theDB *gorm.DB, clients Clients, services Services) Handlers {
	log.Info("Wiring handlers...")
	deps := map[string]httpH.Pinger{"db": db.Pinger{DB: theDB}}
	if clients.Redis != nil {
		deps["redis"] = redisPinger{rdb: clients.Redis}
	}
	return Handlers{
		Health:  httpH.NewHealthHandler(deps),
		Program: httpH.NewProgramHandler(services.Program),
	}
}

func wireRouter(log *logger.Logger, handlers Handlers, metrics *observability.Metrics) *gin.Engine {
	return http.NewRouter(http.RouterConfig{
		ServiceName:    "fitprogram",
		Log:            log,
		Metrics:        metrics,
		HealthHandler:  handlers.Health,
		ProgramHandler: handlers.Program,
	})
}
