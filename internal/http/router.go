package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/fitprogram-backend/internal/http/handlers"
	httpMW "github.com/yungbote/fitprogram-backend/internal/http/middleware"
	"github.com/yungbote/fitprogram-backend/internal/observability"
	"github.com/yungbote/fitprogram-backend/internal/platform/logger"
)

type RouterConfig struct {
	ServiceName string
	Log         *logger.Logger
	Metrics     *observability.Metrics

	HealthHandler  *httpH.HealthHandler
	ProgramHandler *httpH.ProgramHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "fitprogram"
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(cfg.ServiceName))
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.AttachRequestContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	if cfg.Metrics != nil {
		r.Use(httpMW.Metrics(cfg.Metrics))
	}
	r.Use(httpMW.CORS())

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api")
	if h := cfg.ProgramHandler; h != nil {
		api.POST("/feasibility", h.CheckFeasibility)

		users := api.Group("/users/:user_id")
		users.POST("/plans", h.GeneratePlan)
		users.GET("/plans/active", h.GetActivePlan)
		users.GET("/plans/history", h.GetPlanHistory)
		users.POST("/plans/:version_id/activate", h.ActivatePlan)
		users.POST("/feasibility/:check_id/tradeoffs/:trade_off_id/accept", h.AcceptTradeOff)
		users.POST("/reassessments", h.RunReassessment)
		users.POST("/signals", h.IngestSignals)
	}

	return r
}
