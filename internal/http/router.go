package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/harmony-sds/workflow-core/internal/http/handlers"
	httpMW "github.com/harmony-sds/workflow-core/internal/http/middleware"
	"github.com/harmony-sds/workflow-core/internal/platform/logger"
)

type RouterConfig struct {
	ServiceName string
	Log         *logger.Logger

	WorkAuth *httpMW.SharedSecretAuth

	JobHandler    *httpH.JobHandler
	WorkHandler   *httpH.WorkHandler
	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	if cfg.Log != nil {
		r.Use(httpMW.RequestLogger(cfg.Log))
	}
	r.Use(httpMW.CORS())

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	{
		// Jobs (user-facing)
		if cfg.JobHandler != nil {
			api.POST("/jobs", cfg.JobHandler.CreateJob)
			api.GET("/jobs", cfg.JobHandler.ListJobs)
			api.GET("/jobs/:id", cfg.JobHandler.GetJob)
			api.GET("/jobs/:id/status", cfg.JobHandler.GetJobStatus)
			api.POST("/jobs/:id/cancel", cfg.JobHandler.CancelJob)
			api.POST("/jobs/:id/pause", cfg.JobHandler.PauseJob)
			api.POST("/jobs/:id/resume", cfg.JobHandler.ResumeJob)
		}
	}

	worker := api.Group("/service")
	{
		// Middleware
		if cfg.WorkAuth != nil {
			worker.Use(cfg.WorkAuth.RequireSecret())
		}

		// Work claiming and result reporting (worker-facing)
		if cfg.WorkHandler != nil {
			worker.GET("/work", cfg.WorkHandler.GetWork)
			worker.PUT("/work/:id", cfg.WorkHandler.UpdateWork)
		}
	}

	return r
}
