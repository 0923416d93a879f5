package app

import (
	httpx "github.com/harmony-sds/workflow-core/internal/http"
	"github.com/harmony-sds/workflow-core/internal/platform/logger"
)

func wireRouter(log *logger.Logger, cfg Config, handlers Handlers, middleware Middleware) *httpx.Server {
	return httpx.NewServer(httpx.RouterConfig{
		ServiceName: cfg.ServiceName,
		Log:         log,

		WorkAuth: middleware.WorkAuth,

		JobHandler:    handlers.Job,
		WorkHandler:   handlers.Work,
		HealthHandler: handlers.Health,
	})
}
