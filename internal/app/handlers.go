package app

import (
	"github.com/harmony-sds/workflow-core/internal/http/handlers"
	"github.com/harmony-sds/workflow-core/internal/platform/logger"
)

type Handlers struct {
	Job    *handlers.JobHandler
	Work   *handlers.WorkHandler
	Health *handlers.HealthHandler
}

func wireHandlers(log *logger.Logger, services Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Job:    handlers.NewJobHandler(services.Intake, services.Control),
		Work:   handlers.NewWorkHandler(log, services.Dispatch, services.Updater, services.Queue),
		Health: handlers.NewHealthHandler(),
	}
}
