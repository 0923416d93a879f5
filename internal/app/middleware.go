package app

import (
	"github.com/harmony-sds/workflow-core/internal/http/middleware"
	"github.com/harmony-sds/workflow-core/internal/platform/logger"
)

type Middleware struct {
	WorkAuth *middleware.SharedSecretAuth
}

func wireMiddleware(log *logger.Logger, cfg Config) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		WorkAuth: middleware.NewSharedSecretAuth(log, cfg.SharedSecret),
	}
}
