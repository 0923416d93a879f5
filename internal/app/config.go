package app

import (
	"github.com/harmony-sds/workflow-core/internal/platform/envutil"
	"github.com/harmony-sds/workflow-core/internal/platform/logger"
)

// Config holds process-level settings. The orchestration tuning knobs live in
// services.Config; this covers everything around them.
type Config struct {
	Port            string
	ServiceName     string
	Environment     string
	ServicesYmlPath string
	// SharedSecret guards the worker endpoints. Empty disables the check,
	// which is only sensible inside a trusted cluster.
	SharedSecret string
	// ArtifactStoreMode selects where sealed batch catalogs live: "gcs" or
	// "memory".
	ArtifactStoreMode string
}

func LoadConfig(log *logger.Logger) Config {
	return Config{
		Port:              envutil.GetEnv("PORT", "8080", log),
		ServiceName:       envutil.GetEnv("SERVICE_NAME", "workflow-core", log),
		Environment:       envutil.GetEnv("APP_ENV", "development", log),
		ServicesYmlPath:   envutil.GetEnv("SERVICE_CHAINS_PATH", "config/services.yml", log),
		SharedSecret:      envutil.GetEnv("SHARED_SECRET", "", log),
		ArtifactStoreMode: envutil.GetEnv("ARTIFACT_STORE_MODE", "gcs", log),
	}
}
