package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/harmony-sds/workflow-core/internal/artifact"
	"github.com/harmony-sds/workflow-core/internal/data/db"
	"github.com/harmony-sds/workflow-core/internal/platform/envutil"
	"github.com/harmony-sds/workflow-core/internal/platform/logger"
	"github.com/harmony-sds/workflow-core/internal/services"
)

type Services struct {
	Cfg    services.Config
	Chains services.ChainRegistry
	Tx     db.TxRunner
	Store  artifact.Store

	Notifier services.WorkNotifier
	Status   services.JobStatusCache

	Intake   services.JobIntakeService
	Dispatch services.DispatchService
	Control  services.JobControlService

	Updater services.WorkUpdateService
	Queue   services.UpdateQueue
	Sweeper services.StalledWorkSweeper
}

func wireServices(theDB *gorm.DB, log *logger.Logger, cfg Config, r Repos) (Services, error) {
	log.Info("Wiring services...")

	orchCfg := services.LoadConfig(log)

	chains, err := services.LoadChains(cfg.ServicesYmlPath, log)
	if err != nil {
		return Services{}, fmt.Errorf("load service chains: %w", err)
	}

	tx := db.NewGormTxRunner(theDB, db.RetryPolicy{
		MaxAttempts: 5,
		MinBackoff:  10 * time.Millisecond,
		MaxBackoff:  250 * time.Millisecond,
		JitterFrac:  0.2,
	})

	store, err := resolveArtifactStore(log, cfg)
	if err != nil {
		return Services{}, err
	}

	notifier := resolveWorkNotifier(log)
	status := resolveStatusCache(log, orchCfg)

	intake := services.NewJobIntakeService(log, orchCfg, tx, chains, r.Job, r.WorkflowStep, r.WorkItem, r.UserWork, notifier, status)
	dispatch := services.NewDispatchService(log, orchCfg, tx, r.Job, r.WorkflowStep, r.WorkItem, r.UserWork)
	control := services.NewJobControlService(log, tx, r.Job, r.WorkItem, r.JobLink, r.JobError, r.UserWork, notifier, status)

	updater := services.NewWorkUpdateService(
		log, orchCfg, store, tx,
		r.Job, r.WorkflowStep, r.WorkItem,
		r.JobLink, r.JobError,
		r.Batch, r.BatchItem,
		r.UserWork,
		notifier, status,
	)
	queue := services.NewUpdateQueue(log, orchCfg, updater)
	sweeper := services.NewStalledWorkSweeper(log, orchCfg, r.WorkItem, queue)

	return Services{
		Cfg:      orchCfg,
		Chains:   chains,
		Tx:       tx,
		Store:    store,
		Notifier: notifier,
		Status:   status,
		Intake:   intake,
		Dispatch: dispatch,
		Control:  control,
		Updater:  updater,
		Queue:    queue,
		Sweeper:  sweeper,
	}, nil
}

func resolveArtifactStore(log *logger.Logger, cfg Config) (artifact.Store, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.ArtifactStoreMode))
	log.Info("Selecting artifact store", "mode", mode)
	switch mode {
	case "", "gcs":
		return artifact.NewGCSStore(context.Background(), log)
	case "memory":
		return artifact.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported artifact store mode %q", cfg.ArtifactStoreMode)
	}
}

// resolveWorkNotifier prefers redis and degrades to the no-op notifier when
// REDIS_ADDR is absent; workers then rely on polling alone.
func resolveWorkNotifier(log *logger.Logger) services.WorkNotifier {
	if strings.TrimSpace(envutil.GetEnv("REDIS_ADDR", "", log)) == "" {
		log.Warn("REDIS_ADDR not set; work notifications disabled")
		return services.NopWorkNotifier{}
	}
	n, err := services.NewRedisWorkNotifier(log)
	if err != nil {
		log.Warn("Could not init redis work notifier", "error", err)
		return services.NopWorkNotifier{}
	}
	return n
}

func resolveStatusCache(log *logger.Logger, cfg services.Config) services.JobStatusCache {
	if strings.TrimSpace(envutil.GetEnv("REDIS_ADDR", "", log)) == "" {
		log.Warn("REDIS_ADDR not set; job status cache disabled")
		return services.NopStatusCache{}
	}
	c, err := services.NewRedisStatusCache(log, cfg.StatusCacheTTL)
	if err != nil {
		log.Warn("Could not init redis status cache", "error", err)
		return services.NopStatusCache{}
	}
	return c
}
