package services

import (
	"time"

	"github.com/harmony-sds/workflow-core/internal/platform/envutil"
	"github.com/harmony-sds/workflow-core/internal/platform/logger"
)

// Config carries the orchestration tuning knobs. LoadConfig resolves them
// from the environment once at startup; services receive the resolved struct
// and never read the environment themselves.
type Config struct {
	// CmrMaxPageSize bounds the granules one query-step page may yield.
	CmrMaxPageSize int
	// AggregateStacCatalogMaxPageSize caps items per aggregation catalog page.
	AggregateStacCatalogMaxPageSize int
	// MaxBatchInputs and MaxBatchSizeInBytes are the default batch bounds;
	// a workflow step may override either.
	MaxBatchInputs      int
	MaxBatchSizeInBytes int64
	// WorkItemRetryLimit is the per-item retry budget before a failure is
	// accepted.
	WorkItemRetryLimit int
	// MaxErrorsForJob fails the job outright once exceeded, ignore_errors or
	// not.
	MaxErrorsForJob int
	// PreviewThreshold is the granule count above which an async job starts
	// previewing instead of running.
	PreviewThreshold int
	// InsertBatchSize chunks bulk work-item inserts.
	InsertBatchSize int
	// ArtifactBucket hosts sealed batch catalogs.
	ArtifactBucket string
	// MaxWorkItemDuration is how long an item may stay running before the
	// sweeper fails it.
	MaxWorkItemDuration time.Duration
	// UpdateQueueSize and UpdateWorkerCount shape the bounded update queue.
	UpdateQueueSize   int
	UpdateWorkerCount int
	// SweeperSchedule is a cron expression for the stalled-work sweep.
	SweeperSchedule string
	// StatusCacheTTL bounds staleness of the polled job status.
	StatusCacheTTL time.Duration
}

func LoadConfig(log *logger.Logger) Config {
	maxItemSeconds := envutil.GetEnvAsInt("MAX_WORK_ITEM_DURATION_SECONDS", 3600, log)
	statusTTLSeconds := envutil.GetEnvAsInt("JOB_STATUS_CACHE_TTL_SECONDS", 5, log)
	return Config{
		CmrMaxPageSize:                  envutil.GetEnvAsInt("CMR_MAX_PAGE_SIZE", 2000, log),
		AggregateStacCatalogMaxPageSize: envutil.GetEnvAsInt("AGGREGATE_STAC_CATALOG_MAX_PAGE_SIZE", 1000, log),
		MaxBatchInputs:                  envutil.GetEnvAsInt("MAX_BATCH_INPUTS", 200, log),
		MaxBatchSizeInBytes:             envutil.GetEnvAsInt64("MAX_BATCH_SIZE_IN_BYTES", 1_000_000_000, log),
		WorkItemRetryLimit:              envutil.GetEnvAsInt("WORK_ITEM_RETRY_LIMIT", 3, log),
		MaxErrorsForJob:                 envutil.GetEnvAsInt("MAX_ERRORS_FOR_JOB", 100, log),
		PreviewThreshold:                envutil.GetEnvAsInt("PREVIEW_THRESHOLD", 500, log),
		InsertBatchSize:                 envutil.GetEnvAsInt("INSERT_BATCH_SIZE", 500, log),
		ArtifactBucket:                  envutil.GetEnv("ARTIFACT_BUCKET", "harmony-artifacts", log),
		MaxWorkItemDuration:             time.Duration(maxItemSeconds) * time.Second,
		UpdateQueueSize:                 envutil.GetEnvAsInt("UPDATE_QUEUE_SIZE", 1000, log),
		UpdateWorkerCount:               envutil.GetEnvAsInt("UPDATE_WORKER_COUNT", 8, log),
		SweeperSchedule:                 envutil.GetEnv("SWEEPER_SCHEDULE", "@every 1m", log),
		StatusCacheTTL:                  time.Duration(statusTTLSeconds) * time.Second,
	}
}
