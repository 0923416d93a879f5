package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	types "github.com/harmony-sds/workflow-core/internal/domain"
	"github.com/harmony-sds/workflow-core/internal/platform/envutil"
	"github.com/harmony-sds/workflow-core/internal/platform/logger"
)

// JobStatusSnapshot is the cached view of a job served to status polls.
type JobStatusSnapshot struct {
	JobID     uuid.UUID       `json:"job_id"`
	Status    types.JobStatus `json:"status"`
	Message   string          `json:"message,omitempty"`
	Progress  int             `json:"progress"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// SnapshotOf projects a job row into its cacheable status view.
func SnapshotOf(job *types.Job) JobStatusSnapshot {
	return JobStatusSnapshot{
		JobID:     job.ID,
		Status:    job.Status,
		Message:   job.Message,
		Progress:  job.Progress,
		UpdatedAt: job.UpdatedAt,
	}
}

// JobStatusCache absorbs repeated status polls between write transactions.
// Entries expire within a few seconds, so staleness is bounded; a miss just
// falls through to the store.
type JobStatusCache interface {
	Get(ctx context.Context, jobID uuid.UUID) (JobStatusSnapshot, bool)
	Set(ctx context.Context, snap JobStatusSnapshot)
	Invalidate(ctx context.Context, jobID uuid.UUID)
}

type redisStatusCache struct {
	log *logger.Logger
	rdb *goredis.Client
	ttl time.Duration
}

// NewRedisStatusCache builds a redis-backed status cache. Requires
// REDIS_ADDR.
func NewRedisStatusCache(baseLog *logger.Logger, ttl time.Duration) (JobStatusCache, error) {
	log := baseLog.With("service", "JobStatusCache")

	addr := strings.TrimSpace(envutil.GetEnv("REDIS_ADDR", "", log))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &redisStatusCache{log: log, rdb: rdb, ttl: ttl}, nil
}

func statusCacheKey(jobID uuid.UUID) string {
	return "harmony:job-status:" + jobID.String()
}

func (c *redisStatusCache) Get(ctx context.Context, jobID uuid.UUID) (JobStatusSnapshot, bool) {
	var snap JobStatusSnapshot
	if c == nil || c.rdb == nil || jobID == uuid.Nil {
		return snap, false
	}
	raw, err := c.rdb.Get(ctx, statusCacheKey(jobID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return snap, false
	}
	if err != nil {
		c.log.Warn("Status cache read failed", "job_id", jobID, "error", err)
		return snap, false
	}
	if err := json.Unmarshal(raw, &snap); err != nil {
		return snap, false
	}
	return snap, true
}

func (c *redisStatusCache) Set(ctx context.Context, snap JobStatusSnapshot) {
	if c == nil || c.rdb == nil || snap.JobID == uuid.Nil {
		return
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, statusCacheKey(snap.JobID), raw, c.ttl).Err(); err != nil {
		c.log.Warn("Status cache write failed", "job_id", snap.JobID, "error", err)
	}
}

func (c *redisStatusCache) Invalidate(ctx context.Context, jobID uuid.UUID) {
	if c == nil || c.rdb == nil || jobID == uuid.Nil {
		return
	}
	if err := c.rdb.Del(ctx, statusCacheKey(jobID)).Err(); err != nil {
		c.log.Warn("Status cache invalidate failed", "job_id", jobID, "error", err)
	}
}

// NopStatusCache misses every read. Tests and redis-less deployments use it;
// every poll then reads the store directly.
type NopStatusCache struct{}

func (NopStatusCache) Get(ctx context.Context, jobID uuid.UUID) (JobStatusSnapshot, bool) {
	return JobStatusSnapshot{}, false
}
func (NopStatusCache) Set(ctx context.Context, snap JobStatusSnapshot) {}
func (NopStatusCache) Invalidate(ctx context.Context, jobID uuid.UUID) {}
