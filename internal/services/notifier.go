package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/harmony-sds/workflow-core/internal/platform/envutil"
	"github.com/harmony-sds/workflow-core/internal/platform/logger"
)

// WorkNotifier tells the external fair-share scheduler that ready work
// exists for a service. Delivery is fire-and-forget; the scheduler also
// polls user_work, so a dropped ping only delays pickup.
type WorkNotifier interface {
	WorkReady(ctx context.Context, serviceID string)
}

type redisWorkNotifier struct {
	log     *logger.Logger
	rdb     *goredis.Client
	listKey string
}

// NewRedisWorkNotifier pushes ready-service IDs onto a redis list the
// scheduler BRPOPs. Requires REDIS_ADDR.
func NewRedisWorkNotifier(baseLog *logger.Logger) (WorkNotifier, error) {
	log := baseLog.With("service", "WorkNotifier")

	addr := strings.TrimSpace(envutil.GetEnv("REDIS_ADDR", "", log))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	listKey := envutil.GetEnv("WORK_READY_LIST_KEY", "harmony:ready-services", log)

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

	return &redisWorkNotifier{log: log, rdb: rdb, listKey: listKey}, nil
}

func (n *redisWorkNotifier) WorkReady(ctx context.Context, serviceID string) {
	if n == nil || n.rdb == nil || strings.TrimSpace(serviceID) == "" {
		return
	}
	if err := n.rdb.LPush(ctx, n.listKey, serviceID).Err(); err != nil {
		n.log.Warn("Failed to notify scheduler of ready work", "service_id", serviceID, "error", err)
	}
}

// NopWorkNotifier drops every notification. Used in tests and when redis is
// not configured.
type NopWorkNotifier struct{}

func (NopWorkNotifier) WorkReady(ctx context.Context, serviceID string) {}
