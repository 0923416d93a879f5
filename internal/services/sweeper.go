package services

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/harmony-sds/workflow-core/internal/data/repos"
	"github.com/harmony-sds/workflow-core/internal/domain/work"
	"github.com/harmony-sds/workflow-core/internal/platform/logger"
)

const (
	sweepBatchSize   = 100
	sweepListTimeout = 15 * time.Second
)

// StalledWorkSweeper periodically fails running work items whose worker
// went silent. The failure is pushed through the normal update queue, so
// retry budgets and failure policy apply the same as to a worker report.
type StalledWorkSweeper interface {
	Start() error
	Stop()
}

type stalledWorkSweeper struct {
	log   *logger.Logger
	cfg   Config
	items repos.WorkItemRepo
	queue UpdateQueue
	cron  *cron.Cron
}

func NewStalledWorkSweeper(baseLog *logger.Logger, cfg Config, items repos.WorkItemRepo, queue UpdateQueue) StalledWorkSweeper {
	return &stalledWorkSweeper{
		log:   baseLog.With("service", "StalledWorkSweeper"),
		cfg:   cfg,
		items: items,
		queue: queue,
		cron:  cron.New(),
	}
}

func (s *stalledWorkSweeper) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.SweeperSchedule, s.sweep); err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info("Stalled work sweeper started",
		"schedule", s.cfg.SweeperSchedule, "max_duration", s.cfg.MaxWorkItemDuration)
	return nil
}

func (s *stalledWorkSweeper) Stop() {
	<-s.cron.Stop().Done()
}

func (s *stalledWorkSweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepListTimeout)
	defer cancel()

	cutoff := time.Now().UTC().Add(-s.cfg.MaxWorkItemDuration)
	stalled, err := s.items.ListStalledRunning(ctx, nil, cutoff, sweepBatchSize)
	if err != nil {
		s.log.Error("Failed to list stalled work items", "error", err)
		return
	}
	if len(stalled) == 0 {
		return
	}

	swept := 0
	for _, it := range stalled {
		var dur time.Duration
		if it.StartedAt != nil {
			dur = time.Since(*it.StartedAt)
		}
		ok := s.queue.Enqueue(it.ID, work.FailureUpdate{
			Message:  "work item exceeded the maximum allowed duration",
			Duration: dur,
		})
		if !ok {
			s.log.Warn("Update queue is full; deferring rest of stalled sweep",
				"swept", swept, "remaining", len(stalled)-swept)
			break
		}
		swept++
	}
	if swept > 0 {
		s.log.Warn("Failed stalled work items", "count", swept, "cutoff", cutoff)
	}
}
