package services

import (
	"context"
	"sync"
	"time"

	types "github.com/harmony-sds/workflow-core/internal/domain"
	"github.com/harmony-sds/workflow-core/internal/platform/logger"
)

const updateProcessTimeout = 30 * time.Second

type queuedUpdate struct {
	workItemID int64
	update     types.WorkItemUpdate
}

// UpdateQueue decouples the update endpoint from the transaction that
// applies an update. The channel is bounded so a flood of worker reports
// sheds load at the transport instead of piling up transactions.
type UpdateQueue interface {
	// Enqueue reports false when the queue is full; callers answer 503 and
	// the worker retries.
	Enqueue(workItemID int64, u types.WorkItemUpdate) bool
	Start()
	// Close drains the queue and waits for in-flight updates. No Enqueue
	// may happen after Close.
	Close()
}

type boundedUpdateQueue struct {
	log     *logger.Logger
	svc     WorkUpdateService
	ch      chan queuedUpdate
	workers int
	wg      sync.WaitGroup
}

func NewUpdateQueue(baseLog *logger.Logger, cfg Config, svc WorkUpdateService) UpdateQueue {
	size := cfg.UpdateQueueSize
	if size <= 0 {
		size = 1
	}
	workers := cfg.UpdateWorkerCount
	if workers <= 0 {
		workers = 1
	}
	return &boundedUpdateQueue{
		log:     baseLog.With("service", "UpdateQueue"),
		svc:     svc,
		ch:      make(chan queuedUpdate, size),
		workers: workers,
	}
}

func (q *boundedUpdateQueue) Enqueue(workItemID int64, u types.WorkItemUpdate) bool {
	select {
	case q.ch <- queuedUpdate{workItemID: workItemID, update: u}:
		return true
	default:
		q.log.Warn("Update queue is full; rejecting update", "work_item_id", workItemID)
		return false
	}
}

func (q *boundedUpdateQueue) Start() {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	q.log.Info("Update queue started", "workers", q.workers, "capacity", cap(q.ch))
}

func (q *boundedUpdateQueue) worker() {
	defer q.wg.Done()
	for qu := range q.ch {
		ctx, cancel := context.WithTimeout(context.Background(), updateProcessTimeout)
		err := q.svc.Process(ctx, qu.workItemID, qu.update)
		cancel()
		if err != nil {
			// The item stays in its last persisted state; the sweeper will
			// eventually fail it if the worker never reports again.
			q.log.Error("Failed to process work item update",
				"work_item_id", qu.workItemID, "update_status", qu.update.Status(), "error", err)
		}
	}
}

func (q *boundedUpdateQueue) Close() {
	close(q.ch)
	q.wg.Wait()
	q.log.Info("Update queue drained")
}
