package services

import (
	"context"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/harmony-sds/workflow-core/internal/data/db"
	"github.com/harmony-sds/workflow-core/internal/data/repos"
	types "github.com/harmony-sds/workflow-core/internal/domain"
	"github.com/harmony-sds/workflow-core/internal/domain/work"
	"github.com/harmony-sds/workflow-core/internal/platform/logger"
)

// WorkHandle is what a polling worker receives: the claimed item, the
// step's operation blob, and, for the query step only, the granule limit
// for this page.
type WorkHandle struct {
	Item           *types.WorkItem
	Operation      datatypes.JSON
	MaxCmrGranules *int
}

// DispatchService hands the oldest ready work item for a service to a
// polling worker.
type DispatchService interface {
	// GetWork returns nil, nil when no item is available; workers poll.
	GetWork(ctx context.Context, serviceID, podName string) (*WorkHandle, error)
}

type dispatchService struct {
	log      *logger.Logger
	cfg      Config
	tx       db.TxRunner
	jobs     repos.JobRepo
	steps    repos.WorkflowStepRepo
	items    repos.WorkItemRepo
	userWork repos.UserWorkRepo

	claimRetryDelay time.Duration
}

func NewDispatchService(
	baseLog *logger.Logger,
	cfg Config,
	tx db.TxRunner,
	jobs repos.JobRepo,
	steps repos.WorkflowStepRepo,
	items repos.WorkItemRepo,
	userWork repos.UserWorkRepo,
) DispatchService {
	return &dispatchService{
		log:             baseLog.With("service", "DispatchService"),
		cfg:             cfg,
		tx:              tx,
		jobs:            jobs,
		steps:           steps,
		items:           items,
		userWork:        userWork,
		claimRetryDelay: 100 * time.Millisecond,
	}
}

func (s *dispatchService) GetWork(ctx context.Context, serviceID, podName string) (*WorkHandle, error) {
	if strings.TrimSpace(serviceID) == "" {
		return nil, work.NewError(work.CodeValidation, "dispatch.get_work", "serviceID is required", nil)
	}

	handle, err := s.claim(ctx, serviceID)
	if err != nil && work.IsRetryable(err) {
		// One more attempt after a short delay when the claim lost a lock
		// race; after that the worker's next poll picks it up.
		select {
		case <-ctx.Done():
			return nil, work.Wrap(work.CodeRetryable, "dispatch.get_work", ctx.Err())
		case <-time.After(s.claimRetryDelay):
		}
		handle, err = s.claim(ctx, serviceID)
	}
	if err != nil {
		return nil, err
	}
	if handle != nil {
		s.log.Debug("Dispatched work item",
			"service_id", serviceID,
			"pod_name", podName,
			"work_item_id", handle.Item.ID,
			"job_id", handle.Item.JobID,
			"step_index", handle.Item.WorkflowStepIndex)
	}
	return handle, nil
}

func (s *dispatchService) claim(ctx context.Context, serviceID string) (*WorkHandle, error) {
	var handle *WorkHandle
	err := s.tx.InTx(ctx, func(tx *gorm.DB) error {
		item, err := s.items.ClaimNextReady(ctx, tx, serviceID)
		if err != nil {
			return err
		}
		if item == nil {
			return nil
		}

		step, err := s.steps.GetByJobAndIndex(ctx, tx, item.JobID, item.WorkflowStepIndex)
		if err != nil {
			return err
		}
		if step == nil {
			return work.NewError(work.CodeInvariantViolation, "dispatch.claim",
				"claimed work item has no workflow step", nil)
		}
		job, err := s.jobs.GetByID(ctx, tx, item.JobID)
		if err != nil {
			return err
		}
		if job == nil {
			return work.NewError(work.CodeInvariantViolation, "dispatch.claim",
				"claimed work item has no job", nil)
		}

		h := &WorkHandle{Item: item, Operation: step.Operation}
		if step.Kind.Sequential() {
			limit := cmrLimit(job.NumInputGranules, step.SuccessfulCount, s.cfg.CmrMaxPageSize)
			h.MaxCmrGranules = &limit
		}
		if err := s.userWork.Adjust(ctx, tx, job.ID, serviceID, job.Username, -1, +1); err != nil {
			return err
		}
		handle = h
		return nil
	})
	if err != nil {
		return nil, err
	}
	return handle, nil
}

// cmrLimit bounds the granules the next query page may yield so the query
// step never produces more than numInputGranules in total.
func cmrLimit(numInputGranules, successfulQueryItems, cmrMaxPageSize int) int {
	remaining := numInputGranules - successfulQueryItems*cmrMaxPageSize
	if remaining > cmrMaxPageSize {
		remaining = cmrMaxPageSize
	}
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}
