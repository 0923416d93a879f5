package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/harmony-sds/workflow-core/internal/artifact"
	"github.com/harmony-sds/workflow-core/internal/data/db"
	"github.com/harmony-sds/workflow-core/internal/data/repos"
	types "github.com/harmony-sds/workflow-core/internal/domain"
	"github.com/harmony-sds/workflow-core/internal/domain/work"
	"github.com/harmony-sds/workflow-core/internal/platform/logger"
)

const bytesPerMiB = 1024 * 1024

// WorkUpdateService ingests a worker's terminal report for one work item
// and drives everything that follows from it: retry or accept, step
// counters, the granule-count shrink, failure policy, child emission,
// query continuation, and job completion. The whole sequence is one
// retried transaction, so two racing updates for the same item serialize
// and the loser no-ops against a terminal row.
type WorkUpdateService interface {
	Process(ctx context.Context, workItemID int64, u types.WorkItemUpdate) error
	// Precheck rejects updates whose job is already terminal so the
	// transport can answer 409 before anything is enqueued.
	Precheck(ctx context.Context, workItemID int64) error
}

type workUpdateService struct {
	log      *logger.Logger
	cfg      Config
	tx       db.TxRunner
	jobs     repos.JobRepo
	steps    repos.WorkflowStepRepo
	items    repos.WorkItemRepo
	jobErrs  repos.JobErrorRepo
	userWork repos.UserWorkRepo
	notify   WorkNotifier
	cache    JobStatusCache

	advancer  *stepAdvancer
	completer *jobCompleter
}

func NewWorkUpdateService(
	baseLog *logger.Logger,
	cfg Config,
	store artifact.Store,
	tx db.TxRunner,
	jobs repos.JobRepo,
	steps repos.WorkflowStepRepo,
	items repos.WorkItemRepo,
	jobLinks repos.JobLinkRepo,
	jobErrs repos.JobErrorRepo,
	batches repos.BatchRepo,
	batchItems repos.BatchItemRepo,
	userWork repos.UserWorkRepo,
	notify WorkNotifier,
	cache JobStatusCache,
) WorkUpdateService {
	batcher := newBatchEngine(baseLog, cfg, store, items, steps, batches, batchItems, userWork, notify)
	return &workUpdateService{
		log:       baseLog.With("service", "WorkUpdateService"),
		cfg:       cfg,
		tx:        tx,
		jobs:      jobs,
		steps:     steps,
		items:     items,
		jobErrs:   jobErrs,
		userWork:  userWork,
		notify:    notify,
		cache:     cache,
		advancer:  newStepAdvancer(baseLog, cfg, store, items, steps, userWork, batcher, notify),
		completer: newJobCompleter(baseLog, cfg, store, steps, items, jobLinks, jobErrs, userWork),
	}
}

func (s *workUpdateService) Process(ctx context.Context, workItemID int64, u types.WorkItemUpdate) error {
	if u == nil {
		return work.NewError(work.CodeValidation, "work.update", "update payload is required", nil)
	}
	if err := u.Validate(); err != nil {
		return err
	}

	var finalJob *types.Job
	err := s.tx.InRetryableTx(ctx, func(tx *gorm.DB) error {
		finalJob = nil
		job, err := s.process(ctx, tx, workItemID, u)
		if err != nil {
			return err
		}
		finalJob = job
		return nil
	})
	if err != nil {
		return err
	}
	if finalJob != nil {
		s.cache.Set(ctx, SnapshotOf(finalJob))
	}
	return nil
}

// process returns the persisted job when the update was applied, nil when
// it was absorbed as a no-op.
func (s *workUpdateService) process(ctx context.Context, tx *gorm.DB, workItemID int64, u types.WorkItemUpdate) (*types.Job, error) {
	// Learn the job first so locks are taken in job-then-item order.
	peek, err := s.items.GetByID(ctx, tx, workItemID)
	if err != nil {
		return nil, err
	}
	if peek == nil {
		return nil, work.NewError(work.CodeNotFound, "work.update",
			fmt.Sprintf("work item %d not found", workItemID), nil)
	}
	job, err := s.jobs.GetByIDForUpdate(ctx, tx, peek.JobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, work.NewError(work.CodeNotFound, "work.update",
			fmt.Sprintf("job %s not found", peek.JobID), nil)
	}
	item, err := s.items.GetByIDForUpdate(ctx, tx, workItemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, work.NewError(work.CodeNotFound, "work.update",
			fmt.Sprintf("work item %d not found", workItemID), nil)
	}

	if job.Terminal() {
		s.log.Info("Dropping update for terminal job",
			"job_id", job.ID, "work_item_id", item.ID, "job_status", job.Status, "update_status", u.Status())
		return nil, nil
	}
	if item.Terminal() {
		s.log.Info("Dropping update for terminal work item",
			"job_id", job.ID, "work_item_id", item.ID, "item_status", item.Status, "update_status", u.Status())
		return nil, nil
	}

	step, err := s.steps.GetByJobAndIndex(ctx, tx, job.ID, item.WorkflowStepIndex)
	if err != nil {
		return nil, err
	}
	if step == nil {
		return nil, work.NewError(work.CodeInvariantViolation, "work.update",
			fmt.Sprintf("work item %d has no workflow step", item.ID), nil)
	}

	prevStatus := item.Status
	status := u.Status()

	// Under the retry budget a failure just re-readies the item.
	if status == types.ItemFailed && item.RetryCount < s.cfg.WorkItemRetryLimit {
		if err := s.requeueForRetry(ctx, tx, job, item, prevStatus); err != nil {
			return nil, err
		}
		return job, nil
	}

	// The larger of orchestrator- and worker-observed runtime, so a late
	// first reply cannot shrink the duration a retry already reported.
	now := time.Now().UTC()
	dur := u.WorkerDuration()
	if item.StartedAt != nil {
		if wall := now.Sub(*item.StartedAt); wall > dur {
			dur = wall
		}
	}

	var sizes []int64
	totalSize := 0.0
	if su, ok := u.(work.SuccessUpdate); ok {
		sizes = su.OutputItemSizes
		if su.TotalItemsSize != nil {
			totalSize = *su.TotalItemsSize
		} else {
			totalSize = mibOf(sizes)
		}
		if strings.TrimSpace(su.ScrollID) != "" {
			item.ScrollID = su.ScrollID
		}
	}

	item.Status = status
	item.DurationMs = dur.Milliseconds()
	item.TotalItemsSize = totalSize
	if err := item.EncodeOutputSizes(sizes); err != nil {
		return nil, work.Wrap(work.CodeInternal, "work.update", err)
	}
	if err := s.items.Update(ctx, tx, item); err != nil {
		return nil, err
	}
	switch prevStatus {
	case types.ItemRunning:
		if err := s.userWork.Adjust(ctx, tx, job.ID, item.ServiceID, job.Username, 0, -1); err != nil {
			return nil, err
		}
	case types.ItemReady:
		// A late terminal report can land while the item sits re-readied in
		// the queue; the ready counter has to come back down with it.
		if err := s.userWork.Adjust(ctx, tx, job.ID, item.ServiceID, job.Username, -1, 0); err != nil {
			return nil, err
		}
	}

	successfulDelta := 0
	if status == types.ItemSuccessful {
		successfulDelta = 1
	}
	if err := s.steps.AddCompleted(ctx, tx, job.ID, step.StepIndex, 1, successfulDelta); err != nil {
		return nil, err
	}
	step.CompletedCount++
	step.SuccessfulCount += successfulDelta

	if err := s.applyHitsShrink(ctx, tx, job, step, u); err != nil {
		return nil, err
	}

	allStepComplete := step.WorkItemCount > 0 && step.CompletedCount >= step.WorkItemCount
	if step.Kind.Batched() {
		// A batched step's expected count keeps growing until the step
		// feeding it has finished.
		prev, err := s.steps.GetByJobAndIndex(ctx, tx, job.ID, step.StepIndex-1)
		if err != nil {
			return nil, err
		}
		allStepComplete = allStepComplete && prev != nil && prev.IsComplete
	}
	if allStepComplete && !step.IsComplete {
		step.IsComplete = true
		if err := s.steps.UpdateFields(ctx, tx, job.ID, step.StepIndex, map[string]interface{}{
			"is_complete": true,
		}); err != nil {
			return nil, err
		}
	}

	// The first applied update is what moves an accepted job into running;
	// previewing jobs keep their status until the completer pauses them.
	if job.Status == types.JobAccepted {
		job.Status = types.JobRunning
	}

	jobFailed, err := s.applyFailurePolicy(ctx, tx, job, step, item, u)
	if err != nil {
		return nil, err
	}

	next, err := s.steps.GetByJobAndIndex(ctx, tx, job.ID, step.StepIndex+1)
	if err != nil {
		return nil, err
	}

	childCreated := false
	// A failed item still reaches the advancer when the next step aggregates:
	// a batched step records the failure as a placeholder, and an unbatched
	// aggregate must still fire when the failure was the step's final
	// completion.
	if next != nil && !jobFailed && (status != types.ItemFailed || next.Kind.Aggregating()) {
		childCreated, err = s.advancer.advance(ctx, tx, job, step, next, item, u, allStepComplete)
		if err != nil {
			return nil, err
		}
	}

	if !jobFailed && status == types.ItemSuccessful && step.Kind.Sequential() {
		if err := s.continueQuery(ctx, tx, job, step, item, u); err != nil {
			return nil, err
		}
	}

	if !jobFailed && (next == nil || (allStepComplete && !childCreated)) {
		if err := s.completer.complete(ctx, tx, job, step, next, item, u, allStepComplete); err != nil {
			return nil, err
		}
	}

	if err := s.jobs.Update(ctx, tx, job); err != nil {
		return nil, err
	}
	return job, nil
}

func (s *workUpdateService) requeueForRetry(ctx context.Context, tx *gorm.DB, job *types.Job, item *types.WorkItem, prevStatus types.WorkItemStatus) error {
	item.RetryCount++
	if err := s.items.UpdateFields(ctx, tx, item.ID, map[string]interface{}{
		"retry_count": item.RetryCount,
		"status":      types.ItemReady,
		"started_at":  nil,
	}); err != nil {
		return err
	}
	readyDelta, runningDelta := 1, 0
	switch prevStatus {
	case types.ItemRunning:
		runningDelta = -1
	case types.ItemReady:
		// A duplicate failure report for an already-requeued item only burns
		// retry budget; the item is counted ready once.
		readyDelta = 0
	}
	if err := s.userWork.Adjust(ctx, tx, job.ID, item.ServiceID, job.Username, readyDelta, runningDelta); err != nil {
		return err
	}
	s.notify.WorkReady(ctx, item.ServiceID)
	s.log.Info("Requeued failed work item for retry",
		"job_id", job.ID, "work_item_id", item.ID, "retry_count", item.RetryCount)
	return nil
}

// applyHitsShrink narrows the job to what the source catalog actually
// holds. numInputGranules only ever shrinks; every step's expected count is
// rebuilt from the new total, except batched steps whose counts grow per
// sealed batch.
func (s *workUpdateService) applyHitsShrink(ctx context.Context, tx *gorm.DB, job *types.Job, step *types.WorkflowStep, u types.WorkItemUpdate) error {
	su, ok := u.(work.SuccessUpdate)
	if !ok || su.Hits == nil || *su.Hits >= job.NumInputGranules {
		return nil
	}
	job.NumInputGranules = *su.Hits

	allSteps, err := s.steps.ListByJob(ctx, tx, job.ID)
	if err != nil {
		return err
	}
	for _, st := range allSteps {
		var count int
		switch {
		case st.Kind.Sequential():
			count = ceilDiv(job.NumInputGranules, s.cfg.CmrMaxPageSize)
		case st.Kind.Batched():
			continue
		case st.Kind.Aggregating():
			count = 1
		default:
			count = job.NumInputGranules
		}
		if st.WorkItemCount == count {
			continue
		}
		if err := s.steps.UpdateFields(ctx, tx, job.ID, st.StepIndex, map[string]interface{}{
			"work_item_count": count,
		}); err != nil {
			return err
		}
		if st.StepIndex == step.StepIndex {
			step.WorkItemCount = count
		}
	}
	s.log.Info("Shrunk job to reported hits", "job_id", job.ID, "num_input_granules", job.NumInputGranules)
	return nil
}

// applyFailurePolicy records an accepted failure and decides whether the
// job survives it. Reports true when the job was failed outright.
func (s *workUpdateService) applyFailurePolicy(ctx context.Context, tx *gorm.DB, job *types.Job, step *types.WorkflowStep, item *types.WorkItem, u types.WorkItemUpdate) (bool, error) {
	if u.Status() != types.ItemFailed {
		return false, nil
	}
	failMsg := "failed with an unknown error"
	if fu, ok := u.(work.FailureUpdate); ok {
		failMsg = fu.ErrorMessage()
	}
	if _, err := s.jobErrs.Create(ctx, tx, &types.JobError{
		JobID:   job.ID,
		URL:     item.StacCatalogLocation,
		Message: failMsg,
	}); err != nil {
		return false, err
	}
	errCount, err := s.jobErrs.CountByJob(ctx, tx, job.ID)
	if err != nil {
		return false, err
	}

	jobFailed := false
	switch {
	case step.Kind.Sequential():
		// Without granules the pipeline has no inputs; ignore_errors does
		// not apply to the query step.
		jobFailed = true
		job.Message = fmt.Sprintf("failed to query the source catalog: %s", failMsg)
	case !job.IgnoreErrors:
		jobFailed = true
		job.Message = failMsg
	case errCount > int64(s.cfg.MaxErrorsForJob):
		jobFailed = true
		job.Message = fmt.Sprintf("service failures exceeded the limit of %d errors", s.cfg.MaxErrorsForJob)
	default:
		job.Status = types.JobRunningWithErrors
		// One fewer granule flows into every later one-to-one step. The
		// aggregating steps keep their expected counts; a batched step sees
		// the failure as a placeholder instead.
		futures, err := s.steps.ListAfterIndex(ctx, tx, job.ID, step.StepIndex)
		if err != nil {
			return false, err
		}
		for _, st := range futures {
			if st.Kind.Aggregating() {
				continue
			}
			if err := s.steps.AddWorkItemCount(ctx, tx, job.ID, st.StepIndex, -1); err != nil {
				return false, err
			}
		}
		s.log.Warn("Accepted work item failure",
			"job_id", job.ID, "work_item_id", item.ID, "error_count", errCount, "message", failMsg)
	}

	if jobFailed {
		job.Status = types.JobFailed
		if err := s.completer.terminalTransition(ctx, tx, job); err != nil {
			return false, err
		}
	}
	return jobFailed, nil
}

// continueQuery keeps the sequential query step paging while the limit
// formula still leaves granules to fetch.
func (s *workUpdateService) continueQuery(ctx context.Context, tx *gorm.DB, job *types.Job, step *types.WorkflowStep, item *types.WorkItem, u types.WorkItemUpdate) error {
	su, ok := u.(work.SuccessUpdate)
	if !ok || strings.TrimSpace(su.ScrollID) == "" {
		return nil
	}
	if cmrLimit(job.NumInputGranules, step.SuccessfulCount, s.cfg.CmrMaxPageSize) <= 0 {
		return nil
	}
	cont := &types.WorkItem{
		JobID:               job.ID,
		ServiceID:           item.ServiceID,
		WorkflowStepIndex:   step.StepIndex,
		Status:              types.ItemReady,
		StacCatalogLocation: item.StacCatalogLocation,
		ScrollID:            su.ScrollID,
		SortIndex:           item.SortIndex + 1,
	}
	if _, err := s.items.CreateAll(ctx, tx, []*types.WorkItem{cont}, s.cfg.InsertBatchSize); err != nil {
		return err
	}
	if err := s.userWork.Adjust(ctx, tx, job.ID, item.ServiceID, job.Username, 1, 0); err != nil {
		return err
	}
	s.notify.WorkReady(ctx, item.ServiceID)
	s.log.Debug("Enqueued query continuation",
		"job_id", job.ID, "work_item_id", cont.ID, "sort_index", cont.SortIndex)
	return nil
}

func (s *workUpdateService) Precheck(ctx context.Context, workItemID int64) error {
	item, err := s.items.GetByID(ctx, nil, workItemID)
	if err != nil {
		return err
	}
	if item == nil {
		return work.NewError(work.CodeNotFound, "work.update",
			fmt.Sprintf("work item %d not found", workItemID), nil)
	}
	if snap, ok := s.cache.Get(ctx, item.JobID); ok {
		if snap.Status.Terminal() {
			return work.NewError(work.CodeConflict, "work.update", "job is already in a terminal state", nil)
		}
		return nil
	}
	job, err := s.jobs.GetByID(ctx, nil, item.JobID)
	if err != nil {
		return err
	}
	if job == nil {
		return work.NewError(work.CodeNotFound, "work.update",
			fmt.Sprintf("job %s not found", item.JobID), nil)
	}
	s.cache.Set(ctx, SnapshotOf(job))
	if job.Terminal() {
		return work.NewError(work.CodeConflict, "work.update", "job is already in a terminal state", nil)
	}
	return nil
}

func mibOf(sizes []int64) float64 {
	var total int64
	for _, s := range sizes {
		total += s
	}
	return float64(total) / bytesPerMiB
}

func ceilDiv(n, d int) int {
	if d <= 0 {
		return n
	}
	return (n + d - 1) / d
}
