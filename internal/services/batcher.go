package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harmony-sds/workflow-core/internal/artifact"
	"github.com/harmony-sds/workflow-core/internal/data/repos"
	types "github.com/harmony-sds/workflow-core/internal/domain"
	"github.com/harmony-sds/workflow-core/internal/domain/work"
	"github.com/harmony-sds/workflow-core/internal/platform/logger"
	"github.com/harmony-sds/workflow-core/internal/stac"
)

// batchEngine groups the stream-ordered outputs of one step into count- and
// byte-bounded batches for the aggregating step after it. Items enter in any
// order (parallel upstream workers) but are assigned strictly by sort index;
// a gap in the stream stops assignment until the missing item arrives.
// Failed or empty parents contribute placeholder rows so the stream never
// has permanent gaps.
type batchEngine struct {
	log        *logger.Logger
	cfg        Config
	store      artifact.Store
	items      repos.WorkItemRepo
	steps      repos.WorkflowStepRepo
	batches    repos.BatchRepo
	batchItems repos.BatchItemRepo
	userWork   repos.UserWorkRepo
	notify     WorkNotifier
}

func newBatchEngine(
	baseLog *logger.Logger,
	cfg Config,
	store artifact.Store,
	items repos.WorkItemRepo,
	steps repos.WorkflowStepRepo,
	batches repos.BatchRepo,
	batchItems repos.BatchItemRepo,
	userWork repos.UserWorkRepo,
	notify WorkNotifier,
) *batchEngine {
	return &batchEngine{
		log:        baseLog.With("service", "BatchEngine"),
		cfg:        cfg,
		store:      store,
		items:      items,
		steps:      steps,
		batches:    batches,
		batchItems: batchItems,
		userWork:   userWork,
		notify:     notify,
	}
}

// add ingests one parent update, assigns whatever has become contiguous,
// and seals batches as they fill. Reports whether any child was emitted.
func (e *batchEngine) add(
	ctx context.Context,
	tx *gorm.DB,
	job *types.Job,
	step, next *types.WorkflowStep,
	item *types.WorkItem,
	u types.WorkItemUpdate,
	allStepComplete bool,
) (bool, error) {
	if err := e.insertBatchItems(ctx, tx, job, step, next, item, u); err != nil {
		return false, err
	}

	pending, err := e.batchItems.ListPendingForUpdate(ctx, tx, job.ID, next.ServiceID)
	if err != nil {
		return false, err
	}

	cur, err := e.batches.GetCurrent(ctx, tx, job.ID, next.ServiceID)
	if err != nil {
		return false, err
	}
	if cur == nil {
		cur, err = e.batches.Create(ctx, tx, &types.Batch{
			JobID:     job.ID,
			ServiceID: next.ServiceID,
			BatchID:   0,
		})
		if err != nil {
			return false, err
		}
	}

	counts, err := e.batchItems.CountsForBatch(ctx, tx, job.ID, next.ServiceID, cur.BatchID)
	if err != nil {
		return false, err
	}
	curMax, curHas, err := e.batchItems.MaxSortIndexInBatch(ctx, tx, job.ID, next.ServiceID, cur.BatchID)
	if err != nil {
		return false, err
	}

	maxItems := int64(next.EffectiveMaxBatchInputs(e.cfg.MaxBatchInputs))
	maxBytes := next.EffectiveMaxBatchBytes(e.cfg.MaxBatchSizeInBytes)

	childCreated := false
	drained := true
	for _, b := range pending {
		nextSort, err := e.nextSortIndex(ctx, tx, job, next, cur, curHas, curMax)
		if err != nil {
			return childCreated, err
		}
		if b.SortIndex != nextSort {
			// Later items are not yet contiguous with the current batch.
			drained = false
			break
		}

		fits := counts.TotalBytes+b.ItemSize <= maxBytes &&
			(b.Placeholder() || counts.ItemCount+1 <= maxItems)
		if !fits && curHas {
			created, err := e.seal(ctx, tx, job, next, cur)
			if err != nil {
				return childCreated, err
			}
			childCreated = childCreated || created
			cur, err = e.batches.Create(ctx, tx, &types.Batch{
				JobID:     job.ID,
				ServiceID: next.ServiceID,
				BatchID:   cur.BatchID + 1,
			})
			if err != nil {
				return childCreated, err
			}
			counts = repos.BatchCounts{}
			curHas, curMax = false, 0
		}

		// An item larger than the byte cap lands alone in a fresh batch and
		// is sealed right below.
		if err := e.batchItems.AssignToBatch(ctx, tx, b.ID, cur.BatchID); err != nil {
			return childCreated, err
		}
		curHas, curMax = true, b.SortIndex
		if !b.Placeholder() {
			counts.ItemCount++
			counts.TotalBytes += b.ItemSize
		}

		if counts.ItemCount >= maxItems || counts.TotalBytes >= maxBytes {
			created, err := e.seal(ctx, tx, job, next, cur)
			if err != nil {
				return childCreated, err
			}
			childCreated = childCreated || created
			cur, err = e.batches.Create(ctx, tx, &types.Batch{
				JobID:     job.ID,
				ServiceID: next.ServiceID,
				BatchID:   cur.BatchID + 1,
			})
			if err != nil {
				return childCreated, err
			}
			counts = repos.BatchCounts{}
			curHas, curMax = false, 0
		}
	}

	// The stream is whole once the upstream step completes; the last batch
	// will never fill on its own, so seal it now.
	if allStepComplete && drained && curHas {
		created, err := e.seal(ctx, tx, job, next, cur)
		if err != nil {
			return childCreated, err
		}
		childCreated = childCreated || created
	}
	return childCreated, nil
}

func (e *batchEngine) insertBatchItems(
	ctx context.Context,
	tx *gorm.DB,
	job *types.Job,
	step, next *types.WorkflowStep,
	item *types.WorkItem,
	u types.WorkItemUpdate,
) error {
	results := work.UpdateResults(u)
	var sizes []int64
	if su, ok := u.(work.SuccessUpdate); ok {
		sizes = su.OutputItemSizes
	}

	var rows []*types.BatchItem
	switch {
	case item.Status == types.ItemFailed || len(results) == 0:
		// The placeholder keeps the failed or empty parent's slot so the
		// stream stays contiguous; it carries no payload and no weight.
		rows = append(rows, &types.BatchItem{
			JobID:     job.ID,
			ServiceID: next.ServiceID,
			SortIndex: item.SortIndex,
		})
	case step.Kind.Sequential() || len(results) > 1:
		max, err := e.batchItems.MaxSortIndex(ctx, tx, job.ID, next.ServiceID)
		if err != nil {
			return err
		}
		for i, url := range results {
			rows = append(rows, &types.BatchItem{
				JobID:       job.ID,
				ServiceID:   next.ServiceID,
				StacItemURL: url,
				ItemSize:    sizeAt(sizes, i),
				SortIndex:   max + 1 + i,
			})
		}
	default:
		rows = append(rows, &types.BatchItem{
			JobID:       job.ID,
			ServiceID:   next.ServiceID,
			StacItemURL: results[0],
			ItemSize:    sizeAt(sizes, 0),
			SortIndex:   item.SortIndex,
		})
	}
	_, err := e.batchItems.CreateAll(ctx, tx, rows)
	return err
}

func (e *batchEngine) nextSortIndex(
	ctx context.Context,
	tx *gorm.DB,
	job *types.Job,
	next *types.WorkflowStep,
	cur *types.Batch,
	curHas bool,
	curMax int,
) (int, error) {
	if curHas {
		return curMax + 1, nil
	}
	if cur.BatchID > 0 {
		prevMax, prevHas, err := e.batchItems.MaxSortIndexInBatch(ctx, tx, job.ID, next.ServiceID, cur.BatchID-1)
		if err != nil {
			return 0, err
		}
		if !prevHas {
			return 0, work.NewError(work.CodeInvariantViolation, "batch.assign",
				fmt.Sprintf("batch %d for job %s service %s is empty", cur.BatchID-1, job.ID, next.ServiceID), nil)
		}
		return prevMax + 1, nil
	}
	return 0, nil
}

// seal closes the batch: it writes the aggregation catalog, emits the next
// child work item, and bumps the step's expected count. A batch holding only
// placeholders is discarded instead; no service should run on an empty
// input.
func (e *batchEngine) seal(
	ctx context.Context,
	tx *gorm.DB,
	job *types.Job,
	next *types.WorkflowStep,
	cur *types.Batch,
) (bool, error) {
	assigned, err := e.batchItems.ListByBatch(ctx, tx, job.ID, next.ServiceID, cur.BatchID)
	if err != nil {
		return false, err
	}
	var data []*types.BatchItem
	for _, b := range assigned {
		if !b.Placeholder() {
			data = append(data, b)
		}
	}
	if len(data) == 0 {
		if err := e.batches.MarkSealed(ctx, tx, job.ID, next.ServiceID, cur.BatchID); err != nil {
			return false, err
		}
		e.log.Warn("Discarding batch containing only placeholder items",
			"job_id", job.ID, "service_id", next.ServiceID, "batch_id", cur.BatchID)
		return false, nil
	}

	cat := stac.NewCatalog(uuid.New().String(),
		fmt.Sprintf("Batch %d input for job %s", cur.BatchID, job.ID))
	cat.Links = append(cat.Links, stac.Link{Href: e.sourceHref(job, next), Rel: stac.RelHarmonySource})
	for _, b := range data {
		cat.Links = append(cat.Links, stac.Link{Href: b.StacItemURL, Rel: stac.RelItem})
	}
	raw, err := json.Marshal(cat)
	if err != nil {
		return false, work.Wrap(work.CodeInternal, "batch.seal", err)
	}
	catalogURL := artifact.BatchCatalogURL(e.cfg.ArtifactBucket, job.ID, next.StepIndex, cur.BatchID)
	if err := e.store.Put(ctx, catalogURL, raw); err != nil {
		return false, err
	}

	// A discarded all-placeholder batch consumes a batch ID without emitting
	// a child, so children number off the previous child, not the batch.
	maxSort, err := e.items.MaxSortIndex(ctx, tx, job.ID, next.ServiceID)
	if err != nil {
		return false, err
	}
	child := &types.WorkItem{
		JobID:               job.ID,
		ServiceID:           next.ServiceID,
		WorkflowStepIndex:   next.StepIndex,
		Status:              types.ItemReady,
		StacCatalogLocation: catalogURL,
		SortIndex:           maxSort + 1,
	}
	if _, err := e.items.CreateAll(ctx, tx, []*types.WorkItem{child}, e.cfg.InsertBatchSize); err != nil {
		return false, err
	}
	if err := e.steps.AddWorkItemCount(ctx, tx, job.ID, next.StepIndex, 1); err != nil {
		return false, err
	}
	next.WorkItemCount++
	if err := e.batches.MarkSealed(ctx, tx, job.ID, next.ServiceID, cur.BatchID); err != nil {
		return false, err
	}
	if err := e.userWork.Adjust(ctx, tx, job.ID, next.ServiceID, job.Username, 1, 0); err != nil {
		return false, err
	}
	e.notify.WorkReady(ctx, next.ServiceID)
	e.log.Info("Sealed batch",
		"job_id", job.ID, "service_id", next.ServiceID, "batch_id", cur.BatchID,
		"item_count", len(data), "work_item_id", child.ID)
	return true, nil
}

// sourceHref names the collection the batch was derived from, falling back
// to the job ID when the operation does not declare one.
func (e *batchEngine) sourceHref(job *types.Job, next *types.WorkflowStep) string {
	var op struct {
		Sources []struct {
			Collection string `json:"collection"`
		} `json:"sources"`
	}
	if len(next.Operation) > 0 && json.Unmarshal(next.Operation, &op) == nil {
		if len(op.Sources) > 0 && op.Sources[0].Collection != "" {
			return op.Sources[0].Collection
		}
	}
	return job.ID.String()
}

func sizeAt(sizes []int64, i int) int64 {
	if i < len(sizes) {
		return sizes[i]
	}
	return 0
}
