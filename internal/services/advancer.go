package services

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/harmony-sds/workflow-core/internal/artifact"
	"github.com/harmony-sds/workflow-core/internal/data/repos"
	types "github.com/harmony-sds/workflow-core/internal/domain"
	"github.com/harmony-sds/workflow-core/internal/domain/work"
	"github.com/harmony-sds/workflow-core/internal/platform/logger"
	"github.com/harmony-sds/workflow-core/internal/stac"
)

const catalogFetchConcurrency = 8

// stepAdvancer turns one completed work item into the next step's work.
// Map steps fan out one child per result catalog; aggregate steps wait for
// the whole upstream step and consume everything at once; batched steps
// hand off to the batch engine. All of it runs inside the update's
// transaction so step completion and child visibility are atomic.
type stepAdvancer struct {
	log      *logger.Logger
	cfg      Config
	store    artifact.Store
	items    repos.WorkItemRepo
	steps    repos.WorkflowStepRepo
	userWork repos.UserWorkRepo
	batcher  *batchEngine
	notify   WorkNotifier
}

func newStepAdvancer(
	baseLog *logger.Logger,
	cfg Config,
	store artifact.Store,
	items repos.WorkItemRepo,
	steps repos.WorkflowStepRepo,
	userWork repos.UserWorkRepo,
	batcher *batchEngine,
	notify WorkNotifier,
) *stepAdvancer {
	return &stepAdvancer{
		log:      baseLog.With("service", "StepAdvancer"),
		cfg:      cfg,
		store:    store,
		items:    items,
		steps:    steps,
		userWork: userWork,
		batcher:  batcher,
		notify:   notify,
	}
}

// advance reports whether it created at least one child work item.
func (a *stepAdvancer) advance(
	ctx context.Context,
	tx *gorm.DB,
	job *types.Job,
	step, next *types.WorkflowStep,
	item *types.WorkItem,
	u types.WorkItemUpdate,
	allStepComplete bool,
) (bool, error) {
	switch {
	case next.Kind.Batched():
		return a.batcher.add(ctx, tx, job, step, next, item, u, allStepComplete)
	case next.Kind.Aggregating():
		if !allStepComplete {
			return false, nil
		}
		return a.aggregate(ctx, tx, job, step, next)
	default:
		return a.fanOut(ctx, tx, job, step, next, item, work.UpdateResults(u))
	}
}

func (a *stepAdvancer) fanOut(
	ctx context.Context,
	tx *gorm.DB,
	job *types.Job,
	step, next *types.WorkflowStep,
	item *types.WorkItem,
	results []string,
) (bool, error) {
	if len(results) == 0 {
		return false, nil
	}

	// A single-output producer's child keeps the parent's sort index. The
	// query step produces many outputs per page, so its children claim the
	// next contiguous range instead.
	startSort := item.SortIndex
	if step.Kind.Sequential() || len(results) > 1 {
		max, err := a.items.MaxSortIndex(ctx, tx, job.ID, next.ServiceID)
		if err != nil {
			return false, err
		}
		startSort = max + 1
	}

	rows := make([]*types.WorkItem, 0, len(results))
	for i, url := range results {
		rows = append(rows, &types.WorkItem{
			JobID:               job.ID,
			ServiceID:           next.ServiceID,
			WorkflowStepIndex:   next.StepIndex,
			Status:              types.ItemReady,
			StacCatalogLocation: url,
			SortIndex:           startSort + i,
		})
	}
	if _, err := a.items.CreateAll(ctx, tx, rows, a.cfg.InsertBatchSize); err != nil {
		return false, err
	}
	if err := a.userWork.Adjust(ctx, tx, job.ID, next.ServiceID, job.Username, len(rows), 0); err != nil {
		return false, err
	}
	a.notify.WorkReady(ctx, next.ServiceID)
	a.log.Debug("Fanned out work items",
		"job_id", job.ID, "step_index", next.StepIndex, "count", len(rows), "start_sort", startSort)
	return true, nil
}

// aggregate builds one child consuming every output of the finished step:
// it collects each parent's output catalogs, flattens their item links in
// sort order, pages them, uploads the pages, and emits the child on page 0.
func (a *stepAdvancer) aggregate(
	ctx context.Context,
	tx *gorm.DB,
	job *types.Job,
	step, next *types.WorkflowStep,
) (bool, error) {
	parents, err := a.items.ListByStepAndStatuses(ctx, tx, job.ID, step.StepIndex, types.TerminalWorkItemStatuses)
	if err != nil {
		return false, err
	}
	if len(parents) < step.WorkItemCount {
		return false, work.NewError(work.CodeInvariantViolation, "advance.aggregate",
			fmt.Sprintf("step %d of job %s finished with %d of %d work items on record",
				step.StepIndex, job.ID, len(parents), step.WorkItemCount), nil)
	}

	links, err := a.collectItemLinks(ctx, parents)
	if err != nil {
		return false, err
	}

	child := &types.WorkItem{
		JobID:             job.ID,
		ServiceID:         next.ServiceID,
		WorkflowStepIndex: next.StepIndex,
		Status:            types.ItemReady,
		SortIndex:         0,
	}
	if _, err := a.items.CreateAll(ctx, tx, []*types.WorkItem{child}, a.cfg.InsertBatchSize); err != nil {
		return false, err
	}

	desc := fmt.Sprintf("Aggregation input for job %s step %d", job.ID, next.StepIndex)
	pages := stac.BuildPagedCatalogs(desc, links, a.cfg.AggregateStacCatalogMaxPageSize)
	for i, page := range pages {
		raw, err := json.Marshal(page)
		if err != nil {
			return false, work.Wrap(work.CodeInternal, "advance.aggregate", err)
		}
		if err := a.store.Put(ctx, artifact.OutputsURL(job.ID, child.ID, stac.PageFileName(i)), raw); err != nil {
			return false, err
		}
	}

	catalogURL := artifact.OutputsURL(job.ID, child.ID, stac.PageFileName(0))
	if err := a.items.UpdateFields(ctx, tx, child.ID, map[string]interface{}{
		"stac_catalog_location": catalogURL,
	}); err != nil {
		return false, err
	}
	child.StacCatalogLocation = catalogURL

	if err := a.userWork.Adjust(ctx, tx, job.ID, next.ServiceID, job.Username, 1, 0); err != nil {
		return false, err
	}
	a.notify.WorkReady(ctx, next.ServiceID)
	a.log.Info("Created aggregating work item",
		"job_id", job.ID, "step_index", next.StepIndex, "work_item_id", child.ID,
		"item_count", len(links), "pages", len(pages))
	return true, nil
}

// collectItemLinks gathers the item links of every parent output catalog,
// resolved to absolute URLs, in parent sort order.
func (a *stepAdvancer) collectItemLinks(ctx context.Context, parents []*types.WorkItem) ([]stac.Link, error) {
	var catalogURLs []string
	for _, p := range parents {
		switch p.Status {
		case types.ItemSuccessful, types.ItemWarning:
		default:
			continue
		}
		urls, err := a.outputCatalogURLs(ctx, p)
		if err != nil {
			return nil, err
		}
		catalogURLs = append(catalogURLs, urls...)
	}

	catalogs := make([]*stac.Catalog, len(catalogURLs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(catalogFetchConcurrency)
	for i, url := range catalogURLs {
		i, url := i, url
		g.Go(func() error {
			raw, err := a.store.Get(gctx, url)
			if err != nil {
				return work.NewError(work.CodeInvariantViolation, "advance.aggregate",
					fmt.Sprintf("missing output catalog %q", url), err)
			}
			cat, err := stac.ParseCatalog(raw)
			if err != nil {
				return work.Wrap(work.CodeInvariantViolation, "advance.aggregate", err)
			}
			catalogs[i] = cat
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var links []stac.Link
	for i, cat := range catalogs {
		for _, l := range cat.ItemLinks() {
			l.Href = stac.ResolveHref(catalogURLs[i], l.Href)
			links = append(links, l)
		}
	}
	return links, nil
}

// outputCatalogURLs locates a parent's output catalogs: a multi-output item
// leaves a batch-catalogs.json manifest next to its pages, a single-output
// item just a catalog.json. A warning item may have produced nothing.
func (a *stepAdvancer) outputCatalogURLs(ctx context.Context, parent *types.WorkItem) ([]string, error) {
	manifestURL := artifact.OutputsURL(parent.JobID, parent.ID, "batch-catalogs.json")
	raw, err := a.store.Get(ctx, manifestURL)
	if err == nil {
		var urls []string
		if err := json.Unmarshal(raw, &urls); err != nil {
			return nil, work.NewError(work.CodeInvariantViolation, "advance.aggregate",
				fmt.Sprintf("malformed catalog manifest for work item %d", parent.ID), err)
		}
		for i := range urls {
			urls[i] = stac.ResolveHref(manifestURL, urls[i])
		}
		return urls, nil
	}
	if !artifact.IsNotFound(err) {
		return nil, err
	}

	single := artifact.OutputsURL(parent.JobID, parent.ID, "catalog.json")
	if _, err := a.store.Get(ctx, single); err != nil {
		if artifact.IsNotFound(err) && parent.Status == types.ItemWarning {
			a.log.Warn("Work item finished with a warning and no output catalog, skipping",
				"job_id", parent.JobID, "work_item_id", parent.ID)
			return nil, nil
		}
		if artifact.IsNotFound(err) {
			return nil, work.NewError(work.CodeInvariantViolation, "advance.aggregate",
				fmt.Sprintf("successful work item %d has no output catalog", parent.ID), err)
		}
		return nil, err
	}
	return []string{single}, nil
}
