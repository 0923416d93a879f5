package services

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/harmony-sds/workflow-core/internal/artifact"
	"github.com/harmony-sds/workflow-core/internal/data/repos"
	types "github.com/harmony-sds/workflow-core/internal/domain"
	"github.com/harmony-sds/workflow-core/internal/domain/work"
	"github.com/harmony-sds/workflow-core/internal/platform/logger"
	"github.com/harmony-sds/workflow-core/internal/stac"
)

// RelData marks a job link pointing at a result artifact.
const RelData = "data"

// jobCompleter detects end-of-pipeline: it harvests result links from leaf
// items, advances job progress, computes the final status, and sweeps
// whatever is still outstanding when the job terminates. It mutates the
// locked job row in memory; the caller persists it.
type jobCompleter struct {
	log      *logger.Logger
	cfg      Config
	store    artifact.Store
	steps    repos.WorkflowStepRepo
	items    repos.WorkItemRepo
	links    repos.JobLinkRepo
	jobErrs  repos.JobErrorRepo
	userWork repos.UserWorkRepo
}

func newJobCompleter(
	baseLog *logger.Logger,
	cfg Config,
	store artifact.Store,
	steps repos.WorkflowStepRepo,
	items repos.WorkItemRepo,
	links repos.JobLinkRepo,
	jobErrs repos.JobErrorRepo,
	userWork repos.UserWorkRepo,
) *jobCompleter {
	return &jobCompleter{
		log:      baseLog.With("service", "JobCompleter"),
		cfg:      cfg,
		store:    store,
		steps:    steps,
		items:    items,
		links:    links,
		jobErrs:  jobErrs,
		userWork: userWork,
	}
}

func (c *jobCompleter) complete(
	ctx context.Context,
	tx *gorm.DB,
	job *types.Job,
	step, next *types.WorkflowStep,
	item *types.WorkItem,
	u types.WorkItemUpdate,
	allStepComplete bool,
) error {
	// Leaf outputs become user-visible result links.
	if next == nil && item.Status != types.ItemFailed {
		if results := work.UpdateResults(u); len(results) > 0 {
			if err := c.appendLinks(ctx, tx, job, results); err != nil {
				return err
			}
		}
	}

	job.BatchesCompleted++
	allSteps, err := c.steps.ListByJob(ctx, tx, job.ID)
	if err != nil {
		return err
	}
	job.Progress = computeProgress(allSteps)

	if allStepComplete && (next == nil || next.WorkItemCount == 0) {
		errCount, err := c.jobErrs.CountByJob(ctx, tx, job.ID)
		if err != nil {
			return err
		}
		if errCount == 0 {
			job.Status = types.JobSuccessful
		} else {
			dataLinks, err := c.links.CountByJobAndRel(ctx, tx, job.ID, RelData)
			if err != nil {
				return err
			}
			if dataLinks > 0 {
				job.Status = types.JobCompleteWithErrors
				job.Message = "the job completed with errors; see the errors field for details"
			} else {
				job.Status = types.JobFailed
				job.Message = "the job failed; see the errors field for details"
			}
		}
		return c.terminalTransition(ctx, tx, job)
	}

	// A previewing job pauses after its first completed work rather than
	// running ahead of user review.
	if job.Status == types.JobPreviewing && job.IsAsync {
		job.Status = types.JobPaused
		job.Message = "job paused for preview; resume to continue processing"
		if err := c.userWork.ZeroByJob(ctx, tx, job.ID); err != nil {
			return err
		}
		c.log.Info("Paused previewing job", "job_id", job.ID, "progress", job.Progress)
	}
	return nil
}

// terminalTransition runs the bookkeeping of entering the absorbing set:
// outstanding items are canceled and the scheduler counters dropped.
// Progress pins to 100 only for the non-failed outcomes.
func (c *jobCompleter) terminalTransition(ctx context.Context, tx *gorm.DB, job *types.Job) error {
	swept, err := c.items.CancelNonTerminalByJob(ctx, tx, job.ID)
	if err != nil {
		return err
	}
	if err := c.userWork.DeleteByJob(ctx, tx, job.ID); err != nil {
		return err
	}
	if job.Status == types.JobSuccessful || job.Status == types.JobCompleteWithErrors {
		job.Progress = 100
	}
	c.log.Info("Job reached terminal state",
		"job_id", job.ID, "status", job.Status, "swept_items", swept)
	return nil
}

func (c *jobCompleter) appendLinks(ctx context.Context, tx *gorm.DB, job *types.Job, results []string) error {
	var rows []*types.JobLink
	for _, catURL := range results {
		raw, err := c.store.Get(ctx, catURL)
		if err != nil {
			if artifact.IsNotFound(err) {
				return work.NewError(work.CodeInvariantViolation, "complete.links",
					fmt.Sprintf("missing result catalog %q", catURL), err)
			}
			return err
		}
		cat, err := stac.ParseCatalog(raw)
		if err != nil {
			return work.Wrap(work.CodeInvariantViolation, "complete.links", err)
		}
		for _, l := range cat.ItemLinks() {
			itemURL := stac.ResolveHref(catURL, l.Href)
			raw, err := c.store.Get(ctx, itemURL)
			if err != nil {
				if artifact.IsNotFound(err) {
					return work.NewError(work.CodeInvariantViolation, "complete.links",
						fmt.Sprintf("missing result item %q", itemURL), err)
				}
				return err
			}
			it, err := stac.ParseItem(raw)
			if err != nil {
				return work.Wrap(work.CodeInvariantViolation, "complete.links", err)
			}
			asset, ok := it.DataAsset()
			if !ok {
				continue
			}
			exists, err := c.links.ExistsByJobAndHref(ctx, tx, job.ID, asset.Href)
			if err != nil {
				return err
			}
			if exists {
				continue
			}
			link := &types.JobLink{
				JobID: job.ID,
				Href:  asset.Href,
				Rel:   RelData,
				Type:  asset.Type,
				Title: asset.Title,
			}
			if len(it.Bbox) > 0 {
				if b, err := json.Marshal(it.Bbox); err == nil {
					link.Bbox = datatypes.JSON(b)
				}
			}
			link.TemporalStart, link.TemporalEnd = it.Properties.Temporal()
			rows = append(rows, link)
		}
	}
	if len(rows) == 0 {
		return nil
	}
	if _, err := c.links.CreateAll(ctx, tx, rows); err != nil {
		return err
	}
	c.log.Debug("Appended job links", "job_id", job.ID, "count", len(rows))
	return nil
}

// computeProgress weights each step's completion fraction by its progress
// weight. The result caps at 99; only the terminal transition claims 100.
func computeProgress(steps []*types.WorkflowStep) int {
	var total, done float64
	for _, st := range steps {
		w := st.ProgressWeight
		if w <= 0 {
			w = 1
		}
		total += w
		switch {
		case st.IsComplete:
			done += w
		case st.WorkItemCount > 0:
			frac := float64(st.CompletedCount) / float64(st.WorkItemCount)
			if frac > 1 {
				frac = 1
			}
			done += w * frac
		}
	}
	if total == 0 {
		return 0
	}
	p := int(done / total * 100)
	if p > 99 {
		p = 99
	}
	if p < 0 {
		p = 0
	}
	return p
}
