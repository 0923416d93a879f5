package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harmony-sds/workflow-core/internal/data/db"
	"github.com/harmony-sds/workflow-core/internal/data/repos"
	types "github.com/harmony-sds/workflow-core/internal/domain"
	"github.com/harmony-sds/workflow-core/internal/domain/work"
	"github.com/harmony-sds/workflow-core/internal/platform/logger"
)

// JobSubmission is a request to run a named service chain over a source
// catalog. Operation entries overlay each step's configured operation, so
// request-scoped values such as the source collection reach every step.
type JobSubmission struct {
	Username         string         `json:"username" validate:"required"`
	Chain            string         `json:"chain" validate:"required"`
	NumInputGranules int            `json:"numInputGranules" validate:"gt=0"`
	InputCatalogURL  string         `json:"inputCatalogUrl" validate:"required"`
	IgnoreErrors     bool           `json:"ignoreErrors"`
	IsAsync          bool           `json:"isAsync"`
	Operation        map[string]any `json:"operation"`
}

// JobIntakeService turns a submission into a job with its workflow steps
// and the first query work item, all in one transaction.
type JobIntakeService interface {
	Submit(ctx context.Context, sub JobSubmission) (*types.Job, error)
}

type jobIntakeService struct {
	log      *logger.Logger
	cfg      Config
	tx       db.TxRunner
	chains   ChainRegistry
	jobs     repos.JobRepo
	steps    repos.WorkflowStepRepo
	items    repos.WorkItemRepo
	userWork repos.UserWorkRepo
	notify   WorkNotifier
	cache    JobStatusCache
	validate *validator.Validate
}

func NewJobIntakeService(
	baseLog *logger.Logger,
	cfg Config,
	tx db.TxRunner,
	chains ChainRegistry,
	jobs repos.JobRepo,
	steps repos.WorkflowStepRepo,
	items repos.WorkItemRepo,
	userWork repos.UserWorkRepo,
	notify WorkNotifier,
	cache JobStatusCache,
) JobIntakeService {
	return &jobIntakeService{
		log:      baseLog.With("service", "JobIntakeService"),
		cfg:      cfg,
		tx:       tx,
		chains:   chains,
		jobs:     jobs,
		steps:    steps,
		items:    items,
		userWork: userWork,
		notify:   notify,
		cache:    cache,
		validate: validator.New(),
	}
}

func (s *jobIntakeService) Submit(ctx context.Context, sub JobSubmission) (*types.Job, error) {
	if err := s.validate.Struct(&sub); err != nil {
		return nil, work.Wrap(work.CodeValidation, "job.submit", err)
	}
	chain, ok := s.chains.Get(sub.Chain)
	if !ok {
		return nil, work.NewError(work.CodeValidation, "job.submit",
			fmt.Sprintf("unknown service chain %q", sub.Chain), nil)
	}

	status := types.JobAccepted
	message := "the job is being processed"
	if sub.IsAsync && sub.NumInputGranules > s.cfg.PreviewThreshold {
		status = types.JobPreviewing
		message = "the job is generating a preview before processing"
	}
	job := &types.Job{
		ID:               uuid.New(),
		Username:         sub.Username,
		Status:           status,
		Message:          message,
		NumInputGranules: sub.NumInputGranules,
		IgnoreErrors:     sub.IgnoreErrors,
		IsAsync:          sub.IsAsync,
	}

	stepRows, err := s.buildSteps(job, chain, sub.Operation)
	if err != nil {
		return nil, err
	}
	firstServiceID := chain.Steps[0].ServiceID

	err = s.tx.InTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.jobs.Create(ctx, tx, job); err != nil {
			return err
		}
		if _, err := s.steps.CreateAll(ctx, tx, stepRows); err != nil {
			return err
		}
		first := &types.WorkItem{
			JobID:               job.ID,
			ServiceID:           firstServiceID,
			WorkflowStepIndex:   0,
			Status:              types.ItemReady,
			StacCatalogLocation: sub.InputCatalogURL,
			SortIndex:           0,
		}
		if _, err := s.items.CreateAll(ctx, tx, []*types.WorkItem{first}, s.cfg.InsertBatchSize); err != nil {
			return err
		}
		return s.userWork.Adjust(ctx, tx, job.ID, firstServiceID, job.Username, 1, 0)
	})
	if err != nil {
		return nil, err
	}

	s.cache.Set(ctx, SnapshotOf(job))
	s.notify.WorkReady(ctx, firstServiceID)
	s.log.Info("Accepted job",
		"job_id", job.ID, "username", job.Username, "chain", sub.Chain,
		"status", job.Status, "num_input_granules", job.NumInputGranules)
	return job, nil
}

func (s *jobIntakeService) buildSteps(job *types.Job, chain *Chain, overlay map[string]any) ([]*types.WorkflowStep, error) {
	rows := make([]*types.WorkflowStep, 0, len(chain.Steps))
	for i, cs := range chain.Steps {
		kind := cs.StepKind()
		var count int
		switch {
		case kind.Sequential():
			count = ceilDiv(job.NumInputGranules, s.cfg.CmrMaxPageSize)
		case kind.Batched():
			count = 0
		case kind.Aggregating():
			count = 1
		default:
			count = job.NumInputGranules
		}
		op := map[string]any{}
		for k, v := range cs.Operation {
			op[k] = v
		}
		for k, v := range overlay {
			op[k] = v
		}
		opJSON, err := json.Marshal(op)
		if err != nil {
			return nil, work.Wrap(work.CodeInternal, "job.submit", err)
		}
		weight := cs.ProgressWeight
		if weight <= 0 {
			weight = 1
		}
		rows = append(rows, &types.WorkflowStep{
			JobID:               job.ID,
			StepIndex:           i,
			ServiceID:           cs.ServiceID,
			Kind:                kind,
			Operation:           opJSON,
			WorkItemCount:       count,
			MaxBatchInputs:      cs.MaxBatchInputs,
			MaxBatchSizeInBytes: cs.MaxBatchSizeInBytes,
			ProgressWeight:      weight,
		})
	}
	return rows, nil
}
