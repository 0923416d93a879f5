package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harmony-sds/workflow-core/internal/data/db"
	"github.com/harmony-sds/workflow-core/internal/data/repos"
	types "github.com/harmony-sds/workflow-core/internal/domain"
	"github.com/harmony-sds/workflow-core/internal/domain/work"
	"github.com/harmony-sds/workflow-core/internal/platform/logger"
)

const defaultLinkPageSize = 2000

// JobDetail is the full read model for one job.
type JobDetail struct {
	Job    *types.Job        `json:"job"`
	Links  []*types.JobLink  `json:"links"`
	Errors []*types.JobError `json:"errors"`
}

// JobControlService covers the user-facing lifecycle verbs and reads.
// Pause and cancel stop work mid-flight; resume rebuilds the scheduling
// counters from the surviving ready items.
type JobControlService interface {
	GetStatus(ctx context.Context, jobID uuid.UUID) (JobStatusSnapshot, error)
	Get(ctx context.Context, jobID uuid.UUID, linkLimit, linkOffset int) (*JobDetail, error)
	ListForUser(ctx context.Context, username string) ([]*types.Job, error)
	Cancel(ctx context.Context, jobID uuid.UUID, message string) (*types.Job, error)
	Pause(ctx context.Context, jobID uuid.UUID) (*types.Job, error)
	Resume(ctx context.Context, jobID uuid.UUID) (*types.Job, error)
}

type jobControlService struct {
	log      *logger.Logger
	tx       db.TxRunner
	jobs     repos.JobRepo
	items    repos.WorkItemRepo
	links    repos.JobLinkRepo
	jobErrs  repos.JobErrorRepo
	userWork repos.UserWorkRepo
	notify   WorkNotifier
	cache    JobStatusCache
}

func NewJobControlService(
	baseLog *logger.Logger,
	tx db.TxRunner,
	jobs repos.JobRepo,
	items repos.WorkItemRepo,
	links repos.JobLinkRepo,
	jobErrs repos.JobErrorRepo,
	userWork repos.UserWorkRepo,
	notify WorkNotifier,
	cache JobStatusCache,
) JobControlService {
	return &jobControlService{
		log:      baseLog.With("service", "JobControlService"),
		tx:       tx,
		jobs:     jobs,
		items:    items,
		links:    links,
		jobErrs:  jobErrs,
		userWork: userWork,
		notify:   notify,
		cache:    cache,
	}
}

func (s *jobControlService) GetStatus(ctx context.Context, jobID uuid.UUID) (JobStatusSnapshot, error) {
	if snap, ok := s.cache.Get(ctx, jobID); ok {
		return snap, nil
	}
	job, err := s.jobs.GetByID(ctx, nil, jobID)
	if err != nil {
		return JobStatusSnapshot{}, err
	}
	if job == nil {
		return JobStatusSnapshot{}, work.NewError(work.CodeNotFound, "job.status",
			fmt.Sprintf("job %s not found", jobID), nil)
	}
	snap := SnapshotOf(job)
	s.cache.Set(ctx, snap)
	return snap, nil
}

func (s *jobControlService) Get(ctx context.Context, jobID uuid.UUID, linkLimit, linkOffset int) (*JobDetail, error) {
	job, err := s.jobs.GetByID(ctx, nil, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, work.NewError(work.CodeNotFound, "job.get",
			fmt.Sprintf("job %s not found", jobID), nil)
	}
	if linkLimit <= 0 {
		linkLimit = defaultLinkPageSize
	}
	if linkOffset < 0 {
		linkOffset = 0
	}
	links, err := s.links.ListByJob(ctx, nil, jobID, linkLimit, linkOffset)
	if err != nil {
		return nil, err
	}
	jobErrs, err := s.jobErrs.ListByJob(ctx, nil, jobID)
	if err != nil {
		return nil, err
	}
	return &JobDetail{Job: job, Links: links, Errors: jobErrs}, nil
}

func (s *jobControlService) ListForUser(ctx context.Context, username string) ([]*types.Job, error) {
	return s.jobs.ListByUsername(ctx, nil, username, defaultLinkPageSize, 0)
}

func (s *jobControlService) Cancel(ctx context.Context, jobID uuid.UUID, message string) (*types.Job, error) {
	if strings.TrimSpace(message) == "" {
		message = "the job was canceled"
	}
	var out *types.Job
	err := s.tx.InTx(ctx, func(tx *gorm.DB) error {
		job, err := s.lockNonTerminal(ctx, tx, jobID, "job.cancel")
		if err != nil {
			return err
		}
		job.Status = types.JobCanceled
		job.Message = message
		canceled, err := s.items.CancelNonTerminalByJob(ctx, tx, job.ID)
		if err != nil {
			return err
		}
		if err := s.userWork.DeleteByJob(ctx, tx, job.ID); err != nil {
			return err
		}
		if err := s.jobs.Update(ctx, tx, job); err != nil {
			return err
		}
		s.log.Info("Canceled job", "job_id", job.ID, "work_items_canceled", canceled)
		out = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, SnapshotOf(out))
	return out, nil
}

func (s *jobControlService) Pause(ctx context.Context, jobID uuid.UUID) (*types.Job, error) {
	var out *types.Job
	err := s.tx.InTx(ctx, func(tx *gorm.DB) error {
		job, err := s.lockNonTerminal(ctx, tx, jobID, "job.pause")
		if err != nil {
			return err
		}
		if job.Status == types.JobPaused {
			out = job
			return nil
		}
		if !job.Status.Dispatchable() {
			return work.NewError(work.CodeConflict, "job.pause",
				fmt.Sprintf("job cannot be paused from status %q", job.Status), nil)
		}
		job.Status = types.JobPaused
		job.Message = "the job is paused; resume to continue processing"
		if err := s.userWork.ZeroByJob(ctx, tx, job.ID); err != nil {
			return err
		}
		if err := s.jobs.Update(ctx, tx, job); err != nil {
			return err
		}
		s.log.Info("Paused job", "job_id", job.ID)
		out = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, SnapshotOf(out))
	return out, nil
}

func (s *jobControlService) Resume(ctx context.Context, jobID uuid.UUID) (*types.Job, error) {
	var out *types.Job
	var services []string
	err := s.tx.InTx(ctx, func(tx *gorm.DB) error {
		job, err := s.lockNonTerminal(ctx, tx, jobID, "job.resume")
		if err != nil {
			return err
		}
		if job.Status != types.JobPaused && job.Status != types.JobPreviewing {
			return work.NewError(work.CodeConflict, "job.resume",
				fmt.Sprintf("job cannot be resumed from status %q", job.Status), nil)
		}
		errCount, err := s.jobErrs.CountByJob(ctx, tx, job.ID)
		if err != nil {
			return err
		}
		job.Status = types.JobRunning
		if errCount > 0 {
			job.Status = types.JobRunningWithErrors
		}
		job.Message = "the job is being processed"

		// Rebuild scheduling counters from what is actually still ready.
		if err := s.userWork.ZeroByJob(ctx, tx, job.ID); err != nil {
			return err
		}
		counts, err := s.items.ReadyCountsByService(ctx, tx, job.ID)
		if err != nil {
			return err
		}
		services = services[:0]
		for serviceID, ready := range counts {
			if err := s.userWork.Adjust(ctx, tx, job.ID, serviceID, job.Username, ready, 0); err != nil {
				return err
			}
			services = append(services, serviceID)
		}
		if err := s.jobs.Update(ctx, tx, job); err != nil {
			return err
		}
		s.log.Info("Resumed job", "job_id", job.ID, "status", job.Status, "services", len(services))
		out = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, SnapshotOf(out))
	for _, serviceID := range services {
		s.notify.WorkReady(ctx, serviceID)
	}
	return out, nil
}

func (s *jobControlService) lockNonTerminal(ctx context.Context, tx *gorm.DB, jobID uuid.UUID, op string) (*types.Job, error) {
	job, err := s.jobs.GetByIDForUpdate(ctx, tx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, work.NewError(work.CodeNotFound, op, fmt.Sprintf("job %s not found", jobID), nil)
	}
	if job.Terminal() {
		return nil, work.NewError(work.CodeConflict, op, "job is already in a terminal state", nil)
	}
	return job, nil
}
