package app

import (
	"gorm.io/gorm"

	"github.com/harmony-sds/workflow-core/internal/data/repos"
	"github.com/harmony-sds/workflow-core/internal/platform/logger"
)

type Repos struct {
	Job          repos.JobRepo
	WorkflowStep repos.WorkflowStepRepo
	WorkItem     repos.WorkItemRepo
	JobLink      repos.JobLinkRepo
	JobError     repos.JobErrorRepo
	Batch        repos.BatchRepo
	BatchItem    repos.BatchItemRepo
	UserWork     repos.UserWorkRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Job:          repos.NewJobRepo(db, log),
		WorkflowStep: repos.NewWorkflowStepRepo(db, log),
		WorkItem:     repos.NewWorkItemRepo(db, log),
		JobLink:      repos.NewJobLinkRepo(db, log),
		JobError:     repos.NewJobErrorRepo(db, log),
		Batch:        repos.NewBatchRepo(db, log),
		BatchItem:    repos.NewBatchItemRepo(db, log),
		UserWork:     repos.NewUserWorkRepo(db, log),
	}
}
