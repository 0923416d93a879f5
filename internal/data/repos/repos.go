package repos

import (
	"gorm.io/gorm"

	"github.com/harmony-sds/workflow-core/internal/data/repos/work"
	"github.com/harmony-sds/workflow-core/internal/platform/logger"
)

type JobRepo = work.JobRepo
type WorkflowStepRepo = work.WorkflowStepRepo
type WorkItemRepo = work.WorkItemRepo
type JobLinkRepo = work.JobLinkRepo
type JobErrorRepo = work.JobErrorRepo
type BatchRepo = work.BatchRepo
type BatchItemRepo = work.BatchItemRepo
type UserWorkRepo = work.UserWorkRepo

type BatchCounts = work.BatchCounts

func NewJobRepo(db *gorm.DB, baseLog *logger.Logger) JobRepo { return work.NewJobRepo(db, baseLog) }
func NewWorkflowStepRepo(db *gorm.DB, baseLog *logger.Logger) WorkflowStepRepo {
	return work.NewWorkflowStepRepo(db, baseLog)
}
func NewWorkItemRepo(db *gorm.DB, baseLog *logger.Logger) WorkItemRepo {
	return work.NewWorkItemRepo(db, baseLog)
}
func NewJobLinkRepo(db *gorm.DB, baseLog *logger.Logger) JobLinkRepo {
	return work.NewJobLinkRepo(db, baseLog)
}
func NewJobErrorRepo(db *gorm.DB, baseLog *logger.Logger) JobErrorRepo {
	return work.NewJobErrorRepo(db, baseLog)
}
func NewBatchRepo(db *gorm.DB, baseLog *logger.Logger) BatchRepo {
	return work.NewBatchRepo(db, baseLog)
}
func NewBatchItemRepo(db *gorm.DB, baseLog *logger.Logger) BatchItemRepo {
	return work.NewBatchItemRepo(db, baseLog)
}
func NewUserWorkRepo(db *gorm.DB, baseLog *logger.Logger) UserWorkRepo {
	return work.NewUserWorkRepo(db, baseLog)
}
