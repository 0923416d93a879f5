package work

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/harmony-sds/workflow-core/internal/domain"
	"github.com/harmony-sds/workflow-core/internal/platform/logger"
)

type JobErrorRepo interface {
	Create(ctx context.Context, tx *gorm.DB, row *types.JobError) (*types.JobError, error)
	ListByJob(ctx context.Context, tx *gorm.DB, jobID uuid.UUID) ([]*types.JobError, error)
	CountByJob(ctx context.Context, tx *gorm.DB, jobID uuid.UUID) (int64, error)
}

type jobErrorRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewJobErrorRepo(db *gorm.DB, baseLog *logger.Logger) JobErrorRepo {
	return &jobErrorRepo{db: db, log: baseLog.With("repo", "JobErrorRepo")}
}

func (r *jobErrorRepo) Create(ctx context.Context, tx *gorm.DB, row *types.JobError) (*types.JobError, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if row == nil {
		return nil, nil
	}
	if err := t.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *jobErrorRepo) ListByJob(ctx context.Context, tx *gorm.DB, jobID uuid.UUID) ([]*types.JobError, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*types.JobError
	if jobID == uuid.Nil {
		return out, nil
	}
	if err := t.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("created_at ASC, id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *jobErrorRepo) CountByJob(ctx context.Context, tx *gorm.DB, jobID uuid.UUID) (int64, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if jobID == uuid.Nil {
		return 0, nil
	}
	var count int64
	if err := t.WithContext(ctx).
		Model(&types.JobError{}).
		Where("job_id = ?", jobID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
