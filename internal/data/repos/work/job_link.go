package work

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/harmony-sds/workflow-core/internal/domain"
	"github.com/harmony-sds/workflow-core/internal/platform/logger"
)

type JobLinkRepo interface {
	CreateAll(ctx context.Context, tx *gorm.DB, rows []*types.JobLink) ([]*types.JobLink, error)
	ListByJob(ctx context.Context, tx *gorm.DB, jobID uuid.UUID, limit, offset int) ([]*types.JobLink, error)
	CountByJobAndRel(ctx context.Context, tx *gorm.DB, jobID uuid.UUID, rel string) (int64, error)
	ExistsByJobAndHref(ctx context.Context, tx *gorm.DB, jobID uuid.UUID, href string) (bool, error)
}

type jobLinkRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewJobLinkRepo(db *gorm.DB, baseLog *logger.Logger) JobLinkRepo {
	return &jobLinkRepo{db: db, log: baseLog.With("repo", "JobLinkRepo")}
}

func (r *jobLinkRepo) CreateAll(ctx context.Context, tx *gorm.DB, rows []*types.JobLink) ([]*types.JobLink, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return []*types.JobLink{}, nil
	}
	if err := t.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *jobLinkRepo) ListByJob(ctx context.Context, tx *gorm.DB, jobID uuid.UUID, limit, offset int) ([]*types.JobLink, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*types.JobLink
	if jobID == uuid.Nil {
		return out, nil
	}
	q := t.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("created_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *jobLinkRepo) CountByJobAndRel(ctx context.Context, tx *gorm.DB, jobID uuid.UUID, rel string) (int64, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if jobID == uuid.Nil {
		return 0, nil
	}
	q := t.WithContext(ctx).
		Model(&types.JobLink{}).
		Where("job_id = ?", jobID)
	if rel != "" {
		q = q.Where("rel = ?", rel)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *jobLinkRepo) ExistsByJobAndHref(ctx context.Context, tx *gorm.DB, jobID uuid.UUID, href string) (bool, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if jobID == uuid.Nil || href == "" {
		return false, nil
	}
	var count int64
	if err := t.WithContext(ctx).
		Model(&types.JobLink{}).
		Where("job_id = ? AND href = ?", jobID, href).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
