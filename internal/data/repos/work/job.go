package work

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/harmony-sds/workflow-core/internal/domain"
	"github.com/harmony-sds/workflow-core/internal/platform/logger"
)

type JobRepo interface {
	Create(ctx context.Context, tx *gorm.DB, row *types.Job) (*types.Job, error)

	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Job, error)
	// GetByIDForUpdate locks the jobs row. Callers that go on to touch work
	// items must take this lock first.
	GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Job, error)

	ListByUsername(ctx context.Context, tx *gorm.DB, username string, limit, offset int) ([]*types.Job, error)
	ListByStatuses(ctx context.Context, tx *gorm.DB, statuses []types.JobStatus) ([]*types.Job, error)

	Update(ctx context.Context, tx *gorm.DB, row *types.Job) error
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
}

type jobRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewJobRepo(db *gorm.DB, baseLog *logger.Logger) JobRepo {
	return &jobRepo{db: db, log: baseLog.With("repo", "JobRepo")}
}

func (r *jobRepo) Create(ctx context.Context, tx *gorm.DB, row *types.Job) (*types.Job, error) {
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

func (r *jobRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Job, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var out []*types.Job
	if err := t.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *jobRepo) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Job, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var out []*types.Job
	if err := t.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *jobRepo) ListByUsername(ctx context.Context, tx *gorm.DB, username string, limit, offset int) ([]*types.Job, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*types.Job
	if username == "" {
		return out, nil
	}
	q := t.WithContext(ctx).
		Where("username = ?", username).
		Order("created_at DESC")
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

func (r *jobRepo) ListByStatuses(ctx context.Context, tx *gorm.DB, statuses []types.JobStatus) ([]*types.Job, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*types.Job
	if len(statuses) == 0 {
		return out, nil
	}
	if err := t.WithContext(ctx).
		Where("status IN ?", statuses).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *jobRepo) Update(ctx context.Context, tx *gorm.DB, row *types.Job) error {
	t := tx
	if t == nil {
		t = r.db
	}
	if row == nil {
		return nil
	}
	return t.WithContext(ctx).Save(row).Error
}

func (r *jobRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	t := tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return t.WithContext(ctx).
		Model(&types.Job{}).
		Where("id = ?", id).
		Updates(updates).Error
}
