package work

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/harmony-sds/workflow-core/internal/domain"
	"github.com/harmony-sds/workflow-core/internal/platform/logger"
)

type BatchRepo interface {
	Create(ctx context.Context, tx *gorm.DB, row *types.Batch) (*types.Batch, error)
	// GetCurrent returns the batch with the highest batchID for the scope, or
	// nil when none exists yet.
	GetCurrent(ctx context.Context, tx *gorm.DB, jobID uuid.UUID, serviceID string) (*types.Batch, error)
	ListByScope(ctx context.Context, tx *gorm.DB, jobID uuid.UUID, serviceID string) ([]*types.Batch, error)
	MarkSealed(ctx context.Context, tx *gorm.DB, jobID uuid.UUID, serviceID string, batchID int) error
}

type batchRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBatchRepo(db *gorm.DB, baseLog *logger.Logger) BatchRepo {
	return &batchRepo{db: db, log: baseLog.With("repo", "BatchRepo")}
}

func (r *batchRepo) Create(ctx context.Context, tx *gorm.DB, row *types.Batch) (*types.Batch, error) {
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

func (r *batchRepo) GetCurrent(ctx context.Context, tx *gorm.DB, jobID uuid.UUID, serviceID string) (*types.Batch, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if jobID == uuid.Nil || serviceID == "" {
		return nil, nil
	}
	var out []*types.Batch
	if err := t.WithContext(ctx).
		Where("job_id = ? AND service_id = ?", jobID, serviceID).
		Order("batch_id DESC").
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *batchRepo) ListByScope(ctx context.Context, tx *gorm.DB, jobID uuid.UUID, serviceID string) ([]*types.Batch, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*types.Batch
	if jobID == uuid.Nil || serviceID == "" {
		return out, nil
	}
	if err := t.WithContext(ctx).
		Where("job_id = ? AND service_id = ?", jobID, serviceID).
		Order("batch_id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *batchRepo) MarkSealed(ctx context.Context, tx *gorm.DB, jobID uuid.UUID, serviceID string, batchID int) error {
	t := tx
	if t == nil {
		t = r.db
	}
	if jobID == uuid.Nil || serviceID == "" {
		return nil
	}
	return t.WithContext(ctx).
		Model(&types.Batch{}).
		Where("job_id = ? AND service_id = ? AND batch_id = ?", jobID, serviceID, batchID).
		Updates(map[string]interface{}{
			"is_sealed":  true,
			"updated_at": time.Now().UTC(),
		}).Error
}
