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

// BatchCounts summarizes the load of one batch. Placeholder items are
// excluded from ItemCount but their rows still anchor the sort order.
type BatchCounts struct {
	ItemCount  int64
	TotalBytes int64
}

type BatchItemRepo interface {
	CreateAll(ctx context.Context, tx *gorm.DB, rows []*types.BatchItem) ([]*types.BatchItem, error)

	// ListPendingForUpdate returns unassigned items for the scope in sort
	// order, locked so concurrent updates cannot both extend the current
	// batch.
	ListPendingForUpdate(ctx context.Context, tx *gorm.DB, jobID uuid.UUID, serviceID string) ([]*types.BatchItem, error)
	ListByBatch(ctx context.Context, tx *gorm.DB, jobID uuid.UUID, serviceID string, batchID int) ([]*types.BatchItem, error)

	AssignToBatch(ctx context.Context, tx *gorm.DB, id int64, batchID int) error

	// MaxSortIndexInBatch reports the highest assigned sortIndex in a batch
	// and whether the batch has any items at all.
	MaxSortIndexInBatch(ctx context.Context, tx *gorm.DB, jobID uuid.UUID, serviceID string, batchID int) (int, bool, error)
	CountsForBatch(ctx context.Context, tx *gorm.DB, jobID uuid.UUID, serviceID string, batchID int) (BatchCounts, error)

	// MaxSortIndex returns the highest sortIndex across every item in the
	// scope, assigned or not, or -1 when the scope is empty.
	MaxSortIndex(ctx context.Context, tx *gorm.DB, jobID uuid.UUID, serviceID string) (int, error)
}

type batchItemRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBatchItemRepo(db *gorm.DB, baseLog *logger.Logger) BatchItemRepo {
	return &batchItemRepo{db: db, log: baseLog.With("repo", "BatchItemRepo")}
}

func (r *batchItemRepo) CreateAll(ctx context.Context, tx *gorm.DB, rows []*types.BatchItem) ([]*types.BatchItem, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return []*types.BatchItem{}, nil
	}
	if err := t.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *batchItemRepo) ListPendingForUpdate(ctx context.Context, tx *gorm.DB, jobID uuid.UUID, serviceID string) ([]*types.BatchItem, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*types.BatchItem
	if jobID == uuid.Nil || serviceID == "" {
		return out, nil
	}
	if err := t.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("job_id = ? AND service_id = ? AND batch_id IS NULL", jobID, serviceID).
		Order("sort_index ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *batchItemRepo) ListByBatch(ctx context.Context, tx *gorm.DB, jobID uuid.UUID, serviceID string, batchID int) ([]*types.BatchItem, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*types.BatchItem
	if jobID == uuid.Nil || serviceID == "" {
		return out, nil
	}
	if err := t.WithContext(ctx).
		Where("job_id = ? AND service_id = ? AND batch_id = ?", jobID, serviceID, batchID).
		Order("sort_index ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *batchItemRepo) AssignToBatch(ctx context.Context, tx *gorm.DB, id int64, batchID int) error {
	t := tx
	if t == nil {
		t = r.db
	}
	if id <= 0 {
		return nil
	}
	return t.WithContext(ctx).
		Model(&types.BatchItem{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"batch_id":   batchID,
			"updated_at": time.Now().UTC(),
		}).Error
}

func (r *batchItemRepo) MaxSortIndexInBatch(ctx context.Context, tx *gorm.DB, jobID uuid.UUID, serviceID string, batchID int) (int, bool, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if jobID == uuid.Nil || serviceID == "" {
		return -1, false, nil
	}
	var row struct {
		Max   *int
		Total int64
	}
	err := t.WithContext(ctx).
		Model(&types.BatchItem{}).
		Select("MAX(sort_index) AS max, COUNT(*) AS total").
		Where("job_id = ? AND service_id = ? AND batch_id = ?", jobID, serviceID, batchID).
		Scan(&row).Error
	if err != nil {
		return -1, false, err
	}
	if row.Total == 0 || row.Max == nil {
		return -1, false, nil
	}
	return *row.Max, true, nil
}

func (r *batchItemRepo) MaxSortIndex(ctx context.Context, tx *gorm.DB, jobID uuid.UUID, serviceID string) (int, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if jobID == uuid.Nil || serviceID == "" {
		return -1, nil
	}
	var max int
	err := t.WithContext(ctx).
		Model(&types.BatchItem{}).
		Select("COALESCE(MAX(sort_index), -1)").
		Where("job_id = ? AND service_id = ?", jobID, serviceID).
		Scan(&max).Error
	if err != nil {
		return -1, err
	}
	return max, nil
}

func (r *batchItemRepo) CountsForBatch(ctx context.Context, tx *gorm.DB, jobID uuid.UUID, serviceID string, batchID int) (BatchCounts, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out BatchCounts
	if jobID == uuid.Nil || serviceID == "" {
		return out, nil
	}
	var row struct {
		ItemCount  int64
		TotalBytes int64
	}
	err := t.WithContext(ctx).
		Model(&types.BatchItem{}).
		Select("COUNT(*) FILTER (WHERE stac_item_url <> '') AS item_count, COALESCE(SUM(item_size), 0) AS total_bytes").
		Where("job_id = ? AND service_id = ? AND batch_id = ?", jobID, serviceID, batchID).
		Scan(&row).Error
	if err != nil {
		return out, err
	}
	out.ItemCount = row.ItemCount
	out.TotalBytes = row.TotalBytes
	return out, nil
}
