package work

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/harmony-sds/workflow-core/internal/domain"
	"github.com/harmony-sds/workflow-core/internal/platform/logger"
)

type WorkItemRepo interface {
	CreateAll(ctx context.Context, tx *gorm.DB, rows []*types.WorkItem, insertBatchSize int) ([]*types.WorkItem, error)

	GetByID(ctx context.Context, tx *gorm.DB, id int64) (*types.WorkItem, error)
	// GetByIDForUpdate locks the work item row. The jobs row must already be
	// locked by the caller.
	GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id int64) (*types.WorkItem, error)

	// ClaimNextReady picks the oldest ready item for the service whose job is
	// dispatchable, skipping rows another claim holds locked, and marks it
	// running. Returns nil when no work is available.
	ClaimNextReady(ctx context.Context, tx *gorm.DB, serviceID string) (*types.WorkItem, error)

	ListByStepAndStatuses(ctx context.Context, tx *gorm.DB, jobID uuid.UUID, stepIndex int, statuses []types.WorkItemStatus) ([]*types.WorkItem, error)
	ListStalledRunning(ctx context.Context, tx *gorm.DB, startedBefore time.Time, limit int) ([]*types.WorkItem, error)

	CountByStepAndStatuses(ctx context.Context, tx *gorm.DB, jobID uuid.UUID, stepIndex int, statuses []types.WorkItemStatus) (int64, error)
	// ReadyCountsByService tallies the job's ready items per service, used to
	// rebuild user_work counters when a paused job resumes.
	ReadyCountsByService(ctx context.Context, tx *gorm.DB, jobID uuid.UUID) (map[string]int, error)
	MaxSortIndex(ctx context.Context, tx *gorm.DB, jobID uuid.UUID, serviceID string) (int, error)

	Update(ctx context.Context, tx *gorm.DB, row *types.WorkItem) error
	UpdateFields(ctx context.Context, tx *gorm.DB, id int64, updates map[string]interface{}) error

	// CancelNonTerminalByJob sweeps ready and running items to canceled when
	// the owning job terminates. Returns the number of rows swept.
	CancelNonTerminalByJob(ctx context.Context, tx *gorm.DB, jobID uuid.UUID) (int64, error)
}

type workItemRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewWorkItemRepo(db *gorm.DB, baseLog *logger.Logger) WorkItemRepo {
	return &workItemRepo{db: db, log: baseLog.With("repo", "WorkItemRepo")}
}

func (r *workItemRepo) CreateAll(ctx context.Context, tx *gorm.DB, rows []*types.WorkItem, insertBatchSize int) ([]*types.WorkItem, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return []*types.WorkItem{}, nil
	}
	if insertBatchSize <= 0 {
		insertBatchSize = len(rows)
	}
	if err := t.WithContext(ctx).CreateInBatches(&rows, insertBatchSize).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *workItemRepo) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*types.WorkItem, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if id <= 0 {
		return nil, nil
	}
	var out []*types.WorkItem
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

func (r *workItemRepo) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id int64) (*types.WorkItem, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if id <= 0 {
		return nil, nil
	}
	var out []*types.WorkItem
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

func (r *workItemRepo) ClaimNextReady(ctx context.Context, tx *gorm.DB, serviceID string) (*types.WorkItem, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if serviceID == "" {
		return nil, nil
	}
	now := time.Now().UTC()
	var claimed *types.WorkItem
	err := t.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		dispatchable := txx.Model(&types.Job{}).
			Select("id").
			Where("status IN ?", types.DispatchableJobStatuses)

		var item types.WorkItem
		q := txx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("service_id = ? AND status = ?", serviceID, types.ItemReady).
			Where("job_id IN (?)", dispatchable).
			// A sequential step hands out one item at a time.
			Where(`NOT EXISTS (
        SELECT 1
        FROM workflow_steps ws
        JOIN work_items running
          ON running.job_id = ws.job_id
         AND running.workflow_step_index = ws.step_index
        WHERE ws.job_id = work_items.job_id
          AND ws.step_index = work_items.workflow_step_index
          AND ws.kind = ?
          AND running.status = ?
      )`, types.StepSequentialQuery, types.ItemRunning).
			Order("created_at ASC, id ASC")
		qErr := q.First(&item).Error
		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			return nil
		}
		if qErr != nil {
			return qErr
		}
		uErr := txx.Model(&types.WorkItem{}).
			Where("id = ?", item.ID).
			Updates(map[string]interface{}{
				"status":     types.ItemRunning,
				"started_at": now,
				"updated_at": now,
			}).Error
		if uErr != nil {
			return uErr
		}
		item.Status = types.ItemRunning
		item.StartedAt = &now
		claimed = &item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *workItemRepo) ListByStepAndStatuses(ctx context.Context, tx *gorm.DB, jobID uuid.UUID, stepIndex int, statuses []types.WorkItemStatus) ([]*types.WorkItem, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*types.WorkItem
	if jobID == uuid.Nil {
		return out, nil
	}
	q := t.WithContext(ctx).
		Where("job_id = ? AND workflow_step_index = ?", jobID, stepIndex)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	if err := q.Order("sort_index ASC, id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *workItemRepo) ListStalledRunning(ctx context.Context, tx *gorm.DB, startedBefore time.Time, limit int) ([]*types.WorkItem, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*types.WorkItem
	q := t.WithContext(ctx).
		Where("status = ? AND started_at IS NOT NULL AND started_at < ?", types.ItemRunning, startedBefore).
		Order("started_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *workItemRepo) CountByStepAndStatuses(ctx context.Context, tx *gorm.DB, jobID uuid.UUID, stepIndex int, statuses []types.WorkItemStatus) (int64, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if jobID == uuid.Nil {
		return 0, nil
	}
	q := t.WithContext(ctx).
		Model(&types.WorkItem{}).
		Where("job_id = ? AND workflow_step_index = ?", jobID, stepIndex)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *workItemRepo) ReadyCountsByService(ctx context.Context, tx *gorm.DB, jobID uuid.UUID) (map[string]int, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	out := map[string]int{}
	if jobID == uuid.Nil {
		return out, nil
	}
	var rows []struct {
		ServiceID string
		Total     int
	}
	err := t.WithContext(ctx).
		Model(&types.WorkItem{}).
		Select("service_id, COUNT(*) AS total").
		Where("job_id = ? AND status = ?", jobID, types.ItemReady).
		Group("service_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ServiceID] = row.Total
	}
	return out, nil
}

func (r *workItemRepo) MaxSortIndex(ctx context.Context, tx *gorm.DB, jobID uuid.UUID, serviceID string) (int, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if jobID == uuid.Nil || serviceID == "" {
		return -1, nil
	}
	var max int
	err := t.WithContext(ctx).
		Model(&types.WorkItem{}).
		Select("COALESCE(MAX(sort_index), -1)").
		Where("job_id = ? AND service_id = ?", jobID, serviceID).
		Scan(&max).Error
	if err != nil {
		return -1, err
	}
	return max, nil
}

func (r *workItemRepo) Update(ctx context.Context, tx *gorm.DB, row *types.WorkItem) error {
	t := tx
	if t == nil {
		t = r.db
	}
	if row == nil {
		return nil
	}
	return t.WithContext(ctx).Save(row).Error
}

func (r *workItemRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id int64, updates map[string]interface{}) error {
	t := tx
	if t == nil {
		t = r.db
	}
	if id <= 0 {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return t.WithContext(ctx).
		Model(&types.WorkItem{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *workItemRepo) CancelNonTerminalByJob(ctx context.Context, tx *gorm.DB, jobID uuid.UUID) (int64, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if jobID == uuid.Nil {
		return 0, nil
	}
	res := t.WithContext(ctx).
		Model(&types.WorkItem{}).
		Where("job_id = ? AND status IN ?", jobID, []types.WorkItemStatus{types.ItemReady, types.ItemRunning}).
		Updates(map[string]interface{}{
			"status":     types.ItemCanceled,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
