package work

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/harmony-sds/workflow-core/internal/domain"
	"github.com/harmony-sds/workflow-core/internal/platform/logger"
)

type WorkflowStepRepo interface {
	CreateAll(ctx context.Context, tx *gorm.DB, rows []*types.WorkflowStep) ([]*types.WorkflowStep, error)

	GetByJobAndIndex(ctx context.Context, tx *gorm.DB, jobID uuid.UUID, stepIndex int) (*types.WorkflowStep, error)
	ListByJob(ctx context.Context, tx *gorm.DB, jobID uuid.UUID) ([]*types.WorkflowStep, error)
	ListAfterIndex(ctx context.Context, tx *gorm.DB, jobID uuid.UUID, afterIndex int) ([]*types.WorkflowStep, error)

	Update(ctx context.Context, tx *gorm.DB, row *types.WorkflowStep) error
	UpdateFields(ctx context.Context, tx *gorm.DB, jobID uuid.UUID, stepIndex int, updates map[string]interface{}) error

	// AddCompleted bumps the transactional completion counters for a step.
	AddCompleted(ctx context.Context, tx *gorm.DB, jobID uuid.UUID, stepIndex int, completedDelta, successfulDelta int) error
	// AddWorkItemCount adjusts the expected item count. Negative deltas are
	// used when an accepted failure means fewer granules will flow.
	AddWorkItemCount(ctx context.Context, tx *gorm.DB, jobID uuid.UUID, stepIndex int, delta int) error
}

type workflowStepRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewWorkflowStepRepo(db *gorm.DB, baseLog *logger.Logger) WorkflowStepRepo {
	return &workflowStepRepo{db: db, log: baseLog.With("repo", "WorkflowStepRepo")}
}

func (r *workflowStepRepo) CreateAll(ctx context.Context, tx *gorm.DB, rows []*types.WorkflowStep) ([]*types.WorkflowStep, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return []*types.WorkflowStep{}, nil
	}
	if err := t.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *workflowStepRepo) GetByJobAndIndex(ctx context.Context, tx *gorm.DB, jobID uuid.UUID, stepIndex int) (*types.WorkflowStep, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if jobID == uuid.Nil {
		return nil, nil
	}
	var out []*types.WorkflowStep
	if err := t.WithContext(ctx).
		Where("job_id = ? AND step_index = ?", jobID, stepIndex).
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *workflowStepRepo) ListByJob(ctx context.Context, tx *gorm.DB, jobID uuid.UUID) ([]*types.WorkflowStep, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*types.WorkflowStep
	if jobID == uuid.Nil {
		return out, nil
	}
	if err := t.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("step_index ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *workflowStepRepo) ListAfterIndex(ctx context.Context, tx *gorm.DB, jobID uuid.UUID, afterIndex int) ([]*types.WorkflowStep, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*types.WorkflowStep
	if jobID == uuid.Nil {
		return out, nil
	}
	if err := t.WithContext(ctx).
		Where("job_id = ? AND step_index > ?", jobID, afterIndex).
		Order("step_index ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *workflowStepRepo) Update(ctx context.Context, tx *gorm.DB, row *types.WorkflowStep) error {
	t := tx
	if t == nil {
		t = r.db
	}
	if row == nil {
		return nil
	}
	return t.WithContext(ctx).Save(row).Error
}

func (r *workflowStepRepo) UpdateFields(ctx context.Context, tx *gorm.DB, jobID uuid.UUID, stepIndex int, updates map[string]interface{}) error {
	t := tx
	if t == nil {
		t = r.db
	}
	if jobID == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return t.WithContext(ctx).
		Model(&types.WorkflowStep{}).
		Where("job_id = ? AND step_index = ?", jobID, stepIndex).
		Updates(updates).Error
}

func (r *workflowStepRepo) AddCompleted(ctx context.Context, tx *gorm.DB, jobID uuid.UUID, stepIndex int, completedDelta, successfulDelta int) error {
	t := tx
	if t == nil {
		t = r.db
	}
	if jobID == uuid.Nil || (completedDelta == 0 && successfulDelta == 0) {
		return nil
	}
	return t.WithContext(ctx).
		Model(&types.WorkflowStep{}).
		Where("job_id = ? AND step_index = ?", jobID, stepIndex).
		Updates(map[string]interface{}{
			"completed_count":  gorm.Expr("completed_count + ?", completedDelta),
			"successful_count": gorm.Expr("successful_count + ?", successfulDelta),
			"updated_at":       time.Now().UTC(),
		}).Error
}

func (r *workflowStepRepo) AddWorkItemCount(ctx context.Context, tx *gorm.DB, jobID uuid.UUID, stepIndex int, delta int) error {
	t := tx
	if t == nil {
		t = r.db
	}
	if jobID == uuid.Nil || delta == 0 {
		return nil
	}
	return t.WithContext(ctx).
		Model(&types.WorkflowStep{}).
		Where("job_id = ? AND step_index = ?", jobID, stepIndex).
		Updates(map[string]interface{}{
			"work_item_count": gorm.Expr("GREATEST(0, work_item_count + ?)", delta),
			"updated_at":      time.Now().UTC(),
		}).Error
}
