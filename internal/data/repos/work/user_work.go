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

// UserWorkRepo maintains the per (job, service) ready/running counters an
// external fair-share scheduler reads when deciding which service pools to
// grow.
type UserWorkRepo interface {
	// Adjust upserts the row for (jobID, serviceID) and applies the deltas.
	// Counters are clamped at zero.
	Adjust(ctx context.Context, tx *gorm.DB, jobID uuid.UUID, serviceID, username string, readyDelta, runningDelta int) error
	GetByScope(ctx context.Context, tx *gorm.DB, jobID uuid.UUID, serviceID string) (*types.UserWork, error)
	ListByUsername(ctx context.Context, tx *gorm.DB, username string) ([]*types.UserWork, error)
	// ZeroByJob clears all counters for a job. Called on pause, cancel, and
	// every terminal transition.
	ZeroByJob(ctx context.Context, tx *gorm.DB, jobID uuid.UUID) error
	DeleteByJob(ctx context.Context, tx *gorm.DB, jobID uuid.UUID) error
}

type userWorkRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserWorkRepo(db *gorm.DB, baseLog *logger.Logger) UserWorkRepo {
	return &userWorkRepo{db: db, log: baseLog.With("repo", "UserWorkRepo")}
}

func (r *userWorkRepo) Adjust(ctx context.Context, tx *gorm.DB, jobID uuid.UUID, serviceID, username string, readyDelta, runningDelta int) error {
	t := tx
	if t == nil {
		t = r.db
	}
	if jobID == uuid.Nil || serviceID == "" {
		return nil
	}
	now := time.Now().UTC()
	row := &types.UserWork{
		JobID:        jobID,
		ServiceID:    serviceID,
		Username:     username,
		ReadyCount:   maxInt(0, readyDelta),
		RunningCount: maxInt(0, runningDelta),
		LastWorked:   now,
	}
	return t.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "job_id"}, {Name: "service_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"ready_count":   gorm.Expr("GREATEST(0, user_work.ready_count + ?)", readyDelta),
				"running_count": gorm.Expr("GREATEST(0, user_work.running_count + ?)", runningDelta),
				"last_worked":   now,
				"updated_at":    now,
			}),
		}).
		Create(row).Error
}

func (r *userWorkRepo) GetByScope(ctx context.Context, tx *gorm.DB, jobID uuid.UUID, serviceID string) (*types.UserWork, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if jobID == uuid.Nil || serviceID == "" {
		return nil, nil
	}
	var out []*types.UserWork
	if err := t.WithContext(ctx).
		Where("job_id = ? AND service_id = ?", jobID, serviceID).
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *userWorkRepo) ListByUsername(ctx context.Context, tx *gorm.DB, username string) ([]*types.UserWork, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*types.UserWork
	if username == "" {
		return out, nil
	}
	if err := t.WithContext(ctx).
		Where("username = ?", username).
		Order("service_id ASC, job_id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *userWorkRepo) ZeroByJob(ctx context.Context, tx *gorm.DB, jobID uuid.UUID) error {
	t := tx
	if t == nil {
		t = r.db
	}
	if jobID == uuid.Nil {
		return nil
	}
	return t.WithContext(ctx).
		Model(&types.UserWork{}).
		Where("job_id = ?", jobID).
		Updates(map[string]interface{}{
			"ready_count":   0,
			"running_count": 0,
			"updated_at":    time.Now().UTC(),
		}).Error
}

func (r *userWorkRepo) DeleteByJob(ctx context.Context, tx *gorm.DB, jobID uuid.UUID) error {
	t := tx
	if t == nil {
		t = r.db
	}
	if jobID == uuid.Nil {
		return nil
	}
	return t.WithContext(ctx).
		Where("job_id = ?", jobID).
		Delete(&types.UserWork{}).Error
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
