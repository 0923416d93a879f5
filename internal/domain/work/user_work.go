package work

import (
	"time"

	"github.com/google/uuid"
)

// UserWork counts ready and running work items per (job, service) for the
// external fair-share scheduler. Rows carry the username so the scheduler
// can aggregate per user without joining jobs.
type UserWork struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	JobID        uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_user_work_job_service,priority:1" json:"job_id"`
	ServiceID    string    `gorm:"column:service_id;not null;uniqueIndex:idx_user_work_job_service,priority:2" json:"service_id"`
	Username     string    `gorm:"column:username;not null;index" json:"username"`
	ReadyCount   int       `gorm:"column:ready_count;not null;default:0" json:"ready_count"`
	RunningCount int       `gorm:"column:running_count;not null;default:0" json:"running_count"`
	LastWorked   time.Time `gorm:"column:last_worked;not null;default:now()" json:"last_worked"`
	CreatedAt    time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (UserWork) TableName() string { return "user_work" }
