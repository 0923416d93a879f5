package work

import (
	"time"

	"github.com/google/uuid"
)

type Job struct {
	ID               uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Username         string    `gorm:"column:username;not null;index" json:"username"`
	Status           JobStatus `gorm:"column:status;not null;index" json:"status"`
	Message          string    `gorm:"column:message" json:"message,omitempty"`
	Progress         int       `gorm:"column:progress;not null;default:0" json:"progress"`
	NumInputGranules int       `gorm:"column:num_input_granules;not null;default:0" json:"num_input_granules"`
	BatchesCompleted int       `gorm:"column:batches_completed;not null;default:0" json:"batches_completed"`
	IgnoreErrors     bool      `gorm:"column:ignore_errors;not null;default:false" json:"ignore_errors"`
	IsAsync          bool      `gorm:"column:is_async;not null;default:true" json:"is_async"`
	CreatedAt        time.Time `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt        time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Job) TableName() string { return "jobs" }

func (j *Job) Terminal() bool { return j.Status.Terminal() }

// Dispatchable reports whether the job's ready work items may be handed out.
func (j *Job) Dispatchable() bool { return j.Status.Dispatchable() }
