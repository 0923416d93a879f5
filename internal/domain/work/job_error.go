package work

import (
	"time"

	"github.com/google/uuid"
)

// JobError records one accepted work-item failure on a job that continued
// under ignore_errors. URL points at the failed item's input catalog.
type JobError struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	JobID     uuid.UUID `gorm:"type:uuid;not null;index" json:"job_id"`
	URL       string    `gorm:"column:url" json:"url"`
	Message   string    `gorm:"column:message;not null" json:"message"`
	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (JobError) TableName() string { return "job_errors" }
