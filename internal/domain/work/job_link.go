package work

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// JobLink is one result artifact exposed to the user. Links are append-only;
// they are written once by the completer and never mutated.
type JobLink struct {
	ID            int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	JobID         uuid.UUID      `gorm:"type:uuid;not null;index:idx_job_links_job_created,priority:1" json:"job_id"`
	Href          string         `gorm:"column:href;not null" json:"href"`
	Rel           string         `gorm:"column:rel;not null" json:"rel"`
	Type          string         `gorm:"column:type" json:"type,omitempty"`
	Title         string         `gorm:"column:title" json:"title,omitempty"`
	Bbox          datatypes.JSON `gorm:"column:bbox;type:jsonb" json:"bbox,omitempty"`
	TemporalStart *time.Time     `gorm:"column:temporal_start" json:"temporal_start,omitempty"`
	TemporalEnd   *time.Time     `gorm:"column:temporal_end" json:"temporal_end,omitempty"`
	CreatedAt     time.Time      `gorm:"not null;default:now();index:idx_job_links_job_created,priority:2" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (JobLink) TableName() string { return "job_links" }
