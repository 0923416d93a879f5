package work

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type WorkItem struct {
	ID                  int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	JobID               uuid.UUID      `gorm:"type:uuid;not null;index:idx_work_items_job_step,priority:1" json:"job_id"`
	ServiceID           string         `gorm:"column:service_id;not null;index:idx_work_items_claim,priority:1" json:"service_id"`
	WorkflowStepIndex   int            `gorm:"column:workflow_step_index;not null;index:idx_work_items_job_step,priority:2" json:"workflow_step_index"`
	Status              WorkItemStatus `gorm:"column:status;not null;index" json:"status"`
	StacCatalogLocation string         `gorm:"column:stac_catalog_location" json:"stac_catalog_location"`
	ScrollID            string         `gorm:"column:scroll_id" json:"scroll_id,omitempty"`
	SortIndex           int            `gorm:"column:sort_index;not null;default:0" json:"sort_index"`
	RetryCount          int            `gorm:"column:retry_count;not null;default:0" json:"retry_count"`
	StartedAt           *time.Time     `gorm:"column:started_at" json:"started_at,omitempty"`
	DurationMs          int64          `gorm:"column:duration_ms;not null;default:0" json:"duration_ms"`
	TotalItemsSize      float64        `gorm:"column:total_items_size;not null;default:0" json:"total_items_size"`
	OutputItemSizes     datatypes.JSON `gorm:"column:output_item_sizes;type:jsonb" json:"output_item_sizes,omitempty"`
	CreatedAt           time.Time      `gorm:"not null;default:now();index:idx_work_items_claim,priority:2" json:"created_at"`
	UpdatedAt           time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (WorkItem) TableName() string { return "work_items" }

func (w *WorkItem) Terminal() bool { return w.Status.Terminal() }

// OutputSizes decodes the persisted per-output byte sizes. A missing or
// malformed column reads as no sizes.
func (w *WorkItem) OutputSizes() []int64 {
	if len(w.OutputItemSizes) == 0 {
		return nil
	}
	var sizes []int64
	if err := json.Unmarshal(w.OutputItemSizes, &sizes); err != nil {
		return nil
	}
	return sizes
}

// EncodeOutputSizes stores per-output byte sizes on the item.
func (w *WorkItem) EncodeOutputSizes(sizes []int64) error {
	if len(sizes) == 0 {
		w.OutputItemSizes = nil
		return nil
	}
	raw, err := json.Marshal(sizes)
	if err != nil {
		return err
	}
	w.OutputItemSizes = datatypes.JSON(raw)
	return nil
}
