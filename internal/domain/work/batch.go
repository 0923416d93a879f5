package work

import (
	"time"

	"github.com/google/uuid"
)

// Batch groups upstream outputs destined for one aggregating work item.
// Batch IDs are dense from 0 per (job, service); the highest ID is the
// current batch and all lower IDs are sealed.
type Batch struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	JobID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_batches_job_service_batch,priority:1" json:"job_id"`
	ServiceID string    `gorm:"column:service_id;not null;uniqueIndex:idx_batches_job_service_batch,priority:2" json:"service_id"`
	BatchID   int       `gorm:"column:batch_id;not null;uniqueIndex:idx_batches_job_service_batch,priority:3" json:"batch_id"`
	IsSealed  bool      `gorm:"column:is_sealed;not null;default:false" json:"is_sealed"`
	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Batch) TableName() string { return "batches" }

// BatchItem is one upstream output waiting for, or assigned to, a batch.
// A nil BatchID means pending assignment. Placeholder rows (empty URL,
// zero size) hold the sort position of accepted failures so that sealed
// batches stay contiguous in sort index.
type BatchItem struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	JobID       uuid.UUID `gorm:"type:uuid;not null;index:idx_batch_items_pending,priority:1" json:"job_id"`
	ServiceID   string    `gorm:"column:service_id;not null;index:idx_batch_items_pending,priority:2" json:"service_id"`
	BatchID     *int      `gorm:"column:batch_id" json:"batch_id,omitempty"`
	StacItemURL string    `gorm:"column:stac_item_url" json:"stac_item_url"`
	ItemSize    int64     `gorm:"column:item_size;not null;default:0" json:"item_size"`
	SortIndex   int       `gorm:"column:sort_index;not null;index:idx_batch_items_pending,priority:3" json:"sort_index"`
	CreatedAt   time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (BatchItem) TableName() string { return "batch_items" }

// Placeholder reports whether the row only holds a sort position.
func (b *BatchItem) Placeholder() bool { return b.StacItemURL == "" }
