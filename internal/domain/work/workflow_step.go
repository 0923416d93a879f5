package work

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type WorkflowStep struct {
	ID                  int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	JobID               uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_workflow_steps_job_step,priority:1" json:"job_id"`
	StepIndex           int            `gorm:"column:step_index;not null;uniqueIndex:idx_workflow_steps_job_step,priority:2" json:"step_index"`
	ServiceID           string         `gorm:"column:service_id;not null;index" json:"service_id"`
	Kind                StepKind       `gorm:"column:kind;not null" json:"kind"`
	Operation           datatypes.JSON `gorm:"column:operation;type:jsonb" json:"operation"`
	WorkItemCount       int            `gorm:"column:work_item_count;not null;default:0" json:"work_item_count"`
	CompletedCount      int            `gorm:"column:completed_count;not null;default:0" json:"completed_count"`
	SuccessfulCount     int            `gorm:"column:successful_count;not null;default:0" json:"successful_count"`
	IsComplete          bool           `gorm:"column:is_complete;not null;default:false" json:"is_complete"`
	MaxBatchInputs      *int           `gorm:"column:max_batch_inputs" json:"max_batch_inputs,omitempty"`
	MaxBatchSizeInBytes *int64         `gorm:"column:max_batch_size_in_bytes" json:"max_batch_size_in_bytes,omitempty"`
	ProgressWeight      float64        `gorm:"column:progress_weight;not null;default:0" json:"progress_weight"`
	CreatedAt           time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt           time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (WorkflowStep) TableName() string { return "workflow_steps" }

func (s *WorkflowStep) IsSequential() bool        { return s.Kind.Sequential() }
func (s *WorkflowStep) HasAggregatedOutput() bool { return s.Kind.Aggregating() }
func (s *WorkflowStep) IsBatched() bool           { return s.Kind.Batched() }

// EffectiveMaxBatchInputs resolves the per-step batch item cap, falling back
// to the service-wide default.
func (s *WorkflowStep) EffectiveMaxBatchInputs(def int) int {
	if s.MaxBatchInputs != nil && *s.MaxBatchInputs > 0 {
		return *s.MaxBatchInputs
	}
	return def
}

// EffectiveMaxBatchBytes resolves the per-step batch byte cap, falling back
// to the service-wide default.
func (s *WorkflowStep) EffectiveMaxBatchBytes(def int64) int64 {
	if s.MaxBatchSizeInBytes != nil && *s.MaxBatchSizeInBytes > 0 {
		return *s.MaxBatchSizeInBytes
	}
	return def
}
