package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/harmony-sds/workflow-core/internal/domain"
)

func SeedJob(tb testing.TB, ctx context.Context, tx *gorm.DB, username string, status types.JobStatus) *types.Job {
	tb.Helper()
	j := &types.Job{
		ID:               uuid.New(),
		Username:         username,
		Status:           status,
		Message:          "seeded",
		NumInputGranules: 10,
		IsAsync:          true,
	}
	if err := tx.WithContext(ctx).Create(j).Error; err != nil {
		tb.Fatalf("seed job: %v", err)
	}
	return j
}

func SeedWorkflowStep(tb testing.TB, ctx context.Context, tx *gorm.DB, jobID uuid.UUID, stepIndex int, serviceID string, kind types.StepKind) *types.WorkflowStep {
	tb.Helper()
	s := &types.WorkflowStep{
		JobID:          jobID,
		StepIndex:      stepIndex,
		ServiceID:      serviceID,
		Kind:           kind,
		Operation:      datatypes.JSON([]byte(`{"format":{"mime":"image/tiff"}}`)),
		ProgressWeight: 1,
	}
	if err := tx.WithContext(ctx).Create(s).Error; err != nil {
		tb.Fatalf("seed workflow step: %v", err)
	}
	return s
}

func SeedWorkItem(tb testing.TB, ctx context.Context, tx *gorm.DB, jobID uuid.UUID, stepIndex int, serviceID string, status types.WorkItemStatus) *types.WorkItem {
	tb.Helper()
	wi := &types.WorkItem{
		JobID:               jobID,
		ServiceID:           serviceID,
		WorkflowStepIndex:   stepIndex,
		Status:              status,
		StacCatalogLocation: "/tmp/" + jobID.String() + "/inputs/catalog.json",
	}
	if err := tx.WithContext(ctx).Create(wi).Error; err != nil {
		tb.Fatalf("seed work item: %v", err)
	}
	return wi
}

func SeedBatch(tb testing.TB, ctx context.Context, tx *gorm.DB, jobID uuid.UUID, serviceID string, batchID int) *types.Batch {
	tb.Helper()
	b := &types.Batch{
		JobID:     jobID,
		ServiceID: serviceID,
		BatchID:   batchID,
	}
	if err := tx.WithContext(ctx).Create(b).Error; err != nil {
		tb.Fatalf("seed batch: %v", err)
	}
	return b
}

func SeedBatchItem(tb testing.TB, ctx context.Context, tx *gorm.DB, jobID uuid.UUID, serviceID string, sortIndex int, itemURL string, size int64) *types.BatchItem {
	tb.Helper()
	bi := &types.BatchItem{
		JobID:       jobID,
		ServiceID:   serviceID,
		SortIndex:   sortIndex,
		StacItemURL: itemURL,
		ItemSize:    size,
	}
	if err := tx.WithContext(ctx).Create(bi).Error; err != nil {
		tb.Fatalf("seed batch item: %v", err)
	}
	return bi
}

func SeedUserWork(tb testing.TB, ctx context.Context, tx *gorm.DB, jobID uuid.UUID, serviceID, username string, ready, running int) *types.UserWork {
	tb.Helper()
	uw := &types.UserWork{
		JobID:        jobID,
		ServiceID:    serviceID,
		Username:     username,
		ReadyCount:   ready,
		RunningCount: running,
		LastWorked:   time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(uw).Error; err != nil {
		tb.Fatalf("seed user work: %v", err)
	}
	return uw
}

func PtrUUID(v uuid.UUID) *uuid.UUID { return &v }

func PtrTime(v time.Time) *time.Time { return &v }

func PtrInt(v int) *int { return &v }
