package services

import (
	"testing"

	types "github.com/harmony-sds/workflow-core/internal/domain"
)

func TestCmrLimit(t *testing.T) {
	cases := []struct {
		name                 string
		granules, done, page int
		want                 int
	}{
		{"first page full", 5000, 0, 2000, 2000},
		{"middle page full", 5000, 1, 2000, 2000},
		{"last page partial", 5000, 2, 2000, 1000},
		{"exhausted", 5000, 3, 2000, 0},
		{"overrun clamps to zero", 5000, 4, 2000, 0},
		{"single small request", 3, 0, 2000, 3},
		{"zero granules", 0, 0, 2000, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := cmrLimit(tc.granules, tc.done, tc.page); got != tc.want {
				t.Fatalf("cmrLimit(%d, %d, %d) = %d, want %d", tc.granules, tc.done, tc.page, got, tc.want)
			}
		})
	}
}

func TestComputeProgress(t *testing.T) {
	steps := []*types.WorkflowStep{
		{StepIndex: 0, WorkItemCount: 1, CompletedCount: 1, IsComplete: true, ProgressWeight: 1},
		{StepIndex: 1, WorkItemCount: 10, CompletedCount: 5, ProgressWeight: 1},
	}
	if got := computeProgress(steps); got != 75 {
		t.Fatalf("progress = %d, want 75", got)
	}

	// Everything complete still reports 99; only the terminal transition
	// pins 100.
	steps[1].CompletedCount = 10
	steps[1].IsComplete = true
	if got := computeProgress(steps); got != 99 {
		t.Fatalf("progress = %d, want 99", got)
	}

	// Weights skew the blend toward the heavy step.
	steps = []*types.WorkflowStep{
		{StepIndex: 0, WorkItemCount: 1, CompletedCount: 1, IsComplete: true, ProgressWeight: 1},
		{StepIndex: 1, WorkItemCount: 10, CompletedCount: 0, ProgressWeight: 9},
	}
	if got := computeProgress(steps); got != 10 {
		t.Fatalf("progress = %d, want 10", got)
	}

	// A zero weight falls back to 1 rather than dividing the step away.
	steps = []*types.WorkflowStep{
		{StepIndex: 0, WorkItemCount: 2, CompletedCount: 1, ProgressWeight: 0},
	}
	if got := computeProgress(steps); got != 50 {
		t.Fatalf("progress = %d, want 50", got)
	}

	// A batched step that has not materialized items yet contributes
	// weight but no completion.
	steps = []*types.WorkflowStep{
		{StepIndex: 0, WorkItemCount: 1, CompletedCount: 1, IsComplete: true, ProgressWeight: 1},
		{StepIndex: 1, WorkItemCount: 0, CompletedCount: 0, ProgressWeight: 1},
	}
	if got := computeProgress(steps); got != 50 {
		t.Fatalf("progress = %d, want 50", got)
	}

	if got := computeProgress(nil); got != 0 {
		t.Fatalf("progress of no steps = %d, want 0", got)
	}

	// Overcount from a shrink is capped at the step's full share.
	steps = []*types.WorkflowStep{
		{StepIndex: 0, WorkItemCount: 2, CompletedCount: 5, ProgressWeight: 1},
	}
	if got := computeProgress(steps); got != 99 {
		t.Fatalf("progress = %d, want 99", got)
	}
}

func TestSizeHelpers(t *testing.T) {
	if got := sizeAt([]int64{10, 20}, 1); got != 20 {
		t.Fatalf("sizeAt = %d", got)
	}
	if got := sizeAt([]int64{10}, 3); got != 0 {
		t.Fatalf("sizeAt out of range = %d", got)
	}
	if got := mibOf([]int64{1048576, 524288}); got != 1.5 {
		t.Fatalf("mibOf = %v", got)
	}
	if got := mibOf(nil); got != 0 {
		t.Fatalf("mibOf(nil) = %v", got)
	}
	if got := ceilDiv(5, 2); got != 3 {
		t.Fatalf("ceilDiv(5,2) = %d", got)
	}
	if got := ceilDiv(4, 2); got != 2 {
		t.Fatalf("ceilDiv(4,2) = %d", got)
	}
	if got := ceilDiv(0, 2); got != 0 {
		t.Fatalf("ceilDiv(0,2) = %d", got)
	}
}
