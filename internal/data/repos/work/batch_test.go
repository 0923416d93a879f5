package work

import (
	"context"
	"testing"

	"github.com/harmony-sds/workflow-core/internal/data/repos/testutil"
	types "github.com/harmony-sds/workflow-core/internal/domain"
)

func TestBatchCurrentAndSeal(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	repo := NewBatchRepo(db, testutil.Logger(t))

	job := testutil.SeedJob(t, ctx, tx, "batch-user", types.JobRunning)

	current, err := repo.GetCurrent(ctx, tx, job.ID, "harmony/concat")
	if err != nil {
		t.Fatalf("GetCurrent empty: %v", err)
	}
	if current != nil {
		t.Fatalf("expected no current batch, got %+v", current)
	}

	testutil.SeedBatch(t, ctx, tx, job.ID, "harmony/concat", 0)
	testutil.SeedBatch(t, ctx, tx, job.ID, "harmony/concat", 1)

	current, err = repo.GetCurrent(ctx, tx, job.ID, "harmony/concat")
	if err != nil {
		t.Fatalf("GetCurrent: %v", err)
	}
	if current == nil || current.BatchID != 1 {
		t.Fatalf("GetCurrent = %+v, want batchID 1", current)
	}

	if err := repo.MarkSealed(ctx, tx, job.ID, "harmony/concat", 0); err != nil {
		t.Fatalf("MarkSealed: %v", err)
	}
	all, err := repo.ListByScope(ctx, tx, job.ID, "harmony/concat")
	if err != nil {
		t.Fatalf("ListByScope: %v", err)
	}
	if len(all) != 2 || !all[0].IsSealed || all[1].IsSealed {
		t.Fatalf("unexpected seal state: %+v", all)
	}
}

func TestBatchItemPendingOrderAndAssign(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	repo := NewBatchItemRepo(db, testutil.Logger(t))

	job := testutil.SeedJob(t, ctx, tx, "batch-user", types.JobRunning)

	testutil.SeedBatchItem(t, ctx, tx, job.ID, "harmony/concat", 2, "s3://b/items/2.json", 100)
	testutil.SeedBatchItem(t, ctx, tx, job.ID, "harmony/concat", 0, "s3://b/items/0.json", 100)
	testutil.SeedBatchItem(t, ctx, tx, job.ID, "harmony/concat", 1, "s3://b/items/1.json", 100)

	pending, err := repo.ListPendingForUpdate(ctx, tx, job.ID, "harmony/concat")
	if err != nil {
		t.Fatalf("ListPendingForUpdate: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("pending = %d, want 3", len(pending))
	}
	for i, bi := range pending {
		if bi.SortIndex != i {
			t.Fatalf("pending[%d].SortIndex = %d, want %d", i, bi.SortIndex, i)
		}
	}

	for _, bi := range pending[:2] {
		if err := repo.AssignToBatch(ctx, tx, bi.ID, 0); err != nil {
			t.Fatalf("AssignToBatch: %v", err)
		}
	}

	pending, err = repo.ListPendingForUpdate(ctx, tx, job.ID, "harmony/concat")
	if err != nil {
		t.Fatalf("ListPendingForUpdate after assign: %v", err)
	}
	if len(pending) != 1 || pending[0].SortIndex != 2 {
		t.Fatalf("pending after assign = %+v, want one item at sortIndex 2", pending)
	}

	inBatch, err := repo.ListByBatch(ctx, tx, job.ID, "harmony/concat", 0)
	if err != nil {
		t.Fatalf("ListByBatch: %v", err)
	}
	if len(inBatch) != 2 || inBatch[0].SortIndex != 0 || inBatch[1].SortIndex != 1 {
		t.Fatalf("batch 0 contents = %+v", inBatch)
	}

	max, has, err := repo.MaxSortIndexInBatch(ctx, tx, job.ID, "harmony/concat", 0)
	if err != nil {
		t.Fatalf("MaxSortIndexInBatch: %v", err)
	}
	if !has || max != 1 {
		t.Fatalf("MaxSortIndexInBatch = (%d, %v), want (1, true)", max, has)
	}

	_, has, err = repo.MaxSortIndexInBatch(ctx, tx, job.ID, "harmony/concat", 9)
	if err != nil {
		t.Fatalf("MaxSortIndexInBatch missing: %v", err)
	}
	if has {
		t.Fatalf("MaxSortIndexInBatch reported items for an empty batch")
	}
}

func TestCountsForBatchSkipsPlaceholders(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	repo := NewBatchItemRepo(db, testutil.Logger(t))

	job := testutil.SeedJob(t, ctx, tx, "batch-user", types.JobRunning)

	real0 := testutil.SeedBatchItem(t, ctx, tx, job.ID, "harmony/concat", 0, "s3://b/items/0.json", 300)
	placeholder := testutil.SeedBatchItem(t, ctx, tx, job.ID, "harmony/concat", 1, "", 0)
	real2 := testutil.SeedBatchItem(t, ctx, tx, job.ID, "harmony/concat", 2, "s3://b/items/2.json", 200)

	for _, bi := range []*types.BatchItem{real0, placeholder, real2} {
		if err := repo.AssignToBatch(ctx, tx, bi.ID, 0); err != nil {
			t.Fatalf("AssignToBatch: %v", err)
		}
	}

	counts, err := repo.CountsForBatch(ctx, tx, job.ID, "harmony/concat", 0)
	if err != nil {
		t.Fatalf("CountsForBatch: %v", err)
	}
	if counts.ItemCount != 2 {
		t.Fatalf("ItemCount = %d, want 2 (placeholders excluded)", counts.ItemCount)
	}
	if counts.TotalBytes != 500 {
		t.Fatalf("TotalBytes = %d, want 500", counts.TotalBytes)
	}
}
