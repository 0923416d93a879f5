package work

import (
	"context"
	"testing"

	"github.com/harmony-sds/workflow-core/internal/data/repos/testutil"
	types "github.com/harmony-sds/workflow-core/internal/domain"
)

func TestJobRepoLifecycle(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	repo := NewJobRepo(db, testutil.Logger(t))

	job := testutil.SeedJob(t, ctx, tx, "job-user", types.JobAccepted)

	got, err := repo.GetByID(ctx, tx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got == nil || got.ID != job.ID {
		t.Fatalf("GetByID = %+v", got)
	}

	locked, err := repo.GetByIDForUpdate(ctx, tx, job.ID)
	if err != nil {
		t.Fatalf("GetByIDForUpdate: %v", err)
	}
	if locked == nil || locked.ID != job.ID {
		t.Fatalf("GetByIDForUpdate = %+v", locked)
	}

	if err := repo.UpdateFields(ctx, tx, job.ID, map[string]interface{}{
		"status":   types.JobRunning,
		"progress": 40,
	}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	got, err = repo.GetByID(ctx, tx, job.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByID after update: %v %v", got, err)
	}
	if got.Status != types.JobRunning || got.Progress != 40 {
		t.Fatalf("update not applied: %+v", got)
	}

	byUser, err := repo.ListByUsername(ctx, tx, "job-user", 10, 0)
	if err != nil || len(byUser) != 1 {
		t.Fatalf("ListByUsername: err=%v len=%d", err, len(byUser))
	}

	running, err := repo.ListByStatuses(ctx, tx, []types.JobStatus{types.JobRunning})
	if err != nil {
		t.Fatalf("ListByStatuses: %v", err)
	}
	found := false
	for _, j := range running {
		if j.ID == job.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("ListByStatuses missed job %s", job.ID)
	}
}

func TestWorkflowStepCounters(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	repo := NewWorkflowStepRepo(db, testutil.Logger(t))

	job := testutil.SeedJob(t, ctx, tx, "step-user", types.JobRunning)
	step := testutil.SeedWorkflowStep(t, ctx, tx, job.ID, 2, "harmony/resize", types.StepMap)

	if err := repo.UpdateFields(ctx, tx, job.ID, step.StepIndex, map[string]interface{}{"work_item_count": 3}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}

	if err := repo.AddCompleted(ctx, tx, job.ID, step.StepIndex, 1, 1); err != nil {
		t.Fatalf("AddCompleted: %v", err)
	}
	if err := repo.AddCompleted(ctx, tx, job.ID, step.StepIndex, 1, 0); err != nil {
		t.Fatalf("AddCompleted second: %v", err)
	}

	got, err := repo.GetByJobAndIndex(ctx, tx, job.ID, step.StepIndex)
	if err != nil || got == nil {
		t.Fatalf("GetByJobAndIndex: %v %v", got, err)
	}
	if got.CompletedCount != 2 || got.SuccessfulCount != 1 {
		t.Fatalf("counters = (%d, %d), want (2, 1)", got.CompletedCount, got.SuccessfulCount)
	}

	if err := repo.AddWorkItemCount(ctx, tx, job.ID, step.StepIndex, -1); err != nil {
		t.Fatalf("AddWorkItemCount: %v", err)
	}
	got, err = repo.GetByJobAndIndex(ctx, tx, job.ID, step.StepIndex)
	if err != nil || got == nil {
		t.Fatalf("GetByJobAndIndex after decrement: %v %v", got, err)
	}
	if got.WorkItemCount != 2 {
		t.Fatalf("WorkItemCount = %d, want 2", got.WorkItemCount)
	}

	// Decrements clamp at zero rather than going negative.
	if err := repo.AddWorkItemCount(ctx, tx, job.ID, step.StepIndex, -10); err != nil {
		t.Fatalf("AddWorkItemCount big decrement: %v", err)
	}
	got, _ = repo.GetByJobAndIndex(ctx, tx, job.ID, step.StepIndex)
	if got.WorkItemCount != 0 {
		t.Fatalf("WorkItemCount = %d, want 0", got.WorkItemCount)
	}

	future, err := repo.ListAfterIndex(ctx, tx, job.ID, 1)
	if err != nil || len(future) != 1 {
		t.Fatalf("ListAfterIndex: err=%v len=%d", err, len(future))
	}
}

func TestJobLinkAndErrorRepos(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	linkRepo := NewJobLinkRepo(db, testutil.Logger(t))
	errRepo := NewJobErrorRepo(db, testutil.Logger(t))

	job := testutil.SeedJob(t, ctx, tx, "link-user", types.JobRunning)

	links := []*types.JobLink{
		{JobID: job.ID, Href: "s3://b/a.tif", Rel: "data", Type: "image/tiff", Title: "a.tif"},
		{JobID: job.ID, Href: "s3://b/b.tif", Rel: "data", Type: "image/tiff", Title: "b.tif"},
	}
	if _, err := linkRepo.CreateAll(ctx, tx, links); err != nil {
		t.Fatalf("CreateAll links: %v", err)
	}

	n, err := linkRepo.CountByJobAndRel(ctx, tx, job.ID, "data")
	if err != nil || n != 2 {
		t.Fatalf("CountByJobAndRel: err=%v n=%d", err, n)
	}

	exists, err := linkRepo.ExistsByJobAndHref(ctx, tx, job.ID, "s3://b/a.tif")
	if err != nil || !exists {
		t.Fatalf("ExistsByJobAndHref: err=%v exists=%v", err, exists)
	}
	exists, err = linkRepo.ExistsByJobAndHref(ctx, tx, job.ID, "s3://b/missing.tif")
	if err != nil || exists {
		t.Fatalf("ExistsByJobAndHref missing: err=%v exists=%v", err, exists)
	}

	listed, err := linkRepo.ListByJob(ctx, tx, job.ID, 1, 1)
	if err != nil || len(listed) != 1 {
		t.Fatalf("ListByJob paged: err=%v len=%d", err, len(listed))
	}

	if _, err := errRepo.Create(ctx, tx, &types.JobError{JobID: job.ID, URL: "s3://b/bad.tif", Message: "boom"}); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	count, err := errRepo.CountByJob(ctx, tx, job.ID)
	if err != nil || count != 1 {
		t.Fatalf("CountByJob: err=%v count=%d", err, count)
	}
	all, err := errRepo.ListByJob(ctx, tx, job.ID)
	if err != nil || len(all) != 1 || all[0].Message != "boom" {
		t.Fatalf("ListByJob: err=%v rows=%+v", err, all)
	}
}
