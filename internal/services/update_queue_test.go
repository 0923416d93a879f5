package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/harmony-sds/workflow-core/internal/data/repos/testutil"
	types "github.com/harmony-sds/workflow-core/internal/domain"
	"github.com/harmony-sds/workflow-core/internal/domain/work"
)

type recordingUpdateService struct {
	mu      sync.Mutex
	applied []int64
	release chan struct{}
}

func (r *recordingUpdateService) Process(ctx context.Context, workItemID int64, u types.WorkItemUpdate) error {
	if r.release != nil {
		<-r.release
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applied = append(r.applied, workItemID)
	return nil
}

func (r *recordingUpdateService) Precheck(ctx context.Context, workItemID int64) error { return nil }

func (r *recordingUpdateService) ids() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int64, len(r.applied))
	copy(out, r.applied)
	return out
}

func TestUpdateQueueProcessesEnqueued(t *testing.T) {
	svc := &recordingUpdateService{}
	q := NewUpdateQueue(testutil.Logger(t), Config{UpdateQueueSize: 8, UpdateWorkerCount: 2}, svc)
	q.Start()

	for i := int64(1); i <= 5; i++ {
		if !q.Enqueue(i, work.SuccessUpdate{}) {
			t.Fatalf("enqueue %d rejected", i)
		}
	}
	q.Close()

	got := svc.ids()
	if len(got) != 5 {
		t.Fatalf("processed %d updates, want 5", len(got))
	}
	seen := map[int64]bool{}
	for _, id := range got {
		seen[id] = true
	}
	for i := int64(1); i <= 5; i++ {
		if !seen[i] {
			t.Fatalf("update %d never processed", i)
		}
	}
}

func TestUpdateQueueShedsWhenFull(t *testing.T) {
	svc := &recordingUpdateService{release: make(chan struct{})}
	q := NewUpdateQueue(testutil.Logger(t), Config{UpdateQueueSize: 2, UpdateWorkerCount: 1}, svc)

	// Not started, so nothing drains: the buffer holds exactly two.
	if !q.Enqueue(1, work.FailureUpdate{}) || !q.Enqueue(2, work.FailureUpdate{}) {
		t.Fatalf("buffered enqueues rejected")
	}
	if q.Enqueue(3, work.FailureUpdate{}) {
		t.Fatalf("full queue accepted a third update")
	}

	q.Start()
	close(svc.release)

	deadline := time.After(2 * time.Second)
	for {
		if len(svc.ids()) == 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("buffered updates never processed: %v", svc.ids())
		case <-time.After(5 * time.Millisecond):
		}
	}
	q.Close()
}
