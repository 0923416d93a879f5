package work

import "testing"

func TestJobStatusTerminal(t *testing.T) {
	terminal := []JobStatus{JobSuccessful, JobCompleteWithErrors, JobFailed, JobCanceled}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Fatalf("expected %s to be terminal", s)
		}
		if s.Dispatchable() {
			t.Fatalf("terminal status %s must not be dispatchable", s)
		}
	}

	nonTerminal := []JobStatus{JobAccepted, JobPreviewing, JobRunning, JobRunningWithErrors, JobPaused}
	for _, s := range nonTerminal {
		if s.Terminal() {
			t.Fatalf("expected %s to be non-terminal", s)
		}
	}
}

func TestJobStatusDispatchable(t *testing.T) {
	dispatchable := map[JobStatus]bool{
		JobAccepted:           true,
		JobPreviewing:         true,
		JobRunning:            true,
		JobRunningWithErrors:  true,
		JobPaused:             false,
		JobSuccessful:         false,
		JobCompleteWithErrors: false,
		JobFailed:             false,
		JobCanceled:           false,
	}
	for s, want := range dispatchable {
		if got := s.Dispatchable(); got != want {
			t.Fatalf("Dispatchable(%s) = %v, want %v", s, got, want)
		}
	}
	if len(DispatchableJobStatuses) != 4 {
		t.Fatalf("expected 4 dispatchable statuses, got %d", len(DispatchableJobStatuses))
	}
}

func TestWorkItemStatusTerminal(t *testing.T) {
	for _, s := range TerminalWorkItemStatuses {
		if !s.Terminal() {
			t.Fatalf("expected %s to be terminal", s)
		}
	}
	if ItemReady.Terminal() || ItemRunning.Terminal() {
		t.Fatalf("ready/running must not be terminal")
	}
	if !ItemWarning.Terminal() {
		t.Fatalf("warning is a terminal item status")
	}
}

func TestStepKind(t *testing.T) {
	cases := []struct {
		kind        StepKind
		sequential  bool
		aggregating bool
		batched     bool
	}{
		{StepSequentialQuery, true, false, false},
		{StepMap, false, false, false},
		{StepAggregate, false, true, false},
		{StepBatchedAggregate, false, true, true},
	}
	for _, c := range cases {
		if c.kind.Sequential() != c.sequential {
			t.Fatalf("%s Sequential() = %v", c.kind, c.kind.Sequential())
		}
		if c.kind.Aggregating() != c.aggregating {
			t.Fatalf("%s Aggregating() = %v", c.kind, c.kind.Aggregating())
		}
		if c.kind.Batched() != c.batched {
			t.Fatalf("%s Batched() = %v", c.kind, c.kind.Batched())
		}
		if !c.kind.Valid() {
			t.Fatalf("%s should be valid", c.kind)
		}
	}
	if StepKind("reduce").Valid() {
		t.Fatalf("unknown kind should be invalid")
	}
}

func TestEffectiveBatchBounds(t *testing.T) {
	s := &WorkflowStep{}
	if got := s.EffectiveMaxBatchInputs(200); got != 200 {
		t.Fatalf("default inputs: got %d", got)
	}
	if got := s.EffectiveMaxBatchBytes(1e9); got != int64(1e9) {
		t.Fatalf("default bytes: got %d", got)
	}

	three := 3
	bytes := int64(1024)
	s.MaxBatchInputs = &three
	s.MaxBatchSizeInBytes = &bytes
	if got := s.EffectiveMaxBatchInputs(200); got != 3 {
		t.Fatalf("override inputs: got %d", got)
	}
	if got := s.EffectiveMaxBatchBytes(1e9); got != 1024 {
		t.Fatalf("override bytes: got %d", got)
	}

	zero := 0
	s.MaxBatchInputs = &zero
	if got := s.EffectiveMaxBatchInputs(200); got != 200 {
		t.Fatalf("zero override should fall back to default, got %d", got)
	}
}
