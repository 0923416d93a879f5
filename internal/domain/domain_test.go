package domain_test

import (
	"testing"

	types "github.com/harmony-sds/workflow-core/internal/domain"
)

// The repo layer filters on these sets through the alias package, so they
// have to be re-exported alongside the types and must agree with the
// per-status predicates.
func TestStatusSetsAgreeWithPredicates(t *testing.T) {
	if len(types.TerminalJobStatuses) != 4 {
		t.Fatalf("terminal job statuses = %v", types.TerminalJobStatuses)
	}
	for _, s := range types.TerminalJobStatuses {
		if !s.Terminal() {
			t.Fatalf("status %q in terminal set but not Terminal()", s)
		}
	}
	if len(types.DispatchableJobStatuses) != 4 {
		t.Fatalf("dispatchable job statuses = %v", types.DispatchableJobStatuses)
	}
	for _, s := range types.DispatchableJobStatuses {
		if !s.Dispatchable() {
			t.Fatalf("status %q in dispatchable set but not Dispatchable()", s)
		}
		if s.Terminal() {
			t.Fatalf("status %q is both dispatchable and terminal", s)
		}
	}
	if len(types.TerminalWorkItemStatuses) != 4 {
		t.Fatalf("terminal work item statuses = %v", types.TerminalWorkItemStatuses)
	}
	for _, s := range types.TerminalWorkItemStatuses {
		if !s.Terminal() {
			t.Fatalf("item status %q in terminal set but not Terminal()", s)
		}
	}
}
