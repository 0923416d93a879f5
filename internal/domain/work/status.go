package work

// JobStatus is the lifecycle state of a job. Terminal states are absorbing.
type JobStatus string

const (
	JobAccepted           JobStatus = "accepted"
	JobPreviewing         JobStatus = "previewing"
	JobRunning            JobStatus = "running"
	JobRunningWithErrors  JobStatus = "running_with_errors"
	JobPaused             JobStatus = "paused"
	JobCompleteWithErrors JobStatus = "complete_with_errors"
	JobSuccessful         JobStatus = "successful"
	JobFailed             JobStatus = "failed"
	JobCanceled           JobStatus = "canceled"
)

// TerminalJobStatuses is the absorbing set. No field of a job changes once
// its status lands here, except progress pinning on the same transition.
var TerminalJobStatuses = []JobStatus{JobSuccessful, JobCompleteWithErrors, JobFailed, JobCanceled}

// DispatchableJobStatuses are the job states whose ready work items may be
// claimed by workers.
var DispatchableJobStatuses = []JobStatus{JobAccepted, JobPreviewing, JobRunning, JobRunningWithErrors}

func (s JobStatus) Terminal() bool {
	switch s {
	case JobSuccessful, JobCompleteWithErrors, JobFailed, JobCanceled:
		return true
	default:
		return false
	}
}

func (s JobStatus) Dispatchable() bool {
	switch s {
	case JobAccepted, JobPreviewing, JobRunning, JobRunningWithErrors:
		return true
	default:
		return false
	}
}

func (s JobStatus) Valid() bool {
	switch s {
	case JobAccepted, JobPreviewing, JobRunning, JobRunningWithErrors,
		JobPaused, JobCompleteWithErrors, JobSuccessful, JobFailed, JobCanceled:
		return true
	default:
		return false
	}
}

// WorkItemStatus is the lifecycle state of a single work item.
type WorkItemStatus string

const (
	ItemReady      WorkItemStatus = "ready"
	ItemRunning    WorkItemStatus = "running"
	ItemSuccessful WorkItemStatus = "successful"
	ItemFailed     WorkItemStatus = "failed"
	ItemCanceled   WorkItemStatus = "canceled"
	ItemWarning    WorkItemStatus = "warning"
)

var TerminalWorkItemStatuses = []WorkItemStatus{ItemSuccessful, ItemFailed, ItemCanceled, ItemWarning}

func (s WorkItemStatus) Terminal() bool {
	switch s {
	case ItemSuccessful, ItemFailed, ItemCanceled, ItemWarning:
		return true
	default:
		return false
	}
}

func (s WorkItemStatus) Valid() bool {
	switch s {
	case ItemReady, ItemRunning, ItemSuccessful, ItemFailed, ItemCanceled, ItemWarning:
		return true
	default:
		return false
	}
}
