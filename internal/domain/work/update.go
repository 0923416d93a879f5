package work

import (
	"strings"
	"time"
)

// WorkItemUpdate is the closed set of terminal reports a worker can deliver
// for one work item. Each status has its own variant; consumers type-switch
// over the three concrete types.
type WorkItemUpdate interface {
	Status() WorkItemStatus
	// WorkerDuration is the runtime observed by the worker itself. The
	// handler keeps the larger of this and the orchestrator-observed wall
	// time.
	WorkerDuration() time.Duration
	Validate() error

	sealedUpdate()
}

// SuccessUpdate reports a completed item together with its output catalogs.
type SuccessUpdate struct {
	Hits            *int
	Results         []string
	ScrollID        string
	Duration        time.Duration
	TotalItemsSize  *float64
	OutputItemSizes []int64
}

func (u SuccessUpdate) Status() WorkItemStatus        { return ItemSuccessful }
func (u SuccessUpdate) WorkerDuration() time.Duration { return u.Duration }
func (u SuccessUpdate) sealedUpdate()                 {}

func (u SuccessUpdate) Validate() error {
	if u.Hits != nil && *u.Hits < 0 {
		return NewError(CodeValidation, "work.update", "hits must be non-negative", nil)
	}
	for _, r := range u.Results {
		if strings.TrimSpace(r) == "" {
			return NewError(CodeValidation, "work.update", "result catalog URL must be non-empty", nil)
		}
	}
	for _, s := range u.OutputItemSizes {
		if s < 0 {
			return NewError(CodeValidation, "work.update", "output item size must be non-negative", nil)
		}
	}
	if u.TotalItemsSize != nil && *u.TotalItemsSize < 0 {
		return NewError(CodeValidation, "work.update", "total items size must be non-negative", nil)
	}
	if u.Duration < 0 {
		return NewError(CodeValidation, "work.update", "duration must be non-negative", nil)
	}
	return nil
}

// FailureUpdate reports that the worker gave up on the item.
type FailureUpdate struct {
	Message  string
	Duration time.Duration
}

func (u FailureUpdate) Status() WorkItemStatus        { return ItemFailed }
func (u FailureUpdate) WorkerDuration() time.Duration { return u.Duration }
func (u FailureUpdate) sealedUpdate()                 {}

func (u FailureUpdate) Validate() error {
	if u.Duration < 0 {
		return NewError(CodeValidation, "work.update", "duration must be non-negative", nil)
	}
	return nil
}

// ErrorMessage returns the worker-supplied failure reason, defaulted when the
// worker sent none.
func (u FailureUpdate) ErrorMessage() string {
	msg := strings.TrimSpace(u.Message)
	if msg == "" {
		return "failed with an unknown error"
	}
	return msg
}

// WarningUpdate reports an item that finished without failing but produced a
// condition the user should see, such as no matching data. Results may be
// empty.
type WarningUpdate struct {
	Message  string
	Results  []string
	Duration time.Duration
}

func (u WarningUpdate) Status() WorkItemStatus        { return ItemWarning }
func (u WarningUpdate) WorkerDuration() time.Duration { return u.Duration }
func (u WarningUpdate) sealedUpdate()                 {}

func (u WarningUpdate) Validate() error {
	for _, r := range u.Results {
		if strings.TrimSpace(r) == "" {
			return NewError(CodeValidation, "work.update", "result catalog URL must be non-empty", nil)
		}
	}
	if u.Duration < 0 {
		return NewError(CodeValidation, "work.update", "duration must be non-negative", nil)
	}
	return nil
}

// UpdateResults returns the output catalog URLs carried by the update, if the
// variant has any.
func UpdateResults(u WorkItemUpdate) []string {
	switch v := u.(type) {
	case SuccessUpdate:
		return v.Results
	case WarningUpdate:
		return v.Results
	default:
		return nil
	}
}
