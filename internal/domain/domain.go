package domain

import (
	"github.com/harmony-sds/workflow-core/internal/domain/work"
)

// Entities

type Job = work.Job
type WorkflowStep = work.WorkflowStep
type WorkItem = work.WorkItem
type JobLink = work.JobLink
type JobError = work.JobError
type Batch = work.Batch
type BatchItem = work.BatchItem
type UserWork = work.UserWork

// Statuses

type JobStatus = work.JobStatus
type WorkItemStatus = work.WorkItemStatus
type StepKind = work.StepKind

const (
	JobAccepted           = work.JobAccepted
	JobPreviewing         = work.JobPreviewing
	JobRunning            = work.JobRunning
	JobRunningWithErrors  = work.JobRunningWithErrors
	JobPaused             = work.JobPaused
	JobCompleteWithErrors = work.JobCompleteWithErrors
	JobSuccessful         = work.JobSuccessful
	JobFailed             = work.JobFailed
	JobCanceled           = work.JobCanceled

	ItemReady      = work.ItemReady
	ItemRunning    = work.ItemRunning
	ItemSuccessful = work.ItemSuccessful
	ItemFailed     = work.ItemFailed
	ItemCanceled   = work.ItemCanceled
	ItemWarning    = work.ItemWarning

	StepSequentialQuery  = work.StepSequentialQuery
	StepMap              = work.StepMap
	StepAggregate        = work.StepAggregate
	StepBatchedAggregate = work.StepBatchedAggregate
)

// Status sets

var (
	TerminalJobStatuses      = work.TerminalJobStatuses
	DispatchableJobStatuses  = work.DispatchableJobStatuses
	TerminalWorkItemStatuses = work.TerminalWorkItemStatuses
)

// Updates

type WorkItemUpdate = work.WorkItemUpdate
type SuccessUpdate = work.SuccessUpdate
type FailureUpdate = work.FailureUpdate
type WarningUpdate = work.WarningUpdate

// Errors

type Error = work.Error
type ErrorCode = work.ErrorCode

const (
	CodeValidation         = work.CodeValidation
	CodeNotFound           = work.CodeNotFound
	CodeConflict           = work.CodeConflict
	CodeInvariantViolation = work.CodeInvariantViolation
	CodePreconditionFailed = work.CodePreconditionFailed
	CodeRetryable          = work.CodeRetryable
	CodeInternal           = work.CodeInternal
)
