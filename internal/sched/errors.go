package sched

import (
	"errors"
	"fmt"
)

// ErrPreempted is the cause carried by a PreemptionInterrupt.
var ErrPreempted = errors.New("preempted by a more urgent request")

// MetadataFetchError means a task's data could not be loaded. The task's
// arrival slots are skipped.
type MetadataFetchError struct {
	TaskID TaskID
	Err    error
}

func (e *MetadataFetchError) Error() string {
	return fmt.Sprintf("fetch metadata for task %s: %v", e.TaskID, e.Err)
}

func (e *MetadataFetchError) Unwrap() error { return e.Err }

// StrategyFetchError means the policy source could not be read. The
// arrival falls back to the fair policy.
type StrategyFetchError struct {
	Err error
}

func (e *StrategyFetchError) Error() string {
	return fmt.Sprintf("fetch scheduling strategy: %v", e.Err)
}

func (e *StrategyFetchError) Unwrap() error { return e.Err }

// PreemptionInterrupt is delivered to a task whose grant was taken by a more
// urgent request. It is a control signal, not a failure.
type PreemptionInterrupt struct {
	TaskID  TaskID
	Sensor  string
	Attempt int
}

func (e *PreemptionInterrupt) Error() string {
	return fmt.Sprintf("task %s attempt %d interrupted on %s", e.TaskID, e.Attempt, e.Sensor)
}

func (e *PreemptionInterrupt) Unwrap() error { return ErrPreempted }

// MissingFieldError means a task was scored or dispatched before one of its
// mandatory fields was populated.
type MissingFieldError struct {
	TaskID TaskID
	Field  Field
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("task %s: missing %s", e.TaskID, e.Field)
}

// ResubmitLimitError means a task was preempted more often than the
// configured bound and has been abandoned.
type ResubmitLimitError struct {
	TaskID TaskID
	Limit  int
}

func (e *ResubmitLimitError) Error() string {
	return fmt.Sprintf("task %s: abandoned after %d resubmissions", e.TaskID, e.Limit)
}
