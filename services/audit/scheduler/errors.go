// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package scheduler executes scan tasks with group-ordered concurrency.
//
// Tasks sharing a group id run strictly in their planning order, one at
// a time, because later tasks consume a running summary of earlier
// sibling results. Tasks in distinct groups run concurrently, bounded
// by a worker pool. A task failure is logged and isolated: the failed
// task stays non-terminal for a future pass, and neither its group nor
// any other group is aborted.
//
// # Ordering Guarantees
//
//   - Within a group: completion of task i strictly precedes the start
//     of task i+1. No two tasks of one group ever run concurrently.
//   - Across groups: none. Any interleaving of group runners is valid.
package scheduler

import (
	"errors"
	"fmt"
)

// Sentinel errors for scheduler operations.
var (
	// ErrNilContext is returned when Run is called with a nil context.
	ErrNilContext = errors.New("context must not be nil")

	// ErrNilStore is returned when a Scheduler is constructed without a
	// task store.
	ErrNilStore = errors.New("task store must not be nil")

	// ErrNilExecutor is returned when a Scheduler is constructed
	// without an executor.
	ErrNilExecutor = errors.New("executor must not be nil")

	// ErrTaskTimeout marks a task execution that exceeded the per-task
	// timeout. Timeouts are retryable failures, never silent skips.
	ErrTaskTimeout = errors.New("task execution timed out")
)

// TaskError wraps an error with the identity of the task it occurred
// on. Task failures never propagate out of Run; TaskError exists for
// logs and for tests asserting on failure attribution.
type TaskError struct {
	// TaskID identifies the failed task.
	TaskID string

	// Err is the underlying error.
	Err error
}

// NewTaskError creates a TaskError.
func NewTaskError(taskID string, err error) *TaskError {
	return &TaskError{TaskID: taskID, Err: err}
}

// Error implements the error interface.
func (e *TaskError) Error() string {
	return fmt.Sprintf("task %s: %v", e.TaskID, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *TaskError) Unwrap() error {
	return e.Err
}
