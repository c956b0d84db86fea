// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/zorrosword/finite-monkey-engine/services/audit"
)

// MemoryStore is a mutex-guarded in-memory task store.
//
// It implements the same interface as the Badger-backed TaskStore and
// exists for tests and dry runs where persistence across processes is
// not needed. The store hands out clones; callers never share mutable
// tasks with its authoritative copies.
type MemoryStore struct {
	mu    sync.Mutex
	tasks map[string]*audit.Task
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tasks: make(map[string]*audit.Task),
	}
}

// PutTask stores a planned task.
func (s *MemoryStore) PutTask(ctx context.Context, task *audit.Task) error {
	if task == nil || task.ID == "" || task.RunID == "" {
		return ErrInvalidTask
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	stored := task.Clone()
	stored.UpdatedAtMilli = time.Now().UnixMilli()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[stored.ID] = stored
	return nil
}

// GetTask loads one task by id.
func (s *MemoryStore) GetTask(ctx context.Context, taskID string) (*audit.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[taskID]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return task.Clone(), nil
}

// ListTasks enumerates all tasks of a run in planning order.
func (s *MemoryStore) ListTasks(ctx context.Context, runID string) ([]*audit.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*audit.Task, 0)
	for _, task := range s.tasks {
		if task.RunID == runID {
			out = append(out, task.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

// UpdateResult persists a task's result by identity.
func (s *MemoryStore) UpdateResult(ctx context.Context, taskID, result, shortResult string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[taskID]
	if !ok {
		return ErrTaskNotFound
	}
	task.Result = result
	task.ShortResult = shortResult
	task.UpdatedAtMilli = time.Now().UnixMilli()
	return nil
}

// CompletedInGroup returns the terminal tasks of a group in planning
// order.
func (s *MemoryStore) CompletedInGroup(ctx context.Context, groupID string) ([]*audit.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if groupID == "" {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*audit.Task, 0)
	for _, task := range s.tasks {
		if task.GroupID == groupID && task.Terminal() {
			out = append(out, task.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}
