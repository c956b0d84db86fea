// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store persists scan tasks in an embedded BadgerDB.
//
// The store is the durability layer behind the scheduler: every task
// result is written individually, immediately after execution, so a
// crash mid-group preserves the completed prefix of that group. All
// writes are scoped to a single task identity inside one Badger
// transaction; no cross-task aggregate is ever mutated.
//
// Key layout:
//
//	task/<runID>/<seq>/<taskID>      JSON task value, seq zero-padded
//	idx/task/<taskID>                -> primary key
//	idx/group/<groupID>/<seq>/<id>   -> primary key
//
// Planning order falls out of Badger's byte-ordered iteration over the
// zero-padded sequence segment.
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/zorrosword/finite-monkey-engine/services/audit"
)

// Sentinel errors for store operations.
var (
	// ErrTaskNotFound is returned when a task id has no stored task.
	ErrTaskNotFound = errors.New("task not found")

	// ErrInvalidTask is returned when a task is missing its ID or
	// RunID.
	ErrInvalidTask = errors.New("task must have an ID and a RunID")
)

// Config holds configuration for the Badger-backed store.
type Config struct {
	// Path is the directory for database files.
	// Required unless InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	// Useful for testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	// Default: true for production, false for testing.
	SyncWrites bool

	// Logger is the logger for database operations.
	// If nil, Badger's internal logging is disabled.
	Logger *slog.Logger
}

// DefaultConfig returns production defaults: synchronous writes at the
// given path.
func DefaultConfig(path string) Config {
	return Config{
		Path:       path,
		SyncWrites: true,
	}
}

// InMemoryConfig returns configuration for tests: in-memory, no sync.
func InMemoryConfig() Config {
	return Config{
		InMemory: true,
	}
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// TaskStore persists tasks in BadgerDB.
//
// Thread Safety:
//
//	Safe for concurrent use; Badger transactions provide the per-write
//	atomicity the scheduler relies on.
type TaskStore struct {
	db *badger.DB
}

// Open opens a task store with the given configuration.
//
// Inputs:
//
//	cfg - Store configuration. Path is required unless InMemory.
//
// Outputs:
//
//	*TaskStore - The opened store. Caller must Close() when done.
//	error - Non-nil if the database cannot be opened.
func Open(cfg Config) (*TaskStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open task store: %w", err)
	}
	return &TaskStore{db: db}, nil
}

// OpenInMemory opens an in-memory store for testing.
func OpenInMemory() (*TaskStore, error) {
	return Open(InMemoryConfig())
}

// Close closes the underlying database.
func (s *TaskStore) Close() error {
	return s.db.Close()
}

func taskKey(runID string, seq int, taskID string) []byte {
	return []byte(fmt.Sprintf("task/%s/%08d/%s", runID, seq, taskID))
}

func taskIndexKey(taskID string) []byte {
	return []byte("idx/task/" + taskID)
}

func groupIndexKey(groupID string, seq int, taskID string) []byte {
	return []byte(fmt.Sprintf("idx/group/%s/%08d/%s", groupID, seq, taskID))
}

// PutTask stores a planned task and its lookup indexes.
//
// Inputs:
//
//	ctx - Context, checked before the transaction starts.
//	task - The task to store. Must carry ID and RunID; Seq determines
//	its position in ListTasks.
//
// Outputs:
//
//	error - ErrInvalidTask or a database error.
func (s *TaskStore) PutTask(ctx context.Context, task *audit.Task) error {
	if task == nil || task.ID == "" || task.RunID == "" {
		return ErrInvalidTask
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	stored := task.Clone()
	stored.UpdatedAtMilli = time.Now().UnixMilli()

	value, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("encode task %s: %w", task.ID, err)
	}

	primary := taskKey(stored.RunID, stored.Seq, stored.ID)
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(primary, value); err != nil {
			return err
		}
		if err := txn.Set(taskIndexKey(stored.ID), primary); err != nil {
			return err
		}
		if stored.GroupID != "" {
			if err := txn.Set(groupIndexKey(stored.GroupID, stored.Seq, stored.ID), primary); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetTask loads one task by id.
//
// Outputs:
//
//	*audit.Task - The stored task.
//	error - ErrTaskNotFound or a database error.
func (s *TaskStore) GetTask(ctx context.Context, taskID string) (*audit.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var task *audit.Task
	err := s.db.View(func(txn *badger.Txn) error {
		loaded, err := loadByIndex(txn, taskIndexKey(taskID))
		if err != nil {
			return err
		}
		task = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// ListTasks enumerates all tasks of a run in planning order.
func (s *TaskStore) ListTasks(ctx context.Context, runID string) ([]*audit.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := []byte("task/" + runID + "/")
	tasks := make([]*audit.Task, 0)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			value, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			task := &audit.Task{}
			if err := json.Unmarshal(value, task); err != nil {
				return fmt.Errorf("decode task at %s: %w", it.Item().Key(), err)
			}
			tasks = append(tasks, task)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// UpdateResult persists a task's result by identity.
//
// The read-modify-write happens inside one transaction, keeping the
// write scoped to the single task the scheduler just executed.
func (s *TaskStore) UpdateResult(ctx context.Context, taskID, result, shortResult string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(taskIndexKey(taskID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
		}
		if err != nil {
			return err
		}
		primary, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}

		stored, err := txn.Get(primary)
		if err != nil {
			return err
		}
		value, err := stored.ValueCopy(nil)
		if err != nil {
			return err
		}

		task := &audit.Task{}
		if err := json.Unmarshal(value, task); err != nil {
			return fmt.Errorf("decode task %s: %w", taskID, err)
		}
		task.Result = result
		task.ShortResult = shortResult
		task.UpdatedAtMilli = time.Now().UnixMilli()

		updated, err := json.Marshal(task)
		if err != nil {
			return fmt.Errorf("encode task %s: %w", taskID, err)
		}
		return txn.Set(primary, updated)
	})
}

// CompletedInGroup returns the terminal tasks of a group in planning
// order. This is the query behind the scheduler's running group
// summary; in-order execution guarantees the result is a complete
// prefix of the group.
func (s *TaskStore) CompletedInGroup(ctx context.Context, groupID string) ([]*audit.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if groupID == "" {
		return nil, nil
	}

	prefix := []byte("idx/group/" + groupID + "/")
	tasks := make([]*audit.Task, 0)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			primary, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			task, err := loadByKey(txn, primary)
			if err != nil {
				return err
			}
			if task.Terminal() {
				tasks = append(tasks, task)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// loadByIndex follows an index entry to its primary task value.
func loadByIndex(txn *badger.Txn, indexKey []byte) (*audit.Task, error) {
	item, err := txn.Get(indexKey)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, err
	}
	primary, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	return loadByKey(txn, primary)
}

// loadByKey decodes the task stored at a primary key.
func loadByKey(txn *badger.Txn, key []byte) (*audit.Task, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, err
	}
	value, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	task := &audit.Task{}
	if err := json.Unmarshal(value, task); err != nil {
		return nil, fmt.Errorf("decode task at %s: %w", key, err)
	}
	return task, nil
}
