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
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zorrosword/finite-monkey-engine/services/audit"
)

// storeUnderTest is the surface shared by the Badger and memory
// implementations; both must behave identically.
type storeUnderTest interface {
	PutTask(ctx context.Context, task *audit.Task) error
	GetTask(ctx context.Context, taskID string) (*audit.Task, error)
	ListTasks(ctx context.Context, runID string) ([]*audit.Task, error)
	UpdateResult(ctx context.Context, taskID, result, shortResult string) error
	CompletedInGroup(ctx context.Context, groupID string) ([]*audit.Task, error)
}

func openStores(t *testing.T) map[string]storeUnderTest {
	t.Helper()

	badgerStore, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = badgerStore.Close() })

	return map[string]storeUnderTest{
		"badger": badgerStore,
		"memory": NewMemoryStore(),
	}
}

func plannedTask(id string, seq int, groupID string) *audit.Task {
	return &audit.Task{
		ID:           id,
		RunID:        "run-1",
		Seq:          seq,
		RuleKey:      "reentrancy",
		Rule:         "check external calls before state updates",
		GroupID:      groupID,
		FunctionName: "withdraw",
		FlowContext:  "function withdraw() {}",
	}
}

func TestStore_RoundTrip(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			want := plannedTask("t1", 0, "g1")
			require.NoError(t, s.PutTask(ctx, want))

			got, err := s.GetTask(ctx, "t1")
			require.NoError(t, err)
			require.Equal(t, want.ID, got.ID)
			require.Equal(t, want.Rule, got.Rule)
			require.Equal(t, want.GroupID, got.GroupID)
			require.NotZero(t, got.UpdatedAtMilli)
		})
	}
}

func TestStore_ListTasksPlanningOrder(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			// Insert out of order; enumeration must follow Seq.
			require.NoError(t, s.PutTask(ctx, plannedTask("t3", 2, "")))
			require.NoError(t, s.PutTask(ctx, plannedTask("t1", 0, "g1")))
			require.NoError(t, s.PutTask(ctx, plannedTask("t2", 1, "g1")))

			tasks, err := s.ListTasks(ctx, "run-1")
			require.NoError(t, err)
			require.Len(t, tasks, 3)
			require.Equal(t, []string{"t1", "t2", "t3"},
				[]string{tasks[0].ID, tasks[1].ID, tasks[2].ID})
		})
	}
}

func TestStore_ListTasksOtherRunExcluded(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.PutTask(ctx, plannedTask("t1", 0, "")))
			other := plannedTask("t9", 0, "")
			other.RunID = "run-2"
			require.NoError(t, s.PutTask(ctx, other))

			tasks, err := s.ListTasks(ctx, "run-1")
			require.NoError(t, err)
			require.Len(t, tasks, 1)
			require.Equal(t, "t1", tasks[0].ID)
		})
	}
}

func TestStore_UpdateResult(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.PutTask(ctx, plannedTask("t1", 0, "g1")))

			require.NoError(t, s.UpdateResult(ctx, "t1", "vulnerable: reentrancy", "reentrancy found"))

			got, err := s.GetTask(ctx, "t1")
			require.NoError(t, err)
			require.True(t, got.Terminal())
			require.Equal(t, "reentrancy found", got.ShortResult)
		})
	}
}

func TestStore_UpdateResultUnknownTask(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			err := s.UpdateResult(context.Background(), "ghost", "r", "s")
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrTaskNotFound))
		})
	}
}

func TestStore_CompletedInGroup(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.PutTask(ctx, plannedTask("t1", 0, "g1")))
			require.NoError(t, s.PutTask(ctx, plannedTask("t2", 1, "g1")))
			require.NoError(t, s.PutTask(ctx, plannedTask("t3", 2, "g2")))

			// Only t1 completes.
			require.NoError(t, s.UpdateResult(ctx, "t1", "finding A", "A"))

			done, err := s.CompletedInGroup(ctx, "g1")
			require.NoError(t, err)
			require.Len(t, done, 1)
			require.Equal(t, "t1", done[0].ID)

			// Empty group id never matches anything.
			none, err := s.CompletedInGroup(ctx, "")
			require.NoError(t, err)
			require.Empty(t, none)
		})
	}
}

func TestStore_PutTaskValidation(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.ErrorIs(t, s.PutTask(ctx, nil), ErrInvalidTask)
			require.ErrorIs(t, s.PutTask(ctx, &audit.Task{ID: "x"}), ErrInvalidTask)
			require.ErrorIs(t, s.PutTask(ctx, &audit.Task{RunID: "r"}), ErrInvalidTask)
		})
	}
}

func TestBadgerStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(DefaultConfig(dir))
	require.NoError(t, err)
	require.NoError(t, s.PutTask(ctx, plannedTask("t1", 0, "g1")))
	require.NoError(t, s.UpdateResult(ctx, "t1", "finding", "short"))
	require.NoError(t, s.Close())

	reopened, err := Open(DefaultConfig(dir))
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetTask(ctx, "t1")
	require.NoError(t, err)
	require.True(t, got.Terminal())
}
