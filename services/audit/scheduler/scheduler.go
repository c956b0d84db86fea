// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/zorrosword/finite-monkey-engine/services/audit"
)

var (
	tracer = otel.Tracer("audit.scheduler")
	meter  = otel.Meter("audit.scheduler")
)

// Default configuration values.
const (
	// DefaultWorkers is the default number of concurrently running
	// group runners.
	DefaultWorkers = 5

	// DefaultTaskTimeout is the default per-task execution timeout.
	// Each task blocks on a reasoning-model call; ten minutes covers
	// slow models without letting a hung call pin a worker forever.
	DefaultTaskTimeout = 10 * time.Minute
)

// Executor runs one task and returns its result text.
//
// Description:
//
//	Executor is the opaque unit of work the scheduler drives. The
//	production implementation lives in the scan package; tests inject
//	instrumented fakes. An Executor may set ShortResult and ScanRecord
//	on the task; the scheduler owns Result and persistence.
//
// Thread Safety:
//
//	Implementations must tolerate concurrent Execute calls for tasks in
//	distinct groups. The scheduler never calls Execute concurrently for
//	tasks of the same group.
type Executor interface {
	Execute(ctx context.Context, task *audit.Task) (string, error)
}

// TaskStore is the persistence interface the scheduler consumes.
//
// Every write is scoped to a single task identity; the store's own
// atomicity is the only locking the scheduler relies on.
type TaskStore interface {
	// ListTasks enumerates all tasks of a run in planning order.
	ListTasks(ctx context.Context, runID string) ([]*audit.Task, error)

	// UpdateResult persists a task's terminal result by identity.
	UpdateResult(ctx context.Context, taskID, result, shortResult string) error

	// CompletedInGroup returns the tasks of a group that already hold a
	// non-empty result, in planning order.
	CompletedInGroup(ctx context.Context, groupID string) ([]*audit.Task, error)
}

// Admission optionally rejects a pending task for this pass. A rejected
// task is neither executed nor marked failed; it simply stays pending.
type Admission func(task *audit.Task) bool

// Options configures Scheduler behavior.
type Options struct {
	// Workers is the group-runner pool size W. Default: 5.
	Workers int

	// TaskTimeout bounds each task execution. Expiry is a retryable
	// failure. Default: 10 minutes.
	TaskTimeout time.Duration

	// Admission optionally filters pending tasks. Default: admit all.
	Admission Admission

	// Logger receives scheduling logs. Default: slog.Default().
	Logger *slog.Logger
}

// Option is a functional option for configuring Scheduler.
type Option func(*Options)

// WithWorkers sets the group-runner pool size.
func WithWorkers(w int) Option {
	return func(o *Options) {
		o.Workers = w
	}
}

// WithTaskTimeout sets the per-task execution timeout.
func WithTaskTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.TaskTimeout = d
	}
}

// WithAdmission sets the admission predicate.
func WithAdmission(fn Admission) Option {
	return func(o *Options) {
		o.Admission = fn
	}
}

// WithLogger sets the scheduling logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// RunReport summarizes one scheduler pass.
type RunReport struct {
	// RunID is the run the pass covered.
	RunID string

	// SessionID is the short unique id of this pass, present in all
	// its logs and spans.
	SessionID string

	// Groups is the number of task groups seen.
	Groups int

	// Tasks is the total number of tasks enumerated.
	Tasks int

	// Executed counts tasks that ran and persisted a result.
	Executed int

	// SkippedTerminal counts tasks skipped because they were already
	// terminal on entry.
	SkippedTerminal int

	// SkippedAdmission counts tasks the admission predicate rejected.
	SkippedAdmission int

	// Failed counts tasks whose execution or persistence failed. They
	// remain non-terminal and eligible for the next pass.
	Failed int

	// Duration is the wall time of the pass.
	Duration time.Duration
}

// Scheduler executes a run's tasks under the group-ordering contract.
//
// Thread Safety:
//
//	Safe for concurrent use; multiple runs can execute on one Scheduler.
type Scheduler struct {
	store    TaskStore
	executor Executor
	options  Options

	// Metrics (initialized lazily).
	metricsOnce   sync.Once
	taskLatency   metric.Float64Histogram
	taskSuccesses metric.Int64Counter
	taskFailures  metric.Int64Counter
	activeTasks   metric.Int64UpDownCounter
	passLatency   metric.Float64Histogram
}

// New creates a Scheduler.
//
// Inputs:
//
//	store - Task persistence. Must not be nil.
//	executor - Task execution. Must not be nil.
//	opts - Functional options.
//
// Outputs:
//
//	*Scheduler - The configured scheduler.
//	error - ErrNilStore or ErrNilExecutor.
func New(store TaskStore, executor Executor, opts ...Option) (*Scheduler, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	if executor == nil {
		return nil, ErrNilExecutor
	}

	options := Options{
		Workers:     DefaultWorkers,
		TaskTimeout: DefaultTaskTimeout,
		Logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Workers <= 0 {
		options.Workers = DefaultWorkers
	}
	if options.TaskTimeout <= 0 {
		options.TaskTimeout = DefaultTaskTimeout
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}

	return &Scheduler{
		store:    store,
		executor: executor,
		options:  options,
	}, nil
}

// initMetrics lazily initializes metrics.
// Logs errors if metric creation fails but continues execution.
func (s *Scheduler) initMetrics() {
	s.metricsOnce.Do(func() {
		var initErrors []string

		var err error
		s.taskLatency, err = meter.Float64Histogram("scan_task_duration_seconds",
			metric.WithDescription("Time spent executing each scan task"),
			metric.WithUnit("s"),
		)
		if err != nil {
			initErrors = append(initErrors, "task_latency: "+err.Error())
		}

		s.taskSuccesses, err = meter.Int64Counter("scan_task_success_total",
			metric.WithDescription("Number of tasks that persisted a result"),
		)
		if err != nil {
			initErrors = append(initErrors, "task_successes: "+err.Error())
		}

		s.taskFailures, err = meter.Int64Counter("scan_task_failure_total",
			metric.WithDescription("Number of task executions that failed"),
		)
		if err != nil {
			initErrors = append(initErrors, "task_failures: "+err.Error())
		}

		s.activeTasks, err = meter.Int64UpDownCounter("scan_active_tasks",
			metric.WithDescription("Number of currently executing tasks"),
		)
		if err != nil {
			initErrors = append(initErrors, "active_tasks: "+err.Error())
		}

		s.passLatency, err = meter.Float64Histogram("scan_pass_duration_seconds",
			metric.WithDescription("Total scheduler pass time"),
			metric.WithUnit("s"),
		)
		if err != nil {
			initErrors = append(initErrors, "pass_latency: "+err.Error())
		}

		if len(initErrors) > 0 {
			s.options.Logger.Error("failed to initialize some scheduler metrics (observability degraded)",
				slog.Int("failed_count", len(initErrors)),
				slog.Any("errors", initErrors),
			)
		}
	})
}

// taskGroup is one unit of submission to the worker pool: the ordered
// tasks sharing a group id, or a singleton for a task without one.
type taskGroup struct {
	key   string
	tasks []*audit.Task
}

// counters aggregates pass statistics across group runners.
type counters struct {
	executed         atomic.Int64
	skippedTerminal  atomic.Int64
	skippedAdmission atomic.Int64
	failed           atomic.Int64
}

// Run executes one scheduler pass over a run's tasks.
//
// Description:
//
//	Lists the run's tasks, partitions them by group id (empty group id
//	means a singleton group keyed by task id), and submits one group runner
//	per group to a pool bounded at Workers. Group runners iterate their
//	tasks strictly in planning order. A pass with only terminal tasks
//	performs zero executions.
//
// Inputs:
//
//	ctx - Context for cancellation. Must not be nil. Cancellation stops
//	admission of further tasks; results already persisted stay.
//	runID - The run whose tasks to execute.
//
// Outputs:
//
//	*RunReport - Pass statistics, non-nil even on cancellation.
//	error - Non-nil on listing failure or cancellation.
func (s *Scheduler) Run(ctx context.Context, runID string) (*RunReport, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	s.initMetrics()

	ctx, span := tracer.Start(ctx, "scheduler.Run",
		trace.WithAttributes(
			attribute.String("run_id", runID),
			attribute.Int("workers", s.options.Workers),
		),
	)
	defer span.End()

	start := time.Now()
	sessionID := uuid.NewString()[:12] // 48 bits of entropy
	logger := s.options.Logger.With(
		slog.String("run_id", runID),
		slog.String("session_id", sessionID),
	)

	tasks, err := s.store.ListTasks(ctx, runID)
	if err != nil {
		err = fmt.Errorf("listing tasks: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	groups := partition(tasks)
	span.SetAttributes(
		attribute.Int("task_count", len(tasks)),
		attribute.Int("group_count", len(groups)),
	)

	logger.Info("scan pass started",
		slog.Int("tasks", len(tasks)),
		slog.Int("groups", len(groups)),
	)

	var (
		stats counters
		wg    sync.WaitGroup
		sem   = semaphore.NewWeighted(int64(s.options.Workers))
	)

	for _, group := range groups {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Context cancelled while waiting for a worker slot; the
			// remaining groups are not started this pass.
			break
		}
		wg.Add(1)
		go func(g taskGroup) {
			defer wg.Done()
			defer sem.Release(1)
			s.runGroup(ctx, g, sessionID, logger, &stats)
		}(group)
	}
	wg.Wait()

	duration := time.Since(start)
	if s.passLatency != nil {
		s.passLatency.Record(ctx, duration.Seconds(),
			metric.WithAttributes(attribute.String("run_id", runID)),
		)
	}

	report := &RunReport{
		RunID:            runID,
		SessionID:        sessionID,
		Groups:           len(groups),
		Tasks:            len(tasks),
		Executed:         int(stats.executed.Load()),
		SkippedTerminal:  int(stats.skippedTerminal.Load()),
		SkippedAdmission: int(stats.skippedAdmission.Load()),
		Failed:           int(stats.failed.Load()),
		Duration:         duration,
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		span.RecordError(ctxErr)
		span.SetStatus(codes.Error, "pass cancelled")
		logger.Warn("scan pass cancelled",
			slog.Int("executed", report.Executed),
			slog.Int("failed", report.Failed),
		)
		return report, ctxErr
	}

	span.SetStatus(codes.Ok, "")
	logger.Info("scan pass completed",
		slog.Duration("duration", duration),
		slog.Int("executed", report.Executed),
		slog.Int("skipped_terminal", report.SkippedTerminal),
		slog.Int("skipped_admission", report.SkippedAdmission),
		slog.Int("failed", report.Failed),
	)

	return report, nil
}

// partition splits tasks into groups preserving list order, both of
// groups (by first appearance) and of tasks within each group. Tasks
// without a group id become singleton groups keyed by task id.
func partition(tasks []*audit.Task) []taskGroup {
	groups := make([]taskGroup, 0, len(tasks))
	byKey := make(map[string]int)

	for _, task := range tasks {
		if task == nil {
			continue
		}
		if task.GroupID == "" {
			groups = append(groups, taskGroup{
				key:   "task:" + task.ID,
				tasks: []*audit.Task{task},
			})
			continue
		}
		idx, ok := byKey[task.GroupID]
		if !ok {
			idx = len(groups)
			byKey[task.GroupID] = idx
			groups = append(groups, taskGroup{key: task.GroupID})
		}
		groups[idx].tasks = append(groups[idx].tasks, task)
	}
	return groups
}

// runGroup executes one group's tasks strictly in order.
//
// A task failure is counted and logged but never aborts the group; the
// next sibling still runs. Parent-context cancellation stops admission
// of the remaining tasks.
func (s *Scheduler) runGroup(
	ctx context.Context,
	group taskGroup,
	sessionID string,
	logger *slog.Logger,
	stats *counters,
) {
	ctx, span := tracer.Start(ctx, "scheduler.Group",
		trace.WithAttributes(
			attribute.String("group", group.key),
			attribute.Int("group_size", len(group.tasks)),
		),
	)
	defer span.End()

	for _, task := range group.tasks {
		if ctx.Err() != nil {
			span.AddEvent("group_cancelled")
			return
		}

		if task.Terminal() {
			stats.skippedTerminal.Add(1)
			logger.Debug("task already terminal, skipped",
				slog.String("task_id", task.ID),
			)
			continue
		}

		if s.options.Admission != nil && !s.options.Admission(task) {
			stats.skippedAdmission.Add(1)
			logger.Debug("task rejected by admission predicate",
				slog.String("task_id", task.ID),
			)
			continue
		}

		if err := s.executeTask(ctx, task, sessionID); err != nil {
			stats.failed.Add(1)
			logger.Error("task failed, left non-terminal for retry",
				slog.String("task_id", task.ID),
				slog.String("group", group.key),
				slog.String("error", err.Error()),
			)
			continue
		}
		stats.executed.Add(1)
	}
}

// executeTask runs a single task with timeout and observability, and
// persists its result immediately on success.
func (s *Scheduler) executeTask(ctx context.Context, task *audit.Task, sessionID string) error {
	ctx, span := tracer.Start(ctx, "scheduler.Task",
		trace.WithAttributes(
			attribute.String("task_id", task.ID),
			attribute.String("rule_key", task.RuleKey),
			attribute.String("group_id", task.GroupID),
			attribute.String("session_id", sessionID),
		),
	)
	defer span.End()

	if s.activeTasks != nil {
		s.activeTasks.Add(ctx, 1)
		defer s.activeTasks.Add(ctx, -1)
	}

	start := time.Now()
	taskCtx, cancel := context.WithTimeout(ctx, s.options.TaskTimeout)
	defer cancel()

	result, err := s.executor.Execute(taskCtx, task)
	duration := time.Since(start)

	if s.taskLatency != nil {
		s.taskLatency.Record(ctx, duration.Seconds(),
			metric.WithAttributes(attribute.String("rule_key", task.RuleKey)),
		)
	}

	if err != nil {
		if errors.Is(taskCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w after %s", ErrTaskTimeout, duration.Round(time.Millisecond))
		}
		if s.taskFailures != nil {
			s.taskFailures.Add(ctx, 1,
				metric.WithAttributes(attribute.String("rule_key", task.RuleKey)),
			)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return NewTaskError(task.ID, err)
	}

	task.Result = result

	// Persist before the next sibling starts: durability is per task,
	// so a crash mid-group preserves the completed prefix.
	if err := s.store.UpdateResult(ctx, task.ID, task.Result, task.ShortResult); err != nil {
		err = fmt.Errorf("persisting result: %w", err)
		if s.taskFailures != nil {
			s.taskFailures.Add(ctx, 1,
				metric.WithAttributes(attribute.String("rule_key", task.RuleKey)),
			)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return NewTaskError(task.ID, err)
	}

	if s.taskSuccesses != nil {
		s.taskSuccesses.Add(ctx, 1,
			metric.WithAttributes(attribute.String("rule_key", task.RuleKey)),
		)
	}
	span.SetStatus(codes.Ok, "")

	s.options.Logger.Info("task completed",
		slog.String("task_id", task.ID),
		slog.Duration("duration", duration),
	)

	return nil
}
