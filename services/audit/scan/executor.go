// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scan

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zorrosword/finite-monkey-engine/services/audit"
)

var tracer = otel.Tracer("audit.scan")

// DefaultShortResultLimit bounds the length of the one-line summary
// derived from each finding.
const DefaultShortResultLimit = 200

// SiblingStore is the slice of the task store the executor needs: the
// completed tasks of a group, for the running group summary.
type SiblingStore interface {
	CompletedInGroup(ctx context.Context, groupID string) ([]*audit.Task, error)
}

// Options configures Executor behavior.
type Options struct {
	// ShortResultLimit bounds the derived one-line summary.
	// Default: 200 runes.
	ShortResultLimit int

	// Logger receives execution logs. Default: slog.Default().
	Logger *slog.Logger
}

// Option is a functional option for configuring Executor.
type Option func(*Options)

// WithShortResultLimit sets the summary length bound.
func WithShortResultLimit(n int) Option {
	return func(o *Options) {
		o.ShortResultLimit = n
	}
}

// WithLogger sets the execution logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// Executor runs one scan task against the reasoning model.
//
// Description:
//
//	For each task, the executor assembles a prompt from three parts: a
//	running summary of earlier completed siblings in the same group, the
//	task's rule text, and its business-flow context. The model's
//	response becomes the task result; a bounded first line of it becomes
//	the short result that later siblings fold into their summaries.
//
// Thread Safety:
//
//	Safe for concurrent Execute calls; all per-task state lives on the
//	task itself, which the scheduler never shares across goroutines.
type Executor struct {
	client   ReasoningClient
	siblings SiblingStore
	options  Options
}

// NewExecutor creates an Executor.
//
// Inputs:
//
//	client - The reasoning model client. Must not be nil.
//	siblings - Source of completed group siblings. May be nil; group
//	summaries are then omitted.
//	opts - Functional options.
//
// Outputs:
//
//	*Executor - The configured executor.
//	error - ErrNilClient.
func NewExecutor(client ReasoningClient, siblings SiblingStore, opts ...Option) (*Executor, error) {
	if client == nil {
		return nil, ErrNilClient
	}

	options := Options{
		ShortResultLimit: DefaultShortResultLimit,
		Logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.ShortResultLimit <= 0 {
		options.ShortResultLimit = DefaultShortResultLimit
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}

	return &Executor{
		client:   client,
		siblings: siblings,
		options:  options,
	}, nil
}

// Execute runs one task and returns the model's finding.
//
// Inputs:
//
//	ctx - Context for cancellation and the per-task deadline.
//	task - The task to execute. ShortResult and ScanRecord are set on
//	it as side effects.
//
// Outputs:
//
//	string - The full response text, which the caller persists as the
//	task result.
//	error - Non-nil if the model call fails.
func (e *Executor) Execute(ctx context.Context, task *audit.Task) (string, error) {
	ctx, span := tracer.Start(ctx, "scan.Execute",
		trace.WithAttributes(
			attribute.String("task_id", task.ID),
			attribute.String("rule_key", task.RuleKey),
			attribute.String("group_id", task.GroupID),
		),
	)
	defer span.End()

	prompt := e.buildPrompt(ctx, task)
	task.ScanRecord = prompt

	response, err := e.client.Complete(ctx, prompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("executing task %s: %w", task.ID, err)
	}

	task.ShortResult = shortenResult(response, e.options.ShortResultLimit)
	span.SetStatus(codes.Ok, "")
	return response, nil
}

// buildPrompt assembles the scan prompt for one task.
//
// Sibling summary lookup failures degrade the prompt rather than fail
// the task; a scan without prior context is still a valid scan.
func (e *Executor) buildPrompt(ctx context.Context, task *audit.Task) string {
	var b strings.Builder

	if task.GroupID != "" && e.siblings != nil {
		done, err := e.siblings.CompletedInGroup(ctx, task.GroupID)
		if err != nil {
			e.options.Logger.Warn("sibling summary unavailable, scanning without it",
				slog.String("task_id", task.ID),
				slog.String("group_id", task.GroupID),
				slog.String("error", err.Error()),
			)
		} else if len(done) > 0 {
			b.WriteString("Findings so far for related checks of the same function:\n")
			for _, sibling := range done {
				summary := sibling.ShortResult
				if summary == "" {
					summary = shortenResult(sibling.Result, e.options.ShortResultLimit)
				}
				fmt.Fprintf(&b, "- [%s] %s\n", sibling.RuleKey, summary)
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("Audit rule:\n")
	b.WriteString(task.Rule)
	b.WriteString("\n\n")
	b.WriteString("Business flow under audit:\n")
	b.WriteString(task.FlowContext)
	b.WriteString("\n")

	return b.String()
}

// shortenResult derives the bounded one-line summary of a finding: the
// first non-empty line, truncated to limit runes.
func shortenResult(result string, limit int) string {
	for _, line := range strings.Split(result, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		runes := []rune(line)
		if len(runes) > limit {
			return string(runes[:limit])
		}
		return line
	}
	return ""
}
