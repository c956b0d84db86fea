// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package audit defines the shared domain records of the audit engine.
//
// The audit engine consumes function records produced by an external
// extraction step, relates them into a lexical call graph, flattens call
// trees into business-flow context, and drives rule-based scan tasks
// against a reasoning model. This package holds only the records those
// subsystems exchange; the subsystems themselves live in the relation,
// flow, scheduler, store, and scan packages.
//
// # Ownership Model
//
// FunctionRecord values are produced by the extraction collaborator and
// are read-only inside the engine. Task values are created by planning,
// mutated in place by the scheduler and its executor, and persisted by
// the store.
package audit

import "strings"

// FunctionRecord describes one extracted source function.
//
// Records arrive fully populated from the extraction collaborator and
// MUST NOT be mutated by the engine. The same pointer may be shared by
// any number of concurrent graph and flow operations.
type FunctionRecord struct {
	// Name is the qualified function name, e.g. "Token.transfer".
	Name string

	// Content is the function source text. Relationship inference
	// matches callee names against this field.
	Content string

	// FilePath is the path of the file the function was extracted from.
	FilePath string

	// StartLine and EndLine delimit the function in FilePath.
	StartLine int
	EndLine   int

	// ContractCode optionally carries the enclosing file or contract
	// source for languages where that context matters.
	ContractCode string

	// Modifiers, Visibility, and Mutability are optional
	// language-specific attributes (e.g. Solidity "onlyOwner",
	// "external", "view"). Empty when the source language has no such
	// notion.
	Modifiers  []string
	Visibility string
	Mutability string
}

// ShortName returns the last dot-separated segment of the qualified name.
//
// Two distinct functions sharing a short name collapse into one graph
// node. This is the documented precision loss of lexical matching, not
// something callers should try to compensate for.
func (r *FunctionRecord) ShortName() string {
	return ShortNameOf(r.Name)
}

// ShortNameOf derives the short name from a qualified name.
func ShortNameOf(qualified string) string {
	if idx := strings.LastIndex(qualified, "."); idx >= 0 {
		return qualified[idx+1:]
	}
	return qualified
}

// Task is one unit of scan work: a rule applied to the business-flow
// context of one root function.
//
// Tasks are created by planning, executed by the scheduler, and
// persisted individually by the store. A task is never deleted during a
// run; failed tasks simply stay non-terminal and are picked up again by
// the next pass.
type Task struct {
	// ID uniquely identifies the task across runs.
	ID string

	// RunID identifies the scan pass the task belongs to.
	RunID string

	// Seq is the planning order of the task within its run. The store
	// preserves this order when enumerating tasks.
	Seq int

	// RuleKey identifies the rule or checklist entry being applied.
	RuleKey string

	// Rule is the rule content handed to the reasoning model.
	Rule string

	// GroupID groups tasks whose results build on each other. Tasks
	// sharing a GroupID execute strictly in Seq order; an empty GroupID
	// makes the task its own singleton group.
	GroupID string

	// FunctionName is the name of the root function under scan.
	FunctionName string

	// FlowContext is the depth-bounded business-flow context assembled
	// for the root function.
	FlowContext string

	// Result is the reasoning model's response. Once non-empty the task
	// is terminal and excluded from future execution.
	Result string

	// ShortResult is a one-line digest of Result, consumed by later
	// tasks in the same group as part of their running summary.
	ShortResult string

	// ScanRecord preserves the exact prompt the task was scanned with.
	ScanRecord string

	// UpdatedAtMilli is the Unix timestamp in milliseconds of the last
	// persisted update. Maintained by the store.
	UpdatedAtMilli int64
}

// Terminal reports whether the task already holds a terminal result.
//
// Whitespace-only results do not count; a model response consisting of
// nothing but blank lines leaves the task eligible for retry.
func (t *Task) Terminal() bool {
	return strings.TrimSpace(t.Result) != ""
}

// Clone returns a deep copy of the task.
//
// Stores hand out clones so concurrent group runners never share a
// mutable task with the store's authoritative copy.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
