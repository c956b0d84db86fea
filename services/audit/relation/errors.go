// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package relation builds the lexical call graph of a project.
//
// The relation package infers caller/callee relationships between
// extracted function records without a compiler front end: a function g
// is considered a caller of f when g's source contains a whole-word,
// case-insensitive occurrence of f's short name. This is a documented
// approximation: false positives (a comment mentioning the name) and
// false negatives (dynamic dispatch) are accepted, and two functions
// sharing a short name collapse into one graph node. The matching
// strategy is pluggable via the Resolver interface so an AST-based
// resolver can be substituted without touching the flow package.
//
// # Lifecycle
//
// A graph is built once per parse, single-threaded, then frozen:
//
//  1. Create an Analyzer with NewAnalyzer(...)
//  2. Call Build(ctx, records) to obtain a frozen *CallGraph
//  3. Share the graph freely; it is read-only for its lifetime
//
// # Thread Safety
//
// CallGraph is not safe for concurrent use while building. After Build
// returns it is immutable and safe for any number of concurrent
// readers.
package relation

import "errors"

// Sentinel errors for graph construction.
var (
	// ErrBuildCancelled is returned when graph construction is
	// cancelled via context.
	ErrBuildCancelled = errors.New("relation build cancelled")

	// ErrMaxFunctionsExceeded is returned when the record set is larger
	// than the analyzer's configured limit. The pairwise pass is
	// quadratic; the limit keeps pathological inputs from consuming the
	// process.
	ErrMaxFunctionsExceeded = errors.New("maximum function count exceeded")

	// ErrGraphFrozen is returned when attempting to modify a frozen
	// graph.
	ErrGraphFrozen = errors.New("call graph is frozen and cannot be modified")
)
