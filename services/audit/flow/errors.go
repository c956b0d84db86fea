// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package flow turns the call graph into business-flow context.
//
// A business flow is the transitive closure of call relationships in
// one direction from a root function, materialized as a tree and then
// flattened into a depth-bounded, ordered list of function records. The
// concatenated record contents are the text handed to the scanning
// pipeline as the analysis unit for the root.
//
// Trees are ephemeral: one is built per root/direction pair, flattened,
// and discarded. They are never shared or mutated across requests.
//
// # Cycle and Duplication Semantics
//
// The cycle guard is per root-to-node path, not global: a function may
// legitimately reappear in sibling branches, and that duplication is
// load-bearing for context completeness. The cost is potential
// combinatorial growth on dense graphs, bounded by a configurable node
// cap rather than by deduplication.
package flow

import "errors"

// Sentinel errors for flow operations.
var (
	// ErrNilGraph is returned when a Builder is constructed without a
	// call graph.
	ErrNilGraph = errors.New("call graph must not be nil")

	// ErrEmptyRoot is returned when Build is called with an empty root
	// name.
	ErrEmptyRoot = errors.New("root function name must not be empty")

	// ErrInvalidDirection is returned for a Direction outside the
	// declared constants.
	ErrInvalidDirection = errors.New("invalid traversal direction")

	// ErrInvalidDepth is returned when Extract is called with a
	// negative depth bound.
	ErrInvalidDepth = errors.New("max depth must not be negative")

	// ErrBuildCancelled is returned when tree construction is cancelled
	// via context.
	ErrBuildCancelled = errors.New("flow build cancelled")
)
