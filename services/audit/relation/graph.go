// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package relation

import (
	"sort"
	"time"
)

// GraphState represents the lifecycle state of the call graph.
type GraphState int

const (
	// GraphStateBuilding indicates the graph is accepting edges.
	GraphStateBuilding GraphState = iota

	// GraphStateReadOnly indicates the graph is frozen and read-only.
	GraphStateReadOnly
)

// String returns the string representation of the GraphState.
func (s GraphState) String() string {
	switch s {
	case GraphStateBuilding:
		return "building"
	case GraphStateReadOnly:
		return "readonly"
	default:
		return "unknown"
	}
}

// CallGraph is the bidirectional lexical call graph of one project.
//
// Nodes are short function names. For every pair of related functions
// the graph maintains the symmetry invariant: g is downstream of f
// exactly when f is upstream of g. The invariant holds from the moment
// Build returns and is never violated afterwards, because the graph is
// frozen.
//
// Thread Safety:
//
//	Not safe for concurrent use while in GraphStateBuilding. After
//	Freeze() the graph is immutable and safe for unlimited concurrent
//	readers with no locking.
type CallGraph struct {
	// upstream maps a short name to the set of short names that call it.
	upstream map[string]map[string]struct{}

	// downstream maps a short name to the set of short names it calls.
	downstream map[string]map[string]struct{}

	// edgeCount is the number of caller->callee relationships.
	edgeCount int

	// state is the current lifecycle state.
	state GraphState

	// BuiltAtMilli is the Unix timestamp in milliseconds when Freeze()
	// was called. Zero while building.
	BuiltAtMilli int64
}

// newCallGraph creates an empty graph in the building state.
func newCallGraph() *CallGraph {
	return &CallGraph{
		upstream:   make(map[string]map[string]struct{}),
		downstream: make(map[string]map[string]struct{}),
		state:      GraphStateBuilding,
	}
}

// addFunction ensures a short name is present as a key in both
// directions, mapping to (possibly empty) sets.
func (g *CallGraph) addFunction(short string) error {
	if g.state != GraphStateBuilding {
		return ErrGraphFrozen
	}
	if _, ok := g.upstream[short]; !ok {
		g.upstream[short] = make(map[string]struct{})
	}
	if _, ok := g.downstream[short]; !ok {
		g.downstream[short] = make(map[string]struct{})
	}
	return nil
}

// addCall records that caller invokes callee, maintaining symmetry.
// Self-edges are rejected silently; duplicate edges collapse.
func (g *CallGraph) addCall(caller, callee string) error {
	if g.state != GraphStateBuilding {
		return ErrGraphFrozen
	}
	if caller == callee {
		return nil
	}
	if err := g.addFunction(caller); err != nil {
		return err
	}
	if err := g.addFunction(callee); err != nil {
		return err
	}
	if _, dup := g.downstream[caller][callee]; dup {
		return nil
	}
	g.downstream[caller][callee] = struct{}{}
	g.upstream[callee][caller] = struct{}{}
	g.edgeCount++
	return nil
}

// freeze transitions the graph to read-only.
func (g *CallGraph) freeze() {
	if g.state == GraphStateReadOnly {
		return
	}
	g.state = GraphStateReadOnly
	g.BuiltAtMilli = time.Now().UnixMilli()
}

// State returns the current lifecycle state.
func (g *CallGraph) State() GraphState {
	return g.state
}

// Contains reports whether the short name is a node in the graph.
func (g *CallGraph) Contains(short string) bool {
	_, ok := g.downstream[short]
	return ok
}

// FunctionCount returns the number of nodes in the graph.
func (g *CallGraph) FunctionCount() int {
	return len(g.downstream)
}

// EdgeCount returns the number of caller->callee relationships.
func (g *CallGraph) EdgeCount() int {
	return g.edgeCount
}

// Names returns all short names in the graph, sorted.
func (g *CallGraph) Names() []string {
	names := make([]string, 0, len(g.downstream))
	for name := range g.downstream {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Upstream returns the sorted callers of a function. Unknown names
// yield an empty slice, never an error.
func (g *CallGraph) Upstream(short string) []string {
	return sortedSet(g.upstream[short])
}

// Downstream returns the sorted callees of a function. Unknown names
// yield an empty slice, never an error.
func (g *CallGraph) Downstream(short string) []string {
	return sortedSet(g.downstream[short])
}

// HasCall reports whether caller invokes callee in the graph.
func (g *CallGraph) HasCall(caller, callee string) bool {
	_, ok := g.downstream[caller][callee]
	return ok
}

// sortedSet copies a set into a sorted slice. Sorting here is what
// makes child expansion order deterministic for flow trees.
func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
