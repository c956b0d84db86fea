// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package flow

import "github.com/zorrosword/finite-monkey-engine/services/audit"

// Direction selects which side of the call graph a tree expands.
type Direction int

const (
	// Downstream expands callees: the functions the root invokes,
	// transitively.
	Downstream Direction = iota

	// Upstream expands callers: the functions that invoke the root,
	// transitively.
	Upstream
)

// String returns the string representation of the Direction.
func (d Direction) String() string {
	switch d {
	case Downstream:
		return "downstream"
	case Upstream:
		return "upstream"
	default:
		return "unknown"
	}
}

// valid reports whether the direction is one of the declared constants.
func (d Direction) valid() bool {
	return d == Downstream || d == Upstream
}

// Node is one arena slot of a call tree.
//
// Nodes are addressed by their index in Tree.Nodes rather than by
// pointer; trees on dense graphs can run to tens of thousands of nodes
// and the arena keeps them in one allocation.
type Node struct {
	// Name is the short function name.
	Name string

	// Record is the resolved function record, or nil when the name is
	// not present in the record set. Unresolved names are not errors.
	Record *audit.FunctionRecord

	// Parent is the arena index of the parent node, -1 for the root.
	Parent int32

	// Depth is the distance from the root (root = 0).
	Depth int

	// Children are arena indices in lexicographic name order.
	Children []int32
}

// Tree is one rooted, single-direction call tree.
//
// The root is always Nodes[0]. Trees are built per request and
// discarded after flattening.
type Tree struct {
	// Nodes is the arena. Never empty: even an unknown root yields a
	// single stub node.
	Nodes []Node

	// Direction the tree was expanded in.
	Direction Direction

	// Truncated is true when expansion stopped at the node cap before
	// exhausting the graph.
	Truncated bool
}

// Root returns the root node.
func (t *Tree) Root() *Node {
	return &t.Nodes[0]
}

// Size returns the number of nodes in the tree.
func (t *Tree) Size() int {
	return len(t.Nodes)
}

// pathContains reports whether name appears on the path from the root
// to the node at idx, inclusive. This is the per-path cycle guard: the
// ancestor chain of an arena node is exactly the visited set a
// recursive implementation would copy per branch.
func (t *Tree) pathContains(idx int32, name string) bool {
	for i := idx; i >= 0; i = t.Nodes[i].Parent {
		if t.Nodes[i].Name == name {
			return true
		}
	}
	return false
}
