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

import (
	"strings"

	"github.com/zorrosword/finite-monkey-engine/services/audit"
)

// Extract flattens a call tree into depth-bounded business-flow context.
//
// Description:
//
//	Pre-order traversal of the tree. A node contributes its function
//	record to the output only when the record is resolved and the node
//	sits at depth <= maxDepth; the traversal never descends past
//	maxDepth. Per-depth counts are incremented only for nodes that
//	contributed a record. Output order is deterministic because child
//	order is inherited from the builder's sorted expansion.
//
// Inputs:
//
//	tree - The tree to flatten. Must not be nil.
//	maxDepth - Depth bound; root is depth 0. Zero means root only.
//
// Outputs:
//
//	[]*audit.FunctionRecord - Contributing records in pre-order.
//	map[int]int - Contributing node count per depth.
//	error - ErrInvalidDepth when maxDepth is negative.
func Extract(tree *Tree, maxDepth int) ([]*audit.FunctionRecord, map[int]int, error) {
	if maxDepth < 0 {
		return nil, nil, ErrInvalidDepth
	}

	records := make([]*audit.FunctionRecord, 0, tree.Size())
	perDepth := make(map[int]int)

	// Explicit pre-order stack; children pushed in reverse so the
	// lexicographically first child pops first.
	stack := []int32{0}
	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		node := &tree.Nodes[idx]

		if node.Record != nil {
			records = append(records, node.Record)
			perDepth[node.Depth]++
		}

		if node.Depth >= maxDepth {
			continue
		}
		for i := len(node.Children) - 1; i >= 0; i-- {
			stack = append(stack, node.Children[i])
		}
	}

	return records, perDepth, nil
}

// ContextText concatenates record contents into the business-flow
// context string handed to the scanning pipeline.
//
// Records are joined in their extraction order, separated by a blank
// line. Empty contents are skipped.
func ContextText(records []*audit.FunctionRecord) string {
	var b strings.Builder
	for _, r := range records {
		if r == nil || r.Content == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(r.Content)
	}
	return b.String()
}
