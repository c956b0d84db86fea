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
	"context"
	"testing"

	"github.com/zorrosword/finite-monkey-engine/services/audit"
	"github.com/zorrosword/finite-monkey-engine/services/audit/relation"
)

// buildGraph constructs a frozen graph from caller->callees content.
// Each function body just names its callees, which is all the lexical
// resolver needs.
func buildGraph(t *testing.T, calls map[string][]string) (*relation.CallGraph, map[string]*audit.FunctionRecord) {
	t.Helper()

	var records []*audit.FunctionRecord
	for name, callees := range calls {
		content := "function " + name + "() {"
		for _, c := range callees {
			content += " " + c + "();"
		}
		content += " }"
		records = append(records, &audit.FunctionRecord{
			Name:    "Test." + name,
			Content: content,
		})
	}

	graph, err := relation.NewAnalyzer().Build(context.Background(), records)
	if err != nil {
		t.Fatalf("graph build failed: %v", err)
	}
	return graph, RecordIndex(records)
}

// collectPaths returns every root-to-leaf name path in the tree.
func collectPaths(tree *Tree) [][]string {
	var paths [][]string
	var walk func(idx int32, path []string)
	walk = func(idx int32, path []string) {
		node := &tree.Nodes[idx]
		path = append(path, node.Name)
		if len(node.Children) == 0 {
			paths = append(paths, append([]string(nil), path...))
			return
		}
		for _, c := range node.Children {
			walk(c, path)
		}
	}
	walk(0, nil)
	return paths
}

func TestBuilder_Build_Chain(t *testing.T) {
	graph, index := buildGraph(t, map[string][]string{
		"alpha": {"beta"},
		"beta":  {"gamma"},
		"gamma": {},
	})

	builder, err := NewBuilder(graph, index)
	if err != nil {
		t.Fatalf("NewBuilder failed: %v", err)
	}

	tree, err := builder.Build(context.Background(), "alpha", Downstream)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	paths := collectPaths(tree)
	if len(paths) != 1 {
		t.Fatalf("got %d paths, want 1: %v", len(paths), paths)
	}
	want := []string{"alpha", "beta", "gamma"}
	for i, name := range want {
		if paths[0][i] != name {
			t.Errorf("path[%d] = %q, want %q", i, paths[0][i], name)
		}
	}
}

func TestBuilder_Build_Upstream(t *testing.T) {
	graph, index := buildGraph(t, map[string][]string{
		"alpha": {"beta"},
		"beta":  {"gamma"},
		"gamma": {},
	})

	builder, _ := NewBuilder(graph, index)
	tree, err := builder.Build(context.Background(), "gamma", Upstream)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	paths := collectPaths(tree)
	if len(paths) != 1 || len(paths[0]) != 3 {
		t.Fatalf("paths = %v, want one gamma->beta->alpha chain", paths)
	}
	if paths[0][0] != "gamma" || paths[0][1] != "beta" || paths[0][2] != "alpha" {
		t.Errorf("upstream path = %v, want [gamma beta alpha]", paths[0])
	}
}

func TestBuilder_Build_CycleGuard(t *testing.T) {
	// alpha -> beta -> alpha cycle; each path must stop before
	// repeating a name.
	graph, index := buildGraph(t, map[string][]string{
		"alpha": {"beta"},
		"beta":  {"alpha"},
	})

	builder, _ := NewBuilder(graph, index)
	tree, err := builder.Build(context.Background(), "alpha", Downstream)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	for _, path := range collectPaths(tree) {
		seen := make(map[string]bool)
		for _, name := range path {
			if seen[name] {
				t.Errorf("path %v repeats %q", path, name)
			}
			seen[name] = true
		}
	}
	if tree.Size() != 2 {
		t.Errorf("tree size = %d, want 2 (alpha, beta)", tree.Size())
	}
}

func TestBuilder_Build_SiblingDuplication(t *testing.T) {
	// Diamond: alpha calls beta and gamma, both call delta. delta must
	// appear once under each branch; sibling duplication is
	// intentional.
	graph, index := buildGraph(t, map[string][]string{
		"alpha": {"beta", "gamma"},
		"beta":  {"delta"},
		"gamma": {"delta"},
		"delta": {},
	})

	builder, _ := NewBuilder(graph, index)
	tree, err := builder.Build(context.Background(), "alpha", Downstream)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	deltas := 0
	for _, node := range tree.Nodes {
		if node.Name == "delta" {
			deltas++
		}
	}
	if deltas != 2 {
		t.Errorf("delta appears %d times, want 2 (once per branch)", deltas)
	}
}

func TestBuilder_Build_DeterministicChildOrder(t *testing.T) {
	graph, index := buildGraph(t, map[string][]string{
		"root":  {"zeta", "alpha", "mid"},
		"zeta":  {},
		"alpha": {},
		"mid":   {},
	})

	builder, _ := NewBuilder(graph, index)
	for run := 0; run < 5; run++ {
		tree, err := builder.Build(context.Background(), "root", Downstream)
		if err != nil {
			t.Fatalf("Build failed: %v", err)
		}
		root := tree.Root()
		want := []string{"alpha", "mid", "zeta"}
		if len(root.Children) != len(want) {
			t.Fatalf("child count = %d, want %d", len(root.Children), len(want))
		}
		for i, childIdx := range root.Children {
			if got := tree.Nodes[childIdx].Name; got != want[i] {
				t.Errorf("run %d: child[%d] = %q, want %q", run, i, got, want[i])
			}
		}
	}
}

func TestBuilder_Build_UnknownRoot(t *testing.T) {
	graph, index := buildGraph(t, map[string][]string{"alpha": {}})

	builder, _ := NewBuilder(graph, index)
	tree, err := builder.Build(context.Background(), "phantom", Downstream)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if tree.Size() != 1 {
		t.Fatalf("tree size = %d, want 1", tree.Size())
	}
	if tree.Root().Record != nil {
		t.Error("unknown root should have nil record")
	}
}

func TestBuilder_Build_NodeCap(t *testing.T) {
	// Dense mesh: every function calls every other. Uncapped this
	// enumerates all simple paths; the cap must stop it.
	names := []string{"f1", "f2", "f3", "f4", "f5", "f6"}
	calls := make(map[string][]string)
	for _, n := range names {
		for _, m := range names {
			if n != m {
				calls[n] = append(calls[n], m)
			}
		}
	}
	graph, index := buildGraph(t, calls)

	builder, err := NewBuilder(graph, index, WithMaxNodes(50))
	if err != nil {
		t.Fatalf("NewBuilder failed: %v", err)
	}
	tree, err := builder.Build(context.Background(), "f1", Downstream)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if !tree.Truncated {
		t.Error("expected Truncated tree")
	}
	if tree.Size() > 50 {
		t.Errorf("tree size = %d, want <= 50", tree.Size())
	}
}

func TestBuilder_Build_InvalidInputs(t *testing.T) {
	graph, index := buildGraph(t, map[string][]string{"alpha": {}})
	builder, _ := NewBuilder(graph, index)

	if _, err := builder.Build(context.Background(), "", Downstream); err == nil {
		t.Error("empty root: expected error")
	}
	if _, err := builder.Build(context.Background(), "alpha", Direction(42)); err == nil {
		t.Error("invalid direction: expected error")
	}
	if _, err := NewBuilder(nil, index); err == nil {
		t.Error("nil graph: expected error")
	}
}

func TestRecordIndex_FirstWins(t *testing.T) {
	first := &audit.FunctionRecord{Name: "A.transfer", Content: "first"}
	second := &audit.FunctionRecord{Name: "B.transfer", Content: "second"}
	index := RecordIndex([]*audit.FunctionRecord{first, second})
	if index["transfer"] != first {
		t.Error("RecordIndex should keep the first record on collision")
	}
}
