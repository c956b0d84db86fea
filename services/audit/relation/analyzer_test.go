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
	"context"
	"testing"

	"github.com/zorrosword/finite-monkey-engine/services/audit"
)

// Helper to create a test function record.
func testRecord(name, content string) *audit.FunctionRecord {
	return &audit.FunctionRecord{
		Name:      name,
		Content:   content,
		FilePath:  "contracts/Token.sol",
		StartLine: 1,
		EndLine:   10,
	}
}

func TestAnalyzer_Build_Chain(t *testing.T) {
	// Scenario: A calls B, B calls C, C calls nothing.
	records := []*audit.FunctionRecord{
		testRecord("Token.A", "function A() { B(); }"),
		testRecord("Token.B", "function B() { C(); }"),
		testRecord("Token.C", "function C() { return 1; }"),
	}

	graph, err := NewAnalyzer().Build(context.Background(), records)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if got := graph.Downstream("A"); len(got) != 1 || got[0] != "B" {
		t.Errorf("Downstream(A) = %v, want [B]", got)
	}
	if got := graph.Downstream("B"); len(got) != 1 || got[0] != "C" {
		t.Errorf("Downstream(B) = %v, want [C]", got)
	}
	if got := graph.Upstream("B"); len(got) != 1 || got[0] != "A" {
		t.Errorf("Upstream(B) = %v, want [A]", got)
	}
	if got := graph.Upstream("C"); len(got) != 1 || got[0] != "B" {
		t.Errorf("Upstream(C) = %v, want [B]", got)
	}
	if got := graph.Downstream("C"); len(got) != 0 {
		t.Errorf("Downstream(C) = %v, want empty", got)
	}
	if graph.State() != GraphStateReadOnly {
		t.Errorf("graph state = %v, want readonly", graph.State())
	}
}

func TestAnalyzer_Build_Symmetry(t *testing.T) {
	records := []*audit.FunctionRecord{
		testRecord("Vault.deposit", "function deposit() { _update(); _mint(); }"),
		testRecord("Vault.withdraw", "function withdraw() { _update(); _burn(); }"),
		testRecord("Vault._update", "function _update() { _mint(); }"),
		testRecord("Vault._mint", "function _mint() {}"),
		testRecord("Vault._burn", "function _burn() {}"),
	}

	graph, err := NewAnalyzer().Build(context.Background(), records)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	// g in downstream(f) iff f in upstream(g), checked both ways.
	for _, f := range graph.Names() {
		for _, g := range graph.Downstream(f) {
			if !contains(graph.Upstream(g), f) {
				t.Errorf("symmetry broken: %s in downstream(%s) but %s not in upstream(%s)", g, f, f, g)
			}
		}
		for _, g := range graph.Upstream(f) {
			if !contains(graph.Downstream(g), f) {
				t.Errorf("symmetry broken: %s in upstream(%s) but %s not in downstream(%s)", g, f, f, g)
			}
		}
	}
}

func TestAnalyzer_Build_AllNamesPresent(t *testing.T) {
	records := []*audit.FunctionRecord{
		testRecord("A.isolated", "function isolated() { return; }"),
		testRecord("B.alone", "function alone() { return; }"),
	}

	graph, err := NewAnalyzer().Build(context.Background(), records)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	for _, name := range []string{"isolated", "alone"} {
		if !graph.Contains(name) {
			t.Errorf("graph missing function %q", name)
		}
		if got := graph.Upstream(name); got == nil || len(got) != 0 {
			t.Errorf("Upstream(%s) = %v, want empty non-nil", name, got)
		}
		if got := graph.Downstream(name); got == nil || len(got) != 0 {
			t.Errorf("Downstream(%s) = %v, want empty non-nil", name, got)
		}
	}
}

func TestAnalyzer_Build_NoSelfEdges(t *testing.T) {
	// Recursive function mentions its own name.
	records := []*audit.FunctionRecord{
		testRecord("Math.fib", "function fib(n) { return fib(n-1) + fib(n-2); }"),
	}

	graph, err := NewAnalyzer().Build(context.Background(), records)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if graph.HasCall("fib", "fib") {
		t.Error("graph contains self-edge fib->fib")
	}
	if graph.EdgeCount() != 0 {
		t.Errorf("EdgeCount = %d, want 0", graph.EdgeCount())
	}
}

func TestAnalyzer_Build_DuplicateShortNamesCollapse(t *testing.T) {
	// Two transfer functions in different contracts collapse into one
	// node; callers of either point at the same node.
	records := []*audit.FunctionRecord{
		testRecord("TokenA.transfer", "function transfer() {}"),
		testRecord("TokenB.transfer", "function transfer() {}"),
		testRecord("Router.swap", "function swap() { transfer(); }"),
	}

	graph, err := NewAnalyzer().Build(context.Background(), records)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if graph.FunctionCount() != 2 {
		t.Errorf("FunctionCount = %d, want 2 (transfer collapsed)", graph.FunctionCount())
	}
	if got := graph.Downstream("swap"); len(got) != 1 || got[0] != "transfer" {
		t.Errorf("Downstream(swap) = %v, want [transfer]", got)
	}
}

func TestAnalyzer_Build_WholeWordMatching(t *testing.T) {
	t.Run("prefix does not match", func(t *testing.T) {
		records := []*audit.FunctionRecord{
			testRecord("Token.transfer", "function transfer() {}"),
			testRecord("Token.approveAll", "function approveAll() { transferFrom(a, b, c); }"),
		}
		graph, err := NewAnalyzer().Build(context.Background(), records)
		if err != nil {
			t.Fatalf("Build failed: %v", err)
		}
		if graph.HasCall("approveAll", "transfer") {
			t.Error("transferFrom matched transfer; whole-word boundary not applied")
		}
	})

	t.Run("case insensitive", func(t *testing.T) {
		records := []*audit.FunctionRecord{
			testRecord("Token.Transfer", "function Transfer() {}"),
			testRecord("Token.sweep", "function sweep() { TRANSFER(to, amount); }"),
		}
		graph, err := NewAnalyzer().Build(context.Background(), records)
		if err != nil {
			t.Fatalf("Build failed: %v", err)
		}
		if !graph.HasCall("sweep", "Transfer") {
			t.Error("case-insensitive match failed: sweep should call Transfer")
		}
	})
}

func TestAnalyzer_Build_NoopResolver(t *testing.T) {
	records := []*audit.FunctionRecord{
		testRecord("Token.A", "function A() { B(); }"),
		testRecord("Token.B", "function B() {}"),
	}

	graph, err := NewAnalyzer(WithResolver(NoopResolver{})).Build(context.Background(), records)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if graph.FunctionCount() != 2 {
		t.Errorf("FunctionCount = %d, want 2", graph.FunctionCount())
	}
	if graph.EdgeCount() != 0 {
		t.Errorf("EdgeCount = %d, want 0 with noop resolver", graph.EdgeCount())
	}
}

func TestAnalyzer_Build_MaxFunctionsExceeded(t *testing.T) {
	records := []*audit.FunctionRecord{
		testRecord("A.a", "a"),
		testRecord("B.b", "b"),
		testRecord("C.c", "c"),
	}

	_, err := NewAnalyzer(WithMaxFunctions(2)).Build(context.Background(), records)
	if err == nil {
		t.Fatal("expected ErrMaxFunctionsExceeded, got nil")
	}
}

func TestAnalyzer_Build_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	records := []*audit.FunctionRecord{
		testRecord("Token.A", "function A() { B(); }"),
		testRecord("Token.B", "function B() {}"),
	}

	_, err := NewAnalyzer().Build(ctx, records)
	if err == nil {
		t.Fatal("expected cancellation error, got nil")
	}
}

func contains(names []string, want string) bool {
	for _, n := range names {
		if n == want {
			return true
		}
	}
	return false
}
