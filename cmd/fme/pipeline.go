// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/zorrosword/finite-monkey-engine/services/audit"
	"github.com/zorrosword/finite-monkey-engine/services/audit/flow"
	"github.com/zorrosword/finite-monkey-engine/services/audit/relation"
)

// loadFunctions reads extracted function records from a JSON array.
func loadFunctions(path string) ([]*audit.FunctionRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read functions file: %w", err)
	}
	var records []*audit.FunctionRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse functions file: %w", err)
	}
	return records, nil
}

// buildGraph runs relationship analysis over the records.
//
// DisableGraph selects the noop resolver: every function is still a
// graph node, but with no edges the flow context degrades to the root
// function alone. That is the intended large-project escape hatch.
func buildGraph(ctx context.Context, records []*audit.FunctionRecord) (*relation.CallGraph, error) {
	var resolver relation.Resolver = relation.NewLexicalResolver()
	if cfg.DisableGraph {
		logger.Warn("relationship analysis disabled, contexts will hold the root function only")
		resolver = relation.NoopResolver{}
	}

	analyzer := relation.NewAnalyzer(
		relation.WithResolver(resolver),
		relation.WithLogger(logger.Slog()),
	)
	return analyzer.Build(ctx, records)
}

// flowContext derives the business-flow context for one root function:
// downstream tree, depth-bounded pre-order extraction, concatenated
// record contents.
func flowContext(ctx context.Context, graph *relation.CallGraph, records []*audit.FunctionRecord, root string, dir flow.Direction) (string, error) {
	builder, err := flow.NewBuilder(graph, flow.RecordIndex(records),
		flow.WithMaxNodes(cfg.MaxTreeNodes),
		flow.WithLogger(logger.Slog()),
	)
	if err != nil {
		return "", err
	}

	tree, err := builder.Build(ctx, root, dir)
	if err != nil {
		return "", err
	}
	if tree.Truncated {
		logger.Warn("call tree truncated at node cap",
			"root", root,
			"max_nodes", cfg.MaxTreeNodes,
		)
	}

	extracted, _, err := flow.Extract(tree, cfg.MaxDepth)
	if err != nil {
		return "", err
	}
	return flow.ContextText(extracted), nil
}
