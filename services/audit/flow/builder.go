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
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zorrosword/finite-monkey-engine/services/audit"
	"github.com/zorrosword/finite-monkey-engine/services/audit/relation"
)

var tracer = otel.Tracer("audit.flow")

// DefaultMaxNodes is the default cap on tree size.
//
// The per-path cycle guard deliberately allows the same function to
// reappear in sibling branches, so dense graphs can blow up
// combinatorially. The cap bounds worst-case cost; hitting it marks
// the tree truncated rather than failing the request.
const DefaultMaxNodes = 100_000

// BuilderOptions configures tree construction limits.
type BuilderOptions struct {
	// MaxNodes caps the arena size per tree. Default: 100,000.
	MaxNodes int

	// Logger receives build logs. Default: slog.Default().
	Logger *slog.Logger
}

// BuilderOption is a functional option for configuring Builder.
type BuilderOption func(*BuilderOptions)

// WithMaxNodes sets the per-tree node cap.
func WithMaxNodes(n int) BuilderOption {
	return func(o *BuilderOptions) {
		o.MaxNodes = n
	}
}

// WithLogger sets the build logger.
func WithLogger(l *slog.Logger) BuilderOption {
	return func(o *BuilderOptions) {
		o.Logger = l
	}
}

// Builder constructs call trees from a frozen call graph.
//
// Description:
//
//	Builder expands the transitive closure of call relationships in one
//	direction from a root, with a per-path cycle guard and a node cap.
//	Construction is iterative with an explicit stack; recursion depth
//	is never a function of graph shape.
//
// Thread Safety:
//
//	Safe for concurrent use. The graph and record map are read-only and
//	every Build call works on its own arena.
type Builder struct {
	graph   *relation.CallGraph
	records map[string]*audit.FunctionRecord
	options BuilderOptions
}

// NewBuilder creates a Builder over a frozen graph and a short-name
// record index.
//
// Inputs:
//
//	graph - Frozen call graph. Must not be nil.
//	records - Short name -> record index, e.g. from RecordIndex. May be
//	nil; every tree node is then unresolved.
//	opts - Functional options.
//
// Outputs:
//
//	*Builder - The configured builder.
//	error - ErrNilGraph when graph is nil.
func NewBuilder(graph *relation.CallGraph, records map[string]*audit.FunctionRecord, opts ...BuilderOption) (*Builder, error) {
	if graph == nil {
		return nil, ErrNilGraph
	}
	options := BuilderOptions{
		MaxNodes: DefaultMaxNodes,
		Logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.MaxNodes <= 0 {
		options.MaxNodes = DefaultMaxNodes
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return &Builder{
		graph:   graph,
		records: records,
		options: options,
	}, nil
}

// RecordIndex builds the short-name index a Builder consumes.
//
// When two records collapse to the same short name the first one wins,
// mirroring the collapse the relation package documents.
func RecordIndex(records []*audit.FunctionRecord) map[string]*audit.FunctionRecord {
	index := make(map[string]*audit.FunctionRecord, len(records))
	for _, r := range records {
		if r == nil {
			continue
		}
		short := r.ShortName()
		if short == "" {
			continue
		}
		if _, ok := index[short]; !ok {
			index[short] = r
		}
	}
	return index
}

// Build constructs the call tree rooted at a function.
//
// Description:
//
//	Expands children in lexicographic order from the graph's sorted
//	relationship sets. A name already present on the current
//	root-to-node path is not expanded again (cycle guard); the same
//	name may still appear in sibling branches. A root absent from the
//	graph or record set still yields a single-node tree.
//
// Inputs:
//
//	ctx - Context for cancellation, checked per expanded node.
//	root - Short name of the root function. Must not be empty.
//	dir - Downstream or Upstream.
//
// Outputs:
//
//	*Tree - The constructed tree, possibly truncated at the node cap.
//	error - ErrEmptyRoot, ErrInvalidDirection, or ErrBuildCancelled.
func (b *Builder) Build(ctx context.Context, root string, dir Direction) (*Tree, error) {
	ctx, span := tracer.Start(ctx, "flow.Build",
		trace.WithAttributes(
			attribute.String("root", root),
			attribute.String("direction", dir.String()),
		),
	)
	defer span.End()

	if root == "" {
		span.SetStatus(codes.Error, ErrEmptyRoot.Error())
		return nil, ErrEmptyRoot
	}
	if !dir.valid() {
		span.SetStatus(codes.Error, ErrInvalidDirection.Error())
		return nil, ErrInvalidDirection
	}

	tree := &Tree{
		Nodes:     make([]Node, 0, 64),
		Direction: dir,
	}
	tree.Nodes = append(tree.Nodes, Node{
		Name:   root,
		Record: b.records[root],
		Parent: -1,
		Depth:  0,
	})

	// Explicit expansion stack of arena indices. Children are attached
	// in sorted order when the parent is expanded, so only the Children
	// slices carry ordering; the stack order itself is irrelevant to
	// the tree shape.
	stack := []int32{0}

	for len(stack) > 0 {
		select {
		case <-ctx.Done():
			err := fmt.Errorf("%w: %v", ErrBuildCancelled, ctx.Err())
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		default:
		}

		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		node := &tree.Nodes[idx]

		var related []string
		if dir == Downstream {
			related = b.graph.Downstream(node.Name)
		} else {
			related = b.graph.Upstream(node.Name)
		}

		for _, child := range related {
			// Per-path cycle guard: the ancestor chain of idx is this
			// branch's visited set.
			if tree.pathContains(idx, child) {
				continue
			}
			if len(tree.Nodes) >= b.options.MaxNodes {
				tree.Truncated = true
				break
			}
			childIdx := int32(len(tree.Nodes))
			tree.Nodes = append(tree.Nodes, Node{
				Name:   child,
				Record: b.records[child],
				Parent: idx,
				Depth:  tree.Nodes[idx].Depth + 1,
			})
			// Re-take the pointer: the append may have moved the arena.
			node = &tree.Nodes[idx]
			node.Children = append(node.Children, childIdx)
			stack = append(stack, childIdx)
		}

		if tree.Truncated {
			break
		}
	}

	span.SetAttributes(
		attribute.Int("node_count", tree.Size()),
		attribute.Bool("truncated", tree.Truncated),
	)
	span.SetStatus(codes.Ok, "")

	if tree.Truncated {
		b.options.Logger.Warn("call tree truncated at node cap",
			slog.String("root", root),
			slog.String("direction", dir.String()),
			slog.Int("max_nodes", b.options.MaxNodes),
		)
	}

	return tree, nil
}
