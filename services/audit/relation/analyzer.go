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
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zorrosword/finite-monkey-engine/services/audit"
)

var tracer = otel.Tracer("audit.relation")

// DefaultMaxFunctions is the default limit on the number of function
// records one build accepts. The pairwise pass is quadratic; the limit
// exists so a mistakenly huge extraction cannot stall a run.
const DefaultMaxFunctions = 50_000

// AnalyzerOptions configures Analyzer behavior and limits.
type AnalyzerOptions struct {
	// Resolver is the name-resolution strategy. Default: LexicalResolver.
	Resolver Resolver

	// MaxFunctions limits the record count per build.
	// Default: 50,000.
	MaxFunctions int

	// Logger receives build progress logs. Default: slog.Default().
	Logger *slog.Logger
}

// AnalyzerOption is a functional option for configuring Analyzer.
type AnalyzerOption func(*AnalyzerOptions)

// WithResolver sets the name-resolution strategy.
func WithResolver(r Resolver) AnalyzerOption {
	return func(o *AnalyzerOptions) {
		o.Resolver = r
	}
}

// WithMaxFunctions sets the record-count limit per build.
func WithMaxFunctions(n int) AnalyzerOption {
	return func(o *AnalyzerOptions) {
		o.MaxFunctions = n
	}
}

// WithLogger sets the build logger.
func WithLogger(l *slog.Logger) AnalyzerOption {
	return func(o *AnalyzerOptions) {
		o.Logger = l
	}
}

// Analyzer builds a CallGraph from a project's function records.
//
// Description:
//
//	Analyzer runs the pairwise lexical pass once per parse: for every
//	ordered pair of records with distinct short names it asks the
//	resolver whether the first calls the second. Construction is
//	single-threaded on purpose: the relationship maps are populated
//	without locking and frozen before being shared.
//
// Thread Safety:
//
//	Analyzer itself is stateless between builds and safe for concurrent
//	Build calls; each call produces an independent graph.
type Analyzer struct {
	options AnalyzerOptions
}

// NewAnalyzer creates an Analyzer.
//
// Inputs:
//
//	opts - Functional options. Defaults: lexical resolver, 50k record
//	limit, slog.Default().
//
// Outputs:
//
//	*Analyzer - The configured analyzer.
func NewAnalyzer(opts ...AnalyzerOption) *Analyzer {
	options := AnalyzerOptions{
		Resolver:     NewLexicalResolver(),
		MaxFunctions: DefaultMaxFunctions,
		Logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Resolver == nil {
		options.Resolver = NewLexicalResolver()
	}
	if options.MaxFunctions <= 0 {
		options.MaxFunctions = DefaultMaxFunctions
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return &Analyzer{options: options}
}

// Build constructs the frozen call graph for a record set.
//
// Description:
//
//	Every record's short name becomes a node, present as a key in both
//	the upstream and downstream maps even when it relates to nothing.
//	Records sharing a short name collapse into one node. No self-edges
//	are produced. The returned graph satisfies the symmetry invariant
//	and is read-only.
//
// Inputs:
//
//	ctx - Context for cancellation, checked once per outer record.
//	records - Function records from the extraction collaborator.
//
// Outputs:
//
//	*CallGraph - The frozen graph.
//	error - ErrMaxFunctionsExceeded or ErrBuildCancelled.
func (a *Analyzer) Build(ctx context.Context, records []*audit.FunctionRecord) (*CallGraph, error) {
	ctx, span := tracer.Start(ctx, "relation.Build",
		trace.WithAttributes(
			attribute.Int("record_count", len(records)),
		),
	)
	defer span.End()

	if len(records) > a.options.MaxFunctions {
		err := fmt.Errorf("%w: %d records, limit %d",
			ErrMaxFunctionsExceeded, len(records), a.options.MaxFunctions)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	start := time.Now()
	graph := newCallGraph()

	for _, record := range records {
		if record == nil {
			continue
		}
		if short := record.ShortName(); short != "" {
			_ = graph.addFunction(short)
		}
	}

	for i, caller := range records {
		if caller == nil {
			continue
		}
		select {
		case <-ctx.Done():
			err := fmt.Errorf("%w: %v", ErrBuildCancelled, ctx.Err())
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		default:
		}

		callerShort := caller.ShortName()
		if callerShort == "" {
			continue
		}

		for j, callee := range records {
			if i == j || callee == nil {
				continue
			}
			calleeShort := callee.ShortName()
			if calleeShort == "" || calleeShort == callerShort {
				continue
			}
			if a.options.Resolver.Resolve(caller, callee) {
				_ = graph.addCall(callerShort, calleeShort)
			}
		}
	}

	graph.freeze()
	duration := time.Since(start)

	span.SetAttributes(
		attribute.Int("function_count", graph.FunctionCount()),
		attribute.Int("edge_count", graph.EdgeCount()),
	)
	span.SetStatus(codes.Ok, "")

	a.options.Logger.Info("call graph built",
		slog.Int("records", len(records)),
		slog.Int("functions", graph.FunctionCount()),
		slog.Int("edges", graph.EdgeCount()),
		slog.Duration("duration", duration),
	)

	return graph, nil
}
