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
	"regexp"
	"strings"
	"sync"

	"github.com/zorrosword/finite-monkey-engine/services/audit"
)

// Resolver decides whether one function calls another.
//
// Description:
//
//	Resolver is the pluggable name-resolution strategy behind graph
//	construction. The production implementation is LexicalResolver;
//	NoopResolver disables relationship inference entirely for projects
//	too large for the quadratic pairwise pass. A future AST-based resolver
//	can be substituted here without changes to the flow package.
//
// Thread Safety:
//
//	Implementations must be safe for concurrent use. The analyzer runs
//	single-threaded by default, but resolvers are also consulted from
//	tests and tooling.
type Resolver interface {
	// Resolve reports whether caller invokes callee.
	Resolve(caller, callee *audit.FunctionRecord) bool
}

// LexicalResolver matches callee short names as whole words in caller
// content, case-insensitively.
//
// Matching is purely textual: an occurrence inside a comment or string
// literal counts. That imprecision is accepted; semantic resolution
// would require a linker per source language.
type LexicalResolver struct {
	mu       sync.Mutex
	patterns map[string]*regexp.Regexp
}

// NewLexicalResolver creates a LexicalResolver with an empty pattern
// cache. Compiled patterns are cached per short name for the lifetime
// of the resolver.
func NewLexicalResolver() *LexicalResolver {
	return &LexicalResolver{
		patterns: make(map[string]*regexp.Regexp),
	}
}

// Resolve reports whether caller's content contains callee's short name
// as a whole word, ignoring case.
//
// Empty short names never match. Names whose edges are not word
// characters (rare in practice) fall back to a plain substring check,
// since \b anchors are undefined there.
func (r *LexicalResolver) Resolve(caller, callee *audit.FunctionRecord) bool {
	if caller == nil || callee == nil {
		return false
	}
	short := callee.ShortName()
	if short == "" {
		return false
	}

	pattern := r.pattern(short)
	if pattern == nil {
		return strings.Contains(strings.ToLower(caller.Content), strings.ToLower(short))
	}
	return pattern.MatchString(caller.Content)
}

// pattern returns the cached word-boundary pattern for a short name,
// compiling it on first use. Returns nil when the name cannot anchor
// on word boundaries.
func (r *LexicalResolver) pattern(short string) *regexp.Regexp {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.patterns[short]; ok {
		return p
	}
	if !wordBounded(short) {
		r.patterns[short] = nil
		return nil
	}

	p, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(short) + `\b`)
	if err != nil {
		p = nil
	}
	r.patterns[short] = p
	return p
}

// wordBounded reports whether both edges of the name are word
// characters, making \b anchors meaningful.
func wordBounded(s string) bool {
	return isWordByte(s[0]) && isWordByte(s[len(s)-1])
}

func isWordByte(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z') ||
		(b >= '0' && b <= '9')
}

// NoopResolver never reports a relationship.
//
// Selected at construction time for very large projects where graph
// inference is disabled: the analyzer still produces a graph containing
// every function, with all relationship sets empty, so downstream flow
// extraction degrades to root-only context instead of failing.
type NoopResolver struct{}

// Resolve always returns false.
func (NoopResolver) Resolve(_, _ *audit.FunctionRecord) bool {
	return false
}

var (
	_ Resolver = (*LexicalResolver)(nil)
	_ Resolver = NoopResolver{}
)
