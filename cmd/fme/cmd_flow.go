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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zorrosword/finite-monkey-engine/services/audit/flow"
)

// runFlow prints one function's business-flow context. Useful for
// inspecting what a scan task would hand the reasoning model.
func runFlow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var dir flow.Direction
	switch direction {
	case "down":
		dir = flow.Downstream
	case "up":
		dir = flow.Upstream
	default:
		return fmt.Errorf("unknown direction %q (want down or up)", direction)
	}

	if maxDepthFlag >= 0 {
		cfg.MaxDepth = maxDepthFlag
	}

	records, err := loadFunctions(functionsPath)
	if err != nil {
		return err
	}
	graph, err := buildGraph(ctx, records)
	if err != nil {
		return err
	}

	businessFlow, err := flowContext(ctx, graph, records, rootName, dir)
	if err != nil {
		return err
	}
	if businessFlow == "" {
		logger.Warn("no resolved records in context", "root", rootName)
	}
	fmt.Fprintln(cmd.OutOrStdout(), businessFlow)
	return nil
}
