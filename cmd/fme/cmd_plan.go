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
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/zorrosword/finite-monkey-engine/services/audit"
	"github.com/zorrosword/finite-monkey-engine/services/audit/flow"
	"github.com/zorrosword/finite-monkey-engine/services/audit/store"
)

// Rule is one audit rule from the rules file.
type Rule struct {
	Key     string `yaml:"key"`
	Content string `yaml:"content"`
}

func loadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	var rules []Rule
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}
	return rules, nil
}

// runPlan builds the call graph and persists one pending task per rule
// per function. All rules targeting the same function share a group, so
// scanning runs them in order and each sees its predecessors' findings.
func runPlan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	records, err := loadFunctions(functionsPath)
	if err != nil {
		return err
	}
	rules, err := loadRules(rulesPath)
	if err != nil {
		return err
	}
	if len(rules) == 0 {
		return fmt.Errorf("rules file %s holds no rules", rulesPath)
	}

	graph, err := buildGraph(ctx, records)
	if err != nil {
		return err
	}

	taskStore, err := store.Open(store.DefaultConfig(cfg.StorePath))
	if err != nil {
		return err
	}
	defer taskStore.Close()

	seq := 0
	for _, record := range records {
		short := record.ShortName()
		businessFlow, err := flowContext(ctx, graph, records, short, flow.Downstream)
		if err != nil {
			return fmt.Errorf("deriving context for %s: %w", short, err)
		}

		groupID := ""
		if len(rules) > 1 {
			groupID = uuid.NewString()
		}
		for _, rule := range rules {
			task := &audit.Task{
				ID:           uuid.NewString(),
				RunID:        runID,
				Seq:          seq,
				RuleKey:      rule.Key,
				Rule:         rule.Content,
				GroupID:      groupID,
				FunctionName: record.Name,
				FlowContext:  businessFlow,
			}
			if err := taskStore.PutTask(ctx, task); err != nil {
				return fmt.Errorf("persisting task for %s/%s: %w", short, rule.Key, err)
			}
			seq++
		}
	}

	logger.Info("plan complete",
		"run_id", runID,
		"functions", len(records),
		"rules", len(rules),
		"tasks", seq,
	)
	fmt.Fprintf(cmd.OutOrStdout(), "planned %d tasks for run %s\n", seq, runID)
	return nil
}
