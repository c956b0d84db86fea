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
	"github.com/spf13/cobra"

	"github.com/zorrosword/finite-monkey-engine/pkg/logging"
	"github.com/zorrosword/finite-monkey-engine/services/audit/config"
)

// --- Global Command Variables ---
var (
	configPath    string
	logLevel      string
	functionsPath string
	rulesPath     string
	runID         string
	rootName      string
	direction     string
	maxDepthFlag  int

	cfg    config.Config
	logger *logging.Logger

	rootCmd = &cobra.Command{
		Use:   "fme",
		Short: "A cli for lexical call-graph audit scanning",
		Long: `fme builds a lexical call-relationship graph over extracted
functions, derives business-flow context per function, and drives
group-ordered scans of audit rules against a reasoning model.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				return err
			}
			logger = logging.New(logging.Config{
				Level:   logging.ParseLevel(logLevel),
				Service: "fme",
			})
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Close()
			}
		},
	}

	planCmd = &cobra.Command{
		Use:   "plan",
		Short: "Plan scan tasks: build the call graph and persist one task per rule per function",
		RunE:  runPlan, // Defined in cmd_plan.go
	}

	scanCmd = &cobra.Command{
		Use:   "scan",
		Short: "Execute a scan pass over a run's pending tasks",
		RunE:  runScan, // Defined in cmd_scan.go
	}

	flowCmd = &cobra.Command{
		Use:   "flow",
		Short: "Print the business-flow context of one function",
		RunE:  runFlow, // Defined in cmd_flow.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug|info|warn|error)")

	planCmd.Flags().StringVar(&functionsPath, "functions", "", "JSON file with extracted function records")
	planCmd.Flags().StringVar(&rulesPath, "rules", "", "YAML file with audit rules")
	planCmd.Flags().StringVar(&runID, "run", "", "Run identifier")
	_ = planCmd.MarkFlagRequired("functions")
	_ = planCmd.MarkFlagRequired("rules")
	_ = planCmd.MarkFlagRequired("run")

	scanCmd.Flags().StringVar(&runID, "run", "", "Run identifier")
	_ = scanCmd.MarkFlagRequired("run")

	flowCmd.Flags().StringVar(&functionsPath, "functions", "", "JSON file with extracted function records")
	flowCmd.Flags().StringVar(&rootName, "root", "", "Root function short name")
	flowCmd.Flags().StringVar(&direction, "direction", "down", "Traversal direction (down|up)")
	flowCmd.Flags().IntVar(&maxDepthFlag, "max-depth", -1, "Context depth bound (-1 uses config)")
	_ = flowCmd.MarkFlagRequired("functions")
	_ = flowCmd.MarkFlagRequired("root")

	rootCmd.AddCommand(planCmd, scanCmd, flowCmd)
}
