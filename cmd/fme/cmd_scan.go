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
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zorrosword/finite-monkey-engine/services/audit/scan"
	"github.com/zorrosword/finite-monkey-engine/services/audit/scheduler"
	"github.com/zorrosword/finite-monkey-engine/services/audit/store"
)

// runScan executes one scheduler pass over the run's pending tasks.
// SIGINT/SIGTERM cancel the pass; already-persisted results survive and
// the next invocation resumes where this one stopped.
func runScan(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	taskStore, err := store.Open(store.DefaultConfig(cfg.StorePath))
	if err != nil {
		return err
	}
	defer taskStore.Close()

	client, err := scan.NewOpenAIClient(scan.ModelParams{
		Name:        cfg.Model.Name,
		Temperature: cfg.Model.Temperature,
		MaxTokens:   cfg.Model.MaxTokens,
	}, logger.Slog())
	if err != nil {
		return err
	}

	executor, err := scan.NewExecutor(client, taskStore,
		scan.WithLogger(logger.Slog()),
	)
	if err != nil {
		return err
	}

	sched, err := scheduler.New(taskStore, executor,
		scheduler.WithWorkers(cfg.Workers),
		scheduler.WithTaskTimeout(cfg.TaskTimeout()),
		scheduler.WithLogger(logger.Slog()),
	)
	if err != nil {
		return err
	}

	report, err := sched.Run(ctx, runID)
	if report != nil {
		fmt.Fprintf(cmd.OutOrStdout(),
			"run %s: %d tasks in %d groups: %d executed, %d already done, %d held back, %d failed (%.1fs)\n",
			report.RunID, report.Tasks, report.Groups,
			report.Executed, report.SkippedTerminal, report.SkippedAdmission,
			report.Failed, report.Duration.Seconds(),
		)
	}
	return err
}
