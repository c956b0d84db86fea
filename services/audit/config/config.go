// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads audit pipeline configuration.
//
// Priority: environment > file > defaults. The file is YAML; every
// field has a working default, so a missing file is not an error.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// ModelConfig selects and tunes the reasoning model.
type ModelConfig struct {
	// Name is the model identifier.
	Name string `yaml:"name" validate:"required"`

	// Temperature controls sampling.
	Temperature float32 `yaml:"temperature" validate:"gte=0,lte=2"`

	// MaxTokens bounds each completion. Zero leaves the provider
	// default.
	MaxTokens int `yaml:"max_tokens" validate:"gte=0"`
}

// Config is the audit pipeline configuration.
type Config struct {
	// MaxDepth bounds business-flow context extraction.
	MaxDepth int `yaml:"max_depth" validate:"gte=0"`

	// Workers is the scheduler's group-runner pool size.
	Workers int `yaml:"workers" validate:"gt=0"`

	// TaskTimeoutSeconds bounds each task execution.
	TaskTimeoutSeconds int `yaml:"task_timeout_seconds" validate:"gt=0"`

	// MaxTreeNodes caps each call tree's arena.
	MaxTreeNodes int `yaml:"max_tree_nodes" validate:"gt=0"`

	// DisableGraph skips relationship analysis; tasks then carry only
	// the root function as context.
	DisableGraph bool `yaml:"disable_graph"`

	// StorePath is the directory for the task database.
	StorePath string `yaml:"store_path" validate:"required"`

	// Model configures the reasoning model.
	Model ModelConfig `yaml:"model"`
}

// Default returns the working defaults.
func Default() Config {
	return Config{
		MaxDepth:           3,
		Workers:            5,
		TaskTimeoutSeconds: 600,
		MaxTreeNodes:       100_000,
		StorePath:          "./fme-data",
		Model: ModelConfig{
			Name:        "gpt-4o-mini",
			Temperature: 0.2,
			MaxTokens:   4096,
		},
	}
}

// Load loads configuration with priority: env > file > defaults.
//
// Inputs:
//
//	path - Path to a YAML config file. Empty or missing file means
//	defaults.
//
// Outputs:
//
//	Config - The merged configuration.
//	error - Non-nil if the file exists but is invalid, or validation
//	fails.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	loadEnv(&cfg)

	if err := validate.Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // File doesn't exist, use defaults
		}
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func loadEnv(cfg *Config) {
	if v := os.Getenv("FME_MAX_DEPTH"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.MaxDepth = i
		}
	}
	if v := os.Getenv("FME_WORKERS"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Workers = i
		}
	}
	if v := os.Getenv("FME_TASK_TIMEOUT_SECONDS"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.TaskTimeoutSeconds = i
		}
	}
	if v := os.Getenv("FME_MAX_TREE_NODES"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.MaxTreeNodes = i
		}
	}
	if v := os.Getenv("FME_DISABLE_GRAPH"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.DisableGraph = b
		}
	}
	if v := os.Getenv("FME_STORE_PATH"); v != "" {
		cfg.StorePath = v
	}
	if v := os.Getenv("FME_MODEL"); v != "" {
		cfg.Model.Name = v
	}
}

// TaskTimeout returns the per-task timeout as a duration.
func (c Config) TaskTimeout() time.Duration {
	return time.Duration(c.TaskTimeoutSeconds) * time.Second
}
