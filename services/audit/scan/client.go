// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package scan executes individual scan tasks against a reasoning
// model.
//
// The package implements the scheduler's Executor contract: assemble a
// prompt from the task's rule, its business-flow context, and a running
// summary of earlier sibling results, send it to the reasoning model,
// and hand the response back as the task result. Model selection,
// transport, and retry policy live behind the ReasoningClient
// interface and are out of this package's concern beyond a single
// call.
package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// Sentinel errors for scan operations.
var (
	// ErrNilClient is returned when an Executor is constructed without
	// a reasoning client.
	ErrNilClient = errors.New("reasoning client must not be nil")

	// ErrEmptyResponse is returned when the model returns no choices.
	ErrEmptyResponse = errors.New("reasoning model returned no choices")

	// ErrMissingAPIKey is returned when no API key is available for the
	// OpenAI client.
	ErrMissingAPIKey = errors.New("OPENAI_API_KEY environment variable not set")
)

// ReasoningClient is the pure string-in/string-out contract to the
// reasoning model. Everything about the transport (endpoints, retry,
// streaming) stays behind this interface.
type ReasoningClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ModelParams configures one reasoning model.
type ModelParams struct {
	// Name is the model identifier, e.g. "gpt-4o-mini".
	Name string

	// Temperature controls sampling. Low values keep audit findings
	// focused and reproducible.
	Temperature float32

	// MaxTokens bounds the completion length. Zero leaves the
	// provider default.
	MaxTokens int
}

// OpenAIClient is the default ReasoningClient, backed by the OpenAI
// chat completion API.
type OpenAIClient struct {
	client *openai.Client
	params ModelParams
	logger *slog.Logger
}

// NewOpenAIClient creates an OpenAIClient.
//
// Inputs:
//
//	params - Model parameters. Empty Name defaults to "gpt-4o-mini".
//	logger - Logger for request logs. If nil, uses slog.Default().
//
// Outputs:
//
//	*OpenAIClient - The configured client.
//	error - ErrMissingAPIKey when no key is available.
func NewOpenAIClient(params ModelParams, logger *slog.Logger) (*OpenAIClient, error) {
	if logger == nil {
		logger = slog.Default()
	}
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		logger.Error("no API key configured for reasoning model")
		return nil, ErrMissingAPIKey
	}
	if params.Name == "" {
		params.Name = "gpt-4o-mini"
		logger.Warn("model name not set, defaulting to gpt-4o-mini")
	}
	logger.Info("initializing reasoning client", slog.String("model", params.Name))
	return &OpenAIClient{
		client: openai.NewClient(apiKey),
		params: params,
		logger: logger,
	}, nil
}

// Complete sends one prompt and returns the model's response text.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	c.logger.Debug("sending scan prompt", slog.String("model", c.params.Name))

	req := openai.ChatCompletionRequest{
		Model:       c.params.Name,
		Temperature: c.params.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if c.params.MaxTokens > 0 {
		req.MaxCompletionTokens = c.params.MaxTokens
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("reasoning model call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	c.logger.Debug("received scan response",
		slog.String("finish_reason", string(resp.Choices[0].FinishReason)),
	)
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

var _ ReasoningClient = (*OpenAIClient)(nil)
