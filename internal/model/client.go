// Copyright 2024 Infra Advisor Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package model

import (
	"context"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/your-org/infra-advisor/internal/resilience"
)

const (
	// DefaultModel is the model name requested from the local serving daemon.
	DefaultModel = "llama3.1:8b-instruct"
	// DefaultBaseURL points at an OpenAI-compatible endpoint served locally.
	DefaultBaseURL = "http://localhost:11434/v1"
	// DefaultTimeout bounds a single generation round trip.
	DefaultTimeout = 60 * time.Second
	// DefaultMaxTokens caps the completion length when the caller does not.
	DefaultMaxTokens = 1024
	// DefaultTemperature is the sampling temperature when the caller does not set one.
	DefaultTemperature = 0.3
)

// Generator is the surface the chat pipeline depends on. The concrete
// Client talks to a local OpenAI-compatible daemon; tests substitute
// their own implementation.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userMessage string, opts GenerateOptions) (*GenerateResult, error)
}

// GenerateOptions carries per-request generation parameters. Zero values
// fall back to the client defaults.
type GenerateOptions struct {
	MaxTokens   int
	Temperature float32
}

// GenerateResult is the outcome of a single model invocation.
type GenerateResult struct {
	Text            string
	Success         bool
	TokensGenerated int
	ModelUsed       string
	ProcessingTime  time.Duration
}

// Config configures the model client.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// DefaultClientConfig returns settings for a locally hosted daemon.
func DefaultClientConfig() Config {
	return Config{
		BaseURL: DefaultBaseURL,
		APIKey:  "local",
		Model:   DefaultModel,
		Timeout: DefaultTimeout,
	}
}

// Client wraps the go-openai client for chat completions against a local
// serving daemon.
type Client struct {
	client  *openai.Client
	logger  *zap.Logger
	model   string
	timeout time.Duration
	backoff resilience.BackoffConfig
	breaker *resilience.CircuitBreaker
}

// NewClient creates a model client. The endpoint is not probed here;
// callers that need liveness use Ping.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("model base URL is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.APIKey == "" {
		// Local daemons ignore the key but the SDK requires a non-empty value.
		cfg.APIKey = "local"
	}

	apiConfig := openai.DefaultConfig(cfg.APIKey)
	apiConfig.BaseURL = cfg.BaseURL

	client := &Client{
		client:  openai.NewClientWithConfig(apiConfig),
		logger:  logger,
		model:   cfg.Model,
		timeout: cfg.Timeout,
		backoff: resilience.DefaultBackoffConfig(),
		breaker: resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("model"), logger),
	}

	client.logger.Info("Model client initialized successfully",
		zap.String("base_url", cfg.BaseURL),
		zap.String("model", cfg.Model),
		zap.Duration("timeout", cfg.Timeout),
	)

	return client, nil
}

// Ping checks that the serving daemon answers at all. Used by health
// reporting rather than at construction time so the advisor can start
// before the daemon does.
func (c *Client) Ping(ctx context.Context) error {
	return resilience.WithTimeout(ctx, 10*time.Second, c.logger, func(ctx context.Context) error {
		_, err := c.client.ListModels(ctx)
		if err != nil {
			return fmt.Errorf("model endpoint unreachable: %w", err)
		}
		return nil
	})
}

// Breaker exposes the circuit breaker guarding model calls so health
// reporting can include its state.
func (c *Client) Breaker() *resilience.CircuitBreaker {
	return c.breaker
}

// Generate runs one chat completion with retry and timeout handling. A
// transport or timeout failure returns (*GenerateResult){Success: false}
// alongside the error so callers can surface partial metadata.
func (c *Client) Generate(ctx context.Context, systemPrompt, userMessage string, opts GenerateOptions) (*GenerateResult, error) {
	if userMessage == "" {
		return nil, fmt.Errorf("user message is required")
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	temperature := opts.Temperature
	if temperature <= 0 {
		temperature = DefaultTemperature
	}

	request := openai.ChatCompletionRequest{
		Model:       c.model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userMessage},
		},
	}

	start := time.Now()
	var response openai.ChatCompletionResponse

	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return resilience.WithTimeout(ctx, c.timeout, c.logger, func(ctx context.Context) error {
			return resilience.WithExponentialBackoff(ctx, c.logger, c.backoff, func(ctx context.Context) error {
				var callErr error
				response, callErr = c.client.CreateChatCompletion(ctx, request)
				if callErr != nil {
					return fmt.Errorf("chat completion failed: %w", callErr)
				}
				return nil
			})
		})
	})

	elapsed := time.Since(start)
	if err != nil {
		c.logger.Error("Model generation failed",
			zap.Error(err),
			zap.String("model", c.model),
			zap.Duration("elapsed", elapsed),
		)
		return &GenerateResult{
			Success:        false,
			ModelUsed:      c.model,
			ProcessingTime: elapsed,
		}, err
	}

	if len(response.Choices) == 0 {
		return &GenerateResult{
			Success:        false,
			ModelUsed:      c.model,
			ProcessingTime: elapsed,
		}, fmt.Errorf("model returned no choices")
	}

	result := &GenerateResult{
		Text:            response.Choices[0].Message.Content,
		Success:         true,
		TokensGenerated: response.Usage.CompletionTokens,
		ModelUsed:       c.model,
		ProcessingTime:  elapsed,
	}

	c.logger.Debug("Model generation completed",
		zap.Int("tokens_generated", result.TokensGenerated),
		zap.Duration("elapsed", elapsed),
	)

	return result, nil
}
