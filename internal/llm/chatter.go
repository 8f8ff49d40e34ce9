package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ledgerlens/ledgerlens/internal/common"
	"github.com/ledgerlens/ledgerlens/internal/service"
)

// Chatter wraps a provider client with rate limiting and retry behavior.
// It is the Client implementation the rest of the system consumes.
type Chatter struct {
	client      Client
	rateLimiter *rateLimiter
	logger      *slog.Logger
	retryOpts   service.RetryOptions
}

// NewChatter creates a resilient chat client from provider configuration.
func NewChatter(cfg Config, logger *slog.Logger) (*Chatter, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	retryOpts := service.RetryOptions{
		MaxAttempts:  cfg.MaxRetries,
		InitialDelay: cfg.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
	if retryOpts.MaxAttempts == 0 {
		retryOpts.MaxAttempts = 3
	}
	if retryOpts.InitialDelay == 0 {
		retryOpts.InitialDelay = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Chatter{
		client:      client,
		rateLimiter: newRateLimiter(cfg.RateLimit),
		logger:      logger,
		retryOpts:   retryOpts,
	}, nil
}

// Chat waits for rate-limit headroom, then invokes the provider with
// retries on transient failures.
func (c *Chatter) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	if err := c.rateLimiter.wait(ctx); err != nil {
		return ChatResponse{}, err
	}

	start := time.Now()
	var resp ChatResponse
	err := common.WithRetry(ctx, func() error {
		var chatErr error
		resp, chatErr = c.client.Chat(ctx, req)
		return chatErr
	}, c.retryOpts)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("chat request failed: %w", err)
	}

	c.logger.Debug("chat completed",
		"duration", time.Since(start),
		"stop_reason", resp.StopReason,
		"tool_calls", len(resp.ToolCalls))
	return resp, nil
}
