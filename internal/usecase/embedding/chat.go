package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/legalrag/internal/domain"
)

// InstrumentedChatter wraps a Chatter with logging.
type InstrumentedChatter struct {
	inner    domain.Chatter
	provider string
	model    string
	logger   *zap.Logger
}

// NewInstrumentedChatter wraps a chat capability with observability.
func NewInstrumentedChatter(inner domain.Chatter, provider, model string, logger *zap.Logger) *InstrumentedChatter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstrumentedChatter{inner: inner, provider: provider, model: model, logger: logger}
}

// Model returns the chat model name.
func (c *InstrumentedChatter) Model() string { return c.model }

// Chat delegates to the inner chatter and logs the outcome.
func (c *InstrumentedChatter) Chat(ctx context.Context, messages []domain.Message, opts domain.ChatOptions) (string, error) {
	start := time.Now()
	out, err := c.inner.Chat(ctx, messages, opts)
	duration := time.Since(start)

	if err != nil {
		c.logger.Warn("Chat request failed",
			zap.String("provider", c.provider),
			zap.String("model", c.model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return "", fmt.Errorf("chat: %w", err)
	}

	c.logger.Debug("Chat request completed",
		zap.String("provider", c.provider),
		zap.String("model", c.model),
		zap.Duration("duration", duration),
		zap.Int("messages", len(messages)),
		zap.Int("response_chars", len(out)),
	)
	return out, nil
}

// HealthCheck delegates to the inner chatter when it supports health checks.
func (c *InstrumentedChatter) HealthCheck(ctx context.Context) error {
	if hc, ok := c.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // transparent decorator
	}
	return nil
}
