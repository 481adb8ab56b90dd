// Package llm wraps the completion providers behind one small interface.
package llm

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fmuoria/assessment-report-agent/internal/config"
)

// ErrEmptyResponse is returned when a provider answers without text
var ErrEmptyResponse = errors.New("empty completion")

// Request is one completion call
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Client generates text from a prompt
type Client interface {
	// Complete returns the full completion text
	Complete(ctx context.Context, req Request) (string, error)
	// Stream calls onDelta for every received fragment and returns the joined text
	Stream(ctx context.Context, req Request, onDelta func(string)) (string, error)
	// Name identifies the provider in logs and metrics
	Name() string
}

// New builds the configured provider wrapped with the retry policy
func New(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (Client, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Provider {
	case "openai":
		c, err := NewOpenAIClient(cfg)
		if err != nil {
			return nil, noop, err
		}
		return WithRetry(c, cfg.Timeout, cfg.Retries, logger), noop, nil
	case "vertexai":
		c, err := NewVertexAIClient(ctx, cfg)
		if err != nil {
			return nil, noop, err
		}
		return WithRetry(c, cfg.Timeout, cfg.Retries, logger), c.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
