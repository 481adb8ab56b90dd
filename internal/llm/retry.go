package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fmuoria/assessment-report-agent/internal/metrics"
)

type retryClient struct {
	next    Client
	timeout time.Duration
	retries int
	logger  *zap.Logger
}

// WithRetry bounds every attempt by timeout and retries failed or empty
// completions up to retries extra times.
func WithRetry(next Client, timeout time.Duration, retries int, logger *zap.Logger) Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if retries < 0 {
		retries = 0
	}
	return &retryClient{
		next:    next,
		timeout: timeout,
		retries: retries,
		logger:  logger.With(zap.String("provider", next.Name())),
	}
}

func (r *retryClient) Name() string {
	return r.next.Name()
}

func (r *retryClient) Complete(ctx context.Context, req Request) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= r.retries; attempt++ {
		text, err := r.attempt(ctx, func(ctx context.Context) (string, error) {
			return r.next.Complete(ctx, req)
		})
		if err == nil {
			return text, nil
		}
		lastErr = err
		r.logger.Warn("llm attempt failed", zap.Int("attempt", attempt+1), zap.Error(err))
		if ctx.Err() != nil {
			break
		}
	}
	return "", fmt.Errorf("failed after %d attempts: %w", r.retries+1, lastErr)
}

// Stream retries only while nothing has been forwarded to onDelta. After a
// partial stream the text forwarded so far is returned with the error.
func (r *retryClient) Stream(ctx context.Context, req Request, onDelta func(string)) (string, error) {
	var lastErr error
	var partial strings.Builder
	for attempt := 0; attempt <= r.retries; attempt++ {
		sent := false
		text, err := r.attempt(ctx, func(ctx context.Context) (string, error) {
			return r.next.Stream(ctx, req, func(delta string) {
				sent = true
				partial.WriteString(delta)
				if onDelta != nil {
					onDelta(delta)
				}
			})
		})
		if err == nil {
			return text, nil
		}
		lastErr = err
		r.logger.Warn("llm stream attempt failed", zap.Int("attempt", attempt+1), zap.Bool("partial", sent), zap.Error(err))
		if sent {
			if text == "" {
				text = partial.String()
			}
			return text, fmt.Errorf("stream interrupted: %w", err)
		}
		if ctx.Err() != nil {
			break
		}
	}
	return "", fmt.Errorf("stream failed: %w", lastErr)
}

func (r *retryClient) attempt(ctx context.Context, call func(context.Context) (string, error)) (string, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := call(ctx)
	metrics.LLMDuration.WithLabelValues(r.next.Name()).Observe(time.Since(start).Seconds())

	if err == nil && strings.TrimSpace(text) == "" {
		err = ErrEmptyResponse
	}

	outcome := "ok"
	switch {
	case err == nil:
	case err == ErrEmptyResponse:
		outcome = "empty"
	case ctx.Err() == context.DeadlineExceeded:
		outcome = "timeout"
	default:
		outcome = "error"
	}
	metrics.LLMRequests.WithLabelValues(r.next.Name(), outcome).Inc()

	return text, err
}
