package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type scriptedClient struct {
	replies []string
	errs    []error
	calls   int
	delay   time.Duration
}

func (s *scriptedClient) Name() string { return "scripted" }

func (s *scriptedClient) next(ctx context.Context) (string, error) {
	i := s.calls
	s.calls++
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	if err != nil {
		return "", err
	}
	if i < len(s.replies) {
		return s.replies[i], nil
	}
	return "", nil
}

func (s *scriptedClient) Complete(ctx context.Context, _ Request) (string, error) {
	return s.next(ctx)
}

func (s *scriptedClient) Stream(ctx context.Context, _ Request, onDelta func(string)) (string, error) {
	text, err := s.next(ctx)
	if err != nil {
		return "", err
	}
	for _, w := range strings.SplitAfter(text, " ") {
		onDelta(w)
	}
	return text, nil
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	inner := &scriptedClient{
		errs:    []error{errors.New("network"), nil, nil},
		replies: []string{"", "  ", "Klar text"},
	}
	c := WithRetry(inner, time.Second, 2, zaptest.NewLogger(t))

	text, err := c.Complete(context.Background(), Request{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "Klar text", text)
	assert.Equal(t, 3, inner.calls)
}

func TestRetryGivesUp(t *testing.T) {
	inner := &scriptedClient{errs: []error{errors.New("a"), errors.New("b"), errors.New("c"), nil}}
	c := WithRetry(inner, time.Second, 2, nil)

	_, err := c.Complete(context.Background(), Request{})
	assert.Error(t, err)
	assert.Equal(t, 3, inner.calls)
}

func TestRetryEmptyIsError(t *testing.T) {
	inner := &scriptedClient{}
	c := WithRetry(inner, time.Second, 0, nil)

	_, err := c.Complete(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestRetryPerAttemptTimeout(t *testing.T) {
	inner := &scriptedClient{delay: time.Second, replies: []string{"late", "late"}}
	c := WithRetry(inner, 20*time.Millisecond, 1, nil)

	start := time.Now()
	_, err := c.Complete(context.Background(), Request{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 2, inner.calls)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestRetryStream(t *testing.T) {
	inner := &scriptedClient{errs: []error{errors.New("reset")}, replies: []string{"", "hej på dig"}}
	c := WithRetry(inner, time.Second, 2, nil)

	var deltas []string
	text, err := c.Stream(context.Background(), Request{}, func(d string) { deltas = append(deltas, d) })
	require.NoError(t, err)
	assert.Equal(t, "hej på dig", text)
	assert.Equal(t, "hej på dig", strings.Join(deltas, ""))
}

type cutStreamClient struct {
	sent  string
	calls int
}

func (c *cutStreamClient) Name() string { return "cut" }

func (c *cutStreamClient) Complete(context.Context, Request) (string, error) {
	return "", errors.New("unused")
}

func (c *cutStreamClient) Stream(_ context.Context, _ Request, onDelta func(string)) (string, error) {
	c.calls++
	onDelta(c.sent)
	return "", errors.New("connection reset")
}

func TestRetryStreamReturnsPartialText(t *testing.T) {
	inner := &cutStreamClient{sent: "Halv "}
	c := WithRetry(inner, time.Second, 2, nil)

	text, err := c.Stream(context.Background(), Request{}, func(string) {})
	assert.Error(t, err)
	assert.Equal(t, "Halv ", text)
	assert.Equal(t, 1, inner.calls, "no retry after deltas were forwarded")
}
