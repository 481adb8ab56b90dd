package prompt

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fmuoria/assessment-report-agent/internal/llm"
)

type staticTemplates map[string]Template

func (s staticTemplates) Lookup(_ context.Context, name string) (Template, error) {
	t, ok := s[name]
	if !ok {
		return Template{}, ErrUnknownPrompt
	}
	return t, nil
}

type recordingClient struct {
	reply string
	err   error
	cut   bool
	last  llm.Request
}

func (r *recordingClient) Name() string { return "recording" }

func (r *recordingClient) Complete(_ context.Context, req llm.Request) (string, error) {
	r.last = req
	return r.reply, r.err
}

func (r *recordingClient) Stream(_ context.Context, req llm.Request, onDelta func(string)) (string, error) {
	r.last = req
	if r.err != nil && !r.cut {
		return "", r.err
	}
	for _, f := range strings.Fields(r.reply) {
		onDelta(f + " ")
	}
	if r.cut {
		return r.reply, r.err
	}
	return r.reply, nil
}

var templates = staticTemplates{
	"demo": {Name: "demo", Text: "Skriv om {a} och {b}.", MaxTokens: 321},
}

func TestGenerateFillsAndCalls(t *testing.T) {
	client := &recordingClient{reply: "  Genererad text.  "}
	g := NewGenerator(templates, client, "Stil: saklig.", nil)

	text := g.Generate(context.Background(), "demo", map[string]any{"a": "X", "b": []string{"Y", "Z"}})

	assert.Equal(t, "Genererad text.", text)
	assert.Equal(t, "Stil: saklig.\n\nSkriv om X och [\"Y\",\"Z\"].", client.last.Prompt)
	assert.Equal(t, 321, client.last.MaxTokens)
	assert.Equal(t, 0.2, client.last.Temperature)
}

func TestGenerateFallsBack(t *testing.T) {
	tests := []struct {
		name   string
		prompt string
		client *recordingClient
	}{
		{"llm error", "demo", &recordingClient{err: errors.New("timeout")}},
		{"empty completion", "demo", &recordingClient{reply: "   "}},
		{"unknown template", "missing", &recordingClient{reply: "ok"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGenerator(templates, tt.client, "", nil)
			assert.Equal(t, FallbackText, g.Generate(context.Background(), tt.prompt, nil))
		})
	}
}

func TestStream(t *testing.T) {
	g := NewGenerator(templates, &recordingClient{reply: "Hej på dig"}, "", nil)

	var deltas []string
	text := g.Stream(context.Background(), "demo", nil, func(d string) { deltas = append(deltas, d) })
	assert.Equal(t, "Hej på dig", text)
	require.Len(t, deltas, 3)

	deltas = nil
	g = NewGenerator(templates, &recordingClient{err: errors.New("down")}, "", nil)
	text = g.Stream(context.Background(), "demo", nil, func(d string) { deltas = append(deltas, d) })
	assert.Equal(t, FallbackText, text)
	assert.Equal(t, []string{FallbackText}, deltas)
}

func TestStreamCutOffFallsBack(t *testing.T) {
	client := &recordingClient{reply: "Kandidaten visar god", err: errors.New("connection reset"), cut: true}
	g := NewGenerator(templates, client, "", nil)

	var deltas []string
	text := g.Stream(context.Background(), "demo", nil, func(d string) { deltas = append(deltas, d) })
	assert.Equal(t, FallbackText, text)
	assert.Equal(t, "Kandidaten visar god ", strings.Join(deltas, ""))
}
