package prompt

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/fmuoria/assessment-report-agent/internal/llm"
	"github.com/fmuoria/assessment-report-agent/internal/metrics"
)

// FallbackText replaces a section whose generation failed
const FallbackText = "Tyvärr kunde texten inte genereras just nu. Försök igen om en stund."

// DefaultTemperature keeps generated reports consistent between runs
const DefaultTemperature = 0.2

// TemplateSource resolves a prompt by name
type TemplateSource interface {
	Lookup(ctx context.Context, name string) (Template, error)
}

// Generator fills prompt templates and calls the LLM
type Generator struct {
	templates   TemplateSource
	client      llm.Client
	style       string
	temperature float64
	logger      *zap.Logger
}

// NewGenerator creates a generator. The style header is prepended to every prompt.
func NewGenerator(templates TemplateSource, client llm.Client, style string, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		templates:   templates,
		client:      client,
		style:       strings.TrimSpace(style),
		temperature: DefaultTemperature,
		logger:      logger,
	}
}

// WithTemperature overrides the sampling temperature
func (g *Generator) WithTemperature(t float64) *Generator {
	g.temperature = t
	return g
}

// Build resolves and fills the named template
func (g *Generator) Build(ctx context.Context, name string, vars map[string]any) (llm.Request, error) {
	t, err := g.templates.Lookup(ctx, name)
	if err != nil {
		return llm.Request{}, err
	}

	text := Fill(t.Text, vars)
	if g.style != "" {
		text = g.style + "\n\n" + text
	}

	return llm.Request{
		Prompt:      text,
		MaxTokens:   t.MaxTokens,
		Temperature: g.temperature,
	}, nil
}

// Generate returns the completion for the named prompt, or FallbackText on any failure
func (g *Generator) Generate(ctx context.Context, name string, vars map[string]any) string {
	req, err := g.Build(ctx, name, vars)
	if err != nil {
		return g.fallback(name, err)
	}

	text, err := g.client.Complete(ctx, req)
	if err != nil {
		return g.fallback(name, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return g.fallback(name, llm.ErrEmptyResponse)
	}
	return text
}

// Stream forwards deltas of the named prompt. When nothing could be generated
// FallbackText is sent as the only delta. A stream cut off after some deltas
// returns FallbackText without sending it, since the caller already shows text.
func (g *Generator) Stream(ctx context.Context, name string, vars map[string]any, onDelta func(string)) string {
	req, err := g.Build(ctx, name, vars)
	if err != nil {
		text := g.fallback(name, err)
		onDelta(text)
		return text
	}

	sent := false
	text, err := g.client.Stream(ctx, req, func(d string) {
		sent = true
		onDelta(d)
	})
	text = strings.TrimSpace(text)
	if err == nil && text != "" {
		return text
	}
	if err == nil {
		err = llm.ErrEmptyResponse
	}
	if sent {
		g.logger.Warn("stream ended early", zap.String("prompt", name), zap.Int("partial_len", len(text)), zap.Error(err))
		return g.fallback(name, err)
	}
	fb := g.fallback(name, err)
	onDelta(fb)
	return fb
}

func (g *Generator) fallback(name string, err error) string {
	metrics.FallbackTexts.WithLabelValues(name).Inc()
	g.logger.Error("text generation failed, using fallback", zap.String("prompt", name), zap.Error(err))
	return FallbackText
}
