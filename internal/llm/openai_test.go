package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fmuoria/assessment-report-agent/internal/config"
)

func TestOpenAIClientComplete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o-mini",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"Hej Jane"}}]}`)
	}))
	defer srv.Close()

	c, err := NewOpenAIClient(config.LLMConfig{APIKey: "sk-test", BaseURL: srv.URL, Model: "gpt-4o-mini"})
	require.NoError(t, err)

	text, err := c.Complete(context.Background(), Request{System: "stil", Prompt: "skriv", MaxTokens: 100, Temperature: 0.2})
	require.NoError(t, err)
	assert.Equal(t, "Hej Jane", text)

	assert.Equal(t, "gpt-4o-mini", got["model"])
	assert.InDelta(t, 0.2, got["temperature"], 1e-9)
	assert.EqualValues(t, 100, got["max_tokens"])
	messages, ok := got["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, messages, 2)
}

func TestOpenAIClientStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, part := range []string{"Hej", " Jane"} {
			fmt.Fprintf(w, "data: {\"id\":\"c1\",\"object\":\"chat.completion.chunk\",\"created\":1,\"model\":\"m\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", part)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	c, err := NewOpenAIClient(config.LLMConfig{APIKey: "sk-test", BaseURL: srv.URL, Model: "m"})
	require.NoError(t, err)

	var deltas []string
	text, err := c.Stream(context.Background(), Request{Prompt: "p"}, func(d string) { deltas = append(deltas, d) })
	require.NoError(t, err)
	assert.Equal(t, "Hej Jane", text)
	assert.Equal(t, []string{"Hej", " Jane"}, deltas)
}

func TestOpenAIClientRequiresKey(t *testing.T) {
	_, err := NewOpenAIClient(config.LLMConfig{})
	assert.Error(t, err)
}

func TestNewUnknownProvider(t *testing.T) {
	_, _, err := New(context.Background(), config.LLMConfig{Provider: "other"}, nil)
	assert.Error(t, err)
}
