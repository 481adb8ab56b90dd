package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/fmuoria/assessment-report-agent/internal/config"
)

const defaultVertexModel = "gemini-1.5-flash"

// VertexAIClient wraps the Vertex AI Gemini API
type VertexAIClient struct {
	client    *genai.Client
	modelName string
	projectID string
	location  string
}

// NewVertexAIClient creates a new Vertex AI client
func NewVertexAIClient(ctx context.Context, cfg config.LLMConfig) (*VertexAIClient, error) {
	if cfg.GoogleCloudProject == "" {
		return nil, fmt.Errorf("google cloud project not set")
	}

	location := cfg.GoogleCloudLocation
	if location == "" {
		location = "us-central1"
	}

	var opts []option.ClientOption
	if cfg.GoogleCredentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.GoogleCredentialsPath))
	}

	client, err := genai.NewClient(ctx, cfg.GoogleCloudProject, location, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vertex AI client: %w", err)
	}

	modelName := cfg.Model
	if modelName == "" || strings.HasPrefix(modelName, "gpt-") {
		modelName = defaultVertexModel
	}

	return &VertexAIClient{
		client:    client,
		modelName: modelName,
		projectID: cfg.GoogleCloudProject,
		location:  location,
	}, nil
}

// Name returns the provider name
func (v *VertexAIClient) Name() string {
	return "vertexai"
}

func (v *VertexAIClient) model(req Request) *genai.GenerativeModel {
	model := v.client.GenerativeModel(v.modelName)
	model.SetTemperature(float32(req.Temperature))
	model.SetTopK(40)
	model.SetTopP(0.95)
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if req.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}
	return model
}

// Complete sends a prompt to the model and returns the response
func (v *VertexAIClient) Complete(ctx context.Context, req Request) (string, error) {
	resp, err := v.model(req).GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	return responseText(resp)
}

// Stream sends a prompt and forwards the streamed fragments
func (v *VertexAIClient) Stream(ctx context.Context, req Request, onDelta func(string)) (string, error) {
	iter := v.model(req).GenerateContentStream(ctx, genai.Text(req.Prompt))

	var sb strings.Builder
	for {
		resp, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return sb.String(), fmt.Errorf("failed to stream content: %w", err)
		}

		text, err := responseText(resp)
		if err != nil {
			continue
		}
		sb.WriteString(text)
		if onDelta != nil {
			onDelta(text)
		}
	}
	return sb.String(), nil
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("no response candidates returned")
	}

	var result strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			result.WriteString(string(text))
		}
	}
	return result.String(), nil
}

// Close closes the Vertex AI client
func (v *VertexAIClient) Close() error {
	return v.client.Close()
}
