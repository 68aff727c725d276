package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// DefaultModel is used when no model override is stored.
const DefaultModel = "gemini-2.5-flash"

// Generator wraps the Google GenAI client for the structured-extraction call
// the coordinator makes: JSON-typed output at low temperature, since mapping
// form fields to resume values is extraction, not open generation.
type Generator struct {
	client    *genai.Client
	modelName string
	timeout   time.Duration
	logger    *zap.Logger
}

// NewGenerator creates a Generator for the Gemini API backend. A zero
// timeout leaves the transport's own limits in charge.
func NewGenerator(ctx context.Context, apiKey, model string, timeout time.Duration, logger *zap.Logger) (*Generator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	if model = strings.TrimSpace(model); model == "" {
		model = DefaultModel
	}

	return &Generator{client: client, modelName: model, timeout: timeout, logger: logger}, nil
}

// GenerateJSON sends the prompt and returns the first textual candidate,
// requesting a JSON response body at temperature 0.1.
func (g *Generator) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	if g == nil || g.client == nil {
		return "", errors.New("gemini generator is not initialized")
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.1),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.modelName, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	output := joinCandidates(resp)
	if output == "" {
		return "", errors.New("gemini api returned empty response")
	}

	g.logger.Debug("gemini response received",
		zap.String("model", g.modelName),
		zap.Int("length", len(output)),
	)

	return output, nil
}

func joinCandidates(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	return strings.TrimSpace(builder.String())
}

// ModelInfo describes one selectable model.
type ModelInfo struct {
	ID          string
	DisplayName string
}

// ListModels returns the Gemini models available to the configured key.
func (g *Generator) ListModels(ctx context.Context) ([]ModelInfo, error) {
	if g == nil || g.client == nil {
		return nil, errors.New("gemini generator is not initialized")
	}

	var models []ModelInfo
	for model, err := range g.client.Models.All(ctx) {
		if err != nil {
			return nil, fmt.Errorf("list models: %w", err)
		}
		if model == nil {
			continue
		}

		id := strings.TrimPrefix(model.Name, "models/")
		if !strings.HasPrefix(id, "gemini") {
			continue
		}

		display := strings.TrimSpace(model.DisplayName)
		if display == "" {
			display = id
		}

		models = append(models, ModelInfo{ID: id, DisplayName: display})
	}

	return models, nil
}

// Model returns the configured model identifier.
func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.modelName
}
