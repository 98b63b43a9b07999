package scorer

import (
	"context"
	"fmt"

	"cloud.google.com/go/vertexai/genai"

	"github.com/szturchaczysko-cpu/wiezowiec/internal/common"
)

// vertexClient implements Client on Vertex AI Gemini.
type vertexClient struct {
	base        *genai.Client
	temperature float32
	maxTokens   int32
}

func newVertexClient(ctx context.Context, cfg Config) (Client, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("%w: vertex project id is required", common.ErrMissingConfig)
	}
	location := cfg.Location
	if location == "" {
		location = "us-central1"
	}

	base, err := genai.NewClient(ctx, cfg.ProjectID, location)
	if err != nil {
		return nil, fmt.Errorf("failed to create vertex client: %w", err)
	}

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 65536
	}

	return &vertexClient{
		base:        base,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
	}, nil
}

// Generate submits the prompt to the named Gemini model. Scoring output must
// be deterministic and uncensored ledger text trips the default filters, so
// temperature stays at zero and safety blocking is disabled.
func (c *vertexClient) Generate(ctx context.Context, model, systemPrompt, userMessage string) (string, error) {
	m := c.base.GenerativeModel(model)
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemPrompt)},
	}
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:     genai.Ptr(c.temperature),
		MaxOutputTokens: genai.Ptr(c.maxTokens),
	}
	m.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockNone},
	}

	resp, err := m.GenerateContent(ctx, genai.Text(userMessage))
	if err != nil {
		return "", fmt.Errorf("vertex generation failed: %w", err)
	}

	text := extractText(resp)
	if text == "" {
		return "", common.ErrEmptyResponse
	}
	return text, nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var out string
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			out += string(text)
		}
	}
	return out
}

func (c *vertexClient) Close() error {
	return c.base.Close()
}
