// Package scorer talks to the external text-generation service that assigns
// priority scores to work orders. The service is consumed as an opaque
// "submit prompt, receive text" capability with retry on rate-limit and a
// model fallback chain; parsing the returned report lives in internal/report.
package scorer

import (
	"context"
	"time"
)

// Client is a single scoring-service provider.
type Client interface {
	// Generate submits a prompt to the named model and returns the raw
	// report text.
	Generate(ctx context.Context, model, systemPrompt, userMessage string) (string, error)
	Close() error
}

// Config holds configuration for the scorer.
type Config struct {
	Provider       string
	ProjectID      string
	Location       string
	APIKey         string
	Model          string
	FallbackModels []string
	PromptURL      string
	Temperature    float32
	MaxTokens      int32
	RateLimit      int
	MaxRetries     int
	RetryDelay     time.Duration
	ChunkSize      int
}

// DefaultChunkSize bounds how many orders go into a single scoring call.
// Large recompute sets are split so one oversized request cannot take down
// the whole run.
const DefaultChunkSize = 60
