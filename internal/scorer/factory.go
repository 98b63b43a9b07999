package scorer

import (
	"context"
	"fmt"
	"strings"
)

// NewProvider creates a raw scoring client based on the provided configuration.
func NewProvider(ctx context.Context, cfg Config) (Client, error) {
	switch strings.ToLower(cfg.Provider) {
	case "vertex", "":
		return newVertexClient(ctx, cfg)
	case "anthropic":
		return newAnthropicClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported scoring provider: %s", cfg.Provider)
	}
}
