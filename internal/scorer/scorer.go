package scorer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/szturchaczysko-cpu/wiezowiec/internal/common"
	"github.com/szturchaczysko-cpu/wiezowiec/internal/service"
)

// Scorer wraps a provider client with rate limiting, quota-aware retries and
// a model fallback chain. One Scorer call scores one chunk of orders.
type Scorer struct {
	client    Client
	logger    *slog.Logger
	limiter   *rateLimiter
	models    []string
	retryOpts service.RetryOptions
}

// New creates a scorer from configuration.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Scorer, error) {
	client, err := NewProvider(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create scoring client: %w", err)
	}
	return NewWithClient(cfg, client, logger), nil
}

// NewWithClient creates a scorer around an existing provider client.
func NewWithClient(cfg Config, client Client, logger *slog.Logger) *Scorer {
	models := append([]string{}, cfg.FallbackModels...)
	if cfg.Model != "" {
		models = append([]string{cfg.Model}, models...)
	}
	if len(models) == 0 {
		models = []string{"gemini-2.5-pro", "gemini-2.5-flash"}
	}

	retryOpts := service.RetryOptions{
		MaxAttempts:  cfg.MaxRetries,
		InitialDelay: cfg.RetryDelay,
		MaxDelay:     time.Minute,
		Multiplier:   2.0,
	}
	if retryOpts.MaxAttempts == 0 {
		retryOpts.MaxAttempts = 5
	}
	if retryOpts.InitialDelay == 0 {
		retryOpts.InitialDelay = 3 * time.Second
	}

	return &Scorer{
		client:    client,
		logger:    logger,
		limiter:   newRateLimiter(cfg.RateLimit),
		models:    models,
		retryOpts: retryOpts,
	}
}

// Models returns the fallback chain, preferred model first.
func (s *Scorer) Models() []string {
	out := make([]string, len(s.models))
	copy(out, s.models)
	return out
}

// ScoreChunk submits one chunk's prompt, walking the model fallback chain.
// Each model gets its own retry budget; only quota-class failures are
// retried, anything else moves straight to the next model. When the whole
// chain is exhausted the chunk fails with ErrUpstreamUnavailable; the caller
// decides what that means for sibling chunks.
func (s *Scorer) ScoreChunk(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	var lastErr error

	for _, model := range s.models {
		if err := s.limiter.wait(ctx); err != nil {
			return "", err
		}

		var text string
		err := common.WithRetry(ctx, func() error {
			s.logger.Debug("submitting scoring request", "model", model)
			out, genErr := s.client.Generate(ctx, model, systemPrompt, userMessage)
			if genErr != nil {
				return &common.RetryableError{Err: genErr, Retryable: common.IsQuotaError(genErr)}
			}
			text = out
			return nil
		}, s.retryOpts)

		if err == nil {
			s.logger.Info("chunk scored", "model", model, "response_bytes", len(text))
			return text, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}

		s.logger.Warn("model failed for chunk, trying next in chain",
			"model", model,
			"error", err)
		lastErr = err
	}

	return "", fmt.Errorf("%w: all models failed: %v", common.ErrUpstreamUnavailable, lastErr)
}

// Close releases the provider client and stops the rate limiter.
func (s *Scorer) Close() error {
	s.limiter.close()
	return s.client.Close()
}

// SplitChunks splits orders into fixed-size chunks to bound request size and
// isolate partial failures.
func SplitChunks(orders []string, size int) [][]string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	var chunks [][]string
	for len(orders) > 0 {
		n := size
		if n > len(orders) {
			n = len(orders)
		}
		chunks = append(chunks, orders[:n])
		orders = orders[n:]
	}
	return chunks
}
