package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/viper"

	"github.com/szturchaczysko-cpu/wiezowiec/internal/config"
	"github.com/szturchaczysko-cpu/wiezowiec/internal/engine"
	"github.com/szturchaczysko-cpu/wiezowiec/internal/scorer"
	"github.com/szturchaczysko-cpu/wiezowiec/internal/service"
	"github.com/szturchaczysko-cpu/wiezowiec/internal/storage"
)

// initStorage opens the configured storage backend and applies migrations.
func initStorage(ctx context.Context) (service.Storage, error) {
	backend := viper.GetString("storage.backend")

	var store service.Storage
	var err error
	switch backend {
	case "firestore":
		store, err = storage.NewFirestoreStorage(ctx, viper.GetString("storage.project_id"))
	case "sqlite", "":
		dbPath := viper.GetString("storage.path")
		if dbPath == "" {
			dbPath = config.DefaultDatabasePath()
		} else {
			dbPath = config.ExpandPath(dbPath)
		}
		store, err = storage.NewSQLiteStorage(dbPath)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", backend)
	}
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return store, nil
}

func scorerConfig() scorer.Config {
	return scorer.Config{
		Provider:       viper.GetString("scorer.provider"),
		ProjectID:      viper.GetString("scorer.project_id"),
		Location:       viper.GetString("scorer.location"),
		APIKey:         viper.GetString("scorer.api_key"),
		Model:          viper.GetString("scorer.model"),
		FallbackModels: viper.GetStringSlice("scorer.fallback_models"),
		PromptURL:      viper.GetString("scorer.prompt_url"),
		Temperature:    float32(viper.GetFloat64("scorer.temperature")),
		MaxTokens:      viper.GetInt32("scorer.max_tokens"),
		RateLimit:      viper.GetInt("scorer.rate_limit"),
		MaxRetries:     viper.GetInt("scorer.max_retries"),
		RetryDelay:     viper.GetDuration("scorer.retry_delay"),
		ChunkSize:      viper.GetInt("scorer.chunk_size"),
	}
}

// initScorer builds the scoring client from config.
func initScorer(ctx context.Context) (*scorer.Scorer, error) {
	return scorer.New(ctx, scorerConfig(), slog.Default())
}

// initPromptSource resolves where the system prompt comes from: an inline
// config value, or a remote URL fetched with a cache TTL.
func initPromptSource() (scorer.PromptSource, error) {
	if inline := viper.GetString("scorer.prompt"); inline != "" {
		return scorer.StaticPrompt(inline), nil
	}
	url := viper.GetString("scorer.prompt_url")
	if url == "" {
		return nil, fmt.Errorf("no system prompt configured: set scorer.prompt or scorer.prompt_url")
	}
	ttl := viper.GetDuration("scorer.prompt_ttl")
	if ttl == 0 {
		ttl = time.Hour
	}
	return scorer.NewRemotePromptSource(url, ttl), nil
}

// newStorageOnlyEngine builds an engine for operations that never reach the
// scoring service.
func newStorageOnlyEngine(store service.Storage) *engine.Engine {
	return engine.New(store, nil, scorer.StaticPrompt(""), slog.Default(), 0)
}

// initEngine wires storage, scorer and prompt source together. The returned
// cleanup closes both.
func initEngine(ctx context.Context) (*engine.Engine, func(), error) {
	store, err := initStorage(ctx)
	if err != nil {
		return nil, nil, err
	}

	sc, err := initScorer(ctx)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}

	prompts, err := initPromptSource()
	if err != nil {
		_ = store.Close()
		_ = sc.Close()
		return nil, nil, err
	}

	eng := engine.New(store, sc, prompts, slog.Default(), viper.GetInt("scorer.chunk_size"))
	cleanup := func() {
		_ = sc.Close()
		_ = store.Close()
	}
	return eng, cleanup, nil
}
