package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/viper"

	"github.com/ledgerline/ledgerline/internal/config"
	"github.com/ledgerline/ledgerline/internal/llm"
	"github.com/ledgerline/ledgerline/internal/storage"
)

// initStorage opens the database and brings the schema up to date.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = "$HOME/.local/share/ledgerline/ledgerline.db"
	}

	// Expand tilde and environment variables
	dbPath = config.ExpandPath(dbPath)

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// pipelineConfig builds the pipeline tunables from viper, falling back
// to defaults for anything unset.
func pipelineConfig() (config.Pipeline, error) {
	cfg := config.DefaultPipeline()

	if viper.IsSet("pipeline.auto_apply_threshold") {
		cfg.AutoApplyThreshold = viper.GetFloat64("pipeline.auto_apply_threshold")
	}
	if viper.IsSet("pipeline.max_llm_calls_per_user_per_day") {
		cfg.MaxLLMCallsPerUserPerDay = viper.GetInt("pipeline.max_llm_calls_per_user_per_day")
	}
	if viper.IsSet("pipeline.llm_cost_per_call") {
		cfg.LLMCostPerCall = viper.GetFloat64("pipeline.llm_cost_per_call")
	}
	if viper.IsSet("pipeline.llm_timeout") {
		cfg.LLMTimeout = viper.GetDuration("pipeline.llm_timeout")
	}

	if err := cfg.Validate(); err != nil {
		return config.Pipeline{}, fmt.Errorf("invalid pipeline config: %w", err)
	}
	return cfg, nil
}

// llmConfig builds the suggestion service configuration from viper.
func llmConfig(timeout time.Duration) llm.Config {
	cfg := llm.Config{
		Provider:    viper.GetString("llm.provider"),
		APIKey:      viper.GetString("llm.api_key"),
		Model:       viper.GetString("llm.model"),
		MaxRetries:  viper.GetInt("llm.max_retries"),
		RetryDelay:  viper.GetDuration("llm.retry_delay"),
		CacheTTL:    viper.GetDuration("llm.cache_ttl"),
		RateLimit:   viper.GetInt("llm.rate_limit"),
		Temperature: viper.GetFloat64("llm.temperature"),
		MaxTokens:   viper.GetInt("llm.max_tokens"),
		Timeout:     timeout,
	}
	if cfg.Provider == "" {
		cfg.Provider = "openai"
	}
	if cfg.Model == "" {
		cfg.Model = defaultModelFor(cfg.Provider)
	}
	return cfg
}

func defaultModelFor(provider string) string {
	if provider == "anthropic" {
		return "claude-3-5-haiku-latest"
	}
	return "gpt-4o-mini"
}

// resolveUser returns the acting user for a command, preferring the flag
// over the configured default.
func resolveUser(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if user := viper.GetString("user.id"); user != "" {
		return user, nil
	}
	return "", fmt.Errorf("no user specified: pass --user or set user.id in config")
}

func closeStore(store *storage.SQLiteStorage) {
	if err := store.Close(); err != nil {
		slog.Warn("failed to close database", "error", err)
	}
}
