package llm

import (
	"context"
	"time"
)

// Client defines the interface for LLM providers. Providers return the
// raw completion text; parsing into suggestions is shared across
// providers.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Config holds configuration for the LLM suggestion service.
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	MaxRetries  int
	RetryDelay  time.Duration
	CacheTTL    time.Duration
	RateLimit   int
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

const systemPrompt = "You are a financial transaction categorizer. " +
	"You MUST respond with ONLY a valid JSON array. Do not include any " +
	"explanatory text, markdown formatting, or commentary before or after " +
	"the JSON. Start your response directly with [ and end with ]."
