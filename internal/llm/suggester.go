package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ledgerline/ledgerline/internal/common"
	"github.com/ledgerline/ledgerline/internal/model"
	"github.com/ledgerline/ledgerline/internal/service"
)

// Suggester implements service.Suggester against an LLM provider,
// wrapping calls with caching, rate limiting, and retry.
type Suggester struct {
	client     Client
	categories service.CategoryStore
	cache      *suggestionCache
	limiter    *rateLimiter
	logger     *slog.Logger
	retryOpts  service.RetryOptions
}

// NewSuggester creates a new LLM-backed suggestion service.
func NewSuggester(cfg Config, categories service.CategoryStore, logger *slog.Logger) (*Suggester, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	retryOpts := service.RetryOptions{
		MaxAttempts:  cfg.MaxRetries,
		InitialDelay: cfg.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
	if retryOpts.MaxAttempts == 0 {
		retryOpts.MaxAttempts = 3
	}
	if retryOpts.InitialDelay == 0 {
		retryOpts.InitialDelay = time.Second
	}

	return &Suggester{
		client:     client,
		categories: categories,
		cache:      newSuggestionCache(cfg.CacheTTL),
		limiter:    newRateLimiter(cfg.RateLimit),
		logger:     logger,
		retryOpts:  retryOpts,
	}, nil
}

// NewSuggesterWithClient builds a Suggester around an existing client.
// Used by tests and by callers that construct providers themselves.
func NewSuggesterWithClient(client Client, categories service.CategoryStore, logger *slog.Logger) *Suggester {
	return &Suggester{
		client:     client,
		categories: categories,
		cache:      newSuggestionCache(0),
		limiter:    newRateLimiter(0),
		logger:     logger,
		retryOpts:  service.RetryOptions{MaxAttempts: 3, InitialDelay: time.Second},
	}
}

// Suggest asks the provider for category suggestions for a batch of
// transactions. Cached transactions are answered without an external
// call; suggestions naming unknown categories are reported as errors in
// the batch rather than dropped silently.
func (s *Suggester) Suggest(ctx context.Context, transactions []model.Transaction, userID string) (service.SuggestionBatch, error) {
	var batch service.SuggestionBatch

	if len(transactions) == 0 {
		return batch, nil
	}

	// Serve what we can from the cache.
	var uncached []model.Transaction
	for _, txn := range transactions {
		if suggestion, found := s.cache.get(txn.Hash); found {
			s.logger.Debug("suggestion cache hit",
				"transaction_id", txn.ID,
				"merchant", txn.DisplayName())
			batch.Suggestions = append(batch.Suggestions, suggestion)
			continue
		}
		uncached = append(uncached, txn)
	}

	if len(uncached) == 0 {
		return batch, nil
	}

	categories, err := s.categories.GetCategories(ctx)
	if err != nil {
		return batch, fmt.Errorf("failed to load categories: %w", err)
	}

	prompt := buildPrompt(uncached, categories)

	if err := s.limiter.wait(ctx); err != nil {
		return batch, err
	}

	var content string
	err = common.WithRetry(ctx, func() error {
		var completeErr error
		content, completeErr = s.client.Complete(ctx, prompt)
		return completeErr
	}, s.retryOpts)
	if err != nil {
		return batch, fmt.Errorf("%w: %v", common.ErrSuggestionFailed, err)
	}

	parsed, parseErrors, err := parseSuggestions(content)
	if err != nil {
		return batch, fmt.Errorf("%w: %v", common.ErrSuggestionFailed, err)
	}
	batch.Errors = append(batch.Errors, parseErrors...)

	byName := make(map[string]model.Category, len(categories))
	for _, cat := range categories {
		byName[strings.ToLower(cat.Name)] = cat
	}
	byID := make(map[string]model.Transaction, len(uncached))
	for _, txn := range uncached {
		byID[txn.ID] = txn
	}

	for _, raw := range parsed {
		txn, ok := byID[raw.TransactionID]
		if !ok {
			batch.Errors = append(batch.Errors,
				fmt.Sprintf("suggestion for unknown transaction %q", raw.TransactionID))
			continue
		}

		category, ok := byName[strings.ToLower(raw.Category)]
		if !ok {
			batch.Errors = append(batch.Errors,
				fmt.Sprintf("suggestion for transaction %q names unknown category %q", raw.TransactionID, raw.Category))
			continue
		}

		suggestion := service.CategorySuggestion{
			TransactionID:  raw.TransactionID,
			CategoryID:     category.ID,
			CategoryName:   category.Name,
			Confidence:     raw.Confidence,
			Reasoning:      raw.Reasoning,
			MatchedRuleIDs: raw.RuleIDs,
		}

		s.cache.set(txn.Hash, suggestion)
		batch.Suggestions = append(batch.Suggestions, suggestion)
	}

	s.logger.Info("suggestion batch complete",
		"user_id", userID,
		"requested", len(uncached),
		"suggested", len(batch.Suggestions),
		"errors", len(batch.Errors))

	return batch, nil
}

// Close releases the suggester's background resources.
func (s *Suggester) Close() {
	s.cache.Close()
}

// buildPrompt renders the batch suggestion prompt.
func buildPrompt(transactions []model.Transaction, categories []model.Category) string {
	var sb strings.Builder

	sb.WriteString("Categorize the following financial transactions.\n\n")
	sb.WriteString("Available categories:\n")
	for _, cat := range categories {
		if !cat.IsActive {
			continue
		}
		sb.WriteString(fmt.Sprintf("- %s", cat.Name))
		if cat.Description != "" {
			sb.WriteString(": " + cat.Description)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("\nTransactions:\n")
	for _, txn := range transactions {
		sb.WriteString(fmt.Sprintf("- id=%s date=%s amount=%.2f description=%q\n",
			txn.ID, txn.Date.Format("2006-01-02"), txn.Amount, txn.Description))
	}

	sb.WriteString("\nRespond with a JSON array; one object per transaction with " +
		`keys "transaction_id", "category" (one of the available categories), ` +
		`"confidence" (0.0-1.0), and "reasoning" (one short sentence).`)

	return sb.String()
}
