// Package service defines the collaborator interfaces and shared result
// types the categorization pipeline is built against.
package service

import (
	"context"
	"time"

	"github.com/ledgerline/ledgerline/internal/model"
)

// TransactionStore is the narrow transaction query/update interface the
// pipeline consumes.
type TransactionStore interface {
	// GetUncategorized fetches transactions without an applied category for a user.
	GetUncategorized(ctx context.Context, userID string) ([]model.Transaction, error)
	// GetTransactionByID fetches a single transaction.
	GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error)
	// ApplyCategories persists applied categorizations in one batch.
	ApplyCategories(ctx context.Context, applied []model.AutoApplied) error
	// SaveTransactions persists imported transactions, skipping duplicates by hash.
	SaveTransactions(ctx context.Context, transactions []model.Transaction) error
}

// RuleStore is the rule query/update interface.
type RuleStore interface {
	// GetActiveRules returns a user's active rules ordered by ascending priority.
	GetActiveRules(ctx context.Context, userID string) ([]model.CategorizationRule, error)
	// GetRule fetches a single rule by ID.
	GetRule(ctx context.Context, id int) (*model.CategorizationRule, error)
	// CreateRule persists a new rule.
	CreateRule(ctx context.Context, rule *model.CategorizationRule) error
	// IncrementMatchCounts bumps match counters for the given rules in one batch.
	IncrementMatchCounts(ctx context.Context, ruleIDs []int) error
	// IncrementCorrectionCount bumps a rule's correction counter.
	IncrementCorrectionCount(ctx context.Context, ruleID int) error
}

// CategoryStore resolves rule targets to live categories.
type CategoryStore interface {
	// GetCategoryByID returns (nil, nil) when the category is deleted or
	// inactive; that is a valid negative result, not an error.
	GetCategoryByID(ctx context.Context, id int) (*model.Category, error)
	GetCategories(ctx context.Context) ([]model.Category, error)
	CreateCategory(ctx context.Context, name, description string, categoryType model.CategoryType) (*model.Category, error)
}

// CandidateStore holds reviewable categorization proposals.
type CandidateStore interface {
	// CreateCandidates persists a batch of new candidates.
	CreateCandidates(ctx context.Context, candidates []model.Candidate) error
	GetCandidate(ctx context.Context, id string) (*model.Candidate, error)
	GetPendingCandidates(ctx context.Context, userID string) ([]model.Candidate, error)
	GetPendingByTransaction(ctx context.Context, transactionID string) ([]model.Candidate, error)
	// UpdateCandidateStatus persists a lifecycle transition.
	UpdateCandidateStatus(ctx context.Context, candidate *model.Candidate) error
}

// CategorySuggestion is one proposal returned by the external suggestion
// service.
type CategorySuggestion struct {
	TransactionID  string
	CategoryName   string
	Reasoning      string
	MatchedRuleIDs []int
	CategoryID     int
	Confidence     float64
}

// SuggestionBatch is the result of one external suggestion call.
type SuggestionBatch struct {
	Suggestions []CategorySuggestion
	Errors      []string
}

// Suggester is the external LLM suggestion interface.
type Suggester interface {
	Suggest(ctx context.Context, transactions []model.Transaction, userID string) (SuggestionBatch, error)
}

// UsageTracker enforces the per-user daily quota on the costly stage.
type UsageTracker interface {
	// CanUse reports whether the user has quota left today.
	CanUse(userID string) bool
	// TryAcquire atomically checks and consumes one unit of quota.
	TryAcquire(userID string) bool
	// RecordUsage notes a completed operation for audit logging.
	RecordUsage(userID, operation string)
	// Remaining returns the user's remaining quota for today.
	Remaining(userID string) int
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
