package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerline/ledgerline/internal/model"
	"github.com/ledgerline/ledgerline/internal/rules"
	"github.com/ledgerline/ledgerline/internal/service"
)

// StageNameRule is the metrics key for the rule matching stage.
const StageNameRule = "rule"

// RuleStage resolves transactions by evaluating the user's active rules
// in priority order. It is the cheapest stage: fully deterministic, no
// external calls.
type RuleStage struct {
	ruleStore        service.RuleStore
	categoryStore    service.CategoryStore
	transactionStore service.TransactionStore
	candidateStore   service.CandidateStore
	evaluator        rules.Evaluator
	logger           *slog.Logger
	threshold        float64
}

// NewRuleStage creates the rule matching stage. Confidence scores at or
// above threshold are applied without review.
func NewRuleStage(
	ruleStore service.RuleStore,
	categoryStore service.CategoryStore,
	transactionStore service.TransactionStore,
	candidateStore service.CandidateStore,
	threshold float64,
	logger *slog.Logger,
) *RuleStage {
	return &RuleStage{
		ruleStore:        ruleStore,
		categoryStore:    categoryStore,
		transactionStore: transactionStore,
		candidateStore:   candidateStore,
		evaluator:        rules.NewMatcher(),
		logger:           logger,
		threshold:        threshold,
	}
}

// Name implements Stage.
func (s *RuleStage) Name() string { return StageNameRule }

// Process evaluates every transaction against the rule set. The first
// matching rule with a live target category wins; a transaction no rule
// resolves stays in Remaining for the next stage. Evaluation failures
// are scoped to one (rule, transaction) pair.
func (s *RuleStage) Process(ctx context.Context, transactions []model.Transaction) (service.StageResult, error) {
	result := service.NewStageResult()
	if len(transactions) == 0 {
		return result, nil
	}

	userID := transactions[0].UserID
	ruleSet, err := s.ruleStore.GetActiveRules(ctx, userID)
	if err != nil {
		result.Remaining = transactions
		return result, fmt.Errorf("failed to load active rules: %w", err)
	}

	// The run owns a private ordered copy of the rule set for its
	// duration; the store's ordering is not relied upon.
	ordered := rules.SortByPriority(ruleSet)

	// Category resolutions are cached per run, including negative ones.
	categoryCache := make(map[int]*model.Category)
	now := time.Now()

	for _, txn := range transactions {
		resolved, errs := s.processTransaction(ctx, ordered, txn, categoryCache, now, &result)
		result.Errors = append(result.Errors, errs...)
		if !resolved {
			result.Remaining = append(result.Remaining, txn)
		}
	}

	result.Metrics.ProcessedByStage[StageNameRule] = len(transactions) - len(result.Remaining)

	proposed := make(map[string]bool, len(result.Candidates))
	for _, candidate := range result.Candidates {
		proposed[candidate.TransactionID] = true
	}

	if err := s.flush(ctx, &result); err != nil {
		failed := service.NewStageResult()
		failed.Remaining = transactions
		return failed, err
	}

	// Candidates flush drops the whole batch on failure; their
	// transactions go back into Remaining so none lacks an outcome.
	if len(proposed) > 0 && len(result.Candidates) == 0 {
		result.Remaining = requeue(transactions, result.Remaining, proposed)
		result.Metrics.ProcessedByStage[StageNameRule] = len(transactions) - len(result.Remaining)
	}

	return result, nil
}

// requeue rebuilds the remaining list in original input order from the
// transactions already unresolved plus those whose candidates were not
// persisted.
func requeue(transactions, remaining []model.Transaction, proposed map[string]bool) []model.Transaction {
	unresolved := make(map[string]bool, len(remaining))
	for _, txn := range remaining {
		unresolved[txn.ID] = true
	}

	rebuilt := make([]model.Transaction, 0, len(remaining)+len(proposed))
	for _, txn := range transactions {
		if unresolved[txn.ID] || proposed[txn.ID] {
			rebuilt = append(rebuilt, txn)
		}
	}
	return rebuilt
}

// processTransaction scans the ordered rules for the first winning match.
// It returns whether the transaction was resolved, plus any per-rule
// evaluation errors encountered along the way.
func (s *RuleStage) processTransaction(
	ctx context.Context,
	ordered []model.CategorizationRule,
	txn model.Transaction,
	categoryCache map[int]*model.Category,
	now time.Time,
	result *service.StageResult,
) (bool, []string) {
	var errs []string

	for _, rule := range ordered {
		matched, err := s.evaluator.Evaluate(rule, txn)
		if err != nil {
			s.logger.Warn("rule evaluation failed",
				"rule_id", rule.ID,
				"transaction_id", txn.ID,
				"error", err)
			errs = append(errs, fmt.Sprintf("rule %d on transaction %s: %v", rule.ID, txn.ID, err))
			continue
		}
		if !matched {
			continue
		}

		category, err := s.resolveCategory(ctx, rule.CategoryID, categoryCache)
		if err != nil {
			errs = append(errs, fmt.Sprintf("rule %d category lookup: %v", rule.ID, err))
			continue
		}
		if category == nil {
			// A rule with no live target category is never applied;
			// matching continues with the next rule.
			s.logger.Warn("rule matched but target category is not live, skipping",
				"rule_id", rule.ID,
				"category_id", rule.CategoryID,
				"transaction_id", txn.ID)
			continue
		}

		confidence := rules.Confidence(rule, txn)
		reasoning := fmt.Sprintf("matched rule %q (%s %q)", rule.Name, rule.MatchType, rule.Pattern)
		if rule.HasConditions() {
			reasoning = fmt.Sprintf("matched rule %q (%d conditions)", rule.Name, len(rule.Conditions))
		}

		if confidence >= s.threshold {
			result.AutoApplied = append(result.AutoApplied, model.AutoApplied{
				TransactionID: txn.ID,
				CategoryID:    category.ID,
				RuleID:        rule.ID,
				Confidence:    confidence,
				Reasoning:     reasoning,
				AppliedAt:     now,
			})
		} else {
			result.Candidates = append(result.Candidates, model.Candidate{
				ID:            uuid.NewString(),
				TransactionID: txn.ID,
				CategoryID:    category.ID,
				Method:        model.MethodRule,
				Confidence:    confidence,
				Reasoning:     reasoning,
				Metadata:      map[string]string{model.MetadataRuleID: strconv.Itoa(rule.ID)},
				Status:        model.StatusPending,
				CreatedAt:     now,
				ProposedBy:    StageNameRule,
			})
		}

		result.Metrics.Record(category.ID, confidence)
		return true, errs
	}

	return false, errs
}

// resolveCategory looks up a rule's target category, caching both
// positive and negative results for the run.
func (s *RuleStage) resolveCategory(ctx context.Context, categoryID int, cache map[int]*model.Category) (*model.Category, error) {
	if category, ok := cache[categoryID]; ok {
		return category, nil
	}

	category, err := s.categoryStore.GetCategoryByID(ctx, categoryID)
	if err != nil {
		return nil, err
	}

	cache[categoryID] = category
	return category, nil
}

// flush writes the stage's output in one batch per store: applied
// categorizations, rule counter increments, and new candidates.
//
// Only an ApplyCategories failure is returned as an error; that write is
// atomic, so nothing was committed and the whole input can safely stay
// eligible. Failures after the applications committed are recorded in
// the result instead, so already-categorized transactions are never
// re-queued toward the costly stages.
func (s *RuleStage) flush(ctx context.Context, result *service.StageResult) error {
	if len(result.AutoApplied) > 0 {
		if err := s.transactionStore.ApplyCategories(ctx, result.AutoApplied); err != nil {
			return fmt.Errorf("failed to apply categorizations: %w", err)
		}

		ruleIDs := make([]int, 0, len(result.AutoApplied))
		for _, applied := range result.AutoApplied {
			ruleIDs = append(ruleIDs, applied.RuleID)
		}
		if err := s.ruleStore.IncrementMatchCounts(ctx, ruleIDs); err != nil {
			s.logger.Error("failed to increment rule match counts", "error", err)
			result.Errors = append(result.Errors, fmt.Sprintf("increment rule match counts: %v", err))
		}
	}

	if len(result.Candidates) > 0 {
		if err := s.candidateStore.CreateCandidates(ctx, result.Candidates); err != nil {
			// The candidates were not persisted; their transactions stay
			// uncategorized in the store and are picked up next run.
			s.logger.Error("failed to create candidates", "error", err)
			result.Errors = append(result.Errors, fmt.Sprintf("create candidates: %v", err))
			result.Candidates = nil
		}
	}

	return nil
}
