package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerline/ledgerline/internal/common"
	"github.com/ledgerline/ledgerline/internal/model"
	"github.com/ledgerline/ledgerline/internal/service"
)

// StageNameLLM is the metrics key for the LLM suggestion stage.
const StageNameLLM = "llm"

// MetadataSuggestedRules is the candidate metadata key listing rule IDs
// the suggestion service correlated with its proposal.
const MetadataSuggestedRules = "suggested_rule_ids"

// LLMStage is the last-resort stage. It asks an external suggestion
// service about transactions no cheaper stage resolved. Because of its
// cost and latency every suggestion becomes a pending candidate for
// human confirmation; this stage never auto-applies.
type LLMStage struct {
	suggester      service.Suggester
	candidateStore service.CandidateStore
	usage          service.UsageTracker
	logger         *slog.Logger
	costPerCall    float64
}

// NewLLMStage creates the LLM suggestion stage.
func NewLLMStage(
	suggester service.Suggester,
	candidateStore service.CandidateStore,
	usage service.UsageTracker,
	costPerCall float64,
	logger *slog.Logger,
) *LLMStage {
	return &LLMStage{
		suggester:      suggester,
		candidateStore: candidateStore,
		usage:          usage,
		logger:         logger,
		costPerCall:    costPerCall,
	}
}

// Name implements Stage.
func (s *LLMStage) Name() string { return StageNameLLM }

// Allowed implements GatedStage: the pipeline skips this stage entirely
// when the user's daily quota is exhausted, before any cost is incurred.
func (s *LLMStage) Allowed(userID string) bool {
	return s.usage.CanUse(userID)
}

// Process sends the batch to the suggestion service and turns every
// suggestion into a pending candidate. On service failure the input
// transactions stay unresolved; they are never silently dropped.
func (s *LLMStage) Process(ctx context.Context, transactions []model.Transaction) (service.StageResult, error) {
	result := service.NewStageResult()
	if len(transactions) == 0 {
		return result, nil
	}

	userID, err := owningUser(transactions)
	if err != nil {
		result.Remaining = transactions
		return result, err
	}

	// Atomic check-and-increment: concurrent runs for the same user
	// cannot jointly exceed the daily cap.
	if !s.usage.TryAcquire(userID) {
		s.logger.Info("suggestion quota exhausted, skipping LLM stage",
			"user_id", userID,
			"transactions", len(transactions))
		result.Remaining = transactions
		result.Metrics.ProcessedByStage[StageNameLLM] = 0
		return result, nil
	}

	batch, err := s.suggester.Suggest(ctx, transactions, userID)
	if err != nil {
		result.Remaining = transactions
		return result, fmt.Errorf("suggestion service: %w", err)
	}
	s.usage.RecordUsage(userID, "suggest")

	result.Errors = append(result.Errors, batch.Errors...)

	now := time.Now()
	suggested := make(map[string]bool, len(batch.Suggestions))

	for _, suggestion := range batch.Suggestions {
		candidate := model.Candidate{
			ID:            uuid.NewString(),
			TransactionID: suggestion.TransactionID,
			CategoryID:    suggestion.CategoryID,
			Method:        model.MethodLLM,
			Confidence:    suggestion.Confidence,
			Reasoning:     suggestion.Reasoning,
			Status:        model.StatusPending,
			CreatedAt:     now,
			ProposedBy:    StageNameLLM,
		}
		if len(suggestion.MatchedRuleIDs) > 0 {
			candidate.Metadata = map[string]string{
				MetadataSuggestedRules: joinRuleIDs(suggestion.MatchedRuleIDs),
			}
		}

		result.Candidates = append(result.Candidates, candidate)
		result.Metrics.Record(suggestion.CategoryID, suggestion.Confidence)
		suggested[suggestion.TransactionID] = true
	}

	for _, txn := range transactions {
		if !suggested[txn.ID] {
			result.Remaining = append(result.Remaining, txn)
		}
	}

	result.Metrics.ProcessedByStage[StageNameLLM] = len(result.Candidates)
	result.Metrics.EstimatedCostSavings = s.costPerCall * float64(len(result.Candidates))

	if len(result.Candidates) > 0 {
		if err := s.candidateStore.CreateCandidates(ctx, result.Candidates); err != nil {
			failed := service.NewStageResult()
			failed.Remaining = transactions
			return failed, fmt.Errorf("failed to create candidates: %w", err)
		}
	}

	return result, nil
}

// owningUser enforces the precondition that all transactions in one
// suggestion call share a user.
func owningUser(transactions []model.Transaction) (string, error) {
	userID := transactions[0].UserID
	if userID == "" {
		return "", common.ErrNoOwningUser
	}
	for _, txn := range transactions[1:] {
		if txn.UserID != userID {
			return "", fmt.Errorf("%w: batch mixes users %q and %q",
				common.ErrNoOwningUser, userID, txn.UserID)
		}
	}
	return userID, nil
}

func joinRuleIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}
