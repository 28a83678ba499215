// Package review applies human decisions to pending categorization
// candidates.
package review

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/ledgerline/ledgerline/internal/model"
	"github.com/ledgerline/ledgerline/internal/service"
)

// Service executes candidate decisions. Every decision transitions the
// candidate exactly once; corrections additionally feed the rule
// performance counters, which is the pipeline's only learning mechanism.
type Service struct {
	candidates   service.CandidateStore
	transactions service.TransactionStore
	rules        service.RuleStore
	categories   service.CategoryStore
	logger       *slog.Logger
	now          func() time.Time
}

// NewService creates a review service.
func NewService(
	candidates service.CandidateStore,
	transactions service.TransactionStore,
	rules service.RuleStore,
	categories service.CategoryStore,
	logger *slog.Logger,
) *Service {
	return &Service{
		candidates:   candidates,
		transactions: transactions,
		rules:        rules,
		categories:   categories,
		logger:       logger,
		now:          time.Now,
	}
}

// Accept confirms a candidate: its proposed category is applied to the
// transaction and the candidate becomes accepted.
func (s *Service) Accept(ctx context.Context, candidateID string) error {
	candidate, err := s.candidates.GetCandidate(ctx, candidateID)
	if err != nil {
		return fmt.Errorf("failed to load candidate: %w", err)
	}

	now := s.now()
	if err := candidate.TransitionTo(model.StatusAccepted, now); err != nil {
		return err
	}

	if err := s.applyCategory(ctx, candidate, candidate.CategoryID, now, "accepted by reviewer"); err != nil {
		return err
	}

	if err := s.candidates.UpdateCandidateStatus(ctx, candidate); err != nil {
		return fmt.Errorf("failed to persist decision: %w", err)
	}

	s.logger.Info("candidate accepted",
		"candidate_id", candidate.ID,
		"transaction_id", candidate.TransactionID,
		"category_id", candidate.CategoryID)
	return nil
}

// Reject dismisses a candidate. No category is applied; the transaction
// stays uncategorized and eligible for future runs.
func (s *Service) Reject(ctx context.Context, candidateID string) error {
	candidate, err := s.candidates.GetCandidate(ctx, candidateID)
	if err != nil {
		return fmt.Errorf("failed to load candidate: %w", err)
	}

	if err := candidate.TransitionTo(model.StatusRejected, s.now()); err != nil {
		return err
	}

	if err := s.candidates.UpdateCandidateStatus(ctx, candidate); err != nil {
		return fmt.Errorf("failed to persist decision: %w", err)
	}

	s.logger.Info("candidate rejected",
		"candidate_id", candidate.ID,
		"transaction_id", candidate.TransactionID)
	return nil
}

// Correct applies a different category than proposed. When the candidate
// came from a rule, that rule's correction counter is incremented so its
// confidence drops on future runs.
func (s *Service) Correct(ctx context.Context, candidateID string, categoryID int) error {
	candidate, err := s.candidates.GetCandidate(ctx, candidateID)
	if err != nil {
		return fmt.Errorf("failed to load candidate: %w", err)
	}

	if categoryID == candidate.CategoryID {
		return fmt.Errorf("correction category %d matches the proposal; use accept instead", categoryID)
	}

	category, err := s.categories.GetCategoryByID(ctx, categoryID)
	if err != nil {
		return fmt.Errorf("failed to resolve category: %w", err)
	}
	if category == nil {
		return fmt.Errorf("category %d does not exist or is inactive", categoryID)
	}

	now := s.now()
	if err := candidate.TransitionTo(model.StatusCorrected, now); err != nil {
		return err
	}

	if err := s.applyCategory(ctx, candidate, categoryID, now, "corrected by reviewer"); err != nil {
		return err
	}

	if err := s.candidates.UpdateCandidateStatus(ctx, candidate); err != nil {
		return fmt.Errorf("failed to persist decision: %w", err)
	}

	if ruleID, ok := sourceRuleID(candidate); ok {
		if err := s.rules.IncrementCorrectionCount(ctx, ruleID); err != nil {
			// The decision already committed; a failed counter update is
			// logged, not surfaced to the reviewer.
			s.logger.Error("failed to record correction against rule",
				"rule_id", ruleID,
				"candidate_id", candidate.ID,
				"error", err)
		} else {
			s.logger.Info("rule correction recorded",
				"rule_id", ruleID,
				"candidate_id", candidate.ID)
		}
	}

	s.logger.Info("candidate corrected",
		"candidate_id", candidate.ID,
		"transaction_id", candidate.TransactionID,
		"proposed_category", candidate.CategoryID,
		"applied_category", categoryID)
	return nil
}

func (s *Service) applyCategory(ctx context.Context, candidate *model.Candidate, categoryID int, now time.Time, reasoning string) error {
	applied := []model.AutoApplied{{
		TransactionID: candidate.TransactionID,
		CategoryID:    categoryID,
		Confidence:    candidate.Confidence,
		Reasoning:     reasoning,
		AppliedAt:     now,
	}}
	if err := s.transactions.ApplyCategories(ctx, applied); err != nil {
		return fmt.Errorf("failed to apply category: %w", err)
	}
	return nil
}

// sourceRuleID extracts the originating rule from a rule-sourced
// candidate's metadata.
func sourceRuleID(candidate *model.Candidate) (int, bool) {
	if candidate.Method != model.MethodRule {
		return 0, false
	}
	raw, ok := candidate.Metadata[model.MetadataRuleID]
	if !ok {
		return 0, false
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return id, true
}
