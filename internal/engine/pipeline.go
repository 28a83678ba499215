package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ledgerline/ledgerline/internal/config"
	"github.com/ledgerline/ledgerline/internal/model"
	"github.com/ledgerline/ledgerline/internal/service"
)

// Pipeline drives the categorization stages in fixed order, threading the
// shrinking set of unresolved transactions between them and aggregating
// their results.
//
// Stages execute strictly sequentially: rule results are finalized before
// the similarity stage sees a transaction, and similarity results before
// the LLM stage. The underlying stores are not safe for concurrent use
// within one logical unit of work, so this ordering is a requirement, not
// an optimization choice.
type Pipeline struct {
	logger *slog.Logger
	stages []Stage
}

// NewPipeline composes a pipeline from explicitly ordered stages.
func NewPipeline(logger *slog.Logger, stages ...Stage) *Pipeline {
	return &Pipeline{
		logger: logger,
		stages: stages,
	}
}

// NewDefaultPipeline wires the standard three-stage pipeline: rule
// matching, similarity, then quota-gated LLM suggestions.
func NewDefaultPipeline(
	cfg config.Pipeline,
	ruleStore service.RuleStore,
	categoryStore service.CategoryStore,
	transactionStore service.TransactionStore,
	candidateStore service.CandidateStore,
	suggester service.Suggester,
	usage service.UsageTracker,
	logger *slog.Logger,
) *Pipeline {
	return NewPipeline(logger,
		NewRuleStage(ruleStore, categoryStore, transactionStore, candidateStore, cfg.AutoApplyThreshold, logger),
		NewSimilarityStage(),
		NewLLMStage(suggester, candidateStore, usage, cfg.LLMCostPerCall, logger),
	)
}

// Run processes one batch of uncategorized transactions through every
// stage. The returned result is best-effort: a failing stage contributes
// an error and leaves its input unresolved for the next run rather than
// aborting the batch. Every input transaction ends in exactly one of
// auto-applied, pending candidate, or unresolved.
func (p *Pipeline) Run(ctx context.Context, transactions []model.Transaction) (service.PipelineResult, error) {
	result := service.PipelineResult{Metrics: service.NewMetrics()}
	remaining := transactions

	var userID string
	if len(transactions) > 0 {
		userID = transactions[0].UserID
	}

	p.logger.Info("starting categorization pipeline",
		"user_id", userID,
		"transactions", len(transactions))

	for _, stage := range p.stages {
		if len(remaining) == 0 {
			break
		}

		// A cancellation aborts the stages not yet run but must not
		// corrupt results already produced; those are returned as-is.
		select {
		case <-ctx.Done():
			result.Errors = append(result.Errors, fmt.Sprintf("pipeline canceled before %s stage: %v", stage.Name(), ctx.Err()))
			result.UnresolvedIDs = transactionIDs(remaining)
			return result, nil
		default:
		}

		if gated, ok := stage.(GatedStage); ok && !gated.Allowed(userID) {
			p.logger.Info("stage gate closed, skipping",
				"stage", stage.Name(),
				"user_id", userID)
			result.Metrics.ProcessedByStage[stage.Name()] = 0
			continue
		}

		stageResult, err := p.runStage(ctx, stage, remaining)
		if err != nil {
			p.logger.Error("stage failed",
				"stage", stage.Name(),
				"error", err)
			result.Errors = append(result.Errors, fmt.Sprintf("%s stage: %v", stage.Name(), err))
			result.Errors = append(result.Errors, stageResult.Errors...)
			result.Metrics.Merge(stageResult.Metrics)
			// Remaining is unchanged: the stage's input stays eligible
			// for the next stage and the next run.
			continue
		}

		result.AutoApplied = append(result.AutoApplied, stageResult.AutoApplied...)
		result.Candidates = append(result.Candidates, stageResult.Candidates...)
		result.Errors = append(result.Errors, stageResult.Errors...)
		result.Metrics.Merge(stageResult.Metrics)
		remaining = stageResult.Remaining

		p.logger.Info("stage complete",
			"stage", stage.Name(),
			"auto_applied", len(stageResult.AutoApplied),
			"candidates", len(stageResult.Candidates),
			"remaining", len(remaining))
	}

	result.UnresolvedIDs = transactionIDs(remaining)

	p.logger.Info("pipeline complete",
		"auto_applied", len(result.AutoApplied),
		"candidates", len(result.Candidates),
		"unresolved", len(result.UnresolvedIDs),
		"errors", len(result.Errors))

	return result, nil
}

// runStage invokes one stage with panic isolation: a panicking stage is
// recorded as a stage error, not a crashed batch.
func (p *Pipeline) runStage(ctx context.Context, stage Stage, transactions []model.Transaction) (sr service.StageResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			sr = service.NewStageResult()
			err = fmt.Errorf("stage panicked: %v", r)
		}
	}()

	return stage.Process(ctx, transactions)
}

func transactionIDs(transactions []model.Transaction) []string {
	if len(transactions) == 0 {
		return nil
	}
	ids := make([]string, len(transactions))
	for i, txn := range transactions {
		ids[i] = txn.ID
	}
	return ids
}
