package engine

import (
	"context"

	"github.com/ledgerline/ledgerline/internal/model"
	"github.com/ledgerline/ledgerline/internal/service"
)

// StageNameSimilarity is the metrics key for the similarity/ML stage.
const StageNameSimilarity = "similarity"

// SimilarityStage is the extension point between the free rule stage and
// the costly LLM stage. The current implementation passes every
// transaction through unresolved.
//
// An implementation plugged in here must preserve the stage contract:
// bounded cost, batch-oriented, auto-applies above the threshold or
// produces pending candidates below it, and returns everything else in
// Remaining. Nearest-neighbor matching against confirmed categorizations
// is the natural first candidate.
type SimilarityStage struct{}

// NewSimilarityStage creates the pass-through similarity stage.
func NewSimilarityStage() *SimilarityStage {
	return &SimilarityStage{}
}

// Name implements Stage.
func (s *SimilarityStage) Name() string { return StageNameSimilarity }

// Process passes all transactions through unresolved.
func (s *SimilarityStage) Process(_ context.Context, transactions []model.Transaction) (service.StageResult, error) {
	result := service.NewStageResult()
	result.Remaining = transactions
	result.Metrics.ProcessedByStage[StageNameSimilarity] = 0
	return result, nil
}
