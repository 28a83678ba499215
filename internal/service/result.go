package service

import "github.com/ledgerline/ledgerline/internal/model"

// Confidence band boundaries used for metrics distribution.
const (
	BandHigh   = "high"   // >= 0.8
	BandMedium = "medium" // >= 0.5
	BandLow    = "low"    // < 0.5
)

// ConfidenceBand buckets a score for metrics reporting.
func ConfidenceBand(score float64) string {
	switch {
	case score >= 0.8:
		return BandHigh
	case score >= 0.5:
		return BandMedium
	default:
		return BandLow
	}
}

// Metrics aggregates per-stage processing statistics for one batch.
type Metrics struct {
	ProcessedByStage     map[string]int
	CategoryDistribution map[int]int
	ConfidenceBands      map[string]int
	EstimatedCostSavings float64
}

// NewMetrics returns an empty, initialized Metrics value.
func NewMetrics() Metrics {
	return Metrics{
		ProcessedByStage:     make(map[string]int),
		CategoryDistribution: make(map[int]int),
		ConfidenceBands:      make(map[string]int),
	}
}

// Record notes one resolved transaction for distribution metrics.
func (m *Metrics) Record(categoryID int, confidence float64) {
	m.CategoryDistribution[categoryID]++
	m.ConfidenceBands[ConfidenceBand(confidence)]++
}

// Merge folds another metrics value into this one.
func (m *Metrics) Merge(other Metrics) {
	for stage, count := range other.ProcessedByStage {
		m.ProcessedByStage[stage] += count
	}
	for category, count := range other.CategoryDistribution {
		m.CategoryDistribution[category] += count
	}
	for band, count := range other.ConfidenceBands {
		m.ConfidenceBands[band] += count
	}
	m.EstimatedCostSavings += other.EstimatedCostSavings
}

// StageResult is the partial outcome one pipeline stage produces for a
// batch: what it committed, what it proposed, and what it could not
// resolve.
type StageResult struct {
	AutoApplied []model.AutoApplied
	Candidates  []model.Candidate
	Remaining   []model.Transaction
	Metrics     Metrics
	Errors      []string
}

// NewStageResult returns a StageResult with initialized metrics.
func NewStageResult() StageResult {
	return StageResult{Metrics: NewMetrics()}
}

// PipelineResult is the consolidated outcome of one pipeline run.
type PipelineResult struct {
	AutoApplied   []model.AutoApplied
	Candidates    []model.Candidate
	UnresolvedIDs []string
	Metrics       Metrics
	Errors        []string
}
