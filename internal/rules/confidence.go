package rules

import (
	"math"
	"strings"

	"github.com/ledgerline/ledgerline/internal/model"
)

// Confidence floor and ceiling. Scores never leave this range.
const (
	minConfidence = 0.1
	maxConfidence = 1.0
)

// Pattern-quality adjustments. The contains-branch boosts and the broad
// pattern penalty are mutually exclusive paths: a pattern shorter than
// three characters is penalized instead of boosted, and an exact match
// saturates the score outright.
const (
	exactEqualsBoost     = 1.2
	strongCoverage       = 0.6
	strongCoverageBoost  = 1.15
	partialCoverage      = 0.4
	partialCoverageBoost = 1.10
	broadPatternPenalty  = 0.8
	broadPatternLength   = 3
	strongPatternLength  = 4
)

// Confidence scores how likely a rule's proposed category is correct for
// a transaction it matched. The score starts from the rule's historical
// accuracy weighted by its base confidence, then adjusts for how
// precisely the pattern fits the description.
func Confidence(rule model.CategorizationRule, txn model.Transaction) float64 {
	adjusted := rule.AccuracyRate() * rule.BaseConfidence

	desc := txn.Description
	pattern := rule.Pattern
	if !rule.CaseSensitive {
		desc = strings.ToLower(desc)
		pattern = strings.ToLower(pattern)
	}

	switch rule.MatchType {
	case model.MatchEquals:
		if pattern == desc {
			adjusted = math.Min(maxConfidence, adjusted*exactEqualsBoost)
		}
	case model.MatchContains:
		trimmed := strings.TrimSpace(desc)
		switch {
		case pattern == trimmed:
			// The pattern is the whole description: a perfect match.
			adjusted = maxConfidence
		case len(rule.Pattern) < broadPatternLength:
			// Overly broad patterns match too much to be trusted.
			adjusted *= broadPatternPenalty
		default:
			coverage := 0.0
			if len(trimmed) > 0 {
				coverage = float64(len(rule.Pattern)) / float64(len(trimmed))
			}
			if len(rule.Pattern) >= strongPatternLength && coverage >= strongCoverage {
				adjusted = math.Min(maxConfidence, adjusted*strongCoverageBoost)
			} else if coverage >= partialCoverage {
				adjusted = math.Min(maxConfidence, adjusted*partialCoverageBoost)
			}
		}
	}

	return clamp(adjusted)
}

func clamp(score float64) float64 {
	if score < minConfidence {
		return minConfidence
	}
	if score > maxConfidence {
		return maxConfidence
	}
	return score
}
