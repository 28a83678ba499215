package model

import (
	"fmt"
	"time"
)

// MatchType determines how a rule's pattern is compared against a
// transaction description.
type MatchType string

// Match type constants.
const (
	MatchEquals     MatchType = "equals"
	MatchStartsWith MatchType = "starts_with"
	MatchEndsWith   MatchType = "ends_with"
	MatchContains   MatchType = "contains"
	MatchRegex      MatchType = "regex"
)

// ConditionField identifies the transaction attribute a rule condition
// inspects.
type ConditionField string

// Condition field constants.
const (
	FieldDescription ConditionField = "description"
	FieldMerchant    ConditionField = "merchant"
	FieldAmount      ConditionField = "amount"
	FieldAccount     ConditionField = "account"
)

// ConditionOperator is the comparison applied between a condition field
// and its value.
type ConditionOperator string

// Condition operator constants.
const (
	OpEquals       ConditionOperator = "equals"
	OpContains     ConditionOperator = "contains"
	OpStartsWith   ConditionOperator = "starts_with"
	OpEndsWith     ConditionOperator = "ends_with"
	OpGreaterThan  ConditionOperator = "gt"
	OpGreaterEqual ConditionOperator = "ge"
	OpLessThan     ConditionOperator = "lt"
	OpLessEqual    ConditionOperator = "le"
)

// RuleCondition is one conjunctive clause of a rule's advanced matching.
// When a rule carries conditions they fully replace pattern matching:
// every condition must evaluate true for the rule to match.
type RuleCondition struct {
	Field    ConditionField    `json:"field"`
	Operator ConditionOperator `json:"operator"`
	Value    string            `json:"value"`
}

// CategorizationRule matches transactions to a target category and tracks
// its own historical performance.
type CategorizationRule struct {
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	UserID          string          `json:"user_id"`
	Name            string          `json:"name"`
	Pattern         string          `json:"pattern"`
	MatchType       MatchType       `json:"match_type"`
	Conditions      []RuleCondition `json:"conditions,omitempty"`
	ID              int             `json:"id"`
	CategoryID      int             `json:"category_id"`
	Priority        int             `json:"priority"` // Lower value = evaluated first
	BaseConfidence  float64         `json:"base_confidence"`
	MatchCount      int             `json:"match_count"`
	CorrectionCount int             `json:"correction_count"`
	CaseSensitive   bool            `json:"case_sensitive"`
	IsActive        bool            `json:"is_active"`
}

// AccuracyRate derives the rule's historical correctness ratio from its
// match and correction counters. A rule with no history is trusted fully.
func (r *CategorizationRule) AccuracyRate() float64 {
	if r.MatchCount == 0 {
		return 1.0
	}
	rate := float64(r.MatchCount-r.CorrectionCount) / float64(r.MatchCount)
	if rate < 0 {
		return 0
	}
	return rate
}

// HasConditions reports whether advanced conditions replace pattern
// matching for this rule.
func (r *CategorizationRule) HasConditions() bool {
	return len(r.Conditions) > 0
}

// Validate ensures the rule has usable data before it is persisted.
func (r *CategorizationRule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("rule name is required")
	}

	if r.BaseConfidence < 0 || r.BaseConfidence > 1 {
		return fmt.Errorf("base confidence must be between 0.0 and 1.0, got %.2f", r.BaseConfidence)
	}

	if !r.HasConditions() {
		if r.Pattern == "" {
			return fmt.Errorf("rule must have a pattern or at least one condition")
		}
		switch r.MatchType {
		case MatchEquals, MatchStartsWith, MatchEndsWith, MatchContains, MatchRegex:
		default:
			return fmt.Errorf("unknown match type %q", r.MatchType)
		}
	}

	for i, cond := range r.Conditions {
		switch cond.Field {
		case FieldDescription, FieldMerchant, FieldAmount, FieldAccount:
		default:
			return fmt.Errorf("condition %d: unknown field %q", i, cond.Field)
		}
		switch cond.Operator {
		case OpEquals, OpContains, OpStartsWith, OpEndsWith,
			OpGreaterThan, OpGreaterEqual, OpLessThan, OpLessEqual:
		default:
			return fmt.Errorf("condition %d: unknown operator %q", i, cond.Operator)
		}
	}

	if r.CategoryID <= 0 {
		return fmt.Errorf("rule must reference a target category")
	}

	return nil
}
