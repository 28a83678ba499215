// Package rules evaluates categorization rules against transactions and
// scores the confidence of their matches.
package rules

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/ledgerline/ledgerline/internal/model"
)

// Evaluator decides whether a single rule matches a single transaction.
type Evaluator interface {
	Evaluate(rule model.CategorizationRule, txn model.Transaction) (bool, error)
}

// Matcher implements Evaluator with a compiled-regex cache so regex rules
// are compiled once per distinct pattern rather than once per transaction.
// The cache is keyed by the effective pattern text, so a rule whose
// pattern is edited compiles fresh instead of matching a stale entry.
type Matcher struct {
	compiledRegex map[string]*regexp.Regexp
	mu            sync.Mutex
}

// NewMatcher creates a new rule matcher.
func NewMatcher() *Matcher {
	return &Matcher{
		compiledRegex: make(map[string]*regexp.Regexp),
	}
}

// Evaluate reports whether the rule matches the transaction. When the
// rule carries advanced conditions they fully replace pattern matching;
// all conditions must hold. Errors are scoped to this (rule, transaction)
// pair and never abort evaluation of other rules.
func (m *Matcher) Evaluate(rule model.CategorizationRule, txn model.Transaction) (bool, error) {
	if rule.HasConditions() {
		return evaluateConditions(rule.Conditions, txn, rule.CaseSensitive)
	}
	return m.matchesPattern(rule, txn)
}

// matchesPattern compares the transaction description against the rule's
// pattern under its match type.
func (m *Matcher) matchesPattern(rule model.CategorizationRule, txn model.Transaction) (bool, error) {
	desc := txn.Description
	pattern := rule.Pattern

	if !rule.CaseSensitive && rule.MatchType != model.MatchRegex {
		desc = strings.ToLower(desc)
		pattern = strings.ToLower(pattern)
	}

	switch rule.MatchType {
	case model.MatchEquals:
		return desc == pattern, nil
	case model.MatchStartsWith:
		return strings.HasPrefix(desc, pattern), nil
	case model.MatchEndsWith:
		return strings.HasSuffix(desc, pattern), nil
	case model.MatchContains:
		return strings.Contains(desc, pattern), nil
	case model.MatchRegex:
		re, err := m.compile(rule)
		if err != nil {
			return false, fmt.Errorf("rule %d: invalid regex %q: %w", rule.ID, rule.Pattern, err)
		}
		return re.MatchString(txn.Description), nil
	default:
		return false, fmt.Errorf("rule %d: unknown match type %q", rule.ID, rule.MatchType)
	}
}

// compile returns the cached compiled regex for a rule's effective
// pattern, compiling it on first use. Case-insensitive rules get the
// (?i) flag.
func (m *Matcher) compile(rule model.CategorizationRule) (*regexp.Regexp, error) {
	pattern := rule.Pattern
	if !rule.CaseSensitive && !strings.HasPrefix(pattern, "(?i)") {
		pattern = "(?i)" + pattern
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if re, ok := m.compiledRegex[pattern]; ok {
		return re, nil
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}

	m.compiledRegex[pattern] = re
	return re, nil
}

// SortByPriority orders rules ascending by priority (lower value =
// evaluated first = higher precedence), leaving the input untouched.
// The sort is stable, so rules sharing a priority keep their store order.
func SortByPriority(ruleSet []model.CategorizationRule) []model.CategorizationRule {
	sorted := make([]model.CategorizationRule, len(ruleSet))
	copy(sorted, ruleSet)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})

	return sorted
}
