package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ledgerline/ledgerline/internal/common"
	"github.com/ledgerline/ledgerline/internal/model"
)

const ruleColumns = `id, user_id, name, pattern, match_type, conditions, case_sensitive,
	category_id, priority, base_confidence, match_count, correction_count, is_active,
	created_at, updated_at`

// GetActiveRules returns a user's active rules ordered by ascending
// priority.
func (s *SQLiteStorage) GetActiveRules(ctx context.Context, userID string) ([]model.CategorizationRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+ruleColumns+`
		FROM categorization_rules
		WHERE user_id = ? AND is_active = 1
		ORDER BY priority ASC, id ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rules []model.CategorizationRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, *rule)
	}

	return rules, rows.Err()
}

// GetRule fetches a single rule by ID, active or not.
func (s *SQLiteStorage) GetRule(ctx context.Context, id int) (*model.CategorizationRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rule, err := scanRule(s.db.QueryRowContext(ctx, `
		SELECT `+ruleColumns+`
		FROM categorization_rules
		WHERE id = ?
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("rule %d: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}

	return rule, nil
}

// CreateRule persists a new rule and fills in its assigned ID.
func (s *SQLiteStorage) CreateRule(ctx context.Context, rule *model.CategorizationRule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRule(rule); err != nil {
		return err
	}

	conditionsJSON, err := marshalConditions(rule.Conditions)
	if err != nil {
		return err
	}

	now := time.Now()
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO categorization_rules (
			user_id, name, pattern, match_type, conditions, case_sensitive,
			category_id, priority, base_confidence, match_count, correction_count,
			is_active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0, 1, ?, ?)
	`,
		rule.UserID,
		rule.Name,
		rule.Pattern,
		string(rule.MatchType),
		conditionsJSON,
		rule.CaseSensitive,
		rule.CategoryID,
		rule.Priority,
		rule.BaseConfidence,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create rule: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get rule ID: %w", err)
	}

	rule.ID = int(id)
	rule.IsActive = true
	rule.CreatedAt = now
	rule.UpdatedAt = now
	return nil
}

// IncrementMatchCounts bumps match counters for the given rules in one
// transaction. Duplicate IDs bump the same counter multiple times.
func (s *SQLiteStorage) IncrementMatchCounts(ctx context.Context, ruleIDs []int) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if len(ruleIDs) == 0 {
		return nil
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			UPDATE categorization_rules
			SET match_count = match_count + 1, updated_at = ?
			WHERE id = ?
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare match count update: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		now := time.Now()
		for _, id := range ruleIDs {
			if _, err := stmt.ExecContext(ctx, now, id); err != nil {
				return fmt.Errorf("failed to increment match count for rule %d: %w", id, err)
			}
		}
		return nil
	})
}

// IncrementCorrectionCount bumps a rule's correction counter, lowering
// its accuracy for future runs.
func (s *SQLiteStorage) IncrementCorrectionCount(ctx context.Context, ruleID int) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE categorization_rules
		SET correction_count = correction_count + 1, updated_at = ?
		WHERE id = ?
	`, time.Now(), ruleID)
	if err != nil {
		return fmt.Errorf("failed to increment correction count for rule %d: %w", ruleID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("rule %d: %w", ruleID, common.ErrNotFound)
	}

	return nil
}

// SetRuleActive enables or disables a rule without deleting its history.
func (s *SQLiteStorage) SetRuleActive(ctx context.Context, ruleID int, active bool) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE categorization_rules
		SET is_active = ?, updated_at = ?
		WHERE id = ?
	`, active, time.Now(), ruleID)
	if err != nil {
		return fmt.Errorf("failed to update rule %d: %w", ruleID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("rule %d: %w", ruleID, common.ErrNotFound)
	}

	return nil
}

func marshalConditions(conditions []model.RuleCondition) (sql.NullString, error) {
	if len(conditions) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(conditions)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to marshal rule conditions: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func scanRule(row rowScanner) (*model.CategorizationRule, error) {
	var rule model.CategorizationRule
	var matchType string
	var conditionsJSON sql.NullString

	if err := row.Scan(
		&rule.ID,
		&rule.UserID,
		&rule.Name,
		&rule.Pattern,
		&matchType,
		&conditionsJSON,
		&rule.CaseSensitive,
		&rule.CategoryID,
		&rule.Priority,
		&rule.BaseConfidence,
		&rule.MatchCount,
		&rule.CorrectionCount,
		&rule.IsActive,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	); err != nil {
		return nil, err
	}

	rule.MatchType = model.MatchType(matchType)

	if conditionsJSON.Valid && strings.TrimSpace(conditionsJSON.String) != "" {
		if err := json.Unmarshal([]byte(conditionsJSON.String), &rule.Conditions); err != nil {
			return nil, fmt.Errorf("failed to parse conditions for rule %d: %w", rule.ID, err)
		}
	}

	return &rule, nil
}
