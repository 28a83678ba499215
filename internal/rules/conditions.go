package rules

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ledgerline/ledgerline/internal/model"
)

// evaluateConditions conjunctively evaluates all conditions against the
// transaction. The first false condition short-circuits; the first
// malformed condition is an evaluation error for the whole rule.
func evaluateConditions(conditions []model.RuleCondition, txn model.Transaction, caseSensitive bool) (bool, error) {
	for _, cond := range conditions {
		ok, err := evaluateCondition(cond, txn, caseSensitive)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func evaluateCondition(cond model.RuleCondition, txn model.Transaction, caseSensitive bool) (bool, error) {
	switch cond.Field {
	case model.FieldDescription:
		return compareString(txn.Description, cond, caseSensitive)
	case model.FieldMerchant:
		return compareString(txn.MerchantName, cond, caseSensitive)
	case model.FieldAccount:
		return compareString(txn.AccountID, cond, caseSensitive)
	case model.FieldAmount:
		return compareAmount(txn.Amount, cond)
	default:
		return false, fmt.Errorf("unknown condition field %q", cond.Field)
	}
}

func compareString(fieldValue string, cond model.RuleCondition, caseSensitive bool) (bool, error) {
	value := cond.Value
	if !caseSensitive {
		fieldValue = strings.ToLower(fieldValue)
		value = strings.ToLower(value)
	}

	switch cond.Operator {
	case model.OpEquals:
		return fieldValue == value, nil
	case model.OpContains:
		return strings.Contains(fieldValue, value), nil
	case model.OpStartsWith:
		return strings.HasPrefix(fieldValue, value), nil
	case model.OpEndsWith:
		return strings.HasSuffix(fieldValue, value), nil
	default:
		return false, fmt.Errorf("operator %q is not valid for field %q", cond.Operator, cond.Field)
	}
}

func compareAmount(amount float64, cond model.RuleCondition) (bool, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(cond.Value), 64)
	if err != nil {
		return false, fmt.Errorf("condition value %q is not a number: %w", cond.Value, err)
	}

	switch cond.Operator {
	case model.OpEquals:
		return amount == value, nil
	case model.OpGreaterThan:
		return amount > value, nil
	case model.OpGreaterEqual:
		return amount >= value, nil
	case model.OpLessThan:
		return amount < value, nil
	case model.OpLessEqual:
		return amount <= value, nil
	default:
		return false, fmt.Errorf("operator %q is not valid for field %q", cond.Operator, cond.Field)
	}
}
