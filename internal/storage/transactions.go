package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ledgerline/ledgerline/internal/common"
	"github.com/ledgerline/ledgerline/internal/model"
)

// SaveTransactions saves imported transactions, silently skipping rows
// whose hash already exists.
func (s *SQLiteStorage) SaveTransactions(ctx context.Context, transactions []model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransactions(transactions); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR IGNORE INTO transactions (
				id, hash, date, description, merchant_name, amount, account_id, user_id
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, txn := range transactions {
			if txn.Hash == "" {
				txn.Hash = txn.GenerateHash()
			}

			if _, err := stmt.ExecContext(ctx,
				txn.ID,
				txn.Hash,
				txn.Date,
				txn.Description,
				txn.MerchantName,
				txn.Amount,
				txn.AccountID,
				txn.UserID,
			); err != nil {
				return fmt.Errorf("failed to insert transaction %s: %w", txn.ID, err)
			}
		}

		return nil
	})
}

// GetUncategorized returns a user's transactions with no applied category,
// oldest first.
func (s *SQLiteStorage) GetUncategorized(ctx context.Context, userID string) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, hash, date, description, merchant_name, amount, account_id, user_id, category_id
		FROM transactions
		WHERE user_id = ? AND category_id IS NULL
		ORDER BY date ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query uncategorized transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanTransactions(rows)
}

// GetTransactionByID retrieves a single transaction by ID.
func (s *SQLiteStorage) GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	txn, err := scanTransaction(s.db.QueryRowContext(ctx, `
		SELECT id, hash, date, description, merchant_name, amount, account_id, user_id, category_id
		FROM transactions
		WHERE id = ?
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	return txn, nil
}

// ApplyCategories commits a batch of categorizations: each transaction's
// category is set and an audit row is recorded, all in one transaction.
func (s *SQLiteStorage) ApplyCategories(ctx context.Context, applied []model.AutoApplied) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if len(applied) == 0 {
		return nil
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		update, err := tx.PrepareContext(ctx, `
			UPDATE transactions SET category_id = ? WHERE id = ?
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare update: %w", err)
		}
		defer func() { _ = update.Close() }()

		audit, err := tx.PrepareContext(ctx, `
			INSERT INTO categorization_history (
				transaction_id, category_id, rule_id, confidence, reasoning, applied_at
			) VALUES (?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare audit insert: %w", err)
		}
		defer func() { _ = audit.Close() }()

		for _, a := range applied {
			result, err := update.ExecContext(ctx, a.CategoryID, a.TransactionID)
			if err != nil {
				return fmt.Errorf("failed to apply category to transaction %s: %w", a.TransactionID, err)
			}
			affected, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to check update result: %w", err)
			}
			if affected == 0 {
				return fmt.Errorf("transaction %s: %w", a.TransactionID, common.ErrNotFound)
			}

			var ruleID any
			if a.RuleID != 0 {
				ruleID = a.RuleID
			}
			appliedAt := a.AppliedAt
			if appliedAt.IsZero() {
				appliedAt = time.Now()
			}

			if _, err := audit.ExecContext(ctx,
				a.TransactionID, a.CategoryID, ruleID, a.Confidence, a.Reasoning, appliedAt,
			); err != nil {
				return fmt.Errorf("failed to record categorization of %s: %w", a.TransactionID, err)
			}
		}

		return nil
	})
}

// GetTransactionCount returns the total number of stored transactions.
func (s *SQLiteStorage) GetTransactionCount(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to get transaction count: %w", err)
	}
	return count, nil
}

// GetCategorySummary returns transaction totals by category name for a
// date range.
func (s *SQLiteStorage) GetCategorySummary(ctx context.Context, start, end time.Time) (map[string]float64, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.name, SUM(t.amount) AS total
		FROM transactions t
		JOIN categories c ON t.category_id = c.id
		WHERE t.date >= ? AND t.date <= ?
		GROUP BY c.name
		ORDER BY total DESC
	`, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query category summary: %w", err)
	}
	defer func() { _ = rows.Close() }()

	summary := make(map[string]float64)
	for rows.Next() {
		var category string
		var total float64
		if err := rows.Scan(&category, &total); err != nil {
			return nil, fmt.Errorf("failed to scan category summary: %w", err)
		}
		summary[category] = total
	}

	return summary, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	var txn model.Transaction
	var categoryID sql.NullInt64

	if err := row.Scan(
		&txn.ID,
		&txn.Hash,
		&txn.Date,
		&txn.Description,
		&txn.MerchantName,
		&txn.Amount,
		&txn.AccountID,
		&txn.UserID,
		&categoryID,
	); err != nil {
		return nil, err
	}

	if categoryID.Valid {
		id := int(categoryID.Int64)
		txn.CategoryID = &id
	}

	return &txn, nil
}

func scanTransactions(rows *sql.Rows) ([]model.Transaction, error) {
	var transactions []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, *txn)
	}
	return transactions, rows.Err()
}
