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

const candidateColumns = `id, transaction_id, category_id, method, confidence, reasoning,
	proposed_by, status, metadata, created_at, decided_at`

// CreateCandidates persists a batch of new candidates in one transaction.
func (s *SQLiteStorage) CreateCandidates(ctx context.Context, candidates []model.Candidate) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateCandidates(candidates); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO categorization_candidates (
				id, transaction_id, category_id, method, confidence, reasoning,
				proposed_by, status, metadata, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare candidate insert: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, c := range candidates {
			metadataJSON, err := marshalMetadata(c.Metadata)
			if err != nil {
				return err
			}

			createdAt := c.CreatedAt
			if createdAt.IsZero() {
				createdAt = time.Now()
			}

			if _, err := stmt.ExecContext(ctx,
				c.ID,
				c.TransactionID,
				c.CategoryID,
				string(c.Method),
				c.Confidence,
				c.Reasoning,
				c.ProposedBy,
				string(c.Status),
				metadataJSON,
				createdAt,
			); err != nil {
				return fmt.Errorf("failed to insert candidate %s: %w", c.ID, err)
			}
		}

		return nil
	})
}

// GetCandidate fetches a single candidate by ID.
func (s *SQLiteStorage) GetCandidate(ctx context.Context, id string) (*model.Candidate, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	candidate, err := scanCandidate(s.db.QueryRowContext(ctx, `
		SELECT `+candidateColumns+`
		FROM categorization_candidates
		WHERE id = ?
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("candidate %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get candidate: %w", err)
	}

	return candidate, nil
}

// GetPendingCandidates returns a user's pending candidates ordered by
// creation time.
func (s *SQLiteStorage) GetPendingCandidates(ctx context.Context, userID string) ([]model.Candidate, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+candidateColumnsPrefixed("c")+`
		FROM categorization_candidates c
		JOIN transactions t ON c.transaction_id = t.id
		WHERE t.user_id = ? AND c.status = ?
		ORDER BY c.created_at ASC, c.id ASC
	`, userID, string(model.StatusPending))
	if err != nil {
		return nil, fmt.Errorf("failed to query pending candidates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanCandidates(rows)
}

// GetPendingByTransaction returns pending candidates for one transaction.
func (s *SQLiteStorage) GetPendingByTransaction(ctx context.Context, transactionID string) ([]model.Candidate, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(transactionID, "transactionID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+candidateColumns+`
		FROM categorization_candidates
		WHERE transaction_id = ? AND status = ?
		ORDER BY created_at ASC, id ASC
	`, transactionID, string(model.StatusPending))
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates for transaction: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanCandidates(rows)
}

// UpdateCandidateStatus persists a lifecycle transition. The transition
// itself is validated by the model before reaching this layer; the update
// still guards against racing decisions by requiring the row to be
// pending.
func (s *SQLiteStorage) UpdateCandidateStatus(ctx context.Context, candidate *model.Candidate) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if candidate == nil {
		return fmt.Errorf("%w: candidate", ErrNilParameter)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE categorization_candidates
		SET status = ?, decided_at = ?
		WHERE id = ? AND status = ?
	`, string(candidate.Status), candidate.DecidedAt, candidate.ID, string(model.StatusPending))
	if err != nil {
		return fmt.Errorf("failed to update candidate %s: %w", candidate.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("candidate %s is not pending: %w", candidate.ID, common.ErrNotFound)
	}

	return nil
}

func candidateColumnsPrefixed(alias string) string {
	cols := strings.Split(candidateColumns, ",")
	for i := range cols {
		cols[i] = alias + "." + strings.TrimSpace(cols[i])
	}
	return strings.Join(cols, ", ")
}

func marshalMetadata(metadata map[string]string) (sql.NullString, error) {
	if len(metadata) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to marshal candidate metadata: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func scanCandidate(row rowScanner) (*model.Candidate, error) {
	var c model.Candidate
	var method, status string
	var metadataJSON sql.NullString
	var decidedAt sql.NullTime

	if err := row.Scan(
		&c.ID,
		&c.TransactionID,
		&c.CategoryID,
		&method,
		&c.Confidence,
		&c.Reasoning,
		&c.ProposedBy,
		&status,
		&metadataJSON,
		&c.CreatedAt,
		&decidedAt,
	); err != nil {
		return nil, err
	}

	c.Method = model.CandidateMethod(method)
	c.Status = model.CandidateStatus(status)

	if metadataJSON.Valid && strings.TrimSpace(metadataJSON.String) != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &c.Metadata); err != nil {
			return nil, fmt.Errorf("failed to parse metadata for candidate %s: %w", c.ID, err)
		}
	}
	if decidedAt.Valid {
		t := decidedAt.Time
		c.DecidedAt = &t
	}

	return &c, nil
}

func scanCandidates(rows *sql.Rows) ([]model.Candidate, error) {
	var candidates []model.Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		candidates = append(candidates, *c)
	}
	return candidates, rows.Err()
}
