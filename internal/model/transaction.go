// Package model defines the core domain models used throughout the application.
package model

import (
	"crypto/sha256"
	"fmt"
	"time"
)

// Transaction represents a single financial transaction from any source.
// It is read-only input to the categorization pipeline: a run never
// mutates a transaction, it only proposes or applies a category for it.
type Transaction struct {
	Date         time.Time
	ID           string
	Description  string // Raw transaction description
	MerchantName string // Cleaned merchant name
	AccountID    string
	UserID       string
	Hash         string
	Amount       float64 // Signed: negative for spending, positive for income
	CategoryID   *int    // Nil until a category has been applied
}

// GenerateHash creates a unique hash for duplicate detection.
func (t *Transaction) GenerateHash() string {
	data := fmt.Sprintf("%s:%.2f:%s:%s",
		t.Date.Format("2006-01-02"),
		t.Amount,
		t.Description,
		t.AccountID)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// DisplayName returns the cleaned merchant name when available, falling
// back to the raw description.
func (t *Transaction) DisplayName() string {
	if t.MerchantName != "" {
		return t.MerchantName
	}
	return t.Description
}
