package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/ledgerline/ledgerline/internal/common"
	"github.com/ledgerline/ledgerline/internal/model"
)

// stubClient returns canned completions and counts calls.
type stubClient struct {
	response string
	err      error
	calls    int
}

func (c *stubClient) Complete(_ context.Context, _ string) (string, error) {
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	return c.response, nil
}

// stubCategoryStore serves a fixed category list.
type stubCategoryStore struct {
	categories []model.Category
}

func (s *stubCategoryStore) GetCategoryByID(_ context.Context, id int) (*model.Category, error) {
	for _, cat := range s.categories {
		if cat.ID == id && cat.IsActive {
			return &cat, nil
		}
	}
	return nil, nil
}

func (s *stubCategoryStore) GetCategories(_ context.Context) ([]model.Category, error) {
	return s.categories, nil
}

func (s *stubCategoryStore) CreateCategory(_ context.Context, name, description string, categoryType model.CategoryType) (*model.Category, error) {
	return nil, errors.New("not supported in stub")
}

func testCategories() []model.Category {
	return []model.Category{
		{ID: 1, Name: "Groceries", Type: model.CategoryTypeExpense, IsActive: true},
		{ID: 2, Name: "Dining", Type: model.CategoryTypeExpense, IsActive: true},
	}
}

func testTransaction(id string) model.Transaction {
	txn := model.Transaction{
		ID:          id,
		Description: "TRADER JOES #512",
		Amount:      -42.17,
		Date:        time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC),
		AccountID:   "acct-1",
		UserID:      "user-1",
	}
	txn.Hash = txn.GenerateHash()
	return txn
}

func TestSuggester_Suggest(t *testing.T) {
	client := &stubClient{
		response: `[{"transaction_id": "txn-1", "category": "groceries", "confidence": 0.82, "reasoning": "grocery chain"}]`,
	}
	suggester := NewSuggesterWithClient(client, &stubCategoryStore{categories: testCategories()}, slog.Default())
	defer suggester.Close()

	batch, err := suggester.Suggest(context.Background(), []model.Transaction{testTransaction("txn-1")}, "user-1")
	if err != nil {
		t.Fatalf("Suggest() error: %v", err)
	}

	if len(batch.Suggestions) != 1 {
		t.Fatalf("got %d suggestions, want 1", len(batch.Suggestions))
	}

	got := batch.Suggestions[0]
	if got.CategoryID != 1 {
		t.Errorf("CategoryID = %d, want 1 (resolved case-insensitively)", got.CategoryID)
	}
	if got.CategoryName != "Groceries" {
		t.Errorf("CategoryName = %q, want canonical name", got.CategoryName)
	}
	if got.Confidence != 0.82 {
		t.Errorf("Confidence = %v, want 0.82", got.Confidence)
	}
}

func TestSuggester_CacheAvoidsSecondCall(t *testing.T) {
	client := &stubClient{
		response: `[{"transaction_id": "txn-1", "category": "Groceries", "confidence": 0.82}]`,
	}
	suggester := NewSuggesterWithClient(client, &stubCategoryStore{categories: testCategories()}, slog.Default())
	defer suggester.Close()

	txns := []model.Transaction{testTransaction("txn-1")}

	if _, err := suggester.Suggest(context.Background(), txns, "user-1"); err != nil {
		t.Fatalf("first Suggest() error: %v", err)
	}
	batch, err := suggester.Suggest(context.Background(), txns, "user-1")
	if err != nil {
		t.Fatalf("second Suggest() error: %v", err)
	}

	if client.calls != 1 {
		t.Errorf("client calls = %d, want 1 (second batch served from cache)", client.calls)
	}
	if len(batch.Suggestions) != 1 {
		t.Errorf("cached batch has %d suggestions, want 1", len(batch.Suggestions))
	}
}

func TestSuggester_UnknownCategoryReported(t *testing.T) {
	client := &stubClient{
		response: `[{"transaction_id": "txn-1", "category": "Cryptozoology", "confidence": 0.9}]`,
	}
	suggester := NewSuggesterWithClient(client, &stubCategoryStore{categories: testCategories()}, slog.Default())
	defer suggester.Close()

	batch, err := suggester.Suggest(context.Background(), []model.Transaction{testTransaction("txn-1")}, "user-1")
	if err != nil {
		t.Fatalf("Suggest() error: %v", err)
	}

	if len(batch.Suggestions) != 0 {
		t.Errorf("got %d suggestions, want 0", len(batch.Suggestions))
	}
	if len(batch.Errors) != 1 {
		t.Fatalf("got %d batch errors, want 1", len(batch.Errors))
	}
}

func TestSuggester_ProviderFailure(t *testing.T) {
	client := &stubClient{err: &common.RetryableError{Err: fmt.Errorf("service unavailable"), Retryable: false}}
	suggester := NewSuggesterWithClient(client, &stubCategoryStore{categories: testCategories()}, slog.Default())
	defer suggester.Close()

	_, err := suggester.Suggest(context.Background(), []model.Transaction{testTransaction("txn-1")}, "user-1")
	if err == nil {
		t.Fatal("Suggest() should surface provider failure")
	}
	if !errors.Is(err, common.ErrSuggestionFailed) {
		t.Errorf("error = %v, want wrapped ErrSuggestionFailed", err)
	}
}

func TestSuggester_EmptyBatch(t *testing.T) {
	client := &stubClient{}
	suggester := NewSuggesterWithClient(client, &stubCategoryStore{categories: testCategories()}, slog.Default())
	defer suggester.Close()

	batch, err := suggester.Suggest(context.Background(), nil, "user-1")
	if err != nil {
		t.Fatalf("Suggest() error: %v", err)
	}
	if client.calls != 0 {
		t.Errorf("client calls = %d, want 0 for empty batch", client.calls)
	}
	if len(batch.Suggestions) != 0 || len(batch.Errors) != 0 {
		t.Errorf("empty batch should produce empty result, got %+v", batch)
	}
}
