package engine

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/ledgerline/ledgerline/internal/common"
	"github.com/ledgerline/ledgerline/internal/model"
	"github.com/ledgerline/ledgerline/internal/service"
)

func TestLLMStage_SuggestionsBecomePendingCandidates(t *testing.T) {
	suggester := &stubSuggester{batch: service.SuggestionBatch{
		Suggestions: []service.CategorySuggestion{
			{TransactionID: "txn-1", CategoryID: 10, CategoryName: "Groceries", Confidence: 0.99, Reasoning: "grocery chain"},
			{TransactionID: "txn-2", CategoryID: 20, CategoryName: "Fuel", Confidence: 0.4, Reasoning: "gas station"},
		},
	}}
	candStore := &mockCandidateStore{}
	usage := &stubUsage{allowed: true}

	stage := NewLLMStage(suggester, candStore, usage, 0.03, slog.Default())

	batch := []model.Transaction{
		testTxn("txn-1", "TRADER JOES"),
		testTxn("txn-2", "SHELL 4411"),
		testTxn("txn-3", "MYSTERY VENDOR"),
	}

	result, err := stage.Process(context.Background(), batch)
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}

	// Even a 0.99-confidence suggestion is a candidate, never auto-applied.
	if len(result.AutoApplied) != 0 {
		t.Errorf("LLM stage auto-applied %d, want 0", len(result.AutoApplied))
	}
	if len(result.Candidates) != 2 {
		t.Fatalf("got %d candidates, want 2", len(result.Candidates))
	}
	for _, candidate := range result.Candidates {
		if candidate.Method != model.MethodLLM {
			t.Errorf("candidate method = %s, want LLM", candidate.Method)
		}
		if candidate.Status != model.StatusPending {
			t.Errorf("candidate status = %s, want PENDING", candidate.Status)
		}
	}

	if len(result.Remaining) != 1 || result.Remaining[0].ID != "txn-3" {
		t.Errorf("remaining = %v, want [txn-3]", transactionIDs(result.Remaining))
	}

	wantSavings := 0.03 * 2
	if result.Metrics.EstimatedCostSavings != wantSavings {
		t.Errorf("cost savings = %v, want %v", result.Metrics.EstimatedCostSavings, wantSavings)
	}
	if result.Metrics.ProcessedByStage[StageNameLLM] != 2 {
		t.Errorf("processed = %d, want 2", result.Metrics.ProcessedByStage[StageNameLLM])
	}

	if len(candStore.created) != 2 {
		t.Errorf("candidates flushed = %d, want 2", len(candStore.created))
	}
	if usage.acquired != 1 {
		t.Errorf("quota acquired = %d, want 1", usage.acquired)
	}
	if len(usage.recorded) != 1 {
		t.Errorf("recorded usages = %d, want 1", len(usage.recorded))
	}
}

func TestLLMStage_QuotaExhaustedSkipsWithoutCall(t *testing.T) {
	suggester := &stubSuggester{}
	usage := &stubUsage{allowed: false}
	stage := NewLLMStage(suggester, &mockCandidateStore{}, usage, 0.03, slog.Default())

	if stage.Allowed("user-1") {
		t.Error("Allowed() should report false when quota is exhausted")
	}

	batch := []model.Transaction{testTxn("txn-1", "MYSTERY VENDOR")}
	result, err := stage.Process(context.Background(), batch)
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}

	if suggester.calls != 0 {
		t.Errorf("external calls = %d, want 0", suggester.calls)
	}
	if len(result.Remaining) != 1 {
		t.Errorf("remaining = %d, want 1 (unchanged)", len(result.Remaining))
	}
	if result.Metrics.ProcessedByStage[StageNameLLM] != 0 {
		t.Errorf("processed = %d, want 0", result.Metrics.ProcessedByStage[StageNameLLM])
	}
	if len(result.Errors) != 0 {
		t.Errorf("quota exhaustion is a skip, not an error; got %v", result.Errors)
	}
}

func TestLLMStage_MixedUsersViolatePrecondition(t *testing.T) {
	suggester := &stubSuggester{}
	stage := NewLLMStage(suggester, &mockCandidateStore{}, &stubUsage{allowed: true}, 0.03, slog.Default())

	txn1 := testTxn("txn-1", "VENDOR A")
	txn2 := testTxn("txn-2", "VENDOR B")
	txn2.UserID = "user-2"

	result, err := stage.Process(context.Background(), []model.Transaction{txn1, txn2})
	if err == nil {
		t.Fatal("Process() should fail the shared-user precondition")
	}
	if !errors.Is(err, common.ErrNoOwningUser) {
		t.Errorf("error = %v, want ErrNoOwningUser", err)
	}
	if suggester.calls != 0 {
		t.Errorf("external calls = %d, want 0", suggester.calls)
	}
	if len(result.Candidates) != 0 {
		t.Errorf("candidates = %d, want 0", len(result.Candidates))
	}
}

func TestLLMStage_ServiceFailureLeavesTransactionsUnresolved(t *testing.T) {
	suggester := &stubSuggester{err: errors.New("service unreachable")}
	stage := NewLLMStage(suggester, &mockCandidateStore{}, &stubUsage{allowed: true}, 0.03, slog.Default())

	batch := []model.Transaction{testTxn("txn-1", "MYSTERY VENDOR")}
	result, err := stage.Process(context.Background(), batch)
	if err == nil {
		t.Fatal("Process() should surface the service failure")
	}
	if len(result.Remaining) != 1 || result.Remaining[0].ID != "txn-1" {
		t.Errorf("remaining = %v, want the full input batch", transactionIDs(result.Remaining))
	}
}

func TestLLMStage_BatchErrorsAreRecorded(t *testing.T) {
	suggester := &stubSuggester{batch: service.SuggestionBatch{
		Suggestions: []service.CategorySuggestion{
			{TransactionID: "txn-1", CategoryID: 10, Confidence: 0.7},
		},
		Errors: []string{"suggestion 1: missing category"},
	}}
	stage := NewLLMStage(suggester, &mockCandidateStore{}, &stubUsage{allowed: true}, 0.03, slog.Default())

	result, err := stage.Process(context.Background(), []model.Transaction{
		testTxn("txn-1", "VENDOR A"),
		testTxn("txn-2", "VENDOR B"),
	})
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if len(result.Errors) != 1 {
		t.Errorf("recorded errors = %d, want 1 carried from the batch", len(result.Errors))
	}
	if len(result.Candidates) != 1 {
		t.Errorf("candidates = %d, want 1", len(result.Candidates))
	}
	if len(result.Remaining) != 1 || result.Remaining[0].ID != "txn-2" {
		t.Errorf("remaining = %v, want [txn-2]", transactionIDs(result.Remaining))
	}
}
