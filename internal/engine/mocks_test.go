package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/ledgerline/ledgerline/internal/model"
	"github.com/ledgerline/ledgerline/internal/rules"
	"github.com/ledgerline/ledgerline/internal/service"
)

// mockRuleStore serves a fixed rule set and records counter increments.
type mockRuleStore struct {
	rules            []model.CategorizationRule
	incrementedIDs   []int
	correctedRuleIDs []int
	err              error
	matchCountErr    error
}

func (m *mockRuleStore) GetActiveRules(_ context.Context, _ string) ([]model.CategorizationRule, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.rules, nil
}

func (m *mockRuleStore) GetRule(_ context.Context, id int) (*model.CategorizationRule, error) {
	for i := range m.rules {
		if m.rules[i].ID == id {
			return &m.rules[i], nil
		}
	}
	return nil, fmt.Errorf("rule %d not found", id)
}

func (m *mockRuleStore) CreateRule(_ context.Context, _ *model.CategorizationRule) error {
	return nil
}

func (m *mockRuleStore) IncrementMatchCounts(_ context.Context, ruleIDs []int) error {
	if m.matchCountErr != nil {
		return m.matchCountErr
	}
	m.incrementedIDs = append(m.incrementedIDs, ruleIDs...)
	return nil
}

func (m *mockRuleStore) IncrementCorrectionCount(_ context.Context, ruleID int) error {
	m.correctedRuleIDs = append(m.correctedRuleIDs, ruleID)
	return nil
}

// mockCategoryStore resolves categories from a fixed map. Missing or
// inactive categories resolve to nil, the valid negative result.
type mockCategoryStore struct {
	categories map[int]model.Category
}

func (m *mockCategoryStore) GetCategoryByID(_ context.Context, id int) (*model.Category, error) {
	cat, ok := m.categories[id]
	if !ok || !cat.IsActive {
		return nil, nil
	}
	return &cat, nil
}

func (m *mockCategoryStore) GetCategories(_ context.Context) ([]model.Category, error) {
	var all []model.Category
	for _, cat := range m.categories {
		all = append(all, cat)
	}
	return all, nil
}

func (m *mockCategoryStore) CreateCategory(_ context.Context, _, _ string, _ model.CategoryType) (*model.Category, error) {
	return nil, fmt.Errorf("not supported in mock")
}

// mockTransactionStore records applied categorizations.
type mockTransactionStore struct {
	applied []model.AutoApplied
	err     error
}

func (m *mockTransactionStore) GetUncategorized(_ context.Context, _ string) ([]model.Transaction, error) {
	return nil, nil
}

func (m *mockTransactionStore) GetTransactionByID(_ context.Context, _ string) (*model.Transaction, error) {
	return nil, fmt.Errorf("not supported in mock")
}

func (m *mockTransactionStore) ApplyCategories(_ context.Context, applied []model.AutoApplied) error {
	if m.err != nil {
		return m.err
	}
	m.applied = append(m.applied, applied...)
	return nil
}

func (m *mockTransactionStore) SaveTransactions(_ context.Context, _ []model.Transaction) error {
	return nil
}

// mockCandidateStore records created candidates.
type mockCandidateStore struct {
	created []model.Candidate
	err     error
}

func (m *mockCandidateStore) CreateCandidates(_ context.Context, candidates []model.Candidate) error {
	if m.err != nil {
		return m.err
	}
	m.created = append(m.created, candidates...)
	return nil
}

func (m *mockCandidateStore) GetCandidate(_ context.Context, _ string) (*model.Candidate, error) {
	return nil, fmt.Errorf("not supported in mock")
}

func (m *mockCandidateStore) GetPendingCandidates(_ context.Context, _ string) ([]model.Candidate, error) {
	return nil, nil
}

func (m *mockCandidateStore) GetPendingByTransaction(_ context.Context, _ string) ([]model.Candidate, error) {
	return nil, nil
}

func (m *mockCandidateStore) UpdateCandidateStatus(_ context.Context, _ *model.Candidate) error {
	return nil
}

// spyEvaluator wraps the real matcher and counts evaluations per rule.
type spyEvaluator struct {
	inner       rules.Evaluator
	evaluations map[int]int
}

func newSpyEvaluator() *spyEvaluator {
	return &spyEvaluator{
		inner:       rules.NewMatcher(),
		evaluations: make(map[int]int),
	}
}

func (s *spyEvaluator) Evaluate(rule model.CategorizationRule, txn model.Transaction) (bool, error) {
	s.evaluations[rule.ID]++
	return s.inner.Evaluate(rule, txn)
}

// stubSuggester returns a canned suggestion batch and counts calls.
type stubSuggester struct {
	batch service.SuggestionBatch
	err   error
	calls int
	mu    sync.Mutex
}

func (s *stubSuggester) Suggest(_ context.Context, _ []model.Transaction, _ string) (service.SuggestionBatch, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return service.SuggestionBatch{}, s.err
	}
	return s.batch, nil
}

// stubUsage is a controllable usage tracker.
type stubUsage struct {
	allowed   bool
	acquired  int
	recorded  []string
	remaining int
}

func (s *stubUsage) CanUse(_ string) bool { return s.allowed }

func (s *stubUsage) TryAcquire(_ string) bool {
	if !s.allowed {
		return false
	}
	s.acquired++
	return true
}

func (s *stubUsage) RecordUsage(_, operation string) {
	s.recorded = append(s.recorded, operation)
}

func (s *stubUsage) Remaining(_ string) int { return s.remaining }

// failingStage always returns an error.
type failingStage struct{}

func (f *failingStage) Name() string { return "failing" }

func (f *failingStage) Process(_ context.Context, _ []model.Transaction) (service.StageResult, error) {
	return service.NewStageResult(), fmt.Errorf("stage exploded")
}

// panickingStage always panics.
type panickingStage struct{}

func (p *panickingStage) Name() string { return "panicking" }

func (p *panickingStage) Process(_ context.Context, _ []model.Transaction) (service.StageResult, error) {
	panic("boom")
}
