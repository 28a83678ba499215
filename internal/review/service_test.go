package review

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/ledgerline/internal/model"
)

type fakeCandidateStore struct {
	candidates map[string]*model.Candidate
	updated    []model.Candidate
}

func (f *fakeCandidateStore) CreateCandidates(_ context.Context, _ []model.Candidate) error {
	return nil
}

func (f *fakeCandidateStore) GetCandidate(_ context.Context, id string) (*model.Candidate, error) {
	c, ok := f.candidates[id]
	if !ok {
		return nil, fmt.Errorf("candidate %s not found", id)
	}
	copied := *c
	return &copied, nil
}

func (f *fakeCandidateStore) GetPendingCandidates(_ context.Context, _ string) ([]model.Candidate, error) {
	return nil, nil
}

func (f *fakeCandidateStore) GetPendingByTransaction(_ context.Context, _ string) ([]model.Candidate, error) {
	return nil, nil
}

func (f *fakeCandidateStore) UpdateCandidateStatus(_ context.Context, candidate *model.Candidate) error {
	f.updated = append(f.updated, *candidate)
	return nil
}

type fakeTransactionStore struct {
	applied  []model.AutoApplied
	applyErr error
}

func (f *fakeTransactionStore) GetUncategorized(_ context.Context, _ string) ([]model.Transaction, error) {
	return nil, nil
}

func (f *fakeTransactionStore) GetTransactionByID(_ context.Context, _ string) (*model.Transaction, error) {
	return nil, fmt.Errorf("not supported")
}

func (f *fakeTransactionStore) ApplyCategories(_ context.Context, applied []model.AutoApplied) error {
	if f.applyErr != nil {
		return f.applyErr
	}
	f.applied = append(f.applied, applied...)
	return nil
}

func (f *fakeTransactionStore) SaveTransactions(_ context.Context, _ []model.Transaction) error {
	return nil
}

type fakeRuleStore struct {
	corrected []int
}

func (f *fakeRuleStore) GetActiveRules(_ context.Context, _ string) ([]model.CategorizationRule, error) {
	return nil, nil
}

func (f *fakeRuleStore) GetRule(_ context.Context, _ int) (*model.CategorizationRule, error) {
	return nil, fmt.Errorf("not supported")
}

func (f *fakeRuleStore) CreateRule(_ context.Context, _ *model.CategorizationRule) error {
	return nil
}

func (f *fakeRuleStore) IncrementMatchCounts(_ context.Context, _ []int) error {
	return nil
}

func (f *fakeRuleStore) IncrementCorrectionCount(_ context.Context, ruleID int) error {
	f.corrected = append(f.corrected, ruleID)
	return nil
}

type fakeCategoryStore struct {
	categories map[int]model.Category
}

func (f *fakeCategoryStore) GetCategoryByID(_ context.Context, id int) (*model.Category, error) {
	cat, ok := f.categories[id]
	if !ok || !cat.IsActive {
		return nil, nil
	}
	return &cat, nil
}

func (f *fakeCategoryStore) GetCategories(_ context.Context) ([]model.Category, error) {
	return nil, nil
}

func (f *fakeCategoryStore) CreateCategory(_ context.Context, _, _ string, _ model.CategoryType) (*model.Category, error) {
	return nil, fmt.Errorf("not supported")
}

func pendingCandidate(method model.CandidateMethod, metadata map[string]string) *model.Candidate {
	return &model.Candidate{
		ID:            "cand-1",
		TransactionID: "txn-1",
		CategoryID:    10,
		Method:        method,
		Confidence:    0.7,
		Status:        model.StatusPending,
		Metadata:      metadata,
		CreatedAt:     time.Now(),
	}
}

func newTestService(candidate *model.Candidate) (*Service, *fakeCandidateStore, *fakeTransactionStore, *fakeRuleStore) {
	candStore := &fakeCandidateStore{candidates: map[string]*model.Candidate{}}
	if candidate != nil {
		candStore.candidates[candidate.ID] = candidate
	}
	txnStore := &fakeTransactionStore{}
	ruleStore := &fakeRuleStore{}
	catStore := &fakeCategoryStore{categories: map[int]model.Category{
		10: {ID: 10, Name: "Groceries", IsActive: true},
		20: {ID: 20, Name: "Dining", IsActive: true},
	}}

	svc := NewService(candStore, txnStore, ruleStore, catStore, slog.Default())
	return svc, candStore, txnStore, ruleStore
}

func TestService_Accept(t *testing.T) {
	svc, candStore, txnStore, _ := newTestService(
		pendingCandidate(model.MethodRule, map[string]string{model.MetadataRuleID: "3"}))

	err := svc.Accept(context.Background(), "cand-1")
	require.NoError(t, err)

	require.Len(t, txnStore.applied, 1)
	assert.Equal(t, "txn-1", txnStore.applied[0].TransactionID)
	assert.Equal(t, 10, txnStore.applied[0].CategoryID)

	require.Len(t, candStore.updated, 1)
	assert.Equal(t, model.StatusAccepted, candStore.updated[0].Status)
	assert.NotNil(t, candStore.updated[0].DecidedAt)
}

func TestService_Reject(t *testing.T) {
	svc, candStore, txnStore, ruleStore := newTestService(
		pendingCandidate(model.MethodRule, map[string]string{model.MetadataRuleID: "3"}))

	err := svc.Reject(context.Background(), "cand-1")
	require.NoError(t, err)

	assert.Empty(t, txnStore.applied, "rejection must not apply a category")
	assert.Empty(t, ruleStore.corrected, "rejection must not count as a correction")

	require.Len(t, candStore.updated, 1)
	assert.Equal(t, model.StatusRejected, candStore.updated[0].Status)
}

func TestService_CorrectRuleCandidate(t *testing.T) {
	svc, candStore, txnStore, ruleStore := newTestService(
		pendingCandidate(model.MethodRule, map[string]string{model.MetadataRuleID: "3"}))

	err := svc.Correct(context.Background(), "cand-1", 20)
	require.NoError(t, err)

	require.Len(t, txnStore.applied, 1)
	assert.Equal(t, 20, txnStore.applied[0].CategoryID, "the corrected category is applied, not the proposal")

	require.Len(t, candStore.updated, 1)
	assert.Equal(t, model.StatusCorrected, candStore.updated[0].Status)

	assert.Equal(t, []int{3}, ruleStore.corrected, "the source rule takes the correction")
}

func TestService_CorrectLLMCandidateSkipsRuleCounter(t *testing.T) {
	svc, _, txnStore, ruleStore := newTestService(pendingCandidate(model.MethodLLM, nil))

	err := svc.Correct(context.Background(), "cand-1", 20)
	require.NoError(t, err)

	require.Len(t, txnStore.applied, 1)
	assert.Empty(t, ruleStore.corrected, "LLM candidates have no rule to correct")
}

func TestService_CorrectRejectsSameCategory(t *testing.T) {
	svc, _, txnStore, _ := newTestService(pendingCandidate(model.MethodRule, nil))

	err := svc.Correct(context.Background(), "cand-1", 10)
	require.Error(t, err)
	assert.Empty(t, txnStore.applied)
}

func TestService_CorrectRejectsDeadCategory(t *testing.T) {
	svc, _, txnStore, _ := newTestService(pendingCandidate(model.MethodRule, nil))

	err := svc.Correct(context.Background(), "cand-1", 99)
	require.Error(t, err)
	assert.Empty(t, txnStore.applied)
}

func TestService_DecidedCandidateCannotBeDecidedAgain(t *testing.T) {
	decided := pendingCandidate(model.MethodRule, nil)
	decided.Status = model.StatusAccepted
	svc, candStore, _, _ := newTestService(decided)

	err := svc.Accept(context.Background(), "cand-1")
	require.Error(t, err)
	assert.Empty(t, candStore.updated)

	err = svc.Reject(context.Background(), "cand-1")
	require.Error(t, err)

	err = svc.Correct(context.Background(), "cand-1", 20)
	require.Error(t, err)
}

func TestService_UnknownCandidate(t *testing.T) {
	svc, _, _, _ := newTestService(nil)

	err := svc.Accept(context.Background(), "ghost")
	require.Error(t, err)
}
