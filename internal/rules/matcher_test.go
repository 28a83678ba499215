package rules

import (
	"testing"

	"github.com/ledgerline/ledgerline/internal/model"
)

func patternRule(id int, pattern string, matchType model.MatchType) model.CategorizationRule {
	return model.CategorizationRule{
		ID:             id,
		Pattern:        pattern,
		MatchType:      matchType,
		BaseConfidence: 0.8,
		CategoryID:     1,
		IsActive:       true,
	}
}

func TestMatcher_Evaluate_PatternTypes(t *testing.T) {
	txn := model.Transaction{Description: "WALMART SUPERCENTER 1234"}

	tests := []struct {
		name      string
		pattern   string
		matchType model.MatchType
		caseSens  bool
		want      bool
	}{
		{name: "contains match", pattern: "WALMART", matchType: model.MatchContains, want: true},
		{name: "contains case-insensitive", pattern: "walmart", matchType: model.MatchContains, want: true},
		{name: "contains case-sensitive miss", pattern: "walmart", matchType: model.MatchContains, caseSens: true, want: false},
		{name: "contains miss", pattern: "TARGET", matchType: model.MatchContains, want: false},
		{name: "starts with match", pattern: "WALMART", matchType: model.MatchStartsWith, want: true},
		{name: "starts with miss", pattern: "SUPERCENTER", matchType: model.MatchStartsWith, want: false},
		{name: "ends with match", pattern: "1234", matchType: model.MatchEndsWith, want: true},
		{name: "ends with miss", pattern: "WALMART", matchType: model.MatchEndsWith, want: false},
		{name: "equals match", pattern: "walmart supercenter 1234", matchType: model.MatchEquals, want: true},
		{name: "equals miss", pattern: "WALMART", matchType: model.MatchEquals, want: false},
		{name: "regex match", pattern: `WALMART\s+SUPER`, matchType: model.MatchRegex, want: true},
		{name: "regex case-insensitive", pattern: `walmart.*\d{4}`, matchType: model.MatchRegex, want: true},
		{name: "regex miss", pattern: `^SUPERCENTER`, matchType: model.MatchRegex, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMatcher()
			rule := patternRule(1, tt.pattern, tt.matchType)
			rule.CaseSensitive = tt.caseSens

			got, err := m.Evaluate(rule, txn)
			if err != nil {
				t.Fatalf("Evaluate() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Evaluate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatcher_Evaluate_InvalidRegex(t *testing.T) {
	m := NewMatcher()
	rule := patternRule(7, "([unclosed", model.MatchRegex)

	if _, err := m.Evaluate(rule, model.Transaction{Description: "anything"}); err == nil {
		t.Fatal("Evaluate() with malformed regex should return an error")
	}
}

func TestMatcher_Evaluate_UnknownMatchType(t *testing.T) {
	m := NewMatcher()
	rule := patternRule(8, "WALMART", "fuzzy")

	if _, err := m.Evaluate(rule, model.Transaction{Description: "WALMART"}); err == nil {
		t.Fatal("Evaluate() with unknown match type should return an error")
	}
}

func TestMatcher_Evaluate_Conditions(t *testing.T) {
	txn := model.Transaction{
		Description:  "CHECK 1042 LANDLORD LLC",
		MerchantName: "Landlord LLC",
		AccountID:    "acct-1",
		Amount:       -1500.00,
	}

	tests := []struct {
		name       string
		conditions []model.RuleCondition
		want       bool
		wantErr    bool
	}{
		{
			name: "all conditions hold",
			conditions: []model.RuleCondition{
				{Field: model.FieldMerchant, Operator: model.OpContains, Value: "landlord"},
				{Field: model.FieldAmount, Operator: model.OpLessEqual, Value: "-1000"},
			},
			want: true,
		},
		{
			name: "one false condition fails the rule",
			conditions: []model.RuleCondition{
				{Field: model.FieldMerchant, Operator: model.OpContains, Value: "landlord"},
				{Field: model.FieldAmount, Operator: model.OpGreaterThan, Value: "0"},
			},
			want: false,
		},
		{
			name: "account equality",
			conditions: []model.RuleCondition{
				{Field: model.FieldAccount, Operator: model.OpEquals, Value: "acct-1"},
			},
			want: true,
		},
		{
			name: "amount condition with non-numeric value errors",
			conditions: []model.RuleCondition{
				{Field: model.FieldAmount, Operator: model.OpGreaterThan, Value: "lots"},
			},
			wantErr: true,
		},
		{
			name: "string operator on amount errors",
			conditions: []model.RuleCondition{
				{Field: model.FieldAmount, Operator: model.OpContains, Value: "15"},
			},
			wantErr: true,
		},
		{
			name: "numeric operator on string field errors",
			conditions: []model.RuleCondition{
				{Field: model.FieldMerchant, Operator: model.OpGreaterThan, Value: "5"},
			},
			wantErr: true,
		},
		{
			name: "unknown field errors",
			conditions: []model.RuleCondition{
				{Field: "memo", Operator: model.OpEquals, Value: "x"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMatcher()
			rule := model.CategorizationRule{
				ID:             1,
				Pattern:        "IGNORED WHEN CONDITIONS EXIST",
				MatchType:      model.MatchEquals,
				Conditions:     tt.conditions,
				BaseConfidence: 0.8,
				CategoryID:     1,
			}

			got, err := m.Evaluate(rule, txn)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Evaluate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("Evaluate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSortByPriority(t *testing.T) {
	ruleSet := []model.CategorizationRule{
		{ID: 1, Priority: 5},
		{ID: 2, Priority: 0},
		{ID: 3, Priority: 2},
	}

	sorted := SortByPriority(ruleSet)

	wantOrder := []int{2, 3, 1}
	for i, want := range wantOrder {
		if sorted[i].ID != want {
			t.Errorf("sorted[%d].ID = %d, want %d", i, sorted[i].ID, want)
		}
	}

	// Input order is untouched.
	if ruleSet[0].ID != 1 {
		t.Errorf("input slice was mutated: first ID = %d, want 1", ruleSet[0].ID)
	}
}

func TestMatcher_Evaluate_EditedRegexRecompiles(t *testing.T) {
	m := NewMatcher()
	txn := model.Transaction{Description: "SHELL GASOLINE 4411"}

	rule := patternRule(9, `^SHELL`, model.MatchRegex)
	matched, err := m.Evaluate(rule, txn)
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	if !matched {
		t.Fatal("original pattern should match")
	}

	// Same rule ID, new pattern: the edited pattern decides the match.
	rule.Pattern = `^COSTCO`
	matched, err = m.Evaluate(rule, txn)
	if err != nil {
		t.Fatalf("Evaluate() error after edit: %v", err)
	}
	if matched {
		t.Error("edited pattern should not match the old description")
	}
}

func TestSortByPriority_StableForEqualPriorities(t *testing.T) {
	ruleSet := []model.CategorizationRule{
		{ID: 4, Priority: 1},
		{ID: 5, Priority: 1},
		{ID: 6, Priority: 0},
	}

	sorted := SortByPriority(ruleSet)

	wantOrder := []int{6, 4, 5}
	for i, want := range wantOrder {
		if sorted[i].ID != want {
			t.Errorf("sorted[%d].ID = %d, want %d", i, sorted[i].ID, want)
		}
	}
}
