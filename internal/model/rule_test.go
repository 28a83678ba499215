package model

import (
	"testing"
)

func TestCategorizationRule_AccuracyRate(t *testing.T) {
	tests := []struct {
		name        string
		matches     int
		corrections int
		want        float64
	}{
		{name: "no history is fully trusted", matches: 0, corrections: 0, want: 1.0},
		{name: "perfect history", matches: 10, corrections: 0, want: 1.0},
		{name: "one correction in ten", matches: 10, corrections: 1, want: 0.9},
		{name: "half corrected", matches: 4, corrections: 2, want: 0.5},
		{name: "all corrected", matches: 3, corrections: 3, want: 0.0},
		{name: "more corrections than matches floors at zero", matches: 2, corrections: 5, want: 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := CategorizationRule{
				MatchCount:      tt.matches,
				CorrectionCount: tt.corrections,
			}
			if got := rule.AccuracyRate(); got != tt.want {
				t.Errorf("AccuracyRate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCategorizationRule_Validate(t *testing.T) {
	valid := CategorizationRule{
		Name:           "Groceries at Walmart",
		Pattern:        "WALMART",
		MatchType:      MatchContains,
		BaseConfidence: 0.8,
		CategoryID:     3,
	}

	tests := []struct {
		mutate  func(*CategorizationRule)
		name    string
		wantErr bool
	}{
		{name: "valid pattern rule", mutate: func(*CategorizationRule) {}, wantErr: false},
		{
			name:    "missing name",
			mutate:  func(r *CategorizationRule) { r.Name = "" },
			wantErr: true,
		},
		{
			name:    "missing pattern without conditions",
			mutate:  func(r *CategorizationRule) { r.Pattern = "" },
			wantErr: true,
		},
		{
			name: "conditions replace pattern",
			mutate: func(r *CategorizationRule) {
				r.Pattern = ""
				r.Conditions = []RuleCondition{
					{Field: FieldMerchant, Operator: OpContains, Value: "walmart"},
				}
			},
			wantErr: false,
		},
		{
			name:    "confidence above one",
			mutate:  func(r *CategorizationRule) { r.BaseConfidence = 1.2 },
			wantErr: true,
		},
		{
			name:    "negative confidence",
			mutate:  func(r *CategorizationRule) { r.BaseConfidence = -0.1 },
			wantErr: true,
		},
		{
			name:    "unknown match type",
			mutate:  func(r *CategorizationRule) { r.MatchType = "fuzzy" },
			wantErr: true,
		},
		{
			name: "unknown condition field",
			mutate: func(r *CategorizationRule) {
				r.Conditions = []RuleCondition{{Field: "memo", Operator: OpEquals, Value: "x"}}
			},
			wantErr: true,
		},
		{
			name: "unknown condition operator",
			mutate: func(r *CategorizationRule) {
				r.Conditions = []RuleCondition{{Field: FieldAmount, Operator: "between", Value: "5"}}
			},
			wantErr: true,
		},
		{
			name:    "missing category",
			mutate:  func(r *CategorizationRule) { r.CategoryID = 0 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := valid
			tt.mutate(&rule)
			err := rule.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
