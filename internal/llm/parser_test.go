package llm

import (
	"testing"
)

func TestParseSuggestions(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		wantCount  int
		wantErrors int
		wantErr    bool
	}{
		{
			name: "plain JSON array",
			content: `[
				{"transaction_id": "txn-1", "category": "Groceries", "confidence": 0.8, "reasoning": "grocery store"},
				{"transaction_id": "txn-2", "category": "Dining", "confidence": 0.65, "reasoning": "restaurant"}
			]`,
			wantCount: 2,
		},
		{
			name: "markdown fenced array",
			content: "```json\n" +
				`[{"transaction_id": "txn-1", "category": "Groceries", "confidence": 0.9}]` +
				"\n```",
			wantCount: 1,
		},
		{
			name: "entry missing transaction id is skipped",
			content: `[
				{"category": "Groceries", "confidence": 0.8},
				{"transaction_id": "txn-2", "category": "Dining", "confidence": 0.7}
			]`,
			wantCount:  1,
			wantErrors: 1,
		},
		{
			name: "entry missing category is skipped",
			content: `[
				{"transaction_id": "txn-1", "confidence": 0.8}
			]`,
			wantCount:  0,
			wantErrors: 1,
		},
		{
			name:      "percentage confidence is normalized",
			content:   `[{"transaction_id": "txn-1", "category": "Groceries", "confidence": 85}]`,
			wantCount: 1,
		},
		{
			name:    "not an array",
			content: `{"transaction_id": "txn-1"}`,
			wantErr: true,
		},
		{
			name:    "not JSON at all",
			content: "I am sorry, I cannot categorize these transactions.",
			wantErr: true,
		},
		{
			name:      "empty array",
			content:   `[]`,
			wantCount: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			suggestions, parseErrors, err := parseSuggestions(tt.content)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseSuggestions() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if len(suggestions) != tt.wantCount {
				t.Errorf("got %d suggestions, want %d", len(suggestions), tt.wantCount)
			}
			if len(parseErrors) != tt.wantErrors {
				t.Errorf("got %d parse errors (%v), want %d", len(parseErrors), parseErrors, tt.wantErrors)
			}
		})
	}
}

func TestParseSuggestions_PercentageNormalized(t *testing.T) {
	suggestions, _, err := parseSuggestions(
		`[{"transaction_id": "txn-1", "category": "Groceries", "confidence": 85}]`)
	if err != nil {
		t.Fatalf("parseSuggestions() error: %v", err)
	}
	if len(suggestions) != 1 {
		t.Fatalf("got %d suggestions, want 1", len(suggestions))
	}
	if suggestions[0].Confidence != 0.85 {
		t.Errorf("confidence = %v, want 0.85", suggestions[0].Confidence)
	}
}

func TestCleanMarkdownWrapper(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "no fences", content: `[1]`, want: `[1]`},
		{name: "json fence", content: "```json\n[1]\n```", want: `[1]`},
		{name: "bare fence", content: "```\n[1]\n```", want: `[1]`},
		{name: "surrounding whitespace", content: "\n  [1]  \n", want: `[1]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cleanMarkdownWrapper(tt.content); got != tt.want {
				t.Errorf("cleanMarkdownWrapper() = %q, want %q", got, tt.want)
			}
		})
	}
}
