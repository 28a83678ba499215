package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// rawSuggestion mirrors the JSON shape the providers are prompted to emit.
type rawSuggestion struct {
	TransactionID string  `json:"transaction_id"`
	Category      string  `json:"category"`
	Reasoning     string  `json:"reasoning"`
	RuleIDs       []int   `json:"rule_ids,omitempty"`
	Confidence    float64 `json:"confidence"`
}

// parseSuggestions extracts category suggestions from a raw completion.
// Malformed entries are skipped with a recorded error rather than failing
// the whole batch; a completely unparseable response is an error.
func parseSuggestions(content string) ([]rawSuggestion, []string, error) {
	content = cleanMarkdownWrapper(content)

	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, nil, fmt.Errorf("response is not a JSON array: %w", err)
	}

	var suggestions []rawSuggestion
	var parseErrors []string

	for i, entry := range raw {
		var s rawSuggestion
		if err := json.Unmarshal(entry, &s); err != nil {
			parseErrors = append(parseErrors, fmt.Sprintf("suggestion %d: %v", i, err))
			continue
		}

		if s.TransactionID == "" {
			parseErrors = append(parseErrors, fmt.Sprintf("suggestion %d: missing transaction_id", i))
			continue
		}
		if s.Category == "" {
			parseErrors = append(parseErrors, fmt.Sprintf("suggestion %d: missing category", i))
			continue
		}

		// Tolerate confidence given as a percentage.
		if s.Confidence > 1.0 && s.Confidence <= 100.0 {
			s.Confidence /= 100.0
		}
		if s.Confidence < 0 {
			s.Confidence = 0
		}
		if s.Confidence > 1 {
			s.Confidence = 1
		}

		suggestions = append(suggestions, s)
	}

	return suggestions, parseErrors, nil
}

// cleanMarkdownWrapper strips markdown code fences some models wrap their
// JSON output in.
func cleanMarkdownWrapper(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```") {
		if idx := strings.Index(content, "\n"); idx >= 0 {
			content = content[idx+1:]
		}
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	}

	return strings.TrimSpace(content)
}
