package model

import (
	"fmt"
	"time"
)

// CandidateMethod records which pipeline stage produced a candidate.
type CandidateMethod string

const (
	// MethodRule indicates the candidate came from the rule matching stage.
	MethodRule CandidateMethod = "RULE"
	// MethodML indicates the candidate came from the similarity/ML stage.
	MethodML CandidateMethod = "ML"
	// MethodLLM indicates the candidate came from the LLM suggestion stage.
	MethodLLM CandidateMethod = "LLM"
)

// CandidateStatus tracks a candidate through its review lifecycle.
type CandidateStatus string

const (
	// StatusPending means the candidate awaits a human decision.
	StatusPending CandidateStatus = "PENDING"
	// StatusAccepted means the proposed category was confirmed unchanged.
	StatusAccepted CandidateStatus = "ACCEPTED"
	// StatusRejected means the candidate was dismissed with no category applied.
	StatusRejected CandidateStatus = "REJECTED"
	// StatusCorrected means a different category than proposed was applied.
	StatusCorrected CandidateStatus = "CORRECTED"
)

// Candidate is a proposed, not-yet-committed category assignment awaiting
// a human decision. Each stage creates its own candidates; a candidate is
// never mutated by two stages.
type Candidate struct {
	CreatedAt     time.Time         `json:"created_at"`
	DecidedAt     *time.Time        `json:"decided_at,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	ID            string            `json:"id"`
	TransactionID string            `json:"transaction_id"`
	Reasoning     string            `json:"reasoning"`
	ProposedBy    string            `json:"proposed_by"`
	Method        CandidateMethod   `json:"method"`
	Status        CandidateStatus   `json:"status"`
	CategoryID    int               `json:"category_id"`
	Confidence    float64           `json:"confidence"`
}

// MetadataRuleID is the metadata key naming the rule that produced a
// rule-sourced candidate.
const MetadataRuleID = "rule_id"

// TransitionTo moves the candidate to a terminal status. Only pending
// candidates may transition, and only to a terminal status.
func (c *Candidate) TransitionTo(status CandidateStatus, now time.Time) error {
	if c.Status != StatusPending {
		return fmt.Errorf("candidate %s is %s, only pending candidates can transition", c.ID, c.Status)
	}

	switch status {
	case StatusAccepted, StatusRejected, StatusCorrected:
	default:
		return fmt.Errorf("invalid candidate transition %s -> %s", c.Status, status)
	}

	c.Status = status
	c.DecidedAt = &now
	return nil
}

// Validate ensures the candidate has valid data.
func (c *Candidate) Validate() error {
	if c.TransactionID == "" {
		return fmt.Errorf("candidate transaction id is required")
	}
	if c.CategoryID <= 0 {
		return fmt.Errorf("candidate must propose a category")
	}
	if c.Confidence < 0 || c.Confidence > 1 {
		return fmt.Errorf("confidence must be between 0.0 and 1.0, got %.2f", c.Confidence)
	}
	switch c.Method {
	case MethodRule, MethodML, MethodLLM:
	default:
		return fmt.Errorf("unknown candidate method %q", c.Method)
	}
	return nil
}

// AutoApplied is a categorization committed without review because its
// confidence met the auto-apply threshold.
type AutoApplied struct {
	AppliedAt     time.Time `json:"applied_at"`
	TransactionID string    `json:"transaction_id"`
	Reasoning     string    `json:"reasoning"`
	CategoryID    int       `json:"category_id"`
	RuleID        int       `json:"rule_id"`
	Confidence    float64   `json:"confidence"`
}
