package config

import (
	"fmt"
	"time"
)

// Pipeline holds the tunables for one categorization pipeline. It is
// passed explicitly into the orchestrator and stages at construction;
// there is no ambient mutable configuration.
type Pipeline struct {
	// AutoApplyThreshold is the minimum confidence at which a rule match
	// is committed without review. Comparison is >=, not >.
	AutoApplyThreshold float64
	// MaxLLMCallsPerUserPerDay caps the costly suggestion stage.
	MaxLLMCallsPerUserPerDay int
	// LLMCostPerCall is the unit cost used for the cost-savings metric.
	LLMCostPerCall float64
	// LLMTimeout bounds one external suggestion call.
	LLMTimeout time.Duration
}

// DefaultPipeline returns the default pipeline configuration.
func DefaultPipeline() Pipeline {
	return Pipeline{
		AutoApplyThreshold:       0.85,
		MaxLLMCallsPerUserPerDay: 5,
		LLMCostPerCall:           0.03,
		LLMTimeout:               60 * time.Second,
	}
}

// Validate ensures the configuration is usable.
func (p Pipeline) Validate() error {
	if p.AutoApplyThreshold < 0 || p.AutoApplyThreshold > 1 {
		return fmt.Errorf("auto-apply threshold must be between 0.0 and 1.0, got %.2f", p.AutoApplyThreshold)
	}
	if p.MaxLLMCallsPerUserPerDay < 0 {
		return fmt.Errorf("max LLM calls per user per day must not be negative, got %d", p.MaxLLMCallsPerUserPerDay)
	}
	if p.LLMCostPerCall < 0 {
		return fmt.Errorf("LLM cost per call must not be negative, got %.2f", p.LLMCostPerCall)
	}
	return nil
}
