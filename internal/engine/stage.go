// Package engine implements the categorization pipeline: an ordered
// chain of stages with escalating cost that resolve transactions into
// auto-applied categorizations or reviewable candidates.
package engine

import (
	"context"

	"github.com/ledgerline/ledgerline/internal/model"
	"github.com/ledgerline/ledgerline/internal/service"
)

// Stage is one phase of the categorization pipeline. A stage resolves
// what it can from its input batch and returns everything else in the
// result's Remaining list, preserving input order. Stages never share
// candidates: each creates its own.
type Stage interface {
	Name() string
	Process(ctx context.Context, transactions []model.Transaction) (service.StageResult, error)
}

// GatedStage is a stage whose invocation is conditional. The pipeline
// checks Allowed before invoking the stage at all, so a gated stage
// incurs no cost when its gate is closed.
type GatedStage interface {
	Stage
	Allowed(userID string) bool
}
