package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ledgerline/ledgerline/internal/cli"
	"github.com/ledgerline/ledgerline/internal/engine"
	"github.com/ledgerline/ledgerline/internal/llm"
	"github.com/ledgerline/ledgerline/internal/service"
	"github.com/ledgerline/ledgerline/internal/usage"
)

func categorizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categorize",
		Short: "Run the categorization pipeline over uncategorized transactions",
		Long: `Run every uncategorized transaction through the pipeline: rule
matching first, then merchant similarity, then LLM suggestions for
whatever remains. Rule matches at or above the auto-apply threshold
are committed immediately; everything else becomes a pending candidate
you can review with "ledgerline candidates review".`,
		RunE: runCategorize,
	}

	cmd.Flags().String("user", "", "user to categorize transactions for")

	return cmd
}

func runCategorize(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	userFlag, _ := cmd.Flags().GetString("user")
	userID, err := resolveUser(userFlag)
	if err != nil {
		return err
	}

	cfg, err := pipelineConfig()
	if err != nil {
		return err
	}

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer closeStore(store)

	logger := slog.Default()

	// Without an API key the LLM stage stays gated shut and the rule and
	// similarity stages still run.
	var suggester service.Suggester
	maxCalls := cfg.MaxLLMCallsPerUserPerDay
	if llmCfg := llmConfig(cfg.LLMTimeout); llmCfg.APIKey == "" {
		logger.Warn("no LLM API key configured, suggestion stage disabled")
		maxCalls = 0
	} else {
		llmSuggester, err := llm.NewSuggester(llmCfg, store, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize LLM suggester: %w", err)
		}
		defer llmSuggester.Close()
		suggester = llmSuggester
	}

	tracker := usage.NewTracker(maxCalls)
	defer tracker.Close()

	transactions, err := store.GetUncategorized(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load uncategorized transactions: %w", err)
	}
	if len(transactions) == 0 {
		fmt.Println(cli.FormatInfo("No uncategorized transactions."))
		return nil
	}

	pipeline := engine.NewDefaultPipeline(cfg, store, store, store, store, suggester, tracker, logger)

	result, err := pipeline.Run(ctx, transactions)
	if err != nil {
		return fmt.Errorf("pipeline failed: %w", err)
	}

	printPipelineResult(result)
	return nil
}

func printPipelineResult(result service.PipelineResult) {
	summary := fmt.Sprintf("  Auto-applied: %d\n", len(result.AutoApplied)) +
		fmt.Sprintf("  Pending review: %d\n", len(result.Candidates)) +
		fmt.Sprintf("  Unresolved: %d\n", len(result.UnresolvedIDs))
	if result.Metrics.EstimatedCostSavings > 0 {
		summary += fmt.Sprintf("  Estimated LLM cost: $%.2f\n", result.Metrics.EstimatedCostSavings)
	}
	for stage, count := range result.Metrics.ProcessedByStage {
		summary += fmt.Sprintf("  Stage %s resolved: %d\n", stage, count)
	}

	fmt.Println(cli.RenderBox("Categorization Complete", summary))

	if len(result.Candidates) > 0 {
		fmt.Println(cli.FormatInfo("Review pending candidates with: ledgerline candidates review"))
	}
	for _, errMsg := range result.Errors {
		fmt.Println(cli.FormatWarning(errMsg))
	}
}
