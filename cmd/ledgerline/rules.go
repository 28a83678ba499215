package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ledgerline/ledgerline/internal/cli"
	"github.com/ledgerline/ledgerline/internal/model"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage categorization rules",
		Long: `List, add, and disable the rules the pipeline matches first. Lower
priority values are evaluated first; the first matching rule wins.`,
	}

	cmd.AddCommand(rulesListCmd())
	cmd.AddCommand(rulesAddCmd())
	cmd.AddCommand(rulesDisableCmd())

	return cmd
}

func rulesListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List active rules in evaluation order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			userFlag, _ := cmd.Flags().GetString("user")
			userID, err := resolveUser(userFlag)
			if err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			defer closeStore(store)

			rules, err := store.GetActiveRules(ctx, userID)
			if err != nil {
				return fmt.Errorf("failed to load rules: %w", err)
			}
			if len(rules) == 0 {
				fmt.Println(cli.FormatInfo("No active rules. Add one with: ledgerline rules add"))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tPRIORITY\tNAME\tMATCH\tPATTERN\tCATEGORY\tACCURACY\tMATCHES")
			for i := range rules {
				rule := &rules[i]
				pattern := rule.Pattern
				if rule.HasConditions() {
					pattern = fmt.Sprintf("(%d conditions)", len(rule.Conditions))
				}
				fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%d\t%.0f%%\t%d\n",
					rule.ID, rule.Priority, rule.Name, rule.MatchType, pattern,
					rule.CategoryID, rule.AccuracyRate()*100, rule.MatchCount)
			}
			return w.Flush()
		},
	}

	cmd.Flags().String("user", "", "user whose rules to list")

	return cmd
}

func rulesAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a categorization rule",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			userFlag, _ := cmd.Flags().GetString("user")
			userID, err := resolveUser(userFlag)
			if err != nil {
				return err
			}

			name, _ := cmd.Flags().GetString("name")
			pattern, _ := cmd.Flags().GetString("pattern")
			matchType, _ := cmd.Flags().GetString("match")
			categoryID, _ := cmd.Flags().GetInt("category")
			priority, _ := cmd.Flags().GetInt("priority")
			confidence, _ := cmd.Flags().GetFloat64("confidence")
			caseSensitive, _ := cmd.Flags().GetBool("case-sensitive")

			rule := model.CategorizationRule{
				UserID:         userID,
				Name:           name,
				Pattern:        pattern,
				MatchType:      model.MatchType(matchType),
				CategoryID:     categoryID,
				Priority:       priority,
				BaseConfidence: confidence,
				CaseSensitive:  caseSensitive,
			}
			if err := rule.Validate(); err != nil {
				return fmt.Errorf("invalid rule: %w", err)
			}

			store, err := initStorage(ctx)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			defer closeStore(store)

			// Rules must target a live category.
			category, err := store.GetCategoryByID(ctx, categoryID)
			if err != nil {
				return fmt.Errorf("failed to look up category: %w", err)
			}
			if category == nil {
				return fmt.Errorf("category %d does not exist or is inactive", categoryID)
			}

			if err := store.CreateRule(ctx, &rule); err != nil {
				return fmt.Errorf("failed to create rule: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Created rule %d: %s -> %s", rule.ID, rule.Name, category.Name)))
			return nil
		},
	}

	cmd.Flags().String("user", "", "user the rule belongs to")
	cmd.Flags().String("name", "", "rule name")
	cmd.Flags().String("pattern", "", "pattern to match against the transaction description")
	cmd.Flags().String("match", string(model.MatchContains), "match type (equals, contains, starts_with, ends_with, regex)")
	cmd.Flags().Int("category", 0, "target category ID")
	cmd.Flags().Int("priority", 100, "evaluation priority (lower runs first)")
	cmd.Flags().Float64("confidence", 0.8, "base confidence before accuracy adjustment")
	cmd.Flags().Bool("case-sensitive", false, "match case-sensitively")

	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("pattern")
	_ = cmd.MarkFlagRequired("category")

	return cmd
}

func rulesDisableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disable <rule-id>",
		Short: "Disable a rule without deleting its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			ruleID, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid rule ID %q: %w", args[0], err)
			}

			store, err := initStorage(ctx)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			defer closeStore(store)

			if err := store.SetRuleActive(ctx, ruleID, false); err != nil {
				return fmt.Errorf("failed to disable rule %d: %w", ruleID, err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Disabled rule %d", ruleID)))
			return nil
		},
	}
}
