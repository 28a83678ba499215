package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ledgerline/ledgerline/internal/cli"
	"github.com/ledgerline/ledgerline/internal/review"
	"github.com/ledgerline/ledgerline/internal/storage"
)

func candidatesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "candidates",
		Short: "Review pending categorization candidates",
		Long: `The pipeline turns every suggestion it cannot commit automatically into
a pending candidate. Accept, reject, or correct them here; corrections
to rule-sourced candidates feed back into that rule's accuracy.`,
	}

	cmd.AddCommand(candidatesListCmd())
	cmd.AddCommand(candidatesReviewCmd())
	cmd.AddCommand(candidatesAcceptCmd())
	cmd.AddCommand(candidatesRejectCmd())
	cmd.AddCommand(candidatesCorrectCmd())

	return cmd
}

func candidatesListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pending candidates",
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

			candidates, err := store.GetPendingCandidates(ctx, userID)
			if err != nil {
				return fmt.Errorf("failed to load candidates: %w", err)
			}
			if len(candidates) == 0 {
				fmt.Println(cli.FormatInfo("No pending candidates."))
				return nil
			}

			categories, err := store.GetCategories(ctx)
			if err != nil {
				return fmt.Errorf("failed to load categories: %w", err)
			}
			categoryNames := make(map[int]string, len(categories))
			for _, category := range categories {
				categoryNames[category.ID] = category.Name
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTRANSACTION\tPROPOSED\tCONFIDENCE\tVIA")
			for _, candidate := range candidates {
				name := categoryNames[candidate.CategoryID]
				if name == "" {
					name = fmt.Sprintf("category %d", candidate.CategoryID)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%.0f%%\t%s\n",
					candidate.ID, candidate.TransactionID, name,
					candidate.Confidence*100, candidate.Method)
			}
			return w.Flush()
		},
	}

	cmd.Flags().String("user", "", "user whose candidates to list")

	return cmd
}

func candidatesReviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Interactively review pending candidates",
		Long: `Walk through each pending candidate and decide it: accept the
proposal, correct it to another category, reject it, or skip it for
later. Interrupting mid-session keeps every decision already made;
skipped candidates stay pending.`,
		RunE: runCandidatesReview,
	}

	cmd.Flags().String("user", "", "user whose candidates to review")

	return cmd
}

func runCandidatesReview(cmd *cobra.Command, _ []string) error {
	userFlag, _ := cmd.Flags().GetString("user")
	userID, err := resolveUser(userFlag)
	if err != nil {
		return err
	}

	store, err := initStorage(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer closeStore(store)

	interruptHandler := cli.NewInterruptHandler(os.Stdout)
	ctx := interruptHandler.HandleInterrupts(cmd.Context())

	candidates, err := store.GetPendingCandidates(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load candidates: %w", err)
	}

	prompter := cli.NewPrompter(newReviewService(store), store, store, nil, nil)

	stats, err := prompter.Review(ctx, candidates)
	if err != nil && !interruptHandler.WasInterrupted() {
		return err
	}

	slog.Info("review session finished",
		"accepted", stats.Accepted,
		"corrected", stats.Corrected,
		"rejected", stats.Rejected,
		"skipped", stats.Skipped)
	return nil
}

func candidatesAcceptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "accept <candidate-id>",
		Short: "Accept a candidate's proposed category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return decideCandidate(cmd, args[0], func(svc *review.Service) error {
				return svc.Accept(cmd.Context(), args[0])
			}, "Accepted")
		},
	}
}

func candidatesRejectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reject <candidate-id>",
		Short: "Reject a candidate without applying any category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return decideCandidate(cmd, args[0], func(svc *review.Service) error {
				return svc.Reject(cmd.Context(), args[0])
			}, "Rejected")
		},
	}
}

func candidatesCorrectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "correct <candidate-id> <category-id>",
		Short: "Apply a different category than the candidate proposed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			categoryID, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid category ID %q: %w", args[1], err)
			}
			return decideCandidate(cmd, args[0], func(svc *review.Service) error {
				return svc.Correct(cmd.Context(), args[0], categoryID)
			}, "Corrected")
		},
	}
}

func decideCandidate(cmd *cobra.Command, candidateID string, decide func(*review.Service) error, verb string) error {
	store, err := initStorage(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer closeStore(store)

	svc := newReviewService(store)
	if err := decide(svc); err != nil {
		return err
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("%s candidate %s", verb, candidateID)))
	return nil
}

func newReviewService(store *storage.SQLiteStorage) *review.Service {
	return review.NewService(store, store, store, store, slog.Default())
}
