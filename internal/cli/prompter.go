package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/ledgerline/ledgerline/internal/model"
	"github.com/ledgerline/ledgerline/internal/service"
)

// Decider executes a reviewer's decision on one candidate.
type Decider interface {
	Accept(ctx context.Context, candidateID string) error
	Reject(ctx context.Context, candidateID string) error
	Correct(ctx context.Context, candidateID string, categoryID int) error
}

// ReviewStats summarizes one review session.
type ReviewStats struct {
	Accepted  int
	Corrected int
	Rejected  int
	Skipped   int
	Duration  time.Duration
}

// Prompter walks a reviewer through pending candidates one at a time.
type Prompter struct {
	decider      Decider
	transactions service.TransactionStore
	categories   service.CategoryStore
	reader       *NonBlockingReader
	writer       io.Writer
	progressBar  *progressbar.ProgressBar
	startTime    time.Time
	stats        ReviewStats
}

// NewPrompter creates a review prompter. A nil reader or writer falls
// back to stdin/stdout.
func NewPrompter(
	decider Decider,
	transactions service.TransactionStore,
	categories service.CategoryStore,
	reader io.Reader,
	writer io.Writer,
) *Prompter {
	if reader == nil {
		reader = os.Stdin
	}
	if writer == nil {
		writer = os.Stdout
	}

	return &Prompter{
		decider:      decider,
		transactions: transactions,
		categories:   categories,
		reader:       NewNonBlockingReader(reader),
		writer:       writer,
		startTime:    time.Now(),
	}
}

// Review walks the reviewer through every candidate. A skipped candidate
// stays pending; cancellation stops the loop but keeps decisions already
// made.
func (p *Prompter) Review(ctx context.Context, candidates []model.Candidate) (ReviewStats, error) {
	if len(candidates) == 0 {
		if _, err := fmt.Fprintln(p.writer, FormatInfo("No pending candidates to review.")); err != nil {
			return p.stats, err
		}
		return p.stats, nil
	}

	categories, err := p.categories.GetCategories(ctx)
	if err != nil {
		return p.stats, fmt.Errorf("failed to load categories: %w", err)
	}
	categoryNames := make(map[int]string, len(categories))
	for _, cat := range categories {
		categoryNames[cat.ID] = cat.Name
	}

	p.initProgressBar(len(candidates))

	for i, candidate := range candidates {
		select {
		case <-ctx.Done():
			p.stats.Skipped += len(candidates) - i
			return p.finish(), ctx.Err()
		default:
		}

		if err := p.reviewOne(ctx, candidate, categories, categoryNames); err != nil {
			if err == ErrInputCancelled || err == io.EOF {
				p.stats.Skipped += len(candidates) - i
				return p.finish(), nil
			}
			return p.finish(), err
		}

		p.updateProgress()
	}

	return p.finish(), nil
}

func (p *Prompter) reviewOne(ctx context.Context, candidate model.Candidate, categories []model.Category, categoryNames map[int]string) error {
	content, err := p.formatCandidate(ctx, candidate, categoryNames)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintln(p.writer, RenderBox("Candidate Review", content)); err != nil {
		return fmt.Errorf("failed to write candidate box: %w", err)
	}

	options := []string{
		"  [A] Accept proposed category",
		"  [C] Correct to a different category",
		"  [R] Reject",
		"  [S] Skip for now",
	}
	if _, err := fmt.Fprintln(p.writer, strings.Join(options, "\n")); err != nil {
		return fmt.Errorf("failed to write options: %w", err)
	}

	choice, err := p.promptChoice(ctx, "Choice [A/C/R/S]", []string{"a", "c", "r", "s"})
	if err != nil {
		return err
	}

	switch choice {
	case "a":
		if err := p.decider.Accept(ctx, candidate.ID); err != nil {
			return fmt.Errorf("accept failed: %w", err)
		}
		p.stats.Accepted++
		p.writeResult(FormatSuccess(fmt.Sprintf("Accepted: %s", categoryNames[candidate.CategoryID])))
	case "c":
		categoryID, err := p.promptCategory(ctx, categories)
		if err != nil {
			return err
		}
		if categoryID == candidate.CategoryID {
			// Picking the proposal again is just an accept.
			if err := p.decider.Accept(ctx, candidate.ID); err != nil {
				return fmt.Errorf("accept failed: %w", err)
			}
			p.stats.Accepted++
			p.writeResult(FormatSuccess(fmt.Sprintf("Accepted: %s", categoryNames[candidate.CategoryID])))
			return nil
		}
		if err := p.decider.Correct(ctx, candidate.ID, categoryID); err != nil {
			return fmt.Errorf("correct failed: %w", err)
		}
		p.stats.Corrected++
		p.writeResult(FormatSuccess(fmt.Sprintf("Corrected to: %s", categoryNames[categoryID])))
	case "r":
		if err := p.decider.Reject(ctx, candidate.ID); err != nil {
			return fmt.Errorf("reject failed: %w", err)
		}
		p.stats.Rejected++
		p.writeResult(FormatWarning("Rejected"))
	case "s":
		p.stats.Skipped++
		p.writeResult(SubtleStyle.Render("Skipped"))
	}

	return nil
}

func (p *Prompter) formatCandidate(ctx context.Context, candidate model.Candidate, categoryNames map[int]string) (string, error) {
	txn, err := p.transactions.GetTransactionByID(ctx, candidate.TransactionID)
	if err != nil {
		return "", fmt.Errorf("failed to load transaction %s: %w", candidate.TransactionID, err)
	}

	header := TitleStyle.Render(fmt.Sprintf("Transaction: %s", txn.DisplayName()))

	details := fmt.Sprintf("%s Details:\n", InfoIcon) +
		fmt.Sprintf("  Date: %s\n", txn.Date.Format("Jan 2, 2006")) +
		fmt.Sprintf("  Amount: $%.2f\n", txn.Amount) +
		fmt.Sprintf("  Description: %s\n", txn.Description)

	categoryName := categoryNames[candidate.CategoryID]
	if categoryName == "" {
		categoryName = fmt.Sprintf("category %d", candidate.CategoryID)
	}

	proposal := fmt.Sprintf("\nProposed: %s (%.0f%% confidence, via %s)",
		SuccessStyle.Render(categoryName),
		candidate.Confidence*100,
		candidate.Method)
	if candidate.Reasoning != "" {
		proposal += fmt.Sprintf("\n  %s %s", InfoIcon, candidate.Reasoning)
	}

	return header + "\n\n" + details + proposal, nil
}

// promptCategory shows the numbered active categories and reads a choice
// by number or by exact name.
func (p *Prompter) promptCategory(ctx context.Context, categories []model.Category) (int, error) {
	if _, err := fmt.Fprintln(p.writer, FormatInfo("Available categories:")); err != nil {
		return 0, fmt.Errorf("failed to write category list header: %w", err)
	}
	for i, cat := range categories {
		if _, err := fmt.Fprintf(p.writer, "  %2d. %s\n", i+1, cat.Name); err != nil {
			return 0, fmt.Errorf("failed to write category option: %w", err)
		}
	}

	for {
		if _, err := fmt.Fprintf(p.writer, "%s: ", FormatPrompt("Category (number or name)")); err != nil {
			return 0, fmt.Errorf("failed to write category prompt: %w", err)
		}

		input, err := p.reader.ReadLine(ctx)
		if err != nil {
			return 0, err
		}

		if n, err := strconv.Atoi(input); err == nil {
			if n >= 1 && n <= len(categories) {
				return categories[n-1].ID, nil
			}
		} else {
			for _, cat := range categories {
				if strings.EqualFold(cat.Name, input) {
					return cat.ID, nil
				}
			}
		}

		if _, err := fmt.Fprintln(p.writer, FormatError("Unknown category. Please try again.")); err != nil {
			slog.Warn("failed to write error message", "error", err)
		}
	}
}

func (p *Prompter) promptChoice(ctx context.Context, prompt string, validChoices []string) (string, error) {
	for {
		if _, err := fmt.Fprintf(p.writer, "%s: ", FormatPrompt(prompt)); err != nil {
			return "", fmt.Errorf("failed to write prompt: %w", err)
		}

		input, err := p.reader.ReadLine(ctx)
		if err != nil {
			return "", err
		}

		choice := strings.ToLower(input)
		for _, valid := range validChoices {
			if choice == valid {
				return choice, nil
			}
		}

		if _, err := fmt.Fprintln(p.writer, FormatError("Invalid choice. Please try again.")); err != nil {
			slog.Warn("failed to write error message", "error", err)
		}
	}
}

func (p *Prompter) initProgressBar(total int) {
	p.progressBar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(p.writer),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Reviewing candidates...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(p.writer); err != nil {
				slog.Warn("failed to write newline after progress bar", "error", err)
			}
		}),
	)
}

func (p *Prompter) updateProgress() {
	if p.progressBar != nil {
		if err := p.progressBar.Add(1); err != nil {
			slog.Warn("failed to update progress bar", "error", err)
		}
	}
}

func (p *Prompter) writeResult(message string) {
	if _, err := fmt.Fprintln(p.writer, message); err != nil {
		slog.Warn("failed to write result message", "error", err)
	}
}

func (p *Prompter) finish() ReviewStats {
	if p.progressBar != nil {
		if err := p.progressBar.Finish(); err != nil {
			slog.Warn("failed to finish progress bar", "error", err)
		}
	}

	p.stats.Duration = time.Since(p.startTime)

	total := p.stats.Accepted + p.stats.Corrected + p.stats.Rejected + p.stats.Skipped
	summary := "Review Complete!\n\n" +
		fmt.Sprintf("  • Reviewed: %d\n", total-p.stats.Skipped) +
		fmt.Sprintf("  • Accepted: %d\n", p.stats.Accepted) +
		fmt.Sprintf("  • Corrected: %d\n", p.stats.Corrected) +
		fmt.Sprintf("  • Rejected: %d\n", p.stats.Rejected) +
		fmt.Sprintf("  • Skipped: %d\n", p.stats.Skipped) +
		fmt.Sprintf("  • Time taken: %s\n", p.stats.Duration.Round(time.Second))

	if _, err := fmt.Fprintln(p.writer, RenderBox("Review Complete", summary)); err != nil {
		slog.Warn("failed to write completion box", "error", err)
	}

	return p.stats
}
