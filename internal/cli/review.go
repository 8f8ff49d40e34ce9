package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ledgerlens/ledgerlens/internal/model"
)

// InsightStore is the slice of storage the reviewer needs.
type InsightStore interface {
	MarkInsightRead(ctx context.Context, userID, id string) error
	DismissInsight(ctx context.Context, userID, id string) error
}

// ReviewStats summarizes one review session.
type ReviewStats struct {
	Duration   time.Duration
	Reviewed   int
	MarkedRead int
	Dismissed  int
	Skipped    int
}

// Reviewer walks a user through their active insights one at a time,
// applying read and dismiss decisions as they are made.
type Reviewer struct {
	startTime time.Time
	store     InsightStore
	reader    *LineReader
	writer    io.Writer
	stats     ReviewStats
}

// NewReviewer creates a reviewer with the given input and output streams,
// defaulting to stdin and stdout.
func NewReviewer(store InsightStore, reader io.Reader, writer io.Writer) *Reviewer {
	if reader == nil {
		reader = os.Stdin
	}
	if writer == nil {
		writer = os.Stdout
	}

	return &Reviewer{
		startTime: time.Now(),
		store:     store,
		reader:    NewLineReader(reader),
		writer:    writer,
	}
}

// Review presents each insight in order and applies the chosen action.
// It returns early on quit, exhausted input, or context cancellation.
func (r *Reviewer) Review(ctx context.Context, userID string, insights []model.Insight) (ReviewStats, error) {
	if len(insights) == 0 {
		if _, err := fmt.Fprintln(r.writer, FormatInfo("No active insights to review.")); err != nil {
			return r.Stats(), fmt.Errorf("failed to write empty notice: %w", err)
		}
		return r.Stats(), nil
	}

	for i, insight := range insights {
		select {
		case <-ctx.Done():
			return r.Stats(), ctx.Err()
		default:
		}

		if _, err := fmt.Fprintf(r.writer, "\n[%d/%d]\n", i+1, len(insights)); err != nil {
			return r.Stats(), fmt.Errorf("failed to write progress: %w", err)
		}
		if _, err := fmt.Fprintln(r.writer, RenderBox("Insight", r.formatInsight(insight))); err != nil {
			return r.Stats(), fmt.Errorf("failed to write insight box: %w", err)
		}
		if _, err := fmt.Fprintln(r.writer, "  [R] Mark read   [D] Dismiss   [S] Skip   [Q] Quit"); err != nil {
			return r.Stats(), fmt.Errorf("failed to write options: %w", err)
		}

		choice, err := r.promptChoice(ctx, "Choice", []string{"r", "d", "s", "q"})
		if err != nil {
			return r.Stats(), err
		}

		switch choice {
		case "r":
			if err := r.store.MarkInsightRead(ctx, userID, insight.ID); err != nil {
				return r.Stats(), fmt.Errorf("failed to mark insight read: %w", err)
			}
			r.stats.MarkedRead++
			r.stats.Reviewed++
			if _, err := fmt.Fprintln(r.writer, FormatSuccess("Marked read")); err != nil {
				slog.Warn("Failed to write confirmation", "error", err)
			}
		case "d":
			if err := r.store.DismissInsight(ctx, userID, insight.ID); err != nil {
				return r.Stats(), fmt.Errorf("failed to dismiss insight: %w", err)
			}
			r.stats.Dismissed++
			r.stats.Reviewed++
			if _, err := fmt.Fprintln(r.writer, FormatWarning("Dismissed")); err != nil {
				slog.Warn("Failed to write confirmation", "error", err)
			}
		case "s":
			r.stats.Skipped++
			r.stats.Reviewed++
		case "q":
			return r.Stats(), nil
		}
	}

	return r.Stats(), nil
}

// Stats returns the session counters with the elapsed duration filled in.
func (r *Reviewer) Stats() ReviewStats {
	stats := r.stats
	stats.Duration = time.Since(r.startTime)
	return stats
}

// ShowSummary prints a closing summary box for the session.
func (r *Reviewer) ShowSummary() {
	stats := r.Stats()

	summary := fmt.Sprintf("%s Session:\n", ChartIcon) +
		fmt.Sprintf("  • Reviewed: %d\n", stats.Reviewed) +
		fmt.Sprintf("  • Marked read: %d\n", stats.MarkedRead) +
		fmt.Sprintf("  • Dismissed: %d\n", stats.Dismissed) +
		fmt.Sprintf("  • Skipped: %d\n", stats.Skipped) +
		fmt.Sprintf("  • Time taken: %s\n", stats.Duration.Round(time.Second))

	if _, err := fmt.Fprintln(r.writer, RenderBox("Review Complete", summary)); err != nil {
		slog.Warn("Failed to write summary box", "error", err)
	}
}

func (r *Reviewer) formatInsight(insight model.Insight) string {
	header := TitleStyle.Render(insight.Title)

	details := fmt.Sprintf("%s  %s\n\n", FormatPriority(insight.Priority), SubtleStyle.Render(string(insight.Type))) +
		insight.Message + "\n"

	if insight.Amount != nil {
		details += fmt.Sprintf("\n  Amount: %s", FormatCurrency(*insight.Amount))
	}
	if insight.Category != "" {
		details += fmt.Sprintf("\n  Category: %s", insight.Category)
	}
	details += fmt.Sprintf("\n  Created: %s", insight.CreatedAt.Format("Jan 2, 2006"))

	return header + "\n\n" + details
}

func (r *Reviewer) promptChoice(ctx context.Context, prompt string, validChoices []string) (string, error) {
	for {
		if _, err := fmt.Fprint(r.writer, FormatPrompt(prompt)); err != nil {
			return "", fmt.Errorf("failed to write prompt: %w", err)
		}

		input, err := r.reader.ReadLine(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", fmt.Errorf("input terminated")
			}
			return "", err
		}

		choice := strings.ToLower(input)
		for _, valid := range validChoices {
			if choice == valid {
				return choice, nil
			}
		}

		if _, err := fmt.Fprintln(r.writer, FormatError("Invalid choice. Please try again.")); err != nil {
			slog.Warn("Failed to write error message", "error", err)
		}
	}
}
