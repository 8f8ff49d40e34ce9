package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ledgerlens/ledgerlens/internal/cli"
	"github.com/ledgerlens/ledgerlens/internal/common"
	"github.com/ledgerlens/ledgerlens/internal/engine"
)

func analyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze",
		Short: "Run the detectors and generate new insights",
		Long: `Analyze your recent transaction history for recurring charges,
spending anomalies, and savings goal drift, and save the most useful
findings as insights.

The daily insight budget applies: re-running does not flood the feed.

Examples:
  # Analyze and show what was found
  lens analyze

  # Review the resulting feed
  lens insights`,
		RunE: runAnalyze,
	}
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	userID := currentUser()

	interruptHandler := cli.NewInterruptHandler(nil)
	ctx = interruptHandler.HandleInterrupts(ctx, "Run lens analyze again to pick up where you left off.")

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			slog.Error("Failed to close database", "error", closeErr)
		}
	}()

	det := buildDetectors()
	defer det.Close()

	insightEngine, err := buildEngine(store, det)
	if err != nil {
		return fmt.Errorf("failed to create insight engine: %w", err)
	}

	slog.Info(cli.FormatTitle("Analyzing your finances"))

	summary, err := insightEngine.GenerateInsights(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrNoTransactions) {
			slog.Warn(cli.FormatWarning("No transaction history to analyze yet"))
			slog.Info("Import statements with \"lens import\" or connect Plaid with \"lens sync link\".")
			return nil
		}
		if interruptHandler.WasInterrupted() {
			return nil
		}
		return fmt.Errorf("analysis failed: %w", err)
	}

	displayRunSummary(summary)
	return nil
}

func displayRunSummary(summary *engine.RunSummary) {
	onTrack := 0
	for _, result := range summary.GoalResults {
		if result.Result.OnTrack {
			onTrack++
		}
	}

	content := fmt.Sprintf(`Recurring charges: %d
Anomalies flagged: %d
Goals on track: %d of %d
New insights: %d

Completed in %s`,
		len(summary.Subscriptions),
		len(summary.Anomalies),
		onTrack, len(summary.GoalResults),
		len(summary.Insights),
		summary.ProcessingTime.Round(time.Millisecond))

	slog.Info(cli.RenderBox("Analysis Complete", content))

	if len(summary.Insights) == 0 {
		slog.Info("Nothing new today. The feed already covers what the detectors found.")
		return
	}

	var lines []string
	for _, insight := range summary.Insights {
		lines = append(lines, fmt.Sprintf("%s %s", cli.FormatPriority(insight.Priority), insight.Title))
	}
	slog.Info(cli.RenderBox("New Insights", strings.Join(lines, "\n")))
	slog.Info("See the full feed with \"lens insights\".")
}
