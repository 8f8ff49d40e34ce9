package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ledgerlens/ledgerlens/internal/cli"
	"github.com/ledgerlens/ledgerlens/internal/model"
)

func insightsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "insights",
		Short: "Show active insights",
		Long: `List every active insight, newest and most urgent first.

With --review, step through insights one at a time and mark each as
read or dismissed.`,
		RunE: runInsights,
	}

	cmd.Flags().Bool("review", false, "Review insights interactively")
	_ = viper.BindPFlag("insights.review", cmd.Flags().Lookup("review"))

	cmd.AddCommand(insightsReadCmd())
	cmd.AddCommand(insightsDismissCmd())

	return cmd
}

func runInsights(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	userID := currentUser()

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			slog.Error("Failed to close database", "error", closeErr)
		}
	}()

	insights, err := store.GetActiveInsights(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load insights: %w", err)
	}

	if len(insights) == 0 {
		fmt.Println(cli.InfoStyle.Render("No active insights. Run 'lens analyze' to generate some."))
		return nil
	}

	if viper.GetBool("insights.review") {
		reviewer := cli.NewReviewer(store, os.Stdin, os.Stdout)
		if _, err := reviewer.Review(ctx, userID, insights); err != nil {
			return fmt.Errorf("review session failed: %w", err)
		}
		reviewer.ShowSummary()
		return nil
	}

	fmt.Println(cli.FormatTitle("Active Insights"))
	fmt.Println()
	for i := range insights {
		fmt.Println(formatInsightLine(&insights[i]))
	}
	fmt.Println(cli.SubtleStyle.Render("Review them one at a time with 'lens insights --review'."))
	return nil
}

func formatInsightLine(insight *model.Insight) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s %s\n", cli.FormatPriority(insight.Priority), cli.BoldStyle.Render(insight.Title)))
	sb.WriteString("   " + insight.Message + "\n")
	sb.WriteString(cli.SubtleStyle.Render(fmt.Sprintf("   %s · %s · id %s",
		insight.Type, insight.CreatedAt.Format("Jan 2"), insight.ID)))
	return sb.String()
}

func insightsReadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "read [id]",
		Short: "Mark an insight as read",
		Args:  cobra.ExactArgs(1),
		RunE:  runInsightsRead,
	}
}

func runInsightsRead(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	userID := currentUser()

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			slog.Error("Failed to close database", "error", closeErr)
		}
	}()

	if err := store.MarkInsightRead(ctx, userID, args[0]); err != nil {
		return fmt.Errorf("failed to mark insight read: %w", err)
	}
	slog.Info(cli.FormatSuccess("Insight marked read"), "id", args[0])
	return nil
}

func insightsDismissCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dismiss [id]",
		Short: "Dismiss an insight",
		Args:  cobra.ExactArgs(1),
		RunE:  runInsightsDismiss,
	}
}

func runInsightsDismiss(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	userID := currentUser()

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			slog.Error("Failed to close database", "error", closeErr)
		}
	}()

	if err := store.DismissInsight(ctx, userID, args[0]); err != nil {
		return fmt.Errorf("failed to dismiss insight: %w", err)
	}
	slog.Info(cli.FormatSuccess("Insight dismissed"), "id", args[0])
	return nil
}
