package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ledgerlens/ledgerlens/internal/cli"
	"github.com/ledgerlens/ledgerlens/internal/model"
)

func anomaliesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "anomalies",
		Short: "List transactions that look unusual",
		Long: `Score recent transactions against your spending history and list the
outliers, each with plain-language reasons: unusually large amounts,
odd posting hours, or counterparties you have never paid before.`,
		RunE: runAnomalies,
	}
}

func runAnomalies(cmd *cobra.Command, _ []string) error {
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

	det := buildDetectors()
	defer det.Close()

	insightEngine, err := buildEngine(store, det)
	if err != nil {
		return fmt.Errorf("failed to create insight engine: %w", err)
	}

	findings, err := insightEngine.DetectAnomalies(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to detect anomalies: %w", err)
	}

	if len(findings) == 0 {
		fmt.Println(cli.InfoStyle.Render("Nothing unusual in your recent spending."))
		return nil
	}

	fmt.Println(cli.FormatTitle("Unusual Transactions"))
	fmt.Println()
	for i := range findings {
		fmt.Println(formatAnomaly(&findings[i]))
	}
	return nil
}

func formatAnomaly(finding *model.AnomalyFinding) string {
	tx := finding.Transaction
	header := fmt.Sprintf("%s  %s  %s  %s",
		tx.Date.Format("2006-01-02"),
		cli.BoldStyle.Render(tx.MerchantName),
		cli.FormatCurrency(tx.Amount),
		cli.SubtleStyle.Render(fmt.Sprintf("score %.2f", finding.Score)))

	var sb strings.Builder
	sb.WriteString(header)
	for _, reason := range finding.Reasons {
		sb.WriteString("\n    • " + reason)
	}
	sb.WriteString("\n")
	return sb.String()
}
