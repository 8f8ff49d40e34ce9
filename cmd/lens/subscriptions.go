package main

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ledgerlens/ledgerlens/internal/cli"
	"github.com/ledgerlens/ledgerlens/internal/model"
)

func subscriptionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subscriptions",
		Short: "List detected recurring charges",
		Long: `Scan your transaction history for subscription-like billing patterns:
charges from the same counterparty at a steady cadence and amount.

Candidates are shown with a confidence score; low-confidence candidates
appear here but never become insights on their own.`,
		RunE: runSubscriptions,
	}

	cmd.Flags().Float64("min-confidence", 0, "Hide candidates below this confidence (0-1)")

	_ = viper.BindPFlag("subscriptions.min_confidence", cmd.Flags().Lookup("min-confidence"))

	return cmd
}

func runSubscriptions(cmd *cobra.Command, _ []string) error {
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

	candidates, err := insightEngine.DetectSubscriptions(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to detect subscriptions: %w", err)
	}

	minConfidence := viper.GetFloat64("subscriptions.min_confidence")
	if minConfidence > 0 {
		kept := candidates[:0]
		for _, candidate := range candidates {
			if candidate.Confidence >= minConfidence {
				kept = append(kept, candidate)
			}
		}
		candidates = kept
	}

	if len(candidates) == 0 {
		fmt.Println(cli.InfoStyle.Render("No recurring charges detected. Import more history with 'lens import' first."))
		return nil
	}

	// Biggest budget lines first.
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].MonthlyCost() > candidates[j].MonthlyCost()
	})

	fmt.Println(cli.FormatTitle("Recurring Charges"))
	fmt.Println()
	fmt.Print(renderSubscriptionsTable(candidates))
	return nil
}

func renderSubscriptionsTable(candidates []model.RecurringCandidate) string {
	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
		cli.TableHeaderStyle.Render("Merchant"),
		cli.TableHeaderStyle.Render("Cadence"),
		cli.TableHeaderStyle.Render("Typical"),
		cli.TableHeaderStyle.Render("Monthly"),
		cli.TableHeaderStyle.Render("Next Expected"),
		cli.TableHeaderStyle.Render("Confidence"))
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
		strings.Repeat("─", 20),
		strings.Repeat("─", 9),
		strings.Repeat("─", 8),
		strings.Repeat("─", 8),
		strings.Repeat("─", 13),
		strings.Repeat("─", 10))

	var totalMonthly float64
	for i := range candidates {
		candidate := &candidates[i]
		totalMonthly += candidate.MonthlyCost()
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			candidate.Counterparty,
			string(candidate.Frequency),
			cli.FormatCurrency(candidate.TypicalAmount),
			cli.FormatCurrency(candidate.MonthlyCost()),
			candidate.NextExpected.Format("2006-01-02"),
			cli.FormatConfidence(candidate.Confidence))
	}

	fmt.Fprintf(w, "\t\t\t\t\t\n")
	fmt.Fprintf(w, "%s\t\t\t%s\t\t\n",
		cli.BoldStyle.Render("Total per month"),
		cli.BoldStyle.Render(cli.FormatCurrency(totalMonthly)))

	if err := w.Flush(); err != nil {
		slog.Warn("Failed to flush table writer", "error", err)
	}
	return sb.String()
}
