package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ledgerlens/ledgerlens/internal/cli"
)

func askCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask [question...]",
		Short: "Ask a one-off question about your finances",
		Long: `Ask a single question and get an answer grounded in your own data.

The assistant looks up transactions, subscriptions, anomalies, and goals
as needed before answering.

Examples:
  lens ask how much did I spend on groceries last month
  lens ask "which subscriptions should I cancel?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: runAsk,
	}
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	userID := currentUser()
	question := strings.Join(args, " ")

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

	orch, err := buildOrchestrator(store, det)
	if err != nil {
		return fmt.Errorf("failed to create assistant: %w", err)
	}

	resp, err := orch.Ask(ctx, userID, "", question)
	if err != nil {
		return fmt.Errorf("failed to answer: %w", err)
	}

	fmt.Println(resp.Text)
	if len(resp.ToolsUsed) > 0 {
		fmt.Println(cli.SubtleStyle.Render("Looked at: " + strings.Join(resp.ToolsUsed, ", ")))
	}
	if resp.Fallback {
		fmt.Println(cli.FormatWarning("Answered without a language model; set llm.api_key for richer replies."))
	}
	return nil
}
