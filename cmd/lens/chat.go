package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ledgerlens/ledgerlens/internal/tui"
)

func chatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the finance assistant",
		Long: `Open an interactive chat session with the finance assistant.

The conversation keeps its context until you quit, so follow-up
questions work naturally. Quit with Ctrl+C or Esc.`,
		RunE: runChat,
	}

	cmd.Flags().String("conversation", "", "Resume an existing conversation by ID")
	_ = viper.BindPFlag("chat.conversation", cmd.Flags().Lookup("conversation"))

	return cmd
}

func runChat(cmd *cobra.Command, _ []string) error {
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

	orch, err := buildOrchestrator(store, det)
	if err != nil {
		return fmt.Errorf("failed to create assistant: %w", err)
	}

	return tui.Run(ctx, tui.Config{
		Asker:          orch,
		UserID:         userID,
		ConversationID: viper.GetString("chat.conversation"),
	})
}
