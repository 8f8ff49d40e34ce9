package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Run starts the interactive chat and blocks until the user exits.
func Run(ctx context.Context, config Config) error {
	if config.Asker == nil {
		return fmt.Errorf("asker is required")
	}
	if config.UserID == "" {
		return fmt.Errorf("user ID is required")
	}

	program := tea.NewProgram(
		newChatModel(ctx, config),
		tea.WithContext(ctx),
		tea.WithAltScreen(),
	)

	if _, err := program.Run(); err != nil {
		// Context cancellation is how the surrounding command shuts the
		// chat down; it is not a failure.
		if errors.Is(err, tea.ErrProgramKilled) {
			return nil
		}
		return fmt.Errorf("failed to run chat: %w", err)
	}
	return nil
}
