package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ledgerlens/ledgerlens/internal/cli"
	"github.com/ledgerlens/ledgerlens/internal/config"
	"github.com/ledgerlens/ledgerlens/internal/sheets"
)

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export subscriptions and insights to Google Sheets",
		Long: `Push the current analysis to a Google Sheets spreadsheet: one tab
for recurring charges, one for active insights, and a summary tab.

Credentials come from GOOGLE_SHEETS_* environment variables. Run
'lens export --authorize' once to obtain a refresh token.`,
		RunE: runExport,
	}

	cmd.Flags().Bool("authorize", false, "Run the OAuth2 flow and save a refresh token")
	cmd.Flags().String("spreadsheet-id", "", "Existing spreadsheet to update")
	_ = viper.BindPFlag("sheets.authorize", cmd.Flags().Lookup("authorize"))
	_ = viper.BindPFlag("sheets.spreadsheet_id", cmd.Flags().Lookup("spreadsheet-id"))

	return cmd
}

func runExport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	userID := currentUser()

	if viper.GetBool("sheets.authorize") {
		return runExportAuthorize(cmd)
	}

	sheetsConfig, err := config.LoadSheetsConfig()
	if err != nil {
		return fmt.Errorf("sheets credentials missing: %w", err)
	}

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

	slog.Info(cli.FormatTitle("Exporting to Google Sheets"))

	subscriptions, err := insightEngine.DetectSubscriptions(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to detect subscriptions: %w", err)
	}
	insights, err := store.GetActiveInsights(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load insights: %w", err)
	}

	writer, err := sheets.NewWriter(ctx, *sheetsConfig, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to create sheets writer: %w", err)
	}

	report := sheets.ExportReport{
		GeneratedAt:   time.Now(),
		UserID:        userID,
		Subscriptions: subscriptions,
		Insights:      insights,
	}
	if err := writer.Export(ctx, report); err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	slog.Info(cli.FormatSuccess("Export complete"),
		"subscriptions", len(subscriptions),
		"insights", len(insights))
	return nil
}

func runExportAuthorize(cmd *cobra.Command) error {
	ctx := cmd.Context()

	clientID := viper.GetString("sheets.client_id")
	clientSecret := viper.GetString("sheets.client_secret")
	if clientID == "" || clientSecret == "" {
		return fmt.Errorf("set sheets.client_id and sheets.client_secret before authorizing")
	}

	tokenFile := config.ExpandPath("$HOME/.config/lens/sheets-token.json")

	token, err := sheets.GetOrCreateToken(ctx, sheets.OAuth2Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenFile:    tokenFile,
	})
	if err != nil {
		return fmt.Errorf("authorization failed: %w", err)
	}

	slog.Info(cli.FormatSuccess("Authorization complete"), "token_file", tokenFile)
	if token.RefreshToken != "" {
		fmt.Println(cli.SubtleStyle.Render("Set GOOGLE_SHEETS_REFRESH_TOKEN to: " + token.RefreshToken))
	}
	return nil
}
