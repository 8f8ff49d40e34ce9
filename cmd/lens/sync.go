package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ledgerlens/ledgerlens/internal/cli"
	"github.com/ledgerlens/ledgerlens/internal/config"
	"github.com/ledgerlens/ledgerlens/internal/model"
	"github.com/ledgerlens/ledgerlens/internal/plaid"
	"github.com/ledgerlens/ledgerlens/internal/simplefin"
)

func syncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync transactions from a connected source",
		Long: `Fetch transactions from your connected accounts and store them
locally. Transactions are deduplicated automatically.

Two sources are supported: Plaid (the default; run "lens sync link"
first to connect an institution) and SimpleFIN (set simplefin.token to
a setup token from your SimpleFIN bridge).`,
		RunE: runSync,
	}

	cmd.Flags().String("source", "plaid", "Transaction source (plaid or simplefin)")
	cmd.Flags().StringP("start-date", "s", "", "Start date (format: 2006-01-02)")
	cmd.Flags().StringP("end-date", "e", "", "End date (format: 2006-01-02)")
	cmd.Flags().IntP("days", "d", 30, "Number of days to sync when no explicit dates are given")
	cmd.Flags().Bool("list-accounts", false, "List linked accounts without syncing")
	cmd.Flags().Bool("dry-run", false, "Fetch and summarize without saving")

	_ = viper.BindPFlag("sync.source", cmd.Flags().Lookup("source"))
	_ = viper.BindPFlag("sync.start_date", cmd.Flags().Lookup("start-date"))
	_ = viper.BindPFlag("sync.end_date", cmd.Flags().Lookup("end-date"))
	_ = viper.BindPFlag("sync.days", cmd.Flags().Lookup("days"))
	_ = viper.BindPFlag("sync.list_accounts", cmd.Flags().Lookup("list-accounts"))
	_ = viper.BindPFlag("sync.dry_run", cmd.Flags().Lookup("dry-run"))

	cmd.AddCommand(syncLinkCmd())

	return cmd
}

// transactionSource is the slice of a source client the sync command
// needs. Both the Plaid and SimpleFIN clients satisfy it.
type transactionSource interface {
	GetTransactions(ctx context.Context, userID string, startDate, endDate time.Time) ([]model.Transaction, error)
	GetAccounts(ctx context.Context) ([]string, error)
}

func buildSource(ctx context.Context) (transactionSource, error) {
	switch source := viper.GetString("sync.source"); source {
	case "", "plaid":
		return plaidClientFromConfig(true)
	case "simplefin":
		return simplefin.NewClient(ctx, simplefin.Config{
			Token:     viper.GetString("simplefin.token"),
			StateFile: config.ExpandPath(viper.GetString("simplefin.state_file")),
		})
	default:
		return nil, fmt.Errorf("unknown sync source %q (want plaid or simplefin)", source)
	}
}

func plaidClientFromConfig(requireToken bool) (*plaid.Client, error) {
	cfg := plaid.Config{
		ClientID:    viper.GetString("plaid.client_id"),
		Secret:      viper.GetString("plaid.secret"),
		Environment: viper.GetString("plaid.environment"),
		AccessToken: viper.GetString("plaid.access_token"),
	}
	if cfg.Environment == "" {
		cfg.Environment = "sandbox"
	}
	if requireToken && cfg.AccessToken == "" {
		return nil, fmt.Errorf("no Plaid access token configured; run \"lens sync link\" first")
	}

	client, err := plaid.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Plaid client: %w", err)
	}
	return client, nil
}

func runSync(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	userID := currentUser()

	client, err := buildSource(ctx)
	if err != nil {
		return err
	}

	if viper.GetBool("sync.list_accounts") {
		accounts, listErr := client.GetAccounts(ctx)
		if listErr != nil {
			return fmt.Errorf("failed to fetch accounts: %w", listErr)
		}
		if len(accounts) == 0 {
			slog.Info(cli.FormatWarning("No accounts found"))
			return nil
		}
		content := fmt.Sprintf("Found %d accounts:\n\n", len(accounts))
		for i, accountID := range accounts {
			content += fmt.Sprintf("%d. %s\n", i+1, accountID)
		}
		slog.Info(cli.RenderBox("Linked Accounts", content))
		return nil
	}

	startDate, endDate, err := parseDateRange(
		viper.GetString("sync.start_date"),
		viper.GetString("sync.end_date"),
		viper.GetInt("sync.days"))
	if err != nil {
		return err
	}

	slog.Info(cli.FormatTitle("Syncing transactions"))
	slog.Info("Date range",
		"source", viper.GetString("sync.source"),
		"start", startDate.Format("2006-01-02"),
		"end", endDate.Format("2006-01-02"))

	transactions, err := client.GetTransactions(ctx, userID, startDate, endDate)
	if err != nil {
		return fmt.Errorf("failed to fetch transactions: %w", err)
	}

	slog.Info(cli.FormatSuccess(fmt.Sprintf("Fetched %d transactions", len(transactions))))
	if len(transactions) == 0 {
		return nil
	}

	if viper.GetBool("sync.dry_run") {
		slog.Info(cli.FormatWarning("Dry run mode - not saving to database"))
		return nil
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

	if err := store.SaveTransactions(ctx, transactions); err != nil {
		return fmt.Errorf("failed to save transactions: %w", err)
	}

	slog.Info(cli.FormatSuccess("Sync complete"))
	return nil
}

func syncLinkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "link",
		Short: "Connect a bank account through Plaid Link",
		Long: `Start the Plaid Link flow to connect an institution.

The command prints a Link token for the hosted Link page. After you
finish linking, paste the public token back here to exchange it for a
permanent access token.`,
		RunE: runSyncLink,
	}
}

func runSyncLink(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	userID := currentUser()

	client, err := plaidClientFromConfig(false)
	if err != nil {
		return err
	}

	linkToken, err := client.CreateLinkToken(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to create link token: %w", err)
	}

	content := fmt.Sprintf(`1. Open https://cdn.plaid.com/link/v2/stable/link.html#token=%s
2. Sign in to your institution
3. Copy the public token shown at the end`, linkToken)
	slog.Info(cli.RenderBox("Connect an Institution", content))

	fmt.Print(cli.FormatPrompt("Public token"))
	reader := cli.NewLineReader(os.Stdin)
	publicToken, err := reader.ReadLine(ctx)
	if err != nil {
		return fmt.Errorf("failed to read public token: %w", err)
	}
	if publicToken == "" {
		return fmt.Errorf("no public token provided")
	}

	accessToken, itemID, err := client.ExchangePublicToken(ctx, publicToken)
	if err != nil {
		return fmt.Errorf("failed to exchange public token: %w", err)
	}

	slog.Info(cli.FormatSuccess("Institution linked"), "item_id", itemID)
	slog.Info("Add the access token to your config to enable syncing",
		"key", "plaid.access_token",
		"value", accessToken)
	return nil
}
