package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ledgerlens/ledgerlens/internal/cli"
	"github.com/ledgerlens/ledgerlens/internal/model"
	"github.com/ledgerlens/ledgerlens/internal/ofx"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import [files...]",
		Short: "Import transactions from OFX/QFX files",
		Long: `Import financial transactions from OFX or QFX (Quicken) files exported
from your bank. Transactions are deduplicated automatically, so
re-importing an overlapping statement is safe.

Examples:
  # Import a single file
  lens import ~/Downloads/chase_jan_2024.qfx

  # Import everything a bank exported
  lens import ~/Downloads/chase_*.qfx ~/Downloads/ally_*.ofx`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImport,
	}

	cmd.Flags().Bool("dry-run", false, "Parse and summarize without saving")

	_ = viper.BindPFlag("import.dry_run", cmd.Flags().Lookup("dry-run"))

	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	dryRun := viper.GetBool("import.dry_run")
	userID := currentUser()

	files, err := collectFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no files found to import")
	}

	slog.Info(cli.FormatTitle("Importing statements"))
	slog.Info("Import starting", "files", len(files), "user", userID, "dry_run", dryRun)

	bar := importProgressBar(len(files))

	parser := ofx.NewParser()
	var all []model.Transaction
	seen := make(map[string]bool)
	parsed := 0

	for _, path := range files {
		f, openErr := os.Open(path) // #nosec G304
		if openErr != nil {
			slog.Error("Failed to open file", "file", path, "error", openErr)
			_ = bar.Add(1)
			continue
		}

		transactions, parseErr := parser.ParseFile(ctx, userID, f)
		_ = f.Close()
		if parseErr != nil {
			slog.Error("Failed to parse statement", "file", filepath.Base(path), "error", parseErr)
			_ = bar.Add(1)
			continue
		}
		parsed++

		added := 0
		for _, tx := range transactions {
			if !seen[tx.Hash] {
				seen[tx.Hash] = true
				all = append(all, tx)
				added++
			}
		}
		slog.Debug("Parsed statement",
			"file", filepath.Base(path),
			"transactions", len(transactions),
			"added", added,
			"duplicates", len(transactions)-added)
		_ = bar.Add(1)
	}

	if len(all) == 0 {
		slog.Warn(cli.FormatWarning("No transactions found in any file"))
		return nil
	}

	if dryRun {
		slog.Info(cli.FormatWarning("Dry run mode - not saving to database"))
		displayImportSummary(files, parsed, all)
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

	if err := store.SaveTransactions(ctx, all); err != nil {
		return fmt.Errorf("failed to save transactions: %w", err)
	}

	slog.Info(cli.FormatSuccess("Import complete"))
	displayImportSummary(files, parsed, all)
	return nil
}

// collectFiles expands glob patterns and keeps direct paths that exist.
func collectFiles(patterns []string) ([]string, error) {
	var files []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}
		if len(matches) == 0 {
			if _, statErr := os.Stat(pattern); statErr == nil {
				files = append(files, pattern)
			} else {
				slog.Warn("No files found matching pattern", "pattern", pattern)
			}
			continue
		}
		files = append(files, matches...)
	}
	return files, nil
}

func importProgressBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Parsing statements...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(os.Stderr)
		}),
	)
}

func displayImportSummary(files []string, parsed int, transactions []model.Transaction) {
	var oldest, newest time.Time
	accounts := make(map[string]int)
	var totalOut float64

	for i, tx := range transactions {
		if i == 0 || tx.Date.Before(oldest) {
			oldest = tx.Date
		}
		if i == 0 || tx.Date.After(newest) {
			newest = tx.Date
		}
		accounts[tx.AccountID]++
		if tx.Amount > 0 {
			totalOut += tx.Amount
		}
	}

	content := fmt.Sprintf(`Files parsed: %d of %d
Transactions: %d
Accounts: %d
Date range: %s to %s
Total outflow: %s`,
		parsed, len(files),
		len(transactions),
		len(accounts),
		oldest.Format("2006-01-02"), newest.Format("2006-01-02"),
		cli.FormatCurrency(totalOut))

	slog.Info(cli.RenderBox("Import Summary", content))
}
