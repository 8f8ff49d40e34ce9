// Package sheets exports analysis results to Google Sheets.
package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/ledgerlens/ledgerlens/internal/common"
	"github.com/ledgerlens/ledgerlens/internal/model"
	"github.com/ledgerlens/ledgerlens/internal/service"
)

// Writer pushes export reports into a Google spreadsheet, one tab per
// analysis run.
type Writer struct {
	service *sheets.Service
	logger  *slog.Logger
	config  Config
}

// NewWriter creates a new Google Sheets writer.
func NewWriter(ctx context.Context, config Config, logger *slog.Logger) (*Writer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	service, err := createSheetsService(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	if logger == nil {
		logger = slog.Default().With("component", "sheets")
	}
	return &Writer{
		config:  config,
		service: service,
		logger:  logger,
	}, nil
}

// Export writes the report to a tab named after the run time, creating
// the spreadsheet and tab as needed. Rerunning within the same minute
// reuses and clears the tab.
func (w *Writer) Export(ctx context.Context, report ExportReport) error {
	w.logger.Info("starting sheets export",
		"user_id", report.UserID,
		"subscriptions", len(report.Subscriptions),
		"insights", len(report.Insights))

	spreadsheetID, err := w.getOrCreateSpreadsheet(ctx)
	if err != nil {
		return fmt.Errorf("failed to get spreadsheet: %w", err)
	}

	title := tabTitle(report.GeneratedAt)
	sheetID, err := w.ensureTab(ctx, spreadsheetID, title)
	if err != nil {
		return fmt.Errorf("failed to prepare tab: %w", err)
	}

	values := buildRows(report)

	retryOpts := service.RetryOptions{
		MaxAttempts:  w.config.RetryAttempts,
		InitialDelay: w.config.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}

	err = common.WithRetry(ctx, func() error {
		return w.writeData(ctx, spreadsheetID, title, values)
	}, retryOpts)
	if err != nil {
		return fmt.Errorf("failed to write data: %w", err)
	}

	if w.config.EnableFormatting {
		err = common.WithRetry(ctx, func() error {
			return w.applyFormatting(ctx, spreadsheetID, sheetID, len(values))
		}, retryOpts)
		if err != nil {
			// A plain export still counts; formatting is cosmetic.
			w.logger.Warn("failed to apply formatting", "error", err)
		}
	}

	w.logger.Info("sheets export completed",
		"spreadsheet_id", spreadsheetID,
		"tab", title,
		"rows_written", len(values))
	return nil
}

// tabTitle names the tab for one analysis run.
func tabTitle(at time.Time) string {
	return "Run " + at.Format("2006-01-02 15:04")
}

// createSheetsService builds the API client from either a service account
// key or OAuth2 refresh-token credentials.
func createSheetsService(ctx context.Context, config Config) (*sheets.Service, error) {
	var tokenSource oauth2.TokenSource

	if config.ServiceAccountPath != "" {
		jsonKey, err := os.ReadFile(config.ServiceAccountPath)
		if err != nil {
			return nil, fmt.Errorf("unable to read service account key file: %w", err)
		}

		jwtConfig, err := google.JWTConfigFromJSON(jsonKey, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("unable to parse service account key: %w", err)
		}
		tokenSource = jwtConfig.TokenSource(ctx)
	} else {
		oauthConfig := &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{sheets.SpreadsheetsScope},
		}
		tokenSource = oauthConfig.TokenSource(ctx, &oauth2.Token{
			RefreshToken: config.RefreshToken,
			TokenType:    "Bearer",
		})
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(oauth2.NewClient(ctx, tokenSource)))
	if err != nil {
		return nil, fmt.Errorf("unable to create sheets service: %w", err)
	}
	return srv, nil
}

// getOrCreateSpreadsheet verifies the configured spreadsheet or creates a
// fresh one.
func (w *Writer) getOrCreateSpreadsheet(ctx context.Context) (string, error) {
	if w.config.SpreadsheetID != "" {
		_, err := w.service.Spreadsheets.Get(w.config.SpreadsheetID).Context(ctx).Do()
		if err != nil {
			return "", fmt.Errorf("unable to access spreadsheet %s: %w", w.config.SpreadsheetID, err)
		}
		return w.config.SpreadsheetID, nil
	}

	spreadsheet := &sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{
			Title:    w.config.SpreadsheetName,
			TimeZone: w.config.TimeZone,
		},
		Sheets: []*sheets.Sheet{
			{Properties: &sheets.SheetProperties{Title: "Overview"}},
		},
	}

	created, err := w.service.Spreadsheets.Create(spreadsheet).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("unable to create spreadsheet: %w", err)
	}

	w.logger.Info("created new spreadsheet",
		"id", created.SpreadsheetId,
		"url", created.SpreadsheetUrl)
	return created.SpreadsheetId, nil
}

// ensureTab returns the sheet ID for the titled tab, adding it when
// missing and clearing it when a previous run already wrote it.
func (w *Writer) ensureTab(ctx context.Context, spreadsheetID, title string) (int64, error) {
	spreadsheet, err := w.service.Spreadsheets.Get(spreadsheetID).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("unable to read spreadsheet: %w", err)
	}

	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties != nil && sheet.Properties.Title == title {
			clearRange := fmt.Sprintf("'%s'!A:Z", title)
			_, err := w.service.Spreadsheets.Values.Clear(spreadsheetID, clearRange, &sheets.ClearValuesRequest{}).Context(ctx).Do()
			if err != nil {
				return 0, fmt.Errorf("unable to clear tab %q: %w", title, err)
			}
			return sheet.Properties.SheetId, nil
		}
	}

	resp, err := w.service.Spreadsheets.BatchUpdate(spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{
			{AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: title}}},
		},
	}).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("unable to add tab %q: %w", title, err)
	}
	if len(resp.Replies) == 0 || resp.Replies[0].AddSheet == nil || resp.Replies[0].AddSheet.Properties == nil {
		return 0, fmt.Errorf("add tab %q returned no sheet properties", title)
	}
	return resp.Replies[0].AddSheet.Properties.SheetId, nil
}

// buildRows lays out one run's export: a title row, the subscription
// table sorted by monthly cost, and the active insights.
func buildRows(report ExportReport) [][]any {
	estimatedRows := 12 + len(report.Subscriptions) + len(report.Insights)
	values := make([][]any, 0, estimatedRows)

	values = append(values,
		[]any{"LedgerLens Export", report.UserID, report.GeneratedAt.Format("Jan 2, 2006 15:04")},
		[]any{},
		[]any{"Subscriptions"},
	)

	if len(report.Subscriptions) == 0 {
		values = append(values, []any{"No recurring charges detected"})
	} else {
		values = append(values, []any{
			"Merchant", "Cadence", "Typical Amount", "Monthly Cost", "Next Expected", "Confidence", "Charges Seen",
		})

		subscriptions := make([]model.RecurringCandidate, len(report.Subscriptions))
		copy(subscriptions, report.Subscriptions)
		sort.Slice(subscriptions, func(i, j int) bool {
			return subscriptions[i].MonthlyCost() > subscriptions[j].MonthlyCost()
		})

		total := 0.0
		for _, candidate := range subscriptions {
			monthly := candidate.MonthlyCost()
			total += monthly
			values = append(values, []any{
				candidate.Counterparty,
				string(candidate.Frequency),
				candidate.TypicalAmount,
				monthly,
				candidate.NextExpected.Format("2006-01-02"),
				fmt.Sprintf("%.2f", candidate.Confidence),
				len(candidate.Occurrences),
			})
		}
		values = append(values, []any{"Total Monthly Cost", "", "", total})
	}

	values = append(values,
		[]any{},
		[]any{"Active Insights"},
	)

	if len(report.Insights) == 0 {
		values = append(values, []any{"No active insights"})
		return values
	}

	values = append(values, []any{"Created", "Priority", "Amount", "Type", "Title", "Message"})

	insights := make([]model.Insight, len(report.Insights))
	copy(insights, report.Insights)
	sort.Slice(insights, func(i, j int) bool {
		if insights[i].Priority != insights[j].Priority {
			return insights[i].Priority.Weight() > insights[j].Priority.Weight()
		}
		return insights[i].CreatedAt.After(insights[j].CreatedAt)
	})

	for _, insight := range insights {
		amount := any("")
		if insight.Amount != nil {
			amount = *insight.Amount
		}
		values = append(values, []any{
			insight.CreatedAt.Format("2006-01-02"),
			string(insight.Priority),
			amount,
			string(insight.Type),
			insight.Title,
			insight.Message,
		})
	}
	return values
}

// writeData writes rows to the tab in batches to respect API limits.
func (w *Writer) writeData(ctx context.Context, spreadsheetID, title string, values [][]any) error {
	for i := 0; i < len(values); i += w.config.BatchSize {
		end := i + w.config.BatchSize
		if end > len(values) {
			end = len(values)
		}

		rangeStr := fmt.Sprintf("'%s'!A%d", title, i+1)
		_, err := w.service.Spreadsheets.Values.Update(spreadsheetID, rangeStr, &sheets.ValueRange{
			Values: values[i:end],
		}).ValueInputOption("USER_ENTERED").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("failed to write batch starting at row %d: %w", i+1, err)
		}

		w.logger.Debug("wrote batch", "start_row", i+1, "rows", end-i)
	}
	return nil
}

// applyFormatting styles the run tab: bold title, bold first column for
// section headers, currency on the amount columns, frozen title row.
func (w *Writer) applyFormatting(ctx context.Context, spreadsheetID string, sheetID int64, totalRows int) error {
	requests := []*sheets.Request{
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          sheetID,
					StartRowIndex:    0,
					EndRowIndex:      1,
					StartColumnIndex: 0,
					EndColumnIndex:   3,
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						TextFormat: &sheets.TextFormat{Bold: true, FontSize: 14},
					},
				},
				Fields: "userEnteredFormat.textFormat",
			},
		},
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          sheetID,
					StartRowIndex:    2,
					EndRowIndex:      int64(totalRows),
					StartColumnIndex: 0,
					EndColumnIndex:   1,
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						TextFormat: &sheets.TextFormat{Bold: true},
					},
				},
				Fields: "userEnteredFormat.textFormat",
			},
		},
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          sheetID,
					StartRowIndex:    0,
					EndRowIndex:      int64(totalRows),
					StartColumnIndex: 2,
					EndColumnIndex:   4,
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						NumberFormat: &sheets.NumberFormat{Type: "CURRENCY", Pattern: "$#,##0.00"},
					},
				},
				Fields: "userEnteredFormat.numberFormat",
			},
		},
		{
			AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
				Dimensions: &sheets.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "COLUMNS",
					StartIndex: 0,
					EndIndex:   7,
				},
			},
		},
		{
			UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
				Properties: &sheets.SheetProperties{
					SheetId:        sheetID,
					GridProperties: &sheets.GridProperties{FrozenRowCount: 1},
				},
				Fields: "gridProperties.frozenRowCount",
			},
		},
	}

	_, err := w.service.Spreadsheets.BatchUpdate(spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: requests,
	}).Context(ctx).Do()
	return err
}
