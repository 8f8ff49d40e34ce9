package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/ledgerlens/ledgerlens/internal/model"
	"github.com/ledgerlens/ledgerlens/internal/service"
)

// DetectSubscriptions runs only the recurring detector over the user's
// recent history. An empty history yields an empty list rather than an
// error, so query surfaces can serve users who have not imported yet.
func (e *InsightEngine) DetectSubscriptions(ctx context.Context, userID string) ([]model.RecurringCandidate, error) {
	transactions, err := e.loadHistory(ctx, userID, time.Now(), e.config.HistoryWindowDays)
	if err != nil {
		return nil, err
	}
	if len(transactions) == 0 {
		return nil, nil
	}
	return e.deps.Recurring.Detect(transactions), nil
}

// DetectAnomalies scores only the recent anomaly window.
func (e *InsightEngine) DetectAnomalies(ctx context.Context, userID string) ([]model.AnomalyFinding, error) {
	transactions, err := e.loadHistory(ctx, userID, time.Now(), e.config.AnomalyWindowDays)
	if err != nil {
		return nil, err
	}
	if len(transactions) == 0 {
		return nil, nil
	}
	findings, err := e.deps.Anomaly.Detect(ctx, transactions)
	if err != nil {
		return nil, fmt.Errorf("failed to score anomalies: %w", err)
	}
	return findings, nil
}

// EvaluateGoals runs the feasibility calculator over every goal at the
// user's observed saving rate.
func (e *InsightEngine) EvaluateGoals(ctx context.Context, userID string) ([]GoalResult, error) {
	return e.evaluateGoals(ctx, userID, time.Now())
}

// loadHistory loads the trailing window of transactions.
func (e *InsightEngine) loadHistory(ctx context.Context, userID string, now time.Time, windowDays int) ([]model.Transaction, error) {
	windowStart := now.AddDate(0, 0, -windowDays)
	transactions, err := e.deps.Store.GetTransactions(ctx, userID, service.TransactionFilter{
		StartDate: &windowStart,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	return transactions, nil
}
