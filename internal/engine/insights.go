package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/ledgerlens/ledgerlens/internal/common"
	"github.com/ledgerlens/ledgerlens/internal/model"
	"github.com/ledgerlens/ledgerlens/internal/service"
)

// InsightEngine runs the detectors over a user's history and persists the
// synthesized insights.
type InsightEngine struct {
	deps   Deps
	config Config
	flight singleflight.Group
}

// RunSummary reports what a single analysis pass found and saved.
type RunSummary struct {
	Insights       []model.Insight
	Subscriptions  []model.RecurringCandidate
	Anomalies      []model.AnomalyFinding
	GoalResults    []GoalResult
	ProcessingTime time.Duration
}

// GoalResult pairs a goal with its feasibility verdict.
type GoalResult struct {
	Result model.FeasibilityResult
	Goal   model.Goal
}

// GenerateInsights analyzes a user's recent history end to end. Concurrent
// calls for the same user share one run instead of racing on the daily cap.
func (e *InsightEngine) GenerateInsights(ctx context.Context, userID string) (*RunSummary, error) {
	result, err, _ := e.flight.Do(userID, func() (any, error) {
		return e.generate(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	summary, ok := result.(*RunSummary)
	if !ok {
		return nil, fmt.Errorf("unexpected analysis result type %T", result)
	}
	return summary, nil
}

func (e *InsightEngine) generate(ctx context.Context, userID string) (*RunSummary, error) {
	startTime := time.Now()
	now := time.Now()
	windowStart := now.AddDate(0, 0, -e.config.HistoryWindowDays)

	transactions, err := e.deps.Store.GetTransactions(ctx, userID, service.TransactionFilter{
		StartDate: &windowStart,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	if len(transactions) == 0 {
		return nil, common.ErrNoTransactions
	}

	slog.Info("Starting insight generation",
		"user_id", userID,
		"transactions", len(transactions),
		"window_days", e.config.HistoryWindowDays)

	summary := &RunSummary{}
	anomalyBatch := recentTransactions(transactions, now.AddDate(0, 0, -e.config.AnomalyWindowDays))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		summary.Subscriptions = e.deps.Recurring.Detect(transactions)
		return nil
	})
	g.Go(func() error {
		findings, anomalyErr := e.deps.Anomaly.Detect(gctx, anomalyBatch)
		if anomalyErr != nil {
			return fmt.Errorf("failed to score anomalies: %w", anomalyErr)
		}
		summary.Anomalies = findings
		return nil
	})
	g.Go(func() error {
		results, goalErr := e.evaluateGoals(gctx, userID, now)
		if goalErr != nil {
			return goalErr
		}
		summary.GoalResults = results
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	candidates := e.buildCandidates(userID, now, summary)
	insights, err := e.selectCandidates(ctx, userID, now, candidates)
	if err != nil {
		return nil, err
	}

	if len(insights) > 0 {
		if err := e.deps.Store.SaveInsights(ctx, insights); err != nil {
			return nil, fmt.Errorf("failed to save insights: %w", err)
		}
	}
	summary.Insights = insights

	if purged, purgeErr := e.deps.Store.DeleteExpiredInsights(ctx, now); purgeErr != nil {
		slog.Warn("Failed to purge expired insights", "error", purgeErr)
	} else if purged > 0 {
		slog.Debug("Purged expired insights", "count", purged)
	}

	summary.ProcessingTime = time.Since(startTime)
	slog.Info("Insight generation complete",
		"user_id", userID,
		"subscriptions", len(summary.Subscriptions),
		"anomalies", len(summary.Anomalies),
		"goals", len(summary.GoalResults),
		"insights_saved", len(summary.Insights),
		"duration", summary.ProcessingTime)

	return summary, nil
}

// evaluateGoals runs the feasibility calculator over every goal using the
// user's observed net saving rate.
func (e *InsightEngine) evaluateGoals(ctx context.Context, userID string, now time.Time) ([]GoalResult, error) {
	goals, err := e.deps.Store.ListGoals(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}
	if len(goals) == 0 {
		return nil, nil
	}

	rate, err := e.monthlySavingRate(ctx, userID, now)
	if err != nil {
		return nil, err
	}

	results := make([]GoalResult, 0, len(goals))
	for _, goal := range goals {
		results = append(results, GoalResult{
			Goal:   goal,
			Result: e.deps.Goals.Evaluate(goal.Snapshot(), now, rate),
		})
	}
	return results, nil
}

// monthlySavingRate estimates how much the user sets aside per month from
// net cash flow over the analysis window. Negative flow clamps to zero.
func (e *InsightEngine) monthlySavingRate(ctx context.Context, userID string, now time.Time) (float64, error) {
	windowStart := now.AddDate(0, 0, -e.config.HistoryWindowDays)
	spending, err := e.deps.Store.GetSpendingSummary(ctx, userID, windowStart, now)
	if err != nil {
		return 0, fmt.Errorf("failed to load spending summary: %w", err)
	}

	months := float64(e.config.HistoryWindowDays) / 30.44
	if months <= 0 {
		return 0, nil
	}
	rate := spending.Net / months
	if rate < 0 {
		return 0, nil
	}
	return rate, nil
}

// selectCandidates applies the dedup window and the daily cap, then stamps
// the survivors for persistence.
func (e *InsightEngine) selectCandidates(ctx context.Context, userID string, now time.Time, candidates []model.Insight) ([]model.Insight, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	dedupStart := now.AddDate(0, 0, -e.deps.Synthesizer.config.DedupWindowDays)
	recent, err := e.deps.Store.GetInsightsSince(ctx, userID, dedupStart)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent insights: %w", err)
	}

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	usedToday, err := e.deps.Store.CountInsightsCreatedSince(ctx, userID, dayStart)
	if err != nil {
		return nil, fmt.Errorf("failed to count today's insights: %w", err)
	}

	return e.deps.Synthesizer.Synthesize(candidates, recent, usedToday, now), nil
}

// recentTransactions filters to entries dated on or after the cutoff.
func recentTransactions(transactions []model.Transaction, cutoff time.Time) []model.Transaction {
	recent := make([]model.Transaction, 0, len(transactions))
	for _, txn := range transactions {
		if !txn.Date.Before(cutoff) {
			recent = append(recent, txn)
		}
	}
	return recent
}
