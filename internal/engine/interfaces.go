package engine

import (
	"context"
	"time"

	"github.com/ledgerlens/ledgerlens/internal/model"
	"github.com/ledgerlens/ledgerlens/internal/service"
)

// RecurringDetector finds counterparties that bill on a regular cadence.
type RecurringDetector interface {
	// Detect returns recurring candidates ordered by confidence.
	Detect(transactions []model.Transaction) []model.RecurringCandidate
}

// AnomalyDetector scores a transaction batch for statistical outliers.
// Implementations run the CPU-bound model fit off the request path.
type AnomalyDetector interface {
	// Detect returns outlier findings ordered by score.
	Detect(ctx context.Context, transactions []model.Transaction) ([]model.AnomalyFinding, error)
}

// GoalEvaluator judges whether a savings goal is reachable.
type GoalEvaluator interface {
	// Evaluate compares goal progress against its deadline given the
	// user's current monthly saving rate.
	Evaluate(snapshot model.GoalSnapshot, now time.Time, currentMonthlyRate float64) model.FeasibilityResult
}

// Store is the slice of the persistence layer the insight engine needs.
type Store interface {
	// GetTransactions retrieves transactions matching the filter.
	GetTransactions(ctx context.Context, userID string, filter service.TransactionFilter) ([]model.Transaction, error)
	// GetSpendingSummary aggregates inflows and outflows over a window.
	GetSpendingSummary(ctx context.Context, userID string, start, end time.Time) (*service.SpendingSummary, error)
	// ListGoals retrieves all savings goals for a user.
	ListGoals(ctx context.Context, userID string) ([]model.Goal, error)
	// SaveInsights persists generated insights.
	SaveInsights(ctx context.Context, insights []model.Insight) error
	// GetInsightsSince retrieves insights created on or after a cutoff,
	// including read and dismissed ones.
	GetInsightsSince(ctx context.Context, userID string, since time.Time) ([]model.Insight, error)
	// CountInsightsCreatedSince counts insights created on or after a cutoff.
	CountInsightsCreatedSince(ctx context.Context, userID string, since time.Time) (int, error)
	// DeleteExpiredInsights removes insights past their expiry.
	DeleteExpiredInsights(ctx context.Context, before time.Time) (int64, error)
}
