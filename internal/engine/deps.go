// Package engine orchestrates the analysis pipeline that turns raw
// transactions into persisted insights.
package engine

import (
	"fmt"
)

// Deps contains all dependencies required by the insight engine.
type Deps struct {
	// Store provides access to the persistence layer.
	Store Store
	// Recurring detects subscription-like billing patterns.
	Recurring RecurringDetector
	// Anomaly scores transactions for statistical outliers.
	Anomaly AnomalyDetector
	// Goals evaluates savings goal feasibility.
	Goals GoalEvaluator
	// Synthesizer ranks, deduplicates, and caps insight candidates.
	Synthesizer *Synthesizer
}

// Validate ensures all required dependencies are provided.
func (d *Deps) Validate() error {
	if d.Store == nil {
		return fmt.Errorf("store dependency is required")
	}
	if d.Recurring == nil {
		return fmt.Errorf("recurring detector dependency is required")
	}
	if d.Anomaly == nil {
		return fmt.Errorf("anomaly detector dependency is required")
	}
	if d.Goals == nil {
		return fmt.Errorf("goal evaluator dependency is required")
	}
	if d.Synthesizer == nil {
		return fmt.Errorf("synthesizer dependency is required")
	}
	return nil
}

// Config holds tuning options for the insight engine.
type Config struct {
	// HistoryWindowDays bounds how far back the recurring detector looks.
	HistoryWindowDays int
	// AnomalyWindowDays bounds the batch the outlier model is fit over.
	AnomalyWindowDays int
	// SubscriptionMinConfidence is the floor below which a recurring
	// candidate is listed but never raised as an insight.
	SubscriptionMinConfidence float64
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		HistoryWindowDays:         365,
		AnomalyWindowDays:         90,
		SubscriptionMinConfidence: 0.6,
	}
}

// NewInsightEngine creates an insight engine with the provided dependencies.
func NewInsightEngine(deps Deps, config Config) (*InsightEngine, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dependencies: %w", err)
	}
	defaults := DefaultConfig()
	if config.HistoryWindowDays == 0 {
		config.HistoryWindowDays = defaults.HistoryWindowDays
	}
	if config.AnomalyWindowDays == 0 {
		config.AnomalyWindowDays = defaults.AnomalyWindowDays
	}
	if config.SubscriptionMinConfidence == 0 {
		config.SubscriptionMinConfidence = defaults.SubscriptionMinConfidence
	}
	return &InsightEngine{
		deps:   deps,
		config: config,
	}, nil
}
