// Package storage provides the data persistence layer for the lens application.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ledgerlens/ledgerlens/internal/model"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrEmptySlice         = errors.New("slice cannot be empty")
	ErrInvalidDateRange   = errors.New("start date must be before end date")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrInvalidGoal        = errors.New("invalid goal")
	ErrInvalidInsight     = errors.New("invalid insight")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateTransactions validates a slice of transactions.
func validateTransactions(transactions []model.Transaction) error {
	if transactions == nil {
		return fmt.Errorf("%w: transactions", ErrNilParameter)
	}
	if len(transactions) == 0 {
		return fmt.Errorf("%w: transactions", ErrEmptySlice)
	}

	for i, txn := range transactions {
		if err := validateTransaction(&txn); err != nil {
			return fmt.Errorf("transaction at index %d: %w", i, err)
		}
	}
	return nil
}

// validateTransaction validates a single transaction.
func validateTransaction(txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if txn.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidTransaction)
	}
	if txn.UserID == "" {
		return fmt.Errorf("%w: missing user ID", ErrInvalidTransaction)
	}
	if txn.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidTransaction)
	}
	if txn.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidTransaction)
	}
	return nil
}

// validateGoal validates a goal.
func validateGoal(goal *model.Goal) error {
	if goal == nil {
		return fmt.Errorf("%w: goal", ErrNilParameter)
	}
	if goal.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidGoal)
	}
	if goal.UserID == "" {
		return fmt.Errorf("%w: missing user ID", ErrInvalidGoal)
	}
	if strings.TrimSpace(goal.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidGoal)
	}
	if goal.TargetAmount <= 0 {
		return fmt.Errorf("%w: target amount must be positive", ErrInvalidGoal)
	}
	return nil
}

// validateInsight validates an insight before persistence.
func validateInsight(insight *model.Insight) error {
	if insight == nil {
		return fmt.Errorf("%w: insight", ErrNilParameter)
	}
	if insight.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidInsight)
	}
	if insight.UserID == "" {
		return fmt.Errorf("%w: missing user ID", ErrInvalidInsight)
	}
	if insight.Title == "" {
		return fmt.Errorf("%w: missing title", ErrInvalidInsight)
	}

	switch insight.Type {
	case model.InsightSavingsOpportunity,
		model.InsightSpendingAlert,
		model.InsightGoalProgress,
		model.InsightCelebration,
		model.InsightAnomaly,
		model.InsightPatternDetection,
		model.InsightSubscriptionAlert:
		// Valid type
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidInsight, insight.Type)
	}

	switch insight.Priority {
	case model.PriorityLow, model.PriorityNormal, model.PriorityHigh, model.PriorityUrgent:
		// Valid priority
	default:
		return fmt.Errorf("%w: unknown priority %q", ErrInvalidInsight, insight.Priority)
	}

	return nil
}
