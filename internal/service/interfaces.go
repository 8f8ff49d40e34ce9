// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/ledgerlens/ledgerlens/internal/model"
)

// TransactionFilter defines filtering options for transaction queries.
type TransactionFilter struct {
	StartDate    *time.Time
	EndDate      *time.Time
	Category     string
	Counterparty string
	Limit        int
	Offset       int
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Transaction operations
	SaveTransactions(ctx context.Context, transactions []model.Transaction) error
	GetTransactions(ctx context.Context, userID string, filter TransactionFilter) ([]model.Transaction, error)
	GetTransactionByID(ctx context.Context, userID, id string) (*model.Transaction, error)
	GetSpendingSummary(ctx context.Context, userID string, start, end time.Time) (*SpendingSummary, error)

	// Goal operations
	CreateGoal(ctx context.Context, goal *model.Goal) error
	GetGoal(ctx context.Context, userID, id string) (*model.Goal, error)
	GetGoalByName(ctx context.Context, userID, name string) (*model.Goal, error)
	ListGoals(ctx context.Context, userID string) ([]model.Goal, error)
	UpdateGoalAmounts(ctx context.Context, userID, id string, current, reserved float64) error
	DeleteGoal(ctx context.Context, userID, id string) error

	// Insight operations
	SaveInsights(ctx context.Context, insights []model.Insight) error
	GetActiveInsights(ctx context.Context, userID string, now time.Time) ([]model.Insight, error)
	GetInsightsSince(ctx context.Context, userID string, since time.Time) ([]model.Insight, error)
	CountInsightsCreatedSince(ctx context.Context, userID string, since time.Time) (int, error)
	MarkInsightRead(ctx context.Context, userID, id string) error
	DismissInsight(ctx context.Context, userID, id string) error
	DeleteExpiredInsights(ctx context.Context, before time.Time) (int64, error)

	// Conversation operations
	CreateConversation(ctx context.Context, conversation *model.Conversation) error
	GetConversation(ctx context.Context, userID, id string) (*model.Conversation, error)
	SaveConversationMessage(ctx context.Context, conversationID string, message *model.ConversationMessage) error
	GetConversationMessages(ctx context.Context, conversationID string) ([]model.ConversationMessage, error)

	// Database management
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit() error
	Rollback() error
	// Include all Storage methods for use within transaction
	Storage
}

// DateRange represents a time period with start and end dates.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// CategorySummary contains aggregated statistics for a category.
type CategorySummary struct {
	Count  int
	Amount float64
}

// SpendingSummary contains inflow, outflow, and per-category aggregates for
// a period.
type SpendingSummary struct {
	ByCategory   map[string]CategorySummary
	DateRange    DateRange
	TotalInflow  float64
	TotalOutflow float64
	Net          float64
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
