package assistant

import (
	"context"
	"time"

	"github.com/ledgerlens/ledgerlens/internal/model"
	"github.com/ledgerlens/ledgerlens/internal/service"
)

// Store is the slice of the persistence layer the built-in tools read from.
type Store interface {
	// GetTransactions retrieves transactions matching the filter.
	GetTransactions(ctx context.Context, userID string, filter service.TransactionFilter) ([]model.Transaction, error)
	// GetSpendingSummary aggregates inflows and outflows over a window.
	GetSpendingSummary(ctx context.Context, userID string, start, end time.Time) (*service.SpendingSummary, error)
	// ListGoals retrieves all savings goals for a user.
	ListGoals(ctx context.Context, userID string) ([]model.Goal, error)
	// GetGoalByName retrieves a single goal by its exact name.
	GetGoalByName(ctx context.Context, userID, name string) (*model.Goal, error)
	// GetActiveInsights retrieves unexpired, undismissed insights.
	GetActiveInsights(ctx context.Context, userID string, now time.Time) ([]model.Insight, error)
}

// ConversationStore persists assistant conversations and their turns.
type ConversationStore interface {
	// CreateConversation starts a new conversation.
	CreateConversation(ctx context.Context, conversation *model.Conversation) error
	// GetConversation retrieves a conversation scoped to a user.
	GetConversation(ctx context.Context, userID, id string) (*model.Conversation, error)
	// SaveConversationMessage appends one turn to a conversation.
	SaveConversationMessage(ctx context.Context, conversationID string, message *model.ConversationMessage) error
	// GetConversationMessages returns a conversation's turns in order.
	GetConversationMessages(ctx context.Context, conversationID string) ([]model.ConversationMessage, error)
}

// SubscriptionDetector finds counterparties that bill on a regular cadence.
type SubscriptionDetector interface {
	Detect(transactions []model.Transaction) []model.RecurringCandidate
}

// OutlierDetector scores a transaction batch for statistical outliers.
type OutlierDetector interface {
	Detect(ctx context.Context, transactions []model.Transaction) ([]model.AnomalyFinding, error)
}

// FeasibilityEvaluator judges whether a savings goal is reachable.
type FeasibilityEvaluator interface {
	Evaluate(snapshot model.GoalSnapshot, now time.Time, currentMonthlyRate float64) model.FeasibilityResult
}
