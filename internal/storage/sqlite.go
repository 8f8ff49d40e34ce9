package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ledgerlens/ledgerlens/internal/model"
	"github.com/ledgerlens/ledgerlens/internal/service"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	// Validate input
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	// Ensure directory exists
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// Open database
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite doesn't benefit from multiple connections
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new database transaction.
func (s *SQLiteStorage) BeginTx(ctx context.Context) (service.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return &sqliteTransaction{
		tx:      tx,
		storage: s,
	}, nil
}

// sqliteTransaction wraps sql.Tx to implement service.Transaction.
type sqliteTransaction struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTransaction) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTransaction) Rollback() error {
	return t.tx.Rollback()
}

// Transaction methods delegate to the main storage with the transaction.
func (t *sqliteTransaction) SaveTransactions(ctx context.Context, transactions []model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransactions(transactions); err != nil {
		return err
	}
	return t.storage.saveTransactionsTx(ctx, t.tx, transactions)
}

func (t *sqliteTransaction) GetTransactions(ctx context.Context, userID string, filter service.TransactionFilter) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	return t.storage.getTransactionsTx(ctx, t.tx, userID, filter)
}

func (t *sqliteTransaction) GetTransactionByID(ctx context.Context, userID, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return t.storage.getTransactionByIDTx(ctx, t.tx, userID, id)
}

func (t *sqliteTransaction) GetSpendingSummary(ctx context.Context, userID string, start, end time.Time) (*service.SpendingSummary, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end date %v is before start date %v", ErrInvalidDateRange, end, start)
	}
	return t.storage.getSpendingSummaryTx(ctx, t.tx, userID, start, end)
}

func (t *sqliteTransaction) CreateGoal(ctx context.Context, goal *model.Goal) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateGoal(goal); err != nil {
		return err
	}
	return t.storage.createGoalTx(ctx, t.tx, goal)
}

func (t *sqliteTransaction) GetGoal(ctx context.Context, userID, id string) (*model.Goal, error) {
	return t.storage.getGoalTx(ctx, t.tx, userID, id)
}

func (t *sqliteTransaction) GetGoalByName(ctx context.Context, userID, name string) (*model.Goal, error) {
	return t.storage.getGoalByNameTx(ctx, t.tx, userID, name)
}

func (t *sqliteTransaction) ListGoals(ctx context.Context, userID string) ([]model.Goal, error) {
	return t.storage.listGoalsTx(ctx, t.tx, userID)
}

func (t *sqliteTransaction) UpdateGoalAmounts(ctx context.Context, userID, id string, current, reserved float64) error {
	return t.storage.updateGoalAmountsTx(ctx, t.tx, userID, id, current, reserved)
}

func (t *sqliteTransaction) DeleteGoal(ctx context.Context, userID, id string) error {
	return t.storage.deleteGoalTx(ctx, t.tx, userID, id)
}

func (t *sqliteTransaction) SaveInsights(ctx context.Context, insights []model.Insight) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.saveInsightsTx(ctx, t.tx, insights)
}

func (t *sqliteTransaction) GetActiveInsights(ctx context.Context, userID string, now time.Time) ([]model.Insight, error) {
	return t.storage.getActiveInsightsTx(ctx, t.tx, userID, now)
}

func (t *sqliteTransaction) GetInsightsSince(ctx context.Context, userID string, since time.Time) ([]model.Insight, error) {
	return t.storage.getInsightsSinceTx(ctx, t.tx, userID, since)
}

func (t *sqliteTransaction) CountInsightsCreatedSince(ctx context.Context, userID string, since time.Time) (int, error) {
	return t.storage.countInsightsCreatedSinceTx(ctx, t.tx, userID, since)
}

func (t *sqliteTransaction) MarkInsightRead(ctx context.Context, userID, id string) error {
	return t.storage.markInsightReadTx(ctx, t.tx, userID, id)
}

func (t *sqliteTransaction) DismissInsight(ctx context.Context, userID, id string) error {
	return t.storage.dismissInsightTx(ctx, t.tx, userID, id)
}

func (t *sqliteTransaction) DeleteExpiredInsights(ctx context.Context, before time.Time) (int64, error) {
	return t.storage.deleteExpiredInsightsTx(ctx, t.tx, before)
}

func (t *sqliteTransaction) CreateConversation(ctx context.Context, conversation *model.Conversation) error {
	return t.storage.createConversationTx(ctx, t.tx, conversation)
}

func (t *sqliteTransaction) GetConversation(ctx context.Context, userID, id string) (*model.Conversation, error) {
	return t.storage.getConversationTx(ctx, t.tx, userID, id)
}

func (t *sqliteTransaction) SaveConversationMessage(ctx context.Context, conversationID string, message *model.ConversationMessage) error {
	return t.storage.saveConversationMessageTx(ctx, t.tx, conversationID, message)
}

func (t *sqliteTransaction) GetConversationMessages(ctx context.Context, conversationID string) ([]model.ConversationMessage, error) {
	return t.storage.getConversationMessagesTx(ctx, t.tx, conversationID)
}

func (t *sqliteTransaction) Migrate(_ context.Context) error {
	// Migrations should not be run within a transaction
	return fmt.Errorf("migrations cannot be run within a transaction")
}

func (t *sqliteTransaction) BeginTx(_ context.Context) (service.Transaction, error) {
	// Nested transactions not supported
	return nil, fmt.Errorf("nested transactions not supported")
}

func (t *sqliteTransaction) Close() error {
	// Transactions should be committed or rolled back, not closed
	return fmt.Errorf("transactions must be committed or rolled back, not closed")
}
