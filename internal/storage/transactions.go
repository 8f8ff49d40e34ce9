package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ledgerlens/ledgerlens/internal/common"
	"github.com/ledgerlens/ledgerlens/internal/model"
	"github.com/ledgerlens/ledgerlens/internal/service"
)

// queryable is an interface satisfied by both *sql.DB and *sql.Tx.
type queryable interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// SaveTransactions saves multiple transactions to the database.
func (s *SQLiteStorage) SaveTransactions(ctx context.Context, transactions []model.Transaction) error {
	// Validate inputs
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransactions(transactions); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.saveTransactionsTx(ctx, tx, transactions); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLiteStorage) saveTransactionsTx(ctx context.Context, tx *sql.Tx, transactions []model.Transaction) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO transactions (
			id, user_id, hash, date, posted_at, name, merchant_name,
			category, amount, account_id, transaction_type, check_number, pending
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, txn := range transactions {
		// Generate hash if not already set
		if txn.Hash == "" {
			txn.Hash = txn.GenerateHash()
		}

		var postedAt any
		if txn.Timestamp != nil {
			postedAt = *txn.Timestamp
		}

		_, err = stmt.ExecContext(ctx,
			txn.ID,
			txn.UserID,
			txn.Hash,
			txn.Date,
			postedAt,
			txn.Name,
			txn.MerchantName,
			txn.Category,
			txn.Amount,
			txn.AccountID,
			txn.Type,
			txn.CheckNumber,
			txn.Pending,
		)
		if err != nil {
			return fmt.Errorf("failed to insert transaction %s: %w", txn.ID, err)
		}
	}

	return nil
}

// GetTransactions retrieves a user's transactions matching the filter,
// ordered oldest first.
func (s *SQLiteStorage) GetTransactions(ctx context.Context, userID string, filter service.TransactionFilter) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	return s.getTransactionsTx(ctx, s.db, userID, filter)
}

func (s *SQLiteStorage) getTransactionsTx(ctx context.Context, q queryable, userID string, filter service.TransactionFilter) ([]model.Transaction, error) {
	query := `
		SELECT id, user_id, hash, date, posted_at, name, merchant_name,
		       category, amount, account_id, transaction_type, check_number, pending
		FROM transactions
		WHERE user_id = ?
	`
	args := []any{userID}

	if filter.StartDate != nil {
		query += " AND date >= ?"
		args = append(args, *filter.StartDate)
	}
	if filter.EndDate != nil {
		query += " AND date <= ?"
		args = append(args, *filter.EndDate)
	}
	if filter.Category != "" {
		query += " AND category = ?"
		args = append(args, filter.Category)
	}
	if filter.Counterparty != "" {
		query += " AND merchant_name = ?"
		args = append(args, filter.Counterparty)
	}

	query += " ORDER BY date ASC, id ASC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanTransactions(rows)
}

// GetTransactionByID retrieves a single transaction scoped to a user.
func (s *SQLiteStorage) GetTransactionByID(ctx context.Context, userID, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getTransactionByIDTx(ctx, s.db, userID, id)
}

func (s *SQLiteStorage) getTransactionByIDTx(ctx context.Context, q queryable, userID, id string) (*model.Transaction, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, user_id, hash, date, posted_at, name, merchant_name,
		       category, amount, account_id, transaction_type, check_number, pending
		FROM transactions
		WHERE user_id = ? AND id = ?
	`, userID, id)

	txn, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("transaction %s: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return txn, nil
}

// GetSpendingSummary aggregates a user's cash flow over a period.
func (s *SQLiteStorage) GetSpendingSummary(ctx context.Context, userID string, start, end time.Time) (*service.SpendingSummary, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end date %v is before start date %v", ErrInvalidDateRange, end, start)
	}
	return s.getSpendingSummaryTx(ctx, s.db, userID, start, end)
}

func (s *SQLiteStorage) getSpendingSummaryTx(ctx context.Context, q queryable, userID string, start, end time.Time) (*service.SpendingSummary, error) {
	summary := &service.SpendingSummary{
		ByCategory: make(map[string]service.CategorySummary),
		DateRange:  service.DateRange{Start: start, End: end},
	}

	// Totals across the period; outflows are positive amounts
	row := q.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN amount > 0 THEN amount ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN amount < 0 THEN -amount ELSE 0 END), 0)
		FROM transactions
		WHERE user_id = ? AND date >= ? AND date <= ? AND pending = 0
	`, userID, start, end)
	if err := row.Scan(&summary.TotalOutflow, &summary.TotalInflow); err != nil {
		return nil, fmt.Errorf("failed to aggregate totals: %w", err)
	}
	summary.Net = summary.TotalInflow - summary.TotalOutflow

	rows, err := q.QueryContext(ctx, `
		SELECT COALESCE(NULLIF(category, ''), 'Uncategorized'), COUNT(*), SUM(amount)
		FROM transactions
		WHERE user_id = ? AND date >= ? AND date <= ? AND amount > 0 AND pending = 0
		GROUP BY 1
		ORDER BY SUM(amount) DESC
	`, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var category string
		var cs service.CategorySummary
		if err := rows.Scan(&category, &cs.Count, &cs.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan category summary: %w", err)
		}
		summary.ByCategory[category] = cs
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate category summaries: %w", err)
	}

	return summary, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scan logic.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	var txn model.Transaction
	var postedAt sql.NullTime
	var merchant, category, accountID, txType, checkNum sql.NullString

	err := row.Scan(
		&txn.ID,
		&txn.UserID,
		&txn.Hash,
		&txn.Date,
		&postedAt,
		&txn.Name,
		&merchant,
		&category,
		&txn.Amount,
		&accountID,
		&txType,
		&checkNum,
		&txn.Pending,
	)
	if err != nil {
		return nil, err
	}

	if postedAt.Valid {
		t := postedAt.Time
		txn.Timestamp = &t
	}
	if merchant.Valid {
		txn.MerchantName = merchant.String
	}
	if category.Valid {
		txn.Category = category.String
	}
	if accountID.Valid {
		txn.AccountID = accountID.String
	}
	if txType.Valid {
		txn.Type = txType.String
	}
	if checkNum.Valid {
		txn.CheckNumber = checkNum.String
	}

	return &txn, nil
}

func scanTransactions(rows *sql.Rows) ([]model.Transaction, error) {
	var transactions []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, *txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return transactions, nil
}
