package plaid

import (
	"context"
	"time"

	"github.com/ledgerlens/ledgerlens/internal/model"
)

// MockClient is a test double for TransactionFetcher.
type MockClient struct {
	GetTransactionsFn func(ctx context.Context, userID string, startDate, endDate time.Time) ([]model.Transaction, error)
	GetAccountsFn     func(ctx context.Context) ([]string, error)

	GetTransactionsCalls []GetTransactionsCall
	GetAccountsCalls     int
}

// GetTransactionsCall records the parameters of a GetTransactions call.
type GetTransactionsCall struct {
	StartDate time.Time
	EndDate   time.Time
	UserID    string
}

// NewMockClient creates a new mock transaction fetcher.
func NewMockClient() *MockClient {
	return &MockClient{
		GetTransactionsCalls: []GetTransactionsCall{},
	}
}

// GetTransactions records the call and delegates to GetTransactionsFn
// when set.
func (m *MockClient) GetTransactions(ctx context.Context, userID string, startDate, endDate time.Time) ([]model.Transaction, error) {
	m.GetTransactionsCalls = append(m.GetTransactionsCalls, GetTransactionsCall{
		UserID:    userID,
		StartDate: startDate,
		EndDate:   endDate,
	})
	if m.GetTransactionsFn != nil {
		return m.GetTransactionsFn(ctx, userID, startDate, endDate)
	}
	return []model.Transaction{}, nil
}

// GetAccounts records the call and delegates to GetAccountsFn when set.
func (m *MockClient) GetAccounts(ctx context.Context) ([]string, error) {
	m.GetAccountsCalls++
	if m.GetAccountsFn != nil {
		return m.GetAccountsFn(ctx)
	}
	return []string{}, nil
}

// Reset clears all call tracking.
func (m *MockClient) Reset() {
	m.GetTransactionsCalls = []GetTransactionsCall{}
	m.GetAccountsCalls = 0
}

// Ensure MockClient implements TransactionFetcher.
var _ TransactionFetcher = (*MockClient)(nil)
