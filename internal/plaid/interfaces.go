package plaid

import (
	"context"
	"time"

	"github.com/ledgerlens/ledgerlens/internal/model"
)

// TransactionFetcher is the contract for pulling transactions from a
// linked institution. Implementations stamp every transaction with the
// owning user so downstream storage stays scoped.
type TransactionFetcher interface {
	GetTransactions(ctx context.Context, userID string, startDate, endDate time.Time) ([]model.Transaction, error)
	GetAccounts(ctx context.Context) ([]string, error)
}
