package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/ledgerlens/ledgerlens/internal/common"
	"github.com/ledgerlens/ledgerlens/internal/model"
	"github.com/ledgerlens/ledgerlens/internal/service"
)

// Helper function to create test storage.
func createTestStorage(t *testing.T) (*SQLiteStorage, func()) {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		t.Fatalf("Failed to migrate: %v", err)
	}

	return store, func() { _ = store.Close() }
}

// Helper function to create test transactions.
func createTestTransactions(userID string, count int) []model.Transaction {
	txns := make([]model.Transaction, count)
	baseTime := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < count; i++ {
		txns[i] = model.Transaction{
			ID:           fmt.Sprintf("txn-%s-%03d", userID, i+1),
			UserID:       userID,
			Date:         baseTime.AddDate(0, 0, i),
			Name:         fmt.Sprintf("TRANSACTION %03d", i+1),
			MerchantName: fmt.Sprintf("Merchant %d", (i%3)+1),
			Category:     []string{"Dining", "Groceries", "Transport"}[i%3],
			Amount:       float64(i+1) * 10.50,
			AccountID:    "acc1",
		}
		txns[i].Hash = txns[i].GenerateHash()
	}
	return txns
}

func TestSQLiteStorage_SaveTransactions(t *testing.T) {
	tests := []struct {
		setup        func(*SQLiteStorage, context.Context)
		validate     func(*testing.T, *SQLiteStorage, context.Context)
		name         string
		transactions []model.Transaction
		wantErr      bool
	}{
		{
			name:         "save new transactions",
			transactions: createTestTransactions("u1", 3),
			wantErr:      false,
			validate: func(t *testing.T, s *SQLiteStorage, ctx context.Context) {
				t.Helper()
				txns, err := s.GetTransactions(ctx, "u1", service.TransactionFilter{})
				if err != nil {
					t.Errorf("Failed to get transactions: %v", err)
				}
				if len(txns) != 3 {
					t.Errorf("Expected 3 transactions, got %d", len(txns))
				}
			},
		},
		{
			name:         "handle duplicate transactions",
			transactions: createTestTransactions("u1", 2),
			setup: func(s *SQLiteStorage, ctx context.Context) {
				// Save the same transactions first
				txns := createTestTransactions("u1", 2)
				_ = s.SaveTransactions(ctx, txns)
			},
			wantErr: false,
			validate: func(t *testing.T, s *SQLiteStorage, ctx context.Context) {
				t.Helper()
				txns, err := s.GetTransactions(ctx, "u1", service.TransactionFilter{})
				if err != nil {
					t.Errorf("Failed to get transactions: %v", err)
				}
				// Should still have only 2 transactions (no duplicates)
				if len(txns) != 2 {
					t.Errorf("Expected 2 transactions (no duplicates), got %d", len(txns))
				}
			},
		},
		{
			name:         "save empty list",
			transactions: []model.Transaction{},
			wantErr:      true,
		},
		{
			name: "reject transaction without user",
			transactions: []model.Transaction{
				{
					ID:     "txn-no-user",
					Date:   time.Now(),
					Name:   "Test Transaction",
					Amount: 50.00,
				},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, cleanup := createTestStorage(t)
			defer cleanup()
			ctx := context.Background()

			if tt.setup != nil {
				tt.setup(store, ctx)
			}

			err := store.SaveTransactions(ctx, tt.transactions)
			if (err != nil) != tt.wantErr {
				t.Errorf("SaveTransactions() error = %v, wantErr %v", err, tt.wantErr)
			}

			if tt.validate != nil {
				tt.validate(t, store, ctx)
			}
		})
	}
}

func TestSQLiteStorage_GetTransactions_Filters(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	txns := createTestTransactions("u1", 9)
	if err := store.SaveTransactions(ctx, txns); err != nil {
		t.Fatalf("Failed to save transactions: %v", err)
	}
	// A second user's rows must never leak into u1 queries
	other := createTestTransactions("u2", 3)
	if err := store.SaveTransactions(ctx, other); err != nil {
		t.Fatalf("Failed to save transactions: %v", err)
	}

	t.Run("filter by category", func(t *testing.T) {
		got, err := store.GetTransactions(ctx, "u1", service.TransactionFilter{Category: "Dining"})
		if err != nil {
			t.Fatalf("GetTransactions() error = %v", err)
		}
		if len(got) != 3 {
			t.Errorf("Expected 3 dining transactions, got %d", len(got))
		}
		for _, txn := range got {
			if txn.Category != "Dining" {
				t.Errorf("Expected category Dining, got %s", txn.Category)
			}
		}
	})

	t.Run("filter by counterparty", func(t *testing.T) {
		got, err := store.GetTransactions(ctx, "u1", service.TransactionFilter{Counterparty: "Merchant 1"})
		if err != nil {
			t.Fatalf("GetTransactions() error = %v", err)
		}
		if len(got) != 3 {
			t.Errorf("Expected 3 transactions for Merchant 1, got %d", len(got))
		}
	})

	t.Run("filter by date window", func(t *testing.T) {
		start := time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC)
		end := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
		got, err := store.GetTransactions(ctx, "u1", service.TransactionFilter{StartDate: &start, EndDate: &end})
		if err != nil {
			t.Fatalf("GetTransactions() error = %v", err)
		}
		if len(got) != 3 {
			t.Errorf("Expected 3 transactions in window, got %d", len(got))
		}
	})

	t.Run("limit and offset", func(t *testing.T) {
		got, err := store.GetTransactions(ctx, "u1", service.TransactionFilter{Limit: 4, Offset: 7})
		if err != nil {
			t.Fatalf("GetTransactions() error = %v", err)
		}
		if len(got) != 2 {
			t.Errorf("Expected 2 transactions after offset, got %d", len(got))
		}
	})

	t.Run("user isolation", func(t *testing.T) {
		got, err := store.GetTransactions(ctx, "u2", service.TransactionFilter{})
		if err != nil {
			t.Fatalf("GetTransactions() error = %v", err)
		}
		if len(got) != 3 {
			t.Errorf("Expected 3 transactions for u2, got %d", len(got))
		}
	})

	t.Run("ordered oldest first", func(t *testing.T) {
		got, err := store.GetTransactions(ctx, "u1", service.TransactionFilter{})
		if err != nil {
			t.Fatalf("GetTransactions() error = %v", err)
		}
		for i := 1; i < len(got); i++ {
			if got[i].Date.Before(got[i-1].Date) {
				t.Errorf("Transactions out of order at index %d", i)
			}
		}
	})
}

func TestSQLiteStorage_GetTransactionByID(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	txns := createTestTransactions("u1", 2)
	ts := time.Date(2025, 1, 1, 14, 30, 0, 0, time.UTC)
	txns[0].Timestamp = &ts
	if err := store.SaveTransactions(ctx, txns); err != nil {
		t.Fatalf("Failed to save transactions: %v", err)
	}

	got, err := store.GetTransactionByID(ctx, "u1", txns[0].ID)
	if err != nil {
		t.Fatalf("GetTransactionByID() error = %v", err)
	}
	if got.MerchantName != txns[0].MerchantName {
		t.Errorf("Expected merchant %q, got %q", txns[0].MerchantName, got.MerchantName)
	}
	if got.Timestamp == nil || got.Timestamp.Hour() != 14 {
		t.Errorf("Expected posted hour 14, got %v", got.Timestamp)
	}

	// Wrong user must not see the row
	if _, err := store.GetTransactionByID(ctx, "u2", txns[0].ID); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for wrong user, got %v", err)
	}
}

func TestSQLiteStorage_GetSpendingSummary(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	txns := []model.Transaction{
		{ID: "t1", UserID: "u1", Date: base, Name: "COFFEE", MerchantName: "Cafe", Category: "Dining", Amount: 5.00, AccountID: "a"},
		{ID: "t2", UserID: "u1", Date: base.AddDate(0, 0, 1), Name: "GROCER", MerchantName: "Market", Category: "Groceries", Amount: 45.00, AccountID: "a"},
		{ID: "t3", UserID: "u1", Date: base.AddDate(0, 0, 2), Name: "PAYROLL", MerchantName: "Employer", Category: "Income", Amount: -2000.00, AccountID: "a"},
		{ID: "t4", UserID: "u1", Date: base.AddDate(0, 0, 3), Name: "DINNER", MerchantName: "Bistro", Category: "Dining", Amount: 60.00, AccountID: "a"},
	}
	for i := range txns {
		txns[i].Hash = txns[i].GenerateHash()
	}
	if err := store.SaveTransactions(ctx, txns); err != nil {
		t.Fatalf("Failed to save transactions: %v", err)
	}

	summary, err := store.GetSpendingSummary(ctx, "u1", base, base.AddDate(0, 1, 0))
	if err != nil {
		t.Fatalf("GetSpendingSummary() error = %v", err)
	}

	if summary.TotalOutflow != 110.00 {
		t.Errorf("Expected outflow 110.00, got %.2f", summary.TotalOutflow)
	}
	if summary.TotalInflow != 2000.00 {
		t.Errorf("Expected inflow 2000.00, got %.2f", summary.TotalInflow)
	}
	if summary.Net != 1890.00 {
		t.Errorf("Expected net 1890.00, got %.2f", summary.Net)
	}
	if dining := summary.ByCategory["Dining"]; dining.Count != 2 || dining.Amount != 65.00 {
		t.Errorf("Expected Dining {2, 65.00}, got %+v", dining)
	}
	if _, ok := summary.ByCategory["Income"]; ok {
		t.Error("Inflow categories should not appear in the spending breakdown")
	}
}

func TestSQLiteStorage_Migrate_Idempotent(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	// Migrating an up-to-date database is a no-op
	if err := store.Migrate(ctx); err != nil {
		t.Errorf("Second Migrate() error = %v", err)
	}
}

func TestSQLiteStorage_BeginTx(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	tx, err := store.BeginTx(ctx)
	if err != nil {
		t.Fatalf("BeginTx() error = %v", err)
	}

	txns := createTestTransactions("u1", 1)
	if err := tx.SaveTransactions(ctx, txns); err != nil {
		t.Fatalf("SaveTransactions in tx error = %v", err)
	}

	// Nested transactions are rejected
	if _, err := tx.BeginTx(ctx); err == nil {
		t.Error("Expected nested BeginTx to fail")
	}

	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	got, err := store.GetTransactions(ctx, "u1", service.TransactionFilter{})
	if err != nil {
		t.Fatalf("GetTransactions() error = %v", err)
	}
	if len(got) != 1 {
		t.Errorf("Expected 1 committed transaction, got %d", len(got))
	}
}

func TestSQLiteStorage_Rollback(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	tx, err := store.BeginTx(ctx)
	if err != nil {
		t.Fatalf("BeginTx() error = %v", err)
	}

	txns := createTestTransactions("u1", 1)
	if err := tx.SaveTransactions(ctx, txns); err != nil {
		t.Fatalf("SaveTransactions in tx error = %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback() error = %v", err)
	}

	got, err := store.GetTransactions(ctx, "u1", service.TransactionFilter{})
	if err != nil {
		t.Fatalf("GetTransactions() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Expected 0 transactions after rollback, got %d", len(got))
	}
}
