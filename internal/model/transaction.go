// Package model defines the core domain models used throughout the application.
package model

import (
	"crypto/sha256"
	"fmt"
	"time"
)

// Transaction represents a single financial transaction from any source.
// Amounts are signed with positive values meaning money out (spending) and
// negative values meaning money in, matching the Plaid convention.
type Transaction struct {
	Date         time.Time
	Timestamp    *time.Time // Exact posting time when the source provides one
	ID           string
	UserID       string
	AccountID    string
	Hash         string
	Name         string // Raw transaction description
	MerchantName string // Cleaned counterparty name
	Category     string
	Type         string // Source transaction type (e.g., DEBIT, CHECK, ATM)
	CheckNumber  string
	Amount       float64
	Pending      bool
}

// GenerateHash creates a unique hash for duplicate detection.
func (t *Transaction) GenerateHash() string {
	data := fmt.Sprintf("%s:%.2f:%s:%s",
		t.Date.Format("2006-01-02"),
		t.Amount,
		t.MerchantName,
		t.AccountID)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// Hour returns the posting hour of day, or -1 when the source only
// supplied a date.
func (t *Transaction) Hour() int {
	if t.Timestamp == nil {
		return -1
	}
	return t.Timestamp.Hour()
}
