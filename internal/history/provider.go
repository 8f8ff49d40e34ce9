// Package history provides a read-through cache over the persistence
// layer's hot read paths, so repeated tool calls within one conversation
// do not re-read SQLite for the same window.
package history

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/ledgerlens/ledgerlens/internal/model"
	"github.com/ledgerlens/ledgerlens/internal/service"
)

// Config holds tuning options for the history cache.
type Config struct {
	// TTL is how long a cached window stays valid.
	TTL time.Duration
	// MaxCost bounds the cache size, measured in cached rows.
	MaxCost int64
	// NumCounters sizes the admission counters.
	NumCounters int64
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{
		TTL:         5 * time.Minute,
		MaxCost:     50_000,
		NumCounters: 500_000,
	}
}

// Provider wraps a Storage implementation and caches transaction and
// spending-summary reads keyed by user, generation, and query window.
// Cached values are shared between callers and must be treated as
// read-only. All other Storage methods pass through; writes that change
// transaction history invalidate the owning user's entries.
type Provider struct {
	service.Storage

	cache       *ristretto.Cache
	generations map[string]uint64
	ttl         time.Duration
	mu          sync.Mutex
}

// NewProvider creates a caching provider in front of the given storage.
func NewProvider(store service.Storage, config Config) (*Provider, error) {
	if store == nil {
		return nil, fmt.Errorf("storage is required")
	}
	defaults := DefaultConfig()
	if config.TTL <= 0 {
		config.TTL = defaults.TTL
	}
	if config.MaxCost <= 0 {
		config.MaxCost = defaults.MaxCost
	}
	if config.NumCounters <= 0 {
		config.NumCounters = defaults.NumCounters
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: config.NumCounters,
		MaxCost:     config.MaxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create history cache: %w", err)
	}

	return &Provider{
		Storage:     store,
		cache:       cache,
		generations: make(map[string]uint64),
		ttl:         config.TTL,
	}, nil
}

// GetTransactions serves the filter from cache when possible, reading
// through to storage on a miss.
func (p *Provider) GetTransactions(ctx context.Context, userID string, filter service.TransactionFilter) ([]model.Transaction, error) {
	key := p.transactionsKey(userID, filter)
	if cached, ok := p.cache.Get(key); ok {
		if transactions, ok := cached.([]model.Transaction); ok {
			return transactions, nil
		}
	}

	transactions, err := p.Storage.GetTransactions(ctx, userID, filter)
	if err != nil {
		return nil, err
	}
	p.cache.SetWithTTL(key, transactions, int64(len(transactions))+1, p.ttl)
	return transactions, nil
}

// GetSpendingSummary serves the window from cache when possible, reading
// through to storage on a miss.
func (p *Provider) GetSpendingSummary(ctx context.Context, userID string, start, end time.Time) (*service.SpendingSummary, error) {
	key := p.summaryKey(userID, start, end)
	if cached, ok := p.cache.Get(key); ok {
		if summary, ok := cached.(*service.SpendingSummary); ok {
			return summary, nil
		}
	}

	summary, err := p.Storage.GetSpendingSummary(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}
	p.cache.SetWithTTL(key, summary, int64(len(summary.ByCategory))+1, p.ttl)
	return summary, nil
}

// SaveTransactions writes through to storage and invalidates the cached
// windows of every affected user.
func (p *Provider) SaveTransactions(ctx context.Context, transactions []model.Transaction) error {
	if err := p.Storage.SaveTransactions(ctx, transactions); err != nil {
		return err
	}
	users := make(map[string]struct{})
	for _, txn := range transactions {
		users[txn.UserID] = struct{}{}
	}
	for userID := range users {
		p.Invalidate(userID)
	}
	return nil
}

// Invalidate drops all cached windows for a user by bumping the user's
// generation; stale entries age out via TTL and eviction.
func (p *Provider) Invalidate(userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.generations[userID]++
}

// Close releases the cache and closes the underlying storage.
func (p *Provider) Close() error {
	p.cache.Close()
	return p.Storage.Close()
}

func (p *Provider) generation(userID string) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.generations[userID]
}

func (p *Provider) transactionsKey(userID string, filter service.TransactionFilter) string {
	var start, end int64
	if filter.StartDate != nil {
		start = filter.StartDate.Unix()
	}
	if filter.EndDate != nil {
		end = filter.EndDate.Unix()
	}
	return fmt.Sprintf("txns\x00%s\x00%d\x00%d\x00%d\x00%s\x00%s\x00%d\x00%d",
		userID, p.generation(userID), start, end,
		filter.Category, filter.Counterparty, filter.Limit, filter.Offset)
}

func (p *Provider) summaryKey(userID string, start, end time.Time) string {
	return fmt.Sprintf("summary\x00%s\x00%d\x00%d\x00%d",
		userID, p.generation(userID), start.Unix(), end.Unix())
}
