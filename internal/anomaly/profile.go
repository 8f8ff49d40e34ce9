// Package anomaly scores transactions against a per-user spending profile
// and flags statistical outliers with human-readable reasons.
package anomaly

import (
	"sort"
	"strings"

	"github.com/ledgerlens/ledgerlens/internal/model"
)

// SpendingProfile captures what is normal for one user. It is rebuilt from
// scratch on every analysis run and never shared across users.
type SpendingProfile struct {
	CategoryMeans      map[string]float64
	CounterpartyCounts map[string]int
	HourLow            int
	HourHigh           int
	SampleCount        int
	hasHours           bool
}

// BuildProfile derives a spending profile from transaction history. Only
// settled outflows contribute; refunds, income, and pending entries are
// skipped.
func BuildProfile(history []model.Transaction) *SpendingProfile {
	profile := &SpendingProfile{
		CategoryMeans:      make(map[string]float64),
		CounterpartyCounts: make(map[string]int),
	}

	categoryTotals := make(map[string]float64)
	categoryCounts := make(map[string]int)
	var hours []int

	for _, txn := range history {
		if txn.Amount <= 0 || txn.Pending {
			continue
		}
		profile.SampleCount++

		if txn.Category != "" {
			categoryTotals[txn.Category] += txn.Amount
			categoryCounts[txn.Category]++
		}

		profile.CounterpartyCounts[profileKey(txn)]++

		if hour := txn.Hour(); hour >= 0 {
			hours = append(hours, hour)
		}
	}

	for category, total := range categoryTotals {
		profile.CategoryMeans[category] = total / float64(categoryCounts[category])
	}

	if len(hours) > 0 {
		sort.Ints(hours)
		profile.HourLow = percentileInt(hours, 0.05)
		profile.HourHigh = percentileInt(hours, 0.95)
		profile.hasHours = true
	}

	return profile
}

// CategoryMean returns the historical mean spend for a category and whether
// any history exists for it.
func (p *SpendingProfile) CategoryMean(category string) (float64, bool) {
	mean, ok := p.CategoryMeans[category]
	return mean, ok
}

// KnowsCounterparty reports whether the user has transacted with this
// counterparty before.
func (p *SpendingProfile) KnowsCounterparty(txn model.Transaction) bool {
	return p.CounterpartyCounts[profileKey(txn)] > 0
}

// CounterpartyFrequency returns how often this counterparty appears in the
// history.
func (p *SpendingProfile) CounterpartyFrequency(txn model.Transaction) int {
	return p.CounterpartyCounts[profileKey(txn)]
}

// UnusualHour reports whether a posting hour falls outside the user's
// typical 5th-95th percentile window. Transactions without a posting time
// and profiles without observed hours are never unusual.
func (p *SpendingProfile) UnusualHour(txn model.Transaction) bool {
	if !p.hasHours {
		return false
	}
	hour := txn.Hour()
	if hour < 0 {
		return false
	}
	return hour < p.HourLow || hour > p.HourHigh
}

// profileKey canonicalizes a counterparty for profile lookups.
func profileKey(txn model.Transaction) string {
	name := txn.MerchantName
	if name == "" {
		name = txn.Name
	}
	return strings.ToLower(strings.TrimSpace(name))
}

// percentileInt returns the value at the given fraction of a sorted slice.
func percentileInt(sorted []int, fraction float64) int {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(fraction * float64(len(sorted)-1))
	return sorted[idx]
}
