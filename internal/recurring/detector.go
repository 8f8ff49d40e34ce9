// Package recurring detects subscriptions and other recurring charges from
// transaction history.
package recurring

import (
	"math"
	"sort"
	"strings"

	"github.com/ledgerlens/ledgerlens/internal/model"
)

// Config holds detection thresholds. All fields are product policy
// constants, configurable rather than physical limits.
type Config struct {
	// MinOccurrences is the minimum number of charges from one counterparty
	// before it can become a candidate.
	MinOccurrences int
	// MaxIntervalStdDev rejects groups whose billing timing wobbles by more
	// than this many days.
	MaxIntervalStdDev float64
	// MaxAmountCV rejects groups whose amount coefficient of variation
	// exceeds this fraction.
	MaxAmountCV float64
}

// DefaultConfig returns the default detection thresholds.
func DefaultConfig() Config {
	return Config{
		MinOccurrences:    2,
		MaxIntervalStdDev: 5.0,
		MaxAmountCV:       0.15,
	}
}

// Confidence weights. The occurrence term saturates at
// saturationOccurrences charges; timing and keyword matches add fixed
// bonuses. The sum is clamped to 1.
const (
	occurrenceWeight      = 0.35
	amountWeight          = 0.35
	timingBonus           = 0.20
	keywordBonus          = 0.10
	saturationOccurrences = 6
)

// frequencyBands maps a mean interval in days onto a billing cadence.
var frequencyBands = []struct {
	frequency model.Frequency
	min       float64
	max       float64
}{
	{model.FrequencyWeekly, 6, 8},
	{model.FrequencyBiweekly, 13, 16},
	{model.FrequencyMonthly, 28, 32},
	{model.FrequencyQuarterly, 85, 95},
	{model.FrequencyYearly, 360, 370},
}

// Detector finds recurring charges in a user's transaction history.
type Detector struct {
	config Config
}

// NewDetector creates a detector with the given thresholds. Zero-valued
// fields fall back to defaults.
func NewDetector(config Config) *Detector {
	defaults := DefaultConfig()
	if config.MinOccurrences <= 0 {
		config.MinOccurrences = defaults.MinOccurrences
	}
	if config.MaxIntervalStdDev <= 0 {
		config.MaxIntervalStdDev = defaults.MaxIntervalStdDev
	}
	if config.MaxAmountCV <= 0 {
		config.MaxAmountCV = defaults.MaxAmountCV
	}
	return &Detector{config: config}
}

// Detect groups the transactions by counterparty and returns recurring
// charge candidates ordered by confidence, highest first. Transactions with
// non-positive amounts and pending entries are ignored.
func (d *Detector) Detect(transactions []model.Transaction) []model.RecurringCandidate {
	groups := make(map[string][]model.Transaction)
	for _, txn := range transactions {
		if txn.Amount <= 0 || txn.Pending {
			continue
		}
		key := NormalizeCounterparty(counterpartyName(txn))
		if key == "" {
			continue
		}
		groups[key] = append(groups[key], txn)
	}

	var candidates []model.RecurringCandidate
	for _, group := range groups {
		if candidate, ok := d.evaluateGroup(group); ok {
			candidates = append(candidates, candidate)
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Confidence != candidates[j].Confidence {
			return candidates[i].Confidence > candidates[j].Confidence
		}
		return candidates[i].Counterparty < candidates[j].Counterparty
	})

	return candidates
}

// evaluateGroup decides whether one counterparty's charges form a recurring
// pattern and scores it.
func (d *Detector) evaluateGroup(group []model.Transaction) (model.RecurringCandidate, bool) {
	if len(group) < d.config.MinOccurrences {
		return model.RecurringCandidate{}, false
	}

	sort.Slice(group, func(i, j int) bool {
		return group[i].Date.Before(group[j].Date)
	})

	intervals := make([]float64, 0, len(group)-1)
	for i := 1; i < len(group); i++ {
		days := group[i].Date.Sub(group[i-1].Date).Hours() / 24
		intervals = append(intervals, days)
	}
	if len(intervals) == 0 {
		return model.RecurringCandidate{}, false
	}

	meanInterval := mean(intervals)
	if stdDev(intervals, meanInterval) > d.config.MaxIntervalStdDev {
		return model.RecurringCandidate{}, false
	}

	frequency, matched := classifyInterval(meanInterval)
	if !matched {
		return model.RecurringCandidate{}, false
	}

	amounts := make([]float64, len(group))
	for i, txn := range group {
		amounts[i] = txn.Amount
	}
	meanAmount := mean(amounts)

	// Zero mean means the consistency term contributes nothing; it must not
	// divide by zero.
	amountCV := 0.0
	amountConsistency := 0.0
	if meanAmount > 0 {
		amountCV = stdDev(amounts, meanAmount) / meanAmount
		amountConsistency = 1 - amountCV
	}
	if amountCV > d.config.MaxAmountCV {
		return model.RecurringCandidate{}, false
	}

	occurrenceTerm := math.Min(float64(len(group))/saturationOccurrences, 1.0)
	confidence := occurrenceTerm*occurrenceWeight + amountConsistency*amountWeight + timingBonus
	if matchesKeyword(counterpartyName(group[0])) {
		confidence += keywordBonus
	}
	confidence = math.Min(confidence, 1.0)

	last := group[len(group)-1]
	next := last.Date.AddDate(0, 0, int(math.Round(meanInterval)))

	return model.RecurringCandidate{
		Counterparty:    counterpartyName(last),
		TypicalAmount:   meanAmount,
		Frequency:       frequency,
		AvgIntervalDays: meanInterval,
		NextExpected:    next,
		Confidence:      confidence,
		Occurrences:     group,
	}, true
}

// classifyInterval maps a mean interval onto a frequency band.
func classifyInterval(days float64) (model.Frequency, bool) {
	for _, band := range frequencyBands {
		if days >= band.min && days <= band.max {
			return band.frequency, true
		}
	}
	return "", false
}

// counterpartyName prefers the cleaned merchant name over the raw
// description.
func counterpartyName(txn model.Transaction) string {
	if txn.MerchantName != "" {
		return txn.MerchantName
	}
	return txn.Name
}

// NormalizeCounterparty canonicalizes a counterparty name for grouping:
// lowercased, trailing store or reference numbers stripped, whitespace
// collapsed.
func NormalizeCounterparty(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))

	// Strip trailing store numbers like "starbucks #1234" or "uber 0423"
	if idx := strings.LastIndexByte(name, '#'); idx > 0 {
		name = strings.TrimSpace(name[:idx])
	}
	fields := strings.Fields(name)
	for len(fields) > 1 && isNumeric(fields[len(fields)-1]) {
		fields = fields[:len(fields)-1]
	}

	return strings.Join(fields, " ")
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stdDev(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sumSq := 0.0
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(len(values)))
}
