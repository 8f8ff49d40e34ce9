package model

import "time"

// Frequency classifies the billing cadence of a recurring charge.
type Frequency string

// Frequency constants, from shortest to longest cadence.
const (
	FrequencyWeekly    Frequency = "weekly"
	FrequencyBiweekly  Frequency = "biweekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyYearly    Frequency = "yearly"
)

// RecurringCandidate is a detected subscription or other recurring charge.
// Candidates are recomputed on every analysis run; confirming and persisting
// them is up to the caller.
type RecurringCandidate struct {
	NextExpected    time.Time
	Counterparty    string
	Frequency       Frequency
	Occurrences     []Transaction
	TypicalAmount   float64
	AvgIntervalDays float64
	Confidence      float64
}

// MonthlyCost normalizes the typical amount to a per-month figure so
// candidates with different cadences can be compared.
func (r *RecurringCandidate) MonthlyCost() float64 {
	switch r.Frequency {
	case FrequencyWeekly:
		return r.TypicalAmount * 52.0 / 12.0
	case FrequencyBiweekly:
		return r.TypicalAmount * 26.0 / 12.0
	case FrequencyMonthly:
		return r.TypicalAmount
	case FrequencyQuarterly:
		return r.TypicalAmount / 3.0
	case FrequencyYearly:
		return r.TypicalAmount / 12.0
	default:
		return r.TypicalAmount
	}
}
