package recurring

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerlens/ledgerlens/internal/model"
)

// makeSeries builds one transaction per amount, spaced intervalDays apart.
func makeSeries(merchant string, start time.Time, intervalDays int, amounts ...float64) []model.Transaction {
	txns := make([]model.Transaction, len(amounts))
	for i, amount := range amounts {
		txns[i] = model.Transaction{
			ID:           fmt.Sprintf("%s-%d", merchant, i),
			UserID:       "u1",
			Date:         start.AddDate(0, 0, i*intervalDays),
			Name:         merchant,
			MerchantName: merchant,
			Amount:       amount,
			AccountID:    "acc1",
		}
	}
	return txns
}

func TestDetector_MonthlySeries(t *testing.T) {
	detector := NewDetector(DefaultConfig())
	start := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		amounts      []float64
		intervalDays int
		frequency    model.Frequency
	}{
		{
			name:         "28 day spacing",
			amounts:      []float64{100, 95, 105},
			intervalDays: 28,
			frequency:    model.FrequencyMonthly,
		},
		{
			name:         "30 day spacing",
			amounts:      []float64{100, 95, 105},
			intervalDays: 30,
			frequency:    model.FrequencyMonthly,
		},
		{
			name:         "32 day spacing",
			amounts:      []float64{100, 95, 105},
			intervalDays: 32,
			frequency:    model.FrequencyMonthly,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candidates := detector.Detect(makeSeries("Acme Box", start, tt.intervalDays, tt.amounts...))
			require.Len(t, candidates, 1)

			candidate := candidates[0]
			assert.Equal(t, tt.frequency, candidate.Frequency)
			assert.GreaterOrEqual(t, candidate.Confidence, 0.6,
				"monthly series with stable amounts must clear 0.6")
			assert.LessOrEqual(t, candidate.Confidence, 1.0)
		})
	}
}

func TestDetector_FrequencyBands(t *testing.T) {
	detector := NewDetector(DefaultConfig())
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		frequency    model.Frequency
		intervalDays int
		occurrences  int
	}{
		{name: "weekly", frequency: model.FrequencyWeekly, intervalDays: 7, occurrences: 5},
		{name: "biweekly", frequency: model.FrequencyBiweekly, intervalDays: 14, occurrences: 5},
		{name: "monthly", frequency: model.FrequencyMonthly, intervalDays: 30, occurrences: 5},
		{name: "quarterly", frequency: model.FrequencyQuarterly, intervalDays: 90, occurrences: 3},
		{name: "yearly", frequency: model.FrequencyYearly, intervalDays: 365, occurrences: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amounts := make([]float64, tt.occurrences)
			for i := range amounts {
				amounts[i] = 9.99
			}
			candidates := detector.Detect(makeSeries("Some Service", start, tt.intervalDays, amounts...))
			require.Len(t, candidates, 1)
			assert.Equal(t, tt.frequency, candidates[0].Frequency)
		})
	}
}

func TestDetector_ConfidenceMonotoneInOccurrences(t *testing.T) {
	detector := NewDetector(DefaultConfig())
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	previous := 0.0
	for n := 2; n <= 8; n++ {
		amounts := make([]float64, n)
		for i := range amounts {
			amounts[i] = 42.00
		}
		candidates := detector.Detect(makeSeries("Steady Co", start, 30, amounts...))
		require.Len(t, candidates, 1, "n=%d", n)

		confidence := candidates[0].Confidence
		assert.GreaterOrEqual(t, confidence, previous,
			"confidence must not decrease when occurrences grow (n=%d)", n)
		previous = confidence
	}
}

func TestDetector_StreamflixExample(t *testing.T) {
	// Six $15.99 charges plus one $14.99 in month four: still monthly,
	// variance well inside the cutoff.
	detector := NewDetector(DefaultConfig())
	start := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	amounts := []float64{15.99, 15.99, 15.99, 14.99, 15.99, 15.99, 15.99}

	candidates := detector.Detect(makeSeries("Streamflix", start, 30, amounts...))
	require.Len(t, candidates, 1)

	candidate := candidates[0]
	assert.Equal(t, model.FrequencyMonthly, candidate.Frequency)
	assert.GreaterOrEqual(t, candidate.Confidence, 0.7)
	assert.InDelta(t, 15.85, candidate.TypicalAmount, 0.01)
	assert.Equal(t, "Streamflix", candidate.Counterparty)
	assert.Len(t, candidate.Occurrences, 7)
}

func TestDetector_Rejections(t *testing.T) {
	detector := NewDetector(DefaultConfig())
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		build func() []model.Transaction
		name  string
	}{
		{
			name: "single occurrence",
			build: func() []model.Transaction {
				return makeSeries("One Shot", start, 30, 50.00)
			},
		},
		{
			name: "inconsistent timing",
			build: func() []model.Transaction {
				txns := makeSeries("Wobbly", start, 30, 20, 20, 20, 20)
				// Shove two charges off schedule so the interval stddev
				// blows past the cutoff
				txns[1].Date = start.AddDate(0, 0, 45)
				txns[2].Date = start.AddDate(0, 0, 55)
				return txns
			},
		},
		{
			name: "inconsistent amounts",
			build: func() []model.Transaction {
				return makeSeries("Variable", start, 30, 10, 30, 50)
			},
		},
		{
			name: "interval outside every band",
			build: func() []model.Transaction {
				return makeSeries("Odd Cadence", start, 45, 25, 25, 25)
			},
		},
		{
			name: "refunds and income ignored",
			build: func() []model.Transaction {
				return makeSeries("Payroll", start, 14, -2000, -2000, -2000)
			},
		},
		{
			name: "zero amounts ignored",
			build: func() []model.Transaction {
				return makeSeries("Zeroed", start, 30, 0, 0, 0)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, detector.Detect(tt.build()))
		})
	}
}

func TestDetector_NextExpectedDate(t *testing.T) {
	detector := NewDetector(DefaultConfig())
	start := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	candidates := detector.Detect(makeSeries("Cloud Storage", start, 30, 2.99, 2.99, 2.99))
	require.Len(t, candidates, 1)

	last := start.AddDate(0, 0, 60)
	assert.Equal(t, last.AddDate(0, 0, 30), candidates[0].NextExpected)
	assert.InDelta(t, 30.0, candidates[0].AvgIntervalDays, 0.001)
}

func TestDetector_GroupsAcrossStoreNumbers(t *testing.T) {
	detector := NewDetector(DefaultConfig())
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	txns := makeSeries("GYM MEMBERSHIP #1021", start, 30, 35, 35)
	more := makeSeries("GYM MEMBERSHIP #0944", start.AddDate(0, 0, 60), 30, 35, 35)
	// Distinct IDs so nothing collides
	for i := range more {
		more[i].ID = fmt.Sprintf("alt-%d", i)
	}

	candidates := detector.Detect(append(txns, more...))
	require.Len(t, candidates, 1, "store numbers should not split the group")
	assert.Len(t, candidates[0].Occurrences, 4)
}

func TestNormalizeCounterparty(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "lowercases and trims", in: "  Netflix.com  ", want: "netflix.com"},
		{name: "strips store number", in: "STARBUCKS #1234", want: "starbucks"},
		{name: "strips trailing digits", in: "UBER TRIP 0423", want: "uber trip"},
		{name: "collapses whitespace", in: "ACME   BOX  CO", want: "acme box co"},
		{name: "keeps embedded digits", in: "7-ELEVEN", want: "7-eleven"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeCounterparty(tt.in))
		})
	}
}

func TestMonthlyCostNormalization(t *testing.T) {
	tests := []struct {
		name      string
		frequency model.Frequency
		amount    float64
		want      float64
	}{
		{name: "weekly", frequency: model.FrequencyWeekly, amount: 12, want: 52},
		{name: "biweekly", frequency: model.FrequencyBiweekly, amount: 6, want: 13},
		{name: "monthly", frequency: model.FrequencyMonthly, amount: 15.99, want: 15.99},
		{name: "quarterly", frequency: model.FrequencyQuarterly, amount: 30, want: 10},
		{name: "yearly", frequency: model.FrequencyYearly, amount: 120, want: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candidate := model.RecurringCandidate{Frequency: tt.frequency, TypicalAmount: tt.amount}
			assert.InDelta(t, tt.want, candidate.MonthlyCost(), 0.001)
		})
	}
}
