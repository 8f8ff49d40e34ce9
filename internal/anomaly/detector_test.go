package anomaly

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerlens/ledgerlens/internal/model"
)

// spendingHistory builds count daily transactions with a small deterministic
// amount jitter and posting hours between 9:00 and 17:00.
func spendingHistory(category string, merchants []string, count int, baseAmount float64) []model.Transaction {
	start := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	txns := make([]model.Transaction, 0, count)
	for i := 0; i < count; i++ {
		date := start.AddDate(0, 0, i)
		posted := time.Date(date.Year(), date.Month(), date.Day(), 9+(i%9), 15, 0, 0, time.UTC)
		merchant := merchants[i%len(merchants)]
		txns = append(txns, model.Transaction{
			ID:           fmt.Sprintf("txn-%03d", i),
			UserID:       "user-1",
			AccountID:    "acct-1",
			Date:         date,
			Timestamp:    &posted,
			Name:         merchant,
			MerchantName: merchant,
			Category:     category,
			Amount:       baseAmount + float64(i%5)*0.5 - 1.0,
		})
	}
	return txns
}

func TestDetector_BelowMinimumSamples(t *testing.T) {
	detector := NewDetector(DefaultConfig())

	assert.Empty(t, detector.Detect(nil))

	short := spendingHistory("Dining", []string{"CORNER CAFE"}, 49, 20)
	assert.Empty(t, detector.Detect(short), "49 settled outflows is below the 50 sample floor")
}

func TestDetector_FlagsCategoryMeanOutlier(t *testing.T) {
	history := spendingHistory("Dining", []string{"CORNER CAFE", "NOODLE BAR", "TACO TRUCK"}, 60, 20)
	outlierDate := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	outlierPosted := time.Date(2025, 3, 10, 13, 5, 0, 0, time.UTC)
	outlier := model.Transaction{
		ID:           "txn-outlier",
		UserID:       "user-1",
		AccountID:    "acct-1",
		Date:         outlierDate,
		Timestamp:    &outlierPosted,
		Name:         "GOLDEN FORK BISTRO",
		MerchantName: "GOLDEN FORK BISTRO",
		Category:     "Dining",
		Amount:       100,
	}
	batch := append(history, outlier)

	findings := NewDetector(DefaultConfig()).Detect(batch)
	require.NotEmpty(t, findings, "a charge at five times the category mean should surface")

	var found *model.AnomalyFinding
	for i := range findings {
		if findings[i].Transaction.ID == "txn-outlier" {
			found = &findings[i]
			break
		}
	}
	require.NotNil(t, found, "the injected outlier must be among the findings")
	assert.GreaterOrEqual(t, found.Score, 0.6)

	var mentionsRatio bool
	for _, reason := range found.Reasons {
		if strings.Contains(reason, "x the Dining average") {
			mentionsRatio = true
		}
	}
	assert.True(t, mentionsRatio, "reasons %v should mention the multiple of the Dining average", found.Reasons)
}

func TestDetector_ScoresStayNormalized(t *testing.T) {
	history := spendingHistory("Groceries", []string{"FRESH MART", "GREEN GROCER"}, 70, 45)
	spike := model.Transaction{
		ID:        "txn-spike",
		UserID:    "user-1",
		AccountID: "acct-1",
		Date:      time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC),
		Name:      "FRESH MART",
		Category:  "Groceries",
		Amount:    900,
	}

	findings := NewDetector(DefaultConfig()).Detect(append(history, spike))
	require.NotEmpty(t, findings)
	for _, finding := range findings {
		assert.GreaterOrEqual(t, finding.Score, 0.6, "dual gate admits nothing below the score threshold")
		assert.LessOrEqual(t, finding.Score, 1.0)
		assert.NotEmpty(t, finding.Reasons)
	}
}

func TestDetector_QuietOnUniformSpending(t *testing.T) {
	// Identical amounts, one merchant, weekly cadence on the same weekday,
	// no posting times. Every feature is constant, so nothing separates.
	start := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	txns := make([]model.Transaction, 0, 80)
	for i := 0; i < 80; i++ {
		txns = append(txns, model.Transaction{
			ID:           fmt.Sprintf("txn-%03d", i),
			UserID:       "user-1",
			AccountID:    "acct-1",
			Date:         start.AddDate(0, 0, i*7),
			Name:         "DAILY GRIND COFFEE",
			MerchantName: "DAILY GRIND COFFEE",
			Category:     "Dining",
			Amount:       20,
		})
	}

	findings := NewDetector(DefaultConfig()).Detect(txns)
	assert.Empty(t, findings, "indistinguishable points all score 0.5 and fail the threshold gate")
}

func TestDetector_Deterministic(t *testing.T) {
	history := spendingHistory("Transport", []string{"METRO CARD", "CITY PARKING"}, 65, 30)
	history = append(history, model.Transaction{
		ID:        "txn-surge",
		UserID:    "user-1",
		AccountID: "acct-1",
		Date:      time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC),
		Name:      "AIRPORT LIMO SERVICE",
		Category:  "Transport",
		Amount:    400,
	})

	detector := NewDetector(DefaultConfig())
	first := detector.Detect(history)
	second := detector.Detect(history)
	require.Equal(t, first, second, "fixed seed must reproduce scores exactly")
}

func TestDetector_Reasons(t *testing.T) {
	profile := &SpendingProfile{
		CategoryMeans:      map[string]float64{"Dining": 20},
		CounterpartyCounts: map[string]int{"corner cafe": 12},
		HourLow:            8,
		HourHigh:           22,
		SampleCount:        60,
		hasHours:           true,
	}
	detector := NewDetector(DefaultConfig())
	nightHour := time.Date(2025, 3, 1, 3, 12, 0, 0, time.UTC)

	tests := []struct {
		name string
		txn  model.Transaction
		want []string
	}{
		{
			name: "ratio new merchant and odd hour stack up",
			txn: model.Transaction{
				Date:         time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
				Timestamp:    &nightHour,
				Name:         "LUXE DINNER CLUB",
				MerchantName: "LUXE DINNER CLUB",
				Category:     "Dining",
				Amount:       120,
			},
			want: []string{
				"Amount is 6.0x the Dining average",
				"First charge from LUXE DINNER CLUB",
				"Posted at 3:00, outside the usual 8:00-22:00 window",
			},
		},
		{
			name: "large amount floor",
			txn: model.Transaction{
				Date:         time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC),
				Name:         "CORNER CAFE",
				MerchantName: "CORNER CAFE",
				Category:     "",
				Amount:       650,
			},
			want: []string{"Large transaction over $500"},
		},
		{
			name: "bland transaction falls back to the generic reason",
			txn: model.Transaction{
				Date:         time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC),
				Name:         "CORNER CAFE",
				MerchantName: "CORNER CAFE",
				Category:     "Dining",
				Amount:       21,
			},
			want: []string{"Differs from the typical spending pattern"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, detector.reasons(tt.txn, profile))
		})
	}
}

func TestBuildProfile(t *testing.T) {
	posted := func(hour int) *time.Time {
		ts := time.Date(2025, 2, 1, hour, 30, 0, 0, time.UTC)
		return &ts
	}
	history := []model.Transaction{
		{ID: "a", Date: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), Name: "Fresh Mart", Category: "Groceries", Amount: 40, Timestamp: posted(9)},
		{ID: "b", Date: time.Date(2025, 2, 2, 0, 0, 0, 0, time.UTC), Name: "FRESH MART", Category: "Groceries", Amount: 60, Timestamp: posted(12)},
		{ID: "c", Date: time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC), Name: "Paycheck", Category: "Income", Amount: -2000, Timestamp: posted(1)},
		{ID: "d", Date: time.Date(2025, 2, 4, 0, 0, 0, 0, time.UTC), Name: "Pending Hold", Category: "Groceries", Amount: 500, Pending: true},
		{ID: "e", Date: time.Date(2025, 2, 5, 0, 0, 0, 0, time.UTC), Name: "Noodle Bar", Category: "Dining", Amount: 25, Timestamp: posted(19)},
	}

	profile := BuildProfile(history)

	assert.Equal(t, 3, profile.SampleCount, "income and pending rows do not count")
	assert.InDelta(t, 50.0, profile.CategoryMeans["Groceries"], 0.001)
	assert.InDelta(t, 25.0, profile.CategoryMeans["Dining"], 0.001)
	assert.True(t, profile.KnowsCounterparty(model.Transaction{Name: "fresh mart"}), "lookup is case insensitive")
	assert.Equal(t, 2, profile.CounterpartyFrequency(model.Transaction{Name: "Fresh Mart"}))
	assert.False(t, profile.KnowsCounterparty(model.Transaction{Name: "Mystery Shop"}))
}

func TestSpendingProfile_UnusualHour(t *testing.T) {
	noTimes := BuildProfile([]model.Transaction{
		{ID: "a", Date: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), Name: "Shop", Amount: 10},
	})
	afternoon := time.Date(2025, 2, 2, 15, 0, 0, 0, time.UTC)
	assert.False(t, noTimes.UnusualHour(model.Transaction{Timestamp: &afternoon}),
		"profiles without observed hours never call an hour unusual")

	profile := &SpendingProfile{HourLow: 8, HourHigh: 22, hasHours: true}
	threeAM := time.Date(2025, 2, 2, 3, 0, 0, 0, time.UTC)
	assert.True(t, profile.UnusualHour(model.Transaction{Timestamp: &threeAM}))
	assert.False(t, profile.UnusualHour(model.Transaction{Timestamp: &afternoon}))
	assert.False(t, profile.UnusualHour(model.Transaction{}), "missing posting time is not unusual")
}

func TestIsolationForest_SeparatesOutlier(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	matrix := make([][]float64, 0, 61)
	for i := 0; i < 60; i++ {
		matrix = append(matrix, []float64{10 + float64(i%4), 5 + float64(i%3)})
	}
	matrix = append(matrix, []float64{200, 90})

	forest := fitForest(matrix, 100, 256, rng)

	outlierScore := forest.score(matrix[60])
	clusterScore := forest.score(matrix[0])
	assert.Greater(t, outlierScore, clusterScore)
	assert.Greater(t, outlierScore, 0.6)
	assert.LessOrEqual(t, outlierScore, 1.0)
	assert.Greater(t, clusterScore, 0.0)
}

func TestContaminationCutoff(t *testing.T) {
	scores := make([]float64, 0, 100)
	for i := 0; i < 100; i++ {
		scores = append(scores, float64(i)/100)
	}
	cutoff := contaminationCutoff(scores, 0.05)
	assert.InDelta(t, 0.94, cutoff, 0.011, "roughly the top five percent sit above the cutoff")

	assert.Equal(t, 1.0, contaminationCutoff(nil, 0.05), "no scores means nothing can pass")
}
