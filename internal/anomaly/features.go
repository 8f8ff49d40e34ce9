package anomaly

import (
	"time"

	"github.com/ledgerlens/ledgerlens/internal/model"
)

const (
	featureCount = 7

	// middayHour stands in for transactions that carry no posting time so
	// they neither look nocturnal nor skew the hour dimension.
	middayHour = 12
)

// featureVector projects a transaction into the numeric space the outlier
// model is fit over. The dimensions are raw amount, ratio to the category's
// historical mean, posting hour, day of week, weekend flag, counterparty
// frequency, and description length.
func featureVector(txn model.Transaction, profile *SpendingProfile) []float64 {
	features := make([]float64, featureCount)

	features[0] = txn.Amount

	ratio := 1.0
	if mean, ok := profile.CategoryMean(txn.Category); ok && mean > 0 {
		ratio = txn.Amount / mean
	}
	features[1] = ratio

	hour := txn.Hour()
	if hour < 0 {
		hour = middayHour
	}
	features[2] = float64(hour)

	weekday := txn.Date.Weekday()
	features[3] = float64(weekday)
	if weekday == time.Saturday || weekday == time.Sunday {
		features[4] = 1
	}

	features[5] = float64(profile.CounterpartyFrequency(txn))
	features[6] = float64(len(txn.Name))

	return features
}

// featureMatrix builds the vectors for every scorable transaction and
// reports which input rows were used.
func featureMatrix(transactions []model.Transaction, profile *SpendingProfile) ([][]float64, []model.Transaction) {
	matrix := make([][]float64, 0, len(transactions))
	used := make([]model.Transaction, 0, len(transactions))
	for _, txn := range transactions {
		if txn.Amount <= 0 || txn.Pending {
			continue
		}
		matrix = append(matrix, featureVector(txn, profile))
		used = append(used, txn)
	}
	return matrix, used
}
