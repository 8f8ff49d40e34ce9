package anomaly

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/ledgerlens/ledgerlens/internal/model"
)

// Config controls outlier detection thresholds.
type Config struct {
	// MinSampleSize is the minimum number of settled outflows required
	// before any scoring happens. Below it the detector stays silent.
	MinSampleSize int

	// NumTrees and SubsampleSize shape the isolation ensemble.
	NumTrees      int
	SubsampleSize int

	// Seed fixes the random source so repeated runs over the same data
	// produce identical scores.
	Seed int64

	// ScoreThreshold is the minimum normalized score for a finding.
	ScoreThreshold float64

	// Contamination is the fraction of the batch the model treats as
	// potentially anomalous when placing the score cutoff.
	Contamination float64

	// CategoryMeanRatio is the multiple of a category's historical mean
	// above which the amount itself becomes a reported reason.
	CategoryMeanRatio float64

	// LargeAmountFloor marks any single charge above it as notable.
	LargeAmountFloor float64
}

// DefaultConfig returns the detection thresholds used in production.
func DefaultConfig() Config {
	return Config{
		MinSampleSize:     50,
		NumTrees:          100,
		SubsampleSize:     256,
		Seed:              1,
		ScoreThreshold:    0.6,
		Contamination:     0.05,
		CategoryMeanRatio: 2.0,
		LargeAmountFloor:  500,
	}
}

// Detector flags transactions that diverge from a user's spending profile.
type Detector struct {
	config Config
}

// NewDetector creates a detector, filling zero config fields with defaults.
func NewDetector(config Config) *Detector {
	defaults := DefaultConfig()
	if config.MinSampleSize == 0 {
		config.MinSampleSize = defaults.MinSampleSize
	}
	if config.NumTrees == 0 {
		config.NumTrees = defaults.NumTrees
	}
	if config.SubsampleSize == 0 {
		config.SubsampleSize = defaults.SubsampleSize
	}
	if config.Seed == 0 {
		config.Seed = defaults.Seed
	}
	if config.ScoreThreshold == 0 {
		config.ScoreThreshold = defaults.ScoreThreshold
	}
	if config.Contamination == 0 {
		config.Contamination = defaults.Contamination
	}
	if config.CategoryMeanRatio == 0 {
		config.CategoryMeanRatio = defaults.CategoryMeanRatio
	}
	if config.LargeAmountFloor == 0 {
		config.LargeAmountFloor = defaults.LargeAmountFloor
	}
	return &Detector{config: config}
}

// Detect builds a spending profile from the batch, fits an isolation
// forest over its feature matrix, and scores every settled outflow in it.
// Anything to check rides in the same slice as the history it is judged
// against. A finding requires both the contamination cutoff and the
// absolute score threshold, which keeps marginal separations in otherwise
// uniform data from surfacing as noise. With fewer than MinSampleSize
// usable rows it returns nothing rather than guessing.
func (d *Detector) Detect(transactions []model.Transaction) []model.AnomalyFinding {
	profile := BuildProfile(transactions)
	if profile.SampleCount < d.config.MinSampleSize {
		return nil
	}

	matrix, scored := featureMatrix(transactions, profile)
	rng := rand.New(rand.NewSource(d.config.Seed))
	forest := fitForest(matrix, d.config.NumTrees, d.config.SubsampleSize, rng)

	scores := make([]float64, len(matrix))
	for i, row := range matrix {
		scores[i] = forest.score(row)
	}
	cutoff := contaminationCutoff(scores, d.config.Contamination)

	var findings []model.AnomalyFinding
	for i, score := range scores {
		if score < cutoff || score < d.config.ScoreThreshold {
			continue
		}
		findings = append(findings, model.AnomalyFinding{
			Transaction: scored[i],
			Score:       score,
			Reasons:     d.reasons(scored[i], profile),
		})
	}

	sort.Slice(findings, func(i, j int) bool {
		if findings[i].Score != findings[j].Score {
			return findings[i].Score > findings[j].Score
		}
		return findings[i].Transaction.Amount > findings[j].Transaction.Amount
	})

	return findings
}

// reasons explains a finding in plain language. Checks run in a fixed
// order and the generic fallback guarantees at least one reason.
func (d *Detector) reasons(txn model.Transaction, profile *SpendingProfile) []string {
	var reasons []string

	if mean, ok := profile.CategoryMean(txn.Category); ok && mean > 0 {
		if ratio := txn.Amount / mean; ratio > d.config.CategoryMeanRatio {
			reasons = append(reasons, fmt.Sprintf("Amount is %.1fx the %s average", ratio, txn.Category))
		}
	}

	// When the batch is its own history a first-time merchant still counts
	// itself once, so one occurrence means no prior relationship.
	if profile.CounterpartyFrequency(txn) <= 1 {
		reasons = append(reasons, fmt.Sprintf("First charge from %s", displayName(txn)))
	}

	if profile.UnusualHour(txn) {
		reasons = append(reasons, fmt.Sprintf("Posted at %d:00, outside the usual %d:00-%d:00 window",
			txn.Hour(), profile.HourLow, profile.HourHigh))
	}

	if txn.Amount > d.config.LargeAmountFloor {
		reasons = append(reasons, fmt.Sprintf("Large transaction over $%.0f", d.config.LargeAmountFloor))
	}

	if len(reasons) == 0 {
		reasons = append(reasons, "Differs from the typical spending pattern")
	}

	return reasons
}

// contaminationCutoff places the score threshold so roughly the configured
// fraction of the fitted batch sits above it.
func contaminationCutoff(scores []float64, contamination float64) float64 {
	if len(scores) == 0 {
		return 1
	}
	sorted := make([]float64, len(scores))
	copy(sorted, scores)
	sort.Float64s(sorted)

	idx := int(math.Ceil(float64(len(sorted))*(1-contamination))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func displayName(txn model.Transaction) string {
	if txn.MerchantName != "" {
		return txn.MerchantName
	}
	return txn.Name
}
