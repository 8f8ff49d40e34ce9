package model

// AnomalyFinding flags a transaction that deviates from the user's
// spending profile. Score is normalized to [0,1] with higher meaning more
// anomalous. Reasons is never empty for an emitted finding.
type AnomalyFinding struct {
	Transaction Transaction
	Reasons     []string
	Score       float64
}
