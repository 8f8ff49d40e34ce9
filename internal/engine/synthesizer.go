package engine

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerlens/ledgerlens/internal/model"
)

// SynthesizerConfig controls how many insights reach the user and how long
// they stay relevant.
type SynthesizerConfig struct {
	// DailyCap is the maximum number of insights created per user per day.
	DailyCap int
	// DedupWindowDays suppresses a candidate when an insight with the same
	// type and category was created within this many days.
	DedupWindowDays int
	// ExpiryDays is how long an insight stays active before it is purged.
	ExpiryDays int
}

// DefaultSynthesizerConfig returns the production insight budget.
func DefaultSynthesizerConfig() SynthesizerConfig {
	return SynthesizerConfig{
		DailyCap:        2,
		DedupWindowDays: 7,
		ExpiryDays:      7,
	}
}

// Synthesizer turns a pile of candidate insights into the short list worth
// showing. Users tune out when every run dumps a dozen notifications, so
// the synthesizer ranks by priority, drops repeats, and enforces a daily
// budget.
type Synthesizer struct {
	config SynthesizerConfig
}

// NewSynthesizer creates a synthesizer, filling zero config fields with
// defaults.
func NewSynthesizer(config SynthesizerConfig) *Synthesizer {
	defaults := DefaultSynthesizerConfig()
	if config.DailyCap == 0 {
		config.DailyCap = defaults.DailyCap
	}
	if config.DedupWindowDays == 0 {
		config.DedupWindowDays = defaults.DedupWindowDays
	}
	if config.ExpiryDays == 0 {
		config.ExpiryDays = defaults.ExpiryDays
	}
	return &Synthesizer{config: config}
}

// Synthesize selects the insights to persist. Candidates are deduplicated
// against recent insights and each other by type and category, ranked by
// priority with the fresher underlying signal breaking ties, and cut to
// whatever remains of today's cap. Selected insights come back stamped
// with IDs, creation time, and expiry.
func (s *Synthesizer) Synthesize(candidates, recent []model.Insight, usedToday int, now time.Time) []model.Insight {
	remaining := s.config.DailyCap - usedToday
	if remaining <= 0 || len(candidates) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(recent))
	for _, insight := range recent {
		seen[dedupKey(insight)] = true
	}

	unique := make([]model.Insight, 0, len(candidates))
	for _, candidate := range candidates {
		key := dedupKey(candidate)
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, candidate)
	}

	sort.SliceStable(unique, func(i, j int) bool {
		wi, wj := unique[i].Priority.Weight(), unique[j].Priority.Weight()
		if wi != wj {
			return wi > wj
		}
		return unique[i].SignalAt.After(unique[j].SignalAt)
	})

	if len(unique) > remaining {
		unique = unique[:remaining]
	}

	for i := range unique {
		if unique[i].ID == "" {
			unique[i].ID = uuid.New().String()
		}
		unique[i].CreatedAt = now
		unique[i].ExpiresAt = now.AddDate(0, 0, s.config.ExpiryDays)
	}
	return unique
}

func dedupKey(insight model.Insight) string {
	return string(insight.Type) + "\x00" + insight.Category
}
