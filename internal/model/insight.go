package model

import "time"

// InsightType categorizes what an insight is about.
type InsightType string

// Insight type constants.
const (
	InsightSavingsOpportunity InsightType = "savings_opportunity"
	InsightSpendingAlert      InsightType = "spending_alert"
	InsightGoalProgress       InsightType = "goal_progress"
	InsightCelebration        InsightType = "celebration"
	InsightAnomaly            InsightType = "anomaly"
	InsightPatternDetection   InsightType = "pattern_detection"
	InsightSubscriptionAlert  InsightType = "subscription_alert"
)

// InsightPriority orders insights for delivery.
type InsightPriority string

// Insight priority constants.
const (
	PriorityLow    InsightPriority = "low"
	PriorityNormal InsightPriority = "normal"
	PriorityHigh   InsightPriority = "high"
	PriorityUrgent InsightPriority = "urgent"
)

// Weight returns a sortable rank for the priority, higher meaning more
// important. Unknown priorities sort below low.
func (p InsightPriority) Weight() int {
	switch p {
	case PriorityUrgent:
		return 4
	case PriorityHigh:
		return 3
	case PriorityNormal:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// Insight is a user-facing finding produced by the insight engine. Amount is
// nil when the insight has no single associated dollar figure. Context holds
// structured supporting data for the consuming surface.
type Insight struct {
	CreatedAt   time.Time
	ExpiresAt   time.Time
	SignalAt    time.Time // When the underlying signal occurred, for tie-breaking
	Context     map[string]any
	Amount      *float64
	ID          string
	UserID      string
	Title       string
	Message     string
	Category    string
	Type        InsightType
	Priority    InsightPriority
	IsRead      bool
	IsDismissed bool
}

// Expired reports whether the insight is stale at the given time. Expired
// insights no longer count toward dedup or daily caps.
func (i *Insight) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && now.After(i.ExpiresAt)
}
