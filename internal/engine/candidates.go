package engine

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/ledgerlens/ledgerlens/internal/model"
)

const (
	// subscriptionReviewFloor is the combined monthly subscription spend
	// above which a review suggestion is raised.
	subscriptionReviewFloor = 50.0

	// urgentAnomalyScore promotes an outlier from high to urgent.
	urgentAnomalyScore = 0.85

	// urgentDeadlineDays promotes a behind-schedule goal to urgent when
	// its deadline is this close.
	urgentDeadlineDays = 30
)

// buildCandidates converts the raw detector outputs into unranked insight
// candidates. The synthesizer decides which of them survive.
func (e *InsightEngine) buildCandidates(userID string, now time.Time, summary *RunSummary) []model.Insight {
	var candidates []model.Insight
	candidates = append(candidates, subscriptionCandidates(userID, summary.Subscriptions, e.config.SubscriptionMinConfidence)...)
	candidates = append(candidates, anomalyCandidates(userID, summary.Anomalies)...)
	candidates = append(candidates, goalCandidates(userID, now, summary.GoalResults)...)
	return candidates
}

func subscriptionCandidates(userID string, subscriptions []model.RecurringCandidate, minConfidence float64) []model.Insight {
	var candidates []model.Insight
	var monthlyTotal float64
	var counted int

	for _, sub := range subscriptions {
		if sub.Confidence < minConfidence {
			continue
		}
		monthlyTotal += sub.MonthlyCost()
		counted++

		amount := sub.TypicalAmount
		candidates = append(candidates, model.Insight{
			UserID:   userID,
			Type:     model.InsightSubscriptionAlert,
			Priority: model.PriorityNormal,
			Category: sub.Counterparty,
			Title:    fmt.Sprintf("Recurring charge: %s", capitalize(sub.Counterparty)),
			Message: fmt.Sprintf("%s bills about $%.2f %s. The next charge is expected around %s.",
				capitalize(sub.Counterparty), sub.TypicalAmount, sub.Frequency, sub.NextExpected.Format("Jan 2")),
			Amount:   &amount,
			SignalAt: sub.NextExpected,
			Context: map[string]any{
				"counterparty":   sub.Counterparty,
				"frequency":      string(sub.Frequency),
				"occurrences":    len(sub.Occurrences),
				"confidence":     sub.Confidence,
				"typical_amount": sub.TypicalAmount,
				"next_expected":  sub.NextExpected.Format(time.RFC3339),
			},
		})
	}

	if monthlyTotal >= subscriptionReviewFloor && counted > 1 {
		total := monthlyTotal
		candidates = append(candidates, model.Insight{
			UserID:   userID,
			Type:     model.InsightSavingsOpportunity,
			Priority: model.PriorityNormal,
			Category: "Subscriptions",
			Title:    "Subscriptions are adding up",
			Message: fmt.Sprintf("You spend about $%.2f a month across %d recurring services. Cancelling ones you no longer use frees that up for your goals.",
				monthlyTotal, counted),
			Amount: &total,
			Context: map[string]any{
				"monthly_total": monthlyTotal,
				"services":      counted,
			},
		})
	}

	return candidates
}

func anomalyCandidates(userID string, findings []model.AnomalyFinding) []model.Insight {
	candidates := make([]model.Insight, 0, len(findings))
	for _, finding := range findings {
		txn := finding.Transaction
		priority := model.PriorityHigh
		if finding.Score >= urgentAnomalyScore {
			priority = model.PriorityUrgent
		}

		signalAt := txn.Date
		if txn.Timestamp != nil {
			signalAt = *txn.Timestamp
		}
		amount := txn.Amount

		candidates = append(candidates, model.Insight{
			UserID:   userID,
			Type:     model.InsightAnomaly,
			Priority: priority,
			Category: txn.Category,
			Title:    fmt.Sprintf("Unusual charge: %s", merchantLabel(txn)),
			Message:  fmt.Sprintf("%s.", strings.Join(finding.Reasons, ". ")),
			Amount:   &amount,
			SignalAt: signalAt,
			Context: map[string]any{
				"transaction_id": txn.ID,
				"merchant":       merchantLabel(txn),
				"score":          finding.Score,
				"date":           txn.Date.Format("2006-01-02"),
			},
		})
	}
	return candidates
}

func goalCandidates(userID string, now time.Time, results []GoalResult) []model.Insight {
	var candidates []model.Insight
	for _, gr := range results {
		goal := gr.Goal
		result := gr.Result
		signalAt := now

		switch {
		case goal.Snapshot().Remaining() <= 0:
			target := goal.TargetAmount
			candidates = append(candidates, model.Insight{
				UserID:   userID,
				Type:     model.InsightCelebration,
				Priority: model.PriorityNormal,
				Category: goal.Name,
				Title:    fmt.Sprintf("Goal reached: %s", goal.Name),
				Message:  fmt.Sprintf("You hit your $%.2f target for %s. Time to pick the next one.", goal.TargetAmount, goal.Name),
				Amount:   &target,
				SignalAt: signalAt,
				Context:  goalContext(goal, result),
			})

		case !result.OnTrack:
			priority := model.PriorityHigh
			if daysUntil(now, goal.TargetDate) <= urgentDeadlineDays {
				priority = model.PriorityUrgent
			}
			required := result.RequiredMonthly
			message := fmt.Sprintf("%s is %.0f%% funded but should be near %.0f%% by now. Saving $%.2f a month still gets you there by %s.",
				goal.Name, result.ProgressPct, result.ExpectedProgressPct, result.RequiredMonthly, goal.TargetDate.Format("Jan 2, 2006"))
			if result.Gap > 0 {
				message += fmt.Sprintf(" That is $%.2f more than the current pace.", result.Gap)
			}
			candidates = append(candidates, model.Insight{
				UserID:   userID,
				Type:     model.InsightGoalProgress,
				Priority: priority,
				Category: goal.Name,
				Title:    fmt.Sprintf("%s is falling behind", goal.Name),
				Message:  message,
				Amount:   &required,
				SignalAt: signalAt,
				Context:  goalContext(goal, result),
			})

		default:
			candidates = append(candidates, model.Insight{
				UserID:   userID,
				Type:     model.InsightGoalProgress,
				Priority: model.PriorityLow,
				Category: goal.Name,
				Title:    fmt.Sprintf("%s is on track", goal.Name),
				Message: fmt.Sprintf("%s is %.0f%% funded against an expected %.0f%%. Keep the current pace going.",
					goal.Name, result.ProgressPct, result.ExpectedProgressPct),
				SignalAt: signalAt,
				Context:  goalContext(goal, result),
			})
		}
	}
	return candidates
}

func goalContext(goal model.Goal, result model.FeasibilityResult) map[string]any {
	ctx := map[string]any{
		"goal_id":          goal.ID,
		"progress_pct":     result.ProgressPct,
		"expected_pct":     result.ExpectedProgressPct,
		"required_monthly": result.RequiredMonthly,
		"on_track":         result.OnTrack,
	}
	if result.Note != "" {
		ctx["note"] = result.Note
	}
	return ctx
}

func daysUntil(now, target time.Time) int {
	return int(target.Sub(now).Hours() / 24)
}

func merchantLabel(txn model.Transaction) string {
	if txn.MerchantName != "" {
		return txn.MerchantName
	}
	return txn.Name
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
