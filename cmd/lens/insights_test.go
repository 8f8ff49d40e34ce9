package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ledgerlens/ledgerlens/internal/model"
)

func TestFormatInsightLine(t *testing.T) {
	insight := model.Insight{
		ID:        "ins-42",
		Type:      model.InsightSubscriptionAlert,
		Priority:  model.PriorityHigh,
		Title:     "Hulu went up $3",
		Message:   "Hulu charged $18.99 this month, up from $15.99.",
		CreatedAt: time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC),
	}

	out := formatInsightLine(&insight)

	assert.Contains(t, out, "HIGH")
	assert.Contains(t, out, "Hulu went up $3")
	assert.Contains(t, out, "up from $15.99")
	assert.Contains(t, out, "subscription_alert")
	assert.Contains(t, out, "Jun 3")
	assert.Contains(t, out, "ins-42")
}
