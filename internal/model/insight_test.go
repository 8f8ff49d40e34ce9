package model

import (
	"testing"
	"time"
)

func TestInsightPriority_Weight(t *testing.T) {
	tests := []struct {
		name     string
		priority InsightPriority
		want     int
	}{
		{name: "urgent outranks everything", priority: PriorityUrgent, want: 4},
		{name: "high", priority: PriorityHigh, want: 3},
		{name: "normal", priority: PriorityNormal, want: 2},
		{name: "low", priority: PriorityLow, want: 1},
		{name: "unknown sorts below low", priority: InsightPriority("critical"), want: 0},
		{name: "empty sorts below low", priority: InsightPriority(""), want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.priority.Weight(); got != tt.want {
				t.Errorf("Weight() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestInsight_Expired(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		insight Insight
		want    bool
	}{
		{
			name:    "no expiry never expires",
			insight: Insight{},
			want:    false,
		},
		{
			name:    "future expiry is active",
			insight: Insight{ExpiresAt: now.Add(time.Hour)},
			want:    false,
		},
		{
			name:    "exact expiry moment is still active",
			insight: Insight{ExpiresAt: now},
			want:    false,
		},
		{
			name:    "past expiry is expired",
			insight: Insight{ExpiresAt: now.Add(-time.Minute)},
			want:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.insight.Expired(now); got != tt.want {
				t.Errorf("Expired(%v) = %v, want %v", now, got, tt.want)
			}
		})
	}
}
