package model

import (
	"testing"
	"time"
)

func TestGoal_Snapshot(t *testing.T) {
	goal := Goal{
		ID:             "goal-1",
		UserID:         "user-1",
		Name:           "Emergency fund",
		TargetAmount:   5000,
		CurrentAmount:  1200,
		ReservedAmount: 300,
		TargetDate:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		StartDate:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	snap := goal.Snapshot()

	if snap.TargetAmount != goal.TargetAmount {
		t.Errorf("Snapshot().TargetAmount = %v, want %v", snap.TargetAmount, goal.TargetAmount)
	}
	if snap.CurrentAmount != goal.CurrentAmount {
		t.Errorf("Snapshot().CurrentAmount = %v, want %v", snap.CurrentAmount, goal.CurrentAmount)
	}
	if snap.ReservedAmount != goal.ReservedAmount {
		t.Errorf("Snapshot().ReservedAmount = %v, want %v", snap.ReservedAmount, goal.ReservedAmount)
	}
	if !snap.TargetDate.Equal(goal.TargetDate) {
		t.Errorf("Snapshot().TargetDate = %v, want %v", snap.TargetDate, goal.TargetDate)
	}
	if !snap.StartDate.Equal(goal.StartDate) {
		t.Errorf("Snapshot().StartDate = %v, want %v", snap.StartDate, goal.StartDate)
	}
}

func TestGoalSnapshot_Remaining(t *testing.T) {
	tests := []struct {
		name string
		snap GoalSnapshot
		want float64
	}{
		{
			name: "counts saved and reserved funds",
			snap: GoalSnapshot{TargetAmount: 5000, CurrentAmount: 1200, ReservedAmount: 300},
			want: 3500,
		},
		{
			name: "nothing saved yet",
			snap: GoalSnapshot{TargetAmount: 2000},
			want: 2000,
		},
		{
			name: "overfunded goal goes negative",
			snap: GoalSnapshot{TargetAmount: 1000, CurrentAmount: 1100},
			want: -100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.snap.Remaining(); got != tt.want {
				t.Errorf("Remaining() = %v, want %v", got, tt.want)
			}
		})
	}
}
