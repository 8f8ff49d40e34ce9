package model

import "time"

// Goal is a savings goal tracked for a user.
type Goal struct {
	TargetDate     time.Time
	StartDate      time.Time
	CreatedAt      time.Time
	ID             string
	UserID         string
	Name           string
	TargetAmount   float64
	CurrentAmount  float64
	ReservedAmount float64
}

// Snapshot extracts the read-only view the feasibility calculator consumes.
func (g *Goal) Snapshot() GoalSnapshot {
	return GoalSnapshot{
		TargetAmount:   g.TargetAmount,
		CurrentAmount:  g.CurrentAmount,
		ReservedAmount: g.ReservedAmount,
		TargetDate:     g.TargetDate,
		StartDate:      g.StartDate,
	}
}

// GoalSnapshot is the immutable input to feasibility calculation.
type GoalSnapshot struct {
	TargetDate     time.Time
	StartDate      time.Time
	TargetAmount   float64
	CurrentAmount  float64
	ReservedAmount float64
}

// Remaining returns the amount still needed after counting committed funds.
func (s GoalSnapshot) Remaining() float64 {
	return s.TargetAmount - s.CurrentAmount - s.ReservedAmount
}

// FeasibilityResult reports whether a goal is on pace and what it takes to
// close the gap.
type FeasibilityResult struct {
	ProjectedCompletion *time.Time
	Note                string
	ProgressPct         float64
	ExpectedProgressPct float64
	RequiredMonthly     float64
	CurrentMonthly      float64
	Gap                 float64
	OnTrack             bool
}
