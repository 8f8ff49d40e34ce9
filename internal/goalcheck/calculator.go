// Package goalcheck projects whether a savings goal is on pace and what
// contribution closes the gap.
package goalcheck

import (
	"math"
	"time"

	"github.com/ledgerlens/ledgerlens/internal/model"
)

// daysPerMonth is the mean Gregorian month length, used to project a
// completion date from a fractional number of months.
const daysPerMonth = 30.44

// Config holds feasibility thresholds.
type Config struct {
	// OnTrackTolerancePct is how many percentage points actual progress may
	// trail expected progress before the goal counts as off track.
	OnTrackTolerancePct float64
}

// DefaultConfig returns the default feasibility thresholds.
func DefaultConfig() Config {
	return Config{OnTrackTolerancePct: 10.0}
}

// Calculator evaluates goal feasibility.
type Calculator struct {
	config Config
}

// NewCalculator creates a calculator. A zero tolerance falls back to the
// default.
func NewCalculator(config Config) *Calculator {
	if config.OnTrackTolerancePct <= 0 {
		config.OnTrackTolerancePct = DefaultConfig().OnTrackTolerancePct
	}
	return &Calculator{config: config}
}

// Evaluate computes the feasibility of a goal as of now, given the user's
// recent average monthly net savings rate.
func (c *Calculator) Evaluate(snapshot model.GoalSnapshot, now time.Time, currentMonthlyRate float64) model.FeasibilityResult {
	result := model.FeasibilityResult{
		CurrentMonthly: currentMonthlyRate,
	}

	if snapshot.TargetAmount > 0 {
		result.ProgressPct = snapshot.CurrentAmount / snapshot.TargetAmount * 100
	}

	remaining := snapshot.Remaining()
	if remaining <= 0 {
		// Goal already met once reserved funds are counted.
		result.OnTrack = true
		result.RequiredMonthly = 0
		result.Gap = -currentMonthlyRate
		result.Note = "goal already met"
		return result
	}

	totalDays := snapshot.TargetDate.Sub(snapshot.StartDate).Hours() / 24
	if totalDays <= 0 {
		// No usable deadline; there is no pace to fall behind.
		result.OnTrack = true
		result.RequiredMonthly = 0
		result.Note = "no deadline"
		result.ProjectedCompletion = projectCompletion(now, remaining, currentMonthlyRate)
		return result
	}

	elapsedDays := now.Sub(snapshot.StartDate).Hours() / 24
	if elapsedDays < 0 {
		elapsedDays = 0
	}
	result.ExpectedProgressPct = elapsedDays / totalDays * 100

	monthsRemaining := calendarMonthsBetween(now, snapshot.TargetDate)
	if monthsRemaining <= 0 {
		// Deadline passed or is today: the whole gap is due now. Never
		// divide by the zero months left.
		result.RequiredMonthly = remaining
		result.Note = "deadline reached"
	} else {
		result.RequiredMonthly = remaining / float64(monthsRemaining)
	}

	result.OnTrack = result.ProgressPct >= result.ExpectedProgressPct-c.config.OnTrackTolerancePct
	result.Gap = result.RequiredMonthly - currentMonthlyRate
	result.ProjectedCompletion = projectCompletion(now, remaining, currentMonthlyRate)

	return result
}

// calendarMonthsBetween counts whole calendar months from now until the
// target date, clamped at zero.
func calendarMonthsBetween(now, target time.Time) int {
	months := (target.Year()-now.Year())*12 + int(target.Month()) - int(now.Month())
	if target.Day() < now.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}

// projectCompletion estimates when the goal completes at the current
// savings rate. Returns nil when the rate makes no forward progress.
func projectCompletion(now time.Time, remaining, monthlyRate float64) *time.Time {
	if monthlyRate <= 0 || remaining <= 0 {
		return nil
	}
	months := remaining / monthlyRate
	projected := now.AddDate(0, 0, int(math.Ceil(months*daysPerMonth)))
	return &projected
}
