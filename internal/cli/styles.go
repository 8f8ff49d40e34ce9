// Package cli provides styled terminal output shared by the lens commands.
package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ledgerlens/ledgerlens/internal/model"
)

var (
	// PrimaryColor is the main theme color (ledger green).
	PrimaryColor = lipgloss.Color("#2EC27E")
	// SuccessColor indicates successful operations.
	SuccessColor = lipgloss.Color("#4ECDC4") // Teal
	// WarningColor indicates warnings or caution messages.
	WarningColor = lipgloss.Color("#FFE66D") // Yellow
	// ErrorColor indicates errors or failure messages.
	ErrorColor = lipgloss.Color("#FF6B6B") // Red
	// InfoColor indicates informational messages.
	InfoColor = lipgloss.Color("#95E1D3") // Light teal
	// SubtleColor indicates less prominent UI elements.
	SubtleColor = lipgloss.Color("#666666") // Gray

	// TitleStyle is used for section titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor).
			MarginBottom(1)

	// SubtitleStyle is used for secondary headings.
	SubtitleStyle = lipgloss.NewStyle().
			Foreground(SubtleColor).
			MarginBottom(1)

	// SuccessStyle formats success messages.
	SuccessStyle = lipgloss.NewStyle().
			Foreground(SuccessColor)

	// WarningStyle formats warning messages.
	WarningStyle = lipgloss.NewStyle().
			Foreground(WarningColor)

	// ErrorStyle formats error messages.
	ErrorStyle = lipgloss.NewStyle().
			Foreground(ErrorColor)

	// InfoStyle formats informational messages.
	InfoStyle = lipgloss.NewStyle().
			Foreground(InfoColor)

	// SubtleStyle formats less prominent text.
	SubtleStyle = lipgloss.NewStyle().
			Foreground(SubtleColor)

	// BoldStyle makes text bold.
	BoldStyle = lipgloss.NewStyle().
			Bold(true)

	// BoxStyle is used for bordered content boxes.
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#333")).
			Padding(1, 2)

	// TableHeaderStyle is used for table headers.
	TableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderBottom(true).
				BorderForeground(lipgloss.Color("#333"))

	// TableCellStyle formats table cells with appropriate padding.
	TableCellStyle = lipgloss.NewStyle().
			PaddingRight(2)

	// PromptStyle is used for user prompts.
	PromptStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor)
)

// Icons.
const (
	SuccessIcon = "✓"
	ErrorIcon   = "✗"
	WarningIcon = "⚠️"
	InfoIcon    = "ℹ️"
	LensIcon    = "🔍"
	ChartIcon   = "📊"
	GoalIcon    = "🎯"
	RepeatIcon  = "🔁"
)

// FormatSuccess formats a success message with icon.
func FormatSuccess(message string) string {
	return SuccessStyle.Render(SuccessIcon + " " + message)
}

// FormatError formats an error message with icon.
func FormatError(message string) string {
	return ErrorStyle.Render(ErrorIcon + " " + message)
}

// FormatWarning formats a warning message with icon.
func FormatWarning(message string) string {
	return WarningStyle.Render(WarningIcon + " " + message)
}

// FormatInfo formats an info message with icon.
func FormatInfo(message string) string {
	return InfoStyle.Render(InfoIcon + " " + message)
}

// FormatTitle formats a title with the lens icon.
func FormatTitle(title string) string {
	return TitleStyle.Render(LensIcon + " " + title)
}

// FormatPrompt formats a prompt message.
func FormatPrompt(prompt string) string {
	return PromptStyle.Render(prompt + " → ")
}

// RenderBox renders content in a styled box.
func RenderBox(title, content string) string {
	boxTitle := TitleStyle.
		UnsetMargins().
		Render(title)

	boxContent := lipgloss.JoinVertical(
		lipgloss.Left,
		boxTitle,
		content,
	)

	return BoxStyle.Render(boxContent)
}

// PriorityStyle returns the style for rendering an insight priority.
func PriorityStyle(p model.InsightPriority) lipgloss.Style {
	switch p {
	case model.PriorityUrgent:
		return lipgloss.NewStyle().Bold(true).Foreground(ErrorColor)
	case model.PriorityHigh:
		return lipgloss.NewStyle().Foreground(WarningColor)
	case model.PriorityNormal:
		return lipgloss.NewStyle().Foreground(InfoColor)
	default:
		return SubtleStyle
	}
}

// FormatPriority renders an insight priority as a colored uppercase label.
func FormatPriority(p model.InsightPriority) string {
	return PriorityStyle(p).Render(strings.ToUpper(string(p)))
}

// FormatCurrency renders a dollar amount with the sign ahead of the
// currency symbol, so negative values read -$12.34 rather than $-12.34.
func FormatCurrency(amount float64) string {
	if amount < 0 {
		return fmt.Sprintf("-$%.2f", -amount)
	}
	return fmt.Sprintf("$%.2f", amount)
}

// FormatAmount renders a transaction amount under the signed-outflow
// convention: outflows print plain, inflows green with a leading +.
func FormatAmount(amount float64) string {
	if amount < 0 {
		return SuccessStyle.Render(fmt.Sprintf("+$%.2f", -amount))
	}
	return fmt.Sprintf("$%.2f", amount)
}

// FormatConfidence renders a detector confidence as a percentage, colored
// by how trustworthy the estimate is.
func FormatConfidence(confidence float64) string {
	text := fmt.Sprintf("%.0f%%", confidence*100)
	switch {
	case confidence >= 0.8:
		return SuccessStyle.Render(text)
	case confidence >= 0.5:
		return WarningStyle.Render(text)
	default:
		return SubtleStyle.Render(text)
	}
}
