// Package style provides consistent terminal styling using Lipgloss.
package style

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Palette colors, shared with the status watch view.
var (
	ColorPass   = lipgloss.AdaptiveColor{Light: "#86B300", Dark: "#AAD94C"}
	ColorWarn   = lipgloss.AdaptiveColor{Light: "#F2AE49", Dark: "#FFB454"}
	ColorFail   = lipgloss.AdaptiveColor{Light: "#F07171", Dark: "#F26D78"}
	ColorAccent = lipgloss.AdaptiveColor{Light: "#399EE6", Dark: "#59C2FF"}
	ColorMuted  = lipgloss.AdaptiveColor{Light: "#8A9199", Dark: "#565B66"}
)

var (
	// Success style for positive outcomes (green)
	Success = lipgloss.NewStyle().
		Foreground(ColorPass).
		Bold(true)

	// Warning style for cautionary messages (yellow)
	Warning = lipgloss.NewStyle().
		Foreground(ColorWarn).
		Bold(true)

	// Error style for failures (red)
	Error = lipgloss.NewStyle().
		Foreground(ColorFail).
		Bold(true)

	// Info style for informational messages (blue)
	Info = lipgloss.NewStyle().
		Foreground(ColorAccent)

	// Dim style for secondary information (gray)
	Dim = lipgloss.NewStyle().
		Foreground(ColorMuted)

	// Bold style for emphasis
	Bold = lipgloss.NewStyle().
		Bold(true)

	// SuccessPrefix is the checkmark prefix for success messages
	SuccessPrefix = Success.Render("✓")

	// WarningPrefix is the warning prefix
	WarningPrefix = Warning.Render("!")

	// ErrorPrefix is the error prefix
	ErrorPrefix = Error.Render("✗")

	// ArrowPrefix for action indicators
	ArrowPrefix = Info.Render("→")
)

// PrintWarning prints a warning message with consistent formatting.
// The format and args work like fmt.Printf.
func PrintWarning(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	fmt.Printf("%s %s\n", Warning.Render("! Warning:"), msg)
}
