// Package style provides consistent terminal styling for marshal output.
// Every check prints one glyph line: pass, fail, or warn.
package style

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	colorSuccess = lipgloss.Color("76")  // green
	colorWarning = lipgloss.Color("214") // orange
	colorError   = lipgloss.Color("196") // red
	colorMuted   = lipgloss.Color("242") // gray
)

var (
	passStyle = lipgloss.NewStyle().Foreground(colorSuccess)
	failStyle = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	warnStyle = lipgloss.NewStyle().Foreground(colorWarning)
	dimStyle  = lipgloss.NewStyle().Foreground(colorMuted)
)

// Pass renders a passing check line.
func Pass(format string, args ...interface{}) string {
	return passStyle.Render("✓") + " " + fmt.Sprintf(format, args...)
}

// Fail renders a failing check line.
func Fail(format string, args ...interface{}) string {
	return failStyle.Render("✗") + " " + fmt.Sprintf(format, args...)
}

// Warn renders a warning line for degraded evidence.
func Warn(format string, args ...interface{}) string {
	return warnStyle.Render("⚠") + " " + fmt.Sprintf(format, args...)
}

// Dim renders secondary detail text.
func Dim(s string) string {
	return dimStyle.Render(s)
}

// Summary renders an aggregate count line: green when stuck is zero,
// red otherwise.
func Summary(total, stuck int) string {
	if stuck == 0 {
		return passStyle.Render(fmt.Sprintf("%d/%d agents healthy", total, total))
	}
	return failStyle.Render(fmt.Sprintf("%d/%d agents stuck", stuck, total))
}
