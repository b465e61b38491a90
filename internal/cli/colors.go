// Package cli holds rendering helpers shared by the ctltool commands.
package cli

// ANSI color codes for terminal output.
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
)

// FormatStatus returns a colored status string.
func FormatStatus(status string) string {
	switch status {
	case "valid", "verified":
		return ColorGreen + status + ColorReset
	case "invalid", "failed":
		return ColorRed + status + ColorReset
	case "unsupported", "unchecked":
		return ColorYellow + status + ColorReset
	default:
		return status
	}
}
