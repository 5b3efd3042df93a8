package cmd

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Color palette for consistent theming
var (
	primaryBlue   = lipgloss.Color("39")  // Headers
	primaryGreen  = lipgloss.Color("82")  // Cache hits, fresh entries
	primaryYellow = lipgloss.Color("220") // Status messages
	primaryRed    = lipgloss.Color("196") // Errors, expired entries

	secondaryGray = lipgloss.Color("244")
	darkGray      = lipgloss.Color("240") // Borders
	footerGray    = lipgloss.Color("241")

	accentCyan = lipgloss.Color("86") // Currency pairs

	selectedBg = lipgloss.Color("57")
	selectedFg = lipgloss.Color("229")
)

var (
	hitStyle     = lipgloss.NewStyle().Foreground(primaryGreen).Bold(true)
	missStyle    = lipgloss.NewStyle().Foreground(primaryYellow).Bold(true)
	expiredStyle = lipgloss.NewStyle().Foreground(primaryRed)
	pairStyle    = lipgloss.NewStyle().Foreground(accentCyan).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(secondaryGray)
)

// cacheLabel renders HIT or MISS
func cacheLabel(hit bool) string {
	if hit {
		return hitStyle.Render("HIT")
	}
	return missStyle.Render("MISS")
}

// freshnessLabel renders the state of a cached entry
func freshnessLabel(expired bool) string {
	if expired {
		return expiredStyle.Render("expired")
	}
	return hitStyle.Render("fresh")
}

// isTerminal reports whether stdout is an interactive terminal
func isTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
