package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"fxq/internal/utils"
)

func (m *watchModel) renderLoading() string {
	return lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(primaryBlue).
		Bold(true).
		Render("Loading rate cache...")
}

func (m *watchModel) renderHeader() string {
	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(primaryBlue).
		Padding(0, 1)

	if m.stats == nil {
		return headerStyle.Render("fxq rate cache")
	}

	parts := []string{
		fmt.Sprintf("%d/%d entries", m.stats.Entries, m.stats.Capacity),
		"TTL " + formatTTL(m.stats.TTLMillis),
	}
	if lookups := m.stats.Hits + m.stats.Misses; lookups > 0 {
		parts = append(parts, fmt.Sprintf("hit rate %.1f%%", float64(m.stats.Hits)/float64(lookups)*100))
	}
	parts = append(parts, fmt.Sprintf("%d evictions", m.stats.Evictions))

	header := headerStyle.Render("fxq rate cache") + mutedStyle.Render(strings.Join(parts, " • "))
	if m.paused {
		header += " " + missStyle.Render("[paused]")
	}
	return header
}

func (m *watchModel) renderEntries() string {
	var content strings.Builder

	content.WriteString(m.renderHeader())
	content.WriteString("\n\n")

	if len(m.entries) == 0 {
		emptyStyle := lipgloss.NewStyle().
			Foreground(secondaryGray).
			Italic(true).
			Padding(2, 4)
		content.WriteString(emptyStyle.Render("Cache is empty"))
	} else {
		content.WriteString(m.tableModel.View())
	}

	if m.statusMessage != "" && m.now().Before(m.statusTimeout) {
		content.WriteString("\n")
		statusStyle := lipgloss.NewStyle().
			Foreground(primaryYellow).
			Bold(true).
			Padding(0, 1).
			MarginTop(1).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryYellow)
		content.WriteString(statusStyle.Render(m.statusMessage))
	}

	content.WriteString("\n")
	content.WriteString(m.renderFooter())
	return content.String()
}

func (m *watchModel) renderFooter() string {
	footerStyle := lipgloss.NewStyle().
		Foreground(footerGray).
		Padding(1, 1).
		MarginTop(1).
		BorderTop(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(darkGray)

	navKeys := lipgloss.NewStyle().Foreground(primaryBlue).Render("[jk/↑↓]")
	refreshKeys := lipgloss.NewStyle().Foreground(primaryGreen).Render("[r]")
	copyKeys := lipgloss.NewStyle().Foreground(primaryYellow).Render("[yy]")
	flushKeys := lipgloss.NewStyle().Foreground(primaryRed).Render("[F]")
	quitKeys := lipgloss.NewStyle().Foreground(primaryRed).Render("[q]")

	updated := "never"
	if !m.updatedAt.IsZero() {
		updated = utils.FormatAge(m.updatedAt, m.now())
	}

	footer := fmt.Sprintf("%s Navigate • %s Refresh • %s Copy • %s Flush • %s Quit • updated %s",
		navKeys, refreshKeys, copyKeys, flushKeys, quitKeys, updated)
	return footerStyle.Render(footer)
}

func (m *watchModel) renderHelp() string {
	helpStyle := lipgloss.NewStyle().
		Padding(1, 2).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(primaryBlue)

	lines := []string{
		lipgloss.NewStyle().Bold(true).Foreground(primaryBlue).Render("Keys"),
		"",
		"  j/k, ↑/↓    move selection",
		"  g/G         first / last entry",
		"  r           refresh now",
		"  p           pause / resume polling",
		"  yy          copy pair and rate",
		"  F           flush the cache",
		"  ?           toggle this help",
		"  q           quit",
		"",
		mutedStyle.Render("Entries are listed from most to least recently used."),
		mutedStyle.Render("Expired entries stay resident until evicted, overwritten or flushed."),
	}
	return helpStyle.Render(strings.Join(lines, "\n"))
}

func (m *watchModel) renderError() string {
	errorStyle := lipgloss.NewStyle().
		Foreground(primaryRed).
		Bold(true).
		Padding(1, 2)
	hint := mutedStyle.Render(fmt.Sprintf("Retrying every %s • [q] Quit", m.interval))
	return errorStyle.Render(fmt.Sprintf("Error: %v", m.err)) + "\n" + hint
}
