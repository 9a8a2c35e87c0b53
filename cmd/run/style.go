package main

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	primary = lipgloss.Color("#7C3AED")
	muted   = lipgloss.Color("#6B7280")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primary)

	keyStyle = lipgloss.NewStyle().
			Foreground(muted).
			Width(14)

	valueStyle = lipgloss.NewStyle().
			Bold(true)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primary).
			Padding(0, 1)
)

// summary renders rows of key value pairs in a box under a title.
func summary(title string, rows [][2]string) string {
	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, keyStyle.Render(r[0]), valueStyle.Render(r[1])))
	}
	body := strings.Join(lines, "\n")
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(title), body))
}
