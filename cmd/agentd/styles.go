package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4"))
	keyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575")).
			Width(28)
	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#DDDDDD"))
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF5F87"))
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
)

// printTable writes aligned key/value rows inside a titled box.
func printTable(w io.Writer, title string, rows [][2]string) {
	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		v := r[1]
		if v == "" {
			v = dimStyle.Render("(unset)")
		} else {
			v = valueStyle.Render(v)
		}
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, keyStyle.Render(r[0]), v))
	}
	body := lipgloss.JoinVertical(lipgloss.Left, lines...)
	fmt.Fprintln(w, titleStyle.Render(title))
	fmt.Fprintln(w, boxStyle.Render(body))
}
