package main

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorGreen = lipgloss.Color("42")
	colorRed   = lipgloss.Color("196")
	colorGray  = lipgloss.Color("245")

	passStyle   = lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
	failStyle   = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	skipStyle   = lipgloss.NewStyle().Foreground(colorGray)
	reportStyle = lipgloss.NewStyle().Foreground(colorRed).PaddingLeft(2)
)

type status int

const (
	statusPass status = iota
	statusFail
	statusSkip
)

func statusIcon(s status) string {
	switch s {
	case statusPass:
		return passStyle.Render("✓")
	case statusFail:
		return failStyle.Render("✗")
	default:
		return skipStyle.Render("-")
	}
}

// formatReport indents a check report under its file line.
func formatReport(report string) string {
	lines := strings.Split(strings.TrimPrefix(report, "\n"), "\n")
	for i, l := range lines {
		lines[i] = reportStyle.Render(l)
	}
	return strings.Join(lines, "\n")
}
