package main

import "github.com/charmbracelet/lipgloss"

const (
	colorAccent  lipgloss.Color = "#cba6f7"
	colorSuccess lipgloss.Color = "#a6e3a1"
	colorError   lipgloss.Color = "#f38ba8"
	colorMuted   lipgloss.Color = "#7f849c"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)

	checkMark = lipgloss.NewStyle().Foreground(colorSuccess).Render("✓")
	crossMark = lipgloss.NewStyle().Foreground(colorError).Render("✗")
)
