package models

import "github.com/charmbracelet/lipgloss"

// deniedColor marks failures.
var (
	inkColor    = lipgloss.Color("#FAFAFA")
	accentColor = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	focusColor  = lipgloss.Color("#F25D94")
	deniedColor = lipgloss.Color("#FF5F87")
)

var (
	plain = lipgloss.NewStyle().Foreground(inkColor)

	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	optionsStyle  = plain.Copy().Align(lipgloss.Left)
	checkboxStyle = plain.Copy()

	checkboxHighlightStyle = lipgloss.NewStyle().Foreground(focusColor).Bold(true)

	windowStyle = optionsStyle.Copy().BorderForeground(accentColor)

	statusText = optionsStyle.Copy().MarginTop(1)
	errorText  = lipgloss.NewStyle().Foreground(deniedColor)

	header = plain.Copy().
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(accentColor).
		MarginRight(2)
)
