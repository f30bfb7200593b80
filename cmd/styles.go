package cmd

import "github.com/charmbracelet/lipgloss"

var (
	resolvedLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("78"))

	semanticLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("111"))

	locationStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	scoreStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))
)
