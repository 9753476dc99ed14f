package tui

import (
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
)

const (
	labelSigningIn = "Signing in..."
	labelThinking  = "Thinking..."
)

var busyLabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))

// newSpinner builds the spinner shared by the login and chat views. Only
// one request is in flight at a time, so one animation is enough.
func newSpinner() spinner.Model {
	return spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("212"))),
	)
}

// busyView renders the spinner followed by what the client is waiting on
func busyView(s spinner.Model, label string) string {
	return s.View() + " " + busyLabelStyle.Render(label)
}
