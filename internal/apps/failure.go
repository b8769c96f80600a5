package apps

import (
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
)

// FailureText is shown in a window whose app could not be loaded.
const FailureText = "Failed to load app."

type failure struct{}

func newFailure() View { return failure{} }

func (failure) Init() tea.Cmd            { return nil }
func (failure) Update(tea.Msg) tea.Cmd   { return nil }
func (failure) View(width, _ int) string { return lipgloss.NewStyle().Width(width).Render(FailureText) }
