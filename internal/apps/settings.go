package apps

import (
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/ispwin/ispwin/internal/theme"
)

// rows of the theme options inside the settings content area.
const (
	settingsLightRow = 2
	settingsDarkRow  = 3
)

type settings struct {
	ctx    Context
	status string
}

func newSettings(ctx Context) View {
	if ctx.Theme == nil {
		panic("settings needs a theme manager")
	}
	return &settings{ctx: ctx}
}

func (s *settings) Init() tea.Cmd { return nil }

func (s *settings) apply(mode theme.Mode) {
	if err := s.ctx.Theme.Set(mode); err != nil {
		s.status = err.Error()
		return
	}
	s.status = "Theme: " + string(mode)
}

func (s *settings) Update(msg tea.Msg) tea.Cmd {
	key, ok := msg.(tea.KeyPressMsg)
	if !ok {
		return nil
	}
	switch key.String() {
	case "l", "up", "k":
		s.apply(theme.Light)
	case "d", "down", "j":
		s.apply(theme.Dark)
	case "space", "enter", "t":
		if _, err := s.ctx.Theme.Toggle(); err != nil {
			s.status = err.Error()
			return nil
		}
		s.status = "Theme: " + string(s.ctx.Theme.Mode())
	}
	return nil
}

func (s *settings) Click(_, y int, _ bool) tea.Cmd {
	switch y {
	case settingsLightRow:
		s.apply(theme.Light)
	case settingsDarkRow:
		s.apply(theme.Dark)
	}
	return nil
}

func (s *settings) View(width, _ int) string {
	pal := paletteOf(s.ctx)
	mode := s.ctx.Theme.Mode()

	radio := func(label string, on bool) string {
		if on {
			return lipgloss.NewStyle().Foreground(pal.Accent).Render("(•) " + label)
		}
		return "( ) " + label
	}

	lines := []string{
		lipgloss.NewStyle().Bold(true).Render("Settings"),
		"Theme:",
		radio("Light", mode == theme.Light),
		radio("Dark", mode == theme.Dark),
		"",
	}
	if s.ctx.Bus != nil {
		lines = append(lines, "Channel: "+s.ctx.Bus.Name())
	}
	if s.status != "" {
		lines = append(lines, lipgloss.NewStyle().Foreground(pal.Muted).Render(s.status))
	}
	return lipgloss.NewStyle().MaxWidth(width).Render(strings.Join(lines, "\n"))
}
