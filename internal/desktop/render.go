package desktop

import (
	"fmt"
	"image/color"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
	"github.com/charmbracelet/x/ansi"

	"github.com/ispwin/ispwin/internal/config"
	"github.com/ispwin/ispwin/internal/pool"
	"github.com/ispwin/ispwin/internal/theme"
	"github.com/ispwin/ispwin/internal/wm"
)

// View renders the desktop.
func (m *Model) View() tea.View {
	var view tea.View
	view.SetContent(lipgloss.Sprint(m.Canvas().Render()))
	view.AltScreen = true
	view.MouseMode = tea.MouseModeAllMotion
	return view
}

// Canvas composes the desktop, windows, taskbar and overlays into a canvas
// the size of the terminal.
func (m *Model) Canvas() *lipgloss.Canvas {
	canvas := lipgloss.NewCanvas(max(m.width, 0), max(m.height, 0))
	if m.width <= 0 || m.height <= 0 {
		return canvas
	}

	layersPtr := pool.GetLayerSlice()
	layers := (*layersPtr)[:0]
	defer pool.PutLayerSlice(layersPtr)

	pal := m.s.Theme.Palette()

	layers = append(layers,
		lipgloss.NewLayer(m.renderBackground(pal)).X(0).Y(0).Z(config.ZIndexDesktop).ID("desktop"),
		lipgloss.NewLayer(m.renderIcons(pal)).X(iconLeft).Y(iconTop).Z(config.ZIndexIcons).ID("icons"),
	)

	focused, _ := m.s.WM.Focused()
	for i, w := range m.s.WM.Stacked() {
		if w.Minimized {
			continue
		}
		content, x, y, ok := m.clip(m.renderWindow(w, pal, focused != nil && focused.ID == w.ID), w)
		if !ok {
			continue
		}
		layers = append(layers, lipgloss.NewLayer(content).X(x).Y(y).Z(config.ZIndexWindows+i).ID(w.ID))
	}

	layers = append(layers, lipgloss.NewLayer(m.renderTaskbar(pal)).X(0).Y(m.taskbarY()).Z(config.ZIndexTaskbar).ID("taskbar"))
	layers = append(layers, m.renderOverlays(pal)...)

	*layersPtr = layers
	return canvas.Compose(lipgloss.NewCompositor(layers...))
}

func (m *Model) viewportHeight() int {
	return max(m.height-config.TaskbarHeight, 0)
}

func (m *Model) renderBackground(pal theme.Palette) string {
	row := lipgloss.NewStyle().Background(pal.Desktop).Render(strings.Repeat(" ", m.width))
	rows := make([]string, m.viewportHeight())
	for i := range rows {
		rows[i] = row
	}
	return strings.Join(rows, "\n")
}

func (m *Model) renderIcons(pal theme.Palette) string {
	base := lipgloss.NewStyle().
		Width(config.IconColumnWidth).
		Align(lipgloss.Center).
		Background(pal.Desktop).
		Foreground(pal.Fg)
	selected := base.Background(pal.Accent).Foreground(pal.Title)

	sb := pool.GetStringBuilder()
	defer pool.PutStringBuilder(sb)

	maxIcons := max((m.viewportHeight()-iconTop)/iconRowHeight, 0)
	for i, meta := range m.s.Apps.Icons() {
		if i >= maxIcons {
			break
		}
		style := base
		if i == m.selectedIcon {
			style = selected
		}
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(style.Render(meta.Glyph))
		sb.WriteString("\n")
		sb.WriteString(style.Render(ansi.Truncate(meta.Title, config.IconColumnWidth, "…")))
		sb.WriteString("\n")
		sb.WriteString(base.Render(""))
	}
	return sb.String()
}

// titleBar builds the top row of a window: corners, the title, and the
// minimize, maximize and close buttons at the columns wm hit-tests.
func titleBar(w *wm.Window) string {
	cells := []rune(strings.Repeat("─", w.Width))
	cells[0], cells[w.Width-1] = '┌', '┐'

	put := func(x int, s string) {
		for i, r := range []rune(s) {
			if x+i > 0 && x+i < w.Width-1 {
				cells[x+i] = r
			}
		}
	}

	maxTitle := w.ButtonX(wm.RegionMinimize) - w.X - 4
	if maxTitle > 0 {
		put(2, " "+ansi.Truncate(w.Title, maxTitle, "…")+" ")
	}
	put(w.ButtonX(wm.RegionMinimize)-w.X, "[_]")
	put(w.ButtonX(wm.RegionMaximize)-w.X, "[□]")
	put(w.ButtonX(wm.RegionClose)-w.X, "[x]")
	return string(cells)
}

func (m *Model) renderWindow(w *wm.Window, pal theme.Palette, focused bool) string {
	border := pal.Border
	if focused {
		border = pal.BorderFocused
	}
	frame := lipgloss.NewStyle().Foreground(border).Background(pal.WindowBg)
	body := lipgloss.NewStyle().Foreground(pal.Fg).Background(pal.WindowBg)

	cw, ch := w.ContentSize()
	lines := strings.Split(m.s.Apps.Render(w.ID, cw, ch), "\n")

	sb := pool.GetStringBuilder()
	defer pool.PutStringBuilder(sb)

	sb.WriteString(frame.Bold(focused).Render(titleBar(w)))
	for i := range ch {
		line := ""
		if i < len(lines) {
			line = ansi.Truncate(lines[i], cw, "")
		}
		if pad := cw - ansi.StringWidth(line); pad > 0 {
			line += strings.Repeat(" ", pad)
		}
		sb.WriteString("\n")
		sb.WriteString(frame.Render("│"))
		sb.WriteString(body.Render(line))
		sb.WriteString(frame.Render("│"))
	}
	sb.WriteString("\n")
	sb.WriteString(frame.Render("└" + strings.Repeat("─", max(w.Width-2, 0)) + "┘"))
	return sb.String()
}

// clip cuts a rendered window to the visible desktop area and returns where
// the remaining part goes. ok is false when nothing is visible.
func (m *Model) clip(content string, w *wm.Window) (string, int, int, bool) {
	x, y := w.X, w.Y
	lines := strings.Split(content, "\n")

	if y < 0 {
		if -y >= len(lines) {
			return "", 0, 0, false
		}
		lines = lines[-y:]
		y = 0
	}
	if visible := m.viewportHeight() - y; visible < len(lines) {
		if visible <= 0 {
			return "", 0, 0, false
		}
		lines = lines[:visible]
	}

	left, right := 0, w.Width
	if x < 0 {
		left = -x
	}
	if x+w.Width > m.width {
		right = m.width - x
	}
	if left >= right {
		return "", 0, 0, false
	}
	if left > 0 || right < w.Width {
		for i, line := range lines {
			lines[i] = ansi.Cut(line, left, right)
		}
	}
	return strings.Join(lines, "\n"), max(x, 0), y, true
}

func (m *Model) renderTaskbar(pal theme.Palette) string {
	bar := lipgloss.NewStyle().Background(pal.TaskbarBg).Foreground(pal.TaskbarFg)
	start := bar.Background(pal.Accent).Foreground(pal.Title).Bold(true)
	active := bar.Foreground(pal.Title).Bold(true).Underline(true)
	minimized := bar.Foreground(pal.Muted)

	sb := pool.GetStringBuilder()
	defer pool.PutStringBuilder(sb)

	x := 0
	pad := func(to int) {
		if to > x {
			sb.WriteString(bar.Render(strings.Repeat(" ", to-x)))
			x = to
		}
	}
	for _, item := range m.taskbarItems() {
		pad(item.x)
		style := bar
		switch item.kind {
		case itemStart:
			style = start
		case itemWindow:
			if w, ok := m.s.WM.Get(item.id); ok && w.Minimized {
				style = minimized
			} else if item.active {
				style = active
			}
		case itemTheme:
			if m.s.Config.Desktop.ShowSysinfo {
				status := m.sys.cpuGraph() + " " + m.sys.ramLabel() + " "
				pad(item.x - ansi.StringWidth(status) - 1)
				sb.WriteString(bar.Render(status))
				x += ansi.StringWidth(status)
				pad(item.x)
			}
		}
		sb.WriteString(style.Render(item.label))
		x += item.width
	}
	clock := " " + m.now().Format("15:04")
	pad(m.width - ansi.StringWidth(clock) - 1)
	sb.WriteString(bar.Render(clock))
	x += ansi.StringWidth(clock)
	pad(m.width)

	return ansi.Truncate(sb.String(), m.width, "")
}

func (m *Model) renderOverlays(pal theme.Palette) []*lipgloss.Layer {
	var layers []*lipgloss.Layer

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(pal.Accent).
		Background(pal.WindowBg).
		Foreground(pal.Fg).
		Padding(0, 1)

	center := func(content string, z int, id string) *lipgloss.Layer {
		x := max((m.width-lipgloss.Width(content))/2, 0)
		y := max((m.viewportHeight()-lipgloss.Height(content))/2, 0)
		return lipgloss.NewLayer(content).X(x).Y(y).Z(z).ID(id)
	}

	if m.showHelp {
		layers = append(layers, center(box.Render(m.renderHelp(pal)), config.ZIndexHelp, "help"))
	}
	if m.showLogs {
		layers = append(layers, center(box.Render(m.renderLogs(pal)), config.ZIndexLogs, "logs"))
	}
	if m.prefix {
		hint := box.BorderForeground(pal.Warning).Render(m.s.Keys.Prefix() + " …")
		layers = append(layers, lipgloss.NewLayer(hint).X(max(m.width-lipgloss.Width(hint)-1, 0)).Y(0).Z(config.ZIndexNotifications).ID("prefix"))
	}
	if m.notice != nil {
		c := pal.Accent
		switch m.notice.level {
		case "error":
			c = pal.Error
		case "warn":
			c = pal.Warning
		}
		note := box.BorderForeground(c).Render(m.notice.text)
		y := 0
		if m.prefix {
			y = 3
		}
		layers = append(layers, lipgloss.NewLayer(note).X(max(m.width-lipgloss.Width(note)-1, 0)).Y(y).Z(config.ZIndexNotifications).ID("notification"))
	}
	return layers
}

func (m *Model) renderHelp(pal theme.Palette) string {
	var rows [][]string
	for _, section := range config.GetKeybindings(m.s.Keys) {
		if section.Title != "" {
			rows = append(rows, []string{section.Title, ""})
		}
		for _, b := range section.Bindings {
			key := b.Key
			if section.Title != "MOUSE" && section.Title != "" {
				key = m.s.Keys.Prefix() + " " + key
			}
			rows = append(rows, []string{key, b.Description})
		}
	}

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(pal.Accent).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	sectionStyle := cellStyle.Bold(true).Foreground(pal.Muted)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(pal.Muted)).
		Headers("Keys", "Action").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			if row >= 0 && row < len(rows) && rows[row][1] == "" {
				return sectionStyle
			}
			return cellStyle
		})

	title := lipgloss.NewStyle().Bold(true).Foreground(pal.Title).Render("ispwin help")
	return lipgloss.JoinVertical(lipgloss.Left, title, "", t.Render(), "", "esc to close")
}

func (m *Model) renderLogs(pal theme.Palette) string {
	maxLines := max(m.viewportHeight()-8, 4)
	logs := m.logs
	if len(logs) > maxLines {
		logs = logs[len(logs)-maxLines:]
	}

	levelColor := map[string]color.Color{
		"ERROR": pal.Error,
		"WARN":  pal.Warning,
		"INFO":  pal.Success,
		"DEBUG": pal.Muted,
	}
	width := max(min(m.width-8, 100), 20)

	var lines []string
	lines = append(lines, lipgloss.NewStyle().Bold(true).Foreground(pal.Title).Render("Logs"), "")
	for _, l := range logs {
		level := lipgloss.NewStyle().Foreground(levelColor[l.Level]).Render(fmt.Sprintf("%-5s", l.Level))
		line := fmt.Sprintf("%s %s %s", l.Time.Format("15:04:05"), level, l.Message)
		lines = append(lines, ansi.Truncate(line, width, "…"))
	}
	if len(m.logs) == 0 {
		lines = append(lines, lipgloss.NewStyle().Foreground(pal.Muted).Render("no messages"))
	}
	lines = append(lines, "", "esc to close")
	return strings.Join(lines, "\n")
}
