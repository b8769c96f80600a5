package desktop

import (
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/x/ansi"

	"github.com/ispwin/ispwin/internal/apps"
	"github.com/ispwin/ispwin/internal/config"
	"github.com/ispwin/ispwin/internal/theme"
	"github.com/ispwin/ispwin/internal/wm"
)

// Desktop icon grid.
const (
	iconTop       = 1
	iconLeft      = 1
	iconRowHeight = 3
)

type itemKind int

const (
	itemStart itemKind = iota
	itemWindow
	itemTheme
)

// taskbarItem is a clickable taskbar cell range.
type taskbarItem struct {
	kind   itemKind
	id     string
	label  string
	x      int
	width  int
	active bool
}

const (
	startLabel       = " Start "
	taskbarItemWidth = 18
	clockWidth       = 5
)

// taskbarItems lays out the taskbar for the current width. Items that do not
// fit before the right-hand status area are dropped.
func (m *Model) taskbarItems() []taskbarItem {
	items := []taskbarItem{{kind: itemStart, label: startLabel, x: 0, width: len(startLabel)}}

	themeX := m.width - 1 - clockWidth - 1 - 3
	limit := themeX - 1
	if m.s.Config.Desktop.ShowSysinfo {
		limit -= ansi.StringWidth(m.sys.cpuGraph()) + 1 + ansi.StringWidth(m.sys.ramLabel()) + 1
	}

	focused, _ := m.s.WM.Focused()
	x := len(startLabel) + 1
	for _, w := range m.s.WM.Windows() {
		label := " " + ansi.Truncate(w.Title, taskbarItemWidth-2, "…") + " "
		width := ansi.StringWidth(label)
		if x+width > limit {
			break
		}
		items = append(items, taskbarItem{
			kind:   itemWindow,
			id:     w.ID,
			label:  label,
			x:      x,
			width:  width,
			active: focused != nil && focused.ID == w.ID && !w.Minimized,
		})
		x += width + 1
	}

	label := "[☀]"
	if m.s.Theme.Mode() == theme.Dark {
		label = "[☾]"
	}
	items = append(items, taskbarItem{kind: itemTheme, label: label, x: themeX, width: 3})
	return items
}

func (m *Model) taskbarY() int {
	return m.height - config.TaskbarHeight
}

// iconAt returns the index of the desktop icon under (x, y), or -1.
func (m *Model) iconAt(x, y int) int {
	if x < iconLeft || x >= iconLeft+config.IconColumnWidth || y < iconTop {
		return -1
	}
	row := y - iconTop
	if row%iconRowHeight == iconRowHeight-1 {
		return -1
	}
	i := row / iconRowHeight
	if i >= len(m.s.Apps.Icons()) {
		return -1
	}
	return i
}

// isDoubleClick records the click and reports whether it completes a double
// click on the same cell.
func (m *Model) isDoubleClick(x, y int) bool {
	now := m.now()
	double := m.lastClick.x == x && m.lastClick.y == y &&
		!m.lastClick.at.IsZero() && now.Sub(m.lastClick.at) <= config.DoubleClickInterval
	if double {
		m.lastClick = click{}
	} else {
		m.lastClick = click{x: x, y: y, at: now}
	}
	return double
}

func (m *Model) handleMouseClick(msg tea.MouseClickMsg) tea.Cmd {
	mouse := msg.Mouse()
	if mouse.Button != tea.MouseLeft {
		return nil
	}
	x, y := mouse.X, mouse.Y
	double := m.isDoubleClick(x, y)

	if y >= m.taskbarY() {
		return m.clickTaskbar(x)
	}

	w, region := m.s.WM.HitTest(x, y)
	if w == nil {
		return m.clickDesktop(x, y, double)
	}
	m.selectedIcon = -1

	switch region {
	case wm.RegionClose:
		m.s.CloseWindow(w.ID)
	case wm.RegionMaximize:
		m.s.WM.ToggleMax(w.ID)
	case wm.RegionMinimize:
		m.s.WM.Minimize(w.ID)
	case wm.RegionTitle:
		if double {
			m.s.WM.ToggleMax(w.ID)
			return nil
		}
		if w.Maximized {
			m.s.WM.BringToTop(w.ID)
			return nil
		}
		if err := m.s.WM.PointerDown(w.ID, x, y); err != nil {
			m.Log("ERROR", "drag: %v", err)
		}
	case wm.RegionContent:
		m.s.WM.BringToTop(w.ID)
		return tea.Batch(m.s.Apps.Click(w.ID, x-w.X-1, y-w.Y-1, double), m.s.Apps.TakeCmds())
	default:
		m.s.WM.BringToTop(w.ID)
	}
	return nil
}

func (m *Model) clickTaskbar(x int) tea.Cmd {
	for _, item := range m.taskbarItems() {
		if x < item.x || x >= item.x+item.width {
			continue
		}
		switch item.kind {
		case itemStart:
			return m.open("settings", apps.Options{})
		case itemWindow:
			m.s.WM.ToggleMinimize(item.id)
		case itemTheme:
			m.toggleTheme()
		}
		return nil
	}
	return nil
}

func (m *Model) clickDesktop(x, y int, double bool) tea.Cmd {
	i := m.iconAt(x, y)
	m.selectedIcon = i
	if i < 0 || !double {
		return nil
	}
	return m.open(m.s.Apps.Icons()[i].ID, apps.Options{})
}

func (m *Model) handleMouseMotion(msg tea.MouseMotionMsg) {
	if _, ok := m.s.WM.Dragging(); !ok {
		return
	}
	mouse := msg.Mouse()
	// Keep the title row reachable: it may not go above the screen or under
	// the taskbar.
	y := min(max(mouse.Y, 0), m.taskbarY()-1)
	m.s.WM.PointerMove(mouse.X, y)
}
