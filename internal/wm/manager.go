package wm

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ispwin/ispwin/internal/logging"
)

// BaseZ is the stacking counter's initial value. The first window gets BaseZ+1.
const BaseZ = 100

// Minimum window size in cells; smaller frames cannot show their buttons.
const (
	MinWidth  = 16
	MinHeight = 4
)

var logger = logging.New("wm")

// ErrWindowExists is returned when creating a window with an id in use.
var ErrWindowExists = errors.New("window already exists")

// Spec describes a window to create.
type Spec struct {
	ID    string
	Title string
	AppID string
	Geometry
}

type drag struct {
	id     string
	dx, dy int
}

// Manager tracks every open window of one desktop. It is not safe for
// concurrent use; the desktop's update loop owns it.
type Manager struct {
	windows map[string]*Window
	z       int
	seq     int
	focused string
	drag    *drag

	width, height int
	reserved      int

	now func() time.Time
}

// NewManager returns an empty manager for a width x height viewport whose
// bottom reserved rows belong to the taskbar.
func NewManager(width, height, reserved int) *Manager {
	return &Manager{
		windows:  make(map[string]*Window),
		z:        BaseZ,
		width:    width,
		height:   height,
		reserved: reserved,
		now:      time.Now,
	}
}

// Resize updates the viewport. Maximized windows follow it.
func (m *Manager) Resize(width, height int) {
	m.width, m.height = width, height
	for _, w := range m.windows {
		if w.Maximized {
			w.Geometry = m.Viewport()
		}
	}
}

// Viewport returns the usable desktop area above the taskbar.
func (m *Manager) Viewport() Geometry {
	return Geometry{Width: m.width, Height: max(m.height-m.reserved, 0)}
}

// Create adds a window on top of the stack and focuses it.
func (m *Manager) Create(spec Spec) (*Window, error) {
	if spec.ID == "" {
		return nil, fmt.Errorf("window id is required")
	}
	if _, ok := m.windows[spec.ID]; ok {
		return nil, fmt.Errorf("%s: %w", spec.ID, ErrWindowExists)
	}
	if spec.Title == "" {
		spec.Title = "Window"
	}

	m.seq++
	w := &Window{
		ID:        spec.ID,
		Title:     spec.Title,
		AppID:     spec.AppID,
		Geometry:  spec.Geometry,
		Seq:       m.seq,
		CreatedAt: m.now(),
	}
	w.Width = max(w.Width, MinWidth)
	w.Height = max(w.Height, MinHeight)

	m.windows[w.ID] = w
	m.raise(w)
	logger.Debug("window created", "id", w.ID, "app", w.AppID, "z", w.Z)
	return w, nil
}

// Get returns the window with id.
func (m *Manager) Get(id string) (*Window, bool) {
	w, ok := m.windows[id]
	return w, ok
}

// Len returns the number of open windows.
func (m *Manager) Len() int {
	return len(m.windows)
}

// Windows returns all windows in creation order.
func (m *Manager) Windows() []*Window {
	out := make([]*Window, 0, len(m.windows))
	for _, w := range m.windows {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// Stacked returns all windows bottom to top.
func (m *Manager) Stacked() []*Window {
	out := make([]*Window, 0, len(m.windows))
	for _, w := range m.windows {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Z < out[j].Z })
	return out
}

// Focused returns the focused window, if any.
func (m *Manager) Focused() (*Window, bool) {
	w, ok := m.windows[m.focused]
	return w, ok
}

// FindByApp returns the earliest-created window of appID.
func (m *Manager) FindByApp(appID string) (*Window, bool) {
	var found *Window
	for _, w := range m.windows {
		if w.AppID == appID && (found == nil || w.Seq < found.Seq) {
			found = w
		}
	}
	return found, found != nil
}

// MostRecent returns the window created last.
func (m *Manager) MostRecent() (*Window, bool) {
	var found *Window
	for _, w := range m.windows {
		if found == nil || w.Seq > found.Seq {
			found = w
		}
	}
	return found, found != nil
}

func (m *Manager) raise(w *Window) {
	m.z++
	w.Z = m.z
	m.focused = w.ID
}

// BringToTop raises and focuses the window. Unknown ids are ignored.
func (m *Manager) BringToTop(id string) {
	if w, ok := m.windows[id]; ok {
		m.raise(w)
	}
}

// Minimize hides the window and moves focus to the topmost visible window.
func (m *Manager) Minimize(id string) {
	w, ok := m.windows[id]
	if !ok || w.Minimized {
		return
	}
	w.Minimized = true
	if m.drag != nil && m.drag.id == id {
		m.drag = nil
	}
	if m.focused == id {
		m.refocus()
	}
}

// Restore shows a minimized window and raises it.
func (m *Manager) Restore(id string) {
	w, ok := m.windows[id]
	if !ok {
		return
	}
	w.Minimized = false
	m.raise(w)
}

// ToggleMinimize minimizes a visible window and restores a minimized one, as
// clicking its taskbar item does.
func (m *Manager) ToggleMinimize(id string) {
	w, ok := m.windows[id]
	if !ok {
		return
	}
	if w.Minimized {
		m.Restore(id)
	} else {
		m.Minimize(id)
	}
}

// ToggleMax maximizes the window, or restores the geometry it had before.
func (m *Manager) ToggleMax(id string) {
	w, ok := m.windows[id]
	if !ok {
		return
	}
	if !w.Maximized {
		prev := w.Geometry
		w.Prev = &prev
		w.Geometry = m.Viewport()
		w.Maximized = true
		return
	}
	if w.Prev != nil {
		w.Geometry = *w.Prev
	}
	w.Prev = nil
	w.Maximized = false
}

// Close removes the window. Closing an unknown id is a no-op.
func (m *Manager) Close(id string) bool {
	if _, ok := m.windows[id]; !ok {
		return false
	}
	delete(m.windows, id)
	if m.drag != nil && m.drag.id == id {
		m.drag = nil
	}
	if m.focused == id {
		m.refocus()
	}
	logger.Debug("window closed", "id", id)
	return true
}

// refocus focuses the topmost visible window without changing the stack.
func (m *Manager) refocus() {
	m.focused = ""
	top := -1
	for _, w := range m.windows {
		if !w.Minimized && w.Z > top {
			top = w.Z
			m.focused = w.ID
		}
	}
}

// FocusNext raises the visible window directly below the top one, cycling
// through all visible windows.
func (m *Manager) FocusNext() {
	var visible []*Window
	for _, w := range m.Stacked() {
		if !w.Minimized {
			visible = append(visible, w)
		}
	}
	if len(visible) < 2 {
		return
	}
	m.raise(visible[0])
}

// PointerDown starts dragging the window from the cell (x, y) and raises it.
func (m *Manager) PointerDown(id string, x, y int) error {
	w, ok := m.windows[id]
	if !ok {
		return fmt.Errorf("%s: %w", id, ErrWindowNotFound)
	}
	m.drag = &drag{id: id, dx: x - w.X, dy: y - w.Y}
	m.raise(w)
	return nil
}

// PointerMove moves the dragged window so the grabbed cell follows the
// pointer. Positions are not clamped to the viewport.
func (m *Manager) PointerMove(x, y int) bool {
	if m.drag == nil {
		return false
	}
	w, ok := m.windows[m.drag.id]
	if !ok {
		m.drag = nil
		return false
	}
	w.X = x - m.drag.dx
	w.Y = y - m.drag.dy
	return true
}

// PointerUp ends any drag.
func (m *Manager) PointerUp() {
	m.drag = nil
}

// Dragging returns the id of the window being dragged.
func (m *Manager) Dragging() (string, bool) {
	if m.drag == nil {
		return "", false
	}
	return m.drag.id, true
}

// HitTest returns the topmost visible window covering (x, y) and the region
// of it under the cell.
func (m *Manager) HitTest(x, y int) (*Window, Region) {
	stack := m.Stacked()
	for i := len(stack) - 1; i >= 0; i-- {
		w := stack[i]
		if w.Minimized {
			continue
		}
		if r := w.RegionAt(x, y); r != RegionNone {
			return w, r
		}
	}
	return nil, RegionNone
}
