// Package wm is the desktop's window manager. It owns window geometry,
// stacking order, minimize/maximize state and pointer dragging. It draws
// nothing: the desktop renders whatever the manager reports.
package wm

import (
	"errors"
	"time"
)

// ErrWindowNotFound is returned for operations that require an existing window.
var ErrWindowNotFound = errors.New("window not found")

// Geometry is a window rectangle in terminal cells.
type Geometry struct {
	X, Y          int
	Width, Height int
}

// Contains reports whether the cell (x, y) lies inside g.
func (g Geometry) Contains(x, y int) bool {
	return x >= g.X && x < g.X+g.Width && y >= g.Y && y < g.Y+g.Height
}

// State is the window's visible state.
type State int

const (
	StateNormal State = iota
	StateMinimized
	StateMaximized
)

func (s State) String() string {
	switch s {
	case StateMinimized:
		return "minimized"
	case StateMaximized:
		return "maximized"
	default:
		return "normal"
	}
}

// Window is one open window.
type Window struct {
	ID    string
	Title string
	AppID string

	Geometry

	Z         int
	Minimized bool
	Maximized bool
	// Prev holds the geometry to restore while the window is maximized.
	Prev *Geometry

	// Seq is the creation sequence number, unique per manager.
	Seq       int
	CreatedAt time.Time
}

// State derives the window state. A minimized maximized window reports
// minimized.
func (w *Window) State() State {
	switch {
	case w.Minimized:
		return StateMinimized
	case w.Maximized:
		return StateMaximized
	default:
		return StateNormal
	}
}

// Region identifies the part of a window under a cell.
type Region int

const (
	RegionNone Region = iota
	RegionTitle
	RegionMinimize
	RegionMaximize
	RegionClose
	RegionContent
	RegionBorder
)

// Title-bar button columns, counted back from the window's right edge.
// A button occupies three cells, e.g. "[x]".
const (
	closeButtonOffset    = 5
	maximizeButtonOffset = 8
	minimizeButtonOffset = 11
	buttonWidth          = 3
)

// ButtonX returns the first column of the title-bar button for r, or -1 when
// r is not a button.
func (w *Window) ButtonX(r Region) int {
	right := w.X + w.Width
	switch r {
	case RegionClose:
		return right - closeButtonOffset
	case RegionMaximize:
		return right - maximizeButtonOffset
	case RegionMinimize:
		return right - minimizeButtonOffset
	}
	return -1
}

// RegionAt classifies the cell (x, y), which must lie inside the window.
func (w *Window) RegionAt(x, y int) Region {
	if !w.Contains(x, y) {
		return RegionNone
	}
	if y == w.Y {
		for _, r := range []Region{RegionClose, RegionMaximize, RegionMinimize} {
			bx := w.ButtonX(r)
			if x >= bx && x < bx+buttonWidth {
				return r
			}
		}
		return RegionTitle
	}
	if y == w.Y+w.Height-1 || x == w.X || x == w.X+w.Width-1 {
		return RegionBorder
	}
	return RegionContent
}

// ContentSize returns the cells available to the app inside the frame.
func (w *Window) ContentSize() (width, height int) {
	return max(w.Width-2, 0), max(w.Height-2, 0)
}
