// Package apps holds the desktop's application registry and the built-in
// applications. Every app is one of a closed set of kinds, and each open
// window owns a View of its kind.
package apps

import (
	"errors"
	"strconv"

	tea "charm.land/bubbletea/v2"

	"github.com/ispwin/ispwin/internal/bus"
	"github.com/ispwin/ispwin/internal/theme"
	"github.com/ispwin/ispwin/internal/vfs"
	"github.com/ispwin/ispwin/internal/wm"
)

// ErrUnknownApp is returned when opening an app id that was never registered.
var ErrUnknownApp = errors.New("unknown app")

// Kind is the closed set of application kinds.
type Kind int

const (
	KindExplorer Kind = iota
	KindEditor
	KindCalculator
	KindTerminal
	KindSettings
)

func (k Kind) String() string {
	switch k {
	case KindExplorer:
		return "explorer"
	case KindEditor:
		return "editor"
	case KindCalculator:
		return "calculator"
	case KindTerminal:
		return "terminal"
	case KindSettings:
		return "settings"
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Meta describes a registered application.
type Meta struct {
	ID             string
	Title          string
	Kind           Kind
	SingleInstance bool
	// Glyph is a short label drawn on the desktop icon.
	Glyph string
}

// Builtins returns the applications every desktop registers at startup.
func Builtins() []Meta {
	return []Meta{
		{ID: "explorer", Title: "File Explorer", Kind: KindExplorer, Glyph: "[=]"},
		{ID: "editor", Title: "Text Editor", Kind: KindEditor, Glyph: "[~]"},
		{ID: "calculator", Title: "Calculator", Kind: KindCalculator, Glyph: "[#]"},
		{ID: "terminal", Title: "Terminal", Kind: KindTerminal, Glyph: "[>]"},
		{ID: "settings", Title: "Settings", Kind: KindSettings, SingleInstance: true, Glyph: "[*]"},
	}
}

// Options are the open options passed to an app.
type Options struct {
	// X and Y place the window; nil means the cascaded default.
	X, Y *int
	// OpenPath is the file the editor loads on open.
	OpenPath string
	// Path is the folder the explorer or terminal starts in.
	Path string
}

// OptionsFromExtra reads open options from a remote command's extra object.
func OptionsFromExtra(extra map[string]any) Options {
	var o Options
	if v, ok := intValue(extra["x"]); ok {
		o.X = &v
	}
	if v, ok := intValue(extra["y"]); ok {
		o.Y = &v
	}
	if s, ok := extra["openPath"].(string); ok {
		o.OpenPath = s
	}
	if s, ok := extra["path"].(string); ok {
		o.Path = s
	}
	return o
}

func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case string:
		i, err := strconv.Atoi(n)
		return i, err == nil
	}
	return 0, false
}

// Sender publishes bus messages. *bus.Bus implements it.
type Sender interface {
	Send(bus.Message) error
	Name() string
}

// OpenFunc launches another application.
type OpenFunc func(appID string, opts Options) (*wm.Window, error)

// Context is handed to an app when its window is mounted.
type Context struct {
	FS      *vfs.FS
	Open    OpenFunc
	Bus     Sender
	Window  *wm.Window
	Theme   *theme.Manager
	Options Options
}

// View is an app's content inside one window.
type View interface {
	Init() tea.Cmd
	Update(msg tea.Msg) tea.Cmd
	// View renders the content for a width x height area.
	View(width, height int) string
}

// Clicker is implemented by views that react to mouse clicks. Coordinates are
// relative to the content area.
type Clicker interface {
	Click(x, y int, double bool) tea.Cmd
}
