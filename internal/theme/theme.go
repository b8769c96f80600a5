// Package theme holds the desktop's persisted light/dark flag and the color
// palette each mode renders with.
package theme

import (
	"fmt"
	"image/color"
	"sync"

	"charm.land/lipgloss/v2"
	tint "github.com/lrstanley/bubbletint/v2"

	"github.com/ispwin/ispwin/internal/storage"
)

// StoreKey is the store key holding the theme flag.
const StoreKey = "ispwin-theme"

// Mode is the theme flag.
type Mode string

const (
	Light Mode = "light"
	Dark  Mode = "dark"
)

// Parse maps a theme argument to a mode: "dark" is dark, anything else light.
func Parse(s string) Mode {
	if s == string(Dark) {
		return Dark
	}
	return Light
}

// Default tint ids per mode.
const (
	DefaultDarkTint  = "tokyo_night"
	DefaultLightTint = "catppuccin_latte"
)

// Palette is the set of colors the desktop draws with.
type Palette struct {
	Desktop       color.Color
	Fg            color.Color
	Muted         color.Color
	WindowBg      color.Color
	Border        color.Color
	BorderFocused color.Color
	Title         color.Color
	Accent        color.Color
	TaskbarBg     color.Color
	TaskbarFg     color.Color
	Error         color.Color
	Success       color.Color
	Warning       color.Color
}

var fallback = map[Mode]Palette{
	Dark: {
		Desktop:       lipgloss.Color("#1a1a2e"),
		Fg:            lipgloss.Color("#e5e5e5"),
		Muted:         lipgloss.Color("#808090"),
		WindowBg:      lipgloss.Color("#000000"),
		Border:        lipgloss.Color("#FAAAAA"),
		BorderFocused: lipgloss.Color("#AFFFFF"),
		Title:         lipgloss.Color("#ffffff"),
		Accent:        lipgloss.Color("#5c5cff"),
		TaskbarBg:     lipgloss.Color("#2a2a3e"),
		TaskbarFg:     lipgloss.Color("#a0a0a8"),
		Error:         lipgloss.Color("#cd0000"),
		Success:       lipgloss.Color("#00cd00"),
		Warning:       lipgloss.Color("#cdcd00"),
	},
	Light: {
		Desktop:       lipgloss.Color("#dfe6ee"),
		Fg:            lipgloss.Color("#1e1e2e"),
		Muted:         lipgloss.Color("#7f7f8f"),
		WindowBg:      lipgloss.Color("#ffffff"),
		Border:        lipgloss.Color("#9ca0b0"),
		BorderFocused: lipgloss.Color("#1e66f5"),
		Title:         lipgloss.Color("#1e1e2e"),
		Accent:        lipgloss.Color("#1e66f5"),
		TaskbarBg:     lipgloss.Color("#ccd0da"),
		TaskbarFg:     lipgloss.Color("#4c4f69"),
		Error:         lipgloss.Color("#d20f39"),
		Success:       lipgloss.Color("#40a02b"),
		Warning:       lipgloss.Color("#df8e1d"),
	},
}

// bubbletint keeps a single global current tint, so palettes are resolved
// under one lock and cached per tint id.
var (
	tintMu      sync.Mutex
	registryUp  bool
	paletteByID = map[string]Palette{}
)

// Resolve returns the palette for tint id, or the built-in palette for mode
// when the id is unknown.
func Resolve(id string, mode Mode) Palette {
	tintMu.Lock()
	defer tintMu.Unlock()

	if p, ok := paletteByID[id]; ok {
		return p
	}
	if !registryUp {
		tint.NewDefaultRegistry()
		registryUp = true
	}
	if id == "" || !tint.SetTintID(id) {
		return fallback[mode]
	}

	t := tint.Current()
	p := Palette{
		Desktop:       t.Bg,
		Fg:            t.Fg,
		Muted:         t.BrightBlack,
		WindowBg:      t.Bg,
		Border:        t.Red,
		BorderFocused: t.BrightCyan,
		Title:         t.Fg,
		Accent:        t.Blue,
		TaskbarBg:     t.Black,
		TaskbarFg:     t.White,
		Error:         t.Red,
		Success:       t.Green,
		Warning:       t.Yellow,
	}
	if mode == Light {
		p.TaskbarBg, p.TaskbarFg = t.White, t.Black
	}
	paletteByID[id] = p
	return p
}

// Manager owns the persisted flag for one desktop.
type Manager struct {
	store storage.Store
	tints map[Mode]string

	mu   sync.RWMutex
	mode Mode
}

// NewManager reads the flag from store. A missing or unreadable flag means
// light. Empty tint ids select the defaults.
func NewManager(store storage.Store, darkTint, lightTint string) *Manager {
	if darkTint == "" {
		darkTint = DefaultDarkTint
	}
	if lightTint == "" {
		lightTint = DefaultLightTint
	}

	mode := Light
	if v, ok, err := store.Get(StoreKey); err == nil && ok {
		mode = Parse(v)
	}
	return &Manager{
		store: store,
		tints: map[Mode]string{Dark: darkTint, Light: lightTint},
		mode:  mode,
	}
}

// Mode returns the current flag.
func (m *Manager) Mode() Mode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mode
}

// Set changes and persists the flag.
func (m *Manager) Set(mode Mode) error {
	m.mu.Lock()
	m.mode = mode
	m.mu.Unlock()

	if err := m.store.Set(StoreKey, string(mode)); err != nil {
		return fmt.Errorf("failed to persist theme: %w", err)
	}
	return nil
}

// Toggle flips between light and dark and returns the new mode.
func (m *Manager) Toggle() (Mode, error) {
	next := Dark
	if m.Mode() == Dark {
		next = Light
	}
	return next, m.Set(next)
}

// Palette returns the colors for the current mode.
func (m *Manager) Palette() Palette {
	mode := m.Mode()
	return Resolve(m.tints[mode], mode)
}
