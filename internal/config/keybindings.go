package config

import (
	"sort"
	"strings"
)

// Desktop actions reachable through the prefix key.
const (
	ActionNewTerminal  = "new_terminal"
	ActionOpenExplorer = "open_explorer"
	ActionOpenEditor   = "open_editor"
	ActionOpenCalc     = "open_calculator"
	ActionOpenSettings = "open_settings"
	ActionCloseWindow  = "close_window"
	ActionMinimize     = "minimize_window"
	ActionMaximize     = "toggle_maximize"
	ActionNextWindow   = "next_window"
	ActionRestoreAll   = "restore_all"
	ActionToggleTheme  = "toggle_theme"
	ActionToggleHelp   = "toggle_help"
	ActionToggleLogs   = "toggle_logs"
	ActionQuit         = "quit"
)

// ActionDescriptions are shown in help and `ispwin keybinds list`.
var ActionDescriptions = map[string]string{
	ActionNewTerminal:  "New terminal window",
	ActionOpenExplorer: "Open file explorer",
	ActionOpenEditor:   "Open text editor",
	ActionOpenCalc:     "Open calculator",
	ActionOpenSettings: "Open settings",
	ActionCloseWindow:  "Close window",
	ActionMinimize:     "Minimize window",
	ActionMaximize:     "Maximize / restore window",
	ActionNextWindow:   "Next window",
	ActionRestoreAll:   "Restore all windows",
	ActionToggleTheme:  "Toggle light/dark theme",
	ActionToggleHelp:   "Toggle help",
	ActionToggleLogs:   "Toggle log viewer",
	ActionQuit:         "Quit",
}

// ActionSections groups actions for display.
var ActionSections = []struct {
	Title   string
	Actions []string
}{
	{"APPS", []string{ActionNewTerminal, ActionOpenExplorer, ActionOpenEditor, ActionOpenCalc, ActionOpenSettings}},
	{"WINDOWS", []string{ActionCloseWindow, ActionMinimize, ActionMaximize, ActionNextWindow, ActionRestoreAll}},
	{"DESKTOP", []string{ActionToggleTheme, ActionToggleHelp, ActionToggleLogs, ActionQuit}},
}

func defaultDesktopKeys() map[string][]string {
	return map[string][]string{
		ActionNewTerminal:  {"c", "n"},
		ActionOpenExplorer: {"e"},
		ActionOpenEditor:   {"o"},
		ActionOpenCalc:     {"k"},
		ActionOpenSettings: {"s"},
		ActionCloseWindow:  {"x"},
		ActionMinimize:     {"m"},
		ActionMaximize:     {"f"},
		ActionNextWindow:   {"tab"},
		ActionRestoreAll:   {"M"},
		ActionToggleTheme:  {"t"},
		ActionToggleHelp:   {"?"},
		ActionToggleLogs:   {"l"},
		ActionQuit:         {"q"},
	}
}

// Keybinding is one row of the help overlay.
type Keybinding struct {
	Key         string
	Description string
}

// KeybindingSection is a titled group of keybindings.
type KeybindingSection struct {
	Title    string
	Bindings []Keybinding
}

// KeybindRegistry resolves keys to actions for the configured bindings.
type KeybindRegistry struct {
	prefix   string
	byAction map[string][]string
	byKey    map[string]string
}

// NewKeybindRegistry indexes cfg's bindings. When two actions claim the same
// key, the alphabetically first action wins.
func NewKeybindRegistry(cfg *UserConfig) *KeybindRegistry {
	r := &KeybindRegistry{
		prefix:   cfg.Keybindings.Prefix,
		byAction: make(map[string][]string),
		byKey:    make(map[string]string),
	}
	if r.prefix == "" {
		r.prefix = "ctrl+b"
	}

	actions := make([]string, 0, len(cfg.Keybindings.Desktop))
	for action := range cfg.Keybindings.Desktop {
		actions = append(actions, action)
	}
	sort.Strings(actions)

	for _, action := range actions {
		keys := cfg.Keybindings.Desktop[action]
		r.byAction[action] = keys
		for _, k := range keys {
			if _, taken := r.byKey[k]; !taken {
				r.byKey[k] = action
			}
		}
	}
	return r
}

// Prefix returns the key that starts a desktop command.
func (r *KeybindRegistry) Prefix() string {
	return r.prefix
}

// GetKeys returns the keys bound to action.
func (r *KeybindRegistry) GetKeys(action string) []string {
	return r.byAction[action]
}

// GetAction returns the action bound to key, or "".
func (r *KeybindRegistry) GetAction(key string) string {
	return r.byKey[key]
}

// GetKeysForDisplay formats the keys of action for help text.
func (r *KeybindRegistry) GetKeysForDisplay(action string) string {
	return strings.Join(r.byAction[action], ", ")
}

// GetKeybindings returns the help sections for the configured bindings.
func GetKeybindings(r *KeybindRegistry) []KeybindingSection {
	var sections []KeybindingSection
	for _, s := range ActionSections {
		section := KeybindingSection{Title: s.Title}
		for _, action := range s.Actions {
			if keys := r.GetKeysForDisplay(action); keys != "" {
				section.Bindings = append(section.Bindings, Keybinding{Key: keys, Description: ActionDescriptions[action]})
			}
		}
		if len(section.Bindings) > 0 {
			sections = append(sections, section)
		}
	}
	sections = append(sections, KeybindingSection{
		Title: "MOUSE",
		Bindings: []Keybinding{
			{"Drag title bar", "Move window"},
			{"[_] [□] [x]", "Minimize, maximize, close"},
			{"Double-click icon", "Open app"},
			{"Taskbar item", "Minimize / restore"},
			{"Start", "Open settings"},
		},
	})
	sections = append(sections, KeybindingSection{
		Bindings: []Keybinding{{"ctrl+c", "Quit"}},
	})
	return sections
}
