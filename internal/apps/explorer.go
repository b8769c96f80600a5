package apps

import (
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/x/ansi"

	"github.com/ispwin/ispwin/internal/theme"
	"github.com/ispwin/ispwin/internal/vfs"
)

// explorer lists one folder. Enter opens folders in place and files in a new
// editor window.
type explorer struct {
	ctx     Context
	path    string
	entries []vfs.Entry
	cursor  int
	offset  int
	status  string
}

// rows above the listing: header and rule.
const explorerHeader = 2

func newExplorer(ctx Context) View {
	e := &explorer{ctx: ctx, path: vfs.Join(ctx.Options.Path)}
	e.load()
	return e
}

func (e *explorer) load() {
	entries, err := e.ctx.FS.List(e.path)
	if err != nil {
		e.entries = nil
		e.status = "Folder not found: " + e.path
		return
	}
	e.entries = entries
	e.cursor = min(e.cursor, max(len(entries)-1, 0))
	e.status = fmt.Sprintf("%d items", len(entries))
}

func (e *explorer) Init() tea.Cmd { return nil }

func (e *explorer) Update(msg tea.Msg) tea.Cmd {
	key, ok := msg.(tea.KeyPressMsg)
	if !ok {
		return nil
	}
	switch key.String() {
	case "up", "k":
		e.cursor = max(e.cursor-1, 0)
	case "down", "j":
		e.cursor = min(e.cursor+1, max(len(e.entries)-1, 0))
	case "home", "g":
		e.cursor = 0
	case "end", "G":
		e.cursor = max(len(e.entries)-1, 0)
	case "enter", "l", "right":
		e.activate()
	case "backspace", "h", "left":
		e.navigate(vfs.Parent(e.path))
	case "r":
		if err := e.ctx.FS.Reload(); err != nil {
			e.status = err.Error()
			return nil
		}
		e.load()
	case "n":
		if _, err := e.ctx.Open("explorer", Options{Path: e.path}); err != nil {
			e.status = err.Error()
		}
	}
	return nil
}

func (e *explorer) navigate(path string) {
	e.path = path
	e.cursor, e.offset = 0, 0
	e.load()
}

func (e *explorer) activate() {
	if e.cursor < 0 || e.cursor >= len(e.entries) {
		return
	}
	it := e.entries[e.cursor]
	target := vfs.Join(e.path, it.Name)
	if it.Type == vfs.TypeFolder {
		e.navigate(target)
		return
	}
	if _, err := e.ctx.Open("editor", Options{OpenPath: target}); err != nil {
		e.status = err.Error()
	}
}

func (e *explorer) Click(_, y int, double bool) tea.Cmd {
	row := y - explorerHeader + e.offset
	if y < explorerHeader || row >= len(e.entries) {
		return nil
	}
	e.cursor = row
	if double {
		e.activate()
	}
	return nil
}

func (e *explorer) View(width, height int) string {
	pal := paletteOf(e.ctx)
	listHeight := max(height-explorerHeader-1, 1)

	if e.cursor < e.offset {
		e.offset = e.cursor
	}
	if e.cursor >= e.offset+listHeight {
		e.offset = e.cursor - listHeight + 1
	}

	var b strings.Builder
	title := lipgloss.NewStyle().Bold(true).Foreground(pal.Accent).Render("Explorer")
	b.WriteString(ansi.Truncate(title+"  "+e.path, width, "…"))
	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Foreground(pal.Muted).Render(strings.Repeat("─", width)))

	selected := lipgloss.NewStyle().Reverse(true)
	folder := lipgloss.NewStyle().Bold(true)
	for i := e.offset; i < len(e.entries) && i < e.offset+listHeight; i++ {
		it := e.entries[i]
		name := it.Name
		if it.Type == vfs.TypeFolder {
			name = folder.Render(name + "/")
		}
		line := ansi.Truncate(" "+name, width, "…")
		if i == e.cursor {
			line = selected.Render(line + strings.Repeat(" ", max(width-ansi.StringWidth(line), 0)))
		}
		b.WriteString("\n")
		b.WriteString(line)
	}
	for i := len(e.entries) - e.offset; i < listHeight; i++ {
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Foreground(pal.Muted).Render(ansi.Truncate(e.status, width, "…")))
	return b.String()
}

// paletteOf returns the window's palette, or the light default without a
// theme manager.
func paletteOf(ctx Context) theme.Palette {
	if ctx.Theme == nil {
		return theme.Resolve("", theme.Light)
	}
	return ctx.Theme.Palette()
}
