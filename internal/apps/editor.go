package apps

import (
	"errors"
	"strings"

	"charm.land/bubbles/v2/textarea"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/x/ansi"

	"github.com/ispwin/ispwin/internal/vfs"
)

// DefaultEditorPath is used when the path field is left empty.
const DefaultEditorPath = "/notes.txt"

// editor edits one text file: a path field above a text area. ctrl+l loads,
// ctrl+s saves, tab switches between the two fields.
type editor struct {
	ctx    Context
	path   textinput.Model
	body   textarea.Model
	status string
	err    bool
}

func newEditor(ctx Context) View {
	path := textinput.New()
	path.Placeholder = "File path (e.g. /notes.txt)"
	path.Prompt = "Path: "
	path.CharLimit = 256

	body := textarea.New()
	body.ShowLineNumbers = false
	body.Placeholder = "Start typing..."
	body.CharLimit = 0

	e := &editor{ctx: ctx, path: path, body: body}
	if p := ctx.Options.OpenPath; p != "" {
		e.path.SetValue(p)
		if content, err := ctx.FS.ReadFile(p); err == nil {
			e.body.SetValue(content)
			e.status = "Opened " + p
		} else {
			e.status = "New file " + p
		}
	}
	return e
}

func (e *editor) Init() tea.Cmd {
	if e.path.Value() == "" {
		return e.path.Focus()
	}
	return e.body.Focus()
}

func (e *editor) target() string {
	if p := strings.TrimSpace(e.path.Value()); p != "" {
		return p
	}
	return DefaultEditorPath
}

func (e *editor) load() {
	p := e.target()
	content, err := e.ctx.FS.ReadFile(p)
	if err != nil {
		e.body.SetValue("")
		e.status, e.err = "File not found", true
		return
	}
	e.body.SetValue(content)
	e.status, e.err = "Loaded "+p, false
}

func (e *editor) save() {
	p := e.target()
	if err := e.ctx.FS.WriteFile(p, e.body.Value()); err != nil {
		e.err = true
		switch {
		case errors.Is(err, vfs.ErrNotFolder):
			e.status = "Cannot save inside a file: " + p
		default:
			e.status = err.Error()
		}
		return
	}
	e.status, e.err = "Saved "+p, false
}

func (e *editor) Update(msg tea.Msg) tea.Cmd {
	if key, ok := msg.(tea.KeyPressMsg); ok {
		switch key.String() {
		case "ctrl+s":
			e.save()
			return nil
		case "ctrl+l":
			e.load()
			return nil
		case "tab":
			if e.path.Focused() {
				e.path.Blur()
				return e.body.Focus()
			}
			e.body.Blur()
			return e.path.Focus()
		case "enter":
			if e.path.Focused() {
				e.load()
				e.path.Blur()
				return e.body.Focus()
			}
		}
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	e.path, cmd = e.path.Update(msg)
	cmds = append(cmds, cmd)
	e.body, cmd = e.body.Update(msg)
	cmds = append(cmds, cmd)
	return tea.Batch(cmds...)
}

func (e *editor) View(width, height int) string {
	pal := paletteOf(e.ctx)

	e.path.SetWidth(max(width-len(e.path.Prompt)-1, 1))
	e.body.SetWidth(max(width, 1))
	e.body.SetHeight(max(height-3, 1))

	statusStyle := lipgloss.NewStyle().Foreground(pal.Muted)
	if e.err {
		statusStyle = statusStyle.Foreground(pal.Error)
	}
	hint := "ctrl+s save  ctrl+l load  tab switch"
	status := e.status
	if status == "" {
		status = hint
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		ansi.Truncate(e.path.View(), width, ""),
		lipgloss.NewStyle().Foreground(pal.Muted).Render(strings.Repeat("─", width)),
		e.body.View(),
		statusStyle.Render(ansi.Truncate(status, width, "…")),
	)
}
