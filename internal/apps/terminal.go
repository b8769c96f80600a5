package apps

import (
	"errors"
	"fmt"
	"strings"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/x/ansi"
	"github.com/google/uuid"

	"github.com/ispwin/ispwin/internal/bus"
	"github.com/ispwin/ispwin/internal/vfs"
)

const maxTerminalLines = 500

const terminalHelp = "Available: help, ls [dir], cat <file>, pwd, cd <dir>, mkdir <dir>, " +
	"write <file> <text>, open <app> [path], remote <command> [param], clear"

// terminal is a line-oriented shell over the fake file system.
type terminal struct {
	ctx    Context
	cwd    string
	input  textinput.Model
	output []string
}

func newTerminal(ctx Context) View {
	in := textinput.New()
	in.Placeholder = "Type help and press Enter"
	in.Prompt = "> "
	return &terminal{ctx: ctx, cwd: vfs.Join(ctx.Options.Path), input: in}
}

func (t *terminal) Init() tea.Cmd { return t.input.Focus() }

func (t *terminal) Update(msg tea.Msg) tea.Cmd {
	if key, ok := msg.(tea.KeyPressMsg); ok && key.String() == "enter" {
		line := strings.TrimSpace(t.input.Value())
		t.input.Reset()
		t.print("> " + line)
		t.run(line)
		return nil
	}
	var cmd tea.Cmd
	t.input, cmd = t.input.Update(msg)
	return cmd
}

func (t *terminal) print(lines ...string) {
	for _, l := range lines {
		t.output = append(t.output, strings.Split(l, "\n")...)
	}
	if len(t.output) > maxTerminalLines {
		t.output = t.output[len(t.output)-maxTerminalLines:]
	}
}

func (t *terminal) resolve(p string) string {
	if strings.HasPrefix(p, "/") {
		return vfs.Join(p)
	}
	return vfs.Join(t.cwd, p)
}

func (t *terminal) run(line string) {
	if line == "" {
		return
	}
	name, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch name {
	case "help":
		t.print(terminalHelp)
	case "ls":
		t.ls(rest)
	case "cat":
		if rest == "" {
			t.print("usage: cat <file>")
			return
		}
		content, err := t.ctx.FS.ReadFile(t.resolve(rest))
		if err != nil {
			t.print("cat: " + rest + ": no such file")
			return
		}
		t.print(content)
	case "pwd":
		t.print(t.cwd)
	case "cd":
		t.cd(rest)
	case "mkdir":
		if rest == "" {
			t.print("usage: mkdir <dir>")
			return
		}
		if err := t.ctx.FS.Mkdir(t.resolve(rest)); err != nil {
			t.print("mkdir: " + err.Error())
		}
	case "write":
		file, text, _ := strings.Cut(rest, " ")
		if file == "" {
			t.print("usage: write <file> <text>")
			return
		}
		if err := t.ctx.FS.WriteFile(t.resolve(file), text); err != nil {
			t.print("write: " + err.Error())
		}
	case "open":
		t.open(rest)
	case "remote":
		t.remote(rest)
	case "clear":
		t.output = nil
	default:
		t.print("command not found")
	}
}

func (t *terminal) ls(arg string) {
	dir := t.cwd
	if arg != "" {
		dir = t.resolve(arg)
	}
	entries, err := t.ctx.FS.List(dir)
	if err != nil {
		t.print("ls: " + dir + ": no such folder")
		return
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type == vfs.TypeFolder {
			names = append(names, e.Name+"/")
		} else {
			names = append(names, e.Name)
		}
	}
	t.print(strings.Join(names, "  "))
}

func (t *terminal) cd(arg string) {
	if arg == "" {
		t.cwd = "/"
		return
	}
	target := t.resolve(arg)
	if arg == ".." {
		target = vfs.Parent(t.cwd)
	}
	st, err := t.ctx.FS.Stat(target)
	if err != nil || st.Type != vfs.TypeFolder {
		t.print("cd: " + arg + ": no such folder")
		return
	}
	t.cwd = target
}

func (t *terminal) open(arg string) {
	app, path, _ := strings.Cut(arg, " ")
	if app == "" {
		t.print("usage: open <app> [path]")
		return
	}
	opts := Options{}
	if path = strings.TrimSpace(path); path != "" {
		opts.OpenPath = t.resolve(path)
		opts.Path = opts.OpenPath
	}
	w, err := t.ctx.Open(app, opts)
	if err != nil {
		if errors.Is(err, ErrUnknownApp) {
			t.print("open: unknown app " + app)
			return
		}
		t.print("open: " + err.Error())
		return
	}
	t.print("opened " + w.ID)
}

// remote publishes a remote command to every other desktop on the bus.
func (t *terminal) remote(arg string) {
	if t.ctx.Bus == nil {
		t.print("remote: no bus connected")
		return
	}
	command, param, _ := strings.Cut(arg, " ")
	if command == "" {
		t.print("usage: remote <command> [param]")
		return
	}
	msg := bus.Message{
		Type:    bus.TypeCommand,
		Command: command,
		Param:   strings.TrimSpace(param),
		ID:      uuid.New().String(),
	}
	if err := t.ctx.Bus.Send(msg); err != nil {
		t.print("remote: " + err.Error())
		return
	}
	t.print(fmt.Sprintf("sent %s on %s (id %s)", command, t.ctx.Bus.Name(), msg.ID[:8]))
}

func (t *terminal) View(width, height int) string {
	t.input.SetWidth(max(width-len(t.input.Prompt)-1, 1))
	muted := lipgloss.NewStyle().Foreground(paletteOf(t.ctx).Muted)

	room := max(height-2, 0)
	var lines []string
	for _, l := range t.output {
		lines = append(lines, ansi.Truncate(l, width, "…"))
	}
	if len(lines) > room {
		lines = lines[len(lines)-room:]
	}
	for len(lines) < room {
		lines = append(lines, "")
	}
	lines = append(lines,
		muted.Render(ansi.Truncate(t.cwd, width, "…")),
		ansi.Truncate(t.input.View(), width, ""),
	)
	return strings.Join(lines, "\n")
}
