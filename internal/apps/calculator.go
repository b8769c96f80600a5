package apps

import (
	"regexp"
	"strings"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/x/ansi"
)

var expressionChars = regexp.MustCompile(`^[0-9+\-*/(). %]+$`)

// Calculator verdicts.
const (
	calcInvalid  = "Invalid characters"
	calcAccepted = "Expression accepted (evaluation not available)"
)

const maxCalcHistory = 50

type calcEntry struct {
	expr   string
	result string
}

// calculator checks expressions against the allowed character set and keeps
// a history. up/down recall earlier expressions.
type calculator struct {
	ctx     Context
	input   textinput.Model
	history []calcEntry
	recall  int
}

func newCalculator(ctx Context) View {
	in := textinput.New()
	in.Placeholder = "Enter expression, e.g. 2+2*3"
	in.Prompt = "> "
	in.CharLimit = 128
	return &calculator{ctx: ctx, input: in, recall: -1}
}

// checkExpression returns the verdict for expr, or "" for a blank input.
func checkExpression(expr string) string {
	expr = strings.TrimSpace(expr)
	switch {
	case expr == "":
		return ""
	case !expressionChars.MatchString(expr):
		return calcInvalid
	default:
		return calcAccepted
	}
}

func (c *calculator) Init() tea.Cmd { return c.input.Focus() }

func (c *calculator) Update(msg tea.Msg) tea.Cmd {
	if key, ok := msg.(tea.KeyPressMsg); ok {
		switch key.String() {
		case "enter":
			c.submit()
			return nil
		case "up":
			c.step(1)
			return nil
		case "down":
			c.step(-1)
			return nil
		}
	}
	var cmd tea.Cmd
	c.input, cmd = c.input.Update(msg)
	return cmd
}

func (c *calculator) submit() {
	expr := strings.TrimSpace(c.input.Value())
	verdict := checkExpression(expr)
	if verdict == "" {
		return
	}
	c.history = append(c.history, calcEntry{expr: expr, result: verdict})
	if len(c.history) > maxCalcHistory {
		c.history = c.history[len(c.history)-maxCalcHistory:]
	}
	c.input.Reset()
	c.recall = -1
}

// step moves through history; 1 goes back in time.
func (c *calculator) step(dir int) {
	if len(c.history) == 0 {
		return
	}
	c.recall = min(max(c.recall+dir, -1), len(c.history)-1)
	if c.recall < 0 {
		c.input.Reset()
		return
	}
	c.input.SetValue(c.history[len(c.history)-1-c.recall].expr)
	c.input.CursorEnd()
}

func (c *calculator) View(width, height int) string {
	pal := paletteOf(c.ctx)
	c.input.SetWidth(max(width-len(c.input.Prompt)-1, 1))

	lines := []string{ansi.Truncate(c.input.View(), width, "")}
	ok := lipgloss.NewStyle().Foreground(pal.Success)
	bad := lipgloss.NewStyle().Foreground(pal.Error)
	muted := lipgloss.NewStyle().Foreground(pal.Muted)

	room := max(height-1, 0) / 2
	start := max(len(c.history)-room, 0)
	for i := len(c.history) - 1; i >= start; i-- {
		h := c.history[i]
		style := ok
		if h.result == calcInvalid {
			style = bad
		}
		lines = append(lines,
			muted.Render(ansi.Truncate(h.expr, width, "…")),
			style.Render(ansi.Truncate("  "+h.result, width, "…")),
		)
	}
	return strings.Join(lines, "\n")
}
