package desktop

import (
	"fmt"
	"time"

	tea "charm.land/bubbletea/v2"

	"github.com/ispwin/ispwin/internal/apps"
	"github.com/ispwin/ispwin/internal/bus"
	"github.com/ispwin/ispwin/internal/config"
	"github.com/ispwin/ispwin/internal/wm"
)

// TickerMsg redraws the clock and expires notifications.
type TickerMsg time.Time

// BusMsg carries a message received on the bus into the update loop.
type BusMsg struct {
	Message bus.Message
}

// LogMessage is one entry of the in-app log viewer.
type LogMessage struct {
	Time    time.Time
	Level   string
	Message string
}

type notification struct {
	text  string
	level string
	until time.Time
}

type click struct {
	x, y int
	at   time.Time
}

// Model is the Bubble Tea model of a desktop session.
type Model struct {
	s *Session

	width, height int

	prefix   bool
	showHelp bool
	showLogs bool

	logs   []LogMessage
	notice *notification

	lastClick    click
	selectedIcon int

	sys sysinfo

	now func() time.Time
}

// NewModel returns a model for s and opens the startup apps.
func NewModel(s *Session) *Model {
	width, height := s.WM.Viewport().Width, s.WM.Viewport().Height+config.TaskbarHeight
	m := &Model{
		s:            s,
		width:        width,
		height:       height,
		selectedIcon: -1,
		now:          time.Now,
	}
	s.Preopen()
	m.Log("INFO", "desktop started with %d windows", s.WM.Len())
	if ch := s.Channel(); ch != "" {
		m.Log("INFO", "listening on channel %s", ch)
	}
	return m
}

// Session returns the session the model drives.
func (m *Model) Session() *Session {
	return m.s
}

// ListenForBus waits for the next bus message.
func ListenForBus(inbox <-chan bus.Message) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-inbox
		if !ok {
			return nil
		}
		return BusMsg{Message: msg}
	}
}

// TickCmd schedules the next clock tick.
func TickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickerMsg(t)
	})
}

// Init starts the clock, the bus listener and the startup apps.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{TickCmd(), m.s.Apps.TakeCmds()}
	if m.s.Bus != nil {
		cmds = append(cmds, ListenForBus(m.s.Inbox()))
	}
	if m.s.Config.Desktop.ShowSysinfo {
		cmds = append(cmds, SysinfoCmd(0))
	}
	return tea.Batch(cmds...)
}

// Update handles one message. Messages are processed strictly in arrival order.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.s.WM.Resize(msg.Width, msg.Height)
		return m, nil

	case TickerMsg:
		if m.notice != nil && !time.Time(msg).Before(m.notice.until) {
			m.notice = nil
		}
		return m, TickCmd()

	case SysinfoMsg:
		m.sys.record(msg)
		return m, SysinfoCmd(config.CPUUpdateInterval)

	case BusMsg:
		m.handleBus(msg.Message)
		return m, tea.Batch(ListenForBus(m.s.Inbox()), m.s.Apps.TakeCmds())

	case tea.KeyPressMsg:
		return m, m.handleKey(msg)

	case tea.MouseClickMsg:
		return m, m.handleMouseClick(msg)

	case tea.MouseMotionMsg:
		m.handleMouseMotion(msg)
		return m, nil

	case tea.MouseReleaseMsg:
		m.s.WM.PointerUp()
		return m, nil

	case tea.MouseMsg:
		return m, nil
	}

	return m, m.s.Apps.Broadcast(msg)
}

func (m *Model) handleBus(msg bus.Message) {
	if msg.Type == bus.TypeResponse {
		if msg.Response != nil && msg.Response.Success {
			m.Log("INFO", "response to %s: ok", msg.To)
		} else if msg.Response != nil {
			m.Log("WARN", "response to %s: %s", msg.To, msg.Response.Error)
		}
		return
	}

	resp, ok := m.s.HandleBus(msg)
	if !ok {
		return
	}
	if resp.Response.Success {
		m.Log("INFO", "remote %s %s", msg.Command, msg.Param)
		return
	}
	m.Log("ERROR", "remote %s failed: %s", msg.Command, resp.Response.Error)
	m.Notify(fmt.Sprintf("Remote %s failed: %s", msg.Command, resp.Response.Error), "error")
}

func (m *Model) handleKey(msg tea.KeyPressMsg) tea.Cmd {
	key := msg.String()
	if key == "ctrl+c" {
		return tea.Quit
	}

	if m.prefix {
		m.prefix = false
		action := m.s.Keys.GetAction(key)
		if action == "" {
			m.Log("DEBUG", "no action bound to %s", key)
			return nil
		}
		return m.runAction(action)
	}
	if key == m.s.Keys.Prefix() {
		m.prefix = true
		return nil
	}

	if m.showHelp || m.showLogs {
		if key == "esc" || key == "q" {
			m.showHelp, m.showLogs = false, false
		}
		return nil
	}

	if w, ok := m.s.WM.Focused(); ok {
		// A view may open other windows; their init commands are queued.
		return tea.Batch(m.s.Apps.Update(w.ID, msg), m.s.Apps.TakeCmds())
	}
	return nil
}

func (m *Model) runAction(action string) tea.Cmd {
	switch action {
	case config.ActionNewTerminal:
		return m.open("terminal", apps.Options{})
	case config.ActionOpenExplorer:
		return m.open("explorer", apps.Options{})
	case config.ActionOpenEditor:
		return m.open("editor", apps.Options{})
	case config.ActionOpenCalc:
		return m.open("calculator", apps.Options{})
	case config.ActionOpenSettings:
		return m.open("settings", apps.Options{})
	case config.ActionCloseWindow:
		m.withFocused(func(w *wm.Window) { m.s.CloseWindow(w.ID) })
	case config.ActionMinimize:
		m.withFocused(func(w *wm.Window) { m.s.WM.Minimize(w.ID) })
	case config.ActionMaximize:
		m.withFocused(func(w *wm.Window) { m.s.WM.ToggleMax(w.ID) })
	case config.ActionNextWindow:
		m.s.WM.FocusNext()
	case config.ActionRestoreAll:
		for _, w := range m.s.WM.Windows() {
			if w.Minimized {
				m.s.WM.Restore(w.ID)
			}
		}
	case config.ActionToggleTheme:
		m.toggleTheme()
	case config.ActionToggleHelp:
		m.showHelp = !m.showHelp
		m.showLogs = false
	case config.ActionToggleLogs:
		m.showLogs = !m.showLogs
		m.showHelp = false
	case config.ActionQuit:
		return tea.Quit
	}
	return nil
}

func (m *Model) withFocused(fn func(*wm.Window)) {
	if w, ok := m.s.WM.Focused(); ok {
		fn(w)
	}
}

func (m *Model) open(appID string, opts apps.Options) tea.Cmd {
	w, err := m.s.Apps.Open(appID, opts)
	if err != nil {
		m.Log("ERROR", "open %s: %v", appID, err)
		m.Notify(fmt.Sprintf("Could not open %s", appID), "error")
		return nil
	}
	m.Log("INFO", "opened %s in %s", appID, w.ID)
	return m.s.Apps.TakeCmds()
}

func (m *Model) toggleTheme() {
	mode, err := m.s.Theme.Toggle()
	if err != nil {
		m.Log("ERROR", "saving theme: %v", err)
		m.Notify("Theme not saved", "error")
		return
	}
	m.Log("INFO", "theme set to %s", mode)
}

// Log appends to the in-app log viewer and mirrors the line to the logger.
func (m *Model) Log(level, format string, args ...any) {
	message := fmt.Sprintf(format, args...)
	m.logs = append(m.logs, LogMessage{Time: m.now(), Level: level, Message: message})
	if len(m.logs) > config.MaxLogMessages {
		m.logs = m.logs[len(m.logs)-config.MaxLogMessages:]
	}

	switch level {
	case "ERROR":
		logger.Error(message)
	case "WARN":
		logger.Warn(message)
	case "DEBUG":
		logger.Debug(message)
	default:
		logger.Info(message)
	}
}

// Logs returns the retained log entries, oldest first.
func (m *Model) Logs() []LogMessage {
	return m.logs
}

// Notify shows a transient message in the corner of the screen.
func (m *Model) Notify(text, level string) {
	m.notice = &notification{text: text, level: level, until: m.now().Add(config.NotificationDuration)}
}
