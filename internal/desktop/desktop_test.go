package desktop

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/x/ansi"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ispwin/ispwin/internal/bus"
	"github.com/ispwin/ispwin/internal/config"
	"github.com/ispwin/ispwin/internal/storage"
	"github.com/ispwin/ispwin/internal/theme"
	"github.com/ispwin/ispwin/internal/wm"
)

const waitFor = 3 * time.Second

var fixedNow = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

type testDesk struct {
	s    *Session
	m    *Model
	peer *bus.Bus
	got  chan bus.Message
}

// newDesk builds a 120x40 desktop. With a hub the session and a peer endpoint
// share a channel.
func newDesk(t *testing.T, preopen []string, withBus bool) *testDesk {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Desktop.ShowSysinfo = false
	if preopen != nil {
		cfg.Desktop.Preopen = preopen
	}

	opts := Options{
		Config: cfg,
		Store:  storage.NewFileStoreFs(afero.NewMemMapFs()),
		Width:  120,
		Height: 40,
	}

	d := &testDesk{}
	if withBus {
		hub := bus.NewHub()
		opts.Bus = bus.New("test-channel", hub.Endpoint())

		ctx, cancel := context.WithCancel(context.Background())
		t.Cleanup(cancel)
		d.peer = bus.New("test-channel", hub.Endpoint())
		d.got = make(chan bus.Message, 16)
		d.peer.Subscribe(func(m bus.Message) { d.got <- m })
		require.NoError(t, d.peer.Start(ctx))
		t.Cleanup(func() { _ = d.peer.Close() })
	} else {
		opts.NoBus = true
	}

	s, err := NewSession(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	d.s = s
	d.m = NewModel(s)
	d.m.now = func() time.Time { return fixedNow }
	return d
}

func (d *testDesk) update(msgs ...tea.Msg) {
	for _, msg := range msgs {
		d.m.Update(msg)
	}
}

func keyPress(s string) tea.KeyPressMsg {
	switch s {
	case "tab":
		return tea.KeyPressMsg{Code: tea.KeyTab}
	case "esc":
		return tea.KeyPressMsg{Code: tea.KeyEscape}
	}
	if c, ok := strings.CutPrefix(s, "ctrl+"); ok {
		return tea.KeyPressMsg{Code: rune(c[0]), Mod: tea.ModCtrl}
	}
	return tea.KeyPressMsg{Code: rune(s[0]), Text: s}
}

func leftClick(x, y int) tea.MouseClickMsg {
	return tea.MouseClickMsg{X: x, Y: y, Button: tea.MouseLeft}
}

func receive(t *testing.T, ch <-chan bus.Message) bus.Message {
	t.Helper()
	select {
	case m := <-ch:
		return m
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for bus message")
		return bus.Message{}
	}
}

func appsOf(s *Session) []string {
	var ids []string
	for _, w := range s.WM.Windows() {
		ids = append(ids, w.AppID)
	}
	return ids
}

// =============================================================================
// Session
// =============================================================================

func TestNewModel_PreopensConfiguredApps(t *testing.T) {
	d := newDesk(t, nil, false)
	assert.Equal(t, []string{"explorer", "calculator"}, appsOf(d.s))

	focused, ok := d.s.WM.Focused()
	require.True(t, ok)
	assert.Equal(t, "calculator", focused.AppID)
}

func TestNewModel_UnknownPreopenIsSkipped(t *testing.T) {
	d := newDesk(t, []string{"paint", "terminal"}, false)
	assert.Equal(t, []string{"terminal"}, appsOf(d.s))
}

func TestSession_WithoutBus(t *testing.T) {
	d := newDesk(t, []string{}, false)
	assert.Nil(t, d.s.Bus)
	assert.Empty(t, d.s.Channel())

	_, handled := d.s.HandleBus(bus.Message{Type: bus.TypeCommand, Command: "openApp", Param: "editor", ID: "1"})
	assert.True(t, handled, "commands still run without a bus to answer on")
	assert.Equal(t, []string{"editor"}, appsOf(d.s))

	assert.Error(t, d.s.RunHeadless(context.Background()))
}

// =============================================================================
// Remote commands through the update loop
// =============================================================================

func TestRemoteCommand_RoundTrip(t *testing.T) {
	d := newDesk(t, []string{}, true)

	require.NoError(t, d.peer.Send(bus.Message{
		Type:    bus.TypeCommand,
		Command: "openApp",
		Param:   "calculator",
		ID:      "cmd-1",
		Extra:   map[string]any{"x": 30, "y": 5},
	}))

	in := receive(t, d.s.Inbox())
	d.update(BusMsg{Message: in})

	require.Equal(t, []string{"calculator"}, appsOf(d.s))
	w := d.s.WM.Windows()[0]
	assert.Equal(t, 30, w.X)
	assert.Equal(t, 5, w.Y)

	resp := receive(t, d.got)
	assert.Equal(t, bus.TypeResponse, resp.Type)
	assert.Equal(t, "cmd-1", resp.To)
	require.NotNil(t, resp.Response)
	assert.True(t, resp.Response.Success)
	require.NotNil(t, resp.Response.Window)
	assert.Equal(t, w.ID, *resp.Response.Window)
}

func TestRemoteCommand_FailureIsLoggedAndNotified(t *testing.T) {
	d := newDesk(t, []string{}, true)

	d.update(BusMsg{Message: bus.Message{Type: bus.TypeCommand, Command: "reboot", ID: "cmd-2"}})

	resp := receive(t, d.got)
	assert.False(t, resp.Response.Success)
	assert.Equal(t, "Unknown command", resp.Response.Error)

	require.NotNil(t, d.m.notice)
	assert.Equal(t, "error", d.m.notice.level)
	last := d.m.Logs()[len(d.m.Logs())-1]
	assert.Equal(t, "ERROR", last.Level)
}

func TestRemoteResponse_IsLoggedNotAnswered(t *testing.T) {
	d := newDesk(t, []string{}, true)
	before := len(d.m.Logs())

	d.update(BusMsg{Message: bus.Message{
		Type:     bus.TypeResponse,
		To:       "other",
		Response: &bus.Response{Success: true},
	}})

	assert.Len(t, d.m.Logs(), before+1)
	select {
	case m := <-d.got:
		t.Fatalf("responses must not be answered, got %+v", m)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRunHeadless(t *testing.T) {
	d := newDesk(t, []string{}, true)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.s.RunHeadless(ctx) }()

	require.NoError(t, d.peer.Send(bus.Message{
		Type:    bus.TypeCommand,
		Command: "createFile",
		ID:      "cmd-3",
		Extra:   map[string]any{"path": "/inbox/hello.txt", "content": "hi"},
	}))
	resp := receive(t, d.got)
	assert.True(t, resp.Response.Success)

	cancel()
	require.NoError(t, <-done)

	content, err := d.s.FS.ReadFile("/inbox/hello.txt")
	require.NoError(t, err)
	assert.Equal(t, "hi", content)
}

// =============================================================================
// Keyboard
// =============================================================================

func TestPrefixActions(t *testing.T) {
	tests := []struct {
		name  string
		keys  []string
		check func(t *testing.T, d *testDesk)
	}{
		{
			name: "new terminal",
			keys: []string{"ctrl+b", "c"},
			check: func(t *testing.T, d *testDesk) {
				assert.Equal(t, []string{"explorer", "calculator", "terminal"}, appsOf(d.s))
			},
		},
		{
			name: "close focused",
			keys: []string{"ctrl+b", "x"},
			check: func(t *testing.T, d *testDesk) {
				assert.Equal(t, []string{"explorer"}, appsOf(d.s))
			},
		},
		{
			name: "minimize then restore all",
			keys: []string{"ctrl+b", "m", "ctrl+b", "M"},
			check: func(t *testing.T, d *testDesk) {
				for _, w := range d.s.WM.Windows() {
					assert.False(t, w.Minimized, w.AppID)
				}
			},
		},
		{
			name: "maximize",
			keys: []string{"ctrl+b", "f"},
			check: func(t *testing.T, d *testDesk) {
				w, _ := d.s.WM.Focused()
				assert.True(t, w.Maximized)
				assert.Equal(t, wm.Geometry{X: 0, Y: 0, Width: 120, Height: 39}, w.Geometry)
			},
		},
		{
			name: "next window",
			keys: []string{"ctrl+b", "tab"},
			check: func(t *testing.T, d *testDesk) {
				w, _ := d.s.WM.Focused()
				assert.Equal(t, "explorer", w.AppID)
			},
		},
		{
			name: "toggle theme",
			keys: []string{"ctrl+b", "t"},
			check: func(t *testing.T, d *testDesk) {
				assert.Equal(t, theme.Dark, d.s.Theme.Mode())
			},
		},
		{
			name: "help",
			keys: []string{"ctrl+b", "?"},
			check: func(t *testing.T, d *testDesk) {
				assert.True(t, d.m.showHelp)
			},
		},
		{
			name: "help closes with esc",
			keys: []string{"ctrl+b", "?", "esc"},
			check: func(t *testing.T, d *testDesk) {
				assert.False(t, d.m.showHelp)
			},
		},
		{
			name: "unbound key after prefix does nothing",
			keys: []string{"ctrl+b", "z"},
			check: func(t *testing.T, d *testDesk) {
				assert.Equal(t, 2, d.s.WM.Len())
				assert.False(t, d.m.prefix)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDesk(t, nil, false)
			for _, k := range tt.keys {
				d.update(keyPress(k))
			}
			tt.check(t, d)
		})
	}
}

func TestQuitKeys(t *testing.T) {
	for _, keys := range [][]string{{"ctrl+c"}, {"ctrl+b", "q"}} {
		d := newDesk(t, []string{}, false)
		var cmd tea.Cmd
		for _, k := range keys {
			_, cmd = d.m.Update(keyPress(k))
		}
		require.NotNil(t, cmd, keys)
		assert.IsType(t, tea.QuitMsg{}, cmd(), keys)
	}
}

func TestKeysGoToFocusedWindow(t *testing.T) {
	d := newDesk(t, []string{"terminal"}, false)
	w, _ := d.s.WM.Focused()

	for _, k := range []string{"p", "w", "d"} {
		d.update(keyPress(k))
	}
	d.update(tea.KeyPressMsg{Code: tea.KeyEnter})

	cw, ch := w.ContentSize()
	assert.Contains(t, d.s.Apps.Render(w.ID, cw, ch), "> pwd")
}

func TestKeys_OpenFromViewFlushesInitCommands(t *testing.T) {
	d := newDesk(t, []string{"explorer"}, false)

	// "/" lists Documents then Readme.txt
	d.update(keyPress("j"))
	d.m.Update(tea.KeyPressMsg{Code: tea.KeyEnter})

	assert.Equal(t, []string{"explorer", "editor"}, appsOf(d.s))
	assert.Nil(t, d.s.Apps.TakeCmds(), "editor init must be returned with the key, not left queued")
}

// =============================================================================
// Mouse
// =============================================================================

func TestMouse_TitleButtons(t *testing.T) {
	d := newDesk(t, nil, false)
	calc := d.s.WM.Windows()[1]

	d.update(leftClick(calc.ButtonX(wm.RegionMaximize), calc.Y))
	assert.True(t, calc.Maximized)

	d.update(leftClick(calc.ButtonX(wm.RegionMinimize), calc.Y))
	assert.True(t, calc.Minimized)

	explorer := d.s.WM.Windows()[0]
	d.update(leftClick(explorer.ButtonX(wm.RegionClose), explorer.Y))
	assert.Equal(t, []string{"calculator"}, appsOf(d.s))
	_, ok := d.s.Apps.View(explorer.ID)
	assert.False(t, ok)
}

func TestMouse_DragTitle(t *testing.T) {
	d := newDesk(t, nil, false)
	explorer := d.s.WM.Windows()[0]
	grabX := explorer.X + 3

	d.update(leftClick(grabX, explorer.Y))
	top, _ := d.s.WM.Focused()
	assert.Equal(t, explorer.ID, top.ID, "grabbing raises")

	d.update(tea.MouseMotionMsg{X: grabX + 10, Y: explorer.Y + 5})
	assert.Equal(t, 14, explorer.X)
	assert.Equal(t, 7, explorer.Y)

	d.update(tea.MouseMotionMsg{X: grabX, Y: 60})
	assert.Equal(t, 38, explorer.Y, "title row stays above the taskbar")

	d.update(tea.MouseReleaseMsg{X: grabX, Y: 38})
	d.update(tea.MouseMotionMsg{X: 0, Y: 0})
	assert.Equal(t, 38, explorer.Y)
}

func TestMouse_Taskbar(t *testing.T) {
	d := newDesk(t, nil, false)
	explorer := d.s.WM.Windows()[0]
	taskbarY := 39

	items := d.m.taskbarItems()
	require.Len(t, items, 4)
	assert.Equal(t, itemWindow, items[1].kind)
	assert.Equal(t, explorer.ID, items[1].id)

	d.update(leftClick(items[1].x+1, taskbarY))
	assert.True(t, explorer.Minimized)
	d.update(leftClick(items[1].x+1, taskbarY))
	// the second click on the same cell is a double click; it still toggles
	assert.False(t, explorer.Minimized)

	d.update(leftClick(items[3].x, taskbarY))
	assert.Equal(t, theme.Dark, d.s.Theme.Mode())

	d.update(leftClick(1, taskbarY))
	assert.Contains(t, appsOf(d.s), "settings")
}

func TestMouse_DesktopIcons(t *testing.T) {
	d := newDesk(t, []string{}, false)

	// icons: explorer rows 1-2, editor rows 4-5
	d.update(leftClick(3, 4))
	assert.Equal(t, 1, d.m.selectedIcon)
	assert.Zero(t, d.s.WM.Len())

	d.update(leftClick(3, 4))
	assert.Equal(t, []string{"editor"}, appsOf(d.s))

	d.update(leftClick(3, 3))
	assert.Equal(t, -1, d.m.selectedIcon, "gap between icons")
}

func TestMouse_DoubleClickNeedsSameCellInTime(t *testing.T) {
	d := newDesk(t, []string{}, false)

	assert.False(t, d.m.isDoubleClick(3, 4))
	assert.False(t, d.m.isDoubleClick(4, 4))

	d.m.now = func() time.Time { return fixedNow.Add(time.Second) }
	assert.False(t, d.m.isDoubleClick(4, 4), "too slow")
	assert.True(t, d.m.isDoubleClick(4, 4))
	assert.False(t, d.m.isDoubleClick(4, 4), "a double click is not reused")
}

func TestMouse_ContentClickReachesView(t *testing.T) {
	d := newDesk(t, []string{"explorer", "calculator"}, false)
	explorer := d.s.WM.Windows()[0]
	d.s.WM.Minimize(d.s.WM.Windows()[1].ID)

	// second listing row of "/" is Readme.txt; double click opens it
	x, y := explorer.X+2, explorer.Y+1+3
	_, region := d.s.WM.HitTest(x, y)
	require.Equal(t, wm.RegionContent, region)

	d.update(leftClick(x, y))
	d.m.Update(leftClick(x, y))
	assert.Equal(t, []string{"explorer", "calculator", "editor"}, appsOf(d.s))
	assert.Nil(t, d.s.Apps.TakeCmds(), "editor init must be returned with the click, not left queued")

	editor := d.s.WM.Windows()[2]
	cw, ch := editor.ContentSize()
	assert.Contains(t, d.s.Apps.Render(editor.ID, cw, ch), "/Readme.txt")
}

// =============================================================================
// Rendering
// =============================================================================

func TestView_ShowsWindowsAndTaskbar(t *testing.T) {
	d := newDesk(t, nil, false)
	out := ansi.Strip(d.m.Canvas().Render())

	assert.Contains(t, out, "File Explorer")
	assert.Contains(t, out, "Calculator")
	assert.Contains(t, out, "Start")
	assert.Contains(t, out, "09:30")
	assert.Contains(t, out, "[x]")
}

func TestView_ZeroSize(t *testing.T) {
	d := newDesk(t, nil, false)
	d.update(tea.WindowSizeMsg{Width: 0, Height: 0})
	assert.NotPanics(t, func() { _ = d.m.View() })
}

func TestView_Overlays(t *testing.T) {
	d := newDesk(t, nil, false)

	d.update(keyPress("ctrl+b"), keyPress("?"))
	assert.Contains(t, ansi.Strip(d.m.Canvas().Render()), "ispwin help")

	d.update(keyPress("ctrl+b"), keyPress("l"))
	assert.Contains(t, ansi.Strip(d.m.Canvas().Render()), "desktop started")
}

func TestTitleBar_ButtonsMatchHitTest(t *testing.T) {
	w := &wm.Window{Title: "A very long window title indeed", Geometry: wm.Geometry{X: 3, Y: 0, Width: 30, Height: 8}}
	bar := []rune(titleBar(w))
	require.Len(t, bar, 30)

	for region, label := range map[wm.Region]string{
		wm.RegionMinimize: "[_]",
		wm.RegionMaximize: "[□]",
		wm.RegionClose:    "[x]",
	} {
		x := w.ButtonX(region) - w.X
		assert.Equal(t, label, string(bar[x:x+3]))
		assert.Equal(t, region, w.RegionAt(w.ButtonX(region)+1, w.Y))
	}
	assert.Equal(t, '┌', bar[0])
	assert.Equal(t, '┐', bar[29])
}

func TestClip(t *testing.T) {
	d := newDesk(t, []string{}, false)
	content := strings.Repeat("abcdefghij\n", 4) + "abcdefghij"

	tests := []struct {
		name  string
		geo   wm.Geometry
		wantX int
		wantY int
		first string
		rows  int
		ok    bool
	}{
		{"inside", wm.Geometry{X: 5, Y: 5, Width: 10, Height: 5}, 5, 5, "abcdefghij", 5, true},
		{"off left", wm.Geometry{X: -3, Y: 0, Width: 10, Height: 5}, 0, 0, "defghij", 5, true},
		{"off right", wm.Geometry{X: 115, Y: 0, Width: 10, Height: 5}, 115, 0, "abcde", 5, true},
		{"off top", wm.Geometry{X: 0, Y: -2, Width: 10, Height: 5}, 0, 0, "abcdefghij", 3, true},
		{"under taskbar", wm.Geometry{X: 0, Y: 37, Width: 10, Height: 5}, 0, 37, "abcdefghij", 2, true},
		{"gone", wm.Geometry{X: 200, Y: 0, Width: 10, Height: 5}, 0, 0, "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, x, y, ok := d.m.clip(content, &wm.Window{Geometry: tt.geo})
			require.Equal(t, tt.ok, ok)
			if !ok {
				return
			}
			lines := strings.Split(got, "\n")
			assert.Equal(t, tt.wantX, x)
			assert.Equal(t, tt.wantY, y)
			assert.Equal(t, tt.first, lines[0])
			assert.Len(t, lines, tt.rows)
		})
	}
}

// =============================================================================
// Sysinfo
// =============================================================================

func TestSysinfo(t *testing.T) {
	var s sysinfo
	assert.Equal(t, "CPU:"+strings.Repeat(" ", 13)+"0%", s.cpuGraph())

	for _, v := range []float64{0, 50, 100, 250, -5} {
		s.record(SysinfoMsg{CPU: v, RAM: 42})
	}
	graph := s.cpuGraph()
	assert.Equal(t, "CPU:     ▁▅██▁   0%", graph)
	assert.Equal(t, "RAM: 42%", s.ramLabel())

	for range 20 {
		s.record(SysinfoMsg{CPU: 10})
	}
	assert.Len(t, s.cpu, cpuHistoryLen)
	assert.Equal(t, ansi.StringWidth(graph), ansi.StringWidth(s.cpuGraph()), "fixed width")
}
