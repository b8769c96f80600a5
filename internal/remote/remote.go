// Package remote interprets remote-command messages from the bus and turns
// them into the same window and file operations a local user performs.
package remote

import (
	"errors"
	"fmt"

	"github.com/ispwin/ispwin/internal/apps"
	"github.com/ispwin/ispwin/internal/bus"
	"github.com/ispwin/ispwin/internal/logging"
	"github.com/ispwin/ispwin/internal/theme"
	"github.com/ispwin/ispwin/internal/vfs"
	"github.com/ispwin/ispwin/internal/wm"
)

var logger = logging.New("remote")

// Command names.
const (
	CmdOpenApp     = "openApp"
	CmdSetTheme    = "setTheme"
	CmdCreateFile  = "createFile"
	CmdOpenFile    = "openFile"
	CmdCloseWindow = "closeWindow"
)

// DefaultFilePath is used by createFile and openFile without a path.
const DefaultFilePath = "/remote.txt"

// ErrUnknownCommand is reported, by message, for commands outside the vocabulary.
// The text is part of the wire format.
var ErrUnknownCommand = errors.New("Unknown command")

// Commands lists the vocabulary in a stable order.
func Commands() []string {
	return []string{CmdOpenApp, CmdSetTheme, CmdCreateFile, CmdOpenFile, CmdCloseWindow}
}

// Handler dispatches remote commands against one desktop.
type Handler struct {
	apps  *apps.Registry
	wm    *wm.Manager
	fs    *vfs.FS
	theme *theme.Manager

	commands map[string]func(bus.Message, *bus.Response) error
}

// New returns a handler operating on the given desktop parts.
func New(reg *apps.Registry, m *wm.Manager, fs *vfs.FS, th *theme.Manager) *Handler {
	h := &Handler{apps: reg, wm: m, fs: fs, theme: th}
	h.commands = map[string]func(bus.Message, *bus.Response) error{
		CmdOpenApp:     h.openApp,
		CmdSetTheme:    h.setTheme,
		CmdCreateFile:  h.createFile,
		CmdOpenFile:    h.openFile,
		CmdCloseWindow: h.closeWindow,
	}
	return h
}

// Handle runs msg if it is a remote command and returns the response to
// publish. Anything else yields false. Failures, panics included, are
// reported in the response; effects that happened before a failure stay.
func (h *Handler) Handle(msg bus.Message) (bus.Message, bool) {
	if msg.Type != bus.TypeCommand {
		return bus.Message{}, false
	}

	echo := msg
	resp := &bus.Response{Success: true, Echo: &echo}
	if err := h.dispatch(msg, resp); err != nil {
		resp.Success = false
		resp.Error = err.Error()
		logger.Warn("remote command failed", "command", msg.Command, "id", msg.ID, "err", err)
	} else {
		logger.Info("remote command", "command", msg.Command, "param", msg.Param, "id", msg.ID)
	}

	return msg.Reply(resp), true
}

func (h *Handler) dispatch(msg bus.Message, resp *bus.Response) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%v", p)
		}
	}()

	fn, ok := h.commands[msg.Command]
	if !ok {
		return ErrUnknownCommand
	}
	return fn(msg, resp)
}

func (h *Handler) openApp(msg bus.Message, resp *bus.Response) error {
	appID := msg.Param
	if appID == "" {
		appID = msg.ExtraString("app")
	}
	w, err := h.apps.Open(appID, apps.OptionsFromExtra(msg.Extra))
	if errors.Is(err, apps.ErrUnknownApp) {
		// Opening an unknown app is not a failure; there is just no window.
		logger.Warn("remote open of unknown app", "app", appID)
		resp.SetWindow("")
		return nil
	}
	if err != nil {
		return err
	}
	resp.SetWindow(w.ID)
	return nil
}

func (h *Handler) setTheme(msg bus.Message, _ *bus.Response) error {
	return h.theme.Set(theme.Parse(msg.Param))
}

func (h *Handler) createFile(msg bus.Message, _ *bus.Response) error {
	path := msg.ExtraString("path")
	if path == "" {
		path = DefaultFilePath
	}
	return h.fs.WriteFile(path, msg.ExtraString("content"))
}

func (h *Handler) openFile(msg bus.Message, resp *bus.Response) error {
	path := msg.ExtraString("path")
	if path == "" {
		path = msg.Param
	}
	if path == "" {
		path = DefaultFilePath
	}
	w, err := h.apps.Open("editor", apps.Options{OpenPath: path})
	if err != nil {
		return err
	}
	resp.SetWindow(w.ID)
	return nil
}

// closeWindow closes by app id first, then by window id. Without a target the
// most recently created window goes. Unknown targets are a no-op.
func (h *Handler) closeWindow(msg bus.Message, _ *bus.Response) error {
	target := msg.Param
	if target == "" {
		if w, ok := h.wm.MostRecent(); ok {
			h.close(w.ID)
		}
		return nil
	}
	if w, ok := h.wm.FindByApp(target); ok {
		h.close(w.ID)
		return nil
	}
	h.close(target)
	return nil
}

func (h *Handler) close(id string) {
	if h.wm.Close(id) {
		h.apps.Forget(id)
	}
}
