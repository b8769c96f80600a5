// Package desktop ties the store, file system, window manager, app registry,
// theme and bus of one desktop into a Session, and renders it as a Bubble Tea
// model.
package desktop

import (
	"context"
	"errors"
	"fmt"

	"github.com/ispwin/ispwin/internal/apps"
	"github.com/ispwin/ispwin/internal/bus"
	"github.com/ispwin/ispwin/internal/config"
	"github.com/ispwin/ispwin/internal/logging"
	"github.com/ispwin/ispwin/internal/remote"
	"github.com/ispwin/ispwin/internal/storage"
	"github.com/ispwin/ispwin/internal/theme"
	"github.com/ispwin/ispwin/internal/vfs"
	"github.com/ispwin/ispwin/internal/wm"
)

var logger = logging.New("desktop")

const inboxSize = 64

// Options configure a Session.
type Options struct {
	Config *config.UserConfig
	// Store is used instead of opening the configured backend. The session
	// does not close a store it did not open.
	Store storage.Store
	// Bus replaces the configured transport. The session starts and closes it.
	Bus *bus.Bus
	// NoBus runs the desktop without a bus.
	NoBus bool
	// Width and Height are the initial screen size in cells.
	Width, Height int
}

// Session is one desktop: everything a user or a remote peer can act on.
// Its methods are not safe for concurrent use; the owning update loop (or
// RunHeadless) serializes them. Bus messages arrive on Inbox.
type Session struct {
	Config *config.UserConfig
	Keys   *config.KeybindRegistry

	Store  storage.Store
	FS     *vfs.FS
	WM     *wm.Manager
	Apps   *apps.Registry
	Theme  *theme.Manager
	Bus    *bus.Bus
	Remote *remote.Handler

	inbox     chan bus.Message
	ownsStore bool
	cancel    context.CancelFunc
}

// NewSession builds a desktop from opts, loading the file system from the store
// and connecting to the bus.
func NewSession(opts Options) (*Session, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	s := &Session{
		Config: cfg,
		Keys:   config.NewKeybindRegistry(cfg),
		Store:  opts.Store,
		inbox:  make(chan bus.Message, inboxSize),
	}

	if s.Store == nil {
		store, err := storage.Open(storage.Backend(cfg.Storage.Backend), cfg.StorageDir())
		if err != nil {
			return nil, fmt.Errorf("failed to open store: %w", err)
		}
		s.Store = store
		s.ownsStore = true
	}

	width, height := opts.Width, opts.Height
	if width <= 0 || height <= 0 {
		width, height = 120, 40
	}

	s.FS = vfs.New(s.Store)
	s.WM = wm.NewManager(width, height, config.TaskbarHeight)
	s.Theme = theme.NewManager(s.Store, cfg.Theme.Dark, cfg.Theme.Light)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	if !opts.NoBus {
		b := opts.Bus
		if b == nil {
			var err error
			b, err = OpenBus(cfg, s.Store)
			if err != nil {
				// The desktop works without a bus; remote commands just never arrive.
				logger.Warn("running without bus", "err", err)
			}
		}
		if b != nil {
			b.Subscribe(func(msg bus.Message) {
				select {
				case s.inbox <- msg:
				case <-ctx.Done():
				}
			})
			if err := b.Start(ctx); err != nil {
				_ = b.Close()
				logger.Warn("running without bus", "err", err)
			} else {
				s.Bus = b
			}
		}
	}

	// A nil *bus.Bus must not become a non-nil apps.Sender.
	var sender apps.Sender
	if s.Bus != nil {
		sender = s.Bus
	}
	s.Apps = apps.NewRegistry(s.WM, s.FS, sender, s.Theme, apps.Placement{
		X:       cfg.Desktop.WindowX,
		Y:       cfg.Desktop.WindowY,
		Width:   cfg.Desktop.WindowWidth,
		Height:  cfg.Desktop.WindowHeight,
		Cascade: cfg.Desktop.Cascade,
	})
	for _, meta := range apps.Builtins() {
		s.Apps.Register(meta)
	}
	s.Remote = remote.New(s.Apps, s.WM, s.FS, s.Theme)

	return s, nil
}

// OpenBus opens an unstarted bus endpoint for the configured channel and
// transport. store backs the storage fallback.
func OpenBus(cfg *config.UserConfig, store storage.Store) (*bus.Bus, error) {
	cleanup, err := cfg.CleanupDelay()
	if err != nil {
		return nil, err
	}
	return bus.Open(bus.Options{
		Channel:   cfg.Bus.Channel,
		Mode:      bus.Mode(cfg.Bus.Transport),
		SocketDir: config.SocketDir(),
		Store:     store,
		Cleanup:   cleanup,
	})
}

// Preopen opens the configured startup apps. Unknown ids are logged and skipped.
func (s *Session) Preopen() {
	for _, id := range s.Config.Desktop.Preopen {
		if _, err := s.Apps.Open(id, apps.Options{}); err != nil {
			logger.Warn("could not pre-open app", "app", id, "err", err)
		}
	}
}

// Inbox delivers bus messages in arrival order.
func (s *Session) Inbox() <-chan bus.Message {
	return s.inbox
}

// Channel returns the bus channel name, or "" without a bus.
func (s *Session) Channel() string {
	if s.Bus == nil {
		return ""
	}
	return s.Bus.Name()
}

// HandleBus processes one bus message. Remote commands are executed and their
// response published; the response is also returned. Anything else is
// returned as not handled.
func (s *Session) HandleBus(msg bus.Message) (bus.Message, bool) {
	if msg.Type == bus.TypeResponse {
		logger.Debug("response seen on bus", "to", msg.To)
		return bus.Message{}, false
	}

	resp, ok := s.Remote.Handle(msg)
	if !ok {
		logger.Debug("ignoring bus message", "type", msg.Type)
		return bus.Message{}, false
	}
	if s.Bus != nil {
		if err := s.Bus.Send(resp); err != nil {
			logger.Error("failed to publish response", "to", resp.To, "err", err)
		}
	}
	return resp, true
}

// CloseWindow closes a window and drops its view.
func (s *Session) CloseWindow(id string) bool {
	if !s.WM.Close(id) {
		return false
	}
	s.Apps.Forget(id)
	return true
}

// RunHeadless opens the startup apps and answers remote commands until ctx is
// cancelled. Nothing is rendered.
func (s *Session) RunHeadless(ctx context.Context) error {
	if s.Bus == nil {
		return errors.New("headless desktop needs a bus")
	}
	s.Preopen()
	_ = s.Apps.TakeCmds()
	logger.Info("headless desktop ready", "channel", s.Channel(), "windows", s.WM.Len())

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-s.inbox:
			s.HandleBus(msg)
			_ = s.Apps.TakeCmds()
		}
	}
}

// Close disconnects the bus and closes the store if the session opened it.
func (s *Session) Close() error {
	s.cancel()

	var errs []error
	if s.Bus != nil {
		if err := s.Bus.Close(); err != nil {
			errs = append(errs, fmt.Errorf("bus: %w", err))
		}
	}
	if s.ownsStore {
		if err := s.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}
	return errors.Join(errs...)
}
