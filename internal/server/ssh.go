// Package server serves ispwin desktops over SSH.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"path/filepath"

	tea "charm.land/bubbletea/v2"
	"charm.land/wish/v2"
	"charm.land/wish/v2/bubbletea"
	wishlogging "charm.land/wish/v2/logging"
	"github.com/charmbracelet/ssh"

	"github.com/ispwin/ispwin/internal/config"
	"github.com/ispwin/ispwin/internal/desktop"
	"github.com/ispwin/ispwin/internal/logging"
	"github.com/ispwin/ispwin/internal/storage"
)

var logger = logging.New("ssh")

// SSHServerConfig holds configuration for the SSH server.
type SSHServerConfig struct {
	Host    string
	Port    string
	KeyPath string
	Config  *config.UserConfig
}

// HostKeyPath returns the key path to use, defaulting to the data dir.
func (c *SSHServerConfig) HostKeyPath() string {
	if c.KeyPath != "" {
		return c.KeyPath
	}
	return filepath.Join(config.DataDir(), "ssh_host_ed25519")
}

// StartSSHServer serves one desktop per SSH connection until ctx is cancelled.
// All desktops share the store, so they see the same files and theme, and each
// joins the bus as its own endpoint.
func StartSSHServer(ctx context.Context, cfg *SSHServerConfig) error {
	if cfg.Config == nil {
		cfg.Config = config.DefaultConfig()
	}

	store, err := storage.Open(storage.Backend(cfg.Config.Storage.Backend), cfg.Config.StorageDir())
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()

	server, err := wish.NewServer(
		wish.WithAddress(net.JoinHostPort(cfg.Host, cfg.Port)),
		wish.WithHostKeyPath(cfg.HostKeyPath()),
		wish.WithMiddleware(
			bubbletea.Middleware(teaHandler(cfg.Config, store)),
			wishlogging.Middleware(),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create SSH server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting SSH server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("SSH server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down SSH server")
	return server.Shutdown(context.WithoutCancel(ctx))
}

// teaHandler creates a desktop for each SSH session and tears it down when the
// connection ends.
func teaHandler(cfg *config.UserConfig, store storage.Store) bubbletea.Handler {
	return func(sess ssh.Session) (tea.Model, []tea.ProgramOption) {
		pty, _, active := sess.Pty()
		if !active {
			wish.Fatalln(sess, "ispwin needs a terminal; connect with ssh -t")
			return nil, nil
		}

		desk, err := desktop.NewSession(desktop.Options{
			Config: cfg,
			Store:  store,
			Width:  pty.Window.Width,
			Height: pty.Window.Height,
		})
		if err != nil {
			logger.Error("failed to create desktop", "user", sess.User(), "err", err)
			wish.Fatalln(sess, "failed to start desktop:", err)
			return nil, nil
		}

		go func() {
			<-sess.Context().Done()
			if err := desk.Close(); err != nil {
				logger.Warn("closing desktop", "user", sess.User(), "err", err)
			}
		}()

		logger.Info("desktop opened", "user", sess.User(), "remote", sess.RemoteAddr(), "channel", desk.Channel())
		return desktop.NewModel(desk), []tea.ProgramOption{
			tea.WithFPS(config.NormalFPS),
		}
	}
}
