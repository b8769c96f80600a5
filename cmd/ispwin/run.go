package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	tea "charm.land/bubbletea/v2"

	"github.com/ispwin/ispwin/internal/config"
	"github.com/ispwin/ispwin/internal/desktop"
	"github.com/ispwin/ispwin/internal/logging"
	"github.com/ispwin/ispwin/internal/server"
)

// runLocal runs the desktop in the current terminal. The UI owns the screen,
// so logs go to a file for the duration.
func runLocal() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logPath := cfg.Log.File
	if logPath == "" {
		if logPath, err = config.LogPath(); err != nil {
			return fmt.Errorf("could not determine log path: %w", err)
		}
	}
	closeLog, err := logging.Setup(cfg.Log.Level, logPath)
	if err != nil {
		return err
	}
	defer closeLog()

	if debugMode {
		path, _ := config.GetConfigPath()
		logger.Debug("configuration", "path", path, "log", logPath)
	}

	desk, err := desktop.NewSession(desktop.Options{Config: cfg})
	if err != nil {
		return fmt.Errorf("failed to start desktop: %w", err)
	}
	defer func() {
		if err := desk.Close(); err != nil {
			logger.Warn("closing desktop", "err", err)
		}
	}()

	p := tea.NewProgram(
		desktop.NewModel(desk),
		tea.WithFPS(config.NormalFPS),
	)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("program error: %w", err)
	}
	return nil
}

// runHeadless keeps a desktop without a UI on the bus until interrupted.
func runHeadless(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	closeLog, err := logging.Setup(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	desk, err := desktop.NewSession(desktop.Options{Config: cfg})
	if err != nil {
		return fmt.Errorf("failed to start desktop: %w", err)
	}

	runErr := desk.RunHeadless(ctx)
	if err := desk.Close(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// runSSHServer serves desktops over SSH until interrupted.
func runSSHServer(ctx context.Context, host, port, keyPath string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	closeLog, err := logging.Setup(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.StartSSHServer(ctx, &server.SSHServerConfig{
		Host:    host,
		Port:    port,
		KeyPath: keyPath,
		Config:  cfg,
	}); err != nil {
		return fmt.Errorf("SSH server error: %w", err)
	}
	return nil
}
