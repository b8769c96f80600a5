// Package main implements ispwin, a desktop simulation for the terminal.
// ispwin runs a small windowed desktop with a fake file system, a handful of
// toy apps, and a message bus that lets other processes drive it.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/ispwin/ispwin/internal/config"
	"github.com/ispwin/ispwin/internal/logging"
)

// Version information (set by goreleaser)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
	builtBy = "unknown"
)

var logger = logging.New("ispwin")

// Global flags
var (
	debugMode  bool
	configPath string
	overrides  config.Overrides
)

func main() {
	var headless bool

	rootCmd := &cobra.Command{
		Use:   "ispwin",
		Short: "A desktop in your terminal",
		Long: `ispwin - a desktop in your terminal

Runs a windowed desktop with a taskbar, a fake file system and a few small
apps. Other ispwin processes on the same channel can open apps, write files
and change the theme through the message bus.`,
		Example: `  # Run the desktop
  ispwin

  # Start with only the terminal open
  ispwin --preopen terminal

  # Run without a UI, answering bus commands
  ispwin --headless

  # Open the calculator on every desktop on the channel
  ispwin send openApp calculator

  # Serve desktops over SSH
  ispwin ssh --port 2222`,
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			if headless {
				return runHeadless(cmd.Context())
			}
			return runLocal()
		},
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.BoolVar(&debugMode, "debug", false, "Enable debug logging")
	pf.StringVar(&configPath, "config", "", "Path to the config file")
	pf.StringVar(&overrides.StorageBackend, "storage", "", "Storage backend (file, sqlite)")
	pf.StringVar(&overrides.StorageDir, "storage-dir", "", "Directory for the store")
	pf.StringVar(&overrides.Channel, "channel", "", "Bus channel name")
	pf.StringVar(&overrides.Transport, "transport", "", "Bus transport (auto, socket, storage)")
	pf.StringVar(&overrides.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.StringVar(&overrides.LogFile, "log-file", "", "Write logs to this file")

	rootCmd.Flags().BoolVar(&headless, "headless", false, "Run without a UI and answer bus commands")
	rootCmd.Flags().StringSliceVar(&overrides.Preopen, "preopen", nil, "Apps to open at startup")
	rootCmd.Flags().BoolVar(&overrides.NoSysinfo, "no-sysinfo", false, "Hide the CPU and memory readout")

	var sshPort, sshHost, sshKeyPath string

	sshCmd := &cobra.Command{
		Use:   "ssh",
		Short: "Serve desktops over SSH",
		Long: `Serve ispwin desktops over SSH

Every connection gets its own desktop. All desktops share the store, so
files written in one show up in the others. The server will generate a host
key automatically if not specified.`,
		Example: `  # Start SSH server on default port
  ispwin ssh

  # Listen on all interfaces
  ispwin ssh --host 0.0.0.0 --port 2222

  # Specify custom host key
  ispwin ssh --key-path /path/to/host_key`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSSHServer(cmd.Context(), sshHost, sshPort, sshKeyPath)
		},
	}

	sshCmd.Flags().StringVar(&sshPort, "port", "2222", "SSH server port")
	sshCmd.Flags().StringVar(&sshHost, "host", "localhost", "SSH server host")
	sshCmd.Flags().StringVar(&sshKeyPath, "key-path", "", "Path to SSH host key (auto-generated if not specified)")

	var (
		sendExtras  []string
		sendTimeout time.Duration
		sendJSON    bool
	)

	sendCmd := &cobra.Command{
		Use:   "send <command> [param]",
		Short: "Send a command to running desktops",
		Long: `Send a remote command on the bus and print the first response

Commands: openApp, setTheme, createFile, openFile, closeWindow.
Extra fields are given as key=value; values that parse as JSON keep their
type, anything else is sent as a string. Output is JSON when stdout is not
a terminal.`,
		Example: `  # Open the editor
  ispwin send openApp editor

  # Write a file
  ispwin send createFile --extra path=/notes.txt --extra content=hello

  # Switch to the light theme
  ispwin send setTheme light

  # Close the most recent window
  ispwin send closeWindow`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			param := ""
			if len(args) > 1 {
				param = args[1]
			}
			extra, err := parseExtras(sendExtras)
			if err != nil {
				return err
			}
			return runSend(cmd.Context(), sendRequest{
				Command: args[0],
				Param:   param,
				Extra:   extra,
				Timeout: sendTimeout,
				JSON:    sendJSON,
			})
		},
	}

	sendCmd.Flags().StringArrayVarP(&sendExtras, "extra", "e", nil, "Extra field as key=value (repeatable)")
	sendCmd.Flags().DurationVar(&sendTimeout, "timeout", config.DefaultSendTimeout, "How long to wait for a response")
	sendCmd.Flags().BoolVar(&sendJSON, "json", false, "Print the response as JSON")

	rootCmd.AddCommand(sshCmd, sendCmd, newFSCmd(), newConfigCmd(), newKeybindsCmd())

	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(fmt.Sprintf("%s\nCommit: %s\nBuilt: %s\nBy: %s", version, commit, date, builtBy)),
	); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file, falling back to defaults when it cannot
// be read, and applies command-line overrides.
func loadConfig() (*config.UserConfig, error) {
	var (
		cfg *config.UserConfig
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadUserConfigFrom(configPath)
	} else {
		cfg, err = config.LoadUserConfig()
	}
	if err != nil {
		logger.Warn("failed to load config, using defaults", "err", err)
		cfg = config.DefaultConfig()
	}

	config.ApplyOverrides(cfg, overrides)
	if debugMode {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
