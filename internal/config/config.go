// Package config loads the user configuration and defines desktop constants.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/pelletier/go-toml/v2"
)

const appName = "ispwin"

// UserConfig is the TOML configuration file.
type UserConfig struct {
	Desktop     DesktopConfig     `toml:"desktop"`
	Theme       ThemeConfig       `toml:"theme"`
	Storage     StorageConfig     `toml:"storage"`
	Bus         BusConfig         `toml:"bus"`
	Log         LogConfig         `toml:"log"`
	Keybindings KeybindingsConfig `toml:"keybindings"`
}

// DesktopConfig controls the desktop at startup and where windows open.
type DesktopConfig struct {
	Preopen      []string `toml:"preopen"`
	WindowWidth  int      `toml:"window_width"`
	WindowHeight int      `toml:"window_height"`
	WindowX      int      `toml:"window_x"`
	WindowY      int      `toml:"window_y"`
	Cascade      int      `toml:"cascade"`
	ShowSysinfo  bool     `toml:"show_sysinfo"`
}

// ThemeConfig names the bubbletint palettes used for each mode.
type ThemeConfig struct {
	Dark  string `toml:"dark"`
	Light string `toml:"light"`
}

// StorageConfig selects the key-value store.
type StorageConfig struct {
	Backend string `toml:"backend"`
	Dir     string `toml:"dir"`
}

// BusConfig selects the event bus transport.
type BusConfig struct {
	Channel         string `toml:"channel"`
	Transport       string `toml:"transport"`
	FallbackCleanup string `toml:"fallback_cleanup"`
}

// LogConfig sets log verbosity and destination.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// KeybindingsConfig maps desktop actions to the keys pressed after the prefix.
type KeybindingsConfig struct {
	Prefix  string              `toml:"prefix"`
	Desktop map[string][]string `toml:"desktop"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *UserConfig {
	return &UserConfig{
		Desktop: DesktopConfig{
			Preopen:      []string{"explorer", "calculator"},
			WindowWidth:  DefaultWindowWidth,
			WindowHeight: DefaultWindowHeight,
			WindowX:      4,
			WindowY:      2,
			Cascade:      2,
			ShowSysinfo:  true,
		},
		Theme: ThemeConfig{
			Dark:  "tokyo_night",
			Light: "catppuccin_latte",
		},
		Storage: StorageConfig{
			Backend: "file",
		},
		Bus: BusConfig{
			Channel:         "ispwin-channel",
			Transport:       "auto",
			FallbackCleanup: "200ms",
		},
		Log: LogConfig{
			Level: "info",
		},
		Keybindings: KeybindingsConfig{
			Prefix:  "ctrl+b",
			Desktop: defaultDesktopKeys(),
		},
	}
}

// Validate reports the first invalid setting.
func (c *UserConfig) Validate() error {
	switch c.Storage.Backend {
	case "file", "sqlite":
	default:
		return fmt.Errorf("storage.backend: unknown backend %q", c.Storage.Backend)
	}
	switch c.Bus.Transport {
	case "auto", "socket", "storage":
	default:
		return fmt.Errorf("bus.transport: unknown transport %q", c.Bus.Transport)
	}
	if _, err := c.CleanupDelay(); err != nil {
		return fmt.Errorf("bus.fallback_cleanup: %w", err)
	}
	if c.Desktop.WindowWidth <= 0 || c.Desktop.WindowHeight <= 0 {
		return errors.New("desktop: window size must be positive")
	}
	return nil
}

// CleanupDelay parses the fallback bus cleanup delay.
func (c *UserConfig) CleanupDelay() (time.Duration, error) {
	if c.Bus.FallbackCleanup == "" {
		return DefaultFallbackCleanup, nil
	}
	return time.ParseDuration(c.Bus.FallbackCleanup)
}

// StorageDir returns the configured store directory or the XDG data dir.
func (c *UserConfig) StorageDir() string {
	if c.Storage.Dir != "" {
		return c.Storage.Dir
	}
	return DataDir()
}

// GetConfigPath returns the path of config.toml, creating its directory.
func GetConfigPath() (string, error) {
	return xdg.ConfigFile(filepath.Join(appName, "config.toml"))
}

// DataDir is where the persistent store lives.
func DataDir() string {
	return filepath.Join(xdg.DataHome, appName)
}

// SocketDir is where bus endpoints bind their sockets.
func SocketDir() string {
	return filepath.Join(xdg.RuntimeDir, appName)
}

// LogPath returns the default log file, creating its directory.
func LogPath() (string, error) {
	return xdg.StateFile(filepath.Join(appName, appName+".log"))
}

// LoadUserConfig reads the user config, writing the defaults on first run.
func LoadUserConfig() (*UserConfig, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, fmt.Errorf("could not determine config path: %w", err)
	}
	return LoadUserConfigFrom(path)
}

// LoadUserConfigFrom reads the config at path. Settings missing from the file
// keep their defaults.
func LoadUserConfigFrom(path string) (*UserConfig, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg := DefaultConfig()
		if err := WriteConfig(path, cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if cfg.Keybindings.Desktop == nil {
		cfg.Keybindings.Desktop = make(map[string][]string)
	}
	for action, keys := range defaultDesktopKeys() {
		if _, ok := cfg.Keybindings.Desktop[action]; !ok {
			cfg.Keybindings.Desktop[action] = keys
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// WriteConfig writes cfg to path with a short header.
func WriteConfig(path string, cfg *UserConfig) error {
	var sb strings.Builder
	sb.WriteString("# ispwin configuration\n")
	sb.WriteString("# Keys under [keybindings.desktop] are pressed after the prefix key.\n")
	sb.WriteString("#\n")
	sb.WriteString("# Configuration location: " + path + "\n\n")

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	sb.Write(data)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Overrides carries command-line flags that take precedence over the file.
type Overrides struct {
	StorageBackend string
	StorageDir     string
	Channel        string
	Transport      string
	LogLevel       string
	LogFile        string
	Preopen        []string
	NoSysinfo      bool
}

// ApplyOverrides copies every non-zero override into cfg.
func ApplyOverrides(cfg *UserConfig, o Overrides) {
	if o.StorageBackend != "" {
		cfg.Storage.Backend = o.StorageBackend
	}
	if o.StorageDir != "" {
		cfg.Storage.Dir = o.StorageDir
	}
	if o.Channel != "" {
		cfg.Bus.Channel = o.Channel
	}
	if o.Transport != "" {
		cfg.Bus.Transport = o.Transport
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}
	if o.LogFile != "" {
		cfg.Log.File = o.LogFile
	}
	if o.Preopen != nil {
		cfg.Desktop.Preopen = o.Preopen
	}
	if o.NoSysinfo {
		cfg.Desktop.ShowSysinfo = false
	}
}
