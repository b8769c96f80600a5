package config

import "time"

// Window defaults, in cells.
const (
	DefaultWindowWidth  = 52
	DefaultWindowHeight = 16
)

// Desktop layout.
const (
	// TaskbarHeight is the number of rows reserved at the bottom.
	TaskbarHeight = 1
	// IconColumnWidth is the width of the desktop icon column.
	IconColumnWidth = 14
)

// Timing.
const (
	NormalFPS              = 30
	CPUUpdateInterval      = 2 * time.Second
	DoubleClickInterval    = 400 * time.Millisecond
	NotificationDuration   = 3 * time.Second
	DefaultFallbackCleanup = 200 * time.Millisecond
	DefaultSendTimeout     = 3 * time.Second
)

// MaxLogMessages bounds the in-app log viewer.
const MaxLogMessages = 200

// Render layers, bottom to top. Windows use their own Z above ZIndexWindows.
const (
	ZIndexDesktop       = 0
	ZIndexIcons         = 1
	ZIndexWindows       = 10
	ZIndexTaskbar       = 1_000_000
	ZIndexLogs          = 1_000_001
	ZIndexHelp          = 1_000_002
	ZIndexNotifications = 1_000_003
)
