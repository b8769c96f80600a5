package bus

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"time"

	"github.com/ispwin/ispwin/internal/storage"
)

// ErrNoTransport is returned when no transport can serve the requested mode.
var ErrNoTransport = errors.New("no bus transport available")

// DefaultChannel is the channel every ispwin instance joins by default.
const DefaultChannel = "ispwin-channel"

// Mode selects a transport.
type Mode string

const (
	ModeAuto    Mode = "auto"
	ModeSocket  Mode = "socket"
	ModeStorage Mode = "storage"
)

// Options configure Open.
type Options struct {
	Channel   string
	Mode      Mode
	SocketDir string
	Store     storage.Store
	Cleanup   time.Duration
}

// Open returns an unstarted bus for opts. In auto mode the socket transport is
// preferred and the storage fallback used when sockets are unavailable.
func Open(opts Options) (*Bus, error) {
	if opts.Channel == "" {
		opts.Channel = DefaultChannel
	}
	if opts.Mode == "" {
		opts.Mode = ModeAuto
	}

	switch opts.Mode {
	case ModeSocket:
		t, err := openSocket(opts)
		if err != nil {
			return nil, err
		}
		return New(opts.Channel, t), nil

	case ModeStorage:
		t, err := openStorage(opts)
		if err != nil {
			return nil, err
		}
		return New(opts.Channel, t), nil

	case ModeAuto:
		t, err := openSocket(opts)
		if err == nil {
			return New(opts.Channel, t), nil
		}
		logger.Debug("socket transport unavailable, trying storage", "err", err)

		st, stErr := openStorage(opts)
		if stErr != nil {
			return nil, fmt.Errorf("%w: socket: %v; storage: %v", ErrNoTransport, err, stErr)
		}
		logger.Info("using storage fallback transport", "channel", opts.Channel)
		return New(opts.Channel, st), nil
	}

	return nil, fmt.Errorf("unknown bus mode %q", opts.Mode)
}

func openSocket(opts Options) (Transport, error) {
	if opts.SocketDir == "" {
		return nil, errors.New("no socket directory configured")
	}
	return NewSocketTransport(channelDir(opts.SocketDir, opts.Channel))
}

func openStorage(opts Options) (Transport, error) {
	if opts.Store == nil {
		return nil, errors.New("no store configured")
	}
	return NewStorageTransport(opts.Store, opts.Channel, opts.Cleanup)
}

// channelDir returns the directory holding the sockets of one channel.
func channelDir(base, channel string) string {
	return filepath.Join(base, url.PathEscape(channel))
}
