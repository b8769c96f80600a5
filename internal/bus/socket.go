package bus

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/google/uuid"

	"github.com/ispwin/ispwin/internal/pool"
)

const (
	socketExt     = ".sock"
	maxDatagram   = pool.ByteSliceSize
	socketDirPerm = 0o700
)

// SocketTransport is the native transport: every endpoint binds a unix
// datagram socket in a shared directory and publishes by writing to all the
// other sockets found there.
type SocketTransport struct {
	dir  string
	path string
	conn *net.UnixConn

	once sync.Once
}

// NewSocketTransport binds a fresh endpoint in dir.
func NewSocketTransport(dir string) (*SocketTransport, error) {
	if err := os.MkdirAll(dir, socketDirPerm); err != nil {
		return nil, fmt.Errorf("failed to create socket directory: %w", err)
	}

	path := filepath.Join(dir, uuid.New().String()+socketExt)
	addr := &net.UnixAddr{Name: path, Net: "unixgram"}
	conn, err := net.ListenUnixgram("unixgram", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to bind %s: %w", path, err)
	}

	return &SocketTransport{
		dir:  dir,
		path: path,
		conn: conn,
	}, nil
}

// Publish implements Transport.
func (t *SocketTransport) Publish(payload []byte) error {
	if len(payload) > maxDatagram {
		return fmt.Errorf("message of %d bytes exceeds %d byte limit", len(payload), maxDatagram)
	}

	peers, err := filepath.Glob(filepath.Join(t.dir, "*"+socketExt))
	if err != nil {
		return fmt.Errorf("failed to list peers: %w", err)
	}

	for _, peer := range peers {
		if peer == t.path {
			continue
		}
		addr := &net.UnixAddr{Name: peer, Net: "unixgram"}
		if _, err := t.conn.WriteToUnix(payload, addr); err != nil {
			if isStale(err) {
				logger.Debug("removing stale peer", "socket", filepath.Base(peer))
				_ = os.Remove(peer)
				continue
			}
			logger.Warn("failed to deliver to peer", "socket", filepath.Base(peer), "err", err)
		}
	}
	return nil
}

// Listen implements Transport.
func (t *SocketTransport) Listen(ctx context.Context, deliver func([]byte)) error {
	go func() {
		<-ctx.Done()
		_ = t.Close()
	}()

	go func() {
		bufp := pool.GetByteSlice()
		defer pool.PutByteSlice(bufp)
		buf := (*bufp)[:maxDatagram]
		for {
			n, _, err := t.conn.ReadFromUnix(buf)
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					return
				}
				logger.Debug("socket read failed", "err", err)
				continue
			}
			data := make([]byte, n)
			copy(data, buf[:n])
			deliver(data)
		}
	}()
	return nil
}

// Close implements Transport. It unbinds the socket so peers stop seeing it.
func (t *SocketTransport) Close() error {
	var err error
	t.once.Do(func() {
		err = t.conn.Close()
		if rmErr := os.Remove(t.path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) && err == nil {
			err = rmErr
		}
	})
	return err
}

// Path returns the bound socket path.
func (t *SocketTransport) Path() string {
	return t.path
}

// isStale reports whether a write failed because nobody is bound to the peer
// socket any more.
func isStale(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ENOENT) ||
		strings.Contains(err.Error(), "connection refused")
}
