// Package storage implements the synchronous key-value store that persists the
// desktop's state (the file-system blob, the theme flag and, for the fallback
// bus, the broadcast slot). It plays the role a browser's local storage plays
// for a web page: every process on the machine sees the same keys, writes are
// immediate and nothing coordinates concurrent writers.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/ispwin/ispwin/internal/logging"
)

var logger = logging.New("storage")

// ErrWatchUnsupported is returned by backends that cannot signal changes.
var ErrWatchUnsupported = errors.New("storage: backend does not support change notifications")

// Store is a string-to-string key-value store. Implementations are safe for
// use from multiple goroutines of one process; across processes the last
// writer wins.
type Store interface {
	// Get returns the value stored under key. ok is false when the key is
	// absent; err is reserved for backend failures.
	Get(key string) (value string, ok bool, err error)
	// Set replaces the value stored under key.
	Set(key, value string) error
	// Remove deletes key. Removing an absent key is not an error.
	Remove(key string) error
	Close() error
}

// Change describes a write or removal observed by a Watcher.
type Change struct {
	Key     string
	Value   string
	Removed bool
}

// Watcher is implemented by stores that can report changes made by any
// process sharing the store, the equivalent of the browser's storage event.
type Watcher interface {
	// Watch calls fn for every change until ctx is cancelled. It returns once
	// the watch is established.
	Watch(ctx context.Context, fn func(Change)) error
}

// Backend names a store implementation.
type Backend string

const (
	// BackendFile keeps one file per key in a directory.
	BackendFile Backend = "file"
	// BackendSQLite keeps all keys in a single SQLite database.
	BackendSQLite Backend = "sqlite"
)

// Open opens the store of the given backend rooted at dir.
func Open(backend Backend, dir string) (Store, error) {
	switch backend {
	case BackendFile, "":
		return NewFileStore(filepath.Join(dir, "store"))
	case BackendSQLite:
		return OpenSQLite(filepath.Join(dir, "ispwin.db"))
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}
