package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ispwin/ispwin/internal/storage"
)

// DefaultCleanup is how long a fallback message stays under its key.
const DefaultCleanup = 200 * time.Millisecond

// envelope wraps a fallback message so listeners can skip their own writes
// and writes they have already seen.
type envelope struct {
	Origin  string          `json:"origin"`
	Nonce   string          `json:"nonce"`
	Message json.RawMessage `json:"message"`
}

// StorageTransport is the fallback transport: a message is written under the
// channel key of a shared store and removed shortly after. Peers learn about
// it through the store's change notifications.
type StorageTransport struct {
	store   storage.Store
	watcher storage.Watcher
	key     string
	origin  string
	cleanup time.Duration

	mu     sync.Mutex
	timers []*time.Timer
	last   string
}

// NewStorageTransport returns a fallback endpoint on key. The store must
// support change notifications.
func NewStorageTransport(store storage.Store, key string, cleanup time.Duration) (*StorageTransport, error) {
	w, ok := store.(storage.Watcher)
	if !ok {
		return nil, storage.ErrWatchUnsupported
	}
	if cleanup <= 0 {
		cleanup = DefaultCleanup
	}
	return &StorageTransport{
		store:   store,
		watcher: w,
		key:     key,
		origin:  uuid.New().String(),
		cleanup: cleanup,
	}, nil
}

// Publish implements Transport.
func (t *StorageTransport) Publish(payload []byte) error {
	data, err := json.Marshal(envelope{
		Origin:  t.origin,
		Nonce:   uuid.New().String(),
		Message: payload,
	})
	if err != nil {
		return fmt.Errorf("failed to encode envelope: %w", err)
	}

	if err := t.store.Set(t.key, string(data)); err != nil {
		return err
	}

	timer := time.AfterFunc(t.cleanup, func() {
		if err := t.store.Remove(t.key); err != nil {
			logger.Debug("fallback cleanup failed", "key", t.key, "err", err)
		}
	})
	t.mu.Lock()
	t.timers = append(t.timers, timer)
	t.mu.Unlock()
	return nil
}

// Listen implements Transport.
func (t *StorageTransport) Listen(ctx context.Context, deliver func([]byte)) error {
	return t.watcher.Watch(ctx, func(c storage.Change) {
		if c.Key != t.key || c.Removed || c.Value == "" {
			return
		}
		var env envelope
		if err := json.Unmarshal([]byte(c.Value), &env); err != nil {
			logger.Debug("ignoring malformed fallback value", "key", t.key, "err", err)
			return
		}
		if env.Origin == t.origin || !t.fresh(env.Nonce) {
			return
		}
		deliver(env.Message)
	})
}

// fresh reports whether nonce differs from the last delivered one. A single
// write can surface as several change events.
func (t *StorageTransport) fresh(nonce string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if nonce != "" && nonce == t.last {
		return false
	}
	t.last = nonce
	return true
}

// Close implements Transport. Pending cleanups run immediately.
func (t *StorageTransport) Close() error {
	t.mu.Lock()
	timers := t.timers
	t.timers = nil
	t.mu.Unlock()

	pending := false
	for _, timer := range timers {
		if timer.Stop() {
			pending = true
		}
	}
	if pending {
		return t.store.Remove(t.key)
	}
	return nil
}
