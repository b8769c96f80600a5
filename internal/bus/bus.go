// Package bus broadcasts small JSON messages to every other ispwin instance
// sharing a channel: desktops in other terminals, SSH sessions, or the
// `ispwin send` command. Delivery is best effort and unordered across senders.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ispwin/ispwin/internal/logging"
)

var logger = logging.New("bus")

// Handler receives delivered messages.
type Handler func(Message)

// Transport moves opaque payloads between endpoints of one channel. A
// transport never hands a payload back to the endpoint that published it.
type Transport interface {
	// Publish sends payload to every other endpoint.
	Publish(payload []byte) error
	// Listen starts delivering payloads from other endpoints until ctx is
	// cancelled. It returns once the endpoint is ready to receive.
	Listen(ctx context.Context, deliver func(payload []byte)) error
	Close() error
}

// Bus is one endpoint of a channel.
type Bus struct {
	name      string
	transport Transport

	mu       sync.RWMutex
	handlers []Handler

	cancel context.CancelFunc
}

// New wraps transport as a bus endpoint named after its channel.
func New(name string, transport Transport) *Bus {
	return &Bus{
		name:      name,
		transport: transport,
	}
}

// Name returns the channel name.
func (b *Bus) Name() string {
	return b.name
}

// Start begins delivering messages to subscribers.
func (b *Bus) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	if err := b.transport.Listen(ctx, b.dispatch); err != nil {
		cancel()
		return fmt.Errorf("failed to start bus %s: %w", b.name, err)
	}
	b.cancel = cancel
	return nil
}

// Send publishes msg to every other endpoint.
func (b *Bus) Send(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	if err := b.transport.Publish(data); err != nil {
		return fmt.Errorf("failed to publish on %s: %w", b.name, err)
	}
	logger.Debug("sent", "channel", b.name, "type", msg.Type, "command", msg.Command, "id", msg.ID)
	return nil
}

// Subscribe registers h. Handlers run in registration order for every
// delivered message, on the transport's delivery goroutine.
func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	b.handlers = append(b.handlers, h)
	b.mu.Unlock()
}

// Close stops delivery and releases the transport.
func (b *Bus) Close() error {
	if b.cancel != nil {
		b.cancel()
	}
	return b.transport.Close()
}

// dispatch decodes payload once per handler so that each handler owns its copy.
func (b *Bus) dispatch(payload []byte) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, h := range handlers {
		var msg Message
		if err := json.Unmarshal(payload, &msg); err != nil {
			logger.Debug("dropping undecodable payload", "channel", b.name, "err", err)
			return
		}
		h(msg)
	}
}
