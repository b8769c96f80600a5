package bus

import (
	"context"
	"errors"
	"sync"
)

var errClosed = errors.New("bus: endpoint closed")

// Hub connects endpoints living in one process.
type Hub struct {
	mu        sync.Mutex
	endpoints map[*localEndpoint]struct{}
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{endpoints: make(map[*localEndpoint]struct{})}
}

// Endpoint returns a new transport attached to the hub.
func (h *Hub) Endpoint() Transport {
	ep := &localEndpoint{
		hub:   h,
		queue: make(chan []byte, 64),
		done:  make(chan struct{}),
	}
	h.mu.Lock()
	h.endpoints[ep] = struct{}{}
	h.mu.Unlock()
	return ep
}

type localEndpoint struct {
	hub   *Hub
	queue chan []byte
	done  chan struct{}
	once  sync.Once
}

func (e *localEndpoint) Publish(payload []byte) error {
	select {
	case <-e.done:
		return errClosed
	default:
	}

	e.hub.mu.Lock()
	peers := make([]*localEndpoint, 0, len(e.hub.endpoints))
	for ep := range e.hub.endpoints {
		if ep != e {
			peers = append(peers, ep)
		}
	}
	e.hub.mu.Unlock()

	for _, ep := range peers {
		data := make([]byte, len(payload))
		copy(data, payload)
		select {
		case ep.queue <- data:
		case <-ep.done:
		}
	}
	return nil
}

func (e *localEndpoint) Listen(ctx context.Context, deliver func([]byte)) error {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-e.done:
				return
			case data := <-e.queue:
				deliver(data)
			}
		}
	}()
	return nil
}

func (e *localEndpoint) Close() error {
	e.once.Do(func() {
		e.hub.mu.Lock()
		delete(e.hub.endpoints, e)
		e.hub.mu.Unlock()
		close(e.done)
	})
	return nil
}
