package web

import (
	"fmt"
	"log/slog"
	"sync"
)

const (
	maxClients         = 100
	clientQueueSize    = 1000
	priorityBufferSize = 100
)

// Broadcaster fans masked log lines out to websocket clients. Error-level
// lines are kept in a ring buffer and replayed to newly connected
// clients so failures are visible even after the fact.
type Broadcaster struct {
	mu       sync.Mutex
	clients  map[*client]struct{}
	priority []string
}

type client struct {
	ch chan string
}

// NewBroadcaster returns an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{clients: make(map[*client]struct{})}
}

// Publish delivers one log line to every connected client. It satisfies
// logging.BroadcastFunc. Slow clients lose ordinary lines; error lines
// evict the oldest queued entry instead, and a client that cannot even
// accept those is dropped.
func (b *Broadcaster) Publish(level slog.Level, line string) {
	isPriority := level >= slog.LevelError

	b.mu.Lock()
	defer b.mu.Unlock()

	if isPriority {
		b.priority = append(b.priority, line)
		if len(b.priority) > priorityBufferSize {
			b.priority = b.priority[len(b.priority)-priorityBufferSize:]
		}
	}

	for c := range b.clients {
		select {
		case c.ch <- line:
			continue
		default:
		}
		if !isPriority {
			continue
		}
		// Make room for the priority line at the cost of the oldest entry.
		select {
		case <-c.ch:
		default:
		}
		select {
		case c.ch <- line:
		default:
			delete(b.clients, c)
			close(c.ch)
		}
	}
}

// register attaches a new client and replays buffered priority lines.
func (b *Broadcaster) register() (*client, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.clients) >= maxClients {
		return nil, fmt.Errorf("maximum number of websocket clients reached (%d)", maxClients)
	}

	c := &client{ch: make(chan string, clientQueueSize)}
	for _, line := range b.priority {
		select {
		case c.ch <- line:
		default:
		}
	}
	b.clients[c] = struct{}{}
	return c, nil
}

// unregister detaches a client. Safe to call for already-dropped clients.
func (b *Broadcaster) unregister(c *client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		close(c.ch)
	}
}

// ClientCount reports the number of attached clients.
func (b *Broadcaster) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}
