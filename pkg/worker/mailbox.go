package worker

import (
	"sync"

	"github.com/tinyland-inc/gamelink/pkg/bus"
)

// mailbox is an unbounded FIFO so publishing never blocks on a slow worker.
type mailbox struct {
	mu     sync.Mutex
	queue  []bus.Event
	notify chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{notify: make(chan struct{}, 1)}
}

func (m *mailbox) push(e bus.Event) {
	m.mu.Lock()
	m.queue = append(m.queue, e)
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
}

func (m *mailbox) drain() []bus.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := m.queue
	m.queue = nil
	return q
}

func (m *mailbox) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}
