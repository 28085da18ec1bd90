package agent

import (
	"sync"

	"github.com/guildhq/guild/pkg/models"
)

// Mailbox is an agent's private, ordered, unbounded inbound queue. Producers
// (broker delivery goroutines) never block: Push appends and signals; the
// owning agent drains from its own loop. Priority never affects ordering;
// dequeue is strictly FIFO.
type Mailbox struct {
	mu     sync.Mutex
	queue  []models.Message
	closed bool

	// wake signals the owner that the mailbox is non-empty or closed.
	// Buffered so Push never blocks.
	wake chan struct{}
}

// NewMailbox creates an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{wake: make(chan struct{}, 1)}
}

// Push enqueues a message. Messages pushed after Close are dropped.
func (m *Mailbox) Push(msg models.Message) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.queue = append(m.queue, msg)
	m.mu.Unlock()

	m.signal()
}

// Pop removes and returns the oldest message. The second return is false when
// the mailbox is empty.
func (m *Mailbox) Pop() (models.Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return models.Message{}, false
	}
	msg := m.queue[0]
	m.queue = m.queue[1:]
	return msg, true
}

// Len returns the number of queued messages.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Wake returns the channel the owner waits on for new messages.
func (m *Mailbox) Wake() <-chan struct{} {
	return m.wake
}

// Close stops accepting new messages and wakes the owner.
func (m *Mailbox) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.signal()
}

func (m *Mailbox) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}
