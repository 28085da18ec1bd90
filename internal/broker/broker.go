// Package broker implements the topic-based publish/subscribe router that
// carries messages between Guild agents. Delivery is asynchronous and
// best-effort: publishing never blocks, messages published to the same topic
// are delivered in publish order, and a message published to a topic with no
// subscribers is dropped with a warning.
package broker

import (
	"log"
	"sync"

	"github.com/guildhq/guild/pkg/models"
)

// Handler receives a message delivered on a subscribed topic. Handlers are
// invoked one message at a time per topic, in publish order. A handler should
// return quickly; agents enqueue into their mailbox and process later.
type Handler func(models.Message)

// HistoryAppender records every delivered message in the per-project workflow
// history. Appends happen at delivery time, on the topic's delivery goroutine,
// so the store sees messages for a given topic in delivery order.
type HistoryAppender interface {
	AppendMessage(msg models.Message) error
}

// Broker routes messages from publishers to topic subscribers. Each topic has
// its own unbounded queue and a single delivery goroutine, which preserves
// FIFO delivery per topic without ever blocking a publisher.
type Broker struct {
	// history receives every delivered message, if set.
	history HistoryAppender

	mu     sync.Mutex
	topics map[string]*topicQueue
	closed bool
	wg     sync.WaitGroup
}

// Option configures a Broker.
type Option func(*Broker)

// WithHistory attaches a workflow-history appender to the broker.
func WithHistory(h HistoryAppender) Option {
	return func(b *Broker) { b.history = h }
}

// New creates a Broker.
func New(opts ...Option) *Broker {
	b := &Broker{
		topics: make(map[string]*topicQueue),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a handler for a topic. Multiple subscribers per topic
// are allowed; each delivered message goes to all of them in registration
// order.
func (b *Broker) Subscribe(topic string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		log.Printf("[broker] subscribe on closed broker ignored: topic=%s", topic)
		return
	}

	tq := b.topics[topic]
	if tq == nil {
		tq = newTopicQueue(topic, b.history)
		b.topics[topic] = tq
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			tq.run()
		}()
	}
	tq.addSubscriber(h)
}

// Publish enqueues a message for delivery to every subscriber of the topic
// and returns the number of subscribers it will be delivered to. A return of
// zero means the message was dropped: either nothing is subscribed to the
// topic or the broker is closed. Publish never blocks on delivery.
func (b *Broker) Publish(topic string, msg models.Message) int {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		log.Printf("[broker] publish on closed broker dropped: topic=%s type=%s", topic, msg.Type)
		return 0
	}
	tq := b.topics[topic]
	b.mu.Unlock()

	if tq == nil {
		log.Printf("[broker] no subscribers for topic %s, message dropped: type=%s project=%s", topic, msg.Type, msg.ProjectID)
		return 0
	}

	n := tq.enqueue(msg)
	if n == 0 {
		log.Printf("[broker] no subscribers for topic %s, message dropped: type=%s project=%s", topic, msg.Type, msg.ProjectID)
	}
	return n
}

// SubscriberCount returns how many handlers are subscribed to a topic.
func (b *Broker) SubscriberCount(topic string) int {
	b.mu.Lock()
	tq := b.topics[topic]
	b.mu.Unlock()

	if tq == nil {
		return 0
	}
	return tq.subscriberCount()
}

// Close stops all delivery goroutines after their queues drain. Messages
// published after Close are dropped.
func (b *Broker) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, tq := range b.topics {
		tq.close()
	}
	b.mu.Unlock()

	b.wg.Wait()
}

// topicQueue is the per-topic delivery pipeline: an unbounded FIFO queue
// drained by a single goroutine.
type topicQueue struct {
	topic   string
	history HistoryAppender

	mu          sync.Mutex
	subscribers []Handler
	queue       []models.Message
	closed      bool

	// wake signals the delivery goroutine that the queue is non-empty or
	// the topic is closing. Buffered so enqueue never blocks.
	wake chan struct{}
}

func newTopicQueue(topic string, history HistoryAppender) *topicQueue {
	return &topicQueue{
		topic:   topic,
		history: history,
		wake:    make(chan struct{}, 1),
	}
}

func (tq *topicQueue) addSubscriber(h Handler) {
	tq.mu.Lock()
	defer tq.mu.Unlock()
	tq.subscribers = append(tq.subscribers, h)
}

func (tq *topicQueue) subscriberCount() int {
	tq.mu.Lock()
	defer tq.mu.Unlock()
	return len(tq.subscribers)
}

// enqueue appends the message and returns the subscriber count at publish
// time. Zero subscribers means the message is dropped, not queued.
func (tq *topicQueue) enqueue(msg models.Message) int {
	tq.mu.Lock()
	n := len(tq.subscribers)
	if n == 0 || tq.closed {
		tq.mu.Unlock()
		return 0
	}
	tq.queue = append(tq.queue, msg)
	tq.mu.Unlock()

	tq.signal()
	return n
}

func (tq *topicQueue) signal() {
	select {
	case tq.wake <- struct{}{}:
	default:
	}
}

func (tq *topicQueue) close() {
	tq.mu.Lock()
	tq.closed = true
	tq.mu.Unlock()
	tq.signal()
}

// run drains the queue until the topic is closed and empty. Delivering from a
// single goroutine is what guarantees FIFO per topic.
func (tq *topicQueue) run() {
	for {
		tq.mu.Lock()
		if len(tq.queue) == 0 {
			if tq.closed {
				tq.mu.Unlock()
				return
			}
			tq.mu.Unlock()
			<-tq.wake
			continue
		}
		msg := tq.queue[0]
		tq.queue = tq.queue[1:]
		subs := append([]Handler(nil), tq.subscribers...)
		tq.mu.Unlock()

		if tq.history != nil {
			if err := tq.history.AppendMessage(msg); err != nil {
				log.Printf("[broker] history append failed: topic=%s msg=%s: %v", tq.topic, msg.ID, err)
			}
		}

		for _, h := range subs {
			tq.deliver(h, msg)
		}
	}
}

// deliver invokes one subscriber, recovering a panic so one bad handler
// cannot kill the topic's delivery goroutine.
func (tq *topicQueue) deliver(h Handler, msg models.Message) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[broker] subscriber panic on topic %s: %v", tq.topic, r)
		}
	}()
	h(msg)
}
