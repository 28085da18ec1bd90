package broker

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/guildhq/guild/pkg/models"
)

// collector records delivered messages in order.
type collector struct {
	mu   sync.Mutex
	msgs []models.Message
	done chan struct{}
	want int
}

func newCollector(want int) *collector {
	return &collector{done: make(chan struct{}), want: want}
}

func (c *collector) handler(msg models.Message) {
	c.mu.Lock()
	c.msgs = append(c.msgs, msg)
	if len(c.msgs) == c.want {
		close(c.done)
	}
	c.mu.Unlock()
}

func (c *collector) wait(t *testing.T) []models.Message {
	t.Helper()
	select {
	case <-c.done:
	case <-time.After(2 * time.Second):
		c.mu.Lock()
		got := len(c.msgs)
		c.mu.Unlock()
		t.Fatalf("timed out waiting for %d messages, got %d", c.want, got)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Message(nil), c.msgs...)
}

func TestPublishDeliversInFIFOOrder(t *testing.T) {
	b := New()
	defer b.Close()

	const n = 200
	c := newCollector(n)
	b.Subscribe(models.AgentBA.Topic(), c.handler)

	for i := 0; i < n; i++ {
		msg := models.NewMessage(models.AgentOrchestrator, models.AgentBA,
			models.MessageSpecification, fmt.Sprintf("msg-%d", i), "proj-1", nil)
		if got := b.Publish(models.AgentBA.Topic(), msg); got != 1 {
			t.Fatalf("Publish returned %d, want 1", got)
		}
	}

	msgs := c.wait(t)
	for i, m := range msgs {
		if want := fmt.Sprintf("msg-%d", i); m.Content != want {
			t.Fatalf("message %d out of order: got %q, want %q", i, m.Content, want)
		}
	}
}

func TestPublishNoSubscriberReturnsZero(t *testing.T) {
	b := New()
	defer b.Close()

	msg := models.NewMessage(models.AgentOrchestrator, models.AgentBA,
		models.MessageSpecification, "hello", "proj-1", nil)

	if got := b.Publish("agents/nobody", msg); got != 0 {
		t.Errorf("Publish to unknown topic = %d, want 0", got)
	}
}

func TestPublishBroadcastsToAllSubscribers(t *testing.T) {
	b := New()
	defer b.Close()

	c1 := newCollector(1)
	c2 := newCollector(1)
	b.Subscribe("agents/ba", c1.handler)
	b.Subscribe("agents/ba", c2.handler)

	msg := models.NewMessage(models.AgentOrchestrator, models.AgentBA,
		models.MessageSpecification, "fan out", "proj-1", nil)
	if got := b.Publish("agents/ba", msg); got != 2 {
		t.Errorf("Publish = %d, want 2", got)
	}

	if got := c1.wait(t); got[0].Content != "fan out" {
		t.Errorf("subscriber 1 got %q", got[0].Content)
	}
	if got := c2.wait(t); got[0].Content != "fan out" {
		t.Errorf("subscriber 2 got %q", got[0].Content)
	}
}

func TestConcurrentPublishersAllDelivered(t *testing.T) {
	b := New()
	defer b.Close()

	const publishers = 8
	const perPublisher = 50
	c := newCollector(publishers * perPublisher)
	b.Subscribe("agents/developer", c.handler)

	var wg sync.WaitGroup
	for p := 0; p < publishers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perPublisher; i++ {
				msg := models.NewMessage(models.AgentBA, models.AgentDeveloper,
					models.MessageArtifact, fmt.Sprintf("p%d-%d", p, i), "proj-1", nil)
				b.Publish("agents/developer", msg)
			}
		}(p)
	}
	wg.Wait()

	msgs := c.wait(t)

	// Per-publisher order must hold even though global order is unspecified.
	seen := make(map[int]int)
	for _, m := range msgs {
		var p, i int
		if _, err := fmt.Sscanf(m.Content, "p%d-%d", &p, &i); err != nil {
			t.Fatalf("unexpected content %q", m.Content)
		}
		if i != seen[p] {
			t.Fatalf("publisher %d out of order: got seq %d, want %d", p, i, seen[p])
		}
		seen[p]++
	}
}

func TestSubscriberCount(t *testing.T) {
	b := New()
	defer b.Close()

	if got := b.SubscriberCount("agents/tester"); got != 0 {
		t.Errorf("count = %d, want 0", got)
	}
	b.Subscribe("agents/tester", func(models.Message) {})
	b.Subscribe("agents/tester", func(models.Message) {})
	if got := b.SubscriberCount("agents/tester"); got != 2 {
		t.Errorf("count = %d, want 2", got)
	}
}

func TestSubscriberPanicDoesNotStopDelivery(t *testing.T) {
	b := New()
	defer b.Close()

	c := newCollector(2)
	b.Subscribe("agents/ba", func(models.Message) { panic("bad handler") })
	b.Subscribe("agents/ba", c.handler)

	for i := 0; i < 2; i++ {
		msg := models.NewMessage(models.AgentOrchestrator, models.AgentBA,
			models.MessageSpecification, fmt.Sprintf("m%d", i), "proj-1", nil)
		b.Publish("agents/ba", msg)
	}

	msgs := c.wait(t)
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
}

type recordingHistory struct {
	mu   sync.Mutex
	msgs []models.Message
}

func (h *recordingHistory) AppendMessage(msg models.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgs = append(h.msgs, msg)
	return nil
}

func (h *recordingHistory) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.msgs)
}

func TestHistoryAppendedAtDelivery(t *testing.T) {
	hist := &recordingHistory{}
	b := New(WithHistory(hist))

	c := newCollector(3)
	b.Subscribe("agents/ba", c.handler)

	for i := 0; i < 3; i++ {
		msg := models.NewMessage(models.AgentOrchestrator, models.AgentBA,
			models.MessageSpecification, fmt.Sprintf("m%d", i), "proj-1", nil)
		b.Publish("agents/ba", msg)
	}
	c.wait(t)
	b.Close()

	if got := hist.count(); got != 3 {
		t.Errorf("history has %d messages, want 3", got)
	}

	// A dropped message never reaches the history.
	b2 := New(WithHistory(hist))
	b2.Publish("agents/nobody", models.NewMessage(models.AgentBA, models.AgentTester,
		models.MessageArtifact, "dropped", "proj-1", nil))
	b2.Close()
	if got := hist.count(); got != 3 {
		t.Errorf("dropped message was appended to history: count=%d", got)
	}
}

func TestCloseDrainsQueue(t *testing.T) {
	b := New()

	c := newCollector(50)
	b.Subscribe("agents/ba", c.handler)
	for i := 0; i < 50; i++ {
		b.Publish("agents/ba", models.NewMessage(models.AgentOrchestrator, models.AgentBA,
			models.MessageSpecification, fmt.Sprintf("m%d", i), "proj-1", nil))
	}
	b.Close()

	if got := len(c.wait(t)); got != 50 {
		t.Errorf("delivered %d messages before close, want 50", got)
	}

	// Publishing after close is dropped.
	if got := b.Publish("agents/ba", models.NewMessage(models.AgentOrchestrator, models.AgentBA,
		models.MessageSpecification, "late", "proj-1", nil)); got != 0 {
		t.Errorf("publish after close = %d, want 0", got)
	}
}
