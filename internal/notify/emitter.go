package notify

import (
	"log"
	"sync/atomic"
	"time"
)

// Emitter is a channel-backed Notifier for consumers that stream
// notifications (the CLI run loop). The channel is bounded; if a consumer
// falls behind, the emitter retries briefly and then drops, counting drops
// instead of blocking the orchestrator.
type Emitter struct {
	notes        chan Notification
	droppedCount atomic.Uint64
}

// NewEmitter creates an Emitter with the given buffer size.
func NewEmitter(bufferSize int) *Emitter {
	return &Emitter{
		notes: make(chan Notification, bufferSize),
	}
}

// NotifyUser implements Notifier. If the channel is full it tries with a
// short timeout before dropping the notification.
func (e *Emitter) NotifyUser(projectID, message string) {
	n := Notification{ProjectID: projectID, Message: message, Timestamp: time.Now()}

	select {
	case e.notes <- n:
		return
	default:
	}

	select {
	case e.notes <- n:
	case <-time.After(100 * time.Millisecond):
		count := e.droppedCount.Add(1)
		if count%10 == 1 { // Log every 10th drop to avoid spam
			log.Printf("[notify] notification channel full, dropped (total dropped: %d): project=%s", count, projectID)
		}
	}
}

// Notifications returns the read-only notification stream.
func (e *Emitter) Notifications() <-chan Notification {
	return e.notes
}

// DroppedCount returns the total number of dropped notifications.
func (e *Emitter) DroppedCount() uint64 {
	return e.droppedCount.Load()
}

// Close closes the notification channel. Call only after the orchestrator has
// stopped emitting.
func (e *Emitter) Close() {
	close(e.notes)
}
