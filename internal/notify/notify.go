// Package notify delivers one-way user notifications emitted by the
// orchestrator: progress updates, clarification requests, completion
// summaries, and escalations. Notification delivery is fire-and-forget.
package notify

import (
	"sync"
	"time"

	"github.com/fatih/color"
)

// Notification is one user-facing message about a project.
type Notification struct {
	// ProjectID is the project the notification concerns.
	ProjectID string
	// Message is the notification text.
	Message string
	// Timestamp is when the notification was emitted.
	Timestamp time.Time
}

// Notifier delivers notifications to the user channel.
type Notifier interface {
	NotifyUser(projectID, message string)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(projectID, message string)

// NotifyUser implements Notifier.
func (f NotifierFunc) NotifyUser(projectID, message string) {
	f(projectID, message)
}

// Console writes notifications to stdout with a colored project prefix.
type Console struct {
	mu sync.Mutex
}

// NewConsole creates a console notifier.
func NewConsole() *Console {
	return &Console{}
}

// NotifyUser prints the notification.
func (c *Console) NotifyUser(projectID, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prefix := color.New(color.FgCyan, color.Bold).Sprintf("[%s]", shortID(projectID))
	color.New(color.FgWhite).Printf("%s %s\n", prefix, message)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Multi fans a notification out to several notifiers.
type Multi []Notifier

// NotifyUser implements Notifier.
func (m Multi) NotifyUser(projectID, message string) {
	for _, n := range m {
		n.NotifyUser(projectID, message)
	}
}

// Recorder captures notifications for inspection. Used in tests and by the
// CLI to replay missed updates.
type Recorder struct {
	mu    sync.Mutex
	notes []Notification
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// NotifyUser records the notification.
func (r *Recorder) NotifyUser(projectID, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, Notification{
		ProjectID: projectID,
		Message:   message,
		Timestamp: time.Now(),
	})
}

// All returns a copy of recorded notifications.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.notes...)
}

// ForProject returns recorded notifications for one project.
func (r *Recorder) ForProject(projectID string) []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Notification
	for _, n := range r.notes {
		if n.ProjectID == projectID {
			out = append(out, n)
		}
	}
	return out
}
