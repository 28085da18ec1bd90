// Package agent implements the Guild agent runtime and the four worker
// roles: Business Analyst, Architect, Developer, and Tester. Every agent
// owns a mailbox and a sequential processing loop; different agents run
// concurrently, but a single agent never processes two messages at once.
package agent

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/guildhq/guild/internal/broker"
	"github.com/guildhq/guild/pkg/models"
)

// HandlerFunc processes one message of a given type. The only permitted side
// effects are publishing further messages, consulting the LLM collaborator,
// and saving artifacts. A returned error is converted into a Message(ERROR)
// back to the sender; it never stops the agent's loop.
type HandlerFunc func(ctx context.Context, msg models.Message) error

// Agent is the shared runtime embedded by every role. It subscribes to the
// role's broker topic, queues inbound messages in a mailbox, and drains them
// one at a time: on each wake-up the loop processes until the mailbox is
// empty before waiting again, so delivery order per agent is processing
// order.
type Agent struct {
	id        string
	agentType models.AgentType
	bus       *broker.Broker
	mailbox   *Mailbox
	handlers  map[models.MessageType]HandlerFunc

	// state is the agent's runtime record. Only the processing loop writes
	// it; stateMu makes snapshots safe for concurrent readers.
	state   models.AgentState
	stateMu sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once
}

// New creates an agent runtime for a role. Register handlers with Handle
// before calling Start.
func New(agentType models.AgentType, bus *broker.Broker) *Agent {
	ctx, cancel := context.WithCancel(context.Background())
	id := fmt.Sprintf("%s-%s", agentType, uuid.New().String()[:8])
	return &Agent{
		id:        id,
		agentType: agentType,
		bus:       bus,
		mailbox:   NewMailbox(),
		handlers:  make(map[models.MessageType]HandlerFunc),
		state: models.AgentState{
			AgentID:      id,
			AgentType:    agentType,
			Status:       models.AgentIdle,
			LastActivity: time.Now(),
		},
		ctx:    ctx,
		cancel: cancel,
	}
}

// ID returns the unique agent instance ID.
func (a *Agent) ID() string {
	return a.id
}

// Type returns the agent's role.
func (a *Agent) Type() models.AgentType {
	return a.agentType
}

// Handle registers the handler invoked for a message type. Messages of an
// unregistered type are logged and skipped.
func (a *Agent) Handle(typ models.MessageType, h HandlerFunc) {
	a.handlers[typ] = h
}

// Start subscribes the agent to its topic and launches the processing loop.
func (a *Agent) Start() {
	a.startOnce.Do(func() {
		a.bus.Subscribe(a.agentType.Topic(), a.mailbox.Push)
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.run()
		}()
		log.Printf("[%s] agent started, listening on %s", a.agentType, a.agentType.Topic())
	})
}

// Stop shuts the agent down. The in-flight message, if any, finishes;
// remaining queued messages are discarded. STOPPED is terminal.
func (a *Agent) Stop() {
	a.stopOnce.Do(func() {
		a.cancel()
		a.mailbox.Close()
		a.wg.Wait()
		a.setStatus(models.AgentStopped, "")
		log.Printf("[%s] agent stopped", a.agentType)
	})
}

// State returns a snapshot of the agent's runtime record.
func (a *Agent) State() models.AgentState {
	a.stateMu.RLock()
	defer a.stateMu.RUnlock()
	return a.state
}

// Send publishes a message from this agent and returns the broker's delivery
// count. Zero deliveries are logged; the best-effort drop policy is the
// broker's, not the sender's.
func (a *Agent) Send(to models.AgentType, typ models.MessageType, content, projectID string, metadata map[string]any) int {
	return a.Publish(models.NewMessage(a.agentType, to, typ, content, projectID, metadata))
}

// Publish publishes a prebuilt message (used when the caller needs to set
// priority or other envelope fields).
func (a *Agent) Publish(msg models.Message) int {
	n := a.bus.Publish(msg.To.Topic(), msg)
	if n == 0 {
		log.Printf("[%s] message to %s not delivered (no subscribers): type=%s project=%s",
			a.agentType, msg.To, msg.Type, msg.ProjectID)
	}
	return n
}

// Context returns the agent's lifecycle context. Handlers pass it to LLM and
// artifact calls so shutdown cancels outbound work.
func (a *Agent) Context() context.Context {
	return a.ctx
}

// run is the processing loop: wait for a wake-up, then drain the mailbox to
// empty before waiting again.
func (a *Agent) run() {
	for {
		for {
			// Stop discards whatever is still queued; only the message
			// already being processed runs to completion.
			if a.ctx.Err() != nil {
				return
			}
			msg, ok := a.mailbox.Pop()
			if !ok {
				break
			}
			a.process(msg)
		}

		select {
		case <-a.ctx.Done():
			return
		case <-a.mailbox.Wake():
		}
	}
}

// process dispatches one message to its handler. Handler failure (error or
// panic) becomes a Message(ERROR) back to the sender and the loop moves on.
func (a *Agent) process(msg models.Message) {
	a.setStatus(models.AgentWorking, fmt.Sprintf("%s from %s", msg.Type, msg.From))

	h, ok := a.handlers[msg.Type]
	if !ok {
		log.Printf("[%s] unhandled message type %s from %s", a.agentType, msg.Type, msg.From)
		a.setStatus(models.AgentIdle, "")
		return
	}

	if err := a.invoke(h, msg); err != nil {
		log.Printf("[%s] handler failed for %s from %s: %v", a.agentType, msg.Type, msg.From, err)
		a.setStatus(models.AgentErrored, "")
		a.sendError(msg, err)
	}

	a.setStatus(models.AgentIdle, "")
}

// invoke runs a handler with panic recovery so one bad message never kills
// the loop.
func (a *Agent) invoke(h HandlerFunc, msg models.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(a.ctx, msg)
}

// sendError reports a handler failure back to the message sender.
func (a *Agent) sendError(original models.Message, handlerErr error) {
	errMsg := models.NewMessage(a.agentType, original.From, models.MessageError,
		fmt.Sprintf("Error processing your %s: %v", original.Type, handlerErr),
		original.ProjectID,
		map[string]any{models.MetaOriginalMessageID: original.ID},
	).WithPriority(models.PriorityHigh)

	a.Publish(errMsg)
}

func (a *Agent) setStatus(status models.AgentStatus, task string) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	// STOPPED is terminal.
	if a.state.Status == models.AgentStopped {
		return
	}
	a.state.Status = status
	a.state.CurrentTask = task
	a.state.LastActivity = time.Now()
}
