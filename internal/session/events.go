package session

import (
	"time"

	"github.com/miss-electronics/proctor-agent/internal/model"
)

// EventType discriminates events pushed to the rendering front end.
type EventType string

const (
	EventState        EventType = "state"
	EventNotification EventType = "notification"
	EventRedirect     EventType = "redirect"
)

// Redirect targets emitted at session boundaries.
const (
	RedirectSignIn   = "/login"
	RedirectPostExam = "/feedback"
)

// Event is a single message on the agent → front end stream.
type Event struct {
	Type         EventType       `json:"event"`
	State        *model.Snapshot `json:"state,omitempty"`
	Notification *Notification   `json:"notification,omitempty"`
	Redirect     string          `json:"redirect,omitempty"`
}

// subscriberBufSize bounds each subscriber channel. A slow consumer loses
// state events rather than blocking the session machine; every state event
// is a full snapshot, so a dropped one is superseded by the next.
const subscriberBufSize = 32

// Subscribe registers an event channel keyed to the session lifetime.
// The returned cancel function must be called when the consumer goes away.
func (c *Controller) Subscribe() (<-chan Event, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSubID
	c.nextSubID++
	ch := make(chan Event, subscriberBufSize)
	c.subs[id] = ch

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}
}

// broadcast pushes an event to every subscriber without blocking.
// Callers must hold c.mu.
func (c *Controller) broadcast(ev Event) {
	for _, ch := range c.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// notify issues a notification to all subscribers. Callers must hold c.mu.
func (c *Controller) notify(message string, isError bool, duration time.Duration) {
	n := c.notifier.Next(message, isError, duration)
	c.log.Debug().Bool("is_error", isError).Str("message", message).Msg("Notification")
	c.broadcast(Event{Type: EventNotification, Notification: &n})
}

// pushState broadcasts a fresh snapshot. Callers must hold c.mu.
func (c *Controller) pushState() {
	snap := c.snapshotLocked()
	c.broadcast(Event{Type: EventState, State: snap})
}

// redirect signals the front end to navigate away. Callers must hold c.mu.
func (c *Controller) redirect(target string) {
	c.broadcast(Event{Type: EventRedirect, Redirect: target})
}
