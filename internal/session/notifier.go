package session

import (
	"sync"
	"time"
)

// Notification is a transient on-screen message. The front end auto-dismisses
// it after DurationMs.
type Notification struct {
	ID         int    `json:"id"`
	Message    string `json:"message"`
	IsError    bool   `json:"isError"`
	DurationMs int    `json:"durationMs"`
}

// Notifier issues notifications with process-local monotonically increasing
// IDs. IDs have no cross-session meaning.
type Notifier struct {
	mu     sync.Mutex
	nextID int
}

// NewNotifier creates a Notifier.
func NewNotifier() *Notifier {
	return &Notifier{}
}

// Next builds the next notification in sequence.
func (n *Notifier) Next(message string, isError bool, duration time.Duration) Notification {
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.mu.Unlock()

	return Notification{
		ID:         id,
		Message:    message,
		IsError:    isError,
		DurationMs: int(duration / time.Millisecond),
	}
}
