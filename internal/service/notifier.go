package service

import (
	"sync"
	"time"
)

// Severity levels for operator notifications.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notification is one operator-facing message awaiting pickup by the
// front end.
type Notification struct {
	Severity Severity  `json:"severity"`
	Message  string    `json:"message"`
	At       time.Time `json:"at"`
}

// Notifier carries the two signals the external front end consumes: an
// edge-triggered, coalesced refresh flag and a buffered notification
// queue. The core never renders anything itself.
type Notifier struct {
	mu            sync.Mutex
	refreshNeeded bool
	pending       []Notification
}

func NewNotifier() *Notifier {
	return &Notifier{}
}

// RequestRefresh marks the queue view as stale. Repeated requests coalesce
// into one pending edge.
func (n *Notifier) RequestRefresh() {
	n.mu.Lock()
	n.refreshNeeded = true
	n.mu.Unlock()
}

// ConsumeRefresh returns whether a refresh was pending and clears the flag.
func (n *Notifier) ConsumeRefresh() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	needed := n.refreshNeeded
	n.refreshNeeded = false
	return needed
}

// Notify queues an operator notification.
func (n *Notifier) Notify(severity Severity, message string) {
	n.mu.Lock()
	n.pending = append(n.pending, Notification{
		Severity: severity,
		Message:  message,
		At:       time.Now(),
	})
	n.mu.Unlock()
}

// Drain returns and clears all pending notifications.
func (n *Notifier) Drain() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := n.pending
	n.pending = nil
	return out
}
