package tutor

import (
	"sync"
	"time"
)

type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Notification is a user-visible message raised outside the request/response path.
type Notification struct {
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

type Notifier interface {
	Notify(userID string, n Notification)
}

// NopNotifier drops every notification.
type NopNotifier struct{}

func (NopNotifier) Notify(string, Notification) {}

// Inbox keeps the latest notifications for each user until they are drained.
type Inbox struct {
	mu    sync.Mutex
	size  int
	items map[string][]Notification
}

func NewInbox(size int) *Inbox {
	if size <= 0 {
		size = 32
	}
	return &Inbox{size: size, items: make(map[string][]Notification)}
}

// Notify queues n, dropping the oldest entry once the user's inbox is full.
func (b *Inbox) Notify(userID string, n Notification) {
	if n.At.IsZero() {
		n.At = time.Now().UTC()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	q := append(b.items[userID], n)
	if len(q) > b.size {
		q = q[len(q)-b.size:]
	}
	b.items[userID] = q
}

// Drain returns and clears the user's queued notifications.
func (b *Inbox) Drain(userID string) []Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	q := b.items[userID]
	delete(b.items, userID)
	if q == nil {
		return []Notification{}
	}
	return q
}
