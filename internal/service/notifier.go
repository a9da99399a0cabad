package service

import (
	"sync"
	"time"
)

// ChangeKind names what happened to a resource.
type ChangeKind string

const (
	PageCreated    ChangeKind = "page.created"
	PageUpdated    ChangeKind = "page.updated"
	PageRestored   ChangeKind = "page.restored"
	PageDeleted    ChangeKind = "page.deleted"
	ContactCreated ChangeKind = "contact.created"
	ContactUpdated ChangeKind = "contact.updated"
	ContactDeleted ChangeKind = "contact.deleted"
)

// ChangeEvent describes a committed mutation.
type ChangeEvent struct {
	Kind    ChangeKind `json:"kind"`
	ID      string     `json:"id"`
	Slug    string     `json:"slug,omitempty"`
	Version int        `json:"version,omitempty"`
	At      time.Time  `json:"at"`
}

const subscriptionBuffer = 16

// Notifier fans change events out to subscribers.
type Notifier struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

// NewNotifier creates a Notifier with no subscribers.
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[*Subscription]struct{})}
}

// Subscription receives events on C until Close is called.
type Subscription struct {
	C <-chan ChangeEvent

	ch       chan ChangeEvent
	notifier *Notifier
	once     sync.Once
}

// Subscribe registers a new subscriber.
func (n *Notifier) Subscribe() *Subscription {
	ch := make(chan ChangeEvent, subscriptionBuffer)
	s := &Subscription{C: ch, ch: ch, notifier: n}
	n.mu.Lock()
	n.subs[s] = struct{}{}
	n.mu.Unlock()
	return s
}

// Close unregisters the subscription and closes C.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.notifier.mu.Lock()
		delete(s.notifier.subs, s)
		s.notifier.mu.Unlock()
		close(s.ch)
	})
}

// Publish delivers ev to every subscriber. A subscriber whose buffer is full
// misses the event.
func (n *Notifier) Publish(ev ChangeEvent) {
	if n == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	for s := range n.subs {
		select {
		case s.ch <- ev:
		default:
		}
	}
}
