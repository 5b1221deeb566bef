// Package events implements the notification channel between the core
// and whatever renders quota state.
//
// The contract is fire-on-transition, never poll: the session client and
// the usage oracle publish an event for every state change, and the UI
// layer subscribes. Nothing in the core ever asks the UI to refresh.
package events

import "sync"

// Type names a state transition.
type Type string

const (
	Login             Type = "login"
	Register          Type = "register"
	Logout            Type = "logout"
	UsageUpdated      Type = "usage-updated"
	GuestUsageUpdated Type = "guest-usage-updated"
)

// Event is one broadcast notification. Payload is whatever snapshot the
// publisher wants observers to see (a user, an updated counter).
type Event struct {
	Type    Type
	Payload any
}

// Subscriber receives broadcast events. Handlers run synchronously on
// the publishing goroutine, so keep them cheap.
type Subscriber func(Event)

// Bus fans events out to subscribers.
type Bus struct {
	mu   sync.RWMutex
	subs []Subscriber
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a handler for all subsequent events.
func (b *Bus) Subscribe(s Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, s)
}

// Publish delivers an event to every subscriber in registration order.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	subs := make([]Subscriber, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, s := range subs {
		s(e)
	}
}
