package server

import (
	"encoding/json"
	"sync"

	"github.com/touristquiz/api/internal/proximity"
)

// Event is the payload pushed to SSE subscribers.
type Event struct {
	Type     string           `json:"type"`
	Alert    *proximity.Alert `json:"alert,omitempty"`
	ObjectID string           `json:"objectId,omitempty"`
}

// Broker is an in-process pub/sub for SSE events, keyed by user ID.
// Broadcast events (object list changes, leaderboard updates) go to every
// subscriber; proximity alerts go only to the session they belong to.
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[chan []byte]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[string]map[chan []byte]struct{}),
	}
}

// Subscribe returns a channel receiving JSON-encoded events for the user.
func (b *Broker) Subscribe(uid string) chan []byte {
	ch := make(chan []byte, 16)
	b.mu.Lock()
	if b.subs[uid] == nil {
		b.subs[uid] = make(map[chan []byte]struct{})
	}
	b.subs[uid][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a channel from the user's subscribers.
func (b *Broker) Unsubscribe(uid string, ch chan []byte) {
	b.mu.Lock()
	delete(b.subs[uid], ch)
	if len(b.subs[uid]) == 0 {
		delete(b.subs, uid)
	}
	b.mu.Unlock()
}

// Publish sends an event to all of the user's subscribers.
func (b *Broker) Publish(uid string, event Event) {
	data, _ := json.Marshal(event)
	b.mu.RLock()
	for ch := range b.subs[uid] {
		select {
		case ch <- data:
		default:
			// Drop if subscriber is slow.
		}
	}
	b.mu.RUnlock()
}

// Broadcast sends an event to every subscriber.
func (b *Broker) Broadcast(event Event) {
	data, _ := json.Marshal(event)
	b.mu.RLock()
	for _, subs := range b.subs {
		for ch := range subs {
			select {
			case ch <- data:
			default:
			}
		}
	}
	b.mu.RUnlock()
}

// Alert implements proximity.Alerter, converting engine alerts into per-user
// SSE events.
func (b *Broker) Alert(uid string, a proximity.Alert) {
	alert := a
	b.Publish(uid, Event{Type: "proximity_alert", Alert: &alert})
}
