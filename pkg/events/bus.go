// Package events provides the in-process event bus. Delivery is
// synchronous and at-least-once: every handler subscribed to an
// event's type (or the wildcard) is invoked once per publish, in
// subscription order, and a failing or panicking handler never
// prevents delivery to the rest.
package events

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/snaplock/pkg/observability"
)

// Handler consumes one event. A returned error is recorded and logged
// but does not stop delivery to other handlers.
type Handler func(Event) error

type subscription struct {
	id      string
	handler Handler
}

// Bus dispatches events to subscribed handlers.
type Bus struct {
	mu   sync.RWMutex
	subs map[EventType][]subscription

	logger *observability.Logger

	published     atomic.Int64
	delivered     atomic.Int64
	handlerErrors atomic.Int64
}

// BusStats is a snapshot of bus counters.
type BusStats struct {
	Published     int64
	Delivered     int64
	HandlerErrors int64
	Subscriptions int
}

// NewBus creates an event bus. logger may be nil.
func NewBus(logger *observability.Logger) *Bus {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, os.Stdout)
	}
	return &Bus{
		subs:   make(map[EventType][]subscription),
		logger: logger,
	}
}

// Subscribe registers a handler for one event type (or TypeWildcard
// for all) and returns the subscription handle.
func (b *Bus) Subscribe(eventType EventType, handler Handler) (string, error) {
	if handler == nil {
		return "", fmt.Errorf("cannot subscribe nil handler")
	}
	if eventType == "" {
		return "", fmt.Errorf("event type is required")
	}

	id := uuid.New().String()

	b.mu.Lock()
	b.subs[eventType] = append(b.subs[eventType], subscription{id: id, handler: handler})
	b.mu.Unlock()

	return id, nil
}

// Unsubscribe removes a subscription by handle. It reports whether a
// subscription was removed; unknown handles are a no-op.
func (b *Bus) Unsubscribe(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for eventType, subs := range b.subs {
		for i, sub := range subs {
			if sub.id != id {
				continue
			}
			next := make([]subscription, 0, len(subs)-1)
			next = append(next, subs[:i]...)
			next = append(next, subs[i+1:]...)
			if len(next) == 0 {
				delete(b.subs, eventType)
			} else {
				b.subs[eventType] = next
			}
			return true
		}
	}
	return false
}

// Publish delivers an event to every matching handler, in subscription
// order, wildcard subscribers after type subscribers. The ID and
// timestamp are filled in if the caller left them empty. Handlers run
// on the publisher's goroutine; publishers must not hold locks that a
// handler could need.
func (b *Bus) Publish(event Event) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	matched := make([]subscription, 0, len(b.subs[event.Type])+len(b.subs[TypeWildcard]))
	matched = append(matched, b.subs[event.Type]...)
	if event.Type != TypeWildcard {
		matched = append(matched, b.subs[TypeWildcard]...)
	}
	b.mu.RUnlock()

	b.published.Add(1)

	for _, sub := range matched {
		b.deliver(sub, event)
	}
}

// deliver invokes one handler with panic isolation.
func (b *Bus) deliver(sub subscription, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.handlerErrors.Add(1)
			b.logger.WithFields(map[string]interface{}{
				"event_id":     event.ID,
				"event_type":   string(event.Type),
				"subscription": sub.id,
				"panic":        fmt.Sprintf("%v", r),
			}).Error("event handler panicked")
		}
	}()

	if err := sub.handler(event); err != nil {
		b.handlerErrors.Add(1)
		b.logger.WithError(err).WithFields(map[string]interface{}{
			"event_id":     event.ID,
			"event_type":   string(event.Type),
			"subscription": sub.id,
		}).Error("event handler failed")
		return
	}
	b.delivered.Add(1)
}

// SubscriberCount returns the number of live subscriptions across all
// event types.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := 0
	for _, subs := range b.subs {
		n += len(subs)
	}
	return n
}

// Stats returns a snapshot of bus counters.
func (b *Bus) Stats() BusStats {
	return BusStats{
		Published:     b.published.Load(),
		Delivered:     b.delivered.Load(),
		HandlerErrors: b.handlerErrors.Load(),
		Subscriptions: b.SubscriberCount(),
	}
}
