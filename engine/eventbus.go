package engine

import (
	"log"
	"sync"
	"time"
)

type EventType int

type SubscriberID int

// Event is one engine occurrence. Payload holds the *Event struct matching
// Type, e.g. CommandAcceptedEvent for EventCommandAccepted.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Payload   any
}

type subscriber struct {
	id     SubscriberID
	fn     func(Event)
	filter map[EventType]struct{}
}

// EventBus fans engine events out to the journal, mirror, outbox and SSE
// subscribers.
//
// Delivery is synchronous on the emitting goroutine, in subscription order,
// and Emit returns only after every subscriber has run. The journal relies on
// this: a command row exists before its capture is recorded, the capture is
// recorded before the command is resolved, and a patrol step is written
// before the sequencer dispatches the next waypoint. Subscribers must not
// block; the SSE hub and the outbox drainer do their slow work on their own
// goroutines.
//
// A subscriber that panics is logged and skipped; the remaining subscribers
// still see the event.
type EventBus struct {
	mu          sync.RWMutex
	subscribers []subscriber
	nextID      SubscriberID
}

func NewEventBus() *EventBus {
	return &EventBus{}
}

// Subscribe registers a handler for all event types.
func (eb *EventBus) Subscribe(fn func(Event)) SubscriberID {
	return eb.SubscribeTypes(fn)
}

// SubscribeTypes registers a handler for specific event types. With no
// types the handler receives everything.
func (eb *EventBus) SubscribeTypes(fn func(Event), types ...EventType) SubscriberID {
	var filter map[EventType]struct{}
	if len(types) > 0 {
		filter = make(map[EventType]struct{}, len(types))
		for _, t := range types {
			filter[t] = struct{}{}
		}
	}
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.nextID++
	eb.subscribers = append(eb.subscribers, subscriber{id: eb.nextID, fn: fn, filter: filter})
	return eb.nextID
}

// Unsubscribe removes a subscriber by ID. An Emit already in progress may
// still deliver to it.
func (eb *EventBus) Unsubscribe(id SubscriberID) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	for i, s := range eb.subscribers {
		if s.id == id {
			eb.subscribers = append(eb.subscribers[:i:i], eb.subscribers[i+1:]...)
			return
		}
	}
}

// Emit delivers evt to every matching subscriber before returning.
func (eb *EventBus) Emit(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	eb.mu.RLock()
	subs := eb.subscribers
	eb.mu.RUnlock()

	for _, s := range subs {
		if s.filter != nil {
			if _, ok := s.filter[evt.Type]; !ok {
				continue
			}
		}
		deliver(s, evt)
	}
}

func deliver(s subscriber, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("engine: subscriber %d panicked on %s: %v", s.id, evt.Type, r)
		}
	}()
	s.fn(evt)
}
