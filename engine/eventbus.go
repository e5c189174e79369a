package engine

import (
	"sync"
	"time"
)

type EventType int

type SubscriberID int

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

// EventBus delivers events synchronously, in subscription order, on the
// emitting goroutine.
type EventBus struct {
	mu          sync.RWMutex
	subscribers []subscriber
	nextID      SubscriberID
}

func NewEventBus() *EventBus {
	return &EventBus{}
}

// SubscribeTypes registers a handler for specific event types.
func (eb *EventBus) SubscribeTypes(fn func(Event), types ...EventType) SubscriberID {
	filter := make(map[EventType]struct{}, len(types))
	for _, t := range types {
		filter[t] = struct{}{}
	}
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.nextID++
	eb.subscribers = append(eb.subscribers, subscriber{id: eb.nextID, fn: fn, filter: filter})
	return eb.nextID
}

// Unsubscribe removes subscribers by ID. Unknown IDs are ignored.
func (eb *EventBus) Unsubscribe(ids ...SubscriberID) {
	drop := make(map[SubscriberID]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	eb.mu.Lock()
	defer eb.mu.Unlock()
	kept := eb.subscribers[:0:0]
	for _, s := range eb.subscribers {
		if _, ok := drop[s.id]; !ok {
			kept = append(kept, s)
		}
	}
	eb.subscribers = kept
}

// Len reports the number of live subscribers.
func (eb *EventBus) Len() int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.subscribers)
}

// Emit sends an event to all matching subscribers.
func (eb *EventBus) Emit(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	eb.mu.RLock()
	subs := make([]subscriber, len(eb.subscribers))
	copy(subs, eb.subscribers)
	eb.mu.RUnlock()

	for _, s := range subs {
		if _, ok := s.filter[evt.Type]; !ok {
			continue
		}
		s.fn(evt)
	}
}

// Typed subscriptions. Each handler receives the payload of its event type.

func (eb *EventBus) OnVisitOpened(fn func(VisitOpenedEvent)) SubscriberID {
	return eb.SubscribeTypes(func(evt Event) { fn(evt.Payload.(VisitOpenedEvent)) }, EventVisitOpened)
}

func (eb *EventBus) OnStageRecorded(fn func(StageRecordedEvent)) SubscriberID {
	return eb.SubscribeTypes(func(evt Event) { fn(evt.Payload.(StageRecordedEvent)) }, EventStageRecorded)
}

func (eb *EventBus) OnStageRejected(fn func(StageRejectedEvent)) SubscriberID {
	return eb.SubscribeTypes(func(evt Event) { fn(evt.Payload.(StageRejectedEvent)) }, EventStageRejected)
}

func (eb *EventBus) OnVisitClosed(fn func(VisitClosedEvent)) SubscriberID {
	return eb.SubscribeTypes(func(evt Event) { fn(evt.Payload.(VisitClosedEvent)) }, EventVisitClosed)
}

func (eb *EventBus) OnVisitsReset(fn func(VisitsResetEvent)) SubscriberID {
	return eb.SubscribeTypes(func(evt Event) { fn(evt.Payload.(VisitsResetEvent)) }, EventVisitsReset)
}

// OnConnection fires on both messaging transitions; connected is true for
// EventMessagingConnected.
func (eb *EventBus) OnConnection(fn func(connected bool, ev ConnectionEvent)) SubscriberID {
	return eb.SubscribeTypes(func(evt Event) {
		fn(evt.Type == EventMessagingConnected, evt.Payload.(ConnectionEvent))
	}, EventMessagingConnected, EventMessagingDisconnected)
}
