package domain

import (
	"sync"
	"time"
)

type EventType string

const (
	EventTypeConversationChanged EventType = "conversation.changed"
	EventTypeConversationDeleted EventType = "conversation.deleted"
	EventTypeMessageChanged      EventType = "message.changed"
	EventTypeTypingChanged       EventType = "typing.changed"
	EventTypeEventsDropped       EventType = "events.dropped"
)

type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// ConversationChangedEvent fires after any committed write that touches a
// conversation record: send, read acknowledgment, settings toggle, update.
// ParticipantIDs lets observers refresh per-user conversation lists without
// re-loading the record first.
type ConversationChangedEvent struct {
	ConversationID string
	ParticipantIDs []string
	EventTime      time.Time
}

func (e ConversationChangedEvent) Type() EventType      { return EventTypeConversationChanged }
func (e ConversationChangedEvent) Timestamp() time.Time { return e.EventTime }

type ConversationDeletedEvent struct {
	ConversationID string
	ParticipantIDs []string
	EventTime      time.Time
}

func (e ConversationDeletedEvent) Type() EventType      { return EventTypeConversationDeleted }
func (e ConversationDeletedEvent) Timestamp() time.Time { return e.EventTime }

// MessageChangedEvent fires after a message is created, edited, soft-deleted,
// marked read, or reacted to.
type MessageChangedEvent struct {
	ConversationID string
	MessageID      string
	EventTime      time.Time
}

func (e MessageChangedEvent) Type() EventType      { return EventTypeMessageChanged }
func (e MessageChangedEvent) Timestamp() time.Time { return e.EventTime }

type TypingChangedEvent struct {
	ConversationID string
	UserID         string
	EventTime      time.Time
}

func (e TypingChangedEvent) Type() EventType      { return EventTypeTypingChanged }
func (e TypingChangedEvent) Timestamp() time.Time { return e.EventTime }

// EventsDroppedEvent takes the place of buffered events discarded when a
// subscriber falls behind. It carries no detail on what was lost; consumers
// must re-query everything they observe when they see one.
type EventsDroppedEvent struct {
	EventTime time.Time
}

func (e EventsDroppedEvent) Type() EventType      { return EventTypeEventsDropped }
func (e EventsDroppedEvent) Timestamp() time.Time { return e.EventTime }

// EventBus provides pub/sub for domain events
type EventBus interface {
	Publish(event Event)
	Subscribe(eventTypes []EventType) <-chan Event
	Unsubscribe(ch <-chan Event)
}

// SimpleEventBus is a basic in-memory implementation of EventBus
type SimpleEventBus struct {
	mu          sync.RWMutex
	subscribers map[<-chan Event]subscription
}

type subscription struct {
	ch         chan Event
	eventTypes map[EventType]bool
}

func NewEventBus() *SimpleEventBus {
	return &SimpleEventBus{
		subscribers: make(map[<-chan Event]subscription),
	}
}

func (b *SimpleEventBus) Publish(event Event) {
	// Full lock: the bus is the only sender on subscriber channels, and the
	// overflow path below relies on that to guarantee the marker fits.
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subscribers {
		if len(sub.eventTypes) > 0 && !sub.eventTypes[event.Type()] {
			continue
		}
		select {
		case sub.ch <- event:
			continue
		default:
		}
		// Channel full: discard the oldest buffered event and leave a marker
		// in its place. A slow subscriber loses detail, never the fact that
		// something changed.
		select {
		case <-sub.ch:
		default:
		}
		sub.ch <- EventsDroppedEvent{EventTime: event.Timestamp()}
	}
}

const eventBufferSize = 100

func (b *SimpleEventBus) Subscribe(eventTypes []EventType) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, eventBufferSize)
	typeMap := make(map[EventType]bool)
	for _, t := range eventTypes {
		typeMap[t] = true
	}

	b.subscribers[ch] = subscription{
		ch:         ch,
		eventTypes: typeMap,
	}

	return ch
}

func (b *SimpleEventBus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.subscribers[ch]; ok {
		close(sub.ch)
		delete(b.subscribers, ch)
	}
}
