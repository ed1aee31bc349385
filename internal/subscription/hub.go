package subscription

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tenantry/message-service/internal/domain"
	"github.com/tenantry/message-service/internal/logger"
	"github.com/tenantry/message-service/internal/repository"
	"github.com/tenantry/message-service/internal/service"
)

type ConversationsCallback func(conversations []*domain.Conversation)
type MessagesCallback func(messages []*domain.Message)
type TypingCallback func(indicators []*domain.TypingIndicator)

// Unsubscribe stops further callback invocations and releases the observer
// slot. Safe to call more than once.
type Unsubscribe func()

type typingObserver struct {
	userID string
	cb     TypingCallback
}

// Hub is an observer registry keyed by resource: conversation lists by user
// id, message lists and typing sets by conversation id. One goroutine
// consumes the domain event bus and pushes the complete current view to every
// registered observer on each change; observers never receive deltas, so a
// late subscriber converges without history.
type Hub struct {
	repos  *repository.Repositories
	typing *service.TypingService
	bus    domain.EventBus
	events <-chan domain.Event
	log    zerolog.Logger

	mu         sync.Mutex
	nextID     uint64
	convSubs   map[string]map[uint64]ConversationsCallback
	msgSubs    map[string]map[uint64]MessagesCallback
	typingSubs map[string]map[uint64]typingObserver
}

// NewHub attaches to the bus immediately, so events published between
// construction and Run are buffered rather than lost.
func NewHub(repos *repository.Repositories, typing *service.TypingService, bus domain.EventBus) *Hub {
	events := bus.Subscribe([]domain.EventType{
		domain.EventTypeConversationChanged,
		domain.EventTypeConversationDeleted,
		domain.EventTypeMessageChanged,
		domain.EventTypeTypingChanged,
	})
	return &Hub{
		repos:      repos,
		typing:     typing,
		bus:        bus,
		events:     events,
		log:        logger.Module("subscription-hub"),
		convSubs:   make(map[string]map[uint64]ConversationsCallback),
		msgSubs:    make(map[string]map[uint64]MessagesCallback),
		typingSubs: make(map[string]map[uint64]typingObserver),
	}
}

// Run consumes the event bus until the context is canceled. Snapshots are
// pushed from this single goroutine, so per-observer delivery order follows
// commit order.
func (h *Hub) Run(ctx context.Context) {
	defer h.bus.Unsubscribe(h.events)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-h.events:
			if !ok {
				return
			}
			h.dispatch(ctx, ev)
		}
	}
}

func (h *Hub) dispatch(ctx context.Context, ev domain.Event) {
	switch e := ev.(type) {
	case domain.MessageChangedEvent:
		h.pushMessages(ctx, e.ConversationID)
	case domain.ConversationChangedEvent:
		ids := e.ParticipantIDs
		if len(ids) == 0 {
			conv, err := h.repos.Conversations.GetByID(ctx, e.ConversationID)
			if err != nil || conv == nil {
				return
			}
			ids = conv.ParticipantIDs()
		}
		for _, userID := range ids {
			h.pushConversations(ctx, userID)
		}
	case domain.ConversationDeletedEvent:
		for _, userID := range e.ParticipantIDs {
			h.pushConversations(ctx, userID)
		}
		h.pushMessages(ctx, e.ConversationID)
		h.pushTyping(ctx, e.ConversationID)
	case domain.TypingChangedEvent:
		h.pushTyping(ctx, e.ConversationID)
	case domain.EventsDroppedEvent:
		h.log.Warn().Msg("event backlog overflowed, refreshing all observers")
		h.refreshAll(ctx)
	}
}

// refreshAll re-queries every registered key. The bus emits a drop marker
// when events were discarded under backpressure, and there is no telling
// which keys those events touched.
func (h *Hub) refreshAll(ctx context.Context) {
	h.mu.Lock()
	userIDs := make([]string, 0, len(h.convSubs))
	for userID := range h.convSubs {
		userIDs = append(userIDs, userID)
	}
	msgConvIDs := make([]string, 0, len(h.msgSubs))
	for convID := range h.msgSubs {
		msgConvIDs = append(msgConvIDs, convID)
	}
	typingConvIDs := make([]string, 0, len(h.typingSubs))
	for convID := range h.typingSubs {
		typingConvIDs = append(typingConvIDs, convID)
	}
	h.mu.Unlock()

	for _, userID := range userIDs {
		h.pushConversations(ctx, userID)
	}
	for _, convID := range msgConvIDs {
		h.pushMessages(ctx, convID)
	}
	for _, convID := range typingConvIDs {
		h.pushTyping(ctx, convID)
	}
}

// SubscribeToConversations registers an observer for the user's conversation
// list, ordered by last activity descending. The current snapshot is pushed
// synchronously before this returns.
func (h *Hub) SubscribeToConversations(ctx context.Context, userID string, cb ConversationsCallback) Unsubscribe {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	if h.convSubs[userID] == nil {
		h.convSubs[userID] = make(map[uint64]ConversationsCallback)
	}
	h.convSubs[userID][id] = cb
	h.mu.Unlock()

	// Initial snapshot goes to the new observer only; existing observers
	// are untouched by another client subscribing.
	if conversations, err := h.repos.Conversations.GetByUserID(ctx, userID); err == nil {
		cb(conversations)
	} else {
		h.log.Error().Err(err).Str("user_id", userID).Msg("failed to load initial conversation snapshot")
	}

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.convSubs[userID], id)
		if len(h.convSubs[userID]) == 0 {
			delete(h.convSubs, userID)
		}
	}
}

// SubscribeToMessages registers an observer for a conversation's non-deleted
// messages, ordered by creation time ascending.
func (h *Hub) SubscribeToMessages(ctx context.Context, conversationID string, cb MessagesCallback) Unsubscribe {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	if h.msgSubs[conversationID] == nil {
		h.msgSubs[conversationID] = make(map[uint64]MessagesCallback)
	}
	h.msgSubs[conversationID][id] = cb
	h.mu.Unlock()

	if messages, err := h.repos.Messages.ListByConversation(ctx, conversationID, 0, 0); err == nil {
		cb(messages)
	} else {
		h.log.Error().Err(err).Str("conversation_id", conversationID).Msg("failed to load initial message snapshot")
	}

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.msgSubs[conversationID], id)
		if len(h.msgSubs[conversationID]) == 0 {
			delete(h.msgSubs, conversationID)
		}
	}
}

// SubscribeToTyping registers an observer for a conversation's typing set.
// The observer's own record is excluded from every snapshot.
func (h *Hub) SubscribeToTyping(ctx context.Context, conversationID, userID string, cb TypingCallback) Unsubscribe {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	if h.typingSubs[conversationID] == nil {
		h.typingSubs[conversationID] = make(map[uint64]typingObserver)
	}
	h.typingSubs[conversationID][id] = typingObserver{userID: userID, cb: cb}
	h.mu.Unlock()

	if indicators, err := h.typing.List(ctx, conversationID, userID); err == nil {
		cb(indicators)
	} else {
		h.log.Error().Err(err).Str("conversation_id", conversationID).Msg("failed to load initial typing snapshot")
	}

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.typingSubs[conversationID], id)
		if len(h.typingSubs[conversationID]) == 0 {
			delete(h.typingSubs, conversationID)
		}
	}
}

func (h *Hub) pushConversations(ctx context.Context, userID string) {
	h.mu.Lock()
	callbacks := make([]ConversationsCallback, 0, len(h.convSubs[userID]))
	for _, cb := range h.convSubs[userID] {
		callbacks = append(callbacks, cb)
	}
	h.mu.Unlock()

	if len(callbacks) == 0 {
		return
	}

	conversations, err := h.repos.Conversations.GetByUserID(ctx, userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("failed to load conversation snapshot")
		return
	}
	for _, cb := range callbacks {
		cb(conversations)
	}
}

func (h *Hub) pushMessages(ctx context.Context, conversationID string) {
	h.mu.Lock()
	callbacks := make([]MessagesCallback, 0, len(h.msgSubs[conversationID]))
	for _, cb := range h.msgSubs[conversationID] {
		callbacks = append(callbacks, cb)
	}
	h.mu.Unlock()

	if len(callbacks) == 0 {
		return
	}

	messages, err := h.repos.Messages.ListByConversation(ctx, conversationID, 0, 0)
	if err != nil {
		h.log.Error().Err(err).Str("conversation_id", conversationID).Msg("failed to load message snapshot")
		return
	}
	for _, cb := range callbacks {
		cb(messages)
	}
}

func (h *Hub) pushTyping(ctx context.Context, conversationID string) {
	h.mu.Lock()
	observers := make([]typingObserver, 0, len(h.typingSubs[conversationID]))
	for _, obs := range h.typingSubs[conversationID] {
		observers = append(observers, obs)
	}
	h.mu.Unlock()

	for _, obs := range observers {
		indicators, err := h.typing.List(ctx, conversationID, obs.userID)
		if err != nil {
			h.log.Error().Err(err).Str("conversation_id", conversationID).Msg("failed to load typing snapshot")
			continue
		}
		obs.cb(indicators)
	}
}
