package subscription

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tenantry/message-service/internal/domain"
	"github.com/tenantry/message-service/internal/logger"
	"github.com/tenantry/message-service/internal/repository"
	"github.com/tenantry/message-service/internal/service"
)

const snapshotTimeout = 2 * time.Second

type hubEnv struct {
	repos         *repository.Repositories
	bus           domain.EventBus
	conversations *service.ConversationService
	messages      *service.MessageService
	typing        *service.TypingService
	hub           *Hub
}

// newIdleHubEnv wires everything but does not start the hub loop, so tests
// can stage events before consumption begins.
func newIdleHubEnv(t *testing.T) *hubEnv {
	t.Helper()
	logger.Init("error")

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, repository.Migrate(db))

	repos := repository.New(db)
	bus := domain.NewEventBus()
	typing := service.NewTypingService(repos, bus, 30*time.Second)

	return &hubEnv{
		repos:         repos,
		bus:           bus,
		conversations: service.NewConversationService(repos, bus),
		messages:      service.NewMessageService(repos, bus),
		typing:        typing,
		hub:           NewHub(repos, typing, bus),
	}
}

func (e *hubEnv) start(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go e.hub.Run(ctx)
}

func newHubEnv(t *testing.T) *hubEnv {
	t.Helper()
	env := newIdleHubEnv(t)
	env.start(t)
	return env
}

func (e *hubEnv) createConversation(t *testing.T, userIDs ...string) *domain.Conversation {
	t.Helper()
	participants := make([]service.NewParticipant, len(userIDs))
	for i, id := range userIDs {
		participants[i] = service.NewParticipant{UserID: id, Name: "User " + id, Role: "tenant"}
	}
	conv, err := e.conversations.Create(context.Background(), "Test Conversation", domain.ConversationTypeGroup, participants, userIDs[0], service.ConversationOptions{})
	require.NoError(t, err)
	return conv
}

func waitFor[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(snapshotTimeout):
		t.Fatalf("timed out waiting for %s", what)
		panic("unreachable")
	}
}

func TestSubscribeInitialSnapshot(t *testing.T) {
	env := newHubEnv(t)
	ctx := context.Background()
	conv := env.createConversation(t, "alice", "bob")

	snapshots := make(chan []*domain.Conversation, 8)
	unsub := env.hub.SubscribeToConversations(ctx, "alice", func(conversations []*domain.Conversation) {
		snapshots <- conversations
	})
	defer unsub()

	// The current state arrives before any change happens.
	initial := waitFor(t, snapshots, "initial conversation snapshot")
	require.Len(t, initial, 1)
	assert.Equal(t, conv.ID, initial[0].ID)
}

func TestConversationSnapshotOnSend(t *testing.T) {
	env := newHubEnv(t)
	ctx := context.Background()
	conv := env.createConversation(t, "alice", "bob")

	snapshots := make(chan []*domain.Conversation, 8)
	unsub := env.hub.SubscribeToConversations(ctx, "bob", func(conversations []*domain.Conversation) {
		snapshots <- conversations
	})
	defer unsub()
	waitFor(t, snapshots, "initial snapshot")

	_, err := env.messages.Send(ctx, conv.ID, "alice", "Alice", "tenant", "hi bob", domain.SendOptions{})
	require.NoError(t, err)

	// The pushed snapshot is the full current list with fan-out applied.
	require.Eventually(t, func() bool {
		select {
		case list := <-snapshots:
			if len(list) != 1 {
				return false
			}
			c := list[0]
			return c.MessageCount == 1 &&
				c.Participants["bob"].UnreadCount == 1 &&
				c.LastMessage != nil && c.LastMessage.Content == "hi bob"
		default:
			return false
		}
	}, snapshotTimeout, 10*time.Millisecond)
}

func TestMessageSnapshotOnSend(t *testing.T) {
	env := newHubEnv(t)
	ctx := context.Background()
	conv := env.createConversation(t, "alice", "bob")

	snapshots := make(chan []*domain.Message, 8)
	unsub := env.hub.SubscribeToMessages(ctx, conv.ID, func(messages []*domain.Message) {
		snapshots <- messages
	})
	defer unsub()
	initial := waitFor(t, snapshots, "initial message snapshot")
	assert.Empty(t, initial)

	msg, err := env.messages.Send(ctx, conv.ID, "alice", "Alice", "tenant", "hello", domain.SendOptions{})
	require.NoError(t, err)

	pushed := waitFor(t, snapshots, "message snapshot after send")
	require.Len(t, pushed, 1)
	assert.Equal(t, msg.ID, pushed[0].ID)

	// Soft deleting the message pushes a snapshot without it.
	require.NoError(t, env.messages.SoftDelete(ctx, msg.ID, "alice"))
	require.Eventually(t, func() bool {
		select {
		case list := <-snapshots:
			return len(list) == 0
		default:
			return false
		}
	}, snapshotTimeout, 10*time.Millisecond)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	env := newHubEnv(t)
	ctx := context.Background()
	conv := env.createConversation(t, "alice", "bob")

	stopped := make(chan []*domain.Message, 8)
	unsub := env.hub.SubscribeToMessages(ctx, conv.ID, func(messages []*domain.Message) {
		stopped <- messages
	})
	waitFor(t, stopped, "initial snapshot")
	unsub()

	live := make(chan []*domain.Message, 8)
	unsubLive := env.hub.SubscribeToMessages(ctx, conv.ID, func(messages []*domain.Message) {
		live <- messages
	})
	defer unsubLive()
	waitFor(t, live, "initial snapshot")

	_, err := env.messages.Send(ctx, conv.ID, "alice", "Alice", "tenant", "hello", domain.SendOptions{})
	require.NoError(t, err)

	// The live observer hears about the send; the unsubscribed one does not.
	pushed := waitFor(t, live, "message snapshot after send")
	assert.Len(t, pushed, 1)

	select {
	case <-stopped:
		t.Fatal("unsubscribed observer still received a snapshot")
	default:
	}

	// Calling an unsubscribe closure twice is harmless.
	unsub()
}

func TestTypingSnapshotExcludesSelf(t *testing.T) {
	env := newHubEnv(t)
	ctx := context.Background()
	conv := env.createConversation(t, "alice", "bob")

	snapshots := make(chan []*domain.TypingIndicator, 8)
	unsub := env.hub.SubscribeToTyping(ctx, conv.ID, "alice", func(indicators []*domain.TypingIndicator) {
		snapshots <- indicators
	})
	defer unsub()
	initial := waitFor(t, snapshots, "initial typing snapshot")
	assert.Empty(t, initial)

	require.NoError(t, env.typing.SetTyping(ctx, conv.ID, "bob", "Bob", true))
	pushed := waitFor(t, snapshots, "typing snapshot")
	require.Len(t, pushed, 1)
	assert.Equal(t, "bob", pushed[0].UserID)

	// The observer's own typing never shows up in their snapshots.
	require.NoError(t, env.typing.SetTyping(ctx, conv.ID, "alice", "Alice", true))
	pushed = waitFor(t, snapshots, "typing snapshot after own typing")
	require.Len(t, pushed, 1)
	assert.Equal(t, "bob", pushed[0].UserID)
}

func TestSubscriberConvergesAfterEventBurst(t *testing.T) {
	env := newIdleHubEnv(t)
	ctx := context.Background()
	conv := env.createConversation(t, "alice", "bob")

	snapshots := make(chan []*domain.Message, 64)
	unsub := env.hub.SubscribeToMessages(ctx, conv.ID, func(messages []*domain.Message) {
		snapshots <- messages
	})
	defer unsub()
	initial := waitFor(t, snapshots, "initial message snapshot")
	assert.Empty(t, initial)

	// Flood the idle hub's buffer with churn on an unrelated conversation,
	// well past its capacity.
	for i := 0; i < 150; i++ {
		env.bus.Publish(domain.MessageChangedEvent{
			ConversationID: "unrelated",
			EventTime:      time.Now().UTC(),
		})
	}

	// This commit's events land in (or overflow) the already-full buffer.
	msg, err := env.messages.Send(ctx, conv.ID, "alice", "Alice", "tenant", "made it through", domain.SendOptions{})
	require.NoError(t, err)

	env.start(t)

	// However the burst was coalesced, the subscriber must end up seeing a
	// snapshot that contains the committed message.
	require.Eventually(t, func() bool {
		select {
		case list := <-snapshots:
			return len(list) == 1 && list[0].ID == msg.ID
		default:
			return false
		}
	}, snapshotTimeout, 10*time.Millisecond)
}

func TestConversationDeletedClearsStreams(t *testing.T) {
	env := newHubEnv(t)
	ctx := context.Background()
	conv := env.createConversation(t, "alice", "bob")

	_, err := env.messages.Send(ctx, conv.ID, "alice", "Alice", "tenant", "hello", domain.SendOptions{})
	require.NoError(t, err)

	convSnaps := make(chan []*domain.Conversation, 8)
	unsubConv := env.hub.SubscribeToConversations(ctx, "bob", func(conversations []*domain.Conversation) {
		convSnaps <- conversations
	})
	defer unsubConv()
	waitFor(t, convSnaps, "initial conversation snapshot")

	msgSnaps := make(chan []*domain.Message, 8)
	unsubMsg := env.hub.SubscribeToMessages(ctx, conv.ID, func(messages []*domain.Message) {
		msgSnaps <- messages
	})
	defer unsubMsg()
	waitFor(t, msgSnaps, "initial message snapshot")

	require.NoError(t, env.conversations.Delete(ctx, conv.ID))

	require.Eventually(t, func() bool {
		select {
		case list := <-convSnaps:
			return len(list) == 0
		default:
			return false
		}
	}, snapshotTimeout, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		select {
		case list := <-msgSnaps:
			return len(list) == 0
		default:
			return false
		}
	}, snapshotTimeout, 10*time.Millisecond)
}
