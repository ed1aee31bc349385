package service

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
)

type testEnv struct {
	repos         *repository.Repositories
	bus           domain.EventBus
	conversations *ConversationService
	messages      *MessageService
	typing        *TypingService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger.Init("error")

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, repository.Migrate(db))

	repos := repository.New(db)
	bus := domain.NewEventBus()

	return &testEnv{
		repos:         repos,
		bus:           bus,
		conversations: NewConversationService(repos, bus),
		messages:      NewMessageService(repos, bus),
		typing:        NewTypingService(repos, bus, 30*time.Second),
	}
}

func (e *testEnv) createConversation(t *testing.T, userIDs ...string) *domain.Conversation {
	t.Helper()
	participants := make([]NewParticipant, len(userIDs))
	for i, id := range userIDs {
		participants[i] = NewParticipant{UserID: id, Name: "User " + id, Role: "tenant"}
	}
	conv, err := e.conversations.Create(context.Background(), "Test Conversation", domain.ConversationTypeGroup, participants, userIDs[0], ConversationOptions{})
	require.NoError(t, err)
	return conv
}

func (e *testEnv) reload(t *testing.T, conversationID string) *domain.Conversation {
	t.Helper()
	conv, err := e.repos.Conversations.GetByID(context.Background(), conversationID)
	require.NoError(t, err)
	require.NotNil(t, conv)
	return conv
}

func TestSendFanout(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.createConversation(t, "alice", "bob")

	msg, err := env.messages.Send(ctx, conv.ID, "alice", "Alice Johnson", "tenant", "hi", domain.SendOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, msg.ID)

	assert.Equal(t, domain.MessageTypeDirect, msg.Type)
	assert.Equal(t, domain.PriorityMedium, msg.Priority)

	// Recipient map is derived from the conversation's participant set.
	require.Len(t, msg.Recipients, 2)
	assert.Equal(t, domain.DeliveryRead, msg.Recipients["alice"].Status)
	require.NotNil(t, msg.Recipients["alice"].ReadAt)
	assert.Equal(t, domain.DeliverySent, msg.Recipients["bob"].Status)
	require.NotNil(t, msg.Recipients["bob"].DeliveredAt)
	assert.Nil(t, msg.Recipients["bob"].ReadAt)

	got := env.reload(t, conv.ID)
	assert.Equal(t, 1, got.MessageCount)
	assert.Equal(t, 0, got.Participants["alice"].UnreadCount)
	assert.Equal(t, 1, got.Participants["bob"].UnreadCount)
	require.NotNil(t, got.LastMessage)
	assert.Equal(t, msg.ID, got.LastMessage.MessageID)
	assert.Equal(t, "hi", got.LastMessage.Content)
	assert.Equal(t, "alice", got.LastMessage.SenderID)
}

func TestSendValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.createConversation(t, "alice", "bob")

	_, err := env.messages.Send(ctx, conv.ID, "alice", "Alice", "tenant", "   ", domain.SendOptions{})
	assert.ErrorIs(t, err, domain.ErrValidation)

	attachments := make([]domain.Attachment, domain.MaxAttachments+1)
	_, err = env.messages.Send(ctx, conv.ID, "alice", "Alice", "tenant", "hi", domain.SendOptions{Attachments: attachments})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = env.messages.Send(ctx, conv.ID, "mallory", "Mallory", "tenant", "hi", domain.SendOptions{})
	assert.ErrorIs(t, err, domain.ErrValidation)

	// None of the failed sends left any trace.
	messages, err := env.repos.Messages.ListByConversation(ctx, conv.ID, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, messages)

	got := env.reload(t, conv.ID)
	assert.Equal(t, 0, got.MessageCount)
	assert.Equal(t, 0, got.Participants["bob"].UnreadCount)
	assert.Nil(t, got.LastMessage)
}

func TestSendMissingConversation(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.messages.Send(context.Background(), "no-such-id", "alice", "Alice", "tenant", "hi", domain.SendOptions{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSendAtomicityOnFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.createConversation(t, "alice", "bob")

	_, err := env.messages.Send(ctx, conv.ID, "alice", "Alice", "tenant", "first", domain.SendOptions{})
	require.NoError(t, err)
	before := env.reload(t, conv.ID)

	// A reply to a thread parent that does not exist fails mid-transaction,
	// after the message insert: nothing of the attempt may survive.
	_, err = env.messages.Send(ctx, conv.ID, "alice", "Alice", "tenant", "second", domain.SendOptions{
		ParentMessageID: "no-such-parent",
	})
	require.Error(t, err)

	after := env.reload(t, conv.ID)
	assert.Equal(t, before.MessageCount, after.MessageCount)
	assert.Equal(t, before.Participants["bob"].UnreadCount, after.Participants["bob"].UnreadCount)
	assert.Equal(t, before.LastMessage.MessageID, after.LastMessage.MessageID)

	messages, err := env.repos.Messages.ListByConversation(ctx, conv.ID, 0, 0)
	require.NoError(t, err)
	assert.Len(t, messages, 1)
}

func TestSendClientKeyDedup(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.createConversation(t, "alice", "bob")

	opts := domain.SendOptions{ClientKey: "retry-1"}
	first, err := env.messages.Send(ctx, conv.ID, "alice", "Alice", "tenant", "hello", opts)
	require.NoError(t, err)

	// A retried send with the same key returns the committed message
	// instead of creating a duplicate.
	second, err := env.messages.Send(ctx, conv.ID, "alice", "Alice", "tenant", "hello", opts)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	got := env.reload(t, conv.ID)
	assert.Equal(t, 1, got.MessageCount)
	assert.Equal(t, 1, got.Participants["bob"].UnreadCount)
}

// delayedKeyRepo hides the first client-key lookup, standing in for a
// concurrent send that commits between the dedup pre-check and the insert.
type delayedKeyRepo struct {
	repository.MessageRepository
	misses int
}

func (r *delayedKeyRepo) GetByClientKey(ctx context.Context, conversationID, clientKey string) (*domain.Message, error) {
	if r.misses > 0 {
		r.misses--
		return nil, nil
	}
	return r.MessageRepository.GetByClientKey(ctx, conversationID, clientKey)
}

func TestSendClientKeyRace(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.createConversation(t, "alice", "bob")

	opts := domain.SendOptions{ClientKey: "race-1"}
	first, err := env.messages.Send(ctx, conv.ID, "alice", "Alice", "tenant", "hello", opts)
	require.NoError(t, err)

	// The losing side of the race: its pre-check ran before the winner
	// committed, so the insert collides with the unique index. The conflict
	// resolves to the winner's message, not an error.
	env.repos.Messages = &delayedKeyRepo{MessageRepository: env.repos.Messages, misses: 1}

	second, err := env.messages.Send(ctx, conv.ID, "alice", "Alice", "tenant", "hello", opts)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	got := env.reload(t, conv.ID)
	assert.Equal(t, 1, got.MessageCount)
	assert.Equal(t, 1, got.Participants["bob"].UnreadCount)
}

func TestMarkConversationRead(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.createConversation(t, "alice", "bob")

	msg, err := env.messages.Send(ctx, conv.ID, "alice", "Alice", "tenant", "hi", domain.SendOptions{})
	require.NoError(t, err)

	got := env.reload(t, conv.ID)
	require.Equal(t, 1, got.Participants["bob"].UnreadCount)

	require.NoError(t, env.messages.MarkConversationRead(ctx, conv.ID, "bob"))

	got = env.reload(t, conv.ID)
	assert.Equal(t, 0, got.Participants["bob"].UnreadCount)
	require.NotNil(t, got.Participants["bob"].LastReadAt)

	reloaded, err := env.repos.Messages.GetByID(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryRead, reloaded.Recipients["bob"].Status)
	require.NotNil(t, reloaded.Recipients["bob"].ReadAt)

	// Acknowledging an already-read conversation changes nothing.
	require.NoError(t, env.messages.MarkConversationRead(ctx, conv.ID, "bob"))
	again := env.reload(t, conv.ID)
	assert.Equal(t, 0, again.Participants["bob"].UnreadCount)
}

func TestMarkConversationReadErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.createConversation(t, "alice", "bob")

	assert.ErrorIs(t, env.messages.MarkConversationRead(ctx, "no-such-id", "bob"), domain.ErrNotFound)
	assert.ErrorIs(t, env.messages.MarkConversationRead(ctx, conv.ID, "mallory"), domain.ErrValidation)
}

func TestUnreadCounterInvariant(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.createConversation(t, "alice", "bob", "carol")

	send := func(sender string) {
		t.Helper()
		_, err := env.messages.Send(ctx, conv.ID, sender, "User "+sender, "tenant", "msg from "+sender, domain.SendOptions{})
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}

	send("alice")
	send("bob")
	send("alice")

	got := env.reload(t, conv.ID)
	// alice has not seen bob's message; her own sends reset her counter
	// but bob sent after her first message and before her second, and her
	// own later send resets her again.
	assert.Equal(t, 0, got.Participants["alice"].UnreadCount)
	assert.Equal(t, 1, got.Participants["bob"].UnreadCount) // alice's second message
	assert.Equal(t, 3, got.Participants["carol"].UnreadCount)

	require.NoError(t, env.messages.MarkConversationRead(ctx, conv.ID, "carol"))
	time.Sleep(2 * time.Millisecond)
	send("bob")

	got = env.reload(t, conv.ID)
	assert.Equal(t, 1, got.Participants["alice"].UnreadCount)
	assert.Equal(t, 0, got.Participants["bob"].UnreadCount)
	assert.Equal(t, 1, got.Participants["carol"].UnreadCount)

	// Counters match messages created after each participant's watermark
	// by someone else.
	messages, err := env.repos.Messages.ListByConversation(ctx, conv.ID, 0, 0)
	require.NoError(t, err)
	for userID, p := range got.Participants {
		expected := 0
		for _, m := range messages {
			if m.SenderID == userID {
				continue
			}
			if p.LastReadAt == nil || m.CreatedAt.After(*p.LastReadAt) {
				expected++
			}
		}
		assert.Equal(t, expected, p.UnreadCount, "unread counter for %s", userID)
	}
}

func TestMarkReadIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.createConversation(t, "alice", "bob")

	msg, err := env.messages.Send(ctx, conv.ID, "alice", "Alice", "tenant", "hi", domain.SendOptions{})
	require.NoError(t, err)

	require.NoError(t, env.messages.MarkRead(ctx, msg.ID, "bob"))
	first, err := env.repos.Messages.GetByID(ctx, msg.ID)
	require.NoError(t, err)
	require.Equal(t, domain.DeliveryRead, first.Recipients["bob"].Status)
	require.NotNil(t, first.Recipients["bob"].ReadAt)

	require.NoError(t, env.messages.MarkRead(ctx, msg.ID, "bob"))
	second, err := env.repos.Messages.GetByID(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Recipients["bob"].ReadAt.UnixNano(), second.Recipients["bob"].ReadAt.UnixNano())
}

func TestMarkReadErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.createConversation(t, "alice", "bob")

	msg, err := env.messages.Send(ctx, conv.ID, "alice", "Alice", "tenant", "hi", domain.SendOptions{})
	require.NoError(t, err)

	assert.ErrorIs(t, env.messages.MarkRead(ctx, "no-such-id", "bob"), domain.ErrNotFound)
	assert.ErrorIs(t, env.messages.MarkRead(ctx, msg.ID, "mallory"), domain.ErrValidation)
}

func TestEditAuthorization(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.createConversation(t, "alice", "bob")

	msg, err := env.messages.Send(ctx, conv.ID, "alice", "Alice", "tenant", "draft text", domain.SendOptions{})
	require.NoError(t, err)

	err = env.messages.Edit(ctx, msg.ID, "bob's edit", "bob")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	// Content untouched after the failed edit.
	unchanged, err := env.repos.Messages.GetByID(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "draft text", unchanged.Content)
	assert.False(t, unchanged.IsEdited)

	require.NoError(t, env.messages.Edit(ctx, msg.ID, "final text", "alice"))
	edited, err := env.repos.Messages.GetByID(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "final text", edited.Content)
	assert.True(t, edited.IsEdited)
	require.NotNil(t, edited.EditedAt)

	// The conversation's last-message snapshot follows the edit.
	got := env.reload(t, conv.ID)
	require.NotNil(t, got.LastMessage)
	assert.Equal(t, "final text", got.LastMessage.Content)
}

func TestEditErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.createConversation(t, "alice", "bob")

	assert.ErrorIs(t, env.messages.Edit(ctx, "no-such-id", "text", "alice"), domain.ErrNotFound)

	msg, err := env.messages.Send(ctx, conv.ID, "alice", "Alice", "tenant", "hi", domain.SendOptions{})
	require.NoError(t, err)
	require.NoError(t, env.messages.SoftDelete(ctx, msg.ID, "alice"))

	assert.ErrorIs(t, env.messages.Edit(ctx, msg.ID, "text", "alice"), domain.ErrValidation)
}

func TestSoftDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.createConversation(t, "alice", "bob")

	first, err := env.messages.Send(ctx, conv.ID, "alice", "Alice", "tenant", "first", domain.SendOptions{})
	require.NoError(t, err)
	second, err := env.messages.Send(ctx, conv.ID, "bob", "Bob", "tenant", "second", domain.SendOptions{})
	require.NoError(t, err)

	err = env.messages.SoftDelete(ctx, second.ID, "alice")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	require.NoError(t, env.messages.SoftDelete(ctx, second.ID, "bob"))

	// Deleted messages drop out of listings.
	visible, err := env.repos.Messages.ListByConversation(ctx, conv.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, first.ID, visible[0].ID)

	// The tombstone keeps the row with placeholder content.
	deleted, err := env.repos.Messages.GetByID(ctx, second.ID)
	require.NoError(t, err)
	assert.True(t, deleted.IsDeleted)
	assert.Equal(t, domain.DeletedMessagePlaceholder, deleted.Content)

	got := env.reload(t, conv.ID)
	// Message count reflects creation history, not current visibility.
	assert.Equal(t, 2, got.MessageCount)
	// The snapshot falls back to the newest surviving message.
	require.NotNil(t, got.LastMessage)
	assert.Equal(t, first.ID, got.LastMessage.MessageID)
	assert.Equal(t, "first", got.LastMessage.Content)

	// Deleting the only remaining message clears the snapshot.
	require.NoError(t, env.messages.SoftDelete(ctx, first.ID, "alice"))
	got = env.reload(t, conv.ID)
	assert.Nil(t, got.LastMessage)
	assert.Equal(t, 2, got.MessageCount)

	// Deleting twice is a no-op.
	require.NoError(t, env.messages.SoftDelete(ctx, first.ID, "alice"))
}

func TestSoftDeleteKeepsUnreadCounters(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.createConversation(t, "alice", "bob")

	kept, err := env.messages.Send(ctx, conv.ID, "alice", "Alice", "tenant", "one", domain.SendOptions{})
	require.NoError(t, err)
	deleted, err := env.messages.Send(ctx, conv.ID, "alice", "Alice", "tenant", "two", domain.SendOptions{})
	require.NoError(t, err)

	got := env.reload(t, conv.ID)
	require.Equal(t, 2, got.Participants["bob"].UnreadCount)

	// The counter is watermark-based: deleting a message does not rewind it.
	// Only the recipient's own acknowledgment moves the watermark.
	require.NoError(t, env.messages.SoftDelete(ctx, deleted.ID, "alice"))
	got = env.reload(t, conv.ID)
	assert.Equal(t, 2, got.Participants["bob"].UnreadCount)

	require.NoError(t, env.messages.MarkConversationRead(ctx, conv.ID, "bob"))
	got = env.reload(t, conv.ID)
	assert.Equal(t, 0, got.Participants["bob"].UnreadCount)

	// The acknowledgment writes a receipt on the surviving message but skips
	// the tombstone.
	survivor, err := env.repos.Messages.GetByID(ctx, kept.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryRead, survivor.Recipients["bob"].Status)

	tombstone, err := env.repos.Messages.GetByID(ctx, deleted.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeliverySent, tombstone.Recipients["bob"].Status)
}

func TestMessageOrdering(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.createConversation(t, "alice", "bob")

	var ids []string
	for i := 0; i < 5; i++ {
		sender := "alice"
		if i%2 == 1 {
			sender = "bob"
		}
		msg, err := env.messages.Send(ctx, conv.ID, sender, "User", "tenant", "msg", domain.SendOptions{})
		require.NoError(t, err)
		ids = append(ids, msg.ID)
		time.Sleep(time.Millisecond)
	}

	messages, err := env.repos.Messages.ListByConversation(ctx, conv.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, messages, 5)
	for i, msg := range messages {
		assert.Equal(t, ids[i], msg.ID)
		if i > 0 {
			assert.False(t, msg.CreatedAt.Before(messages[i-1].CreatedAt))
		}
	}
}

func TestThreadReply(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.createConversation(t, "alice", "bob")

	parent, err := env.messages.Send(ctx, conv.ID, "alice", "Alice", "tenant", "parent", domain.SendOptions{})
	require.NoError(t, err)

	reply, err := env.messages.Send(ctx, conv.ID, "bob", "Bob", "tenant", "reply", domain.SendOptions{
		ParentMessageID:  parent.ID,
		ReplyToMessageID: parent.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, parent.ID, reply.ParentMessageID)

	reloaded, err := env.repos.Messages.GetByID(ctx, parent.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.ThreadCount)
}

func TestReactions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.createConversation(t, "alice", "bob")

	msg, err := env.messages.Send(ctx, conv.ID, "alice", "Alice", "tenant", "hi", domain.SendOptions{})
	require.NoError(t, err)

	reaction, err := env.messages.React(ctx, msg.ID, "bob", "Bob", "👍")
	require.NoError(t, err)

	reloaded, err := env.repos.Messages.GetByID(ctx, msg.ID)
	require.NoError(t, err)
	require.Len(t, reloaded.Reactions, 1)
	assert.Equal(t, "👍", reloaded.Reactions[0].Emoji)

	// Only the author may remove a reaction.
	err = env.messages.Unreact(ctx, msg.ID, reaction.ID, "alice")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	require.NoError(t, env.messages.Unreact(ctx, msg.ID, reaction.ID, "bob"))
	reloaded, err = env.repos.Messages.GetByID(ctx, msg.ID)
	require.NoError(t, err)
	assert.Empty(t, reloaded.Reactions)
}

func TestSendEnqueuesNotifications(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.createConversation(t, "alice", "bob", "carol")

	msg, err := env.messages.Send(ctx, conv.ID, "alice", "Alice", "tenant", "hello everyone", domain.SendOptions{})
	require.NoError(t, err)

	pending, err := env.repos.Notifications.ListPending(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	recipients := map[string]bool{}
	for _, n := range pending {
		recipients[n.UserID] = true
		assert.Equal(t, msg.ID, n.MessageID)
		assert.Equal(t, conv.ID, n.ConversationID)
	}
	assert.True(t, recipients["bob"])
	assert.True(t, recipients["carol"])
	assert.False(t, recipients["alice"])
}
