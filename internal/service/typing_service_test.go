package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenantry/message-service/internal/domain"
)

func TestTypingStartStop(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.createConversation(t, "alice", "bob")

	require.NoError(t, env.typing.SetTyping(ctx, conv.ID, "alice", "Alice", true))

	indicators, err := env.typing.List(ctx, conv.ID, "bob")
	require.NoError(t, err)
	require.Len(t, indicators, 1)
	assert.Equal(t, "alice", indicators[0].UserID)
	assert.Equal(t, "Alice", indicators[0].UserName)

	// Stop removes the record entirely; absence is the stop signal.
	require.NoError(t, env.typing.SetTyping(ctx, conv.ID, "alice", "Alice", false))

	indicators, err = env.typing.List(ctx, conv.ID, "bob")
	require.NoError(t, err)
	assert.Empty(t, indicators)
}

func TestTypingExcludesCaller(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.createConversation(t, "alice", "bob")

	require.NoError(t, env.typing.SetTyping(ctx, conv.ID, "alice", "Alice", true))
	require.NoError(t, env.typing.SetTyping(ctx, conv.ID, "bob", "Bob", true))

	indicators, err := env.typing.List(ctx, conv.ID, "alice")
	require.NoError(t, err)
	require.Len(t, indicators, 1)
	assert.Equal(t, "bob", indicators[0].UserID)
}

func TestTypingRestartRefreshes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.createConversation(t, "alice", "bob")

	require.NoError(t, env.typing.SetTyping(ctx, conv.ID, "alice", "Alice", true))
	first, err := env.typing.List(ctx, conv.ID, "bob")
	require.NoError(t, err)
	require.Len(t, first, 1)

	time.Sleep(2 * time.Millisecond)

	// Typing again upserts rather than duplicating the record.
	require.NoError(t, env.typing.SetTyping(ctx, conv.ID, "alice", "Alice", true))
	second, err := env.typing.List(ctx, conv.ID, "bob")
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.True(t, second[0].StartedAt.After(first[0].StartedAt))
}

func TestTypingStalenessWindow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.createConversation(t, "alice", "bob")

	// A record from a client that disconnected without sending stop: written
	// straight through the repository with an old timestamp.
	stale := time.Now().UTC().Add(-time.Minute)
	require.NoError(t, env.repos.Typing.Set(ctx, &domain.TypingIndicator{
		ConversationID: conv.ID,
		UserID:         "alice",
		UserName:       "Alice",
		StartedAt:      stale,
	}))
	require.NoError(t, env.typing.SetTyping(ctx, conv.ID, "bob", "Bob", true))

	indicators, err := env.typing.List(ctx, conv.ID, "carol")
	require.NoError(t, err)
	require.Len(t, indicators, 1)
	assert.Equal(t, "bob", indicators[0].UserID)
}
