package repository

import (
	"context"
	"time"

	"github.com/tenantry/message-service/internal/domain"
)

// Single-record getters return (nil, nil) when the record does not exist;
// services translate that into the not-found taxonomy.

type ConversationRepository interface {
	Create(ctx context.Context, conv *domain.Conversation) error
	GetByID(ctx context.Context, id string) (*domain.Conversation, error)
	GetByUserID(ctx context.Context, userID string) ([]*domain.Conversation, error)
	Update(ctx context.Context, id string, update domain.ConversationUpdate) error
	SetParticipantFlags(ctx context.Context, conversationID, userID string, flags domain.ParticipantFlags) error
	SetOnline(ctx context.Context, userID string, online bool) error

	// ApplyMessageSend performs the conversation side of a fan-out write:
	// last-message snapshot, activity timestamp, message count, sender
	// counter reset and a relative +1 for every other participant. It must
	// run inside the same transaction as the message insert.
	ApplyMessageSend(ctx context.Context, conversationID, senderID string, last *domain.LastMessage, at time.Time) error

	// SetLastMessage overwrites the denormalized snapshot, or clears it
	// when last is nil.
	SetLastMessage(ctx context.Context, conversationID string, last *domain.LastMessage) error

	// ResetUnread zeroes a participant's counter and stamps their read
	// watermark.
	ResetUnread(ctx context.Context, conversationID, userID string, at time.Time) error

	Delete(ctx context.Context, id string) error
}

type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	GetByID(ctx context.Context, id string) (*domain.Message, error)
	GetByClientKey(ctx context.Context, conversationID, clientKey string) (*domain.Message, error)
	ListByConversation(ctx context.Context, conversationID string, limit, offset int) ([]*domain.Message, error)
	LatestVisible(ctx context.Context, conversationID string) (*domain.Message, error)
	UpdateContent(ctx context.Context, id, content string, editedAt time.Time) error
	SoftDelete(ctx context.Context, id string, at time.Time) error
	MarkRead(ctx context.Context, messageID, userID string, at time.Time) error
	MarkConversationRead(ctx context.Context, conversationID, userID string, at time.Time) error
	IncrementThreadCount(ctx context.Context, id string) error
	AddReaction(ctx context.Context, messageID string, reaction *domain.Reaction) error
	RemoveReaction(ctx context.Context, messageID, reactionID string) error
	CountByConversation(ctx context.Context, conversationID string) (int64, error)
}

type TypingRepository interface {
	Set(ctx context.Context, indicator *domain.TypingIndicator) error
	Clear(ctx context.Context, conversationID, userID string) error
	ListByConversation(ctx context.Context, conversationID string, since time.Time) ([]*domain.TypingIndicator, error)
}

type NotificationRepository interface {
	Enqueue(ctx context.Context, notifications []*domain.Notification) error
	ListPending(ctx context.Context, limit int) ([]*domain.Notification, error)
	MarkSent(ctx context.Context, id string, at time.Time) error
	MarkFailed(ctx context.Context, id string) error
}

type AttachmentRepository interface {
	Create(ctx context.Context, attachment *domain.Attachment) error
	GetByID(ctx context.Context, id string) (*domain.Attachment, error)
}
