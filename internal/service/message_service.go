package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tenantry/message-service/internal/domain"
	"github.com/tenantry/message-service/internal/logger"
	"github.com/tenantry/message-service/internal/repository"
)

// MessageService is the fan-out coordinator: every message enters the system
// through Send, which persists the message and the conversation bookkeeping
// in one transaction. Read acknowledgments, edits, deletes, and reactions
// also live here because they share the same authorization and consistency
// rules.
type MessageService struct {
	repos *repository.Repositories
	bus   domain.EventBus
	log   zerolog.Logger
}

func NewMessageService(repos *repository.Repositories, bus domain.EventBus) *MessageService {
	return &MessageService{
		repos: repos,
		bus:   bus,
		log:   logger.Module("message-service"),
	}
}

// Send appends a message to a conversation. The participant set comes from
// the conversation record, never from the caller, and the message insert plus
// all counter updates commit atomically: a reader can never observe one
// without the other. Notification enqueue happens after commit and is
// best-effort.
func (s *MessageService) Send(ctx context.Context, conversationID, senderID, senderName, senderRole, content string, opts domain.SendOptions) (*domain.Message, error) {
	if strings.TrimSpace(content) == "" && len(opts.Attachments) == 0 {
		return nil, domain.ErrEmptyContent
	}
	if len(opts.Attachments) > domain.MaxAttachments {
		return nil, domain.ErrTooManyAttachments
	}

	// A retried send with the same client key returns the message the
	// earlier attempt already committed instead of inserting a duplicate.
	if opts.ClientKey != "" {
		existing, err := s.repos.Messages.GetByClientKey(ctx, conversationID, opts.ClientKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	msgType := opts.Type
	if msgType == "" {
		msgType = domain.MessageTypeDirect
	}
	priority := opts.Priority
	if priority == "" {
		priority = domain.PriorityMedium
	}

	now := time.Now().UTC()
	var msg *domain.Message
	var conv *domain.Conversation

	err := s.repos.Atomic(ctx, func(tx *repository.Repositories) error {
		var err error
		conv, err = tx.Conversations.GetByID(ctx, conversationID)
		if err != nil {
			return err
		}
		if conv == nil {
			return domain.ErrConversationNotFound
		}
		if !conv.HasParticipant(senderID) {
			return domain.ErrNotParticipant
		}

		recipients := make(map[string]*domain.Recipient, len(conv.Participants))
		for userID := range conv.Participants {
			if userID == senderID {
				readAt := now
				recipients[userID] = &domain.Recipient{
					UserID:      userID,
					Status:      domain.DeliveryRead,
					DeliveredAt: &readAt,
					ReadAt:      &readAt,
				}
				continue
			}
			deliveredAt := now
			recipients[userID] = &domain.Recipient{
				UserID:      userID,
				Status:      domain.DeliverySent,
				DeliveredAt: &deliveredAt,
			}
		}

		msg = &domain.Message{
			ID:               uuid.New().String(),
			ConversationID:   conversationID,
			ClientKey:        opts.ClientKey,
			Content:          content,
			Type:             msgType,
			Priority:         priority,
			SenderID:         senderID,
			SenderName:       senderName,
			SenderRole:       senderRole,
			Recipients:       recipients,
			ParentMessageID:  opts.ParentMessageID,
			ReplyToMessageID: opts.ReplyToMessageID,
			Attachments:      opts.Attachments,
			Mentions:         opts.Mentions,
			CreatedAt:        now,
			UpdatedAt:        now,
		}

		if err := tx.Messages.Create(ctx, msg); err != nil {
			return err
		}

		if opts.ParentMessageID != "" {
			parent, err := tx.Messages.GetByID(ctx, opts.ParentMessageID)
			if err != nil {
				return err
			}
			if parent == nil || parent.ConversationID != conversationID {
				return fmt.Errorf("thread parent %w", domain.ErrNotFound)
			}
			if err := tx.Messages.IncrementThreadCount(ctx, opts.ParentMessageID); err != nil {
				return err
			}
		}

		last := &domain.LastMessage{
			MessageID:  msg.ID,
			Content:    domain.TruncateContent(content),
			SenderID:   senderID,
			SenderName: senderName,
			CreatedAt:  now,
		}
		return tx.Conversations.ApplyMessageSend(ctx, conversationID, senderID, last, now)
	})
	if err != nil {
		// A concurrent send with the same key can commit between the
		// pre-check and the insert, turning the unique index into a
		// conflict here. That racer's message is the answer.
		if opts.ClientKey != "" {
			if existing, lookupErr := s.repos.Messages.GetByClientKey(ctx, conversationID, opts.ClientKey); lookupErr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, err
	}

	// Outside the atomic boundary: a failed enqueue never rolls back the
	// committed message.
	s.enqueueNotifications(ctx, conv, msg)

	s.bus.Publish(domain.MessageChangedEvent{
		ConversationID: conversationID,
		MessageID:      msg.ID,
		EventTime:      now,
	})
	s.bus.Publish(domain.ConversationChangedEvent{
		ConversationID: conversationID,
		ParticipantIDs: conv.ParticipantIDs(),
		EventTime:      now,
	})

	return msg, nil
}

func (s *MessageService) enqueueNotifications(ctx context.Context, conv *domain.Conversation, msg *domain.Message) {
	title := conv.Title
	if title == "" {
		title = msg.SenderName
	}

	var notifications []*domain.Notification
	for userID := range conv.Participants {
		if userID == msg.SenderID {
			continue
		}
		notifications = append(notifications, &domain.Notification{
			ID:             uuid.New().String(),
			UserID:         userID,
			ConversationID: conv.ID,
			MessageID:      msg.ID,
			Title:          title,
			Body:           domain.TruncateContent(msg.Content),
			Priority:       msg.Priority,
			Status:         domain.NotificationPending,
			CreatedAt:      msg.CreatedAt,
		})
	}

	if err := s.repos.Notifications.Enqueue(ctx, notifications); err != nil {
		s.log.Error().Err(err).
			Str("conversation_id", conv.ID).
			Str("message_id", msg.ID).
			Msg("failed to enqueue notifications")
	}
}

// MarkConversationRead zeroes the caller's unread counter, moves their read
// watermark, and marks every unread recipient entry in the conversation as
// read, all in one transaction.
func (s *MessageService) MarkConversationRead(ctx context.Context, conversationID, userID string) error {
	now := time.Now().UTC()
	var conv *domain.Conversation

	err := s.repos.Atomic(ctx, func(tx *repository.Repositories) error {
		var err error
		conv, err = tx.Conversations.GetByID(ctx, conversationID)
		if err != nil {
			return err
		}
		if conv == nil {
			return domain.ErrConversationNotFound
		}
		if !conv.HasParticipant(userID) {
			return domain.ErrNotParticipant
		}

		if err := tx.Messages.MarkConversationRead(ctx, conversationID, userID, now); err != nil {
			return err
		}
		return tx.Conversations.ResetUnread(ctx, conversationID, userID, now)
	})
	if err != nil {
		return err
	}

	s.bus.Publish(domain.MessageChangedEvent{
		ConversationID: conversationID,
		EventTime:      now,
	})
	s.bus.Publish(domain.ConversationChangedEvent{
		ConversationID: conversationID,
		ParticipantIDs: conv.ParticipantIDs(),
		EventTime:      now,
	})
	return nil
}

// MarkRead records a single recipient's read receipt. Marking an already
// read message again is a no-op. The unread counter is watermark-based and
// only moves through MarkConversationRead.
func (s *MessageService) MarkRead(ctx context.Context, messageID, userID string) error {
	msg, err := s.repos.Messages.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg == nil {
		return domain.ErrMessageNotFound
	}

	recipient, ok := msg.Recipients[userID]
	if !ok {
		return domain.ErrNotParticipant
	}
	if recipient.Status == domain.DeliveryRead {
		return nil
	}

	now := time.Now().UTC()
	if err := s.repos.Messages.MarkRead(ctx, messageID, userID, now); err != nil {
		return err
	}

	s.bus.Publish(domain.MessageChangedEvent{
		ConversationID: msg.ConversationID,
		MessageID:      messageID,
		EventTime:      now,
	})
	return nil
}

// Edit replaces a message's content. Only the original sender may edit, and
// a failed authorization leaves the content untouched.
func (s *MessageService) Edit(ctx context.Context, messageID, newContent, editorID string) error {
	if strings.TrimSpace(newContent) == "" {
		return domain.ErrEmptyContent
	}

	msg, err := s.repos.Messages.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg == nil {
		return domain.ErrMessageNotFound
	}
	if msg.IsDeleted {
		return domain.ErrMessageDeleted
	}
	if msg.SenderID != editorID {
		return domain.ErrNotSender
	}

	now := time.Now().UTC()
	snapshotStale := false

	err = s.repos.Atomic(ctx, func(tx *repository.Repositories) error {
		if err := tx.Messages.UpdateContent(ctx, messageID, newContent, now); err != nil {
			return err
		}

		conv, err := tx.Conversations.GetByID(ctx, msg.ConversationID)
		if err != nil {
			return err
		}
		if conv != nil && conv.LastMessage != nil && conv.LastMessage.MessageID == messageID {
			snapshotStale = true
			last := *conv.LastMessage
			last.Content = domain.TruncateContent(newContent)
			return tx.Conversations.SetLastMessage(ctx, conv.ID, &last)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.bus.Publish(domain.MessageChangedEvent{
		ConversationID: msg.ConversationID,
		MessageID:      messageID,
		EventTime:      now,
	})
	if snapshotStale {
		s.bus.Publish(domain.ConversationChangedEvent{
			ConversationID: msg.ConversationID,
			EventTime:      now,
		})
	}
	return nil
}

// SoftDelete tombstones a message: the content becomes a fixed placeholder
// and the record drops out of subscription snapshots but is never physically
// removed while the conversation exists. If the deleted message was the
// conversation's last-message snapshot, the snapshot is recomputed to the
// newest surviving message.
func (s *MessageService) SoftDelete(ctx context.Context, messageID, requesterID string) error {
	msg, err := s.repos.Messages.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg == nil {
		return domain.ErrMessageNotFound
	}
	if msg.SenderID != requesterID {
		return domain.ErrNotSender
	}
	if msg.IsDeleted {
		return nil
	}

	now := time.Now().UTC()

	err = s.repos.Atomic(ctx, func(tx *repository.Repositories) error {
		if err := tx.Messages.SoftDelete(ctx, messageID, now); err != nil {
			return err
		}

		conv, err := tx.Conversations.GetByID(ctx, msg.ConversationID)
		if err != nil {
			return err
		}
		if conv == nil || conv.LastMessage == nil || conv.LastMessage.MessageID != messageID {
			return nil
		}

		latest, err := tx.Messages.LatestVisible(ctx, msg.ConversationID)
		if err != nil {
			return err
		}
		if latest == nil {
			return tx.Conversations.SetLastMessage(ctx, conv.ID, nil)
		}
		return tx.Conversations.SetLastMessage(ctx, conv.ID, &domain.LastMessage{
			MessageID:  latest.ID,
			Content:    domain.TruncateContent(latest.Content),
			SenderID:   latest.SenderID,
			SenderName: latest.SenderName,
			CreatedAt:  latest.CreatedAt,
		})
	})
	if err != nil {
		return err
	}

	s.bus.Publish(domain.MessageChangedEvent{
		ConversationID: msg.ConversationID,
		MessageID:      messageID,
		EventTime:      now,
	})
	s.bus.Publish(domain.ConversationChangedEvent{
		ConversationID: msg.ConversationID,
		EventTime:      now,
	})
	return nil
}

// React adds an emoji reaction to a message.
func (s *MessageService) React(ctx context.Context, messageID, userID, userName, emoji string) (*domain.Reaction, error) {
	if strings.TrimSpace(emoji) == "" {
		return nil, fmt.Errorf("%w: emoji is empty", domain.ErrValidation)
	}

	msg, err := s.repos.Messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, domain.ErrMessageNotFound
	}
	if msg.IsDeleted {
		return nil, domain.ErrMessageDeleted
	}

	reaction := &domain.Reaction{
		ID:        uuid.New().String(),
		Emoji:     emoji,
		UserID:    userID,
		UserName:  userName,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repos.Messages.AddReaction(ctx, messageID, reaction); err != nil {
		return nil, err
	}

	s.bus.Publish(domain.MessageChangedEvent{
		ConversationID: msg.ConversationID,
		MessageID:      messageID,
		EventTime:      reaction.CreatedAt,
	})
	return reaction, nil
}

// Unreact removes a reaction; only its author may do so.
func (s *MessageService) Unreact(ctx context.Context, messageID, reactionID, requesterID string) error {
	msg, err := s.repos.Messages.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg == nil {
		return domain.ErrMessageNotFound
	}

	var reaction *domain.Reaction
	for i := range msg.Reactions {
		if msg.Reactions[i].ID == reactionID {
			reaction = &msg.Reactions[i]
			break
		}
	}
	if reaction == nil {
		return fmt.Errorf("reaction %w", domain.ErrNotFound)
	}
	if reaction.UserID != requesterID {
		return fmt.Errorf("%w: only the reaction author may remove it", domain.ErrUnauthorized)
	}

	if err := s.repos.Messages.RemoveReaction(ctx, messageID, reactionID); err != nil {
		return err
	}

	s.bus.Publish(domain.MessageChangedEvent{
		ConversationID: msg.ConversationID,
		MessageID:      messageID,
		EventTime:      time.Now().UTC(),
	})
	return nil
}

func (s *MessageService) GetMessage(ctx context.Context, id string) (*domain.Message, error) {
	msg, err := s.repos.Messages.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, domain.ErrMessageNotFound
	}
	return msg, nil
}

func (s *MessageService) GetMessages(ctx context.Context, conversationID string, limit, offset int) ([]*domain.Message, error) {
	return s.repos.Messages.ListByConversation(ctx, conversationID, limit, offset)
}
