package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tenantry/message-service/internal/domain"
)

type gormConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &gormConversationRepository{db: db}
}

func (r *gormConversationRepository) Create(ctx context.Context, conv *domain.Conversation) error {
	model := ConversationDomainToModel(conv)
	// Association insert writes the participant rows in the same statement
	// batch, so a conversation never exists without its member rows.
	return r.db.WithContext(ctx).Create(model).Error
}

func (r *gormConversationRepository) GetByID(ctx context.Context, id string) (*domain.Conversation, error) {
	var model ConversationModel
	err := r.db.WithContext(ctx).
		Preload("Participants").
		First(&model, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return ConversationModelToDomain(&model), nil
}

func (r *gormConversationRepository) GetByUserID(ctx context.Context, userID string) ([]*domain.Conversation, error) {
	var models []ConversationModel
	err := r.db.WithContext(ctx).
		Joins("JOIN conversation_participants cp ON cp.conversation_id = conversations.id").
		Where("cp.user_id = ?", userID).
		Order("conversations.last_activity_at DESC").
		Preload("Participants").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	conversations := make([]*domain.Conversation, len(models))
	for i := range models {
		conversations[i] = ConversationModelToDomain(&models[i])
	}
	return conversations, nil
}

func (r *gormConversationRepository) Update(ctx context.Context, id string, update domain.ConversationUpdate) error {
	fields := map[string]interface{}{}
	if update.Title != nil {
		fields["title"] = *update.Title
	}
	if update.Description != nil {
		fields["description"] = *update.Description
	}
	if update.PropertyID != nil {
		fields["property_id"] = *update.PropertyID
	}
	if update.PropertyName != nil {
		fields["property_name"] = *update.PropertyName
	}
	if update.UnitID != nil {
		fields["unit_id"] = *update.UnitID
	}
	if update.UnitNumber != nil {
		fields["unit_number"] = *update.UnitNumber
	}
	if update.MaintenanceRequestID != nil {
		fields["maintenance_request_id"] = *update.MaintenanceRequestID
	}
	if len(fields) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).
		Model(&ConversationModel{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *gormConversationRepository) SetParticipantFlags(ctx context.Context, conversationID, userID string, flags domain.ParticipantFlags) error {
	fields := map[string]interface{}{}
	if flags.IsArchived != nil {
		fields["is_archived"] = *flags.IsArchived
	}
	if flags.IsMuted != nil {
		fields["is_muted"] = *flags.IsMuted
	}
	if flags.IsPinned != nil {
		fields["is_pinned"] = *flags.IsPinned
	}
	if len(fields) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).
		Model(&ParticipantModel{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Updates(fields).Error
}

func (r *gormConversationRepository) SetOnline(ctx context.Context, userID string, online bool) error {
	return r.db.WithContext(ctx).
		Model(&ParticipantModel{}).
		Where("user_id = ?", userID).
		Update("is_online", online).Error
}

func (r *gormConversationRepository) ApplyMessageSend(ctx context.Context, conversationID, senderID string, last *domain.LastMessage, at time.Time) error {
	db := r.db.WithContext(ctx)

	err := db.Model(&ConversationModel{}).
		Where("id = ?", conversationID).
		Updates(map[string]interface{}{
			"last_message_id":          last.MessageID,
			"last_message_content":     last.Content,
			"last_message_sender_id":   last.SenderID,
			"last_message_sender_name": last.SenderName,
			"last_message_at":          last.CreatedAt,
			"last_activity_at":         at,
			"updated_at":               at,
			"message_count":            gorm.Expr("message_count + 1"),
		}).Error
	if err != nil {
		return err
	}

	// The sender has read everything up to their own message.
	err = db.Model(&ParticipantModel{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, senderID).
		Updates(map[string]interface{}{
			"unread_count": 0,
			"last_read_at": at,
		}).Error
	if err != nil {
		return err
	}

	// Relative increment, never an absolute set, so racing sends from two
	// clients both land.
	return db.Model(&ParticipantModel{}).
		Where("conversation_id = ? AND user_id <> ?", conversationID, senderID).
		UpdateColumn("unread_count", gorm.Expr("unread_count + ?", 1)).Error
}

func (r *gormConversationRepository) SetLastMessage(ctx context.Context, conversationID string, last *domain.LastMessage) error {
	fields := map[string]interface{}{
		"last_message_id":          "",
		"last_message_content":     "",
		"last_message_sender_id":   "",
		"last_message_sender_name": "",
		"last_message_at":          time.Time{},
	}
	if last != nil {
		fields["last_message_id"] = last.MessageID
		fields["last_message_content"] = last.Content
		fields["last_message_sender_id"] = last.SenderID
		fields["last_message_sender_name"] = last.SenderName
		fields["last_message_at"] = last.CreatedAt
	}

	return r.db.WithContext(ctx).
		Model(&ConversationModel{}).
		Where("id = ?", conversationID).
		Updates(fields).Error
}

func (r *gormConversationRepository) ResetUnread(ctx context.Context, conversationID, userID string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&ParticipantModel{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Updates(map[string]interface{}{
			"unread_count": 0,
			"last_read_at": at,
		}).Error
}

func (r *gormConversationRepository) Delete(ctx context.Context, id string) error {
	// Cascade is all-or-nothing: the conversation and every dependent row
	// disappear together or not at all.
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(
			"DELETE FROM message_reactions WHERE message_id IN (SELECT id FROM messages WHERE conversation_id = ?)", id,
		).Error; err != nil {
			return err
		}
		if err := tx.Where("conversation_id = ?", id).Delete(&RecipientModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("conversation_id = ?", id).Delete(&MessageModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("conversation_id = ?", id).Delete(&TypingModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("conversation_id = ?", id).Delete(&ParticipantModel{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&ConversationModel{}).Error
	})
}
