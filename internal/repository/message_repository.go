package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tenantry/message-service/internal/domain"
)

type gormMessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &gormMessageRepository{db: db}
}

func (r *gormMessageRepository) Create(ctx context.Context, msg *domain.Message) error {
	model := MessageDomainToModel(msg)
	return r.db.WithContext(ctx).Create(model).Error
}

func (r *gormMessageRepository) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	var model MessageModel
	err := r.db.WithContext(ctx).
		Preload("Recipients").
		Preload("Reactions").
		First(&model, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return MessageModelToDomain(&model), nil
}

func (r *gormMessageRepository) GetByClientKey(ctx context.Context, conversationID, clientKey string) (*domain.Message, error) {
	var model MessageModel
	err := r.db.WithContext(ctx).
		Preload("Recipients").
		Preload("Reactions").
		First(&model, "conversation_id = ? AND client_key = ?", conversationID, clientKey).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return MessageModelToDomain(&model), nil
}

func (r *gormMessageRepository) ListByConversation(ctx context.Context, conversationID string, limit, offset int) ([]*domain.Message, error) {
	var models []MessageModel
	query := r.db.WithContext(ctx).
		Where("conversation_id = ? AND is_deleted = ?", conversationID, false).
		Order("created_at ASC").
		Preload("Recipients").
		Preload("Reactions")

	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}

	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	messages := make([]*domain.Message, len(models))
	for i := range models {
		messages[i] = MessageModelToDomain(&models[i])
	}
	return messages, nil
}

func (r *gormMessageRepository) LatestVisible(ctx context.Context, conversationID string) (*domain.Message, error) {
	var model MessageModel
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND is_deleted = ?", conversationID, false).
		Order("created_at DESC").
		First(&model).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return MessageModelToDomain(&model), nil
}

func (r *gormMessageRepository) UpdateContent(ctx context.Context, id, content string, editedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&MessageModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"content":    content,
			"is_edited":  true,
			"edited_at":  editedAt,
			"updated_at": editedAt,
		}).Error
}

func (r *gormMessageRepository) SoftDelete(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&MessageModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"content":    domain.DeletedMessagePlaceholder,
			"is_deleted": true,
			"deleted_at": at,
			"updated_at": at,
		}).Error
}

func (r *gormMessageRepository) MarkRead(ctx context.Context, messageID, userID string, at time.Time) error {
	// The status guard makes repeated calls no-ops rather than moving the
	// read timestamp forward.
	return r.db.WithContext(ctx).
		Model(&RecipientModel{}).
		Where("message_id = ? AND user_id = ? AND status <> ?", messageID, userID, string(domain.DeliveryRead)).
		Updates(map[string]interface{}{
			"status":  string(domain.DeliveryRead),
			"read_at": at,
		}).Error
}

func (r *gormMessageRepository) MarkConversationRead(ctx context.Context, conversationID, userID string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&RecipientModel{}).
		Where(
			"conversation_id = ? AND user_id = ? AND status <> ? AND message_id IN (SELECT id FROM messages WHERE conversation_id = ? AND is_deleted = ?)",
			conversationID, userID, string(domain.DeliveryRead), conversationID, false,
		).
		Updates(map[string]interface{}{
			"status":  string(domain.DeliveryRead),
			"read_at": at,
		}).Error
}

func (r *gormMessageRepository) IncrementThreadCount(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Model(&MessageModel{}).
		Where("id = ?", id).
		UpdateColumn("thread_count", gorm.Expr("thread_count + ?", 1)).Error
}

func (r *gormMessageRepository) AddReaction(ctx context.Context, messageID string, reaction *domain.Reaction) error {
	model := &ReactionModel{
		ID:        reaction.ID,
		MessageID: messageID,
		Emoji:     reaction.Emoji,
		UserID:    reaction.UserID,
		UserName:  reaction.UserName,
		CreatedAt: reaction.CreatedAt,
	}
	return r.db.WithContext(ctx).Create(model).Error
}

func (r *gormMessageRepository) RemoveReaction(ctx context.Context, messageID, reactionID string) error {
	return r.db.WithContext(ctx).
		Where("id = ? AND message_id = ?", reactionID, messageID).
		Delete(&ReactionModel{}).Error
}

func (r *gormMessageRepository) CountByConversation(ctx context.Context, conversationID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&MessageModel{}).
		Where("conversation_id = ?", conversationID).
		Count(&count).Error
	return count, err
}
