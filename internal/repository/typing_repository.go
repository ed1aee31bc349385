package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tenantry/message-service/internal/domain"
)

type gormTypingRepository struct {
	db *gorm.DB
}

func NewTypingRepository(db *gorm.DB) TypingRepository {
	return &gormTypingRepository{db: db}
}

func (r *gormTypingRepository) Set(ctx context.Context, indicator *domain.TypingIndicator) error {
	model := TypingDomainToModel(indicator)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "conversation_id"}, {Name: "user_id"}},
		UpdateAll: true,
	}).Create(model).Error
}

func (r *gormTypingRepository) Clear(ctx context.Context, conversationID, userID string) error {
	return r.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Delete(&TypingModel{}).Error
}

func (r *gormTypingRepository) ListByConversation(ctx context.Context, conversationID string, since time.Time) ([]*domain.TypingIndicator, error) {
	var models []TypingModel
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND started_at > ?", conversationID, since).
		Order("started_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	indicators := make([]*domain.TypingIndicator, len(models))
	for i := range models {
		indicators[i] = TypingModelToDomain(&models[i])
	}
	return indicators, nil
}
