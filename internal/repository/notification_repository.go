package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tenantry/message-service/internal/domain"
)

type gormNotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &gormNotificationRepository{db: db}
}

func (r *gormNotificationRepository) Enqueue(ctx context.Context, notifications []*domain.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	models := make([]NotificationModel, len(notifications))
	for i, n := range notifications {
		models[i] = *NotificationDomainToModel(n)
	}
	return r.db.WithContext(ctx).Create(&models).Error
}

func (r *gormNotificationRepository) ListPending(ctx context.Context, limit int) ([]*domain.Notification, error) {
	var models []NotificationModel
	query := r.db.WithContext(ctx).
		Where("status = ?", string(domain.NotificationPending)).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	notifications := make([]*domain.Notification, len(models))
	for i := range models {
		notifications[i] = NotificationModelToDomain(&models[i])
	}
	return notifications, nil
}

func (r *gormNotificationRepository) MarkSent(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":  string(domain.NotificationSent),
			"sent_at": at,
		}).Error
}

func (r *gormNotificationRepository) MarkFailed(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":   string(domain.NotificationFailed),
			"attempts": gorm.Expr("attempts + ?", 1),
		}).Error
}
