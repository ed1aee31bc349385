package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/tenantry/message-service/internal/domain"
)

type gormAttachmentRepository struct {
	db *gorm.DB
}

func NewAttachmentRepository(db *gorm.DB) AttachmentRepository {
	return &gormAttachmentRepository{db: db}
}

func (r *gormAttachmentRepository) Create(ctx context.Context, attachment *domain.Attachment) error {
	model := AttachmentDomainToModel(attachment)
	return r.db.WithContext(ctx).Create(model).Error
}

func (r *gormAttachmentRepository) GetByID(ctx context.Context, id string) (*domain.Attachment, error) {
	var model AttachmentModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return AttachmentModelToDomain(&model), nil
}
