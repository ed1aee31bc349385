package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repositories bundles every repository over one gorm handle so services can
// run multi-aggregate writes atomically.
type Repositories struct {
	db *gorm.DB

	Conversations ConversationRepository
	Messages      MessageRepository
	Typing        TypingRepository
	Notifications NotificationRepository
	Attachments   AttachmentRepository
}

func New(db *gorm.DB) *Repositories {
	return &Repositories{
		db:            db,
		Conversations: NewConversationRepository(db),
		Messages:      NewMessageRepository(db),
		Typing:        NewTypingRepository(db),
		Notifications: NewNotificationRepository(db),
		Attachments:   NewAttachmentRepository(db),
	}
}

// Atomic runs fn against a repository set scoped to a single transaction.
// Any error rolls the whole batch back; nested calls become savepoints.
func (r *Repositories) Atomic(ctx context.Context, fn func(tx *Repositories) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(New(tx))
	})
}

// Migrate creates or updates the schema for every model owned by this
// package.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&ConversationModel{},
		&ParticipantModel{},
		&MessageModel{},
		&RecipientModel{},
		&ReactionModel{},
		&TypingModel{},
		&NotificationModel{},
		&AttachmentModel{},
	)
}
