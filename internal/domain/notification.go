package domain

import "time"

type NotificationStatus string

const (
	NotificationPending NotificationStatus = "pending"
	NotificationSent    NotificationStatus = "sent"
	NotificationFailed  NotificationStatus = "failed"
)

// Notification is a write-only fan-out record handed to the delivery
// collaborator. Delivery is best-effort and never rolls back the message
// it was created for.
type Notification struct {
	ID             string
	UserID         string
	ConversationID string
	MessageID      string
	Title          string
	Body           string
	Priority       MessagePriority
	Status         NotificationStatus
	Attempts       int
	CreatedAt      time.Time
	SentAt         *time.Time
}
