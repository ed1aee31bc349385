package domain

import "time"

type MessageType string

const (
	MessageTypeDirect       MessageType = "direct"
	MessageTypeNotification MessageType = "notification"
	MessageTypeAlert        MessageType = "alert"
	MessageTypeReminder     MessageType = "reminder"
)

type MessagePriority string

const (
	PriorityLow    MessagePriority = "low"
	PriorityMedium MessagePriority = "medium"
	PriorityHigh   MessagePriority = "high"
	PriorityUrgent MessagePriority = "urgent"
)

type DeliveryStatus string

const (
	DeliverySent      DeliveryStatus = "sent"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryRead      DeliveryStatus = "read"
	DeliveryFailed    DeliveryStatus = "failed"
)

// DeletedMessagePlaceholder replaces the content of soft-deleted messages.
const DeletedMessagePlaceholder = "This message has been deleted"

// MaxAttachments bounds the attachment list on a single message.
const MaxAttachments = 5

// Recipient tracks delivery and read state for one addressee of a message.
// The sender's own entry is read from the moment of creation.
type Recipient struct {
	UserID      string
	Status      DeliveryStatus
	DeliveredAt *time.Time
	ReadAt      *time.Time
}

type Reaction struct {
	ID        string
	Emoji     string
	UserID    string
	UserName  string
	CreatedAt time.Time
}

type Message struct {
	ID             string
	ConversationID string

	// ClientKey is an optional caller-generated idempotency key. Two sends
	// with the same key into the same conversation produce one message.
	ClientKey string

	Content  string
	Type     MessageType
	Priority MessagePriority

	// Sender identity is captured at send time so history stays stable
	// even if the sender's profile later changes.
	SenderID   string
	SenderName string
	SenderRole string

	Recipients map[string]*Recipient

	ParentMessageID  string
	ReplyToMessageID string
	ThreadCount      int

	Attachments []Attachment
	Mentions    []string

	IsEdited  bool
	EditedAt  *time.Time
	IsDeleted bool
	DeletedAt *time.Time

	Reactions []Reaction

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SendOptions carries the optional fields of a send call.
type SendOptions struct {
	Type             MessageType
	Priority         MessagePriority
	ParentMessageID  string
	ReplyToMessageID string
	Attachments      []Attachment
	Mentions         []string
	ClientKey        string
}
