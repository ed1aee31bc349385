package domain

import (
	"time"
	"unicode/utf8"
)

type ConversationType string

const (
	ConversationTypeDirect      ConversationType = "direct"
	ConversationTypeGroup       ConversationType = "group"
	ConversationTypeProperty    ConversationType = "property"
	ConversationTypeMaintenance ConversationType = "maintenance"
)

// Participant carries a user's membership in a conversation: the profile
// snapshot taken when they joined, their per-user view settings, and the
// read watermark the unread counter is derived from.
type Participant struct {
	UserID      string
	Name        string
	Email       string
	Role        string
	AvatarURL   string
	IsOnline    bool
	JoinedAt    time.Time
	LastReadAt  *time.Time
	UnreadCount int
	IsArchived  bool
	IsMuted     bool
	IsPinned    bool
}

// LastMessage is the denormalized preview of the newest non-deleted message,
// kept on the conversation so list views never need a join.
type LastMessage struct {
	MessageID  string
	Content    string
	SenderID   string
	SenderName string
	CreatedAt  time.Time
}

const lastMessagePreviewRunes = 120

// TruncateContent shortens message content to preview length for the
// last-message snapshot.
func TruncateContent(content string) string {
	if utf8.RuneCountInString(content) <= lastMessagePreviewRunes {
		return content
	}
	runes := []rune(content)
	return string(runes[:lastMessagePreviewRunes]) + "..."
}

type Conversation struct {
	ID             string
	Title          string
	Type           ConversationType
	Description    string
	Participants   map[string]*Participant
	LastMessage    *LastMessage
	LastActivityAt time.Time
	MessageCount   int

	// Optional linkage to external domain entities.
	PropertyID           string
	PropertyName         string
	UnitID               string
	UnitNumber           string
	MaintenanceRequestID string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (c *Conversation) HasParticipant(userID string) bool {
	_, ok := c.Participants[userID]
	return ok
}

// ParticipantIDs returns the member user ids in no particular order.
func (c *Conversation) ParticipantIDs() []string {
	ids := make([]string, 0, len(c.Participants))
	for id := range c.Participants {
		ids = append(ids, id)
	}
	return ids
}

// ConversationUpdate enumerates the mutable conversation fields. Nil fields
// are left untouched.
type ConversationUpdate struct {
	Title                *string
	Description          *string
	PropertyID           *string
	PropertyName         *string
	UnitID               *string
	UnitNumber           *string
	MaintenanceRequestID *string
}

// ParticipantFlags are the per-user view preferences toggled independently
// of the conversation itself.
type ParticipantFlags struct {
	IsArchived *bool
	IsMuted    *bool
	IsPinned   *bool
}
