package rest

import (
	"time"

	"github.com/tenantry/message-service/internal/domain"
)

// JSON view models for the API surface. Domain types stay tag-free; these
// own the wire shape.

type participantView struct {
	UserID      string     `json:"userId"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Role        string     `json:"role"`
	AvatarURL   string     `json:"avatarUrl,omitempty"`
	IsOnline    bool       `json:"isOnline"`
	JoinedAt    time.Time  `json:"joinedAt"`
	LastReadAt  *time.Time `json:"lastReadAt,omitempty"`
	UnreadCount int        `json:"unreadCount"`
	IsArchived  bool       `json:"isArchived"`
	IsMuted     bool       `json:"isMuted"`
	IsPinned    bool       `json:"isPinned"`
}

type lastMessageView struct {
	MessageID  string    `json:"messageId"`
	Content    string    `json:"content"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	CreatedAt  time.Time `json:"createdAt"`
}

type conversationView struct {
	ID                   string                     `json:"id"`
	Title                string                     `json:"title"`
	Type                 string                     `json:"type"`
	Description          string                     `json:"description,omitempty"`
	Participants         map[string]participantView `json:"participants"`
	LastMessage          *lastMessageView           `json:"lastMessage,omitempty"`
	LastActivityAt       time.Time                  `json:"lastActivityAt"`
	MessageCount         int                        `json:"messageCount"`
	PropertyID           string                     `json:"propertyId,omitempty"`
	PropertyName         string                     `json:"propertyName,omitempty"`
	UnitID               string                     `json:"unitId,omitempty"`
	UnitNumber           string                     `json:"unitNumber,omitempty"`
	MaintenanceRequestID string                     `json:"maintenanceRequestId,omitempty"`
	CreatedAt            time.Time                  `json:"createdAt"`
	UpdatedAt            time.Time                  `json:"updatedAt"`
}

type recipientView struct {
	UserID      string     `json:"userId"`
	Status      string     `json:"status"`
	DeliveredAt *time.Time `json:"deliveredAt,omitempty"`
	ReadAt      *time.Time `json:"readAt,omitempty"`
}

type reactionView struct {
	ID        string    `json:"id"`
	Emoji     string    `json:"emoji"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	CreatedAt time.Time `json:"createdAt"`
}

type messageView struct {
	ID               string                   `json:"id"`
	ConversationID   string                   `json:"conversationId"`
	Content          string                   `json:"content"`
	Type             string                   `json:"type"`
	Priority         string                   `json:"priority"`
	SenderID         string                   `json:"senderId"`
	SenderName       string                   `json:"senderName"`
	SenderRole       string                   `json:"senderRole"`
	Recipients       map[string]recipientView `json:"recipients"`
	ParentMessageID  string                   `json:"parentMessageId,omitempty"`
	ReplyToMessageID string                   `json:"replyToMessageId,omitempty"`
	ThreadCount      int                      `json:"threadCount"`
	Attachments      []domain.Attachment      `json:"attachments,omitempty"`
	Mentions         []string                 `json:"mentions,omitempty"`
	IsEdited         bool                     `json:"isEdited"`
	EditedAt         *time.Time               `json:"editedAt,omitempty"`
	IsDeleted        bool                     `json:"isDeleted"`
	Reactions        []reactionView           `json:"reactions,omitempty"`
	CreatedAt        time.Time                `json:"createdAt"`
	UpdatedAt        time.Time                `json:"updatedAt"`
}

type typingView struct {
	ConversationID string    `json:"conversationId"`
	UserID         string    `json:"userId"`
	UserName       string    `json:"userName"`
	StartedAt      time.Time `json:"startedAt"`
}

func toConversationView(conv *domain.Conversation) conversationView {
	view := conversationView{
		ID:                   conv.ID,
		Title:                conv.Title,
		Type:                 string(conv.Type),
		Description:          conv.Description,
		Participants:         make(map[string]participantView, len(conv.Participants)),
		LastActivityAt:       conv.LastActivityAt,
		MessageCount:         conv.MessageCount,
		PropertyID:           conv.PropertyID,
		PropertyName:         conv.PropertyName,
		UnitID:               conv.UnitID,
		UnitNumber:           conv.UnitNumber,
		MaintenanceRequestID: conv.MaintenanceRequestID,
		CreatedAt:            conv.CreatedAt,
		UpdatedAt:            conv.UpdatedAt,
	}
	for id, p := range conv.Participants {
		view.Participants[id] = participantView{
			UserID:      p.UserID,
			Name:        p.Name,
			Email:       p.Email,
			Role:        p.Role,
			AvatarURL:   p.AvatarURL,
			IsOnline:    p.IsOnline,
			JoinedAt:    p.JoinedAt,
			LastReadAt:  p.LastReadAt,
			UnreadCount: p.UnreadCount,
			IsArchived:  p.IsArchived,
			IsMuted:     p.IsMuted,
			IsPinned:    p.IsPinned,
		}
	}
	if conv.LastMessage != nil {
		view.LastMessage = &lastMessageView{
			MessageID:  conv.LastMessage.MessageID,
			Content:    conv.LastMessage.Content,
			SenderID:   conv.LastMessage.SenderID,
			SenderName: conv.LastMessage.SenderName,
			CreatedAt:  conv.LastMessage.CreatedAt,
		}
	}
	return view
}

func toConversationViews(conversations []*domain.Conversation) []conversationView {
	views := make([]conversationView, len(conversations))
	for i, conv := range conversations {
		views[i] = toConversationView(conv)
	}
	return views
}

func toMessageView(msg *domain.Message) messageView {
	view := messageView{
		ID:               msg.ID,
		ConversationID:   msg.ConversationID,
		Content:          msg.Content,
		Type:             string(msg.Type),
		Priority:         string(msg.Priority),
		SenderID:         msg.SenderID,
		SenderName:       msg.SenderName,
		SenderRole:       msg.SenderRole,
		Recipients:       make(map[string]recipientView, len(msg.Recipients)),
		ParentMessageID:  msg.ParentMessageID,
		ReplyToMessageID: msg.ReplyToMessageID,
		ThreadCount:      msg.ThreadCount,
		Attachments:      msg.Attachments,
		Mentions:         msg.Mentions,
		IsEdited:         msg.IsEdited,
		EditedAt:         msg.EditedAt,
		IsDeleted:        msg.IsDeleted,
		CreatedAt:        msg.CreatedAt,
		UpdatedAt:        msg.UpdatedAt,
	}
	for id, r := range msg.Recipients {
		view.Recipients[id] = recipientView{
			UserID:      r.UserID,
			Status:      string(r.Status),
			DeliveredAt: r.DeliveredAt,
			ReadAt:      r.ReadAt,
		}
	}
	for _, r := range msg.Reactions {
		view.Reactions = append(view.Reactions, reactionView{
			ID:        r.ID,
			Emoji:     r.Emoji,
			UserID:    r.UserID,
			UserName:  r.UserName,
			CreatedAt: r.CreatedAt,
		})
	}
	return view
}

func toMessageViews(messages []*domain.Message) []messageView {
	views := make([]messageView, len(messages))
	for i, msg := range messages {
		views[i] = toMessageView(msg)
	}
	return views
}

func toTypingViews(indicators []*domain.TypingIndicator) []typingView {
	views := make([]typingView, len(indicators))
	for i, ind := range indicators {
		views[i] = typingView{
			ConversationID: ind.ConversationID,
			UserID:         ind.UserID,
			UserName:       ind.UserName,
			StartedAt:      ind.StartedAt,
		}
	}
	return views
}
