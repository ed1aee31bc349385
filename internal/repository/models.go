package repository

import (
	"time"

	"github.com/tenantry/message-service/internal/domain"
)

type ConversationModel struct {
	ID          string `gorm:"primaryKey;column:id"`
	Title       string `gorm:"column:title"`
	Type        string `gorm:"column:type"`
	Description string `gorm:"column:description"`

	LastMessageID         string    `gorm:"column:last_message_id"`
	LastMessageContent    string    `gorm:"column:last_message_content"`
	LastMessageSenderID   string    `gorm:"column:last_message_sender_id"`
	LastMessageSenderName string    `gorm:"column:last_message_sender_name"`
	LastMessageAt         time.Time `gorm:"column:last_message_at"`

	LastActivityAt time.Time `gorm:"column:last_activity_at;index"`
	MessageCount   int       `gorm:"column:message_count"`

	PropertyID           string `gorm:"column:property_id;index"`
	PropertyName         string `gorm:"column:property_name"`
	UnitID               string `gorm:"column:unit_id"`
	UnitNumber           string `gorm:"column:unit_number"`
	MaintenanceRequestID string `gorm:"column:maintenance_request_id"`

	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`

	Participants []ParticipantModel `gorm:"foreignKey:ConversationID;references:ID"`
}

func (ConversationModel) TableName() string { return "conversations" }

type ParticipantModel struct {
	ConversationID string `gorm:"primaryKey;column:conversation_id"`
	UserID         string `gorm:"primaryKey;column:user_id;index"`

	Name      string `gorm:"column:name"`
	Email     string `gorm:"column:email"`
	Role      string `gorm:"column:role"`
	AvatarURL string `gorm:"column:avatar_url"`
	IsOnline  bool   `gorm:"column:is_online"`

	JoinedAt   time.Time  `gorm:"column:joined_at"`
	LastReadAt *time.Time `gorm:"column:last_read_at"`

	UnreadCount int  `gorm:"column:unread_count"`
	IsArchived  bool `gorm:"column:is_archived"`
	IsMuted     bool `gorm:"column:is_muted"`
	IsPinned    bool `gorm:"column:is_pinned"`
}

func (ParticipantModel) TableName() string { return "conversation_participants" }

type MessageModel struct {
	ID             string  `gorm:"primaryKey;column:id"`
	ConversationID string  `gorm:"column:conversation_id;index:idx_conv_created;uniqueIndex:idx_conv_client_key"`
	ClientKey      *string `gorm:"column:client_key;uniqueIndex:idx_conv_client_key"`

	Content  string `gorm:"column:content"`
	Type     string `gorm:"column:type"`
	Priority string `gorm:"column:priority"`

	SenderID   string `gorm:"column:sender_id"`
	SenderName string `gorm:"column:sender_name"`
	SenderRole string `gorm:"column:sender_role"`

	ParentMessageID  string `gorm:"column:parent_message_id"`
	ReplyToMessageID string `gorm:"column:reply_to_message_id"`
	ThreadCount      int    `gorm:"column:thread_count"`

	Attachments []domain.Attachment `gorm:"column:attachments;serializer:json"`
	Mentions    []string            `gorm:"column:mentions;serializer:json"`

	IsEdited  bool       `gorm:"column:is_edited"`
	EditedAt  *time.Time `gorm:"column:edited_at"`
	IsDeleted bool       `gorm:"column:is_deleted;index"`
	DeletedAt *time.Time `gorm:"column:deleted_at"`

	CreatedAt time.Time `gorm:"column:created_at;index:idx_conv_created"`
	UpdatedAt time.Time `gorm:"column:updated_at"`

	Recipients []RecipientModel `gorm:"foreignKey:MessageID;references:ID"`
	Reactions  []ReactionModel  `gorm:"foreignKey:MessageID;references:ID"`
}

func (MessageModel) TableName() string { return "messages" }

type RecipientModel struct {
	MessageID      string `gorm:"primaryKey;column:message_id"`
	UserID         string `gorm:"primaryKey;column:user_id;index:idx_recipient_unread"`
	ConversationID string `gorm:"column:conversation_id;index:idx_recipient_unread"`

	Status      string     `gorm:"column:status;index:idx_recipient_unread"`
	DeliveredAt *time.Time `gorm:"column:delivered_at"`
	ReadAt      *time.Time `gorm:"column:read_at"`
}

func (RecipientModel) TableName() string { return "message_recipients" }

type ReactionModel struct {
	ID        string    `gorm:"primaryKey;column:id"`
	MessageID string    `gorm:"column:message_id;index"`
	Emoji     string    `gorm:"column:emoji"`
	UserID    string    `gorm:"column:user_id"`
	UserName  string    `gorm:"column:user_name"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (ReactionModel) TableName() string { return "message_reactions" }

type TypingModel struct {
	ConversationID string    `gorm:"primaryKey;column:conversation_id"`
	UserID         string    `gorm:"primaryKey;column:user_id"`
	UserName       string    `gorm:"column:user_name"`
	StartedAt      time.Time `gorm:"column:started_at"`
}

func (TypingModel) TableName() string { return "typing_indicators" }

type NotificationModel struct {
	ID             string     `gorm:"primaryKey;column:id"`
	UserID         string     `gorm:"column:user_id;index"`
	ConversationID string     `gorm:"column:conversation_id"`
	MessageID      string     `gorm:"column:message_id"`
	Title          string     `gorm:"column:title"`
	Body           string     `gorm:"column:body"`
	Priority       string     `gorm:"column:priority"`
	Status         string     `gorm:"column:status;index"`
	Attempts       int        `gorm:"column:attempts"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	SentAt         *time.Time `gorm:"column:sent_at"`
}

func (NotificationModel) TableName() string { return "notifications" }

type AttachmentModel struct {
	ID         string    `gorm:"primaryKey;column:id"`
	Name       string    `gorm:"column:name"`
	Kind       string    `gorm:"column:kind"`
	Size       int64     `gorm:"column:size"`
	URL        string    `gorm:"column:url"`
	MimeType   string    `gorm:"column:mime_type"`
	UploadedAt time.Time `gorm:"column:uploaded_at"`
	UploadedBy string    `gorm:"column:uploaded_by;index"`
}

func (AttachmentModel) TableName() string { return "attachments" }

// Conversion functions

func ConversationModelToDomain(m *ConversationModel) *domain.Conversation {
	if m == nil {
		return nil
	}

	conv := &domain.Conversation{
		ID:                   m.ID,
		Title:                m.Title,
		Type:                 domain.ConversationType(m.Type),
		Description:          m.Description,
		Participants:         make(map[string]*domain.Participant, len(m.Participants)),
		LastActivityAt:       m.LastActivityAt,
		MessageCount:         m.MessageCount,
		PropertyID:           m.PropertyID,
		PropertyName:         m.PropertyName,
		UnitID:               m.UnitID,
		UnitNumber:           m.UnitNumber,
		MaintenanceRequestID: m.MaintenanceRequestID,
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
	}

	if m.LastMessageID != "" {
		conv.LastMessage = &domain.LastMessage{
			MessageID:  m.LastMessageID,
			Content:    m.LastMessageContent,
			SenderID:   m.LastMessageSenderID,
			SenderName: m.LastMessageSenderName,
			CreatedAt:  m.LastMessageAt,
		}
	}

	for i := range m.Participants {
		p := ParticipantModelToDomain(&m.Participants[i])
		conv.Participants[p.UserID] = p
	}

	return conv
}

func ConversationDomainToModel(conv *domain.Conversation) *ConversationModel {
	if conv == nil {
		return nil
	}

	model := &ConversationModel{
		ID:                   conv.ID,
		Title:                conv.Title,
		Type:                 string(conv.Type),
		Description:          conv.Description,
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

	if conv.LastMessage != nil {
		model.LastMessageID = conv.LastMessage.MessageID
		model.LastMessageContent = conv.LastMessage.Content
		model.LastMessageSenderID = conv.LastMessage.SenderID
		model.LastMessageSenderName = conv.LastMessage.SenderName
		model.LastMessageAt = conv.LastMessage.CreatedAt
	}

	for _, p := range conv.Participants {
		model.Participants = append(model.Participants, *ParticipantDomainToModel(conv.ID, p))
	}

	return model
}

func ParticipantModelToDomain(m *ParticipantModel) *domain.Participant {
	return &domain.Participant{
		UserID:      m.UserID,
		Name:        m.Name,
		Email:       m.Email,
		Role:        m.Role,
		AvatarURL:   m.AvatarURL,
		IsOnline:    m.IsOnline,
		JoinedAt:    m.JoinedAt,
		LastReadAt:  m.LastReadAt,
		UnreadCount: m.UnreadCount,
		IsArchived:  m.IsArchived,
		IsMuted:     m.IsMuted,
		IsPinned:    m.IsPinned,
	}
}

func ParticipantDomainToModel(conversationID string, p *domain.Participant) *ParticipantModel {
	return &ParticipantModel{
		ConversationID: conversationID,
		UserID:         p.UserID,
		Name:           p.Name,
		Email:          p.Email,
		Role:           p.Role,
		AvatarURL:      p.AvatarURL,
		IsOnline:       p.IsOnline,
		JoinedAt:       p.JoinedAt,
		LastReadAt:     p.LastReadAt,
		UnreadCount:    p.UnreadCount,
		IsArchived:     p.IsArchived,
		IsMuted:        p.IsMuted,
		IsPinned:       p.IsPinned,
	}
}

func MessageModelToDomain(m *MessageModel) *domain.Message {
	if m == nil {
		return nil
	}

	msg := &domain.Message{
		ID:               m.ID,
		ConversationID:   m.ConversationID,
		Content:          m.Content,
		Type:             domain.MessageType(m.Type),
		Priority:         domain.MessagePriority(m.Priority),
		SenderID:         m.SenderID,
		SenderName:       m.SenderName,
		SenderRole:       m.SenderRole,
		Recipients:       make(map[string]*domain.Recipient, len(m.Recipients)),
		ParentMessageID:  m.ParentMessageID,
		ReplyToMessageID: m.ReplyToMessageID,
		ThreadCount:      m.ThreadCount,
		Attachments:      m.Attachments,
		Mentions:         m.Mentions,
		IsEdited:         m.IsEdited,
		EditedAt:         m.EditedAt,
		IsDeleted:        m.IsDeleted,
		DeletedAt:        m.DeletedAt,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}

	if m.ClientKey != nil {
		msg.ClientKey = *m.ClientKey
	}

	for i := range m.Recipients {
		r := &m.Recipients[i]
		msg.Recipients[r.UserID] = &domain.Recipient{
			UserID:      r.UserID,
			Status:      domain.DeliveryStatus(r.Status),
			DeliveredAt: r.DeliveredAt,
			ReadAt:      r.ReadAt,
		}
	}

	for i := range m.Reactions {
		r := &m.Reactions[i]
		msg.Reactions = append(msg.Reactions, domain.Reaction{
			ID:        r.ID,
			Emoji:     r.Emoji,
			UserID:    r.UserID,
			UserName:  r.UserName,
			CreatedAt: r.CreatedAt,
		})
	}

	return msg
}

func MessageDomainToModel(msg *domain.Message) *MessageModel {
	if msg == nil {
		return nil
	}

	model := &MessageModel{
		ID:               msg.ID,
		ConversationID:   msg.ConversationID,
		Content:          msg.Content,
		Type:             string(msg.Type),
		Priority:         string(msg.Priority),
		SenderID:         msg.SenderID,
		SenderName:       msg.SenderName,
		SenderRole:       msg.SenderRole,
		ParentMessageID:  msg.ParentMessageID,
		ReplyToMessageID: msg.ReplyToMessageID,
		ThreadCount:      msg.ThreadCount,
		Attachments:      msg.Attachments,
		Mentions:         msg.Mentions,
		IsEdited:         msg.IsEdited,
		EditedAt:         msg.EditedAt,
		IsDeleted:        msg.IsDeleted,
		DeletedAt:        msg.DeletedAt,
		CreatedAt:        msg.CreatedAt,
		UpdatedAt:        msg.UpdatedAt,
	}

	if msg.ClientKey != "" {
		key := msg.ClientKey
		model.ClientKey = &key
	}

	for _, r := range msg.Recipients {
		model.Recipients = append(model.Recipients, RecipientModel{
			MessageID:      msg.ID,
			UserID:         r.UserID,
			ConversationID: msg.ConversationID,
			Status:         string(r.Status),
			DeliveredAt:    r.DeliveredAt,
			ReadAt:         r.ReadAt,
		})
	}

	for _, r := range msg.Reactions {
		model.Reactions = append(model.Reactions, ReactionModel{
			ID:        r.ID,
			MessageID: msg.ID,
			Emoji:     r.Emoji,
			UserID:    r.UserID,
			UserName:  r.UserName,
			CreatedAt: r.CreatedAt,
		})
	}

	return model
}

func TypingModelToDomain(m *TypingModel) *domain.TypingIndicator {
	if m == nil {
		return nil
	}
	return &domain.TypingIndicator{
		ConversationID: m.ConversationID,
		UserID:         m.UserID,
		UserName:       m.UserName,
		StartedAt:      m.StartedAt,
	}
}

func TypingDomainToModel(t *domain.TypingIndicator) *TypingModel {
	if t == nil {
		return nil
	}
	return &TypingModel{
		ConversationID: t.ConversationID,
		UserID:         t.UserID,
		UserName:       t.UserName,
		StartedAt:      t.StartedAt,
	}
}

func NotificationModelToDomain(m *NotificationModel) *domain.Notification {
	if m == nil {
		return nil
	}
	return &domain.Notification{
		ID:             m.ID,
		UserID:         m.UserID,
		ConversationID: m.ConversationID,
		MessageID:      m.MessageID,
		Title:          m.Title,
		Body:           m.Body,
		Priority:       domain.MessagePriority(m.Priority),
		Status:         domain.NotificationStatus(m.Status),
		Attempts:       m.Attempts,
		CreatedAt:      m.CreatedAt,
		SentAt:         m.SentAt,
	}
}

func NotificationDomainToModel(n *domain.Notification) *NotificationModel {
	if n == nil {
		return nil
	}
	return &NotificationModel{
		ID:             n.ID,
		UserID:         n.UserID,
		ConversationID: n.ConversationID,
		MessageID:      n.MessageID,
		Title:          n.Title,
		Body:           n.Body,
		Priority:       string(n.Priority),
		Status:         string(n.Status),
		Attempts:       n.Attempts,
		CreatedAt:      n.CreatedAt,
		SentAt:         n.SentAt,
	}
}

func AttachmentModelToDomain(m *AttachmentModel) *domain.Attachment {
	if m == nil {
		return nil
	}
	return &domain.Attachment{
		ID:         m.ID,
		Name:       m.Name,
		Kind:       domain.AttachmentKind(m.Kind),
		Size:       m.Size,
		URL:        m.URL,
		MimeType:   m.MimeType,
		UploadedAt: m.UploadedAt,
		UploadedBy: m.UploadedBy,
	}
}

func AttachmentDomainToModel(a *domain.Attachment) *AttachmentModel {
	if a == nil {
		return nil
	}
	return &AttachmentModel{
		ID:         a.ID,
		Name:       a.Name,
		Kind:       string(a.Kind),
		Size:       a.Size,
		URL:        a.URL,
		MimeType:   a.MimeType,
		UploadedAt: a.UploadedAt,
		UploadedBy: a.UploadedBy,
	}
}
