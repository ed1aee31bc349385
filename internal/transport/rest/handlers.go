package rest

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tenantry/message-service/internal/domain"
	"github.com/tenantry/message-service/internal/service"
)

type handler struct {
	conversations *service.ConversationService
	messages      *service.MessageService
	typing        *service.TypingService
	attachments   *service.AttachmentService
	log           zerolog.Logger
}

func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrValidation):
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

type newParticipantRequest struct {
	UserID    string `json:"userId" binding:"required"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	AvatarURL string `json:"avatarUrl"`
}

type createConversationRequest struct {
	Title                string                  `json:"title"`
	Type                 string                  `json:"type" binding:"required"`
	Participants         []newParticipantRequest `json:"participants"`
	CreatedBy            string                  `json:"createdBy" binding:"required"`
	Description          string                  `json:"description"`
	PropertyID           string                  `json:"propertyId"`
	PropertyName         string                  `json:"propertyName"`
	UnitID               string                  `json:"unitId"`
	UnitNumber           string                  `json:"unitNumber"`
	MaintenanceRequestID string                  `json:"maintenanceRequestId"`
}

func (h *handler) createConversation(c *gin.Context) {
	var req createConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	participants := make([]service.NewParticipant, len(req.Participants))
	for i, p := range req.Participants {
		participants[i] = service.NewParticipant{
			UserID:    p.UserID,
			Name:      p.Name,
			Email:     p.Email,
			Role:      p.Role,
			AvatarURL: p.AvatarURL,
		}
	}

	conv, err := h.conversations.Create(c.Request.Context(), req.Title, domain.ConversationType(req.Type), participants, req.CreatedBy, service.ConversationOptions{
		Description:          req.Description,
		PropertyID:           req.PropertyID,
		PropertyName:         req.PropertyName,
		UnitID:               req.UnitID,
		UnitNumber:           req.UnitNumber,
		MaintenanceRequestID: req.MaintenanceRequestID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toConversationView(conv))
}

func (h *handler) listConversations(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
		return
	}

	conversations, err := h.conversations.List(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toConversationViews(conversations))
}

func (h *handler) getConversation(c *gin.Context) {
	conv, err := h.conversations.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toConversationView(conv))
}

type updateConversationRequest struct {
	Title                *string `json:"title"`
	Description          *string `json:"description"`
	PropertyID           *string `json:"propertyId"`
	PropertyName         *string `json:"propertyName"`
	UnitID               *string `json:"unitId"`
	UnitNumber           *string `json:"unitNumber"`
	MaintenanceRequestID *string `json:"maintenanceRequestId"`
}

func (h *handler) updateConversation(c *gin.Context) {
	var req updateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	err := h.conversations.Update(c.Request.Context(), c.Param("id"), domain.ConversationUpdate{
		Title:                req.Title,
		Description:          req.Description,
		PropertyID:           req.PropertyID,
		PropertyName:         req.PropertyName,
		UnitID:               req.UnitID,
		UnitNumber:           req.UnitNumber,
		MaintenanceRequestID: req.MaintenanceRequestID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) deleteConversation(c *gin.Context) {
	if err := h.conversations.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type setFlagsRequest struct {
	UserID     string `json:"userId" binding:"required"`
	IsArchived *bool  `json:"isArchived"`
	IsMuted    *bool  `json:"isMuted"`
	IsPinned   *bool  `json:"isPinned"`
}

func (h *handler) setFlags(c *gin.Context) {
	var req setFlagsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	err := h.conversations.SetFlags(c.Request.Context(), c.Param("id"), req.UserID, domain.ParticipantFlags{
		IsArchived: req.IsArchived,
		IsMuted:    req.IsMuted,
		IsPinned:   req.IsPinned,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type markReadRequest struct {
	UserID string `json:"userId" binding:"required"`
}

func (h *handler) markConversationRead(c *gin.Context) {
	var req markReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.messages.MarkConversationRead(c.Request.Context(), c.Param("id"), req.UserID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type setTypingRequest struct {
	UserID   string `json:"userId" binding:"required"`
	UserName string `json:"userName"`
	IsTyping bool   `json:"isTyping"`
}

func (h *handler) setTyping(c *gin.Context) {
	var req setTypingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.typing.SetTyping(c.Request.Context(), c.Param("id"), req.UserID, req.UserName, req.IsTyping); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) listMessages(c *gin.Context) {
	limit := intQuery(c, "limit", 0)
	offset := intQuery(c, "offset", 0)

	messages, err := h.messages.GetMessages(c.Request.Context(), c.Param("id"), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toMessageViews(messages))
}

type sendMessageRequest struct {
	SenderID         string              `json:"senderId" binding:"required"`
	SenderName       string              `json:"senderName"`
	SenderRole       string              `json:"senderRole"`
	Content          string              `json:"content"`
	Type             string              `json:"type"`
	Priority         string              `json:"priority"`
	ParentMessageID  string              `json:"parentMessageId"`
	ReplyToMessageID string              `json:"replyToMessageId"`
	Attachments      []domain.Attachment `json:"attachments"`
	Mentions         []string            `json:"mentions"`
	ClientKey        string              `json:"clientKey"`
}

func (h *handler) sendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	msg, err := h.messages.Send(c.Request.Context(), c.Param("id"), req.SenderID, req.SenderName, req.SenderRole, req.Content, domain.SendOptions{
		Type:             domain.MessageType(req.Type),
		Priority:         domain.MessagePriority(req.Priority),
		ParentMessageID:  req.ParentMessageID,
		ReplyToMessageID: req.ReplyToMessageID,
		Attachments:      req.Attachments,
		Mentions:         req.Mentions,
		ClientKey:        req.ClientKey,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toMessageView(msg))
}

type editMessageRequest struct {
	Content  string `json:"content" binding:"required"`
	EditorID string `json:"editorId" binding:"required"`
}

func (h *handler) editMessage(c *gin.Context) {
	var req editMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.messages.Edit(c.Request.Context(), c.Param("id"), req.Content, req.EditorID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type deleteMessageRequest struct {
	RequesterID string `json:"requesterId" binding:"required"`
}

func (h *handler) deleteMessage(c *gin.Context) {
	var req deleteMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.messages.SoftDelete(c.Request.Context(), c.Param("id"), req.RequesterID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) markMessageRead(c *gin.Context) {
	var req markReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.messages.MarkRead(c.Request.Context(), c.Param("id"), req.UserID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type addReactionRequest struct {
	UserID   string `json:"userId" binding:"required"`
	UserName string `json:"userName"`
	Emoji    string `json:"emoji" binding:"required"`
}

func (h *handler) addReaction(c *gin.Context) {
	var req addReactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	reaction, err := h.messages.React(c.Request.Context(), c.Param("id"), req.UserID, req.UserName, req.Emoji)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, reactionView{
		ID:        reaction.ID,
		Emoji:     reaction.Emoji,
		UserID:    reaction.UserID,
		UserName:  reaction.UserName,
		CreatedAt: reaction.CreatedAt,
	})
}

func (h *handler) removeReaction(c *gin.Context) {
	requesterID := c.Query("requesterId")
	if requesterID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "requesterId is required"})
		return
	}

	if err := h.messages.Unreact(c.Request.Context(), c.Param("id"), c.Param("reactionId"), requesterID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) uploadAttachment(c *gin.Context) {
	userID := c.PostForm("userId")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	defer file.Close()

	attachment, err := h.attachments.Upload(c.Request.Context(), header.Filename, file, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, attachment)
}

func intQuery(c *gin.Context, key string, fallback int) int {
	value := c.Query(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
