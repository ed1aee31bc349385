package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tenantry/message-service/internal/domain"
	"github.com/tenantry/message-service/internal/logger"
	"github.com/tenantry/message-service/internal/repository"
)

// NewParticipant is the caller-supplied profile for one conversation member.
// The profile is snapshotted into the membership row at creation.
type NewParticipant struct {
	UserID    string
	Name      string
	Email     string
	Role      string
	AvatarURL string
}

// ConversationOptions carries the optional creation fields.
type ConversationOptions struct {
	Description          string
	PropertyID           string
	PropertyName         string
	UnitID               string
	UnitNumber           string
	MaintenanceRequestID string
}

type ConversationService struct {
	repos *repository.Repositories
	bus   domain.EventBus
	log   zerolog.Logger
}

func NewConversationService(repos *repository.Repositories, bus domain.EventBus) *ConversationService {
	return &ConversationService{
		repos: repos,
		bus:   bus,
		log:   logger.Module("conversation-service"),
	}
}

// Create validates the member list, initializes every participant row with a
// zero unread counter and default settings, and persists the conversation.
// The creator must be among the participants.
func (s *ConversationService) Create(ctx context.Context, title string, convType domain.ConversationType, participants []NewParticipant, createdBy string, opts ConversationOptions) (*domain.Conversation, error) {
	if len(participants) == 0 {
		return nil, domain.ErrNoParticipants
	}

	now := time.Now().UTC()
	members := make(map[string]*domain.Participant, len(participants))
	creatorIncluded := false
	for _, p := range participants {
		if p.UserID == createdBy {
			creatorIncluded = true
		}
		members[p.UserID] = &domain.Participant{
			UserID:    p.UserID,
			Name:      p.Name,
			Email:     p.Email,
			Role:      p.Role,
			AvatarURL: p.AvatarURL,
			JoinedAt:  now,
		}
	}
	if !creatorIncluded {
		return nil, domain.ErrNotParticipant
	}

	conv := &domain.Conversation{
		ID:                   uuid.New().String(),
		Title:                title,
		Type:                 convType,
		Description:          opts.Description,
		Participants:         members,
		LastActivityAt:       now,
		PropertyID:           opts.PropertyID,
		PropertyName:         opts.PropertyName,
		UnitID:               opts.UnitID,
		UnitNumber:           opts.UnitNumber,
		MaintenanceRequestID: opts.MaintenanceRequestID,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if err := s.repos.Conversations.Create(ctx, conv); err != nil {
		return nil, err
	}

	s.bus.Publish(domain.ConversationChangedEvent{
		ConversationID: conv.ID,
		ParticipantIDs: conv.ParticipantIDs(),
		EventTime:      now,
	})
	return conv, nil
}

func (s *ConversationService) Get(ctx context.Context, id string) (*domain.Conversation, error) {
	conv, err := s.repos.Conversations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, domain.ErrConversationNotFound
	}
	return conv, nil
}

func (s *ConversationService) List(ctx context.Context, userID string) ([]*domain.Conversation, error) {
	return s.repos.Conversations.GetByUserID(ctx, userID)
}

func (s *ConversationService) Update(ctx context.Context, id string, update domain.ConversationUpdate) error {
	conv, err := s.repos.Conversations.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if conv == nil {
		return domain.ErrConversationNotFound
	}

	if err := s.repos.Conversations.Update(ctx, id, update); err != nil {
		return err
	}

	s.bus.Publish(domain.ConversationChangedEvent{
		ConversationID: id,
		ParticipantIDs: conv.ParticipantIDs(),
		EventTime:      time.Now().UTC(),
	})
	return nil
}

// SetFlags toggles a participant's archive/mute/pin preferences. These are
// per-user view state, not conversation state.
func (s *ConversationService) SetFlags(ctx context.Context, conversationID, userID string, flags domain.ParticipantFlags) error {
	conv, err := s.repos.Conversations.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if conv == nil {
		return domain.ErrConversationNotFound
	}
	if !conv.HasParticipant(userID) {
		return domain.ErrNotParticipant
	}

	if err := s.repos.Conversations.SetParticipantFlags(ctx, conversationID, userID, flags); err != nil {
		return err
	}

	s.bus.Publish(domain.ConversationChangedEvent{
		ConversationID: conversationID,
		ParticipantIDs: []string{userID},
		EventTime:      time.Now().UTC(),
	})
	return nil
}

// SetOnline flips the presence bit on every membership row for the user.
func (s *ConversationService) SetOnline(ctx context.Context, userID string, online bool) error {
	return s.repos.Conversations.SetOnline(ctx, userID, online)
}

// Delete removes a conversation and cascades to all of its messages
// atomically.
func (s *ConversationService) Delete(ctx context.Context, id string) error {
	conv, err := s.repos.Conversations.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if conv == nil {
		return domain.ErrConversationNotFound
	}

	if err := s.repos.Conversations.Delete(ctx, id); err != nil {
		return err
	}

	s.log.Info().Str("conversation_id", id).Msg("conversation deleted")
	s.bus.Publish(domain.ConversationDeletedEvent{
		ConversationID: id,
		ParticipantIDs: conv.ParticipantIDs(),
		EventTime:      time.Now().UTC(),
	})
	return nil
}
