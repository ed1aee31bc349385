package service

import (
	"context"
	"time"

	"github.com/tenantry/message-service/internal/domain"
	"github.com/tenantry/message-service/internal/repository"
)

// TypingService maintains ephemeral typing records. Starting to type is an
// upsert, stopping is a delete; there is no "stopped" record. The service
// never expires records itself, but List ignores records older than the
// staleness window so an uncleanly disconnected client cannot pin a stale
// indicator forever.
type TypingService struct {
	repos *repository.Repositories
	bus   domain.EventBus
	ttl   time.Duration
}

func NewTypingService(repos *repository.Repositories, bus domain.EventBus, ttl time.Duration) *TypingService {
	return &TypingService{repos: repos, bus: bus, ttl: ttl}
}

func (s *TypingService) SetTyping(ctx context.Context, conversationID, userID, userName string, isTyping bool) error {
	now := time.Now().UTC()

	var err error
	if isTyping {
		err = s.repos.Typing.Set(ctx, &domain.TypingIndicator{
			ConversationID: conversationID,
			UserID:         userID,
			UserName:       userName,
			StartedAt:      now,
		})
	} else {
		err = s.repos.Typing.Clear(ctx, conversationID, userID)
	}
	if err != nil {
		return err
	}

	s.bus.Publish(domain.TypingChangedEvent{
		ConversationID: conversationID,
		UserID:         userID,
		EventTime:      now,
	})
	return nil
}

// List returns current typing records for a conversation, excluding the
// caller's own.
func (s *TypingService) List(ctx context.Context, conversationID, excludeUserID string) ([]*domain.TypingIndicator, error) {
	var since time.Time
	if s.ttl > 0 {
		since = time.Now().UTC().Add(-s.ttl)
	}

	indicators, err := s.repos.Typing.ListByConversation(ctx, conversationID, since)
	if err != nil {
		return nil, err
	}

	filtered := indicators[:0]
	for _, ind := range indicators {
		if ind.UserID != excludeUserID {
			filtered = append(filtered, ind)
		}
	}
	return filtered, nil
}
