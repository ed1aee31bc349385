package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy. Callers branch on these sentinels with errors.Is; the
// wrapped specifics below add context without widening the taxonomy.
var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrValidation   = errors.New("validation failed")
)

var (
	ErrConversationNotFound = fmt.Errorf("conversation %w", ErrNotFound)
	ErrMessageNotFound      = fmt.Errorf("message %w", ErrNotFound)

	// ErrNotSender guards edit and delete: only the original sender may
	// mutate a message.
	ErrNotSender = fmt.Errorf("%w: only the sender may modify a message", ErrUnauthorized)

	ErrNoParticipants     = fmt.Errorf("%w: participant list is empty", ErrValidation)
	ErrNotParticipant     = fmt.Errorf("%w: user is not a conversation participant", ErrValidation)
	ErrEmptyContent       = fmt.Errorf("%w: message content is empty", ErrValidation)
	ErrTooManyAttachments = fmt.Errorf("%w: too many attachments", ErrValidation)
	ErrMessageDeleted     = fmt.Errorf("%w: message is deleted", ErrValidation)
)
