package domain

import "time"

// TypingIndicator is an ephemeral record keyed by (conversation, user).
// Presence means "currently typing"; stopping is a delete, not an update,
// so subscribers infer "stopped" from absence.
type TypingIndicator struct {
	ConversationID string
	UserID         string
	UserName       string
	StartedAt      time.Time
}
