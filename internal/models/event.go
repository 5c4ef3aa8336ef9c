package models

import "time"

const (
	EventConversationCreated    = "conversation.created"
	EventConversationUpdated    = "conversation.updated"
	EventParticipantAdded       = "participant.added"
	EventParticipantReactivated = "participant.reactivated"
	EventParticipantRemoved     = "participant.removed"
	EventParticipantRole        = "participant.role_changed"
)

// ConversationEvent is published after every successful membership write.
type ConversationEvent struct {
	Type           string    `json:"type"`
	ConversationID string    `json:"conversation_id"`
	UserID         string    `json:"user_id,omitempty"`
	Role           Role      `json:"role,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}
