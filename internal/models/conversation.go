package models

import (
	"sort"
	"time"
)

// ConversationType distinguishes one-to-one chats from groups.
type ConversationType string

const (
	ConversationTypeDirect ConversationType = "DIRECT"
	ConversationTypeGroup  ConversationType = "GROUP"
)

// Valid reports whether t is a known conversation type.
func (t ConversationType) Valid() bool {
	return t == ConversationTypeDirect || t == ConversationTypeGroup
}

const directIDPrefix = "direct"

// DirectConversationID derives the canonical id of the direct conversation between two users.
// Ids are ordered by byte-wise string comparison so the result does not depend on argument order.
func DirectConversationID(userA, userB string) string {
	ids := []string{userA, userB}
	sort.Strings(ids)
	return directIDPrefix + "_" + ids[0] + "_" + ids[1]
}

// Conversation is either a direct chat between two users or a group.
// Name, Description, IsPublic and MaxParticipants only carry meaning for groups.
type Conversation struct {
	ID              string           `db:"id" json:"id"`
	Type            ConversationType `db:"type" json:"type"`
	Name            *string          `db:"name" json:"name,omitempty"`
	Description     *string          `db:"description" json:"description,omitempty"`
	IsPublic        bool             `db:"is_public" json:"is_public"`
	MaxParticipants int              `db:"max_participants" json:"max_participants,omitempty"`
	CreatedBy       string           `db:"created_by" json:"created_by"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time        `db:"updated_at" json:"updated_at"`
	Participants    []Participant    `db:"-" json:"participants,omitempty"`
}

// IsGroup reports whether the conversation is a group.
func (c Conversation) IsGroup() bool {
	return c.Type == ConversationTypeGroup
}

// GroupRequest carries the input of a group creation.
type GroupRequest struct {
	Name            string
	Description     *string
	IsPublic        bool
	MaxParticipants *int
	ParticipantIDs  []string
}

// GroupSettingsPatch is a partial update; nil fields keep their stored value.
type GroupSettingsPatch struct {
	Name            *string `json:"name"`
	Description     *string `json:"description"`
	IsPublic        *bool   `json:"is_public"`
	MaxParticipants *int    `json:"max_participants"`
}
