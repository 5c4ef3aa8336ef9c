package models

import "time"

// Role is a participant's privilege level inside a conversation.
type Role string

const (
	RoleOwner  Role = "OWNER"
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
)

func (r Role) rank() int {
	switch r {
	case RoleOwner:
		return 3
	case RoleAdmin:
		return 2
	case RoleMember:
		return 1
	default:
		return 0
	}
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r.rank() > 0
}

// AtLeast reports whether r is as privileged as other.
func (r Role) AtLeast(other Role) bool {
	return r.Valid() && r.rank() >= other.rank()
}

// CanManageParticipants is true for owners and admins.
func (r Role) CanManageParticipants() bool {
	return r.AtLeast(RoleAdmin)
}

// CanUpdateSettings is true for owners and admins.
func (r Role) CanUpdateSettings() bool {
	return r.AtLeast(RoleAdmin)
}

// ParseRole converts a client supplied string into a Role.
func ParseRole(s string) (Role, bool) {
	r := Role(s)
	return r, r.Valid()
}

// Participant is a membership row keyed by (ConversationID, UserID).
// Rows are never deleted; removal flips IsActive.
type Participant struct {
	ConversationID string    `db:"conversation_id" json:"conversation_id"`
	UserID         string    `db:"user_id" json:"user_id"`
	Role           Role      `db:"role" json:"role"`
	IsActive       bool      `db:"is_active" json:"is_active"`
	JoinedAt       time.Time `db:"joined_at" json:"joined_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}
