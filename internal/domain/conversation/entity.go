package conversation

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Conversation represents the conversations table
type Conversation struct {
	ID        uuid.UUID
	Name      sql.NullString
	IsGroup   bool
	CreatedBy uuid.NullUUID
	CreatedAt time.Time
	UpdatedAt time.Time

	// Relationships
	Participants []Participant
}

// Participant roles.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Participant represents the participants table
type Participant struct {
	ConversationID uuid.UUID
	UserID         uuid.UUID
	Role           string
	JoinedAt       time.Time
	AddedBy        uuid.NullUUID
}

// ConversationSequence represents the conversation_sequences table.
// A row per conversation holding the last sequence number handed out;
// messages receive theirs at persistence time so display order is
// decoupled from delivery order.
type ConversationSequence struct {
	ConversationID uuid.UUID
	LastSequence   int64
	UpdatedAt      time.Time
}

func (Conversation) TableName() string {
	return "conversations"
}

func (Participant) TableName() string {
	return "participants"
}

func (ConversationSequence) TableName() string {
	return "conversation_sequences"
}
