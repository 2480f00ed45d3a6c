package message

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// MaxContentLength caps message content, in runes, matching the
// column constraint on messages.content.
const MaxContentLength = 5000

// Message represents the messages table. Exactly one of ConversationID
// or ReceiverID is set: conversation messages fan out to a room,
// receiver messages are delivered directly when the receiver is online.
type Message struct {
	ID             uuid.UUID
	ConversationID uuid.NullUUID
	ReceiverID     uuid.NullUUID
	SenderID       uuid.UUID
	Content        string
	Type           string
	Status         Status
	SeqID          sql.NullInt64
	Edited         bool
	EditedAt       sql.NullTime
	Deleted        bool
	DeletedAt      sql.NullTime
	CreatedAt      time.Time
}

// MessageEdit represents the message_edits table; one row per
// superseded content revision, oldest first.
type MessageEdit struct {
	ID        uuid.UUID
	MessageID uuid.UUID
	Content   string
	EditedAt  time.Time
}

// MessageReaction represents the message_reactions table.
// UNIQUE(message_id, user_id, emoji) keeps the set semantics.
type MessageReaction struct {
	ID        uuid.UUID
	MessageID uuid.UUID
	UserID    uuid.UUID
	Emoji     string
	CreatedAt time.Time
}

// Attachment represents the attachments table. ObjectKey points into
// the media bucket; the delivery layer presigns a read URL at fan-out.
type Attachment struct {
	ID        uuid.UUID
	MessageID uuid.NullUUID
	ObjectKey string
	Type      string
	SizeBytes int64
	CreatedAt time.Time
}

func (Message) TableName() string {
	return "messages"
}

func (MessageEdit) TableName() string {
	return "message_edits"
}

func (MessageReaction) TableName() string {
	return "message_reactions"
}

func (Attachment) TableName() string {
	return "attachments"
}
