package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"relaychat/internal/domain/conversation"
	"relaychat/internal/domain/message"
	"relaychat/internal/domain/user"
)

type UserRepository interface {
	Create(ctx context.Context, u *user.User) error
	GetByID(ctx context.Context, id uuid.UUID) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]user.User, error)

	UpdateOnlineStatus(ctx context.Context, userID uuid.UUID, isOnline bool) error
	UpdateLastSeen(ctx context.Context, userID uuid.UUID, lastSeen time.Time) error
}

type ConversationRepository interface {
	Create(ctx context.Context, c *conversation.Conversation) error
	GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error)
	Update(ctx context.Context, c conversation.Conversation) error

	GetUserConversations(ctx context.Context, userID uuid.UUID) ([]conversation.Conversation, error)
	GetDirectConversation(ctx context.Context, userID1, userID2 uuid.UUID) (conversation.Conversation, error)

	AddParticipant(ctx context.Context, p *conversation.Participant) error
	RemoveParticipant(ctx context.Context, conversationID, userID uuid.UUID) error
	GetParticipants(ctx context.Context, conversationID uuid.UUID) ([]conversation.Participant, error)
	IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error)

	IncrementSequence(ctx context.Context, conversationID uuid.UUID) (int64, error)
}

type MessageRepository interface {
	Create(ctx context.Context, m *message.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (message.Message, error)
	Update(ctx context.Context, m message.Message) error

	// AdvanceStatus moves a message forward to next and reports whether
	// a row changed. Messages already at or past next are untouched.
	AdvanceStatus(ctx context.Context, messageID uuid.UUID, next message.Status) (bool, error)

	// MarkConversationRead advances every message in the conversation
	// not authored by readerID and not already read. Returns the number
	// of messages transitioned; zero is not an error.
	MarkConversationRead(ctx context.Context, conversationID, readerID uuid.UUID) (int64, error)

	GetConversationMessages(ctx context.Context, conversationID uuid.UUID, page, limit int) ([]message.Message, error)
	GetUnreadForUser(ctx context.Context, userID uuid.UUID) ([]message.Message, error)
	GetMessagesSince(ctx context.Context, userID uuid.UUID, since time.Time) ([]message.Message, error)

	AddEdit(ctx context.Context, e *message.MessageEdit) error
	GetEdits(ctx context.Context, messageID uuid.UUID) ([]message.MessageEdit, error)

	AddReaction(ctx context.Context, r *message.MessageReaction) error
	RemoveReaction(ctx context.Context, messageID, userID uuid.UUID, emoji string) error
	GetReactions(ctx context.Context, messageID uuid.UUID) ([]message.MessageReaction, error)

	CreateAttachment(ctx context.Context, a *message.Attachment) error
	LinkAttachments(ctx context.Context, messageID uuid.UUID, attachmentIDs []uuid.UUID) error
	GetAttachments(ctx context.Context, messageID uuid.UUID) ([]message.Attachment, error)
}
