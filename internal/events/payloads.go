package events

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	relay_errors "relaychat/pkg/errors"

	"relaychat/internal/domain/message"
)

// Inbound payloads. Each has a Validate method run at the boundary
// before dispatch; a frame with an invalid payload never reaches a
// handler.

type TypingPayload struct {
	ConversationID uuid.UUID `json:"conversationId"`
	IsTyping       bool      `json:"isTyping"`
}

func (p TypingPayload) Validate() error {
	if p.ConversationID == uuid.Nil {
		return fmt.Errorf("%w: conversationId is required", relay_errors.ErrInvalidInput)
	}
	return nil
}

type JoinConversationPayload struct {
	ConversationID uuid.UUID `json:"conversationId"`
}

func (p JoinConversationPayload) Validate() error {
	if p.ConversationID == uuid.Nil {
		return fmt.Errorf("%w: conversationId is required", relay_errors.ErrInvalidInput)
	}
	return nil
}

type LeaveConversationPayload struct {
	ConversationID uuid.UUID `json:"conversationId"`
}

func (p LeaveConversationPayload) Validate() error {
	if p.ConversationID == uuid.Nil {
		return fmt.Errorf("%w: conversationId is required", relay_errors.ErrInvalidInput)
	}
	return nil
}

// SendMessagePayload routes to a conversation or directly to a
// receiver, never both.
type SendMessagePayload struct {
	ConversationID *uuid.UUID  `json:"conversationId,omitempty"`
	ReceiverID     *uuid.UUID  `json:"receiverId,omitempty"`
	Content        string      `json:"content"`
	Type           string      `json:"type,omitempty"`
	AttachmentIDs  []uuid.UUID `json:"attachmentIds,omitempty"`
}

func (p SendMessagePayload) Validate() error {
	hasConv := p.ConversationID != nil && *p.ConversationID != uuid.Nil
	hasRecv := p.ReceiverID != nil && *p.ReceiverID != uuid.Nil
	if hasConv == hasRecv {
		return fmt.Errorf("%w: exactly one of conversationId or receiverId is required", relay_errors.ErrInvalidInput)
	}
	if p.Content == "" && len(p.AttachmentIDs) == 0 {
		return fmt.Errorf("%w: content or attachments required", relay_errors.ErrInvalidInput)
	}
	if utf8.RuneCountInString(p.Content) > message.MaxContentLength {
		return fmt.Errorf("%w: content exceeds %d characters", relay_errors.ErrInvalidInput, message.MaxContentLength)
	}
	if p.Type != "" && !message.ValidType(p.Type) {
		return fmt.Errorf("%w: unknown message type %q", relay_errors.ErrInvalidInput, p.Type)
	}
	return nil
}

type MarkConversationReadPayload struct {
	ConversationID uuid.UUID `json:"conversationId"`
}

func (p MarkConversationReadPayload) Validate() error {
	if p.ConversationID == uuid.Nil {
		return fmt.Errorf("%w: conversationId is required", relay_errors.ErrInvalidInput)
	}
	return nil
}

type EditMessagePayload struct {
	MessageID      uuid.UUID `json:"messageId"`
	ConversationID uuid.UUID `json:"conversationId"`
	Content        string    `json:"newContent"`
}

func (p EditMessagePayload) Validate() error {
	if p.MessageID == uuid.Nil {
		return fmt.Errorf("%w: messageId is required", relay_errors.ErrInvalidInput)
	}
	if p.Content == "" {
		return fmt.Errorf("%w: newContent is required", relay_errors.ErrInvalidInput)
	}
	if utf8.RuneCountInString(p.Content) > message.MaxContentLength {
		return fmt.Errorf("%w: newContent exceeds %d characters", relay_errors.ErrInvalidInput, message.MaxContentLength)
	}
	return nil
}

type DeleteMessagePayload struct {
	MessageID      uuid.UUID `json:"messageId"`
	ConversationID uuid.UUID `json:"conversationId"`
}

func (p DeleteMessagePayload) Validate() error {
	if p.MessageID == uuid.Nil {
		return fmt.Errorf("%w: messageId is required", relay_errors.ErrInvalidInput)
	}
	return nil
}

type ReactionPayload struct {
	MessageID      uuid.UUID `json:"messageId"`
	ConversationID uuid.UUID `json:"conversationId"`
	Emoji          string    `json:"emoji"`
}

func (p ReactionPayload) Validate() error {
	if p.MessageID == uuid.Nil {
		return fmt.Errorf("%w: messageId is required", relay_errors.ErrInvalidInput)
	}
	if p.Emoji == "" {
		return fmt.Errorf("%w: emoji is required", relay_errors.ErrInvalidInput)
	}
	return nil
}

type RequestMissedMessagesPayload struct {
	LastMessageTimestamp time.Time `json:"lastMessageTimestamp"`
}

func (p RequestMissedMessagesPayload) Validate() error {
	if p.LastMessageTimestamp.IsZero() {
		return fmt.Errorf("%w: lastMessageTimestamp is required", relay_errors.ErrInvalidInput)
	}
	return nil
}

// Outbound payloads.

// SendAck answers a send-message frame. Failure acks go to the caller
// only; nothing is broadcast for a failed send.
type SendAck struct {
	Success   bool       `json:"success"`
	MessageID *uuid.UUID `json:"messageId,omitempty"`
	Status    string     `json:"status,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// ErrorAck answers any other acked frame that failed.
type ErrorAck struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type OKAck struct {
	Success bool `json:"success"`
}

type UserStatusPayload struct {
	UserID    uuid.UUID  `json:"userId"`
	IsOnline  bool       `json:"isOnline"`
	LastSeen  *time.Time `json:"lastSeen,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

type UserTypingPayload struct {
	ConversationID uuid.UUID `json:"conversationId"`
	SenderID       uuid.UUID `json:"senderId"`
	IsTyping       bool      `json:"isTyping"`
	Timestamp      time.Time `json:"timestamp"`
}

// RoomMembershipPayload backs user-joined-conversation and
// user-left-conversation.
type RoomMembershipPayload struct {
	ConversationID uuid.UUID `json:"conversationId"`
	UserID         uuid.UUID `json:"userId"`
	Timestamp      time.Time `json:"timestamp"`
}

type SenderProfile struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"displayName"`
	AvatarURL   string    `json:"avatarUrl,omitempty"`
}

type AttachmentView struct {
	ID        uuid.UUID `json:"id"`
	URL       string    `json:"url"`
	Type      string    `json:"type"`
	SizeBytes int64     `json:"sizeBytes"`
}

// MessageView is the populated message shape clients render from,
// used by receive-message and missed-messages.
type MessageView struct {
	ID             uuid.UUID        `json:"id"`
	ConversationID *uuid.UUID       `json:"conversationId,omitempty"`
	ReceiverID     *uuid.UUID       `json:"receiverId,omitempty"`
	SenderID       uuid.UUID        `json:"senderId"`
	Sender         *SenderProfile   `json:"sender,omitempty"`
	Content        string           `json:"content"`
	Type           string           `json:"type"`
	Status         string           `json:"status"`
	SeqID          *int64           `json:"seqId,omitempty"`
	Edited         bool             `json:"edited,omitempty"`
	EditedAt       *time.Time       `json:"editedAt,omitempty"`
	Deleted        bool             `json:"deleted,omitempty"`
	Attachments    []AttachmentView `json:"attachments,omitempty"`
	CreatedAt      time.Time        `json:"createdAt"`
}

type MessageDeliveredPayload struct {
	MessageID      uuid.UUID  `json:"messageId"`
	ConversationID *uuid.UUID `json:"conversationId,omitempty"`
	Status         string     `json:"status"`
	Timestamp      time.Time  `json:"timestamp"`
}

type MessagesReadPayload struct {
	ConversationID uuid.UUID `json:"conversationId"`
	ReaderID       uuid.UUID `json:"readerId"`
	Timestamp      time.Time `json:"timestamp"`
}

type MessageEditedPayload struct {
	MessageID      uuid.UUID  `json:"messageId"`
	ConversationID *uuid.UUID `json:"conversationId,omitempty"`
	Content        string     `json:"newContent"`
	EditedAt       time.Time  `json:"editedAt"`
}

type MessageDeletedPayload struct {
	MessageID      uuid.UUID  `json:"messageId"`
	ConversationID *uuid.UUID `json:"conversationId,omitempty"`
	Timestamp      time.Time  `json:"timestamp"`
}

// ReactionEventPayload backs reaction-added and reaction-removed.
type ReactionEventPayload struct {
	MessageID      uuid.UUID  `json:"messageId"`
	ConversationID *uuid.UUID `json:"conversationId,omitempty"`
	UserID         uuid.UUID  `json:"userId"`
	Emoji          string     `json:"emoji"`
	Timestamp      time.Time  `json:"timestamp"`
}

type MissedMessagesPayload struct {
	Messages  []MessageView `json:"messages"`
	Count     int           `json:"count"`
	Timestamp time.Time     `json:"timestamp"`
}

type ConversationCreatedPayload struct {
	ConversationID uuid.UUID   `json:"conversationId"`
	Name           string      `json:"name,omitempty"`
	IsGroup        bool        `json:"isGroup"`
	ParticipantIDs []uuid.UUID `json:"participantIds"`
	CreatedBy      uuid.UUID   `json:"createdBy"`
	Timestamp      time.Time   `json:"timestamp"`
}

// GroupMembershipPayload backs group-user-added, group-user-removed
// and removed-from-group.
type GroupMembershipPayload struct {
	ConversationID uuid.UUID  `json:"conversationId"`
	UserID         uuid.UUID  `json:"userId"`
	ActorID        *uuid.UUID `json:"actorId,omitempty"`
	Timestamp      time.Time  `json:"timestamp"`
}

type GroupUpdatedPayload struct {
	ConversationID uuid.UUID `json:"conversationId"`
	Name           string    `json:"name,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

type PongPayload struct {
	Timestamp time.Time `json:"timestamp"`
}
