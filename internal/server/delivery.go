package server

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"relaychat/internal/domain/message"
	"relaychat/internal/events"
	relay_errors "relaychat/pkg/errors"
)

// handleSendMessage runs the full delivery pipeline: validate, assign
// a sequence number, persist, ack the sender, fan out, then schedule
// the delivered transition. It owns its acks entirely; a failure is
// reported to the caller only and nothing is broadcast.
func (h *Hub) handleSendMessage(c *Client, frame events.Frame) {
	var p events.SendMessagePayload
	if err := decodePayload(frame, &p); err != nil {
		h.sendFailed(c, frame, err)
		return
	}

	ctx := context.Background()

	if h.limiter != nil {
		allowed, err := h.limiter.AllowMessage(ctx, c.userID.String())
		if err != nil {
			h.logger.Error("message rate check failed", c.userID, c.clientID, err)
		} else if !allowed {
			h.sendFailed(c, frame, relay_errors.ErrRateLimited)
			return
		}
	}

	msgType := p.Type
	if msgType == "" {
		msgType = message.TypeText
	}

	m := message.Message{
		ID:        uuid.New(),
		SenderID:  c.userID,
		Content:   p.Content,
		Type:      msgType,
		Status:    message.StatusSent,
		CreatedAt: time.Now(),
	}

	if p.ConversationID != nil {
		convID := *p.ConversationID
		ok, err := h.conversations.IsParticipant(ctx, convID, c.userID)
		if err != nil {
			h.sendFailed(c, frame, fmt.Errorf("participant check: %w", err))
			return
		}
		if !ok {
			h.sendFailed(c, frame, relay_errors.ErrNotParticipant)
			return
		}

		seq, err := h.conversations.IncrementSequence(ctx, convID)
		if err != nil {
			h.sendFailed(c, frame, fmt.Errorf("assign sequence: %w", err))
			return
		}
		m.ConversationID = uuid.NullUUID{UUID: convID, Valid: true}
		m.SeqID = sql.NullInt64{Int64: seq, Valid: true}
	} else {
		m.ReceiverID = uuid.NullUUID{UUID: *p.ReceiverID, Valid: true}
	}

	if err := h.messages.Create(ctx, &m); err != nil {
		h.sendFailed(c, frame, fmt.Errorf("persist message: %w", err))
		return
	}

	if len(p.AttachmentIDs) > 0 {
		if err := h.messages.LinkAttachments(ctx, m.ID, p.AttachmentIDs); err != nil {
			h.logger.Error("link attachments failed", c.userID, c.clientID, err,
				zap.String("message_id", m.ID.String()))
		}
	}

	// Ack before fan-out so the sender always learns the outcome first.
	if frame.ID != "" {
		data, err := events.EncodeAck(frame.ID, events.SendAck{
			Success:   true,
			MessageID: &m.ID,
			Status:    string(m.Status),
		})
		if err != nil {
			h.logger.Error("encode send ack failed", c.userID, c.clientID, err)
		} else {
			c.enqueue(data, h.logger)
		}
	}

	view := h.messageView(ctx, m)
	data := h.encode(events.OutReceiveMessage, view)

	if m.ConversationID.Valid {
		h.ToConversation(m.ConversationID.UUID, data)
	} else {
		// Offline receivers get nothing now; catch-up is pull-based.
		h.ToUser(m.ReceiverID.UUID, data)
	}

	time.AfterFunc(deliveredDelay, func() {
		h.markDelivered(m)
	})
}

func (h *Hub) sendFailed(c *Client, frame events.Frame, cause error) {
	h.logger.Warn("send message rejected", c.userID, c.clientID, zap.Error(cause))
	if frame.ID == "" {
		return
	}
	data, err := events.EncodeAck(frame.ID, events.SendAck{Success: false, Error: cause.Error()})
	if err != nil {
		h.logger.Error("encode send ack failed", c.userID, c.clientID, err)
		return
	}
	c.enqueue(data, h.logger)
}

// markDelivered advances sent to delivered and notifies the sender.
// The guarded update makes it a no-op when a read already won.
func (h *Hub) markDelivered(m message.Message) {
	advanced, err := h.messages.AdvanceStatus(context.Background(), m.ID, message.StatusDelivered)
	if err != nil {
		h.logger.Error("delivered transition failed", m.SenderID, "", err,
			zap.String("message_id", m.ID.String()))
		return
	}
	if !advanced {
		return
	}

	var convID *uuid.UUID
	if m.ConversationID.Valid {
		convID = &m.ConversationID.UUID
	}
	h.ToUser(m.SenderID, h.encode(events.OutMessageDelivered, events.MessageDeliveredPayload{
		MessageID:      m.ID,
		ConversationID: convID,
		Status:         string(message.StatusDelivered),
		Timestamp:      time.Now(),
	}))
}

func (h *Hub) handleEditMessage(c *Client, frame events.Frame) error {
	var p events.EditMessagePayload
	if err := decodePayload(frame, &p); err != nil {
		return err
	}

	ctx := context.Background()
	m, err := h.messages.GetByID(ctx, p.MessageID)
	if err != nil {
		return err
	}
	if m.SenderID != c.userID {
		return relay_errors.ErrForbidden
	}
	if m.Deleted {
		return fmt.Errorf("%w: message is deleted", relay_errors.ErrConflict)
	}

	now := time.Now()
	if err := h.messages.AddEdit(ctx, &message.MessageEdit{
		ID:        uuid.New(),
		MessageID: m.ID,
		Content:   m.Content,
		EditedAt:  now,
	}); err != nil {
		return fmt.Errorf("record edit history: %w", err)
	}

	m.Content = p.Content
	m.Edited = true
	m.EditedAt = sql.NullTime{Time: now, Valid: true}
	if err := h.messages.Update(ctx, m); err != nil {
		return fmt.Errorf("persist edit: %w", err)
	}

	h.routeToAudience(m, h.encode(events.OutMessageEdited, events.MessageEditedPayload{
		MessageID:      m.ID,
		ConversationID: nullableUUID(m.ConversationID),
		Content:        m.Content,
		EditedAt:       now,
	}))
	return nil
}

func (h *Hub) handleDeleteMessage(c *Client, frame events.Frame) error {
	var p events.DeleteMessagePayload
	if err := decodePayload(frame, &p); err != nil {
		return err
	}

	ctx := context.Background()
	m, err := h.messages.GetByID(ctx, p.MessageID)
	if err != nil {
		return err
	}
	if m.SenderID != c.userID {
		return relay_errors.ErrForbidden
	}
	if m.Deleted {
		return nil
	}

	now := time.Now()
	// Keep the last visible content as a history row; the message row
	// itself only carries the placeholder from here on.
	if err := h.messages.AddEdit(ctx, &message.MessageEdit{
		ID:        uuid.New(),
		MessageID: m.ID,
		Content:   m.Content,
		EditedAt:  now,
	}); err != nil {
		return fmt.Errorf("record delete history: %w", err)
	}

	m.Content = message.DeletedPlaceholder
	m.Deleted = true
	m.DeletedAt = sql.NullTime{Time: now, Valid: true}
	if err := h.messages.Update(ctx, m); err != nil {
		return fmt.Errorf("persist delete: %w", err)
	}

	h.routeToAudience(m, h.encode(events.OutMessageDeleted, events.MessageDeletedPayload{
		MessageID:      m.ID,
		ConversationID: nullableUUID(m.ConversationID),
		Timestamp:      now,
	}))
	return nil
}

func (h *Hub) handleAddReaction(c *Client, frame events.Frame) error {
	var p events.ReactionPayload
	if err := decodePayload(frame, &p); err != nil {
		return err
	}

	ctx := context.Background()
	m, err := h.messages.GetByID(ctx, p.MessageID)
	if err != nil {
		return err
	}

	if err := h.messages.AddReaction(ctx, &message.MessageReaction{
		ID:        uuid.New(),
		MessageID: m.ID,
		UserID:    c.userID,
		Emoji:     p.Emoji,
		CreatedAt: time.Now(),
	}); err != nil {
		return err
	}

	h.routeToAudience(m, h.encode(events.OutReactionAdded, events.ReactionEventPayload{
		MessageID:      m.ID,
		ConversationID: nullableUUID(m.ConversationID),
		UserID:         c.userID,
		Emoji:          p.Emoji,
		Timestamp:      time.Now(),
	}))
	return nil
}

func (h *Hub) handleRemoveReaction(c *Client, frame events.Frame) error {
	var p events.ReactionPayload
	if err := decodePayload(frame, &p); err != nil {
		return err
	}

	ctx := context.Background()
	m, err := h.messages.GetByID(ctx, p.MessageID)
	if err != nil {
		return err
	}

	if err := h.messages.RemoveReaction(ctx, m.ID, c.userID, p.Emoji); err != nil {
		return err
	}

	h.routeToAudience(m, h.encode(events.OutReactionRemoved, events.ReactionEventPayload{
		MessageID:      m.ID,
		ConversationID: nullableUUID(m.ConversationID),
		UserID:         c.userID,
		Emoji:          p.Emoji,
		Timestamp:      time.Now(),
	}))
	return nil
}

// routeToAudience sends a message-scoped event to everyone who can
// see the message: the room for conversation messages, both ends for
// direct ones.
func (h *Hub) routeToAudience(m message.Message, data []byte) {
	switch {
	case m.ConversationID.Valid:
		h.ToConversation(m.ConversationID.UUID, data)
	case m.ReceiverID.Valid:
		h.ToUser(m.ReceiverID.UUID, data)
		h.ToUser(m.SenderID, data)
	}
}

// messageView resolves the sender profile and attachment URLs into
// the shape clients render. Lookup failures degrade to a sparser view
// rather than blocking delivery.
func (h *Hub) messageView(ctx context.Context, m message.Message) events.MessageView {
	view := events.MessageView{
		ID:             m.ID,
		ConversationID: nullableUUID(m.ConversationID),
		ReceiverID:     nullableUUID(m.ReceiverID),
		SenderID:       m.SenderID,
		Content:        m.Content,
		Type:           m.Type,
		Status:         string(m.Status),
		Edited:         m.Edited,
		Deleted:        m.Deleted,
		CreatedAt:      m.CreatedAt,
	}
	if m.SeqID.Valid {
		seq := m.SeqID.Int64
		view.SeqID = &seq
	}
	if m.EditedAt.Valid {
		t := m.EditedAt.Time
		view.EditedAt = &t
	}

	if sender, err := h.users.GetByID(ctx, m.SenderID); err == nil {
		view.Sender = &events.SenderProfile{
			ID:          sender.ID,
			DisplayName: sender.DisplayName,
			AvatarURL:   sender.AvatarURL,
		}
	} else {
		h.logger.Warn("sender lookup failed", m.SenderID, "", zap.Error(err))
	}

	attachments, err := h.messages.GetAttachments(ctx, m.ID)
	if err != nil {
		h.logger.Warn("attachment lookup failed", m.SenderID, "", zap.Error(err))
		return view
	}
	for _, a := range attachments {
		av := events.AttachmentView{ID: a.ID, Type: a.Type, SizeBytes: a.SizeBytes}
		if h.media != nil {
			url, err := h.media.PresignGet(ctx, a.ObjectKey)
			if err != nil {
				h.logger.Warn("presign attachment failed", m.SenderID, "", zap.Error(err))
			} else {
				av.URL = url
			}
		}
		view.Attachments = append(view.Attachments, av)
	}
	return view
}

func nullableUUID(id uuid.NullUUID) *uuid.UUID {
	if !id.Valid {
		return nil
	}
	u := id.UUID
	return &u
}
