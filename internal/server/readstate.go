package server

import (
	"context"
	"time"

	"go.uber.org/zap"

	"relaychat/internal/domain/message"
	"relaychat/internal/events"
)

// handleMarkConversationRead bulk-advances everything the reader has
// not yet read in the conversation. Calling it twice, or with nothing
// unread, is harmless.
func (h *Hub) handleMarkConversationRead(c *Client, frame events.Frame) error {
	var p events.MarkConversationReadPayload
	if err := decodePayload(frame, &p); err != nil {
		return err
	}

	n, err := h.messages.MarkConversationRead(context.Background(), p.ConversationID, c.userID)
	if err != nil {
		return err
	}

	h.logger.Info("conversation marked read", c.userID, c.clientID,
		zap.String("conversation_id", p.ConversationID.String()),
		zap.Int64("messages", n))

	h.ToConversationExcept(p.ConversationID, c.userID,
		h.encode(events.OutMessagesRead, events.MessagesReadPayload{
			ConversationID: p.ConversationID,
			ReaderID:       c.userID,
			Timestamp:      time.Now(),
		}))
	return nil
}

// sendUnread pushes one missed-messages frame to a freshly registered
// connection covering everything still unread for the user.
func (h *Hub) sendUnread(c *Client) {
	ctx := context.Background()
	missed, err := h.messages.GetUnreadForUser(ctx, c.userID)
	if err != nil {
		h.logger.Error("unread lookup failed", c.userID, c.clientID, err)
		return
	}
	h.send(c, events.OutMissedMessages, h.missedPayload(ctx, missed))
}

// handleRequestMissedMessages answers an explicit catch-up request
// with everything newer than the client's last seen timestamp.
func (h *Hub) handleRequestMissedMessages(c *Client, frame events.Frame) error {
	var p events.RequestMissedMessagesPayload
	if err := decodePayload(frame, &p); err != nil {
		return err
	}

	ctx := context.Background()
	missed, err := h.messages.GetMessagesSince(ctx, c.userID, p.LastMessageTimestamp)
	if err != nil {
		return err
	}

	h.send(c, events.OutMissedMessages, h.missedPayload(ctx, missed))
	return nil
}

func (h *Hub) missedPayload(ctx context.Context, missed []message.Message) events.MissedMessagesPayload {
	views := make([]events.MessageView, 0, len(missed))
	for _, m := range missed {
		views = append(views, h.messageView(ctx, m))
	}
	return events.MissedMessagesPayload{
		Messages:  views,
		Count:     len(views),
		Timestamp: time.Now(),
	}
}
