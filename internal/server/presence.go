package server

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"relaychat/internal/events"
	relay_errors "relaychat/pkg/errors"
)

type roomActivity struct {
	JoinedAt     time.Time
	LastActivity time.Time
}

// TypingTracker holds per-conversation activity for users currently
// joined to a room. It is in-memory only and rebuilt from joins after
// a restart; nothing here is durable.
type TypingTracker struct {
	mu    sync.RWMutex
	rooms map[uuid.UUID]map[uuid.UUID]*roomActivity
}

func NewTypingTracker() *TypingTracker {
	return &TypingTracker{rooms: make(map[uuid.UUID]map[uuid.UUID]*roomActivity)}
}

// Track records a user entering a conversation. Re-tracking an
// already tracked user keeps the original join time.
func (t *TypingTracker) Track(conversationID, userID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	room, ok := t.rooms[conversationID]
	if !ok {
		room = make(map[uuid.UUID]*roomActivity)
		t.rooms[conversationID] = room
	}
	if _, ok := room[userID]; !ok {
		now := time.Now()
		room[userID] = &roomActivity{JoinedAt: now, LastActivity: now}
	}
}

// Touch bumps the user's last activity; it is a no-op for users not
// tracked in the conversation.
func (t *TypingTracker) Touch(conversationID, userID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if room, ok := t.rooms[conversationID]; ok {
		if a, ok := room[userID]; ok {
			a.LastActivity = time.Now()
		}
	}
}

func (t *TypingTracker) Drop(conversationID, userID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.drop(conversationID, userID)
}

func (t *TypingTracker) drop(conversationID, userID uuid.UUID) {
	if room, ok := t.rooms[conversationID]; ok {
		delete(room, userID)
		if len(room) == 0 {
			delete(t.rooms, conversationID)
		}
	}
}

// DropUser removes the user from every conversation, used when the
// user's last connection closes.
func (t *TypingTracker) DropUser(userID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for conversationID := range t.rooms {
		t.drop(conversationID, userID)
	}
}

// Participants lists the users tracked in a conversation.
func (t *TypingTracker) Participants(conversationID uuid.UUID) []uuid.UUID {
	t.mu.RLock()
	defer t.mu.RUnlock()

	room := t.rooms[conversationID]
	out := make([]uuid.UUID, 0, len(room))
	for id := range room {
		out = append(out, id)
	}
	return out
}

func (t *TypingTracker) IsTracked(conversationID, userID uuid.UUID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	room, ok := t.rooms[conversationID]
	if !ok {
		return false
	}
	_, ok = room[userID]
	return ok
}

// handleTyping relays a typing indicator to the room, excluding the
// sender. The client owns the idle timer, so start/stop bursts pass
// through untouched.
func (h *Hub) handleTyping(c *Client, frame events.Frame) error {
	var p events.TypingPayload
	if err := decodePayload(frame, &p); err != nil {
		return err
	}

	if !c.inRoom(p.ConversationID) {
		return relay_errors.ErrNotParticipant
	}

	h.typing.Touch(p.ConversationID, c.userID)

	if h.presence != nil {
		if err := h.presence.TrackTyping(context.Background(), p.ConversationID.String(), c.userID.String(), p.IsTyping); err != nil {
			h.logger.Error("typing mirror failed", c.userID, c.clientID, err)
		}
	}

	h.ToConversationExcept(p.ConversationID, c.userID,
		h.encode(events.OutUserTyping, events.UserTypingPayload{
			ConversationID: p.ConversationID,
			SenderID:       c.userID,
			IsTyping:       p.IsTyping,
			Timestamp:      time.Now(),
		}))
	return nil
}
