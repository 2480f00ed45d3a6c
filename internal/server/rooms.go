package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"relaychat/internal/events"
	relay_errors "relaychat/pkg/errors"
)

// RoomSet maps conversation IDs to the connections subscribed to
// them. Membership mirrors each client's own room set so teardown can
// go both ways.
type RoomSet struct {
	mu    sync.RWMutex
	rooms map[uuid.UUID]map[*Client]struct{}
}

func NewRoomSet() *RoomSet {
	return &RoomSet{rooms: make(map[uuid.UUID]map[*Client]struct{})}
}

func (rs *RoomSet) Join(conversationID uuid.UUID, c *Client) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	members, ok := rs.rooms[conversationID]
	if !ok {
		members = make(map[*Client]struct{})
		rs.rooms[conversationID] = members
	}
	members[c] = struct{}{}
	c.addRoom(conversationID)
}

func (rs *RoomSet) Leave(conversationID uuid.UUID, c *Client) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.leave(conversationID, c)
}

func (rs *RoomSet) leave(conversationID uuid.UUID, c *Client) {
	if members, ok := rs.rooms[conversationID]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(rs.rooms, conversationID)
		}
	}
	c.removeRoom(conversationID)
}

// DropClient removes the connection from every room it joined.
func (rs *RoomSet) DropClient(c *Client) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	for _, conversationID := range c.roomList() {
		rs.leave(conversationID, c)
	}
}

func (rs *RoomSet) Members(conversationID uuid.UUID) []*Client {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	members := rs.rooms[conversationID]
	out := make([]*Client, 0, len(members))
	for c := range members {
		out = append(out, c)
	}
	return out
}

func (rs *RoomSet) MemberCount(conversationID uuid.UUID) int {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return len(rs.rooms[conversationID])
}

// autoJoinAll subscribes a fresh connection to every conversation the
// user participates in. A lookup failure is logged and the connection
// stays live; the client can still join rooms explicitly.
func (h *Hub) autoJoinAll(ctx context.Context, c *Client) {
	conversations, err := h.conversations.GetUserConversations(ctx, c.userID)
	if err != nil {
		h.logger.Error("auto-join lookup failed", c.userID, c.clientID, err)
		return
	}
	for _, conv := range conversations {
		h.rooms.Join(conv.ID, c)
	}
	h.logger.Info("auto-joined conversations", c.userID, c.clientID,
		zap.Int("count", len(conversations)))
}

func (h *Hub) handleJoinConversation(c *Client, frame events.Frame) error {
	var p events.JoinConversationPayload
	if err := decodePayload(frame, &p); err != nil {
		return err
	}

	ok, err := h.conversations.IsParticipant(context.Background(), p.ConversationID, c.userID)
	if err != nil {
		return fmt.Errorf("participant check: %w", err)
	}
	if !ok {
		return relay_errors.ErrNotParticipant
	}

	h.rooms.Join(p.ConversationID, c)
	h.typing.Track(p.ConversationID, c.userID)

	h.ToConversationExcept(p.ConversationID, c.userID,
		h.encode(events.OutUserJoined, events.RoomMembershipPayload{
			ConversationID: p.ConversationID,
			UserID:         c.userID,
			Timestamp:      time.Now(),
		}))
	return nil
}

func (h *Hub) handleLeaveConversation(c *Client, frame events.Frame) error {
	var p events.LeaveConversationPayload
	if err := decodePayload(frame, &p); err != nil {
		return err
	}

	h.rooms.Leave(p.ConversationID, c)
	h.typing.Drop(p.ConversationID, c.userID)

	h.ToConversationExcept(p.ConversationID, c.userID,
		h.encode(events.OutUserLeft, events.RoomMembershipPayload{
			ConversationID: p.ConversationID,
			UserID:         c.userID,
			Timestamp:      time.Now(),
		}))
	return nil
}
