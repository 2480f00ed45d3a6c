package server

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"relaychat/internal/events"
	redispkg "relaychat/internal/redis"
	"relaychat/internal/repository"
	"relaychat/internal/storage"
	relay_errors "relaychat/pkg/errors"
)

// deliveredDelay is how long after fan-out the synthetic delivered
// transition fires. Real per-recipient receipts would replace this.
const deliveredDelay = 750 * time.Millisecond

// Hub owns the connection registry, room membership and all fan-out.
// Registration, unregistration and broadcasts flow through its run
// loop; handler goroutines only ever enqueue.
type Hub struct {
	registry *Registry
	rooms    *RoomSet
	typing   *TypingTracker

	users         repository.UserRepository
	conversations repository.ConversationRepository
	messages      repository.MessageRepository

	// Optional collaborators, nil-checked at call sites so tests can
	// run the hub without Redis or a media bucket.
	presence *redispkg.PresenceStore
	limiter  *redispkg.RateLimiter
	media    *storage.Client

	register   chan *Client
	unregister chan *Client
	broadcast  chan broadcastRequest
	presenceCh chan presenceUpdate
	stopChan   chan struct{}

	logger *SocketLogger
}

// broadcastRequest routes a frame to one conversation, one user, or
// everyone. excludeUser suppresses all connections of that user.
type broadcastRequest struct {
	conversationID uuid.NullUUID
	userID         uuid.NullUUID
	excludeUser    uuid.UUID
	data           []byte
}

// presenceUpdate is one online/offline transition, applied in arrival
// order by the presence worker so status writes never stall fan-out.
type presenceUpdate struct {
	client *Client
	online bool
}

func NewHub(
	users repository.UserRepository,
	conversations repository.ConversationRepository,
	messages repository.MessageRepository,
	presence *redispkg.PresenceStore,
	limiter *redispkg.RateLimiter,
	media *storage.Client,
) *Hub {
	return &Hub{
		registry:      NewRegistry(),
		rooms:         NewRoomSet(),
		typing:        NewTypingTracker(),
		users:         users,
		conversations: conversations,
		messages:      messages,
		presence:      presence,
		limiter:       limiter,
		media:         media,
		register:      make(chan *Client, 256),
		unregister:    make(chan *Client, 256),
		broadcast:     make(chan broadcastRequest, 256),
		presenceCh:    make(chan presenceUpdate, 256),
		stopChan:      make(chan struct{}),
		logger:        NewSocketLogger(),
	}
}

func (h *Hub) Run() {
	go h.presenceLoop()
	for {
		select {
		case client := <-h.register:
			h.handleRegister(client)
		case client := <-h.unregister:
			h.handleUnregister(client)
		case req := <-h.broadcast:
			h.handleBroadcast(req)
		case <-h.stopChan:
			h.closeAll()
			return
		}
	}
}

func (h *Hub) Stop() {
	close(h.stopChan)
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

func (h *Hub) handleRegister(client *Client) {
	ctx := context.Background()

	if h.limiter != nil {
		allowed, err := h.limiter.AllowConnection(ctx, client.userID.String())
		if err != nil {
			h.logger.Error("connection rate check failed", client.userID, client.clientID, err)
		} else if !allowed {
			h.logger.Warn("connection rate limit exceeded", client.userID, client.clientID)
			client.shutdown()
			return
		}
	}

	first := h.registry.Add(client)
	if first {
		h.queuePresence(client, true)
	}

	h.logger.Info("client connected", client.userID, client.clientID,
		zap.Bool("first_connection", first))

	go client.writePump()

	// Room joins and catch-up run off the loop so a slow store call
	// only delays this connection. Inbound frames start flowing once
	// membership is in place; everything the user missed while offline
	// arrives as one missed-messages frame.
	go func() {
		h.autoJoinAll(context.Background(), client)
		go client.readPump()
		h.sendUnread(client)
	}()
}

func (h *Hub) handleUnregister(client *Client) {
	removed, last := h.registry.Remove(client)
	if !removed {
		return
	}

	h.rooms.DropClient(client)
	client.shutdown()

	if last {
		h.typing.DropUser(client.userID)
		h.queuePresence(client, false)
	}

	h.logger.Info("client disconnected", client.userID, client.clientID,
		zap.Bool("last_connection", last))
}

func (h *Hub) markOnline(ctx context.Context, client *Client) {
	if err := h.users.UpdateOnlineStatus(ctx, client.userID, true); err != nil {
		h.logger.Error("persist online status failed", client.userID, client.clientID, err)
	}
	if h.presence != nil {
		if err := h.presence.SetOnline(ctx, client.userID.String()); err != nil {
			h.logger.Error("presence mirror online failed", client.userID, client.clientID, err)
		}
	}
	h.ToAllExcept(client.userID, h.encode(events.OutUserStatus, events.UserStatusPayload{
		UserID:    client.userID,
		IsOnline:  true,
		Timestamp: time.Now(),
	}))
}

func (h *Hub) markOffline(ctx context.Context, client *Client) {
	lastSeen := time.Now()
	if err := h.users.UpdateOnlineStatus(ctx, client.userID, false); err != nil {
		h.logger.Error("persist offline status failed", client.userID, client.clientID, err)
	}
	if err := h.users.UpdateLastSeen(ctx, client.userID, lastSeen); err != nil {
		h.logger.Error("persist last seen failed", client.userID, client.clientID, err)
	}
	if h.presence != nil {
		if err := h.presence.SetOffline(ctx, client.userID.String(), lastSeen); err != nil {
			h.logger.Error("presence mirror offline failed", client.userID, client.clientID, err)
		}
	}
	h.ToAllExcept(client.userID, h.encode(events.OutUserStatus, events.UserStatusPayload{
		UserID:    client.userID,
		IsOnline:  false,
		LastSeen:  &lastSeen,
		Timestamp: lastSeen,
	}))
}

// Broadcast entry points. All of them enqueue onto the run loop so
// fan-out never races registration changes.

func (h *Hub) ToConversation(conversationID uuid.UUID, data []byte) {
	h.enqueueBroadcast(broadcastRequest{
		conversationID: uuid.NullUUID{UUID: conversationID, Valid: true},
		data:           data,
	})
}

func (h *Hub) ToConversationExcept(conversationID, excludeUser uuid.UUID, data []byte) {
	h.enqueueBroadcast(broadcastRequest{
		conversationID: uuid.NullUUID{UUID: conversationID, Valid: true},
		excludeUser:    excludeUser,
		data:           data,
	})
}

func (h *Hub) ToUser(userID uuid.UUID, data []byte) {
	h.enqueueBroadcast(broadcastRequest{
		userID: uuid.NullUUID{UUID: userID, Valid: true},
		data:   data,
	})
}

func (h *Hub) ToAllExcept(excludeUser uuid.UUID, data []byte) {
	h.enqueueBroadcast(broadcastRequest{excludeUser: excludeUser, data: data})
}

func (h *Hub) enqueueBroadcast(req broadcastRequest) {
	if req.data == nil {
		return
	}
	select {
	case h.broadcast <- req:
	case <-h.stopChan:
	}
}

func (h *Hub) handleBroadcast(req broadcastRequest) {
	switch {
	case req.conversationID.Valid:
		for _, c := range h.rooms.Members(req.conversationID.UUID) {
			if c.userID == req.excludeUser {
				continue
			}
			c.enqueue(req.data, h.logger)
		}
	case req.userID.Valid:
		for _, c := range h.registry.Connections(req.userID.UUID) {
			c.enqueue(req.data, h.logger)
		}
	default:
		h.registry.Each(req.excludeUser, func(c *Client) {
			c.enqueue(req.data, h.logger)
		})
	}
}

// encode marshals an outbound frame; a nil return is dropped by the
// broadcast path after logging here.
func (h *Hub) encode(frameType string, payload interface{}) []byte {
	data, err := events.Encode(frameType, payload)
	if err != nil {
		h.logger.Error("encode frame failed", uuid.Nil, "", err,
			zap.String("frame_type", frameType))
		return nil
	}
	return data
}

// send encodes and delivers a frame to a single connection.
func (h *Hub) send(c *Client, frameType string, payload interface{}) {
	if data := h.encode(frameType, payload); data != nil {
		c.enqueue(data, h.logger)
	}
}

type validator interface {
	Validate() error
}

// decodePayload unmarshals and validates an inbound frame payload.
// Every inbound handler runs through it before touching state.
func decodePayload(frame events.Frame, v validator) error {
	if len(frame.Payload) == 0 {
		return fmt.Errorf("%w: missing payload", relay_errors.ErrInvalidInput)
	}
	if err := json.Unmarshal(frame.Payload, v); err != nil {
		return fmt.Errorf("%w: %v", relay_errors.ErrInvalidInput, err)
	}
	return v.Validate()
}

// presenceLoop drains queued presence transitions one at a time,
// keeping the persisted status in the order connections came and went.
func (h *Hub) presenceLoop() {
	for {
		select {
		case u := <-h.presenceCh:
			if u.online {
				h.markOnline(context.Background(), u.client)
			} else {
				h.markOffline(context.Background(), u.client)
			}
		case <-h.stopChan:
			return
		}
	}
}

func (h *Hub) queuePresence(client *Client, online bool) {
	select {
	case h.presenceCh <- presenceUpdate{client: client, online: online}:
	case <-h.stopChan:
	}
}

func (h *Hub) closeAll() {
	h.registry.Each(uuid.Nil, func(c *Client) {
		c.shutdown()
	})
}
