package server

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"relaychat/internal/events"
	redispkg "relaychat/internal/redis"
)

// Bridge feeds REST-side conversation and membership changes into the
// hub over Redis pub/sub, so room state follows what the HTTP API
// does without the two layers sharing memory.
type Bridge struct {
	subscriber *redispkg.Subscriber
	hub        *Hub
	logger     *zap.Logger
}

func NewBridge(subscriber *redispkg.Subscriber, hub *Hub) *Bridge {
	return &Bridge{
		subscriber: subscriber,
		hub:        hub,
		logger:     zap.L().With(zap.String("component", "hub_bridge")),
	}
}

// Run blocks consuming bridge events until the context is cancelled.
func (b *Bridge) Run(ctx context.Context) error {
	return b.subscriber.Subscribe(ctx, []string{events.ChannelHubBridge}, b.handle)
}

func (b *Bridge) handle(channel string, payload []byte) {
	var env events.Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		b.logger.Warn("malformed bridge envelope", zap.String("channel", channel), zap.Error(err))
		return
	}

	switch env.EventType {
	case events.BridgeConversationCreated:
		b.conversationCreated(env)
	case events.BridgeConversationUpdated:
		b.conversationUpdated(env)
	case events.BridgeParticipantAdded:
		b.participantAdded(env)
	case events.BridgeParticipantRemoved:
		b.participantRemoved(env)
	default:
		b.logger.Warn("unknown bridge event", zap.String("event_type", env.EventType))
	}
}

// conversationCreated subscribes every online participant's
// connections to the new room and tells them about it.
func (b *Bridge) conversationCreated(env events.Envelope) {
	var p events.BridgeConversation
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		b.logger.Warn("malformed conversation payload", zap.Error(err))
		return
	}

	notice := b.hub.encode(events.OutConversationCreated, events.ConversationCreatedPayload{
		ConversationID: p.ConversationID,
		Name:           p.Name,
		IsGroup:        p.IsGroup,
		ParticipantIDs: p.ParticipantIDs,
		CreatedBy:      p.CreatedBy,
		Timestamp:      time.Now(),
	})

	for _, userID := range p.ParticipantIDs {
		b.joinUser(p.ConversationID, userID)
		b.hub.ToUser(userID, notice)
	}
}

func (b *Bridge) conversationUpdated(env events.Envelope) {
	var p events.BridgeConversation
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		b.logger.Warn("malformed conversation payload", zap.Error(err))
		return
	}

	b.hub.ToConversation(p.ConversationID, b.hub.encode(events.OutGroupUpdated, events.GroupUpdatedPayload{
		ConversationID: p.ConversationID,
		Name:           p.Name,
		Timestamp:      time.Now(),
	}))
}

func (b *Bridge) participantAdded(env events.Envelope) {
	var p events.BridgeParticipant
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		b.logger.Warn("malformed participant payload", zap.Error(err))
		return
	}

	b.joinUser(p.ConversationID, p.UserID)

	actor := p.ActorID
	b.hub.ToConversation(p.ConversationID, b.hub.encode(events.OutGroupUserAdded, events.GroupMembershipPayload{
		ConversationID: p.ConversationID,
		UserID:         p.UserID,
		ActorID:        &actor,
		Timestamp:      time.Now(),
	}))
}

func (b *Bridge) participantRemoved(env events.Envelope) {
	var p events.BridgeParticipant
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		b.logger.Warn("malformed participant payload", zap.Error(err))
		return
	}

	actor := p.ActorID
	now := time.Now()

	// The removed user hears it directly; the room hears it as a
	// membership change. Order matters: notify first, then detach.
	b.hub.ToUser(p.UserID, b.hub.encode(events.OutRemovedFromGroup, events.GroupMembershipPayload{
		ConversationID: p.ConversationID,
		UserID:         p.UserID,
		ActorID:        &actor,
		Timestamp:      now,
	}))

	for _, c := range b.hub.registry.Connections(p.UserID) {
		b.hub.rooms.Leave(p.ConversationID, c)
	}
	b.hub.typing.Drop(p.ConversationID, p.UserID)

	b.hub.ToConversation(p.ConversationID, b.hub.encode(events.OutGroupUserRemoved, events.GroupMembershipPayload{
		ConversationID: p.ConversationID,
		UserID:         p.UserID,
		ActorID:        &actor,
		Timestamp:      now,
	}))
}

func (b *Bridge) joinUser(conversationID, userID uuid.UUID) {
	for _, c := range b.hub.registry.Connections(userID) {
		b.hub.rooms.Join(conversationID, c)
	}
}
