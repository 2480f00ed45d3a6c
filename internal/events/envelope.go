package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Envelope wraps bridge events published over Redis by the REST side.
// The hub subscriber unwraps it and acts on the event type.
type Envelope struct {
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// NewEnvelope marshals payload into a ready-to-publish envelope.
func NewEnvelope(eventType string, payload interface{}) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{EventType: eventType, OccurredAt: time.Now(), Payload: raw}, nil
}

// BridgeConversation carries conversation.created and
// conversation.updated.
type BridgeConversation struct {
	ConversationID uuid.UUID   `json:"conversation_id"`
	Name           string      `json:"name,omitempty"`
	IsGroup        bool        `json:"is_group"`
	ParticipantIDs []uuid.UUID `json:"participant_ids"`
	CreatedBy      uuid.UUID   `json:"created_by"`
}

// BridgeParticipant carries participant.added and participant.removed.
type BridgeParticipant struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	UserID         uuid.UUID `json:"user_id"`
	ActorID        uuid.UUID `json:"actor_id"`
}

// ConversationChannel names the Redis channel for one conversation.
func ConversationChannel(conversationID uuid.UUID) string {
	return ChannelPrefixConversation + conversationID.String()
}

// PresenceChannel names the Redis channel for one user's presence.
func PresenceChannel(userID uuid.UUID) string {
	return ChannelPrefixPresence + userID.String()
}
