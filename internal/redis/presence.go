package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// PresenceStatus mirrors a user's global online state. The in-process
// registry is authoritative for routing; this mirror exists so the
// REST layer can answer presence queries without touching the hub.
type PresenceStatus struct {
	UserID   string    `json:"user_id"`
	IsOnline bool      `json:"is_online"`
	LastSeen time.Time `json:"last_seen"`
}

// PresenceStore keeps the presence mirror and typing indicator sets.
type PresenceStore struct {
	client *goredis.Client
	ttl    time.Duration
}

const (
	presenceKeyPrefix = "presence:"
	presenceOnlineSet = "presence:online"
	typingKeyPrefix   = "typing:"
)

func NewPresenceStore(client *goredis.Client, ttl time.Duration) *PresenceStore {
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	return &PresenceStore{client: client, ttl: ttl}
}

// SetOnline marks a user online in the mirror.
func (p *PresenceStore) SetOnline(ctx context.Context, userID string) error {
	status := PresenceStatus{UserID: userID, IsOnline: true, LastSeen: time.Now()}
	data, _ := json.Marshal(status)

	pipe := p.client.Pipeline()
	pipe.Set(ctx, presenceKeyPrefix+userID, data, p.ttl)
	pipe.SAdd(ctx, presenceOnlineSet, userID)
	_, err := pipe.Exec(ctx)
	return err
}

// SetOffline marks a user offline. The record is kept around longer
// than the online TTL so last-seen queries keep working.
func (p *PresenceStore) SetOffline(ctx context.Context, userID string, lastSeen time.Time) error {
	status := PresenceStatus{UserID: userID, IsOnline: false, LastSeen: lastSeen}
	data, _ := json.Marshal(status)

	pipe := p.client.Pipeline()
	pipe.Set(ctx, presenceKeyPrefix+userID, data, 24*time.Hour)
	pipe.SRem(ctx, presenceOnlineSet, userID)
	_, err := pipe.Exec(ctx)
	return err
}

// GetPresence returns the mirrored status, defaulting to offline.
func (p *PresenceStore) GetPresence(ctx context.Context, userID string) (*PresenceStatus, error) {
	data, err := p.client.Get(ctx, presenceKeyPrefix+userID).Result()
	if err == goredis.Nil {
		return &PresenceStatus{UserID: userID, IsOnline: false}, nil
	}
	if err != nil {
		return nil, err
	}

	var status PresenceStatus
	if err := json.Unmarshal([]byte(data), &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// GetOnlineUsers returns all mirrored online user IDs.
func (p *PresenceStore) GetOnlineUsers(ctx context.Context) ([]string, error) {
	return p.client.SMembers(ctx, presenceOnlineSet).Result()
}

// TrackTyping mirrors a typing indicator with a safety expiry so a
// crashed client cannot stay "typing" forever.
func (p *PresenceStore) TrackTyping(ctx context.Context, conversationID, userID string, isTyping bool) error {
	key := typingKeyPrefix + conversationID

	if isTyping {
		pipe := p.client.Pipeline()
		pipe.SAdd(ctx, key, userID)
		pipe.Expire(ctx, key, 10*time.Second)
		_, err := pipe.Exec(ctx)
		return err
	}

	return p.client.SRem(ctx, key, userID).Err()
}

// GetTypingUsers returns users currently typing in a conversation.
func (p *PresenceStore) GetTypingUsers(ctx context.Context, conversationID string) ([]string, error) {
	return p.client.SMembers(ctx, typingKeyPrefix+conversationID).Result()
}

// ChannelPresence is the pub/sub channel for presence mirror updates.
func ChannelPresence(userID string) string {
	return fmt.Sprintf("channel:presence:%s", userID)
}
