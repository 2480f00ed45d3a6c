package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"relaychat/internal/domain/user"
	redispkg "relaychat/internal/redis"
	"relaychat/internal/repository"
	"relaychat/pkg/logger"
)

// UserService answers profile and presence queries on the REST side.
// Presence reads prefer the Redis mirror and fall back to the
// persisted row when the mirror is unavailable.
type UserService struct {
	userRepo repository.UserRepository
	presence *redispkg.PresenceStore
	logger   *logger.Logger
}

func NewUserService(userRepo repository.UserRepository, presence *redispkg.PresenceStore, l *logger.Logger) *UserService {
	return &UserService{userRepo: userRepo, presence: presence, logger: l}
}

func (s *UserService) Get(ctx context.Context, userID uuid.UUID) (user.Profile, error) {
	u, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return user.Profile{}, err
	}
	return u.Profile(), nil
}

type PresenceInfo struct {
	UserID   uuid.UUID  `json:"userId"`
	IsOnline bool       `json:"isOnline"`
	LastSeen *time.Time `json:"lastSeen,omitempty"`
}

func (s *UserService) Presence(ctx context.Context, userID uuid.UUID) (PresenceInfo, error) {
	if s.presence != nil {
		status, err := s.presence.GetPresence(ctx, userID.String())
		if err == nil {
			info := PresenceInfo{UserID: userID, IsOnline: status.IsOnline}
			if !status.LastSeen.IsZero() {
				t := status.LastSeen
				info.LastSeen = &t
			}
			return info, nil
		}
		s.logger.Errorf("presence mirror read for %s: %s", userID, err)
	}

	u, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return PresenceInfo{}, err
	}
	info := PresenceInfo{UserID: userID, IsOnline: u.IsOnline}
	if u.LastSeenAt.Valid {
		t := u.LastSeenAt.Time
		info.LastSeen = &t
	}
	return info, nil
}

// TypingUsers lists users currently typing in a conversation, from
// the TTL-guarded mirror set.
func (s *UserService) TypingUsers(ctx context.Context, conversationID uuid.UUID) ([]uuid.UUID, error) {
	if s.presence == nil {
		return nil, nil
	}
	raw, err := s.presence.GetTypingUsers(ctx, conversationID.String())
	if err != nil {
		return nil, err
	}
	out := make([]uuid.UUID, 0, len(raw))
	for _, v := range raw {
		if id, err := uuid.Parse(v); err == nil {
			out = append(out, id)
		}
	}
	return out, nil
}
