package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"relaychat/internal/domain/conversation"
	"relaychat/internal/events"
	redispkg "relaychat/internal/redis"
	"relaychat/internal/repository"
	relay_errors "relaychat/pkg/errors"
	"relaychat/pkg/logger"
)

// ConversationService owns the REST-side conversation surface. Every
// mutation that affects room membership is published to the hub
// bridge so live connections follow along.
type ConversationService struct {
	conversationRepo repository.ConversationRepository
	userRepo         repository.UserRepository
	publisher        *redispkg.Publisher
	logger           *logger.Logger
}

func NewConversationService(
	conversationRepo repository.ConversationRepository,
	userRepo repository.UserRepository,
	publisher *redispkg.Publisher,
	l *logger.Logger,
) *ConversationService {
	return &ConversationService{
		conversationRepo: conversationRepo,
		userRepo:         userRepo,
		publisher:        publisher,
		logger:           l,
	}
}

type CreateConversationInput struct {
	Name           string
	IsGroup        bool
	ParticipantIDs []uuid.UUID
}

// Create builds a conversation with the creator as first participant.
// Direct conversations deduplicate: asking again for the same pair
// returns the existing one.
func (s *ConversationService) Create(ctx context.Context, creatorID uuid.UUID, in CreateConversationInput) (conversation.Conversation, error) {
	participantIDs := dedupeParticipants(creatorID, in.ParticipantIDs)

	if !in.IsGroup {
		if len(participantIDs) != 2 {
			return conversation.Conversation{}, relay_errors.ErrInvalidInput
		}
		existing, err := s.conversationRepo.GetDirectConversation(ctx, participantIDs[0], participantIDs[1])
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, relay_errors.ErrNotFound) {
			return conversation.Conversation{}, err
		}
	} else if len(participantIDs) < 2 {
		return conversation.Conversation{}, relay_errors.ErrInvalidInput
	}

	users, err := s.userRepo.GetByIDs(ctx, participantIDs)
	if err != nil {
		return conversation.Conversation{}, err
	}
	if len(users) != len(participantIDs) {
		return conversation.Conversation{}, relay_errors.ErrNotFound
	}

	now := time.Now()
	conv := conversation.Conversation{
		ID:        uuid.New(),
		Name:      toNullString(in.Name),
		IsGroup:   in.IsGroup,
		CreatedBy: uuid.NullUUID{UUID: creatorID, Valid: true},
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, userID := range participantIDs {
		role := conversation.RoleMember
		if in.IsGroup && userID == creatorID {
			role = conversation.RoleAdmin
		}
		conv.Participants = append(conv.Participants, conversation.Participant{
			UserID:   userID,
			Role:     role,
			JoinedAt: now,
			AddedBy:  uuid.NullUUID{UUID: creatorID, Valid: true},
		})
	}

	if err := s.conversationRepo.Create(ctx, &conv); err != nil {
		return conversation.Conversation{}, err
	}

	s.publishBridge(ctx, events.BridgeConversationCreated, events.BridgeConversation{
		ConversationID: conv.ID,
		Name:           in.Name,
		IsGroup:        conv.IsGroup,
		ParticipantIDs: participantIDs,
		CreatedBy:      creatorID,
	})

	return conv, nil
}

func (s *ConversationService) List(ctx context.Context, userID uuid.UUID) ([]conversation.Conversation, error) {
	return s.conversationRepo.GetUserConversations(ctx, userID)
}

func (s *ConversationService) Get(ctx context.Context, conversationID, userID uuid.UUID) (conversation.Conversation, error) {
	conv, err := s.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return conversation.Conversation{}, err
	}
	if !hasParticipant(conv, userID) {
		return conversation.Conversation{}, relay_errors.ErrNotParticipant
	}
	return conv, nil
}

// AddParticipant adds a member to a group conversation. Only current
// participants may add; direct conversations never grow.
func (s *ConversationService) AddParticipant(ctx context.Context, conversationID, actorID, userID uuid.UUID) error {
	conv, err := s.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.IsGroup {
		return relay_errors.ErrConflict
	}
	if !hasParticipant(conv, actorID) {
		return relay_errors.ErrNotParticipant
	}
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return err
	}

	if err := s.conversationRepo.AddParticipant(ctx, &conversation.Participant{
		ConversationID: conversationID,
		UserID:         userID,
		Role:           conversation.RoleMember,
		JoinedAt:       time.Now(),
		AddedBy:        uuid.NullUUID{UUID: actorID, Valid: true},
	}); err != nil {
		return err
	}

	s.publishBridge(ctx, events.BridgeParticipantAdded, events.BridgeParticipant{
		ConversationID: conversationID,
		UserID:         userID,
		ActorID:        actorID,
	})
	return nil
}

// RemoveParticipant removes a group member. Members may remove
// themselves; removing someone else requires the admin role.
func (s *ConversationService) RemoveParticipant(ctx context.Context, conversationID, actorID, userID uuid.UUID) error {
	conv, err := s.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.IsGroup {
		return relay_errors.ErrConflict
	}
	if actorID != userID && !hasRole(conv, actorID, conversation.RoleAdmin) {
		return relay_errors.ErrForbidden
	}

	if err := s.conversationRepo.RemoveParticipant(ctx, conversationID, userID); err != nil {
		return err
	}

	s.publishBridge(ctx, events.BridgeParticipantRemoved, events.BridgeParticipant{
		ConversationID: conversationID,
		UserID:         userID,
		ActorID:        actorID,
	})
	return nil
}

// Rename updates a group conversation's name.
func (s *ConversationService) Rename(ctx context.Context, conversationID, actorID uuid.UUID, name string) error {
	if name == "" {
		return relay_errors.ErrInvalidInput
	}
	conv, err := s.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.IsGroup {
		return relay_errors.ErrConflict
	}
	if !hasParticipant(conv, actorID) {
		return relay_errors.ErrNotParticipant
	}

	conv.Name = sql.NullString{String: name, Valid: true}
	conv.UpdatedAt = time.Now()
	if err := s.conversationRepo.Update(ctx, conv); err != nil {
		return err
	}

	s.publishBridge(ctx, events.BridgeConversationUpdated, events.BridgeConversation{
		ConversationID: conversationID,
		Name:           name,
		IsGroup:        true,
	})
	return nil
}

// publishBridge is fire-and-forget: a publish failure means live
// connections miss one notification, which the next reconnect repairs.
func (s *ConversationService) publishBridge(ctx context.Context, eventType string, payload interface{}) {
	if s.publisher == nil {
		return
	}
	env, err := events.NewEnvelope(eventType, payload)
	if err != nil {
		s.logger.Errorf("build bridge envelope %s: %s", eventType, err)
		return
	}
	data, err := json.Marshal(env)
	if err != nil {
		s.logger.Errorf("marshal bridge envelope %s: %s", eventType, err)
		return
	}
	if err := s.publisher.Publish(ctx, events.ChannelHubBridge, data); err != nil {
		s.logger.Errorf("publish bridge event %s: %s", eventType, err)
	}
}

func dedupeParticipants(creatorID uuid.UUID, ids []uuid.UUID) []uuid.UUID {
	seen := map[uuid.UUID]bool{creatorID: true}
	out := []uuid.UUID{creatorID}
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func hasParticipant(conv conversation.Conversation, userID uuid.UUID) bool {
	for _, p := range conv.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

func hasRole(conv conversation.Conversation, userID uuid.UUID, role string) bool {
	for _, p := range conv.Participants {
		if p.UserID == userID && p.Role == role {
			return true
		}
	}
	return false
}
