package database

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"relaychat/internal/domain/conversation"
	"relaychat/internal/domain/message"
	"relaychat/internal/domain/user"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// SeedConfig controls demo data creation for local development.
type SeedConfig struct {
	DemoPassword string
	UserCount    int
}

func DefaultSeedConfig() *SeedConfig {
	return &SeedConfig{
		DemoPassword: "Password123!",
		UserCount:    4,
	}
}

type SeedResult struct {
	Users         []*user.User
	Conversations []*conversation.Conversation
	Messages      []*message.Message
}

var demoNames = []string{"alice", "bob", "carol", "dave", "erin", "frank"}

// Seed creates demo users, a direct conversation between the first
// two, and a group with everyone. Safe to rerun: existing users are
// reused, not duplicated.
func Seed(cfg *SeedConfig) (*SeedResult, error) {
	if DB == nil {
		return nil, errors.New("database not connected")
	}
	if cfg == nil {
		cfg = DefaultSeedConfig()
	}
	if cfg.UserCount < 2 {
		cfg.UserCount = 2
	}
	if cfg.UserCount > len(demoNames) {
		cfg.UserCount = len(demoNames)
	}

	log.Println("Seeding demo data...")
	result := &SeedResult{}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.DemoPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	for i := 0; i < cfg.UserCount; i++ {
		name := demoNames[i]
		email := fmt.Sprintf("%s@relaychat.dev", name)

		var existing user.User
		err := DB.Where("email = ?", email).First(&existing).Error
		if err == nil {
			result.Users = append(result.Users, &existing)
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}

		u := &user.User{
			ID:           uuid.New(),
			Email:        email,
			Username:     sql.NullString{String: name, Valid: true},
			PasswordHash: string(hash),
			DisplayName:  name,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := DB.Create(u).Error; err != nil {
			return nil, err
		}
		result.Users = append(result.Users, u)
		log.Printf("Created demo user %s", email)
	}

	direct, err := seedConversation(result.Users[:2], false, "", now)
	if err != nil {
		return nil, err
	}
	group, err := seedConversation(result.Users, true, "demo group", now)
	if err != nil {
		return nil, err
	}
	result.Conversations = append(result.Conversations, direct, group)

	greetings := []string{"hey there", "hello!", "how is it going?"}
	for i, content := range greetings {
		sender := result.Users[i%2]
		m := &message.Message{
			ID:             uuid.New(),
			ConversationID: uuid.NullUUID{UUID: direct.ID, Valid: true},
			SenderID:       sender.ID,
			Content:        content,
			Type:           message.TypeText,
			Status:         message.StatusSent,
			SeqID:          sql.NullInt64{Int64: int64(i + 1), Valid: true},
			CreatedAt:      now.Add(time.Duration(i) * time.Second),
		}
		if err := DB.Create(m).Error; err != nil {
			return nil, err
		}
		result.Messages = append(result.Messages, m)
	}

	seq := conversation.ConversationSequence{
		ConversationID: direct.ID,
		LastSequence:   int64(len(greetings)),
		UpdatedAt:      now,
	}
	if err := DB.Save(&seq).Error; err != nil {
		return nil, err
	}

	log.Printf("Seeding complete: %d users, %d conversations, %d messages",
		len(result.Users), len(result.Conversations), len(result.Messages))
	return result, nil
}

func seedConversation(members []*user.User, isGroup bool, name string, now time.Time) (*conversation.Conversation, error) {
	conv := &conversation.Conversation{
		ID:        uuid.New(),
		IsGroup:   isGroup,
		CreatedBy: uuid.NullUUID{UUID: members[0].ID, Valid: true},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if name != "" {
		conv.Name = sql.NullString{String: name, Valid: true}
	}
	if err := DB.Create(conv).Error; err != nil {
		return nil, err
	}

	for i, m := range members {
		role := conversation.RoleMember
		if isGroup && i == 0 {
			role = conversation.RoleAdmin
		}
		p := &conversation.Participant{
			ConversationID: conv.ID,
			UserID:         m.ID,
			Role:           role,
			JoinedAt:       now,
			AddedBy:        uuid.NullUUID{UUID: members[0].ID, Valid: true},
		}
		if err := DB.Create(p).Error; err != nil {
			return nil, err
		}
		conv.Participants = append(conv.Participants, *p)
	}
	return conv, nil
}
