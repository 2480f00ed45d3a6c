package services

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relaychat/internal/domain/conversation"
	"relaychat/internal/domain/user"
	relay_errors "relaychat/pkg/errors"
)

type memConversationRepo struct {
	mu            sync.Mutex
	conversations map[uuid.UUID]conversation.Conversation
	sequences     map[uuid.UUID]int64
}

func newMemConversationRepo() *memConversationRepo {
	return &memConversationRepo{
		conversations: make(map[uuid.UUID]conversation.Conversation),
		sequences:     make(map[uuid.UUID]int64),
	}
}

func (f *memConversationRepo) Create(ctx context.Context, c *conversation.Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conversations[c.ID] = *c
	return nil
}

func (f *memConversationRepo) GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.conversations[id]
	if !ok {
		return conversation.Conversation{}, relay_errors.ErrNotFound
	}
	return c, nil
}

func (f *memConversationRepo) Update(ctx context.Context, c conversation.Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.conversations[c.ID]; !ok {
		return relay_errors.ErrNotFound
	}
	f.conversations[c.ID] = c
	return nil
}

func (f *memConversationRepo) GetUserConversations(ctx context.Context, userID uuid.UUID) ([]conversation.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []conversation.Conversation
	for _, c := range f.conversations {
		for _, p := range c.Participants {
			if p.UserID == userID {
				out = append(out, c)
				break
			}
		}
	}
	return out, nil
}

func (f *memConversationRepo) GetDirectConversation(ctx context.Context, userID1, userID2 uuid.UUID) (conversation.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.conversations {
		if c.IsGroup || len(c.Participants) != 2 {
			continue
		}
		members := map[uuid.UUID]bool{}
		for _, p := range c.Participants {
			members[p.UserID] = true
		}
		if members[userID1] && members[userID2] {
			return c, nil
		}
	}
	return conversation.Conversation{}, relay_errors.ErrNotFound
}

func (f *memConversationRepo) AddParticipant(ctx context.Context, p *conversation.Participant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.conversations[p.ConversationID]
	if !ok {
		return relay_errors.ErrNotFound
	}
	c.Participants = append(c.Participants, *p)
	f.conversations[p.ConversationID] = c
	return nil
}

func (f *memConversationRepo) RemoveParticipant(ctx context.Context, conversationID, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.conversations[conversationID]
	if !ok {
		return relay_errors.ErrNotFound
	}
	kept := c.Participants[:0]
	for _, p := range c.Participants {
		if p.UserID != userID {
			kept = append(kept, p)
		}
	}
	c.Participants = kept
	f.conversations[conversationID] = c
	return nil
}

func (f *memConversationRepo) GetParticipants(ctx context.Context, conversationID uuid.UUID) ([]conversation.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.conversations[conversationID]
	if !ok {
		return nil, relay_errors.ErrNotFound
	}
	return c.Participants, nil
}

func (f *memConversationRepo) IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.conversations[conversationID]
	if !ok {
		return false, nil
	}
	for _, p := range c.Participants {
		if p.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (f *memConversationRepo) IncrementSequence(ctx context.Context, conversationID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sequences[conversationID]++
	return f.sequences[conversationID], nil
}

type conversationFixture struct {
	svc   *ConversationService
	convs *memConversationRepo
	users *memUserRepo
}

func newConversationFixture(t *testing.T, userCount int) (*conversationFixture, []uuid.UUID) {
	t.Helper()
	users := newMemUserRepo()
	ids := make([]uuid.UUID, 0, userCount)
	for i := 0; i < userCount; i++ {
		id := uuid.New()
		users.users[id] = user.User{ID: id, DisplayName: "u", Email: id.String() + "@test.dev"}
		ids = append(ids, id)
	}
	convs := newMemConversationRepo()
	return &conversationFixture{
		svc:   NewConversationService(convs, users, nil, nil),
		convs: convs,
		users: users,
	}, ids
}

func TestCreateDirectConversation(t *testing.T) {
	fx, ids := newConversationFixture(t, 2)
	alice, bob := ids[0], ids[1]
	ctx := context.Background()

	conv, err := fx.svc.Create(ctx, alice, CreateConversationInput{
		ParticipantIDs: []uuid.UUID{bob},
	})
	require.NoError(t, err)
	assert.False(t, conv.IsGroup)
	assert.Len(t, conv.Participants, 2)

	// asking again for the same pair returns the existing conversation
	again, err := fx.svc.Create(ctx, bob, CreateConversationInput{
		ParticipantIDs: []uuid.UUID{alice},
	})
	require.NoError(t, err)
	assert.Equal(t, conv.ID, again.ID)
}

func TestCreateDirectConversation_NeedsExactlyTwo(t *testing.T) {
	fx, ids := newConversationFixture(t, 3)
	ctx := context.Background()

	_, err := fx.svc.Create(ctx, ids[0], CreateConversationInput{
		ParticipantIDs: []uuid.UUID{ids[1], ids[2]},
	})
	assert.ErrorIs(t, err, relay_errors.ErrInvalidInput)

	// just the creator is not a conversation either
	_, err = fx.svc.Create(ctx, ids[0], CreateConversationInput{})
	assert.ErrorIs(t, err, relay_errors.ErrInvalidInput)
}

func TestCreateGroupConversation(t *testing.T) {
	fx, ids := newConversationFixture(t, 3)
	ctx := context.Background()

	conv, err := fx.svc.Create(ctx, ids[0], CreateConversationInput{
		Name:           "team",
		IsGroup:        true,
		ParticipantIDs: []uuid.UUID{ids[1], ids[2]},
	})
	require.NoError(t, err)
	assert.True(t, conv.IsGroup)
	assert.Equal(t, "team", conv.Name.String)
	require.Len(t, conv.Participants, 3)

	// creator gets the admin role, everyone else member
	for _, p := range conv.Participants {
		if p.UserID == ids[0] {
			assert.Equal(t, conversation.RoleAdmin, p.Role)
		} else {
			assert.Equal(t, conversation.RoleMember, p.Role)
		}
	}
}

func TestCreateConversation_UnknownParticipant(t *testing.T) {
	fx, ids := newConversationFixture(t, 1)
	_, err := fx.svc.Create(context.Background(), ids[0], CreateConversationInput{
		ParticipantIDs: []uuid.UUID{uuid.New()},
	})
	assert.ErrorIs(t, err, relay_errors.ErrNotFound)
}

func TestGetConversation_ParticipantOnly(t *testing.T) {
	fx, ids := newConversationFixture(t, 3)
	ctx := context.Background()

	conv, err := fx.svc.Create(ctx, ids[0], CreateConversationInput{
		ParticipantIDs: []uuid.UUID{ids[1]},
	})
	require.NoError(t, err)

	_, err = fx.svc.Get(ctx, conv.ID, ids[0])
	assert.NoError(t, err)

	_, err = fx.svc.Get(ctx, conv.ID, ids[2])
	assert.ErrorIs(t, err, relay_errors.ErrNotParticipant)
}

func TestAddParticipant(t *testing.T) {
	fx, ids := newConversationFixture(t, 4)
	ctx := context.Background()

	group, err := fx.svc.Create(ctx, ids[0], CreateConversationInput{
		IsGroup:        true,
		ParticipantIDs: []uuid.UUID{ids[1]},
	})
	require.NoError(t, err)

	require.NoError(t, fx.svc.AddParticipant(ctx, group.ID, ids[1], ids[2]))

	parts, _ := fx.convs.GetParticipants(ctx, group.ID)
	assert.Len(t, parts, 3)

	// outsiders cannot add
	err = fx.svc.AddParticipant(ctx, group.ID, ids[3], ids[3])
	assert.ErrorIs(t, err, relay_errors.ErrNotParticipant)

	// direct conversations never grow
	direct, err := fx.svc.Create(ctx, ids[0], CreateConversationInput{
		ParticipantIDs: []uuid.UUID{ids[1]},
	})
	require.NoError(t, err)
	err = fx.svc.AddParticipant(ctx, direct.ID, ids[0], ids[2])
	assert.ErrorIs(t, err, relay_errors.ErrConflict)
}

func TestRemoveParticipant(t *testing.T) {
	fx, ids := newConversationFixture(t, 3)
	ctx := context.Background()

	group, err := fx.svc.Create(ctx, ids[0], CreateConversationInput{
		IsGroup:        true,
		ParticipantIDs: []uuid.UUID{ids[1], ids[2]},
	})
	require.NoError(t, err)

	// a member may not remove someone else
	err = fx.svc.RemoveParticipant(ctx, group.ID, ids[1], ids[2])
	assert.ErrorIs(t, err, relay_errors.ErrForbidden)

	// self-removal is always allowed
	require.NoError(t, fx.svc.RemoveParticipant(ctx, group.ID, ids[2], ids[2]))

	// the admin may remove anyone
	require.NoError(t, fx.svc.RemoveParticipant(ctx, group.ID, ids[0], ids[1]))

	parts, _ := fx.convs.GetParticipants(ctx, group.ID)
	assert.Len(t, parts, 1)
}

func TestRenameConversation(t *testing.T) {
	fx, ids := newConversationFixture(t, 2)
	ctx := context.Background()

	group, err := fx.svc.Create(ctx, ids[0], CreateConversationInput{
		Name:           "before",
		IsGroup:        true,
		ParticipantIDs: []uuid.UUID{ids[1]},
	})
	require.NoError(t, err)

	require.NoError(t, fx.svc.Rename(ctx, group.ID, ids[1], "after"))

	got, _ := fx.convs.GetByID(ctx, group.ID)
	assert.Equal(t, "after", got.Name.String)

	assert.ErrorIs(t, fx.svc.Rename(ctx, group.ID, ids[0], ""), relay_errors.ErrInvalidInput)

	direct, err := fx.svc.Create(ctx, ids[0], CreateConversationInput{
		ParticipantIDs: []uuid.UUID{ids[1]},
	})
	require.NoError(t, err)
	assert.ErrorIs(t, fx.svc.Rename(ctx, direct.ID, ids[0], "nope"), relay_errors.ErrConflict)
}
