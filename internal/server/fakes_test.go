package server

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"relaychat/internal/domain/conversation"
	"relaychat/internal/domain/message"
	"relaychat/internal/domain/user"
	"relaychat/internal/events"
	relay_errors "relaychat/pkg/errors"
)

// In-memory repository fakes backing the hub tests. The hub takes its
// optional collaborators as nil, so no Redis or media bucket is needed.

type fakeUserRepo struct {
	mu       sync.Mutex
	users    map[uuid.UUID]user.User
	online   map[uuid.UUID]bool
	lastSeen map[uuid.UUID]time.Time
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users:    make(map[uuid.UUID]user.User),
		online:   make(map[uuid.UUID]bool),
		lastSeen: make(map[uuid.UUID]time.Time),
	}
}

func (f *fakeUserRepo) add(displayName string) user.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := user.User{ID: uuid.New(), DisplayName: displayName, Email: displayName + "@test.dev"}
	f.users[u.ID] = u
	return u
}

func (f *fakeUserRepo) Create(ctx context.Context, u *user.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[u.ID] = *u
	return nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id uuid.UUID) (user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return user.User{}, relay_errors.ErrNotFound
	}
	return u, nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return user.User{}, relay_errors.ErrNotFound
}

func (f *fakeUserRepo) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []user.User
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeUserRepo) UpdateOnlineStatus(ctx context.Context, userID uuid.UUID, isOnline bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.online[userID] = isOnline
	return nil
}

func (f *fakeUserRepo) UpdateLastSeen(ctx context.Context, userID uuid.UUID, lastSeen time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastSeen[userID] = lastSeen
	return nil
}

type fakeConversationRepo struct {
	mu            sync.Mutex
	conversations map[uuid.UUID]conversation.Conversation
	sequences     map[uuid.UUID]int64
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{
		conversations: make(map[uuid.UUID]conversation.Conversation),
		sequences:     make(map[uuid.UUID]int64),
	}
}

func (f *fakeConversationRepo) add(isGroup bool, members ...uuid.UUID) conversation.Conversation {
	f.mu.Lock()
	defer f.mu.Unlock()
	conv := conversation.Conversation{ID: uuid.New(), IsGroup: isGroup, CreatedAt: time.Now()}
	for _, m := range members {
		conv.Participants = append(conv.Participants, conversation.Participant{
			ConversationID: conv.ID,
			UserID:         m,
			Role:           conversation.RoleMember,
			JoinedAt:       time.Now(),
		})
	}
	f.conversations[conv.ID] = conv
	return conv
}

func (f *fakeConversationRepo) Create(ctx context.Context, c *conversation.Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conversations[c.ID] = *c
	return nil
}

func (f *fakeConversationRepo) GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.conversations[id]
	if !ok {
		return conversation.Conversation{}, relay_errors.ErrNotFound
	}
	return c, nil
}

func (f *fakeConversationRepo) Update(ctx context.Context, c conversation.Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.conversations[c.ID]; !ok {
		return relay_errors.ErrNotFound
	}
	f.conversations[c.ID] = c
	return nil
}

func (f *fakeConversationRepo) GetUserConversations(ctx context.Context, userID uuid.UUID) ([]conversation.Conversation, error) {
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

func (f *fakeConversationRepo) GetDirectConversation(ctx context.Context, userID1, userID2 uuid.UUID) (conversation.Conversation, error) {
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

func (f *fakeConversationRepo) AddParticipant(ctx context.Context, p *conversation.Participant) error {
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

func (f *fakeConversationRepo) RemoveParticipant(ctx context.Context, conversationID, userID uuid.UUID) error {
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

func (f *fakeConversationRepo) GetParticipants(ctx context.Context, conversationID uuid.UUID) ([]conversation.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.conversations[conversationID]
	if !ok {
		return nil, relay_errors.ErrNotFound
	}
	return c.Participants, nil
}

func (f *fakeConversationRepo) IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
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

func (f *fakeConversationRepo) IncrementSequence(ctx context.Context, conversationID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sequences[conversationID]++
	return f.sequences[conversationID], nil
}

type fakeMessageRepo struct {
	mu          sync.Mutex
	messages    map[uuid.UUID]message.Message
	edits       map[uuid.UUID][]message.MessageEdit
	reactions   map[uuid.UUID][]message.MessageReaction
	attachments map[uuid.UUID]message.Attachment

	// when set, GetUnreadForUser blocks until the channel is closed,
	// standing in for a slow store call
	unreadGate chan struct{}
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{
		messages:    make(map[uuid.UUID]message.Message),
		edits:       make(map[uuid.UUID][]message.MessageEdit),
		reactions:   make(map[uuid.UUID][]message.MessageReaction),
		attachments: make(map[uuid.UUID]message.Attachment),
	}
}

func (f *fakeMessageRepo) get(id uuid.UUID) message.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.messages[id]
}

func (f *fakeMessageRepo) Create(ctx context.Context, m *message.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[m.ID] = *m
	return nil
}

func (f *fakeMessageRepo) GetByID(ctx context.Context, id uuid.UUID) (message.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[id]
	if !ok {
		return message.Message{}, relay_errors.ErrNotFound
	}
	return m, nil
}

func (f *fakeMessageRepo) Update(ctx context.Context, m message.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.messages[m.ID]; !ok {
		return relay_errors.ErrNotFound
	}
	f.messages[m.ID] = m
	return nil
}

func (f *fakeMessageRepo) AdvanceStatus(ctx context.Context, messageID uuid.UUID, next message.Status) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[messageID]
	if !ok {
		return false, relay_errors.ErrNotFound
	}
	if !m.Status.CanAdvanceTo(next) {
		return false, nil
	}
	m.Status = next
	f.messages[messageID] = m
	return true, nil
}

func (f *fakeMessageRepo) MarkConversationRead(ctx context.Context, conversationID, readerID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, m := range f.messages {
		if !m.ConversationID.Valid || m.ConversationID.UUID != conversationID {
			continue
		}
		if m.SenderID == readerID || m.Status == message.StatusRead {
			continue
		}
		m.Status = message.StatusRead
		f.messages[id] = m
		n++
	}
	return n, nil
}

func (f *fakeMessageRepo) GetConversationMessages(ctx context.Context, conversationID uuid.UUID, page, limit int) ([]message.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []message.Message
	for _, m := range f.messages {
		if m.ConversationID.Valid && m.ConversationID.UUID == conversationID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMessageRepo) GetUnreadForUser(ctx context.Context, userID uuid.UUID) ([]message.Message, error) {
	f.mu.Lock()
	gate := f.unreadGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	var out []message.Message
	for _, m := range f.messages {
		if m.SenderID == userID || m.Status == message.StatusRead {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeMessageRepo) GetMessagesSince(ctx context.Context, userID uuid.UUID, since time.Time) ([]message.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []message.Message
	for _, m := range f.messages {
		if m.SenderID == userID || !m.CreatedAt.After(since) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeMessageRepo) AddEdit(ctx context.Context, e *message.MessageEdit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits[e.MessageID] = append(f.edits[e.MessageID], *e)
	return nil
}

func (f *fakeMessageRepo) GetEdits(ctx context.Context, messageID uuid.UUID) ([]message.MessageEdit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.edits[messageID], nil
}

func (f *fakeMessageRepo) AddReaction(ctx context.Context, r *message.MessageReaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.reactions[r.MessageID] {
		if existing.UserID == r.UserID && existing.Emoji == r.Emoji {
			return relay_errors.ErrAlreadyExists
		}
	}
	f.reactions[r.MessageID] = append(f.reactions[r.MessageID], *r)
	return nil
}

func (f *fakeMessageRepo) RemoveReaction(ctx context.Context, messageID, userID uuid.UUID, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.reactions[messageID][:0]
	for _, r := range f.reactions[messageID] {
		if r.UserID != userID || r.Emoji != emoji {
			kept = append(kept, r)
		}
	}
	f.reactions[messageID] = kept
	return nil
}

func (f *fakeMessageRepo) GetReactions(ctx context.Context, messageID uuid.UUID) ([]message.MessageReaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reactions[messageID], nil
}

func (f *fakeMessageRepo) CreateAttachment(ctx context.Context, a *message.Attachment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attachments[a.ID] = *a
	return nil
}

func (f *fakeMessageRepo) LinkAttachments(ctx context.Context, messageID uuid.UUID, attachmentIDs []uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range attachmentIDs {
		a, ok := f.attachments[id]
		if !ok {
			return relay_errors.ErrNotFound
		}
		a.MessageID = uuid.NullUUID{UUID: messageID, Valid: true}
		f.attachments[id] = a
	}
	return nil
}

func (f *fakeMessageRepo) GetAttachments(ctx context.Context, messageID uuid.UUID) ([]message.Attachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []message.Attachment
	for _, a := range f.attachments {
		if a.MessageID.Valid && a.MessageID.UUID == messageID {
			out = append(out, a)
		}
	}
	return out, nil
}

// Test wiring helpers.

type hubFixture struct {
	hub   *Hub
	users *fakeUserRepo
	convs *fakeConversationRepo
	msgs  *fakeMessageRepo
}

func newHubFixture() *hubFixture {
	users := newFakeUserRepo()
	convs := newFakeConversationRepo()
	msgs := newFakeMessageRepo()
	return &hubFixture{
		hub:   NewHub(users, convs, msgs, nil, nil, nil),
		users: users,
		convs: convs,
		msgs:  msgs,
	}
}

// drainBroadcasts applies every pending broadcast synchronously so the
// hub run loop does not need to be started in tests.
func (fx *hubFixture) drainBroadcasts() {
	for {
		select {
		case req := <-fx.hub.broadcast:
			fx.hub.handleBroadcast(req)
		default:
			return
		}
	}
}

func inFrame(t *testing.T, frameType, id string, payload interface{}) events.Frame {
	t.Helper()
	raw, err := events.Encode(frameType, payload)
	require.NoError(t, err)
	f, err := events.DecodeFrame(raw)
	require.NoError(t, err)
	f.ID = id
	return f
}

// recvFrame pops the next queued outbound frame or fails the test.
func recvFrame(t *testing.T, c *Client) events.Frame {
	t.Helper()
	select {
	case data := <-c.send:
		f, err := events.DecodeFrame(data)
		require.NoError(t, err)
		return f
	default:
		t.Fatal("no frame queued")
		return events.Frame{}
	}
}

func noFrame(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.send:
		t.Fatalf("unexpected frame queued: %s", data)
	default:
	}
}
