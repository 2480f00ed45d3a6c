package server

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomSet_JoinLeave(t *testing.T) {
	rs := NewRoomSet()
	conv := uuid.New()
	a := NewClient(nil, nil, uuid.New())
	b := NewClient(nil, nil, uuid.New())

	rs.Join(conv, a)
	rs.Join(conv, b)

	assert.Equal(t, 2, rs.MemberCount(conv))
	assert.True(t, a.inRoom(conv), "membership mirrors onto the client")

	rs.Leave(conv, a)
	assert.Equal(t, 1, rs.MemberCount(conv))
	assert.False(t, a.inRoom(conv))

	members := rs.Members(conv)
	require.Len(t, members, 1)
	assert.Equal(t, b.clientID, members[0].clientID)
}

func TestRoomSet_JoinIsIdempotent(t *testing.T) {
	rs := NewRoomSet()
	conv := uuid.New()
	c := NewClient(nil, nil, uuid.New())

	rs.Join(conv, c)
	rs.Join(conv, c)
	assert.Equal(t, 1, rs.MemberCount(conv))
}

func TestRoomSet_DropClient(t *testing.T) {
	rs := NewRoomSet()
	conv1 := uuid.New()
	conv2 := uuid.New()
	c := NewClient(nil, nil, uuid.New())
	other := NewClient(nil, nil, uuid.New())

	rs.Join(conv1, c)
	rs.Join(conv2, c)
	rs.Join(conv2, other)

	rs.DropClient(c)

	assert.Equal(t, 0, rs.MemberCount(conv1))
	assert.Equal(t, 1, rs.MemberCount(conv2))
	assert.Empty(t, c.roomList())
	assert.True(t, other.inRoom(conv2))
}

func TestRoomSet_LeaveUnknownRoom(t *testing.T) {
	rs := NewRoomSet()
	c := NewClient(nil, nil, uuid.New())
	rs.Leave(uuid.New(), c)
	assert.Empty(t, c.roomList())
}
