package server

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypingTracker_TrackAndDrop(t *testing.T) {
	tr := NewTypingTracker()
	conv := uuid.New()
	alice := uuid.New()
	bob := uuid.New()

	tr.Track(conv, alice)
	tr.Track(conv, bob)

	assert.True(t, tr.IsTracked(conv, alice))
	assert.ElementsMatch(t, []uuid.UUID{alice, bob}, tr.Participants(conv))

	tr.Drop(conv, alice)
	assert.False(t, tr.IsTracked(conv, alice))
	assert.True(t, tr.IsTracked(conv, bob))

	tr.Drop(conv, bob)
	assert.Empty(t, tr.Participants(conv))
}

func TestTypingTracker_RetrackKeepsJoinTime(t *testing.T) {
	tr := NewTypingTracker()
	conv := uuid.New()
	alice := uuid.New()

	tr.Track(conv, alice)
	joined := tr.rooms[conv][alice].JoinedAt

	tr.Track(conv, alice)
	assert.Equal(t, joined, tr.rooms[conv][alice].JoinedAt)
}

func TestTypingTracker_TouchUnknownIsNoop(t *testing.T) {
	tr := NewTypingTracker()
	conv := uuid.New()
	tr.Touch(conv, uuid.New())
	assert.Empty(t, tr.Participants(conv))
}

func TestTypingTracker_DropUserEverywhere(t *testing.T) {
	tr := NewTypingTracker()
	alice := uuid.New()
	bob := uuid.New()
	conv1 := uuid.New()
	conv2 := uuid.New()

	tr.Track(conv1, alice)
	tr.Track(conv2, alice)
	tr.Track(conv2, bob)

	tr.DropUser(alice)

	assert.False(t, tr.IsTracked(conv1, alice))
	assert.False(t, tr.IsTracked(conv2, alice))

	remaining := tr.Participants(conv2)
	require.Len(t, remaining, 1)
	assert.Equal(t, bob, remaining[0])
}
