package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/scholarsorbit/scholarsorbit-backend/internal/models"
	"github.com/scholarsorbit/scholarsorbit-backend/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRoom(t *testing.T, s *DMStore, a, b string) string {
	t.Helper()
	roomID := a + "_" + b
	_, err := s.EnsureRoom(context.Background(), roomID, a, b)
	require.NoError(t, err)
	return roomID
}

func TestEnsureRoomUnionsParticipants(t *testing.T) {
	s := NewDMStore()
	ctx := context.Background()

	room, err := s.EnsureRoom(ctx, "u1_u2", "u1", "u2")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"u1", "u2"}, room.Participants)

	room, err = s.EnsureRoom(ctx, "u1_u2", "u2", "u1")
	require.NoError(t, err)
	assert.Len(t, room.Participants, 2)
}

func TestEnsureRoomRefreshesUpdatedAt(t *testing.T) {
	s := NewDMStore()
	ctx := context.Background()

	first, err := s.EnsureRoom(ctx, "u1_u2", "u1", "u2")
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	second, err := s.EnsureRoom(ctx, "u1_u2", "u2", "u1")
	require.NoError(t, err)

	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.Greater(t, second.UpdatedAt, first.UpdatedAt, "re-join refreshes updatedAt")
}

func TestRoomForParticipant(t *testing.T) {
	s := NewDMStore()
	ctx := context.Background()
	roomID := newRoom(t, s, "u1", "u2")

	room, err := s.RoomForParticipant(ctx, roomID, "u1")
	require.NoError(t, err)
	assert.Equal(t, roomID, room.RoomID)

	_, err = s.RoomForParticipant(ctx, roomID, "u3")
	assert.ErrorIs(t, err, storage.ErrNotParticipant)

	// Unknown room folds into the same error, not a distinct not-found.
	_, err = s.RoomForParticipant(ctx, "nope", "u1")
	assert.ErrorIs(t, err, storage.ErrNotParticipant)
}

func TestAppendMessageRejectsNonParticipant(t *testing.T) {
	s := NewDMStore()
	ctx := context.Background()
	roomID := newRoom(t, s, "u1", "u2")

	_, err := s.AppendMessage(ctx, roomID, "u3", "hi")
	assert.ErrorIs(t, err, storage.ErrNotParticipant)

	msgs, err := s.ListMessages(ctx, roomID, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, msgs, "rejected send must persist nothing")
}

func TestAppendMessageInitializesReadBy(t *testing.T) {
	s := NewDMStore()
	ctx := context.Background()
	roomID := newRoom(t, s, "u1", "u2")

	msg, err := s.AppendMessage(ctx, roomID, "u1", "hello")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, msg.ReadBy)
	assert.Equal(t, roomID, msg.RoomID)
	assert.NotEmpty(t, msg.ID)
}

func TestTimestampsMonotonicWithinRoom(t *testing.T) {
	s := NewDMStore()
	ctx := context.Background()
	roomID := newRoom(t, s, "u1", "u2")

	var prev int64
	for i := 0; i < 100; i++ {
		msg, err := s.AppendMessage(ctx, roomID, "u1", fmt.Sprintf("msg %d", i))
		require.NoError(t, err)
		assert.Greater(t, msg.CreatedAt, prev)
		prev = msg.CreatedAt
	}
}

func TestPaginationRoundTrip(t *testing.T) {
	s := NewDMStore()
	ctx := context.Background()
	roomID := newRoom(t, s, "u1", "u2")

	var all []models.Message
	for i := 0; i < 70; i++ {
		msg, err := s.AppendMessage(ctx, roomID, "u1", fmt.Sprintf("msg %d", i))
		require.NoError(t, err)
		all = append(all, *msg)
	}

	// First page: the 30 most recent, ascending.
	page1, err := s.ListMessages(ctx, roomID, 0, 30)
	require.NoError(t, err)
	require.Len(t, page1, 30)
	assert.Equal(t, all[40].ID, page1[0].ID)
	assert.Equal(t, all[69].ID, page1[29].ID)

	// Second page: the 30 before the first page's earliest timestamp.
	page2, err := s.ListMessages(ctx, roomID, page1[0].CreatedAt, 30)
	require.NoError(t, err)
	require.Len(t, page2, 30)
	assert.Equal(t, all[10].ID, page2[0].ID)
	assert.Equal(t, all[39].ID, page2[29].ID, "no overlap, no gap")

	// Third page: only 10 remain.
	page3, err := s.ListMessages(ctx, roomID, page2[0].CreatedAt, 30)
	require.NoError(t, err)
	require.Len(t, page3, 10)
	assert.Equal(t, all[0].ID, page3[0].ID)
}

func TestLastMessage(t *testing.T) {
	s := NewDMStore()
	ctx := context.Background()
	roomID := newRoom(t, s, "u1", "u2")

	last, err := s.LastMessage(ctx, roomID)
	require.NoError(t, err)
	assert.Nil(t, last, "empty room has no last message")

	s.AppendMessage(ctx, roomID, "u1", "first")
	want, err := s.AppendMessage(ctx, roomID, "u2", "second")
	require.NoError(t, err)

	last, err = s.LastMessage(ctx, roomID)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, want.ID, last.ID)
}

func TestRoomsForUser(t *testing.T) {
	s := NewDMStore()
	ctx := context.Background()
	newRoom(t, s, "u1", "u2")
	newRoom(t, s, "u1", "u3")
	newRoom(t, s, "u2", "u3")

	rooms, err := s.RoomsForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, rooms, 2)

	rooms, err = s.RoomsForUser(ctx, "u4")
	require.NoError(t, err)
	assert.Empty(t, rooms)
}

func TestListUsersExcept(t *testing.T) {
	s := NewDMStore()
	ctx := context.Background()
	for _, u := range []models.User{
		{ID: "u1", Name: "Charlie"},
		{ID: "u2", Name: "Alice"},
		{ID: "u3", Name: "Bob"},
	} {
		require.NoError(t, s.PutUser(ctx, u))
	}

	users, err := s.ListUsersExcept(ctx, "u1", 100)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "Alice", users[0].Name)
	assert.Equal(t, "Bob", users[1].Name)

	users, err = s.ListUsersExcept(ctx, "u1", 1)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}
