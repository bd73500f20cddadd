package storage

import (
	"context"
	"errors"

	"github.com/scholarsorbit/scholarsorbit-backend/internal/models"
)

// ErrNotParticipant is returned when a user tries to read or write a room they
// are not a member of. Unknown room IDs return the same error so callers can't
// probe which rooms exist.
var ErrNotParticipant = errors.New("not a participant")

// Store is the persistence interface for DM rooms, messages and the user
// directory. Implementations must provide atomic upsert semantics for
// EnsureRoom: two concurrent joins for the same pair must converge on a single
// room record.
type Store interface {
	// EnsureRoom upserts a room, creating it if absent and unioning the given
	// participants into it otherwise. Re-joining is a no-op.
	EnsureRoom(ctx context.Context, roomID string, participants ...string) (*models.Room, error)

	// RoomForParticipant returns the room only if userID is a participant.
	// Missing room or non-member both yield ErrNotParticipant.
	RoomForParticipant(ctx context.Context, roomID, userID string) (*models.Room, error)

	// AppendMessage persists a new message. The sender must be a participant
	// of the room (ErrNotParticipant otherwise) and is recorded in ReadBy.
	// CreatedAt is assigned monotonically within a room.
	AppendMessage(ctx context.Context, roomID, senderID, content string) (*models.Message, error)

	// ListMessages returns up to limit messages, in ascending chronological
	// order. A non-zero before restricts results to messages created strictly
	// earlier than that unix-millis cursor.
	ListMessages(ctx context.Context, roomID string, before int64, limit int) ([]models.Message, error)

	// RoomsForUser lists every room the user participates in.
	RoomsForUser(ctx context.Context, userID string) ([]models.Room, error)

	// LastMessage returns the newest message in the room, or nil if empty.
	LastMessage(ctx context.Context, roomID string) (*models.Message, error)

	// PutUser upserts a directory record.
	PutUser(ctx context.Context, user models.User) error

	// ListUsersExcept lists directory users other than userID, sorted by name,
	// capped at limit.
	ListUsersExcept(ctx context.Context, userID string, limit int) ([]models.User, error)
}
