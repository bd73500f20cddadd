package rooms

import (
	"context"
	"fmt"

	"github.com/scholarsorbit/scholarsorbit-backend/internal/models"
	"github.com/scholarsorbit/scholarsorbit-backend/internal/storage"
)

// CanonicalRoomID derives the room ID for a pair of users. The pair is sorted
// lexicographically before joining, so CanonicalRoomID(a, b) ==
// CanonicalRoomID(b, a). User IDs never contain "_" (they are UUIDs or
// database object IDs), so distinct pairs can't collide.
func CanonicalRoomID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "_" + b
}

// Resolver maps user pairs to rooms and materializes room membership in the
// store on first join.
type Resolver struct {
	Store storage.Store
}

// Ensure resolves the canonical room for the pair and upserts its membership.
// Safe under concurrent invocation from both peers: the store upsert unions
// participants rather than read-then-write.
func (r *Resolver) Ensure(ctx context.Context, userA, userB string) (*models.Room, error) {
	roomID := CanonicalRoomID(userA, userB)
	room, err := r.Store.EnsureRoom(ctx, roomID, userA, userB)
	if err != nil {
		return nil, fmt.Errorf("ensure room %s: %w", roomID, err)
	}
	return room, nil
}
