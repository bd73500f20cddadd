package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/scholarsorbit/scholarsorbit-backend/internal/models"
	"github.com/scholarsorbit/scholarsorbit-backend/internal/storage"
)

// DMStore is the in-memory storage backend, used for local development and
// tests. It mirrors the Valkey backend's semantics: atomic membership union,
// append-only messages, monotonic per-room timestamps.
type DMStore struct {
	mu        sync.RWMutex
	rooms     map[string]*models.Room     // roomID -> room
	messages  map[string][]models.Message // roomID -> ordered log
	userRooms map[string]map[string]bool  // userID -> set of roomID
	users     map[string]models.User      // userID -> directory record
	lastTS    map[string]int64            // roomID -> newest CreatedAt handed out
	seq       map[string]int64            // roomID -> insertion sequence
}

func NewDMStore() *DMStore {
	return &DMStore{
		rooms:     make(map[string]*models.Room),
		messages:  make(map[string][]models.Message),
		userRooms: make(map[string]map[string]bool),
		users:     make(map[string]models.User),
		lastTS:    make(map[string]int64),
		seq:       make(map[string]int64),
	}
}

// nextTimestamp assigns a creation time for roomID that never moves backwards
// and never repeats, so "before" cursors stay strict. Caller holds s.mu.
func (s *DMStore) nextTimestamp(roomID string) int64 {
	now := time.Now().UnixMilli()
	if now <= s.lastTS[roomID] {
		now = s.lastTS[roomID] + 1
	}
	s.lastTS[roomID] = now
	return now
}

func (s *DMStore) EnsureRoom(ctx context.Context, roomID string, participants ...string) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	room, ok := s.rooms[roomID]
	if !ok {
		room = &models.Room{
			RoomID:    roomID,
			Type:      models.RoomTypePrivate,
			CreatedAt: now,
		}
		s.rooms[roomID] = room
	}
	// Every upsert refreshes updatedAt, matching the valkey backend.
	room.UpdatedAt = now

	for _, p := range participants {
		if !contains(room.Participants, p) {
			room.Participants = append(room.Participants, p)
		}
		if s.userRooms[p] == nil {
			s.userRooms[p] = make(map[string]bool)
		}
		s.userRooms[p][roomID] = true
	}

	return copyRoom(room), nil
}

func (s *DMStore) RoomForParticipant(ctx context.Context, roomID, userID string) (*models.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[roomID]
	if !ok || !contains(room.Participants, userID) {
		return nil, storage.ErrNotParticipant
	}
	return copyRoom(room), nil
}

func (s *DMStore) AppendMessage(ctx context.Context, roomID, senderID, content string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomID]
	if !ok || !contains(room.Participants, senderID) {
		return nil, storage.ErrNotParticipant
	}

	ts := s.nextTimestamp(roomID)
	s.seq[roomID]++
	msg := models.Message{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		SenderID:  senderID,
		Content:   content,
		ReadBy:    []string{senderID},
		Seq:       s.seq[roomID],
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	s.messages[roomID] = append(s.messages[roomID], msg)
	room.UpdatedAt = ts
	return &msg, nil
}

func (s *DMStore) ListMessages(ctx context.Context, roomID string, before int64, limit int) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.messages[roomID]
	// Walk newest-first collecting the page, then reverse to chronological.
	page := make([]models.Message, 0, limit)
	for i := len(log) - 1; i >= 0 && len(page) < limit; i-- {
		if before != 0 && log[i].CreatedAt >= before {
			continue
		}
		page = append(page, log[i])
	}
	for i, j := 0, len(page)-1; i < j; i, j = i+1, j-1 {
		page[i], page[j] = page[j], page[i]
	}
	return page, nil
}

func (s *DMStore) RoomsForUser(ctx context.Context, userID string) ([]models.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []models.Room
	for roomID := range s.userRooms[userID] {
		if room, ok := s.rooms[roomID]; ok {
			result = append(result, *copyRoom(room))
		}
	}
	// Map iteration order is random; keep output deterministic.
	sort.Slice(result, func(i, j int) bool { return result[i].RoomID < result[j].RoomID })
	return result, nil
}

func (s *DMStore) LastMessage(ctx context.Context, roomID string) (*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.messages[roomID]
	if len(log) == 0 {
		return nil, nil
	}
	msg := log[len(log)-1]
	return &msg, nil
}

func (s *DMStore) PutUser(ctx context.Context, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
	return nil
}

func (s *DMStore) ListUsersExcept(ctx context.Context, userID string, limit int) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []models.User
	for id, u := range s.users {
		if id == userID {
			continue
		}
		result = append(result, u)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func copyRoom(room *models.Room) *models.Room {
	out := *room
	out.Participants = append([]string(nil), room.Participants...)
	return &out
}
