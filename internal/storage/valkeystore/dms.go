package valkeystore

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/scholarsorbit/scholarsorbit-backend/internal/models"
	"github.com/scholarsorbit/scholarsorbit-backend/internal/storage"
	"github.com/valkey-io/valkey-go"
)

// DMStore implements the DM storage interface on Valkey.
//
// Layout:
//
//	dm:room:{roomId}          hash  type / createdAt / updatedAt
//	dm:room:{roomId}:members  set   participant user IDs
//	dm:room:{roomId}:msgs     zset  member "{seq:016d}|{json}", score createdAt
//	dm:room:{roomId}:seq      per-room insertion counter
//	dm:user:{userId}:rooms    set   room IDs the user participates in
//	dm:users                  hash  userId -> directory record json
//
// SADD gives the atomic set-union upsert room membership needs: two peers
// joining the same pair concurrently converge on one record. The seq prefix on
// zset members makes same-millisecond ordering deterministic (reverse-lexical
// within a score equals reverse insertion order).
type DMStore struct {
	client valkey.Client
}

// NewDMStore connects to Valkey at addr and verifies the connection.
func NewDMStore(addr string) (*DMStore, error) {
	client, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{addr}})
	if err != nil {
		return nil, fmt.Errorf("failed to create valkey client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to valkey at %s: %w", addr, err)
	}

	log.Printf("[Store] Connected to Valkey at %s", addr)
	return &DMStore{client: client}, nil
}

func roomKey(roomID string) string      { return "dm:room:" + roomID }
func membersKey(roomID string) string   { return "dm:room:" + roomID + ":members" }
func msgsKey(roomID string) string      { return "dm:room:" + roomID + ":msgs" }
func seqKey(roomID string) string       { return "dm:room:" + roomID + ":seq" }
func userRoomsKey(userID string) string { return "dm:user:" + userID + ":rooms" }

const usersKey = "dm:users"

func (s *DMStore) EnsureRoom(ctx context.Context, roomID string, participants ...string) (*models.Room, error) {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)

	cmds := []valkey.Completed{
		s.client.B().Hsetnx().Key(roomKey(roomID)).Field("type").Value(models.RoomTypePrivate).Build(),
		s.client.B().Hsetnx().Key(roomKey(roomID)).Field("createdAt").Value(now).Build(),
		s.client.B().Hset().Key(roomKey(roomID)).FieldValue().FieldValue("updatedAt", now).Build(),
		s.client.B().Sadd().Key(membersKey(roomID)).Member(participants...).Build(),
	}
	for _, p := range participants {
		cmds = append(cmds, s.client.B().Sadd().Key(userRoomsKey(p)).Member(roomID).Build())
	}

	for _, resp := range s.client.DoMulti(ctx, cmds...) {
		if err := resp.Error(); err != nil {
			return nil, fmt.Errorf("upsert room %s: %w", roomID, err)
		}
	}
	return s.readRoom(ctx, roomID)
}

func (s *DMStore) readRoom(ctx context.Context, roomID string) (*models.Room, error) {
	fields, err := s.client.Do(ctx, s.client.B().Hgetall().Key(roomKey(roomID)).Build()).AsStrMap()
	if err != nil {
		return nil, fmt.Errorf("read room %s: %w", roomID, err)
	}
	if len(fields) == 0 {
		return nil, storage.ErrNotParticipant
	}
	members, err := s.client.Do(ctx, s.client.B().Smembers().Key(membersKey(roomID)).Build()).AsStrSlice()
	if err != nil {
		return nil, fmt.Errorf("read room %s members: %w", roomID, err)
	}
	sort.Strings(members)

	createdAt, _ := strconv.ParseInt(fields["createdAt"], 10, 64)
	updatedAt, _ := strconv.ParseInt(fields["updatedAt"], 10, 64)
	return &models.Room{
		RoomID:       roomID,
		Type:         fields["type"],
		Participants: members,
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}, nil
}

func (s *DMStore) isParticipant(ctx context.Context, roomID, userID string) (bool, error) {
	ok, err := s.client.Do(ctx, s.client.B().Sismember().Key(membersKey(roomID)).Member(userID).Build()).AsBool()
	if err != nil {
		return false, fmt.Errorf("check membership %s/%s: %w", roomID, userID, err)
	}
	return ok, nil
}

func (s *DMStore) RoomForParticipant(ctx context.Context, roomID, userID string) (*models.Room, error) {
	ok, err := s.isParticipant(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, storage.ErrNotParticipant
	}
	return s.readRoom(ctx, roomID)
}

func (s *DMStore) AppendMessage(ctx context.Context, roomID, senderID, content string) (*models.Message, error) {
	ok, err := s.isParticipant(ctx, roomID, senderID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, storage.ErrNotParticipant
	}

	seq, err := s.client.Do(ctx, s.client.B().Incr().Key(seqKey(roomID)).Build()).AsInt64()
	if err != nil {
		return nil, fmt.Errorf("next seq for room %s: %w", roomID, err)
	}

	// Keep CreatedAt strictly increasing within the room so "before" cursors
	// never straddle a timestamp.
	ts := time.Now().UnixMilli()
	if last, ok := s.lastScore(ctx, roomID); ok && ts <= last {
		ts = last + 1
	}

	msg := models.Message{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		SenderID:  senderID,
		Content:   content,
		ReadBy:    []string{senderID},
		Seq:       seq,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	member := fmt.Sprintf("%016d|%s", seq, payload)

	cmds := []valkey.Completed{
		s.client.B().Zadd().Key(msgsKey(roomID)).ScoreMember().ScoreMember(float64(ts), member).Build(),
		s.client.B().Hset().Key(roomKey(roomID)).FieldValue().FieldValue("updatedAt", strconv.FormatInt(ts, 10)).Build(),
	}
	for _, resp := range s.client.DoMulti(ctx, cmds...) {
		if err := resp.Error(); err != nil {
			return nil, fmt.Errorf("append message to room %s: %w", roomID, err)
		}
	}
	return &msg, nil
}

// lastScore returns the newest CreatedAt in the room's log, if any.
func (s *DMStore) lastScore(ctx context.Context, roomID string) (int64, bool) {
	scores, err := s.client.Do(ctx,
		s.client.B().Zrevrange().Key(msgsKey(roomID)).Start(0).Stop(0).Withscores().Build(),
	).AsZScores()
	if err != nil || len(scores) == 0 {
		return 0, false
	}
	return int64(scores[0].Score), true
}

func (s *DMStore) ListMessages(ctx context.Context, roomID string, before int64, limit int) ([]models.Message, error) {
	max := "+inf"
	if before != 0 {
		max = "(" + strconv.FormatInt(before, 10)
	}

	// Newest-first for efficient "N before cursor" retrieval, reversed below.
	members, err := s.client.Do(ctx,
		s.client.B().Zrevrangebyscore().Key(msgsKey(roomID)).Max(max).Min("-inf").Limit(0, int64(limit)).Build(),
	).AsStrSlice()
	if err != nil {
		return nil, fmt.Errorf("list messages for room %s: %w", roomID, err)
	}

	page := make([]models.Message, 0, len(members))
	for _, m := range members {
		msg, err := decodeMember(m)
		if err != nil {
			return nil, fmt.Errorf("decode message in room %s: %w", roomID, err)
		}
		page = append(page, msg)
	}
	for i, j := 0, len(page)-1; i < j; i, j = i+1, j-1 {
		page[i], page[j] = page[j], page[i]
	}
	return page, nil
}

func (s *DMStore) RoomsForUser(ctx context.Context, userID string) ([]models.Room, error) {
	roomIDs, err := s.client.Do(ctx, s.client.B().Smembers().Key(userRoomsKey(userID)).Build()).AsStrSlice()
	if err != nil {
		return nil, fmt.Errorf("list rooms for user %s: %w", userID, err)
	}
	sort.Strings(roomIDs)

	rooms := make([]models.Room, 0, len(roomIDs))
	for _, id := range roomIDs {
		room, err := s.readRoom(ctx, id)
		if err != nil {
			if err == storage.ErrNotParticipant {
				continue // index pointed at a room hash that no longer exists
			}
			return nil, err
		}
		rooms = append(rooms, *room)
	}
	return rooms, nil
}

func (s *DMStore) LastMessage(ctx context.Context, roomID string) (*models.Message, error) {
	members, err := s.client.Do(ctx,
		s.client.B().Zrevrange().Key(msgsKey(roomID)).Start(0).Stop(0).Build(),
	).AsStrSlice()
	if err != nil {
		return nil, fmt.Errorf("last message for room %s: %w", roomID, err)
	}
	if len(members) == 0 {
		return nil, nil
	}
	msg, err := decodeMember(members[0])
	if err != nil {
		return nil, fmt.Errorf("decode message in room %s: %w", roomID, err)
	}
	return &msg, nil
}

func (s *DMStore) PutUser(ctx context.Context, user models.User) error {
	payload, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user %s: %w", user.ID, err)
	}
	err = s.client.Do(ctx,
		s.client.B().Hset().Key(usersKey).FieldValue().FieldValue(user.ID, string(payload)).Build(),
	).Error()
	if err != nil {
		return fmt.Errorf("put user %s: %w", user.ID, err)
	}
	return nil
}

func (s *DMStore) ListUsersExcept(ctx context.Context, userID string, limit int) ([]models.User, error) {
	records, err := s.client.Do(ctx, s.client.B().Hgetall().Key(usersKey).Build()).AsStrMap()
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	users := make([]models.User, 0, len(records))
	for id, raw := range records {
		if id == userID {
			continue
		}
		var u models.User
		if err := json.Unmarshal([]byte(raw), &u); err != nil {
			return nil, fmt.Errorf("decode user %s: %w", id, err)
		}
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	if len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

// Close closes the underlying Valkey connection.
func (s *DMStore) Close() {
	s.client.Close()
}

// decodeMember strips the zero-padded seq prefix and unmarshals the message.
func decodeMember(member string) (models.Message, error) {
	var msg models.Message
	prefix, payload, ok := strings.Cut(member, "|")
	if !ok {
		return msg, fmt.Errorf("malformed message member %q", member)
	}
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return msg, err
	}
	msg.Seq, _ = strconv.ParseInt(prefix, 10, 64)
	return msg, nil
}
