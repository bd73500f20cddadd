package dms

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sort"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/scholarsorbit/scholarsorbit-backend/internal/directory"
	"github.com/scholarsorbit/scholarsorbit-backend/internal/middleware"
	"github.com/scholarsorbit/scholarsorbit-backend/internal/models"
	"github.com/scholarsorbit/scholarsorbit-backend/internal/storage"
)

const (
	defaultPageSize = 30
	maxPageSize     = 50
)

// DMHandler serves the DM read path: the user directory for the sidebar,
// paginated message history and the conversation list. The realtime write
// path lives in the websocket gateway; both are guarded by the same
// participant check against the store.
type DMHandler struct {
	Store     storage.Store
	Directory directory.Directory
}

// ListUsers handles GET /api/dm/users: every known user except the caller,
// sorted by name, capped by the directory.
func (h *DMHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	users, err := h.Directory.ListOthers(r.Context(), userID)
	if err != nil {
		log.Printf("[DM] users error for %s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "Failed to load users")
		return
	}
	if users == nil {
		users = []models.User{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

// GetMessages handles GET /api/dm/messages/{roomId}?before=<unix-millis>&limit=<n>.
// The caller must be a participant; unknown rooms answer 403 the same way so
// room existence never leaks. Results come back in ascending chronological
// order; `before` pages into older history.
func (h *DMHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	roomID := mux.Vars(r)["roomId"]

	if _, err := h.Store.RoomForParticipant(r.Context(), roomID, userID); err != nil {
		if errors.Is(err, storage.ErrNotParticipant) {
			writeError(w, http.StatusForbidden, "Not a participant")
			return
		}
		log.Printf("[DM] messages error for %s in room %s: %v", userID, roomID, err)
		writeError(w, http.StatusInternalServerError, "Failed to load messages")
		return
	}

	limit := defaultPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	var before int64
	if raw := r.URL.Query().Get("before"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid before cursor")
			return
		}
		before = n
	}

	messages, err := h.Store.ListMessages(r.Context(), roomID, before, limit)
	if err != nil {
		log.Printf("[DM] messages error for %s in room %s: %v", userID, roomID, err)
		writeError(w, http.StatusInternalServerError, "Failed to load messages")
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

// ListConversations handles GET /api/dm/conversations: every room the caller
// participates in paired with its most recent message, most recently active
// first.
func (h *DMHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	rooms, err := h.Store.RoomsForUser(r.Context(), userID)
	if err != nil {
		log.Printf("[DM] conversations error for %s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "Failed to load conversations")
		return
	}

	conversations := make([]models.ConversationSummary, 0, len(rooms))
	for _, room := range rooms {
		last, err := h.Store.LastMessage(r.Context(), room.RoomID)
		if err != nil {
			log.Printf("[DM] conversations error for %s in room %s: %v", userID, room.RoomID, err)
			writeError(w, http.StatusInternalServerError, "Failed to load conversations")
			return
		}
		conversations = append(conversations, models.ConversationSummary{Room: room, LastMessage: last})
	}

	// Empty rooms fall back to their creation time.
	sort.SliceStable(conversations, func(i, j int) bool {
		return recency(conversations[i]) > recency(conversations[j])
	})

	writeJSON(w, http.StatusOK, map[string]any{"conversations": conversations})
}

func recency(c models.ConversationSummary) int64 {
	if c.LastMessage != nil {
		return c.LastMessage.CreatedAt
	}
	return c.CreatedAt
}

// Health handles GET /api/health.
func (h *DMHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
