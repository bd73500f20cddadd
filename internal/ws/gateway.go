package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/scholarsorbit/scholarsorbit-backend/internal/auth"
	"github.com/scholarsorbit/scholarsorbit-backend/internal/models"
	"github.com/scholarsorbit/scholarsorbit-backend/internal/rooms"
	"github.com/scholarsorbit/scholarsorbit-backend/internal/storage"
)

// storeTimeout bounds every store call made from a connection handler, so a
// stalled backend fails the ack instead of hanging the connection forever.
const storeTimeout = 5 * time.Second

// The Origin header is not checked; the bearer token is what gates access,
// and the dev frontend runs on a different port.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Gateway authenticates websocket connections and dispatches their events:
// joining private rooms, sending messages, typing signals. Participant checks
// always go to the store; the hub's subscription set is a delivery cache, not
// an authorization source.
type Gateway struct {
	Hub      *Hub
	Store    storage.Store
	Verifier auth.Verifier
	Resolver *rooms.Resolver
}

// ServeWS verifies the handshake credential, upgrades the connection and
// starts the read/write pumps. Missing or invalid token rejects the
// connection before the upgrade.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID, err := g.Verifier.Verify(handshakeToken(r))
	if err != nil {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		log.Printf("[WS] Rejected connection from %s: %v", r.RemoteAddr, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WS] Failed to upgrade connection for user %s: %v", userID, err)
		return
	}

	client := &Client{
		ID:     uuid.NewString(),
		UserID: userID,
		Send:   make(chan []byte, 256),
		Conn:   conn,
		rooms:  make(map[string]bool),
	}
	g.Hub.Register <- client
	log.Printf("[WS] User %s connected (conn %s)", userID, client.ID)

	go g.writePump(client)
	go g.readPump(client)
}

// handshakeToken pulls the credential from the query string or, failing that,
// a bearer Authorization header.
func handshakeToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

func (g *Gateway) readPump(client *Client) {
	defer func() {
		g.Hub.Unregister <- client
		client.Conn.Close()
		log.Printf("[WS] User %s disconnected (conn %s)", client.UserID, client.ID)
	}()
	for {
		_, data, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[WS] Read error for user %s: %v", client.UserID, err)
			}
			break
		}

		var frame clientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			log.Printf("[WS] Malformed frame from user %s: %v", client.UserID, err)
			continue
		}
		g.dispatch(client, frame)
	}
}

func (g *Gateway) writePump(client *Client) {
	defer client.Conn.Close()
	for message := range client.Send {
		if err := client.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}

func (g *Gateway) dispatch(client *Client, frame clientFrame) {
	switch frame.Event {
	case EventJoinPrivateRoom:
		g.handleJoin(client, frame)
	case EventSendMessage:
		g.handleSend(client, frame)
	case EventTypingStart:
		g.handleTyping(client, frame, true)
	case EventTypingStop:
		g.handleTyping(client, frame, false)
	default:
		log.Printf("[WS] Unknown event %q from user %s", frame.Event, client.UserID)
	}
}

func (g *Gateway) handleJoin(client *Client, frame clientFrame) {
	var req struct {
		TargetUserID string `json:"targetUserId"`
	}
	if err := json.Unmarshal(frame.Data, &req); err != nil || req.TargetUserID == "" {
		g.ackError(client, frame.ID, "targetUserId is required")
		return
	}

	// Subscribe before the upsert, like joining the socket room first: the
	// connection must not miss messages broadcast while the upsert runs.
	roomID := rooms.CanonicalRoomID(client.UserID, req.TargetUserID)
	g.Hub.Subscribe <- Subscription{Client: client, RoomID: roomID}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if _, err := g.Resolver.Ensure(ctx, client.UserID, req.TargetUserID); err != nil {
		log.Printf("[WS] join_private_room error for user %s: %v", client.UserID, err)
		g.ackError(client, frame.ID, "Failed to join room")
		return
	}

	g.ack(client, frame.ID, map[string]string{"roomId": roomID})
}

func (g *Gateway) handleSend(client *Client, frame clientFrame) {
	var req struct {
		RoomID  string `json:"roomId"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(frame.Data, &req); err != nil {
		g.ackError(client, frame.ID, "Invalid message")
		return
	}

	content := strings.TrimSpace(req.Content)
	if content == "" || req.RoomID == "" {
		g.ackError(client, frame.ID, "Invalid message")
		return
	}
	if len([]rune(content)) > models.MaxMessageLength {
		g.ackError(client, frame.ID, "Message too long")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	// AppendMessage re-checks participancy against the store; a client that
	// never joined the room, or made the roomId up, gets rejected here with
	// nothing persisted and nothing broadcast.
	msg, err := g.Store.AppendMessage(ctx, req.RoomID, client.UserID, content)
	if err != nil {
		if errors.Is(err, storage.ErrNotParticipant) {
			g.ackError(client, frame.ID, "Not a participant")
		} else {
			log.Printf("[WS] send_message error for user %s in room %s: %v", client.UserID, req.RoomID, err)
			g.ackError(client, frame.ID, "Failed to send")
		}
		return
	}

	// Broadcast after the persist resolves, to every subscriber including all
	// of the sender's own connections, then ack. A connection's events are
	// handled serially and the hub channel is FIFO per sender, so messages
	// from one connection are delivered in their persisted order. Ordering
	// across different senders is not guaranteed.
	g.Hub.Broadcast <- BroadcastMessage{RoomID: req.RoomID, Data: encodeEvent(EventReceiveMessage, msg)}
	g.ack(client, frame.ID, map[string]any{"message": msg})
}

// handleTyping relays the signal to the room, excluding the emitting
// connection. Fire-and-forget: no persistence, no ack, failures swallowed.
func (g *Gateway) handleTyping(client *Client, frame clientFrame, typing bool) {
	var req struct {
		RoomID string `json:"roomId"`
	}
	if err := json.Unmarshal(frame.Data, &req); err != nil || req.RoomID == "" {
		return
	}

	g.Hub.Broadcast <- BroadcastMessage{
		RoomID:  req.RoomID,
		Data:    encodeEvent(EventUserTyping, map[string]any{"userId": client.UserID, "typing": typing}),
		Exclude: client,
	}
}

func (g *Gateway) ack(client *Client, id int64, data any) {
	if id == 0 {
		return
	}
	g.Hub.Direct <- DirectMessage{Client: client, Data: encodeFrame(serverFrame{ID: id, Event: EventAck, Data: data})}
}

func (g *Gateway) ackError(client *Client, id int64, msg string) {
	if id == 0 {
		return
	}
	g.Hub.Direct <- DirectMessage{Client: client, Data: encodeFrame(serverFrame{ID: id, Event: EventAck, Error: msg})}
}
