package ws

import (
	"github.com/gorilla/websocket"
	"github.com/scholarsorbit/scholarsorbit-backend/internal/presence"
)

// Client is one websocket connection bound to an authenticated user. A user
// may hold several clients at once (tabs, devices); presence tracks them as a
// set.
type Client struct {
	ID     string
	UserID string
	Send   chan []byte
	Conn   *websocket.Conn

	rooms map[string]bool // rooms this client is subscribed to; hub-loop owned
}

// Subscription asks the hub to deliver a room's broadcasts to a client.
type Subscription struct {
	Client *Client
	RoomID string
}

// BroadcastMessage fans Data out to a room's subscribers, or to every
// connected client when RoomID is empty. Exclude, when set, skips that one
// connection (typing relays are never echoed to the emitting socket).
type BroadcastMessage struct {
	RoomID  string
	Data    []byte
	Exclude *Client
}

// DirectMessage delivers Data to a single client. Acks travel this way so
// every write to a client's send channel happens on the hub loop.
type DirectMessage struct {
	Client *Client
	Data   []byte
}

// Hub is the connection registry and broadcast loop. All of its state --
// connected clients, room subscriptions, the presence registry -- is mutated
// only inside Run, so connection handlers interact with it purely through
// channels.
type Hub struct {
	Register   chan *Client
	Unregister chan *Client
	Subscribe  chan Subscription
	Broadcast  chan BroadcastMessage
	Direct     chan DirectMessage

	presence *presence.Registry
	clients  map[*Client]bool
	rooms    map[string]map[*Client]bool // roomID -> subscribed clients
}

func NewHub(registry *presence.Registry) *Hub {
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Subscribe:  make(chan Subscription),
		Broadcast:  make(chan BroadcastMessage, 64),
		Direct:     make(chan DirectMessage, 64),
		presence:   registry,
		clients:    make(map[*Client]bool),
		rooms:      make(map[string]map[*Client]bool),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.clients[client] = true
			if h.presence.Add(client.UserID, client.ID) {
				// First connection for this user: tell everyone else.
				h.broadcast(BroadcastMessage{
					Data:    encodeEvent(EventUserOnline, map[string]string{"userId": client.UserID}),
					Exclude: client,
				})
			}
			// Snapshot for the new connection only, so its view doesn't race
			// the incremental online/offline stream.
			h.deliver(client, encodeEvent(EventOnlineUsers, h.presence.Online()))

		case client := <-h.Unregister:
			h.drop(client)

		case sub := <-h.Subscribe:
			if !h.clients[sub.Client] {
				break
			}
			if h.rooms[sub.RoomID] == nil {
				h.rooms[sub.RoomID] = make(map[*Client]bool)
			}
			h.rooms[sub.RoomID][sub.Client] = true
			sub.Client.rooms[sub.RoomID] = true

		case msg := <-h.Broadcast:
			h.broadcast(msg)

		case d := <-h.Direct:
			if h.clients[d.Client] {
				h.deliver(d.Client, d.Data)
			}
		}
	}
}

func (h *Hub) broadcast(msg BroadcastMessage) {
	targets := h.clients
	if msg.RoomID != "" {
		targets = h.rooms[msg.RoomID]
	}
	for client := range targets {
		if client == msg.Exclude {
			continue
		}
		h.deliver(client, msg.Data)
	}
}

// deliver sends without blocking the hub loop; a client that can't keep up
// with its send buffer is dropped.
func (h *Hub) deliver(client *Client, data []byte) {
	if data == nil {
		return
	}
	select {
	case client.Send <- data:
	default:
		h.drop(client)
	}
}

// drop disconnects a client: unsubscribes it everywhere, closes its send
// channel and applies the presence transition, broadcasting user_offline when
// it was the user's last connection. Idempotent, so a backpressure drop
// followed by the read pump's Unregister is harmless.
func (h *Hub) drop(client *Client) {
	if !h.clients[client] {
		return
	}
	delete(h.clients, client)
	for roomID := range client.rooms {
		if subs, ok := h.rooms[roomID]; ok {
			delete(subs, client)
			if len(subs) == 0 {
				delete(h.rooms, roomID)
			}
		}
	}
	close(client.Send)

	if h.presence.Remove(client.UserID, client.ID) {
		h.broadcast(BroadcastMessage{
			Data: encodeEvent(EventUserOffline, map[string]string{"userId": client.UserID}),
		})
	}
}
