package ws

import (
	"encoding/json"
	"log"
)

// Client -> server event names.
const (
	EventJoinPrivateRoom = "join_private_room"
	EventSendMessage     = "send_message"
	EventTypingStart     = "typing_start"
	EventTypingStop      = "typing_stop"
)

// Server -> client event names.
const (
	EventAck            = "ack"
	EventOnlineUsers    = "online_users"
	EventUserOnline     = "user_online"
	EventUserOffline    = "user_offline"
	EventReceiveMessage = "receive_message"
	EventUserTyping     = "user_typing"
)

// clientFrame is an inbound event envelope. A non-zero ID asks for an ack;
// fire-and-forget events (typing) carry no ID.
type clientFrame struct {
	ID    int64           `json:"id,omitempty"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// serverFrame is an outbound event envelope. Acks mirror the client frame's ID
// and carry either Data or Error, never both.
type serverFrame struct {
	ID    int64  `json:"id,omitempty"`
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

func encodeFrame(f serverFrame) []byte {
	data, err := json.Marshal(f)
	if err != nil {
		log.Printf("[WS] Failed to encode %s frame: %v", f.Event, err)
		return nil
	}
	return data
}

func encodeEvent(event string, data any) []byte {
	return encodeFrame(serverFrame{Event: event, Data: data})
}
