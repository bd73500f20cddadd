package models

// RoomTypePrivate is the only room type this backend creates: a two-participant
// direct-message room derived from the pair of user IDs.
const RoomTypePrivate = "private"

// MaxMessageLength caps message content length, matching the frontend limit.
const MaxMessageLength = 2000

// Room represents a DM room between two users. The RoomID is canonical: both
// participants resolve to the same ID regardless of who joined first.
type Room struct {
	RoomID       string   `json:"roomId"`
	Type         string   `json:"type"`
	Participants []string `json:"participants"`
	CreatedAt    int64    `json:"createdAt"` // unix millis
	UpdatedAt    int64    `json:"updatedAt"` // unix millis
}

// Message is a single direct message. Messages are append-only: once stored
// they are never edited or deleted.
type Message struct {
	ID        string   `json:"id"`
	RoomID    string   `json:"roomId"`
	SenderID  string   `json:"senderId"`
	Content   string   `json:"content"`
	ReadBy    []string `json:"readBy"`    // sender is always included at creation
	Seq       int64    `json:"-"`         // per-room insertion sequence, tie-break for equal CreatedAt
	CreatedAt int64    `json:"createdAt"` // unix millis, sort key and pagination cursor
	UpdatedAt int64    `json:"updatedAt"`
}

// ConversationSummary pairs a room with its most recent message (nil when the
// room has no messages yet) for the conversation sidebar.
type ConversationSummary struct {
	Room
	LastMessage *Message `json:"lastMessage"`
}

// User is the directory view of a user: enough for the DM sidebar, nothing
// sensitive. Identity issuance and passwords live in the auth service.
type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	UserType string `json:"userType"`
}
