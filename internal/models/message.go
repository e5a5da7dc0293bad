package models

// Message is a single chat or system entry. Immutable once appended.
type Message struct {
	Name      string `json:"name"`
	Text      string `json:"text"`
	System    bool   `json:"system,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// EventType represents the type of a wire event
type EventType string

const (
	// Inbound
	EventJoin    EventType = "join"
	EventMessage EventType = "message"

	// Outbound
	EventJoined      EventType = "joined"
	EventJoinError   EventType = "join-error"
	EventRoomDeleted EventType = "room-deleted"
)

// Event is a wire event exchanged with a client over the websocket
type Event struct {
	Type     EventType `json:"type"`
	Room     string    `json:"room,omitempty"`
	Name     string    `json:"name,omitempty"`
	Password string    `json:"password,omitempty"`
	Limit    int       `json:"limit,omitempty"`
	Text     string    `json:"text,omitempty"`
	Error    string    `json:"error,omitempty"`

	// Filled on "joined" so the client can render immediately
	Messages []Message `json:"messages,omitempty"`
	Users    []string  `json:"users,omitempty"`

	// Filled on "message"
	Message *Message `json:"message,omitempty"`
}
