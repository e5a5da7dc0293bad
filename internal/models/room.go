package models

// Room is the mutable per-room state. It is owned exclusively by the room
// store; nothing outside the store's lock may touch it.
type Room struct {
	Code         string
	CreatedAt    int64 // epoch millis, immutable after creation
	LastActiveAt int64 // epoch millis, bumped on every accepted message or join
	Messages     []Message
	Members      int
	Usernames    map[string]struct{} // lower-cased display names active in this room
	Password     string              // set-once: first non-empty value is permanent
	Limit        int                 // set-once: first positive value is permanent
}

// SnapshotRoom is the persisted subset of Room. Live-connection state
// (members, usernames, timers) never survives a restart and is not written.
type SnapshotRoom struct {
	CreatedAt    int64     `json:"createdAt"`
	LastActiveAt int64     `json:"lastActiveAt"`
	Messages     []Message `json:"messages"`
	Password     string    `json:"password,omitempty"`
	Limit        int       `json:"limit,omitempty"`
}

// Snapshot is the on-disk file format.
type Snapshot struct {
	Rooms map[string]SnapshotRoom `json:"rooms"`
}

// RoomInfo is the read-only view served by GET /roominfo/:code.
type RoomInfo struct {
	Exists      bool `json:"exists"`
	HasPassword bool `json:"hasPassword,omitempty"`
}

// RoomData is the read-only view served by GET /room-data/:code.
type RoomData struct {
	Exists      bool      `json:"exists"`
	Room        string    `json:"room,omitempty"`
	Messages    []Message `json:"messages,omitempty"`
	Users       []string  `json:"users,omitempty"`
	Limit       int       `json:"limit,omitempty"`
	HasPassword bool      `json:"hasPassword,omitempty"`
}
