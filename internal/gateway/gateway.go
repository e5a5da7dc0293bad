package gateway

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/mossy-p/ephemeral-chat/internal/models"
	"github.com/mossy-p/ephemeral-chat/internal/store"
)

const (
	fallbackRoom = "default"
	fallbackName = "Anon"
	maxTextLen   = 5000
)

// Gateway routes inbound client events to the room store and fans the
// resulting state changes out to everyone connected to the room. It keeps
// its own connection registry; the store only counts members.
type Gateway struct {
	store *store.Store

	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
}

func New(st *store.Store) *Gateway {
	return &Gateway{
		store: st,
		rooms: map[string]map[*Client]struct{}{},
	}
}

// normalizeRoom and normalizeName enforce the boundary rule that the store
// never sees an empty room code or display name.
func normalizeRoom(room string) string {
	room = strings.TrimSpace(room)
	if room == "" {
		return fallbackRoom
	}
	return room
}

func normalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return fallbackName
	}
	return name
}

func truncateText(text string) string {
	runes := []rune(text)
	if len(runes) > maxTextLen {
		return string(runes[:maxTextLen])
	}
	return text
}

// Join admits the client to a room. Rejections go to the requester only and
// mutate nothing; success binds the connection, confirms with the room's
// history and user list, and announces the arrival to everyone else.
func (g *Gateway) Join(c *Client, ev models.Event) {
	room := normalizeRoom(ev.Room)
	name := normalizeName(ev.Name)

	// A connection holds at most one room binding.
	if prev, _ := g.clientRoom(c); prev != "" {
		g.leave(c)
	}

	res, err := g.store.Join(room, name, ev.Password, ev.Limit)
	if err != nil {
		c.sendEvent(models.Event{Type: models.EventJoinError, Room: room, Error: err.Error()})
		return
	}

	g.mu.Lock()
	c.room, c.name = room, name
	set := g.rooms[room]
	if set == nil {
		set = map[*Client]struct{}{}
		g.rooms[room] = set
	}
	set[c] = struct{}{}
	g.mu.Unlock()

	c.sendEvent(models.Event{
		Type:     models.EventJoined,
		Room:     room,
		Name:     name,
		Messages: res.Messages,
		Users:    res.Users,
	})

	notice := g.store.Append(room, "System", name+" joined", true)
	g.broadcast(room, models.Event{Type: models.EventMessage, Room: room, Message: &notice}, c)

	logrus.WithFields(logrus.Fields{"conn": c.ID, "room": room, "name": name}).Info("Client joined room")
}

// Message appends a chat message and fans it out to the whole room, sender
// included. Empty room or empty (post-truncation) text is dropped silently.
func (g *Gateway) Message(c *Client, ev models.Event) {
	boundRoom, boundName := g.clientRoom(c)
	room, name := ev.Room, ev.Name
	if room == "" {
		room = boundRoom
	}
	if room == "" {
		room = fallbackRoom
	}
	if name == "" {
		name = boundName
	}
	if name == "" {
		name = fallbackName
	}

	text := truncateText(ev.Text)
	if room == "" || text == "" {
		return
	}

	msg := g.store.Append(room, name, text, false)
	g.broadcast(room, models.Event{Type: models.EventMessage, Room: room, Message: &msg}, nil)
}

// Disconnect tears down a connection. A connection that never joined touches
// no room state.
func (g *Gateway) Disconnect(c *Client) {
	g.leave(c)
}

func (g *Gateway) leave(c *Client) {
	g.mu.Lock()
	room, name := c.room, c.name
	if room != "" {
		if set := g.rooms[room]; set != nil {
			delete(set, c)
			if len(set) == 0 {
				delete(g.rooms, room)
			}
		}
		c.room, c.name = "", ""
	}
	g.mu.Unlock()

	if room == "" {
		return
	}

	notice, _, deleted := g.store.Leave(room, name)
	g.broadcast(room, models.Event{Type: models.EventMessage, Room: room, Message: &notice}, nil)
	if deleted {
		g.RoomDeleted(room)
	}
	logrus.WithFields(logrus.Fields{"conn": c.ID, "room": room, "name": name}).Info("Client left room")
}

// RoomMessage implements store.Notifier: a message committed outside this
// gateway (expiry warnings) still reaches everyone in the room.
func (g *Gateway) RoomMessage(code string, msg models.Message) {
	g.broadcast(code, models.Event{Type: models.EventMessage, Room: code, Message: &msg}, nil)
}

// RoomDeleted implements store.Notifier: tells everyone still connected that
// the room is gone and clears their bindings, so their eventual disconnect
// does not decrement a room that no longer exists.
func (g *Gateway) RoomDeleted(code string) {
	g.mu.Lock()
	set := g.rooms[code]
	delete(g.rooms, code)
	clients := make([]*Client, 0, len(set))
	for c := range set {
		c.room, c.name = "", ""
		clients = append(clients, c)
	}
	g.mu.Unlock()

	data, err := json.Marshal(models.Event{Type: models.EventRoomDeleted, Room: code})
	if err != nil {
		return
	}
	for _, c := range clients {
		c.enqueue(data)
	}
}

// broadcast fans an event out to the room's connections. The member snapshot
// is taken under the lock; the sends happen outside it and never block.
func (g *Gateway) broadcast(room string, ev models.Event, exclude *Client) {
	data, err := json.Marshal(ev)
	if err != nil {
		logrus.WithError(err).Error("Failed to marshal event")
		return
	}

	g.mu.RLock()
	clients := make([]*Client, 0, len(g.rooms[room]))
	for c := range g.rooms[room] {
		if c != exclude {
			clients = append(clients, c)
		}
	}
	g.mu.RUnlock()

	for _, c := range clients {
		c.enqueue(data)
	}
}
