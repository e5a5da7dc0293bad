package store

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mossy-p/ephemeral-chat/internal/models"
	"github.com/mossy-p/ephemeral-chat/internal/policy"
)

const (
	// History is trimmed back to historyKeep once it grows past historyMax.
	historyMax  = 1000
	historyKeep = 800
)

var (
	// ErrWrongPassword deliberately does not distinguish a bad password from
	// a room that does not exist, so joins cannot probe for room codes.
	ErrWrongPassword = errors.New("wrong password or room does not exist")
	ErrRoomFull      = errors.New("room full")
)

// Notifier is the store's view of the broadcast gateway: enough to tell
// connected clients that a room changed underneath them.
type Notifier interface {
	RoomMessage(code string, msg models.Message)
	RoomDeleted(code string)
}

// Canceller suppresses a pending scheduled deletion for a room.
type Canceller interface {
	Cancel(code string)
}

// JoinResult carries the committed state a new member needs to render the
// room immediately.
type JoinResult struct {
	Room     string
	Messages []models.Message
	Users    []string
}

// RoomStat is the per-room view the expiry sweep works from.
type RoomStat struct {
	Code      string
	CreatedAt int64
	Members   int
}

// Store is the single source of truth for room state. All mutations happen
// under one lock; snapshot writes and gateway notifications happen after the
// lock is released, against copies of committed state.
type Store struct {
	mu    sync.Mutex
	rooms map[string]*models.Room

	snap   *Snapshotter
	notify Notifier
	expiry Canceller
}

func New(snap *Snapshotter) *Store {
	s := &Store{
		rooms: map[string]*models.Room{},
		snap:  snap,
	}
	if snap != nil {
		loaded := snap.Load()
		for code, r := range loaded.Rooms {
			// Rehydrated rooms have no live connections: members stays 0 and
			// the periodic sweep collects any room nobody rejoins.
			s.rooms[code] = &models.Room{
				Code:         code,
				CreatedAt:    r.CreatedAt,
				LastActiveAt: r.LastActiveAt,
				Messages:     append([]models.Message(nil), r.Messages...),
				Usernames:    map[string]struct{}{},
				Password:     r.Password,
				Limit:        r.Limit,
			}
		}
		if len(s.rooms) > 0 {
			logrus.WithField("rooms", len(s.rooms)).Info("Restored rooms from snapshot")
		}
	}
	return s
}

// SetNotifier wires the broadcast gateway in. Must be called before serving.
func (s *Store) SetNotifier(n Notifier) { s.notify = n }

// SetCanceller wires the expiry scheduler in. Must be called before serving.
func (s *Store) SetCanceller(c Canceller) { s.expiry = c }

func nowMillis() int64 { return time.Now().UnixMilli() }

// getOrCreate must be called with s.mu held.
func (s *Store) getOrCreate(code string) *models.Room {
	r, ok := s.rooms[code]
	if !ok {
		now := nowMillis()
		r = &models.Room{
			Code:         code,
			CreatedAt:    now,
			LastActiveAt: now,
			Usernames:    map[string]struct{}{},
		}
		s.rooms[code] = r
		logrus.WithField("room", code).Info("Room created")
	}
	return r
}

// GetOrCreate returns a copy of the room's current state, creating the room
// with default fields if the code is unknown. Creation is persisted at once.
func (s *Store) GetOrCreate(code string) models.RoomData {
	s.mu.Lock()
	_, existed := s.rooms[code]
	r := s.getOrCreate(code)
	data := s.dataLocked(r)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if !existed {
		s.save(snap)
	}
	return data
}

// Append stamps the message with the server clock, appends it to the room's
// history (creating the room if needed), applies the trim policy, and cancels
// any pending deletion. It is the single mutation path for history.
func (s *Store) Append(code, name, text string, system bool) models.Message {
	s.mu.Lock()
	r := s.getOrCreate(code)
	msg := appendLocked(r, name, text, system)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.cancelPending(code)
	s.save(snap)
	return msg
}

// appendLocked stamps and commits one history entry. Must be called with
// s.mu held.
func appendLocked(r *models.Room, name, text string, system bool) models.Message {
	msg := models.Message{
		Name:      name,
		Text:      text,
		System:    system,
		Timestamp: nowMillis(),
	}
	r.Messages = append(r.Messages, msg)
	if len(r.Messages) > historyMax {
		r.Messages = append([]models.Message(nil), r.Messages[len(r.Messages)-historyKeep:]...)
	}
	r.LastActiveAt = msg.Timestamp
	return msg
}

// Join admits a member under the store lock: name policy, password check,
// capacity check, and the set-once lock-in of password/limit are all decided
// inside the critical section so concurrent joins cannot race on them.
func (s *Store) Join(code, name, password string, limit int) (JoinResult, error) {
	s.mu.Lock()
	r := s.getOrCreate(code)

	if err := policy.Validate(name, r.Usernames); err != nil {
		s.mu.Unlock()
		return JoinResult{}, err
	}
	if r.Password != "" && password != r.Password {
		s.mu.Unlock()
		return JoinResult{}, ErrWrongPassword
	}
	if r.Limit > 0 && r.Members >= r.Limit {
		s.mu.Unlock()
		return JoinResult{}, ErrRoomFull
	}

	// Set-once: the first supplied password/limit is permanent.
	if r.Password == "" && password != "" {
		r.Password = password
	}
	if r.Limit == 0 && limit > 0 {
		r.Limit = limit
	}

	r.Members++
	r.Usernames[strings.ToLower(name)] = struct{}{}
	r.LastActiveAt = nowMillis()

	res := JoinResult{
		Room:     code,
		Messages: append([]models.Message(nil), r.Messages...),
		Users:    usersLocked(r),
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.cancelPending(code)
	s.save(snap)
	return res, nil
}

// Leave removes a member. The returned notice is the "X left" system message
// already committed to history; deleted reports whether this was the last
// member, in which case the room is gone from the store atomically.
func (s *Store) Leave(code, name string) (notice models.Message, members int, deleted bool) {
	s.mu.Lock()
	r, ok := s.rooms[code]
	if !ok {
		s.mu.Unlock()
		return models.Message{}, 0, false
	}

	if r.Members > 0 {
		r.Members--
	}
	delete(r.Usernames, strings.ToLower(name))

	notice = appendLocked(r, "System", name+" left", true)

	members = r.Members
	if members == 0 {
		delete(s.rooms, code)
		deleted = true
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.cancelPending(code)
	s.save(snap)
	if deleted {
		logrus.WithField("room", code).Info("Room deleted, last member left")
	}
	return notice, members, deleted
}

// Delete removes a room and tells the gateway so connected clients can react.
// Deleting an absent room is a no-op.
func (s *Store) Delete(code string) {
	s.mu.Lock()
	_, ok := s.rooms[code]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.rooms, code)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.cancelPending(code)
	s.save(snap)
	if s.notify != nil {
		s.notify.RoomDeleted(code)
	}
	logrus.WithField("room", code).Info("Room deleted")
}

// Stats returns the sweep's view of every room.
func (s *Store) Stats() []RoomStat {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RoomStat, 0, len(s.rooms))
	for code, r := range s.rooms {
		out = append(out, RoomStat{Code: code, CreatedAt: r.CreatedAt, Members: r.Members})
	}
	return out
}

// Members reports the current member count, 0 if the room does not exist.
func (s *Store) Members(code string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rooms[code]; ok {
		return r.Members
	}
	return 0
}

// Info is the read-only view behind GET /roominfo/:code.
func (s *Store) Info(code string) models.RoomInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[code]
	if !ok {
		return models.RoomInfo{}
	}
	return models.RoomInfo{Exists: true, HasPassword: r.Password != ""}
}

// Data is the read-only view behind GET /room-data/:code.
func (s *Store) Data(code string) models.RoomData {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[code]
	if !ok {
		return models.RoomData{}
	}
	return s.dataLocked(r)
}

func (s *Store) dataLocked(r *models.Room) models.RoomData {
	return models.RoomData{
		Exists:      true,
		Room:        r.Code,
		Messages:    append([]models.Message(nil), r.Messages...),
		Users:       usersLocked(r),
		Limit:       r.Limit,
		HasPassword: r.Password != "",
	}
}

func usersLocked(r *models.Room) []string {
	users := make([]string, 0, len(r.Usernames))
	for u := range r.Usernames {
		users = append(users, u)
	}
	sort.Strings(users)
	return users
}

// snapshotLocked copies the persistable subset of every room. Must be called
// with s.mu held; the copy is written to disk after the lock is released.
func (s *Store) snapshotLocked() models.Snapshot {
	snap := models.Snapshot{Rooms: make(map[string]models.SnapshotRoom, len(s.rooms))}
	for code, r := range s.rooms {
		snap.Rooms[code] = models.SnapshotRoom{
			CreatedAt:    r.CreatedAt,
			LastActiveAt: r.LastActiveAt,
			Messages:     append([]models.Message(nil), r.Messages...),
			Password:     r.Password,
			Limit:        r.Limit,
		}
	}
	return snap
}

// save is best-effort: a failed write is logged and the in-memory state
// stays authoritative for the running process.
func (s *Store) save(snap models.Snapshot) {
	if s.snap == nil {
		return
	}
	if err := s.snap.Save(snap); err != nil {
		logrus.WithError(err).Error("Failed to write snapshot")
	}
}

func (s *Store) cancelPending(code string) {
	if s.expiry != nil {
		s.expiry.Cancel(code)
	}
}
