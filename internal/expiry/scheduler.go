package expiry

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mossy-p/ephemeral-chat/internal/models"
	"github.com/mossy-p/ephemeral-chat/internal/store"
)

// Options tunes the sweep. Zero values fall back to production defaults;
// tests inject short durations.
type Options struct {
	SweepInterval time.Duration // how often every room is examined
	MaxAge        time.Duration // room age that triggers the grace timer
	Grace         time.Duration // delay between warning and deletion
	NotifyCancel  bool          // broadcast a notice when a pending deletion is canceled
}

func (o *Options) defaults() {
	if o.SweepInterval <= 0 {
		o.SweepInterval = time.Minute
	}
	if o.MaxAge <= 0 {
		o.MaxAge = time.Hour
	}
	if o.Grace <= 0 {
		o.Grace = 60 * time.Second
	}
}

// pending is one scheduled deletion. The generation token makes cancellation
// race-free: a timer that fires after Cancel sees a missing or mismatched
// generation and does nothing, even if the room code was reused since.
type pending struct {
	gen   uint64
	timer *time.Timer
}

// Scheduler owns every scheduled room deletion and the periodic sweep.
// Rooms it deletes are removed through the store, which multicasts
// room-deleted to anyone still connected.
type Scheduler struct {
	opts   Options
	store  *store.Store
	notify store.Notifier

	mu      sync.Mutex
	gen     uint64
	pending map[string]*pending
}

func New(st *store.Store, opts Options) *Scheduler {
	opts.defaults()
	return &Scheduler{
		opts:    opts,
		store:   st,
		pending: map[string]*pending{},
	}
}

// SetNotifier wires the broadcast gateway in so warnings reach room members.
func (s *Scheduler) SetNotifier(n store.Notifier) { s.notify = n }

func (s *Scheduler) broadcast(code string, msg models.Message) {
	if s.notify != nil {
		s.notify.RoomMessage(code, msg)
	}
}

// Run sweeps every room at a fixed interval until ctx is canceled: empty
// rooms are deleted on the spot, rooms past the age threshold get a warning
// and a grace timer.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.stopAll()
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep examines every room once. Exported so tests can drive it directly.
func (s *Scheduler) Sweep() {
	now := time.Now().UnixMilli()
	for _, r := range s.store.Stats() {
		if r.Members == 0 {
			// Nobody is present to read a warning, delete immediately.
			s.store.Delete(r.Code)
			continue
		}
		if time.Duration(now-r.CreatedAt)*time.Millisecond >= s.opts.MaxAge {
			s.schedule(r.Code, r.Members)
		}
	}
}

// schedule arms a grace timer for an aged room, warning the occupants first.
// The warning goes through the store's append path, which cancels any pending
// deletion, so it must land before the timer entry is registered.
func (s *Scheduler) schedule(code string, members int) {
	s.mu.Lock()
	if _, ok := s.pending[code]; ok {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	if members > 0 {
		msg := s.store.Append(code, "System",
			"This room has reached its maximum age and will be deleted in "+
				s.opts.Grace.String()+" unless someone speaks up.", true)
		s.broadcast(code, msg)
	}

	s.mu.Lock()
	if _, ok := s.pending[code]; ok {
		// Lost a race with another sweep tick.
		s.mu.Unlock()
		return
	}
	s.gen++
	gen := s.gen
	p := &pending{gen: gen}
	p.timer = time.AfterFunc(s.opts.Grace, func() { s.fire(code, gen) })
	s.pending[code] = p
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{"room": code, "grace": s.opts.Grace}).Info("Room deletion scheduled")
}

// fire runs when a grace timer elapses. It deletes the room only if this
// exact scheduling is still outstanding.
func (s *Scheduler) fire(code string, gen uint64) {
	s.mu.Lock()
	p, ok := s.pending[code]
	if !ok || p.gen != gen {
		s.mu.Unlock()
		return
	}
	delete(s.pending, code)
	s.mu.Unlock()

	s.store.Delete(code)
}

// Cancel clears a pending deletion. Any activity in the room routes here:
// a reprieved room starts the next cycle with a fresh warning.
func (s *Scheduler) Cancel(code string) {
	s.mu.Lock()
	p, ok := s.pending[code]
	if ok {
		delete(s.pending, code)
		p.timer.Stop()
	}
	s.mu.Unlock()

	if ok && s.opts.NotifyCancel {
		msg := s.store.Append(code, "System", "Scheduled deletion canceled", true)
		s.broadcast(code, msg)
	}
}

// Pending reports whether a deletion is currently scheduled for the room.
func (s *Scheduler) Pending(code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[code]
	return ok
}

func (s *Scheduler) stopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for code, p := range s.pending {
		p.timer.Stop()
		delete(s.pending, code)
	}
}
